// Command trader runs the matching pipelines on local files and writes the
// CSV export, for batch use without the HTTP service.
package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/dimi-lab/trader/logging"
	"github.com/dimi-lab/trader/matcher"
	"github.com/dimi-lab/trader/recordsparser"
	"github.com/dimi-lab/trader/recordsparser/entities"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

func main() {
	// .env is optional here; flags cover everything
	_ = godotenv.Load()

	if err := newRootCmd(time.Now).Execute(); err != nil {
		os.Exit(1)
	}
}

// options are the flags shared by every subcommand.
type options struct {
	encodings      []string
	output         string
	categoriesFile string
	logLevel       string
	cacheSize      int
	now            func() time.Time
}

func newRootCmd(now func() time.Time) *cobra.Command {
	opts := &options{now: now}

	rootCmd := &cobra.Command{
		Use:          "trader",
		Short:        "Match patient variants against clinical trials and orphan drugs",
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			logging.InitConsole(cmd.ErrOrStderr(), logging.ParseLevel(opts.logLevel))
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringSliceVar(&opts.encodings, "encodings", recordsparser.DefaultEncodings, "Ordered input encodings to try")
	flags.StringVarP(&opts.output, "output", "o", "-", "CSV output file or directory, - for stdout")
	flags.StringVar(&opts.categoriesFile, "categories-file", os.Getenv("EXCLUSION_CATEGORIES_FILE"), "YAML file overriding the exclusion categories")
	flags.StringVar(&opts.logLevel, "log-level", envOr("LOG_LEVEL", "warn"), "Log level: debug, info, warn, error")
	flags.IntVar(&opts.cacheSize, "pattern-cache-size", matcher.DefaultPatternCacheSize, "Compiled pattern cache size")

	rootCmd.AddCommand(trialsCmd(opts))
	rootCmd.AddCommand(drugsCmd(opts))
	rootCmd.AddCommand(compareCmd(opts))
	return rootCmd
}

func trialsCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "trials",
		Short: "Match patients to clinical trials mentioning their gene",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			patientsPath, _ := cmd.Flags().GetString("patients")
			trialsPath, _ := cmd.Flags().GetString("trials")
			exclude, _ := cmd.Flags().GetStringSlice("exclude")

			engine, err := opts.engine()
			if err != nil {
				return err
			}
			patients, err := opts.readPatients(patientsPath)
			if err != nil {
				return err
			}
			text, err := opts.readFile(trialsPath)
			if err != nil {
				return err
			}
			trials, _, err := recordsparser.MakeTrials(text)
			if err != nil {
				return err
			}

			result, err := engine.MatchTrials(patients, trials, exclude, nil)
			if err != nil {
				return err
			}
			return opts.write(cmd, matcher.ExportTrialMatches, result.Table, result.Summary)
		},
	}

	cmd.Flags().String("patients", "", "Headerless patient TSV: PatientID, Gene, Phenotype")
	cmd.Flags().String("trials", dataPath("TRIALS_FILE", "clinical_trials.tsv"), "Clinical trial TSV")
	cmd.Flags().StringSlice("exclude", nil, "Exclusion categories to apply")
	_ = cmd.MarkFlagRequired("patients")
	return cmd
}

func drugsCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "drugs",
		Short: "Match patients to orphan drugs through gene-disease associations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			patientsPath, _ := cmd.Flags().GetString("patients")
			geneDiseasePath, _ := cmd.Flags().GetString("gene-disease")
			drugsPath, _ := cmd.Flags().GetString("orphan-drugs")

			engine, err := opts.engine()
			if err != nil {
				return err
			}
			patients, err := opts.readPatients(patientsPath)
			if err != nil {
				return err
			}

			text, err := opts.readFile(geneDiseasePath)
			if err != nil {
				return err
			}
			geneDisease, _, err := recordsparser.MakeGeneDisease(text)
			if err != nil {
				return err
			}

			text, err = opts.readFile(drugsPath)
			if err != nil {
				return err
			}
			drugs, _, err := recordsparser.MakeOrphanDrugs(text)
			if err != nil {
				return err
			}

			result, err := engine.MatchDrugs(patients, geneDisease, drugs, nil)
			if err != nil {
				return err
			}
			return opts.write(cmd, matcher.ExportDrugMatches, result.Table, result.Summary)
		},
	}

	cmd.Flags().String("patients", "", "Headerless patient TSV: PatientID, Gene, Phenotype")
	cmd.Flags().String("gene-disease", dataPath("GENE_DISEASE_FILE", "gene_disease.txt"), "Gene-disease association TSV")
	cmd.Flags().String("orphan-drugs", dataPath("ORPHAN_DRUGS_FILE", "orphan_drugs.txt"), "Orphan drug designation TSV")
	_ = cmd.MarkFlagRequired("patients")
	return cmd
}

func compareCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "compare",
		Short: "List updated records whose PatientID is not in the baseline",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			baselinePath, _ := cmd.Flags().GetString("baseline")
			updatedPath, _ := cmd.Flags().GetString("updated")

			engine, err := opts.engine()
			if err != nil {
				return err
			}
			baseline, err := opts.readComparison(baselinePath)
			if err != nil {
				return err
			}
			updated, err := opts.readComparison(updatedPath)
			if err != nil {
				return err
			}

			result, err := engine.Diff(baseline, updated, nil)
			if err != nil {
				return err
			}
			return opts.write(cmd, matcher.ExportComparison, result.Table, result.Summary)
		},
	}

	cmd.Flags().String("baseline", dataPath("REACTOR_FILE", "reactor_matches.csv"), "Baseline CSV with a PatientID column")
	cmd.Flags().String("updated", "", "Updated CSV with a PatientID column")
	_ = cmd.MarkFlagRequired("updated")
	return cmd
}

func (o *options) engine() (*matcher.Engine, error) {
	text, err := matcher.NewTextMatcher(o.cacheSize)
	if err != nil {
		return nil, err
	}
	categories, err := matcher.LoadExclusionCategories(o.categoriesFile)
	if err != nil {
		return nil, err
	}
	return matcher.NewEngine(text, categories)
}

func (o *options) readFile(path string) (string, error) {
	loader := recordsparser.NewLoader(recordsparser.LoaderConfig{Encodings: o.encodings})
	text, enc, err := loader.ReadFile(path)
	if err != nil {
		return "", err
	}
	logging.Debug("Input decoded", "path", path, "encoding", enc)
	return text, nil
}

// readPatients accepts the headerless three-column layout and falls back to
// a headered file with recognizable column names.
func (o *options) readPatients(path string) ([]entities.PatientRecord, error) {
	text, err := o.readFile(path)
	if err != nil {
		return nil, err
	}
	patients, _, err := recordsparser.MakePatients(text)
	if err == nil {
		return patients, nil
	}
	if headered, _, herr := recordsparser.MakePatientsHeadered(text); herr == nil {
		return headered, nil
	}
	return nil, err
}

func (o *options) readComparison(path string) (*entities.Table, error) {
	text, err := o.readFile(path)
	if err != nil {
		return nil, err
	}
	table, _, err := recordsparser.MakeComparisonTable(text)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return table, nil
}

// write sends the CSV to the output target and the summary to stderr.
func (o *options) write(cmd *cobra.Command, stem string, table *entities.Table, summary any) error {
	if err := o.writeCSV(cmd.OutOrStdout(), stem, table); err != nil {
		return err
	}

	enc := json.NewEncoder(cmd.ErrOrStderr())
	enc.SetIndent("", "  ")
	return enc.Encode(summary)
}

func (o *options) writeCSV(stdout io.Writer, stem string, table *entities.Table) error {
	if o.output == "" || o.output == "-" {
		return matcher.WriteCSV(stdout, table)
	}

	path := o.output
	if info, err := os.Stat(path); err == nil && info.IsDir() {
		path = filepath.Join(path, matcher.ExportFilename(stem, o.now()))
	}

	f, err := os.Create(filepath.Clean(path))
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	if err := matcher.WriteCSV(f, table); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to close output file: %w", err)
	}
	logging.Info("Results written", "path", path, "rows", table.Len())
	return nil
}

func envOr(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

// dataPath resolves a reference file name from the environment against DATA_DIR.
func dataPath(key, fallback string) string {
	name := envOr(key, fallback)
	if filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(envOr("DATA_DIR", "."), name)
}
