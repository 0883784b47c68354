package matcher

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func defaultCategories(t *testing.T) *ExclusionCategories {
	t.Helper()
	c, err := DefaultExclusionCategories()
	require.NoError(t, err)
	return c
}

func TestDefaultExclusionCategories(t *testing.T) {
	c := defaultCategories(t)
	assert.Equal(t, []string{
		"Cancer/Oncology",
		"Trauma/Injury",
		"Infectious Disease",
		"Cardiovascular",
		"Neurological",
		"Psychiatric",
		"Metabolic",
		"Autoimmune",
	}, c.Names())

	cats := c.Categories()
	assert.Contains(t, cats[0].Keywords, "AML")
	assert.Contains(t, cats[2].Keywords, "bacter")

	// callers get copies
	cats[0].Keywords[0] = "changed"
	assert.Equal(t, "cancer", c.Categories()[0].Keywords[0])
}

func TestBuildMask(t *testing.T) {
	c := defaultCategories(t)
	conditions := []string{
		"Breast Cancer",
		"Cystic Fibrosis",
		"",
		"Bacterial pneumonia",
		"Congenital HEART defect",
		"Fabry disease",
	}

	t.Run("no selection keeps everything", func(t *testing.T) {
		assert.Equal(t, []bool{true, true, true, true, true, true}, c.BuildMask(conditions, nil))
		assert.Equal(t, []bool{true, true, true, true, true, true}, c.BuildMask(conditions, []string{}))
	})

	t.Run("unknown categories are ignored", func(t *testing.T) {
		assert.Equal(t, []bool{true, true, true, true, true, true}, c.BuildMask(conditions, []string{"Nope"}))
	})

	t.Run("substring and case-insensitive", func(t *testing.T) {
		mask := c.BuildMask(conditions, []string{"Cancer/Oncology", "Infectious Disease", "Cardiovascular"})
		assert.Equal(t, []bool{false, true, true, false, false, true}, mask)
	})

	t.Run("empty conditions stay eligible", func(t *testing.T) {
		mask := c.BuildMask([]string{""}, c.Names())
		assert.Equal(t, []bool{true}, mask)
	})

	t.Run("empty input", func(t *testing.T) {
		assert.Empty(t, c.BuildMask(nil, []string{"Cancer/Oncology"}))
	})
}

func TestExclusionCompleteness(t *testing.T) {
	c := defaultCategories(t)
	for _, cat := range c.Categories() {
		for _, kw := range cat.Keywords {
			condition := "prefix " + kw + " suffix"
			assert.True(t, c.Excluded(condition, []string{cat.Name}), "%s should exclude %q", cat.Name, condition)
			assert.Equal(t, []bool{false}, c.BuildMask([]string{condition}, []string{cat.Name}))
		}
	}
}

func TestResolveCategories(t *testing.T) {
	c := defaultCategories(t)
	known, ignored := c.ResolveCategories([]string{"Metabolic", " Autoimmune ", "Metabolic", "", "Rare"})
	assert.Equal(t, []string{"Metabolic", "Autoimmune"}, known)
	assert.Equal(t, []string{"Rare"}, ignored)
}

func TestLoadExclusionCategories(t *testing.T) {
	t.Run("empty path uses defaults", func(t *testing.T) {
		c, err := LoadExclusionCategories("")
		require.NoError(t, err)
		assert.Len(t, c.Names(), 8)
	})

	t.Run("custom file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "categories.yaml")
		content := "categories:\n  - name: Renal\n    keywords: [kidney, ' renal ']\n"
		require.NoError(t, os.WriteFile(path, []byte(content), 0600))

		c, err := LoadExclusionCategories(path)
		require.NoError(t, err)
		assert.Equal(t, []string{"Renal"}, c.Names())
		assert.Equal(t, []bool{false, true}, c.BuildMask([]string{"Chronic RENAL failure", "Cancer"}, []string{"Renal", "Cancer/Oncology"}))
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := LoadExclusionCategories(filepath.Join(t.TempDir(), "none.yaml"))
		assert.Error(t, err)
	})
}

func TestParseExclusionCategoriesErrors(t *testing.T) {
	tests := map[string]string{
		"invalid yaml":   "categories: [",
		"no categories":  "categories: []\n",
		"no name":        "categories:\n  - keywords: [a]\n",
		"no keywords":    "categories:\n  - name: A\n    keywords: ['  ']\n",
		"duplicate name": "categories:\n  - name: A\n    keywords: [a]\n  - name: A\n    keywords: [b]\n",
	}
	for name, content := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := ParseExclusionCategories([]byte(content))
			assert.Error(t, err)
		})
	}
}
