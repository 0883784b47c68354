package recordsparser

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/dimi-lab/trader/logging"
)

// maxDownloadSize caps a reference file download. Larger bodies are refused
// rather than truncated.
var maxDownloadSize int64 = 256 << 20

var downloadClient = &http.Client{
	Timeout: 5 * time.Minute,
}

// DownloadFile fetches url, decodes it with the given encoding fallback list
// and writes the UTF-8 text to dest. The file is replaced atomically so that
// a failed download never leaves a truncated reference file behind.
func DownloadFile(ctx context.Context, url, dest string, encodings []string) (string, error) {
	cleanPath := filepath.Clean(dest)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("failed to build request for %s: %w", url, err)
	}

	response, err := downloadClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to download %s: %w", url, err)
	}
	defer func() {
		if err := response.Body.Close(); err != nil {
			logging.Warn("Failed to close response body", "error", err)
		}
	}()

	if response.StatusCode != http.StatusOK {
		return "", fmt.Errorf("failed to download %s: unexpected status %s", url, response.Status)
	}

	// Some sources serve latin-1, others utf-8, so read the content first
	bodyBytes, err := io.ReadAll(io.LimitReader(response.Body, maxDownloadSize+1))
	if err != nil {
		return "", fmt.Errorf("failed to read response body: %w", err)
	}
	if int64(len(bodyBytes)) > maxDownloadSize {
		return "", fmt.Errorf("failed to download %s: body exceeds %d bytes", url, maxDownloadSize)
	}

	text, encodingUsed, err := Decode(bodyBytes, encodings)
	if err != nil {
		return "", fmt.Errorf("failed to decode %s: %w", url, err)
	}

	if err := os.MkdirAll(filepath.Dir(cleanPath), 0750); err != nil {
		return "", fmt.Errorf("failed to create directory for %s: %w", cleanPath, err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(cleanPath), filepath.Base(cleanPath)+".*.tmp")
	if err != nil {
		return "", fmt.Errorf("failed to create temp file for %s: %w", cleanPath, err)
	}
	tmpName := tmp.Name()

	if _, err := io.WriteString(tmp, text); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return "", fmt.Errorf("failed to write to file %s: %w", cleanPath, err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return "", fmt.Errorf("failed to close temp file for %s: %w", cleanPath, err)
	}
	if err := os.Rename(tmpName, cleanPath); err != nil {
		_ = os.Remove(tmpName)
		return "", fmt.Errorf("failed to replace %s: %w", cleanPath, err)
	}

	logging.Debug(fmt.Sprintf("%s downloaded and decoded without errors", cleanPath), "encoding", encodingUsed)
	return encodingUsed, nil
}
