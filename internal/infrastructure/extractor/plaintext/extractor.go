package plaintext

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"
)

// Extractor reads markdown and other plain-text contract files.
type Extractor struct{}

func NewExtractor() *Extractor {
	return &Extractor{}
}

func (e *Extractor) Extract(_ context.Context, path string) (string, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read contract file: %w", err)
	}

	if !utf8.Valid(raw) {
		return "", fmt.Errorf("contract file is not valid utf-8: %s", filepath.Base(path))
	}

	return strings.TrimSpace(string(raw)), nil
}
