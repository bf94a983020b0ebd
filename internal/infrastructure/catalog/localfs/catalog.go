package localfs

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/kirillkom/ingest-sentinel/internal/core/domain"
)

const (
	contractMDSuffix  = "_native.md"
	contractPDFSuffix = "_native.pdf"
	dailyDirSuffix    = "_20_00_UTC"
	filesJSON         = "files.json"
	lastWeekdayJSON   = "files_last_weekday.json"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Extractor turns one contract file into plain text.
type Extractor interface {
	Extract(ctx context.Context, path string) (string, error)
}

// Catalog reads sources, contracts, activity payloads and operator feedback
// from the local filesystem layout the ingestion platform drops them in:
//
//	{cv_path}/{source_id}_native.md            contract, markdown rendering
//	{cv_path}/{source_id}_native.pdf           contract, original document
//	{daily_path}/{date}_20_00_UTC/files.json   per-source daily uploads
//	{daily_path}/{date}_20_00_UTC/files_last_weekday.json
//	{feedback_path}/{feedback_file}            operator feedback CSV
type Catalog struct {
	cvPath       string
	dailyPath    string
	feedbackPath string
	feedbackFile string
	markdown     Extractor
	pdf          Extractor
}

func NewCatalog(
	cvPath string,
	dailyPath string,
	feedbackPath string,
	feedbackFile string,
	markdown Extractor,
	pdf Extractor,
) *Catalog {
	return &Catalog{
		cvPath:       cvPath,
		dailyPath:    dailyPath,
		feedbackPath: feedbackPath,
		feedbackFile: feedbackFile,
		markdown:     markdown,
		pdf:          pdf,
	}
}

// ListSourceIDs collects source ids from the contract filenames. A missing
// contract directory yields an empty list, not an error.
func (c *Catalog) ListSourceIDs(_ context.Context) ([]string, error) {
	seen := map[string]struct{}{}

	for _, pattern := range []string{"*" + contractMDSuffix, "*" + contractPDFSuffix} {
		matches, err := filepath.Glob(filepath.Join(c.cvPath, pattern))
		if err != nil {
			return nil, fmt.Errorf("glob contracts: %w", err)
		}
		for _, match := range matches {
			base := filepath.Base(match)
			id := strings.Split(base, "_")[0]
			if id != "" {
				seen[id] = struct{}{}
			}
		}
	}

	ids := make([]string, 0, len(seen))
	for id := range seen {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

// ReadContract loads the contract text for one source, preferring the
// markdown rendering and falling back to the original PDF.
func (c *Catalog) ReadContract(ctx context.Context, sourceID string) (string, error) {
	mdPath := filepath.Join(c.cvPath, sourceID+contractMDSuffix)
	if _, err := os.Stat(mdPath); err == nil {
		text, err := c.markdown.Extract(ctx, mdPath)
		if err != nil {
			return "", fmt.Errorf("extract contract %s: %w", sourceID, err)
		}
		return text, nil
	}

	pdfPath := filepath.Join(c.cvPath, sourceID+contractPDFSuffix)
	if _, err := os.Stat(pdfPath); err == nil {
		text, err := c.pdf.Extract(ctx, pdfPath)
		if err != nil {
			return "", fmt.Errorf("extract contract %s: %w", sourceID, err)
		}
		return text, nil
	}

	return "", domain.WrapError(domain.ErrContractNotFound, "read contract",
		fmt.Errorf("no contract file for source %s", sourceID))
}

// LoadActivity reads both activity payloads for the execution date. Missing
// or malformed payloads fail the run: without them there is no day to report.
func (c *Catalog) LoadActivity(_ context.Context, executionDate string) (*domain.Activity, error) {
	dir := filepath.Join(c.dailyPath, executionDate+dailyDirSuffix)

	daily, err := readActivityFile(filepath.Join(dir, filesJSON))
	if err != nil {
		return nil, domain.WrapError(domain.ErrActivityUnavailable, "load daily activity", err)
	}

	lastWeekday, err := readActivityFile(filepath.Join(dir, lastWeekdayJSON))
	if err != nil {
		return nil, domain.WrapError(domain.ErrActivityUnavailable, "load last weekday activity", err)
	}

	return &domain.Activity{Daily: daily, LastWeekday: lastWeekday}, nil
}

func readActivityFile(path string) (map[string][]domain.FileRecord, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var payload map[string][]domain.FileRecord
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, fmt.Errorf("parse %s: %w", filepath.Base(path), err)
	}
	return payload, nil
}

// LoadFeedback reads the operator feedback CSV. An absent file is normal and
// yields empty feedback; a present but unreadable file is an error.
func (c *Catalog) LoadFeedback(_ context.Context) (*domain.Feedback, error) {
	path := filepath.Join(c.feedbackPath, c.feedbackFile)

	raw, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return &domain.Feedback{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read feedback: %w", err)
	}

	raw = bytes.TrimPrefix(raw, utf8BOM)

	reader := csv.NewReader(bytes.NewReader(raw))
	reader.FieldsPerRecord = -1
	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse feedback csv: %w", err)
	}
	if len(records) == 0 {
		return &domain.Feedback{}, nil
	}

	headers := records[0]
	rows := make([]map[string]string, 0, len(records)-1)
	for _, record := range records[1:] {
		row := make(map[string]string, len(headers))
		for i, header := range headers {
			if i < len(record) {
				row[header] = record[i]
			}
		}
		rows = append(rows, row)
	}

	return &domain.Feedback{Headers: headers, Rows: rows}, nil
}
