package usecase

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/kirillkom/ingest-sentinel/internal/core/domain"
)

// Contract documents are free-form markdown. The extractors below pull out
// the few structured fragments the detectors need; a missing section always
// means "no expectation asserted", never zero.

// RowStats holds whichever of min/max/mean/median a table cell provided.
type RowStats map[string]int

var rowStatRe = regexp.MustCompile(`(Min|Max|Mean|Median):\s*([0-9,\.]+)`)

var weekdayKeys = map[string]bool{
	"mon": true, "tue": true, "wed": true, "thu": true,
	"fri": true, "sat": true, "sun": true,
}

// DayStats parses the "Day-of-Week Summary" table into per-weekday row-count
// statistics, keyed by lower-cased 3-letter abbreviation. Scanning stops at
// the first blank line after the header.
func DayStats(text string) map[string]RowStats {
	stats := map[string]RowStats{}
	if text == "" {
		return stats
	}

	capture := false
	for _, line := range strings.Split(text, "\n") {
		if strings.Contains(line, "Day-of-Week Summary") {
			capture = true
			continue
		}
		if capture && strings.HasPrefix(line, "|") {
			columns := splitTableRow(line)
			if len(columns) < 2 {
				continue
			}
			day := strings.ToLower(columns[0])
			if len(day) > 3 {
				day = day[:3]
			}
			if !weekdayKeys[day] {
				continue
			}
			stats[day] = parseRowStats(columns[1])
		} else if capture && strings.TrimSpace(line) == "" {
			break
		}
	}
	return stats
}

func splitTableRow(line string) []string {
	parts := strings.Split(strings.Trim(line, "|"), "|")
	columns := make([]string, len(parts))
	for i, p := range parts {
		columns[i] = strings.TrimSpace(p)
	}
	return columns
}

func parseRowStats(cell string) RowStats {
	stats := RowStats{}
	for _, m := range rowStatRe.FindAllStringSubmatch(cell, -1) {
		n, err := strconv.Atoi(strings.ReplaceAll(m[2], ",", ""))
		if err != nil {
			continue
		}
		stats[strings.ToLower(m[1])] = n
	}
	return stats
}

// ExpectedFiles reads the mean expected file count for the execution date's
// weekday from the "File Processing Statistics by Day" table. The bool
// reports whether the contract asserts an expectation at all.
func ExpectedFiles(text, executionDate string) (int, bool) {
	if text == "" {
		return 0, false
	}
	t, err := time.Parse("2006-01-02", executionDate)
	if err != nil {
		return 0, false
	}
	dayName := t.Format("Mon")

	inTable := false
	foundHeader := false
	for _, line := range strings.Split(text, "\n") {
		if strings.Contains(line, "File Processing Statistics by Day") {
			inTable = true
			continue
		}
		if inTable && !foundHeader && strings.Contains(line, "Day") && strings.Contains(line, "Mean Files") {
			foundHeader = true
			continue
		}
		if inTable && foundHeader && strings.Contains(line, dayName) && strings.Contains(line, "|") {
			parts := nonEmptyColumns(line)
			if len(parts) >= 4 && parts[0] == dayName {
				if n, convErr := strconv.Atoi(parts[1]); convErr == nil {
					return n, true
				}
			}
		}
		if inTable && strings.HasPrefix(line, "##") {
			break
		}
	}
	return 0, false
}

func nonEmptyColumns(line string) []string {
	parts := strings.Split(line, "|")
	columns := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			columns = append(columns, s)
		}
	}
	return columns
}

// UploadWindow returns the raw time-range string from the first
// "Upload Time Window" line, or "" when the contract has none.
func UploadWindow(text string) string {
	for _, line := range strings.Split(text, "\n") {
		if strings.Contains(line, "Upload Time Window") {
			parts := strings.Split(line, "|")
			return strings.TrimSpace(parts[len(parts)-1])
		}
	}
	return ""
}

// VolumeThreshold returns the "Normal (95%) interval" upper bound: the
// integer after the final "-" on the first matching line. A non-numeric tail
// is ErrMalformedContract — silently losing the bound would disable the
// volume check for the whole source.
func VolumeThreshold(text string) (int, bool, error) {
	for _, line := range strings.Split(text, "\n") {
		if !strings.Contains(line, "Normal (95%) interval:") {
			continue
		}
		parts := strings.Split(line, "-")
		tail := strings.TrimSpace(parts[len(parts)-1])
		n, err := strconv.Atoi(tail)
		if err != nil {
			return 0, false, domain.WrapError(domain.ErrMalformedContract, "parse volume threshold", err)
		}
		return n, true, nil
	}
	return 0, false, nil
}

// ContractTitle returns the first markdown heading, used as the display name.
func ContractTitle(text string) string {
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, "#") {
			return strings.TrimLeft(line, "# ")
		}
	}
	return ""
}

// WeekdayLabels resolves an ISO execution date to its weekday name and
// 3-letter abbreviation.
func WeekdayLabels(executionDate string) (weekday, abbr string, err error) {
	t, err := time.Parse("2006-01-02", executionDate)
	if err != nil {
		return "", "", domain.WrapError(domain.ErrInvalidInput, "parse execution date", fmt.Errorf("%q is not YYYY-MM-DD", executionDate))
	}
	return t.Format("Monday"), t.Format("Mon"), nil
}
