package usecase

import (
	"regexp"
	"strings"
	"time"
)

// Activity filenames carry random provider prefixes before a "__" separator
// and date/batch suffixes after the logical name. Normalization strips both
// so files from different days collapse to one comparable pattern key.

var (
	batchMarkerRe      = regexp.MustCompile(`_batch_\d+`)
	underscoreDateRe   = regexp.MustCompile(`(_\d{4}_\d{2}_\d{2})+`)
	dashDateRe         = regexp.MustCompile(`(-\d{4}-\d{2}-\d{2})+`)
	compactStampRe     = regexp.MustCompile(`(?:[-_]\d{8,14})+`)
	trailingDashDateRe = regexp.MustCompile(`(?:[-_]\d{4}-\d{2}-\d{2})+$`)
	trailingStampRe    = regexp.MustCompile(`(?:[-_]\d{8,14})+$`)
	separatorRunRe     = regexp.MustCompile(`[-_]+`)
	dateTokenRe        = regexp.MustCompile(`(\d{4})[\-_]?(\d{2})[\-_]?(\d{2})`)
	digitRunRe         = regexp.MustCompile(`\d{8}`)
)

// NormalizePattern reduces a filename to its logical pattern: lower-cased,
// extension removed, provider prefix cut at the first "__", batch markers and
// embedded date/timestamp tokens stripped, separator runs collapsed to "_".
// Falls back to the lower-cased original when nothing survives. Re-running it
// on its own output never shortens the pattern further.
func NormalizePattern(filename string) string {
	if filename == "" {
		return ""
	}
	name := strings.ToLower(filename)

	stem := name
	if i := strings.LastIndex(stem, "."); i >= 0 {
		stem = stem[:i]
	}
	if i := strings.Index(stem, "__"); i >= 0 {
		stem = stem[i+2:]
	}

	stem = stripDateTokens(stem)
	if stem == "" {
		return name
	}
	return stem
}

// stripDateTokens removes batch markers and date/timestamp tokens, then
// collapses separator runs. Case-sensitive on purpose: digits have no case
// and the batch marker is lower-cased by the callers that need it.
func stripDateTokens(stem string) string {
	stem = batchMarkerRe.ReplaceAllString(stem, "")
	stem = underscoreDateRe.ReplaceAllString(stem, "")
	stem = dashDateRe.ReplaceAllString(stem, "")
	stem = compactStampRe.ReplaceAllString(stem, "")
	stem = trailingDashDateRe.ReplaceAllString(stem, "")
	stem = trailingStampRe.ReplaceAllString(stem, "")
	stem = separatorRunRe.ReplaceAllString(stem, "_")
	return strings.Trim(stem, "_-")
}

// EntityLabel derives a short case-preserved label for the business entity a
// file belongs to: the first one or two tokens after the "__" separator with
// date/batch tokens removed, or the first two tokens of the normalized
// pattern when no separator exists. Best effort, not unique per source.
func EntityLabel(filename string) string {
	base := baseName(filename)
	pattern := NormalizePattern(base)

	entity := pattern
	if strings.Contains(pattern, "_") {
		tokens := strings.Split(pattern, "_")
		if len(tokens) >= 2 {
			entity = tokens[0] + "_" + tokens[1]
		}
	}

	if i := strings.Index(base, "__"); i >= 0 {
		part := base[i+2:]
		if j := strings.LastIndex(part, "."); j >= 0 {
			part = part[:j]
		}
		part = stripDateTokens(part)
		tokens := strings.Split(part, "_")
		switch {
		case len(tokens) >= 2 && tokens[0] != "":
			entity = tokens[0] + "_" + tokens[1]
		case len(tokens) >= 1 && tokens[0] != "":
			entity = tokens[0]
		}
	}
	return entity
}

// PatternMeta is the derived view of one activity filename.
type PatternMeta struct {
	Filename     string
	Pattern      string
	Entity       string
	DateToken    string
	CoverageDate string
}

// ParsePatternMeta extracts the pattern, entity label and embedded coverage
// date from a filename. The coverage date is only set when the embedded
// digits form a real calendar date.
func ParsePatternMeta(filename string) PatternMeta {
	base := baseName(filename)
	meta := PatternMeta{Filename: base}

	if m := dateTokenRe.FindStringSubmatch(base); m != nil {
		meta.DateToken = m[1] + m[2] + m[3]
		if t, err := time.Parse("20060102", meta.DateToken); err == nil {
			meta.CoverageDate = t.Format("2006-01-02")
		}
	}

	meta.Pattern = NormalizePattern(base)
	if meta.Pattern == "" {
		meta.Pattern = base
	}
	meta.Entity = EntityLabel(filename)
	return meta
}

func baseName(filename string) string {
	if i := strings.LastIndex(filename, "/"); i >= 0 {
		return filename[i+1:]
	}
	return filename
}
