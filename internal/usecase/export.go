package usecase

import (
	"bufio"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/imagetrace/backend/internal/domain"
)

var csvHeader = []string{"Match Type", "Domain", "URL", "Page Type", "Confidence", "Date Found"}

// ExportRow is one line of the CSV export
type ExportRow struct {
	MatchType  string
	Domain     string
	URL        string
	PageType   string
	Confidence string
	DateFound  string
}

// ExportRows builds one row per exact match, partial match and page, in that order
func ExportRows(filtered domain.FilteredData) []ExportRow {
	rows := make([]ExportRow, 0, len(filtered.ExactMatches)+len(filtered.PartialMatches)+len(filtered.AllPages))
	for _, rec := range filtered.Records() {
		var matchType, pageType string
		switch rec.Kind {
		case domain.RecordExact:
			matchType, pageType = "Exact Match", "N/A"
		case domain.RecordPartial:
			matchType, pageType = "Partial Match", "N/A"
		case domain.RecordPage:
			matchType, pageType = "Page", string(rec.Page.PageType)
			if pageType == "" {
				pageType = string(domain.PageTypeUnknown)
			}
		default:
			continue
		}
		rows = append(rows, ExportRow{
			MatchType:  matchType,
			Domain:     Hostname(rec.URL()),
			URL:        rec.URL(),
			PageType:   pageType,
			Confidence: fmt.Sprintf("%.1f%%", rec.Score()*100),
			DateFound:  formatDate(rec.DateFound()),
		})
	}
	return rows
}

// WriteCSV writes the export. The URL column is always quoted; other columns
// are quoted only when they contain a separator, quote or newline.
func WriteCSV(w io.Writer, filtered domain.FilteredData) error {
	bw := bufio.NewWriter(w)

	if _, err := bw.WriteString(strings.Join(csvHeader, ",") + "\n"); err != nil {
		return err
	}
	for _, row := range ExportRows(filtered) {
		line := strings.Join([]string{
			csvField(row.MatchType, false),
			csvField(row.Domain, false),
			csvField(row.URL, true),
			csvField(row.PageType, false),
			csvField(row.Confidence, false),
			csvField(row.DateFound, false),
		}, ",")
		if _, err := bw.WriteString(line + "\n"); err != nil {
			return err
		}
	}
	return bw.Flush()
}

func csvField(value string, forceQuote bool) string {
	if forceQuote || strings.ContainsAny(value, ",\"\r\n") {
		return `"` + strings.ReplaceAll(value, `"`, `""`) + `"`
	}
	return value
}

func formatDate(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format("2006-01-02")
}
