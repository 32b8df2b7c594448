// Package export renders stored pain points as CSV, JSON or a grouped
// Markdown report.
package export

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"reviewminer/internal/domain/review"
	"reviewminer/internal/errs"
	"reviewminer/internal/ports"
)

type Format string

const (
	FormatCSV      Format = "csv"
	FormatJSON     Format = "json"
	FormatMarkdown Format = "markdown"
)

func ParseFormat(raw string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(raw))); f {
	case FormatCSV, FormatJSON, FormatMarkdown:
		return f, nil
	case "md":
		return FormatMarkdown, nil
	default:
		return "", fmt.Errorf("unknown export format %q", raw)
	}
}

// Exporter streams export rows into a writer. Returns the number of
// pain points written.
type Exporter struct {
	reviews ports.ReviewRepository
}

func NewExporter(reviews ports.ReviewRepository) *Exporter {
	return &Exporter{reviews: reviews}
}

func (e *Exporter) Export(ctx context.Context, w io.Writer, format Format, category string) (int, error) {
	rows, err := e.reviews.ExportRows(ctx, category)
	if err != nil {
		return 0, errs.Wrap(err, "load export rows")
	}

	switch format {
	case FormatCSV:
		return len(rows), writeCSV(w, rows)
	case FormatJSON:
		return len(rows), writeJSON(w, rows)
	case FormatMarkdown:
		return len(rows), writeMarkdown(w, rows)
	default:
		return 0, fmt.Errorf("unknown export format %q", format)
	}
}

func writeCSV(w io.Writer, rows []ports.ExportRow) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{
		"category", "verbatim_quote", "emotional_intensity", "implied_need",
		"source", "product_title", "rating", "extracted_at",
	}); err != nil {
		return err
	}

	for _, row := range rows {
		rating := ""
		if row.Rating != nil {
			rating = fmt.Sprintf("%d", *row.Rating)
		}
		if err := cw.Write([]string{
			row.PainPoint.Category,
			row.PainPoint.VerbatimQuote,
			string(row.PainPoint.EmotionalIntensity),
			row.PainPoint.ImpliedNeed,
			string(row.Source),
			row.ProductTitle,
			rating,
			row.PainPoint.ExtractedAt,
		}); err != nil {
			return err
		}
	}

	cw.Flush()
	return cw.Error()
}

type jsonExportRecord struct {
	Category           string                    `json:"category"`
	VerbatimQuote      string                    `json:"verbatim_quote"`
	EmotionalIntensity review.EmotionalIntensity `json:"emotional_intensity"`
	ImpliedNeed        string                    `json:"implied_need"`
	Source             jsonExportSource          `json:"source"`
}

type jsonExportSource struct {
	Platform     review.Source `json:"platform"`
	ProductTitle string        `json:"product_title"`
	Rating       *int          `json:"rating"`
}

func writeJSON(w io.Writer, rows []ports.ExportRow) error {
	records := make([]jsonExportRecord, 0, len(rows))
	for _, row := range rows {
		records = append(records, jsonExportRecord{
			Category:           row.PainPoint.Category,
			VerbatimQuote:      row.PainPoint.VerbatimQuote,
			EmotionalIntensity: row.PainPoint.EmotionalIntensity,
			ImpliedNeed:        row.PainPoint.ImpliedNeed,
			Source: jsonExportSource{
				Platform:     row.Source,
				ProductTitle: row.ProductTitle,
				Rating:       row.Rating,
			},
		})
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(records)
}

func writeMarkdown(w io.Writer, rows []ports.ExportRow) error {
	byCategory := map[string][]ports.ExportRow{}
	intensity := map[review.EmotionalIntensity]int{}
	for _, row := range rows {
		byCategory[row.PainPoint.Category] = append(byCategory[row.PainPoint.Category], row)
		intensity[row.PainPoint.EmotionalIntensity]++
	}

	categories := make([]string, 0, len(byCategory))
	for cat := range byCategory {
		categories = append(categories, cat)
	}
	sort.Slice(categories, func(i, j int) bool {
		if len(byCategory[categories[i]]) != len(byCategory[categories[j]]) {
			return len(byCategory[categories[i]]) > len(byCategory[categories[j]])
		}
		return categories[i] < categories[j]
	})

	var b strings.Builder
	b.WriteString("# Pain Point Analysis Report\n\n")
	fmt.Fprintf(&b, "*Generated: %s*\n\n", time.Now().UTC().Format("2006-01-02 15:04"))

	b.WriteString("## Executive Summary\n\n")
	fmt.Fprintf(&b, "- **Total Pain Points:** %d\n", len(rows))
	fmt.Fprintf(&b, "- **Categories Identified:** %d\n", len(categories))
	fmt.Fprintf(&b, "- **High Intensity:** %d\n", intensity[review.IntensityHigh])
	fmt.Fprintf(&b, "- **Medium Intensity:** %d\n", intensity[review.IntensityMedium])
	fmt.Fprintf(&b, "- **Low Intensity:** %d\n\n", intensity[review.IntensityLow])

	b.WriteString("### Top Pain Point Categories\n\n")
	top := categories
	if len(top) > 5 {
		top = top[:5]
	}
	for i, cat := range top {
		pct := float64(len(byCategory[cat])) / float64(len(rows)) * 100
		fmt.Fprintf(&b, "%d. **%s** - %d instances (%.1f%%)\n", i+1, cat, len(byCategory[cat]), pct)
	}
	b.WriteString("\n---\n\n## Detailed Findings\n\n")

	for _, cat := range categories {
		items := byCategory[cat]
		fmt.Fprintf(&b, "### %s\n\n*%d pain points identified*\n\n", cat, len(items))

		for _, row := range items {
			fmt.Fprintf(&b, "> %q\n>\n", row.PainPoint.VerbatimQuote)
			attribution := fmt.Sprintf("> — *%s*", row.Source)
			if row.ProductTitle != "" {
				attribution += ", " + row.ProductTitle
			}
			if row.Rating != nil {
				attribution += fmt.Sprintf(", %d/5", *row.Rating)
			}
			b.WriteString(attribution + "\n\n")

			if row.PainPoint.ImpliedNeed != "" {
				fmt.Fprintf(&b, "**Implied Need:** %s\n\n", row.PainPoint.ImpliedNeed)
			}
			fmt.Fprintf(&b, "**Intensity:** %s\n\n---\n\n", row.PainPoint.EmotionalIntensity)
		}
	}

	_, err := io.WriteString(w, b.String())
	return err
}
