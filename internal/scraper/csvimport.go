package scraper

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"reviewminer/internal/domain/review"
	"reviewminer/internal/errs"
)

// ImportedReview is a file-sourced review. Unlike scraped reviews the
// source comes from the row itself, defaulting to manual.
type ImportedReview struct {
	Source review.Source
	RawReview
}

// ParseImportFile dispatches on the file extension.
func ParseImportFile(r io.Reader, filename string, defaultSource review.Source) ([]ImportedReview, error) {
	switch {
	case strings.HasSuffix(strings.ToLower(filename), ".csv"):
		return ParseCSV(r, defaultSource)
	case strings.HasSuffix(strings.ToLower(filename), ".json"):
		return ParseJSON(r, defaultSource)
	default:
		return nil, fmt.Errorf("unsupported import format %q, use .csv or .json", filename)
	}
}

// ParseCSV reads reviews from a header-keyed CSV. Only review_text is
// required; rows with an empty one are skipped, not rejected.
func ParseCSV(r io.Reader, defaultSource review.Source) ([]ImportedReview, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("file is empty or has no headers")
		}
		return nil, errs.Wrap(err, "read header")
	}

	col := map[string]int{}
	for i, name := range header {
		col[strings.TrimSpace(strings.ToLower(name))] = i
	}
	if _, ok := col["review_text"]; !ok {
		return nil, errors.New("missing required column review_text")
	}

	field := func(row []string, name string) string {
		i, ok := col[name]
		if !ok || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	var reviews []ImportedReview
	for {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, errs.Wrap(err, "read row")
		}

		text := field(row, "review_text")
		if text == "" {
			continue
		}

		reviews = append(reviews, ImportedReview{
			Source: importSource(field(row, "source"), defaultSource),
			RawReview: RawReview{
				SourceURL:    field(row, "source_url"),
				ProductTitle: field(row, "product_title"),
				ProductURL:   field(row, "product_url"),
				Author:       field(row, "author"),
				Rating:       importRating(field(row, "rating")),
				Text:         text,
				Date:         field(row, "review_date"),
			},
		})
	}
	return reviews, nil
}

type importRecord struct {
	Source       string   `json:"source"`
	SourceURL    string   `json:"source_url"`
	ProductTitle string   `json:"product_title"`
	ProductURL   string   `json:"product_url"`
	Author       string   `json:"author"`
	Rating       *float64 `json:"rating"`
	ReviewText   string   `json:"review_text"`
	ReviewDate   string   `json:"review_date"`
}

// ParseJSON reads reviews from a JSON array of objects.
func ParseJSON(r io.Reader, defaultSource review.Source) ([]ImportedReview, error) {
	var records []importRecord
	if err := json.NewDecoder(r).Decode(&records); err != nil {
		return nil, errs.Wrap(err, "file must contain an array of review objects")
	}

	var reviews []ImportedReview
	for _, rec := range records {
		text := strings.TrimSpace(rec.ReviewText)
		if text == "" {
			continue
		}

		var rating *int
		if rec.Rating != nil {
			n := int(math.Round(*rec.Rating))
			if n >= 1 && n <= 5 {
				rating = &n
			}
		}

		reviews = append(reviews, ImportedReview{
			Source: importSource(rec.Source, defaultSource),
			RawReview: RawReview{
				SourceURL:    rec.SourceURL,
				ProductTitle: rec.ProductTitle,
				ProductURL:   rec.ProductURL,
				Author:       rec.Author,
				Rating:       rating,
				Text:         text,
				Date:         rec.ReviewDate,
			},
		})
	}
	return reviews, nil
}

func importSource(raw string, fallback review.Source) review.Source {
	if s, err := review.ParseSource(raw); err == nil {
		return s
	}
	if fallback == "" {
		return review.SourceManual
	}
	return fallback
}

func importRating(raw string) *int {
	if raw == "" {
		return nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 || n > 5 {
		return nil
	}
	return &n
}
