package ingest

import (
	"context"
	"log/slog"

	"reviewminer/internal/bootstrap/logging"
	"reviewminer/internal/errs"
	"reviewminer/internal/ports"
	"reviewminer/internal/scraper"
)

type ImportResult struct {
	Total      int `json:"total"`
	Inserted   int `json:"inserted"`
	Duplicates int `json:"duplicates"`
}

// Importer persists file-sourced reviews through the same dedup gate
// as scraped ones.
type Importer struct {
	reviews ports.ReviewRepository
}

func NewImporter(reviews ports.ReviewRepository) *Importer {
	return &Importer{reviews: reviews}
}

func (im *Importer) Import(ctx context.Context, rows []scraper.ImportedReview) (ImportResult, error) {
	result := ImportResult{Total: len(rows)}

	for _, row := range rows {
		r := normalize(row.Source, row.RawReview)
		if r.ReviewText == "" {
			result.Total--
			continue
		}

		_, inserted, err := im.reviews.InsertReview(ctx, r)
		if err != nil {
			return result, errs.Wrap(err, "insert imported review")
		}
		if inserted {
			result.Inserted++
		} else {
			result.Duplicates++
		}
	}

	logging.Info(ctx, "import finished",
		slog.Int("total", result.Total),
		slog.Int("inserted", result.Inserted),
		slog.Int("duplicates", result.Duplicates))
	return result, nil
}
