package ingest

import (
	"strings"

	"reviewminer/internal/domain/review"
	"reviewminer/internal/scraper"
)

// normalize shapes one raw scraped review for storage. Ratings outside
// 1..5 become nil rather than rejecting the review.
func normalize(source review.Source, raw scraper.RawReview) review.Review {
	var rating *int
	if raw.Rating != nil && *raw.Rating >= 1 && *raw.Rating <= 5 {
		r := *raw.Rating
		rating = &r
	}

	return review.Review{
		Source:       source,
		SourceURL:    strings.TrimSpace(raw.SourceURL),
		ProductTitle: strings.TrimSpace(raw.ProductTitle),
		ProductURL:   strings.TrimSpace(raw.ProductURL),
		Author:       strings.TrimSpace(raw.Author),
		Rating:       rating,
		ReviewText:   strings.TrimSpace(raw.Text),
		ReviewDate:   strings.TrimSpace(raw.Date),
	}
}
