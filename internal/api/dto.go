package api

import (
	"reviewminer/internal/domain/review"
)

type reviewJSON struct {
	ID           uint64 `json:"id"`
	Source       string `json:"source"`
	SourceURL    string `json:"source_url,omitempty"`
	ProductTitle string `json:"product_title,omitempty"`
	ProductURL   string `json:"product_url,omitempty"`
	Author       string `json:"author,omitempty"`
	Rating       *int   `json:"rating"`
	ReviewText   string `json:"review_text"`
	ReviewDate   string `json:"review_date,omitempty"`
	ScrapedAt    string `json:"scraped_at"`
	Processed    bool   `json:"processed"`
}

type painPointJSON struct {
	ID                 uint64 `json:"id"`
	ReviewID           uint64 `json:"review_id"`
	Category           string `json:"category"`
	VerbatimQuote      string `json:"verbatim_quote"`
	EmotionalIntensity string `json:"emotional_intensity"`
	ImpliedNeed        string `json:"implied_need,omitempty"`
	ExtractedAt        string `json:"extracted_at"`
}

type jobJSON struct {
	ID           uint64 `json:"id"`
	Source       string `json:"source"`
	Query        string `json:"query"`
	Status       string `json:"status"`
	ReviewsFound int    `json:"reviews_found"`
	StartedAt    string `json:"started_at,omitempty"`
	CompletedAt  string `json:"completed_at,omitempty"`
	ErrorMessage string `json:"error_message,omitempty"`
}

func toReviewJSON(r review.Review) reviewJSON {
	return reviewJSON{
		ID:           r.ID,
		Source:       string(r.Source),
		SourceURL:    r.SourceURL,
		ProductTitle: r.ProductTitle,
		ProductURL:   r.ProductURL,
		Author:       r.Author,
		Rating:       r.Rating,
		ReviewText:   r.ReviewText,
		ReviewDate:   r.ReviewDate,
		ScrapedAt:    r.ScrapedAt,
		Processed:    r.Processed,
	}
}

func toReviewListJSON(reviews []review.Review) []reviewJSON {
	out := make([]reviewJSON, 0, len(reviews))
	for _, r := range reviews {
		out = append(out, toReviewJSON(r))
	}
	return out
}

func toPainPointJSON(p review.PainPoint) painPointJSON {
	return painPointJSON{
		ID:                 p.ID,
		ReviewID:           p.ReviewID,
		Category:           p.Category,
		VerbatimQuote:      p.VerbatimQuote,
		EmotionalIntensity: string(p.EmotionalIntensity),
		ImpliedNeed:        p.ImpliedNeed,
		ExtractedAt:        p.ExtractedAt,
	}
}

func toPainPointListJSON(points []review.PainPoint) []painPointJSON {
	out := make([]painPointJSON, 0, len(points))
	for _, p := range points {
		out = append(out, toPainPointJSON(p))
	}
	return out
}

func toJobJSON(j review.ScrapeJob) jobJSON {
	return jobJSON{
		ID:           j.ID,
		Source:       string(j.Source),
		Query:        j.Query,
		Status:       string(j.Status),
		ReviewsFound: j.ReviewsFound,
		StartedAt:    j.StartedAt,
		CompletedAt:  j.CompletedAt,
		ErrorMessage: j.ErrorMessage,
	}
}

func toJobListJSON(jobs []review.ScrapeJob) []jobJSON {
	out := make([]jobJSON, 0, len(jobs))
	for _, j := range jobs {
		out = append(out, toJobJSON(j))
	}
	return out
}
