// Package review holds the core entities of the pipeline: scraped
// reviews, the pain points extracted from them, and the jobs that
// track scraping runs.
package review

import (
	"fmt"
	"strings"
)

// Source identifies where a review was scraped or imported from.
type Source string

const (
	SourceAmazon       Source = "amazon"
	SourceGoodreads    Source = "goodreads"
	SourceReddit       Source = "reddit"
	SourceLibraryThing Source = "librarything"
	SourceManual       Source = "manual"
)

func ParseSource(raw string) (Source, error) {
	switch s := Source(strings.ToLower(strings.TrimSpace(raw))); s {
	case SourceAmazon, SourceGoodreads, SourceReddit, SourceLibraryThing, SourceManual:
		return s, nil
	default:
		return "", fmt.Errorf("unknown source %q", raw)
	}
}

// EmotionalIntensity grades how strongly a pain point is expressed.
type EmotionalIntensity string

const (
	IntensityLow    EmotionalIntensity = "low"
	IntensityMedium EmotionalIntensity = "medium"
	IntensityHigh   EmotionalIntensity = "high"
)

// NormalizeIntensity maps free-form model output onto the three-level
// scale. Anything unrecognized falls back to medium; the second return
// reports whether the input was valid as-is.
func NormalizeIntensity(raw string) (EmotionalIntensity, bool) {
	switch e := EmotionalIntensity(strings.ToLower(strings.TrimSpace(raw))); e {
	case IntensityLow, IntensityMedium, IntensityHigh:
		return e, true
	default:
		return IntensityMedium, false
	}
}

// JobStatus is the scrape-job state machine: pending -> running ->
// completed | failed. Terminal states never transition again.
type JobStatus string

const (
	JobPending   JobStatus = "pending"
	JobRunning   JobStatus = "running"
	JobCompleted JobStatus = "completed"
	JobFailed    JobStatus = "failed"
)

func (s JobStatus) Terminal() bool {
	return s == JobCompleted || s == JobFailed
}

// CanTransitionTo enforces monotonic status transitions.
func (s JobStatus) CanTransitionTo(next JobStatus) bool {
	switch s {
	case JobPending:
		return next == JobRunning || next == JobFailed
	case JobRunning:
		return next == JobCompleted || next == JobFailed
	default:
		return false
	}
}

// Review is one scraped or imported customer review.
//
// The triple (Source, SourceURL, ReviewText) is the dedup key: two
// scrape passes over the same product must not create duplicate rows.
// SourceURL is empty when the source has no per-review URL.
type Review struct {
	ID           uint64
	Source       Source
	SourceURL    string
	ProductTitle string
	ProductURL   string
	Author       string
	Rating       *int // 1..5, nil when the source has no ratings
	ReviewText   string
	ReviewDate   string // source-provided, format not validated
	ScrapedAt    string
	Processed    bool
}

// PainPoint is one extracted complaint, derived from exactly one review.
type PainPoint struct {
	ID                 uint64
	ReviewID           uint64
	Category           string
	VerbatimQuote      string
	EmotionalIntensity EmotionalIntensity
	ImpliedNeed        string
	ExtractedAt        string
}

// ScrapeJob tracks one source-scraping invocation.
type ScrapeJob struct {
	ID           uint64
	Source       Source
	Query        string
	Status       JobStatus
	ReviewsFound int
	StartedAt    string
	CompletedAt  string
	ErrorMessage string
}
