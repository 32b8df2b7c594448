package scraper

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"

	"reviewminer/internal/domain/review"
)

type stubScraper struct {
	items      []string
	searchErr  error
	scrapeErr  map[string]error
	reviews    map[string][]RawReview
	scrapeCnt  atomic.Int64
	lastFilter RatingFilter
}

func (s *stubScraper) Source() review.Source { return review.SourceGoodreads }

func (s *stubScraper) Search(_ context.Context, _ string, maxResults int) ([]string, error) {
	if s.searchErr != nil {
		return nil, s.searchErr
	}
	if maxResults > 0 && len(s.items) > maxResults {
		return s.items[:maxResults], nil
	}
	return s.items, nil
}

func (s *stubScraper) ScrapeReviews(_ context.Context, item string, _ int, filter RatingFilter) ([]RawReview, error) {
	s.scrapeCnt.Add(1)
	s.lastFilter = filter
	if err := s.scrapeErr[item]; err != nil {
		return nil, err
	}
	return s.reviews[item], nil
}

func TestScrapeFromSearchConcatenates(t *testing.T) {
	stub := &stubScraper{
		items: []string{"a", "b"},
		reviews: map[string][]RawReview{
			"a": {{Text: "r1"}, {Text: "r2"}},
			"b": {{Text: "r3"}},
		},
	}

	var got []string
	err := ScrapeFromSearch(context.Background(), stub, SearchOptions{Query: "q", MaxProducts: 10}, func(_ string, reviews []RawReview) error {
		for _, r := range reviews {
			got = append(got, r.Text)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("ScrapeFromSearch() error = %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("reviews = %v", got)
	}
}

func TestScrapeFromSearchSkipsFailedItems(t *testing.T) {
	stub := &stubScraper{
		items:     []string{"a", "broken", "c"},
		scrapeErr: map[string]error{"broken": errors.New("selector miss")},
		reviews: map[string][]RawReview{
			"a": {{Text: "r1"}},
			"c": {{Text: "r2"}},
		},
	}

	var count int
	err := ScrapeFromSearch(context.Background(), stub, SearchOptions{Query: "q"}, func(_ string, reviews []RawReview) error {
		count += len(reviews)
		return nil
	})
	if err != nil {
		t.Fatalf("ScrapeFromSearch() error = %v", err)
	}
	if count != 2 {
		t.Fatalf("reviews after skip = %d, want 2", count)
	}
}

func TestScrapeFromSearchAbortsOnFatal(t *testing.T) {
	fatal := fmt.Errorf("%w: auth rejected", ErrFatal)
	stub := &stubScraper{
		items:     []string{"a", "b", "c"},
		scrapeErr: map[string]error{"a": fatal},
	}

	err := ScrapeFromSearch(context.Background(), stub, SearchOptions{Query: "q"}, func(string, []RawReview) error {
		return nil
	})
	if !errors.Is(err, ErrFatal) {
		t.Fatalf("ScrapeFromSearch() error = %v, want ErrFatal", err)
	}
}

func TestScrapeFromSearchStopsWhenCallbackErrors(t *testing.T) {
	stop := errors.New("stop requested")
	stub := &stubScraper{
		items: []string{"a", "b", "c", "d"},
		reviews: map[string][]RawReview{
			"a": {{Text: "r"}}, "b": {{Text: "r"}}, "c": {{Text: "r"}}, "d": {{Text: "r"}},
		},
	}

	seen := 0
	err := ScrapeFromSearch(context.Background(), stub, SearchOptions{Query: "q"}, func(string, []RawReview) error {
		seen++
		if seen == 2 {
			return stop
		}
		return nil
	})
	if !errors.Is(err, stop) {
		t.Fatalf("ScrapeFromSearch() error = %v, want stop", err)
	}
	if seen != 2 {
		t.Fatalf("callback ran %d times, want 2", seen)
	}
}

func TestScrapeFromSearchConcurrent(t *testing.T) {
	stub := &stubScraper{
		items: []string{"a", "b", "c", "d", "e"},
		reviews: map[string][]RawReview{
			"a": {{Text: "1"}}, "b": {{Text: "2"}}, "c": {{Text: "3"}},
			"d": {{Text: "4"}}, "e": {{Text: "5"}},
		},
	}

	var count atomic.Int64
	err := ScrapeFromSearch(context.Background(), stub, SearchOptions{Query: "q", Concurrency: 3}, func(_ string, reviews []RawReview) error {
		count.Add(int64(len(reviews)))
		return nil
	})
	if err != nil {
		t.Fatalf("ScrapeFromSearch() error = %v", err)
	}
	if count.Load() != 5 {
		t.Fatalf("reviews = %d, want 5", count.Load())
	}
	if stub.scrapeCnt.Load() != 5 {
		t.Fatalf("scrape calls = %d, want 5", stub.scrapeCnt.Load())
	}
}

type scopableStubScraper struct {
	stubScraper
	scopedTo []string
}

func (s *scopableStubScraper) WithSubreddits(subreddits []string) Scraper {
	s.scopedTo = subreddits
	return s
}

func TestScrapeFromSearchScopesSubreddits(t *testing.T) {
	stub := &scopableStubScraper{stubScraper: stubScraper{
		items:   []string{"a"},
		reviews: map[string][]RawReview{"a": {{Text: "r"}}},
	}}

	err := ScrapeFromSearch(context.Background(), stub, SearchOptions{Query: "q", Subreddits: []string{"fantasy", "books"}}, func(string, []RawReview) error {
		return nil
	})
	if err != nil {
		t.Fatalf("ScrapeFromSearch() error = %v", err)
	}
	if len(stub.scopedTo) != 2 || stub.scopedTo[0] != "fantasy" {
		t.Fatalf("scoped to %v, want [fantasy books]", stub.scopedTo)
	}

	// Sources without communities ignore the option.
	plain := &stubScraper{items: []string{"a"}, reviews: map[string][]RawReview{"a": {{Text: "r"}}}}
	err = ScrapeFromSearch(context.Background(), plain, SearchOptions{Query: "q", Subreddits: []string{"fantasy"}}, func(string, []RawReview) error {
		return nil
	})
	if err != nil {
		t.Fatalf("ScrapeFromSearch() error = %v", err)
	}
}

func TestRatingFilterAccepts(t *testing.T) {
	two, four := 2, 4
	filter := RatingFilter{Min: 1, Max: 3}

	if !filter.Accepts(&two) {
		t.Fatal("2 should pass 1..3")
	}
	if filter.Accepts(&four) {
		t.Fatal("4 should not pass 1..3")
	}
	if !filter.Accepts(nil) {
		t.Fatal("ratingless reviews always pass")
	}
	if !(RatingFilter{}).Accepts(&four) {
		t.Fatal("zero filter accepts everything")
	}
}
