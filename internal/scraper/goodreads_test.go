package scraper

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-resty/resty/v2"
)

const goodreadsSearchHTML = `<html><body>
<a class="bookTitle" href="/book/show/123-deep-work">Deep Work</a>
<a class="bookTitle" href="/book/show/456-atomic-habits">Atomic Habits</a>
</body></html>`

const goodreadsBookHTML = `<html><body>
<h1 class="Text__title1">Deep Work</h1>
<div data-testid="reviewCard">
  <span data-testid="name">Carol</span>
  <span data-testid="rating" aria-label="Rating 2 out of 5"></span>
  <span data-testid="reviewDate">March 3, 2024</span>
  <section data-testid="contentContainer">Embedded review with enough length to pass the minimum character gate for real complaints.</section>
</div>
</body></html>`

func goodreadsRatingHTML(star int) string {
	if star != 2 {
		return `<html><body></body></html>`
	}
	return `<html><body>
<div data-testid="review">
  <span data-testid="name">Alice</span>
  <span data-testid="reviewDate">May 5, 2024</span>
  <section data-testid="contentContainer">The writing felt padded and repetitive, I kept waiting for practical advice that never arrived at all.</section>
</div>
</body></html>`
}

func newGoodreadsTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/search", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, goodreadsSearchHTML)
	})
	mux.HandleFunc("/book/show/123-deep-work", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, goodreadsBookHTML)
	})
	mux.HandleFunc("/book/reviews/123", func(w http.ResponseWriter, r *http.Request) {
		star := 0
		fmt.Sscanf(r.URL.Query().Get("rating"), "%d", &star)
		fmt.Fprint(w, goodreadsRatingHTML(star))
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func TestGoodreadsSearch(t *testing.T) {
	server := newGoodreadsTestServer(t)
	s := NewGoodreadsScraper(resty.New(), GoodreadsOptions{BaseURL: server.URL, MaxRetries: 1})

	urls, err := s.Search(context.Background(), "deep work", 1)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(urls) != 1 {
		t.Fatalf("urls = %v, want 1 (maxResults)", urls)
	}
	if urls[0] != server.URL+"/book/show/123-deep-work" {
		t.Fatalf("urls[0] = %q", urls[0])
	}
}

func TestGoodreadsScrapeReviews(t *testing.T) {
	server := newGoodreadsTestServer(t)
	s := NewGoodreadsScraper(resty.New(), GoodreadsOptions{BaseURL: server.URL, MaxRetries: 1})

	reviews, err := s.ScrapeReviews(context.Background(), server.URL+"/book/show/123-deep-work", 50, RatingFilter{Min: 1, Max: 3})
	if err != nil {
		t.Fatalf("ScrapeReviews() error = %v", err)
	}

	// One review from the rating=2 page plus the embedded book-page one.
	if len(reviews) != 2 {
		t.Fatalf("reviews = %d, want 2", len(reviews))
	}
	if reviews[0].Author != "Alice" || reviews[0].Rating == nil || *reviews[0].Rating != 2 {
		t.Fatalf("rating-page review = %+v", reviews[0])
	}
	if reviews[0].ProductTitle != "Deep Work" {
		t.Fatalf("title = %q", reviews[0].ProductTitle)
	}
	if reviews[1].Author != "Carol" {
		t.Fatalf("embedded review = %+v", reviews[1])
	}
}

func TestGoodreadsRejectsURLWithoutBookID(t *testing.T) {
	s := NewGoodreadsScraper(resty.New(), GoodreadsOptions{BaseURL: "http://gr.test", MaxRetries: 1})
	if _, err := s.ScrapeReviews(context.Background(), "http://gr.test/author/show/9", 10, RatingFilter{}); err == nil {
		t.Fatal("expected error for url without book id")
	}
}
