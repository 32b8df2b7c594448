package scraper

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-resty/resty/v2"

	"reviewminer/internal/bootstrap/logging"
	"reviewminer/internal/domain/review"
	"reviewminer/internal/errs"
	"reviewminer/internal/infrastructure/fetch"
	"reviewminer/internal/retry"
)

const libraryThingBaseURL = "https://www.librarything.com"

type LibraryThingOptions struct {
	BaseURL         string
	DelayMinSeconds float64
	DelayMaxSeconds float64
	MaxRetries      int
}

// LibraryThingScraper reads work pages and their /reviews subpage.
type LibraryThingScraper struct {
	client *resty.Client
	opts   LibraryThingOptions
}

func NewLibraryThingScraper(client *resty.Client, opts LibraryThingOptions) *LibraryThingScraper {
	if opts.BaseURL == "" {
		opts.BaseURL = libraryThingBaseURL
	}
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = 3
	}
	return &LibraryThingScraper{client: client, opts: opts}
}

func (s *LibraryThingScraper) Source() review.Source { return review.SourceLibraryThing }

func (s *LibraryThingScraper) Search(ctx context.Context, query string, maxResults int) ([]string, error) {
	searchURL := fmt.Sprintf("%s/search.php?search=%s&searchtype=newwork_titles", s.opts.BaseURL, url.QueryEscape(query))

	doc, err := s.fetchPage(ctx, searchURL)
	if err != nil {
		return nil, errs.Wrap(err, "load search results")
	}

	var works []string
	seen := map[string]bool{}
	doc.Find("a[href*='/work/']").EachWithBreak(func(_ int, link *goquery.Selection) bool {
		if maxResults > 0 && len(works) >= maxResults {
			return false
		}
		href, ok := link.Attr("href")
		if !ok || seen[href] {
			return true
		}
		seen[href] = true
		works = append(works, resolveURL(s.opts.BaseURL, href))
		return true
	})

	logging.Info(ctx, "librarything search finished",
		slog.String("query", query),
		slog.Int("works", len(works)))
	return works, nil
}

func (s *LibraryThingScraper) ScrapeReviews(ctx context.Context, item string, maxReviews int, filter RatingFilter) ([]RawReview, error) {
	workURL := strings.TrimSuffix(strings.TrimSuffix(item, "/reviews"), "/")
	reviewsURL := workURL + "/reviews"

	if err := fetch.Delay(ctx, s.opts.DelayMinSeconds, s.opts.DelayMaxSeconds); err != nil {
		return nil, err
	}
	workDoc, err := s.fetchPage(ctx, workURL)
	if err != nil {
		return nil, errs.Wrap(err, "load work page")
	}
	title := libraryThingTitle(workDoc)

	if err := fetch.Delay(ctx, s.opts.DelayMinSeconds, s.opts.DelayMaxSeconds); err != nil {
		return nil, err
	}
	doc, err := s.fetchPage(ctx, reviewsURL)
	if err != nil {
		return nil, errs.Wrap(err, "load reviews page")
	}

	cards := doc.Find(".bookReview")
	if cards.Length() == 0 {
		cards = doc.Find(".review")
	}

	var reviews []RawReview
	cards.EachWithBreak(func(_ int, card *goquery.Selection) bool {
		if maxReviews > 0 && len(reviews) >= maxReviews {
			return false
		}

		text := libraryThingReviewText(card)
		if len(text) < minReviewChars {
			return true
		}

		rating := libraryThingRating(card)
		if !filter.Accepts(rating) {
			return true
		}

		reviews = append(reviews, RawReview{
			SourceURL:    reviewsURL,
			ProductTitle: title,
			ProductURL:   workURL,
			Author:       libraryThingAuthor(card),
			Rating:       rating,
			Text:         text,
			Date:         libraryThingDate(card),
		})
		return true
	})

	return reviews, nil
}

func libraryThingTitle(doc *goquery.Document) string {
	for _, sel := range []string{"h1.headsummary", ".headsummary", "h1"} {
		if title := strings.TrimSpace(doc.Find(sel).First().Text()); title != "" {
			return title
		}
	}
	return "Unknown Book"
}

func libraryThingReviewText(card *goquery.Selection) string {
	for _, sel := range []string{".reviewText", ".bookReviewBody", "p"} {
		if text := strings.TrimSpace(card.Find(sel).First().Text()); text != "" {
			return text
		}
	}
	return ""
}

func libraryThingAuthor(card *goquery.Selection) string {
	for _, sel := range []string{".reviewer", "a[href*='/profile/']"} {
		if author := strings.TrimSpace(card.Find(sel).First().Text()); author != "" {
			return author
		}
	}
	return ""
}

func libraryThingRating(card *goquery.Selection) *int {
	// Half-star ratings round to the nearest whole star.
	if title, ok := card.Find(".stars").First().Attr("title"); ok {
		if m := starValuePattern.FindStringSubmatch(title); m != nil {
			if f, err := strconv.ParseFloat(m[1], 64); err == nil {
				n := int(math.Round(f))
				return &n
			}
		}
	}
	if text := card.Find(".rating").First().Text(); text != "" {
		if m := singleDigitPattern.FindStringSubmatch(text); m != nil {
			n, _ := strconv.Atoi(m[1])
			return &n
		}
	}
	return nil
}

func libraryThingDate(card *goquery.Selection) string {
	for _, sel := range []string{".reviewDate", ".date"} {
		if date := strings.TrimSpace(card.Find(sel).First().Text()); date != "" {
			return date
		}
	}
	return ""
}

func (s *LibraryThingScraper) fetchPage(ctx context.Context, pageURL string) (*goquery.Document, error) {
	var doc *goquery.Document
	err := retry.Do(ctx, retry.Config{
		MaxAttempts: s.opts.MaxRetries,
		InitialWait: 2 * time.Second,
		MaxWait:     10 * time.Second,
		Retryable:   transientFetch,
	}, func(ctx context.Context) error {
		html, err := fetch.GetHTML(ctx, s.client, pageURL)
		if err != nil {
			return err
		}
		d, err := goquery.NewDocumentFromReader(strings.NewReader(html))
		if err != nil {
			return err
		}
		doc = d
		return nil
	})
	return doc, err
}
