package scraper

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/url"
	"regexp"
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

const goodreadsBaseURL = "https://www.goodreads.com"

var (
	goodreadsBookIDPattern = regexp.MustCompile(`/book/show/(\d+)`)
	singleDigitPattern     = regexp.MustCompile(`(\d)`)
)

type GoodreadsOptions struct {
	BaseURL         string
	DelayMinSeconds float64
	DelayMaxSeconds float64
	MaxRetries      int
}

// GoodreadsScraper pulls reviews from the server-rendered Goodreads
// pages, hitting the per-rating review endpoint so low-star reviews
// can be targeted directly.
type GoodreadsScraper struct {
	client *resty.Client
	opts   GoodreadsOptions
}

func NewGoodreadsScraper(client *resty.Client, opts GoodreadsOptions) *GoodreadsScraper {
	if opts.BaseURL == "" {
		opts.BaseURL = goodreadsBaseURL
	}
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = 3
	}
	return &GoodreadsScraper{client: client, opts: opts}
}

func (s *GoodreadsScraper) Source() review.Source { return review.SourceGoodreads }

func (s *GoodreadsScraper) Search(ctx context.Context, query string, maxResults int) ([]string, error) {
	searchURL := fmt.Sprintf("%s/search?q=%s&search_type=books", s.opts.BaseURL, url.QueryEscape(query))

	doc, err := s.fetchPage(ctx, searchURL)
	if err != nil {
		return nil, errs.Wrap(err, "load search results")
	}

	var books []string
	doc.Find("a.bookTitle").EachWithBreak(func(_ int, link *goquery.Selection) bool {
		if maxResults > 0 && len(books) >= maxResults {
			return false
		}
		if href, ok := link.Attr("href"); ok {
			books = append(books, resolveURL(s.opts.BaseURL, href))
		}
		return true
	})

	logging.Info(ctx, "goodreads search finished",
		slog.String("query", query),
		slog.Int("books", len(books)))
	return books, nil
}

func (s *GoodreadsScraper) ScrapeReviews(ctx context.Context, item string, maxReviews int, filter RatingFilter) ([]RawReview, error) {
	bookID := goodreadsBookID(item)
	if bookID == "" {
		return nil, fmt.Errorf("no book id in url %s", item)
	}

	doc, err := s.fetchPage(ctx, item)
	if err != nil {
		return nil, errs.Wrap(err, "load book page")
	}
	title := goodreadsBookTitle(doc)

	minStar, maxStar := filter.Min, filter.Max
	if minStar <= 0 {
		minStar = 1
	}
	if maxStar <= 0 {
		maxStar = 5
	}

	var reviews []RawReview
	for star := minStar; star <= maxStar; star++ {
		if maxReviews > 0 && len(reviews) >= maxReviews {
			break
		}

		reviewsURL := fmt.Sprintf("%s/book/reviews/%s?rating=%d", s.opts.BaseURL, bookID, star)
		if err := fetch.Delay(ctx, s.opts.DelayMinSeconds, s.opts.DelayMaxSeconds); err != nil {
			return reviews, err
		}

		pageDoc, err := s.fetchPage(ctx, reviewsURL)
		if err != nil {
			if ctx.Err() != nil {
				return reviews, ctx.Err()
			}
			logging.Warn(ctx, "rating page failed",
				slog.Int("star", star),
				slog.Any("err", errs.Loggable(err)))
			continue
		}

		star := star
		reviews = appendGoodreadsReviews(reviews, pageDoc, title, item, &star, filter, maxReviews)
	}

	// The main book page embeds a handful of reviews too.
	reviews = appendGoodreadsReviews(reviews, doc, title, item, nil, filter, maxReviews)

	return reviews, nil
}

func appendGoodreadsReviews(reviews []RawReview, doc *goquery.Document, title, bookURL string, knownRating *int, filter RatingFilter, maxReviews int) []RawReview {
	cards := doc.Find("[data-testid='review'], [data-testid='reviewCard']")
	if cards.Length() == 0 {
		cards = doc.Find(".review, .ReviewCard")
	}

	cards.EachWithBreak(func(_ int, card *goquery.Selection) bool {
		if maxReviews > 0 && len(reviews) >= maxReviews {
			return false
		}

		text := goodreadsReviewText(card)
		if len(text) < minReviewChars {
			return true
		}

		rating := knownRating
		if rating == nil {
			rating = goodreadsRating(card)
		}
		if !filter.Accepts(rating) {
			return true
		}

		for _, existing := range reviews {
			if existing.Text == text {
				return true
			}
		}

		reviews = append(reviews, RawReview{
			SourceURL:    bookURL,
			ProductTitle: title,
			ProductURL:   bookURL,
			Author:       goodreadsAuthor(card),
			Rating:       rating,
			Text:         text,
			Date:         goodreadsDate(card),
		})
		return true
	})

	return reviews
}

func goodreadsBookID(raw string) string {
	if m := goodreadsBookIDPattern.FindStringSubmatch(raw); m != nil {
		return m[1]
	}
	return ""
}

func goodreadsBookTitle(doc *goquery.Document) string {
	for _, sel := range []string{"h1.Text__title1", "[data-testid='bookTitle']", "#bookTitle"} {
		if title := strings.TrimSpace(doc.Find(sel).First().Text()); title != "" {
			return title
		}
	}
	return "Unknown Book"
}

func goodreadsReviewText(card *goquery.Selection) string {
	for _, sel := range []string{"[data-testid='contentContainer']", ".ReviewText__content", ".reviewText span", ".reviewText"} {
		if text := strings.TrimSpace(card.Find(sel).First().Text()); text != "" {
			return text
		}
	}
	return ""
}

func goodreadsAuthor(card *goquery.Selection) string {
	for _, sel := range []string{"[data-testid='name']", ".user"} {
		if author := strings.TrimSpace(card.Find(sel).First().Text()); author != "" {
			return author
		}
	}
	return ""
}

func goodreadsRating(card *goquery.Selection) *int {
	if label, ok := card.Find("[data-testid='rating']").First().Attr("aria-label"); ok {
		if m := singleDigitPattern.FindStringSubmatch(label); m != nil {
			n, _ := strconv.Atoi(m[1])
			return &n
		}
	}
	if filled := card.Find(".RatingStar__filledStar").Length(); filled > 0 {
		return &filled
	}
	return nil
}

func goodreadsDate(card *goquery.Selection) string {
	for _, sel := range []string{"[data-testid='reviewDate']", ".reviewDate"} {
		if date := strings.TrimSpace(card.Find(sel).First().Text()); date != "" {
			return date
		}
	}
	return ""
}

// fetchPage retries transient failures: rate limits, 5xx and network
// timeouts. 4xx is permanent.
func (s *GoodreadsScraper) fetchPage(ctx context.Context, pageURL string) (*goquery.Document, error) {
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

func transientFetch(err error) bool {
	var rl *fetch.RateLimitError
	if errors.As(err, &rl) {
		return true
	}
	var httpErr *fetch.HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.StatusCode >= 500
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return netErr.Timeout()
	}
	return false
}
