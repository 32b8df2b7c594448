package scraper

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/PuerkitoBio/goquery"

	"reviewminer/internal/bootstrap/logging"
	"reviewminer/internal/domain/review"
	"reviewminer/internal/errs"
	"reviewminer/internal/infrastructure/fetch"
	"reviewminer/internal/retry"
)

// Reviews shorter than this are noise ("Great book!") and are skipped
// by every adapter.
const minReviewChars = 50

const amazonBaseURL = "https://www.amazon.com"

var asinPatterns = []*regexp.Regexp{
	regexp.MustCompile(`/dp/([A-Z0-9]{10})`),
	regexp.MustCompile(`/product/([A-Z0-9]{10})`),
	regexp.MustCompile(`/gp/product/([A-Z0-9]{10})`),
}

var (
	amazonDatePattern = regexp.MustCompile(`on (.+)$`)
	starValuePattern  = regexp.MustCompile(`(\d+(?:\.\d+)?)`)
)

type AmazonOptions struct {
	BaseURL         string
	DelayMinSeconds float64
	DelayMaxSeconds float64
	// Product delays pace consecutive product visits, much longer than
	// the per-page delays within one product.
	ProductDelayMinSeconds float64
	ProductDelayMaxSeconds float64
	MaxRetries             int
}

// AmazonScraper walks Amazon search and per-star review pages through a
// rendering browser; the static pages are bot-walled.
type AmazonScraper struct {
	renderer fetch.Renderer
	opts     AmazonOptions

	// visited flips on the first product so only products after the
	// first pay the inter-product delay.
	visited atomic.Bool
}

func NewAmazonScraper(renderer fetch.Renderer, opts AmazonOptions) *AmazonScraper {
	if opts.BaseURL == "" {
		opts.BaseURL = amazonBaseURL
	}
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = 3
	}
	return &AmazonScraper{renderer: renderer, opts: opts}
}

func (s *AmazonScraper) Source() review.Source { return review.SourceAmazon }

func (s *AmazonScraper) Search(ctx context.Context, query string, maxResults int) ([]string, error) {
	searchURL := fmt.Sprintf("%s/s?k=%s&i=stripbooks", s.opts.BaseURL, url.QueryEscape(query))

	doc, err := s.renderPage(ctx, searchURL)
	if err != nil {
		return nil, errs.Wrap(err, "load search results")
	}

	var products []string
	doc.Find(".s-result-item[data-asin]").EachWithBreak(func(_ int, item *goquery.Selection) bool {
		if maxResults > 0 && len(products) >= maxResults {
			return false
		}
		href, ok := item.Find("h2 a.a-link-normal").First().Attr("href")
		if !ok {
			return true
		}
		full := resolveURL(s.opts.BaseURL, href)
		if strings.Contains(full, "/dp/") {
			products = append(products, strings.SplitN(full, "?", 2)[0])
		}
		return true
	})

	logging.Info(ctx, "amazon search finished",
		slog.String("query", query),
		slog.Int("products", len(products)))
	return products, nil
}

func (s *AmazonScraper) ScrapeReviews(ctx context.Context, item string, maxReviews int, filter RatingFilter) ([]RawReview, error) {
	asin := extractASIN(item)
	if asin == "" {
		return nil, fmt.Errorf("no asin in url %s", item)
	}

	if s.visited.Swap(true) {
		if err := fetch.Delay(ctx, s.opts.ProductDelayMinSeconds, s.opts.ProductDelayMaxSeconds); err != nil {
			return nil, err
		}
	}

	productURL := s.opts.BaseURL + "/dp/" + asin

	doc, err := s.renderPage(ctx, productURL)
	if err != nil {
		return nil, errs.Wrap(err, "load product page")
	}
	title := strings.TrimSpace(doc.Find("#productTitle").First().Text())
	if title == "" {
		title = "Unknown Product"
	}

	// Amazon exposes reviews per star page, so the filter drives which
	// pages get visited at all.
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

		for page := 1; ; page++ {
			if maxReviews > 0 && len(reviews) >= maxReviews {
				break
			}

			pageURL := fmt.Sprintf("%s/product-reviews/%s?filterByStar=%s&reviewerType=all_reviews&pageNumber=%d",
				s.opts.BaseURL, asin, starFilter(star), page)

			doc, err := s.renderPage(ctx, pageURL)
			if err != nil {
				if ctx.Err() != nil {
					return reviews, ctx.Err()
				}
				logging.Warn(ctx, "review page failed",
					slog.Int("star", star),
					slog.Int("page", page),
					slog.Any("err", errs.Loggable(err)))
				break
			}

			cards := doc.Find("[data-hook='review']")
			if cards.Length() == 0 {
				break
			}

			cards.EachWithBreak(func(_ int, card *goquery.Selection) bool {
				if maxReviews > 0 && len(reviews) >= maxReviews {
					return false
				}
				if r, ok := extractAmazonReview(card, title, productURL, star); ok {
					reviews = append(reviews, r)
				}
				return true
			})

			if doc.Find(".a-pagination .a-last a").Length() == 0 {
				break
			}
			if err := fetch.Delay(ctx, s.opts.DelayMinSeconds, s.opts.DelayMaxSeconds); err != nil {
				return reviews, err
			}
		}
	}

	return reviews, nil
}

// renderPage loads a page with retry and turns Amazon's CAPTCHA wall
// into a rate-limit error so the retry waits before trying again.
func (s *AmazonScraper) renderPage(ctx context.Context, pageURL string) (*goquery.Document, error) {
	var doc *goquery.Document
	err := retry.Do(ctx, retry.Config{
		MaxAttempts: s.opts.MaxRetries,
		InitialWait: 5 * time.Second,
		MaxWait:     30 * time.Second,
		Retryable: func(err error) bool {
			var rl *fetch.RateLimitError
			return errors.As(err, &rl) || errors.Is(err, fetch.ErrRenderTimeout)
		},
	}, func(ctx context.Context) error {
		html, err := s.renderer.Render(ctx, pageURL)
		if err != nil {
			return err
		}
		d, err := goquery.NewDocumentFromReader(strings.NewReader(html))
		if err != nil {
			return err
		}
		if d.Find("#captchacharacters").Length() > 0 {
			return &fetch.RateLimitError{}
		}
		doc = d
		return nil
	})
	if err != nil {
		return nil, err
	}

	if err := fetch.Delay(ctx, s.opts.DelayMinSeconds, s.opts.DelayMaxSeconds); err != nil {
		return nil, err
	}
	return doc, nil
}

func extractAmazonReview(card *goquery.Selection, productTitle, productURL string, expectedStar int) (RawReview, bool) {
	text := strings.TrimSpace(card.Find("[data-hook='review-body'] span").First().Text())
	if len(text) < minReviewChars {
		return RawReview{}, false
	}

	rating := expectedStar
	ratingText := card.Find("[data-hook='review-star-rating'] span, [data-hook='cmps-review-star-rating'] span").First().Text()
	if m := starValuePattern.FindStringSubmatch(ratingText); m != nil {
		if f, err := strconv.ParseFloat(m[1], 64); err == nil {
			rating = int(f)
		}
	}

	var date string
	if dateText := strings.TrimSpace(card.Find("[data-hook='review-date']").First().Text()); dateText != "" {
		// "Reviewed in the United States on January 1, 2024"
		if m := amazonDatePattern.FindStringSubmatch(dateText); m != nil {
			date = strings.TrimSpace(m[1])
		}
	}

	return RawReview{
		SourceURL:    productURL,
		ProductTitle: productTitle,
		ProductURL:   productURL,
		Author:       strings.TrimSpace(card.Find(".a-profile-name").First().Text()),
		Rating:       &rating,
		Text:         text,
		Date:         date,
	}, true
}

func extractASIN(raw string) string {
	for _, p := range asinPatterns {
		if m := p.FindStringSubmatch(raw); m != nil {
			return m[1]
		}
	}
	return ""
}

func starFilter(stars int) string {
	switch stars {
	case 1:
		return "one_star"
	case 2:
		return "two_star"
	case 4:
		return "four_star"
	case 5:
		return "five_star"
	default:
		return "three_star"
	}
}

func resolveURL(base, href string) string {
	baseURL, err := url.Parse(base)
	if err != nil {
		return href
	}
	ref, err := url.Parse(href)
	if err != nil {
		return href
	}
	return baseURL.ResolveReference(ref).String()
}
