package scraper

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"golang.org/x/oauth2/clientcredentials"

	"reviewminer/internal/bootstrap/logging"
	"reviewminer/internal/domain/review"
	"reviewminer/internal/errs"
	"reviewminer/internal/infrastructure/fetch"
)

const (
	redditAPIBaseURL = "https://oauth.reddit.com"
	redditTokenURL   = "https://www.reddit.com/api/v1/access_token"

	// Per-post comment cap keeps one popular thread from dominating
	// the whole run.
	redditMaxCommentsPerPost = 30
	redditMaxCommentDepth    = 3
)

type RedditOptions struct {
	ClientID     string
	ClientSecret string
	UserAgent    string
	Subreddits   []string
	PainKeywords []string
	BaseURL      string
	TokenURL     string
}

// RedditScraper searches book subreddits for complaint threads and
// treats posts and comments as ratingless reviews.
type RedditScraper struct {
	opts RedditOptions

	mu     sync.Mutex
	client *resty.Client
}

func NewRedditScraper(opts RedditOptions) *RedditScraper {
	if opts.BaseURL == "" {
		opts.BaseURL = redditAPIBaseURL
	}
	if opts.TokenURL == "" {
		opts.TokenURL = redditTokenURL
	}
	if opts.UserAgent == "" {
		opts.UserAgent = "reviewminer/1.0"
	}
	return &RedditScraper{opts: opts}
}

func (s *RedditScraper) Source() review.Source { return review.SourceReddit }

// WithSubreddits returns a scraper scoped to the given communities for
// one job, leaving the configured default untouched.
func (s *RedditScraper) WithSubreddits(subreddits []string) Scraper {
	if len(subreddits) == 0 {
		return s
	}
	opts := s.opts
	opts.Subreddits = subreddits
	return NewRedditScraper(opts)
}

// api lazily builds the OAuth-backed client. Missing credentials are a
// total source failure, not an item-level one.
func (s *RedditScraper) api(ctx context.Context) (*resty.Client, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.client != nil {
		return s.client, nil
	}
	if s.opts.ClientID == "" || s.opts.ClientSecret == "" {
		return nil, fmt.Errorf("%w: reddit credentials missing", ErrFatal)
	}

	conf := &clientcredentials.Config{
		ClientID:     s.opts.ClientID,
		ClientSecret: s.opts.ClientSecret,
		TokenURL:     s.opts.TokenURL,
	}

	client := resty.NewWithClient(conf.Client(context.WithoutCancel(ctx)))
	client.SetBaseURL(s.opts.BaseURL)
	client.SetHeader("user-agent", s.opts.UserAgent)
	client.SetTimeout(30 * time.Second)

	s.client = client
	return client, nil
}

// Search returns post ids. The query is fanned out with pain keywords
// so complaint threads rank, matching how low-star filters work on the
// retail sources.
func (s *RedditScraper) Search(ctx context.Context, query string, maxResults int) ([]string, error) {
	client, err := s.api(ctx)
	if err != nil {
		return nil, err
	}

	queries := []string{query}
	keywords := s.opts.PainKeywords
	if len(keywords) > 3 {
		keywords = keywords[:3]
	}
	for _, kw := range keywords {
		queries = append(queries, query+" "+kw)
	}

	// Without configured communities the search falls back to /r/all,
	// where restrict_sr must be off or Reddit returns nothing.
	subreddits := "all"
	restrictSr := "off"
	if len(s.opts.Subreddits) > 0 {
		subreddits = strings.Join(s.opts.Subreddits, "+")
		restrictSr = "on"
	}

	perQuery := maxResults / len(queries)
	if perQuery < 1 {
		perQuery = 25
	}

	var ids []string
	seen := map[string]bool{}
	for _, q := range queries {
		if maxResults > 0 && len(ids) >= maxResults {
			break
		}

		var listing redditListing
		resp, err := client.R().
			SetContext(ctx).
			SetQueryParams(map[string]string{
				"q":           q,
				"limit":       strconv.Itoa(perQuery),
				"sort":        "relevance",
				"restrict_sr": restrictSr,
				"type":        "link",
			}).
			SetResult(&listing).
			Get("/r/" + subreddits + "/search")
		if err != nil {
			return nil, errs.Wrapf(err, "search %q", q)
		}
		if err := redditStatusError(resp); err != nil {
			return nil, err
		}

		for _, child := range listing.Data.Children {
			if child.Data.ID == "" || seen[child.Data.ID] {
				continue
			}
			seen[child.Data.ID] = true
			ids = append(ids, child.Data.ID)
			if maxResults > 0 && len(ids) >= maxResults {
				break
			}
		}
	}

	logging.Info(ctx, "reddit search finished",
		slog.String("query", query),
		slog.Int("posts", len(ids)))
	return ids, nil
}

// ScrapeReviews fetches one post with its comment tree. Reddit has no
// star ratings, so every review passes the rating filter.
func (s *RedditScraper) ScrapeReviews(ctx context.Context, item string, maxReviews int, _ RatingFilter) ([]RawReview, error) {
	client, err := s.api(ctx)
	if err != nil {
		return nil, err
	}

	var thread []redditListing
	resp, err := client.R().
		SetContext(ctx).
		SetResult(&thread).
		Get("/comments/" + item)
	if err != nil {
		return nil, errs.Wrapf(err, "fetch post %s", item)
	}
	if err := redditStatusError(resp); err != nil {
		return nil, err
	}
	if len(thread) == 0 {
		return nil, nil
	}

	var reviews []RawReview

	var post redditThing
	if children := thread[0].Data.Children; len(children) > 0 {
		post = children[0].Data
	}
	if usableRedditText(post.SelfText) && post.Author != "" {
		reviews = append(reviews, redditReview(post.Title, post.Author, post.Permalink, post.SelfText, post.CreatedUTC))
	}

	if len(thread) > 1 {
		comments := collectRedditComments(thread[1].Data.Children, 0)
		if len(comments) > redditMaxCommentsPerPost {
			comments = comments[:redditMaxCommentsPerPost]
		}
		for _, c := range comments {
			if maxReviews > 0 && len(reviews) >= maxReviews {
				break
			}
			reviews = append(reviews, redditReview(post.Title, c.Author, c.Permalink, c.Body, c.CreatedUTC))
		}
	}

	if maxReviews > 0 && len(reviews) > maxReviews {
		reviews = reviews[:maxReviews]
	}
	return reviews, nil
}

func redditReview(title, author, permalink, text string, createdUTC float64) RawReview {
	var date string
	if createdUTC > 0 {
		date = time.Unix(int64(createdUTC), 0).UTC().Format("2006-01-02")
	}
	return RawReview{
		SourceURL:    "https://reddit.com" + permalink,
		ProductTitle: title,
		Author:       author,
		Rating:       nil,
		Text:         text,
		Date:         date,
	}
}

func collectRedditComments(children []redditChild, depth int) []redditThing {
	if depth >= redditMaxCommentDepth {
		return nil
	}

	var out []redditThing
	for _, child := range children {
		if child.Kind != "t1" {
			continue
		}
		data := child.Data
		if usableRedditText(data.Body) && !strings.EqualFold(data.Author, "automoderator") {
			out = append(out, data)
		}
		if len(data.Replies) > 0 && data.Replies[0] == '{' {
			var replies redditListing
			if err := json.Unmarshal(data.Replies, &replies); err == nil {
				out = append(out, collectRedditComments(replies.Data.Children, depth+1)...)
			}
		}
	}
	return out
}

func usableRedditText(text string) bool {
	if text == "[deleted]" || text == "[removed]" {
		return false
	}
	return len(text) >= minReviewChars
}

func redditStatusError(resp *resty.Response) error {
	status := resp.StatusCode()
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return fmt.Errorf("%w: reddit auth rejected (http %d)", ErrFatal, status)
	case status == http.StatusTooManyRequests:
		return &fetch.RateLimitError{}
	case status < 200 || status > 299:
		return fmt.Errorf("reddit http %d", status)
	}
	return nil
}

type redditListing struct {
	Data struct {
		Children []redditChild `json:"children"`
	} `json:"data"`
}

type redditChild struct {
	Kind string      `json:"kind"`
	Data redditThing `json:"data"`
}

type redditThing struct {
	ID         string          `json:"id"`
	Title      string          `json:"title"`
	Author     string          `json:"author"`
	SelfText   string          `json:"selftext"`
	Body       string          `json:"body"`
	Permalink  string          `json:"permalink"`
	CreatedUTC float64         `json:"created_utc"`
	Replies    json.RawMessage `json:"replies"`
}
