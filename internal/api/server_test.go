package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	gormsqlite "github.com/glebarez/sqlite"
	"github.com/gorilla/websocket"
	"gorm.io/gorm"

	"reviewminer/internal/bootstrap/config"
	"reviewminer/internal/domain/review"
	"reviewminer/internal/infrastructure/events"
	"reviewminer/internal/infrastructure/persistence/sqlite/model"
	"reviewminer/internal/infrastructure/persistence/sqlite/repository"
	"reviewminer/internal/ports"
	"reviewminer/internal/scraper"
	"reviewminer/internal/usecase/analysis"
	"reviewminer/internal/usecase/export"
	"reviewminer/internal/usecase/ingest"
)

type fakeScraper struct {
	source     review.Source
	items      []string
	reviews    map[string][]scraper.RawReview
	subreddits []string
}

func (f *fakeScraper) WithSubreddits(subreddits []string) scraper.Scraper {
	f.subreddits = subreddits
	return f
}

func (f *fakeScraper) Source() review.Source { return f.source }

func (f *fakeScraper) Search(_ context.Context, _ string, maxResults int) ([]string, error) {
	if maxResults > 0 && maxResults < len(f.items) {
		return f.items[:maxResults], nil
	}
	return f.items, nil
}

func (f *fakeScraper) ScrapeReviews(_ context.Context, item string, _ int, _ scraper.RatingFilter) ([]scraper.RawReview, error) {
	return f.reviews[item], nil
}

type stubLLM struct {
	response string
}

func (s *stubLLM) Complete(context.Context, string, string) (string, error) {
	return s.response, nil
}

type serverFixture struct {
	server  *Server
	reviews *repository.ReviewRepository
	jobs    *repository.JobRepository
	hub     *events.Hub
	scraper *fakeScraper
}

func setupServer(t *testing.T) *serverFixture {
	t.Helper()

	dsn := filepath.Join(t.TempDir(), "review_miner.db")
	db, err := gorm.Open(gormsqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("get sql db: %v", err)
	}
	t.Cleanup(func() {
		_ = sqlDB.Close()
	})
	if err := db.AutoMigrate(&model.Review{}, &model.PainPoint{}, &model.ScrapeJob{}); err != nil {
		t.Fatalf("auto migrate: %v", err)
	}

	reviews := repository.NewReviewRepository(db)
	jobs := repository.NewJobRepository(db)
	hub := events.NewHub()

	cfg := config.Config{}
	cfg.Scraping.DefaultMaxProducts = 10
	cfg.Scraping.DefaultMaxReviews = 100
	cfg.Scraping.Concurrency = 1

	fs := &fakeScraper{
		source: review.SourceGoodreads,
		items:  []string{"https://www.goodreads.com/book/show/123"},
		reviews: map[string][]scraper.RawReview{
			"https://www.goodreads.com/book/show/123": {
				{SourceURL: "https://www.goodreads.com/review/1", ProductTitle: "Deep Work", Text: "the exercises were too vague to apply"},
				{SourceURL: "https://www.goodreads.com/review/2", ProductTitle: "Deep Work", Text: "expected more depth from this one"},
			},
		},
	}

	llm := &stubLLM{
		response: `[{"review_number": 1, "pain_point_category": "Too theoretical", "verbatim_quote": "too vague to apply", "emotional_intensity": "high", "implied_need": "concrete exercises"}]`,
	}

	srv := NewServer(
		context.Background(),
		cfg,
		reviews,
		jobs,
		hub,
		scraper.NewRegistry(fs),
		ingest.NewOrchestrator(reviews, jobs, hub),
		ingest.NewImporter(reviews),
		export.NewExporter(reviews),
		analysis.NewEngine(reviews, llm, config.AnalysisConfig{BatchSize: 20}),
	)
	return &serverFixture{server: srv, reviews: reviews, jobs: jobs, hub: hub, scraper: fs}
}

func doRequest(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), v); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestHealth(t *testing.T) {
	f := setupServer(t)

	rec := doRequest(t, f.server.Handler(), http.MethodGet, "/api/health", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestReviewEndpoints(t *testing.T) {
	f := setupServer(t)
	h := f.server.Handler()
	ctx := context.Background()

	rating := 2
	id1, _, err := f.reviews.InsertReview(ctx, review.Review{
		Source:     review.SourceAmazon,
		SourceURL:  "https://www.amazon.com/review/1",
		Rating:     &rating,
		ReviewText: "too repetitive",
	})
	if err != nil {
		t.Fatalf("insert review 1: %v", err)
	}
	id2, _, err := f.reviews.InsertReview(ctx, review.Review{
		Source:     review.SourceReddit,
		ReviewText: "expected more depth",
	})
	if err != nil {
		t.Fatalf("insert review 2: %v", err)
	}
	if err := f.reviews.InsertPainPoints(ctx, []review.PainPoint{
		{ReviewID: id1, Category: "Repetitive", VerbatimQuote: "too repetitive", EmotionalIntensity: review.IntensityLow},
	}); err != nil {
		t.Fatalf("insert pain points: %v", err)
	}

	rec := doRequest(t, h, http.MethodGet, "/api/reviews?source=amazon", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("list status = %d: %s", rec.Code, rec.Body.String())
	}
	var list struct {
		Reviews []reviewJSON `json:"reviews"`
	}
	decodeBody(t, rec, &list)
	if len(list.Reviews) != 1 || list.Reviews[0].ID != id1 {
		t.Fatalf("filtered list = %+v", list.Reviews)
	}

	rec = doRequest(t, h, http.MethodGet, "/api/reviews?source=myspace", nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("bad source status = %d", rec.Code)
	}

	rec = doRequest(t, h, http.MethodGet, fmt.Sprintf("/api/reviews/%d", id1), nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("get status = %d", rec.Code)
	}
	var detail struct {
		Review     reviewJSON      `json:"review"`
		PainPoints []painPointJSON `json:"pain_points"`
	}
	decodeBody(t, rec, &detail)
	if detail.Review.ReviewText != "too repetitive" || len(detail.PainPoints) != 1 {
		t.Fatalf("detail = %+v", detail)
	}

	rec = doRequest(t, h, http.MethodGet, "/api/reviews/9999", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("missing review status = %d", rec.Code)
	}

	rec = doRequest(t, h, http.MethodDelete, fmt.Sprintf("/api/reviews/%d", id1), nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("delete status = %d", rec.Code)
	}
	rec = doRequest(t, h, http.MethodPost, "/api/reviews/bulk-delete", map[string]any{"ids": []uint64{id2}})
	if rec.Code != http.StatusOK {
		t.Fatalf("bulk delete status = %d: %s", rec.Code, rec.Body.String())
	}

	stats, err := f.reviews.GetReviewStats(ctx)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.TotalReviews != 0 {
		t.Fatalf("reviews left after deletes: %d", stats.TotalReviews)
	}
}

func TestImportReviewsEndpoint(t *testing.T) {
	f := setupServer(t)

	csv := "source,review_text,rating\n" +
		"goodreads,the plot dragged on forever,2\n" +
		"goodreads,the plot dragged on forever,2\n" +
		",characters felt flat,\n"

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", "reviews.csv")
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	if _, err := part.Write([]byte(csv)); err != nil {
		t.Fatalf("write form file: %v", err)
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("close multipart: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/reviews/import", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	f.server.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("import status = %d: %s", rec.Code, rec.Body.String())
	}
	var result ingest.ImportResult
	decodeBody(t, rec, &result)
	if result.Total != 3 || result.Inserted != 2 || result.Duplicates != 1 {
		t.Fatalf("import result = %+v", result)
	}
}

func TestCreateJobRunsScrapeToCompletion(t *testing.T) {
	f := setupServer(t)
	h := f.server.Handler()

	rec := doRequest(t, h, http.MethodPost, "/api/jobs/", map[string]any{
		"source": "goodreads",
		"query":  "deep work",
	})
	if rec.Code != http.StatusAccepted {
		t.Fatalf("create job status = %d: %s", rec.Code, rec.Body.String())
	}
	var created jobJSON
	decodeBody(t, rec, &created)
	if created.ID == 0 || created.Status != string(review.JobPending) {
		t.Fatalf("created job = %+v", created)
	}

	var job jobJSON
	waitFor(t, "job completion", func() bool {
		rec := doRequest(t, h, http.MethodGet, fmt.Sprintf("/api/jobs/%d", created.ID), nil)
		if rec.Code != http.StatusOK {
			return false
		}
		decodeBody(t, rec, &job)
		return review.JobStatus(job.Status).Terminal()
	})
	if job.Status != string(review.JobCompleted) || job.ReviewsFound != 2 {
		t.Fatalf("finished job = %+v", job)
	}

	reviews, err := f.reviews.QueryReviews(context.Background(), ports.ReviewFilter{})
	if err != nil {
		t.Fatalf("query reviews: %v", err)
	}
	if len(reviews) != 2 {
		t.Fatalf("stored reviews = %d, want 2", len(reviews))
	}
}

func TestCreateJobForwardsSubreddits(t *testing.T) {
	f := setupServer(t)
	h := f.server.Handler()

	rec := doRequest(t, h, http.MethodPost, "/api/jobs/", map[string]any{
		"source":     "goodreads",
		"query":      "deep work",
		"subreddits": []string{"fantasy", "books"},
	})
	if rec.Code != http.StatusAccepted {
		t.Fatalf("create job status = %d: %s", rec.Code, rec.Body.String())
	}
	var created jobJSON
	decodeBody(t, rec, &created)

	waitFor(t, "job completion", func() bool {
		rec := doRequest(t, h, http.MethodGet, fmt.Sprintf("/api/jobs/%d", created.ID), nil)
		if rec.Code != http.StatusOK {
			return false
		}
		var job jobJSON
		decodeBody(t, rec, &job)
		return review.JobStatus(job.Status).Terminal()
	})

	if len(f.scraper.subreddits) != 2 || f.scraper.subreddits[0] != "fantasy" {
		t.Fatalf("scraper scoped to %v, want [fantasy books]", f.scraper.subreddits)
	}
}

func TestCreateJobValidation(t *testing.T) {
	f := setupServer(t)
	h := f.server.Handler()

	rec := doRequest(t, h, http.MethodPost, "/api/jobs/", map[string]any{"source": "goodreads"})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("missing query status = %d", rec.Code)
	}

	rec = doRequest(t, h, http.MethodPost, "/api/jobs/", map[string]any{"source": "myspace", "query": "x"})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("unknown source status = %d", rec.Code)
	}

	// Valid source without a registered scraper.
	rec = doRequest(t, h, http.MethodPost, "/api/jobs/", map[string]any{"source": "amazon", "query": "x"})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("unregistered source status = %d", rec.Code)
	}
}

func TestCancelJobEndpoint(t *testing.T) {
	f := setupServer(t)
	ctx := context.Background()

	job, err := f.jobs.CreateJob(ctx, review.SourceGoodreads, "deep work")
	if err != nil {
		t.Fatalf("create job: %v", err)
	}

	rec := doRequest(t, f.server.Handler(), http.MethodDelete, fmt.Sprintf("/api/jobs/%d", job.ID), nil)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("cancel status = %d: %s", rec.Code, rec.Body.String())
	}

	requested, err := f.jobs.CancelRequested(ctx, job.ID)
	if err != nil {
		t.Fatalf("cancel requested: %v", err)
	}
	if !requested {
		t.Fatal("cancel flag not set")
	}
}

func TestPainPointEndpoints(t *testing.T) {
	f := setupServer(t)
	h := f.server.Handler()
	ctx := context.Background()

	id, _, err := f.reviews.InsertReview(ctx, review.Review{Source: review.SourceGoodreads, ReviewText: "felt padded"})
	if err != nil {
		t.Fatalf("insert review: %v", err)
	}
	if err := f.reviews.InsertPainPoints(ctx, []review.PainPoint{
		{ReviewID: id, Category: "Repetitive", VerbatimQuote: "felt padded", EmotionalIntensity: review.IntensityHigh},
		{ReviewID: id, Category: "Lacks depth", VerbatimQuote: "felt padded", EmotionalIntensity: review.IntensityLow},
	}); err != nil {
		t.Fatalf("insert pain points: %v", err)
	}

	rec := doRequest(t, h, http.MethodGet, "/api/pain-points?intensity=high", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("list status = %d", rec.Code)
	}
	var list struct {
		PainPoints []painPointJSON `json:"pain_points"`
	}
	decodeBody(t, rec, &list)
	if len(list.PainPoints) != 1 || list.PainPoints[0].Category != "Repetitive" {
		t.Fatalf("intensity filter = %+v", list.PainPoints)
	}

	rec = doRequest(t, h, http.MethodGet, "/api/pain-points?intensity=volcanic", nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("bad intensity status = %d", rec.Code)
	}

	rec = doRequest(t, h, http.MethodGet, "/api/pain-points/categories", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("categories status = %d", rec.Code)
	}
	var cats struct {
		Categories map[string]int64 `json:"categories"`
	}
	decodeBody(t, rec, &cats)
	if cats.Categories["Repetitive"] != 1 || cats.Categories["Lacks depth"] != 1 {
		t.Fatalf("categories = %v", cats.Categories)
	}
}

func TestExportEndpoint(t *testing.T) {
	f := setupServer(t)
	h := f.server.Handler()
	ctx := context.Background()

	id, _, err := f.reviews.InsertReview(ctx, review.Review{Source: review.SourceGoodreads, ReviewText: "felt padded"})
	if err != nil {
		t.Fatalf("insert review: %v", err)
	}
	if err := f.reviews.InsertPainPoints(ctx, []review.PainPoint{
		{ReviewID: id, Category: "Repetitive", VerbatimQuote: "felt padded", EmotionalIntensity: review.IntensityLow},
	}); err != nil {
		t.Fatalf("insert pain points: %v", err)
	}

	rec := doRequest(t, h, http.MethodGet, "/api/pain-points/export", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("csv export status = %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "text/csv" {
		t.Fatalf("csv content type = %q", ct)
	}
	if !strings.Contains(rec.Body.String(), "felt padded") {
		t.Fatalf("csv body = %q", rec.Body.String())
	}

	rec = doRequest(t, h, http.MethodGet, "/api/pain-points/export?format=json", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("json export status = %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Fatalf("json content type = %q", ct)
	}

	rec = doRequest(t, h, http.MethodGet, "/api/pain-points/export?format=xml", nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("bad format status = %d", rec.Code)
	}
}

func TestAnalysisEndpoint(t *testing.T) {
	f := setupServer(t)
	h := f.server.Handler()
	ctx := context.Background()

	id, _, err := f.reviews.InsertReview(ctx, review.Review{
		Source:     review.SourceGoodreads,
		ReviewText: "the exercises were too vague to apply",
	})
	if err != nil {
		t.Fatalf("insert review: %v", err)
	}

	rec := doRequest(t, h, http.MethodPost, "/api/analysis/", nil)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("start status = %d: %s", rec.Code, rec.Body.String())
	}

	var status analysisStatusResponse
	waitFor(t, "analysis run", func() bool {
		rec := doRequest(t, h, http.MethodGet, "/api/analysis/status", nil)
		decodeBody(t, rec, &status)
		return !status.Running && status.LastResult != nil
	})
	if status.LastError != "" {
		t.Fatalf("analysis error = %q", status.LastError)
	}
	if status.LastResult.ReviewsProcessed != 1 || status.LastResult.PainPointsFound != 1 {
		t.Fatalf("analysis result = %+v", status.LastResult)
	}

	got, err := f.reviews.GetReview(ctx, id)
	if err != nil {
		t.Fatalf("get review: %v", err)
	}
	if !got.Processed {
		t.Fatal("review not marked processed")
	}
}

func TestStatsEndpoints(t *testing.T) {
	f := setupServer(t)
	h := f.server.Handler()
	ctx := context.Background()

	id, _, err := f.reviews.InsertReview(ctx, review.Review{Source: review.SourceGoodreads, ReviewText: "felt padded"})
	if err != nil {
		t.Fatalf("insert review: %v", err)
	}
	if err := f.reviews.InsertPainPoints(ctx, []review.PainPoint{
		{ReviewID: id, Category: "Repetitive", VerbatimQuote: "felt padded", EmotionalIntensity: review.IntensityHigh},
	}); err != nil {
		t.Fatalf("insert pain points: %v", err)
	}

	rec := doRequest(t, h, http.MethodGet, "/api/stats/reviews", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("review stats status = %d", rec.Code)
	}
	var reviewStats struct {
		TotalReviews int64            `json:"total_reviews"`
		BySource     map[string]int64 `json:"by_source"`
	}
	decodeBody(t, rec, &reviewStats)
	if reviewStats.TotalReviews != 1 || reviewStats.BySource["goodreads"] != 1 {
		t.Fatalf("review stats = %+v", reviewStats)
	}

	rec = doRequest(t, h, http.MethodGet, "/api/stats/dashboard", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("dashboard status = %d", rec.Code)
	}
	var dashboard struct {
		TotalReviews     int64           `json:"total_reviews"`
		TotalPainPoints  int64           `json:"total_pain_points"`
		RecentPainPoints []painPointJSON `json:"recent_pain_points"`
	}
	decodeBody(t, rec, &dashboard)
	if dashboard.TotalReviews != 1 || dashboard.TotalPainPoints != 1 || len(dashboard.RecentPainPoints) != 1 {
		t.Fatalf("dashboard = %+v", dashboard)
	}
}

func TestResetEndpoint(t *testing.T) {
	f := setupServer(t)
	ctx := context.Background()

	if _, _, err := f.reviews.InsertReview(ctx, review.Review{Source: review.SourceManual, ReviewText: "meh"}); err != nil {
		t.Fatalf("insert review: %v", err)
	}

	rec := doRequest(t, f.server.Handler(), http.MethodPost, "/api/admin/reset", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("reset status = %d", rec.Code)
	}

	stats, err := f.reviews.GetReviewStats(ctx)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.TotalReviews != 0 {
		t.Fatalf("reviews survived reset: %d", stats.TotalReviews)
	}
}

func TestJobEventsWebsocket(t *testing.T) {
	f := setupServer(t)

	ts := httptest.NewServer(f.server.Handler())
	t.Cleanup(ts.Close)

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/ws/jobs"
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial websocket: %v", err)
	}
	if resp != nil {
		_ = resp.Body.Close()
	}
	t.Cleanup(func() {
		_ = conn.Close()
	})

	// The subscriber map is registered synchronously on upgrade, but the
	// upgrade response races with the handler goroutine; publish until
	// the event lands.
	event := ports.JobEvent{JobID: 7, Source: review.SourceGoodreads, Status: review.JobRunning, ReviewsFound: 3}
	stop := make(chan struct{})
	t.Cleanup(func() { close(stop) })
	go func() {
		for {
			select {
			case <-stop:
				return
			default:
			}
			f.hub.Publish(event)
			time.Sleep(10 * time.Millisecond)
		}
	}()

	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	var got ports.JobEvent
	if err := conn.ReadJSON(&got); err != nil {
		t.Fatalf("read event: %v", err)
	}

	if got.JobID != 7 || got.Status != review.JobRunning || got.ReviewsFound != 3 {
		t.Fatalf("event = %+v", got)
	}
}
