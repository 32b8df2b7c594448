package export

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"

	gormsqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"

	"reviewminer/internal/domain/review"
	"reviewminer/internal/infrastructure/persistence/sqlite/model"
	"reviewminer/internal/infrastructure/persistence/sqlite/repository"
)

func setupExporter(t *testing.T) *Exporter {
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

	repo := repository.NewReviewRepository(db)
	ctx := context.Background()

	two := 2
	id, _, err := repo.InsertReview(ctx, review.Review{
		Source:       review.SourceGoodreads,
		ProductTitle: "Deep Work",
		Rating:       &two,
		ReviewText:   "Too theoretical and padded, I wanted concrete schedules.",
	})
	if err != nil {
		t.Fatalf("insert review: %v", err)
	}

	err = repo.InsertPainPoints(ctx, []review.PainPoint{
		{
			ReviewID:           id,
			Category:           "Too theoretical",
			VerbatimQuote:      "I wanted concrete schedules",
			EmotionalIntensity: review.IntensityHigh,
			ImpliedNeed:        "step-by-step planning templates",
		},
		{
			ReviewID:           id,
			Category:           "Repetitive",
			VerbatimQuote:      "padded",
			EmotionalIntensity: review.IntensityLow,
		},
	})
	if err != nil {
		t.Fatalf("insert pain points: %v", err)
	}

	return NewExporter(repo)
}

func TestExportCSV(t *testing.T) {
	e := setupExporter(t)

	var buf bytes.Buffer
	n, err := e.Export(context.Background(), &buf, FormatCSV, "")
	if err != nil {
		t.Fatalf("Export() error = %v", err)
	}
	if n != 2 {
		t.Fatalf("exported = %d, want 2", n)
	}

	records, err := csv.NewReader(&buf).ReadAll()
	if err != nil {
		t.Fatalf("read csv: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("csv rows = %d, want header + 2", len(records))
	}
	if records[0][0] != "category" {
		t.Fatalf("header = %v", records[0])
	}
	// Rows come back ordered by category.
	if records[1][0] != "Repetitive" || records[2][0] != "Too theoretical" {
		t.Fatalf("rows = %v", records[1:])
	}
	if records[2][6] != "2" {
		t.Fatalf("rating column = %v", records[2])
	}
}

func TestExportCSVCategoryFilter(t *testing.T) {
	e := setupExporter(t)

	var buf bytes.Buffer
	n, err := e.Export(context.Background(), &buf, FormatCSV, "Repetitive")
	if err != nil {
		t.Fatalf("Export() error = %v", err)
	}
	if n != 1 {
		t.Fatalf("exported = %d, want 1", n)
	}
	if strings.Contains(buf.String(), "Too theoretical") {
		t.Fatalf("filtered export leaked other categories:\n%s", buf.String())
	}
}

func TestExportJSON(t *testing.T) {
	e := setupExporter(t)

	var buf bytes.Buffer
	if _, err := e.Export(context.Background(), &buf, FormatJSON, ""); err != nil {
		t.Fatalf("Export() error = %v", err)
	}

	var records []jsonExportRecord
	if err := json.Unmarshal(buf.Bytes(), &records); err != nil {
		t.Fatalf("unmarshal export: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("records = %d, want 2", len(records))
	}
	if records[0].Source.Platform != review.SourceGoodreads || records[0].Source.Rating == nil {
		t.Fatalf("record = %+v", records[0])
	}
}

func TestExportMarkdownGroupsByCategory(t *testing.T) {
	e := setupExporter(t)

	var buf bytes.Buffer
	if _, err := e.Export(context.Background(), &buf, FormatMarkdown, ""); err != nil {
		t.Fatalf("Export() error = %v", err)
	}
	report := buf.String()

	for _, want := range []string{
		"# Pain Point Analysis Report",
		"- **Total Pain Points:** 2",
		"### Too theoretical",
		"### Repetitive",
		"**Implied Need:** step-by-step planning templates",
	} {
		if !strings.Contains(report, want) {
			t.Fatalf("report missing %q:\n%s", want, report)
		}
	}
}

func TestParseFormat(t *testing.T) {
	if f, err := ParseFormat("md"); err != nil || f != FormatMarkdown {
		t.Fatalf("ParseFormat(md) = %v, %v", f, err)
	}
	if _, err := ParseFormat("xlsx"); err == nil {
		t.Fatal("expected error for unknown format")
	}
}
