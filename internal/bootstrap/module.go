package bootstrap

import (
	"context"
	"log/slog"
	"time"

	"go.uber.org/fx"
	"gorm.io/gorm"

	"reviewminer/internal/bootstrap/config"
	"reviewminer/internal/bootstrap/database"
	"reviewminer/internal/bootstrap/logging"
	eventsinfra "reviewminer/internal/infrastructure/events"
	"reviewminer/internal/infrastructure/fetch"
	llminfra "reviewminer/internal/infrastructure/llm"
	sqliterepo "reviewminer/internal/infrastructure/persistence/sqlite/repository"
	"reviewminer/internal/ports"
	"reviewminer/internal/scraper"
	"reviewminer/internal/usecase/analysis"
	"reviewminer/internal/usecase/export"
	"reviewminer/internal/usecase/ingest"
)

var Module = fx.Options(
	fx.Provide(provideConfig),
	fx.Provide(provideDatabase),
	fx.Provide(provideApp),
	fx.Provide(
		fx.Annotate(
			sqliterepo.NewReviewRepository,
			fx.As(new(ports.ReviewRepository)),
		),
	),
	fx.Provide(
		fx.Annotate(
			sqliterepo.NewJobRepository,
			fx.As(new(ports.JobRepository)),
		),
	),
	fx.Provide(
		fx.Annotate(
			eventsinfra.NewHub,
			fx.As(new(ports.JobEvents)),
		),
	),
	fx.Provide(provideChatCompleter),
	fx.Provide(provideScraperRegistry),
	fx.Provide(ingest.NewOrchestrator),
	fx.Provide(ingest.NewImporter),
	fx.Provide(export.NewExporter),
	fx.Provide(provideEngine),
)

type configParams struct {
	fx.In

	Ctx        context.Context
	ConfigFile string `name:"configFile"`
}

func provideConfig(p configParams) (config.Config, error) {
	ctx := logging.WithAttrs(p.Ctx, slog.String("component", "bootstrap.fx"))
	return config.Load(ctx, p.ConfigFile)
}

func provideDatabase(lc fx.Lifecycle, ctx context.Context, cfg config.Config) (*gorm.DB, error) {
	logCtx := logging.WithAttrs(ctx, slog.String("component", "bootstrap.fx"))

	db, err := database.Open(logCtx, cfg.Database)
	if err != nil {
		return nil, err
	}

	lc.Append(fx.Hook{
		OnStop: func(_ context.Context) error {
			sqlDB, err := db.DB()
			if err != nil {
				return err
			}
			return sqlDB.Close()
		},
	})

	return db, nil
}

func provideApp(cfg config.Config, db *gorm.DB) *App {
	return &App{
		Config: cfg,
		DB:     db,
	}
}

func provideChatCompleter(cfg config.Config) ports.ChatCompleter {
	return llminfra.NewClient(cfg.LLM)
}

func provideEngine(repo ports.ReviewRepository, llm ports.ChatCompleter, cfg config.Config) *analysis.Engine {
	return analysis.NewEngine(repo, llm, cfg.Analysis)
}

// provideScraperRegistry assembles one adapter per supported source from
// the scraping config. Reddit credential validation is deferred to the
// first call so credential-less deployments can still scrape the rest.
func provideScraperRegistry(cfg config.Config) *scraper.Registry {
	sc := cfg.Scraping
	timeout := time.Duration(sc.RequestTimeoutSeconds * float64(time.Second))

	agents := fetch.NewUserAgentPool(sc.Amazon.UserAgents)
	static := fetch.NewStaticClient(timeout, agents.Random())
	renderer := fetch.NewChromeRenderer(agents, timeout)

	return scraper.NewRegistry(
		scraper.NewAmazonScraper(renderer, scraper.AmazonOptions{
			DelayMinSeconds:        sc.Amazon.DelayMinSeconds,
			DelayMaxSeconds:        sc.Amazon.DelayMaxSeconds,
			ProductDelayMinSeconds: sc.Amazon.ProductDelayMinSeconds,
			ProductDelayMaxSeconds: sc.Amazon.ProductDelayMaxSeconds,
			MaxRetries:             sc.MaxRetries,
		}),
		scraper.NewGoodreadsScraper(static, scraper.GoodreadsOptions{
			DelayMinSeconds: sc.Goodreads.DelayMinSeconds,
			DelayMaxSeconds: sc.Goodreads.DelayMaxSeconds,
			MaxRetries:      sc.MaxRetries,
		}),
		scraper.NewLibraryThingScraper(static, scraper.LibraryThingOptions{
			DelayMinSeconds: sc.LibraryThing.DelayMinSeconds,
			DelayMaxSeconds: sc.LibraryThing.DelayMaxSeconds,
			MaxRetries:      sc.MaxRetries,
		}),
		scraper.NewRedditScraper(scraper.RedditOptions{
			ClientID:     sc.Reddit.ClientID,
			ClientSecret: sc.Reddit.ClientSecret,
			UserAgent:    sc.Reddit.UserAgent,
			Subreddits:   sc.Reddit.Subreddits,
			PainKeywords: sc.Reddit.PainKeywords,
		}),
	)
}
