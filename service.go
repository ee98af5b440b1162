package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"ewintr.nl/conceptube/config"
	"ewintr.nl/conceptube/event"
	"ewintr.nl/conceptube/feed"
	"ewintr.nl/conceptube/fetch"
	"ewintr.nl/conceptube/handler"
	"ewintr.nl/conceptube/metrics"
	"ewintr.nl/conceptube/process"
	"ewintr.nl/conceptube/storage"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/sashabaranov/go-openai"
	"golang.org/x/exp/slog"
	"google.golang.org/api/option"
	"google.golang.org/api/youtube/v3"
)

const healthCheckTimeout = 10 * time.Second

func main() {
	configPath := flag.String("config", "", "path to a yaml config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "unable to load config: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "invalid config: %v\n", err)
		os.Exit(1)
	}
	logger := newLogger(cfg.Logging)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("service failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
	logger.Info("service stopped")
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(reg)
	health := handler.NewHealthAPI(logger)

	var videoRepo storage.VideoRepository
	switch cfg.Store.Backend {
	case config.StoreMemory:
		videoRepo = storage.NewMemory()
	case config.StorePostgres, config.StoreSQLite:
		var (
			sqlRepo *storage.SQLVideoRepository
			err     error
		)
		if cfg.Store.Backend == config.StorePostgres {
			sqlRepo, err = storage.NewPostgres(cfg.Postgres)
		} else {
			sqlRepo, err = storage.NewSQLite(cfg.Store.SQLitePath)
		}
		if err != nil {
			return fmt.Errorf("unable to open %s store: %w", cfg.Store.Backend, err)
		}
		defer sqlRepo.Close()
		health.Add("store", sqlRepo.Ping)
		videoRepo = sqlRepo
	}
	logger.Info("catalog store ready", slog.String("backend", cfg.Store.Backend))

	if cfg.Redis.Addr != "" {
		cache, err := storage.NewRedisCache(cfg.Redis, logger)
		if err != nil {
			logger.Warn("search cache disabled", slog.String("error", err.Error()))
		} else {
			defer cache.Close()
			health.Add("redis", cache.Ping)
			videoRepo = storage.NewCachedVideoRepository(videoRepo, cache, logger)
		}
	}

	httpClient := &http.Client{}
	checkHealth := func(service, url string) error {
		pctx, cancel := context.WithTimeout(ctx, healthCheckTimeout)
		defer cancel()
		if err := fetch.CheckHealth(pctx, httpClient, service, url); err != nil {
			return fmt.Errorf("%s is not reachable at %s: %w", service, url, err)
		}
		logger.Info("collaborator is healthy", slog.String("service", service))
		health.Add(service, func(ctx context.Context) error {
			return fetch.CheckHealth(ctx, httpClient, service, url)
		})
		return nil
	}
	if err := checkHealth("transcript service", cfg.Transcript.URL); err != nil {
		return err
	}

	var mapper fetch.ConceptMapper
	switch cfg.Mapper.Backend {
	case config.MapperService:
		if err := checkHealth("concept mapper", cfg.Mapper.URL); err != nil {
			return err
		}
		mapper = fetch.NewMapperService(cfg.Mapper.URL, httpClient)
	case config.MapperOpenAI:
		mapper = fetch.NewOpenAI(openai.NewClient(cfg.Mapper.OpenAIKey), cfg.Mapper.OpenAIModel)
	}

	ytOpts := []option.ClientOption{option.WithAPIKey(cfg.Youtube.APIKey)}
	if cfg.Youtube.Endpoint != "" {
		ytOpts = append(ytOpts, option.WithEndpoint(cfg.Youtube.Endpoint))
	}
	ytClient, err := youtube.NewService(ctx, ytOpts...)
	if err != nil {
		return fmt.Errorf("unable to create youtube service: %w", err)
	}

	var vecRepo storage.VideoVecRepository
	if cfg.Weaviate.Host != "" {
		wv, err := storage.NewWeaviate(cfg.Weaviate, cfg.Mapper.OpenAIKey)
		if err == nil {
			err = wv.EnsureSchema(ctx)
		}
		if err != nil {
			logger.Warn("vector index disabled", slog.String("error", err.Error()))
		} else {
			vecRepo = wv
		}
	}

	var publisher event.Publisher = event.Nop{}
	if len(cfg.Kafka.Brokers) > 0 {
		publisher = event.NewKafka(cfg.Kafka, logger)
		logger.Info("publishing catalog events", slog.String("topic", cfg.Kafka.Topic))
	}
	defer publisher.Close()

	notifier := process.NewNotifier(vecRepo, publisher, logger)
	ingester := process.NewIngester(
		videoRepo,
		fetch.NewYoutube(ytClient, cfg.Youtube.RequestsPerSecond),
		fetch.NewTranscriptService(cfg.Transcript.URL, httpClient),
		mapper,
		notifier,
		cfg.Ingest,
		m,
		logger,
	)
	catalog := process.NewCatalog(videoRepo, notifier)

	if cfg.Feed.Endpoint != "" {
		go feed.NewPoller(fetch.NewMiniflux(cfg.Feed), ingester, cfg.Feed.Interval, m, logger).Run(ctx)
	}

	srv := &http.Server{
		Addr: fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: handler.NewServer(
			handler.NewVideoAPI(videoRepo, ingester, catalog, logger),
			health,
			metrics.Handler(reg),
			m,
			logger,
		),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}
	errc := make(chan error, 1)
	go func() {
		errc <- srv.ListenAndServe()
	}()
	logger.Info("http server started", slog.Int("port", cfg.Server.Port))

	select {
	case err := <-errc:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	sctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	return srv.Shutdown(sctx)
}

func newLogger(cfg config.LoggingConfig) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if cfg.Format == "json" {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}

	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}
