package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"worshiplive/internal/auth"
	"worshiplive/internal/channel"
	"worshiplive/internal/config"
	"worshiplive/internal/content"
	"worshiplive/internal/control"
	"worshiplive/internal/hub"
	"worshiplive/internal/logging"
	"worshiplive/internal/metrics"
	"worshiplive/internal/notifier"
	"worshiplive/internal/preloader"
	"worshiplive/internal/scheduler"
	"worshiplive/internal/server"
	"worshiplive/internal/store"
	"worshiplive/internal/surfaces"
	"worshiplive/internal/version"
)

func main() {
	seed := flag.String("seed", "", "import a catalog JSON file (bible, hymns, presentations) and exit")
	addOperator := flag.String("add-operator", "", "create an operator account with the password in OPERATOR_PASSWORD and exit")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		logging.L().Fatal().Err(err).Msg("loading config")
	}
	logging.Init(logging.Config{Level: cfg.LogLevel, Pretty: cfg.LogPretty})
	log := logging.L()

	if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0755); err != nil {
		log.Fatal().Err(err).Msg("creating data directory")
	}
	st, err := store.New(cfg.DBPath)
	if err != nil {
		log.Fatal().Err(err).Msg("opening database")
	}
	defer st.Close()
	if err := st.Migrate(cfg.MigrationsDir); err != nil {
		log.Fatal().Err(err).Msg("running migrations")
	}

	if *seed != "" {
		stats, err := st.ImportCatalogFile(*seed)
		if err != nil {
			log.Fatal().Err(err).Str("file", *seed).Msg("importing catalog")
		}
		log.Info().
			Int("versions", stats.Versions).
			Int("chapters", stats.Chapters).
			Int("hymns", stats.Hymns).
			Int("presentations", stats.Presentations).
			Msg("catalog imported")
		return
	}

	if *addOperator != "" {
		op, err := auth.NewManager(st, cfg.SessionTTL).AddOperator(*addOperator, os.Getenv("OPERATOR_PASSWORD"))
		if err != nil {
			log.Fatal().Err(err).Str("username", *addOperator).Msg("adding operator")
		}
		log.Info().Int64("operator_id", op.ID).Str("username", op.Username).Msg("operator added")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New()

	hubOpts := []hub.Option{hub.WithMetrics(m)}
	if cfg.HubDriver == "redis" {
		broker, err := hub.NewRedisBroker(ctx, hub.RedisConfig{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err != nil {
			log.Fatal().Err(err).Str("addr", cfg.RedisAddr).Msg("connecting to redis")
		}
		defer broker.Close()
		hubOpts = append(hubOpts, hub.WithBroker(broker))
		log.Info().Str("addr", cfg.RedisAddr).Msg("hub fan-out through redis")
	}
	h := hub.New(hubOpts...)
	h.Start(ctx)

	notify, err := notifier.FromURLs(cfg.PrayerNotifyDiscord, cfg.PrayerNotifyWebhook, cfg.PrayerNotifyNtfy)
	if err != nil {
		log.Fatal().Err(err).Msg("configuring prayer request notifications")
	}

	fetcher, err := preloader.NewHTTPFetcher(cfg.MediaBaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("configuring media fetcher")
	}

	channels := channel.NewManager(ctx, h, channel.WithMetrics(m))
	surf := surfaces.New(ctx, channels, content.NewStoreResolver(st, m), fetcher,
		surfaces.WithMetrics(m),
		surfaces.WithNoticeHistory(cfg.NoticeHistory),
		surfaces.WithLinger(cfg.SurfaceLinger),
	)

	sch := scheduler.New(st, scheduler.WithStaleAfter(cfg.StaleWorship))
	sch.Start(ctx)

	srv := server.NewServer(st,
		server.WithCORSOrigin(cfg.CORSOrigin),
		server.WithTrustProxy(cfg.TrustProxy),
		server.WithAuth(auth.NewManager(st, cfg.SessionTTL)),
		server.WithControl(control.New(st, h, control.WithNotifier(notify))),
		server.WithSurfaces(surf),
		server.WithHub(h),
		server.WithMetrics(m),
	)

	httpServer := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           srv,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info().Str("addr", cfg.ListenAddr).Str("version", version.Get().Version).Msg("worshiplive listening")
		if err := httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("http server")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")

	// Closing the hub ends websocket members and SSE streams so Shutdown does
	// not wait on them.
	surf.Close()
	channels.Close()
	if err := h.Close(); err != nil {
		log.Warn().Err(err).Msg("closing hub")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("shutdown error")
	}
	srv.Close()
	sch.Stop()
	h.Wait()
}
