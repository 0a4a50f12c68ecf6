// Command worshipfollow is a headless display: it joins a worship topic on a
// remote worshiplive server and logs what an audience screen and a projector
// would show.
package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"worshiplive/internal/channel"
	"worshiplive/internal/chaptercache"
	"worshiplive/internal/config"
	"worshiplive/internal/content"
	"worshiplive/internal/display"
	"worshiplive/internal/logging"
	"worshiplive/internal/models"
	"worshiplive/internal/preloader"
)

func main() {
	prefetchVersion := flag.String("prefetch", "", "warm the chapter cache with every chapter of this Bible version (e.g. KJV)")
	flag.Parse()

	cfg, err := config.LoadFollow()
	if err != nil {
		logging.L().Fatal().Err(err).Msg("loading config")
	}
	logging.Init(logging.Config{Level: cfg.LogLevel, Pretty: cfg.LogPretty})
	if cfg.WorshipID <= 0 {
		logging.L().Fatal().Msg("WORSHIP_ID is required")
	}

	clientID := uuid.NewString()
	topic := models.WorshipTopic(cfg.WorshipID)
	log := logging.L().With().Str("client_id", clientID).Str(logging.FieldTopic, topic).Logger()

	resolver, err := content.NewClient(cfg.ServerURL, content.WithRateLimit(cfg.ContentRate, cfg.ContentBurst))
	if err != nil {
		log.Fatal().Err(err).Msg("configuring content client")
	}
	fetcher, err := preloader.NewHTTPFetcher(cfg.ServerURL)
	if err != nil {
		log.Fatal().Err(err).Msg("configuring media fetcher")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	transport := &channel.WebSocketTransport{
		BaseURL: cfg.ServerURL,
		Header:  http.Header{"X-Client-Id": []string{clientID}},
	}
	session := channel.Open(ctx, topic, transport)
	defer session.Close()

	if versions, err := resolver.ListVersions(ctx); err != nil {
		log.Warn().Err(err).Msg("listing bible versions")
	} else {
		abbrevs := make([]string, 0, len(versions))
		for _, v := range versions {
			abbrevs = append(abbrevs, v.Abbreviation)
		}
		log.Info().Strs("versions", abbrevs).Msg("server catalog")
	}

	chapters := chaptercache.New(resolver, nil)
	controller := display.NewController(topic, chapters)
	projector := preloader.NewProjector(topic, resolver, fetcher)

	displayC := session.Subscribe(0, display.Events...)
	projectC := session.Subscribe(0, preloader.Events...)
	frames := controller.Subscribe()
	statuses := projector.Subscribe()

	var wg sync.WaitGroup
	if *prefetchVersion != "" {
		wg.Add(1)
		go func() {
			defer wg.Done()
			prefetch(ctx, log, resolver, chapters, *prefetchVersion)
		}()
	}
	wg.Add(4)
	go func() {
		defer wg.Done()
		controller.Run(ctx, displayC.C())
	}()
	go func() {
		defer wg.Done()
		projector.Run(ctx, projectC.C())
	}()
	go func() {
		defer wg.Done()
		for f := range frames {
			logFrame(log, f)
		}
	}()
	go func() {
		defer wg.Done()
		for s := range statuses {
			logStatus(log, s)
		}
	}()

	log.Info().Str("server", cfg.ServerURL).Msg("following worship")
	<-ctx.Done()
	log.Info().Msg("stopping")
	displayC.Close()
	projectC.Close()
	wg.Wait()
}

// prefetch loads a whole version into the chapter cache so later readings
// display without a round trip. The content client's rate limit paces it.
func prefetch(ctx context.Context, log zerolog.Logger, client *content.Client, cache *chaptercache.Cache, version string) {
	ids, err := client.ChapterIDs(ctx, version)
	if err != nil {
		log.Warn().Err(err).Str("version", version).Msg("prefetch listing failed")
		return
	}
	failed := 0
	for _, id := range ids {
		if _, err := cache.Get(ctx, id); err != nil {
			if ctx.Err() != nil {
				return
			}
			failed++
			log.Debug().Err(err).Int64("chapter_id", id).Msg("prefetch chapter failed")
		}
	}
	log.Info().Str("version", version).Int("chapters", cache.Len()).Int("failed", failed).Msg("prefetch done")
}

func logFrame(log zerolog.Logger, f display.Frame) {
	ev := log.Info().
		Uint64("revision", f.Revision).
		Str("mode", string(f.State.Mode)).
		Bool("connected", f.State.Connected).
		Bool("offering", f.State.OfferingActive)
	switch {
	case f.State.Bible != nil && f.State.Mode == display.ModeBible:
		ev = ev.Str("book", f.State.Bible.BookName).
			Int("chapter", f.State.Bible.ChapterNumber).
			Int64("verse_id", f.State.Bible.HighlightedVerseID)
	case f.State.Hymn != nil && f.State.Mode == display.ModeHymn:
		ev = ev.Str("hymn", f.State.Hymn.Title)
	}
	if f.State.HighlightedPart != "" {
		ev = ev.Str("highlight", f.State.HighlightedPart)
	}
	if f.Effects.ScrollTo != "" {
		ev = ev.Str("scroll_to", f.Effects.ScrollTo)
	}
	if f.State.Error != "" {
		ev = ev.Str("error", f.State.Error)
	}
	ev.Msg("display")
}

func logStatus(log zerolog.Logger, s preloader.Status) {
	ev := log.Info().Str("stage", string(s.Stage)).Int("percent", s.Percent)
	if s.Slide != nil {
		ev = ev.Int("slide", s.Slide.OrderIndex).Str("media", s.Slide.MediaURL)
	}
	if s.Error != "" {
		ev = ev.Str("error", s.Error)
	}
	ev.Msg("projection")
}
