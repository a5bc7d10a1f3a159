package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/requestarr/requestarr/internal/api"
	"github.com/requestarr/requestarr/internal/arr/lidarr"
	"github.com/requestarr/requestarr/internal/arr/radarr"
	"github.com/requestarr/requestarr/internal/arr/sonarr"
	"github.com/requestarr/requestarr/internal/catalog/musicbrainz"
	"github.com/requestarr/requestarr/internal/catalog/spotify"
	"github.com/requestarr/requestarr/internal/catalog/tmdb"
	"github.com/requestarr/requestarr/internal/classifier"
	"github.com/requestarr/requestarr/internal/config"
	"github.com/requestarr/requestarr/internal/database"
	"github.com/requestarr/requestarr/internal/logger"
	"github.com/requestarr/requestarr/internal/processor"
	"github.com/requestarr/requestarr/internal/requests"
	"github.com/requestarr/requestarr/internal/scheduler"
	"github.com/requestarr/requestarr/internal/scheduler/tasks"
)

func main() {
	configPath := flag.String("config", "", "Path to config file")
	flag.Parse()

	// Local .env files override nothing already in the environment.
	_ = godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	log := logger.New(logger.Config{
		Level:      cfg.Logging.Level,
		Format:     cfg.Logging.Format,
		Path:       cfg.Logging.Path,
		MaxSizeMB:  cfg.Logging.MaxSizeMB,
		MaxBackups: cfg.Logging.MaxBackups,
		MaxAgeDays: cfg.Logging.MaxAgeDays,
		Compress:   cfg.Logging.Compress,
	})
	defer log.Close()

	log.Info().
		Str("version", config.Version).
		Str("logLevel", cfg.Logging.Level).
		Msg("starting Requestarr")

	db, err := database.New(cfg.Database.Path)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open database")
	}
	defer db.Close()

	log.Info().Msg("running database migrations")
	if err := db.Migrate(); err != nil {
		log.Fatal().Err(err).Msg("failed to run migrations")
	}

	// Catalog clients
	tmdbClient := tmdb.NewClient(cfg.Catalogs.TMDB, log.Logger)
	spotifyClient := spotify.NewClient(cfg.Catalogs.Spotify, log.Logger)
	musicbrainzClient := musicbrainz.NewClient(cfg.Catalogs.MusicBrainz, log.Logger)

	// Downstream manager clients
	radarrClient := radarr.NewClient(cfg.Managers.Radarr, log.Logger)
	sonarrClient := sonarr.NewClient(cfg.Managers.Sonarr, log.Logger)
	lidarrClient := lidarr.NewClient(cfg.Managers.Lidarr, log.Logger)

	clf := classifier.New(tmdbClient, tmdbClient, spotifyClient, musicbrainzClient, cfg.Classifier, log.Logger)
	store := requests.NewStore(db.Conn(), log.Logger)
	proc := processor.New(store, clf, radarrClient, sonarrClient, lidarrClient, tmdbClient, log.Logger)

	sched, err := scheduler.New(log.Logger)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create scheduler")
	}
	if err := tasks.RegisterProcessRequestsTask(sched, proc, &cfg.Processor); err != nil {
		log.Fatal().Err(err).Msg("failed to register process-requests task")
	}

	services := map[string]api.ServiceTester{
		"tmdb":        tmdbClient,
		"spotify":     spotifyClient,
		"musicbrainz": musicbrainzClient,
		"radarr":      radarrClient,
		"sonarr":      sonarrClient,
		"lidarr":      lidarrClient,
	}

	server := api.NewServer(cfg, store, clf, proc, sched, services, log.Logger)

	sched.Start()

	go func() {
		addr := cfg.Server.Address()
		log.Info().Str("address", addr).Msg("HTTP server listening")
		if err := server.Start(addr); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan
	log.Info().Msg("received shutdown signal")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("server shutdown error")
	}
	if err := sched.Stop(); err != nil {
		log.Error().Err(err).Msg("scheduler shutdown error")
	}

	log.Info().Msg("server stopped")
}
