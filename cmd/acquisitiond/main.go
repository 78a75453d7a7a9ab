// Command acquisitiond runs the media acquisition pipeline: a scheduled
// orchestrator tick backed by an HTTP surface for manual triggers.
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

	"github.com/ucero0/acquisitiond/internal/api"
	"github.com/ucero0/acquisitiond/internal/catalog"
	"github.com/ucero0/acquisitiond/internal/config"
	"github.com/ucero0/acquisitiond/internal/database"
	"github.com/ucero0/acquisitiond/internal/downloader/deluge"
	"github.com/ucero0/acquisitiond/internal/filesystem"
	"github.com/ucero0/acquisitiond/internal/indexer/prowlarr"
	"github.com/ucero0/acquisitiond/internal/logging"
	"github.com/ucero0/acquisitiond/internal/metadata/tmdb"
	"github.com/ucero0/acquisitiond/internal/orchestrator"
	"github.com/ucero0/acquisitiond/internal/reconciler"
	"github.com/ucero0/acquisitiond/internal/repo"
	"github.com/ucero0/acquisitiond/internal/scanner"
	"github.com/ucero0/acquisitiond/internal/scheduler"
	"github.com/ucero0/acquisitiond/internal/selection"
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log := logging.New(logging.Config{
		Level:      cfg.Logging.Level,
		Format:     cfg.Logging.Format,
		Path:       cfg.Logging.Path,
		MaxSizeMB:  cfg.Logging.MaxSizeMB,
		MaxBackups: cfg.Logging.MaxBackups,
		MaxAgeDays: cfg.Logging.MaxAgeDays,
		Compress:   cfg.Logging.Compress,
	})

	log.Info().Str("tick_interval", cfg.TickInterval.String()).Msg("starting acquisitiond")

	db, err := database.New(cfg.Database.Path)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open database")
	}
	defer db.Close()

	log.Info().Msg("running database migrations")
	if err := db.Migrate(); err != nil {
		log.Fatal().Err(err).Msg("failed to run migrations")
	}

	watchUsers := repo.NewWatchUserRepo(db.Conn())
	jobs := repo.NewDownloadJobRepo(db.Conn())
	scans := repo.NewScanRecordRepo(db.Conn())

	catalogClient := catalog.New(catalog.Config{
		DiscoverBaseURL: cfg.Catalog.DiscoverBaseURL,
		ServerBaseURL:   cfg.Catalog.ServerBaseURL,
		ClientID:        cfg.Catalog.ClientID,
	}, log)

	indexerClient, err := prowlarr.New(prowlarr.Config{
		URL:           cfg.Indexer.URL,
		APIKey:        cfg.Indexer.APIKey,
		Timeout:       cfg.Indexer.Timeout,
		SkipSSLVerify: cfg.Indexer.SkipSSLVerify,
	}, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to build indexer client")
	}

	downloaderClient := deluge.New(deluge.Config{
		Host:     cfg.Downloader.Host,
		Port:     cfg.Downloader.Port,
		Username: cfg.Downloader.Username,
		Password: cfg.Downloader.Password,
		Timeout:  cfg.Downloader.Timeout,
	}, log)

	scannerClient, err := scanner.New(scanner.Config{
		ClamHost:   cfg.Scanner.ClamHost,
		ClamPort:   cfg.Scanner.ClamPort,
		RulesDir:   cfg.Scanner.RulesDir,
		Timeout:    cfg.Scanner.Timeout,
		ChunkBytes: cfg.Scanner.ChunkBytes,
	}, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to build scanner client")
	}

	metadataClient := tmdb.New(tmdb.Config{
		APIKey:  cfg.Metadata.APIKey,
		BaseURL: cfg.Metadata.BaseURL,
		Timeout: cfg.Metadata.Timeout,
	}, log)
	if !metadataClient.IsConfigured() {
		log.Warn().Msg("tmdb api key not configured, original-title matching will be skipped")
	}

	filesystemService := filesystem.New(filesystem.Config{
		QuarantineRoot: cfg.Filesystem.QuarantineRoot,
		MovieRoot:      cfg.Filesystem.MovieRoot,
		ShowRoot:       cfg.Filesystem.ShowRoot,
	}, log)

	selector := selection.New(log)

	rec := reconciler.New(jobs, downloaderClient, log)

	orch := orchestrator.New(
		catalogClient,
		indexerClient,
		downloaderClient,
		scannerClient,
		metadataClient,
		filesystemService,
		selector,
		rec,
		watchUsers,
		jobs,
		scans,
		orchestrator.Config{
			AppearanceDelay: cfg.Matching.AppearanceDelay,
			TimeWindow:      cfg.Matching.TimeWindow,
			SimilarityFloor: cfg.Matching.SimilarityThreshold,
		},
		log,
	)

	tick := func(ctx context.Context) error {
		_, err := orch.Run(ctx)
		return err
	}
	sched, err := scheduler.New(cfg.TickInterval, tick, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to build scheduler")
	}
	sched.Start()

	server := api.New(orch, rec, downloaderClient, cfg.APIKey, log)

	port, err := config.FindAvailablePort(cfg.Server.Port, 10)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to find available port")
	}
	if port != cfg.Server.Port {
		log.Warn().Int("configured_port", cfg.Server.Port).Int("actual_port", port).
			Msg("configured port in use, using alternative port")
		cfg.Server.Port = port
	}

	go func() {
		addr := cfg.Server.Address()
		log.Info().Str("address", addr).Msg("http server listening")
		if err := server.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("http server stopped")
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()

	log.Info().Msg("received shutdown signal")

	if err := sched.Stop(); err != nil {
		log.Error().Err(err).Msg("scheduler shutdown error")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("http server shutdown error")
	}

	log.Info().Msg("acquisitiond stopped")
}
