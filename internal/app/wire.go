//go:build wireinject
// +build wireinject

package app

import (
	"context"
	"log"
	"log/slog"
	"os"

	"github.com/google/wire"

	"voicepipe/internal/api/v1/services"
	"voicepipe/internal/app/api/gemini"
	"voicepipe/internal/app/api/openai"
	"voicepipe/internal/app/api/openai/whisper"
	"voicepipe/internal/app/api/provider"
	appconfig "voicepipe/internal/app/config"
	"voicepipe/internal/app/quality"
	"voicepipe/internal/app/repository"
	"voicepipe/internal/app/repository/pg"
	"voicepipe/internal/app/repository/sqlite"
	"voicepipe/internal/app/storage"
	"voicepipe/internal/config"
)

// provideRecordingDAO selects the metadata store backend from METADATA_DB.
// sqlite is the default; postgres requires POSTGRES_DSN.
func provideRecordingDAO() repository.RecordingDAO {
	if config.GetEnv("METADATA_DB", "sqlite") == "postgres" {
		db, err := pg.GetConnection()
		if err != nil {
			log.Fatalf("Failed to connect postgres metadata store: %v", err)
		}
		dao, err := pg.NewRecordingDB(db)
		if err != nil {
			log.Fatalf("Failed to init postgres schema: %v", err)
		}
		return dao
	}
	dao, err := sqlite.NewRecordingDB(config.GetEnv("SQLITE_PATH", "data/voicepipe.db"))
	if err != nil {
		log.Fatalf("Failed to open sqlite metadata store: %v", err)
	}
	return dao
}

// provideBlobStore requires MINIO_ENDPOINT plus credentials in the env.
func provideBlobStore() storage.BlobStore {
	store, err := storage.NewMinioBlobStore()
	if err != nil {
		log.Fatalf("Failed to connect blob store: %v", err)
	}
	return store
}

// provideProviderRegistry registers every enabled provider, each wrapped in
// the bounded-retry decorator.
func provideProviderRegistry() provider.Registry {
	cfg, err := appconfig.LoadProvidersConfig(config.GetEnv("PROVIDERS_CONFIG", "config/providers.yaml"))
	if err != nil {
		log.Fatalf("Failed to load provider config: %v", err)
	}
	registry := provider.NewRegistry()

	if cfg.ProviderEnabled(whisper.ProviderName) {
		p := whisper.NewProvider(openai.GetClient())
		if err := registry.Register(p.Name(), provider.WithRetry(p, cfg.RetryFor(p.Name()))); err != nil {
			log.Fatalf("Failed to register %s provider: %v", p.Name(), err)
		}
	}
	if cfg.ProviderEnabled(gemini.ProviderName) {
		p, err := gemini.NewProvider(context.Background(), os.Getenv("GEMINI_API_KEY"))
		if err != nil {
			log.Printf("Skipping gemini provider: %v", err)
		} else if err := registry.Register(p.Name(), provider.WithRetry(p, cfg.RetryFor(p.Name()))); err != nil {
			log.Fatalf("Failed to register %s provider: %v", p.Name(), err)
		}
	}

	if cfg.DefaultProvider != "" {
		if err := registry.SetDefault(cfg.DefaultProvider); err != nil {
			log.Fatalf("Default provider %q not available: %v", cfg.DefaultProvider, err)
		}
	}
	return registry
}

func provideAnalyzer() quality.Analyzer {
	return quality.NewAcousticAnalyzer()
}

func provideLimits() config.Limits {
	return config.DefaultLimits()
}

func provideLogger() *slog.Logger {
	return slog.Default()
}

func InitializeVoiceService() *services.VoiceServiceImpl {
	wire.Build(
		services.NewVoiceService,
		provideRecordingDAO,
		provideBlobStore,
		provideProviderRegistry,
		provideAnalyzer,
		provideLimits,
		provideLogger,
	)
	return &services.VoiceServiceImpl{}
}

func InitializeExportService() *services.ExportServiceImpl {
	wire.Build(services.NewExportService, provideRecordingDAO)
	return &services.ExportServiceImpl{}
}
