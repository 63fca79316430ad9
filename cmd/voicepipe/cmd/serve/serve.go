package serve

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"voicepipe/internal/api/server"
	v1routes "voicepipe/internal/api/v1/routes"
	"voicepipe/internal/app"
	"voicepipe/internal/config"
)

var (
	host        string
	port        string
	environment string
)

func init() {
	Cmd.Flags().StringVarP(&host, "host", "H", "0.0.0.0", "listen host")
	Cmd.Flags().StringVarP(&port, "port", "p", "8080", "listen port")
	Cmd.Flags().StringVarP(&environment, "env", "e", "development", "environment (development|production)")
}

// Cmd represents the serve command
var Cmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the voice recording HTTP API",
	Long: `Run the voice recording HTTP API.

Requires a reachable MinIO endpoint for audio storage. Rate limiting
activates when REDIS_ADDR is set.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
		slog.SetDefault(logger)

		container := &v1routes.ServiceContainer{
			VoiceService:  app.InitializeVoiceService(),
			ExportService: app.InitializeExportService(),
		}

		var rdb *redis.Client
		if addr := config.GetEnv("REDIS_ADDR", ""); addr != "" {
			rdb = redis.NewClient(&redis.Options{
				Addr:     addr,
				Password: config.GetEnv("REDIS_PASSWORD", ""),
			})
		}

		cfg := server.DefaultConfig()
		cfg.Host = host
		cfg.Port = port
		cfg.Environment = environment

		srv := server.NewServer(cfg, container, rdb, logger)
		if err := srv.Start(); err != nil {
			return err
		}

		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit

		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		return srv.Shutdown(ctx)
	},
}
