// cmd/purchase-gateway/main.go
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/YaganovValera/purchase-pipeline/internal/gateway/app"
	"github.com/YaganovValera/purchase-pipeline/internal/gateway/config"
	"github.com/YaganovValera/purchase-pipeline/pkg/logger"
)

func main() {
	var cfgPath string

	root := &cobra.Command{
		Use:   "purchase-gateway",
		Short: "Public gateway for placing purchase orders",
		RunE: func(cmd *cobra.Command, args []string) error {
			// 1. Конфиг
			cfg, err := config.Load(cfgPath)
			if err != nil {
				return fmt.Errorf("config: %w", err)
			}
			cfg.Print()

			// 2. Логгер
			log, err := logger.New(logger.Config{
				Level:   cfg.Logging.Level,
				DevMode: cfg.Logging.DevMode,
			})
			if err != nil {
				return fmt.Errorf("logger: %w", err)
			}
			defer log.Sync()

			// 3. Контекст с отменой по сигналам
			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			log.Sugar().Infow("starting service",
				"service.name", cfg.ServiceName,
				"service.version", cfg.ServiceVersion,
			)

			return app.Run(ctx, cfg, log)
		},
	}

	root.Flags().StringVar(&cfgPath, "config", "", "path to config file (optional, env-only without it)")

	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "purchase-gateway: %v\n", err)
		os.Exit(1)
	}
}
