package main

import (
	"context"
	"log"

	"github.com/shestoi/warehouse/internal/app"
	"github.com/shestoi/warehouse/internal/config"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	cfg.Log()

	ctx := context.Background()

	// Build собирает граф зависимостей и накатывает миграции
	application, err := app.Build(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to build app: %v", err)
	}

	if err := application.Run(ctx); err != nil {
		log.Fatalf("Service error: %v", err)
	}
}
