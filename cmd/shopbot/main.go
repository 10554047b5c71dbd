// Command shopbot runs the Telegram shop bot.
//
// Configuration is read from the YAML file named by CONFIG_PATH (default
// config.yaml) and overridden by environment variables; a .env file in the
// working directory is loaded first when present.
package main

import (
	"context"
	"log"

	"github.com/joho/godotenv"

	corecmd "github.com/m3rciful/shopbot/core/cmd"
	"github.com/m3rciful/shopbot/internal/app"
)

func main() {
	_ = godotenv.Load()

	err := corecmd.Run(corecmd.Options{
		DefaultConfigPath: "config.yaml",
		LoadConfig: func(path string) (corecmd.ConfigCarrier, error) {
			return app.Load(path)
		},
		Bootstrap: func(ctx context.Context, cfg corecmd.ConfigCarrier) (corecmd.TelegramApp, error) {
			return app.Bootstrap(ctx, cfg)
		},
	})
	if err != nil {
		log.Fatalf("shopbot: %v", err)
	}
}
