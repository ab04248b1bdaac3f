package main

import (
	"log"

	"promodeals-radar/app"
	"promodeals-radar/config"
)

func main() {
	cfg := config.LoadFromEnv()

	if cfg.TelegramBotToken == "" {
		log.Fatal("❌ TELEGRAM_BOT_TOKEN is required")
	}

	if err := app.New(cfg).Start(); err != nil {
		log.Fatalf("❌ %v", err)
	}
}
