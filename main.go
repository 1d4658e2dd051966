package main

import (
	"os"

	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"

	"github.com/avolkov/auscultbot/bot"
	"github.com/avolkov/auscultbot/config"
	"github.com/avolkov/auscultbot/database"
	"github.com/avolkov/auscultbot/questions"
	"github.com/avolkov/auscultbot/stats"
)

func main() {
	// .env is optional, real deployments set the environment directly.
	_ = godotenv.Load()

	log.SetOutput(os.Stdout)
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	log.Info("Starting AuscultBot...")

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if cfg.Debug {
		log.SetLevel(log.DebugLevel)
	}

	db, err := database.New(cfg.DatabasePath)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer db.Close()

	store, err := questions.Load(cfg.QuestionsPath, cfg.AudioDir)
	if err != nil {
		log.Fatalf("Failed to load questions: %v", err)
	}

	tracker := stats.NewTracker(db)

	b, err := bot.New(cfg.BotToken, cfg.Debug, store, tracker)
	if err != nil {
		log.Fatalf("Failed to initialize bot: %v", err)
	}

	log.Info("Bot initialized successfully")
	b.Start()
}
