package config

import (
	"errors"
	"os"
)

// Config holds all the configuration for the application
type Config struct {
	BotToken      string
	DatabasePath  string
	QuestionsPath string
	AudioDir      string
	Debug         bool
}

// Load loads the configuration from environment variables
func Load() (*Config, error) {
	botToken := os.Getenv("BOT_TOKEN")
	if botToken == "" {
		return nil, errors.New("BOT_TOKEN environment variable is required")
	}

	dbPath := os.Getenv("DB_PATH")
	if dbPath == "" {
		dbPath = "./data/auscult.db"
	}

	questionsPath := os.Getenv("QUESTIONS_PATH")
	if questionsPath == "" {
		questionsPath = "./assets/questions.json"
	}

	audioDir := os.Getenv("AUDIO_DIR")
	if audioDir == "" {
		audioDir = "./assets/audio"
	}

	return &Config{
		BotToken:      botToken,
		DatabasePath:  dbPath,
		QuestionsPath: questionsPath,
		AudioDir:      audioDir,
		Debug:         os.Getenv("DEBUG") == "true",
	}, nil
}
