package database

import (
	"database/sql"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/avolkov/auscultbot/models"
)

// DB handles all database operations
type DB struct {
	conn *sql.DB
}

// New creates a new database connection and initializes tables
func New(dbPath string) (*DB, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, err
	}

	if err = db.Ping(); err != nil {
		return nil, err
	}

	if err = createTables(db); err != nil {
		return nil, err
	}

	return &DB{conn: db}, nil
}

// Close closes the database connection
func (db *DB) Close() error {
	return db.conn.Close()
}

// createTables creates the necessary tables if they don't exist
func createTables(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS answers (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			chat_id INTEGER NOT NULL,
			question_id TEXT NOT NULL,
			correct BOOLEAN NOT NULL,
			timestamp INTEGER NOT NULL
		)
	`)
	return err
}

// SaveAnswer records one answered question for a chat.
func (db *DB) SaveAnswer(chatID int64, questionID string, correct bool) error {
	_, err := db.conn.Exec(
		"INSERT INTO answers (chat_id, question_id, correct, timestamp) VALUES (?, ?, ?, ?)",
		chatID, questionID, correct, time.Now().Unix(),
	)
	return err
}

// ChatStats returns the answer counters for one chat.
func (db *DB) ChatStats(chatID int64) (models.ChatStats, error) {
	stats := models.ChatStats{ChatID: chatID}

	err := db.conn.QueryRow(
		"SELECT COUNT(*) FROM answers WHERE chat_id = ? AND correct = 1",
		chatID,
	).Scan(&stats.Correct)
	if err != nil {
		return stats, err
	}

	err = db.conn.QueryRow(
		"SELECT COUNT(*) FROM answers WHERE chat_id = ? AND correct = 0",
		chatID,
	).Scan(&stats.Incorrect)
	return stats, err
}

// AllStats returns the counters for every chat that has answered at least
// one question. Used to seed the in-memory tracker at startup.
func (db *DB) AllStats() ([]models.ChatStats, error) {
	rows, err := db.conn.Query(`
		SELECT chat_id,
		       SUM(CASE WHEN correct = 1 THEN 1 ELSE 0 END),
		       SUM(CASE WHEN correct = 0 THEN 1 ELSE 0 END)
		FROM answers
		GROUP BY chat_id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []models.ChatStats
	for rows.Next() {
		var s models.ChatStats
		if err := rows.Scan(&s.ChatID, &s.Correct, &s.Incorrect); err != nil {
			return nil, err
		}
		result = append(result, s)
	}
	return result, rows.Err()
}

// ResetChat deletes all recorded answers for a chat.
func (db *DB) ResetChat(chatID int64) error {
	_, err := db.conn.Exec("DELETE FROM answers WHERE chat_id = ?", chatID)
	return err
}

// HardestQuestions returns the questions the chat most frequently answered
// incorrectly, most-missed first.
func (db *DB) HardestQuestions(chatID int64, limit int) ([]models.QuestionMisses, error) {
	rows, err := db.conn.Query(`
		SELECT question_id, COUNT(*) as misses
		FROM answers
		WHERE chat_id = ? AND correct = 0
		GROUP BY question_id
		ORDER BY misses DESC
		LIMIT ?
	`, chatID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []models.QuestionMisses
	for rows.Next() {
		var m models.QuestionMisses
		if err := rows.Scan(&m.QuestionID, &m.Misses); err != nil {
			return nil, err
		}
		result = append(result, m)
	}
	return result, rows.Err()
}
