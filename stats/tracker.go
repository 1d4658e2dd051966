package stats

import (
	"sort"

	log "github.com/sirupsen/logrus"

	"github.com/avolkov/auscultbot/models"
)

// Store is the slice of the persistence layer the tracker needs.
type Store interface {
	SaveAnswer(chatID int64, questionID string, correct bool) error
	AllStats() ([]models.ChatStats, error)
	ResetChat(chatID int64) error
	HardestQuestions(chatID int64, limit int) ([]models.QuestionMisses, error)
}

// Tracker keeps per-chat answer counters in memory and mirrors them to the
// store. The in-memory counters are authoritative for the running process:
// a failing store costs durability, not correctness.
//
// Updates are serialized by the bot's single update loop, so no locking is
// needed here.
type Tracker struct {
	store  Store
	counts map[int64]*models.ChatStats
}

// NewTracker creates a tracker seeded from previously persisted answers.
// A seeding failure is logged and the tracker starts empty.
func NewTracker(store Store) *Tracker {
	t := &Tracker{
		store:  store,
		counts: make(map[int64]*models.ChatStats),
	}

	seeded, err := store.AllStats()
	if err != nil {
		log.WithError(err).Warn("Failed to load persisted stats, starting empty")
		return t
	}
	for _, s := range seeded {
		c := s
		t.counts[s.ChatID] = &c
	}
	return t
}

// Record increments the chat's counter for an answered question and attempts
// to persist it. Persistence failures are logged and skipped.
func (t *Tracker) Record(chatID int64, questionID string, correct bool) {
	c := t.chat(chatID)
	if correct {
		c.Correct++
	} else {
		c.Incorrect++
	}

	if err := t.store.SaveAnswer(chatID, questionID, correct); err != nil {
		log.WithError(err).WithFields(log.Fields{
			"chat_id":     chatID,
			"question_id": questionID,
		}).Error("Failed to persist answer")
	}
}

// Summary returns the chat's counters.
func (t *Tracker) Summary(chatID int64) (correct, incorrect int) {
	c := t.chat(chatID)
	return c.Correct, c.Incorrect
}

// Reset zeroes the chat's counters in memory and in the store.
func (t *Tracker) Reset(chatID int64) {
	c := t.chat(chatID)
	c.Correct = 0
	c.Incorrect = 0

	if err := t.store.ResetChat(chatID); err != nil {
		log.WithError(err).WithField("chat_id", chatID).Error("Failed to reset persisted stats")
	}
}

// Leaderboard returns chats with at least one answer ranked by correct
// answers, ties broken by total answers. Reads the in-memory counters, so
// the ranking reflects the running process even when persistence is down.
func (t *Tracker) Leaderboard(limit int) []models.ChatStats {
	ranked := make([]models.ChatStats, 0, len(t.counts))
	for _, c := range t.counts {
		if c.Correct+c.Incorrect > 0 {
			ranked = append(ranked, *c)
		}
	}

	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].Correct != ranked[j].Correct {
			return ranked[i].Correct > ranked[j].Correct
		}
		return ranked[i].Correct+ranked[i].Incorrect > ranked[j].Correct+ranked[j].Incorrect
	})

	if limit > 0 && len(ranked) > limit {
		ranked = ranked[:limit]
	}
	return ranked
}

// Hardest returns the questions the chat most often gets wrong. Best effort:
// a store failure is logged and yields an empty list.
func (t *Tracker) Hardest(chatID int64, limit int) []models.QuestionMisses {
	misses, err := t.store.HardestQuestions(chatID, limit)
	if err != nil {
		log.WithError(err).WithField("chat_id", chatID).Error("Failed to load hardest questions")
		return nil
	}
	return misses
}

func (t *Tracker) chat(chatID int64) *models.ChatStats {
	c, ok := t.counts[chatID]
	if !ok {
		c = &models.ChatStats{ChatID: chatID}
		t.counts[chatID] = c
	}
	return c
}
