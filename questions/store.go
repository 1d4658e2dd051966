package questions

import (
	"encoding/json"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"strings"

	log "github.com/sirupsen/logrus"

	"github.com/avolkov/auscultbot/models"
)

// Store holds the question bank. It is read-only after Load, so handlers can
// share it without locking.
type Store struct {
	questions []models.Question
	byID      map[string]int
	audioDir  string
}

// Load reads the question definitions from a JSON file and verifies that
// every referenced audio clip exists under audioDir. Any problem with the
// bank is a startup error: the bot refuses to run with broken questions.
func Load(path, audioDir string) (*Store, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read question file: %w", err)
	}

	var qs []models.Question
	if err := json.Unmarshal(data, &qs); err != nil {
		return nil, fmt.Errorf("failed to parse question file %s: %w", path, err)
	}
	if len(qs) == 0 {
		return nil, fmt.Errorf("question file %s contains no questions", path)
	}

	s := &Store{
		questions: qs,
		byID:      make(map[string]int, len(qs)),
		audioDir:  audioDir,
	}

	for i, q := range qs {
		if err := validate(q); err != nil {
			return nil, fmt.Errorf("invalid question %q: %w", q.ID, err)
		}
		if _, dup := s.byID[q.ID]; dup {
			return nil, fmt.Errorf("duplicate question id %q", q.ID)
		}
		s.byID[q.ID] = i

		for _, p := range q.AudioPaths {
			full := filepath.Join(audioDir, p)
			if _, err := os.Stat(full); err != nil {
				return nil, fmt.Errorf("question %q references missing audio file %s: %w", q.ID, full, err)
			}
		}
	}

	log.WithField("count", len(qs)).Info("Loaded question bank")
	return s, nil
}

func validate(q models.Question) error {
	if q.ID == "" {
		return fmt.Errorf("empty id")
	}
	// Question ids travel inside colon-separated callback data.
	if strings.Contains(q.ID, ":") {
		return fmt.Errorf("id must not contain ':'")
	}
	if q.CorrectAnswer == "" {
		return fmt.Errorf("empty correct answer")
	}
	if len(q.Distractors) == 0 {
		return fmt.Errorf("no distractors")
	}
	seen := make(map[string]bool, len(q.Distractors))
	for _, d := range q.Distractors {
		if d == q.CorrectAnswer {
			return fmt.Errorf("correct answer %q listed among distractors", q.CorrectAnswer)
		}
		if seen[d] {
			return fmt.Errorf("duplicate distractor %q", d)
		}
		seen[d] = true
	}
	if len(q.AudioPaths) == 0 {
		return fmt.Errorf("no audio paths")
	}
	return nil
}

// Len returns the number of questions in the bank.
func (s *Store) Len() int {
	return len(s.questions)
}

// ByID looks a question up by its id.
func (s *Store) ByID(id string) (models.Question, bool) {
	i, ok := s.byID[id]
	if !ok {
		return models.Question{}, false
	}
	return s.questions[i], true
}

// ByLabel finds the question whose correct answer matches label. Used to
// play back the sound a user wrongly picked.
func (s *Store) ByLabel(label string) (models.Question, bool) {
	for _, q := range s.questions {
		if q.CorrectAnswer == label {
			return q, true
		}
	}
	return models.Question{}, false
}

// PickRandom returns a random question whose id is not in excluding. Once
// every question has been served the excluded set is cleared and the pick is
// made over the whole bank again, so the quiz never dead-ends.
func (s *Store) PickRandom(excluding map[string]bool) models.Question {
	candidates := make([]int, 0, len(s.questions))
	for i, q := range s.questions {
		if !excluding[q.ID] {
			candidates = append(candidates, i)
		}
	}

	if len(candidates) == 0 {
		log.Debug("Question bank exhausted, resetting asked set")
		for id := range excluding {
			delete(excluding, id)
		}
		for i := range s.questions {
			candidates = append(candidates, i)
		}
	}

	return s.questions[candidates[rand.Intn(len(candidates))]]
}

// Options returns the answer labels for q (correct answer plus distractors)
// in randomized order, so the position of the correct label carries no
// signal.
func (s *Store) Options(q models.Question) []string {
	opts := make([]string, 0, len(q.Distractors)+1)
	opts = append(opts, q.CorrectAnswer)
	opts = append(opts, q.Distractors...)
	rand.Shuffle(len(opts), func(i, j int) {
		opts[i], opts[j] = opts[j], opts[i]
	})
	return opts
}

// AudioPath picks one of the question's recordings at random and returns its
// full path.
func (s *Store) AudioPath(q models.Question) string {
	p := q.AudioPaths[rand.Intn(len(q.AudioPaths))]
	return filepath.Join(s.audioDir, p)
}
