package bot

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/avolkov/auscultbot/models"
	"github.com/avolkov/auscultbot/questions"
	"github.com/avolkov/auscultbot/stats"
)

// fakeSender records everything the bot would send to Telegram.
type fakeSender struct {
	sent     []tgbotapi.Chattable
	requests []tgbotapi.Chattable
}

func (f *fakeSender) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	f.sent = append(f.sent, c)
	return tgbotapi.Message{}, nil
}

func (f *fakeSender) Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	f.requests = append(f.requests, c)
	return &tgbotapi.APIResponse{Ok: true}, nil
}

func (f *fakeSender) messages() []tgbotapi.MessageConfig {
	var msgs []tgbotapi.MessageConfig
	for _, c := range f.sent {
		if m, ok := c.(tgbotapi.MessageConfig); ok {
			msgs = append(msgs, m)
		}
	}
	return msgs
}

func (f *fakeSender) voices() []tgbotapi.VoiceConfig {
	var vs []tgbotapi.VoiceConfig
	for _, c := range f.sent {
		if v, ok := c.(tgbotapi.VoiceConfig); ok {
			vs = append(vs, v)
		}
	}
	return vs
}

// memStore is a no-op stats.Store so tests need no database.
type memStore struct{}

func (m *memStore) SaveAnswer(chatID int64, questionID string, correct bool) error { return nil }
func (m *memStore) AllStats() ([]models.ChatStats, error)                          { return nil, nil }
func (m *memStore) ResetChat(chatID int64) error                                   { return nil }
func (m *memStore) HardestQuestions(chatID int64, limit int) ([]models.QuestionMisses, error) {
	return nil, nil
}

// The bank is closed over the same three labels so every wrongly chosen
// distractor is some other question's correct answer.
func writeTestBank(t *testing.T) *questions.Store {
	t.Helper()

	bank := []models.Question{
		{
			ID:            "s1",
			CorrectAnswer: "Normal heart sound",
			Distractors:   []string{"Mitral stenosis", "Wheezing"},
			AudioPaths:    []string{"s1.ogg"},
			Explanation:   "Regular lub-dub with no murmurs.",
		},
		{
			ID:            "s2",
			CorrectAnswer: "Mitral stenosis",
			Distractors:   []string{"Normal heart sound", "Wheezing"},
			AudioPaths:    []string{"s2.ogg"},
		},
		{
			ID:            "s3",
			CorrectAnswer: "Wheezing",
			Distractors:   []string{"Normal heart sound", "Mitral stenosis"},
			AudioPaths:    []string{"s3.ogg"},
		},
	}

	dir := t.TempDir()
	audioDir := filepath.Join(dir, "audio")
	require.NoError(t, os.Mkdir(audioDir, 0o755))
	for _, q := range bank {
		for _, p := range q.AudioPaths {
			require.NoError(t, os.WriteFile(filepath.Join(audioDir, p), []byte("ogg"), 0o644))
		}
	}

	data, err := json.Marshal(bank)
	require.NoError(t, err)
	path := filepath.Join(dir, "questions.json")
	require.NoError(t, os.WriteFile(path, data, 0o644))

	store, err := questions.Load(path, audioDir)
	require.NoError(t, err)
	return store
}

func newTestBot(t *testing.T) (*Bot, *fakeSender, *stats.Tracker) {
	t.Helper()

	api := &fakeSender{}
	tracker := stats.NewTracker(&memStore{})
	return newBot(api, writeTestBank(t), tracker), api, tracker
}

func message(chatID int64, text string) *tgbotapi.Message {
	return &tgbotapi.Message{
		Text: text,
		Chat: &tgbotapi.Chat{ID: chatID},
	}
}

func answerCallback(chatID int64, questionID string, option int) *tgbotapi.CallbackQuery {
	return &tgbotapi.CallbackQuery{
		ID:      "cb",
		Data:    fmt.Sprintf("%s%s:%d", callbackPrefix, questionID, option),
		Message: &tgbotapi.Message{Chat: &tgbotapi.Chat{ID: chatID}},
	}
}

func TestStartServesQuestion(t *testing.T) {
	b, api, _ := newTestBot(t)

	b.handleMessage(message(1, "/start"))

	msgs := api.messages()
	require.Len(t, msgs, 2)
	assert.Contains(t, msgs[0].Text, "Welcome")
	assert.Equal(t, "What do you hear?", msgs[1].Text)

	keyboard, ok := msgs[1].ReplyMarkup.(tgbotapi.InlineKeyboardMarkup)
	require.True(t, ok)
	assert.Len(t, keyboard.InlineKeyboard, 3)

	require.Len(t, api.voices(), 1)

	sess := b.sessions[1]
	require.NotNil(t, sess)
	require.NotNil(t, sess.current)
	assert.True(t, sess.askedIDs[sess.current.questionID])
}

func TestCorrectAnswer(t *testing.T) {
	b, api, tracker := newTestBot(t)

	b.handleMessage(message(1, "/next"))
	cur := b.sessions[1].current
	require.NotNil(t, cur)
	firstID := cur.questionID

	b.handleCallback(answerCallback(1, cur.questionID, cur.correct))

	correct, incorrect := tracker.Summary(1)
	assert.Equal(t, 1, correct)
	assert.Equal(t, 0, incorrect)

	var feedback bool
	for _, m := range api.messages() {
		if strings.Contains(m.Text, "✅ Correct") {
			feedback = true
		}
	}
	assert.True(t, feedback, "expected a correctness message")

	// The session is immediately re-armed with a different question.
	next := b.sessions[1].current
	require.NotNil(t, next)
	assert.NotEqual(t, firstID, next.questionID)
}

func TestWrongAnswerPlaysChosenSound(t *testing.T) {
	b, api, tracker := newTestBot(t)

	b.handleMessage(message(1, "/next"))
	cur := b.sessions[1].current
	require.NotNil(t, cur)

	wrong := (cur.correct + 1) % len(cur.options)
	b.handleCallback(answerCallback(1, cur.questionID, wrong))

	correct, incorrect := tracker.Summary(1)
	assert.Equal(t, 0, correct)
	assert.Equal(t, 1, incorrect)

	var feedback bool
	for _, m := range api.messages() {
		if strings.Contains(m.Text, "❌ You picked") {
			feedback = true
		}
	}
	assert.True(t, feedback, "expected a wrong-answer message")

	// Question voice, chosen-sound voice, next-question voice.
	assert.Len(t, api.voices(), 3)
}

func TestStaleCallbackIsSilent(t *testing.T) {
	b, api, tracker := newTestBot(t)

	b.handleMessage(message(1, "/next"))
	cur := b.sessions[1].current
	require.NotNil(t, cur)

	tests := []struct {
		name string
		cb   *tgbotapi.CallbackQuery
	}{
		{"unknown question id", answerCallback(1, "nope", 0)},
		{"option index out of range", answerCallback(1, cur.questionID, 42)},
		{"negative option index", answerCallback(1, cur.questionID, -1)},
		{"chat without session", answerCallback(2, cur.questionID, 0)},
		{"malformed data", &tgbotapi.CallbackQuery{
			ID:      "cb",
			Data:    "answer:garbage",
			Message: &tgbotapi.Message{Chat: &tgbotapi.Chat{ID: 1}},
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sentBefore := len(api.sent)
			requestsBefore := len(api.requests)

			b.handleCallback(tt.cb)

			correct, incorrect := tracker.Summary(1)
			assert.Zero(t, correct)
			assert.Zero(t, incorrect)
			assert.Len(t, api.sent, sentBefore, "stale callback must not send messages")
			// The callback itself is still acknowledged.
			assert.Len(t, api.requests, requestsBefore+1)
			assert.Same(t, cur, b.sessions[1].current)
		})
	}
}

func TestRepeatedTapIsStale(t *testing.T) {
	b, api, tracker := newTestBot(t)

	b.handleMessage(message(1, "/next"))
	cur := b.sessions[1].current
	cb := answerCallback(1, cur.questionID, cur.correct)

	b.handleCallback(cb)
	sentAfterFirst := len(api.sent)

	// Second tap on the old keyboard: question already consumed.
	b.handleCallback(cb)

	correct, _ := tracker.Summary(1)
	assert.Equal(t, 1, correct)
	assert.Len(t, api.sent, sentAfterFirst)
}

func TestStatsCommand(t *testing.T) {
	b, api, tracker := newTestBot(t)

	tracker.Record(1, "s1", true)
	tracker.Record(1, "s2", false)
	tracker.Record(1, "s3", false)

	b.handleMessage(message(1, "/stats"))

	msgs := api.messages()
	require.Len(t, msgs, 1)
	assert.Contains(t, msgs[0].Text, "Sounds Attempted: 3")
	assert.Contains(t, msgs[0].Text, "Correct Answers: 1")
	assert.Contains(t, msgs[0].Text, "Incorrect Answers: 2")
	assert.Contains(t, msgs[0].Text, "33.3%")
}

func TestTopCommand(t *testing.T) {
	b, api, tracker := newTestBot(t)

	tracker.Record(1, "s1", true)
	tracker.Record(1, "s2", false)
	tracker.Record(2, "s1", true)
	tracker.Record(2, "s2", true)

	b.handleMessage(message(1, "/top"))

	msgs := api.messages()
	require.Len(t, msgs, 1)
	assert.Contains(t, msgs[0].Text, "Top Listeners")

	// Chat 2 leads, chat 1 is marked as the requester.
	lines := strings.Split(msgs[0].Text, "\n")
	require.GreaterOrEqual(t, len(lines), 4)
	assert.Contains(t, lines[2], "🥇 1. 2/2 correct")
	assert.Contains(t, lines[3], "🥈 2. 1/2 correct")
	assert.Contains(t, lines[3], "you 👤")
	assert.NotContains(t, lines[2], "you 👤")
}

func TestTopCommandEmpty(t *testing.T) {
	b, api, _ := newTestBot(t)

	b.handleMessage(message(1, "/top"))

	msgs := api.messages()
	require.Len(t, msgs, 1)
	assert.Contains(t, msgs[0].Text, "No answers recorded yet")
}

func TestStatsCommandEmpty(t *testing.T) {
	b, api, _ := newTestBot(t)

	b.handleMessage(message(1, "/stats"))

	msgs := api.messages()
	require.Len(t, msgs, 1)
	assert.Contains(t, msgs[0].Text, "No answers recorded yet")
}

func TestResetCommand(t *testing.T) {
	b, api, tracker := newTestBot(t)

	tracker.Record(1, "s1", true)
	b.handleMessage(message(1, "/reset"))

	correct, incorrect := tracker.Summary(1)
	assert.Zero(t, correct)
	assert.Zero(t, incorrect)

	msgs := api.messages()
	require.Len(t, msgs, 1)
	assert.Contains(t, msgs[0].Text, "reset")
}

func TestUnknownCommandSendsUsage(t *testing.T) {
	b, api, _ := newTestBot(t)

	b.handleMessage(message(1, "/frobnicate"))

	msgs := api.messages()
	require.Len(t, msgs, 1)
	assert.Contains(t, msgs[0].Text, "Commands:")
	assert.Nil(t, b.sessions[1])
}
