package bot

import (
	"fmt"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	log "github.com/sirupsen/logrus"

	"github.com/avolkov/auscultbot/questions"
	"github.com/avolkov/auscultbot/stats"
)

const (
	cmdStart = "start"
	cmdNext  = "next"
	cmdStats = "stats"
	cmdTop   = "top"
	cmdReset = "reset"
	cmdHelp  = "help"

	callbackPrefix = "answer:"

	usageText = `I play short auscultation recordings and you guess what you hear.

Commands:
/start - Start the quiz
/next - Get the next sound
/stats - View your statistics
/top - View the leaderboard
/reset - Reset your statistics
/help - Show this message`

	welcomeText = `Welcome to AuscultBot!

I will send you a short heart or lung sound recording with several possible diagnoses. Listen and pick the one you hear. After each answer I show the explanation and your next sound.

Let's begin!`
)

// Sender is the capability slice of the Telegram client the handlers need.
// The real *tgbotapi.BotAPI satisfies it; tests substitute a fake.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

// asked is the question currently awaiting an answer in a chat, with the
// shuffled option order that was actually sent.
type asked struct {
	questionID string
	options    []string
	correct    int // index of the correct label within options
}

// session is the per-chat quiz state. It lives only in memory; restarting
// the bot starts every chat fresh.
type session struct {
	current  *asked
	askedIDs map[string]bool
}

// Bot represents the Telegram bot
type Bot struct {
	api      Sender
	poller   *tgbotapi.BotAPI
	store    *questions.Store
	tracker  *stats.Tracker
	sessions map[int64]*session
}

// New creates a new bot instance connected to the Telegram API.
func New(token string, debug bool, store *questions.Store, tracker *stats.Tracker) (*Bot, error) {
	botAPI, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("failed to create bot API: %w", err)
	}
	botAPI.Debug = debug

	b := newBot(botAPI, store, tracker)
	b.poller = botAPI
	return b, nil
}

func newBot(api Sender, store *questions.Store, tracker *stats.Tracker) *Bot {
	return &Bot{
		api:      api,
		store:    store,
		tracker:  tracker,
		sessions: make(map[int64]*session),
	}
}

// Start starts the bot and listens for updates
func (b *Bot) Start() {
	log.Info("Starting bot polling...")

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := b.poller.GetUpdatesChan(u)

	for update := range updates {
		if update.CallbackQuery != nil {
			b.handleCallback(update.CallbackQuery)
		} else if update.Message != nil {
			b.handleMessage(update.Message)
		}
	}
}

// handleMessage processes incoming messages
func (b *Bot) handleMessage(message *tgbotapi.Message) {
	log.WithFields(log.Fields{
		"chat_id": message.Chat.ID,
		"text":    message.Text,
	}).Info("Received message")

	switch {
	case strings.HasPrefix(message.Text, "/"+cmdStart):
		b.sendMessage(message.Chat.ID, welcomeText)
		b.sendQuestion(message.Chat.ID)
	case strings.HasPrefix(message.Text, "/"+cmdNext):
		b.sendQuestion(message.Chat.ID)
	case strings.HasPrefix(message.Text, "/"+cmdStats):
		b.handleStatsCommand(message.Chat.ID)
	case strings.HasPrefix(message.Text, "/"+cmdTop):
		b.handleTopCommand(message.Chat.ID)
	case strings.HasPrefix(message.Text, "/"+cmdReset):
		b.tracker.Reset(message.Chat.ID)
		b.sendMessage(message.Chat.ID, "Your statistics have been reset. Use /next for a new sound.")
	case strings.HasPrefix(message.Text, "/"+cmdHelp):
		b.sendMessage(message.Chat.ID, usageText)
	default:
		b.sendMessage(message.Chat.ID, usageText)
	}
}

// handleStatsCommand sends the chat's counters, accuracy and the sounds the
// chat most often gets wrong.
func (b *Bot) handleStatsCommand(chatID int64) {
	correct, incorrect := b.tracker.Summary(chatID)
	total := correct + incorrect

	if total == 0 {
		b.sendMessage(chatID, "No answers recorded yet. Use /start to begin.")
		return
	}

	accuracy := float64(correct) / float64(total) * 100

	text := fmt.Sprintf(`📊 Your Statistics:

Sounds Attempted: %d
Correct Answers: %d ✅
Incorrect Answers: %d ❌
Accuracy: %.1f%%`, total, correct, incorrect, accuracy)

	hardest := b.tracker.Hardest(chatID, 3)
	if len(hardest) > 0 {
		text += "\n\nMost Challenging Sounds:\n"
		for i, m := range hardest {
			q, ok := b.store.ByID(m.QuestionID)
			if !ok {
				continue
			}
			text += fmt.Sprintf("%d. %s (missed %d times)\n", i+1, q.CorrectAnswer, m.Misses)
		}
	}

	text += "\n\nUse /top to see how you rank against other listeners."
	b.sendMessage(chatID, text)
}

// handleTopCommand sends the cross-chat ranking. Chats are shown by
// position only; the requesting chat is marked.
func (b *Bot) handleTopCommand(chatID int64) {
	ranked := b.tracker.Leaderboard(10)
	if len(ranked) == 0 {
		b.sendMessage(chatID, "No answers recorded yet. Use /start to begin.")
		return
	}

	text := "🏆 Top Listeners:\n\n"
	for i, s := range ranked {
		total := s.Correct + s.Incorrect
		accuracy := float64(s.Correct) / float64(total) * 100

		medal := "🔸"
		switch i {
		case 0:
			medal = "🥇"
		case 1:
			medal = "🥈"
		case 2:
			medal = "🥉"
		}

		marker := ""
		if s.ChatID == chatID {
			marker = " — you 👤"
		}

		text += fmt.Sprintf("%s %d. %d/%d correct (%.1f%%)%s\n", medal, i+1, s.Correct, total, accuracy, marker)
	}

	b.sendMessage(chatID, text)
}

// sendQuestion serves the next question to the chat: a voice clip followed
// by shuffled answer buttons. It replaces any question already outstanding.
func (b *Bot) sendQuestion(chatID int64) {
	sess := b.session(chatID)

	q := b.store.PickRandom(sess.askedIDs)
	sess.askedIDs[q.ID] = true

	opts := b.store.Options(q)
	correct := 0
	for i, o := range opts {
		if o == q.CorrectAnswer {
			correct = i
			break
		}
	}
	sess.current = &asked{questionID: q.ID, options: opts, correct: correct}

	log.WithFields(log.Fields{
		"chat_id":     chatID,
		"question_id": q.ID,
	}).Info("Serving question")

	b.sendVoice(chatID, b.store.AudioPath(q), q.Prompt)

	var keyboard [][]tgbotapi.InlineKeyboardButton
	for i, opt := range opts {
		callbackData := fmt.Sprintf("%s%s:%d", callbackPrefix, q.ID, i)
		button := tgbotapi.NewInlineKeyboardButtonData(opt, callbackData)
		keyboard = append(keyboard, []tgbotapi.InlineKeyboardButton{button})
	}

	msg := tgbotapi.NewMessage(chatID, "What do you hear?")
	msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(keyboard...)
	if _, err := b.api.Send(msg); err != nil {
		log.WithError(err).Error("Error sending answer options")
	}
}

// handleCallback processes callback queries from inline answer buttons.
// Callbacks that don't match the chat's current question are acknowledged
// and otherwise ignored.
func (b *Bot) handleCallback(callback *tgbotapi.CallbackQuery) {
	b.answerCallback(callback.ID)

	if callback.Message == nil || !strings.HasPrefix(callback.Data, callbackPrefix) {
		return
	}
	chatID := callback.Message.Chat.ID

	parts := strings.Split(strings.TrimPrefix(callback.Data, callbackPrefix), ":")
	if len(parts) != 2 {
		log.WithField("data", callback.Data).Debug("Malformed callback data")
		return
	}
	questionID := parts[0]
	optionIndex, err := strconv.Atoi(parts[1])
	if err != nil {
		log.WithField("data", callback.Data).Debug("Malformed option index")
		return
	}

	sess, ok := b.sessions[chatID]
	if !ok || sess.current == nil || sess.current.questionID != questionID {
		log.WithFields(log.Fields{
			"chat_id":     chatID,
			"question_id": questionID,
		}).Debug("Stale callback, ignoring")
		return
	}
	cur := sess.current
	if optionIndex < 0 || optionIndex >= len(cur.options) {
		log.WithField("data", callback.Data).Debug("Option index out of range")
		return
	}

	// Consume the question so repeated taps on the same keyboard are stale.
	sess.current = nil

	chosen := cur.options[optionIndex]
	isCorrect := optionIndex == cur.correct

	b.tracker.Record(chatID, questionID, isCorrect)

	question, _ := b.store.ByID(questionID)
	if isCorrect {
		text := fmt.Sprintf("✅ Correct, it was %s!", question.CorrectAnswer)
		if question.Explanation != "" {
			text += "\n\n" + question.Explanation
		}
		b.sendMessage(chatID, text)
	} else {
		text := fmt.Sprintf("❌ You picked %s, but this was %s.", chosen, question.CorrectAnswer)
		if question.Explanation != "" {
			text += "\n\n" + question.Explanation
		}
		b.sendMessage(chatID, text)

		// Let the user hear what their pick actually sounds like.
		if wrong, ok := b.store.ByLabel(chosen); ok {
			b.sendVoice(chatID, b.store.AudioPath(wrong), fmt.Sprintf("This is how %s sounds:", chosen))
		}
	}

	b.sendQuestion(chatID)
}

func (b *Bot) session(chatID int64) *session {
	sess, ok := b.sessions[chatID]
	if !ok {
		sess = &session{askedIDs: make(map[string]bool)}
		b.sessions[chatID] = sess
	}
	return sess
}

// sendMessage sends a text message
func (b *Bot) sendMessage(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	if _, err := b.api.Send(msg); err != nil {
		log.WithError(err).WithField("chat_id", chatID).Error("Error sending message")
	}
}

// sendVoice sends an audio clip as a voice message with an optional caption.
func (b *Bot) sendVoice(chatID int64, path, caption string) {
	voice := tgbotapi.NewVoice(chatID, tgbotapi.FilePath(path))
	voice.Caption = caption

	if _, err := b.api.Send(voice); err != nil {
		log.WithError(err).WithField("path", path).Error("Error sending voice message")
		b.sendMessage(chatID, "Sorry, the audio clip could not be sent. Use /next to try another one.")
	}
}

// answerCallback acknowledges a callback query so the client stops showing
// the loading spinner.
func (b *Bot) answerCallback(callbackID string) {
	callback := tgbotapi.NewCallback(callbackID, "")
	if _, err := b.api.Request(callback); err != nil {
		log.WithError(err).Error("Error answering callback query")
	}
}
