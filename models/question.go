package models

// Question is one entry in the question bank, loaded from questions.json.
// A question may carry several recordings of the same sound; one is picked
// at random each time the question is served.
type Question struct {
	ID            string   `json:"id"`
	Prompt        string   `json:"prompt,omitempty"`
	CorrectAnswer string   `json:"correct_answer"`
	Distractors   []string `json:"distractors"`
	AudioPaths    []string `json:"audio_paths"`
	Explanation   string   `json:"explanation,omitempty"`
}

// ChatStats holds the answer counters for one chat.
type ChatStats struct {
	ChatID    int64
	Correct   int
	Incorrect int
}

// QuestionMisses pairs a question id with how often a chat answered it wrong.
type QuestionMisses struct {
	QuestionID string
	Misses     int
}
