package mcqstudio

import "strings"

// Question is a single multiple choice question under review
type Question struct {
	ID           int         `json:"id"`
	Text         string      `json:"text"`
	Options      []string    `json:"options"`
	CorrectIndex int         `json:"correct_index"` // 0-based index into Options
	Difficulty   Difficulty  `json:"difficulty"`
	Type         string      `json:"type,omitempty"`
	ReviewState  ReviewState `json:"review_state"`

	// Editing is only filled in on snapshots handed out by the Store.
	Editing bool `json:"editing"`
}

// CorrectOption returns the text of the correct option
func (q Question) CorrectOption() string {
	if q.CorrectIndex < 0 || q.CorrectIndex >= len(q.Options) {
		return ""
	}
	return q.Options[q.CorrectIndex]
}

func (q Question) clone() Question {
	c := q
	c.Options = append([]string(nil), q.Options...)
	return c
}

// Difficulty is the closed set of difficulty levels
type Difficulty string

const (
	DifficultyEasy   Difficulty = "Easy"
	DifficultyMedium Difficulty = "Medium"
	DifficultyHard   Difficulty = "Hard"
)

// Difficulties lists every difficulty in display order
var Difficulties = []Difficulty{DifficultyEasy, DifficultyMedium, DifficultyHard}

// ParseDifficulty normalizes a generator label such as "easy" or " HARD ".
func ParseDifficulty(label string) (Difficulty, bool) {
	switch strings.ToLower(strings.TrimSpace(label)) {
	case "easy":
		return DifficultyEasy, true
	case "medium":
		return DifficultyMedium, true
	case "hard":
		return DifficultyHard, true
	}
	return "", false
}

// ReviewState represents where a question is in the review process
type ReviewState string

const (
	StateUnreviewed ReviewState = "unreviewed"
	StateAccepted   ReviewState = "accepted"
	StateRejected   ReviewState = "rejected"
	StatePending    ReviewState = "pending"
)

// ReviewStates lists every review state
var ReviewStates = []ReviewState{StateUnreviewed, StateAccepted, StateRejected, StatePending}

// ParseReviewState accepts the state names plus the "ok"/"not-ok" aliases
// used by the review buttons.
func ParseReviewState(s string) (ReviewState, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "unreviewed":
		return StateUnreviewed, true
	case "accepted", "ok":
		return StateAccepted, true
	case "rejected", "not-ok":
		return StateRejected, true
	case "pending":
		return StatePending, true
	}
	return "", false
}

// RawQuestion is one record as returned by the generation service
type RawQuestion struct {
	Question   string   `json:"question"`
	Type       string   `json:"type,omitempty"`
	Options    []string `json:"options"`
	Answer     string   `json:"answer"`
	Difficulty string   `json:"difficulty"`
}

// EditDraft is a scratch copy of a question's editable fields
type EditDraft struct {
	QuestionID   int        `json:"question_id"`
	Text         string     `json:"text" validate:"notblank"`
	Options      []string   `json:"options" validate:"min=2,dive,notblank"`
	CorrectIndex int        `json:"correct_index" validate:"gte=0"`
	Difficulty   Difficulty `json:"difficulty" validate:"oneof=Easy Medium Hard"`
}

func (d EditDraft) clone() EditDraft {
	c := d
	c.Options = append([]string(nil), d.Options...)
	return c
}

// Stats holds the derived counts shown above the review list
type Stats struct {
	Total      int                 `json:"total"`
	Difficulty map[Difficulty]int  `json:"difficulty"`
	Review     map[ReviewState]int `json:"review"`
}

// Upload is a document submitted for question generation
type Upload struct {
	Filename      string `json:"filename"`
	Data          []byte `json:"-"`
	QuestionCount int    `json:"question_count"`
}
