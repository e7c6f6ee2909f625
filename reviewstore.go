package mcqstudio

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

// Store owns the questions of one upload while they are reviewed. At most
// one question is being edited at any time; the active draft is the only
// place that fact is recorded.
type Store struct {
	mu        sync.Mutex
	questions *collection
	draft     *EditDraft
}

// Ingest builds a Store from generation records. Ids are assigned from 1 in
// source order. A single bad record fails the whole batch.
func Ingest(records []RawQuestion) (*Store, error) {
	const op = "ingest"

	if len(records) == 0 {
		return nil, newError(CodeDataIntegrity, op, "generation returned no questions")
	}

	c := newCollection(len(records))
	for i, r := range records {
		q, err := questionFromRecord(i+1, r)
		if err != nil {
			return nil, err
		}
		c.add(q)
	}

	VerboseLog("ingested questions", "count", c.size())
	return &Store{questions: c}, nil
}

func questionFromRecord(id int, r RawQuestion) (*Question, error) {
	const op = "ingest"

	text := strings.TrimSpace(r.Question)
	if text == "" {
		return nil, newError(CodeDataIntegrity, op, "record %d: empty question text", id)
	}
	if len(r.Options) < 2 {
		return nil, newError(CodeDataIntegrity, op, "record %d: need at least 2 options, got %d", id, len(r.Options))
	}

	options := make([]string, len(r.Options))
	seen := make(map[string]bool, len(r.Options))
	for i, opt := range r.Options {
		opt = strings.TrimSpace(opt)
		if opt == "" {
			return nil, newError(CodeDataIntegrity, op, "record %d: option %d is empty", id, i+1)
		}
		if seen[opt] {
			return nil, newError(CodeDataIntegrity, op, "record %d: duplicate option %q", id, opt)
		}
		seen[opt] = true
		options[i] = opt
	}

	answer := strings.TrimSpace(r.Answer)
	correct := -1
	for i, opt := range options {
		if opt == answer {
			correct = i
			break
		}
	}
	if correct < 0 {
		return nil, newError(CodeDataIntegrity, op, "record %d: answer %q is not one of the options", id, r.Answer)
	}

	difficulty, ok := ParseDifficulty(r.Difficulty)
	if !ok {
		return nil, newError(CodeDataIntegrity, op, "record %d: unrecognized difficulty %q", id, r.Difficulty)
	}

	return &Question{
		ID:           id,
		Text:         text,
		Options:      options,
		CorrectIndex: correct,
		Difficulty:   difficulty,
		Type:         strings.TrimSpace(r.Type),
		ReviewState:  StateUnreviewed,
	}, nil
}

// Len returns the number of questions left in the collection
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.questions.size()
}

// Questions returns snapshots of every question in collection order
func (s *Store) Questions() []Question {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Question, 0, s.questions.size())
	s.questions.each(func(q *Question) {
		out = append(out, s.snapshot(q))
	})
	return out
}

// Question returns a snapshot of a single question
func (s *Store) Question(id int) (Question, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	q, ok := s.questions.get(id)
	if !ok {
		return Question{}, newError(CodeNotFound, "get question", "question %d does not exist", id)
	}
	return s.snapshot(q), nil
}

// Draft returns the active edit draft, if any
func (s *Store) Draft() (EditDraft, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.draft == nil {
		return EditDraft{}, false
	}
	return s.draft.clone(), true
}

// BeginEdit opens an edit on the question, closing whatever edit was open.
func (s *Store) BeginEdit(id int) (EditDraft, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	q, ok := s.questions.get(id)
	if !ok {
		return EditDraft{}, newError(CodeNotFound, "begin edit", "question %d does not exist", id)
	}

	if s.draft != nil && s.draft.QuestionID != id {
		VerboseLog("discarding open draft", "question_id", s.draft.QuestionID)
	}

	d := EditDraft{
		QuestionID:   q.ID,
		Text:         q.Text,
		Options:      append([]string(nil), q.Options...),
		CorrectIndex: q.CorrectIndex,
		Difficulty:   q.Difficulty,
	}
	s.draft = &d

	VerboseLog("edit started", "question_id", id)
	return d.clone(), nil
}

// CommitEdit validates the draft and writes it into the question. A
// committed question always goes back to pending review. On failure the
// edit stays open and nothing changes.
func (s *Store) CommitEdit(d EditDraft) (Question, error) {
	const op = "commit edit"

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.draft == nil {
		return Question{}, newError(CodeInvalidState, op, "no question is being edited")
	}
	if d.QuestionID != s.draft.QuestionID {
		return Question{}, newError(CodeInvalidState, op, "question %d is not being edited", d.QuestionID)
	}
	q, ok := s.questions.get(d.QuestionID)
	if !ok {
		return Question{}, newError(CodeNotFound, op, "question %d does not exist", d.QuestionID)
	}

	d = normalizeDraft(d)
	if err := validateDraft(d); err != nil {
		return Question{}, newError(CodeValidation, op, "%s", err.Error())
	}

	q.Text = d.Text
	q.Options = append([]string(nil), d.Options...)
	q.CorrectIndex = d.CorrectIndex
	q.Difficulty = d.Difficulty
	q.ReviewState = StatePending
	s.draft = nil

	VerboseLog("edit committed", "question_id", q.ID)
	return s.snapshot(q), nil
}

// CancelEdit discards the active draft. Nothing happens if no edit is open.
func (s *Store) CancelEdit() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.draft != nil {
		VerboseLog("edit cancelled", "question_id", s.draft.QuestionID)
	}
	s.draft = nil
}

// Classify records a review decision for a question
func (s *Store) Classify(id int, state ReviewState) error {
	const op = "classify"

	switch state {
	case StateAccepted, StateRejected, StatePending:
	default:
		return newError(CodeValidation, op, "cannot classify a question as %q", state)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	q, ok := s.questions.get(id)
	if !ok {
		return newError(CodeNotFound, op, "question %d does not exist", id)
	}
	if s.editing(id) {
		return newError(CodeInvalidState, op, "question %d is being edited", id)
	}

	q.ReviewState = state
	VerboseLog("question classified", "question_id", id, "state", state)
	return nil
}

// Delete removes a question for good. Deleting the question being edited
// also drops the draft.
func (s *Store) Delete(id int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.questions.remove(id) {
		return newError(CodeNotFound, "delete", "question %d does not exist", id)
	}
	if s.editing(id) {
		s.draft = nil
	}

	VerboseLog("question deleted", "question_id", id, "remaining", s.questions.size())
	return nil
}

// Stats computes counts per difficulty and per review state
func (s *Store) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := Stats{
		Difficulty: make(map[Difficulty]int, len(Difficulties)),
		Review:     make(map[ReviewState]int, len(ReviewStates)),
	}
	for _, d := range Difficulties {
		st.Difficulty[d] = 0
	}
	for _, r := range ReviewStates {
		st.Review[r] = 0
	}

	s.questions.each(func(q *Question) {
		st.Total++
		st.Difficulty[q.Difficulty]++
		st.Review[q.ReviewState]++
	})
	return st
}

// AcceptedSubset returns the accepted questions in collection order. This
// is what gets exported.
func (s *Store) AcceptedSubset() []Question {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []Question
	s.questions.each(func(q *Question) {
		if q.ReviewState == StateAccepted {
			out = append(out, s.snapshot(q))
		}
	})
	return out
}

// Ready reports whether at least one question has been accepted
func (s *Store) Ready() bool {
	return len(s.AcceptedSubset()) > 0
}

func (s *Store) editing(id int) bool {
	return s.draft != nil && s.draft.QuestionID == id
}

func (s *Store) snapshot(q *Question) Question {
	c := q.clone()
	c.Editing = s.editing(q.ID)
	return c
}

var draftValidator = newDraftValidator()

func newDraftValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	if err := v.RegisterValidation("notblank", func(fl validator.FieldLevel) bool {
		return strings.TrimSpace(fl.Field().String()) != ""
	}); err != nil {
		panic(err)
	}
	return v
}

func normalizeDraft(d EditDraft) EditDraft {
	d = d.clone()
	d.Text = strings.TrimSpace(d.Text)
	for i, opt := range d.Options {
		d.Options[i] = strings.TrimSpace(opt)
	}
	if diff, ok := ParseDifficulty(string(d.Difficulty)); ok {
		d.Difficulty = diff
	}
	return d
}

func validateDraft(d EditDraft) error {
	if err := draftValidator.Struct(d); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return fmt.Errorf("%s", describeFieldError(verrs[0]))
		}
		return err
	}

	seen := make(map[string]bool, len(d.Options))
	for _, opt := range d.Options {
		if seen[opt] {
			return fmt.Errorf("options: duplicate option %q", opt)
		}
		seen[opt] = true
	}

	if d.CorrectIndex >= len(d.Options) {
		return fmt.Errorf("correct_index: %d is out of range for %d options", d.CorrectIndex, len(d.Options))
	}
	return nil
}

func describeFieldError(fe validator.FieldError) string {
	switch fe.Tag() {
	case "notblank":
		return fmt.Sprintf("%s: must not be blank", fe.Field())
	case "min":
		return fmt.Sprintf("%s: need at least %s", fe.Field(), fe.Param())
	case "gte":
		return fmt.Sprintf("%s: must be at least %s", fe.Field(), fe.Param())
	case "oneof":
		return fmt.Sprintf("%s: must be one of %s", fe.Field(), fe.Param())
	}
	return fmt.Sprintf("%s: failed %s", fe.Field(), fe.Tag())
}
