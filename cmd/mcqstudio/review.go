package main

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"mcqstudio"
)

// reviewer drives a Store from a line based terminal session
type reviewer struct {
	store *mcqstudio.Store
	in    *bufio.Scanner
	out   io.Writer
}

func newReviewer(store *mcqstudio.Store, in *bufio.Scanner, out io.Writer) *reviewer {
	return &reviewer{store: store, in: in, out: out}
}

const reviewHelp = `Commands:
  l          list questions
  s          show statistics
  a N        accept question N
  r N        reject question N
  p N        mark question N pending
  e N        edit question N
  d N        delete question N
  x          export accepted questions and finish
  q          quit without exporting
`

// run reads commands until the user exports or quits. It reports whether
// the accepted questions should be exported.
func (rv *reviewer) run() bool {
	rv.list()
	fmt.Fprint(rv.out, reviewHelp)

	for {
		fmt.Fprint(rv.out, "> ")
		line, ok := rv.readLine()
		if !ok {
			return false
		}

		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}

		cmd := strings.ToLower(fields[0])
		switch cmd {
		case "l":
			rv.list()
		case "s":
			rv.stats()
		case "h", "?":
			fmt.Fprint(rv.out, reviewHelp)
		case "q":
			return false
		case "x":
			if rv.store.Ready() {
				return true
			}
			fmt.Fprintln(rv.out, "Accept at least one question before exporting.")
		case "a", "r", "p", "e", "d":
			id, err := rv.questionNumber(fields)
			if err != nil {
				fmt.Fprintln(rv.out, err)
				continue
			}
			rv.apply(cmd, id)
		default:
			fmt.Fprintf(rv.out, "Unknown command %q\n", fields[0])
		}

		if rv.store.Len() == 0 {
			fmt.Fprintln(rv.out, "All questions have been deleted. Upload a new document to start again.")
			return false
		}
	}
}

func (rv *reviewer) apply(cmd string, id int) {
	var err error
	switch cmd {
	case "a":
		err = rv.store.Classify(id, mcqstudio.StateAccepted)
	case "r":
		err = rv.store.Classify(id, mcqstudio.StateRejected)
	case "p":
		err = rv.store.Classify(id, mcqstudio.StatePending)
	case "d":
		err = rv.store.Delete(id)
	case "e":
		err = rv.edit(id)
	}
	if err != nil {
		fmt.Fprintf(rv.out, "❌ %v\n", err)
		return
	}
	fmt.Fprintln(rv.out, "✅ done")
}

// questionNumber resolves the displayed 1-based position to a question id
func (rv *reviewer) questionNumber(fields []string) (int, error) {
	if len(fields) < 2 {
		return 0, fmt.Errorf("usage: %s N", fields[0])
	}
	n, err := strconv.Atoi(fields[1])
	if err != nil {
		return 0, fmt.Errorf("%q is not a question number", fields[1])
	}
	questions := rv.store.Questions()
	if n < 1 || n > len(questions) {
		return 0, fmt.Errorf("question %d does not exist", n)
	}
	return questions[n-1].ID, nil
}

func (rv *reviewer) list() {
	for i, q := range rv.store.Questions() {
		fmt.Fprintf(rv.out, "%d. %s  [%s, %s]\n", i+1, q.Text, q.Difficulty, q.ReviewState)
		for j, opt := range q.Options {
			marker := " "
			if j == q.CorrectIndex {
				marker = "*"
			}
			fmt.Fprintf(rv.out, "   %s%s) %s\n", marker, mcqstudio.OptionLetter(j), opt)
		}
	}
	fmt.Fprintln(rv.out)
}

func (rv *reviewer) stats() {
	st := rv.store.Stats()
	fmt.Fprintf(rv.out, "📊 %d questions: %d easy, %d medium, %d hard\n",
		st.Total, st.Difficulty[mcqstudio.DifficultyEasy], st.Difficulty[mcqstudio.DifficultyMedium], st.Difficulty[mcqstudio.DifficultyHard])
	fmt.Fprintf(rv.out, "   %d approved, %d rejected, %d pending review, %d unreviewed\n",
		st.Review[mcqstudio.StateAccepted], st.Review[mcqstudio.StateRejected], st.Review[mcqstudio.StatePending], st.Review[mcqstudio.StateUnreviewed])
}

// edit prompts for every field, keeping the current value on an empty
// answer. A rejected draft can be corrected or abandoned.
func (rv *reviewer) edit(id int) error {
	draft, err := rv.store.BeginEdit(id)
	if err != nil {
		return err
	}

	for {
		draft.Text = rv.prompt("Question", draft.Text)
		for i := range draft.Options {
			draft.Options[i] = rv.prompt("Option "+mcqstudio.OptionLetter(i), draft.Options[i])
		}

		letter := rv.prompt("Correct option", mcqstudio.OptionLetter(draft.CorrectIndex))
		draft.CorrectIndex = letterIndex(letter)
		draft.Difficulty = mcqstudio.Difficulty(rv.prompt("Difficulty", string(draft.Difficulty)))

		_, err := rv.store.CommitEdit(draft)
		if err == nil {
			return nil
		}
		fmt.Fprintf(rv.out, "❌ %v\n", err)

		if !strings.EqualFold(rv.prompt("Edit again? (y/n)", "n"), "y") {
			rv.store.CancelEdit()
			return fmt.Errorf("edit of question %d cancelled", id)
		}
	}
}

func (rv *reviewer) prompt(label, current string) string {
	fmt.Fprintf(rv.out, "%s [%s]: ", label, current)
	line, ok := rv.readLine()
	if !ok || strings.TrimSpace(line) == "" {
		return current
	}
	return strings.TrimSpace(line)
}

func (rv *reviewer) readLine() (string, bool) {
	if !rv.in.Scan() {
		return "", false
	}
	return rv.in.Text(), true
}

// letterIndex maps "A" to 0, "b" to 1 and so on; anything else is -1
func letterIndex(letter string) int {
	letter = strings.ToUpper(strings.TrimSpace(letter))
	if len(letter) != 1 || letter[0] < 'A' || letter[0] > 'Z' {
		return -1
	}
	return int(letter[0] - 'A')
}
