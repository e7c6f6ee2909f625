package mcqstudio

import "strings"

type textRenderer struct{}

func (textRenderer) Format() Format      { return FormatPlainText }
func (textRenderer) Filename() string    { return "mcqs.txt" }
func (textRenderer) ContentType() string { return "text/plain; charset=utf-8" }

// Render writes one line per heading, option and answer, with a blank line
// between questions.
func (textRenderer) Render(content Content) ([]byte, error) {
	var sb strings.Builder
	for i, item := range content {
		if i > 0 {
			sb.WriteString("\n")
		}
		for _, line := range item.Lines() {
			sb.WriteString(line)
			sb.WriteString("\n")
		}
	}
	return []byte(sb.String()), nil
}
