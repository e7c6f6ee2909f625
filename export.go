package mcqstudio

import (
	"fmt"
	"strings"
)

// Format selects the encoding of an export
type Format string

const (
	FormatPlainText Format = "txt"
	FormatPaginated Format = "pdf"
	FormatRich      Format = "docx"
)

// Formats lists the supported export formats
var Formats = []Format{FormatPlainText, FormatPaginated, FormatRich}

// ParseFormat maps a user supplied format name to a Format
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "txt", "text", "plain":
		return FormatPlainText, nil
	case "pdf":
		return FormatPaginated, nil
	case "docx", "doc", "word":
		return FormatRich, nil
	}
	return "", fmt.Errorf("unknown export format %q", s)
}

// Artifact is a rendered export ready for delivery
type Artifact struct {
	Filename    string `json:"filename"`
	ContentType string `json:"content_type"`
	Format      Format `json:"format"`
	Data        []byte `json:"-"`
}

// Option is a lettered answer choice
type Option struct {
	Letter string
	Text   string
}

// Item is the format-neutral content of one exported question
type Item struct {
	Label   string
	Prompt  string
	Options []Option
	Answer  string
}

// Heading returns the first line of the item, e.g. "Q1. What is...?"
func (it Item) Heading() string {
	return it.Label + ". " + it.Prompt
}

// Lines returns the item as the lines every encoder writes
func (it Item) Lines() []string {
	lines := make([]string, 0, len(it.Options)+2)
	lines = append(lines, it.Heading())
	for _, opt := range it.Options {
		lines = append(lines, optionLine(opt))
	}
	return append(lines, answerLine(it.Answer))
}

func optionLine(opt Option) string {
	return opt.Letter + ") " + opt.Text
}

func answerLine(answer string) string {
	return "Answer: " + answer
}

// Content is the canonical content shared by all encoders
type Content []Item

// BuildContent derives the canonical content of the accepted questions.
func BuildContent(questions []Question) (Content, error) {
	if len(questions) == 0 {
		return nil, newError(CodeEmptyExport, "export", "no accepted questions to export")
	}

	content := make(Content, 0, len(questions))
	for i, q := range questions {
		if q.CorrectIndex < 0 || q.CorrectIndex >= len(q.Options) {
			return nil, newError(CodeDataIntegrity, "export", "question %d: correct index %d out of range", q.ID, q.CorrectIndex)
		}

		item := Item{
			Label:   fmt.Sprintf("Q%d", i+1),
			Prompt:  collapseSpace(q.Text),
			Options: make([]Option, len(q.Options)),
			Answer:  collapseSpace(q.Options[q.CorrectIndex]),
		}
		for j, opt := range q.Options {
			item.Options[j] = Option{Letter: OptionLetter(j), Text: collapseSpace(opt)}
		}
		content = append(content, item)
	}
	return content, nil
}

// OptionLetter returns the letter for an option position: 0 is "A", 25 is
// "Z", 26 is "AA".
func OptionLetter(i int) string {
	var b []byte
	for i >= 0 {
		b = append([]byte{byte('A' + i%26)}, b...)
		i = i/26 - 1
	}
	return string(b)
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// Renderer encodes canonical content into one format
type Renderer interface {
	Format() Format
	Filename() string
	ContentType() string
	Render(Content) ([]byte, error)
}

// RendererFor returns the encoder of a format
func RendererFor(f Format) (Renderer, error) {
	switch f {
	case FormatPlainText:
		return textRenderer{}, nil
	case FormatPaginated:
		return newPDFRenderer(), nil
	case FormatRich:
		return docxRenderer{}, nil
	}
	return nil, fmt.Errorf("unknown export format %q", f)
}

// Render exports the accepted questions in the given format. The same input
// always produces the same bytes.
func Render(accepted []Question, format Format) (*Artifact, error) {
	if len(accepted) == 0 {
		return nil, newError(CodeEmptyExport, "export", "no accepted questions to export")
	}

	r, err := RendererFor(format)
	if err != nil {
		return nil, err
	}

	content, err := BuildContent(accepted)
	if err != nil {
		return nil, err
	}

	data, err := r.Render(content)
	if err != nil {
		return nil, fmt.Errorf("failed to render %s: %w", format, err)
	}

	VerboseLog("rendered export", "format", format, "questions", len(content), "bytes", len(data))
	return &Artifact{
		Filename:    r.Filename(),
		ContentType: r.ContentType(),
		Format:      format,
		Data:        data,
	}, nil
}
