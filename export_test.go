package mcqstudio

import (
	"archive/zip"
	"bytes"
	"compress/zlib"
	"io"
	"regexp"
	"strings"
	"testing"
	"unicode/utf16"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// entry is what a reader of any export sees for one question
type entry struct {
	Label   string
	Prompt  string
	Options []string
	Answer  string
}

var (
	headingLine = regexp.MustCompile(`^(Q\d+)\. (.*)$`)
	optionRe    = regexp.MustCompile(`^([A-Z]+)\) (.*)$`)
	pageFooter  = regexp.MustCompile(`^Page \d+$`)
	pdfStream   = regexp.MustCompile(`(?s)stream\n(.*?)\nendstream`)
	lineStart   = regexp.MustCompile(`^(Q\d+\.|[A-Z]+\)|Answer:)( |$)`)
	pdfShowText = regexp.MustCompile(`BT -?[\d.]+ -?[\d.]+ Td \(((?:\\.|[^\\)])*)\)\s*Tj`)
)

// parseEntries reads the logical lines of an export back into entries
func parseEntries(t *testing.T, lines []string) []entry {
	t.Helper()

	var out []entry
	for _, line := range lines {
		switch {
		case headingLine.MatchString(line):
			m := headingLine.FindStringSubmatch(line)
			out = append(out, entry{Label: m[1], Prompt: m[2]})
		case strings.HasPrefix(line, "Answer: "):
			require.NotEmpty(t, out, "answer before heading: %q", line)
			out[len(out)-1].Answer = strings.TrimPrefix(line, "Answer: ")
		case optionRe.MatchString(line):
			require.NotEmpty(t, out, "option before heading: %q", line)
			m := optionRe.FindStringSubmatch(line)
			out[len(out)-1].Options = append(out[len(out)-1].Options, m[1]+") "+m[2])
		default:
			t.Fatalf("unexpected line %q", line)
		}
	}
	return out
}

func textLines(data []byte) []string {
	var lines []string
	for _, line := range strings.Split(string(data), "\n") {
		if line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}

func docxLines(t *testing.T, data []byte) []string {
	t.Helper()

	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	require.NoError(t, err)

	for _, f := range zr.File {
		if f.Name != "word/document.xml" {
			continue
		}
		rc, err := f.Open()
		require.NoError(t, err)
		defer rc.Close()

		paragraphs, err := docxParagraphs(rc)
		require.NoError(t, err)
		require.NotEmpty(t, paragraphs)
		require.Equal(t, docxTitle, paragraphs[0])
		return paragraphs[1:]
	}
	t.Fatal("word/document.xml missing")
	return nil
}

// pdfStrings returns every string shown on the pages, in page order. The
// embedded font encodes text as UTF-16BE.
func pdfStrings(t *testing.T, data []byte) []string {
	t.Helper()

	var out []string
	for _, m := range pdfStream.FindAllSubmatch(data, -1) {
		zr, err := zlib.NewReader(bytes.NewReader(m[1]))
		if err != nil {
			continue
		}
		raw, err := io.ReadAll(zr)
		if err != nil {
			continue
		}
		for _, s := range pdfShowText.FindAllSubmatch(raw, -1) {
			out = append(out, decodeUTF16BE(t, unescapePDF(s[1])))
		}
	}
	return out
}

// pdfLines joins wrapped pieces back into logical lines. Page footers are
// dropped.
func pdfLines(t *testing.T, data []byte) []string {
	t.Helper()

	var lines []string
	for _, p := range pdfStrings(t, data) {
		if pageFooter.MatchString(p) {
			continue
		}
		if lineStart.MatchString(p) || len(lines) == 0 {
			lines = append(lines, p)
			continue
		}
		lines[len(lines)-1] += " " + p
	}
	return lines
}

func unescapePDF(b []byte) []byte {
	out := make([]byte, 0, len(b))
	for i := 0; i < len(b); i++ {
		if b[i] == '\\' && i+1 < len(b) {
			i++
			if b[i] == 'r' {
				out = append(out, '\r')
				continue
			}
		}
		out = append(out, b[i])
	}
	return out
}

func decodeUTF16BE(t *testing.T, b []byte) string {
	t.Helper()
	require.Zero(t, len(b)%2, "odd UTF-16 length")

	units := make([]uint16, len(b)/2)
	for i := range units {
		units[i] = uint16(b[2*i])<<8 | uint16(b[2*i+1])
	}
	return string(utf16.Decode(units))
}

func exportLines(t *testing.T, art *Artifact) []string {
	t.Helper()
	switch art.Format {
	case FormatPlainText:
		return textLines(art.Data)
	case FormatPaginated:
		return pdfLines(t, art.Data)
	case FormatRich:
		return docxLines(t, art.Data)
	}
	t.Fatalf("unknown format %q", art.Format)
	return nil
}

func expectedEntries(content Content) []entry {
	out := make([]entry, len(content))
	for i, item := range content {
		e := entry{Label: item.Label, Prompt: item.Prompt, Answer: item.Answer}
		for _, opt := range item.Options {
			e.Options = append(e.Options, optionLine(opt))
		}
		out[i] = e
	}
	return out
}

func acceptedQuestions() []Question {
	return []Question{
		{
			ID:           3,
			Text:         "Which gas do plants   absorb\nduring photosynthesis?",
			Options:      []string{"Oxygen", "Carbon dioxide", "Nitrogen", "Helium"},
			CorrectIndex: 1,
			Difficulty:   DifficultyEasy,
			ReviewState:  StateAccepted,
		},
		{
			ID:           7,
			Text:         "Evaluate f(x) = 2x + 1 at x = 3 (show no work) & pick <one>",
			Options:      []string{"5", "7", `7\8`},
			CorrectIndex: 1,
			Difficulty:   DifficultyMedium,
			ReviewState:  StateAccepted,
		},
		{
			ID: 9,
			Text: "In a long running distributed system where replicas exchange state through gossip, " +
				"which property guarantees that all replicas eventually converge to the same value once " +
				"updates stop arriving, even when messages are delayed, duplicated or reordered by the network?",
			Options: []string{
				"Linearizability",
				"Eventual consistency, assuming every update is eventually delivered to every replica at least once",
				"Snapshot isolation",
				"Two phase commit",
			},
			CorrectIndex: 1,
			Difficulty:   DifficultyHard,
			ReviewState:  StateAccepted,
		},
	}
}

func TestBuildContent(t *testing.T) {
	content, err := BuildContent(acceptedQuestions())
	require.NoError(t, err)
	require.Len(t, content, 3)

	first := content[0]
	assert.Equal(t, "Q1", first.Label)
	assert.Equal(t, "Which gas do plants absorb during photosynthesis?", first.Prompt)
	assert.Equal(t, "Carbon dioxide", first.Answer)
	assert.Equal(t, []string{
		"Q1. Which gas do plants absorb during photosynthesis?",
		"A) Oxygen",
		"B) Carbon dioxide",
		"C) Nitrogen",
		"D) Helium",
		"Answer: Carbon dioxide",
	}, first.Lines())

	// labels follow export order, not question ids
	assert.Equal(t, "Q2", content[1].Label)
	assert.Equal(t, "Q3", content[2].Label)
	assert.Len(t, content[1].Options, 3)
}

func TestBuildContentErrors(t *testing.T) {
	_, err := BuildContent(nil)
	assert.ErrorIs(t, err, ErrEmptyExport)

	bad := acceptedQuestions()
	bad[1].CorrectIndex = 3
	_, err = BuildContent(bad)
	assert.ErrorIs(t, err, ErrDataIntegrity)
}

func TestOptionLetter(t *testing.T) {
	tests := map[int]string{0: "A", 1: "B", 3: "D", 25: "Z", 26: "AA", 27: "AB", 51: "AZ", 52: "BA"}
	for i, want := range tests {
		assert.Equal(t, want, OptionLetter(i), "index %d", i)
	}
}

func TestRenderContentParity(t *testing.T) {
	accepted := acceptedQuestions()
	content, err := BuildContent(accepted)
	require.NoError(t, err)
	want := expectedEntries(content)

	for _, format := range Formats {
		t.Run(string(format), func(t *testing.T) {
			art, err := Render(accepted, format)
			require.NoError(t, err)
			assert.Equal(t, format, art.Format)
			assert.NotEmpty(t, art.Data)

			got := parseEntries(t, exportLines(t, art))
			assert.Equal(t, want, got)
		})
	}
}

func TestRenderParityManyQuestions(t *testing.T) {
	var accepted []Question
	for i, r := range sampleRecords(40) {
		q, err := questionFromRecord(i+1, r)
		require.NoError(t, err)
		q.ReviewState = StateAccepted
		accepted = append(accepted, *q)
	}

	txt, err := Render(accepted, FormatPlainText)
	require.NoError(t, err)
	pdf, err := Render(accepted, FormatPaginated)
	require.NoError(t, err)
	docx, err := Render(accepted, FormatRich)
	require.NoError(t, err)

	fromText := parseEntries(t, exportLines(t, txt))
	require.Len(t, fromText, 40)
	assert.Equal(t, fromText, parseEntries(t, exportLines(t, pdf)))
	assert.Equal(t, fromText, parseEntries(t, exportLines(t, docx)))

	// forty questions do not fit on one A4 page
	var footers []string
	for _, text := range pdfStrings(t, pdf.Data) {
		if pageFooter.MatchString(text) {
			footers = append(footers, text)
		}
	}
	require.Greater(t, len(footers), 1)
	assert.Equal(t, "Page 1", footers[0])
	assert.Equal(t, "Page 2", footers[1])
}

func TestRenderIsDeterministic(t *testing.T) {
	accepted := acceptedQuestions()
	for _, format := range Formats {
		first, err := Render(accepted, format)
		require.NoError(t, err)
		second, err := Render(accepted, format)
		require.NoError(t, err)
		assert.True(t, bytes.Equal(first.Data, second.Data), "format %s", format)
	}
}

func TestRenderEmpty(t *testing.T) {
	for _, format := range Formats {
		art, err := Render(nil, format)
		assert.Nil(t, art)
		assert.ErrorIs(t, err, ErrEmptyExport)
		assert.Equal(t, CodeEmptyExport, CodeOf(err))
	}
}

func TestRenderPlainText(t *testing.T) {
	art, err := Render(acceptedQuestions()[:2], FormatPlainText)
	require.NoError(t, err)

	assert.Equal(t, "mcqs.txt", art.Filename)
	assert.Equal(t, "text/plain; charset=utf-8", art.ContentType)
	assert.Equal(t, `Q1. Which gas do plants absorb during photosynthesis?
A) Oxygen
B) Carbon dioxide
C) Nitrogen
D) Helium
Answer: Carbon dioxide

Q2. Evaluate f(x) = 2x + 1 at x = 3 (show no work) & pick <one>
A) 5
B) 7
C) 7\8
Answer: 7
`, string(art.Data))
}

func TestRenderArtifactMetadata(t *testing.T) {
	tests := []struct {
		format      Format
		filename    string
		contentType string
		magic       string
	}{
		{FormatPaginated, "mcqs.pdf", "application/pdf", "%PDF-"},
		{FormatRich, "mcqs.docx", "application/vnd.openxmlformats-officedocument.wordprocessingml.document", "PK\x03\x04"},
	}
	for _, tt := range tests {
		art, err := Render(acceptedQuestions(), tt.format)
		require.NoError(t, err)
		assert.Equal(t, tt.filename, art.Filename)
		assert.Equal(t, tt.contentType, art.ContentType)
		assert.True(t, bytes.HasPrefix(art.Data, []byte(tt.magic)))
	}
}

func TestDocxMarksLabelsAndAnswers(t *testing.T) {
	art, err := Render(acceptedQuestions()[:1], FormatRich)
	require.NoError(t, err)

	zr, err := zip.NewReader(bytes.NewReader(art.Data), int64(len(art.Data)))
	require.NoError(t, err)

	names := make([]string, 0, len(zr.File))
	var document string
	for _, f := range zr.File {
		names = append(names, f.Name)
		if f.Name == "word/document.xml" {
			rc, err := f.Open()
			require.NoError(t, err)
			raw, err := io.ReadAll(rc)
			rc.Close()
			require.NoError(t, err)
			document = string(raw)
		}
	}
	assert.Contains(t, names, "[Content_Types].xml")
	assert.Contains(t, names, "word/styles.xml")
	assert.Contains(t, document, `<w:rPr><w:b/></w:rPr><w:t xml:space="preserve">Q1.</w:t>`)
	assert.Contains(t, document, `<w:rPr><w:i/></w:rPr><w:t xml:space="preserve">Answer: Carbon dioxide</w:t>`)
}

func TestPDFWrap(t *testing.T) {
	r := newPDFRenderer()
	pdf := r.newDocument()
	pdf.AddPage()
	pdf.SetFont(pdfFont, "", r.fontSize)

	line := strings.TrimSpace(strings.Repeat("consistency ", 60))

	pieces := r.wrap(pdf, line)
	require.Greater(t, len(pieces), 1)
	for _, p := range pieces {
		assert.LessOrEqual(t, pdf.GetStringWidth(p), r.textWidth)
	}
	assert.Equal(t, line, strings.Join(pieces, " "))

	assert.Equal(t, []string{"short line"}, r.wrap(pdf, "short line"))
	assert.Equal(t, []string{""}, r.wrap(pdf, ""))

	// words are never broken, an overlong one stands alone
	long := strings.Repeat("x", 400)
	pieces = r.wrap(pdf, "before "+long+" after")
	assert.Equal(t, []string{"before", long, "after"}, pieces)
}

func TestRenderKeepsOverlongWordsWhole(t *testing.T) {
	long := strings.Repeat("ab", 150)
	accepted := []Question{{
		ID:           1,
		Text:         "Which string is " + long + " exactly?",
		Options:      []string{long, "short"},
		CorrectIndex: 0,
		ReviewState:  StateAccepted,
	}}

	txt, err := Render(accepted, FormatPlainText)
	require.NoError(t, err)
	pdf, err := Render(accepted, FormatPaginated)
	require.NoError(t, err)

	assert.Equal(t, parseEntries(t, exportLines(t, txt)), parseEntries(t, exportLines(t, pdf)))
}

func TestRenderParityBeyondLatin1(t *testing.T) {
	accepted := []Question{
		{
			ID:           1,
			Text:         "What is π × 2 when x → ∞ and √4?",
			Options:      []string{"2π", "τ", "日本", "None"},
			CorrectIndex: 1,
			ReviewState:  StateAccepted,
		},
		{
			ID:           2,
			Text:         "Какой город является столицей России? Ελληνικά: ποια είναι η απάντηση;",
			Options:      []string{"Москва", "Санкт-Петербург", "Αθήνα"},
			CorrectIndex: 0,
			ReviewState:  StateAccepted,
		},
	}

	content, err := BuildContent(accepted)
	require.NoError(t, err)
	want := expectedEntries(content)

	for _, format := range Formats {
		t.Run(string(format), func(t *testing.T) {
			art, err := Render(accepted, format)
			require.NoError(t, err)

			got := parseEntries(t, exportLines(t, art))
			assert.Equal(t, want, got)
		})
	}

	pdf, err := Render(accepted, FormatPaginated)
	require.NoError(t, err)
	shown := pdfStrings(t, pdf.Data)
	assert.Contains(t, shown, "Answer: τ")
	assert.Contains(t, shown, "C) 日本")
}

func TestBMPOnly(t *testing.T) {
	assert.Equal(t, "π日本", bmpOnly("π日本"))
	assert.Equal(t, "smile \uFFFD", bmpOnly("smile \U0001F600"))
}

func TestParseFormat(t *testing.T) {
	for in, want := range map[string]Format{"txt": FormatPlainText, " Text ": FormatPlainText, "PDF": FormatPaginated, "docx": FormatRich, "word": FormatRich} {
		got, err := ParseFormat(in)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	_, err := ParseFormat("odt")
	assert.Error(t, err)

	_, err = RendererFor("odt")
	assert.Error(t, err)
}
