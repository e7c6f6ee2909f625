package mcqstudio

import (
	"bytes"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/go-pdf/fpdf"
	"golang.org/x/image/font/gofont/goitalic"
	"golang.org/x/image/font/gofont/goregular"
)

// pdfFont is the embedded UTF-8 font family. Text is written as UTF-16
// code units, so prompts in any BMP script keep their characters.
const pdfFont = "Go"

// pdfEpoch is stamped as creation and modification date so renders are
// byte-for-byte reproducible.
var pdfEpoch = time.Date(2000, time.January, 1, 0, 0, 0, 0, time.UTC)

type pdfRenderer struct {
	margin     float64 // mm
	textWidth  float64 // mm available for text on a line
	lineHeight float64 // mm
	fontSize   float64 // pt
	cellMargin float64 // mm
}

func newPDFRenderer() pdfRenderer {
	return pdfRenderer{
		margin:     10,
		textWidth:  180,
		lineHeight: 6,
		fontSize:   11,
		cellMargin: 1,
	}
}

func (pdfRenderer) Format() Format      { return FormatPaginated }
func (pdfRenderer) Filename() string    { return "mcqs.pdf" }
func (pdfRenderer) ContentType() string { return "application/pdf" }

// Render lays the content out on A4 pages. Lines longer than the text width
// wrap onto following lines and pages break automatically; each page gets a
// "Page N" footer.
func (r pdfRenderer) Render(content Content) ([]byte, error) {
	pdf := r.newDocument()
	pdf.AddPage()
	pdf.SetFont(pdfFont, "", r.fontSize)

	for i, item := range content {
		if i > 0 {
			pdf.Ln(r.lineHeight)
		}
		for _, line := range item.Lines() {
			for _, piece := range r.wrap(pdf, bmpOnly(line)) {
				r.writeLine(pdf, piece)
			}
		}
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("failed to write pdf: %w", err)
	}
	return buf.Bytes(), nil
}

// newDocument returns an empty A4 document with fixed dates, the embedded
// fonts and the page footer.
func (r pdfRenderer) newDocument() *fpdf.Fpdf {
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetCreationDate(pdfEpoch)
	pdf.SetModificationDate(pdfEpoch)
	pdf.SetCatalogSort(true)
	pdf.SetProducer("mcqstudio", true)
	pdf.SetTitle("MCQ Questions", true)
	pdf.SetMargins(r.margin, r.margin, r.margin)
	pdf.SetAutoPageBreak(true, r.margin+8)
	pdf.SetCellMargin(r.cellMargin)
	pdf.AddUTF8FontFromBytes(pdfFont, "", goregular.TTF)
	pdf.AddUTF8FontFromBytes(pdfFont, "I", goitalic.TTF)
	pdf.SetFooterFunc(func() {
		pdf.SetY(-(r.margin + 4))
		pdf.SetFont(pdfFont, "I", 8)
		pdf.CellFormat(0, 6, fmt.Sprintf("Page %d", pdf.PageNo()), "", 0, "C", false, 0, "")
	})
	return pdf
}

// writeLine writes one wrapped piece. A single word wider than the text
// width is set in a smaller size so it stays whole on the page.
func (r pdfRenderer) writeLine(pdf *fpdf.Fpdf, piece string) {
	if w := pdf.GetStringWidth(piece); w > r.textWidth {
		pdf.SetFontSize(r.fontSize * r.textWidth / w)
		defer pdf.SetFontSize(r.fontSize)
	}
	pdf.CellFormat(r.textWidth+2*r.cellMargin, r.lineHeight, piece, "", 1, "L", false, 0, "")
}

// wrap splits a line at spaces so every piece fits the text width. Words
// are never split; an overlong word gets a piece of its own.
func (r pdfRenderer) wrap(pdf *fpdf.Fpdf, line string) []string {
	var lines []string
	cur := ""
	for _, word := range strings.Split(line, " ") {
		switch {
		case cur == "":
			cur = word
		case pdf.GetStringWidth(cur+" "+word) <= r.textWidth:
			cur += " " + word
		default:
			lines = append(lines, cur)
			cur = word
		}
	}
	return append(lines, cur)
}

// bmpOnly replaces runes outside the Basic Multilingual Plane, which the
// UTF-16 text encoding of fpdf cannot represent.
func bmpOnly(s string) string {
	return strings.Map(func(r rune) rune {
		if r > 0xFFFF {
			return utf8.RuneError
		}
		return r
	}, s)
}
