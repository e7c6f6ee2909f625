package mcqstudio

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"strings"
	"time"
)

type docxRenderer struct{}

func (docxRenderer) Format() Format   { return FormatRich }
func (docxRenderer) Filename() string { return "mcqs.docx" }
func (docxRenderer) ContentType() string {
	return "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
}

const docxTitle = "MCQ Questions"

const docxContentTypes = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types">
<Default Extension="rels" ContentType="application/vnd.openxmlformats-package.relationships+xml"/>
<Default Extension="xml" ContentType="application/xml"/>
<Override PartName="/word/document.xml" ContentType="application/vnd.openxmlformats-officedocument.wordprocessingml.document.main+xml"/>
<Override PartName="/word/styles.xml" ContentType="application/vnd.openxmlformats-officedocument.wordprocessingml.styles+xml"/>
</Types>`

const docxPackageRels = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">
<Relationship Id="rId1" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/officeDocument" Target="word/document.xml"/>
</Relationships>`

const docxDocumentRels = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">
<Relationship Id="rId1" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/styles" Target="styles.xml"/>
</Relationships>`

const docxStyles = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<w:styles xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main">
<w:style w:type="paragraph" w:default="1" w:styleId="Normal"><w:name w:val="Normal"/><w:pPr><w:spacing w:after="60"/></w:pPr><w:rPr><w:sz w:val="22"/></w:rPr></w:style>
<w:style w:type="paragraph" w:styleId="Heading1"><w:name w:val="heading 1"/><w:basedOn w:val="Normal"/><w:next w:val="Normal"/><w:pPr><w:spacing w:before="240" w:after="240"/><w:outlineLvl w:val="0"/></w:pPr><w:rPr><w:b/><w:sz w:val="32"/></w:rPr></w:style>
<w:style w:type="paragraph" w:styleId="Question"><w:name w:val="Question"/><w:basedOn w:val="Normal"/><w:pPr><w:keepNext/><w:spacing w:before="240"/></w:pPr></w:style>
</w:styles>`

const (
	docxDocumentOpen  = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>` + "\n" + `<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body>`
	docxDocumentClose = `<w:sectPr><w:pgSz w:w="11906" w:h="16838"/><w:pgMar w:top="1134" w:right="1134" w:bottom="1134" w:left="1134" w:header="709" w:footer="709" w:gutter="0"/></w:sectPr></w:body></w:document>`
)

// docxEpoch is the modification time of every zip entry.
var docxEpoch = time.Date(2000, time.January, 1, 0, 0, 0, 0, time.UTC)

type docxRun struct {
	text   string
	bold   bool
	italic bool
}

// Render writes a WordprocessingML package: a heading, then per question a
// paragraph with the bold label and the prompt, one paragraph per option
// and an italic answer paragraph.
func (docxRenderer) Render(content Content) ([]byte, error) {
	var doc strings.Builder
	doc.WriteString(docxDocumentOpen)
	writeParagraph(&doc, "Heading1", docxRun{text: docxTitle})

	for _, item := range content {
		writeParagraph(&doc, "Question",
			docxRun{text: item.Label + ".", bold: true},
			docxRun{text: " " + item.Prompt},
		)
		for _, opt := range item.Options {
			writeParagraph(&doc, "", docxRun{text: optionLine(opt)})
		}
		writeParagraph(&doc, "", docxRun{text: answerLine(item.Answer), italic: true})
	}
	doc.WriteString(docxDocumentClose)

	parts := []struct {
		name string
		body string
	}{
		{"[Content_Types].xml", docxContentTypes},
		{"_rels/.rels", docxPackageRels},
		{"word/_rels/document.xml.rels", docxDocumentRels},
		{"word/styles.xml", docxStyles},
		{"word/document.xml", doc.String()},
	}

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, p := range parts {
		w, err := zw.CreateHeader(&zip.FileHeader{
			Name:     p.name,
			Method:   zip.Deflate,
			Modified: docxEpoch,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to add %s: %w", p.name, err)
		}
		if _, err := w.Write([]byte(p.body)); err != nil {
			return nil, fmt.Errorf("failed to write %s: %w", p.name, err)
		}
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("failed to finish docx: %w", err)
	}
	return buf.Bytes(), nil
}

func writeParagraph(sb *strings.Builder, style string, runs ...docxRun) {
	sb.WriteString("<w:p>")
	if style != "" {
		fmt.Fprintf(sb, `<w:pPr><w:pStyle w:val="%s"/></w:pPr>`, style)
	}
	for _, r := range runs {
		sb.WriteString("<w:r>")
		if r.bold || r.italic {
			sb.WriteString("<w:rPr>")
			if r.bold {
				sb.WriteString("<w:b/>")
			}
			if r.italic {
				sb.WriteString("<w:i/>")
			}
			sb.WriteString("</w:rPr>")
		}
		sb.WriteString(`<w:t xml:space="preserve">`)
		xml.EscapeText(sb, []byte(r.text))
		sb.WriteString("</w:t></w:r>")
	}
	sb.WriteString("</w:p>")
}
