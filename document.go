package mcqstudio

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// DocumentType is one of the accepted upload containers
type DocumentType string

const (
	DocumentPDF  DocumentType = "pdf"
	DocumentDOCX DocumentType = "docx"
)

const (
	// DefaultMaxUploadBytes matches the upload limit of the generation backend.
	DefaultMaxUploadBytes = 5 * 1024 * 1024
	// DefaultQuestionCount is used when the caller does not pick a preset.
	DefaultQuestionCount = 5
	// MinDocumentText is the least amount of extracted text worth generating from.
	MinDocumentText = 50
)

// QuestionCountPresets are the question counts a user can ask for
var QuestionCountPresets = []int{3, 5, 10, 15, 20, 25}

// DetectDocumentType identifies the container from the filename, falling
// back to the content's magic bytes.
func DetectDocumentType(filename string, data []byte) (DocumentType, error) {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".pdf":
		return DocumentPDF, nil
	case ".docx":
		return DocumentDOCX, nil
	case "":
		switch {
		case bytes.HasPrefix(data, []byte("%PDF-")):
			return DocumentPDF, nil
		case bytes.HasPrefix(data, []byte("PK\x03\x04")):
			return DocumentDOCX, nil
		}
	}
	return "", fmt.Errorf("%w: %s", ErrUnsupportedDocument, filename)
}

// ValidateUpload checks an upload against the service contract before any
// network or model call is made.
func ValidateUpload(u Upload, maxBytes int64) (DocumentType, error) {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxUploadBytes
	}
	docType, err := DetectDocumentType(u.Filename, u.Data)
	if err != nil {
		return "", err
	}
	if len(u.Data) == 0 {
		return "", fmt.Errorf("%w: %s is empty", ErrUnsupportedDocument, u.Filename)
	}
	if int64(len(u.Data)) > maxBytes {
		return "", fmt.Errorf("%w: %d bytes, max %d", ErrDocumentTooLarge, len(u.Data), maxBytes)
	}
	if !validQuestionCount(u.QuestionCount) {
		return "", fmt.Errorf("%w: %d (choose one of %v)", ErrInvalidQuestionCount, u.QuestionCount, QuestionCountPresets)
	}
	return docType, nil
}

func validQuestionCount(n int) bool {
	for _, p := range QuestionCountPresets {
		if p == n {
			return true
		}
	}
	return false
}

// ExtractText pulls the plain text out of a PDF or DOCX document
func ExtractText(ctx context.Context, docType DocumentType, data []byte) (string, error) {
	switch docType {
	case DocumentPDF:
		return extractPDFText(ctx, data)
	case DocumentDOCX:
		return extractDOCXText(data)
	}
	return "", fmt.Errorf("%w: %s", ErrUnsupportedDocument, docType)
}

// extractPDFText runs pdftotext over a temporary copy of the document
func extractPDFText(ctx context.Context, data []byte) (string, error) {
	tmp, err := os.CreateTemp("", "mcqstudio-*.pdf")
	if err != nil {
		return "", fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return "", fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("failed to close temp file: %w", err)
	}

	cmd := exec.CommandContext(ctx, "pdftotext", "-enc", "UTF-8", tmp.Name(), "-")
	output, err := cmd.Output()
	if err != nil {
		return "", fmt.Errorf("pdftotext failed: %w", err)
	}
	return strings.TrimSpace(string(output)), nil
}

// extractDOCXText reads the paragraphs of word/document.xml, one per line
func extractDOCXText(data []byte) (string, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("failed to open docx: %w", err)
	}

	for _, f := range zr.File {
		if f.Name != "word/document.xml" {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return "", fmt.Errorf("failed to open document.xml: %w", err)
		}
		defer rc.Close()

		paragraphs, err := docxParagraphs(rc)
		if err != nil {
			return "", err
		}
		return strings.TrimSpace(strings.Join(paragraphs, "\n")), nil
	}
	return "", fmt.Errorf("failed to read docx: word/document.xml missing")
}

// docxParagraphs returns the text of every w:p element in a document part
func docxParagraphs(r io.Reader) ([]string, error) {
	dec := xml.NewDecoder(r)

	var (
		paragraphs []string
		current    strings.Builder
		inText     bool
	)
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to parse document.xml: %w", err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "p":
				current.Reset()
			case "t":
				inText = true
			case "tab":
				current.WriteString("\t")
			case "br":
				current.WriteString("\n")
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "p":
				paragraphs = append(paragraphs, current.String())
			case "t":
				inText = false
			}
		case xml.CharData:
			if inText {
				current.Write(t)
			}
		}
	}
	return paragraphs, nil
}
