package extract

import (
	"archive/zip"
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/hyperjump/kotae/internal/models"
)

func TestExtractPlainText(t *testing.T) {
	e := NewExtractor(1000, 100)
	chunks, err := e.Extract("s1", []byte("para one\n\npara two"), ".txt")
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if len(chunks) != 1 {
		t.Fatalf("expected 1 chunk, got %d", len(chunks))
	}
	if !strings.Contains(chunks[0].Text, "para one") || !strings.Contains(chunks[0].Text, "para two") {
		t.Errorf("chunk text = %q", chunks[0].Text)
	}
	if loc := chunks[0].Location(); loc.Type != models.LocationNone {
		t.Errorf("plain text location = %+v", loc)
	}
}

func TestExtractEmptyDocument(t *testing.T) {
	e := NewExtractor(1000, 100)
	if _, err := e.Extract("s1", []byte("   \n\n  "), ".txt"); !errors.Is(err, ErrEmptyDocument) {
		t.Errorf("expected ErrEmptyDocument, got %v", err)
	}
	if _, err := e.Extract("s1", nil, ".md"); !errors.Is(err, ErrEmptyDocument) {
		t.Errorf("empty markdown: expected ErrEmptyDocument, got %v", err)
	}
}

func TestExtractMarkdownHeadingLocation(t *testing.T) {
	e := NewExtractor(1000, 100)
	chunks, err := e.Extract("s1", []byte("# Guide\n\n## Install\n\nrun the installer\n"), ".md")
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if len(chunks) != 1 {
		t.Fatalf("expected 1 chunk, got %d", len(chunks))
	}
	loc := chunks[0].Location()
	if loc.Type != models.LocationHeading {
		t.Fatalf("location type = %s", loc.Type)
	}
	if loc.Display() != "Guide" {
		t.Errorf("location display = %q", loc.Display())
	}
}

func TestExtractUnknownExtensionFallsBackToPlain(t *testing.T) {
	e := NewExtractor(1000, 100)
	chunks, err := e.Extract("s1", []byte("hello world"), ".log")
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if len(chunks) != 1 || chunks[0].Text != "hello world" {
		t.Errorf("chunks = %+v", chunks)
	}
}

func makeDocx(t *testing.T, documentXML string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.Create("word/document.xml")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := w.Write([]byte(documentXML)); err != nil {
		t.Fatal(err)
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestExtractDocxParagraphs(t *testing.T) {
	xml := `<w:document><w:body>` +
		`<w:p w:rsidR="001"><w:r><w:t>first paragraph</w:t></w:r></w:p>` +
		`<w:p><w:r><w:t xml:space="preserve">second </w:t></w:r><w:r><w:t>paragraph</w:t></w:r></w:p>` +
		`</w:body></w:document>`
	units, err := docxUnits(makeDocx(t, xml))
	if err != nil {
		t.Fatalf("docxUnits: %v", err)
	}
	if len(units) != 2 {
		t.Fatalf("expected 2 units, got %d", len(units))
	}
	if units[0].text != "first paragraph" {
		t.Errorf("first unit = %q", units[0].text)
	}
	if units[1].text != "second paragraph" {
		t.Errorf("second unit = %q", units[1].text)
	}
}

func TestExtractDocxNotAZip(t *testing.T) {
	if _, err := docxUnits([]byte("not a zip")); err == nil {
		t.Error("expected error for invalid docx")
	}
}

func TestExtractFileMissing(t *testing.T) {
	e := NewExtractor(1000, 100)
	if _, err := e.ExtractFile("s1", "/nonexistent/file.txt"); err == nil {
		t.Error("expected error for missing file")
	}
}
