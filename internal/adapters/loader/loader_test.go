package loader

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"testing"
)

// stubParser implements ports.DocumentParser for testing
type stubParser struct {
	text string
	err  error
	seen string
}

func (p *stubParser) Parse(ctx context.Context, data []byte, filename string) (string, error) {
	p.seen = filename
	return p.text, p.err
}

func (p *stubParser) SupportedFormats() []string { return []string{"pdf", "docx"} }

func TestTextLoader_LoadTxtFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.txt")
	os.WriteFile(path, []byte("Hello World"), 0644)

	loader := NewTextLoader()
	doc, err := loader.Load(context.Background(), path)

	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if doc.Content != "Hello World" {
		t.Errorf("unexpected content: %s", doc.Content)
	}
	if doc.Name != "test.txt" {
		t.Errorf("unexpected name: %s", doc.Name)
	}
	if doc.ID == "" || doc.ID != generateDocID(path) {
		t.Error("id should be derived from the path")
	}
}

func TestTextLoader_Windows1252Fallback(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "legacy.txt")
	// "café – notes" in Windows-1252
	os.WriteFile(path, []byte{'c', 'a', 'f', 0xE9, ' ', 0x96, ' ', 'n', 'o', 't', 'e', 's'}, 0644)

	doc, err := NewTextLoader().Load(context.Background(), path)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if doc.Content != "café – notes" {
		t.Errorf("unexpected content: %q", doc.Content)
	}
}

func TestTextLoader_StripsBOM(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bom.txt")
	os.WriteFile(path, append([]byte{0xEF, 0xBB, 0xBF}, "Course Title: X"...), 0644)

	doc, err := NewTextLoader().Load(context.Background(), path)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if doc.Content != "Course Title: X" {
		t.Errorf("BOM should be dropped: %q", doc.Content)
	}
}

func TestParsedLoader_UsesParser(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "course.pdf")
	os.WriteFile(path, []byte("%PDF"), 0644)

	parser := &stubParser{text: "Course Title: PDF"}
	doc, err := NewParsedLoader(parser).Load(context.Background(), path)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if doc.Content != "Course Title: PDF" || parser.seen != path {
		t.Errorf("unexpected result: %q (parser saw %q)", doc.Content, parser.seen)
	}
}

func TestParsedLoader_ParserFailure(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "course.pdf")
	os.WriteFile(path, []byte("%PDF"), 0644)

	cause := errors.New("service down")
	_, err := NewParsedLoader(&stubParser{err: cause}).Load(context.Background(), path)
	if !errors.Is(err, cause) {
		t.Errorf("expected parser error, got %v", err)
	}
}

func TestMultiLoader_DispatchByExtension(t *testing.T) {
	dir := t.TempDir()
	txtPath := filepath.Join(dir, "test.txt")
	pdfPath := filepath.Join(dir, "test.PDF")
	os.WriteFile(txtPath, []byte("txt content"), 0644)
	os.WriteFile(pdfPath, []byte("%PDF"), 0644)

	loader := NewMultiLoader(NewTextLoader(), NewParsedLoader(&stubParser{text: "pdf content"}))

	txt, err := loader.Load(context.Background(), txtPath)
	if err != nil || txt.Content != "txt content" {
		t.Errorf("txt not loaded correctly: %v", err)
	}
	pdf, err := loader.Load(context.Background(), pdfPath)
	if err != nil || pdf.Content != "pdf content" {
		t.Errorf("pdf not loaded correctly: %v", err)
	}
}

func TestMultiLoader_AllExtensions(t *testing.T) {
	loader := NewMultiLoader(NewTextLoader(), NewParsedLoader(&stubParser{}))
	exts := loader.SupportedExtensions()

	if !slices.Equal(exts, []string{".docx", ".md", ".pdf", ".txt"}) {
		t.Errorf("unexpected extensions: %v", exts)
	}
}

func TestMultiLoader_UnknownExtension(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "data.csv")
	os.WriteFile(path, []byte("a,b"), 0644)

	if _, err := NewMultiLoader(NewTextLoader()).Load(context.Background(), path); err == nil {
		t.Error("should error on unsupported extension")
	}
}

func TestLoader_NonexistentFile(t *testing.T) {
	loader := NewTextLoader()
	_, err := loader.Load(context.Background(), "/nonexistent/file.txt")

	if err == nil {
		t.Error("should error on nonexistent file")
	}
}
