package services

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"legal-assistant-platform/utils"
)

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
}

func TestListDocumentsFiltersAndSorts(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "b_statute.txt", "text")
	writeFile(t, dir, "a_ruling.md", "text")
	writeFile(t, dir, "notes.docx", "unsupported")
	writeFile(t, dir, "page.html", "<html><body>x</body></html>")
	if err := os.Mkdir(filepath.Join(dir, "subdir"), 0755); err != nil {
		t.Fatal(err)
	}

	storage, err := NewDocumentStorage(dir, 0)
	if err != nil {
		t.Fatal(err)
	}

	names, err := storage.ListDocuments()
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"a_ruling.md", "b_statute.txt", "page.html"}
	if len(names) != len(want) {
		t.Fatalf("got %v, want %v", names, want)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Fatalf("got %v, want %v", names, want)
		}
	}
}

func TestFetchTextPlainFile(t *testing.T) {
	dir := t.TempDir()
	content := "Section 1. Every agreement is a contract.\n"
	writeFile(t, dir, "act.txt", content)

	storage, err := NewDocumentStorage(dir, 0)
	if err != nil {
		t.Fatal(err)
	}

	text, hash, err := storage.FetchText(context.Background(), "act.txt")
	if err != nil {
		t.Fatal(err)
	}
	if text != strings.TrimSpace(content) {
		t.Fatalf("text = %q", text)
	}
	if hash != utils.FileHash([]byte(content)) {
		t.Fatal("hash must be the md5 of the raw file")
	}
}

func TestFetchTextHTMLStripsMarkup(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "ruling.html",
		`<html><head><style>body{}</style></head><body><h1>Ruling</h1><script>alert(1)</script><p>The court held.</p></body></html>`)

	storage, _ := NewDocumentStorage(dir, 0)
	text, _, err := storage.FetchText(context.Background(), "ruling.html")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(text, "Ruling") || !strings.Contains(text, "The court held.") {
		t.Fatalf("body text missing: %q", text)
	}
	if strings.Contains(text, "alert") || strings.Contains(text, "body{}") {
		t.Fatalf("script/style content leaked: %q", text)
	}
}

func TestFetchTextRejectsOversizeAndTraversal(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "big.txt", strings.Repeat("x", 100))

	storage, _ := NewDocumentStorage(dir, 10)
	if _, _, err := storage.FetchText(context.Background(), "big.txt"); err == nil {
		t.Fatal("expected error for a file above the size limit")
	}

	if _, _, err := storage.FetchText(context.Background(), "../etc/passwd"); err == nil {
		t.Fatal("expected error for a path outside the storage directory")
	}
}

func TestTitleFromFileName(t *testing.T) {
	cases := map[string]string{
		"contract_act_1872.pdf": "contract act 1872",
		"ruling.html":           "ruling",
		"plain.txt":             "plain",
	}
	for in, want := range cases {
		if got := TitleFromFileName(in); got != want {
			t.Errorf("TitleFromFileName(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestDocumentTypeFor(t *testing.T) {
	cases := map[string]string{
		"a.PDF":  "pdf",
		"b.xlsx": "xlsx",
		"c.htm":  "html",
		"d.md":   "text",
		"e.docx": "",
	}
	for in, want := range cases {
		if got := DocumentTypeFor(in); got != want {
			t.Errorf("DocumentTypeFor(%q) = %q, want %q", in, got, want)
		}
	}
}
