package loader

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoadAllTextFiles(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()

	write := func(name, content string) {
		t.Helper()
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	write("schemes.txt", "मुद्रा योजना के तहत लोन मिलता है।\n")
	write("terms.md", "# Banking terms\n\nA loan is borrowed money.")
	write("notes.docx", "unsupported format")

	l := New(Config{Dir: dir})
	docs, err := l.LoadAll(context.Background())
	if err != nil {
		t.Fatalf("LoadAll failed: %v", err)
	}
	if len(docs) != 2 {
		t.Fatalf("got %d documents, want 2 (docx skipped)", len(docs))
	}
	if docs[0].Filename != "schemes.txt" {
		t.Errorf("first document = %q, want schemes.txt", docs[0].Filename)
	}
	if strings.HasSuffix(docs[0].Text, "\n") {
		t.Error("text should be trimmed")
	}
	if docs[0].SourcePath != filepath.Join(dir, "schemes.txt") {
		t.Errorf("source path = %q", docs[0].SourcePath)
	}
}

func TestLoadTextKeepsNewlines(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()

	// Internal newlines are sentence boundaries for the chunker and must
	// survive loading untouched.
	content := "पहला वाक्य\nदूसरा वाक्य\n\nतीसरा वाक्य"
	if err := os.WriteFile(filepath.Join(dir, "doc.txt"), []byte(content+"\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	docs, err := New(Config{Dir: dir}).LoadAll(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(docs) != 1 {
		t.Fatalf("got %d documents, want 1", len(docs))
	}
	if docs[0].Text != content {
		t.Errorf("text = %q, want internal newlines preserved", docs[0].Text)
	}
}

func TestLoadAllMissingDirectory(t *testing.T) {
	t.Parallel()

	l := New(Config{Dir: filepath.Join(t.TempDir(), "absent")})
	docs, err := l.LoadAll(context.Background())
	if err != nil {
		t.Fatalf("missing directory should not be an error: %v", err)
	}
	if len(docs) != 0 {
		t.Errorf("expected empty corpus, got %d", len(docs))
	}
}

func TestLoadAllSkipsBadPDF(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()

	// Not a real PDF: validation fails and the file is skipped.
	if err := os.WriteFile(filepath.Join(dir, "broken.pdf"), []byte("not a pdf"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "ok.txt"), []byte("usable document text"), 0o644); err != nil {
		t.Fatal(err)
	}

	l := New(Config{Dir: dir, ExtractorURL: "http://localhost:5001/v1/convert/file"})
	docs, err := l.LoadAll(context.Background())
	if err != nil {
		t.Fatalf("LoadAll failed: %v", err)
	}
	if len(docs) != 1 || docs[0].Filename != "ok.txt" {
		t.Fatalf("expected only ok.txt, got %v", docs)
	}
}

func TestCleanText(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name, in, want string
	}{
		{
			name: "whitespace collapse",
			in:   "लोन   की\n\n\tजानकारी",
			want: "लोन की जानकारी",
		},
		{
			name: "strips exotic characters keeps punctuation",
			in:   "ब्याज दर 4%! (per annum)",
			want: "ब्याज दर 4! (per annum)",
		},
		{
			name: "removes page numbers",
			in:   "scheme details Page 12 continued",
			want: "scheme details  continued",
		},
		{
			name: "trims",
			in:   "  text  ",
			want: "text",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := CleanText(tc.in); got != tc.want {
				t.Errorf("CleanText(%q) = %q, want %q", tc.in, got, tc.want)
			}
		})
	}
}
