package archive

import (
	"archive/zip"
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestPackUnpackRoundTrip(t *testing.T) {
	entries := []Entry{
		{Path: "src/App.vue", Data: []byte("<template><div/></template>")},
		{Path: "package.json", Data: []byte(`{"name":"app"}`)},
		{Path: "docs/README.md", Data: []byte("# app\n")},
	}
	data, err := Pack(entries)
	if err != nil {
		t.Fatalf("Pack: %v", err)
	}

	dest := t.TempDir()
	if err := Unpack(data, dest); err != nil {
		t.Fatalf("Unpack: %v", err)
	}
	for _, e := range entries {
		got, err := os.ReadFile(filepath.Join(dest, filepath.FromSlash(e.Path)))
		if err != nil {
			t.Fatalf("read %s: %v", e.Path, err)
		}
		if !bytes.Equal(got, e.Data) {
			t.Errorf("%s: got %q, want %q", e.Path, got, e.Data)
		}
	}
}

func TestPackForcesForwardSlashes(t *testing.T) {
	data, err := Pack([]Entry{{Path: filepath.Join("src", "App.vue"), Data: []byte("x")}})
	if err != nil {
		t.Fatalf("Pack: %v", err)
	}
	r, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	if len(r.File) != 1 || r.File[0].Name != "src/App.vue" {
		t.Fatalf("entry name = %q, want src/App.vue", r.File[0].Name)
	}
}

func TestPackRejectsEmptyPath(t *testing.T) {
	if _, err := Pack([]Entry{{Path: "  ", Data: []byte("x")}}); err == nil {
		t.Fatal("expected error for empty entry path")
	}
}

func TestUnpackCorruptBytes(t *testing.T) {
	err := Unpack([]byte("this is not a zip"), t.TempDir())
	var cErr *CorruptError
	if !errors.As(err, &cErr) {
		t.Fatalf("want *CorruptError, got %v", err)
	}
}

func TestUnpackRejectsTraversalEntry(t *testing.T) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.Create("../escape.txt")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := w.Write([]byte("pwned")); err != nil {
		t.Fatal(err)
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}

	parent := t.TempDir()
	dest := filepath.Join(parent, "out")
	if err := os.Mkdir(dest, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := Unpack(buf.Bytes(), dest); err == nil {
		t.Fatal("expected unsafe-entry error")
	}
	if _, err := os.Stat(filepath.Join(parent, "escape.txt")); !os.IsNotExist(err) {
		t.Fatal("traversal entry escaped the destination")
	}
}

func TestUnpackOverwritesExistingFiles(t *testing.T) {
	dest := t.TempDir()
	target := filepath.Join(dest, "a.txt")
	if err := os.WriteFile(target, []byte("old"), 0o644); err != nil {
		t.Fatal(err)
	}
	data, err := Pack([]Entry{{Path: "a.txt", Data: []byte("new")}})
	if err != nil {
		t.Fatal(err)
	}
	if err := Unpack(data, dest); err != nil {
		t.Fatalf("Unpack: %v", err)
	}
	got, err := os.ReadFile(target)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "new" {
		t.Fatalf("got %q, want overwrite to new", got)
	}
}

func TestPackDirPreservesRelativeStructure(t *testing.T) {
	root := t.TempDir()
	files := map[string]string{
		"src/App.jsx":    "app",
		"styles/app.css": "css",
		"index.html":     "html",
	}
	for rel, content := range files {
		abs := filepath.Join(root, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(abs, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	data, err := PackDir(root)
	if err != nil {
		t.Fatalf("PackDir: %v", err)
	}
	r, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		t.Fatal(err)
	}
	got := map[string]bool{}
	for _, f := range r.File {
		got[f.Name] = true
	}
	for rel := range files {
		if !got[rel] {
			t.Errorf("missing entry %s", rel)
		}
	}
}

func TestCleanEntryPath(t *testing.T) {
	cases := []struct {
		in   string
		want string
		ok   bool
	}{
		{"src/App.vue", "src/App.vue", true},
		{"./src/App.vue", "src/App.vue", true},
		{"src//nested/../App.vue", "src/App.vue", true},
		{"", "", false},
		{"   ", "", false},
		{"/etc/passwd", "", false},
		{"../outside.txt", "", false},
		{"a/../../outside.txt", "", false},
		{`C:\windows\system32`, "", false},
		{".", "", false},
	}
	for _, tc := range cases {
		got, ok := CleanEntryPath(tc.in)
		if ok != tc.ok || got != tc.want {
			t.Errorf("CleanEntryPath(%q) = (%q, %v), want (%q, %v)", tc.in, got, ok, tc.want, tc.ok)
		}
	}
}
