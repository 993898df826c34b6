package outline

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/javierasping/Markdown-translation/mdfile"
)

func write(t *testing.T, root, rel, content string) {
	t.Helper()
	path := filepath.Join(root, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestBuild(t *testing.T) {
	root := t.TempDir()
	write(t, root, "redes/_index.md", "---\ntitle: Redes\nmenu:\n  sidebar:\n    name: Redes y Sistemas\n---\n")
	write(t, root, "redes/vlan/_index.md", "---\ntitle: VLAN\nidentifier: vlan\n---\n")
	write(t, root, "redes/dns/_index.md", "---\ntitle: DNS\nidentifier: dns\n---\n")
	write(t, root, "redes/borrador/_index.md", "---\ntitle: Sin identificador\n---\n")
	write(t, root, "redes/vacio/notas.md", "x\n")
	write(t, root, "base_de_datos/sql/_index.md", "---\ntitle: SQL\nidentifier: sql\n---\n")
	write(t, root, ".hidden/x/_index.md", "---\ntitle: X\nidentifier: x\n---\n")
	write(t, root, "README.md", "top-level files are ignored\n")

	out, err := Build(root)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	want := Outline{
		"redes": {
			Title:      "Redes y Sistemas",
			Identifier: "redes",
			Children: []Post{
				{Title: "DNS", Identifier: "dns"},
				{Title: "VLAN", Identifier: "vlan"},
			},
		},
		"base_de_datos": {
			Title:      "Base De Datos",
			Identifier: "base_de_datos",
			Children:   []Post{{Title: "SQL", Identifier: "sql"}},
		},
	}
	if !reflect.DeepEqual(out, want) {
		t.Fatalf("Build() = %+v\nwant %+v", out, want)
	}
}

func TestBuildInvalidIndex(t *testing.T) {
	root := t.TempDir()
	write(t, root, "a/_index.md", "---\ntitle: [x\n---\n")

	if _, err := Build(root); !errors.Is(err, mdfile.ErrParse) {
		t.Fatalf("Build() error = %v, want ErrParse", err)
	}
}

func TestEncode(t *testing.T) {
	var buf bytes.Buffer
	o := Outline{
		"b": {Title: "B", Identifier: "b", Children: []Post{}},
		"a": {Title: "A", Identifier: "a", Children: []Post{{Title: "Uno", Identifier: "uno"}}},
	}
	if err := o.Encode(&buf); err != nil {
		t.Fatalf("Encode: %v", err)
	}
	want := `a:
  title: A
  identifier: a
  children:
    - title: Uno
      identifier: uno
b:
  title: B
  identifier: b
  children: []
`
	if buf.String() != want {
		t.Fatalf("Encode() =\n%s\nwant\n%s", buf.String(), want)
	}
}

func TestTitleCase(t *testing.T) {
	for in, want := range map[string]string{
		"hola MUNDO": "Hola Mundo",
		"2024 notas": "2024 Notas",
	} {
		if got := titleCase(in); got != want {
			t.Errorf("titleCase(%q) = %q, want %q", in, got, want)
		}
	}
}
