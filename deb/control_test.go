package deb

import (
	"bytes"
	"strings"
	"testing"
)

func TestGenerateControlFile(t *testing.T) {
	p := &Package{
		Metadata: Metadata{
			Package: "demo",
			Version: "1.0",
			Depends: "libc6 (>= 2.31), git",
			Description: Description{
				Short: "Demo package",
				Long:  "\nFirst paragraph.\n\nSecond paragraph.\n",
			},
		},
		Control: &Control{Fields: []Field{
			{Name: "Maintainer", Value: "Jane Doe <jane@example.com>"},
			{Name: "Section", Value: "utils"},
		}},
		Logger: quietLogger(),
	}

	out, err := p.ControlFile()
	if err != nil {
		t.Fatalf("ControlFile failed: %v", err)
	}

	expected := "Maintainer: Jane Doe <jane@example.com>\n" +
		"Section: misc\n" +
		"Package: demo\n" +
		"Version: 1.0\n" +
		"Architecture: all\n" +
		"Priority: extra\n" +
		"Depends: libc6 (>= 2.31), git\n" +
		"Installed-Size: 0\n" +
		"Description: Demo package\n" +
		" First paragraph.\n" +
		" .\n" +
		" Second paragraph.\n"
	if string(out) != expected {
		t.Errorf("expected:\n%s\ngot:\n%s", expected, out)
	}
}

func TestControlFileSingleIdentityLines(t *testing.T) {
	p := demoPackage()
	p.Metadata.Architecture = "amd64"
	p.Control = &Control{Fields: []Field{{Name: "Homepage", Value: "https://example.com"}}}
	out, err := p.ControlFile()
	if err != nil {
		t.Fatal(err)
	}
	for _, line := range []string{"Package: demo", "Version: 1.0", "Architecture: amd64"} {
		if c := strings.Count(string(out), line+"\n"); c != 1 {
			t.Errorf("expected exactly one %q line, got %d", line, c)
		}
	}
}

func TestControlFileWithoutDescription(t *testing.T) {
	p := demoPackage()
	p.Metadata.Description = Description{}
	out, err := p.ControlFile()
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasSuffix(string(out), "Description: \n") {
		t.Errorf("expected an empty Description field, got:\n%s", out)
	}
}

func TestInstalledSize(t *testing.T) {
	tests := []struct {
		sizes []int
		want  string
	}{
		{nil, "0"},
		{[]int{1023}, "0"},
		{[]int{1024}, "1"},
		{[]int{2048}, "2"},
		{[]int{1024, 1023}, "1"},
		{[]int{5000, 5000}, "9"},
	}
	for _, tt := range tests {
		var list ResourceList
		for i, s := range tt.sizes {
			list = append(list, FileResource(strings.Repeat("f", i+1), bytes.Repeat([]byte("x"), s), 0))
		}
		p := demoPackage()
		// Directories and symlinks weigh nothing.
		p.Data = []Collection{
			{Source: list},
			{Source: ResourceList{DirResource("var/lib/demo", 0), SymlinkResource("usr/bin/demo", "/opt/demo")}},
		}
		out, err := p.ControlFile()
		if err != nil {
			t.Fatal(err)
		}
		if !strings.Contains(string(out), "Installed-Size: "+tt.want+"\n") {
			t.Errorf("sizes %v: expected Installed-Size %s, got:\n%s", tt.sizes, tt.want, out)
		}
	}
}

func TestInstalledSizeOverride(t *testing.T) {
	p := demoPackage()
	p.Control = &Control{Fields: []Field{{Name: "Installed-Size", Value: "42"}}}
	out, err := p.ControlFile()
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(string(out), "Installed-Size: 42\n") {
		t.Errorf("expected the custom Installed-Size first, got:\n%s", out)
	}
	if strings.Count(string(out), "Installed-Size") != 1 {
		t.Errorf("Installed-Size written more than once:\n%s", out)
	}
}

func TestCustomFieldErrors(t *testing.T) {
	tests := []struct {
		name   string
		fields []Field
		kind   ErrorKind
	}{
		{"duplicate", []Field{{"Maintainer", "a"}, {"Maintainer", "b"}}, ErrMetadataConflict},
		{"duplicate other case", []Field{{"Homepage", "a"}, {"homepage", "b"}}, ErrMetadataConflict},
		{"reserved", []Field{{"Description", "x"}}, ErrMetadataConflict},
		{"empty name", []Field{{"", "x"}}, ErrValidation},
		{"colon in name", []Field{{"X:Y", "x"}}, ErrValidation},
		{"multi-line value", []Field{{"X-Note", "a\nb"}}, ErrValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := customFields(&Control{Fields: tt.fields})
			if err == nil {
				t.Fatal("expected an error")
			}
			if kind, _ := KindOf(err); kind != tt.kind {
				t.Errorf("expected %s, got %s", tt.kind, kind)
			}
		})
	}
}

func TestDescriptionAddText(t *testing.T) {
	var d Description
	props := map[string]string{"name": "demo"}
	expand := func(s string) string {
		return strings.ReplaceAll(s, "${name}", props["name"])
	}
	d.AddText("The ${name} tool.\n", expand)
	d.AddText("\nUnexpanded ${name}.", nil)
	if want := "The demo tool.\n\nUnexpanded ${name}."; d.Long != want {
		t.Errorf("expected %q, got %q", want, d.Long)
	}
}
