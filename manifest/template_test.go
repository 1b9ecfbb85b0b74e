package manifest

import "testing"

func TestRender(t *testing.T) {
	e := newTemplateEngine(map[string]string{"name": "demo", "version": "1.0"})

	got, err := e.render("t", "{{.name}}_{{.version | upper}}")
	if err != nil {
		t.Fatal(err)
	}
	if got != "demo_1.0" {
		t.Errorf("unexpected render %q", got)
	}

	if got, _ := e.render("t", "no template ${name}"); got != "no template ${name}" {
		t.Errorf("plain text must be returned as-is, got %q", got)
	}

	if _, err := e.render("t", "{{.missing}}"); err == nil {
		t.Errorf("expected an error for a missing key")
	}
}

func TestSubOverrides(t *testing.T) {
	parent := newTemplateEngine(map[string]string{"a": "1", "b": "2"})
	child := parent.sub(map[string]string{"b": "3"})

	if got, _ := child.render("t", "{{.a}}{{.b}}"); got != "13" {
		t.Errorf("expected 13, got %q", got)
	}
	if got, _ := parent.render("t", "{{.b}}"); got != "2" {
		t.Errorf("parent must be unchanged, got %q", got)
	}
}

func TestExpand(t *testing.T) {
	e := newTemplateEngine(map[string]string{"version": "2.1", "os": "linux"})
	tests := []struct {
		in   string
		want string
	}{
		{"Built ${version} for ${os}.", "Built 2.1 for linux."},
		{"Unknown ${nope} stays", "Unknown ${nope} stays"},
		{"$version is not a reference", "$version is not a reference"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := e.expand(tt.in); got != tt.want {
			t.Errorf("expand(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
