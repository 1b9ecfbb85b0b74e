package deb

import (
	"testing"
)

func TestGenerateTemplates(t *testing.T) {
	entries := []TemplateEntry{
		{
			Namespace: "demo",
			ID:        "port",
			Type:      TypeString,
			Default:   "8080",
			ShortDesc: "Listening port",
			LongDesc:  "Port the daemon listens on.\n\nUse 0 to disable.",
		},
		{
			Namespace: "demo",
			ID:        "enable",
			Type:      TypeBoolean,
			ShortDesc: "Start at boot?",
		},
	}

	out, err := generateTemplates(entries)
	if err != nil {
		t.Fatalf("generateTemplates failed: %v", err)
	}

	expected := "Template: demo/port\n" +
		"Default: 8080\n" +
		"Type: string\n" +
		"Description: Listening port\n" +
		" Port the daemon listens on.\n" +
		" .\n" +
		" Use 0 to disable.\n" +
		"\n" +
		"Template: demo/enable\n" +
		"Type: boolean\n" +
		"Description: Start at boot?\n" +
		" Start at boot?\n"
	if string(out) != expected {
		t.Errorf("expected:\n%q\ngot:\n%q", expected, out)
	}
}

func TestGenerateTemplatesValidation(t *testing.T) {
	tests := []struct {
		name    string
		entries []TemplateEntry
		subject string
	}{
		{"missing id", []TemplateEntry{{Namespace: "demo", ShortDesc: "x"}}, "templates[0]"},
		{"missing short description", []TemplateEntry{{Namespace: "demo", ID: "a", ShortDesc: "a"}, {Namespace: "demo", ID: "b"}}, "demo/b"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := generateTemplates(tt.entries)
			if err == nil {
				t.Fatal("expected an error")
			}
			if out != nil {
				t.Errorf("expected no partial output, got %q", out)
			}
			e, ok := err.(*Error)
			if !ok || e.Kind != ErrValidation || e.Subject != tt.subject {
				t.Errorf("expected a %s error on %s, got %v", ErrValidation, tt.subject, err)
			}
		})
	}
}

func TestTemplateLookup(t *testing.T) {
	p := &Package{
		Metadata: Metadata{Package: "demo"},
		Control: &Control{Templates: []TemplateEntry{
			{ID: "port", ShortDesc: "Port"},
			{Namespace: "other", ID: "host", ShortDesc: "Host"},
		}},
	}

	for _, id := range []string{"port", "demo/port"} {
		got, err := p.Template(id)
		if err != nil {
			t.Fatalf("Template(%q) failed: %v", id, err)
		}
		if got.ShortDesc != "Port" || got.Namespace != "demo" {
			t.Errorf("Template(%q): got %+v", id, got)
		}
	}
	if p.Control.Templates[0].Namespace != "" {
		t.Errorf("lookup must not modify the declaration")
	}
	if got, err := p.Template("other/host"); err != nil || got.ShortDesc != "Host" {
		t.Errorf("Template(other/host) = %+v, %v", got, err)
	}
	if _, err := p.Template("demo/host"); err == nil {
		t.Errorf("Template(demo/host): expected an error, full id lookup must match the namespace")
	}
	if _, err := p.Template("missing"); err == nil {
		t.Errorf("Template(missing): expected an error")
	}
	if _, err := (&Package{}).Template("port"); err == nil {
		t.Errorf("expected an error for a package without control block")
	}
}
