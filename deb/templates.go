package deb

import (
	"fmt"
	"strings"
)

// QuestionType is the type of a debconf question.
//
// Reference: https://manpages.debian.org/unstable/debconf-doc/debconf-devel.7.en.html#Templates
type QuestionType int

const (
	TypeString QuestionType = iota
	TypePassword
	TypeBoolean
	TypeSelect
	TypeMultiselect
	TypeNote
	TypeText
	TypeTitle
	TypeError
)

var questionTypeNames = []string{"string", "password", "boolean", "select", "multiselect", "note", "text", "title", "error"}

// String returns the lower-case name used in the templates file.
func (t QuestionType) String() string {
	if t < 0 || int(t) >= len(questionTypeNames) {
		return fmt.Sprintf("QuestionType(%d)", int(t))
	}
	return questionTypeNames[t]
}

// ParseQuestionType parses a question type name, ignoring case.
func ParseQuestionType(s string) (QuestionType, error) {
	for i, name := range questionTypeNames {
		if strings.EqualFold(s, name) {
			return QuestionType(i), nil
		}
	}
	return 0, fmt.Errorf("unknown debconf question type %q", s)
}

// TemplateEntry is a debconf question.
type TemplateEntry struct {
	// Namespace defaults to the package name.
	Namespace string
	ID        string
	Type      QuestionType
	// Default is omitted from the stanza when empty.
	Default   string
	ShortDesc string
	// LongDesc falls back to ShortDesc when empty.
	LongDesc string
}

// FullID returns "namespace/id", or "" when the entry has no id.
func (t *TemplateEntry) FullID() string {
	if t.ID == "" {
		return ""
	}
	return t.Namespace + "/" + t.ID
}

// Template looks up a template entry by full id when id contains a slash,
// by short id otherwise. The returned entry is a copy whose namespace
// defaults to the package name, as in the generated 'templates' file.
func (p *Package) Template(id string) (*TemplateEntry, error) {
	if p.Control != nil {
		for _, t := range p.Control.Templates {
			if t.Namespace == "" {
				t.Namespace = p.Metadata.Package
			}
			if strings.Contains(id, "/") {
				if t.FullID() == id {
					return &t, nil
				}
			} else if t.ID == id {
				return &t, nil
			}
		}
	}
	return nil, fmt.Errorf("no such template entry: %s", id)
}

// generateTemplates renders the 'templates' file, one stanza per entry,
// separated by blank lines. Any invalid entry aborts the whole file.
func generateTemplates(entries []TemplateEntry) ([]byte, error) {
	var b strings.Builder
	for i, t := range entries {
		id := t.FullID()
		if id == "" {
			return nil, newError(ErrValidation, fmt.Sprintf("templates[%d]", i), "template id missing")
		}
		if t.ShortDesc == "" {
			return nil, newError(ErrValidation, id, "template has no short description")
		}
		if i > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "Template: %s\n", id)
		if t.Default != "" {
			fmt.Fprintf(&b, "Default: %s\n", t.Default)
		}
		fmt.Fprintf(&b, "Type: %s\n", t.Type)
		fmt.Fprintf(&b, "Description: %s\n", t.ShortDesc)
		long := t.LongDesc
		if long == "" {
			long = t.ShortDesc
		}
		b.WriteString(EncodeExtended(long))
	}
	return []byte(b.String()), nil
}
