package deb

import (
	"fmt"
	"strconv"
	"strings"
)

// Metadata holds the package identity written to the 'control' file.
//
// Reference: https://www.debian.org/doc/debian-policy/ch-controlfields.html#binary-package-control-files-debian-control
type Metadata struct {
	// Package is the name of the package. Required.
	Package string

	// Version is the version number of the package. Required.
	Version string

	// Architecture defaults to "all" when empty.
	Architecture string

	// Section defaults to "misc" when empty.
	Section string

	// Priority defaults to "extra" when empty. Values outside Priorities
	// are written as-is after a warning.
	Priority string

	// Depends is a free-text relationship expression, e.g. "libc6 (>= 2.31), git".
	Depends string

	Description Description
}

// Description is the synopsis and extended description of the package.
type Description struct {
	Short string
	Long  string
}

// AddText appends a contribution to the long description, passing it
// through expand first when expand is not nil.
func (d *Description) AddText(text string, expand func(string) string) {
	if expand != nil {
		text = expand(text)
	}
	d.Long += text
}

// Field is a custom control field.
type Field struct {
	Name  string
	Value string
}

// Control is the control-side declaration of a package: custom control
// fields, maintainer scripts and conffiles, and debconf templates.
type Control struct {
	// Fields are written before the computed fields, in order.
	Fields []Field
	// Resources are added to control.tar.gz after the control file.
	Resources []Collection
	// Templates are serialized into the 'templates' control file.
	Templates []TemplateEntry
}

// fieldList is an insertion-ordered set of control fields with
// case-insensitive names.
type fieldList struct {
	names  []string
	values map[string]string
}

func (l *fieldList) key(name string) string { return strings.ToLower(name) }

func (l *fieldList) has(name string) bool {
	_, ok := l.values[l.key(name)]
	return ok
}

// set replaces the value of an existing field in place, or appends it.
func (l *fieldList) set(name, value string) {
	if l.values == nil {
		l.values = make(map[string]string)
	}
	k := l.key(name)
	if _, ok := l.values[k]; !ok {
		l.names = append(l.names, name)
	}
	l.values[k] = value
}

func (l *fieldList) writeTo(b *strings.Builder) {
	for _, name := range l.names {
		fmt.Fprintf(b, "%s: %s\n", name, l.values[l.key(name)])
	}
}

// customFields checks and collects the custom fields of c.
func customFields(c *Control) (*fieldList, error) {
	l := &fieldList{}
	if c == nil {
		return l, nil
	}
	for _, f := range c.Fields {
		if f.Name == "" || strings.ContainsAny(f.Name, ": \t\n") {
			return nil, newError(ErrValidation, f.Name, "invalid control field name %q", f.Name)
		}
		if strings.Contains(f.Value, "\n") {
			return nil, newError(ErrValidation, f.Name, "control field value must be a single line")
		}
		for _, r := range reservedFields {
			if strings.EqualFold(f.Name, string(r)) {
				return nil, newError(ErrMetadataConflict, f.Name, "reserved control field, set it through the package metadata")
			}
		}
		if l.has(f.Name) {
			return nil, newError(ErrMetadataConflict, f.Name, "duplicated control field")
		}
		l.set(f.Name, f.Value)
	}
	return l, nil
}

// installedSize sums the declared size of every resource in cols.
func installedSize(cols []Collection) (int64, error) {
	var total int64
	for _, col := range cols {
		if col.Source == nil {
			continue
		}
		err := col.Source.Walk(func(r Resource) error {
			total += r.Size
			return nil
		})
		if err != nil {
			return 0, err
		}
	}
	return total, nil
}

// generateControlFile renders the 'control' file. Installed-Size, unless
// given as a custom field, is the size of the data resources in KiB,
// truncated.
func (p *Package) generateControlFile() ([]byte, error) {
	fields, err := customFields(p.Control)
	if err != nil {
		return nil, err
	}

	m := p.Metadata
	fields.set(string(FieldPackage), m.Package)
	fields.set(string(FieldVersion), m.Version)
	fields.set(string(FieldArchitecture), m.Architecture)
	fields.set(string(FieldSection), m.Section)
	fields.set(string(FieldPriority), m.Priority)
	if m.Depends != "" {
		fields.set(string(FieldDepends), m.Depends)
	}
	if !fields.has(string(FieldInstalledSize)) {
		size, err := installedSize(p.Data)
		if err != nil {
			return nil, ioError(string(FieldInstalledSize), err)
		}
		fields.set(string(FieldInstalledSize), strconv.FormatInt(size/1024, 10))
	}

	var b strings.Builder
	fields.writeTo(&b)
	fmt.Fprintf(&b, "%s: %s\n", FieldDescription, m.Description.Short)
	// The continuation lines follow the Description line directly; each
	// already starts with its own space.
	if strings.TrimSpace(m.Description.Long) != "" {
		b.WriteString(EncodeExtended(m.Description.Long))
	}
	return []byte(b.String()), nil
}
