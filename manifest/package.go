package manifest

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/etnz/debuild/deb"
	"github.com/sirupsen/logrus"
)

// Package represents the definition of a Debian package.
// It contains metadata, payload resources, scripts, and debconf templates
// loaded from a configuration file.
type Package struct {
	// Defines is a map of variables available to templates in this package.
	Defines map[string]string `json:"defines" yaml:"defines" toml:"defines"`
	// Meta holds the package identity.
	Meta Meta `json:"meta" yaml:"meta" toml:"meta"`
	// Description is the synopsis and extended description.
	Description Description `json:"description" yaml:"description" toml:"description"`
	// Fields are custom control fields, written in order before the computed ones.
	Fields []Field `json:"fields" yaml:"fields" toml:"fields"`
	// Files is a list of single files to add to the package payload.
	Files []File `json:"files" yaml:"files" toml:"files"`
	// Trees is a list of directories added recursively to the payload.
	Trees []Tree `json:"trees" yaml:"trees" toml:"trees"`
	// Archives is a list of tarballs whose entries are added to the payload.
	Archives []Archive `json:"archives" yaml:"archives" toml:"archives"`
	// Symlinks is a list of symbolic links to add to the payload.
	Symlinks []Symlink `json:"symlinks" yaml:"symlinks" toml:"symlinks"`
	// Scripts is a list of maintainer scripts to add to the package.
	Scripts []File `json:"scripts" yaml:"scripts" toml:"scripts"`
	// ControlFiles is a list of auxiliary control files to add.
	ControlFiles []File `json:"control_files" yaml:"control_files" toml:"control_files"`
	// Templates is a list of debconf questions.
	Templates []Template `json:"templates" yaml:"templates" toml:"templates"`

	filePath string
	engine   *templateEngine
}

// Meta is the package identity block.
type Meta struct {
	Package      string `json:"package" yaml:"package" toml:"package"`
	Version      string `json:"version" yaml:"version" toml:"version"`
	Architecture string `json:"architecture" yaml:"architecture" toml:"architecture"`
	Section      string `json:"section" yaml:"section" toml:"section"`
	Priority     string `json:"priority" yaml:"priority" toml:"priority"`
	Depends      string `json:"depends" yaml:"depends" toml:"depends"`
}

// Description is the package description. Long is rendered as a template;
// every Text contribution is appended to it after ${name} substitution.
type Description struct {
	Short string   `json:"short" yaml:"short" toml:"short"`
	Long  string   `json:"long" yaml:"long" toml:"long"`
	Text  []string `json:"text" yaml:"text" toml:"text"`
}

// Field is a custom control field.
type Field struct {
	Name  string `json:"name" yaml:"name" toml:"name"`
	Value string `json:"value" yaml:"value" toml:"value"`
}

// File represents a file resource to be added to the package.
type File struct {
	// Src is the path to the source file (relative to the package definition file), or an http(s) URL.
	Src string `json:"src" yaml:"src" toml:"src"`
	// Dst is the absolute path where the file will be installed on the target system.
	Dst string `json:"dst" yaml:"dst" toml:"dst"`
	// Raw indicates whether the file should be treated as raw content (true) or processed as a template (false).
	Raw bool `json:"raw" yaml:"raw" toml:"raw"`
	// Mode is the file permissions in octal string format (e.g., "0755").
	Mode string `json:"mode" yaml:"mode" toml:"mode"`
	// Conffile indicates if the file should be marked as a configuration file.
	Conffile bool `json:"conffile" yaml:"conffile" toml:"conffile"`
}

// Ownership is the attribute block shared by every entry of a tree or an archive.
type Ownership struct {
	Owner    string `json:"owner" yaml:"owner" toml:"owner"`
	Group    string `json:"group" yaml:"group" toml:"group"`
	UID      int    `json:"uid" yaml:"uid" toml:"uid"`
	GID      int    `json:"gid" yaml:"gid" toml:"gid"`
	FileMode string `json:"file_mode" yaml:"file_mode" toml:"file_mode"`
	DirMode  string `json:"dir_mode" yaml:"dir_mode" toml:"dir_mode"`
}

// Tree is a directory added recursively under Prefix.
type Tree struct {
	Dir       string   `json:"dir" yaml:"dir" toml:"dir"`
	Prefix    string   `json:"prefix" yaml:"prefix" toml:"prefix"`
	Include   []string `json:"include" yaml:"include" toml:"include"`
	Exclude   []string `json:"exclude" yaml:"exclude" toml:"exclude"`
	Ownership `yaml:",inline"`
}

// Archive is a tar, tar.gz or tar.xz file whose entries are added under Prefix.
type Archive struct {
	Src       string `json:"src" yaml:"src" toml:"src"`
	Prefix    string `json:"prefix" yaml:"prefix" toml:"prefix"`
	Ownership `yaml:",inline"`
}

// Symlink is a symbolic link in the payload.
type Symlink struct {
	Name   string `json:"name" yaml:"name" toml:"name"`
	Target string `json:"target" yaml:"target" toml:"target"`
}

// Template is a debconf question.
type Template struct {
	Namespace string `json:"namespace" yaml:"namespace" toml:"namespace"`
	ID        string `json:"id" yaml:"id" toml:"id"`
	Type      string `json:"type" yaml:"type" toml:"type"`
	Default   string `json:"default" yaml:"default" toml:"default"`
	Short     string `json:"short" yaml:"short" toml:"short"`
	Long      string `json:"long" yaml:"long" toml:"long"`
}

var scriptNames = map[string]deb.ControlFile{
	"preinst":  deb.FilePreinst,
	"postinst": deb.FilePostinst,
	"prerm":    deb.FilePrerm,
	"postrm":   deb.FilePostrm,
	"config":   deb.FileConfig,
}

func (p *Package) resolve(path string) string {
	if filepath.IsAbs(path) || isURL(path) {
		return path
	}
	return filepath.Join(filepath.Dir(p.filePath), path)
}

func isURL(path string) bool {
	return strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://")
}

func (p *Package) loadResource(path string, raw bool) (string, error) {
	var content []byte
	var err error

	if isURL(path) {
		resp, err := http.Get(path)
		if err != nil {
			return "", fmt.Errorf("failed to fetch resource %s: %w", path, err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			return "", fmt.Errorf("failed to fetch resource %s: %s", path, resp.Status)
		}

		content, err = io.ReadAll(resp.Body)
		if err != nil {
			return "", fmt.Errorf("failed to read resource body %s: %w", path, err)
		}
	} else {
		resolved := p.resolve(path)
		content, err = os.ReadFile(resolved)
		if err != nil {
			return "", fmt.Errorf("reading resource %s: %w", resolved, err)
		}
	}

	if raw {
		return string(content), nil
	}
	return p.engine.render(path, string(content))
}

// fileResource turns a File into a payload resource. Raw local files are
// streamed from disk at build time; everything else is loaded now.
func (p *Package) fileResource(src, dst string, raw bool, mode int64) (deb.Resource, error) {
	if raw && !isURL(src) {
		resolved := p.resolve(src)
		info, err := os.Stat(resolved)
		if err != nil {
			return deb.Resource{}, fmt.Errorf("reading resource %s: %w", resolved, err)
		}
		if !info.Mode().IsRegular() {
			return deb.Resource{}, fmt.Errorf("resource %s is not a regular file", resolved)
		}
		return deb.Resource{
			Name:    dst,
			Kind:    deb.RegularFile,
			Size:    info.Size(),
			Mode:    mode,
			ModTime: info.ModTime(),
			Open:    func() (io.ReadCloser, error) { return os.Open(resolved) },
		}, nil
	}
	content, err := p.loadResource(src, raw)
	if err != nil {
		return deb.Resource{}, err
	}
	return deb.FileResource(dst, []byte(content), mode), nil
}

func parseMode(s string) (int64, error) {
	if s == "" {
		return 0, nil
	}
	mode, err := strconv.ParseInt(s, 8, 64)
	if err != nil {
		return 0, fmt.Errorf("parsing mode %s: %w", s, err)
	}
	return mode, nil
}

func (p *Package) attributes(name string, o Ownership) (*deb.Attributes, error) {
	fileMode, err := p.engine.render(name+".file_mode", o.FileMode)
	if err != nil {
		return nil, err
	}
	dirMode, err := p.engine.render(name+".dir_mode", o.DirMode)
	if err != nil {
		return nil, err
	}
	attrs := &deb.Attributes{UID: o.UID, GID: o.GID}
	if attrs.FileMode, err = parseMode(fileMode); err != nil {
		return nil, err
	}
	if attrs.DirMode, err = parseMode(dirMode); err != nil {
		return nil, err
	}
	if attrs.Owner, err = p.engine.render(name+".owner", o.Owner); err != nil {
		return nil, err
	}
	if attrs.Group, err = p.engine.render(name+".group", o.Group); err != nil {
		return nil, err
	}
	return attrs, nil
}

// renderAll renders each (name, text) pair in place.
func (p *Package) renderAll(fields ...*string) error {
	for i := 0; i+1 < len(fields); i += 2 {
		out, err := p.engine.render(*fields[i], *fields[i+1])
		if err != nil {
			return fmt.Errorf("rendering %s: %w", *fields[i], err)
		}
		*fields[i+1] = out
	}
	return nil
}

// Build generates a deb.Package from the definition.
// It renders templates, loads resources, and populates the package structure.
func (p *Package) Build(l Listener) (*deb.Package, error) {
	if l == nil {
		l = func(fmt.Stringer) {}
	}

	meta := p.Meta
	err := p.renderAll(
		ptr("meta.package"), &meta.Package,
		ptr("meta.version"), &meta.Version,
		ptr("meta.architecture"), &meta.Architecture,
		ptr("meta.section"), &meta.Section,
		ptr("meta.priority"), &meta.Priority,
		ptr("meta.depends"), &meta.Depends,
	)
	if err != nil {
		return nil, err
	}

	pkg := &deb.Package{
		Metadata: deb.Metadata{
			Package:      meta.Package,
			Version:      meta.Version,
			Architecture: meta.Architecture,
			Section:      meta.Section,
			Priority:     meta.Priority,
			Depends:      meta.Depends,
		},
		Control: &deb.Control{},
	}

	if pkg.Metadata.Description.Short, err = p.engine.render("description.short", p.Description.Short); err != nil {
		return nil, fmt.Errorf("rendering description.short: %w", err)
	}
	if pkg.Metadata.Description.Long, err = p.engine.render("description.long", p.Description.Long); err != nil {
		return nil, fmt.Errorf("rendering description.long: %w", err)
	}
	for _, text := range p.Description.Text {
		pkg.Metadata.Description.AddText(text, p.engine.expand)
	}

	for i, f := range p.Fields {
		value, err := p.engine.render(fmt.Sprintf("fields[%d].value", i), f.Value)
		if err != nil {
			return nil, err
		}
		pkg.Control.Fields = append(pkg.Control.Fields, deb.Field{Name: f.Name, Value: value})
	}

	if err := p.addFiles(pkg, l); err != nil {
		return nil, err
	}
	if err := p.addTrees(pkg, l); err != nil {
		return nil, err
	}
	if err := p.addArchives(pkg, l); err != nil {
		return nil, err
	}
	if err := p.addSymlinks(pkg, l); err != nil {
		return nil, err
	}
	if err := p.addControlResources(pkg, l); err != nil {
		return nil, err
	}
	if err := p.addTemplates(pkg); err != nil {
		return nil, err
	}
	return pkg, nil
}

func (p *Package) addFiles(pkg *deb.Package, l Listener) error {
	var files deb.ResourceList
	var conffiles []string
	for i, f := range p.Files {
		src, err := p.engine.render(fmt.Sprintf("files[%d].src", i), f.Src)
		if err != nil {
			return err
		}
		dst, err := p.engine.render(fmt.Sprintf("files[%d].dst", i), f.Dst)
		if err != nil {
			return err
		}
		modeStr, err := p.engine.render(fmt.Sprintf("files[%d].mode", i), f.Mode)
		if err != nil {
			return err
		}
		mode, err := parseMode(modeStr)
		if err != nil {
			return err
		}

		r, err := p.fileResource(src, dst, f.Raw, mode)
		if err != nil {
			return err
		}
		files = append(files, r)
		if f.Conffile {
			conffiles = append(conffiles, path.Join("/", filepath.ToSlash(dst)))
		}
	}
	if len(files) > 0 {
		pkg.Data = append(pkg.Data, deb.Collection{Source: files})
		l(EventResourceCollected{Side: "data", Kind: "files", Source: fmt.Sprintf("%d files", len(files))})
	}
	if len(conffiles) > 0 {
		body := strings.Join(conffiles, "\n") + "\n"
		pkg.Control.Resources = append(pkg.Control.Resources, deb.Collection{
			Source: deb.ResourceList{deb.FileResource(string(deb.FileConffiles), []byte(body), 0644)},
		})
		l(EventResourceCollected{Side: "control", Kind: "conffiles", Source: string(deb.FileConffiles)})
	}
	return nil
}

func (p *Package) addTrees(pkg *deb.Package, l Listener) error {
	for i, t := range p.Trees {
		name := fmt.Sprintf("trees[%d]", i)
		dir, err := p.engine.render(name+".dir", t.Dir)
		if err != nil {
			return err
		}
		prefix, err := p.engine.render(name+".prefix", t.Prefix)
		if err != nil {
			return err
		}
		attrs, err := p.attributes(name, t.Ownership)
		if err != nil {
			return err
		}
		root := p.resolve(dir)
		info, err := os.Stat(root)
		if err != nil {
			return fmt.Errorf("reading tree %s: %w", root, err)
		}
		if !info.IsDir() {
			return fmt.Errorf("tree %s is not a directory", root)
		}
		pkg.Data = append(pkg.Data, deb.Collection{
			Prefix: prefix,
			Attrs:  attrs,
			Source: deb.DirSource{Root: root, Include: t.Include, Exclude: t.Exclude},
		})
		l(EventResourceCollected{Side: "data", Kind: "tree", Source: root, Prefix: prefix})
	}
	return nil
}

func (p *Package) addArchives(pkg *deb.Package, l Listener) error {
	for i, a := range p.Archives {
		name := fmt.Sprintf("archives[%d]", i)
		src, err := p.engine.render(name+".src", a.Src)
		if err != nil {
			return err
		}
		prefix, err := p.engine.render(name+".prefix", a.Prefix)
		if err != nil {
			return err
		}
		attrs, err := p.attributes(name, a.Ownership)
		if err != nil {
			return err
		}
		resolved := p.resolve(src)
		if _, err := os.Stat(resolved); err != nil {
			return fmt.Errorf("reading archive %s: %w", resolved, err)
		}
		pkg.Data = append(pkg.Data, deb.Collection{
			Prefix: prefix,
			Attrs:  attrs,
			Source: deb.ArchiveSource{Path: resolved},
		})
		l(EventResourceCollected{Side: "data", Kind: "archive", Source: resolved, Prefix: prefix})
	}
	return nil
}

func (p *Package) addSymlinks(pkg *deb.Package, l Listener) error {
	var links deb.ResourceList
	for i, s := range p.Symlinks {
		name, err := p.engine.render(fmt.Sprintf("symlinks[%d].name", i), s.Name)
		if err != nil {
			return err
		}
		target, err := p.engine.render(fmt.Sprintf("symlinks[%d].target", i), s.Target)
		if err != nil {
			return err
		}
		if name == "" || target == "" {
			return fmt.Errorf("symlinks[%d]: name and target are required", i)
		}
		links = append(links, deb.SymlinkResource(name, target))
	}
	if len(links) > 0 {
		pkg.Data = append(pkg.Data, deb.Collection{Source: links})
		l(EventResourceCollected{Side: "data", Kind: "symlinks", Source: fmt.Sprintf("%d links", len(links))})
	}
	return nil
}

func (p *Package) addControlResources(pkg *deb.Package, l Listener) error {
	var scripts deb.ResourceList
	for i, f := range p.Scripts {
		src, err := p.engine.render(fmt.Sprintf("scripts[%d].src", i), f.Src)
		if err != nil {
			return err
		}
		dst, err := p.engine.render(fmt.Sprintf("scripts[%d].dst", i), f.Dst)
		if err != nil {
			return err
		}
		script, ok := scriptNames[dst]
		if !ok {
			return fmt.Errorf("unknown script dst: %s", dst)
		}
		content, err := p.loadResource(src, f.Raw)
		if err != nil {
			return err
		}
		scripts = append(scripts, deb.FileResource(string(script), []byte(content), 0))
	}
	if len(scripts) > 0 {
		pkg.Control.Resources = append(pkg.Control.Resources, deb.Collection{
			Attrs:  &deb.Attributes{FileMode: 0755},
			Source: scripts,
		})
		l(EventResourceCollected{Side: "control", Kind: "scripts", Source: fmt.Sprintf("%d scripts", len(scripts))})
	}

	var extra deb.ResourceList
	for i, f := range p.ControlFiles {
		src, err := p.engine.render(fmt.Sprintf("control_files[%d].src", i), f.Src)
		if err != nil {
			return err
		}
		dst, err := p.engine.render(fmt.Sprintf("control_files[%d].dst", i), f.Dst)
		if err != nil {
			return err
		}
		switch deb.ControlFile(dst) {
		case deb.FileControl, deb.FileTemplates:
			return fmt.Errorf("control_files[%d]: %s is generated", i, dst)
		}
		modeStr, err := p.engine.render(fmt.Sprintf("control_files[%d].mode", i), f.Mode)
		if err != nil {
			return err
		}
		mode, err := parseMode(modeStr)
		if err != nil {
			return err
		}
		content, err := p.loadResource(src, f.Raw)
		if err != nil {
			return err
		}
		extra = append(extra, deb.FileResource(dst, []byte(content), mode))
	}
	if len(extra) > 0 {
		pkg.Control.Resources = append(pkg.Control.Resources, deb.Collection{Source: extra})
		l(EventResourceCollected{Side: "control", Kind: "control_files", Source: fmt.Sprintf("%d files", len(extra))})
	}
	return nil
}

func (p *Package) addTemplates(pkg *deb.Package) error {
	for i, t := range p.Templates {
		name := fmt.Sprintf("templates[%d]", i)
		if err := p.renderAll(
			ptr(name+".namespace"), &t.Namespace,
			ptr(name+".id"), &t.ID,
			ptr(name+".type"), &t.Type,
			ptr(name+".default"), &t.Default,
			ptr(name+".short"), &t.Short,
			ptr(name+".long"), &t.Long,
		); err != nil {
			return err
		}
		typ, err := deb.ParseQuestionType(t.Type)
		if err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
		pkg.Control.Templates = append(pkg.Control.Templates, deb.TemplateEntry{
			Namespace: t.Namespace,
			ID:        t.ID,
			Type:      typ,
			Default:   t.Default,
			ShortDesc: t.Short,
			LongDesc:  t.Long,
		})
	}
	return nil
}

func ptr(s string) *string { return &s }

// Options controls how Compile writes the package.
type Options struct {
	// Output is the target file. When empty or an existing directory, the
	// standard package file name is used inside it.
	Output  string
	Buffers deb.BufferOptions
	ModTime time.Time

	// ClampModTime caps source timestamps at ModTime.
	ClampModTime bool
	Logger       logrus.FieldLogger
}

// Compile builds the package and writes it to disk. It returns the path of
// the written file.
func (p *Package) Compile(opts Options, l Listener) (string, error) {
	if l == nil {
		l = func(fmt.Stringer) {}
	}
	pkg, err := p.Build(l)
	if err != nil {
		return "", fmt.Errorf("failed to build package %q: %w", p.filePath, err)
	}
	pkg.Buffers = opts.Buffers
	pkg.ModTime = opts.ModTime
	pkg.ClampModTime = opts.ClampModTime
	pkg.Logger = opts.Logger

	out := opts.Output
	if info, err := os.Stat(out); out == "" || (err == nil && info.IsDir()) {
		out = filepath.Join(out, pkg.StandardFilename())
	}
	if err := pkg.WriteFile(out); err != nil {
		return "", err
	}
	l(EventPackageWrite{
		Path:         out,
		Package:      pkg.Metadata.Package,
		Version:      pkg.Metadata.Version,
		Architecture: pkg.Metadata.Architecture,
	})
	return out, nil
}
