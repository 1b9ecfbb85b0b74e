package deb

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/blakesmith/ar"
	"github.com/dustin/go-humanize"
	"github.com/klauspost/compress/gzip"
	"github.com/sirupsen/logrus"
)

// Package is the declaration of a Debian binary package: metadata, the
// control-side block and the data-side resources. It is not modified by a
// build; several builds of distinct packages may run concurrently.
type Package struct {
	Metadata Metadata

	// Control is optional. When nil, control.tar.gz only holds the control file.
	Control *Control

	// Data holds the payload collections, written to data.tar.gz in order.
	Data []Collection

	// ModTime is stored on archive members and synthesized entries.
	// If zero, the build time is used.
	ModTime time.Time

	// ClampModTime caps the timestamps supplied by sources at ModTime, so
	// that a fixed ModTime makes the whole archive reproducible.
	ClampModTime bool

	Buffers BufferOptions

	// Logger receives warnings and progress. If nil, the logrus standard logger is used.
	Logger logrus.FieldLogger
}

// StandardFilename returns the canonical filename for the package.
// Format: {Package}_{Version}_{Architecture}.deb
//
// Reference: https://www.debian.org/doc/manuals/debian-faq/ch-pkg_basics.en.html#s-pkgname
func (p *Package) StandardFilename() string {
	arch := p.Metadata.Architecture
	if arch == "" {
		arch = DefaultArchitecture
	}
	return fmt.Sprintf("%s_%s_%s.deb", p.Metadata.Package, p.Metadata.Version, arch)
}

// buildState is a step of the assembly.
type buildState int

const (
	stateValidating buildState = iota
	stateWritingVersion
	stateWritingControl
	stateWritingData
	stateClosed
	stateFailed
)

func (s buildState) String() string {
	switch s {
	case stateValidating:
		return "validating"
	case stateWritingVersion:
		return "writing " + string(PkgDebianBinary)
	case stateWritingControl:
		return "writing " + string(PkgControlTarGz)
	case stateWritingData:
		return "writing " + string(PkgDataTarGz)
	case stateClosed:
		return "closed"
	default:
		return "failed"
	}
}

// build is one assembly of a Package. pkg is a normalized copy of the
// declaration, templates the flattened debconf entries.
type build struct {
	pkg       Package
	templates []TemplateEntry
	state     buildState
	log       logrus.FieldLogger
}

// prepare validates p and returns a build ready to write. Every check that
// can be done without producing output is done here.
func (p *Package) prepare() (*build, error) {
	log := p.Logger
	if log == nil {
		log = logrus.StandardLogger()
	}
	b := &build{pkg: *p, state: stateValidating}
	b.log = log.WithField("package", p.Metadata.Package)
	if b.pkg.ModTime.IsZero() {
		b.pkg.ModTime = time.Now()
	}

	m := &b.pkg.Metadata
	if m.Architecture == "" {
		m.Architecture = DefaultArchitecture
	}
	if m.Section == "" {
		m.Section = DefaultSection
	}
	if m.Priority == "" {
		m.Priority = DefaultPriority
	}

	required := []struct {
		field ControlField
		value string
	}{
		{FieldPackage, m.Package},
		{FieldVersion, m.Version},
		{FieldArchitecture, m.Architecture},
	}
	for _, r := range required {
		if strings.TrimSpace(r.value) == "" {
			return nil, b.fail(newError(ErrConfiguration, string(r.field), "attribute is missing or invalid"))
		}
	}

	if !isKnownPriority(m.Priority) {
		b.log.Warnf("Priority '%s' isn't recognized as a valid value", m.Priority)
	}

	if _, err := customFields(p.Control); err != nil {
		return nil, b.fail(err)
	}

	if p.Control != nil {
		seen := make(map[string]bool)
		for _, t := range p.Control.Templates {
			if t.Namespace == "" {
				t.Namespace = m.Package
			}
			if id := t.FullID(); id != "" {
				if seen[id] {
					return nil, b.fail(newError(ErrMetadataConflict, id, "duplicated template entry"))
				}
				seen[id] = true
			}
			b.templates = append(b.templates, t)
		}
		if _, err := generateTemplates(b.templates); err != nil {
			return nil, b.fail(err)
		}
	}
	return b, nil
}

func isKnownPriority(priority string) bool {
	for _, known := range Priorities {
		if strings.EqualFold(priority, known) {
			return true
		}
	}
	return false
}

func (b *build) enter(s buildState) {
	b.state = s
	b.log.Debugf("state: %s", s)
}

// fail moves the build to the failed state and wraps err with the stage it happened in.
func (b *build) fail(err error) error {
	stage := b.state
	b.state = stateFailed
	if _, ok := KindOf(err); !ok {
		err = ioError(stage.String(), err)
	}
	return &BuildError{Package: b.pkg.Metadata.Package, Stage: stage.String(), Err: err}
}

// WriteTo generates the .deb package and writes it to the provided io.Writer.
// It returns the total number of bytes written and any error encountered.
// This satisfies the io.WriterTo interface. On error, whatever was written to w
// is not a valid package.
func (p *Package) WriteTo(w io.Writer) (int64, error) {
	b, err := p.prepare()
	if err != nil {
		return 0, err
	}
	return b.writeTo(w)
}

// WriteFile builds the package into path. The file is only created or
// replaced when the build succeeds; a failed validation does not touch the
// filesystem at all.
func (p *Package) WriteFile(path string) error {
	b, err := p.prepare()
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return b.fail(err)
	}
	defer os.Remove(tmp.Name())

	if _, err := b.writeTo(tmp); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return b.fail(err)
	}
	if err := os.Chmod(tmp.Name(), 0644); err != nil {
		return b.fail(err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return b.fail(err)
	}
	b.log.Infof("Created %s", path)
	return nil
}

// writeTo runs the member-writing states. All buffers are released before
// it returns, whatever the outcome.
func (b *build) writeTo(w io.Writer) (int64, error) {
	cw := &countingWriter{w: w}
	pool := newBufferPool(b.pkg.Buffers)
	defer func() {
		if rerr := pool.release(); rerr != nil {
			b.log.Warnf("releasing buffers: %v", rerr)
		}
	}()

	modTime := b.pkg.ModTime
	arW := ar.NewWriter(cw)

	// Reference: https://manpages.debian.org/unstable/dpkg-dev/deb.5.en.html#FORMAT
	b.enter(stateWritingVersion)
	if err := arW.WriteGlobalHeader(); err != nil {
		return cw.n, b.fail(err)
	}
	if err := addBufferToAr(arW, PkgDebianBinary, debianBinary, modTime); err != nil {
		return cw.n, b.fail(err)
	}

	b.enter(stateWritingControl)
	if err := b.writeMember(arW, pool, PkgControlTarGz, b.buildControlArchive); err != nil {
		return cw.n, b.fail(err)
	}

	b.enter(stateWritingData)
	if err := b.writeMember(arW, pool, PkgDataTarGz, b.buildDataArchive); err != nil {
		return cw.n, b.fail(err)
	}

	b.enter(stateClosed)
	return cw.n, nil
}

// writeMember materializes a member with gen into a fresh buffer, then
// copies it into the ar archive now that its length is known.
func (b *build) writeMember(arW *ar.Writer, pool *bufferPool, name PackageFile, gen func(io.Writer) error) error {
	buf := pool.get()
	if err := gen(buf); err != nil {
		return err
	}
	if err := buf.Close(); err != nil {
		return err
	}
	if err := addSpillToAr(arW, name, buf, b.pkg.ModTime); err != nil {
		return ioError(string(name), err)
	}
	b.log.Debugf("wrote %s (%s)", name, humanize.Bytes(uint64(buf.Len())))
	return nil
}

// buildControlArchive writes control.tar.gz: the control file, the
// control-side resources and the debconf templates.
func (b *build) buildControlArchive(w io.Writer) error {
	gw := gzip.NewWriter(w)
	a := newTarArchiver(gw, b.pkg.ModTime)
	a.clamp = b.pkg.ClampModTime

	control, err := b.pkg.generateControlFile()
	if err != nil {
		return err
	}
	if err := a.writeFile(FileControl, control, defaultFileMode); err != nil {
		return err
	}
	if b.pkg.Control != nil {
		if err := a.addCollections(b.pkg.Control.Resources); err != nil {
			return ioError("control resources", err)
		}
	}
	if len(b.templates) > 0 {
		templates, err := generateTemplates(b.templates)
		if err != nil {
			return err
		}
		if err := a.writeFile(FileTemplates, templates, defaultFileMode); err != nil {
			return err
		}
	}
	if err := a.close(); err != nil {
		return err
	}
	return gw.Close()
}

// buildDataArchive writes data.tar.gz from the data-side collections.
func (b *build) buildDataArchive(w io.Writer) error {
	gw := gzip.NewWriter(w)
	a := newTarArchiver(gw, b.pkg.ModTime)
	a.clamp = b.pkg.ClampModTime
	if err := a.addCollections(b.pkg.Data); err != nil {
		return ioError("data resources", err)
	}
	if err := a.close(); err != nil {
		return err
	}
	return gw.Close()
}

// Templates renders the 'templates' control file on its own, with the same
// validation and namespace defaulting as a full build. It returns nil when
// the package declares no template.
func (p *Package) Templates() ([]byte, error) {
	b, err := p.prepare()
	if err != nil {
		return nil, err
	}
	if len(b.templates) == 0 {
		return nil, nil
	}
	return generateTemplates(b.templates)
}

// ControlFile renders the 'control' file on its own.
func (p *Package) ControlFile() ([]byte, error) {
	b, err := p.prepare()
	if err != nil {
		return nil, err
	}
	return b.pkg.generateControlFile()
}
