package deb

import (
	"archive/tar"
	"bytes"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/klauspost/compress/gzip"
	"github.com/ulikunitz/xz"
)

// EntryKind tells what a Resource becomes in the tar stream.
type EntryKind int

const (
	RegularFile EntryKind = iota
	Directory
	Symlink
)

func (k EntryKind) String() string {
	switch k {
	case RegularFile:
		return "file"
	case Directory:
		return "directory"
	case Symlink:
		return "symlink"
	default:
		return "unknown"
	}
}

// Resource is a single entry yielded by a Source.
type Resource struct {
	// Name is the path relative to the owning collection. Both '/' and '\'
	// are accepted as separators.
	Name string

	Kind EntryKind

	// Size is the content length in bytes. Only meaningful for RegularFile.
	Size int64

	// Open returns the content of a RegularFile. Sources that stream
	// (ArchiveSource) only guarantee it during the Walk callback.
	Open func() (io.ReadCloser, error)

	// LinkTarget is the target of a Symlink.
	LinkTarget string

	// Mode is the permission the source reports. Zero selects the archiver
	// default. A collection FileMode/DirMode override wins over it.
	Mode int64

	// ModTime is stored in the archive. If zero, the build time is used.
	ModTime time.Time
}

// Source enumerates resources in a stable, source-defined order.
// Walk stops at the first error returned by fn and returns it.
type Source interface {
	Walk(fn func(Resource) error) error
}

// Attributes is the ownership and permission block shared by a whole collection.
// Zero values select the archiver defaults (root:root, 0644 files, 0755 directories).
type Attributes struct {
	Owner    string
	Group    string
	UID      int
	GID      int
	FileMode int64
	DirMode  int64
}

// Collection is a group of resources sharing a destination prefix and,
// optionally, an ownership/permission block.
type Collection struct {
	// Prefix is prepended to every resource name.
	Prefix string
	// Attrs, when nil, means the collection carries no attribute metadata.
	Attrs  *Attributes
	Source Source
}

// ResourceList is a Source over an explicit list of resources.
type ResourceList []Resource

// Walk implements Source.
func (l ResourceList) Walk(fn func(Resource) error) error {
	for _, r := range l {
		if err := fn(r); err != nil {
			return err
		}
	}
	return nil
}

// FileResource returns a regular file resource holding body.
func FileResource(name string, body []byte, mode int64) Resource {
	return Resource{
		Name: name,
		Kind: RegularFile,
		Size: int64(len(body)),
		Mode: mode,
		Open: func() (io.ReadCloser, error) {
			return io.NopCloser(bytes.NewReader(body)), nil
		},
	}
}

// DirResource returns an explicit directory resource.
func DirResource(name string, mode int64) Resource {
	return Resource{Name: name, Kind: Directory, Mode: mode}
}

// SymlinkResource returns a symbolic link resource pointing at target.
func SymlinkResource(name, target string) Resource {
	return Resource{Name: name, Kind: Symlink, LinkTarget: target}
}

// DirSource walks a plain file tree rooted at Root, in lexical order.
// Include and Exclude hold path.Match patterns tested against both the
// slash-separated relative path and the base name. An empty Include selects
// everything; Exclude always wins and prunes excluded directories.
type DirSource struct {
	Root    string
	Include []string
	Exclude []string
}

// Walk implements Source.
func (d DirSource) Walk(fn func(Resource) error) error {
	return filepath.WalkDir(d.Root, func(p string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(d.Root, p)
		if err != nil {
			return err
		}
		if rel == "." {
			return nil
		}
		rel = filepath.ToSlash(rel)

		if matchAny(d.Exclude, rel) {
			if entry.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if len(d.Include) > 0 && !matchAny(d.Include, rel) {
			return nil
		}

		info, err := entry.Info()
		if err != nil {
			return err
		}
		r := Resource{
			Name:    rel,
			Mode:    int64(info.Mode().Perm()),
			ModTime: info.ModTime(),
		}
		switch {
		case info.Mode()&fs.ModeSymlink != 0:
			target, err := os.Readlink(p)
			if err != nil {
				return err
			}
			r.Kind = Symlink
			r.LinkTarget = target
		case info.IsDir():
			r.Kind = Directory
		case info.Mode().IsRegular():
			r.Kind = RegularFile
			r.Size = info.Size()
			r.Open = func() (io.ReadCloser, error) { return os.Open(p) }
		default:
			return fmt.Errorf("%s: unsupported file type %s", p, info.Mode().Type())
		}
		return fn(r)
	})
}

func matchAny(patterns []string, rel string) bool {
	base := path.Base(rel)
	for _, p := range patterns {
		if ok, _ := path.Match(p, rel); ok {
			return true
		}
		if ok, _ := path.Match(p, base); ok {
			return true
		}
	}
	return false
}

// ArchiveSource re-emits the entries of a nested tarball. The compression is
// chosen from the extension: .tar, .tar.gz/.tgz or .tar.xz/.txz.
type ArchiveSource struct {
	Path string
}

// Walk implements Source. The Open function of a yielded resource reads the
// current tar entry and is only valid until fn returns.
func (a ArchiveSource) Walk(fn func(Resource) error) error {
	f, err := os.Open(a.Path)
	if err != nil {
		return err
	}
	defer f.Close()

	var r io.Reader = f
	lower := strings.ToLower(a.Path)
	switch {
	case strings.HasSuffix(lower, ".gz"), strings.HasSuffix(lower, ".tgz"):
		gzr, err := gzip.NewReader(f)
		if err != nil {
			return fmt.Errorf("opening %s: %w", a.Path, err)
		}
		defer gzr.Close()
		r = gzr
	case strings.HasSuffix(lower, ".xz"), strings.HasSuffix(lower, ".txz"):
		xzr, err := xz.NewReader(f)
		if err != nil {
			return fmt.Errorf("opening %s: %w", a.Path, err)
		}
		r = xzr
	}

	tr := tar.NewReader(r)
	for {
		th, err := tr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("reading %s: %w", a.Path, err)
		}

		name := strings.TrimPrefix(th.Name, "./")
		if name == "" || name == "." {
			continue
		}
		res := Resource{
			Name:    name,
			Mode:    th.Mode & 0o7777,
			ModTime: th.ModTime,
		}
		switch th.Typeflag {
		case tar.TypeReg:
			res.Kind = RegularFile
			res.Size = th.Size
			res.Open = func() (io.ReadCloser, error) { return io.NopCloser(tr), nil }
		case tar.TypeDir:
			res.Kind = Directory
		case tar.TypeSymlink:
			res.Kind = Symlink
			res.LinkTarget = th.Linkname
		default:
			return fmt.Errorf("%s: entry %s has unsupported type %q", a.Path, th.Name, th.Typeflag)
		}
		if err := fn(res); err != nil {
			return err
		}
	}
}
