package deb

import (
	"archive/tar"
	"fmt"
	"io"
	"path"
	"strings"
	"time"
)

const (
	defaultFileMode    int64 = 0o644
	defaultDirMode     int64 = 0o755
	defaultSymlinkMode int64 = 0o777
	defaultOwner             = "root"
)

// tarArchiver writes resources as GNU tar entries, synthesizing missing
// parent directories. One archiver serves exactly one tar stream.
type tarArchiver struct {
	tw      *tar.Writer
	modTime time.Time
	// clamp caps resource modification times at modTime instead of letting them override it.
	clamp bool
	// dirs holds the directories already written to this stream, with a trailing slash.
	dirs map[string]bool
}

func newTarArchiver(w io.Writer, modTime time.Time) *tarArchiver {
	return &tarArchiver{
		tw:      tar.NewWriter(w),
		modTime: modTime.Truncate(time.Second),
		dirs:    make(map[string]bool),
	}
}

// close writes the tar footer. It does not close the underlying writer.
func (a *tarArchiver) close() error {
	return a.tw.Close()
}

// header returns a header pre-filled with the collection's ownership.
func (a *tarArchiver) header(name string, typ byte, attrs *Attributes) *tar.Header {
	h := &tar.Header{
		Name:     name,
		Typeflag: typ,
		ModTime:  a.modTime,
		Uname:    defaultOwner,
		Gname:    defaultOwner,
		Format:   tar.FormatGNU,
	}
	if attrs != nil {
		if attrs.Owner != "" {
			h.Uname = attrs.Owner
			h.Uid = attrs.UID
		}
		if attrs.Group != "" {
			h.Gname = attrs.Group
			h.Gid = attrs.GID
		}
	}
	return h
}

// writeFile writes a generated regular file at the root of the stream.
func (a *tarArchiver) writeFile(name ControlFile, body []byte, mode int64) error {
	h := a.header(string(name), tar.TypeReg, nil)
	h.Mode = mode
	h.Size = int64(len(body))
	if err := a.tw.WriteHeader(h); err != nil {
		return fmt.Errorf("writing %s header: %w", name, err)
	}
	if _, err := a.tw.Write(body); err != nil {
		return fmt.Errorf("writing %s: %w", name, err)
	}
	return nil
}

// addCollections writes every resource of cols, collection by collection,
// in iteration order.
func (a *tarArchiver) addCollections(cols []Collection) error {
	for _, col := range cols {
		if col.Source == nil {
			continue
		}
		err := col.Source.Walk(func(r Resource) error {
			return a.add(col, r)
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// add writes a single resource of col.
func (a *tarArchiver) add(col Collection, r Resource) error {
	name := resolveName(col.Prefix, r.Name)
	if name == "" {
		return nil
	}
	if err := a.ensureParents(name, col.Attrs); err != nil {
		return err
	}

	var h *tar.Header
	switch r.Kind {
	case Directory:
		dir := name + "/"
		if a.dirs[dir] {
			return nil
		}
		h = a.header(dir, tar.TypeDir, col.Attrs)
		h.Mode = pickMode(col.Attrs, r.Mode, true)
		a.dirs[dir] = true
	case Symlink:
		h = a.header(name, tar.TypeSymlink, col.Attrs)
		h.Linkname = r.LinkTarget
		h.Mode = defaultSymlinkMode
	case RegularFile:
		h = a.header(name, tar.TypeReg, col.Attrs)
		h.Mode = pickMode(col.Attrs, r.Mode, false)
		h.Size = r.Size
	default:
		return fmt.Errorf("%s: unknown resource kind %d", name, r.Kind)
	}
	if !r.ModTime.IsZero() {
		if mt := r.ModTime.Truncate(time.Second); !a.clamp || mt.Before(h.ModTime) {
			h.ModTime = mt
		}
	}

	if err := a.tw.WriteHeader(h); err != nil {
		return fmt.Errorf("writing %s header: %w", name, err)
	}
	if r.Kind != RegularFile || r.Size == 0 {
		return nil
	}
	if r.Open == nil {
		return fmt.Errorf("%s: no content", name)
	}
	rc, err := r.Open()
	if err != nil {
		return fmt.Errorf("opening %s: %w", name, err)
	}
	defer rc.Close()
	n, err := io.Copy(a.tw, rc)
	if err != nil {
		return fmt.Errorf("writing %s: %w", name, err)
	}
	if n != r.Size {
		return fmt.Errorf("writing %s: declared %d bytes, read %d", name, r.Size, n)
	}
	return nil
}

// ensureParents writes a directory entry for every ancestor of name that is
// not yet in the stream, outermost first.
func (a *tarArchiver) ensureParents(name string, attrs *Attributes) error {
	for i := 0; i < len(name); i++ {
		if name[i] != '/' {
			continue
		}
		dir := name[:i+1]
		if a.dirs[dir] {
			continue
		}
		h := a.header(dir, tar.TypeDir, attrs)
		h.Mode = pickMode(attrs, 0, true)
		if err := a.tw.WriteHeader(h); err != nil {
			return fmt.Errorf("writing %s header: %w", dir, err)
		}
		a.dirs[dir] = true
	}
	return nil
}

func pickMode(attrs *Attributes, own int64, dir bool) int64 {
	if attrs != nil {
		if dir && attrs.DirMode != 0 {
			return attrs.DirMode
		}
		if !dir && attrs.FileMode != 0 {
			return attrs.FileMode
		}
	}
	if own != 0 {
		return own
	}
	if dir {
		return defaultDirMode
	}
	return defaultFileMode
}

// resolveName joins prefix and name with forward slashes, without doubling
// the separator, and makes the result relative.
func resolveName(prefix, name string) string {
	name = strings.ReplaceAll(name, `\`, "/")
	prefix = strings.ReplaceAll(prefix, `\`, "/")
	if prefix != "" {
		switch {
		case strings.HasSuffix(prefix, "/") && strings.HasPrefix(name, "/"):
			name = prefix + name[1:]
		case strings.HasSuffix(prefix, "/") || strings.HasPrefix(name, "/"):
			name = prefix + name
		default:
			name = prefix + "/" + name
		}
	}
	if name != "" {
		name = path.Clean(name)
	}
	if name == "." {
		return ""
	}
	return strings.Trim(name, "/")
}
