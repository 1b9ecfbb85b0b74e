package deb

import (
	"archive/tar"
	"bytes"
	"io"
	"strings"
	"testing"
	"time"
)

// archive writes cols into a plain tar stream and reads it back.
func archive(t *testing.T, cols ...Collection) []*tar.Header {
	t.Helper()
	var buf bytes.Buffer
	a := newTarArchiver(&buf, time.Unix(1700000000, 0))
	if err := a.addCollections(cols); err != nil {
		t.Fatalf("addCollections failed: %v", err)
	}
	if err := a.close(); err != nil {
		t.Fatalf("close failed: %v", err)
	}

	tr := tar.NewReader(&buf)
	var headers []*tar.Header
	for {
		th, err := tr.Next()
		if err == io.EOF {
			return headers
		}
		if err != nil {
			t.Fatalf("reading tar: %v", err)
		}
		headers = append(headers, th)
	}
}

func headerNames(headers []*tar.Header) string {
	var names []string
	for _, h := range headers {
		names = append(names, h.Name)
	}
	return strings.Join(names, " ")
}

func TestArchiverParentDirectories(t *testing.T) {
	headers := archive(t,
		Collection{Source: ResourceList{
			FileResource("x/y/z", []byte("z"), 0),
			FileResource("x/y/w", []byte("w"), 0),
		}},
		Collection{Source: ResourceList{
			FileResource("x/v", []byte("v"), 0),
			SymlinkResource("x/y/u/link", "../z"),
		}},
	)
	want := "x/ x/y/ x/y/z x/y/w x/v x/y/u/ x/y/u/link"
	if got := headerNames(headers); got != want {
		t.Errorf("expected %q, got %q", want, got)
	}
	for _, h := range headers {
		if strings.HasSuffix(h.Name, "/") && (h.Typeflag != tar.TypeDir || h.Mode != defaultDirMode) {
			t.Errorf("%s: expected a 0755 directory, got type %c mode %o", h.Name, h.Typeflag, h.Mode)
		}
	}
}

func TestArchiverExplicitDirectories(t *testing.T) {
	headers := archive(t, Collection{Source: ResourceList{
		DirResource("opt/demo", 0o700),
		FileResource("opt/demo/run", []byte("run"), 0),
		DirResource("opt/demo/", 0),
	}})
	want := "opt/ opt/demo/ opt/demo/run"
	if got := headerNames(headers); got != want {
		t.Errorf("expected %q, got %q", want, got)
	}
	if headers[1].Mode != 0o700 {
		t.Errorf("opt/demo/: expected mode 0700, got %o", headers[1].Mode)
	}
}

func TestArchiverSymlink(t *testing.T) {
	headers := archive(t, Collection{Source: ResourceList{SymlinkResource("usr/bin/demo", "/opt/demo/run")}})
	link := headers[len(headers)-1]
	if link.Typeflag != tar.TypeSymlink || link.Linkname != "/opt/demo/run" || link.Size != 0 {
		t.Errorf("unexpected symlink header: %+v", link)
	}
	if got := headerNames(headers); got != "usr/ usr/bin/ usr/bin/demo" {
		t.Errorf("unexpected entries %q", got)
	}
}

func TestArchiverAttributes(t *testing.T) {
	attrs := &Attributes{Owner: "www-data", UID: 33, Group: "adm", GID: 4, FileMode: 0o640, DirMode: 0o750}
	headers := archive(t,
		Collection{Prefix: "srv", Attrs: attrs, Source: ResourceList{FileResource("site/index.html", []byte("<html>"), 0o644)}},
		Collection{Source: ResourceList{FileResource("srv/other", []byte("o"), 0o600)}},
	)
	if got := headerNames(headers); got != "srv/ srv/site/ srv/site/index.html srv/other" {
		t.Fatalf("unexpected entries %q", got)
	}
	for _, h := range headers[:2] {
		if h.Mode != 0o750 || h.Uname != "www-data" || h.Gname != "adm" || h.Uid != 33 || h.Gid != 4 {
			t.Errorf("%s: overrides not applied to synthesized directory: %+v", h.Name, h)
		}
	}
	if h := headers[2]; h.Mode != 0o640 || h.Uname != "www-data" || h.Gid != 4 {
		t.Errorf("%s: overrides not applied: %+v", h.Name, h)
	}
	if h := headers[3]; h.Mode != 0o600 || h.Uname != defaultOwner || h.Gname != defaultOwner || h.Uid != 0 {
		t.Errorf("%s: expected defaults with the resource mode: %+v", h.Name, h)
	}
}

func TestArchiverLongNames(t *testing.T) {
	long := strings.Repeat("d", 60) + "/" + strings.Repeat("f", 80)
	target := strings.Repeat("t", 120)
	headers := archive(t, Collection{Source: ResourceList{
		FileResource(long, []byte("long"), 0),
		SymlinkResource(long+".link", target),
	}})
	if len(headers) != 3 {
		t.Fatalf("expected 3 entries, got %q", headerNames(headers))
	}
	if headers[1].Name != long {
		t.Errorf("long name truncated: %q", headers[1].Name)
	}
	if headers[2].Linkname != target {
		t.Errorf("long link target truncated: %q", headers[2].Linkname)
	}
	if headers[1].Format != tar.FormatGNU {
		t.Errorf("expected GNU format, got %v", headers[1].Format)
	}
}

func TestArchiverSizeMismatch(t *testing.T) {
	r := FileResource("a", []byte("abc"), 0)
	r.Size = 10
	var buf bytes.Buffer
	a := newTarArchiver(&buf, time.Now())
	if err := a.addCollections([]Collection{{Source: ResourceList{r}}}); err == nil {
		t.Errorf("expected an error when the content is shorter than declared")
	}
}

func TestResolveName(t *testing.T) {
	tests := []struct {
		prefix, name, want string
	}{
		{"", "etc/demo.conf", "etc/demo.conf"},
		{"", "/etc/demo.conf", "etc/demo.conf"},
		{"", "./etc/demo.conf", "etc/demo.conf"},
		{"usr/share", "doc/x", "usr/share/doc/x"},
		{"usr/share/", "doc/x", "usr/share/doc/x"},
		{"usr/share", "/doc/x", "usr/share/doc/x"},
		{"usr/share/", "/doc/x", "usr/share/doc/x"},
		{"/usr/share", "doc/x", "usr/share/doc/x"},
		{`usr\share`, `doc\x`, "usr/share/doc/x"},
		{"opt/demo", "", "opt/demo"},
		{"", "usr//bin/x", "usr/bin/x"},
		{"usr/", "//bin//x", "usr/bin/x"},
		{"", ".", ""},
	}
	for _, tt := range tests {
		if got := resolveName(tt.prefix, tt.name); got != tt.want {
			t.Errorf("resolveName(%q, %q): expected %q, got %q", tt.prefix, tt.name, tt.want, got)
		}
	}
}

func TestArchiverCollapsesSeparators(t *testing.T) {
	headers := archive(t, Collection{Source: ResourceList{FileResource("usr//bin/x", []byte("x"), 0)}})
	want := "usr/ usr/bin/ usr/bin/x"
	if got := headerNames(headers); got != want {
		t.Errorf("expected %q, got %q", want, got)
	}
}

func TestArchiverClampModTime(t *testing.T) {
	build := time.Unix(1000, 0)
	older := Resource{Name: "old", Kind: RegularFile, ModTime: time.Unix(500, 0)}
	newer := Resource{Name: "etc/new", Kind: RegularFile, ModTime: time.Unix(1700000000, 0)}

	for _, clamp := range []bool{false, true} {
		var buf bytes.Buffer
		a := newTarArchiver(&buf, build)
		a.clamp = clamp
		if err := a.addCollections([]Collection{{Source: ResourceList{older, newer}}}); err != nil {
			t.Fatal(err)
		}
		a.close()

		got := map[string]int64{}
		tr := tar.NewReader(&buf)
		for {
			h, err := tr.Next()
			if err == io.EOF {
				break
			}
			if err != nil {
				t.Fatal(err)
			}
			got[h.Name] = h.ModTime.Unix()
		}
		wantNew := int64(1700000000)
		if clamp {
			wantNew = 1000
		}
		if got["old"] != 500 || got["etc/"] != 1000 || got["etc/new"] != wantNew {
			t.Errorf("clamp=%v: unexpected times %v", clamp, got)
		}
	}
}
