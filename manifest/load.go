// Package manifest builds Debian packages from declarative definition files.
package manifest

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"go.yaml.in/yaml/v3"
)

// Load reads and parses a package definition from the specified file path.
// It supports JSON, YAML and TOML formats based on the file extension.
// Defines override the definitions declared in the file.
func Load(path string, defines map[string]string, l Listener) (*Package, error) {
	if l == nil {
		l = func(fmt.Stringer) {}
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read package definition: %w", err)
	}

	var pkg Package
	if err := unmarshal(path, content, &pkg); err != nil {
		return nil, fmt.Errorf("failed to parse package definition %s: %w", path, err)
	}

	pkg.filePath = path
	pkg.engine = newTemplateEngine(pkg.Defines).sub(defines)

	if pkg.Meta.Package == "" {
		return nil, fmt.Errorf("package definition %s must specify 'meta.package'", path)
	}
	l(EventPackageLoadSuccess{FilePath: path, Package: pkg.Meta.Package})
	return &pkg, nil
}

// unmarshal parses JSON, YAML or TOML based on file extension.
// Unknown keys are rejected in every format.
func unmarshal(path string, data []byte, v interface{}) error {
	ext := strings.ToLower(filepath.Ext(path))
	r := bytes.NewReader(data)
	switch ext {
	case ".yaml", ".yml":
		dec := yaml.NewDecoder(r)
		dec.KnownFields(true)
		return dec.Decode(v)
	case ".toml":
		md, err := toml.NewDecoder(r).Decode(v)
		if err != nil {
			return err
		}
		if undecoded := md.Undecoded(); len(undecoded) > 0 {
			return fmt.Errorf("unknown field %q", undecoded[0].String())
		}
		return nil
	}
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}
