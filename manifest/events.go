package manifest

import (
	"encoding/json"
	"fmt"
)

// Listener is a callback function that receives events during the build process.
type Listener func(fmt.Stringer)

func jsonString(v interface{}) string {
	b, _ := json.Marshal(map[string]interface{}{
		fmt.Sprintf("%T", v): v,
	})
	return string(b)
}

// EventPackageLoadSuccess is emitted when a package definition is successfully loaded.
type EventPackageLoadSuccess struct {
	FilePath string `json:"file_path,omitempty"`
	Package  string `json:"package,omitempty"`
}

func (e EventPackageLoadSuccess) String() string { return jsonString(e) }

// EventResourceCollected is emitted for every resource collection added to the package.
type EventResourceCollected struct {
	Side   string `json:"side,omitempty"`
	Kind   string `json:"kind,omitempty"`
	Source string `json:"source,omitempty"`
	Prefix string `json:"prefix,omitempty"`
}

func (e EventResourceCollected) String() string { return jsonString(e) }

// EventPackageWrite is emitted when a package is written to disk.
type EventPackageWrite struct {
	Path         string `json:"path,omitempty"`
	Package      string `json:"package,omitempty"`
	Version      string `json:"version,omitempty"`
	Architecture string `json:"architecture,omitempty"`
}

func (e EventPackageWrite) String() string { return jsonString(e) }
