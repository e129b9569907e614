package storage

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/bsoera/econ"
)

const (
	DataDirName  = "bso_server_data"
	superDirName = "superdata"
	// InstancePrefix routes a key into the per-instance tree when it starts its first segment.
	InstancePrefix = "s"
)

// Resolver maps logical slash separated keys to document files.
type Resolver struct {
	Root     string
	SuperDir string
}

// DefaultRoot is the data folder two directories above the working directory.
func DefaultRoot() (string, error) {
	wd, err := os.Getwd()
	if err != nil {
		return "", econ.WithStack(err)
	}
	return filepath.Join(wd, "..", "..", DataDirName), nil
}

// Resolve never fails, malformed keys just produce odd paths.
func (r Resolver) Resolve(key string) string {
	segments := strings.Split(key, "/")
	base := r.Root
	if strings.HasPrefix(segments[0], InstancePrefix) {
		segments[0] = strings.TrimPrefix(segments[0], InstancePrefix)
		base = filepath.Join(r.Root, superDirName, r.SuperDir)
	}
	return filepath.Join(append([]string{base}, segments...)...) + ".json"
}
