package storage

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/bsoera/econ"
	"github.com/bsoera/econ/structs"
	"github.com/pkg/errors"

	goccy "github.com/goccy/go-json"
)

// Store reads and writes whole JSON documents addressed by logical keys.
// Writes are atomic renames, and writers of the same file are serialized.
type Store struct {
	resolver Resolver
	locks    *econ.SyncMap[string, struct{}]
	now      func() time.Time
}

func New(resolver Resolver) *Store {
	return &Store{
		resolver: resolver,
		locks:    econ.NewSyncMap[string, struct{}](),
		now:      time.Now,
	}
}

func (s *Store) Resolver() Resolver {
	return s.resolver
}

// SetClock replaces the clock used to decide expiry.
func (s *Store) SetClock(now func() time.Time) {
	s.now = now
}

func (s *Store) Path(key string) string {
	return s.resolver.Resolve(key)
}

func (s *Store) readTree(path string) (any, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, econ.WithStack(err)
	}
	v, err := structs.DecodeValue(b)
	if err != nil {
		return nil, errors.Wrapf(err, "parsing %q", path)
	}
	return v, nil
}

// Load returns the normalized document at key, drilled down by keys.
// Expired entries found on the way are purged from the file as well.
// Missing files and missing keys return an error matching os.ErrNotExist.
func (s *Store) Load(ctx context.Context, key string, keys ...string) (any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	path := s.Path(key)
	var result any
	if err := s.locks.WithLock(path, func() error {
		tree, err := s.readTree(path)
		if err != nil {
			return err
		}
		normalized, _, changed := normalize(tree, s.now())
		if changed {
			if err := writeFile(path, normalized); err != nil {
				return err
			}
		}
		result = normalized
		return nil
	}); err != nil {
		return nil, err
	}
	return drill(result, keys)
}

// Peek is Load without normalization or rewriting.
func (s *Store) Peek(ctx context.Context, key string, keys ...string) (any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	tree, err := s.readTree(s.Path(key))
	if err != nil {
		return nil, err
	}
	return drill(tree, keys)
}

// LoadInto decodes the result of Load into dst. Keys absent from the document leave dst untouched.
func (s *Store) LoadInto(ctx context.Context, key string, dst any, keys ...string) error {
	v, err := s.Load(ctx, key, keys...)
	if err != nil {
		return err
	}
	return convert(v, dst)
}

// PeekInto decodes the result of Peek into dst.
func (s *Store) PeekInto(ctx context.Context, key string, dst any, keys ...string) error {
	v, err := s.Peek(ctx, key, keys...)
	if err != nil {
		return err
	}
	return convert(v, dst)
}

func convert(v any, dst any) error {
	b, err := goccy.Marshal(v)
	if err != nil {
		return econ.WithStack(err)
	}
	return econ.WithStack(goccy.Unmarshal(b, dst))
}

func drill(v any, keys []string) (any, error) {
	for _, key := range keys {
		switch t := v.(type) {
		case *structs.Ordered[any]:
			child, found := t.Get(key)
			if !found {
				return nil, econ.WithStack(os.ErrNotExist)
			}
			v = child
		case []any:
			i, err := strconv.Atoi(key)
			if err != nil || i < 0 || i >= len(t) {
				return nil, econ.WithStack(os.ErrNotExist)
			}
			v = t[i]
		default:
			return nil, econ.WithStack(os.ErrNotExist)
		}
	}
	return v, nil
}

// Write replaces the document at key, creating parent directories.
func (s *Store) Write(ctx context.Context, key string, doc any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	path := s.Path(key)
	return s.locks.WithLock(path, func() error {
		return writeFile(path, doc)
	})
}

func writeFile(path string, doc any) error {
	b, err := goccy.Marshal(doc)
	if err != nil {
		return econ.WithStack(err)
	}
	return writeBytes(path, b)
}

func writeBytes(path string, b []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return econ.WithStack(err)
	}
	f, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return econ.WithStack(err)
	}
	tmp := f.Name()
	if _, err := f.Write(b); err != nil {
		f.Close()
		os.Remove(tmp)
		return econ.WithStack(err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return econ.WithStack(err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return econ.WithStack(err)
	}
	return nil
}

// Remove deletes the document at key. Missing documents are not an error.
func (s *Store) Remove(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	path := s.Path(key)
	return s.locks.WithLock(path, func() error {
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			return econ.WithStack(err)
		}
		return nil
	})
}

func (s *Store) Exists(ctx context.Context, key string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	if _, err := os.Stat(s.Path(key)); errors.Is(err, os.ErrNotExist) {
		return false, nil
	} else if err != nil {
		return false, econ.WithStack(err)
	}
	return true, nil
}

// WalkFiles calls f with the slash separated path relative to the root and
// the raw content of every document file, skipping in-flight temp files.
func (s *Store) WalkFiles(ctx context.Context, f func(rel string, content []byte) error) error {
	root := s.resolver.Root
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() || strings.HasPrefix(d.Name(), ".") || filepath.Ext(path) != ".json" {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		b, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		return f(filepath.ToSlash(rel), b)
	})
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return econ.WithStack(err)
}

// RestoreFile atomically writes raw content to a path relative to the root.
func (s *Store) RestoreFile(ctx context.Context, rel string, content []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	clean := filepath.Clean(filepath.FromSlash(rel))
	if filepath.IsAbs(clean) || strings.HasPrefix(clean, "..") {
		return errors.Errorf("refusing to restore %q outside the data root", rel)
	}
	path := filepath.Join(s.resolver.Root, clean)
	return s.locks.WithLock(path, func() error {
		return writeBytes(path, content)
	})
}
