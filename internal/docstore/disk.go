package docstore

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// DiskStore reads objects from the local filesystem. With a Root, a bucket is a sub-directory of
// Root. A store built by NewWatchedStore instead treats the bucket as an absolute directory that
// must be one of the currently watched roots.
type DiskStore struct {
	Root string

	roots func() []string
}

// NewDiskStore returns a store rooted at root.
func NewDiskStore(root string) *DiskStore {
	return &DiskStore{Root: root}
}

// NewWatchedStore returns a store whose buckets are the directories reported by roots.
func NewWatchedStore(roots func() []string) *DiskStore {
	return &DiskStore{roots: roots}
}

// Path returns the file path for bucket/key, rejecting buckets outside the store and keys that
// escape the bucket.
func (s *DiskStore) Path(bucket, key string) (string, error) {
	if key == "" {
		return "", fmt.Errorf("empty key: %w", ErrNotFound)
	}
	base, err := s.bucketDir(bucket)
	if err != nil {
		return "", err
	}
	p := filepath.Join(base, filepath.FromSlash(key))
	if !within(base, p) {
		return "", fmt.Errorf("key %q escapes bucket %q", key, bucket)
	}
	return p, nil
}

func (s *DiskStore) bucketDir(bucket string) (string, error) {
	if s.roots != nil {
		if filepath.IsAbs(bucket) && filepath.Clean(bucket) == bucket {
			for _, r := range s.roots() {
				if r == bucket {
					return bucket, nil
				}
			}
		}
		return "", fmt.Errorf("%w: %q is not a watched directory", ErrInvalidBucket, bucket)
	}
	if bucket == "" || filepath.IsAbs(bucket) || filepath.VolumeName(bucket) != "" {
		return "", fmt.Errorf("%w: %q", ErrInvalidBucket, bucket)
	}
	for _, part := range strings.FieldsFunc(filepath.ToSlash(bucket), func(r rune) bool { return r == '/' }) {
		if part == ".." {
			return "", fmt.Errorf("%w: %q", ErrInvalidBucket, bucket)
		}
	}
	root := filepath.Clean(s.Root)
	base := filepath.Join(root, bucket)
	if base == root || !within(root, base) {
		return "", fmt.Errorf("%w: %q", ErrInvalidBucket, bucket)
	}
	return base, nil
}

// within reports whether p is dir itself or below it.
func within(dir, p string) bool {
	if p == dir {
		return true
	}
	if dir == string(filepath.Separator) {
		return strings.HasPrefix(p, dir)
	}
	return strings.HasPrefix(p, dir+string(filepath.Separator))
}

// Get reads bucket/key from disk.
func (s *DiskStore) Get(ctx context.Context, bucket, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p, err := s.Path(bucket, key)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(p)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%s: %w", p, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to read %s: %w", p, err)
	}
	return data, nil
}

// DiskUsageBytes returns the total size in bytes of the given paths.
// Each path may be a file or a directory (recursively summed). Missing paths count as 0.
func DiskUsageBytes(paths ...string) (int64, error) {
	var total int64
	for _, p := range paths {
		if p == "" {
			continue
		}
		info, err := os.Stat(p)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return 0, err
		}
		if !info.IsDir() {
			total += info.Size()
			continue
		}
		err = filepath.WalkDir(p, func(_ string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				return nil
			}
			fi, err := d.Info()
			if err != nil {
				return err
			}
			total += fi.Size()
			return nil
		})
		if err != nil {
			return 0, err
		}
	}
	return total, nil
}
