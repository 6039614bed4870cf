// Package local implements the vfs capability interface over the native
// filesystem. The provider is stateless: one process-lifetime instance
// serves every local operation.
package local

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/paneferry/paneferry/internal/diskspace"
	"github.com/paneferry/paneferry/internal/vfs"
)

// Provider is the local disk backend.
type Provider struct {
	concurrency int
}

// New creates the local provider. Local disks tolerate parallel operations,
// so the declared concurrency follows the worker count.
func New() *Provider {
	return &Provider{concurrency: runtime.NumCPU()}
}

// Handle returns the process-lifetime local handle.
func (p *Provider) Handle() vfs.Handle { return vfs.LocalHandle }

// Separator returns the host path separator.
func (p *Provider) Separator() string { return string(filepath.Separator) }

// Concurrency declares how many local operations may run in parallel.
func (p *Provider) Concurrency() int { return p.concurrency }

// List enumerates a directory in filesystem-native order. Entries that
// disappear or become unreadable between readdir and stat are skipped.
func (p *Provider) List(ctx context.Context, path string) ([]vfs.Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	dirEntries, err := os.ReadDir(path)
	if err != nil {
		return nil, translate("list", path, err)
	}

	entries := make([]vfs.Entry, 0, len(dirEntries))
	for _, de := range dirEntries {
		info, err := de.Info()
		if err != nil {
			continue
		}
		entries = append(entries, p.entryFromInfo(path, info))
	}
	return entries, nil
}

// Stat returns the metadata snapshot for path. Lstat is used so symlinks
// report as their own kind instead of their target's.
func (p *Provider) Stat(ctx context.Context, path string) (vfs.Entry, error) {
	if err := ctx.Err(); err != nil {
		return vfs.Entry{}, err
	}

	info, err := os.Lstat(path)
	if err != nil {
		return vfs.Entry{}, translate("stat", path, err)
	}
	return p.entryFromInfo(filepath.Dir(path), info), nil
}

// OpenRead opens a byte stream over the file at path.
func (p *Provider) OpenRead(ctx context.Context, path string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, translate("open", path, err)
	}
	return f, nil
}

// OpenWrite opens a byte sink at path, creating the file if needed.
func (p *Provider) OpenWrite(ctx context.Context, path string, mode vfs.WriteMode) (io.WriteCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	flags := os.O_WRONLY | os.O_CREATE
	if mode == vfs.WriteAppend {
		flags |= os.O_APPEND
	} else {
		flags |= os.O_TRUNC
	}

	f, err := os.OpenFile(path, flags, 0o644)
	if err != nil {
		return nil, translate("create", path, err)
	}
	return f, nil
}

// Remove deletes a file or an empty directory.
func (p *Provider) Remove(ctx context.Context, path string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := os.Remove(path); err != nil {
		return translate("remove", path, err)
	}
	return nil
}

// Rename moves a path within the local filesystem.
func (p *Provider) Rename(ctx context.Context, oldPath, newPath string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := os.Rename(oldPath, newPath); err != nil {
		return translate("rename", oldPath, err)
	}
	return nil
}

// Mkdir creates a directory. With recursive set, missing parents are
// created and an already-existing directory is not an error.
func (p *Provider) Mkdir(ctx context.Context, path string, recursive bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if recursive {
		if err := os.MkdirAll(path, 0o755); err != nil {
			return translate("mkdir", path, err)
		}
		return nil
	}
	if err := os.Mkdir(path, 0o755); err != nil {
		return translate("mkdir", path, err)
	}
	return nil
}

// SetModTime sets the modification timestamp of path.
func (p *Provider) SetModTime(ctx context.Context, path string, mtime time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := os.Chtimes(path, mtime, mtime); err != nil {
		return translate("utimes", path, err)
	}
	return nil
}

// FreeSpace reports the bytes available on the filesystem holding path,
// resolving a not-yet-created path through its nearest existing ancestor.
func (p *Provider) FreeSpace(ctx context.Context, path string) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	return diskspace.Free(path)
}

// entryFromInfo builds a vfs.Entry from a FileInfo, resolving symlink
// targets without following them.
func (p *Provider) entryFromInfo(dir string, info fs.FileInfo) vfs.Entry {
	kind := vfs.KindFile
	target := ""
	switch {
	case info.IsDir():
		kind = vfs.KindDir
	case info.Mode()&fs.ModeSymlink != 0:
		kind = vfs.KindSymlink
		// Best effort; a dangling link still lists with an empty target.
		target, _ = os.Readlink(filepath.Join(dir, info.Name()))
	case !info.Mode().IsRegular():
		kind = vfs.KindSpecial
	}

	size := info.Size()
	if kind != vfs.KindFile {
		size = 0
	}

	return vfs.Entry{
		Name:    info.Name(),
		Dir:     dir,
		Kind:    kind,
		Size:    size,
		ModTime: info.ModTime(),
		Mode:    info.Mode().Perm(),
		Target:  target,
		Handle:  vfs.LocalHandle,
	}
}

// translate maps OS errors onto the provider error taxonomy.
func translate(op, path string, err error) error {
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return fmt.Errorf("%s %s: %w", op, path, vfs.ErrNotFound)
	case errors.Is(err, fs.ErrPermission):
		return fmt.Errorf("%s %s: %w", op, path, vfs.ErrPermissionDenied)
	case errors.Is(err, fs.ErrExist):
		return fmt.Errorf("%s %s: %w", op, path, vfs.ErrNameCollision)
	default:
		return vfs.WrapUnknown(op, path, err)
	}
}
