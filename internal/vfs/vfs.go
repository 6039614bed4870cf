// Package vfs defines the capability interface shared by all filesystem
// providers. The transfer engine and operation queue only ever talk to this
// interface; cross-provider copies are "read-stream from A, write-stream to B"
// with no special-casing per backend.
package vfs

import (
	"context"
	"io"
	"io/fs"
	"time"
)

// Handle identifies one provider instance. The local provider uses the
// process-lifetime LocalHandle singleton; each remote connection gets its own
// handle when it is registered.
type Handle string

// LocalHandle is the handle of the local disk provider.
const LocalHandle Handle = "local"

// Location addresses a path on a specific provider.
type Location struct {
	Handle Handle
	Path   string
}

// EntryKind classifies a directory entry.
type EntryKind int

const (
	KindFile EntryKind = iota
	KindDir
	KindSymlink
	KindSpecial
)

func (k EntryKind) String() string {
	switch k {
	case KindFile:
		return "file"
	case KindDir:
		return "dir"
	case KindSymlink:
		return "symlink"
	default:
		return "special"
	}
}

// Entry is an immutable metadata snapshot for one file, directory or symlink.
// Staleness is expected: a changed file shows up as a freshly produced Entry
// on the next listing, never as an in-place update.
type Entry struct {
	Name    string      // base name
	Dir     string      // parent directory path
	Kind    EntryKind
	Size    int64       // bytes; 0 for directories
	ModTime time.Time
	Mode    fs.FileMode // permission bits
	Target  string      // symlink target, unresolved; empty otherwise
	Handle  Handle      // owning provider
}

// IsDir reports whether the entry is a directory.
func (e Entry) IsDir() bool { return e.Kind == KindDir }

// WriteMode selects how OpenWrite positions the sink.
type WriteMode int

const (
	WriteTruncate WriteMode = iota
	WriteAppend
)

// Provider is the uniform capability surface over one filesystem backend.
//
// All operations on a remote provider may additionally fail with a
// connectivity error (session lost); callers must treat that as retryable
// after reconnection, unlike NotFound and PermissionDenied which are final.
type Provider interface {
	// Handle returns the provider's identity.
	Handle() Handle

	// Separator returns the path separator used by this provider.
	Separator() string

	// Concurrency declares how many operations the provider tolerates in
	// flight at once. Protocol-serialized remote sessions declare 1.
	Concurrency() int

	// List enumerates the entries of a directory in provider-native order.
	List(ctx context.Context, path string) ([]Entry, error)

	// Stat returns the metadata snapshot for a single path. Symlinks are
	// reported as their own kind, never followed.
	Stat(ctx context.Context, path string) (Entry, error)

	// OpenRead opens a byte stream over the file at path. The caller owns
	// the stream and must close it on every exit path.
	OpenRead(ctx context.Context, path string) (io.ReadCloser, error)

	// OpenWrite opens a byte sink at path, creating the file if needed.
	OpenWrite(ctx context.Context, path string, mode WriteMode) (io.WriteCloser, error)

	// Remove deletes a file or an empty directory.
	Remove(ctx context.Context, path string) error

	// Rename moves a path within this provider.
	Rename(ctx context.Context, oldPath, newPath string) error

	// Mkdir creates a directory; with recursive set, all missing parents
	// are created and an already-existing directory is not an error.
	Mkdir(ctx context.Context, path string, recursive bool) error

	// SetModTime sets the modification timestamp of path. Used to honor
	// the preserve-timestamps transfer option.
	SetModTime(ctx context.Context, path string, mtime time.Time) error
}

// SpaceChecker is an optional capability: providers that can report free
// space under a path implement it, and the transfer engine checks the
// destination before starting a batch. Providers that cannot answer cheaply
// simply do not implement it.
type SpaceChecker interface {
	// FreeSpace returns the bytes available on the filesystem holding path.
	// 0 with a nil error means the answer is unknown.
	FreeSpace(ctx context.Context, path string) (int64, error)
}
