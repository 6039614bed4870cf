package sftp

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"time"

	"github.com/pkg/sftp"

	"github.com/paneferry/paneferry/internal/events"
	"github.com/paneferry/paneferry/internal/vfs"
)

// Provider exposes one remote session behind the uniform capability surface.
// All operations share the connection's protocol lock, so the session sees
// one in-flight request at a time.
type Provider struct {
	conn *Conn
}

// Connect dials a new session and wraps it as a provider.
func Connect(ctx context.Context, params Params, bus *events.EventBus) (*Provider, error) {
	conn, err := Dial(ctx, params, bus)
	if err != nil {
		return nil, err
	}
	return NewProvider(conn), nil
}

// NewProvider wraps an established connection.
func NewProvider(conn *Conn) *Provider {
	return &Provider{conn: conn}
}

// Handle returns the connection's provider handle.
func (p *Provider) Handle() vfs.Handle { return p.conn.handle }

// Separator returns the SFTP wire path separator. Remote paths are POSIX
// regardless of either host's OS.
func (p *Provider) Separator() string { return "/" }

// Concurrency declares 1: the session serializes protocol exchanges and
// must not be overloaded with interleaved messages.
func (p *Provider) Concurrency() int { return 1 }

// Close disconnects the underlying session.
func (p *Provider) Close() error { return p.conn.Close() }

// State exposes the connection lifecycle state.
func (p *Provider) State() State { return p.conn.State() }

// InitialPath returns the configured starting directory, or "." when unset.
func (p *Provider) InitialPath() string {
	if p.conn.params.InitialPath == "" {
		return "."
	}
	return p.conn.params.InitialPath
}

// List enumerates a remote directory in server-native order.
func (p *Provider) List(ctx context.Context, dirPath string) ([]vfs.Entry, error) {
	var entries []vfs.Entry
	err := p.exchange(ctx, func(client *sftp.Client) error {
		infos, err := client.ReadDir(dirPath)
		if err != nil {
			return translate("list", dirPath, err)
		}
		entries = make([]vfs.Entry, 0, len(infos))
		for _, info := range infos {
			e := p.entryFromInfo(dirPath, info)
			if e.Kind == vfs.KindSymlink {
				// Unresolved target; best effort, never followed.
				e.Target, _ = client.ReadLink(path.Join(dirPath, info.Name()))
			}
			entries = append(entries, e)
		}
		return nil
	})
	return entries, err
}

// Stat returns the metadata snapshot for one remote path without following
// symlinks.
func (p *Provider) Stat(ctx context.Context, filePath string) (vfs.Entry, error) {
	var entry vfs.Entry
	err := p.exchange(ctx, func(client *sftp.Client) error {
		info, err := client.Lstat(filePath)
		if err != nil {
			return translate("stat", filePath, err)
		}
		entry = p.entryFromInfo(path.Dir(filePath), info)
		if entry.Kind == vfs.KindSymlink {
			entry.Target, _ = client.ReadLink(filePath)
		}
		return nil
	})
	return entry, err
}

// OpenRead opens a remote file for reading. The returned stream holds the
// session lock only per read call, not for its whole lifetime.
func (p *Provider) OpenRead(ctx context.Context, filePath string) (io.ReadCloser, error) {
	var f *sftp.File
	err := p.exchange(ctx, func(client *sftp.Client) error {
		var err error
		f, err = client.Open(filePath)
		if err != nil {
			return translate("open", filePath, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &lockedStream{conn: p.conn, f: f, path: filePath}, nil
}

// OpenWrite opens a remote byte sink, creating the file if needed.
func (p *Provider) OpenWrite(ctx context.Context, filePath string, mode vfs.WriteMode) (io.WriteCloser, error) {
	flags := os.O_WRONLY | os.O_CREATE
	if mode == vfs.WriteAppend {
		flags |= os.O_APPEND
	} else {
		flags |= os.O_TRUNC
	}

	var f *sftp.File
	err := p.exchange(ctx, func(client *sftp.Client) error {
		var err error
		f, err = client.OpenFile(filePath, flags)
		if err != nil {
			return translate("create", filePath, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &lockedStream{conn: p.conn, f: f, path: filePath}, nil
}

// Remove deletes a remote file or empty directory.
func (p *Provider) Remove(ctx context.Context, filePath string) error {
	return p.exchange(ctx, func(client *sftp.Client) error {
		if err := client.Remove(filePath); err != nil {
			return translate("remove", filePath, err)
		}
		return nil
	})
}

// Rename moves a path within the remote filesystem.
func (p *Provider) Rename(ctx context.Context, oldPath, newPath string) error {
	return p.exchange(ctx, func(client *sftp.Client) error {
		if err := client.Rename(oldPath, newPath); err != nil {
			return translate("rename", oldPath, err)
		}
		return nil
	})
}

// Mkdir creates a remote directory; recursive creates missing parents and
// tolerates an existing directory.
func (p *Provider) Mkdir(ctx context.Context, dirPath string, recursive bool) error {
	return p.exchange(ctx, func(client *sftp.Client) error {
		if recursive {
			if err := client.MkdirAll(dirPath); err != nil {
				return translate("mkdir", dirPath, err)
			}
			return nil
		}
		if err := client.Mkdir(dirPath); err != nil {
			return translate("mkdir", dirPath, err)
		}
		return nil
	})
}

// SetModTime sets the remote modification timestamp.
func (p *Provider) SetModTime(ctx context.Context, filePath string, mtime time.Time) error {
	return p.exchange(ctx, func(client *sftp.Client) error {
		if err := client.Chtimes(filePath, mtime, mtime); err != nil {
			return translate("utimes", filePath, err)
		}
		return nil
	})
}

// exchange runs one protocol exchange under the session lock.
func (p *Provider) exchange(ctx context.Context, fn func(client *sftp.Client) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	p.conn.opMu.Lock()
	defer p.conn.opMu.Unlock()

	client, err := p.conn.session()
	if err != nil {
		return err
	}
	return fn(client)
}

func (p *Provider) entryFromInfo(dir string, info fs.FileInfo) vfs.Entry {
	kind := vfs.KindFile
	switch {
	case info.IsDir():
		kind = vfs.KindDir
	case info.Mode()&fs.ModeSymlink != 0:
		kind = vfs.KindSymlink
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
		Handle:  p.conn.handle,
	}
}

// lockedStream adapts an *sftp.File so every read/write takes the session
// lock for its single protocol exchange. Close always runs, releasing the
// remote file handle even on error paths.
type lockedStream struct {
	conn *Conn
	f    *sftp.File
	path string
}

func (s *lockedStream) Read(b []byte) (int, error) {
	s.conn.opMu.Lock()
	defer s.conn.opMu.Unlock()
	n, err := s.f.Read(b)
	if err != nil && err != io.EOF {
		return n, translate("read", s.path, err)
	}
	return n, err
}

func (s *lockedStream) Write(b []byte) (int, error) {
	s.conn.opMu.Lock()
	defer s.conn.opMu.Unlock()
	n, err := s.f.Write(b)
	if err != nil {
		return n, translate("write", s.path, err)
	}
	return n, nil
}

func (s *lockedStream) Close() error {
	s.conn.opMu.Lock()
	defer s.conn.opMu.Unlock()
	if err := s.f.Close(); err != nil {
		return translate("close", s.path, err)
	}
	return nil
}

// translate maps sftp/ssh errors onto the provider error taxonomy.
func translate(op, filePath string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, fs.ErrNotExist) || errors.Is(err, sftp.ErrSSHFxNoSuchFile):
		return fmt.Errorf("%s %s: %w", op, filePath, vfs.ErrNotFound)
	case errors.Is(err, fs.ErrPermission) || errors.Is(err, sftp.ErrSSHFxPermissionDenied):
		return fmt.Errorf("%s %s: %w", op, filePath, vfs.ErrPermissionDenied)
	case errors.Is(err, sftp.ErrSSHFxConnectionLost) || errors.Is(err, sftp.ErrSSHFxNoConnection):
		return fmt.Errorf("%s %s: %w", op, filePath, vfs.ErrConnectivity)
	case errors.Is(err, io.ErrUnexpectedEOF) || vfs.IsTransportError(err):
		return fmt.Errorf("%s %s: %w", op, filePath, vfs.ErrConnectivity)
	default:
		return vfs.WrapUnknown(op, filePath, err)
	}
}
