// Package lister enumerates directory entries for any provider, with paging
// for very large directories and depth-first traversal for tree expansion.
// Ordering and display filtering are presentation-layer concerns; entries
// come back in provider-native order.
package lister

import (
	"context"
	"errors"
	"io/fs"
	"strings"

	"github.com/paneferry/paneferry/internal/pathid"
	"github.com/paneferry/paneferry/internal/vfs"
)

// DefaultPageSize is used when a page size is not supplied.
const DefaultPageSize = 256

// Options configures listing behavior.
type Options struct {
	// PageSize bounds how many entries one page carries; <=0 selects the
	// default.
	PageSize int
	// IncludeHidden includes dot-entries. Hidden filtering is the only
	// content filter the lister owns; everything else is presentation.
	IncludeHidden bool
}

// Lister resolves handles and lists directories.
type Lister struct {
	reg *vfs.Registry
}

// New creates a lister over the given provider registry.
func New(reg *vfs.Registry) *Lister {
	return &Lister{reg: reg}
}

// List returns the full, filtered listing of one directory.
func (l *Lister) List(ctx context.Context, loc vfs.Location, opts Options) ([]vfs.Entry, error) {
	p, err := l.reg.Get(loc.Handle)
	if err != nil {
		return nil, err
	}

	entries, err := p.List(ctx, loc.Path)
	if err != nil {
		return nil, err
	}
	if opts.IncludeHidden {
		return entries, nil
	}

	filtered := entries[:0]
	for _, e := range entries {
		if IsHiddenName(e.Name) {
			continue
		}
		filtered = append(filtered, e)
	}
	return filtered, nil
}

// Pages returns a restartable page iterator over a directory. The listing is
// finite; Next returns false after the last page. For remote providers the
// protocol client streams directory blocks internally, so first-page latency
// does not grow with directory size.
func (l *Lister) Pages(ctx context.Context, loc vfs.Location, opts Options) (*Pages, error) {
	entries, err := l.List(ctx, loc, opts)
	if err != nil {
		return nil, err
	}

	size := opts.PageSize
	if size <= 0 {
		size = DefaultPageSize
	}
	return &Pages{entries: entries, pageSize: size}, nil
}

// Pages iterates a listing page by page.
type Pages struct {
	entries  []vfs.Entry
	pageSize int
	offset   int
}

// Next returns the next page, or nil/false after the final page.
func (p *Pages) Next() ([]vfs.Entry, bool) {
	if p.offset >= len(p.entries) {
		return nil, false
	}
	end := p.offset + p.pageSize
	if end > len(p.entries) {
		end = len(p.entries)
	}
	page := p.entries[p.offset:end]
	p.offset = end
	return page, true
}

// Reset restarts the iterator at the first page.
func (p *Pages) Reset() { p.offset = 0 }

// Len returns the total number of entries across all pages.
func (p *Pages) Len() int { return len(p.entries) }

// WalkFunc is called for every visited path. Returning fs.SkipDir for a
// directory skips its contents; any other error stops the walk.
type WalkFunc func(path string, entry vfs.Entry) error

// Walk traverses a directory tree depth-first, directories before their
// contents. Symlinks are reported but never followed, so link cycles cannot
// loop the walk.
func (l *Lister) Walk(ctx context.Context, loc vfs.Location, opts Options, fn WalkFunc) error {
	p, err := l.reg.Get(loc.Handle)
	if err != nil {
		return err
	}

	root, err := p.Stat(ctx, loc.Path)
	if err != nil {
		return err
	}

	r := pathid.ForSeparator(p.Separator())
	return l.walk(ctx, p, r, r.Clean(loc.Path), root, opts, fn)
}

func (l *Lister) walk(ctx context.Context, p vfs.Provider, r pathid.Resolver, path string, entry vfs.Entry, opts Options, fn WalkFunc) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	err := fn(path, entry)
	if entry.Kind != vfs.KindDir {
		return err
	}
	if err != nil {
		if errors.Is(err, fs.SkipDir) {
			return nil
		}
		return err
	}

	children, err := p.List(ctx, path)
	if err != nil {
		return err
	}
	for _, child := range children {
		if !opts.IncludeHidden && IsHiddenName(child.Name) {
			continue
		}
		if err := l.walk(ctx, p, r, r.Join(path, child.Name), child, opts, fn); err != nil {
			return err
		}
	}
	return nil
}

// IsHiddenName reports whether a bare filename is a hidden dot-entry.
// The special entries "." and ".." are not considered hidden.
func IsHiddenName(name string) bool {
	if name == "." || name == ".." {
		return false
	}
	return strings.HasPrefix(name, ".")
}
