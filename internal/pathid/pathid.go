// Package pathid normalizes, joins and compares paths across filesystem
// kinds. Local paths use the host separator; remote SFTP paths are always
// POSIX slash-separated regardless of the host OS, so the two families must
// never be mixed through path/filepath alone.
package pathid

import (
	"path"
	"path/filepath"
	"strings"
)

// Style selects the path dialect of a provider.
type Style int

const (
	// StyleNative uses the host operating system's separator and rules.
	StyleNative Style = iota
	// StylePosix always uses forward slashes (SFTP wire paths).
	StylePosix
)

// Resolver applies one path dialect.
type Resolver struct {
	style Style
}

// Native returns a resolver for local host paths.
func Native() Resolver { return Resolver{style: StyleNative} }

// Posix returns a resolver for slash-separated remote paths.
func Posix() Resolver { return Resolver{style: StylePosix} }

// ForSeparator picks the resolver matching a provider-declared separator.
func ForSeparator(sep string) Resolver {
	if sep == "/" {
		return Posix()
	}
	return Native()
}

// Separator returns the dialect's separator string.
func (r Resolver) Separator() string {
	if r.style == StylePosix {
		return "/"
	}
	return string(filepath.Separator)
}

// Clean normalizes a path: collapses repeated separators, resolves "." and
// "..", and strips trailing separators (except a bare root).
func (r Resolver) Clean(p string) string {
	if r.style == StylePosix {
		if p == "" {
			return "."
		}
		return path.Clean(strings.ReplaceAll(p, "\\", "/"))
	}
	return filepath.Clean(p)
}

// Join joins path elements with the dialect separator and cleans the result.
func (r Resolver) Join(elems ...string) string {
	if r.style == StylePosix {
		return path.Join(elems...)
	}
	return filepath.Join(elems...)
}

// Base returns the last element of the path.
func (r Resolver) Base(p string) string {
	if r.style == StylePosix {
		return path.Base(r.Clean(p))
	}
	return filepath.Base(p)
}

// Dir returns the parent directory of the path.
func (r Resolver) Dir(p string) string {
	if r.style == StylePosix {
		return path.Dir(r.Clean(p))
	}
	return filepath.Dir(p)
}

// Rel returns target expressed relative to root, or false when target does
// not live under root. Used to preserve relative directory structure when
// expanding a tree for transfer.
func (r Resolver) Rel(root, target string) (string, bool) {
	root, target = r.Clean(root), r.Clean(target)
	if root == target {
		return ".", true
	}
	prefix := root
	if prefix != r.Separator() {
		prefix += r.Separator()
	}
	if !strings.HasPrefix(target, prefix) {
		return "", false
	}
	return target[len(prefix):], true
}

// Equal compares two paths after cleaning. On native Windows paths the
// comparison is case-insensitive to match the filesystem's identity model.
func (r Resolver) Equal(a, b string) bool {
	ca, cb := r.Clean(a), r.Clean(b)
	if r.style == StyleNative && filepath.Separator == '\\' {
		return strings.EqualFold(ca, cb)
	}
	return ca == cb
}

// SplitExt splits a name into stem and extension ("archive.tar" -> "archive",
// ".tar"). Dotfiles like ".profile" keep the whole name as the stem.
func SplitExt(name string) (stem, ext string) {
	i := strings.LastIndex(name, ".")
	if i <= 0 {
		return name, ""
	}
	return name[:i], name[i:]
}

// Rebase translates a source path under srcRoot to the equivalent path under
// dstRoot, converting between dialects. The relative portion is recomputed
// element by element so separators never leak across providers.
func Rebase(src Resolver, dst Resolver, srcRoot, srcPath, dstRoot string) (string, bool) {
	rel, ok := src.Rel(srcRoot, srcPath)
	if !ok {
		return "", false
	}
	if rel == "." {
		return dst.Clean(dstRoot), true
	}
	parts := strings.Split(rel, src.Separator())
	return dst.Join(append([]string{dstRoot}, parts...)...), true
}
