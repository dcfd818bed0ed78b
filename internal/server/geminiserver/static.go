package geminiserver

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/yndnr/geminid/internal/core/domain"
	"github.com/yndnr/geminid/internal/core/mimetype"
)

// StaticResolver serves files from a sandboxed root directory.
//
// A resolver with an empty root is disabled and answers every path with
// domain.ErrNotFound.
type StaticResolver struct {
	root  string
	types *mimetype.Table
}

// NewStaticResolver canonicalizes root once. The root must exist.
func NewStaticResolver(root string, types *mimetype.Table) (*StaticResolver, error) {
	if types == nil {
		types = mimetype.New(nil)
	}
	if root == "" {
		return &StaticResolver{types: types}, nil
	}

	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("geminiserver: static root %s: %w", root, err)
	}
	canonical, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return nil, fmt.Errorf("geminiserver: static root %s: %w", root, err)
	}
	info, err := os.Stat(canonical)
	if err != nil {
		return nil, fmt.Errorf("geminiserver: static root %s: %w", root, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("geminiserver: static root %s is not a directory", root)
	}

	return &StaticResolver{root: canonical, types: types}, nil
}

// Root returns the canonical root, or "" when disabled.
func (s *StaticResolver) Root() string {
	if s == nil {
		return ""
	}
	return s.root
}

// Enabled reports whether a root is configured.
func (s *StaticResolver) Enabled() bool {
	return s != nil && s.root != ""
}

// Resolve maps a request path onto a file under the root. Absence of any kind
// yields domain.ErrNotFound; any other read failure yields domain.ErrTemporary.
func (s *StaticResolver) Resolve(path string) (*domain.Response, error) {
	name, err := s.locate(path)
	if err != nil {
		return nil, err
	}

	body, err := os.ReadFile(name)
	if err != nil {
		return nil, classifyFileError(err)
	}

	return domain.Success(body, s.types.Lookup(filepath.Base(name))), nil
}

// locate returns the canonical file path for a request path, enforcing the
// sandbox on the canonical form.
func (s *StaticResolver) locate(path string) (string, error) {
	if !s.Enabled() {
		return "", domain.ErrNotFound
	}
	if strings.IndexByte(path, 0) >= 0 {
		return "", domain.ErrNotFound
	}

	candidate := s.root + string(filepath.Separator) + filepath.FromSlash(path)
	canonical, err := filepath.EvalSymlinks(candidate)
	if err != nil {
		var pe *fs.PathError
		if !errors.As(err, &pe) {
			// Symlink cycles are reported without a PathError.
			return "", domain.ErrNotFound.WithCause(err)
		}
		return "", classifyFileError(err)
	}
	canonical = filepath.Clean(canonical)

	if !s.contains(canonical) {
		return "", domain.ErrNotFound.WithCause(fmt.Errorf("%s escapes static root", path))
	}

	info, err := os.Stat(canonical)
	if err != nil {
		return "", classifyFileError(err)
	}
	if info.IsDir() || !info.Mode().IsRegular() {
		return "", domain.ErrNotFound
	}
	return canonical, nil
}

func (s *StaticResolver) contains(canonical string) bool {
	if canonical == s.root {
		return true
	}
	prefix := s.root
	if !strings.HasSuffix(prefix, string(filepath.Separator)) {
		prefix += string(filepath.Separator)
	}
	return strings.HasPrefix(canonical, prefix)
}

// classifyFileError separates "nothing to serve here" from genuine I/O faults.
func classifyFileError(err error) error {
	switch {
	case errors.Is(err, fs.ErrNotExist),
		errors.Is(err, fs.ErrPermission),
		errors.Is(err, syscall.EISDIR),
		errors.Is(err, syscall.ENOTDIR),
		errors.Is(err, syscall.ELOOP),
		errors.Is(err, syscall.ENAMETOOLONG):
		return domain.ErrNotFound.WithCause(err)
	default:
		return domain.ErrTemporary.WithCause(err)
	}
}
