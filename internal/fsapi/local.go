// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package fsapi

import (
	"errors"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"strings"
)

// =============================================================================
// LOCAL FILESYSTEM
// =============================================================================

// Local implements the filesystem operations against the local disk.
type Local struct {
	roots []string
}

// LocalOption configures a Local.
type LocalOption func(*Local)

// WithRoots restricts every operation to paths below the given roots.
// Without roots the whole filesystem is allowed.
func WithRoots(roots ...string) LocalOption {
	return func(l *Local) {
		for _, r := range roots {
			if abs, err := filepath.Abs(r); err == nil {
				if resolved, err := filepath.EvalSymlinks(abs); err == nil {
					abs = resolved
				}
				l.roots = append(l.roots, abs)
			}
		}
	}
}

// NewLocal creates a Local.
func NewLocal(opts ...LocalOption) *Local {
	l := &Local{}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// allowed reports whether path resolves inside one of the roots.
func (l *Local) allowed(path string) bool {
	if len(l.roots) == 0 {
		return true
	}
	resolved, err := filepath.EvalSymlinks(path)
	if err != nil {
		return false
	}
	resolved, err = filepath.Abs(resolved)
	if err != nil {
		return false
	}
	for _, root := range l.roots {
		if resolved == root || strings.HasPrefix(resolved, root+string(filepath.Separator)) {
			return true
		}
	}
	return false
}

// List lists the entries of a directory.
func (l *Local) List(path string) (*DirectoryInfo, error) {
	path = filepath.Clean(path)
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, &ClientError{Type: ErrTypeNotFound, Message: "Path not found: " + path}
		}
		if errors.Is(err, fs.ErrPermission) {
			return nil, &ClientError{Type: ErrTypePermissionDenied, Message: "Permission denied: " + path}
		}
		return nil, &ClientError{Type: ErrTypeIO, Message: "IO error", Cause: err}
	}
	if !info.IsDir() {
		return nil, &ClientError{Type: ErrTypeNotADirectory, Message: "Not a directory: " + path}
	}
	if !l.allowed(path) {
		return nil, &ClientError{Type: ErrTypePermissionDenied, Message: "Permission denied: " + path}
	}

	log.Printf("FS_LIST | path=%s", path)

	dir := &DirectoryInfo{
		Path:        path,
		Name:        filepath.Base(path),
		Directories: []Entry{},
		Files:       []Entry{},
		Accessible:  true,
	}
	if parent := filepath.Dir(path); parent != path {
		dir.Parent = &parent
	}
	if dir.Name == string(filepath.Separator) || dir.Name == "." {
		dir.Name = ""
	}

	entries, err := os.ReadDir(path)
	if err != nil && errors.Is(err, fs.ErrPermission) {
		dir.Accessible = false
	}
	for _, de := range entries {
		e, err := entryFor(filepath.Join(path, de.Name()), de)
		if err != nil {
			continue
		}
		if e.IsDir {
			dir.Directories = append(dir.Directories, e)
		} else {
			dir.Files = append(dir.Files, e)
		}
	}
	sortByName(dir.Directories)
	sortByName(dir.Files)
	return dir, nil
}

// Cwd returns the process working directory.
func (l *Local) Cwd() (string, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return "", &ClientError{Type: ErrTypeIO, Message: "IO error", Cause: err}
	}
	return cwd, nil
}

// Home returns the user's home directory, if there is one.
func (l *Local) Home() (string, bool) {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return "", false
	}
	return home, true
}

// Exists reports whether path exists and whether it is a directory.
func (l *Local) Exists(path string) PathStatus {
	info, err := os.Stat(path)
	if err != nil {
		return PathStatus{}
	}
	return PathStatus{Exists: true, IsDir: info.IsDir(), IsFile: !info.IsDir()}
}

// Common lists the home directory, the usual desktop folders and the
// conventional project roots that exist.
func (l *Local) Common() []Entry {
	home, ok := l.Home()
	if !ok {
		return []Entry{}
	}
	out := []Entry{dirEntry("Home", home)}
	for _, name := range []string{"Desktop", "Documents", "Downloads"} {
		if p := filepath.Join(home, name); isDir(p) {
			out = append(out, dirEntry(name, p))
		}
	}
	for _, name := range projectDirs() {
		if p := filepath.Join(home, name); isDir(p) {
			out = append(out, dirEntry(name, p))
		}
	}
	return out
}

func projectDirs() []string {
	switch runtime.GOOS {
	case "darwin":
		return []string{"Projects", "Developer", "workspace", "code"}
	case "windows":
		return []string{"Projects", "source", "code"}
	default:
		return []string{"Projects", "workspace", "code"}
	}
}

// Search walks basePath and returns entries matching opts.Pattern. The
// pattern is tried against the path relative to basePath, the full path
// and the base name, so "*.go" finds Go files at any depth.
func (l *Local) Search(basePath string, opts SearchOptions) (*SearchResult, error) {
	base := filepath.Clean(basePath)
	if _, err := os.Stat(base); err != nil {
		return nil, &ClientError{Type: ErrTypeNotFound, Message: "Path not found: " + basePath}
	}
	if !l.allowed(base) {
		return nil, &ClientError{Type: ErrTypePermissionDenied, Message: "Permission denied: " + basePath}
	}
	if _, err := filepath.Match(opts.Pattern, ""); err != nil {
		return nil, &ClientError{Type: ErrTypeInternal, Message: "Invalid glob pattern: " + opts.Pattern, Cause: err}
	}

	log.Printf("FS_SEARCH | base=%s pattern=%s", base, opts.Pattern)

	depth := opts.maxDepth()
	if !opts.recursive() {
		depth = 1
	}
	limit := opts.maxResults()
	res := &SearchResult{Files: []Entry{}}

	filepath.WalkDir(base, func(path string, de fs.DirEntry, err error) error {
		if err != nil || path == base {
			return nil
		}
		rel, relErr := filepath.Rel(base, path)
		if relErr != nil {
			return nil
		}
		if !opts.IncludeHidden && strings.HasPrefix(de.Name(), ".") {
			if de.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		level := strings.Count(rel, string(filepath.Separator)) + 1
		if level > depth {
			if de.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if !matches(opts.Pattern, rel, path, de.Name()) {
			return nil
		}
		res.Total++
		if len(res.Files) >= limit {
			return nil
		}
		if e, err := entryFor(path, de); err == nil {
			res.Files = append(res.Files, e)
		}
		return nil
	})

	res.Truncated = len(res.Files) >= limit
	return res, nil
}

func matches(pattern string, candidates ...string) bool {
	for _, c := range candidates {
		if ok, _ := filepath.Match(pattern, filepath.ToSlash(c)); ok {
			return true
		}
		if ok, _ := filepath.Match(pattern, c); ok {
			return true
		}
	}
	return false
}

// =============================================================================
// HELPERS
// =============================================================================

func entryFor(path string, de fs.DirEntry) (Entry, error) {
	info, err := de.Info()
	if err != nil {
		return Entry{}, err
	}
	symlink := info.Mode()&fs.ModeSymlink != 0
	if symlink {
		// Report what the link points at.
		if target, err := os.Stat(path); err == nil {
			info = target
		}
	}
	e := Entry{
		Name:      de.Name(),
		Path:      path,
		IsDir:     info.IsDir(),
		IsFile:    info.Mode().IsRegular(),
		IsSymlink: symlink,
		IsHidden:  strings.HasPrefix(de.Name(), "."),
	}
	if e.IsFile {
		size := info.Size()
		e.Size = &size
	}
	if mt := info.ModTime(); !mt.IsZero() && mt.Unix() > 0 {
		secs := uint64(mt.Unix())
		e.Modified = &secs
	}
	return e, nil
}

func dirEntry(name, path string) Entry {
	return Entry{Name: name, Path: path, IsDir: true}
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

func sortByName(entries []Entry) {
	slices.SortFunc(entries, func(a, b Entry) int {
		return strings.Compare(strings.ToLower(a.Name), strings.ToLower(b.Name))
	})
}
