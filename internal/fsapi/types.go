// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package fsapi

// Search defaults applied when a query leaves them out.
const (
	DefaultMaxDepth   = 10
	DefaultMaxResults = 100
)

// Entry is one file or directory.
type Entry struct {
	Name      string  `json:"name"`
	Path      string  `json:"path"`
	IsDir     bool    `json:"is_dir"`
	IsFile    bool    `json:"is_file"`
	IsSymlink bool    `json:"is_symlink"`
	Size      *int64  `json:"size,omitempty"`
	Modified  *uint64 `json:"modified,omitempty"` // unix seconds
	IsHidden  bool    `json:"is_hidden"`
}

// DirectoryInfo is a directory listing. Directories and files are each
// sorted case-insensitively by name.
type DirectoryInfo struct {
	Path        string  `json:"path"`
	Name        string  `json:"name"`
	Parent      *string `json:"parent,omitempty"`
	Directories []Entry `json:"directories"`
	Files       []Entry `json:"files"`
	// Accessible is false when the directory exists but could not be read.
	Accessible bool `json:"accessible"`
}

// PathStatus answers /api/fs/exists.
type PathStatus struct {
	Exists bool `json:"exists"`
	IsDir  bool `json:"is_dir"`
	IsFile bool `json:"is_file"`
}

// SearchOptions controls a glob search. Nil pointer fields take the
// defaults: recursive, depth 10, 100 results.
type SearchOptions struct {
	Pattern       string
	Recursive     *bool
	IncludeHidden bool
	MaxDepth      int
	MaxResults    int
}

func (o SearchOptions) recursive() bool {
	return o.Recursive == nil || *o.Recursive
}

func (o SearchOptions) maxDepth() int {
	if o.MaxDepth <= 0 {
		return DefaultMaxDepth
	}
	return o.MaxDepth
}

func (o SearchOptions) maxResults() int {
	if o.MaxResults <= 0 {
		return DefaultMaxResults
	}
	return o.MaxResults
}

// SearchResult lists matches. Total counts matches plus entries skipped
// after the limit was hit; Truncated reports that the limit was reached.
type SearchResult struct {
	Files     []Entry `json:"files"`
	Total     int     `json:"total"`
	Truncated bool    `json:"truncated"`
}

// errorBody is the JSON error envelope.
type errorBody struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}
