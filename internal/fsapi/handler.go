// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package fsapi

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"path/filepath"
	"strconv"
)

// =============================================================================
// HTTP HANDLERS
// =============================================================================

// Register mounts the filesystem endpoints on mux.
func (l *Local) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/fs/list", l.handleList)
	mux.HandleFunc("GET /api/fs/dir/{path...}", l.handleDir)
	mux.HandleFunc("GET /api/fs/common", l.handleCommon)
	mux.HandleFunc("GET /api/fs/cwd", l.handleCwd)
	mux.HandleFunc("GET /api/fs/home", l.handleHome)
	mux.HandleFunc("GET /api/fs/exists/{path...}", l.handleExists)
	mux.HandleFunc("GET /api/fs/search", l.handleSearch)
}

func (l *Local) handleList(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Query().Get("path")
	if path == "" {
		writeError(w, &ClientError{Type: ErrTypeInvalidRequest, Message: "missing query parameter: path"})
		return
	}
	l.writeListing(w, path)
}

func (l *Local) handleDir(w http.ResponseWriter, r *http.Request) {
	l.writeListing(w, pathParam(r))
}

func (l *Local) writeListing(w http.ResponseWriter, path string) {
	info, err := l.List(path)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, info)
}

func (l *Local) handleCommon(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, l.Common())
}

func (l *Local) handleCwd(w http.ResponseWriter, r *http.Request) {
	cwd, err := l.Cwd()
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"path": cwd})
}

func (l *Local) handleHome(w http.ResponseWriter, r *http.Request) {
	home, ok := l.Home()
	if !ok {
		writeJSON(w, http.StatusOK, nil)
		return
	}
	writeJSON(w, http.StatusOK, home)
}

func (l *Local) handleExists(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, l.Exists(pathParam(r)))
}

func (l *Local) handleSearch(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	opts := SearchOptions{Pattern: q.Get("pattern")}
	base := q.Get("base_path")
	if base == "" || opts.Pattern == "" {
		writeError(w, &ClientError{Type: ErrTypeInvalidRequest, Message: "base_path and pattern are required"})
		return
	}

	var err error
	if v := q.Get("recursive"); v != "" {
		var b bool
		if b, err = strconv.ParseBool(v); err == nil {
			opts.Recursive = &b
		}
	}
	if v := q.Get("include_hidden"); v != "" && err == nil {
		opts.IncludeHidden, err = strconv.ParseBool(v)
	}
	if v := q.Get("max_depth"); v != "" && err == nil {
		opts.MaxDepth, err = strconv.Atoi(v)
	}
	if v := q.Get("max_results"); v != "" && err == nil {
		opts.MaxResults, err = strconv.Atoi(v)
	}
	if err != nil {
		writeError(w, &ClientError{Type: ErrTypeInvalidRequest, Message: "invalid search query", Cause: err})
		return
	}

	res, err := l.Search(base, opts)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// pathParam restores the absolute path carried in the URL. Drive-letter
// paths (C:/...) are kept as they are.
func pathParam(r *http.Request) string {
	p := r.PathValue("path")
	if filepath.VolumeName(p) != "" {
		return filepath.Clean(p)
	}
	return filepath.Clean("/" + p)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("FS_WRITE_FAILED | error=%v", err)
	}
}

func writeError(w http.ResponseWriter, err error) {
	var ce *ClientError
	if !errors.As(err, &ce) {
		ce = &ClientError{Type: ErrTypeInternal, Message: err.Error()}
	}
	msg := ce.Message
	if ce.Cause != nil && ce.Type != ErrTypeNotFound {
		msg = ce.Error()
	}
	writeJSON(w, ce.Type.Status(), errorBody{Error: msg, Code: ce.Code()})
}
