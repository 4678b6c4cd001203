// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package fsapi

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// TEST HARNESS
// =============================================================================

// tree creates:
//
//	root/
//	  .git/config
//	  Beta/
//	  alpha/main.go
//	  alpha/deep/nested/x.go
//	  README.md
//	  b.txt
func tree(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	files := map[string]string{
		".git/config":            "[core]",
		"alpha/main.go":          "package main",
		"alpha/deep/nested/x.go": "package nested",
		"README.md":              "# readme",
		"b.txt":                  "bee",
	}
	for rel, content := range files {
		p := filepath.Join(root, rel)
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0755))
		require.NoError(t, os.WriteFile(p, []byte(content), 0644))
	}
	require.NoError(t, os.MkdirAll(filepath.Join(root, "Beta"), 0755))
	return root
}

func newTestClient(t *testing.T, local *Local) *Client {
	t.Helper()
	mux := http.NewServeMux()
	local.Register(mux)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return NewClient(srv.URL+"/", WithSearchLimit(0, 0))
}

func names(entries []Entry) []string {
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.Name)
	}
	return out
}

// =============================================================================
// LISTING TESTS
// =============================================================================

func TestClient_List(t *testing.T) {
	root := tree(t)
	c := newTestClient(t, NewLocal())

	dir, err := c.List(context.Background(), root)
	require.NoError(t, err)
	assert.Equal(t, root, dir.Path)
	assert.Equal(t, filepath.Base(root), dir.Name)
	require.NotNil(t, dir.Parent)
	assert.Equal(t, filepath.Dir(root), *dir.Parent)
	assert.True(t, dir.Accessible)

	assert.Equal(t, []string{".git", "alpha", "Beta"}, names(dir.Directories), "case-insensitive order")
	assert.Equal(t, []string{"b.txt", "README.md"}, names(dir.Files))

	assert.True(t, dir.Directories[0].IsHidden)
	readme := dir.Files[1]
	assert.True(t, readme.IsFile)
	require.NotNil(t, readme.Size)
	assert.Equal(t, int64(len("# readme")), *readme.Size)
	assert.NotNil(t, readme.Modified)
	assert.Nil(t, dir.Directories[1].Size, "directories carry no size")
}

func TestClient_DirMatchesList(t *testing.T) {
	root := tree(t)
	c := newTestClient(t, NewLocal())

	viaQuery, err := c.List(context.Background(), filepath.Join(root, "alpha"))
	require.NoError(t, err)
	viaPath, err := c.Dir(context.Background(), filepath.Join(root, "alpha"))
	require.NoError(t, err)
	assert.Equal(t, viaQuery, viaPath)
}

func TestClient_DirEscapesSpaces(t *testing.T) {
	root := t.TempDir()
	spaced := filepath.Join(root, "my project")
	require.NoError(t, os.Mkdir(spaced, 0755))
	c := newTestClient(t, NewLocal())

	dir, err := c.Dir(context.Background(), spaced)
	require.NoError(t, err)
	assert.Equal(t, "my project", dir.Name)
}

func TestClient_ListErrors(t *testing.T) {
	root := tree(t)
	other := t.TempDir()
	c := newTestClient(t, NewLocal(WithRoots(root)))
	ctx := context.Background()

	_, err := c.List(ctx, filepath.Join(root, "missing"))
	assert.True(t, IsNotFound(err), "got %v", err)
	assert.True(t, errors.Is(err, ErrNotFound))
	assert.Contains(t, err.Error(), "Path not found")

	_, err = c.List(ctx, filepath.Join(root, "b.txt"))
	assert.True(t, IsNotADirectory(err), "got %v", err)

	_, err = c.Dir(ctx, other)
	assert.True(t, IsPermissionDenied(err), "got %v", err)
	assert.True(t, errors.Is(err, ErrPermissionDenied))
	assert.False(t, errors.Is(err, ErrNotFound))
}

func TestHandler_ErrorBody(t *testing.T) {
	mux := http.NewServeMux()
	NewLocal().Register(mux)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/fs/list?path=/definitely/not/here", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.JSONEq(t, `{"error":"Path not found: /definitely/not/here","code":"PATH_NOT_FOUND"}`, rec.Body.String())

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/fs/list", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "INVALID_REQUEST")
}

// =============================================================================
// SMALL ENDPOINT TESTS
// =============================================================================

func TestClient_Exists(t *testing.T) {
	root := tree(t)
	c := newTestClient(t, NewLocal())
	ctx := context.Background()

	st, err := c.Exists(ctx, filepath.Join(root, "alpha"))
	require.NoError(t, err)
	assert.Equal(t, PathStatus{Exists: true, IsDir: true}, st)

	st, err = c.Exists(ctx, filepath.Join(root, "b.txt"))
	require.NoError(t, err)
	assert.Equal(t, PathStatus{Exists: true, IsFile: true}, st)

	st, err = c.Exists(ctx, filepath.Join(root, "nope"))
	require.NoError(t, err)
	assert.Equal(t, PathStatus{}, st)
}

func TestClient_CwdAndHome(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("USERPROFILE", home)
	c := newTestClient(t, NewLocal())
	ctx := context.Background()

	cwd, err := c.Cwd(ctx)
	require.NoError(t, err)
	wd, _ := os.Getwd()
	assert.Equal(t, wd, cwd)

	got, ok, err := c.Home(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, home, got)
}

func TestClient_HomeNull(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("null"))
	}))
	t.Cleanup(srv.Close)

	_, ok, err := NewClient(srv.URL).Home(context.Background())
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestClient_Common(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("USERPROFILE", home)
	require.NoError(t, os.Mkdir(filepath.Join(home, "Documents"), 0755))
	require.NoError(t, os.Mkdir(filepath.Join(home, "Projects"), 0755))
	c := newTestClient(t, NewLocal())

	entries, err := c.Common(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"Home", "Documents", "Projects"}, names(entries))
	for _, e := range entries {
		assert.True(t, e.IsDir)
	}
	assert.Equal(t, home, entries[0].Path)
}

// =============================================================================
// SEARCH TESTS
// =============================================================================

func TestClient_Search(t *testing.T) {
	root := tree(t)
	c := newTestClient(t, NewLocal())
	ctx := context.Background()

	res, err := c.Search(ctx, root, SearchOptions{Pattern: "*.go"})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"main.go", "x.go"}, names(res.Files))
	assert.Equal(t, 2, res.Total)
	assert.False(t, res.Truncated)

	flat := false
	res, err = c.Search(ctx, root, SearchOptions{Pattern: "*.go", Recursive: &flat})
	require.NoError(t, err)
	assert.Empty(t, res.Files, "non-recursive stays at the top level")

	res, err = c.Search(ctx, root, SearchOptions{Pattern: "*.go", MaxDepth: 2})
	require.NoError(t, err)
	assert.Equal(t, []string{"main.go"}, names(res.Files))
}

func TestClient_SearchHidden(t *testing.T) {
	root := tree(t)
	c := newTestClient(t, NewLocal())
	ctx := context.Background()

	res, err := c.Search(ctx, root, SearchOptions{Pattern: "config"})
	require.NoError(t, err)
	assert.Empty(t, res.Files)

	res, err = c.Search(ctx, root, SearchOptions{Pattern: "config", IncludeHidden: true})
	require.NoError(t, err)
	require.Len(t, res.Files, 1)
	assert.Equal(t, filepath.Join(root, ".git", "config"), res.Files[0].Path)
}

func TestClient_SearchTruncates(t *testing.T) {
	root := t.TempDir()
	for _, n := range []string{"a.log", "b.log", "c.log", "d.log"} {
		require.NoError(t, os.WriteFile(filepath.Join(root, n), nil, 0644))
	}
	c := newTestClient(t, NewLocal())

	res, err := c.Search(context.Background(), root, SearchOptions{Pattern: "*.log", MaxResults: 2})
	require.NoError(t, err)
	assert.Len(t, res.Files, 2)
	assert.Equal(t, 4, res.Total)
	assert.True(t, res.Truncated)
}

func TestClient_SearchErrors(t *testing.T) {
	root := tree(t)
	c := newTestClient(t, NewLocal())
	ctx := context.Background()

	_, err := c.Search(ctx, filepath.Join(root, "missing"), SearchOptions{Pattern: "*"})
	assert.True(t, IsNotFound(err))

	_, err = c.Search(ctx, root, SearchOptions{Pattern: "[unclosed"})
	require.Error(t, err)
	var ce *ClientError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, ErrTypeInternal, ce.Type)
	assert.Equal(t, "INTERNAL_ERROR", ce.Code())
}

func TestClient_SearchRateLimit(t *testing.T) {
	root := tree(t)
	mux := http.NewServeMux()
	NewLocal().Register(mux)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	c := NewClient(srv.URL, WithSearchLimit(0.001, 1))

	_, err := c.Search(context.Background(), root, SearchOptions{Pattern: "*.md"})
	require.NoError(t, err, "burst admits the first call")

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = c.Search(ctx, root, SearchOptions{Pattern: "*.md"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrTimeout))
}

// =============================================================================
// TRANSPORT ERROR TESTS
// =============================================================================

func TestClient_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := NewClient(url).Cwd(context.Background())
	assert.True(t, IsConnection(err), "got %v", err)
}

func TestClient_InvalidResponses(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/fs/cwd" {
			w.Write([]byte("not json"))
			return
		}
		http.Error(w, "boom", http.StatusBadGateway)
	}))
	t.Cleanup(srv.Close)
	c := NewClient(srv.URL)

	var ce *ClientError
	_, err := c.Cwd(context.Background())
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, ErrTypeInvalidResponse, ce.Type)

	_, err = c.Common(context.Background())
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, ErrTypeInvalidResponse, ce.Type)
	assert.Contains(t, ce.Message, "502")
}

func TestErrorType_Status(t *testing.T) {
	assert.Equal(t, http.StatusNotFound, ErrTypeNotFound.Status())
	assert.Equal(t, http.StatusBadRequest, ErrTypeNotADirectory.Status())
	assert.Equal(t, http.StatusForbidden, ErrTypePermissionDenied.Status())
	assert.Equal(t, http.StatusInternalServerError, ErrTypeIO.Status())
	assert.Equal(t, ErrTypeIO, errorTypeForCode("IO_ERROR"))
	assert.Equal(t, ErrTypeUnknown, errorTypeForCode("SOMETHING_ELSE"))
}
