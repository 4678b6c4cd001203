// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package fsapi is the orchestrator's filesystem REST API: a client used by
// the directory picker and a local-disk implementation used by the mock
// orchestrator.
//
// Endpoints:
//   - GET /api/fs/list?path=     - List a directory
//   - GET /api/fs/dir/{path}     - List a directory (path in the URL)
//   - GET /api/fs/common         - Home, Desktop, Documents and project roots
//   - GET /api/fs/cwd            - Server working directory
//   - GET /api/fs/home           - Server home directory (or null)
//   - GET /api/fs/exists/{path}  - Path existence and kind
//   - GET /api/fs/search         - Glob search below a base path
//
// Errors come back as {"error": "...", "code": "PATH_NOT_FOUND"} with a
// matching HTTP status.
//
// # Key Types
//
//   - Client: HTTP client for the endpoints above
//   - Local: Serves the same operations from the local disk
//   - ClientError: Typed error with ErrorType and server code
//
// # Usage
//
//	client := fsapi.NewClient(cfg.Server.APIURL)
//	dir, err := client.List(ctx, "/home/me/src")
//	if fsapi.IsNotFound(err) {
//	    ...
//	}
package fsapi
