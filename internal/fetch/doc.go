// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package fetch retrieves the raw bytes and content type behind a document
// reference.
//
// Three kinds of sources are understood:
//
//   - http:// and https:// URLs, fetched with a size cap and an optional
//     private-address guard
//   - file paths (absolute, ~/, ./, ../) and file:// URLs
//   - shell commands written "!cmd args", whose standard output is returned
//     as text/plain (disabled unless fetch.allow_shell is set)
//
// File and URL results are kept in a small LRU cache. File entries are
// invalidated when the file's modification time changes, URL entries when
// their TTL expires.
package fetch
