// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package docs decides what happens to the documents a user refers to.
//
// # References
//
// User input is scanned for:
//
//	#tag                 letters, digits, _ - . / (must start with a letter)
//	https://host/page    http and https URLs
//	/abs ~/home ./rel    paths of existing files, and file:// URLs
//
// Tags label embedded chunks and filter retrieval; they are never fetched.
//
// # Document Policy
//
// Every URL or file reference is fetched and handled according to the
// document_policy switch:
//
//	importing     parsed text is appended to the message under a header
//	embedding     parsed text is split and added to the retrieval store
//	summarizing   parsed text is appended inside a summarization request
//	ignoring      nothing happens, not even an error for a failed fetch
//
// Images are always attached to the message, whatever the policy. A bad
// reference produces an error or warning and never blocks the others.
package docs
