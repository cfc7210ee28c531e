// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package storage manages the directory of saved conversations used by
// /save, /load and /sessions.
//
// Conversation files are plain JSON arrays of messages, written by
// model.MessageList.Save. A bare name such as "trip" resolves to
// <sessions_dir>/trip.json; anything containing a path separator is used
// as given.
package storage
