// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package ipc is the local side channel into a running chat session.
//
// Other processes connect to a unix socket and write one JSON line:
//
//	{"content":"summarize ./notes.md","type":"input_response","parse":true}
//
// The Listener decodes it and parks it in a Mailbox. The mailbox holds a
// single message; a second arrival replaces the first, whose sender gets
// {"error":"superseded"}. The session loop is woken through Mailbox.Signal,
// takes the message, runs it as a turn and answers with
// {"content":"..."} when the sender asked for a reply.
package ipc
