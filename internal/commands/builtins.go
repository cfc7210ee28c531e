// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package commands

import (
	"strings"

	"github.com/jeranaias/docchat/internal/switches"
)

var policies = []string{
	switches.PolicyImporting,
	switches.PolicyEmbedding,
	switches.PolicySummarizing,
	switches.PolicyIgnoring,
}

// Builtins returns the definitions of the session commands. Handlers are
// bound by the session.
func Builtins() []*Command {
	return []*Command{
		// General
		{
			Name:        "/help",
			Aliases:     []string{"/h", "/?"},
			Description: "Show commands, or details of one command",
			Usage:       "/help [command]",
			Args:        []ArgDef{{Name: "command", Type: ArgTypeString}},
			Category:    CategoryGeneral,
		},
		{
			Name:        "/quit",
			Aliases:     []string{"/exit", "/bye", "/q"},
			Description: "End the session",
			Usage:       "/quit",
			Category:    CategoryGeneral,
		},

		// Conversation
		{
			Name:        "/system",
			Description: "Replace the conversation with a new system prompt",
			Usage:       "/system <text>",
			Args:        []ArgDef{{Name: "text", Type: ArgTypeText, Required: true}},
			Category:    CategoryConversation,
		},
		{
			Name:        "/clear",
			Description: "Remove every message except the system prompt",
			Usage:       "/clear",
			Category:    CategoryConversation,
		},
		{
			Name:        "/drop",
			Description: "Remove the last n exchanges",
			Usage:       "/drop [n]",
			Args:        []ArgDef{{Name: "n", Type: ArgTypeInt, Description: "exchanges to drop (default 1)"}},
			Category:    CategoryConversation,
		},
		{
			Name:        "/list",
			Aliases:     []string{"/history"},
			Description: "Show the conversation",
			Usage:       "/list [n]",
			Args:        []ArgDef{{Name: "n", Type: ArgTypeInt, Description: "last n messages"}},
			Category:    CategoryConversation,
		},
		{
			Name:        "/save",
			Description: "Save the conversation to a file",
			Usage:       "/save <file>",
			Args:        []ArgDef{{Name: "file", Type: ArgTypeSession, Required: true}},
			Category:    CategoryConversation,
		},
		{
			Name:        "/load",
			Description: "Replace the conversation with a saved one",
			Usage:       "/load <file>",
			Args:        []ArgDef{{Name: "file", Type: ArgTypeSession, Required: true}},
			Category:    CategoryConversation,
		},
		{
			Name:        "/export",
			Description: "Export the conversation as Markdown, HTML or JSON",
			Usage:       "/export <file.md|file.html|file.json>",
			Args:        []ArgDef{{Name: "file", Type: ArgTypeFile, Required: true}},
			Category:    CategoryConversation,
		},
		{
			Name:        "/sessions",
			Description: "List saved conversations",
			Usage:       "/sessions",
			Category:    CategoryConversation,
		},
		{
			Name:        "/delete",
			Description: "Delete a saved conversation",
			Usage:       "/delete <name>",
			Args:        []ArgDef{{Name: "name", Type: ArgTypeSession, Required: true}},
			Category:    CategoryConversation,
		},
		{
			Name:        "/links",
			Description: "List links seen in the conversation",
			Usage:       "/links [n]",
			Args:        []ArgDef{{Name: "n", Type: ArgTypeInt, Description: "last n links"}},
			Category:    CategoryConversation,
		},
		{
			Name:        "/tokens",
			Description: "Estimate the tokens the conversation uses",
			Usage:       "/tokens",
			Category:    CategoryConversation,
		},
		{
			Name:        "/usage",
			Description: "Show the tokens the server reported this session",
			Usage:       "/usage",
			Category:    CategoryConversation,
		},

		// Settings
		{
			Name:        "/set",
			Description: "Set a switch",
			Usage:       "/set <switch> <value>",
			Args: []ArgDef{
				{Name: "switch", Type: ArgTypeSwitch, Required: true},
				{Name: "value", Type: ArgTypeString, Required: true},
			},
			Category: CategorySettings,
		},
		{
			Name:        "/toggle",
			Description: "Turn a switch on or off",
			Usage:       "/toggle <switch>",
			Args:        []ArgDef{{Name: "switch", Type: ArgTypeSwitch, Required: true}},
			Category:    CategorySettings,
		},
		{
			Name:        "/switches",
			Aliases:     []string{"/status"},
			Description: "Show every switch",
			Usage:       "/switches",
			Category:    CategorySettings,
		},
		{
			Name:        "/policy",
			Description: "Set what happens to referenced documents",
			Usage:       "/policy <" + strings.Join(policies, "|") + ">",
			Args:        []ArgDef{{Name: "policy", Type: ArgTypeEnum, Required: true, Values: policies}},
			Category:    CategorySettings,
		},
		{
			Name:        "/think",
			Description: "Set the reasoning mode",
			Usage:       "/think <" + strings.Join(switches.ThinkModes, "|") + ">",
			Args:        []ArgDef{{Name: "mode", Type: ArgTypeEnum, Required: true, Values: switches.ThinkModes}},
			Category:    CategorySettings,
		},

		// Model
		{
			Name:        "/model",
			Aliases:     []string{"/m"},
			Description: "Show or switch the model",
			Usage:       "/model [name]",
			Args:        []ArgDef{{Name: "name", Type: ArgTypeModel}},
			Category:    CategoryModel,
		},
		{
			Name:        "/models",
			Description: "List models available on the server",
			Usage:       "/models",
			Category:    CategoryModel,
		},

		// Documents
		{
			Name:        "/import",
			Description: "Import a document into the next message",
			Usage:       "/import <source|@n> [#tags]",
			Args:        []ArgDef{{Name: "source", Type: ArgTypeSource, Required: true}},
			Category:    CategoryDocuments,
		},
		{
			Name:        "/embed",
			Description: "Embed a document into the retrieval store",
			Usage:       "/embed <source|@n> [#tags]",
			Args:        []ArgDef{{Name: "source", Type: ArgTypeSource, Required: true}},
			Category:    CategoryDocuments,
		},
		{
			Name:        "/summarize",
			Description: "Ask for a summary of a document",
			Usage:       "/summarize <source|@n> [words]",
			Args: []ArgDef{
				{Name: "source", Type: ArgTypeSource, Required: true},
				{Name: "words", Type: ArgTypeInt},
			},
			Category: CategoryDocuments,
		},
		{
			Name:        "/find",
			Description: "Search the retrieval store",
			Usage:       "/find <query> [#tags]",
			Args:        []ArgDef{{Name: "query", Type: ArgTypeText, Required: true}},
			Category:    CategoryDocuments,
		},
		{
			Name:        "/collection",
			Description: "Show or switch the active collection",
			Usage:       "/collection [name]",
			Args:        []ArgDef{{Name: "name", Type: ArgTypeCollection}},
			Category:    CategoryDocuments,
		},
		{
			Name:        "/collections",
			Description: "List collections",
			Usage:       "/collections",
			Category:    CategoryDocuments,
		},
		{
			Name:        "/sources",
			Description: "List sources in the active collection",
			Usage:       "/sources",
			Category:    CategoryDocuments,
		},
		{
			Name:        "/forget",
			Description: "Remove a source from the active collection",
			Usage:       "/forget <source>",
			Args:        []ArgDef{{Name: "source", Type: ArgTypeSource, Required: true}},
			Category:    CategoryDocuments,
		},
		{
			Name:        "/watch",
			Description: "Re-embed a file whenever it changes",
			Usage:       "/watch [file] [#tags]",
			Args:        []ArgDef{{Name: "file", Type: ArgTypeFile}},
			Category:    CategoryDocuments,
		},
		{
			Name:        "/unwatch",
			Description: "Stop watching a file",
			Usage:       "/unwatch <file>",
			Args:        []ArgDef{{Name: "file", Type: ArgTypeFile, Required: true}},
			Category:    CategoryDocuments,
		},

		// Tools
		{
			Name:        "/search",
			Description: "Search the web",
			Usage:       "/search <query>",
			Args:        []ArgDef{{Name: "query", Type: ArgTypeText, Required: true}},
			Category:    CategoryTools,
		},
		{
			Name:        "/tools",
			Description: "List the tools offered to the model",
			Usage:       "/tools",
			Category:    CategoryTools,
		},
		{
			Name:        "/tool",
			Description: "Run a tool by hand",
			Usage:       "/tool <name> [json arguments]",
			Args: []ArgDef{
				{Name: "name", Type: ArgTypeTool, Required: true},
				{Name: "arguments", Type: ArgTypeText},
			},
			Category: CategoryTools,
		},
	}
}
