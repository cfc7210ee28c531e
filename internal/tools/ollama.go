// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package tools

import "github.com/jeranaias/docchat/internal/ollama"

// OllamaTools converts the registry to the /api/chat tools array.
func (r *Registry) OllamaTools() []ollama.Tool {
	tools := r.All()
	result := make([]ollama.Tool, 0, len(tools))
	for _, tool := range tools {
		result = append(result, ToolToOllama(tool))
	}
	return result
}

// ToolToOllama converts a single Tool to its JSON schema form:
//
//	{
//	  "type": "function",
//	  "function": {
//	    "name": "web_search",
//	    "description": "Search the web ...",
//	    "parameters": {
//	      "type": "object",
//	      "properties": {"query": {"type": "string", "description": "..."}},
//	      "required": ["query"]
//	    }
//	  }
//	}
func ToolToOllama(tool *Tool) ollama.Tool {
	properties := make(map[string]ollama.ToolProperty, len(tool.Schema.Parameters))
	var required []string

	for _, param := range tool.Schema.Parameters {
		properties[param.Name] = ollama.ToolProperty{
			Type:        param.Type,
			Description: param.Description,
			Enum:        param.Enum,
		}
		if param.Required {
			required = append(required, param.Name)
		}
	}

	return ollama.Tool{
		Type: "function",
		Function: ollama.ToolSchema{
			Name:        tool.Name,
			Description: tool.ShortDescription(),
			Parameters: ollama.ToolParameters{
				Type:       "object",
				Properties: properties,
				Required:   required,
			},
		},
	}
}
