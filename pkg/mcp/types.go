// Package mcp implements a minimal Model Context Protocol client over a
// spawned subprocess's stdio. Connections are call-scoped: a Client is
// dialed, used for one discovery or one tool call, and closed.
package mcp

import "encoding/json"

const protocolVersion = "2024-11-05"

// ServerSpec describes how to launch a tool server process
type ServerSpec struct {
	Command    string
	Args       []string
	WorkingDir string
}

// Tool is a named operation advertised by a server
type Tool struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	InputSchema json.RawMessage `json:"inputSchema"`
}

// Content is one item of a tool result payload
type Content struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// CallResult is the payload returned by tools/call
type CallResult struct {
	Content []Content `json:"content"`
	IsError bool      `json:"isError"`
}

// Text joins the textual content items of a result
func (r *CallResult) Text() string {
	out := ""
	for _, c := range r.Content {
		if c.Text == "" {
			continue
		}
		if out != "" {
			out += "\n"
		}
		out += c.Text
	}
	return out
}

// JSON-RPC wire messages
type rpcRequest struct {
	JSONRPC string      `json:"jsonrpc"`
	Method  string      `json:"method"`
	Params  interface{} `json:"params,omitempty"`
	ID      interface{} `json:"id,omitempty"`
}

type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *rpcError       `json:"error,omitempty"`
	ID      interface{}     `json:"id"`
}

type rpcError struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

type listToolsResult struct {
	Tools []Tool `json:"tools"`
}
