package mcp

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os/exec"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

const requestTimeout = 10 * time.Second

// Client is a connection to one tool server process. It is not safe for
// concurrent use and is intended to live for a single discovery session
// or a single tool call.
type Client struct {
	spec    ServerSpec
	process *exec.Cmd
	stdin   io.WriteCloser

	mu      sync.Mutex
	id      int
	pending map[int]chan *rpcResponse
	closed  bool
}

// Dial spawns the server process and performs the initialize handshake.
// The caller must Close the client, on both success and failure paths.
func Dial(ctx context.Context, spec ServerSpec) (*Client, error) {
	cmd := exec.CommandContext(ctx, spec.Command, spec.Args...)
	if spec.WorkingDir != "" {
		cmd.Dir = spec.WorkingDir
	}

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("stdout pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start %s: %w", spec.Command, err)
	}

	c := &Client{
		spec:    spec,
		process: cmd,
		stdin:   stdin,
		pending: make(map[int]chan *rpcResponse),
	}

	go c.listen(bufio.NewScanner(stdout))

	if err := c.initialize(ctx); err != nil {
		c.Close()
		return nil, fmt.Errorf("initialize handshake: %w", err)
	}

	return c, nil
}

// Close terminates the server process unconditionally
func (c *Client) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	for id, ch := range c.pending {
		close(ch)
		delete(c.pending, id)
	}
	c.mu.Unlock()

	c.stdin.Close()
	if c.process.Process != nil {
		_ = c.process.Process.Kill()
	}
	_ = c.process.Wait()
	return nil
}

// ListTools requests the server's tool catalogue
func (c *Client) ListTools(ctx context.Context) ([]Tool, error) {
	resp, err := c.call(ctx, "tools/list", nil)
	if err != nil {
		return nil, err
	}

	var result listToolsResult
	if err := json.Unmarshal(resp.Result, &result); err != nil {
		return nil, fmt.Errorf("decode tools/list result: %w", err)
	}
	return result.Tools, nil
}

// CallTool invokes one named tool with JSON arguments
func (c *Client) CallTool(ctx context.Context, name string, args map[string]interface{}) (*CallResult, error) {
	params := map[string]interface{}{
		"name":      name,
		"arguments": args,
	}

	resp, err := c.call(ctx, "tools/call", params)
	if err != nil {
		return nil, err
	}

	var result CallResult
	if err := json.Unmarshal(resp.Result, &result); err != nil {
		return nil, fmt.Errorf("decode tools/call result: %w", err)
	}
	return &result, nil
}

func (c *Client) initialize(ctx context.Context) error {
	params := map[string]interface{}{
		"protocolVersion": protocolVersion,
		"capabilities":    map[string]interface{}{},
		"clientInfo": map[string]interface{}{
			"name":    "cortexr",
			"version": "0.1.0",
		},
	}
	_, err := c.call(ctx, "initialize", params)
	return err
}

func (c *Client) listen(scanner *bufio.Scanner) {
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var resp rpcResponse
		if err := json.Unmarshal(line, &resp); err != nil {
			log.Debug().Err(err).Str("command", c.spec.Command).Msg("Skipping unparseable server output line")
			continue
		}

		id, ok := resp.ID.(float64)
		if !ok {
			continue // notification, nothing pending on it
		}

		c.mu.Lock()
		ch, exists := c.pending[int(id)]
		if exists {
			delete(c.pending, int(id))
			ch <- &resp
		}
		c.mu.Unlock()
	}
}

func (c *Client) call(ctx context.Context, method string, params interface{}) (*rpcResponse, error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, fmt.Errorf("client closed")
	}
	c.id++
	id := c.id
	ch := make(chan *rpcResponse, 1)
	c.pending[id] = ch
	c.mu.Unlock()

	req := rpcRequest{
		JSONRPC: "2.0",
		Method:  method,
		Params:  params,
		ID:      id,
	}

	data, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}

	if _, err := c.stdin.Write(append(data, '\n')); err != nil {
		return nil, fmt.Errorf("write request: %w", err)
	}

	select {
	case resp, ok := <-ch:
		if !ok {
			return nil, fmt.Errorf("connection closed while waiting for %s", method)
		}
		if resp.Error != nil {
			return nil, fmt.Errorf("server error (%d): %s", resp.Error.Code, resp.Error.Message)
		}
		return resp, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(requestTimeout):
		return nil, fmt.Errorf("%s request timed out", method)
	}
}
