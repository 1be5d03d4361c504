package mcpfed

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"

	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/client/transport"
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/grafbase/nexus/internal/config"
)

// Session wraps one downstream MCP server's live connection, whichever of
// the three transports it was configured with. mark3labs/mcp-go's
// client.Client already abstracts stdio/streamable-http/SSE behind one
// type; Session adds Nexus's auth-injection and header-insert policy on
// top of it.
type Session struct {
	Name   string
	cfg    *config.DownstreamServer
	client *client.Client
}

// Dial connects to the configured downstream server and performs the MCP
// initialize handshake. forwardBearer is the caller's own bearer token,
// used only when cfg.Auth.Type == "forward"; static-auth and no-auth
// servers ignore it.
func Dial(ctx context.Context, name string, cfg *config.DownstreamServer, globalHeaderInsert []config.HeaderInsertRule, forwardBearer string) (*Session, error) {
	headers := map[string]string{}
	for _, r := range globalHeaderInsert {
		headers[r.Name] = r.Value
	}
	for _, r := range cfg.HeaderInsert {
		headers[r.Name] = r.Value
	}
	if cfg.Auth != nil {
		switch cfg.Auth.Type {
		case "static":
			headers["Authorization"] = "Bearer " + cfg.Auth.Token
		case "forward":
			if forwardBearer != "" {
				headers["Authorization"] = "Bearer " + forwardBearer
			}
		}
	}

	var cli *client.Client
	var err error

	switch cfg.Transport {
	case config.TransportStdio:
		cli, err = dialStdio(cfg.Stdio)
	case config.TransportStreamableHTTP:
		cli, err = client.NewStreamableHttpClient(cfg.HTTP.URL, transport.WithHTTPHeaders(headers))
	case config.TransportSSE:
		opts := []transport.ClientOption{transport.WithHeaders(headers)}
		cli, err = client.NewSSEMCPClient(cfg.SSE.URL, opts...)
	default:
		return nil, fmt.Errorf("mcpfed: unknown transport %q for server %q", cfg.Transport, name)
	}
	if err != nil {
		return nil, fmt.Errorf("mcpfed: dial %q: %w", name, err)
	}

	if err := cli.Start(ctx); err != nil {
		return nil, fmt.Errorf("mcpfed: start %q: %w", name, err)
	}

	if _, err := cli.Initialize(ctx, mcp.InitializeRequest{
		Params: mcp.InitializeParams{
			ProtocolVersion: mcp.LATEST_PROTOCOL_VERSION,
			ClientInfo:      mcp.Implementation{Name: "nexus"},
		},
	}); err != nil {
		_ = cli.Close()
		return nil, fmt.Errorf("mcpfed: initialize %q: %w", name, err)
	}

	return &Session{Name: name, cfg: cfg, client: cli}, nil
}

func dialStdio(s *config.StdioConfig) (*client.Client, error) {
	if s == nil {
		return nil, fmt.Errorf("missing [stdio] config")
	}

	env := os.Environ()
	for k, v := range s.Env {
		env = append(env, k+"="+v)
	}

	var opts []transport.StdioOption
	if s.Cwd != "" {
		cwd := s.Cwd
		opts = append(opts, transport.WithCommandFunc(func(ctx context.Context, command string, args, env []string) (*exec.Cmd, error) {
			cmd := exec.CommandContext(ctx, command, args...)
			cmd.Env = env
			cmd.Dir = cwd
			return cmd, nil
		}))
	}

	cli, err := client.NewStdioMCPClientWithOptions(s.Cmd, env, s.Args, opts...)
	if err != nil {
		return nil, err
	}

	// The stdio transport's stderr pipe is a io.ReadCloser the caller owns;
	// route it per the configured disposition rather than leaving it
	// unread (an unread pipe eventually blocks the child on stderr writes).
	if stderr := client.GetStderr(cli); stderr != nil {
		switch s.Stderr {
		case "", "discard":
			go drainDiscard(stderr)
		case "inherit":
			go copyTo(stderr, os.Stderr)
		default:
			f, err := os.OpenFile(s.Stderr, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
			if err != nil {
				_ = cli.Close()
				return nil, fmt.Errorf("open stderr sink %q: %w", s.Stderr, err)
			}
			go copyTo(stderr, f)
		}
	}

	return cli, nil
}

func drainDiscard(r io.Reader) { _, _ = io.Copy(io.Discard, r) }
func copyTo(r io.Reader, w io.Writer) { _, _ = io.Copy(w, r) }

// ListTools returns the server's tool catalog, namespaced for the shared
// index. Called at startup, by the reconnect loop's health probe and
// reconnects for static servers, and on first use for dynamic ones.
func (s *Session) ListTools(ctx context.Context) ([]Tool, error) {
	res, err := s.client.ListTools(ctx, mcp.ListToolsRequest{})
	if err != nil {
		return nil, err
	}

	tools := make([]Tool, 0, len(res.Tools))
	for _, t := range res.Tools {
		schema, err := jsonMarshal(t.InputSchema)
		if err != nil {
			schema = []byte(`{"type":"object","properties":{}}`)
		}

		override := s.cfg.Tools[t.Name]
		acl := EffectiveAccessControl(s.cfg.AccessControl, override)
		rl := EffectiveRateLimit(s.cfg.RateLimit, override)

		tools = append(tools, Tool{
			PublicName:    s.Name + "__" + t.Name,
			OriginalName:  t.Name,
			Server:        s.Name,
			Description:   t.Description,
			InputSchema:   schema,
			AccessControl: acl,
			RateLimit:     rl,
		})
	}
	return tools, nil
}

// CallTool invokes a downstream tool by its original (un-namespaced) name.
// The session's auth header (static token, or the forwarded bearer it was
// dialed with) travels with every call made on it automatically.
func (s *Session) CallTool(ctx context.Context, originalName string, args map[string]any) (CallResult, error) {
	res, err := s.client.CallTool(ctx, mcp.CallToolRequest{
		Params: mcp.CallToolParams{
			Name:      originalName,
			Arguments: args,
		},
	})
	if err != nil {
		return CallResult{}, err
	}

	var text string
	for _, c := range res.Content {
		if tc, ok := c.(mcp.TextContent); ok {
			text += tc.Text
		}
	}

	return CallResult{Text: text, IsError: res.IsError}, nil
}

func (s *Session) Close() error { return s.client.Close() }

// IsDynamic reports whether this server's tools are discovered per-session
// (auth-forwarding) rather than placed in the shared startup index.
func (s *Session) IsDynamic() bool { return s.cfg.Auth.IsForward() }
