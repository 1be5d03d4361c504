package anthropic

import (
	"bufio"
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/bytedance/sonic"

	"github.com/grafbase/nexus/internal/llmrouter"
	"github.com/grafbase/nexus/internal/perrors"
)

const apiVersion = "2023-06-01"

// Client talks the Anthropic Messages wire protocol, following
// curaious-uno's pkg/gateway/providers/anthropic/client.go idiom: x-api-key
// plus Anthropic-Version headers, sonic at the JSON boundary, bufio SSE
// line reading.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

func NewClient(baseURL, apiKey string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = "https://api.anthropic.com/v1"
	}
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Client{baseURL: strings.TrimRight(baseURL, "/"), apiKey: apiKey, http: &http.Client{Timeout: timeout}}
}

func (c *Client) authHeaders(req *http.Request, in *llmrouter.Request) {
	key := c.apiKey
	if in != nil && in.ForwardedKey != "" {
		key = in.ForwardedKey
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", key)
	req.Header.Set("Anthropic-Version", apiVersion)
	if in == nil {
		return
	}
	for k, vs := range in.ExtraHeaders {
		for _, v := range vs {
			req.Header.Set(k, v)
		}
	}
}

// ListModels has no first-class Anthropic-native discovery in the pack's
// grounding; Anthropic does expose a /models endpoint compatible with this
// same shape, so it's reused rather than hand-rolling a second wire type.
func (c *Client) ListModels(ctx context.Context) ([]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/models", nil)
	if err != nil {
		return nil, err
	}
	c.authHeaders(req, nil)

	res, err := c.http.Do(req)
	if err != nil {
		return nil, perrors.ConnectionError("anthropic models request failed", err)
	}
	defer res.Body.Close()

	body, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, err
	}
	if res.StatusCode != http.StatusOK {
		return nil, perrors.ProviderAPIError(res.StatusCode, string(body))
	}

	var list struct {
		Data []struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	if err := sonic.Unmarshal(body, &list); err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(list.Data))
	for _, m := range list.Data {
		ids = append(ids, m.ID)
	}
	return ids, nil
}

func (c *Client) Complete(ctx context.Context, in *llmrouter.Request) (*llmrouter.Response, error) {
	wireReq := toWireRequest(in)
	wireReq.Stream = false

	payload, err := sonic.Marshal(wireReq)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/messages", bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	c.authHeaders(req, in)

	res, err := c.http.Do(req)
	if err != nil {
		return nil, perrors.ConnectionError("anthropic messages request failed", err)
	}
	defer res.Body.Close()

	body, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, err
	}
	if res.StatusCode != http.StatusOK {
		return nil, perrors.MapProviderStatus(res.StatusCode, string(body), in.Model)
	}

	var wireRes wireResponse
	if err := sonic.Unmarshal(body, &wireRes); err != nil {
		return nil, err
	}
	if wireRes.Error != nil {
		return nil, perrors.ProviderAPIError(res.StatusCode, wireRes.Error.Message)
	}

	return fromWireResponse(&wireRes), nil
}

func (c *Client) Stream(ctx context.Context, in *llmrouter.Request) (<-chan llmrouter.Chunk, error) {
	wireReq := toWireRequest(in)
	wireReq.Stream = true

	payload, err := sonic.Marshal(wireReq)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/messages", bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	c.authHeaders(req, in)

	res, err := c.http.Do(req)
	if err != nil {
		return nil, perrors.ConnectionError("anthropic streaming messages request failed", err)
	}
	if res.StatusCode != http.StatusOK {
		defer res.Body.Close()
		body, _ := io.ReadAll(res.Body)
		return nil, perrors.MapProviderStatus(res.StatusCode, string(body), in.Model)
	}

	out := make(chan llmrouter.Chunk)

	go func() {
		defer res.Body.Close()
		defer close(out)

		reader := bufio.NewReader(res.Body)
		id, model := "", in.Model
		sawTerminal := false

		for {
			line, rerr := reader.ReadString('\n')
			line = strings.TrimRight(line, "\r\n")

			if strings.HasPrefix(line, "data:") {
				data := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
				if data != "" {
					var ev wireEvent
					if uerr := sonic.Unmarshal([]byte(data), &ev); uerr != nil {
						slog.WarnContext(ctx, "unable to unmarshal anthropic stream event", slog.String("data", data), slog.Any("error", uerr))
					} else {
						chunk, terminal, ok := translateEvent(ev, &id, &model)
						if ok {
							if terminal {
								sawTerminal = true
							}
							select {
							case out <- chunk:
							case <-ctx.Done():
								return
							}
						}
					}
				}
			}

			if rerr != nil {
				break
			}
		}

		if !sawTerminal {
			select {
			case out <- llmrouter.Chunk{ID: id, Model: model, FinishReason: llmrouter.FinishStop, Usage: &llmrouter.Usage{}}:
			case <-ctx.Done():
			}
		}
	}()

	return out, nil
}

// translateEvent maps one Anthropic SSE event onto a unified Chunk. ok is
// false for event types that carry no chunk-worthy content (ping,
// content_block_stop). id/model are threaded through by pointer since only
// message_start carries them.
func translateEvent(ev wireEvent, id, model *string) (chunk llmrouter.Chunk, terminal bool, ok bool) {
	switch ev.Type {
	case "message_start":
		if ev.Message != nil {
			*id = ev.Message.ID
			*model = ev.Message.Model
		}
		return llmrouter.Chunk{ID: *id, Model: *model, Delta: llmrouter.Message{Role: llmrouter.RoleAssistant}}, false, true
	case "content_block_delta":
		if ev.Delta == nil {
			return chunk, false, false
		}
		switch ev.Delta.Type {
		case "text_delta":
			return llmrouter.Chunk{ID: *id, Model: *model, Delta: llmrouter.Message{Content: []llmrouter.ContentPart{{Type: "text", Text: ev.Delta.Text}}}}, false, true
		case "input_json_delta":
			return llmrouter.Chunk{ID: *id, Model: *model, Delta: llmrouter.Message{ToolCalls: []llmrouter.ToolCall{{Arguments: ev.Delta.PartialJSON}}}}, false, true
		}
		return chunk, false, false
	case "message_delta":
		fr := llmrouter.FinishStop
		if ev.Delta != nil {
			fr = fromWireFinishReason(ev.Delta.StopReason)
		}
		usage := &llmrouter.Usage{}
		if ev.Usage != nil {
			usage.OutputTokens = ev.Usage.OutputTokens
			usage.InputTokens = ev.Usage.InputTokens
		}
		return llmrouter.Chunk{ID: *id, Model: *model, FinishReason: fr, Usage: usage}, true, true
	default:
		return chunk, false, false
	}
}
