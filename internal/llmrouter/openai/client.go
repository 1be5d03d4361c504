package openai

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

// Client talks the OpenAI Chat Completions wire protocol. It also serves
// Ollama and any other OpenAI-compatible provider Nexus is configured to
// point at a different BaseURL, following curaious-uno's
// pkg/gateway/providers/openai/client.go idiom of one *http.Client per
// provider plus sonic marshal/unmarshal at the boundary.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

func NewClient(baseURL, apiKey string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
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
	req.Header.Set("Authorization", "Bearer "+key)
	if in == nil {
		return
	}
	for k, vs := range in.ExtraHeaders {
		for _, v := range vs {
			req.Header.Set(k, v)
		}
	}
}

func (c *Client) ListModels(ctx context.Context) ([]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/models", nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	res, err := c.http.Do(req)
	if err != nil {
		return nil, perrors.ConnectionError("openai models request failed", err)
	}
	defer res.Body.Close()

	body, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, err
	}
	if res.StatusCode != http.StatusOK {
		return nil, perrors.ProviderAPIError(res.StatusCode, string(body))
	}

	var list wireModelList
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

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	c.authHeaders(req, in)

	res, err := c.http.Do(req)
	if err != nil {
		return nil, perrors.ConnectionError("openai chat completions request failed", err)
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

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	c.authHeaders(req, in)

	res, err := c.http.Do(req)
	if err != nil {
		return nil, perrors.ConnectionError("openai streaming chat completions request failed", err)
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
		var lastFinish llmrouter.FinishReason
		var sawTerminal bool

		for {
			line, err := reader.ReadString('\n')
			line = strings.TrimRight(line, "\r\n")

			if strings.HasPrefix(line, "data:") {
				data := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
				if data == "[DONE]" {
					sawTerminal = true
					break
				}
				if data != "" {
					var wc wireChunk
					if uerr := sonic.Unmarshal([]byte(data), &wc); uerr != nil {
						slog.WarnContext(ctx, "unable to unmarshal openai stream chunk", slog.String("data", data), slog.Any("error", uerr))
					} else {
						chunk := fromWireChunk(&wc)
						if chunk.IsTerminal() {
							lastFinish = chunk.FinishReason
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

			if err != nil {
				break
			}
		}

		if !sawTerminal {
			finish := lastFinish
			if finish == "" {
				finish = llmrouter.FinishStop
			}
			synthetic := llmrouter.Chunk{FinishReason: finish, Usage: &llmrouter.Usage{}}
			select {
			case out <- synthetic:
			case <-ctx.Done():
			}
		}
	}()

	return out, nil
}
