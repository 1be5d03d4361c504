package google

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/bytedance/sonic"

	"github.com/grafbase/nexus/internal/llmrouter"
	"github.com/grafbase/nexus/internal/perrors"
)

// Client talks the Gemini generateContent wire protocol, following
// curaious-uno's pkg/gateway/providers/gemini/client.go idiom: API key as a
// query parameter rather than a header, endpoint built from the model
// segment, sonic at the JSON boundary.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

func NewClient(baseURL, apiKey string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = "https://generativelanguage.googleapis.com/v1beta"
	}
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Client{baseURL: strings.TrimRight(baseURL, "/"), apiKey: apiKey, http: &http.Client{Timeout: timeout}}
}

func (c *Client) withKey(req *http.Request, in *llmrouter.Request) {
	key := c.apiKey
	if in != nil && in.ForwardedKey != "" {
		key = in.ForwardedKey
	}
	q := req.URL.Query()
	q.Set("key", key)
	req.URL.RawQuery = q.Encode()
	req.Header.Set("Content-Type", "application/json")
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
	c.withKey(req, nil)

	res, err := c.http.Do(req)
	if err != nil {
		return nil, perrors.ConnectionError("gemini models request failed", err)
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
	ids := make([]string, 0, len(list.Models))
	for _, m := range list.Models {
		ids = append(ids, strings.TrimPrefix(m.Name, "models/"))
	}
	return ids, nil
}

func (c *Client) Complete(ctx context.Context, in *llmrouter.Request) (*llmrouter.Response, error) {
	wireReq := toWireRequest(in)

	payload, err := sonic.Marshal(wireReq)
	if err != nil {
		return nil, err
	}

	endpoint := fmt.Sprintf("%s/models/%s:generateContent", c.baseURL, in.Model)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	c.withKey(req, in)

	res, err := c.http.Do(req)
	if err != nil {
		return nil, perrors.ConnectionError("gemini generateContent request failed", err)
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

	return fromWireResponse(in.Model, &wireRes), nil
}

func (c *Client) Stream(ctx context.Context, in *llmrouter.Request) (<-chan llmrouter.Chunk, error) {
	wireReq := toWireRequest(in)

	payload, err := sonic.Marshal(wireReq)
	if err != nil {
		return nil, err
	}

	endpoint := fmt.Sprintf("%s/models/%s:streamGenerateContent", c.baseURL, in.Model)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	c.withKey(req, in)
	q := req.URL.Query()
	q.Set("alt", "sse")
	req.URL.RawQuery = q.Encode()

	res, err := c.http.Do(req)
	if err != nil {
		return nil, perrors.ConnectionError("gemini streamGenerateContent request failed", err)
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
		model := in.Model
		sawTerminal := false

		for {
			line, rerr := reader.ReadString('\n')
			line = strings.TrimRight(line, "\r\n")

			if strings.HasPrefix(line, "data:") {
				data := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
				if data != "" {
					var wr wireResponse
					if uerr := sonic.Unmarshal([]byte(data), &wr); uerr != nil {
						slog.WarnContext(ctx, "unable to unmarshal gemini stream chunk", slog.String("data", data), slog.Any("error", uerr))
					} else {
						chunk, terminal := translateChunk(model, &wr)
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

			if rerr != nil {
				break
			}
		}

		if !sawTerminal {
			select {
			case out <- llmrouter.Chunk{Model: model, FinishReason: llmrouter.FinishStop, Usage: &llmrouter.Usage{}}:
			case <-ctx.Done():
			}
		}
	}()

	return out, nil
}

func translateChunk(model string, wr *wireResponse) (llmrouter.Chunk, bool) {
	chunk := llmrouter.Chunk{Model: model}
	if len(wr.Candidates) == 0 {
		return chunk, false
	}
	c := wr.Candidates[0]
	for _, p := range c.Content.Parts {
		if p.Text != "" {
			chunk.Delta.Content = append(chunk.Delta.Content, llmrouter.ContentPart{Type: "text", Text: p.Text})
		}
		if p.FunctionCall != nil {
			argsJSON, _ := sonic.MarshalString(p.FunctionCall.Args)
			chunk.Delta.ToolCalls = append(chunk.Delta.ToolCalls, llmrouter.ToolCall{Name: p.FunctionCall.Name, Arguments: argsJSON})
		}
	}
	if c.FinishReason == "" {
		return chunk, false
	}
	chunk.FinishReason = fromWireFinishReason(c.FinishReason)
	if len(chunk.Delta.ToolCalls) > 0 {
		chunk.FinishReason = llmrouter.FinishToolCalls
	}
	if wr.UsageMetadata != nil {
		chunk.Usage = &llmrouter.Usage{InputTokens: wr.UsageMetadata.PromptTokenCount, OutputTokens: wr.UsageMetadata.CandidatesTokenCount}
	} else {
		chunk.Usage = &llmrouter.Usage{}
	}
	return chunk, true
}
