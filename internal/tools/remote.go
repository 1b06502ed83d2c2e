package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// RemoteExecutor calls the research-tool gateway over HTTP. One POST per
// invocation: /tools/{name} with the raw argument object as body.
type RemoteExecutor struct {
	baseURL string
	client  *http.Client
}

func NewRemoteExecutor(baseURL string) (*RemoteExecutor, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, errors.New("missing tool gateway url")
	}
	return &RemoteExecutor{
		baseURL: baseURL,
		client:  &http.Client{Timeout: 60 * time.Second},
	}, nil
}

func (e *RemoteExecutor) Execute(ctx context.Context, name string, args map[string]any) (any, error) {
	if e == nil || e.client == nil {
		return nil, errors.New("nil executor")
	}
	if args == nil {
		args = map[string]any{}
	}
	body, err := json.Marshal(args)
	if err != nil {
		return nil, fmt.Errorf("encode args: %w", err)
	}

	url := e.baseURL + "/tools/" + strings.TrimSpace(name)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, err
	}
	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("tool %s: not found", name)
	}
	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, fmt.Errorf("tool %s: rate limited", name)
	}
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("tool %s: gateway status %d: %s", name, resp.StatusCode, previewBody(raw))
	}

	var payload any
	if err := json.Unmarshal(raw, &payload); err != nil {
		// Gateways may return plain text for diagnostic tools.
		return strings.TrimSpace(string(raw)), nil
	}
	return payload, nil
}

func previewBody(raw []byte) string {
	s := strings.TrimSpace(string(raw))
	if len(s) > 200 {
		s = s[:200] + "..."
	}
	return s
}
