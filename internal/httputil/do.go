// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package httputil provides HTTP helpers shared by the network collaborators.
//
// Do makes exactly one request. Non-success statuses come back as
// *retry.StatusError so the retry executor can classify them; retries are the
// caller's concern.
package httputil

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/pdiddy/evidence-engine/pkg/types"
)

// DefaultTimeout is used when HTTPConfig.Timeout is zero.
const DefaultTimeout = 30 * time.Second

// maxErrorBody bounds how much of a failed response is kept in the error.
const maxErrorBody = 512

// NewClient returns an http.Client configured from cfg.
func NewClient(cfg types.HTTPConfig) *http.Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &http.Client{Timeout: timeout}
}

// Do executes req once under ctx. A 2xx response is returned to the caller,
// who must close its body. Any other status drains and closes the body and
// returns a *retry.StatusError carrying the start of the response text.
func Do(ctx context.Context, client *http.Client, req *http.Request) (*http.Response, error) {
	resp, err := client.Do(req.Clone(ctx))
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return resp, nil
	}
	return nil, statusError(resp)
}

// DecodeJSON reads a JSON body into v and closes it. Malformed bodies yield
// an error wrapping *json.SyntaxError.
func DecodeJSON(resp *http.Response, v any) error {
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}

// SetUserAgent sets the User-Agent header when ua is non-empty.
func SetUserAgent(req *http.Request, ua string) {
	if ua != "" {
		req.Header.Set("User-Agent", ua)
	}
}
