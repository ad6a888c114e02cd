// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package httputil

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/evidence-engine/internal/retry"
	"github.com/pdiddy/evidence-engine/pkg/types"
)

func fastPolicy(attempts int) retry.Policy {
	p := retry.DefaultPolicy()
	p.MaxAttempts = attempts
	p.Backoff = retry.Backoff{Base: time.Millisecond, Max: 2 * time.Millisecond, Factor: 2}
	p.RateLimit = retry.Backoff{Base: time.Millisecond, Max: 2 * time.Millisecond, Factor: 2}
	return p
}

func TestDo_Success(t *testing.T) {
	var calls int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusOK)
	}))
	defer ts.Close()

	req, err := http.NewRequest(http.MethodGet, ts.URL, nil)
	require.NoError(t, err)

	resp, err := Do(context.Background(), ts.Client(), req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestDo_StatusBecomesClassifiedError(t *testing.T) {
	tests := []struct {
		status int
		want   retry.ErrorKind
	}{
		{http.StatusTooManyRequests, retry.KindRateLimited},
		{http.StatusServiceUnavailable, retry.KindServerUnavailable},
		{http.StatusForbidden, retry.KindProtocol},
		{http.StatusRequestTimeout, retry.KindTransientNetwork},
		{http.StatusNotFound, retry.KindNonRetryable},
	}

	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte("upstream says no"))
			}))
			defer ts.Close()

			req, err := http.NewRequest(http.MethodGet, ts.URL, nil)
			require.NoError(t, err)

			resp, err := Do(context.Background(), ts.Client(), req)
			assert.Nil(t, resp)

			var se *retry.StatusError
			require.ErrorAs(t, err, &se)
			assert.Equal(t, tt.status, se.StatusCode)
			assert.Contains(t, se.Error(), "upstream says no")
			assert.Equal(t, tt.want, retry.Classify(err))
		})
	}
}

func TestDo_UnderExecutorRetriesThen200(t *testing.T) {
	var calls int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		n := atomic.AddInt32(&calls, 1)
		if n <= 2 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"ok":true}`))
	}))
	defer ts.Close()

	req, err := http.NewRequest(http.MethodGet, ts.URL, nil)
	require.NoError(t, err)

	exec := retry.New(fastPolicy(5))
	got, err := retry.Do(context.Background(), exec, func(ctx context.Context) (bool, error) {
		resp, err := Do(ctx, ts.Client(), req)
		if err != nil {
			return false, err
		}
		var body struct {
			OK bool `json:"ok"`
		}
		if err := DecodeJSON(resp, &body); err != nil {
			return false, err
		}
		return body.OK, nil
	})
	require.NoError(t, err)

	assert.True(t, got)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestDo_UnderExecutorExhausts(t *testing.T) {
	var calls int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer ts.Close()

	req, err := http.NewRequest(http.MethodGet, ts.URL, nil)
	require.NoError(t, err)

	exec := retry.New(fastPolicy(3))
	_, err = retry.Do(context.Background(), exec, func(ctx context.Context) (*http.Response, error) {
		return Do(ctx, ts.Client(), req)
	})

	assert.True(t, retry.IsExhausted(err))
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestDo_ContextCancelled(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer ts.Close()

	p := retry.DefaultPolicy()
	p.RateLimit = retry.Backoff{Base: time.Minute, Max: time.Minute, Factor: 2}
	exec := retry.New(p)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	req, err := http.NewRequest(http.MethodGet, ts.URL, nil)
	require.NoError(t, err)

	_, err = retry.Do(ctx, exec, func(ctx context.Context) (*http.Response, error) {
		return Do(ctx, ts.Client(), req)
	})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestDecodeJSON_MalformedIsProtocolError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`{"ok": ?}`))
	}))
	defer ts.Close()

	req, err := http.NewRequest(http.MethodGet, ts.URL, nil)
	require.NoError(t, err)

	resp, err := Do(context.Background(), ts.Client(), req)
	require.NoError(t, err)

	var v map[string]any
	err = DecodeJSON(resp, &v)
	require.Error(t, err)

	var syn *json.SyntaxError
	if assert.ErrorAs(t, err, &syn) {
		assert.Equal(t, retry.KindProtocol, retry.Classify(err))
	}
}

func TestNewClient_DefaultTimeout(t *testing.T) {
	assert.Equal(t, DefaultTimeout, NewClient(types.HTTPConfig{}).Timeout)
	assert.Equal(t, 5*time.Second, NewClient(types.HTTPConfig{Timeout: 5 * time.Second}).Timeout)
}
