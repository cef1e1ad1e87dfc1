package httpclient

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type payload struct {
	Name string `json:"name"`
}

func TestGetJSON_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		assert.Equal(t, "tesla", r.URL.Query().Get("q"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"name":"ok"}`))
	}))
	defer srv.Close()

	c := New(time.Second)
	var out payload
	err := c.GetJSON(context.Background(), Request{
		URL:    srv.URL,
		Query:  url.Values{"q": {"tesla"}},
		Header: http.Header{"Authorization": {"Bearer secret"}},
	}, &out)

	require.NoError(t, err)
	assert.Equal(t, "ok", out.Name)
}

func TestGetJSON_StatusKinds(t *testing.T) {
	tests := []struct {
		name   string
		status int
		kind   Kind
	}{
		{"rate limited", http.StatusTooManyRequests, KindRateLimited},
		{"not found", http.StatusNotFound, KindNotFound},
		{"unauthorized", http.StatusUnauthorized, KindClient},
		{"bad request", http.StatusBadRequest, KindClient},
		{"server error", http.StatusInternalServerError, KindServer},
		{"bad gateway", http.StatusBadGateway, KindServer},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
			}))
			defer srv.Close()

			err := New(time.Second).GetJSON(context.Background(), Request{URL: srv.URL}, &payload{})
			require.Error(t, err)
			assert.Equal(t, tt.kind, KindOf(err))
			assert.Equal(t, tt.status, StatusOf(err))
			assert.True(t, IsStatus(err))
		})
	}
}

func TestGetJSON_ParseError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{not json`))
	}))
	defer srv.Close()

	err := New(time.Second).GetJSON(context.Background(), Request{URL: srv.URL}, &payload{})
	require.Error(t, err)
	assert.Equal(t, KindParse, KindOf(err))
	assert.False(t, IsTransient(err))
	assert.False(t, IsStatus(err))
	assert.Zero(t, StatusOf(err))
}

func TestGetJSON_HTMLBodyOnOK(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(`<html>not json</html>`))
	}))
	defer srv.Close()

	err := NewWithHTTPClient(srv.Client()).GetJSON(context.Background(), Request{URL: srv.URL}, &payload{})
	require.Error(t, err)
	assert.Equal(t, KindParse, KindOf(err))
	assert.Zero(t, StatusOf(err))
	assert.Contains(t, err.Error(), "decode response")
}

func TestGetJSON_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer srv.Close()

	err := New(20*time.Millisecond).GetJSON(context.Background(), Request{URL: srv.URL}, &payload{})
	require.Error(t, err)
	assert.Equal(t, KindNetwork, KindOf(err))
	assert.True(t, IsTransient(err))
}

func TestIsTransient(t *testing.T) {
	assert.True(t, IsTransient(&Error{Kind: KindServer}))
	assert.True(t, IsTransient(&Error{Kind: KindNetwork}))
	assert.False(t, IsTransient(&Error{Kind: KindRateLimited}))
	assert.False(t, IsTransient(&Error{Kind: KindClient}))
	assert.False(t, IsTransient(errors.New("plain")))
	assert.False(t, IsStatus(&Error{Kind: KindClient}))
	assert.False(t, IsStatus(&Error{Kind: KindParse, StatusCode: 200}))
	assert.Equal(t, Kind(""), KindOf(errors.New("plain")))
}
