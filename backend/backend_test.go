package backend_test

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/billybrichards/climate-parser/backend"
	"github.com/billybrichards/climate-parser/backend/backendtest"
	"github.com/billybrichards/climate-parser/config"
)

func newClient(t *testing.T, upstream *backendtest.Server) *backend.Client {
	t.Helper()
	return backend.NewBackendClient(config.UpstreamConfig{
		APIKey:    "sk-test",
		BaseURL:   upstream.URL(),
		Model:     "gpt-4o",
		MaxTokens: 4000,
		Timeout:   5 * time.Second,
	})
}

func TestComplete(t *testing.T) {
	t.Parallel()

	t.Run("OK", func(t *testing.T) {
		t.Parallel()
		upstream := backendtest.New(t)
		upstream.RespondWithContent(`{"title":"Verde"}`)

		out, err := newClient(t, upstream).Complete(context.Background(), "be terse", "describe")
		require.NoError(t, err)
		assert.Equal(t, `{"title":"Verde"}`, out)

		req := upstream.LastRequest()
		assert.Equal(t, "gpt-4o", req.Model)
		assert.EqualValues(t, 4000, req.MaxTokens)
		assert.Equal(t, "sk-test", req.APIKey)
		require.Len(t, req.Messages, 2)
		assert.Equal(t, backendtest.Message{Role: "system", Content: "be terse"}, req.Messages[0])
		assert.Equal(t, backendtest.Message{Role: "user", Content: "describe"}, req.Messages[1])
	})

	t.Run("MissingCredentials", func(t *testing.T) {
		t.Parallel()
		c := backend.NewBackendClient(config.UpstreamConfig{Model: "gpt-4o", MaxTokens: 10, Timeout: time.Second})
		_, err := c.Complete(context.Background(), "", "hello")
		require.ErrorIs(t, err, backend.ErrMissingCredentials)
	})

	t.Run("UpstreamError", func(t *testing.T) {
		t.Parallel()
		upstream := backendtest.New(t)
		upstream.RespondWithError(http.StatusTooManyRequests, "You exceeded your current quota")

		_, err := newClient(t, upstream).Complete(context.Background(), "", "hello")
		var uerr *backend.UpstreamError
		require.True(t, errors.As(err, &uerr))
		assert.Equal(t, http.StatusTooManyRequests, uerr.StatusCode)
		assert.Equal(t, "You exceeded your current quota", uerr.Message)
		// Not retried.
		assert.Equal(t, 1, upstream.Calls())
	})

	t.Run("Unreachable", func(t *testing.T) {
		t.Parallel()
		c := backend.NewBackendClient(config.UpstreamConfig{
			APIKey:    "sk-test",
			BaseURL:   "http://127.0.0.1:1/v1/",
			Model:     "gpt-4o",
			MaxTokens: 10,
			Timeout:   time.Second,
		})
		_, err := c.Complete(context.Background(), "", "hello")
		var uerr *backend.UpstreamError
		require.True(t, errors.As(err, &uerr))
		assert.Zero(t, uerr.StatusCode)
	})
}

func TestProbe(t *testing.T) {
	t.Parallel()

	upstream := backendtest.New(t)
	upstream.RespondWithContent(" OK \n")

	res, err := newClient(t, upstream).Probe(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "OK", res.Reply)
	assert.Equal(t, "gpt-4o", res.Model)
	assert.EqualValues(t, 15, res.TotalTokens)
	assert.EqualValues(t, 20, upstream.LastRequest().MaxTokens)
}
