package server_test

import (
	"context"
	"io"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/billybrichards/climate-parser/server"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func freePort(t *testing.T) int {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := ln.Addr().(*net.TCPAddr).Port
	require.NoError(t, ln.Close())
	return port
}

func TestListen(t *testing.T) {
	t.Run("Free", func(t *testing.T) {
		port := freePort(t)
		ln, got, err := server.Listen("127.0.0.1", port, 3)
		require.NoError(t, err)
		defer ln.Close()
		assert.Equal(t, port, got)
	})

	t.Run("SkipsBusyPort", func(t *testing.T) {
		busy, err := net.Listen("tcp", "127.0.0.1:0")
		require.NoError(t, err)
		defer busy.Close()
		port := busy.Addr().(*net.TCPAddr).Port

		ln, got, err := server.Listen("127.0.0.1", port, 10)
		if err != nil {
			// Every following port happened to be taken as well.
			t.Skipf("no free port after %d: %v", port, err)
		}
		defer ln.Close()
		assert.Greater(t, got, port)
	})

	t.Run("GivesUp", func(t *testing.T) {
		busy, err := net.Listen("tcp", "127.0.0.1:0")
		require.NoError(t, err)
		defer busy.Close()
		port := busy.Addr().(*net.TCPAddr).Port

		_, _, err = server.Listen("127.0.0.1", port, 1)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "no free port")
	})
}

func TestServe(t *testing.T) {
	ln, _, err := server.Listen("127.0.0.1", freePort(t), 1)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Serve(ctx, ln, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_, _ = io.WriteString(w, "hello")
		}))
	}()

	client := &http.Client{Transport: &http.Transport{DisableKeepAlives: true}}
	resp, err := client.Get("http://" + ln.Addr().String())
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())
	assert.Equal(t, "hello", string(body))

	cancel()
	select {
	case err := <-errCh:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}
