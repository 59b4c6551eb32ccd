package server

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStartFailsWhenPortIsTaken(t *testing.T) {
	taken, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer func() { _ = taken.Close() }()
	host, port, err := net.SplitHostPort(taken.Addr().String())
	require.NoError(t, err)

	ts := newTestServer(t, newFakeBackend(), nil)
	ts.Host, ts.Port = host, port

	err = ts.Start(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "server failed to start")
}

func TestStartShutsDownWhenContextEnds(t *testing.T) {
	ts := newTestServer(t, newFakeBackend(), nil)
	ts.Host, ts.Port = "127.0.0.1", "0"

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- ts.Start(ctx) }()
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("server did not shut down")
	}
}

func TestValidAPIKey(t *testing.T) {
	s := &Server{APIKeys: map[string]bool{"alpha-key-123": true, "beta-key-456": true}}
	assert.True(t, s.validAPIKey("alpha-key-123"))
	assert.True(t, s.validAPIKey("beta-key-456"))
	assert.False(t, s.validAPIKey("alpha-key-12"))
	assert.False(t, s.validAPIKey(""))
}
