package main

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"notes-serverless/internal/observability"
)

type recorder struct {
	mu     sync.Mutex
	events []string
}

func (r *recorder) add(event string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

type slowServer struct {
	rec   *recorder
	drain time.Duration
	err   error
}

func (s slowServer) Shutdown(context.Context) error {
	time.Sleep(s.drain)
	s.rec.add("server drained")
	return s.err
}

type fakeRuntime struct {
	rec *recorder
	err error
}

func (f fakeRuntime) Close(context.Context) error {
	f.rec.add("runtime closed")
	return f.err
}

func TestShutdownOperation_DrainsServerBeforeClosingRuntime(t *testing.T) {
	rec := &recorder{}
	op := shutdownOperation(
		slowServer{rec: rec, drain: 50 * time.Millisecond},
		fakeRuntime{rec: rec},
		observability.NewLoggerTo(io.Discard, "error"),
	)

	require.NoError(t, op(context.Background()))
	assert.Equal(t, []string{"server drained", "runtime closed"}, rec.events)
}

func TestShutdownOperation_ClosesRuntimeWhenServerFails(t *testing.T) {
	rec := &recorder{}
	serverErr := errors.New("deadline exceeded")
	closeErr := errors.New("close database")

	op := shutdownOperation(
		slowServer{rec: rec, err: serverErr},
		fakeRuntime{rec: rec, err: closeErr},
		observability.NewLoggerTo(io.Discard, "error"),
	)

	err := op(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, serverErr)
	assert.ErrorIs(t, err, closeErr)
	assert.Equal(t, []string{"server drained", "runtime closed"}, rec.events)
}
