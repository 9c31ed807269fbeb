package odooclient

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCallCancellable_ReturnsFnError(t *testing.T) {
	want := errors.New("boom")
	err := callCancellable(context.Background(), func() error { return want })
	assert.Equal(t, want, err)
}

func TestCallCancellable_HonorsAlreadyCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	called := false
	err := callCancellable(ctx, func() error {
		called = true
		return nil
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, called)
}

func TestCallCancellable_CancelledDuringCall(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	started := make(chan struct{})

	errCh := make(chan error, 1)
	go func() {
		errCh <- callCancellable(ctx, func() error {
			close(started)
			time.Sleep(200 * time.Millisecond)
			return nil
		})
	}()

	<-started
	cancel()

	err := <-errCh
	assert.ErrorIs(t, err, context.Canceled)
}
