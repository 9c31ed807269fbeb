package odooclient

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPerfTracker_NilSinkIsNoop(t *testing.T) {
	tracker := NewPerfTracker(nil)
	called := false
	err := tracker.Track("res.partner", "read", func() error {
		called = true
		return nil
	})
	assert.NoError(t, err)
	assert.True(t, called)
}

func TestPerfTracker_ReportsSample(t *testing.T) {
	var sample PerfSample
	tracker := NewPerfTracker(func(s PerfSample) { sample = s })

	want := errors.New("boom")
	err := tracker.Track("res.partner", "write", func() error { return want })

	assert.Equal(t, want, err)
	assert.Equal(t, want, sample.Err)
	assert.Equal(t, "res.partner", sample.Model)
	assert.Equal(t, "write", sample.Method)
}
