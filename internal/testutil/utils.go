package testutil

import (
	"io"
	"log"
	"testing"
)

type testWriter struct {
	t *testing.T
}

func (w testWriter) Write(p []byte) (int, error) {
	w.t.Logf("%s", p)
	return len(p), nil
}

// TestLogger returns a logger that routes through t.Log so output is
// attached to the test that produced it.
func TestLogger(t *testing.T) *log.Logger {
	logger := log.New(testWriter{t: t}, "", log.Lshortfile)
	t.Cleanup(func() {
		logger.SetOutput(io.Discard)
	})
	return logger
}
