package main

import (
	"bytes"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// syncBuffer collects output written by the serve goroutine.
type syncBuffer struct {
	mu  sync.Mutex
	out bytes.Buffer
}

func (s *syncBuffer) Write(p []byte) (int, error) {
	s.mu.Lock()
	n, err := s.out.Write(p)
	s.mu.Unlock()
	return n, err
}

func (s *syncBuffer) String() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.out.String()
}

var listeningLine = regexp.MustCompile(`grokrelay serve listening on http://(\S+)\n`)

// waitForAddress blocks until serve reports its bound address.
func waitForAddress(t *testing.T, buf *syncBuffer, timeout time.Duration) string {
	t.Helper()
	var addr string
	require.Eventually(t, func() bool {
		m := listeningLine.FindStringSubmatch(buf.String())
		if m == nil {
			return false
		}
		addr = m[1]
		return true
	}, timeout, 10*time.Millisecond, "server address not reported; output so far: %s", buf.String())
	return addr
}
