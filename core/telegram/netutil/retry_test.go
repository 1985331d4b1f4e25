package netutil

import (
	"context"
	"errors"
	"fmt"
	"net"
	"testing"
)

func TestShouldRetry(t *testing.T) {
	dial := &net.OpError{Op: "dial", Net: "tcp", Err: errors.New("connection refused")}
	cases := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"dial", fmt.Errorf("post: %w", dial), true},
		{"read", &net.OpError{Op: "read", Net: "tcp", Err: errors.New("reset")}, false},
		{"timeout", &net.DNSError{Err: "timeout", IsTimeout: true}, true},
		{"cancelled", context.Canceled, false},
		{"plain", errors.New("bad request"), false},
	}
	for _, tc := range cases {
		if got := ShouldRetry(tc.err); got != tc.want {
			t.Fatalf("%s: ShouldRetry = %v, want %v", tc.name, got, tc.want)
		}
	}
}
