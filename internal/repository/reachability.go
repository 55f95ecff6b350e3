package repository

import (
	"context"
	"net"
	"time"
)

// Reachability answers "is the network worth trying" before any backend
// call. Offline-without-cache is a distinct state from a backend error and
// must not burn a fetch attempt.
type Reachability interface {
	Online(ctx context.Context) bool
}

// alwaysOnline is the nil-reachability default.
type alwaysOnline struct{}

func (alwaysOnline) Online(context.Context) bool { return true }

// Probe checks reachability with a bounded TCP dial to a well-known host.
type Probe struct {
	// Addr is the host:port dialed, e.g. "api.example.com:443".
	Addr string
	// Timeout bounds the dial; zero means 3 seconds.
	Timeout time.Duration
}

// Online implements Reachability.
func (p Probe) Online(ctx context.Context) bool {
	timeout := p.Timeout
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	dialCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var d net.Dialer
	conn, err := d.DialContext(dialCtx, "tcp", p.Addr)
	if err != nil {
		return false
	}
	conn.Close()
	return true
}
