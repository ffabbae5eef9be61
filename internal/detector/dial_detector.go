package detector

import (
	"context"
	"errors"
	"net"
	"strconv"
	"syscall"
	"time"
)

const defaultDialTimeout = 2 * time.Second

// DialDetector connects to Host:Port over TCP and reports up when the
// connection is accepted. A refused connection is a definite "down"; any other
// dial failure (timeout, unreachable host) is returned as an error.
type DialDetector struct {
	Host    string
	Port    int
	Timeout time.Duration
}

func (d DialDetector) addr() string {
	host := d.Host
	if host == "" {
		host = "127.0.0.1"
	}
	return net.JoinHostPort(host, strconv.Itoa(d.Port))
}

func (d DialDetector) Alive(ctx context.Context) (bool, error) {
	timeout := d.Timeout
	if timeout <= 0 {
		timeout = defaultDialTimeout
	}
	dialer := net.Dialer{Timeout: timeout}
	conn, err := dialer.DialContext(ctx, "tcp", d.addr())
	if err != nil {
		if errors.Is(err, syscall.ECONNREFUSED) {
			return false, nil
		}
		return false, err
	}
	_ = conn.Close()
	return true, nil
}

func (d DialDetector) Describe() string { return "dial:" + d.addr() }
