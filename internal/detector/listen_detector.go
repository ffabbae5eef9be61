package detector

import (
	"context"
	"fmt"
	"net"

	psnet "github.com/shirou/gopsutil/v4/net"
)

const statusListen = "LISTEN"

// connectionsFunc lists sockets of the given kind; it matches gopsutil's signature.
type connectionsFunc func(ctx context.Context, kind string) ([]psnet.ConnectionStat, error)

// ListenDetector reads the OS socket table and reports up when some process
// holds a TCP socket in LISTEN state on Port. It is the equivalent of scanning
// `netstat -an` output and does not open a connection to the service.
//
// When Host is set, only sockets bound to Host or to a wildcard address match.
type ListenDetector struct {
	Port int
	Host string

	connections connectionsFunc
}

func (d ListenDetector) Alive(ctx context.Context) (bool, error) {
	list := d.connections
	if list == nil {
		list = psnet.ConnectionsWithContext
	}
	conns, err := list(ctx, "tcp")
	if err != nil {
		return false, fmt.Errorf("list sockets: %w", err)
	}
	for _, c := range conns {
		if c.Status != statusListen || int(c.Laddr.Port) != d.Port {
			continue
		}
		if d.Host == "" || sameIP(c.Laddr.IP, d.Host) || isWildcard(c.Laddr.IP) {
			return true, nil
		}
	}
	return false, nil
}

func (d ListenDetector) Describe() string {
	if d.Host != "" {
		return fmt.Sprintf("listen:%s:%d", d.Host, d.Port)
	}
	return fmt.Sprintf("listen:%d", d.Port)
}

func isWildcard(ip string) bool {
	switch ip {
	case "", "0.0.0.0", "::", "*":
		return true
	}
	return false
}

// sameIP compares textual addresses, so "::1" matches "0:0:0:0:0:0:0:1".
func sameIP(a, b string) bool {
	if a == b {
		return true
	}
	ia, ib := net.ParseIP(a), net.ParseIP(b)
	return ia != nil && ia.Equal(ib)
}
