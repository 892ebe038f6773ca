package printing

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"time"
)

const (
	DefaultPort        = 9100
	DefaultDialTimeout = 5 * time.Second
	defaultChunkSize   = 512
)

var ErrInvalidPrinterAddress = errors.New("printer address must be an IPv4 address")

// ParseAddress accepts "a.b.c.d" or "a.b.c.d:port" and returns a dialable address.
func ParseAddress(s string) (string, error) {
	host, port := s, DefaultPort
	if h, p, err := net.SplitHostPort(s); err == nil {
		n, err := strconv.Atoi(p)
		if err != nil || n <= 0 || n > 65535 {
			return "", fmt.Errorf("%w: bad port %q", ErrInvalidPrinterAddress, p)
		}
		host, port = h, n
	}

	ip := net.ParseIP(host)
	if ip == nil || ip.To4() == nil || ip.String() != host {
		return "", fmt.Errorf("%w: %q", ErrInvalidPrinterAddress, s)
	}
	return net.JoinHostPort(host, strconv.Itoa(port)), nil
}

// NetworkPrinter sends raw bytes to raw-TCP (JetDirect) printers.
type NetworkPrinter struct {
	// DialTimeout also bounds each chunk write. Zero means DefaultDialTimeout.
	DialTimeout time.Duration
	// ChunkSize bounds each write. Small printers drop data on large writes.
	ChunkSize int
}

func NewNetworkPrinter() *NetworkPrinter {
	return &NetworkPrinter{DialTimeout: DefaultDialTimeout, ChunkSize: defaultChunkSize}
}

func (p *NetworkPrinter) Print(ctx context.Context, address string, data []byte) error {
	addr, err := ParseAddress(address)
	if err != nil {
		return err
	}

	timeout := p.DialTimeout
	if timeout <= 0 {
		timeout = DefaultDialTimeout
	}

	dialer := net.Dialer{Timeout: timeout}
	conn, err := dialer.DialContext(ctx, "tcp4", addr)
	if err != nil {
		return fmt.Errorf("connect to printer %s: %w", addr, err)
	}
	defer func() { _ = conn.Close() }()

	chunk := p.ChunkSize
	if chunk <= 0 {
		chunk = defaultChunkSize
	}

	for start := 0; start < len(data); start += chunk {
		end := min(start+chunk, len(data))
		if err := conn.SetWriteDeadline(time.Now().Add(timeout)); err != nil {
			return err
		}
		if _, err := conn.Write(data[start:end]); err != nil {
			return fmt.Errorf("write to printer %s: %w", addr, err)
		}
	}
	return nil
}
