package printing

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net"
	"testing"
	"time"
)

func TestParseAddress(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{in: "192.168.1.50", want: "192.168.1.50:9100"},
		{in: "192.168.1.50:9101", want: "192.168.1.50:9101"},
		{in: "printer.local", wantErr: true},
		{in: "::1", wantErr: true},
		{in: "192.168.1.50:0", wantErr: true},
		{in: "192.168.1.256", wantErr: true},
		{in: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseAddress(tt.in)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidPrinterAddress) {
					t.Errorf("expected ErrInvalidPrinterAddress, got %v (%q)", err, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("expected %s, got %s", tt.want, got)
			}
		})
	}
}

func TestNetworkPrinter_Print(t *testing.T) {
	ln, err := net.Listen("tcp4", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("failed to listen: %v", err)
	}
	defer func() { _ = ln.Close() }()

	received := make(chan []byte, 1)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer func() { _ = conn.Close() }()
		data, _ := io.ReadAll(conn)
		received <- data
	}()

	payload := bytes.Repeat([]byte("abc"), 100)
	p := &NetworkPrinter{DialTimeout: time.Second, ChunkSize: 7}

	if err := p.Print(context.Background(), ln.Addr().String(), payload); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	select {
	case got := <-received:
		if !bytes.Equal(got, payload) {
			t.Errorf("expected %d bytes, got %d", len(payload), len(got))
		}
	case <-time.After(2 * time.Second):
		t.Fatal("printer did not receive data")
	}
}

func TestNetworkPrinter_PrintZeroValueTimeout(t *testing.T) {
	ln, err := net.Listen("tcp4", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("failed to listen: %v", err)
	}
	defer func() { _ = ln.Close() }()

	received := make(chan []byte, 1)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer func() { _ = conn.Close() }()
		data, _ := io.ReadAll(conn)
		received <- data
	}()

	payload := []byte("receipt body")
	p := &NetworkPrinter{ChunkSize: 4}

	if err := p.Print(context.Background(), ln.Addr().String(), payload); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	select {
	case got := <-received:
		if !bytes.Equal(got, payload) {
			t.Errorf("expected %q, got %q", payload, got)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("printer did not receive data")
	}
}

func TestNetworkPrinter_PrintRejectsHostnames(t *testing.T) {
	err := NewNetworkPrinter().Print(context.Background(), "localhost:9100", []byte("x"))
	if !errors.Is(err, ErrInvalidPrinterAddress) {
		t.Errorf("expected ErrInvalidPrinterAddress, got %v", err)
	}
}
