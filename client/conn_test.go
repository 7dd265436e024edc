// Copyright 2023-2026 the termcast Authors. All rights reserved
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

//go:build !plan9 && !windows

package client

import (
	"bytes"
	"errors"
	"net"
	"testing"
	"time"
)

// relayStub accepts one connection and runs script against it.
func relayStub(t *testing.T, script func(net.Conn)) uint16 {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	t.Cleanup(func() { ln.Close() })
	go func() {
		c, err := ln.Accept()
		if err != nil {
			return
		}
		defer c.Close()
		script(c)
	}()
	return uint16(ln.Addr().(*net.TCPAddr).Port)
}

func TestHandshakeWire(t *testing.T) {
	got := make(chan []byte, 1)
	port := relayStub(t, func(c net.Conn) {
		b := make([]byte, 256)
		n, _ := c.Read(b)
		got <- append([]byte{}, b[:n]...)
		c.Write([]byte("hello, test\n"))
		time.Sleep(100 * time.Millisecond)
	})

	conn, err := newConn("127.0.0.1", port, "test", "tset", time.Second, nil)
	if err != nil {
		t.Fatalf("newConn: got %v, want nil", err)
	}
	defer conn.Close()
	if !conn.established {
		t.Fatal("conn not marked established after handshake")
	}

	want := "hello test tset\n"
	if g := string(<-got); g != want {
		t.Fatalf("handshake bytes: got %q, want %q", g, want)
	}
}

func TestHandshakeCarriesGeometry(t *testing.T) {
	got := make(chan []byte, 1)
	port := relayStub(t, func(c net.Conn) {
		var b bytes.Buffer
		chunk := make([]byte, 256)
		for !bytes.HasSuffix(b.Bytes(), []byte(clearScreen)) {
			n, err := c.Read(chunk)
			if err != nil {
				break
			}
			b.Write(chunk[:n])
		}
		got <- b.Bytes()
		c.Write([]byte("hello, test\n"))
		time.Sleep(100 * time.Millisecond)
	})

	conn, err := newConn("127.0.0.1", port, "test", "tset", time.Second, &Geometry{Cols: 80, Rows: 24})
	if err != nil {
		t.Fatalf("newConn: got %v, want nil", err)
	}
	defer conn.Close()

	want := append([]byte("hello test tset\n"), frame(Geometry{Cols: 80, Rows: 24})...)
	if g := <-got; !bytes.Equal(g, want) {
		t.Fatalf("handshake bytes: got %q, want %q", g, want)
	}
}

func TestHandshakeToleratesUnknownAck(t *testing.T) {
	port := relayStub(t, func(c net.Conn) {
		b := make([]byte, 256)
		c.Read(b)
		c.Write([]byte("greetings, stranger\n"))
		time.Sleep(100 * time.Millisecond)
	})

	conn, err := newConn("127.0.0.1", port, "test", "tset", time.Second, nil)
	if err != nil {
		t.Fatalf("newConn with odd ack: got %v, want nil", err)
	}
	conn.Close()
}

func TestHandshakeRejectedOnClose(t *testing.T) {
	port := relayStub(t, func(c net.Conn) {
		b := make([]byte, 256)
		c.Read(b)
		// Hang up without answering: a dead link during handshake is
		// an auth failure, not a retryable condition.
	})

	_, err := newConn("127.0.0.1", port, "test", "tset", time.Second, nil)
	if !errors.Is(err, ErrAuth) {
		t.Fatalf("newConn after hangup: got %v, want %v", err, ErrAuth)
	}
}

func TestHandshakeRejectedOnSilence(t *testing.T) {
	port := relayStub(t, func(c net.Conn) {
		b := make([]byte, 256)
		c.Read(b)
		// Say nothing, but keep the socket open past the client's
		// timeout.
		time.Sleep(2 * time.Second)
	})

	_, err := newConn("127.0.0.1", port, "test", "tset", 200*time.Millisecond, nil)
	if !errors.Is(err, ErrAuth) {
		t.Fatalf("newConn with silent relay: got %v, want %v", err, ErrAuth)
	}
}

func TestConnWriteDelivers(t *testing.T) {
	got := make(chan []byte, 1)
	port := relayStub(t, func(c net.Conn) {
		b := make([]byte, 256)
		c.Read(b)
		c.Write([]byte("hello, test\n"))
		var out bytes.Buffer
		for out.Len() < 10 {
			n, err := c.Read(b)
			if err != nil {
				break
			}
			out.Write(b[:n])
		}
		got <- out.Bytes()
	})

	conn, err := newConn("127.0.0.1", port, "test", "tset", time.Second, nil)
	if err != nil {
		t.Fatalf("newConn: got %v, want nil", err)
	}
	defer conn.Close()

	if err := conn.write([]byte("some bytes")); err != nil {
		t.Fatalf("write: got %v, want nil", err)
	}
	if g := string(<-got); g != "some bytes" {
		t.Fatalf("relay received %q, want %q", g, "some bytes")
	}
}
