// Copyright 2023-2026 the termcast Authors. All rights reserved
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

//go:build !plan9 && !windows

package client

import (
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"os"
	"strconv"
	"time"

	"golang.org/x/sys/unix"
)

const (
	// redialDelay is the fixed wait between failed connection attempts.
	redialDelay = 5 * time.Second
	// chunkSize bounds every read so that a ready descriptor never
	// blocks the loop for long.
	chunkSize = 4096
)

var (
	// ErrAuth is returned when the relay rejects the handshake or the
	// connection dies before the handshake completes. It is fatal: the
	// credentials are static, so retrying cannot help.
	ErrAuth = errors.New("relay authentication failed")
	// ErrRelayWrite is returned when the relay stops accepting bytes.
	// Callers reconnect and retry the same chunk.
	ErrRelayWrite = errors.New("relay write failed")
)

// Conn is one live link to the relay. There is at most one per client;
// on reconnect the whole Conn is replaced, never patched up.
type Conn struct {
	f           *os.File
	fd          int
	user        string
	timeout     time.Duration
	established bool
}

// dialRelay opens a socket to the relay, retrying every redialDelay
// until one opens. It does not return failure; it returns when a
// socket exists or the process is killed.
func dialRelay(host string, port uint16, timeout time.Duration) *os.File {
	addr := net.JoinHostPort(host, strconv.Itoa(int(port)))
	for {
		nc, err := net.DialTimeout("tcp", addr, timeout)
		if err != nil {
			log.Printf("termcast: connect %s: %v; retrying in %v", addr, err, redialDelay)
			time.Sleep(redialDelay)
			continue
		}
		// Take ownership of a dup of the socket so the readiness loop
		// can poll it directly; the net.Conn wrapper is not needed.
		f, err := nc.(*net.TCPConn).File()
		nc.Close()
		if err != nil {
			log.Printf("termcast: socket handoff for %s: %v; retrying in %v", addr, err, redialDelay)
			time.Sleep(redialDelay)
			continue
		}
		return f
	}
}

// newConn establishes and authenticates one link to the relay. The
// dial phase blocks until a socket opens; the only failure newConn can
// return is a handshake rejection. geom, when non-nil, rides along
// with the credentials so the relay knows the terminal size from the
// first byte of output.
func newConn(host string, port uint16, user, password string, timeout time.Duration, geom *Geometry) (*Conn, error) {
	f := dialRelay(host, port, timeout)
	c := &Conn{f: f, fd: int(f.Fd()), user: user, timeout: timeout}
	if err := c.handshake(user, password, geom); err != nil {
		c.Close()
		return nil, err
	}
	return c, nil
}

// handshake introduces this client to the relay and consumes its
// answer. No session data moves until this returns.
func (c *Conn) handshake(user, password string, geom *Geometry) error {
	msg := []byte(fmt.Sprintf("hello %s %s\n", user, password))
	if geom != nil {
		msg = append(msg, frame(*geom)...)
	}
	if err := c.write(msg); err != nil {
		return fmt.Errorf("%w: %v", ErrAuth, err)
	}

	readable, except, err := fdWait(c.fd, false, c.timeout)
	if err != nil {
		return fmt.Errorf("%w: waiting for answer: %v", ErrAuth, err)
	}
	if except {
		return fmt.Errorf("%w: invalid password", ErrAuth)
	}
	if !readable {
		return fmt.Errorf("%w: no answer from relay within %v", ErrAuth, c.timeout)
	}

	buf := make([]byte, chunkSize)
	n, err := unix.Read(c.fd, buf)
	if err != nil || n == 0 {
		return fmt.Errorf("%w: relay closed during handshake", ErrAuth)
	}
	if want := "hello, " + user + "\n"; string(buf[:n]) != want {
		// The relay answered something, just not what we know. Old
		// relays have said other things here; tolerate it.
		log.Printf("termcast: unexpected handshake answer %q, continuing anyway", buf[:n])
	}
	c.established = true
	return nil
}

// write sends b in full. Before each attempt it waits up to the
// configured timeout for the socket to accept bytes; a dead link must
// not stall the local terminal forever.
func (c *Conn) write(b []byte) error {
	for len(b) > 0 {
		writable, except, err := fdWait(c.fd, true, c.timeout)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrRelayWrite, err)
		}
		if except {
			return fmt.Errorf("%w: exceptional condition on socket", ErrRelayWrite)
		}
		if !writable {
			return fmt.Errorf("%w: not writable within %v", ErrRelayWrite, c.timeout)
		}
		n, err := unix.Write(c.fd, b)
		if err == unix.EINTR || err == unix.EAGAIN {
			continue
		}
		if err != nil {
			return fmt.Errorf("%w: %v", ErrRelayWrite, err)
		}
		b = b[n:]
	}
	return nil
}

// drain consumes whatever the relay has sent. The payload is opaque;
// only its presence matters (it signals watcher activity). io.EOF
// means the relay hung up.
func (c *Conn) drain() (int, error) {
	buf := make([]byte, chunkSize)
	n, err := unix.Read(c.fd, buf)
	if err != nil {
		return 0, err
	}
	if n == 0 {
		return 0, io.EOF
	}
	return n, nil
}

// Close releases the socket. The Conn must not be used afterward.
func (c *Conn) Close() error {
	c.established = false
	return c.f.Close()
}

// fdWait blocks until fd is ready for reading (or writing, when write
// is set), has an exceptional condition pending, or the timeout
// passes. A wait interrupted by a signal is restarted, not surfaced.
func fdWait(fd int, write bool, timeout time.Duration) (ready, except bool, err error) {
	for {
		var r, w, e unix.FdSet
		set := &r
		if write {
			set = &w
		}
		set.Set(fd)
		e.Set(fd)
		tv := unix.NsecToTimeval(timeout.Nanoseconds())
		n, err := unix.Select(fd+1, &r, &w, &e, &tv)
		if err == unix.EINTR {
			continue
		}
		if err != nil {
			return false, false, err
		}
		if n == 0 {
			return false, false, nil
		}
		return set.IsSet(fd), e.IsSet(fd), nil
	}
}
