// Copyright 2023-2026 the termcast Authors. All rights reserved
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

//go:build !plan9 && !windows

// Package client implements the termcast broadcast client. It runs an
// interactive child process on a local pseudo-terminal, mirrors the
// child's output to a termcast relay over a persistent TCP connection,
// and forwards local keystrokes into the child.
//
// The client is a single control flow: one readiness wait over the
// local terminal, the pty master, the relay socket, and the resize
// wake-up, with bytes routed as descriptors become ready. Transient
// relay failures are absorbed by a reconnect path that leaves the
// child process untouched; the terminal is restored to its prior mode
// on every way out.
package client

import (
	"fmt"
	"log"
	"os"
	"os/signal"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/termcast/termcast/session"
	"golang.org/x/sys/unix"
	"golang.org/x/term"
)

// Defaults for the public relay. The password is a shared placeholder,
// not a secret; the relay uses it only to pair a stream with a name.
const (
	DefaultHost     = "termcast.org"
	DefaultPort     = 31337
	DefaultPassword = "asdf"
	DefaultTimeout  = 5 * time.Second
)

// Client is a termcast broadcast client.
// It implements as much of exec.Command's shape as makes sense: build
// one with Command, adjust it with SetOptions, then Run it.
type Client struct {
	Host          string
	Port          uint16
	User          string
	Password      string
	BellOnWatcher bool
	// Timeout bounds every wait for the relay to accept bytes. It is
	// the one place the loop blocks on network state.
	Timeout time.Duration
	Args    []string

	// in and out are the local terminal ends. They are os.Stdin and
	// os.Stdout outside of tests.
	in  *os.File
	out *os.File

	session *session.Session
	conn    *Conn
	fr      framer
	guard   *modeGuard

	winch        chan os.Signal
	wakeR, wakeW *os.File
	// pendingResize is set when a window-change has been delivered and
	// consumed at the top of the next loop iteration.
	pendingResize bool

	closers []func() error
}

// Command returns a Client that will broadcast the given command. With
// no arguments the user's shell is run; SHELL is not always set, so
// fall back to /bin/sh.
func Command(args ...string) *Client {
	if len(args) == 0 {
		shell, ok := os.LookupEnv("SHELL")
		if !ok {
			shell = "/bin/sh"
		}
		args = []string{shell}
	}
	return &Client{
		Host:     DefaultHost,
		Port:     DefaultPort,
		User:     defaultUser(),
		Password: DefaultPassword,
		Timeout:  DefaultTimeout,
		Args:     args,
		in:       os.Stdin,
		out:      os.Stdout,
	}
}

// Set is the type of a Client option.
type Set func(*Client) error

// SetOptions applies each opt to c, stopping at the first failure.
func (c *Client) SetOptions(opts ...Set) error {
	for _, o := range opts {
		if err := o(c); err != nil {
			return err
		}
	}
	return nil
}

// WithHost sets the relay host.
func WithHost(host string) Set {
	return func(c *Client) error {
		if len(host) == 0 {
			return fmt.Errorf("relay host must not be empty")
		}
		c.Host = host
		return nil
	}
}

// WithPort sets the relay port.
func WithPort(port uint16) Set {
	return func(c *Client) error {
		if port == 0 {
			return fmt.Errorf("relay port must not be 0")
		}
		c.Port = port
		return nil
	}
}

// WithUser sets the name the relay will list this stream under.
func WithUser(user string) Set {
	return func(c *Client) error {
		if len(user) == 0 {
			return fmt.Errorf("relay user must not be empty")
		}
		c.User = user
		return nil
	}
}

// WithPassword sets the relay password.
func WithPassword(password string) Set {
	return func(c *Client) error {
		c.Password = password
		return nil
	}
}

// WithBellOnWatcher rings the local terminal bell whenever the relay
// sends traffic, which it does when watchers come and go.
func WithBellOnWatcher(bell bool) Set {
	return func(c *Client) error {
		c.BellOnWatcher = bell
		return nil
	}
}

// WithTimeout bounds waits for the relay to accept writes.
func WithTimeout(d time.Duration) Set {
	return func(c *Client) error {
		if d <= 0 {
			return fmt.Errorf("timeout must be positive, got %v", d)
		}
		c.Timeout = d
		return nil
	}
}

// withStdio redirects the local terminal ends; tests use it to drive
// the loop from pipes.
func withStdio(in, out *os.File) Set {
	return func(c *Client) error {
		c.in, c.out = in, out
		return nil
	}
}

// Run starts the child, connects and handshakes with the relay, and
// drives the session until the child exits or local input ends. The
// child is started exactly once; only the relay connection is ever
// rebuilt. Whatever happens, resources and the terminal mode are
// released via Close before Run returns.
func (c *Client) Run() error {
	err := c.run()
	if cerr := c.Close(); cerr != nil {
		err = multierror.Append(err, cerr).ErrorOrNil()
	}
	return err
}

func (c *Client) run() error {
	c.session = session.New(c.Args[0], c.Args[1:]...)
	if err := c.session.Start(); err != nil {
		// Nothing can proceed without the pty.
		return err
	}
	c.closers = append(c.closers, c.session.Close)
	V("child %q running, pid %d", c.Args, c.session.Pid())

	geom := terminalGeometry(c.in)
	if geom != nil {
		if err := c.session.Resize(geom.Cols, geom.Rows); err != nil {
			V("initial resize: %v", err)
		}
	}

	conn, err := newConn(c.Host, c.Port, c.User, c.Password, c.Timeout, geom)
	if err != nil {
		return err
	}
	c.conn = conn
	c.closers = append(c.closers, func() error {
		if c.conn == nil {
			return nil
		}
		return c.conn.Close()
	})

	if err := c.watchResize(); err != nil {
		return err
	}

	if term.IsTerminal(int(c.in.Fd())) {
		g, err := rawMode()
		if err != nil {
			return fmt.Errorf("raw mode: %v", err)
		}
		c.guard = g
		c.closers = append(c.closers, g.restore)
	}

	return c.loop()
}

// watchResize forwards SIGWINCH into a pipe the loop polls. The signal
// itself cannot interrupt another thread's select, so the wake-up has
// to be a descriptor in the same readiness set.
func (c *Client) watchResize() error {
	r, w, err := os.Pipe()
	if err != nil {
		return err
	}
	c.wakeR, c.wakeW = r, w
	c.winch = make(chan os.Signal, 1)
	signal.Notify(c.winch, unix.SIGWINCH)
	go func() {
		var b [1]byte
		for range c.winch {
			_, _ = w.Write(b[:])
		}
	}()
	c.closers = append(c.closers, func() error {
		signal.Stop(c.winch)
		close(c.winch)
		r.Close()
		return w.Close()
	})
	return nil
}

// loop is the Running state: route bytes between the local terminal,
// the pty, and the relay until one side ends the session. A nil return
// is a clean end (stdin EOF or child exit); anything else is a local
// I/O failure.
func (c *Client) loop() error {
	var (
		stdinFd = int(c.in.Fd())
		wakeFd  = int(c.wakeR.Fd())
		ptyFd   = c.session.Fd()
		buf     = make([]byte, chunkSize)
	)
	for {
		// A resize noted during the previous iteration is folded in
		// before blocking again.
		if c.pendingResize {
			c.pendingResize = false
			c.applyResize()
		}

		var r, e unix.FdSet
		for _, fd := range []int{stdinFd, ptyFd, c.conn.fd, wakeFd} {
			r.Set(fd)
		}
		e.Set(c.conn.fd)
		nfds := maxFd(stdinFd, ptyFd, c.conn.fd, wakeFd) + 1
		if _, err := unix.Select(nfds, &r, nil, &e, nil); err != nil {
			if err == unix.EINTR {
				continue
			}
			return fmt.Errorf("select: %v", err)
		}

		if r.IsSet(wakeFd) {
			c.drainWake()
			c.pendingResize = true
			continue
		}

		if e.IsSet(c.conn.fd) {
			if err := c.reconnect(); err != nil {
				return err
			}
			continue
		}

		if r.IsSet(c.conn.fd) {
			n, err := c.conn.drain()
			if err != nil {
				// The relay hung up; the session survives it.
				if err := c.reconnect(); err != nil {
					return err
				}
				continue
			}
			if n > 0 && c.BellOnWatcher {
				_, _ = c.out.Write([]byte("\a"))
			}
		}

		if r.IsSet(stdinFd) {
			n, err := unix.Read(stdinFd, buf)
			if err == unix.EINTR {
				continue
			}
			if err != nil {
				return fmt.Errorf("reading local input: %v", err)
			}
			if n == 0 {
				V("local input closed, session over")
				return nil
			}
			if _, err := c.session.Write(buf[:n]); err != nil {
				return fmt.Errorf("writing to child: %v", err)
			}
		}

		if r.IsSet(ptyFd) {
			n, err := unix.Read(ptyFd, buf)
			if err == unix.EINTR {
				continue
			}
			// A pty master reads EIO once the child is gone; that is
			// the normal end of the session, not a failure.
			if err == unix.EIO || (err == nil && n == 0) {
				V("child exited, session over")
				return nil
			}
			if err != nil {
				return fmt.Errorf("reading from child: %v", err)
			}
			// Local echo comes first: responsiveness never waits on
			// network state.
			if _, err := c.out.Write(buf[:n]); err != nil {
				return fmt.Errorf("writing local output: %v", err)
			}
			if err := c.broadcast(buf[:n]); err != nil {
				return err
			}
		}
	}
}

// broadcast sends one chunk of child output to the relay, prefixed
// with a geometry frame when a resize is outstanding. The framed chunk
// is computed once and retried verbatim across reconnects, so the
// relay sees neither loss nor duplication.
func (c *Client) broadcast(chunk []byte) error {
	out := c.fr.consumeIfDirty(chunk)
	for {
		err := c.conn.write(out)
		if err == nil {
			return nil
		}
		V("relay write: %v", err)
		if err := c.reconnect(); err != nil {
			return err
		}
	}
}

// reconnect replaces the relay link. The child and its pty are
// untouched, so the session continues where it was once the new link
// finishes its handshake. A handshake rejection here is as fatal as it
// would have been at startup.
func (c *Client) reconnect() error {
	log.Printf("termcast: connection to %s:%d lost, reconnecting", c.Host, c.Port)
	old := c.conn
	c.conn = nil
	old.Close()
	conn, err := newConn(c.Host, c.Port, c.User, c.Password, c.Timeout, terminalGeometry(c.in))
	if err != nil {
		return err
	}
	c.conn = conn
	return nil
}

// applyResize propagates the new terminal size to the child and
// schedules a geometry frame for the next outbound chunk.
func (c *Client) applyResize() {
	g := terminalGeometry(c.in)
	if g == nil {
		return
	}
	if err := c.session.Resize(g.Cols, g.Rows); err != nil {
		V("resize to %dx%d: %v", g.Cols, g.Rows, err)
	}
	c.fr.markDirty(*g)
}

// drainWake empties the resize wake-up pipe. Several signals may have
// coalesced; one resize covers them all.
func (c *Client) drainWake() {
	var b [32]byte
	_, _ = unix.Read(int(c.wakeR.Fd()), b[:])
}

// Close releases everything the client owns, in the reverse order it
// was acquired. It is safe after a partial setup and safe to call
// twice; terminal mode restoration in particular runs at most once.
func (c *Client) Close() error {
	var err error
	for i := len(c.closers) - 1; i >= 0; i-- {
		if e := c.closers[i](); e != nil {
			err = multierror.Append(err, e)
		}
	}
	c.closers = nil
	return err
}

func maxFd(fds ...int) int {
	m := fds[0]
	for _, fd := range fds[1:] {
		if fd > m {
			m = fd
		}
	}
	return m
}
