// Copyright 2023-2026 the termcast Authors. All rights reserved
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

//go:build !plan9 && !windows

package session

import (
	"fmt"
	"os"
	"os/exec"

	"github.com/creack/pty"
	"github.com/hashicorp/go-multierror"
)

// Session is one child process attached to a pty.
type Session struct {
	cmd  *exec.Cmd
	ptmx *os.File
}

// New returns a Session that will run cmd with args on its own pty.
// Nothing happens until Start.
func New(cmd string, args ...string) *Session {
	return &Session{cmd: exec.Command(cmd, args...)}
}

// Start allocates the pseudo-terminal and starts the child on its
// slave side, as its controlling terminal.
func (s *Session) Start() error {
	ptmx, err := pty.Start(s.cmd)
	if err != nil {
		return fmt.Errorf("spawning %q on a pty: %w", s.cmd.Path, err)
	}
	s.ptmx = ptmx
	return nil
}

// Read reads child output from the master side. An EIO from a Linux
// pty means the child is gone; callers treat it as EOF.
func (s *Session) Read(b []byte) (int, error) {
	return s.ptmx.Read(b)
}

// Write delivers keystrokes to the child through the master side.
func (s *Session) Write(b []byte) (int, error) {
	return s.ptmx.Write(b)
}

// Fd exposes the master side for readiness polling.
func (s *Session) Fd() int {
	return int(s.ptmx.Fd())
}

// Pid returns the child's process id, or -1 before Start.
func (s *Session) Pid() int {
	if s.cmd.Process == nil {
		return -1
	}
	return s.cmd.Process.Pid
}

// Resize propagates a new size to the pty. The kernel raises SIGWINCH
// in the child's process group; no separate notification is needed.
func (s *Session) Resize(cols, rows int) error {
	return pty.Setsize(s.ptmx, &pty.Winsize{
		Cols: uint16(cols),
		Rows: uint16(rows),
	})
}

// Close tears the session down: the master is closed, the child is
// killed if it is still around, and its exit is reaped. Close is safe
// to call before Start and safe to call twice.
func (s *Session) Close() error {
	var result error
	if s.ptmx != nil {
		if err := s.ptmx.Close(); err != nil {
			result = multierror.Append(result, err)
		}
		s.ptmx = nil
	}
	if s.cmd != nil && s.cmd.Process != nil {
		// Kill fails once the child has already exited; either way the
		// Wait below reaps it.
		_ = s.cmd.Process.Kill()
		_ = s.cmd.Wait()
		s.cmd.Process = nil
	}
	return result
}
