// Copyright 2023-2026 the termcast Authors. All rights reserved
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package client

import (
	"os"
	"os/user"

	"github.com/u-root/u-root/pkg/termios"
	"golang.org/x/term"
)

// V allows debug printing.
var V = func(string, ...interface{}) {}

// SetVerbose sets the package verbose print function.
func SetVerbose(f func(string, ...interface{})) {
	V = f
}

// defaultUser is the name this client introduces itself with when no
// user is configured.
func defaultUser() string {
	if u, err := user.Current(); err == nil && len(u.Username) != 0 {
		return u.Username
	}
	return os.Getenv("USER")
}

// terminalGeometry samples the size of the terminal behind f. It
// returns nil when f is not a terminal; the relay then simply gets no
// geometry frames.
func terminalGeometry(f *os.File) *Geometry {
	if !term.IsTerminal(int(f.Fd())) {
		return nil
	}
	w, err := termios.GetWinSize(f.Fd())
	if err != nil {
		V("winsize on fd %d: %v", f.Fd(), err)
		return nil
	}
	return &Geometry{Cols: int(w.Col), Rows: int(w.Row)}
}
