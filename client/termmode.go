// Copyright 2023-2026 the termcast Authors. All rights reserved
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package client

import (
	"sync"

	"github.com/u-root/u-root/pkg/termios"
)

// modeGuard owns the controlling terminal's switch into raw mode and
// its return to the prior state. restore is idempotent; every exit
// path out of the event loop may call it without caring who else did.
type modeGuard struct {
	tty   *termios.TTYIO
	saved *termios.Termios
	once  sync.Once
}

// rawMode puts the controlling terminal into raw mode and captures the
// state needed to undo it.
func rawMode() (*modeGuard, error) {
	t, err := termios.New()
	if err != nil {
		return nil, err
	}
	saved, err := t.Raw()
	if err != nil {
		return nil, err
	}
	return &modeGuard{tty: t, saved: saved}, nil
}

// restore puts the terminal back into the mode it had before rawMode.
// Only the first call touches the terminal.
func (g *modeGuard) restore() error {
	var err error
	g.once.Do(func() {
		err = g.tty.Set(g.saved)
	})
	return err
}
