// Copyright 2023-2026 the termcast Authors. All rights reserved
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package session manages the broadcast child process and the
// pseudo-terminal it runs on.
//
// New(cmd string, args ...string) creates a Session a la exec.Command.
// Start allocates the pty and starts the child attached to its slave
// side; the Session then exposes the master side as Read, Write, and
// Fd for readiness polling, plus Resize for window-size changes.
//
// A Session is created once per broadcast and owns its pty for the
// whole life of the child. The relay connection may come and go; the
// Session never does. Close kills and reaps the child and releases
// the master.
package session
