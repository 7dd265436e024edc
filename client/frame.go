// Copyright 2023-2026 the termcast Authors. All rights reserved
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package client

import "encoding/json"

const (
	cursorHome  = "\x1b[H"
	clearScreen = "\x1b[2J"
	// frameStart and frameEnd delimit the geometry payload inside the
	// escape-sequence wrapper. The relay strips everything between the
	// leading cursor-home and the trailing clear; a viewer that sees the
	// frame raw just gets its screen homed and cleared.
	frameStart = 0x00
	frameEnd   = 0xff
)

// Geometry is the terminal size announced to the relay.
type Geometry struct {
	Cols int
	Rows int
}

// frame encodes g as an out-of-band metadata frame:
// ESC[H NUL {"geometry":[cols,rows]} 0xFF ESC[H ESC[2J
func frame(g Geometry) []byte {
	j, err := json.Marshal(struct {
		Geometry [2]int `json:"geometry"`
	}{[2]int{g.Cols, g.Rows}})
	if err != nil {
		// Marshaling two ints does not fail.
		panic(err)
	}
	b := make([]byte, 0, 2*len(cursorHome)+len(clearScreen)+len(j)+2)
	b = append(b, cursorHome...)
	b = append(b, frameStart)
	b = append(b, j...)
	b = append(b, frameEnd)
	b = append(b, cursorHome...)
	b = append(b, clearScreen...)
	return b
}

// framer decides when an outbound chunk needs a geometry prefix. It
// records the geometry captured at resize time, not at send time, so a
// frame always reflects the resize that made it necessary.
type framer struct {
	dirty bool
	geom  Geometry
}

// markDirty records that g must precede the next outbound chunk.
func (f *framer) markDirty(g Geometry) {
	f.dirty = true
	f.geom = g
}

// consumeIfDirty prefixes chunk with a geometry frame when a resize is
// outstanding, clearing the flag. Exactly one chunk per resize carries
// the frame.
func (f *framer) consumeIfDirty(chunk []byte) []byte {
	if !f.dirty {
		return chunk
	}
	f.dirty = false
	return append(frame(f.geom), chunk...)
}
