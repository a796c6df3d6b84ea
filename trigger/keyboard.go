// still-capture - trigger driven still image capture for embedded cameras
//  Copyright (C) 2020, The Cacophony Project
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program. If not, see <http://www.gnu.org/licenses/>.

package trigger

import (
	"fmt"
	"sync"

	"golang.org/x/sys/unix"
)

// RawTerminal puts a terminal into non-canonical, no-echo mode so
// single keypresses can be read without blocking. The previous
// settings are restored by Restore, which must run on every exit path
// and only takes effect once.
type RawTerminal struct {
	fd      int
	saved   unix.Termios
	restore sync.Once
}

// NewRawTerminal switches the terminal on fd to raw, non-blocking
// reads (VMIN and VTIME both zero). It fails if fd is not a terminal.
func NewRawTerminal(fd int) (*RawTerminal, error) {
	saved, err := unix.IoctlGetTermios(fd, unix.TCGETS)
	if err != nil {
		return nil, fmt.Errorf("not a terminal: %v", err)
	}

	raw := *saved
	raw.Lflag &^= unix.ICANON | unix.ECHO
	raw.Cc[unix.VMIN] = 0
	raw.Cc[unix.VTIME] = 0
	if err := unix.IoctlSetTermios(fd, unix.TCSETS, &raw); err != nil {
		return nil, fmt.Errorf("setting raw terminal mode: %v", err)
	}

	return &RawTerminal{fd: fd, saved: *saved}, nil
}

// Restore puts the terminal back into the mode it had before
// NewRawTerminal. Safe to call multiple times.
func (t *RawTerminal) Restore() {
	if t == nil {
		return
	}
	t.restore.Do(func() {
		unix.IoctlSetTermios(t.fd, unix.TCSETS, &t.saved)
	})
}

// NewKeyTrigger returns a trigger which fires when the given key is
// read from the raw terminal. At most one pending byte is consumed per
// poll so the capture loop is never stalled by input.
func NewKeyTrigger(t *RawTerminal, key byte) *KeyTrigger {
	return &KeyTrigger{fd: t.fd, key: key}
}

type KeyTrigger struct {
	fd  int
	key byte
}

func (t *KeyTrigger) Fired() bool {
	var buf [1]byte
	n, err := unix.Read(t.fd, buf[:])
	if err != nil || n == 0 {
		return false
	}
	return buf[0] == t.key
}
