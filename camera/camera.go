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

package camera

// ProfileKind identifies which of the session's two configurations is
// active. Exactly one is active at any time and switching requires the
// pipeline to be stopped and torn down first.
type ProfileKind int

const (
	Viewfinder ProfileKind = iota
	Still
)

func (k ProfileKind) String() string {
	switch k {
	case Viewfinder:
		return "viewfinder"
	case Still:
		return "still"
	}
	return "unknown"
}

// Profile describes one camera pipeline configuration. Profiles are
// fixed when the session is created and never mutated afterwards.
type Profile struct {
	Width   int
	Height  int
	Format  string
	Buffers int
}

// EventKind tags the values returned from Session.WaitEvent.
type EventKind int

const (
	// FrameReady indicates a completed frame is available in Event.Frame.
	FrameReady EventKind = iota

	// DeviceTimeout indicates the driver stalled. The pipeline needs a
	// stop/start cycle but the session is otherwise usable.
	DeviceTimeout

	// Quit indicates a shutdown was requested.
	Quit
)

// Event is a single message from the camera driver. Frame is only set
// for FrameReady and is only valid until the profile that produced it
// is torn down.
type Event struct {
	Kind  EventKind
	Frame *Frame
}

// Frame gives scoped access to a completed frame's backing memory. The
// bytes stay valid until Release is called. Release must be called on
// every path once the frame has been consumed; calling it more than
// once is safe.
type Frame struct {
	Pix     []byte
	index   uint32
	release func(uint32) error
	done    bool
}

func NewFrame(pix []byte, index uint32, release func(uint32) error) *Frame {
	return &Frame{
		Pix:     pix,
		index:   index,
		release: release,
	}
}

// Release returns the frame's buffer to the driver's free pool. Only
// the first call has any effect.
func (f *Frame) Release() error {
	if f == nil || f.done {
		return nil
	}
	f.done = true
	f.Pix = nil
	if f.release == nil {
		return nil
	}
	return f.release(f.index)
}

// Released reports whether the frame's buffer has been given back.
func (f *Frame) Released() bool {
	return f == nil || f.done
}

// Session is the contract the capture loop drives the camera through.
// Lifecycle calls must follow open, configure, start and a profile
// switch must go stop, teardown, configure, start. WaitEvent is the
// only blocking operation.
type Session interface {
	Open() error
	Configure(kind ProfileKind) error
	Start() error
	Stop() error
	Teardown() error
	WaitEvent() (Event, error)
	ActiveProfile() ProfileKind
	StreamInfo() Profile
	Model() string
	RequestQuit()
	Close() error
}
