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

// Package loop runs the capture session state machine. The camera sits
// in a low latency viewfinder profile until a trigger fires, switches
// to the still profile for exactly one frame, persists it, and returns
// to the viewfinder.
package loop

import (
	"fmt"
	"log"
	"time"

	"github.com/TheCacophonyProject/still-capture/camera"
	"github.com/TheCacophonyProject/still-capture/loglimiter"
	"github.com/TheCacophonyProject/still-capture/throttle"
)

const minLogInterval = time.Minute

// Triggers is polled once per viewfinder frame to decide whether to
// switch to still capture. Polls must not block.
type Triggers interface {
	Fired() bool
}

// StillSink persists one captured still while its buffer is held.
type StillSink interface {
	WriteStill(frame *camera.Frame, info camera.Profile, model string) error
}

// PreviewSink receives viewfinder frames which did not trigger a
// capture.
type PreviewSink interface {
	ShowFrame(frame *camera.Frame, info camera.Profile) error
}

// UnknownEventError reports a camera event the loop has no handling
// for. It is fatal: continuing would leave the pipeline in an
// undefined state.
type UnknownEventError struct {
	Kind camera.EventKind
}

func (e *UnknownEventError) Error() string {
	return fmt.Sprintf("unrecognised camera event (kind %d)", int(e.Kind))
}

// NewController wires the state machine to its collaborators. The
// optional fields may be set before Run is called.
func NewController(session camera.Session, triggers Triggers, stills StillSink) *Controller {
	return &Controller{
		session:  session,
		triggers: triggers,
		stills:   stills,
		log:      loglimiter.New(minLogInterval),
	}
}

// Controller owns the camera session for the duration of Run. It is
// driven from a single goroutine; the driver's completion handling is
// the only concurrency involved and it is hidden behind WaitEvent.
type Controller struct {
	session  camera.Session
	triggers Triggers
	stills   StillSink

	// Preview receives non-triggering viewfinder frames. May be nil.
	Preview PreviewSink

	// Throttle bounds how often triggers may start a capture. A nil
	// throttle allows everything.
	Throttle *throttle.Throttle

	// Watchdog is called once per received event. May be nil.
	Watchdog func()

	log *loglimiter.LogLimiter
}

// Run configures the viewfinder profile, starts the camera and
// processes events until a quit request or a fatal error. Exactly one
// event is handled per iteration; triggers are only evaluated when a
// viewfinder frame arrives, bounding trigger latency to one preview
// frame interval without a polling thread.
func (c *Controller) Run() error {
	if err := c.session.Configure(camera.Viewfinder); err != nil {
		return err
	}
	if err := c.session.Start(); err != nil {
		return err
	}

	for {
		event, err := c.session.WaitEvent()
		if err != nil {
			c.session.Stop()
			return err
		}
		if c.Watchdog != nil {
			c.Watchdog()
		}

		switch event.Kind {
		case camera.Quit:
			log.Print("quit requested, stopping camera")
			event.Frame.Release()
			return c.session.Stop()

		case camera.DeviceTimeout:
			// The driver stalled. Not fatal: cycle the pipeline with
			// the profile that is already active.
			c.log.Printf("device timeout detected, restarting %s stream", c.session.ActiveProfile())
			if err := c.session.Stop(); err != nil {
				return err
			}
			if err := c.session.Start(); err != nil {
				return err
			}

		case camera.FrameReady:
			if err := c.handleFrame(event.Frame); err != nil {
				c.session.Stop()
				return err
			}

		default:
			c.session.Stop()
			return &UnknownEventError{Kind: event.Kind}
		}
	}
}

func (c *Controller) handleFrame(frame *camera.Frame) error {
	defer frame.Release()

	switch c.session.ActiveProfile() {
	case camera.Still:
		return c.handleStillFrame(frame)
	default:
		return c.handleViewfinderFrame(frame)
	}
}

func (c *Controller) handleViewfinderFrame(frame *camera.Frame) error {
	if c.triggers.Fired() && c.Throttle.Allow() {
		frame.Release()
		log.Print("capture triggered, switching to still profile")
		return c.switchProfile(camera.Still)
	}
	if c.Preview != nil {
		return c.Preview.ShowFrame(frame, c.session.StreamInfo())
	}
	return nil
}

// handleStillFrame persists the frame and switches back to the
// viewfinder. The sink runs after stop but before teardown, while the
// buffer is still mapped; the buffer is released before the profile
// that produced it is torn down.
func (c *Controller) handleStillFrame(frame *camera.Frame) error {
	if err := c.session.Stop(); err != nil {
		return err
	}
	log.Print("still capture image received")

	if err := c.stills.WriteStill(frame, c.session.StreamInfo(), c.session.Model()); err != nil {
		return err
	}
	if err := frame.Release(); err != nil {
		return err
	}
	return c.switchProfile(camera.Viewfinder)
}

func (c *Controller) switchProfile(kind camera.ProfileKind) error {
	if err := c.session.Stop(); err != nil {
		return err
	}
	if err := c.session.Teardown(); err != nil {
		return err
	}
	if err := c.session.Configure(kind); err != nil {
		return err
	}
	return c.session.Start()
}
