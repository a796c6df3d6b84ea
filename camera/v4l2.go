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

import (
	"errors"
	"fmt"
	"sync"

	"github.com/aamcrae/webcam"
)

// V4L2Session drives a single V4L2 camera device through the Session
// contract. It is not safe for concurrent use; the capture loop is its
// only caller by construction.
type V4L2Session struct {
	device     string
	model      string
	profiles   map[ProfileKind]Profile
	waitSecs   uint32
	cam        *webcam.Webcam
	active     ProfileKind
	negotiated Profile
	configured bool
	streaming  bool
	quit       chan struct{}
	quitOnce   sync.Once
}

// NewV4L2Session prepares a session for the given device with its two
// fixed profiles. waitSecs is the driver stall timeout for WaitEvent.
func NewV4L2Session(device, model string, viewfinder, still Profile, waitSecs uint32) *V4L2Session {
	return &V4L2Session{
		device: device,
		model:  model,
		profiles: map[ProfileKind]Profile{
			Viewfinder: viewfinder,
			Still:      still,
		},
		waitSecs: waitSecs,
		quit:     make(chan struct{}),
	}
}

func (s *V4L2Session) Open() error {
	if s.cam != nil {
		return errors.New("camera already open")
	}
	cam, err := webcam.Open(s.device)
	if err != nil {
		return fmt.Errorf("opening %s: %v", s.device, err)
	}
	s.cam = cam
	return nil
}

func (s *V4L2Session) Configure(kind ProfileKind) error {
	if s.cam == nil {
		return errors.New("camera not open")
	}
	if s.streaming {
		return errors.New("cannot configure while streaming")
	}
	profile, ok := s.profiles[kind]
	if !ok {
		return fmt.Errorf("no profile for %s", kind)
	}

	pixelFormat, err := s.findFormat(profile.Format)
	if err != nil {
		return err
	}
	_, w, h, _, _, err := s.cam.SetImageFormat(pixelFormat, uint32(profile.Width), uint32(profile.Height))
	if err != nil {
		return fmt.Errorf("setting %s format: %v", kind, err)
	}
	if err := s.cam.SetBufferCount(uint32(profile.Buffers)); err != nil {
		return fmt.Errorf("setting buffer count: %v", err)
	}
	s.cam.SetAutoWhiteBalance(true)

	// The driver may adjust the requested size.
	profile.Width = int(w)
	profile.Height = int(h)
	s.negotiated = profile
	s.active = kind
	s.configured = true
	return nil
}

func (s *V4L2Session) findFormat(desc string) (webcam.PixelFormat, error) {
	for format, d := range s.cam.GetSupportedFormats() {
		if d == desc {
			return format, nil
		}
	}
	return 0, fmt.Errorf("camera does not support format %q", desc)
}

func (s *V4L2Session) Start() error {
	if !s.configured {
		return errors.New("camera not configured")
	}
	if s.streaming {
		return nil
	}
	if err := s.cam.StartStreaming(); err != nil {
		return fmt.Errorf("starting %s stream: %v", s.active, err)
	}
	s.streaming = true
	return nil
}

func (s *V4L2Session) Stop() error {
	if !s.streaming {
		return nil
	}
	s.streaming = false
	return s.cam.StopStreaming()
}

// Teardown invalidates the current configuration. Any frame buffers
// handed out for this profile must have been released already.
func (s *V4L2Session) Teardown() error {
	if s.streaming {
		return errors.New("cannot teardown while streaming")
	}
	s.configured = false
	return nil
}

// WaitEvent blocks until the next driver event. A requested quit is
// reported ahead of anything else so shutdown can never be starved by
// a busy camera.
func (s *V4L2Session) WaitEvent() (Event, error) {
	select {
	case <-s.quit:
		return Event{Kind: Quit}, nil
	default:
	}

	err := s.cam.WaitForFrame(s.waitSecs)
	switch {
	case err == nil:
	case errors.Is(err, webcam.TimeoutError):
		return Event{Kind: DeviceTimeout}, nil
	default:
		select {
		case <-s.quit:
			return Event{Kind: Quit}, nil
		default:
		}
		return Event{}, fmt.Errorf("waiting for frame: %v", err)
	}

	pix, index, err := s.cam.GetFrame()
	if err != nil {
		return Event{}, fmt.Errorf("reading frame: %v", err)
	}
	return Event{
		Kind:  FrameReady,
		Frame: NewFrame(pix, index, s.cam.ReleaseFrame),
	}, nil
}

func (s *V4L2Session) ActiveProfile() ProfileKind {
	return s.active
}

// StreamInfo returns the negotiated settings of the active profile.
func (s *V4L2Session) StreamInfo() Profile {
	return s.negotiated
}

// Model returns a human readable name for the camera.
func (s *V4L2Session) Model() string {
	return s.model
}

// RequestQuit arms quit delivery. The next WaitEvent call (or the one
// currently blocked, once the driver wait returns) yields a Quit event.
func (s *V4L2Session) RequestQuit() {
	s.quitOnce.Do(func() { close(s.quit) })
}

func (s *V4L2Session) Close() error {
	if s.cam == nil {
		return nil
	}
	if s.streaming {
		s.streaming = false
		s.cam.StopStreaming()
	}
	err := s.cam.Close()
	s.cam = nil
	return err
}
