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

package loop

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TheCacophonyProject/still-capture/camera"
	"github.com/TheCacophonyProject/still-capture/throttle"
)

func TestFramesWithoutTriggerStayInViewfinder(t *testing.T) {
	session := newFakeSession(frames(10000)...)
	sink := new(fakeSink)
	preview := new(fakePreview)

	controller := NewController(session, never(), sink)
	controller.Preview = preview

	require.NoError(t, controller.Run())
	assert.Equal(t, 0, sink.writes)
	assert.Equal(t, 10000, preview.frames)
	assert.Equal(t, camera.Viewfinder, session.ActiveProfile())
	session.assertAllReleased(t)
}

func TestTriggerCausesOneCaptureThenViewfinder(t *testing.T) {
	session := newFakeSession(frames(6)...)
	sink := new(fakeSink)
	preview := new(fakePreview)

	controller := NewController(session, fireOnPoll(5), sink)
	controller.Preview = preview

	require.NoError(t, controller.Run())

	// Four preview frames, the triggering frame dropped, one still.
	assert.Equal(t, 1, sink.writes)
	assert.Equal(t, 4, preview.frames)
	assert.Equal(t, camera.Viewfinder, session.ActiveProfile())
	session.assertAllReleased(t)

	assert.Equal(t, []string{
		"stop", "teardown", "configure:still", "start", // trigger fired
		"stop", // still frame arrived
		"teardown", "configure:viewfinder", "start", // back to preview
		"stop", // quit
	}, session.transitions())
}

func TestStillWrittenOnlyInStillProfile(t *testing.T) {
	session := newFakeSession(frames(20)...)
	sink := &fakeSink{session: session}

	controller := NewController(session, fireOnPoll(3), sink)
	require.NoError(t, controller.Run())

	require.Equal(t, 1, sink.writes)
	assert.Equal(t, camera.Still, sink.lastProfile)
}

func TestDeviceTimeoutRestartsSameProfile(t *testing.T) {
	events := []camera.Event{{Kind: camera.DeviceTimeout}}
	session := newFakeSession(append(events, frames(2)...)...)
	sink := new(fakeSink)

	controller := NewController(session, never(), sink)
	require.NoError(t, controller.Run())

	assert.Equal(t, camera.Viewfinder, session.ActiveProfile())
	assert.Equal(t, []string{"stop", "start", "stop"}, session.transitions())
	assert.Equal(t, 0, sink.writes)
}

func TestDeviceTimeoutDuringStillProfile(t *testing.T) {
	session := newFakeSession(
		frameEvent(),
		camera.Event{Kind: camera.DeviceTimeout},
		frameEvent(),
	)
	sink := new(fakeSink)

	controller := NewController(session, fireOnPoll(1), sink)
	require.NoError(t, controller.Run())

	// The timeout hit while configured for still; the restart keeps
	// that profile, then the next frame is captured.
	assert.Equal(t, 1, sink.writes)
	assert.Equal(t, camera.Viewfinder, session.ActiveProfile())
	session.assertAllReleased(t)
}

func TestQuitReturnsNil(t *testing.T) {
	session := newFakeSession(camera.Event{Kind: camera.Quit})
	controller := NewController(session, never(), new(fakeSink))
	require.NoError(t, controller.Run())
	assert.False(t, session.streaming)
}

func TestQuitDuringStillProfile(t *testing.T) {
	session := newFakeSession(
		frameEvent(),
		camera.Event{Kind: camera.Quit},
	)
	sink := new(fakeSink)

	controller := NewController(session, fireOnPoll(1), sink)
	require.NoError(t, controller.Run())

	assert.Equal(t, 0, sink.writes)
	assert.False(t, session.streaming)
	session.assertAllReleased(t)
}

func TestUnknownEventIsFatal(t *testing.T) {
	session := newFakeSession(camera.Event{Kind: camera.EventKind(42)})
	controller := NewController(session, never(), new(fakeSink))

	err := controller.Run()
	require.Error(t, err)
	_, isUnknown := err.(*UnknownEventError)
	assert.True(t, isUnknown)
	assert.False(t, session.streaming)
}

func TestSinkErrorIsFatal(t *testing.T) {
	session := newFakeSession(frames(2)...)
	sink := &fakeSink{err: errors.New("disk full")}

	controller := NewController(session, fireOnPoll(1), sink)
	err := controller.Run()
	assert.EqualError(t, err, "disk full")
	assert.False(t, session.streaming)
}

func TestRepeatedCaptureCyclesAreStable(t *testing.T) {
	session := newFakeSession(frames(40)...)
	sink := new(fakeSink)

	controller := NewController(session, always(), sink)
	require.NoError(t, controller.Run())

	assert.Equal(t, 20, sink.writes)
	assert.Equal(t, camera.Viewfinder, session.ActiveProfile())
	session.assertAllReleased(t)
}

func TestThrottledTriggerStaysInViewfinder(t *testing.T) {
	session := newFakeSession(frames(10)...)
	sink := new(fakeSink)
	preview := new(fakePreview)

	clock := &fixedClock{}
	controller := NewController(session, always(), sink)
	controller.Preview = preview
	controller.Throttle = throttle.NewThrottleWithClock(time.Hour, 1, nil, clock)

	require.NoError(t, controller.Run())

	// Only the banked token allows a capture; every later request is
	// dropped and the frame goes to preview instead.
	assert.Equal(t, 1, sink.writes)
	assert.Equal(t, 8, preview.frames)
	assert.Equal(t, camera.Viewfinder, session.ActiveProfile())
	session.assertAllReleased(t)
}

func TestWatchdogCalledPerEvent(t *testing.T) {
	session := newFakeSession(frames(5)...)
	controller := NewController(session, never(), new(fakeSink))

	beats := 0
	controller.Watchdog = func() { beats++ }

	require.NoError(t, controller.Run())
	// Five frames plus the quit event.
	assert.Equal(t, 6, beats)
}

// fakeSession scripts a sequence of camera events and checks the
// lifecycle discipline the real driver requires.
type fakeSession struct {
	events     []camera.Event
	next       int
	active     camera.ProfileKind
	configured bool
	streaming  bool
	open       bool
	ops        []string
	unreleased int
}

func newFakeSession(events ...camera.Event) *fakeSession {
	s := &fakeSession{events: events, open: true}
	for i := range s.events {
		if s.events[i].Kind == camera.FrameReady {
			s.events[i].Frame = s.trackFrame()
		}
	}
	return s
}

// frameEvent is a placeholder; newFakeSession attaches a tracked frame.
func frameEvent() camera.Event {
	return camera.Event{Kind: camera.FrameReady}
}

func frames(n int) []camera.Event {
	events := make([]camera.Event, n)
	for i := range events {
		events[i] = frameEvent()
	}
	return events
}

func (s *fakeSession) trackFrame() *camera.Frame {
	return camera.NewFrame([]byte{0, 0, 0, 0}, 0, func(uint32) error {
		s.unreleased--
		return nil
	})
}

func (s *fakeSession) Open() error {
	s.open = true
	return nil
}

func (s *fakeSession) Configure(kind camera.ProfileKind) error {
	if s.streaming {
		return errors.New("configure while streaming")
	}
	s.active = kind
	s.configured = true
	s.ops = append(s.ops, "configure:"+kind.String())
	return nil
}

func (s *fakeSession) Start() error {
	if !s.configured {
		return errors.New("start before configure")
	}
	s.streaming = true
	s.ops = append(s.ops, "start")
	return nil
}

func (s *fakeSession) Stop() error {
	if s.streaming {
		s.ops = append(s.ops, "stop")
	}
	s.streaming = false
	return nil
}

func (s *fakeSession) Teardown() error {
	if s.streaming {
		return errors.New("teardown while streaming")
	}
	if s.unreleased > 0 {
		return errors.New("teardown with frame buffers still held")
	}
	s.configured = false
	s.ops = append(s.ops, "teardown")
	return nil
}

func (s *fakeSession) WaitEvent() (camera.Event, error) {
	if !s.streaming {
		return camera.Event{}, errors.New("wait while stopped")
	}
	if s.next >= len(s.events) {
		return camera.Event{Kind: camera.Quit}, nil
	}
	event := s.events[s.next]
	s.next++
	if event.Kind == camera.FrameReady {
		// The buffer is held from delivery until Release.
		s.unreleased++
	}
	return event, nil
}

func (s *fakeSession) ActiveProfile() camera.ProfileKind {
	return s.active
}

func (s *fakeSession) StreamInfo() camera.Profile {
	return camera.Profile{Width: 2, Height: 1, Format: "YUYV 4:2:2"}
}

func (s *fakeSession) Model() string { return "fake" }

func (s *fakeSession) RequestQuit() {}

func (s *fakeSession) Close() error {
	s.open = false
	return nil
}

// transitions returns the lifecycle calls made after the initial
// viewfinder configure/start.
func (s *fakeSession) transitions() []string {
	return s.ops[2:]
}

func (s *fakeSession) assertAllReleased(t *testing.T) {
	t.Helper()
	assert.Equal(t, 0, s.unreleased, "every frame buffer should be released")
}

type fakeSink struct {
	// session, when set, records the profile that was active for each
	// write.
	session     *fakeSession
	writes      int
	lastProfile camera.ProfileKind
	err         error
}

func (s *fakeSink) WriteStill(frame *camera.Frame, info camera.Profile, model string) error {
	if s.err != nil {
		return s.err
	}
	if frame.Released() {
		return errors.New("frame released before sink ran")
	}
	s.writes++
	if s.session != nil {
		s.lastProfile = s.session.ActiveProfile()
	}
	return nil
}

type fakePreview struct {
	frames int
}

func (p *fakePreview) ShowFrame(frame *camera.Frame, info camera.Profile) error {
	if frame.Released() {
		return errors.New("frame released before preview ran")
	}
	p.frames++
	return nil
}

type pollTrigger struct {
	polls  int
	fireOn func(int) bool
}

func (t *pollTrigger) Fired() bool {
	t.polls++
	return t.fireOn(t.polls)
}

func never() *pollTrigger {
	return &pollTrigger{fireOn: func(int) bool { return false }}
}

func always() *pollTrigger {
	return &pollTrigger{fireOn: func(int) bool { return true }}
}

func fireOnPoll(n int) *pollTrigger {
	return &pollTrigger{fireOn: func(p int) bool { return p == n }}
}

// fixedClock keeps the throttle's token bucket from refilling.
type fixedClock struct{}

func (fixedClock) Now() time.Time        { return time.Time{} }
func (fixedClock) Sleep(d time.Duration) {}
