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

package throttle

import (
	"time"

	"github.com/juju/ratelimit"

	"github.com/TheCacophonyProject/still-capture/loglimiter"
)

const dropLogInterval = time.Minute

// NewThrottle limits how often stills may be captured. A bouncing
// shutter button or an elapsed time trigger will otherwise request a
// capture on every preview frame. One capture token refills every
// minInterval, with up to burst tokens banked; a zero minInterval
// disables throttling entirely.
func NewThrottle(minInterval time.Duration, burst int64, listener ThrottledEventListener) *Throttle {
	return NewThrottleWithClock(minInterval, burst, listener, new(realClock))
}

func NewThrottleWithClock(
	minInterval time.Duration,
	burst int64,
	listener ThrottledEventListener,
	clock ratelimit.Clock,
) *Throttle {
	if listener == nil {
		listener = new(nullListener)
	}
	throttle := &Throttle{
		listener: listener,
		log:      loglimiter.New(dropLogInterval),
	}
	if minInterval > 0 {
		if burst < 1 {
			burst = 1
		}
		refillRate := 1.0 / minInterval.Seconds()
		throttle.bucket = ratelimit.NewBucketWithRateAndClock(refillRate, burst, clock)
	}
	return throttle
}

type Throttle struct {
	bucket     *ratelimit.Bucket
	listener   ThrottledEventListener
	log        *loglimiter.LogLimiter
	suppressed bool
}

type ThrottledEventListener interface {
	WhenThrottled()
}

type nullListener struct{}

func (lis *nullListener) WhenThrottled() {}

// Allow reports whether a capture may proceed now, consuming a token
// when it does. A trigger which stays asserted requests a capture on
// every preview frame, so the drop path is itself rate limited: the
// log message goes through a limiter and the listener fires once per
// throttle episode, not once per dropped poll.
func (throttle *Throttle) Allow() bool {
	if throttle == nil || throttle.bucket == nil {
		return true
	}
	if throttle.bucket.TakeAvailable(1) > 0 {
		throttle.suppressed = false
		return true
	}
	throttle.log.Print("capture request dropped due to throttling")
	if !throttle.suppressed {
		throttle.suppressed = true
		throttle.listener.WhenThrottled()
	}
	return false
}

// realClock implements ratelimit.Clock in terms of standard time functions.
type realClock struct{}

// Now implements Clock.Now by calling time.Now.
func (realClock) Now() time.Time {
	return time.Now()
}

// Now implements Clock.Sleep by calling time.Sleep.
func (realClock) Sleep(d time.Duration) {
	time.Sleep(d)
}
