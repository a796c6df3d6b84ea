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

// Package loglimiter keeps repetitive conditions, like a camera that
// times out on every wait, from flooding the logs.
package loglimiter

import (
	"fmt"
	"log"
	"time"
)

// New returns a LogLimiter which drops a message if the same message
// was logged within the given interval.
func New(interval time.Duration) *LogLimiter {
	return &LogLimiter{
		interval: interval,
		nowFunc:  time.Now,
	}
}

type LogLimiter struct {
	interval time.Duration
	nowFunc  func() time.Time
	lastMsg  string
	lastTime time.Time
}

func (limiter *LogLimiter) Printf(format string, v ...interface{}) {
	limiter.Print(fmt.Sprintf(format, v...))
}

func (limiter *LogLimiter) Print(msg string) {
	now := limiter.nowFunc()
	if msg == limiter.lastMsg && now.Sub(limiter.lastTime) < limiter.interval {
		return
	}
	log.Print(msg)
	limiter.lastMsg = msg
	limiter.lastTime = now
}

// Once logs through the returned function at most one time, however
// often it is called. Used for warnings about permanently degraded
// features, like a missing GPIO line.
func Once() func(format string, v ...interface{}) {
	done := false
	return func(format string, v ...interface{}) {
		if done {
			return
		}
		done = true
		log.Printf(format, v...)
	}
}
