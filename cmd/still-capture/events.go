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

package main

import (
	"encoding/json"
	"time"

	"github.com/godbus/dbus"

	"github.com/TheCacophonyProject/still-capture/loglimiter"
)

// captureEventRecorder uses the event api to record captures and
// throttled capture requests. Failures never interfere with image
// capture: without a system bus every queue attempt fails the same
// way, so the recorder warns once and stays quiet after that.
type captureEventRecorder struct {
	warn func(format string, v ...interface{})
}

func newCaptureEventRecorder() *captureEventRecorder {
	return &captureEventRecorder{warn: loglimiter.Once()}
}

func (er *captureEventRecorder) StillSaved(filename string) {
	er.queueEvent(map[string]interface{}{
		"description": map[string]interface{}{
			"type": "still-capture",
			"details": map[string]interface{}{
				"file": filename,
			},
		},
	})
}

func (er *captureEventRecorder) WhenThrottled() {
	er.queueEvent(map[string]interface{}{
		"description": map[string]interface{}{
			"type": "capture-throttle",
		},
	})
}

func (er *captureEventRecorder) queueEvent(eventDetails map[string]interface{}) {
	ts := time.Now()
	detailsJSON, err := json.Marshal(&eventDetails)
	if err != nil {
		er.warn("could not record capture event: %s", err)
		return
	}

	conn, err := dbus.SystemBus()
	if err != nil {
		er.warn("could not record capture event: %s", err)
		return
	}

	obj := conn.Object("org.cacophony.Events", "/org/cacophony/Events")
	call := obj.Call("org.cacophony.Events.Queue", 0, detailsJSON, ts.UnixNano())
	if call.Err != nil {
		er.warn("could not record capture event: %s", call.Err)
	}
}
