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
	"log"

	"github.com/TheCacophonyProject/still-capture/camera"
	"github.com/TheCacophonyProject/still-capture/output"
)

const framesHz = 30 // approx

const (
	frameLogIntervalFirstMin = 15 * framesHz
	frameLogInterval         = 60 * 5 * framesHz
)

// stillSink writes the image, then the metadata. A metadata failure is
// logged but never fatal: the image is already safely renamed into
// place by then and must not be discarded.
type stillSink struct {
	stills   *output.StillWriter
	metadata *output.MetadataWriter
	events   *captureEventRecorder
}

func (s *stillSink) WriteStill(frame *camera.Frame, info camera.Profile, model string) error {
	meta, err := s.stills.WriteStill(frame, info, model)
	if err != nil {
		return err
	}
	log.Printf("still saved: %s", meta.File)

	if err := s.metadata.Write(meta); err != nil {
		log.Printf("error writing metadata: %v", err)
	}
	s.events.StillSaved(meta.File)
	return nil
}

// previewLogger stands in for a preview surface; it just accounts for
// viewfinder frames so stalls show up in the logs.
type previewLogger struct {
	totalFrames int
}

func (p *previewLogger) ShowFrame(frame *camera.Frame, info camera.Profile) error {
	p.totalFrames++
	if p.totalFrames%frameLogIntervalFirstMin == 0 &&
		p.totalFrames <= 60*framesHz || p.totalFrames%frameLogInterval == 0 {
		log.Printf("%d viewfinder frames seen", p.totalFrames)
	}
	return nil
}
