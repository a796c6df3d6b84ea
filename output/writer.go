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

// Package output persists captured stills and their metadata.
package output

import (
	"bufio"
	"fmt"
	"image"
	"image/jpeg"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/TheCacophonyProject/still-capture/camera"
)

const (
	tempExt        = ".temp"
	defaultQuality = 90
	nameTimeFormat = "20060102.150405.000"
)

// Metadata is the record written alongside each still.
type Metadata struct {
	Timestamp   time.Time `yaml:"timestamp"`
	File        string    `yaml:"file"`
	CameraModel string    `yaml:"camera-model"`
	Width       int       `yaml:"width"`
	Height      int       `yaml:"height"`
	Format      string    `yaml:"format"`
	Size        int64     `yaml:"size"`
}

// NewStillWriter writes JPEG stills based at the given destination
// path. The first still gets the destination name itself; later ones
// get a timestamp inserted so earlier captures are never clobbered.
func NewStillWriter(dest string) *StillWriter {
	return &StillWriter{
		dest:    dest,
		quality: defaultQuality,
		now:     time.Now,
	}
}

type StillWriter struct {
	dest    string
	quality int
	count   int
	now     func() time.Time
}

// WriteStill encodes the frame according to the stream profile and
// writes it to a temp file which is renamed into place, so a partial
// file is never visible at the final name. The frame's buffer must
// still be held by the caller; it is not released here.
func (w *StillWriter) WriteStill(frame *camera.Frame, info camera.Profile, model string) (*Metadata, error) {
	if frame == nil || frame.Released() {
		return nil, fmt.Errorf("still frame no longer valid")
	}

	name := w.nextName()
	tempName := name + tempExt
	if err := w.encodeToFile(tempName, frame.Pix, info); err != nil {
		os.Remove(tempName)
		return nil, err
	}
	if err := os.Rename(tempName, name); err != nil {
		os.Remove(tempName)
		return nil, err
	}

	fi, err := os.Stat(name)
	if err != nil {
		return nil, err
	}
	w.count++

	return &Metadata{
		Timestamp:   w.now(),
		File:        name,
		CameraModel: model,
		Width:       info.Width,
		Height:      info.Height,
		Format:      info.Format,
		Size:        fi.Size(),
	}, nil
}

func (w *StillWriter) encodeToFile(filename string, pix []byte, info camera.Profile) error {
	f, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer f.Close()
	bw := bufio.NewWriter(f)

	switch {
	case strings.Contains(info.Format, "JPEG"):
		// Already compressed by the camera.
		if _, err := bw.Write(pix); err != nil {
			return err
		}
	default:
		img, err := yuyvToImage(pix, info.Width, info.Height)
		if err != nil {
			return err
		}
		if err := jpeg.Encode(bw, img, &jpeg.Options{Quality: w.quality}); err != nil {
			return err
		}
	}

	return bw.Flush()
}

func (w *StillWriter) nextName() string {
	if w.count == 0 {
		return w.dest
	}
	ext := filepath.Ext(w.dest)
	base := strings.TrimSuffix(w.dest, ext)
	return base + "-" + w.now().Format(nameTimeFormat) + ext
}

// yuyvToImage wraps packed YUYV pixels in an image for the encoder.
func yuyvToImage(pix []byte, width, height int) (image.Image, error) {
	if len(pix) < width*height*2 {
		return nil, fmt.Errorf("frame too short: %d bytes for %dx%d YUYV", len(pix), width, height)
	}

	img := image.NewYCbCr(image.Rect(0, 0, width, height), image.YCbCrSubsampleRatio422)
	i := 0
	for y := 0; y < height; y++ {
		yOff := y * img.YStride
		cOff := y * img.CStride
		for x := 0; x < width; x += 2 {
			img.Y[yOff+x] = pix[i]
			img.Cb[cOff+x/2] = pix[i+1]
			img.Y[yOff+x+1] = pix[i+2]
			img.Cr[cOff+x/2] = pix[i+3]
			i += 4
		}
	}
	return img, nil
}
