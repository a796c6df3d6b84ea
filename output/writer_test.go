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

package output

import (
	"image/jpeg"
	"io/ioutil"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TheCacophonyProject/still-capture/camera"
)

var yuyvProfile = camera.Profile{Width: 4, Height: 2, Format: "YUYV 4:2:2"}

func yuyvFrame() *camera.Frame {
	// 4x2 pixels, 2 bytes per pixel.
	pix := make([]byte, 16)
	for i := range pix {
		pix[i] = 128
	}
	return camera.NewFrame(pix, 0, nil)
}

func TestWriteStillEncodesJPEG(t *testing.T) {
	dir := tempDir(t)
	dest := filepath.Join(dir, "still.jpg")

	writer := NewStillWriter(dest)
	meta, err := writer.WriteStill(yuyvFrame(), yuyvProfile, "testcam")
	require.NoError(t, err)

	f, err := os.Open(dest)
	require.NoError(t, err)
	defer f.Close()
	img, err := jpeg.Decode(f)
	require.NoError(t, err)
	assert.Equal(t, 4, img.Bounds().Dx())
	assert.Equal(t, 2, img.Bounds().Dy())

	assert.Equal(t, dest, meta.File)
	assert.Equal(t, "testcam", meta.CameraModel)
	assert.Equal(t, 4, meta.Width)
	assert.Equal(t, 2, meta.Height)
	assert.True(t, meta.Size > 0)

	// No temp file left behind.
	matches, _ := filepath.Glob(filepath.Join(dir, "*"+tempExt))
	assert.Empty(t, matches)
}

func TestSecondStillGetsFreshName(t *testing.T) {
	dir := tempDir(t)
	dest := filepath.Join(dir, "still.jpg")

	writer := NewStillWriter(dest)
	writer.now = func() time.Time {
		return time.Date(2020, 6, 1, 12, 30, 45, 0, time.UTC)
	}

	first, err := writer.WriteStill(yuyvFrame(), yuyvProfile, "testcam")
	require.NoError(t, err)
	second, err := writer.WriteStill(yuyvFrame(), yuyvProfile, "testcam")
	require.NoError(t, err)

	assert.Equal(t, dest, first.File)
	assert.Equal(t, filepath.Join(dir, "still-20200601.123045.000.jpg"), second.File)

	// The first capture is untouched by the second.
	_, err = os.Stat(first.File)
	assert.NoError(t, err)
}

func TestMJPEGWrittenVerbatim(t *testing.T) {
	dir := tempDir(t)
	dest := filepath.Join(dir, "still.jpg")

	pix := []byte("already-compressed")
	frame := camera.NewFrame(pix, 0, nil)
	info := camera.Profile{Width: 4, Height: 2, Format: "Motion-JPEG"}

	writer := NewStillWriter(dest)
	_, err := writer.WriteStill(frame, info, "testcam")
	require.NoError(t, err)

	content, err := ioutil.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, pix, content)
}

func TestReleasedFrameRejected(t *testing.T) {
	dir := tempDir(t)
	frame := yuyvFrame()
	frame.Release()

	writer := NewStillWriter(filepath.Join(dir, "still.jpg"))
	_, err := writer.WriteStill(frame, yuyvProfile, "testcam")
	assert.Error(t, err)
}

func TestShortFrameRejected(t *testing.T) {
	dir := tempDir(t)
	frame := camera.NewFrame([]byte{1, 2, 3}, 0, nil)

	writer := NewStillWriter(filepath.Join(dir, "still.jpg"))
	_, err := writer.WriteStill(frame, yuyvProfile, "testcam")
	assert.Error(t, err)

	// The failed attempt leaves nothing behind.
	matches, _ := filepath.Glob(filepath.Join(dir, "*"))
	assert.Empty(t, matches)
}

func tempDir(t *testing.T) string {
	dir, err := ioutil.TempDir("", "output-test")
	require.NoError(t, err)
	t.Cleanup(func() { os.RemoveAll(dir) })
	return dir
}
