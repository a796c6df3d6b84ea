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
	"io/ioutil"
	"os"

	yaml "gopkg.in/yaml.v2"
)

// StdoutDestination selects standard output as the metadata target.
const StdoutDestination = "-"

// NewMetadataWriter serializes capture metadata to the given
// destination after each still. An empty destination disables
// metadata output.
func NewMetadataWriter(dest string) *MetadataWriter {
	return &MetadataWriter{dest: dest}
}

type MetadataWriter struct {
	dest string
}

func (w *MetadataWriter) Enabled() bool {
	return w != nil && w.dest != ""
}

// Write records the metadata for one still. The image file is already
// in place by the time this runs; a failure here must not undo that.
func (w *MetadataWriter) Write(meta *Metadata) error {
	if !w.Enabled() {
		return nil
	}
	buf, err := yaml.Marshal(meta)
	if err != nil {
		return err
	}
	if w.dest == StdoutDestination {
		_, err := os.Stdout.Write(buf)
		return err
	}
	return ioutil.WriteFile(w.dest, buf, 0644)
}
