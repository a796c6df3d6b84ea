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
	"errors"
	"io/ioutil"
	"path/filepath"
	"time"

	yaml "gopkg.in/yaml.v2"

	"github.com/TheCacophonyProject/still-capture/camera"
)

type Config struct {
	Device        string
	Model         string
	DeviceTimeout time.Duration
	Viewfinder    camera.Profile
	Still         camera.Profile
	TriggerKey    byte
	ButtonPin     string
	MinInterval   time.Duration
	Burst         int64
	WindowStart   time.Time
	WindowEnd     time.Time
}

func (conf *Config) Validate() error {
	if conf.Viewfinder.Width <= 0 || conf.Viewfinder.Height <= 0 {
		return errors.New("viewfinder size must be positive")
	}
	if conf.Still.Width <= 0 || conf.Still.Height <= 0 {
		return errors.New("still size must be positive")
	}
	if conf.WindowStart.IsZero() && !conf.WindowEnd.IsZero() {
		return errors.New("window-end is set but window-start isn't")
	}
	if !conf.WindowStart.IsZero() && conf.WindowEnd.IsZero() {
		return errors.New("window-start is set but window-end isn't")
	}
	if conf.MinInterval < 0 {
		return errors.New("min-interval-secs should not be negative")
	}
	return nil
}

type rawProfile struct {
	Width   int    `yaml:"width"`
	Height  int    `yaml:"height"`
	Format  string `yaml:"format"`
	Buffers int    `yaml:"buffers"`
}

type rawConfig struct {
	Device          string     `yaml:"device"`
	Model           string     `yaml:"model"`
	DeviceTimeout   int        `yaml:"device-timeout-secs"`
	Viewfinder      rawProfile `yaml:"viewfinder"`
	Still           rawProfile `yaml:"still"`
	TriggerKey      string     `yaml:"trigger-key"`
	ButtonPin       string     `yaml:"button-pin"`
	MinIntervalSecs int        `yaml:"min-interval-secs"`
	Burst           int64      `yaml:"burst"`
	WindowStart     string     `yaml:"window-start"`
	WindowEnd       string     `yaml:"window-end"`
}

var defaultConfig = rawConfig{
	Device:        "/dev/video0",
	DeviceTimeout: 5,
	Viewfinder: rawProfile{
		Width:   640,
		Height:  480,
		Format:  "YUYV 4:2:2",
		Buffers: 4,
	},
	Still: rawProfile{
		Width:   1920,
		Height:  1080,
		Format:  "YUYV 4:2:2",
		Buffers: 2,
	},
	TriggerKey:      "c",
	ButtonPin:       "GPIO17",
	MinIntervalSecs: 0,
	Burst:           1,
}

func ParseConfigFile(filename string) (*Config, error) {
	buf, err := ioutil.ReadFile(filename)
	if err != nil {
		return nil, err
	}
	return ParseConfig(buf)
}

func ParseConfig(buf []byte) (*Config, error) {
	raw := defaultConfig
	if err := yaml.Unmarshal(buf, &raw); err != nil {
		return nil, err
	}

	if len(raw.TriggerKey) != 1 {
		return nil, errors.New("trigger-key must be a single character")
	}

	model := raw.Model
	if model == "" {
		model = filepath.Base(raw.Device)
	}

	conf := &Config{
		Device:        raw.Device,
		Model:         model,
		DeviceTimeout: time.Duration(raw.DeviceTimeout) * time.Second,
		Viewfinder:    camera.Profile(raw.Viewfinder),
		Still:         camera.Profile(raw.Still),
		TriggerKey:    raw.TriggerKey[0],
		ButtonPin:     raw.ButtonPin,
		MinInterval:   time.Duration(raw.MinIntervalSecs) * time.Second,
		Burst:         raw.Burst,
	}

	const timeOnly = "15:04"
	if raw.WindowStart != "" {
		t, err := time.Parse(timeOnly, raw.WindowStart)
		if err != nil {
			return nil, errors.New("invalid window-start")
		}
		conf.WindowStart = t
	}
	if raw.WindowEnd != "" {
		t, err := time.Parse(timeOnly, raw.WindowEnd)
		if err != nil {
			return nil, errors.New("invalid window-end")
		}
		conf.WindowEnd = t
	}

	if err := conf.Validate(); err != nil {
		return nil, err
	}

	return conf, nil
}
