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
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/TheCacophonyProject/window"
	arg "github.com/alexflint/go-arg"
	"github.com/coreos/go-systemd/daemon"
	"periph.io/x/periph/host"

	"github.com/TheCacophonyProject/still-capture/camera"
	"github.com/TheCacophonyProject/still-capture/loop"
	"github.com/TheCacophonyProject/still-capture/output"
	"github.com/TheCacophonyProject/still-capture/throttle"
	"github.com/TheCacophonyProject/still-capture/trigger"
)

const eventsPerSdNotify = 50

var version = "<not set>"

type Args struct {
	Output     string `arg:"positional,required" help:"path to write the captured still to"`
	Timeout    string `arg:"--timeout" help:"capture automatically after this long (e.g. 30s, 5m)"`
	Metadata   string `arg:"-m,--metadata" help:"write capture metadata to this file ('-' for stdout)"`
	ConfigFile string `arg:"-c,--config" help:"path to configuration file"`
	Timestamps bool   `arg:"-t,--timestamps" help:"include timestamps in log output"`
	Verbose    bool   `arg:"-v,--verbose" help:"make logging more verbose"`
}

func (Args) Version() string {
	return version
}

func procArgs() Args {
	var args Args
	args.ConfigFile = "/etc/still-capture.yaml"
	arg.MustParse(&args)
	return args
}

func main() {
	err := runMain()
	if err != nil {
		log.Fatal(err)
	}
}

func runMain() error {
	args := procArgs()
	if !args.Timestamps {
		log.SetFlags(0) // Removes default timestamp flag
	}

	log.Printf("running version: %s", version)
	conf, err := ParseConfigFile(args.ConfigFile)
	if err != nil {
		return err
	}

	var timeout time.Duration
	if args.Timeout != "" {
		timeout, err = time.ParseDuration(args.Timeout)
		if err != nil {
			return fmt.Errorf("invalid timeout: %v", err)
		}
	}
	if args.Verbose {
		logConfig(conf, args.Output, timeout)
	}

	triggers := trigger.NewSet(trigger.NewTimeTrigger(timeout, captureWindow(conf)))
	defer triggers.Close()

	// Terminal and GPIO are process wide resources: acquired once
	// here, released exactly once by the deferred calls, however many
	// captures happen in between.
	rawTerm, err := trigger.NewRawTerminal(int(os.Stdin.Fd()))
	if err != nil {
		log.Printf("warning: keyboard trigger disabled: %v", err)
	} else {
		defer rawTerm.Restore()
		triggers.Add(trigger.NewKeyTrigger(rawTerm, conf.TriggerKey))
	}

	if conf.ButtonPin != "" {
		if err := addButtonTrigger(triggers, conf.ButtonPin); err != nil {
			log.Printf("warning: button trigger disabled: %v", err)
		}
	}

	manual := new(trigger.ManualTrigger)
	triggers.Add(manual)
	if err := startService(manual); err != nil {
		log.Printf("warning: d-bus capture service unavailable: %v", err)
	}

	session := camera.NewV4L2Session(
		conf.Device, conf.Model,
		conf.Viewfinder, conf.Still,
		uint32(conf.DeviceTimeout/time.Second))
	log.Println("opening camera")
	if err := session.Open(); err != nil {
		return err
	}
	defer session.Close()

	sigs := make(chan os.Signal, 2)
	signal.Notify(sigs, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigs
		session.RequestQuit()
	}()

	events := newCaptureEventRecorder()
	controller := loop.NewController(session, triggers, &stillSink{
		stills:   output.NewStillWriter(args.Output),
		metadata: output.NewMetadataWriter(args.Metadata),
		events:   events,
	})
	controller.Preview = new(previewLogger)
	controller.Throttle = throttle.NewThrottle(conf.MinInterval, conf.Burst, events)
	controller.Watchdog = newWatchdog()

	log.Println("reading frames")
	return controller.Run()
}

func addButtonTrigger(triggers *trigger.Set, pinName string) error {
	if _, err := host.Init(); err != nil {
		return err
	}
	button, err := trigger.NewButtonTrigger(pinName)
	if err != nil {
		return err
	}
	triggers.Add(button)
	return nil
}

func captureWindow(conf *Config) *window.Window {
	if conf.WindowStart.IsZero() {
		return nil
	}
	return window.New(conf.WindowStart, conf.WindowEnd)
}

// newWatchdog pats the systemd watchdog as events keep arriving, so a
// wedged loop gets the process restarted.
func newWatchdog() func() {
	count := 0
	return func() {
		if count++; count >= eventsPerSdNotify {
			daemon.SdNotify(false, "WATCHDOG=1")
			count = 0
		}
	}
}

func logConfig(conf *Config, outputPath string, timeout time.Duration) {
	log.Printf("device: %s (%s)", conf.Device, conf.Model)
	log.Printf("viewfinder: %dx%d %s", conf.Viewfinder.Width, conf.Viewfinder.Height, conf.Viewfinder.Format)
	log.Printf("still: %dx%d %s", conf.Still.Width, conf.Still.Height, conf.Still.Format)
	log.Printf("output: %s", outputPath)
	if timeout > 0 {
		log.Printf("capture timeout: %s", timeout)
	}
	log.Printf("trigger key: %q", conf.TriggerKey)
	log.Printf("button pin: %s", conf.ButtonPin)
	if conf.MinInterval > 0 {
		log.Printf("capture throttle: every %s, burst %d", conf.MinInterval, conf.Burst)
	}
	if !conf.WindowStart.IsZero() {
		log.Printf("capture window: %02d:%02d to %02d:%02d",
			conf.WindowStart.Hour(), conf.WindowStart.Minute(),
			conf.WindowEnd.Hour(), conf.WindowEnd.Minute())
	}
}
