package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"

	"github.com/mklimuk/sensorhub"
	"github.com/mklimuk/sensorhub/cmd/sensorhub/console"
	"github.com/mklimuk/sensorhub/controller"
)

var calibrateCmd = cli.Command{
	Name:  "calibrate",
	Usage: "walk the bno055 fusion calibration until the mask is satisfied",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:    "adapter",
			Aliases: []string{"a"},
			Value:   "mcp2221",
		},
		&cli.StringFlag{
			Name:    "device",
			Aliases: []string{"d"},
			Value:   "1",
		},
		&cli.StringFlag{
			Name:  "profile",
			Usage: "YAML profile with controller options",
		},
	},
	Action: func(c *cli.Context) error {
		profile, err := loadProfile(c.String("profile"))
		if err != nil {
			return console.Exit(1, "profile error: %s", console.Red(err))
		}
		if c.IsSet("adapter") || profile.Adapter == "" {
			profile.Adapter = c.String("adapter")
		}
		if c.IsSet("device") || profile.Device == "" {
			profile.Device = c.String("device")
		}

		ok, err := console.Confirm("move the sensor through figure eights until every status field fills up. start?")
		if err != nil {
			return console.Exit(1, "prompt error: %s", console.Red(err))
		}
		if !ok {
			console.PInfof(console.PictoStop, "aborted")
			return nil
		}

		bus, err := openBus(profile)
		if err != nil {
			return console.Exit(1, "adapter initialization error: %s", console.Red(err))
		}

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		reg := sensorhub.NewRegistry(bus)
		ctrl, err := controller.BNO055(ctx, reg, profile.options())
		if err != nil {
			return console.Exit(1, "controller initialization error: %s", console.Red(err))
		}

		done := make(chan struct{})
		err = ctrl.On(sensorhub.EventCalibration, func(v interface{}) {
			status, ok := v.(byte)
			if !ok {
				return
			}
			console.PInfof(console.PictoPin, "sys %d gyro %d accel %d mag %d",
				status>>6&0x03, status>>4&0x03, status>>2&0x03, status&0x03)
		})
		if err != nil {
			return console.Exit(1, "subscription error: %s", console.Red(err))
		}
		err = ctrl.On(sensorhub.EventCalibrated, func(interface{}) {
			close(done)
		})
		if err != nil {
			return console.Exit(1, "subscription error: %s", console.Red(err))
		}

		select {
		case <-done:
			console.PInfof(console.PictoFinish, "%s", console.Green("calibrated"))
		case <-ctx.Done():
			console.PInfof(console.PictoStop, "interrupted")
		}
		return nil
	},
}
