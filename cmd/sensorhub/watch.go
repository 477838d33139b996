package main

import (
	"context"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/urfave/cli/v2"

	"github.com/mklimuk/sensorhub"
	"github.com/mklimuk/sensorhub/cmd/sensorhub/console"
	"github.com/mklimuk/sensorhub/facet"
	"github.com/mklimuk/sensorhub/hub"
	"github.com/mklimuk/sensorhub/transport"
)

var watchCmd = cli.Command{
	Name:  "watch",
	Usage: "stream facet changes from one controller",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:    "adapter",
			Aliases: []string{"a"},
			Value:   "mcp2221",
			Usage:   "bus adapter (mcp2221, periph)",
		},
		&cli.StringFlag{
			Name:    "device",
			Aliases: []string{"d"},
			Value:   "1",
			Usage:   "i2c device reference for the periph adapter",
		},
		&cli.StringFlag{
			Name:    "controller",
			Aliases: []string{"c"},
			Usage:   "controller name (default mpu6050)",
		},
		&cli.DurationFlag{
			Name:  "freq",
			Usage: "facade sampling period",
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
		if c.IsSet("controller") {
			profile.Controller = c.String("controller")
		}
		if c.IsSet("freq") {
			profile.Freq = c.Duration("freq")
		}
		if c.IsSet("adapter") || profile.Adapter == "" {
			profile.Adapter = c.String("adapter")
		}
		if c.IsSet("device") || profile.Device == "" {
			profile.Device = c.String("device")
		}

		bus, err := openBus(profile)
		if err != nil {
			return console.Exit(1, "adapter initialization error: %s", console.Red(err))
		}

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		h, err := hub.New(ctx, bus, hub.Config{
			Controller: profile.Controller,
			Freq:       profile.Freq,
			Options:    profile.options(),
		})
		if err != nil {
			return console.Exit(1, "hub initialization error: %s", console.Red(err))
		}

		err = h.On(sensorhub.EventChange, func(v interface{}) {
			change, ok := v.(hub.Change)
			if !ok {
				return
			}
			console.PInfof(facetPicto(change.Facet), "%s %s", change.Facet, console.White(formatSample(change.Value)))
		})
		if err != nil {
			return console.Exit(1, "subscription error: %s", console.Red(err))
		}

		console.Infof("watching %s, ctrl+c to stop", console.Bold(h.Controller().Name()))
		h.Start(ctx)
		<-ctx.Done()
		h.Halt()
		console.PInfof(console.PictoFinish, "done")
		return nil
	},
}

func openBus(p Profile) (sensorhub.Bus, error) {
	switch p.Adapter {
	case "periph", "i2c":
		return transport.NewPeriphBus(p.Device)
	default:
		return transport.NewMCP2221(), nil
	}
}

func facetPicto(name string) string {
	switch name {
	case "thermometer":
		return console.PictoThermometer
	case "hygrometer":
		return console.PictoHumidity
	case "barometer", "altimeter":
		return console.PictoMountain
	case "compass", "orientation":
		return console.PictoCompass
	default:
		return console.PictoSatellite
	}
}

func formatSample(s facet.Sample) string {
	var b strings.Builder
	for i, v := range s {
		if i > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(strconv.FormatFloat(v, 'f', 2, 64))
	}
	return b.String()
}
