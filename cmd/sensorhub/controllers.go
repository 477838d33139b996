package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/urfave/cli/v2"

	"github.com/mklimuk/sensorhub/controller"
)

// facet sets are static per controller, no hardware needed to list them
var controllerFacets = map[string][]string{
	"htu21d":    {"hygrometer", "thermometer"},
	"si7020":    {"hygrometer", "thermometer"},
	"sht31d":    {"hygrometer", "thermometer"},
	"mpu6050":   {"accelerometer", "gyro", "thermometer"},
	"bno055":    {"accelerometer", "gyro", "compass", "orientation", "thermometer"},
	"bmp180":    {"barometer", "altimeter", "thermometer"},
	"ms5611":    {"barometer", "altimeter", "thermometer"},
	"bmp280":    {"barometer", "altimeter", "thermometer"},
	"mpl3115a2": {"barometer", "altimeter", "thermometer"},
}

var controllersCmd = cli.Command{
	Name:    "controllers",
	Aliases: []string{"ls"},
	Usage:   "list the available controllers and their facets",
	Action: func(c *cli.Context) error {
		w := tabwriter.NewWriter(os.Stdout, 12, 0, 2, ' ', 0)
		_, _ = fmt.Fprintf(w, "CONTROLLER\tFACETS\n")
		for _, name := range controller.Names() {
			facets := ""
			for i, f := range controllerFacets[name] {
				if i > 0 {
					facets += ", "
				}
				facets += f
			}
			_, _ = fmt.Fprintf(w, "%s\t%s\n", name, facets)
		}
		_ = w.Flush()
		return nil
	},
}
