// Package controller bundles the typed facets backed by one physical chip
// and resolves controllers by name.
package controller

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"gobot.io/x/gobot/v2"

	"github.com/mklimuk/sensorhub"
	"github.com/mklimuk/sensorhub/facet"
)

// ErrUnknownController is returned when a name resolves to no builder.
var ErrUnknownController = errors.New("unknown controller")

// DefaultController backs the facade when no controller is named.
const DefaultController = "mpu6050"

// Builder constructs one controller on top of a registry-shared driver.
type Builder func(ctx context.Context, reg *sensorhub.Registry, opts sensorhub.Options) (*Controller, error)

// Controller is a named bundle of facets backed by a single chip driver.
// Alias names resolve to the same facet instance.
type Controller struct {
	gobot.Eventer
	name   string
	driver sensorhub.Driver
	facets map[string]facet.Unit
	order  []string
}

func newController(name string, driver sensorhub.Driver) *Controller {
	e := gobot.NewEventer()
	e.AddEvent(sensorhub.EventCalibration)
	e.AddEvent(sensorhub.EventCalibrated)
	return &Controller{
		Eventer: e,
		name:    name,
		driver:  driver,
		facets:  make(map[string]facet.Unit),
	}
}

func (c *Controller) Name() string { return c.name }

// Driver exposes the backing chip driver. It is shared through the registry,
// so halting it affects every controller bound to the same chip.
func (c *Controller) Driver() sensorhub.Driver { return c.driver }

// Facet resolves a facet by name, aliases included. Nil when the controller
// does not expose the name.
func (c *Controller) Facet(name string) facet.Unit {
	return c.facets[strings.ToLower(name)]
}

// Facets lists the canonical facet names, aliases excluded.
func (c *Controller) Facets() []string {
	out := make([]string, len(c.order))
	copy(out, c.order)
	return out
}

// Start runs the sampling loop of every facet. Aliased facets are started
// once.
func (c *Controller) Start(ctx context.Context) {
	for _, name := range c.order {
		c.facets[name].Start(ctx)
	}
}

// Halt stops the facet sampling loops. The backing driver keeps running; it
// belongs to the registry, not to this controller.
func (c *Controller) Halt() {
	for _, name := range c.order {
		c.facets[name].Halt()
	}
}

func (c *Controller) add(u facet.Unit, aliases ...string) {
	c.facets[u.Name()] = u
	c.order = append(c.order, u.Name())
	for _, alias := range aliases {
		c.facets[alias] = u
	}
}

// relay re-publishes selected driver events under the controller's name.
func (c *Controller) relay(events ...string) {
	for _, name := range events {
		name := name
		if err := c.driver.On(name, func(data interface{}) {
			c.Publish(name, data)
		}); err != nil {
			slog.Debug("controller: could not relay driver event",
				"controller", c.name, "event", name, "error", err)
		}
	}
}

var builders = map[string]Builder{
	"htu21d":    HTU21D,
	"si7020":    SI7020,
	"sht31d":    SHT31D,
	"mpu6050":   MPU6050,
	"bno055":    BNO055,
	"bmp180":    BMP180,
	"ms5611":    MS5611,
	"bmp280":    BMP280,
	"mpl3115a2": MPL3115A2,
}

// Resolve maps a case-insensitive controller name to its builder. An empty
// name yields the default controller.
func Resolve(name string) (Builder, error) {
	if name == "" {
		name = DefaultController
	}
	b, ok := builders[strings.ToLower(name)]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownController, name)
	}
	return b, nil
}

// Names lists every registered controller, sorted.
func Names() []string {
	out := make([]string, 0, len(builders))
	for name := range builders {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

func facetConfig(opts sensorhub.Options) facet.Config {
	return facet.Config{Freq: opts.Freq}
}
