package controller

import (
	"context"
	"fmt"

	"github.com/mklimuk/sensorhub"
	"github.com/mklimuk/sensorhub/baro"
	"github.com/mklimuk/sensorhub/environment"
	"github.com/mklimuk/sensorhub/facet"
	"github.com/mklimuk/sensorhub/motion"
)

// resolve obtains the shared driver and narrows it to the chip type the
// builder needs. A mismatch means two specs share an identity, which is a
// wiring bug.
func resolve[T sensorhub.Driver](ctx context.Context, reg *sensorhub.Registry, spec sensorhub.ChipSpec,
	opts sensorhub.Options, build func(sensorhub.Bus) sensorhub.Driver) (T, error) {
	var zero T
	drv, err := reg.Get(ctx, spec, opts, build)
	if err != nil {
		return zero, err
	}
	chip, ok := drv.(T)
	if !ok {
		return zero, fmt.Errorf("controller: %s resolved to a foreign driver %T", spec.Tag, drv)
	}
	return chip, nil
}

func HTU21D(ctx context.Context, reg *sensorhub.Registry, opts sensorhub.Options) (*Controller, error) {
	chip, err := resolve[*environment.HTU21D](ctx, reg, environment.HTU21DSpec, opts,
		func(b sensorhub.Bus) sensorhub.Driver { return environment.NewHTU21D(b) })
	if err != nil {
		return nil, err
	}
	c := newController("htu21d", chip)
	cfg := facetConfig(opts)
	c.add(facet.NewHygrometer(cfg, func() (facet.Sample, bool) {
		d := chip.Computed()
		return facet.Sample{d.Humidity}, d.HasHumidity
	}))
	c.add(facet.NewThermometer(cfg, func() (facet.Sample, bool) {
		d := chip.Computed()
		return facet.Sample{d.Temperature}, d.HasTemperature
	}), "temperature")
	return c, nil
}

func SI7020(ctx context.Context, reg *sensorhub.Registry, opts sensorhub.Options) (*Controller, error) {
	chip, err := resolve[*environment.SI7020](ctx, reg, environment.SI7020Spec, opts,
		func(b sensorhub.Bus) sensorhub.Driver { return environment.NewSI7020(b) })
	if err != nil {
		return nil, err
	}
	c := newController("si7020", chip)
	cfg := facetConfig(opts)
	c.add(facet.NewHygrometer(cfg, func() (facet.Sample, bool) {
		d := chip.Computed()
		return facet.Sample{d.Humidity}, d.HasHumidity
	}))
	c.add(facet.NewThermometer(cfg, func() (facet.Sample, bool) {
		d := chip.Computed()
		return facet.Sample{d.Temperature}, d.HasTemperature
	}), "temperature")
	return c, nil
}

func SHT31D(ctx context.Context, reg *sensorhub.Registry, opts sensorhub.Options) (*Controller, error) {
	chip, err := resolve[*environment.SHT31D](ctx, reg, environment.SHT31DSpec, opts,
		func(b sensorhub.Bus) sensorhub.Driver { return environment.NewSHT31D(b) })
	if err != nil {
		return nil, err
	}
	c := newController("sht31d", chip)
	cfg := facetConfig(opts)
	c.add(facet.NewHygrometer(cfg, func() (facet.Sample, bool) {
		d, ok := chip.Computed()
		return facet.Sample{d.Humidity}, ok
	}))
	c.add(facet.NewThermometer(cfg, func() (facet.Sample, bool) {
		d, ok := chip.Computed()
		return facet.Sample{d.Temperature}, ok
	}), "temperature")
	return c, nil
}

func MPU6050(ctx context.Context, reg *sensorhub.Registry, opts sensorhub.Options) (*Controller, error) {
	chip, err := resolve[*motion.MPU6050](ctx, reg, motion.MPU6050Spec, opts,
		func(b sensorhub.Bus) sensorhub.Driver { return motion.NewMPU6050(b) })
	if err != nil {
		return nil, err
	}
	c := newController("mpu6050", chip)
	cfg := facetConfig(opts)
	c.add(facet.NewAccelerometer(cfg, func() (facet.Sample, bool) {
		d, ok := chip.Computed()
		return facet.Sample{d.Accel.X, d.Accel.Y, d.Accel.Z}, ok
	}))
	c.add(facet.NewGyro(cfg, func() (facet.Sample, bool) {
		d, ok := chip.Computed()
		return facet.Sample{d.Gyro.X, d.Gyro.Y, d.Gyro.Z}, ok
	}))
	c.add(facet.NewThermometer(cfg, func() (facet.Sample, bool) {
		d, ok := chip.Computed()
		return facet.Sample{d.Temperature}, ok
	}), "temperature")
	return c, nil
}

func BNO055(ctx context.Context, reg *sensorhub.Registry, opts sensorhub.Options) (*Controller, error) {
	chip, err := resolve[*motion.BNO055](ctx, reg, motion.BNO055Spec, opts,
		func(b sensorhub.Bus) sensorhub.Driver { return motion.NewBNO055(b) })
	if err != nil {
		return nil, err
	}
	c := newController("bno055", chip)
	c.relay(sensorhub.EventCalibration, sensorhub.EventCalibrated)
	cfg := facetConfig(opts)
	c.add(facet.NewAccelerometer(cfg, func() (facet.Sample, bool) {
		d := chip.Computed()
		return facet.Sample{d.Accel.X, d.Accel.Y, d.Accel.Z}, d.HasMotion
	}))
	c.add(facet.NewGyro(cfg, func() (facet.Sample, bool) {
		d := chip.Computed()
		return facet.Sample{d.Gyro.X, d.Gyro.Y, d.Gyro.Z}, d.HasMotion
	}))
	c.add(facet.NewCompass(cfg, func() (facet.Sample, bool) {
		d := chip.Computed()
		return facet.Sample{d.Magnetometer.X, d.Magnetometer.Y, d.Magnetometer.Z}, d.HasMotion
	}))
	c.add(facet.NewOrientation(cfg, func() (facet.Sample, bool) {
		d := chip.Computed()
		s := facet.Sample{
			d.Euler.Heading, d.Euler.Roll, d.Euler.Pitch,
			d.Quaternion.W, d.Quaternion.X, d.Quaternion.Y, d.Quaternion.Z,
		}
		return s, d.HasOrientation
	}))
	c.add(facet.NewThermometer(cfg, func() (facet.Sample, bool) {
		d := chip.Computed()
		return facet.Sample{d.Temperature}, d.HasStatus
	}))
	return c, nil
}

func baroController(name string, chip interface {
	sensorhub.Driver
	Computed() (baro.Reading, bool)
}, opts sensorhub.Options) *Controller {
	c := newController(name, chip)
	c.relay(sensorhub.EventCalibrated)
	cfg := facetConfig(opts)
	c.add(facet.NewBarometer(cfg, func() (facet.Sample, bool) {
		d, ok := chip.Computed()
		return facet.Sample{d.Pressure}, ok
	}))
	c.add(facet.NewAltimeter(cfg, func() (facet.Sample, bool) {
		d, ok := chip.Computed()
		return facet.Sample{d.Altitude}, ok
	}))
	c.add(facet.NewThermometer(cfg, func() (facet.Sample, bool) {
		d, ok := chip.Computed()
		return facet.Sample{d.Temperature}, ok
	}), "temperature")
	return c
}

func BMP180(ctx context.Context, reg *sensorhub.Registry, opts sensorhub.Options) (*Controller, error) {
	chip, err := resolve[*baro.BMP180](ctx, reg, baro.BMP180Spec, opts,
		func(b sensorhub.Bus) sensorhub.Driver { return baro.NewBMP180(b) })
	if err != nil {
		return nil, err
	}
	return baroController("bmp180", chip, opts), nil
}

func MS5611(ctx context.Context, reg *sensorhub.Registry, opts sensorhub.Options) (*Controller, error) {
	chip, err := resolve[*baro.MS5611](ctx, reg, baro.MS5611Spec, opts,
		func(b sensorhub.Bus) sensorhub.Driver { return baro.NewMS5611(b) })
	if err != nil {
		return nil, err
	}
	return baroController("ms5611", chip, opts), nil
}

func BMP280(ctx context.Context, reg *sensorhub.Registry, opts sensorhub.Options) (*Controller, error) {
	chip, err := resolve[*baro.BMP280](ctx, reg, baro.BMP280Spec, opts,
		func(b sensorhub.Bus) sensorhub.Driver { return baro.NewBMP280(b) })
	if err != nil {
		return nil, err
	}
	return baroController("bmp280", chip, opts), nil
}

func MPL3115A2(ctx context.Context, reg *sensorhub.Registry, opts sensorhub.Options) (*Controller, error) {
	chip, err := resolve[*baro.MPL3115A2](ctx, reg, baro.MPL3115A2Spec, opts,
		func(b sensorhub.Bus) sensorhub.Driver { return baro.NewMPL3115A2(b) })
	if err != nil {
		return nil, err
	}
	return baroController("mpl3115a2", chip, opts), nil
}
