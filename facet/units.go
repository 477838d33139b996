package facet

import "math"

// Thermometer exposes one temperature in the three usual scales.
// Sample layout: [celsius].
type Thermometer struct{ *Facet }

func NewThermometer(cfg Config, source Source) *Thermometer {
	return &Thermometer{New("thermometer", cfg, source)}
}

func (t *Thermometer) Celsius() float64    { return component(t.Value(), 0) }
func (t *Thermometer) Fahrenheit() float64 { return t.Celsius()*9/5 + 32 }
func (t *Thermometer) Kelvin() float64     { return t.Celsius() + 273.15 }

// Barometer exposes compensated pressure. Sample layout: [pascals].
type Barometer struct{ *Facet }

func NewBarometer(cfg Config, source Source) *Barometer {
	return &Barometer{New("barometer", cfg, source)}
}

func (b *Barometer) Pascals() float64      { return component(b.Value(), 0) }
func (b *Barometer) Hectopascals() float64 { return b.Pascals() / 100 }

// Altimeter exposes barometric altitude. Sample layout: [meters].
type Altimeter struct{ *Facet }

func NewAltimeter(cfg Config, source Source) *Altimeter {
	return &Altimeter{New("altimeter", cfg, source)}
}

func (a *Altimeter) Meters() float64 { return component(a.Value(), 0) }
func (a *Altimeter) Feet() float64   { return a.Meters() * 3.28084 }

// Hygrometer exposes relative humidity. Sample layout: [percent].
type Hygrometer struct{ *Facet }

func NewHygrometer(cfg Config, source Source) *Hygrometer {
	return &Hygrometer{New("hygrometer", cfg, source)}
}

func (h *Hygrometer) RelativeHumidity() float64 { return component(h.Value(), 0) }

// Accelerometer exposes linear acceleration. Sample layout: [x y z].
type Accelerometer struct{ *Facet }

func NewAccelerometer(cfg Config, source Source) *Accelerometer {
	return &Accelerometer{New("accelerometer", cfg, source)}
}

func (a *Accelerometer) X() float64 { return component(a.Value(), 0) }
func (a *Accelerometer) Y() float64 { return component(a.Value(), 1) }
func (a *Accelerometer) Z() float64 { return component(a.Value(), 2) }

// Gyro exposes angular velocity. Sample layout: [x y z].
type Gyro struct{ *Facet }

func NewGyro(cfg Config, source Source) *Gyro {
	return &Gyro{New("gyro", cfg, source)}
}

func (g *Gyro) X() float64 { return component(g.Value(), 0) }
func (g *Gyro) Y() float64 { return component(g.Value(), 1) }
func (g *Gyro) Z() float64 { return component(g.Value(), 2) }

// Compass exposes the magnetic field vector. Sample layout: [x y z].
type Compass struct{ *Facet }

func NewCompass(cfg Config, source Source) *Compass {
	return &Compass{New("compass", cfg, source)}
}

func (c *Compass) X() float64 { return component(c.Value(), 0) }
func (c *Compass) Y() float64 { return component(c.Value(), 1) }
func (c *Compass) Z() float64 { return component(c.Value(), 2) }

// Heading is the horizontal-plane bearing in degrees, 0 at magnetic north.
func (c *Compass) Heading() float64 {
	heading := math.Atan2(c.Y(), c.X()) * 180 / math.Pi
	if heading < 0 {
		heading += 360
	}
	return heading
}

// Orientation exposes the fusion chip's absolute orientation.
// Sample layout: [heading roll pitch qw qx qy qz].
type Orientation struct{ *Facet }

func NewOrientation(cfg Config, source Source) *Orientation {
	return &Orientation{New("orientation", cfg, source)}
}

// Euler returns heading, roll and pitch in degrees.
func (o *Orientation) Euler() (heading, roll, pitch float64) {
	v := o.Value()
	return component(v, 0), component(v, 1), component(v, 2)
}

// Quaternion returns the unit quaternion components w, x, y, z.
func (o *Orientation) Quaternion() (w, x, y, z float64) {
	v := o.Value()
	return component(v, 3), component(v, 4), component(v, 5), component(v, 6)
}
