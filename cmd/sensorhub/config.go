package main

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/mklimuk/sensorhub"
)

// Profile is the optional YAML configuration a command can load instead of
// spelling everything out in flags.
type Profile struct {
	Controller      string        `yaml:"controller"`
	Freq            time.Duration `yaml:"freq"`
	Adapter         string        `yaml:"adapter"`
	Device          string        `yaml:"device"`
	Address         byte          `yaml:"address"`
	Delay           time.Duration `yaml:"delay"`
	Elevation       *float64      `yaml:"elevation"`
	Mode            int           `yaml:"mode"`
	CalibrationMask byte          `yaml:"calibrationMask"`
	AxisMap         byte          `yaml:"axisMap"`
	AxisSign        byte          `yaml:"axisSign"`
	ExternalCrystal bool          `yaml:"enableExternalCrystal"`
}

func loadProfile(path string) (Profile, error) {
	var p Profile
	if path == "" {
		return p, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return p, fmt.Errorf("could not read profile %s: %w", path, err)
	}
	if err := yaml.Unmarshal(raw, &p); err != nil {
		return p, fmt.Errorf("could not parse profile %s: %w", path, err)
	}
	return p, nil
}

func (p Profile) options() sensorhub.Options {
	return sensorhub.Options{
		Address:               p.Address,
		Delay:                 p.Delay,
		Elevation:             p.Elevation,
		Mode:                  p.Mode,
		CalibrationMask:       p.CalibrationMask,
		AxisMap:               p.AxisMap,
		AxisSign:              p.AxisSign,
		EnableExternalCrystal: p.ExternalCrystal,
	}
}
