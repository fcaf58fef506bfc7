package inventory

import (
	"errors"
	"fmt"
)

// Binding parameter names read from a station's parameter set.
const (
	ParamDetecStream = "detecStream"
	ParamDetecLocid  = "detecLocid"

	// GlobalSetup is the fallback setup name used when no application specific setup exists.
	GlobalSetup = "default"
)

// ErrBindingUnresolved marks a station binding that had to be skipped.
var ErrBindingUnresolved = errors.New("binding unresolved")

// BindingError describes why one station binding could not be resolved.
type BindingError struct {
	Network string
	Station string
	Reason  string
}

func (e *BindingError) Error() string {
	return fmt.Sprintf("%s for %s.%s", e.Reason, e.Network, e.Station)
}

func (e *BindingError) Unwrap() error {
	return ErrBindingUnresolved
}

// Config is the configuration section: parameter sets and per-module station bindings.
type Config struct {
	ParameterSets []ParameterSet `xml:"parameterSet"`
	Modules       []ConfigModule `xml:"module"`
}

type ParameterSet struct {
	PublicID   string      `xml:"publicID,attr"`
	ModuleID   string      `xml:"moduleID"`
	Parameters []Parameter `xml:"parameter"`
}

type Parameter struct {
	Name  string `xml:"name"`
	Value string `xml:"value"`
}

type ConfigModule struct {
	PublicID string          `xml:"publicID,attr"`
	Name     string          `xml:"name,attr"`
	Enabled  *bool           `xml:"enabled,attr"`
	Stations []ConfigStation `xml:"station"`
}

type ConfigStation struct {
	NetworkCode string  `xml:"networkCode,attr"`
	StationCode string  `xml:"stationCode,attr"`
	Enabled     *bool   `xml:"enabled,attr"`
	Setups      []Setup `xml:"setup"`
}

type Setup struct {
	Name           string `xml:"name,attr"`
	Enabled        *bool  `xml:"enabled,attr"`
	ParameterSetID string `xml:"parameterSetID"`
}

// Binding is a resolved detection stream for one station.
// StreamCode is the raw configured value and may be a 2-character band+instrument code.
type Binding struct {
	Network      string
	Station      string
	LocationCode string
	StreamCode   string
}

// Module returns the config module with the given name, or nil.
func (c *Config) Module(name string) *ConfigModule {
	if c == nil {
		return nil
	}
	for i := range c.Modules {
		if c.Modules[i].Name == name {
			return &c.Modules[i]
		}
	}
	return nil
}

// FindSetup returns the enabled setup named application, falling back to the
// enabled global setup.
func (s ConfigStation) FindSetup(application string) (Setup, bool) {
	var global *Setup
	for i := range s.Setups {
		setup := &s.Setups[i]
		if !enabled(setup.Enabled) {
			continue
		}
		if setup.Name == application {
			return *setup, true
		}
		if setup.Name == GlobalSetup && global == nil {
			global = setup
		}
	}
	if global != nil {
		return *global, true
	}
	return Setup{}, false
}

// Bindings resolves the detection stream of every enabled station of the
// named module. Stations that cannot be resolved are reported as
// *BindingError and skipped.
func (c *Config) Bindings(module, application string) ([]Binding, []error) {
	mod := c.Module(module)
	if mod == nil || !enabled(mod.Enabled) {
		return nil, nil
	}

	sets := make(map[string]*ParameterSet, len(c.ParameterSets))
	for i := range c.ParameterSets {
		sets[c.ParameterSets[i].PublicID] = &c.ParameterSets[i]
	}

	var (
		bindings []Binding
		warnings []error
	)
	for _, sta := range mod.Stations {
		if !enabled(sta.Enabled) {
			continue
		}
		fail := func(reason string) {
			warnings = append(warnings, &BindingError{Network: sta.NetworkCode, Station: sta.StationCode, Reason: reason})
		}

		setup, ok := sta.FindSetup(application)
		if !ok {
			fail("could not find station setup")
			continue
		}
		params, ok := sets[setup.ParameterSetID]
		if !ok {
			fail("could not find station parameters")
			continue
		}

		binding := Binding{Network: sta.NetworkCode, Station: sta.StationCode}
		found := false
		for _, p := range params.Parameters {
			switch p.Name {
			case ParamDetecStream:
				binding.StreamCode = p.Value
				found = true
			case ParamDetecLocid:
				binding.LocationCode = p.Value
			}
		}
		if !found {
			fail("could not find " + ParamDetecStream)
			continue
		}
		bindings = append(bindings, binding)
	}
	return bindings, warnings
}

func enabled(v *bool) bool {
	return v == nil || *v
}
