package model

import (
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"
)

// Quality parameter names and fixed record attributes.
const (
	ParameterPing       = "ping"
	ParameterPortStatus = "portstatus"
	CreatorID           = "qcmsg"
	QualityType         = "report"
)

// StreamID identifies one data channel as network.station.location.channel.
type StreamID struct {
	Network  string `json:"network" yaml:"network" msgpack:"network"`
	Station  string `json:"station" yaml:"station" msgpack:"station"`
	Location string `json:"location" yaml:"location" msgpack:"location"`
	Channel  string `json:"channel" yaml:"channel" msgpack:"channel"`
}

func (id StreamID) String() string {
	return id.Network + "." + id.Station + "." + id.Location + "." + id.Channel
}

// ParseStreamID splits a dotted identifier. The location code may be empty.
func ParseStreamID(s string) (StreamID, error) {
	parts := strings.Split(s, ".")
	if len(parts) != 4 {
		return StreamID{}, fmt.Errorf("invalid stream id %q", s)
	}
	return StreamID{Network: parts[0], Station: parts[1], Location: parts[2], Channel: parts[3]}, nil
}

// Address is a literal IP and TCP port.
type Address struct {
	IP   string
	Port uint16
}

func (a Address) String() string {
	return net.JoinHostPort(a.IP, strconv.Itoa(int(a.Port)))
}

// StreamEntry is one row of the stream catalog.
type StreamEntry struct {
	ID         StreamID
	Configured bool
	Address    *Address
}

// ProbeResult is the outcome of one probe, shared by every stream on the same address within a cycle.
type ProbeResult struct {
	LatencyMs   int
	PortStatus  int
	WindowStart time.Time
	WindowEnd   time.Time
}

// Reachable reports whether the probe connected.
func (r ProbeResult) Reachable() bool {
	return r.LatencyMs >= 0
}

// Quality is a single waveform quality record handed to the transport.
type Quality struct {
	WaveformID       StreamID  `json:"waveform_id" msgpack:"waveform_id"`
	CreatorID        string    `json:"creator_id" msgpack:"creator_id"`
	Created          time.Time `json:"created" msgpack:"created"`
	Start            time.Time `json:"start" msgpack:"start"`
	End              time.Time `json:"end" msgpack:"end"`
	Type             string    `json:"type" msgpack:"type"`
	Parameter        string    `json:"parameter" msgpack:"parameter"`
	Value            float64   `json:"value" msgpack:"value"`
	LowerUncertainty *float64  `json:"lower_uncertainty,omitempty" msgpack:"lower_uncertainty,omitempty"`
	UpperUncertainty *float64  `json:"upper_uncertainty,omitempty" msgpack:"upper_uncertainty,omitempty"`
	WindowLength     float64   `json:"window_length" msgpack:"window_length"`
}
