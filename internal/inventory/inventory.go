package inventory

import (
	"encoding/xml"
	"fmt"
	"io"
	"os"
)

// Document is the subset of a SeisComP XML document this service reads.
// Either section may be absent; inventory and bindings are often kept in separate files.
type Document struct {
	XMLName   xml.Name   `xml:"seiscomp"`
	Inventory *Inventory `xml:"Inventory"`
	Config    *Config    `xml:"Config"`
}

// Inventory is the network → station → sensor location → stream topology.
type Inventory struct {
	Networks []Network `xml:"network"`
}

type Network struct {
	Epoch
	Code     string    `xml:"code,attr"`
	Stations []Station `xml:"station"`
}

type Station struct {
	Epoch
	Code            string           `xml:"code,attr"`
	SensorLocations []SensorLocation `xml:"sensorLocation"`
}

type SensorLocation struct {
	Epoch
	Code    string   `xml:"code,attr"`
	Streams []Stream `xml:"stream"`
}

type Stream struct {
	Epoch
	Code string `xml:"code,attr"`
}

// LoadFile reads and decodes a SeisComP XML file.
func LoadFile(path string) (*Document, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	doc, err := Decode(file)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return doc, nil
}

// Decode parses a SeisComP XML document.
func Decode(r io.Reader) (*Document, error) {
	var doc Document
	if err := xml.NewDecoder(r).Decode(&doc); err != nil {
		return nil, err
	}
	return &doc, nil
}
