package fbt

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/exp/mmap"
	"golang.org/x/text/encoding/charmap"
)

// Root elements accepted as block definitions.
var blockRoots = map[string]bool{
	"FBType":      true,
	"AdapterType": true,
	"SubAppType":  true,
}

type xmlBlock struct {
	XMLName   xml.Name
	Name      string       `xml:"Name,attr"`
	Interface xmlInterface `xml:"InterfaceList"`
	Network   *xmlNetwork  `xml:"FBNetwork"`
	SubApp    *xmlNetwork  `xml:"SubAppNetwork"`
}

type xmlInterface struct {
	EventInputs  []xmlEvent `xml:"EventInputs>Event"`
	EventOutputs []xmlEvent `xml:"EventOutputs>Event"`
}

type xmlEvent struct {
	Name string `xml:"Name,attr"`
}

type xmlNetwork struct {
	FBs         []xmlFB         `xml:"FB"`
	Connections []xmlConnection `xml:"EventConnections>Connection"`
}

type xmlFB struct {
	Name string `xml:"Name,attr"`
	Type string `xml:"Type,attr"`
}

type xmlConnection struct {
	Source      string `xml:"Source,attr"`
	Destination string `xml:"Destination,attr"`
}

// ParseFile reads a block file through a read-only memory map and parses it.
func ParseFile(path string) (*BlockDefinition, error) {
	reader, err := mmap.Open(path)
	if err != nil {
		return nil, &ParseError{Path: path, Err: fmt.Errorf("open: %w", err)}
	}
	defer reader.Close()

	def, err := Parse(io.NewSectionReader(reader, 0, int64(reader.Len())))
	if err != nil {
		var pe *ParseError
		if errors.As(err, &pe) {
			pe.Path = path
			return nil, pe
		}
		return nil, &ParseError{Path: path, Err: err}
	}
	def.Path = path
	return def, nil
}

// Parse decodes and validates one block definition.
func Parse(r io.Reader) (*BlockDefinition, error) {
	dec := xml.NewDecoder(r)
	dec.CharsetReader = charsetReader

	var raw xmlBlock
	if err := dec.Decode(&raw); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, &ParseError{Err: fmt.Errorf("%w: empty document", ErrMalformedBlock)}
		}
		return nil, &ParseError{Err: fmt.Errorf("%w: %w", ErrMalformedBlock, err)}
	}

	def, err := raw.validate()
	if err != nil {
		return nil, &ParseError{Err: err}
	}
	return def, nil
}

func (raw *xmlBlock) validate() (*BlockDefinition, error) {
	if !blockRoots[raw.XMLName.Local] {
		return nil, fmt.Errorf("%w: unexpected root element <%s>", ErrMalformedBlock, raw.XMLName.Local)
	}

	def := &BlockDefinition{TypeName: strings.TrimSpace(raw.Name)}
	if def.TypeName == "" {
		return nil, fmt.Errorf("%w: missing type name", ErrMalformedBlock)
	}

	var err error
	if def.EventInputs, err = eventSet(raw.Interface.EventInputs, "event input"); err != nil {
		return nil, err
	}
	if def.EventOutputs, err = eventSet(raw.Interface.EventOutputs, "event output"); err != nil {
		return nil, err
	}

	network := raw.Network
	if network == nil {
		network = raw.SubApp
	}
	if network == nil {
		return def, nil
	}

	seen := make(map[string]bool, len(network.FBs))
	for i, fb := range network.FBs {
		name, typ := strings.TrimSpace(fb.Name), strings.TrimSpace(fb.Type)
		if name == "" {
			return nil, fmt.Errorf("%w: instance #%d has no Name", ErrMalformedBlock, i+1)
		}
		if typ == "" {
			return nil, fmt.Errorf("%w: instance %q has no Type", ErrMalformedBlock, name)
		}
		if seen[name] {
			return nil, fmt.Errorf("%w: duplicate instance name %q", ErrMalformedBlock, name)
		}
		seen[name] = true
		def.Instances = append(def.Instances, Instance{Name: name, Type: typ})
	}

	for i, c := range network.Connections {
		src, err := ParseRef(c.Source)
		if err != nil {
			return nil, fmt.Errorf("event connection #%d source: %w", i+1, err)
		}
		dst, err := ParseRef(c.Destination)
		if err != nil {
			return nil, fmt.Errorf("event connection #%d destination: %w", i+1, err)
		}
		def.Wiring = append(def.Wiring, Connection{Source: src, Destination: dst})
	}

	return def, nil
}

// eventSet keeps declaration order and drops repeated names.
func eventSet(events []xmlEvent, what string) ([]string, error) {
	if len(events) == 0 {
		return nil, nil
	}
	out := make([]string, 0, len(events))
	seen := make(map[string]bool, len(events))
	for i, ev := range events {
		name := strings.TrimSpace(ev.Name)
		if name == "" {
			return nil, fmt.Errorf("%w: %s #%d has no Name", ErrMalformedBlock, what, i+1)
		}
		if seen[name] {
			continue
		}
		seen[name] = true
		out = append(out, name)
	}
	return out, nil
}

// charsetReader covers the single-byte encodings seen in exported projects.
func charsetReader(label string, input io.Reader) (io.Reader, error) {
	switch strings.ToLower(label) {
	case "utf-8", "utf8", "us-ascii", "ascii":
		return input, nil
	case "iso-8859-1", "latin1", "latin-1":
		return charmap.ISO8859_1.NewDecoder().Reader(input), nil
	case "windows-1252", "cp1252":
		return charmap.Windows1252.NewDecoder().Reader(input), nil
	default:
		return nil, fmt.Errorf("unsupported charset %q", label)
	}
}
