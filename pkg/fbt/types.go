package fbt

import (
	"errors"
	"fmt"
	"strings"
)

// ErrMalformedBlock is wrapped by every structural parse failure.
var ErrMalformedBlock = errors.New("malformed block definition")

// BlockDefinition is the parsed form of one block file.
type BlockDefinition struct {
	TypeName     string
	EventInputs  []string
	EventOutputs []string
	Instances    []Instance
	Wiring       []Connection
	// Path is the file the definition was read from; empty for in-memory input.
	Path string
}

// Instance is a named sub-block inside a composite network.
type Instance struct {
	Name string
	Type string
}

// Connection is one event wire inside a block network.
type Connection struct {
	Source      Ref
	Destination Ref
}

// Ref addresses an event either on a sub-instance ("inst.EVENT") or on the
// enclosing block's own interface ("EVENT").
type Ref struct {
	Instance string
	Event    string
}

// ParseRef splits a connection endpoint. Instance names never contain dots,
// so everything after the first dot is the event name.
func ParseRef(s string) (Ref, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Ref{}, fmt.Errorf("%w: empty event reference", ErrMalformedBlock)
	}
	inst, event, found := strings.Cut(s, ".")
	if !found {
		return Ref{Event: s}, nil
	}
	if inst == "" || event == "" {
		return Ref{}, fmt.Errorf("%w: malformed event reference %q", ErrMalformedBlock, s)
	}
	return Ref{Instance: inst, Event: event}, nil
}

// IsInterface reports whether the ref names an event of the enclosing block.
func (r Ref) IsInterface() bool {
	return r.Instance == ""
}

func (r Ref) String() string {
	if r.IsInterface() {
		return r.Event
	}
	return r.Instance + "." + r.Event
}

// InstanceType returns the declared type of a named instance.
func (b *BlockDefinition) InstanceType(name string) (string, bool) {
	for _, inst := range b.Instances {
		if inst.Name == name {
			return inst.Type, true
		}
	}
	return "", false
}

// ParseError reports why a single block file was rejected.
type ParseError struct {
	Path string
	Err  error
}

func (e *ParseError) Error() string {
	if e.Path == "" {
		return e.Err.Error()
	}
	return fmt.Sprintf("%s: %v", e.Path, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}
