// Package compiler turns protocol documents into domain.Protocol values and
// checks their structure.
package compiler

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/aretw0/aliquot/pkg/domain"
	"gopkg.in/yaml.v3"
)

// Parser is responsible for converting raw bytes into a Protocol.
type Parser struct {
	strict bool
}

// ParserOption configures a Parser.
type ParserOption func(*Parser)

// AllowUnknownFields accepts document keys that map to no protocol field.
func AllowUnknownFields() ParserOption {
	return func(p *Parser) {
		p.strict = false
	}
}

// NewParser creates a new parser instance. Unknown keys are rejected by default.
func NewParser(opts ...ParserOption) *Parser {
	p := &Parser{strict: true}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Parse decodes a YAML or JSON document and checks its structure.
// JSON is valid YAML, so one decoder handles both.
func (p *Parser) Parse(data []byte) (*domain.Protocol, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(p.strict)

	var proto domain.Protocol
	if err := dec.Decode(&proto); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, &AggregateError{Errors: []error{&ValidationError{Path: "$", Reason: "empty document"}}}
		}
		return nil, fmt.Errorf("%w: failed to parse protocol: %v", domain.ErrInvalidArgument, err)
	}
	if err := Check(&proto); err != nil {
		return nil, err
	}
	return &proto, nil
}

// ParseFile reads and parses the protocol at path.
func (p *Parser) ParseFile(path string) (*domain.Protocol, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read protocol: %w", err)
	}
	proto, err := p.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return proto, nil
}

// Check validates the structure of a protocol: required fields, unique IDs
// and well-formed enums. It does not resolve references between sections.
func Check(proto *domain.Protocol) error {
	var c Collector

	labware := make(map[string]bool, len(proto.Labware))
	for i, lw := range proto.Labware {
		path := fmt.Sprintf("labware[%d]", i)
		switch {
		case lw.ID == "":
			c.Addf(path+".id", "is required")
		case labware[lw.ID]:
			c.Addf(path+".id", "duplicate id %q", lw.ID)
		}
		labware[lw.ID] = true
		if lw.LoadName == "" {
			c.Addf(path+".load_name", "is required")
		}
		if lw.Slot == "" {
			c.Addf(path+".slot", "is required")
		}
	}

	mounts := make(map[domain.Mount]bool, len(proto.Instruments))
	for i, inst := range proto.Instruments {
		path := fmt.Sprintf("instruments[%d]", i)
		m, err := domain.ParseMount(inst.Mount)
		switch {
		case err != nil:
			c.Addf(path+".mount", "unknown mount %q", inst.Mount)
		case mounts[m]:
			c.Addf(path+".mount", "%s mount is configured twice", m)
		}
		mounts[m] = true
		if inst.DefaultSpeed < 0 {
			c.Addf(path+".default_speed", "must be > 0")
		}
		if inst.FlowRates != nil {
			if err := inst.FlowRates.Validate(); err != nil {
				c.Addf(path+".flow_rates", "%v", err)
			}
		}
	}

	modules := make(map[string]bool, len(proto.Modules))
	for i, mod := range proto.Modules {
		path := fmt.Sprintf("modules[%d]", i)
		switch {
		case mod.ID == "":
			c.Addf(path+".id", "is required")
		case modules[mod.ID]:
			c.Addf(path+".id", "duplicate id %q", mod.ID)
		}
		modules[mod.ID] = true
		if _, err := domain.ParseModuleKind(mod.Kind); err != nil {
			c.Addf(path+".kind", "unknown kind %q", mod.Kind)
		}
		if mod.Slot == "" {
			c.Addf(path+".slot", "is required")
		}
	}

	for i, cmd := range proto.Commands {
		if cmd.Command == "" {
			c.Addf(fmt.Sprintf("commands[%d].command", i), "is required")
		}
	}
	return c.Err()
}
