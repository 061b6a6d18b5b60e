package slo

import (
	"encoding/json"
	"fmt"

	"gopkg.in/yaml.v3"
)

// RawPattern is an exclude pattern written either as a plain string or as
// {pattern, flags}.
type RawPattern struct {
	Pattern string `yaml:"pattern" json:"pattern"`
	Flags   string `yaml:"flags,omitempty" json:"flags,omitempty"`
}

// UnmarshalYAML accepts a scalar or a mapping.
func (p *RawPattern) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		p.Pattern = node.Value
		p.Flags = ""
		return nil
	case yaml.MappingNode:
		type plain RawPattern
		var v plain
		if err := node.Decode(&v); err != nil {
			return err
		}
		*p = RawPattern(v)
		return nil
	default:
		return fmt.Errorf("line %d: pattern must be a string or {pattern, flags}", node.Line)
	}
}

// UnmarshalJSON accepts a string or an object.
func (p *RawPattern) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		p.Pattern = s
		p.Flags = ""
		return nil
	}
	type plain RawPattern
	var v plain
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("pattern must be a string or {pattern, flags}: %w", err)
	}
	*p = RawPattern(v)
	return nil
}
