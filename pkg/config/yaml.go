package config

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// UnmarshalYAML accepts a scalar as shorthand for EqualTo.
func (c *Condition) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		*c = Condition{Value: node.Value}
		return nil
	}
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: condition must be a value or a mapping", node.Line)
	}
	var raw struct {
		Value    string `yaml:"value"`
		Operator string `yaml:"operator"`
	}
	if err := node.Decode(&raw); err != nil {
		return err
	}
	*c = Condition{Value: raw.Value, Operator: normalizeOperator(raw.Operator)}
	return nil
}

// UnmarshalYAML accepts a scalar as shorthand for an EqualTo comparison of
// the whole body.
func (b *BodyCondition) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		*b = BodyCondition{Condition: Condition{Value: node.Value}}
		return nil
	}
	var raw struct {
		Value    string           `yaml:"value"`
		Operator string           `yaml:"operator"`
		JSONPath string           `yaml:"jsonPath"`
		XPath    string           `yaml:"xPath"`
		AllOf    []*BodyCondition `yaml:"allOf"`
		AnyOf    []*BodyCondition `yaml:"anyOf"`
	}
	if err := node.Decode(&raw); err != nil {
		return err
	}
	*b = BodyCondition{
		Condition: Condition{Value: raw.Value, Operator: normalizeOperator(raw.Operator)},
		JSONPath:  raw.JSONPath,
		XPath:     raw.XPath,
		AllOf:     raw.AllOf,
		AnyOf:     raw.AnyOf,
	}
	return nil
}

func (e *EvalCondition) UnmarshalYAML(node *yaml.Node) error {
	var raw struct {
		Expression string `yaml:"expression"`
		Value      string `yaml:"value"`
		Operator   string `yaml:"operator"`
	}
	if err := node.Decode(&raw); err != nil {
		return err
	}
	*e = EvalCondition{
		Condition:  Condition{Value: raw.Value, Operator: normalizeOperator(raw.Operator)},
		Expression: raw.Expression,
	}
	return nil
}

// normalizeOperator fixes the case of known operators and leaves unknown
// ones for validation to report.
func normalizeOperator(s string) Operator {
	op, _ := ParseOperator(s)
	if s == "" {
		return ""
	}
	return op
}
