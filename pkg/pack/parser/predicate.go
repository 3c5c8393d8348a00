package parser

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"skuldbot/compliance/pkg/lattice"
	"skuldbot/compliance/pkg/pack"
)

// nodeError is a predicate error positioned at a YAML node.
type nodeError struct {
	line   int
	column int
	msg    string
}

func (e *nodeError) Error() string {
	return e.msg
}

func errAt(n *yaml.Node, format string, args ...any) error {
	return &nodeError{line: n.Line, column: n.Column, msg: fmt.Sprintf(format, args...)}
}

func errLine(err error, fallback int) int {
	var ne *nodeError
	if errors.As(err, &ne) && ne.line > 0 {
		return ne.line
	}
	return fallback
}

func errColumn(err error, fallback int) int {
	var ne *nodeError
	if errors.As(err, &ne) && ne.column > 0 {
		return ne.column
	}
	return fallback
}

// buildPredicate converts a "when" mapping. Multiple keys are ANDed in
// declaration order.
func (b *builder) buildPredicate(n *yaml.Node, depth int) (pack.Predicate, error) {
	if depth > b.maxDepth {
		return nil, errAt(n, "predicate nesting exceeds %d levels", b.maxDepth)
	}
	if n.Kind == yaml.DocumentNode && len(n.Content) == 1 {
		n = n.Content[0]
	}
	if n.Kind != yaml.MappingNode {
		return nil, errAt(n, "when clause must be a mapping")
	}
	if len(n.Content) == 0 {
		return nil, errAt(n, "when clause is empty")
	}

	var operands []pack.Predicate
	for i := 0; i+1 < len(n.Content); i += 2 {
		key, value := n.Content[i], n.Content[i+1]
		p, err := b.buildClause(key, value, depth)
		if err != nil {
			return nil, err
		}
		operands = append(operands, p)
	}

	if len(operands) == 1 {
		return operands[0], nil
	}
	return pack.AndMatch{Operands: operands}, nil
}

func (b *builder) buildClause(key, value *yaml.Node, depth int) (pack.Predicate, error) {
	switch key.Value {
	case "nodeType":
		types, err := stringList(value)
		if err != nil {
			return nil, err
		}
		return pack.NodeTypeMatch{Types: types}, nil

	case "nodeCategory":
		cats, err := stringList(value)
		if err != nil {
			return nil, err
		}
		return pack.NodeCategoryMatch{Categories: cats}, nil

	case "dataContains":
		raw, err := stringList(value)
		if err != nil {
			return nil, err
		}
		classes := make([]lattice.Classification, 0, len(raw))
		for _, s := range raw {
			c, err := lattice.ParseClassification(s)
			if err != nil {
				return nil, errAt(value, "dataContains: %v", err)
			}
			classes = append(classes, c)
		}
		return pack.DataContainsMatch{Classifications: classes}, nil

	case "egress":
		if value.Kind != yaml.ScalarNode {
			return nil, errAt(value, "egress must be a scalar")
		}
		scope, err := lattice.ParseEgress(value.Value)
		if err != nil {
			return nil, errAt(value, "egress: %v", err)
		}
		return pack.EgressMatch{Threshold: scope}, nil

	case "classificationAtLeast":
		if value.Kind != yaml.ScalarNode {
			return nil, errAt(value, "classificationAtLeast must be a scalar")
		}
		c, err := lattice.ParseClassification(value.Value)
		if err != nil {
			return nil, errAt(value, "classificationAtLeast: %v", err)
		}
		return pack.ClassificationAtLeastMatch{Level: c}, nil

	case "amount":
		return buildThreshold(pack.FieldAmount, value)

	case "retentionDays":
		return buildThreshold(pack.FieldRetentionDays, value)

	case "threshold":
		var field string
		if value.Kind == yaml.MappingNode {
			for i := 0; i+1 < len(value.Content); i += 2 {
				if value.Content[i].Value == "field" {
					field = value.Content[i+1].Value
				}
			}
		}
		switch pack.ThresholdField(field) {
		case pack.FieldAmount, pack.FieldRetentionDays:
			return buildThreshold(pack.ThresholdField(field), value)
		}
		return nil, errAt(value, "threshold: unsupported field %q", field)

	case "all", "any":
		if value.Kind != yaml.SequenceNode || len(value.Content) == 0 {
			return nil, errAt(value, "%s must be a non-empty list", key.Value)
		}
		ops := make([]pack.Predicate, 0, len(value.Content))
		for _, item := range value.Content {
			p, err := b.buildPredicate(item, depth+1)
			if err != nil {
				return nil, err
			}
			ops = append(ops, p)
		}
		if key.Value == "all" {
			return pack.AndMatch{Operands: ops}, nil
		}
		return pack.OrMatch{Operands: ops}, nil

	case "not":
		p, err := b.buildPredicate(value, depth+1)
		if err != nil {
			return nil, err
		}
		return pack.NotMatch{Operand: p}, nil
	}

	return nil, errAt(key, "unknown predicate %q", key.Value)
}

// buildThreshold accepts either "> 10000" or {operator: ">", value: 10000}.
func buildThreshold(field pack.ThresholdField, value *yaml.Node) (pack.Predicate, error) {
	var opText, numText string

	switch value.Kind {
	case yaml.ScalarNode:
		parts := strings.Fields(value.Value)
		if len(parts) != 2 {
			return nil, errAt(value, "%s: want \"<operator> <number>\", got %q", field, value.Value)
		}
		opText, numText = parts[0], parts[1]
	case yaml.MappingNode:
		for i := 0; i+1 < len(value.Content); i += 2 {
			switch value.Content[i].Value {
			case "operator", "op":
				opText = value.Content[i+1].Value
			case "value":
				numText = value.Content[i+1].Value
			case "field":
			default:
				return nil, errAt(value.Content[i], "%s: unknown key %q", field, value.Content[i].Value)
			}
		}
	default:
		return nil, errAt(value, "%s must be a string or a mapping", field)
	}

	op, err := pack.ParseOperator(opText)
	if err != nil {
		return nil, errAt(value, "%s: unsupported operator %q", field, opText)
	}
	num, err := decimal.NewFromString(strings.ReplaceAll(numText, "_", ""))
	if err != nil {
		return nil, errAt(value, "%s: invalid number %q", field, numText)
	}
	return pack.ThresholdMatch{Field: field, Operator: op, Value: num}, nil
}

// stringList accepts a scalar or a sequence of scalars.
func stringList(n *yaml.Node) ([]string, error) {
	switch n.Kind {
	case yaml.ScalarNode:
		if strings.TrimSpace(n.Value) == "" {
			return nil, errAt(n, "value must not be empty")
		}
		return []string{strings.TrimSpace(n.Value)}, nil
	case yaml.SequenceNode:
		if len(n.Content) == 0 {
			return nil, errAt(n, "list must not be empty")
		}
		out := make([]string, 0, len(n.Content))
		for _, item := range n.Content {
			if item.Kind != yaml.ScalarNode {
				return nil, errAt(item, "list items must be scalars")
			}
			out = append(out, strings.TrimSpace(item.Value))
		}
		return out, nil
	}
	return nil, errAt(n, "want a string or a list of strings")
}
