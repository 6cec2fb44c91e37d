package model

import (
	"strconv"
	"strings"

	"github.com/m-mizutani/goerr/v2"
	"gopkg.in/yaml.v3"
)

var ErrInvalidCondition = goerr.New("invalid condition")

// CompareOp is a numeric comparison operator prefix.
type CompareOp string

const (
	OpGTE CompareOp = ">="
	OpLTE CompareOp = "<="
	OpGT  CompareOp = ">"
	OpLT  CompareOp = "<"
)

// Condition is a boolean expression over the flattened evaluation context.
// All nodes of one condition are implicitly AND-ed. It is parsed from the
// declarative playbook into a typed tree at load time; malformed conditions
// are rejected when the config loads, never at evaluation time.
type Condition struct {
	Nodes []CondNode
}

// CondNode is one node of the condition tree.
type CondNode interface {
	isCondNode()
}

// Literal matches when the value at Path equals Value. When the context
// value is a list, it matches when the list contains Value.
type Literal struct {
	Path  string
	Value any
}

// Compare matches when the value at Path parses as a number and satisfies
// the comparison. A value that fails to parse makes the node false, not an
// error.
type Compare struct {
	Path  string
	Op    CompareOp
	Value float64
}

// AnyOf matches when at least one sub-condition matches.
type AnyOf struct {
	Conds []Condition
}

// AllOf matches when every sub-condition matches.
type AllOf struct {
	Conds []Condition
}

func (Literal) isCondNode() {}
func (Compare) isCondNode() {}
func (AnyOf) isCondNode()   {}
func (AllOf) isCondNode()   {}

// Empty reports whether the condition has no nodes. An empty condition is
// always true.
func (c *Condition) Empty() bool {
	return len(c.Nodes) == 0
}

// UnmarshalYAML parses the condition mapping grammar:
//
//	completeness: ">= 0.8"
//	artifacts.guidelines.status: ready
//	or:
//	  - facts.age: ">= 3"
//	  - flags.escalated: true
func (c *Condition) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.MappingNode {
		return goerr.Wrap(ErrInvalidCondition, "condition must be a mapping",
			goerr.V("line", node.Line))
	}

	for i := 0; i+1 < len(node.Content); i += 2 {
		keyNode := node.Content[i]
		valNode := node.Content[i+1]
		key := keyNode.Value

		switch strings.ToLower(key) {
		case "or", "any":
			var conds []Condition
			if err := valNode.Decode(&conds); err != nil {
				return goerr.Wrap(err, "invalid or-group", goerr.V("line", valNode.Line))
			}
			c.Nodes = append(c.Nodes, AnyOf{Conds: conds})
		case "and", "all":
			var conds []Condition
			if err := valNode.Decode(&conds); err != nil {
				return goerr.Wrap(err, "invalid and-group", goerr.V("line", valNode.Line))
			}
			c.Nodes = append(c.Nodes, AllOf{Conds: conds})
		default:
			leaf, err := parseLeaf(key, valNode)
			if err != nil {
				return err
			}
			c.Nodes = append(c.Nodes, leaf)
		}
	}

	return nil
}

func parseLeaf(path string, valNode *yaml.Node) (CondNode, error) {
	var raw any
	if err := valNode.Decode(&raw); err != nil {
		return nil, goerr.Wrap(err, "invalid condition value", goerr.V("path", path))
	}

	if s, ok := raw.(string); ok {
		if op, rest, found := splitCompareOp(s); found {
			num, err := strconv.ParseFloat(strings.TrimSpace(rest), 64)
			if err != nil {
				return nil, goerr.Wrap(ErrInvalidCondition, "comparator needs a numeric literal",
					goerr.V("path", path), goerr.V("value", s))
			}
			return Compare{Path: path, Op: op, Value: num}, nil
		}
	}

	return Literal{Path: path, Value: raw}, nil
}

// splitCompareOp detects a comparator prefix. Two-character operators are
// checked first so ">=" is not read as ">".
func splitCompareOp(s string) (CompareOp, string, bool) {
	t := strings.TrimSpace(s)
	for _, op := range []CompareOp{OpGTE, OpLTE, OpGT, OpLT} {
		if strings.HasPrefix(t, string(op)) {
			return op, t[len(op):], true
		}
	}
	return "", "", false
}
