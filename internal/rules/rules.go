// Package rules holds the conversion rules that turn unified blocks into
// output nodes, and the registry that selects them.
package rules

import (
	"errors"
	"fmt"
	"strings"

	"github.com/dgallion1/planmirror/internal/align"
	"github.com/dgallion1/planmirror/internal/extract"
	"github.com/dgallion1/planmirror/internal/pmtree"
)

// Condition sources.
const (
	SourceSemantic = "semantic"
	SourceStyle    = "style"
)

var (
	// ErrNotFound is returned by Registry.Get for an unknown rule id.
	ErrNotFound = errors.New("rule not found")

	// errFieldNotFound marks a condition naming a field the item does not
	// have. Treated as a non-match, never surfaced as a hard error.
	errFieldNotFound = errors.New("field not found")

	// errNoStyleData marks a style-sourced condition evaluated against a
	// block with no style items.
	errNoStyleData = errors.New("no style data")
)

// Condition is one predicate of a rule. All of a rule's conditions must
// hold for the rule to match.
type Condition struct {
	Source   string `json:"source" yaml:"source"`
	Field    string `json:"field" yaml:"field"`
	Operator string `json:"operator" yaml:"operator"`
	Value    any    `json:"value" yaml:"value"`
}

// ConstructFunc builds the output node for a matched block. An error here
// is fatal for the whole run: a silently dropped block corrupts document
// order.
type ConstructFunc func(sem extract.SemanticItem, style []extract.StyleItem) (*pmtree.Node, error)

// Rule pairs a condition set with a node constructor.
type Rule struct {
	ID             string      `json:"id" yaml:"id"`
	Description    string      `json:"description" yaml:"description"`
	Conditions     []Condition `json:"conditions" yaml:"conditions"`
	OutputNodeType string      `json:"output_node_type" yaml:"output_node_type"`
	Construct      ConstructFunc `json:"-" yaml:"-"`
}

// Registry is an append-only, ordered rule set. Selection is
// first-match-wins in registration order; re-registering an id overwrites
// the rule but keeps its original position, so iterative rule authoring
// does not reshuffle precedence. The pipeline is single-threaded, so the
// registry is unsynchronized.
type Registry struct {
	order []string
	rules map[string]*Rule
}

func NewRegistry() *Registry {
	return &Registry{rules: make(map[string]*Rule)}
}

// Register adds or replaces a rule. Last write wins for a given id.
func (r *Registry) Register(rule *Rule) {
	if _, ok := r.rules[rule.ID]; !ok {
		r.order = append(r.order, rule.ID)
	}
	r.rules[rule.ID] = rule
}

// All returns the rules in registration order.
func (r *Registry) All() []*Rule {
	out := make([]*Rule, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.rules[id])
	}
	return out
}

// Get returns the rule with the given id.
func (r *Registry) Get(id string) (*Rule, error) {
	rule, ok := r.rules[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return rule, nil
}

// Match returns the first registered rule matching the block.
func (r *Registry) Match(block *align.UnifiedBlock) (*Rule, bool) {
	for _, id := range r.order {
		if Matches(r.rules[id], block) {
			return r.rules[id], true
		}
	}
	return nil, false
}

// Matches reports whether every condition of the rule holds against the
// block. Style conditions read the block's first style item; a missing
// field or missing style data makes the condition false, not an error.
func Matches(rule *Rule, block *align.UnifiedBlock) bool {
	for _, cond := range rule.Conditions {
		val, err := resolveField(cond, block)
		if err != nil {
			return false
		}
		if !compare(cond.Operator, val, cond.Value) {
			return false
		}
	}
	return true
}

func resolveField(cond Condition, block *align.UnifiedBlock) (any, error) {
	switch cond.Source {
	case SourceSemantic:
		return semanticField(block.SemanticItem, cond.Field)
	case SourceStyle:
		if len(block.StyleItems) == 0 {
			return nil, errNoStyleData
		}
		return styleField(block.StyleItems[0], cond.Field)
	default:
		return nil, fmt.Errorf("%w: unknown source %q", errFieldNotFound, cond.Source)
	}
}

func semanticField(item extract.SemanticItem, field string) (any, error) {
	switch field {
	case "type":
		return item.Kind, nil
	case "value":
		return item.Value, nil
	case "lvl", "level":
		return item.Level, nil
	case "page":
		return item.Page, nil
	}
	return nil, fmt.Errorf("%w: semantic.%s", errFieldNotFound, field)
}

func styleField(item extract.StyleItem, field string) (any, error) {
	switch field {
	case "type":
		return item.Kind, nil
	case "text":
		return item.Text, nil
	case "font":
		return item.Font, nil
	case "font.family":
		// PDF fonts name the family before the style suffix, e.g.
		// "BumperSticker-Regular".
		family, _, _ := strings.Cut(item.Font, "-")
		return family, nil
	case "size":
		return item.Size, nil
	case "color":
		return item.Color, nil
	case "src":
		return item.Src, nil
	case "page":
		return item.Page, nil
	}
	return nil, fmt.Errorf("%w: style.%s", errFieldNotFound, field)
}

// compare applies a condition operator. Numbers compare numerically
// regardless of concrete type (YAML and JSON decode to different ones);
// "in" accepts a list (membership) or a string (substring).
func compare(op string, field, want any) bool {
	switch op {
	case "==":
		if fn, fok := toFloat(field); fok {
			if wn, wok := toFloat(want); wok {
				return fn == wn
			}
			return false
		}
		return field == want
	case ">", "<", ">=", "<=":
		fn, fok := toFloat(field)
		wn, wok := toFloat(want)
		if !fok || !wok {
			return false
		}
		switch op {
		case ">":
			return fn > wn
		case "<":
			return fn < wn
		case ">=":
			return fn >= wn
		default:
			return fn <= wn
		}
	case "in":
		switch w := want.(type) {
		case []any:
			for _, candidate := range w {
				if compare("==", field, candidate) {
					return true
				}
			}
			return false
		case []string:
			s, ok := field.(string)
			if !ok {
				return false
			}
			for _, candidate := range w {
				if s == candidate {
					return true
				}
			}
			return false
		case string:
			s, ok := field.(string)
			return ok && strings.Contains(w, s)
		}
		return false
	}
	return false
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case float64:
		return n, true
	case float32:
		return float64(n), true
	}
	return 0, false
}
