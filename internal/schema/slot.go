package schema

import (
	"fmt"
	"strings"

	"grimoire/internal/value"
)

// Policy names how a slot merges an entry's own value with its bases.
type Policy string

const (
	First  Policy = "first"
	Max    Policy = "max"
	Min    Policy = "min"
	Sum    Policy = "sum"
	Bonus  Policy = "bonus"
	List   Policy = "list"
	Or     Policy = "or"
	String Policy = "string"
)

var policies = []Policy{First, Max, Min, Sum, Bonus, List, Or, String}

func ParsePolicy(s string) (Policy, error) {
	if s == "" {
		return First, nil
	}
	for _, p := range policies {
		if strings.EqualFold(string(p), strings.TrimSpace(s)) {
			return p, nil
		}
	}
	return "", fmt.Errorf("unknown combination policy %q", s)
}

// Check reports whether the policy can combine values of kind k.
func (p Policy) Check(k value.Kind) error {
	switch p {
	case Max, Min:
		if !value.Ordered(k) {
			return fmt.Errorf("%s policy needs an ordered kind, got %s", p, k)
		}
	case Sum, Bonus:
		if !value.Additive(k) {
			return fmt.Errorf("%s policy cannot add %s values", p, k)
		}
	}
	return nil
}

const (
	NameKey = "name"
	BaseKey = "base"
)

type Slot struct {
	Key    string
	Plural string
	Type   *value.Type
	Policy Policy

	NoStore        bool
	DMOnly         bool
	PlayerOnly     bool
	PlayerEditable bool
	PrintUndefined bool
	IncludeBases   bool

	// Extension is set on slots contributed by an extension.
	Extension string
}

func (s *Slot) Stored() bool {
	return !s.NoStore
}

// Visible reports whether the slot is shown in a dm or player view.
func (s *Slot) Visible(dm bool) bool {
	if s.DMOnly && !dm {
		return false
	}
	if s.PlayerOnly && dm {
		return false
	}
	return true
}

func builtinSlots() []*Slot {
	return []*Slot{
		{Key: NameKey, Type: value.NameType(), Policy: String, NoStore: true},
		{Key: BaseKey, Plural: "bases", Type: value.ListOf(value.NameType()), Policy: List, PrintUndefined: true, DMOnly: true},
	}
}
