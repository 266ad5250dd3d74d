package combine

import (
	"fmt"

	"grimoire/internal/entry"
	"grimoire/internal/schema"
	"grimoire/internal/value"
)

// Contribution is one value that took part in a combination, with the
// name of the entry or extension it came from.
type Contribution struct {
	Value  value.Value
	Source string
}

type Result struct {
	Key        string
	Value      value.Value
	Provenance []Contribution
}

func (r Result) Defined() bool {
	return r.Value != nil
}

// Combine computes the effective value of key for e by merging its own
// value with those of its bases and attached extensions under the slot's
// policy. Bases that cannot be resolved are skipped. MAX and MIN over a
// kind without an order panic.
func Combine(e *entry.Entry, key string) Result {
	slot, err := e.Slot(key)
	if err != nil {
		// Entries often leave a slot to the category of their bases.
		if slot = baseSlot(e, key, make(map[*entry.Entry]bool)); slot == nil {
			return Result{Key: key}
		}
	}
	return combine(e, slot, policyFor(e, slot))
}

func policyFor(e *entry.Entry, slot *schema.Slot) schema.Policy {
	for _, x := range e.Extensions() {
		if p, ok := x.Policy(slot.Key); ok {
			return p
		}
	}
	return slot.Policy
}

func baseSlot(e *entry.Entry, key string, seen map[*entry.Entry]bool) *schema.Slot {
	if seen[e] {
		return nil
	}
	seen[e] = true
	for _, base := range e.BaseEntries() {
		if base == nil {
			continue
		}
		if s, err := base.Slot(key); err == nil {
			return s
		}
		if s := baseSlot(base, key, seen); s != nil {
			return s
		}
	}
	return nil
}

func combine(e *entry.Entry, slot *schema.Slot, policy schema.Policy) Result {
	var parts []Result

	own := e.Get(slot.Key)
	if own == nil && policy == schema.String && schema.Normalize(slot.Key) == schema.NameKey && e.HasName() {
		own = value.Name(e.Name())
	}
	if own != nil {
		self := Result{Key: slot.Key, Value: own, Provenance: []Contribution{{Value: own, Source: e.Name()}}}
		if !slot.IncludeBases {
			return self
		}
		parts = append(parts, self)
	}

	for _, base := range e.BaseEntries() {
		if base == nil {
			continue
		}
		if r := combine(base, slot, policy); r.Defined() {
			parts = append(parts, r)
		}
	}
	for _, x := range e.Extensions() {
		if v := x.Value(slot.Key); v != nil {
			parts = append(parts, Result{Key: slot.Key, Value: v, Provenance: []Contribution{{Value: v, Source: x.Name}}})
		}
	}

	return reduce(slot, policy, parts)
}

func reduce(slot *schema.Slot, policy schema.Policy, parts []Result) Result {
	out := Result{Key: slot.Key}
	switch policy {
	case schema.First:
		if len(parts) > 0 {
			return parts[0]
		}

	case schema.String:
		for _, p := range parts {
			if !value.Empty(p.Value) {
				return p
			}
		}

	case schema.Max, schema.Min:
		if !value.Ordered(slot.Type.Kind()) {
			panic(fmt.Sprintf("combine: %s policy on unordered %s slot %q", policy, slot.Type.Kind(), slot.Key))
		}
		for i, p := range parts {
			if i == 0 {
				out = p
				continue
			}
			c, err := value.Compare(p.Value, out.Value)
			if err != nil {
				panic(fmt.Sprintf("combine: %s policy on slot %q: %v", policy, slot.Key, err))
			}
			if (policy == schema.Max && c > 0) || (policy == schema.Min && c < 0) {
				out = p
			}
		}
		out.Key = slot.Key

	case schema.Sum, schema.Bonus:
		if len(parts) == 0 {
			if policy == schema.Bonus {
				out.Value = slot.Type.Zero()
			}
			return out
		}
		for _, p := range parts {
			v, err := value.Add(out.Value, p.Value)
			if err != nil {
				panic(fmt.Sprintf("combine: %s policy on slot %q: %v", policy, slot.Key, err))
			}
			out.Value = v
			out.Provenance = append(out.Provenance, p.Provenance...)
		}

	case schema.List:
		if len(parts) == 0 {
			return out
		}
		list := value.List{}
		for _, p := range parts {
			if l, ok := p.Value.(value.List); ok {
				list = append(list, l...)
			} else {
				list = append(list, p.Value)
			}
			out.Provenance = append(out.Provenance, p.Provenance...)
		}
		out.Value = list

	case schema.Or:
		if len(parts) == 0 {
			return out
		}
		result := false
		for _, p := range parts {
			if f, ok := p.Value.(value.Flag); ok && bool(f) {
				result = true
				out.Provenance = append(out.Provenance, p.Provenance...)
			}
		}
		if !result {
			for _, p := range parts {
				out.Provenance = append(out.Provenance, p.Provenance...)
			}
		}
		out.Value = value.Flag(result)
	}
	return out
}
