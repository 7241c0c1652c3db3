// Package mapping builds the immutable Mapping Index that answers "given
// an inbound message from this source endpoint on this topic, which
// target endpoints and topics should it be forwarded to". The index is
// rebuilt wholesale on every reconfiguration and swapped in atomically by
// the supervisor; it is never mutated in place.
package mapping

import (
	"fmt"
	"sort"

	"github.com/zhxiaoyu/zeromqtt/internal/bridgeerr"
	"github.com/zhxiaoyu/zeromqtt/internal/config"
	"github.com/zhxiaoyu/zeromqtt/internal/topic"
)

// RoutingAction is the runtime product of a rule plus a concrete inbound
// topic: a concrete outbound target.
type RoutingAction struct {
	MappingID  int64
	Target     config.EndpointRef
	TargetKind config.EndpointKind
	Topic      string
}

// compiledRule is one direction of one mapping, fully resolved and ready
// for repeated Lookup calls.
type compiledRule struct {
	mappingID   int64
	pattern     string
	plusCount   int
	hasTail     bool
	template    string
	target      config.EndpointRef
	sourceTopic string // original pattern, for subscription derivation
}

// Index is the compiled, immutable routing table. Build it once per
// configuration snapshot and query it with Lookup from any number of
// goroutines concurrently — it holds no mutable state after Build
// returns.
type Index struct {
	rules map[config.EndpointRef][]compiledRule
}

// Build compiles the enabled mapping set against the enabled endpoint set.
// It rejects the whole snapshot — returning bridgeerr.ErrConfigInvalid —
// if any pattern is malformed, any template placeholder is out of range,
// or any mapping references an endpoint that doesn't exist among the
// enabled endpoints. A rejected Build leaves no partial state behind; the
// caller keeps using its previous Index.
func Build(snap config.Snapshot) (*Index, error) {
	endpoints := make(map[config.EndpointRef]bool)
	for _, e := range snap.EnabledMQTT() {
		endpoints[e.Ref()] = true
	}
	for _, e := range snap.EnabledZMQ() {
		endpoints[e.Ref()] = true
	}

	mappings := snap.EnabledMappings()
	sort.Slice(mappings, func(i, j int) bool { return mappings[i].ID < mappings[j].ID })

	idx := &Index{rules: make(map[config.EndpointRef][]compiledRule)}

	for _, m := range mappings {
		if !endpoints[m.Source] {
			return nil, fmt.Errorf("%w: mapping %d references unknown or disabled source endpoint %s",
				bridgeerr.ErrConfigInvalid, m.ID, m.Source)
		}
		if !endpoints[m.Target] {
			return nil, fmt.Errorf("%w: mapping %d references unknown or disabled target endpoint %s",
				bridgeerr.ErrConfigInvalid, m.ID, m.Target)
		}

		if m.Direction == config.DirBidirectional {
			if err := idx.addRule(m, m.Source, m.Target, m.SourceTopic, m.TargetTopic); err != nil {
				return nil, err
			}
			if err := idx.addRule(m, m.Target, m.Source, m.TargetTopic, m.SourceTopic); err != nil {
				return nil, err
			}
			continue
		}

		if err := idx.addRule(m, m.Source, m.Target, m.SourceTopic, m.TargetTopic); err != nil {
			return nil, err
		}
	}

	return idx, nil
}

func (idx *Index) addRule(m config.Mapping, source, target config.EndpointRef, pattern, template string) error {
	if err := topic.ValidatePattern(pattern); err != nil {
		return fmt.Errorf("mapping %d: %w", m.ID, err)
	}
	plusCount, hasTail := countCaptures(pattern)
	if err := topic.ValidateTemplate(template, plusCount, hasTail); err != nil {
		return fmt.Errorf("mapping %d: %w", m.ID, err)
	}

	idx.rules[source] = append(idx.rules[source], compiledRule{
		mappingID:   m.ID,
		pattern:     pattern,
		plusCount:   plusCount,
		hasTail:     hasTail,
		template:    template,
		target:      target,
		sourceTopic: pattern,
	})
	return nil
}

func countCaptures(pattern string) (plusCount int, hasTail bool) {
	for _, level := range splitLevels(pattern) {
		switch level {
		case "+":
			plusCount++
		case "#":
			hasTail = true
		}
	}
	return plusCount, hasTail
}

func splitLevels(pattern string) []string {
	var levels []string
	start := 0
	for i := 0; i < len(pattern); i++ {
		if pattern[i] == '/' {
			levels = append(levels, pattern[start:i])
			start = i + 1
		}
	}
	levels = append(levels, pattern[start:])
	return levels
}

// Lookup returns the ordered, deduplicated Routing Actions for a message
// arriving from source on the concrete topic t. Order is by mapping ID
// ascending; a later action with the same (target, topic) as an earlier
// one is dropped, keeping the first.
func (idx *Index) Lookup(source config.EndpointRef, t string) []RoutingAction {
	rules := idx.rules[source]
	if len(rules) == 0 {
		return nil
	}

	// rules are already in mapping-id order because Build sorted mappings
	// before compiling, and Build appends in that same order.
	seen := make(map[string]bool, len(rules))
	actions := make([]RoutingAction, 0, len(rules))

	for _, r := range rules {
		cap, ok, err := topic.Match(r.pattern, t)
		if err != nil || !ok {
			continue
		}
		concreteTopic, err := topic.Apply(r.template, cap)
		if err != nil {
			continue
		}
		key := fmt.Sprintf("%s|%s", r.target, concreteTopic)
		if seen[key] {
			continue
		}
		seen[key] = true
		actions = append(actions, RoutingAction{
			MappingID:  r.mappingID,
			Target:     r.target,
			TargetKind: r.target.Kind,
			Topic:      concreteTopic,
		})
	}

	return actions
}

// MQTTSubscriptions returns the union of source patterns across the
// enabled rules of the given MQTT source endpoint — the subscription set
// a worker should apply. Over-subscription (a pattern subsuming another)
// is left as-is.
func (idx *Index) MQTTSubscriptions(source config.EndpointRef) []string {
	rules := idx.rules[source]
	if len(rules) == 0 {
		return nil
	}
	seen := make(map[string]bool, len(rules))
	out := make([]string, 0, len(rules))
	for _, r := range rules {
		if seen[r.sourceTopic] {
			continue
		}
		seen[r.sourceTopic] = true
		out = append(out, r.sourceTopic)
	}
	return out
}

// ZMQSubscriptionPrefixes returns, for each of the source endpoint's
// enabled rule patterns, the longest literal prefix ending before the
// first wildcard (or the whole pattern if there is no wildcard) — the
// byte-prefix filters a ZeroMQ SUB/XSUB worker subscribes with. A level
// separator directly before the wildcard is dropped as well, so "zmq/#"
// yields "zmq" and still admits the bare "zmq" topic the pattern matches.
func (idx *Index) ZMQSubscriptionPrefixes(source config.EndpointRef) []string {
	rules := idx.rules[source]
	if len(rules) == 0 {
		return nil
	}
	seen := make(map[string]bool, len(rules))
	out := make([]string, 0, len(rules))
	for _, r := range rules {
		prefix := literalPrefix(r.sourceTopic)
		if seen[prefix] {
			continue
		}
		seen[prefix] = true
		out = append(out, prefix)
	}
	return out
}

func literalPrefix(pattern string) string {
	for i := 0; i < len(pattern); i++ {
		if pattern[i] == '+' || pattern[i] == '#' {
			if i > 0 && pattern[i-1] == '/' {
				return pattern[:i-1]
			}
			return pattern[:i]
		}
	}
	return pattern
}
