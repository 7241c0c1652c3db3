// Package topic implements MQTT-style topic pattern matching and template
// expansion. Patterns and templates are pure data: nothing here touches a
// network connection or a mapping record, which keeps the matching rules
// independently testable from the worker and router plumbing that uses
// them.
package topic

import (
	"fmt"
	"strings"

	"github.com/zhxiaoyu/zeromqtt/internal/bridgeerr"
)

const (
	singleLevelWildcard = "+"
	multiLevelWildcard  = "#"
	levelSeparator      = "/"
)

// Capture holds the wildcard captures produced by a successful Match: one
// string per "+" level, in left-to-right order, plus an optional trailing
// "#" capture.
type Capture struct {
	Plus    []string
	Tail    string
	HasTail bool
}

// ValidatePattern reports whether pattern is well-formed: "#" must be the
// final level and alone in it, "+" must occupy a whole level, and no
// level may be empty.
func ValidatePattern(pattern string) error {
	if pattern == "" {
		return fmt.Errorf("%w: empty pattern", bridgeerr.ErrConfigInvalid)
	}
	levels := strings.Split(pattern, levelSeparator)
	for i, level := range levels {
		switch {
		case level == "":
			return fmt.Errorf("%w: empty level in pattern %q", bridgeerr.ErrConfigInvalid, pattern)
		case level == multiLevelWildcard && i != len(levels)-1:
			return fmt.Errorf("%w: %q not in final position in pattern %q", bridgeerr.ErrConfigInvalid, multiLevelWildcard, pattern)
		case level != singleLevelWildcard && level != multiLevelWildcard && strings.ContainsAny(level, "+#"):
			return fmt.Errorf("%w: %q mixes wildcard with literal text in pattern %q", bridgeerr.ErrConfigInvalid, level, pattern)
		}
	}
	return nil
}

// Match attempts to match a concrete topic against pattern, returning the
// wildcard captures on success. Matching is case-sensitive, byte-exact,
// and an empty topic never matches anything.
func Match(pattern, topic string) (Capture, bool, error) {
	if err := ValidatePattern(pattern); err != nil {
		return Capture{}, false, err
	}
	if topic == "" {
		return Capture{}, false, nil
	}

	patternLevels := strings.Split(pattern, levelSeparator)
	topicLevels := strings.Split(topic, levelSeparator)

	var cap Capture
	for i, pl := range patternLevels {
		if pl == multiLevelWildcard {
			cap.HasTail = true
			cap.Tail = strings.Join(topicLevels[i:], levelSeparator)
			return cap, true, nil
		}
		if i >= len(topicLevels) {
			return Capture{}, false, nil
		}
		switch pl {
		case singleLevelWildcard:
			if topicLevels[i] == "" {
				return Capture{}, false, nil
			}
			cap.Plus = append(cap.Plus, topicLevels[i])
		default:
			if pl != topicLevels[i] {
				return Capture{}, false, nil
			}
		}
	}

	if len(topicLevels) != len(patternLevels) {
		return Capture{}, false, nil
	}
	return cap, true, nil
}
