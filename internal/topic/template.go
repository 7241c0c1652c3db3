package topic

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/zhxiaoyu/zeromqtt/internal/bridgeerr"
)

// ValidateTemplate checks that every {n} placeholder in template refers to
// a "+" capture that plusCount actually produces, and that {*} is only
// used when the pattern captured a tail. This is a configuration-time
// check: an out-of-range placeholder is ConfigInvalid, never a runtime
// surprise.
func ValidateTemplate(template string, plusCount int, hasTail bool) error {
	_, err := expand(template, make([]string, plusCount), "", hasTail)
	return err
}

// Apply substitutes the wildcard captures into template, producing a
// concrete topic. {n} (1-indexed) substitutes the nth "+" capture; {*}
// substitutes the "#" tail (which may be empty).
func Apply(template string, cap Capture) (string, error) {
	return expand(template, cap.Plus, cap.Tail, cap.HasTail)
}

func expand(template string, plus []string, tail string, hasTail bool) (string, error) {
	var b strings.Builder
	i := 0
	for i < len(template) {
		ch := template[i]
		if ch != '{' {
			b.WriteByte(ch)
			i++
			continue
		}
		end := strings.IndexByte(template[i:], '}')
		if end < 0 {
			return "", fmt.Errorf("%w: unterminated placeholder in template %q", bridgeerr.ErrConfigInvalid, template)
		}
		end += i
		token := template[i+1 : end]
		i = end + 1

		if token == "*" {
			if !hasTail {
				return "", fmt.Errorf("%w: template %q uses {*} but pattern has no # capture", bridgeerr.ErrConfigInvalid, template)
			}
			b.WriteString(tail)
			continue
		}

		n, err := strconv.Atoi(token)
		if err != nil || n < 1 {
			return "", fmt.Errorf("%w: invalid placeholder {%s} in template %q", bridgeerr.ErrConfigInvalid, token, template)
		}
		if n > len(plus) {
			return "", fmt.Errorf("%w: placeholder {%d} out of range (%d captures) in template %q", bridgeerr.ErrConfigInvalid, n, len(plus), template)
		}
		b.WriteString(plus[n-1])
	}
	return b.String(), nil
}
