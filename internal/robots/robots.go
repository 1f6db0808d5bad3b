// Package robots parses a robots.txt-like document into the disallow
// prefixes that apply to the wildcard "*" user-agent group, and keeps an
// atomically-swappable, hot-reloadable snapshot of those rules.
//
// Only the "*" group matters to this system (benign-bot compliance is
// checked generically; the spec doesn't ask for per-bot rule sets), so
// parsing purposefully ignores every other User-agent group.
package robots

import (
	"bufio"
	"io"
	"strings"
)

// DecisionReason names why Disallowed returned true or false, for logging —
// mirrors the Decision/reason-enum shape used elsewhere in the pack for
// robots-adjacent decisions.
type DecisionReason string

const (
	ReasonEmptyRuleSet    DecisionReason = "empty_rule_set"
	ReasonNoMatchingRule  DecisionReason = "no_matching_rule"
	ReasonDisallowedMatch DecisionReason = "disallowed_by_robots"
)

// RuleSet is the parsed, immutable set of disallow prefixes for "*".
// A new RuleSet is always built fully before being published, so readers
// never observe a partially-parsed document.
type RuleSet struct {
	disallow []string
	raw      string
}

// Empty returns a RuleSet where nothing is disallowed.
func Empty() *RuleSet { return &RuleSet{} }

// Parse reads a robots.txt document and extracts the Disallow prefixes
// that apply to the "*" user-agent group. Directive names are matched
// case-insensitively; path prefixes preserve case. A disallow of "/" is
// dropped per the spec invariant that it would otherwise ban everything
// the tarpit exists to selectively intercept.
func Parse(r io.Reader) (*RuleSet, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	var rules []string
	inWildcardGroup := false
	sawAnyGroup := false
	var sb strings.Builder

	for scanner.Scan() {
		line := scanner.Text()
		sb.WriteString(line)
		sb.WriteByte('\n')

		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "#") {
			continue
		}
		idx := strings.Index(trimmed, ":")
		if idx < 0 {
			continue
		}
		directive := strings.ToLower(strings.TrimSpace(trimmed[:idx]))
		value := strings.TrimSpace(trimmed[idx+1:])
		if semi := strings.Index(value, "#"); semi >= 0 {
			value = strings.TrimSpace(value[:semi])
		}

		switch directive {
		case "user-agent":
			sawAnyGroup = true
			inWildcardGroup = value == "*"
		case "disallow":
			if !inWildcardGroup || value == "" {
				continue
			}
			if value == "/" {
				continue
			}
			rules = append(rules, value)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	_ = sawAnyGroup
	return &RuleSet{disallow: rules, raw: sb.String()}, nil
}

// ParseString is a convenience wrapper around Parse for in-memory text.
func ParseString(s string) (*RuleSet, error) {
	return Parse(strings.NewReader(s))
}

// Disallowed reports whether path p is disallowed: some rule prefix r
// satisfies p starts with r, evaluated as longest-prefix (i.e. any
// matching prefix disallows — there's no Allow override in the "*"
// group per this spec, so "longest prefix wins" degenerates to "any
// match wins").
func (rs *RuleSet) Disallowed(p string) (bool, DecisionReason) {
	if rs == nil || len(rs.disallow) == 0 {
		return false, ReasonEmptyRuleSet
	}
	longest := ""
	for _, r := range rs.disallow {
		if r == "" || r == "/" {
			continue
		}
		if strings.HasPrefix(p, r) && len(r) > len(longest) {
			longest = r
		}
	}
	if longest != "" {
		return true, ReasonDisallowedMatch
	}
	return false, ReasonNoMatchingRule
}

// Rules returns a copy of the disallow prefixes, for diagnostics.
func (rs *RuleSet) Rules() []string {
	if rs == nil {
		return nil
	}
	out := make([]string, len(rs.disallow))
	copy(out, rs.disallow)
	return out
}

// Raw returns the original document text, used to detect byte-identical
// refreshes without re-parsing.
func (rs *RuleSet) Raw() string {
	if rs == nil {
		return ""
	}
	return rs.raw
}
