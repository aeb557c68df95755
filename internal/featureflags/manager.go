// Package featureflags evaluates the FEATURE_FLAGS setting against the flags
// the marketplace declares.
package featureflags

import (
	"fmt"
	"hash/fnv"
	"sort"
	"strconv"
	"strings"
)

// Flag names a feature switch.
type Flag string

const (
	// RealtimeChat exposes the /api/ws/chat conversation socket.
	RealtimeChat Flag = "realtime_chat"
	// MarkdownRender allows ?render=html on question detail.
	MarkdownRender Flag = "markdown_render"
)

// Definition is a declared flag and the value it takes when FEATURE_FLAGS
// does not mention it.
type Definition struct {
	Name        Flag
	Default     bool
	Description string
}

var declared = []Definition{
	{Name: RealtimeChat, Default: true, Description: "buyer/seller chat over WebSocket"},
	{Name: MarkdownRender, Default: true, Description: "Markdown rendering of Q&A bodies"},
}

// Declared lists the flags the application knows about.
func Declared() []Definition {
	out := make([]Definition, len(declared))
	copy(out, declared)
	return out
}

type mode int

const (
	modeOff mode = iota
	modeOn
	modeRollout
)

type rule struct {
	raw  string
	mode mode
	pct  int
}

func parseRule(value string) (rule, bool) {
	switch value {
	case "on", "true", "1":
		return rule{raw: value, mode: modeOn}, true
	case "off", "false", "0":
		return rule{raw: value, mode: modeOff}, true
	}
	pctRaw, isPct := strings.CutSuffix(value, "%")
	if !isPct {
		return rule{}, false
	}
	pct, err := strconv.Atoi(pctRaw)
	if err != nil {
		return rule{}, false
	}
	switch {
	case pct <= 0:
		return rule{raw: value, mode: modeOff}, true
	case pct >= 100:
		return rule{raw: value, mode: modeOn}, true
	}
	return rule{raw: value, mode: modeRollout, pct: pct}, true
}

// Manager holds the parsed FEATURE_FLAGS rules.
// Example: "realtime_chat=on,markdown_render=25%,map_view=off"
type Manager struct {
	rules    map[Flag]rule
	defaults map[Flag]bool
	invalid  []string
}

// NewManager parses a comma-separated name=value list. Entries with an
// unrecognised value are ignored and reported by Invalid.
func NewManager(raw string) *Manager {
	m := &Manager{
		rules:    make(map[Flag]rule),
		defaults: make(map[Flag]bool, len(declared)),
	}
	for _, d := range declared {
		m.defaults[d.Name] = d.Default
	}

	for _, pair := range strings.Split(raw, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		key, value, found := strings.Cut(pair, "=")
		key, value = normalize(key), normalize(value)
		if !found || key == "" || value == "" {
			m.invalid = append(m.invalid, pair)
			continue
		}
		r, ok := parseRule(value)
		if !ok {
			m.invalid = append(m.invalid, pair)
			continue
		}
		m.rules[Flag(key)] = r
	}
	return m
}

// Enabled evaluates flag for userID. A configured rule wins; otherwise the
// declared default applies, and undeclared flags are off. Percentage
// rollouts bucket users deterministically and never include anonymous
// callers.
func (m *Manager) Enabled(flag Flag, userID uint) bool {
	if m == nil {
		return false
	}
	flag = Flag(normalize(string(flag)))
	r, ok := m.rules[flag]
	if !ok {
		return m.defaults[flag]
	}
	switch r.mode {
	case modeOn:
		return true
	case modeRollout:
		return userID != 0 && rolloutBucket(flag, userID) < r.pct
	}
	return false
}

// Raw returns the configured values by flag name.
func (m *Manager) Raw() map[string]string {
	out := make(map[string]string, len(m.rules))
	for k, r := range m.rules {
		out[string(k)] = r.raw
	}
	return out
}

// Invalid returns the FEATURE_FLAGS entries that were skipped, sorted.
func (m *Manager) Invalid() []string {
	out := append([]string(nil), m.invalid...)
	sort.Strings(out)
	return out
}

// Snapshot evaluates every declared and configured flag for one user.
func (m *Manager) Snapshot(userID uint) map[string]bool {
	out := make(map[string]bool, len(m.defaults)+len(m.rules))
	for name := range m.defaults {
		out[string(name)] = m.Enabled(name, userID)
	}
	for name := range m.rules {
		out[string(name)] = m.Enabled(name, userID)
	}
	return out
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func rolloutBucket(flag Flag, userID uint) int {
	h := fnv.New32a()
	_, _ = fmt.Fprintf(h, "%s:%d", flag, userID)
	return int(h.Sum32() % 100)
}
