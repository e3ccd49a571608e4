// Package featureflags evaluates the FEATURE_FLAGS setting.
//
// FEATURE_FLAGS is a comma-separated list of name=value pairs where value is
// on/off (also true/false, 1/0) or a rollout percentage such as 25%.
// Percentage flags are evaluated per subject, so one application number or
// operator always gets the same answer.
package featureflags

import (
	"errors"
	"fmt"
	"hash/fnv"
	"log/slog"
	"sort"
	"strconv"
	"strings"

	"buspass/internal/observability"
)

// Flag names used by the service.
const (
	// DecisionEmails mails applicants when their application is approved or rejected.
	DecisionEmails = "decision_emails"
	// BacklogDigest mails the daily pending-backlog digest to operators.
	BacklogDigest = "backlog_digest"
)

var descriptions = map[string]string{
	DecisionEmails: "mail applicants the outcome of their application",
	BacklogDigest:  "daily digest of pending applications to the transport office",
}

// State is one flag as shown to operators.
type State struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Setting     string `json:"setting"`
	Rollout     int    `json:"rollout"`
	Enabled     bool   `json:"enabled"`
}

// Manager holds parsed flags. A nil Manager has every flag off.
type Manager struct {
	settings map[string]string
	rollout  map[string]int
}

// Parse reads raw strictly and reports every malformed entry.
func Parse(raw string) (*Manager, error) {
	m := &Manager{settings: map[string]string{}, rollout: map[string]int{}}
	var errs []error

	for _, entry := range strings.Split(raw, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		name, value, ok := strings.Cut(entry, "=")
		name, value = normalize(name), normalize(value)
		if !ok || name == "" || value == "" {
			errs = append(errs, fmt.Errorf("flag entry %q is not name=value", entry))
			continue
		}
		pct, err := parseRollout(value)
		if err != nil {
			errs = append(errs, fmt.Errorf("flag %s: %w", name, err))
			continue
		}
		m.settings[name] = value
		m.rollout[name] = pct
	}
	return m, errors.Join(errs...)
}

// NewManager parses raw leniently: malformed entries are logged and left out.
func NewManager(raw string) *Manager {
	m, err := Parse(raw)
	if err != nil {
		observability.GlobalLogger.Warn("ignoring malformed FEATURE_FLAGS entries", slog.String("error", err.Error()))
	}
	return m
}

func parseRollout(value string) (int, error) {
	switch value {
	case "on", "true", "1":
		return 100, nil
	case "off", "false", "0":
		return 0, nil
	}
	digits, ok := strings.CutSuffix(value, "%")
	if !ok {
		return 0, fmt.Errorf("value %q is neither on/off nor a percentage", value)
	}
	pct, err := strconv.Atoi(digits)
	if err != nil || pct < 0 || pct > 100 {
		return 0, fmt.Errorf("rollout %q must be between 0%% and 100%%", value)
	}
	return pct, nil
}

// Enabled reports whether name is on for subject, an application number or
// operator username. Partial rollouts are off for an empty subject.
func (m *Manager) Enabled(name, subject string) bool {
	if m == nil {
		return false
	}
	pct := m.rollout[normalize(name)]
	switch {
	case pct >= 100:
		return true
	case pct <= 0:
		return false
	}
	subject = strings.TrimSpace(subject)
	if subject == "" {
		return false
	}
	return bucket(name, subject) < pct
}

// States lists the configured flags and the known ones left unset, sorted by
// name and evaluated for subject.
func (m *Manager) States(subject string) []State {
	names := make(map[string]struct{}, len(descriptions))
	for name := range descriptions {
		names[name] = struct{}{}
	}
	if m != nil {
		for name := range m.settings {
			names[name] = struct{}{}
		}
	}

	out := make([]State, 0, len(names))
	for name := range names {
		st := State{Name: name, Description: descriptions[name], Setting: "off"}
		if m != nil {
			if v, ok := m.settings[name]; ok {
				st.Setting = v
				st.Rollout = m.rollout[name]
			}
		}
		st.Enabled = m.Enabled(name, subject)
		out = append(out, st)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func bucket(name, subject string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(normalize(name) + ":" + subject))
	return int(h.Sum32() % 100)
}
