package featureflags

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	m, err := Parse(" decision_emails=ON, backlog_digest = 20% ,pdf_preview=false ")
	require.NoError(t, err)

	assert.True(t, m.Enabled(DecisionEmails, "BP-1"))
	assert.False(t, m.Enabled("pdf_preview", "BP-1"))
	assert.Equal(t, 20, m.rollout[BacklogDigest])
}

func TestParse_ReportsEveryBadEntry(t *testing.T) {
	m, err := Parse("decision_emails=on,bad,x=maybe,y=150%,z=-5%")
	require.Error(t, err)
	for _, want := range []string{`"bad"`, "flag x", "flag y", "flag z"} {
		assert.Contains(t, err.Error(), want)
	}
	assert.True(t, m.Enabled(DecisionEmails, "BP-1"), "good entries survive")
}

func TestEnabled_Rollout(t *testing.T) {
	m := NewManager("always=100%,never=0%,canary=30%")

	assert.True(t, m.Enabled("always", ""))
	assert.False(t, m.Enabled("never", "BP-1"))
	assert.False(t, m.Enabled("canary", ""), "partial rollout needs a subject")

	on := 0
	for i := 0; i < 1000; i++ {
		subject := fmt.Sprintf("BP-20260401-%06X", i)
		got := m.Enabled("canary", subject)
		assert.Equal(t, got, m.Enabled("canary", subject), "stable per subject")
		if got {
			on++
		}
	}
	assert.InDelta(t, 300, on, 80)
}

func TestStates_IncludesKnownFlags(t *testing.T) {
	states := NewManager("zebra=on").States("clerk")
	require.Len(t, states, 3)

	assert.Equal(t, BacklogDigest, states[0].Name)
	assert.Equal(t, "off", states[0].Setting)
	assert.NotEmpty(t, states[0].Description)
	assert.Equal(t, DecisionEmails, states[1].Name)
	assert.Equal(t, State{Name: "zebra", Setting: "on", Rollout: 100, Enabled: true}, states[2])
}

func TestNilManager(t *testing.T) {
	var m *Manager
	assert.False(t, m.Enabled(DecisionEmails, "BP-1"))
	assert.Len(t, m.States(""), 2)
}
