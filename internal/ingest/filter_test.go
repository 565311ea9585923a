package ingest

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestApplyFilters_DenyBeatsAllow(t *testing.T) {
	v := ApplyFilters("critical kubernetes rce advisory",
		[]string{"kubernetes"}, []string{"advisory"},
		nil, nil)
	assert.False(t, v.Accepted)
	assert.Equal(t, "deny:source:advisory", v.Reason)
}

func TestApplyFilters_AbsentAllowAccepts(t *testing.T) {
	v := ApplyFilters("random item", nil, nil, nil, nil)
	assert.True(t, v.Accepted)
}

func TestApplyFilters_SourceAllowOverridesGlobal(t *testing.T) {
	v := ApplyFilters("storage outage report", []string{"storage"}, nil, []string{"network"}, nil)
	assert.True(t, v.Accepted)
}

func TestApplyFilters_NoAllowMatchRejects(t *testing.T) {
	v := ApplyFilters("unrelated sports news", []string{"vulnerability"}, nil, nil, nil)
	assert.False(t, v.Accepted)
	assert.Equal(t, "no_allow_match", v.Reason)
}

func TestApplyFilters_GlobalDenyAppliesEvenWithoutSourceDeny(t *testing.T) {
	v := ApplyFilters("breaking exploit news", nil, nil, nil, []string{"exploit"})
	assert.False(t, v.Accepted)
	assert.Equal(t, "deny:global:exploit", v.Reason)
}
