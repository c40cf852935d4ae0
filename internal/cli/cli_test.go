package cli

import (
	"bytes"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"knx/internal/modules/availability"
)

func captureOut(t *testing.T) *bytes.Buffer {
	t.Helper()
	prev, prevColor := out, color.NoColor
	buf := &bytes.Buffer{}
	out, color.NoColor = buf, true
	t.Cleanup(func() { out, color.NoColor = prev, prevColor })
	return buf
}

func TestReport_PrintsVerdictAndJSON(t *testing.T) {
	buf := captureOut(t)

	d := availability.Decision{Reason: availability.ReasonHubTempClosed, Message: "Closed for inventory", Severity: availability.SeverityHard}
	require.NoError(t, report(d.CanOrder, string(d.Reason), d))

	got := buf.String()
	assert.Contains(t, got, "✗ HUB_TEMP_CLOSED")
	assert.Contains(t, got, `"can_order": false`)
	assert.Contains(t, got, `"reopen_at": null`)
}

func TestParseID(t *testing.T) {
	id, err := parseID("42", "hub id")
	require.NoError(t, err)
	assert.Equal(t, int64(42), id)

	for _, raw := range []string{"", "0", "-3", "abc"} {
		_, err := parseID(raw, "hub id")
		assert.Error(t, err, raw)
	}
}

func TestRootCommands_HaveExpectedSubcommands(t *testing.T) {
	names := map[string]bool{}
	for _, c := range OrderCmd().Commands() {
		names[c.Name()] = true
	}
	assert.True(t, names["validate"])
	assert.True(t, names["can-modify"])
	assert.True(t, names["transition"])

	names = map[string]bool{}
	for _, c := range PaymentCmd().Commands() {
		names[c.Name()] = true
	}
	assert.True(t, names["reconcile"])
	assert.True(t, names["guard"])
}
