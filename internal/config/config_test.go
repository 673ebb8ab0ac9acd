package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseListFlag(t *testing.T) {
	def := []string{"a", "b"}
	assert.Equal(t, def, parseListFlag("", def))
	assert.Equal(t, def, parseListFlag(" ; ;", def))
	assert.Equal(t, []string{"x", "y z"}, parseListFlag(" x ; y z ", def))
}

func TestParsePairs(t *testing.T) {
	m := ParsePairs([]string{"Normal CT=No acute abnormality.", "broken-entry", " =skipped", "lower=Text "})
	require.Len(t, m, 2)
	assert.Equal(t, "No acute abnormality.", m["normal ct"])
	assert.Equal(t, "Text", m["lower"])
}

func TestDefaultsSanity(t *testing.T) {
	cfg := Defaults()
	require.NotNil(t, cfg)
	assert.Greater(t, cfg.PollIntervalSeconds, 0)
	assert.Greater(t, cfg.DictationOffThreshold, 1, "sticky-off требует более одного чтения")
	assert.Less(t, cfg.PollFastInterval, cfg.ImpressionSettle, "быстрый опрос должен успеть отработать до settle")
	assert.Equal(t, "alerts-only", cfg.AlertMode)
}
