package common

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSplitList(t *testing.T) {
	assert.Nil(t, SplitList(""))
	assert.Nil(t, SplitList(" , ,"))
	assert.Equal(t, []string{"b", "a"}, SplitList(" b,a ,b,"))
}

func TestLogger_Levels(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(&buf, LevelInfo)

	l.Infof("loaded %d sites", 2)
	l.Debugf("hidden")
	l.Errorf("failed: %s", "boom")

	out := buf.String()
	assert.Contains(t, out, "INFO: loaded 2 sites")
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "ERROR: failed: boom")
	assert.True(t, l.Enabled(LevelInfo))
	assert.False(t, l.Enabled(LevelDebug))
}

func TestLogger_Nil(t *testing.T) {
	var l *Logger
	assert.NotPanics(t, func() {
		l.Infof("ignored")
		l.Debugf("ignored")
	})
	assert.False(t, l.Enabled(LevelInfo))
}
