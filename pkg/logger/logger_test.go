package logger

import (
	"bytes"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	l := NewLoggerTo(&buf, 10)
	l.SetLevel(WARN)

	l.Debugf("hidden %d", 1)
	l.Infof("hidden too")
	l.Warnf("shown %s", "warn")
	l.Errorf("shown error")

	assert.Equal(t, []string{"[WARN] shown warn", "[ERROR] shown error"}, l.GetLogs())
	assert.Contains(t, buf.String(), "[WARN] shown warn")
	assert.NotContains(t, buf.String(), "hidden")
	assert.Equal(t, WARN, l.GetLevel())
}

func TestRingBuffer(t *testing.T) {
	var buf bytes.Buffer
	l := NewLoggerTo(&buf, 2)
	l.Infof("a")
	l.Infof("b")
	l.Infof("c")
	assert.Equal(t, []string{"[INFO] b", "[INFO] c"}, l.GetLogs())

	l.Clear()
	assert.Empty(t, l.GetLogs())
}

func TestLogErrorWritesDailyFile(t *testing.T) {
	dir := t.TempDir()
	var buf bytes.Buffer
	l := NewLoggerTo(&buf, 10)
	require.NoError(t, l.SetErrorDir(dir))
	fixed := time.Date(2024, 3, 9, 14, 5, 6, 0, time.Local)
	l.now = func() time.Time { return fixed }

	require.NoError(t, l.LogError("ConversionError", "segment failed", "cause one\ncause two"))
	require.NoError(t, l.LogError("IOError", "disk full", ""))

	data, err := os.ReadFile(ErrorLogPath(dir, fixed))
	require.NoError(t, err)
	assert.Equal(t,
		"2024-03-09 14:05:06 - textcorrector - ERROR - ConversionError: segment failed\n"+
			"    cause one\n    cause two\n"+
			"2024-03-09 14:05:06 - textcorrector - ERROR - IOError: disk full\n",
		string(data))
}

func TestLogErrorWithoutDir(t *testing.T) {
	var buf bytes.Buffer
	l := NewLoggerTo(&buf, 10)
	require.NoError(t, l.LogError("Kind", "msg", "details"))
	assert.Equal(t, []string{"[ERROR] Kind: msg"}, l.GetLogs())
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, TRACE, ParseLevel("trace"))
	assert.Equal(t, WARN, ParseLevel("warning"))
	assert.Equal(t, INFO, ParseLevel("nonsense"))
}
