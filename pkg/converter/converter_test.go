package converter

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseMode(t *testing.T) {
	for m, name := range modeNames {
		got, err := ParseMode(name)
		require.NoError(t, err)
		assert.Equal(t, m, got)
	}

	got, err := ParseMode(" S2TW ")
	require.NoError(t, err)
	assert.Equal(t, S2TW, got)

	_, err = ParseMode("tw2jp")
	assert.Error(t, err)
}

func TestOpenCCConvert(t *testing.T) {
	c, err := New(S2T)
	require.NoError(t, err)

	out, err := c.Convert("汉字")
	require.NoError(t, err)
	assert.Equal(t, "漢字", out)

	out, err = c.Convert("")
	require.NoError(t, err)
	assert.Equal(t, "", out)
}

func TestOpenCCRoundTripKeepsTraditional(t *testing.T) {
	c, err := New(RoundTrip)
	require.NoError(t, err)
	assert.Equal(t, RoundTrip, c.Mode())

	out, err := c.Convert("漢字")
	require.NoError(t, err)
	assert.Equal(t, "漢字", out)
}

func TestNewUnsupportedMode(t *testing.T) {
	_, err := New(Mode(99))
	assert.Error(t, err)
}

type fakeEngine struct {
	calls int
	out   string
	err   error
}

func (f *fakeEngine) Translate(ctx context.Context, text string) (string, error) {
	f.calls++
	return f.out, f.err
}

func TestLLMConvert(t *testing.T) {
	engine := &fakeEngine{out: "繁體"}
	l := NewLLM(context.Background(), engine)

	out, err := l.Convert("繁体")
	require.NoError(t, err)
	assert.Equal(t, "繁體", out)

	out, err = l.Convert("  ")
	require.NoError(t, err)
	assert.Equal(t, "  ", out)
	assert.Equal(t, 1, engine.calls)
}

func TestLLMConvertErrors(t *testing.T) {
	boom := errors.New("rate limited")
	l := NewLLM(context.Background(), &fakeEngine{err: boom})
	_, err := l.Convert("文字")
	assert.ErrorIs(t, err, boom)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	engine := &fakeEngine{out: "x"}
	_, err = NewLLM(ctx, engine).Convert("文字")
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, engine.calls)
}
