package protectedwords

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"textcorrector/pkg/segment"
)

func TestOpenMissingFile(t *testing.T) {
	s, err := Open(filepath.Join(t.TempDir(), "protected_words.json"))
	require.NoError(t, err)
	assert.Zero(t, s.Len())
	assert.Empty(t, s.Snapshot())
}

func TestDecode(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    []string
		wantErr bool
	}{
		{name: "array", input: `["民國", " 台灣 ", "民國"]`, want: []string{"民國", "台灣"}},
		{name: "legacy object", input: `{"protected_words": ["中華"]}`, want: []string{"中華"}},
		{name: "empty file", input: "  ", want: nil},
		{name: "nfc", input: `["e\u0301"]`, want: []string{"\u00e9"}},
		{name: "empty entry", input: `["a", "  "]`, wantErr: true},
		{name: "not a list", input: `"word"`, wantErr: true},
		{name: "mixed types", input: `["a", 1]`, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Decode([]byte(tt.input))
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDecodeEmptyEntryIsInvalidArgument(t *testing.T) {
	_, err := Decode([]byte(`[""]`))
	assert.ErrorIs(t, err, segment.ErrInvalidArgument)
}

func TestAddRemoveSave(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "protected_words.json")
	s := NewStore(path)

	require.NoError(t, s.Add("  民國 "))
	require.NoError(t, s.Add("<公司>"))
	assert.ErrorIs(t, s.Add("民國"), ErrDuplicate)
	assert.ErrorIs(t, s.Add(" "), segment.ErrInvalidArgument)
	assert.True(t, s.Contains("民國"))

	require.NoError(t, s.Save())
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "[\n    \"民國\",\n    \"<公司>\"\n]\n", string(data))

	require.NoError(t, s.Remove("民國"))
	assert.ErrorIs(t, s.Remove("民國"), ErrNotFound)
	assert.Equal(t, []string{"<公司>"}, s.Snapshot())

	reloaded, err := Open(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"民國", "<公司>"}, reloaded.Snapshot())
}

func TestSnapshotIsCopy(t *testing.T) {
	s := NewStore("")
	require.NoError(t, s.Add("甲"))
	snap := s.Snapshot()
	snap[0] = "乙"
	assert.Equal(t, []string{"甲"}, s.Snapshot())
}

func TestImportExport(t *testing.T) {
	s := NewStore("")
	require.NoError(t, s.Import(strings.NewReader(`{"protected_words": ["一", "二"]}`)))

	var buf bytes.Buffer
	require.NoError(t, s.Export(&buf))
	assert.JSONEq(t, `["一", "二"]`, buf.String())

	assert.Error(t, s.Import(strings.NewReader(`{"protected_words": [""]}`)))
	assert.Equal(t, []string{"一", "二"}, s.Snapshot(), "failed import keeps the old list")
}

func TestConcurrentAccess(t *testing.T) {
	s := NewStore("")
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			_ = s.Add(string(rune('a' + i)))
		}(i)
		go func() {
			defer wg.Done()
			_ = s.Snapshot()
		}()
	}
	wg.Wait()
	assert.Equal(t, 20, s.Len())
}
