package segment

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplit(t *testing.T) {
	tests := []struct {
		name  string
		text  string
		words []string
		want  []Segment
	}{
		{
			name: "empty text",
			text: "",
			want: []Segment{},
		},
		{
			name: "no words",
			text: "你好世界",
			want: []Segment{{Start: 0, End: 4, Kind: Plain, Text: "你好世界"}},
		},
		{
			name:  "word absent",
			text:  "hello",
			words: []string{"ABC"},
			want:  []Segment{{Start: 0, End: 5, Kind: Plain, Text: "hello"}},
		},
		{
			name:  "leading protected",
			text:  "民國一百年",
			words: []string{"民國"},
			want: []Segment{
				{Start: 0, End: 2, Kind: Protected, Text: "民國"},
				{Start: 2, End: 5, Kind: Plain, Text: "一百年"},
			},
		},
		{
			name:  "repeated word",
			text:  "台灣與台灣",
			words: []string{"台灣"},
			want: []Segment{
				{Start: 0, End: 2, Kind: Protected, Text: "台灣"},
				{Start: 2, End: 3, Kind: Plain, Text: "與"},
				{Start: 3, End: 5, Kind: Protected, Text: "台灣"},
			},
		},
		{
			name:  "self overlapping pattern",
			text:  "aaaaa",
			words: []string{"aa"},
			want: []Segment{
				{Start: 0, End: 2, Kind: Protected, Text: "aa"},
				{Start: 2, End: 4, Kind: Protected, Text: "aa"},
				{Start: 4, End: 5, Kind: Plain, Text: "a"},
			},
		},
		{
			name:  "overlap earlier start wins",
			text:  "中華民國萬歲",
			words: []string{"民國萬歲", "中華民國"},
			want: []Segment{
				{Start: 0, End: 4, Kind: Protected, Text: "中華民國"},
				{Start: 4, End: 6, Kind: Plain, Text: "萬歲"},
			},
		},
		{
			name:  "equal start keeps word order",
			text:  "國立大學",
			words: []string{"國立", "國立大學"},
			want: []Segment{
				{Start: 0, End: 2, Kind: Protected, Text: "國立"},
				{Start: 2, End: 4, Kind: Plain, Text: "大學"},
			},
		},
		{
			name:  "mixed width runes",
			text:  "a測試b",
			words: []string{"測試"},
			want: []Segment{
				{Start: 0, End: 1, Kind: Plain, Text: "a"},
				{Start: 1, End: 3, Kind: Protected, Text: "測試"},
				{Start: 3, End: 4, Kind: Plain, Text: "b"},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Split(tt.text, tt.words)
			require.NoError(t, err)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("Split() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestSplitInvalidArgument(t *testing.T) {
	_, err := Split("abc", []string{"a", ""})
	require.ErrorIs(t, err, ErrInvalidArgument)

	_, err = Split(string([]byte{0xff, 0xfe}), nil)
	require.ErrorIs(t, err, ErrInvalidArgument)
}

func TestSplitTotality(t *testing.T) {
	texts := []string{
		"",
		"中華民國一百年，台灣大學成立。",
		"aaaa bbbb aaaa",
		"保護詞保護詞保護",
	}
	words := []string{"保護", "aa", "台灣大學", "大學", "民國"}

	for _, text := range texts {
		segs, err := Split(text, words)
		require.NoError(t, err)
		assert.Equal(t, text, Join(segs))

		pos := 0
		for _, s := range segs {
			assert.Equal(t, pos, s.Start, "segments must be contiguous")
			assert.Less(t, s.Start, s.End)
			pos = s.End
		}
		assert.Equal(t, len([]rune(text)), pos)
	}
}

func TestSplitProtectedTextIsWord(t *testing.T) {
	words := []string{"民國", "一百"}
	segs, err := Split(strings.Repeat("民國一百年", 3), words)
	require.NoError(t, err)
	for _, s := range segs {
		if s.Kind == Protected {
			assert.Contains(t, words, s.Text)
		}
	}
}
