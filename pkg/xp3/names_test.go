package xp3

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/encoding/japanese"
)

func TestParseNameList(t *testing.T) {
	sjis, err := japanese.ShiftJIS.NewEncoder().Bytes([]byte("0000beef,背景/夕焼け.png\n"))
	require.NoError(t, err)

	tests := []struct {
		name  string
		input []byte
		want  NameList
	}{
		{
			name:  "カンマ区切り",
			input: []byte("DEADBEEF,image/bg.png\r\n# comment\n\nbroken line\n"),
			want:  NameList{"deadbeef": "image/bg.png"},
		},
		{
			name:  "コロン区切りと BOM",
			input: cat([]byte{0xEF, 0xBB, 0xBF}, []byte("x7f3a: data/startup.tjs\n")),
			want:  NameList{"x7f3a": "data/startup.tjs"},
		},
		{
			name:  "Shift-JIS",
			input: sjis,
			want:  NameList{"0000beef": "背景/夕焼け.png"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseNameList(tt.input))
		})
	}
}

func TestNameList_Lookup(t *testing.T) {
	list := NameList{"deadbeef": "by-hash", "scrambled": "by-name"}

	name, ok := list.Lookup("scrambled", 0xDEADBEEF)
	assert.True(t, ok)
	assert.Equal(t, "by-name", name)

	name, ok = list.Lookup("", 0xDEADBEEF)
	assert.True(t, ok)
	assert.Equal(t, "by-hash", name)

	_, ok = list.Lookup("missing", 1)
	assert.False(t, ok)

	var empty NameList
	_, ok = empty.Lookup("x", 0)
	assert.False(t, ok)
}

func TestIsHashedName(t *testing.T) {
	tests := []struct {
		name string
		want bool
	}{
		{"deadbeef", true},
		{"0123456789ABCDEF", true},
		{"0123456789abcdef0123456789abcdef", true},
		{"startup.tjs", false},
		{"deadbeeg", false},
		{"abc", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, isHashedName(tt.name))
		})
	}
}

func TestUTF16(t *testing.T) {
	b, err := EncodeUTF16("a日")
	require.NoError(t, err)
	assert.Equal(t, []byte{'a', 0, 0xE5, 0x65}, b)

	s, err := DecodeUTF16(b)
	require.NoError(t, err)
	assert.Equal(t, "a日", s)

	r := NewIndexReader(cat(le16(2), b, []byte{1}))
	s, err = r.ReadName()
	require.NoError(t, err)
	assert.Equal(t, "a日", s)
	assert.Equal(t, 1, r.Remaining())

	_, err = r.ReadUint32()
	assert.ErrorIs(t, err, ErrCorrupted)
}
