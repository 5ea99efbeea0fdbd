package generator

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSlug(t *testing.T) {
	seen := make(map[string]struct{})

	for i := 0; i < 100; i++ {
		got, err := NewSlug()
		require.NoError(t, err)
		assert.Len(t, got, SlugLength)
		assert.True(t, IsSlug(got), "unexpected slug %q", got)
		seen[got] = struct{}{}
	}

	assert.Greater(t, len(seen), 95, "slugs should practically never repeat")
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) {
	return 0, errors.New("entropy exhausted")
}

func TestSlugFrom_ReaderError(t *testing.T) {
	_, err := slugFrom(failingReader{}, SlugLength)
	assert.Error(t, err)
}

func TestSlugFrom_Deterministic(t *testing.T) {
	src := bytes.Repeat([]byte{0}, 64)

	got, err := slugFrom(bytes.NewReader(src), 3)
	require.NoError(t, err)
	assert.Equal(t, "000", got)
}

func TestIsSlug(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want bool
	}{
		{name: "valid", in: "abc1234", want: true},
		{name: "too short", in: "abc123", want: false},
		{name: "too long", in: "abc12345", want: false},
		{name: "uppercase", in: "ABC1234", want: false},
		{name: "symbols", in: "abc-234", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsSlug(tt.in); got != tt.want {
				t.Errorf("IsSlug(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}
