package version

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestShortRevision(t *testing.T) {
	tests := []struct {
		name string
		info Info
		want string
	}{
		{"empty", Info{}, ""},
		{"short", Info{Revision: "abc"}, "abc"},
		{"truncated", Info{Revision: "0123456789abcdef"}, "01234567"},
		{"dirty", Info{Revision: "0123456789abcdef", Dirty: true}, "01234567+dirty"},
		{"dirty without revision", Info{Dirty: true}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.info.ShortRevision())
		})
	}
}

func TestString(t *testing.T) {
	info := Info{Version: "1.2.0", BuildTime: "unknown", GoVersion: "go1.23.0", Revision: "0123456789"}
	assert.Equal(t, "1.2.0, commit 01234567, go1.23.0", info.String())

	info.BuildTime = "2026-01-02"
	assert.Contains(t, info.String(), "built 2026-01-02")
}

func TestCheck(t *testing.T) {
	assert.NotEmpty(t, Info{Version: "dev"}.Check())
	assert.NotEmpty(t, Info{Version: "1.0.0", Revision: "abc", Dirty: true}.Check())
	assert.Empty(t, Info{Version: "1.0.0", Revision: "abc"}.Check())
	assert.Empty(t, Info{Version: "1.0.0"}.Check())
}

func TestGet(t *testing.T) {
	info := Get()
	assert.Equal(t, Name, info.Name)
	assert.Equal(t, Version, info.Version)
	assert.Equal(t, "healthdash/"+Version, info.UserAgent())
}
