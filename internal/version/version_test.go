package version

import (
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
)

func setBuildVars(t *testing.T, version, commit, date string) {
	t.Helper()
	v, c, d := Version, Commit, Date
	Version, Commit, Date = version, commit, date
	t.Cleanup(func() { Version, Commit, Date = v, c, d })
}

func TestGetInfoFromLdflags(t *testing.T) {
	setBuildVars(t, "0.4.0", "9f1c2ab77e01", "2026-03-02T08:00:00Z")

	info := GetInfo()
	assert.Equal(t, "0.4.0", info.Version)
	assert.Equal(t, "9f1c2ab77e01", info.Commit)
	assert.Equal(t, "2026-03-02T08:00:00Z", info.Date)
	assert.Equal(t, runtime.Version(), info.GoVersion)
	assert.Equal(t, runtime.GOOS+"/"+runtime.GOARCH, info.Platform)
}

func TestGetInfoDefaults(t *testing.T) {
	setBuildVars(t, "dev", "unknown", "unknown")

	info := GetInfo()
	assert.Equal(t, "dev", info.Short())
	// Test binaries may or may not carry a VCS stamp, but never leave these blank.
	assert.NotEmpty(t, info.Commit)
	assert.NotEmpty(t, info.Date)
}

func TestInfoString(t *testing.T) {
	tests := []struct {
		name string
		info Info
		want string
	}{
		{
			name: "long commit is shortened",
			info: Info{Version: "0.4.0", Commit: "9f1c2ab77e01", Date: "2026-03-02", GoVersion: "go1.24.6", Platform: "linux/amd64"},
			want: "hirs-avhrr 0.4.0 (9f1c2ab7) built 2026-03-02 with go1.24.6 for linux/amd64",
		},
		{
			name: "short commit kept",
			info: Info{Version: "dev", Commit: "abc123", Date: "unknown", GoVersion: "go1.24.6", Platform: "darwin/arm64"},
			want: "hirs-avhrr dev (abc123) built unknown with go1.24.6 for darwin/arm64",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.info.String())
		})
	}
}

func TestInfoShort(t *testing.T) {
	assert.Equal(t, "0.4.0-rc1", Info{Version: "0.4.0-rc1", Commit: "abc"}.Short())
}
