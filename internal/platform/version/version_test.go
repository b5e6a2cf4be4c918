package version

import (
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGet(t *testing.T) {
	info := Get()

	assert.Equal(t, "dev", info.Version)
	assert.NotEmpty(t, info.Commit)
	assert.NotEmpty(t, info.BuildTime)
	assert.Equal(t, runtime.Version(), info.GoVersion)
}

func TestInfo_LogAttrs(t *testing.T) {
	attrs := Info{Version: "v1", Commit: "abc", BuildTime: "now", GoVersion: "go"}.LogAttrs()

	assert.Equal(t, []any{"version", "v1", "commit", "abc", "build_time", "now", "go_version", "go"}, attrs)
}
