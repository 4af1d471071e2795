package helper

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGetCfgPath(t *testing.T) {
	// panic on empty
	assert.Panics(t, func() { GetCfgPath("") })

	// absolute path returns as-is
	abs := "/tmp/doom-server.yaml"
	assert.Equal(t, abs, GetCfgPath(abs))

	// use temp dir
	old, _ := os.Getwd()
	t.Cleanup(func() { _ = os.Chdir(old) })

	tmp := t.TempDir()
	assert.NoError(t, os.Chdir(tmp))

	// no file anywhere falls back to /etc
	assert.Equal(t, "/etc/doom-server/doom-server.yaml", GetCfgPath("doom-server.yaml"))

	// file in current dir wins
	assert.NoError(t, os.WriteFile(filepath.Join(tmp, "doom-server.yaml"), []byte("port: 1"), 0o644))
	got := GetCfgPath("doom-server.yaml")
	assert.Equal(t, "doom-server.yaml", filepath.Base(got))
	assert.True(t, filepath.IsAbs(got))
}
