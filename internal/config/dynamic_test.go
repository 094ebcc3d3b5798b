package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	conf := Global()
	assert.Equal(t, AuthJWT, conf.Auth.AuthSource)
	assert.Equal(t, 8080, conf.Server.Port)
	assert.Equal(t, "iic abortExposure", conf.Scheduler.AbortCmd)
	assert.Equal(t, 2000, conf.Scheduler.MinDelay)
	assert.Equal(t, "sps", conf.Console.Name)
}

func TestLoadDynamic(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dynamic.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
delayMinutes: 30
scheduler:
  abortCmd: iic abort
`), 0o644))

	d, err := LoadDynamic(path)
	require.NoError(t, err)
	require.NotNil(t, d.DelayMinutes)
	assert.Equal(t, 30, *d.DelayMinutes)
	assert.Equal(t, "iic abort", d.Scheduler.AbortCmd)
	assert.Empty(t, d.Scheduler.FinishCmd)

	require.NoError(t, os.WriteFile(path, []byte("delay: 3\n"), 0o644))
	_, err = LoadDynamic(path)
	require.Error(t, err)
}
