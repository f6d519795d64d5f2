package main

import (
	"os"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	for _, k := range []string{"DSFS_BLOCK_SIZE", "DSFS_NUM_BLOCKS", "DSFS_LOG_LEVEL"} {
		if v, ok := os.LookupEnv(k); ok {
			os.Unsetenv(k)
			defer os.Setenv(k, v)
		}
	}
	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, uint32(4096), cfg.BlockSize)
	assert.Equal(t, uint32(1024), cfg.NumBlocks)
	assert.Equal(t, "dsfs.img", cfg.Device)
}

func TestLoadConfigFromEnv(t *testing.T) {
	t.Setenv("DSFS_BLOCK_SIZE", "512")
	t.Setenv("DSFS_FS_NAME", "scratch")
	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, uint32(512), cfg.BlockSize)
	assert.Equal(t, "scratch", cfg.FsName)

	t.Setenv("DSFS_NUM_BLOCKS", "lots")
	_, err = LoadConfig()
	assert.Error(t, err)
}

func TestSetLogLevel(t *testing.T) {
	defer logrus.SetLevel(logrus.GetLevel())
	require.NoError(t, SetLogLevel("debug"))
	assert.Equal(t, logrus.DebugLevel, logrus.GetLevel())
	assert.Error(t, SetLogLevel("loud"))
}
