package main

import (
	"github.com/kelseyhightower/envconfig"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

const envVarPrefix = "DSFS"

// Config holds the defaults used when flags are not given. Geometry values
// only apply to newly created filesystems; a mounted one always takes its
// geometry from the superblock.
type Config struct {
	BlockSize  uint32 `envconfig:"BLOCK_SIZE"  default:"4096"`     // 4KiB
	NumBlocks  uint32 `envconfig:"NUM_BLOCKS"  default:"1024"`     // 1024 blocks = 4MiB
	LogLevel   string `envconfig:"LOG_LEVEL"   default:"info"`
	FsName     string `envconfig:"FS_NAME"     default:"dsfs"`
	MountPoint string `envconfig:"MOUNT_POINT" default:"./mnt"`
	Device     string `envconfig:"DEVICE"      default:"dsfs.img"`
}

func LoadConfig() (*Config, error) {
	var c Config
	err := envconfig.Process(envVarPrefix, &c)
	if err != nil {
		return nil, errors.Wrap(err, "load config from environment")
	}
	return &c, nil
}

// SetLogLevel applies a level name such as "debug" or "warn".
func SetLogLevel(name string) error {
	level, err := logrus.ParseLevel(name)
	if err != nil {
		return errors.Wrapf(err, "log level %q", name)
	}
	logrus.SetLevel(level)
	return nil
}
