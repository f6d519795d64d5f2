package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/hanwen/go-fuse/v2/fuse"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
)

func init() {
	stdFormatter := &log.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "15:04:05.000000",
		ForceColors:     true,
		DisableColors:   false,
	}
	log.SetFormatter(stdFormatter)
	log.SetLevel(log.InfoLevel)
}

func main() {
	cfg, err := LoadConfig()
	if err != nil {
		log.Fatal(err)
	}
	if err := NewApp(cfg).Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func NewApp(cfg *Config) *cli.App {
	debugFlag := &cli.BoolFlag{
		Name:  "debug",
		Usage: "print debug data",
	}
	blockSizeFlag := &cli.UintFlag{
		Name:  "block-size",
		Usage: "block size in bytes for a new filesystem",
		Value: uint(cfg.BlockSize),
	}
	numBlocksFlag := &cli.UintFlag{
		Name:  "num-blocks",
		Usage: "number of blocks for a new filesystem",
		Value: uint(cfg.NumBlocks),
	}
	return &cli.App{
		Name:      "dsfs",
		Usage:     "mount a dsfs filesystem stored in a block device file",
		ArgsUsage: "[MOUNT_POINT] [DEVICE_FILE]",
		Flags: []cli.Flag{
			debugFlag,
			blockSizeFlag,
			numBlocksFlag,
			&cli.BoolFlag{
				Name:    "create-fs",
				Aliases: []string{"c"},
				Usage:   "initializes a new filesystem at the given device file",
			},
			&cli.BoolFlag{
				Name:  "no-auto-unmount",
				Usage: "do not unmount automatically on process exit",
			},
			&cli.BoolFlag{
				Name:  "allow-root",
				Usage: "allow root user to access filesystem",
			},
		},
		Before: func(c *cli.Context) error {
			if c.Bool("debug") {
				log.SetLevel(log.DebugLevel)
				log.Warn("Debug mode enabled")
				return nil
			}
			return SetLogLevel(cfg.LogLevel)
		},
		Action: func(c *cli.Context) error {
			return runMount(c, cfg)
		},
		Commands: []*cli.Command{
			{
				Name:      "mkfs",
				Usage:     "create a new filesystem image",
				ArgsUsage: "[DEVICE_FILE]",
				Flags:     []cli.Flag{blockSizeFlag, numBlocksFlag},
				Action: func(c *cli.Context) error {
					fs, err := Makefs(argOr(c, 0, cfg.Device), uint32(c.Uint("block-size")), uint32(c.Uint("num-blocks")))
					if err != nil {
						return err
					}
					return fs.Close()
				},
			},
			{
				Name:      "stat",
				Usage:     "print geometry and block usage of an image",
				ArgsUsage: "[DEVICE_FILE]",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "format",
						Usage: "yaml or json",
						Value: "yaml",
					},
				},
				Action: func(c *cli.Context) error {
					fs, err := Mountfs(argOr(c, 0, cfg.Device))
					if err != nil {
						return err
					}
					defer fs.Close()
					report, err := NewStatReport(fs)
					if err != nil {
						return err
					}
					out, err := report.Format(c.String("format"))
					if err != nil {
						return err
					}
					fmt.Fprint(c.App.Writer, out)
					return nil
				},
			},
		},
	}
}

func argOr(c *cli.Context, i int, def string) string {
	if c.Args().Len() > i {
		return c.Args().Get(i)
	}
	return def
}

// MountOptions builds the FUSE options for the given flags.
func MountOptions(fsName string, debug, autoUnmount, allowRoot bool) *fuse.MountOptions {
	opts := &fuse.MountOptions{
		FsName: fsName,
		Name:   fsName,
		Debug:  debug,
	}
	if autoUnmount {
		opts.Options = append(opts.Options, "auto_unmount")
	}
	if allowRoot {
		opts.Options = append(opts.Options, "allow_root")
	}
	return opts
}

func runMount(c *cli.Context, cfg *Config) error {
	mountpoint := argOr(c, 0, cfg.MountPoint)
	device := argOr(c, 1, cfg.Device)

	var fs *Dsfs
	var err error
	if c.Bool("create-fs") {
		fs, err = Makefs(device, uint32(c.Uint("block-size")), uint32(c.Uint("num-blocks")))
	} else {
		fs, err = Mountfs(device)
	}
	if err != nil {
		return errors.Wrapf(err, "mount %s", device)
	}
	defer fs.Close()

	debug := c.Bool("debug")
	opts := MountOptions(cfg.FsName, debug, !c.Bool("no-auto-unmount"), c.Bool("allow-root"))
	log.Infof("mounting %s on %s", device, mountpoint)
	server, err := fuse.NewServer(NewDsfsFS(fs, cfg.FsName), mountpoint, opts)
	if err != nil {
		return errors.Wrapf(err, "mount on %s", mountpoint)
	}
	server.SetDebug(debug)

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, os.Interrupt, syscall.SIGTERM)
	go func() {
		sig := <-sigs
		log.Infof("received %v, unmounting %s", sig, mountpoint)
		if err := server.Unmount(); err != nil {
			log.Errorf("unmount %s: %v", mountpoint, err)
		}
	}()

	go server.Serve()
	if err := server.WaitMount(); err != nil {
		return err
	}
	server.Wait()
	signal.Stop(sigs)
	return fs.Sync()
}
