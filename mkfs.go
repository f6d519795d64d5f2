package main

import (
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// Makefs creates (or overwrites) the image at path with numBlocks blocks of
// blockSize bytes and formats it.
func Makefs(path string, blockSize, numBlocks uint32) (*Dsfs, error) {
	if blockSize < MinBlockSize {
		return nil, errors.Wrapf(ErrBadGeometry, "block size %d is below %d", blockSize, MinBlockSize)
	}
	size := uint64(blockSize) * uint64(numBlocks)
	isize, err := toInt64(size)
	if err != nil {
		return nil, err
	}
	if isize == 0 {
		return nil, errors.Wrap(ErrBadGeometry, "device has 0 blocks")
	}
	logrus.Infof("initialize %s: %d blocks of %d bytes", path, numBlocks, blockSize)
	dev, err := NewFileBlockDevice(path, isize)
	if err != nil {
		return nil, err
	}
	fs, err := Create(dev, blockSize)
	if err != nil {
		dev.Close()
		return nil, err
	}
	return fs, nil
}

// Mountfs opens the existing image at path.
func Mountfs(path string) (*Dsfs, error) {
	dev, err := NewFileBlockDevice(path, 0)
	if err != nil {
		return nil, err
	}
	fs, err := Open(dev)
	if err != nil {
		dev.Close()
		return nil, err
	}
	return fs, nil
}
