package main

import (
	"io"
	"os"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

// Device is the byte-addressed backing store of a filesystem.
type Device interface {
	io.ReaderAt
	io.WriterAt
	// Size reports the device size in bytes
	Size() (int64, error)
	// Sync makes completed writes durable
	Sync() error
	Close() error
}

type FileBlockDevice struct {
	file *os.File
}

// NewFileBlockDevice opens the image at path and takes an exclusive lock on
// it. When size is non-zero the image is created if needed and resized to
// size bytes.
func NewFileBlockDevice(path string, size int64) (*FileBlockDevice, error) {
	flags := os.O_RDWR
	if size > 0 {
		// create if not exists
		flags |= os.O_CREATE
	}
	file, err := os.OpenFile(path, flags, 0644)
	if err != nil {
		return nil, errors.Wrapf(err, "open device %s", path)
	}
	err = unix.Flock(int(file.Fd()), unix.LOCK_EX|unix.LOCK_NB)
	if err != nil {
		file.Close()
		if err == unix.EWOULDBLOCK {
			return nil, errors.Wrap(ErrDeviceBusy, path)
		}
		return nil, errors.Wrapf(err, "lock device %s", path)
	}
	if size > 0 {
		err = file.Truncate(size)
		if err != nil {
			file.Close()
			return nil, errors.Wrapf(err, "resize device %s", path)
		}
	}
	return &FileBlockDevice{
		file: file,
	}, nil
}

func (f *FileBlockDevice) ReadAt(data []byte, off int64) (int, error) {
	nbytes, err := f.file.ReadAt(data, off)
	if err == io.EOF && nbytes < len(data) {
		err = io.ErrUnexpectedEOF
	}
	return nbytes, err
}

func (f *FileBlockDevice) WriteAt(data []byte, off int64) (int, error) {
	return f.file.WriteAt(data, off)
}

func (f *FileBlockDevice) Size() (int64, error) {
	fi, err := f.file.Stat()
	if err != nil {
		return 0, err
	}
	return fi.Size(), nil
}

func (f *FileBlockDevice) Sync() error {
	return f.file.Sync()
}

func (f *FileBlockDevice) Close() error {
	// closing the descriptor drops the flock
	return f.file.Close()
}

// readFull reads exactly len(data) bytes at off.
func readFull(dev Device, off uint64, data []byte) error {
	pos, err := toInt64(off)
	if err != nil {
		return err
	}
	nbytes, err := dev.ReadAt(data, pos)
	if nbytes == len(data) {
		return nil
	}
	if err == nil || err == io.EOF {
		err = io.ErrUnexpectedEOF
	}
	return errors.Wrapf(err, "read %d bytes at 0x%x (got %d)", len(data), off, nbytes)
}

// writeFull writes data at off in a single call.
func writeFull(dev Device, off uint64, data []byte) error {
	pos, err := toInt64(off)
	if err != nil {
		return err
	}
	nbytes, err := dev.WriteAt(data, pos)
	if err != nil {
		return errors.Wrapf(err, "write %d bytes at 0x%x", len(data), off)
	}
	if nbytes != len(data) {
		return errors.Wrapf(ErrShortIO, "write %d bytes at 0x%x (wrote %d)", len(data), off, nbytes)
	}
	return nil
}
