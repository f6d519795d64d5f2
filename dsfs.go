package main

import (
	"sync"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// Dsfs owns a device and the block tables of all its groups. It is built
// once per mount and handed to the FUSE adapter.
type Dsfs struct {
	mu     sync.RWMutex // guards dev against Close
	dev    Device
	sb     SuperBlock
	geo    Geometry
	tables []*BlockTable
}

// Open mounts an existing filesystem. Every group table must load; a
// single unreadable or corrupt group fails the whole mount. The geometry is
// checked against the device size before any table is allocated.
func Open(dev Device) (*Dsfs, error) {
	sb, err := ReadSuperBlock(dev)
	if err != nil {
		return nil, err
	}
	geo, err := sb.Geometry()
	if err != nil {
		return nil, err
	}
	size, err := dev.Size()
	if err != nil {
		return nil, errors.Wrap(err, "device size")
	}
	err = geo.CheckFits(uint64(size))
	if err != nil {
		return nil, errors.Wrap(err, "mount")
	}
	fs := &Dsfs{
		dev:    dev,
		sb:     *sb,
		geo:    geo,
		tables: make([]*BlockTable, 0, geo.NumGroups),
	}
	for group := uint32(0); group < geo.NumGroups; group++ {
		bt, err := LoadBlockTable(dev, geo, group)
		if err != nil {
			return nil, errors.Wrap(err, "mount")
		}
		fs.tables = append(fs.tables, bt)
	}
	logrus.Infof("mounted dsfs: block_size=%d num_blocks=%d groups=%d",
		geo.BlockSize, geo.NumBlocks, geo.NumGroups)
	return fs, nil
}

// Create formats dev with blockSize byte blocks. The block count is the
// number of whole blocks that fit on the device.
func Create(dev Device, blockSize uint32) (*Dsfs, error) {
	size, err := dev.Size()
	if err != nil {
		return nil, errors.Wrap(err, "device size")
	}
	if blockSize == 0 {
		return nil, errors.Wrap(ErrBadGeometry, "block size is zero")
	}
	numBlocks := uint64(size) / uint64(blockSize)
	if numBlocks > uint64(^uint32(0)) {
		numBlocks = uint64(^uint32(0))
	}
	sb := SuperBlock{BlockSize: blockSize, NumBlocks: uint32(numBlocks)}
	geo, err := sb.Geometry()
	if err != nil {
		return nil, err
	}
	err = WriteSuperBlock(dev, &sb)
	if err != nil {
		return nil, err
	}
	fs := &Dsfs{
		dev:    dev,
		sb:     sb,
		geo:    geo,
		tables: make([]*BlockTable, 0, geo.NumGroups),
	}
	for group := uint32(0); group < geo.NumGroups; group++ {
		bt, err := CreateBlockTable(dev, geo, group)
		if err != nil {
			return nil, errors.Wrap(err, "create")
		}
		fs.tables = append(fs.tables, bt)
	}
	err = dev.Sync()
	if err != nil {
		return nil, errors.Wrap(err, "sync device")
	}
	logrus.Infof("created dsfs: block_size=%d num_blocks=%d groups=%d",
		geo.BlockSize, geo.NumBlocks, geo.NumGroups)
	return fs, nil
}

func (fs *Dsfs) BlockSize() uint32 {
	return fs.geo.BlockSize
}

func (fs *Dsfs) NumBlocks() uint32 {
	return fs.geo.NumBlocks
}

func (fs *Dsfs) BlocksInGroup() uint32 {
	return fs.geo.BlocksInGroup
}

func (fs *Dsfs) NumGroups() uint32 {
	return fs.geo.NumGroups
}

func (fs *Dsfs) Geometry() Geometry {
	return fs.geo
}

func (fs *Dsfs) GetSuperblock() SuperBlock {
	return fs.sb
}

// acquire returns the device with the read lock held, or ErrClosed.
func (fs *Dsfs) acquire() (Device, error) {
	fs.mu.RLock()
	if fs.dev == nil {
		fs.mu.RUnlock()
		return nil, ErrClosed
	}
	return fs.dev, nil
}

func (fs *Dsfs) release() {
	fs.mu.RUnlock()
}

// Table returns the block table of group. It fails with ErrClosed once the
// filesystem is closed.
func (fs *Dsfs) Table(group uint32) (*BlockTable, error) {
	_, err := fs.acquire()
	if err != nil {
		return nil, err
	}
	defer fs.release()
	return fs.table(group)
}

func (fs *Dsfs) table(group uint32) (*BlockTable, error) {
	if group >= uint32(len(fs.tables)) {
		return nil, errors.Wrapf(ErrNoGroup, "group %d of %d", group, len(fs.tables))
	}
	return fs.tables[group], nil
}

func (fs *Dsfs) GetType(group, local uint32) (BlockType, error) {
	_, err := fs.acquire()
	if err != nil {
		return BlockFree, err
	}
	defer fs.release()
	bt, err := fs.table(group)
	if err != nil {
		return BlockFree, err
	}
	return bt.GetType(local)
}

// SetType changes a tag in memory. Flush persists it.
func (fs *Dsfs) SetType(group, local uint32, t BlockType) error {
	_, err := fs.acquire()
	if err != nil {
		return err
	}
	defer fs.release()
	bt, err := fs.table(group)
	if err != nil {
		return err
	}
	return bt.SetType(local, t)
}

// Flush writes the table of group to the device.
func (fs *Dsfs) Flush(group uint32) error {
	dev, err := fs.acquire()
	if err != nil {
		return err
	}
	defer fs.release()
	bt, err := fs.table(group)
	if err != nil {
		return err
	}
	return bt.Write(dev)
}

// Reload rereads the table of group from the device.
func (fs *Dsfs) Reload(group uint32) error {
	dev, err := fs.acquire()
	if err != nil {
		return err
	}
	defer fs.release()
	bt, err := fs.table(group)
	if err != nil {
		return err
	}
	return bt.Read(dev)
}

// Update applies fn to the table of group and flushes it, holding the
// group lock throughout.
func (fs *Dsfs) Update(group uint32, fn func(e *TableEditor) error) error {
	dev, err := fs.acquire()
	if err != nil {
		return err
	}
	defer fs.release()
	bt, err := fs.table(group)
	if err != nil {
		return err
	}
	return bt.Update(dev, fn)
}

func (fs *Dsfs) Locate(blockno uint64) (group uint32, local uint32, err error) {
	if blockno >= uint64(fs.geo.NumBlocks) {
		return 0, 0, errors.Wrapf(ErrBadGeometry, "block %d past end of device (%d blocks)", blockno, fs.geo.NumBlocks)
	}
	group, local = fs.geo.Locate(blockno)
	return group, local, nil
}

// BlockOffset is the byte offset of blockno on the device.
func (fs *Dsfs) BlockOffset(blockno uint64) (uint64, error) {
	_, _, err := fs.Locate(blockno)
	if err != nil {
		return 0, err
	}
	return fs.geo.BlockOffset(blockno), nil
}

// TypeOf returns the tag of an absolute block.
func (fs *Dsfs) TypeOf(blockno uint64) (BlockType, error) {
	group, local, err := fs.Locate(blockno)
	if err != nil {
		return BlockFree, err
	}
	return fs.GetType(group, local)
}

// AllocBlock tags the lowest free block as t and persists the group table.
func (fs *Dsfs) AllocBlock(t BlockType) (blockno uint64, err error) {
	if t == BlockFree || t.Reserved() || !t.Valid() {
		return 0, errors.Wrapf(ErrReservedBlock, "can not allocate a %s block", t)
	}
	dev, err := fs.acquire()
	if err != nil {
		return 0, err
	}
	defer fs.release()
	for _, bt := range fs.tables {
		limit := fs.geo.RealBlocks(bt.Group())
		found := false
		err = bt.Update(dev, func(e *TableEditor) error {
			local, ok := e.FindFree(limit)
			if !ok {
				return ErrNoSpace
			}
			found = true
			blockno = fs.geo.BlockNo(bt.Group(), local)
			return e.SetType(local, t)
		})
		if found {
			if err != nil {
				return 0, err
			}
			logrus.Debugf("alloc block %d type=%s", blockno, t)
			return blockno, nil
		}
	}
	return 0, ErrNoSpace
}

// FreeBlock returns an allocated block to the free pool.
func (fs *Dsfs) FreeBlock(blockno uint64) error {
	group, local, err := fs.Locate(blockno)
	if err != nil {
		return err
	}
	err = fs.Update(group, func(e *TableEditor) error {
		t, err := e.GetType(local)
		if err != nil {
			return err
		}
		if t.Reserved() {
			return errors.Wrapf(ErrReservedBlock, "block %d is a %s block", blockno, t)
		}
		return e.SetType(local, BlockFree)
	})
	if err != nil {
		return err
	}
	logrus.Debugf("free block %d", blockno)
	return nil
}

// Usage counts the tags of all real blocks on the device.
type Usage struct {
	BlockSize uint32
	NumBlocks uint32
	Groups    uint32
	Counts    map[BlockType]uint64
}

func (u Usage) Free() uint64 {
	return u.Counts[BlockFree]
}

func (fs *Dsfs) Stat() (Usage, error) {
	_, err := fs.acquire()
	if err != nil {
		return Usage{}, err
	}
	defer fs.release()
	u := Usage{
		BlockSize: fs.geo.BlockSize,
		NumBlocks: fs.geo.NumBlocks,
		Groups:    fs.geo.NumGroups,
		Counts:    make(map[BlockType]uint64, len(AllBlockTypes)),
	}
	for _, bt := range fs.tables {
		for t, n := range bt.Count(fs.geo.RealBlocks(bt.Group())) {
			u.Counts[t] += uint64(n)
		}
	}
	return u, nil
}

// Sync flushes every group table and the device.
func (fs *Dsfs) Sync() error {
	dev, err := fs.acquire()
	if err != nil {
		return err
	}
	defer fs.release()
	for _, bt := range fs.tables {
		err = bt.Write(dev)
		if err != nil {
			return err
		}
	}
	return dev.Sync()
}

// Close releases the device. It is terminal: every later call returns
// ErrClosed. Tables are not flushed; unflushed SetType changes are lost.
func (fs *Dsfs) Close() error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	if fs.dev == nil {
		return ErrClosed
	}
	dev := fs.dev
	fs.dev = nil
	err := dev.Sync()
	cerr := dev.Close()
	if err == nil {
		err = cerr
	}
	logrus.Info("closed dsfs")
	return err
}
