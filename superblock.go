package main

import (
	"github.com/pkg/errors"
)

// MinBlockSize is the smallest block that can hold the superblock.
const MinBlockSize = 8

// SuperBlockSize is the encoded size of SuperBlock.
const SuperBlockSize = 8

// SuperBlock is the device-wide geometry record at byte 0 of block 0.
type SuperBlock struct {
	BlockSize uint32 `struct:"uint32"` // bytes per block
	NumBlocks uint32 `struct:"uint32"` // blocks addressable on the device
}

// Geometry is the layout derived from a superblock.
type Geometry struct {
	BlockSize     uint32
	NumBlocks     uint32
	BlocksInGroup uint32
	NumGroups     uint32
	// tableLen is BlocksInGroup as a host index
	tableLen int
}

// ReadSuperBlock decodes the superblock at offset 0 of dev. The values are
// returned as stored; see Geometry for validation.
func ReadSuperBlock(dev Device) (*SuperBlock, error) {
	if dev == nil {
		return nil, ErrUnreachable
	}
	buf := make([]byte, SuperBlockSize)
	err := readFull(dev, 0, buf)
	if err != nil {
		return nil, errors.Wrap(err, "read superblock")
	}
	var sb SuperBlock
	err = StructOf(buf, &sb)
	if err != nil {
		return nil, errors.Wrap(err, "decode superblock")
	}
	return &sb, nil
}

// WriteSuperBlock encodes sb at offset 0 of dev. The rest of block 0 is
// zeroed.
func WriteSuperBlock(dev Device, sb *SuperBlock) error {
	buf, err := BytesOf(sb)
	if err != nil {
		return errors.Wrap(err, "encode superblock")
	}
	if sb.BlockSize > SuperBlockSize {
		blockSize, err := toInt(sb.BlockSize)
		if err != nil {
			return err
		}
		buf = Pad(buf, blockSize)
	}
	return errors.Wrap(writeFull(dev, 0, buf), "write superblock")
}

// Geometry derives the group layout. A block table holds one byte per
// block in a single block, so a group is exactly BlockSize blocks long.
func (sb *SuperBlock) Geometry() (Geometry, error) {
	if sb.BlockSize < MinBlockSize {
		return Geometry{}, errors.Wrapf(ErrBadGeometry, "block size %d is below %d", sb.BlockSize, MinBlockSize)
	}
	// block 0 and the table of group 0
	if sb.NumBlocks < 2 {
		return Geometry{}, errors.Wrapf(ErrBadGeometry, "device has %d blocks", sb.NumBlocks)
	}
	tableLen, err := toInt(sb.BlockSize)
	if err != nil {
		return Geometry{}, err
	}
	blocksInGroup := sb.BlockSize
	return Geometry{
		BlockSize:     sb.BlockSize,
		NumBlocks:     sb.NumBlocks,
		BlocksInGroup: blocksInGroup,
		NumGroups:     DivCeil(sb.NumBlocks, blocksInGroup),
		tableLen:      tableLen,
	}, nil
}

// TableBlock returns the absolute block index holding the table of group.
// Block 0 belongs to the superblock, so group 0 keeps its table in block 1.
func (g Geometry) TableBlock(group uint32) uint64 {
	if group == 0 {
		return 1
	}
	return uint64(g.BlocksInGroup) * uint64(group)
}

// CheckFits verifies that every group table lies inside a device of size
// bytes.
func (g Geometry) CheckFits(size uint64) error {
	last := g.NumGroups - 1
	off := g.TableOffset(last)
	if off >= size || size-off < uint64(g.BlockSize) {
		return errors.Wrapf(ErrBadGeometry, "table of group %d at byte %d does not fit a %d byte device", last, off, size)
	}
	return nil
}

// BlockOffset is the byte offset of an absolute block index.
func (g Geometry) BlockOffset(blockno uint64) uint64 {
	return blockno * uint64(g.BlockSize)
}

// TableOffset is the byte offset of the table of group.
func (g Geometry) TableOffset(group uint32) uint64 {
	return g.BlockOffset(g.TableBlock(group))
}

// Locate splits an absolute block index into group and local index.
func (g Geometry) Locate(blockno uint64) (group uint32, local uint32) {
	return uint32(blockno / uint64(g.BlocksInGroup)), uint32(blockno % uint64(g.BlocksInGroup))
}

// BlockNo is the inverse of Locate.
func (g Geometry) BlockNo(group, local uint32) uint64 {
	return uint64(group)*uint64(g.BlocksInGroup) + uint64(local)
}

// RealBlocks is the number of local indices of group that map to blocks on
// the device. The last group may extend past NumBlocks.
func (g Geometry) RealBlocks(group uint32) uint32 {
	start := uint64(group) * uint64(g.BlocksInGroup)
	if start >= uint64(g.NumBlocks) {
		return 0
	}
	left := uint64(g.NumBlocks) - start
	if left > uint64(g.BlocksInGroup) {
		return g.BlocksInGroup
	}
	return uint32(left)
}
