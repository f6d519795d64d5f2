package main

import (
	"sync"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// BlockTable is the in-memory copy of the tag table of one block group.
//
// Changes made with SetType stay in memory until Write is called, so that a
// batch of related tag changes reaches the disk in a single write. All
// methods take the table lock; Update holds it across a whole batch.
type BlockTable struct {
	mu    sync.Mutex
	geo   Geometry
	group uint32
	table []BlockType
}

func newTable(geo Geometry, group uint32) *BlockTable {
	return &BlockTable{
		geo:   geo,
		group: group,
		table: make([]BlockType, geo.tableLen),
	}
}

// LoadBlockTable reads the table of group from dev.
func LoadBlockTable(dev Device, geo Geometry, group uint32) (*BlockTable, error) {
	bt := newTable(geo, group)
	err := bt.Read(dev)
	if err != nil {
		return nil, err
	}
	return bt, nil
}

// CreateBlockTable builds a fresh table for group and writes it to dev.
// Group 0 starts with the superblock and its table, every other group with
// its table only.
func CreateBlockTable(dev Device, geo Geometry, group uint32) (*BlockTable, error) {
	bt := newTable(geo, group)
	if group == 0 {
		bt.table[0] = BlockSuperBlock
		bt.table[1] = BlockBlockTable
	} else {
		bt.table[0] = BlockBlockTable
	}
	err := bt.Write(dev)
	if err != nil {
		return nil, err
	}
	return bt, nil
}

func (bt *BlockTable) Group() uint32 {
	return bt.group
}

// Len is the number of entries, always BlocksInGroup.
func (bt *BlockTable) Len() uint32 {
	return bt.geo.BlocksInGroup
}

// BlockIndex is the absolute block holding this table.
func (bt *BlockTable) BlockIndex() uint64 {
	return bt.geo.TableBlock(bt.group)
}

// Offset is the byte offset of this table on the device.
func (bt *BlockTable) Offset() uint64 {
	return bt.geo.TableOffset(bt.group)
}

func (bt *BlockTable) checkBounds(local uint32) error {
	if local >= bt.geo.BlocksInGroup {
		return &OutOfBoundsError{Index: local, Max: bt.geo.BlocksInGroup}
	}
	return nil
}

// SetType sets the tag of a block in memory only.
// local is the index inside the group (blockno % BlocksInGroup), not the
// absolute block index.
func (bt *BlockTable) SetType(local uint32, t BlockType) error {
	bt.mu.Lock()
	defer bt.mu.Unlock()
	return bt.setType(local, t)
}

func (bt *BlockTable) setType(local uint32, t BlockType) error {
	err := bt.checkBounds(local)
	if err != nil {
		return err
	}
	if !t.Valid() {
		return &InvalidBlockTypeError{Byte: byte(t)}
	}
	bt.table[local] = t
	return nil
}

// GetType returns the in-memory tag of a block. It does not reread the
// disk; call Read first when the table may have changed underneath.
func (bt *BlockTable) GetType(local uint32) (BlockType, error) {
	bt.mu.Lock()
	defer bt.mu.Unlock()
	return bt.getType(local)
}

func (bt *BlockTable) getType(local uint32) (BlockType, error) {
	err := bt.checkBounds(local)
	if err != nil {
		return BlockFree, err
	}
	return bt.table[local], nil
}

// Types returns a copy of the whole table.
func (bt *BlockTable) Types() []BlockType {
	bt.mu.Lock()
	defer bt.mu.Unlock()
	out := make([]BlockType, len(bt.table))
	copy(out, bt.table)
	return out
}

// Read replaces the in-memory table with the one on dev. On any error the
// in-memory table is left as it was.
func (bt *BlockTable) Read(dev Device) error {
	bt.mu.Lock()
	defer bt.mu.Unlock()
	return bt.read(dev)
}

func (bt *BlockTable) read(dev Device) error {
	buf := make([]byte, bt.geo.tableLen)
	err := readFull(dev, bt.Offset(), buf)
	if err != nil {
		return &TableIOError{Group: bt.group, Op: "read", Err: err}
	}
	table, err := tableFromBytes(buf)
	if err != nil {
		return errors.Wrapf(err, "block table of group %d at block %d", bt.group, bt.BlockIndex())
	}
	bt.table = table
	logrus.Debugf("loaded block table of group %d (loc: 0x%x)", bt.group, bt.Offset())
	return nil
}

// Write flushes the whole table to dev in one write call. A failed write is
// not retried and leaves the disk behind the in-memory table.
func (bt *BlockTable) Write(dev Device) error {
	bt.mu.Lock()
	defer bt.mu.Unlock()
	return bt.write(dev)
}

func (bt *BlockTable) write(dev Device) error {
	err := writeFull(dev, bt.Offset(), bt.tableAsBytes())
	if err != nil {
		return &TableIOError{Group: bt.group, Op: "write", Err: err}
	}
	logrus.Debugf("sync block table of group %d (loc: 0x%x)", bt.group, bt.Offset())
	return nil
}

// TableEditor is the view of a locked table handed to Update.
type TableEditor struct {
	bt *BlockTable
}

func (e *TableEditor) SetType(local uint32, t BlockType) error {
	return e.bt.setType(local, t)
}

func (e *TableEditor) GetType(local uint32) (BlockType, error) {
	return e.bt.getType(local)
}

func (e *TableEditor) FindFree(limit uint32) (uint32, bool) {
	return e.bt.findFree(limit)
}

// Update runs fn with the table locked and flushes the result with a single
// write. If fn or the write fails the in-memory table is restored, so a
// batch is either on disk or forgotten.
func (bt *BlockTable) Update(dev Device, fn func(e *TableEditor) error) error {
	bt.mu.Lock()
	defer bt.mu.Unlock()
	saved := make([]BlockType, len(bt.table))
	copy(saved, bt.table)
	err := fn(&TableEditor{bt: bt})
	if err == nil {
		err = bt.write(dev)
	}
	if err != nil {
		bt.table = saved
		return err
	}
	return nil
}

// Count returns how many entries below limit carry each tag.
func (bt *BlockTable) Count(limit uint32) map[BlockType]uint32 {
	bt.mu.Lock()
	defer bt.mu.Unlock()
	counts := make(map[BlockType]uint32, len(AllBlockTypes))
	for i, t := range bt.table {
		if uint32(i) >= limit {
			break
		}
		counts[t]++
	}
	return counts
}

// findFree returns the lowest free local index below limit.
func (bt *BlockTable) findFree(limit uint32) (uint32, bool) {
	for i, t := range bt.table {
		if uint32(i) >= limit {
			break
		}
		if t == BlockFree {
			return uint32(i), true
		}
	}
	return 0, false
}

func (bt *BlockTable) tableAsBytes() []byte {
	buf := make([]byte, len(bt.table))
	for i, t := range bt.table {
		buf[i] = byte(t)
	}
	return buf
}

// tableFromBytes decodes a table block, failing on the first unknown byte.
func tableFromBytes(buf []byte) ([]BlockType, error) {
	table := make([]BlockType, len(buf))
	for i, b := range buf {
		t, err := DecodeBlockType(b)
		if err != nil {
			return nil, errors.Wrapf(err, "entry %d", i)
		}
		table[i] = t
	}
	return table, nil
}
