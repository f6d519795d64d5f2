package main

import (
	"sync"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testGeometry(t *testing.T, blockSize, numBlocks uint32) (Geometry, *memDevice) {
	geo, err := (&SuperBlock{BlockSize: blockSize, NumBlocks: numBlocks}).Geometry()
	require.NoError(t, err)
	return geo, newMemDevice(int(blockSize) * int(numBlocks))
}

func TestDecodeBlockType(t *testing.T) {
	for i, want := range AllBlockTypes {
		got, err := DecodeBlockType(byte(i))
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	for _, b := range []byte{0x07, 0x10, 0x7f, 0xff} {
		_, err := DecodeBlockType(b)
		var ibt *InvalidBlockTypeError
		require.True(t, errors.As(err, &ibt))
		assert.Equal(t, b, ibt.Byte)
	}
}

func TestCreateBlockTableDefaults(t *testing.T) {
	geo, dev := testGeometry(t, 16, 40)

	bt, err := CreateBlockTable(dev, geo, 0)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), bt.BlockIndex())
	for i, typ := range bt.Types() {
		switch i {
		case 0:
			assert.Equal(t, BlockSuperBlock, typ)
		case 1:
			assert.Equal(t, BlockBlockTable, typ)
		default:
			assert.Equal(t, BlockFree, typ, "entry %d", i)
		}
	}
	assert.Equal(t, byte(0x01), dev.data[16])
	assert.Equal(t, byte(0x02), dev.data[17])

	bt, err = CreateBlockTable(dev, geo, 2)
	require.NoError(t, err)
	assert.Equal(t, uint64(32), bt.BlockIndex())
	for i, typ := range bt.Types() {
		if i == 0 {
			assert.Equal(t, BlockBlockTable, typ)
		} else {
			assert.Equal(t, BlockFree, typ, "entry %d", i)
		}
	}
	assert.Equal(t, byte(0x02), dev.data[32*16])
}

func TestBlockTableRoundTrip(t *testing.T) {
	geo, dev := testGeometry(t, 16, 40)
	bt, err := CreateBlockTable(dev, geo, 1)
	require.NoError(t, err)

	for i := uint32(1); i < bt.Len(); i++ {
		require.NoError(t, bt.SetType(i, AllBlockTypes[i%uint32(len(AllBlockTypes))]))
	}
	want := bt.Types()
	require.NoError(t, bt.Write(dev))

	loaded, err := LoadBlockTable(dev, geo, 1)
	require.NoError(t, err)
	assert.Equal(t, want, loaded.Types())
}

func TestBlockTableBounds(t *testing.T) {
	geo, dev := testGeometry(t, 16, 40)
	bt, err := CreateBlockTable(dev, geo, 0)
	require.NoError(t, err)

	require.NoError(t, bt.SetType(15, BlockData))
	typ, err := bt.GetType(15)
	require.NoError(t, err)
	assert.Equal(t, BlockData, typ)

	err = bt.SetType(16, BlockData)
	var oob *OutOfBoundsError
	require.True(t, errors.As(err, &oob))
	assert.Equal(t, OutOfBoundsError{Index: 16, Max: 16}, *oob)

	_, err = bt.GetType(16)
	assert.True(t, errors.As(err, &oob))
	_, err = bt.GetType(1 << 31)
	assert.True(t, errors.As(err, &oob))
}

func TestSetTypeRejectsUnknownTag(t *testing.T) {
	geo, dev := testGeometry(t, 16, 40)
	bt, err := CreateBlockTable(dev, geo, 0)
	require.NoError(t, err)
	var ibt *InvalidBlockTypeError
	assert.True(t, errors.As(bt.SetType(3, BlockType(7)), &ibt))
	typ, err := bt.GetType(3)
	require.NoError(t, err)
	assert.Equal(t, BlockFree, typ)
}

func TestSetTypeDoesNotWrite(t *testing.T) {
	geo, dev := testGeometry(t, 16, 40)
	bt, err := CreateBlockTable(dev, geo, 0)
	require.NoError(t, err)
	writes := dev.writes

	require.NoError(t, bt.SetType(5, BlockInode))
	assert.Equal(t, writes, dev.writes)
	assert.Equal(t, byte(0x00), dev.data[16+5])

	require.NoError(t, bt.Write(dev))
	assert.Equal(t, writes+1, dev.writes)
	assert.Equal(t, byte(0x03), dev.data[16+5])
}

func TestLoadRejectsCorruptTable(t *testing.T) {
	geo, dev := testGeometry(t, 16, 40)
	_, err := CreateBlockTable(dev, geo, 1)
	require.NoError(t, err)

	for _, pos := range []int{0, 7, 15} {
		dev.data[16*16+pos] = 0x07
		_, err = LoadBlockTable(dev, geo, 1)
		var ibt *InvalidBlockTypeError
		require.True(t, errors.As(err, &ibt), "position %d", pos)
		assert.Equal(t, byte(0x07), ibt.Byte)
		dev.data[16*16+pos] = 0x00
	}
}

func TestReadKeepsTableOnCorruption(t *testing.T) {
	geo, dev := testGeometry(t, 16, 40)
	bt, err := CreateBlockTable(dev, geo, 0)
	require.NoError(t, err)
	want := bt.Types()

	dev.data[16+4] = 0xee
	assert.Error(t, bt.Read(dev))
	assert.Equal(t, want, bt.Types())
}

func TestLoadTruncatedDevice(t *testing.T) {
	geo, _ := testGeometry(t, 16, 40)
	dev := newMemDevice(16*16 + 8)
	_, err := LoadBlockTable(dev, geo, 1)
	var tio *TableIOError
	require.True(t, errors.As(err, &tio))
	assert.Equal(t, "read", tio.Op)
	assert.Equal(t, uint32(1), tio.Group)
}

func TestWriteFailure(t *testing.T) {
	geo, dev := testGeometry(t, 16, 40)
	bt, err := CreateBlockTable(dev, geo, 0)
	require.NoError(t, err)

	dev.shortWrite = 4
	require.NoError(t, bt.SetType(9, BlockData))
	err = bt.Write(dev)
	var tio *TableIOError
	require.True(t, errors.As(err, &tio))
	assert.Equal(t, "write", tio.Op)
	assert.True(t, errors.Is(err, ErrShortIO))

	// the in-memory change survives for a retry
	dev.shortWrite = -1
	require.NoError(t, bt.Write(dev))
	assert.Equal(t, byte(0x04), dev.data[16+9])

	dev.failWrites = true
	_, err = CreateBlockTable(dev, geo, 1)
	assert.True(t, errors.As(err, &tio))
}

func TestUpdateRollsBack(t *testing.T) {
	geo, dev := testGeometry(t, 16, 40)
	bt, err := CreateBlockTable(dev, geo, 0)
	require.NoError(t, err)
	writes := dev.writes

	err = bt.Update(dev, func(e *TableEditor) error {
		require.NoError(t, e.SetType(4, BlockData))
		return e.SetType(99, BlockData)
	})
	assert.Error(t, err)
	assert.Equal(t, writes, dev.writes)
	typ, err := bt.GetType(4)
	require.NoError(t, err)
	assert.Equal(t, BlockFree, typ)

	err = bt.Update(dev, func(e *TableEditor) error {
		if err := e.SetType(4, BlockData); err != nil {
			return err
		}
		return e.SetType(5, BlockIndirectionTable)
	})
	require.NoError(t, err)
	assert.Equal(t, writes+1, dev.writes)
	assert.Equal(t, []byte{0x04, 0x06}, dev.data[16+4:16+6])
}

func TestUpdateRollsBackOnWriteFailure(t *testing.T) {
	geo, dev := testGeometry(t, 16, 40)
	bt, err := CreateBlockTable(dev, geo, 2)
	require.NoError(t, err)
	assert.Equal(t, uint32(2), bt.Group())

	dev.failWrites = true
	err = bt.Update(dev, func(e *TableEditor) error {
		return e.SetType(7, BlockInode)
	})
	var tio *TableIOError
	require.True(t, errors.As(err, &tio))
	assert.Equal(t, uint32(2), tio.Group)
	typ, err := bt.GetType(7)
	require.NoError(t, err)
	assert.Equal(t, BlockFree, typ)

	// a later flush must not carry the failed batch to disk
	dev.failWrites = false
	require.NoError(t, bt.Write(dev))
	assert.Equal(t, byte(BlockFree), dev.data[32*16+7])
}

func TestConcurrentUpdatesSameGroup(t *testing.T) {
	geo, dev := testGeometry(t, 64, 64)
	bt, err := CreateBlockTable(dev, geo, 0)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := bt.Update(dev, func(e *TableEditor) error {
				local, ok := e.FindFree(bt.Len())
				if !ok {
					return ErrNoSpace
				}
				return e.SetType(local, BlockData)
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	loaded, err := LoadBlockTable(dev, geo, 0)
	require.NoError(t, err)
	assert.Equal(t, uint32(16), loaded.Count(loaded.Len())[BlockData])
}
