package main

// BlockType tags the current role of a block. It is stored on disk as a
// single byte in the block table of the block's group.
type BlockType uint8

const (
	BlockFree             BlockType = 0x00
	BlockSuperBlock       BlockType = 0x01
	BlockBlockTable       BlockType = 0x02
	BlockInode            BlockType = 0x03
	BlockData             BlockType = 0x04
	BlockError            BlockType = 0x05
	BlockIndirectionTable BlockType = 0x06
)

// AllBlockTypes lists every tag in on-disk order.
var AllBlockTypes = []BlockType{
	BlockFree,
	BlockSuperBlock,
	BlockBlockTable,
	BlockInode,
	BlockData,
	BlockError,
	BlockIndirectionTable,
}

// DecodeBlockType maps a table byte to its tag. Unknown bytes are never
// coerced to a default.
func DecodeBlockType(b byte) (BlockType, error) {
	switch b {
	case 0x00:
		return BlockFree, nil
	case 0x01:
		return BlockSuperBlock, nil
	case 0x02:
		return BlockBlockTable, nil
	case 0x03:
		return BlockInode, nil
	case 0x04:
		return BlockData, nil
	case 0x05:
		return BlockError, nil
	case 0x06:
		return BlockIndirectionTable, nil
	default:
		return BlockFree, &InvalidBlockTypeError{Byte: b}
	}
}

func (t BlockType) Valid() bool {
	_, err := DecodeBlockType(byte(t))
	return err == nil
}

// Reserved reports whether blocks of this type belong to the filesystem
// layout itself and can not be allocated or freed.
func (t BlockType) Reserved() bool {
	return t == BlockSuperBlock || t == BlockBlockTable
}

func (t BlockType) String() string {
	switch t {
	case BlockFree:
		return "Free"
	case BlockSuperBlock:
		return "SuperBlock"
	case BlockBlockTable:
		return "BlockTable"
	case BlockInode:
		return "Inode"
	case BlockData:
		return "Data"
	case BlockError:
		return "Error"
	case BlockIndirectionTable:
		return "IndirectionTable"
	}
	return "Unknown"
}
