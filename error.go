package main

import "fmt"

type DsErr struct {
	Code int
	Msg  string
}

func (e DsErr) Error() string {
	return e.Msg
}

var ErrUnreachable = NewDsErr(1, "unreachable")
var ErrBadGeometry = NewDsErr(2, "bad filesystem geometry")
var ErrTypeCast = NewDsErr(3, "geometry value does not fit host index type")
var ErrClosed = NewDsErr(4, "filesystem is closed")
var ErrNoSpace = NewDsErr(5, "no space")
var ErrDeviceBusy = NewDsErr(6, "device is in use by another process")
var ErrReservedBlock = NewDsErr(7, "block is reserved")
var ErrShortIO = NewDsErr(8, "short read or write")
var ErrNoGroup = NewDsErr(9, "no such block group")
var ErrUnknownFormat = NewDsErr(10, "unknown output format")

func NewDsErr(code int, msg string) DsErr {
	return DsErr{
		Code: code,
		Msg:  msg,
	}
}

// OutOfBoundsError is returned when a local index is not inside a group.
type OutOfBoundsError struct {
	Index uint32
	Max   uint32
}

func (e *OutOfBoundsError) Error() string {
	return fmt.Sprintf("block index out of bounds: index %d, blocks in group %d", e.Index, e.Max)
}

// InvalidBlockTypeError reports a tag byte that is not a known BlockType.
// It is the only corruption signal of a block table.
type InvalidBlockTypeError struct {
	Byte byte
}

func (e *InvalidBlockTypeError) Error() string {
	return fmt.Sprintf("invalid block type byte 0x%02x", e.Byte)
}

// TableIOError wraps a device failure while reading or writing the table
// of a group.
type TableIOError struct {
	Group uint32
	Op    string
	Err   error
}

func (e *TableIOError) Error() string {
	return fmt.Sprintf("%s block table of group %d: %v", e.Op, e.Group, e.Err)
}

func (e *TableIOError) Unwrap() error {
	return e.Err
}
