package main

import (
	"encoding/binary"
	"reflect"

	"github.com/go-restruct/restruct"
	"github.com/pkg/errors"
)

// On-disk structures are big-endian.
var diskOrder = binary.BigEndian

func BytesOf(data interface{}) ([]byte, error) {
	// 确保 data 是指针结构
	v := reflect.ValueOf(data)
	if v.Kind() != reflect.Ptr {
		return nil, errors.New("data must be a pointer")
	}
	return restruct.Pack(diskOrder, data)
}

func StructOf(data []byte, v interface{}) error {
	return restruct.Unpack(data, diskOrder, v)
}

func Pad(data []byte, size int) []byte {
	if len(data) == size {
		return data
	}
	if len(data) > size {
		panic("data is too long")
	}
	return append(data, make([]byte, size-len(data))...)
}
