package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type Record struct {
	Kind  uint8  `struct:"uint8"`
	Count uint32 `struct:"uint32"`
}

func TestBytesOfIsBigEndian(t *testing.T) {
	b, err := BytesOf(&Record{Kind: 2, Count: 0x01020304})
	require.NoError(t, err)
	assert.Equal(t, []byte{0x02, 0x01, 0x02, 0x03, 0x04}, b)

	var r Record
	require.NoError(t, StructOf(b, &r))
	assert.Equal(t, Record{Kind: 2, Count: 0x01020304}, r)
}

func TestBytesOfRejectsValue(t *testing.T) {
	_, err := BytesOf(Record{})
	assert.Error(t, err)
}

func TestPad(t *testing.T) {
	assert.Len(t, Pad([]byte{1, 2}, 8), 8)
	assert.Panics(t, func() { Pad([]byte{1, 2, 3}, 2) })
}
