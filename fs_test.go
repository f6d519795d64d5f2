package main

import (
	"syscall"
	"testing"

	"github.com/hanwen/go-fuse/v2/fuse"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestFS(t *testing.T) *DsfsFS {
	fs, err := Create(newMemDevice(512*64), 512)
	require.NoError(t, err)
	return NewDsfsFS(fs, "dsfs")
}

func TestLookup(t *testing.T) {
	d := newTestFS(t)
	var out fuse.EntryOut
	code := d.Lookup(nil, &fuse.InHeader{NodeId: RootIno}, HelloName, &out)
	require.Equal(t, fuse.OK, code)
	assert.Equal(t, uint64(HelloIno), out.NodeId)
	assert.Equal(t, uint64(len(HelloContent)), out.Size)
	assert.Equal(t, uint32(fuse.S_IFREG|0644), out.Mode)
	assert.Equal(t, uint32(512), out.Blksize)

	assert.Equal(t, fuse.ENOENT, d.Lookup(nil, &fuse.InHeader{NodeId: RootIno}, "missing", &out))
	assert.Equal(t, fuse.ENOTDIR, d.Lookup(nil, &fuse.InHeader{NodeId: HelloIno}, "x", &out))
}

func TestGetAttr(t *testing.T) {
	d := newTestFS(t)
	var out fuse.AttrOut
	in := &fuse.GetAttrIn{InHeader: fuse.InHeader{NodeId: RootIno}}
	require.Equal(t, fuse.OK, d.GetAttr(nil, in, &out))
	assert.Equal(t, uint32(fuse.S_IFDIR|0755), out.Mode)

	in.NodeId = 99
	assert.Equal(t, fuse.ENOENT, d.GetAttr(nil, in, &out))
}

func TestOpenReadRelease(t *testing.T) {
	d := newTestFS(t)
	var open fuse.OpenOut
	in := &fuse.OpenIn{InHeader: fuse.InHeader{NodeId: HelloIno}}
	require.Equal(t, fuse.OK, d.Open(nil, in, &open))
	assert.Equal(t, 1, d.openfiles.Len())

	buf := make([]byte, 64)
	res, code := d.Read(nil, &fuse.ReadIn{InHeader: fuse.InHeader{NodeId: HelloIno}, Fh: open.Fh, Offset: 6}, buf)
	require.Equal(t, fuse.OK, code)
	data, code := res.Bytes(buf)
	require.Equal(t, fuse.OK, code)
	assert.Equal(t, "World!\n", string(data))

	res, code = d.Read(nil, &fuse.ReadIn{InHeader: fuse.InHeader{NodeId: HelloIno}, Fh: open.Fh, Offset: 100}, buf)
	require.Equal(t, fuse.OK, code)
	data, _ = res.Bytes(buf)
	assert.Empty(t, data)

	d.Release(nil, &fuse.ReleaseIn{InHeader: fuse.InHeader{NodeId: HelloIno}, Fh: open.Fh})
	assert.Equal(t, 0, d.openfiles.Len())
	_, code = d.Read(nil, &fuse.ReadIn{InHeader: fuse.InHeader{NodeId: HelloIno}, Fh: open.Fh}, buf)
	assert.Equal(t, fuse.Status(syscall.EBADF), code)

	in.Flags = O_RDWR
	assert.Equal(t, fuse.EACCES, d.Open(nil, in, &open))
}

func TestStatFs(t *testing.T) {
	d := newTestFS(t)
	_, err := d.fs.AllocBlock(BlockData)
	require.NoError(t, err)

	var out fuse.StatfsOut
	require.Equal(t, fuse.OK, d.StatFs(nil, &fuse.InHeader{}, &out))
	assert.Equal(t, uint64(64), out.Blocks)
	assert.Equal(t, uint64(64-3), out.Bfree)
	assert.Equal(t, uint32(512), out.Bsize)

	require.NoError(t, d.fs.Close())
	assert.Equal(t, fuse.EIO, d.StatFs(nil, &fuse.InHeader{}, &out))
}

func TestMountOptions(t *testing.T) {
	opts := MountOptions("dsfs", false, true, true)
	assert.Equal(t, "dsfs", opts.FsName)
	assert.Equal(t, []string{"auto_unmount", "allow_root"}, opts.Options)
	assert.Empty(t, MountOptions("dsfs", false, false, false).Options)
}
