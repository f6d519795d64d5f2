/**
FUSE 接口（借助 go-fuse 的 RawFileSystem 在用户态运行）

The tree served here is fixed: a root directory holding hello.txt. Block
geometry and usage numbers are taken from the mounted *Dsfs.
*/
package main

import (
	"syscall"
	"time"

	"github.com/hanwen/go-fuse/v2/fuse"
	"github.com/sirupsen/logrus"
)

const RootIno = 1
const HelloIno = 2
const HelloName = "hello.txt"
const HelloContent = "Hello World!\n"

// attribute and entry cache lifetime handed to the kernel
const entryTTL = time.Second

type DsfsFS struct {
	fuse.RawFileSystem
	fs        *Dsfs
	openfiles *OpenfileMap
	fsName    string
	mtime     time.Time
}

func NewDsfsFS(fs *Dsfs, fsName string) *DsfsFS {
	return &DsfsFS{
		RawFileSystem: fuse.NewDefaultRawFileSystem(),
		fs:            fs,
		openfiles:     NewOpenfileMap(),
		fsName:        fsName,
		mtime:         time.Now(),
	}
}

func (d *DsfsFS) Init(server *fuse.Server) {
	logrus.Debugf("op=%s", "Init")
}

func (d *DsfsFS) String() string {
	return d.fsName
}

func (d *DsfsFS) SetDebug(dbg bool) {
	logrus.Debugf("op=%s, debug=%v", "SetDebug", dbg)
}

func (d *DsfsFS) fillAttr(ino uint64, out *fuse.Attr) bool {
	out.Ino = ino
	out.Blksize = d.fs.BlockSize()
	out.Owner = fuse.Owner{Uid: 0, Gid: 0}
	out.SetTimes(&d.mtime, &d.mtime, &d.mtime)
	switch ino {
	case RootIno:
		out.Mode = fuse.S_IFDIR | 0755
		out.Nlink = 2
		out.Size = 0
	case HelloIno:
		out.Mode = fuse.S_IFREG | 0644
		out.Nlink = 1
		out.Size = uint64(len(HelloContent))
		out.Blocks = (out.Size + 511) / 512
	default:
		return false
	}
	return true
}

func (d *DsfsFS) StatFs(cancel <-chan struct{}, header *fuse.InHeader, out *fuse.StatfsOut) fuse.Status {
	logrus.Debugf("[in ] op=%s", "StatFs")
	usage, err := d.fs.Stat()
	if err != nil {
		logrus.Errorf("op=%s, err=%v", "StatFs", err)
		return fuse.EIO
	}
	out.Blocks = uint64(usage.NumBlocks)
	out.Bfree = usage.Free()
	out.Bavail = usage.Free()
	out.Files = 2
	out.Ffree = 0
	out.Bsize = usage.BlockSize
	out.Frsize = usage.BlockSize
	out.NameLen = 255
	logrus.Debugf("[out] op=%s, blocks=%d, free=%d", "StatFs", out.Blocks, out.Bfree)
	return fuse.OK
}

// Lookup 根据文件名查找文件
func (d *DsfsFS) Lookup(cancel <-chan struct{}, header *fuse.InHeader, name string, out *fuse.EntryOut) (code fuse.Status) {
	logrus.Infof("[in ] op=%s, ino=%v, name=%s", "Lookup", header.NodeId, name)
	if header.NodeId != RootIno {
		logrus.Errorf("Lookup %q called on non-Directory node %d", name, header.NodeId)
		return fuse.ENOTDIR
	}
	if name != HelloName {
		return fuse.ENOENT
	}
	d.fillAttr(HelloIno, &out.Attr)
	out.NodeId = HelloIno
	out.Generation = 1
	out.SetEntryTimeout(entryTTL)
	out.SetAttrTimeout(entryTTL)
	logrus.Infof("[out] op=%s, ino=%v, name=%s", "Lookup", out.NodeId, name)
	return fuse.OK
}

func (d *DsfsFS) Forget(nodeID, nlookup uint64) {
	logrus.Debugf("op=%s, node=%v, nlookup=%v", "Forget", nodeID, nlookup)
}

func (d *DsfsFS) GetAttr(cancel <-chan struct{}, input *fuse.GetAttrIn, out *fuse.AttrOut) (code fuse.Status) {
	logrus.Infof("[in ] op=%s, ino=%v", "GetAttr", input.NodeId)
	if !d.fillAttr(input.NodeId, &out.Attr) {
		return fuse.ENOENT
	}
	out.SetTimeout(entryTTL)
	logrus.Infof("[out] op=%s", "GetAttr")
	return fuse.OK
}

// Access 检查文件的访问权限
func (d *DsfsFS) Access(cancel <-chan struct{}, input *fuse.AccessIn) (code fuse.Status) {
	logrus.Debugf("op=%s, ino=%v, mask=%v", "Access", input.NodeId, accessMaskToStr(input.Mask))
	if input.NodeId != RootIno && input.NodeId != HelloIno {
		return fuse.ENOENT
	}
	if input.Mask&fuse.W_OK != 0 {
		return fuse.EACCES
	}
	return fuse.OK
}

func (d *DsfsFS) Open(cancel <-chan struct{}, input *fuse.OpenIn, out *fuse.OpenOut) (status fuse.Status) {
	logrus.Infof("[in ] op=%s, ino=%v, flags=%v", "Open", input.NodeId, DecodeFlags(input.Flags))
	if input.NodeId != HelloIno {
		if input.NodeId == RootIno {
			return fuse.Status(syscall.EISDIR)
		}
		return fuse.ENOENT
	}
	if input.Flags&(O_WRONLY|O_RDWR) != 0 {
		return fuse.EACCES
	}
	out.Fh = d.openfiles.Register(input.NodeId, input.Flags)
	return fuse.OK
}

// 当读文件时，会调用 Read Flush Release
func (d *DsfsFS) Read(cancel <-chan struct{}, input *fuse.ReadIn, buf []byte) (fuse.ReadResult, fuse.Status) {
	logrus.Infof("[in ] op=%s, ino=%v, off=%d", "Read", input.NodeId, input.Offset)
	h := d.openfiles.Get(input.Fh)
	if h == nil {
		return nil, fuse.Status(syscall.EBADF)
	}
	if h.ino != HelloIno {
		return nil, fuse.ENOENT
	}
	content := []byte(HelloContent)
	if input.Offset >= uint64(len(content)) {
		return fuse.ReadResultData(nil), fuse.OK
	}
	n := copy(buf, content[input.Offset:])
	logrus.Infof("[out] op=%s, ino=%v, nbytes=%v, out=%s", "Read", input.NodeId, n, PreviewBuffer(buf, n))
	return fuse.ReadResultData(buf[:n]), fuse.OK
}

func (d *DsfsFS) Release(cancel <-chan struct{}, input *fuse.ReleaseIn) {
	logrus.Infof("[in ] op=%s, ino=%v, fh=%v", "Release", input.NodeId, input.Fh)
	d.openfiles.Remove(input.Fh)
}

func (d *DsfsFS) OpenDir(cancel <-chan struct{}, input *fuse.OpenIn, out *fuse.OpenOut) (status fuse.Status) {
	logrus.Infof("[in ] op=%s, ino=%v", "OpenDir", input.NodeId)
	if input.NodeId != RootIno {
		return fuse.ENOTDIR
	}
	out.Fh = d.openfiles.Register(input.NodeId, input.Flags)
	return fuse.OK
}

func (d *DsfsFS) ReleaseDir(input *fuse.ReleaseIn) {
	logrus.Infof("[in ] op=%s, ino=%v, fh=%d", "ReleaseDir", input.NodeId, input.Fh)
	d.openfiles.Remove(input.Fh)
}

func (d *DsfsFS) rootEntries() []fuse.DirEntry {
	return []fuse.DirEntry{
		{Name: ".", Ino: RootIno, Mode: fuse.S_IFDIR},
		{Name: "..", Ino: RootIno, Mode: fuse.S_IFDIR},
		{Name: HelloName, Ino: HelloIno, Mode: fuse.S_IFREG},
	}
}

func (d *DsfsFS) ReadDir(cancel <-chan struct{}, input *fuse.ReadIn, l *fuse.DirEntryList) fuse.Status {
	logrus.Infof("[in ] op=%s, ino=%v, off=%d", "ReadDir", input.NodeId, input.Offset)
	if input.NodeId != RootIno {
		return fuse.ENOTDIR
	}
	ents := d.rootEntries()
	for i := input.Offset; i < uint64(len(ents)); i++ {
		if !l.AddDirEntry(ents[i]) {
			break
		}
	}
	logrus.Debugf("[out] op=%s, entries=%d", "ReadDir", len(ents))
	return fuse.OK
}

func (d *DsfsFS) ReadDirPlus(cancel <-chan struct{}, input *fuse.ReadIn, l *fuse.DirEntryList) fuse.Status {
	logrus.Infof("[in ] op=%s, ino=%v, off=%d", "ReadDirPlus", input.NodeId, input.Offset)
	if input.NodeId != RootIno {
		return fuse.ENOTDIR
	}
	ents := d.rootEntries()
	for i := input.Offset; i < uint64(len(ents)); i++ {
		e := ents[i]
		entryDest := l.AddDirLookupEntry(e)
		if entryDest == nil {
			break
		}
		// No need to fill attributes for . and ..
		if e.Name == "." || e.Name == ".." {
			entryDest.Ino = uint64(fuse.FUSE_UNKNOWN_INO)
			continue
		}
		if stat := d.Lookup(cancel, &input.InHeader, e.Name, entryDest); stat != fuse.OK {
			logrus.Errorf("ReadDirPlus: failed to lookup %s", e.Name)
			return stat
		}
	}
	return fuse.OK
}
