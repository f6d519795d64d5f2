package main

import (
	"sync"
	"sync/atomic"

	"github.com/sirupsen/logrus"
)

// 打开文件表，管理系统级别的文件把手

type FileHandle struct {
	fh    uint64
	ino   uint64
	flags uint32
}

type OpenfileMap struct {
	mu sync.Mutex
	// key: fh
	files map[uint64]*FileHandle
}

func NewOpenfileMap() *OpenfileMap {
	m := &OpenfileMap{
		files: map[uint64]*FileHandle{},
	}
	return m
}

func (m *OpenfileMap) Get(fh uint64) *FileHandle {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.files[fh]
}

func (m *OpenfileMap) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.files)
}

func (m *OpenfileMap) Register(ino uint64, flags uint32) uint64 {
	fh := NextGen()
	m.mu.Lock()
	m.files[fh] = &FileHandle{
		fh:    fh,
		ino:   ino,
		flags: flags,
	}
	m.mu.Unlock()
	logrus.Debugf(Red("[FS_HANDLE] Register fh=%v ino=%v flags=%v"), fh, ino, DecodeFlags(flags))
	return fh
}

func (m *OpenfileMap) Remove(fh uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	h, ok := m.files[fh]
	if !ok {
		logrus.Warnf("[FS_HANDLE] Remove unknown fh=%v", fh)
		return
	}
	logrus.Debugf(Red("[FS_HANDLE] Remove fh=%v, ino=%v"), fh, h.ino)
	delete(m.files, fh)
}

var nextgen uint64

// NextGen returns a new handle number, starting at 1.
func NextGen() uint64 {
	return atomic.AddUint64(&nextgen, 1)
}
