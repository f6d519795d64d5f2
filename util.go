package main

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math"

	"github.com/hanwen/go-fuse/v2/fuse"
	"github.com/pkg/errors"
)

func JsonStringify(data interface{}) string {
	b, _ := json.MarshalIndent(data, "", "    ")
	return string(b)
}

// DivCeil returns ceil(a / b). b must not be zero.
func DivCeil(a, b uint32) uint32 {
	if b == 0 {
		panic(ErrUnreachable)
	}
	return uint32((uint64(a) + uint64(b) - 1) / uint64(b))
}

// toInt converts a geometry value to a slice index.
func toInt(v uint32) (int, error) {
	if uint64(v) > uint64(math.MaxInt) {
		return 0, errors.Wrapf(ErrTypeCast, "%d overflows int", v)
	}
	return int(v), nil
}

func toInt64(v uint64) (int64, error) {
	if v > math.MaxInt64 {
		return 0, errors.Wrapf(ErrTypeCast, "offset %d overflows int64", v)
	}
	return int64(v), nil
}

const colorRed = "\033[31m"
const colorReset = "\033[0m"

func Red(s string) string {
	return colorRed + s + colorReset
}

const O_RDONLY = 00
const O_WRONLY = 01
const O_RDWR = 02
const O_CREAT = 0100  /* not fcntl */
const O_EXCL = 0200   /* not fcntl */
const O_TRUNC = 01000 /* not fcntl */
const O_APPEND = 02000
const O_NONBLOCK = 04000
const O_SYNC = 010000

func DecodeFlags(flags uint32) []string {
	var ret []string
	if flags&(O_WRONLY|O_RDWR) == 0 {
		ret = append(ret, "O_RDONLY")
	}
	map_ := map[uint32]string{
		O_WRONLY:   "O_WRONLY",
		O_RDWR:     "O_RDWR",
		O_CREAT:    "O_CREAT",
		O_EXCL:     "O_EXCL",
		O_TRUNC:    "O_TRUNC",
		O_APPEND:   "O_APPEND",
		O_NONBLOCK: "O_NONBLOCK",
		O_SYNC:     "O_SYNC",
	}
	for k, v := range map_ {
		if flags&k != 0 {
			ret = append(ret, v)
		}
	}
	return ret
}

func accessMaskToStr(mask uint32) string {
	var str string
	if mask&fuse.R_OK != 0 {
		str += "R"
	}
	if mask&fuse.W_OK != 0 {
		str += "W"
	}
	if mask&fuse.X_OK != 0 {
		str += "X"
	}
	return str
}

func PreviewBuffer(buf []byte, length int) string {
	if len(buf) < length {
		length = len(buf)
	}
	str := string(buf[:length])
	strHex := hex.EncodeToString(buf[:length])
	return fmt.Sprintf("%s(%s)", str, strHex)
}
