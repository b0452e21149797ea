package eventparser

import (
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"

	"task-indexer-sol/pkg/types"
)

// ErrBufferUnderflow 读取越过缓冲区末尾。单条事件/指令级错误，不会向上传播中断批处理。
var ErrBufferUnderflow = errors.New("buffer underflow")

// 定长字段读取器：从 buf 的 offset 处解码一个值，返回 (字符串化取值, 下一个偏移)。
// 所有 64 位整数字符串化为十进制，避免 JSON 边界精度丢失。

func readPubkey(buf []byte, offset int) (string, int, error) {
	if offset+32 > len(buf) {
		return "", 0, fmt.Errorf("%w: pubkey at offset=%d, len=%d", ErrBufferUnderflow, offset, len(buf))
	}
	pk, err := types.PubkeyFromBytes(buf[offset : offset+32])
	if err != nil {
		return "", 0, err
	}
	return pk.String(), offset + 32, nil
}

func readU64(buf []byte, offset int) (string, int, error) {
	if offset+8 > len(buf) {
		return "", 0, fmt.Errorf("%w: u64 at offset=%d, len=%d", ErrBufferUnderflow, offset, len(buf))
	}
	v := binary.LittleEndian.Uint64(buf[offset : offset+8])
	return strconv.FormatUint(v, 10), offset + 8, nil
}

func readI64(buf []byte, offset int) (string, int, error) {
	if offset+8 > len(buf) {
		return "", 0, fmt.Errorf("%w: i64 at offset=%d, len=%d", ErrBufferUnderflow, offset, len(buf))
	}
	v := int64(binary.LittleEndian.Uint64(buf[offset : offset+8]))
	return strconv.FormatInt(v, 10), offset + 8, nil
}

func readU16(buf []byte, offset int) (string, int, error) {
	if offset+2 > len(buf) {
		return "", 0, fmt.Errorf("%w: u16 at offset=%d, len=%d", ErrBufferUnderflow, offset, len(buf))
	}
	v := binary.LittleEndian.Uint16(buf[offset : offset+2])
	return strconv.FormatUint(uint64(v), 10), offset + 2, nil
}

func readU8(buf []byte, offset int) (string, int, error) {
	if offset+1 > len(buf) {
		return "", 0, fmt.Errorf("%w: u8 at offset=%d, len=%d", ErrBufferUnderflow, offset, len(buf))
	}
	return strconv.FormatUint(uint64(buf[offset]), 10), offset + 1, nil
}

func readHash32(buf []byte, offset int) (string, int, error) {
	if offset+32 > len(buf) {
		return "", 0, fmt.Errorf("%w: hash32 at offset=%d, len=%d", ErrBufferUnderflow, offset, len(buf))
	}
	return hex.EncodeToString(buf[offset : offset+32]), offset + 32, nil
}
