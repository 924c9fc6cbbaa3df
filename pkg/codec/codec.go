// Package codec serialises voxel grids and meshes into compact binary blobs.
//
// Both formats share one frame: a 3-byte magic, a version byte, a fixed
// little-endian header, an xxhash64 of the compressed body, the body length
// and a zstd-compressed body.
package codec

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"

	xxhash "github.com/cespare/xxhash/v2"
	"github.com/klauspost/compress/zstd"
)

var (
	ErrBadMagic = errors.New("codec: unrecognised magic")
	ErrVersion  = errors.New("codec: unsupported version")
	ErrChecksum = errors.New("codec: checksum mismatch")
	ErrCorrupt  = errors.New("codec: corrupt payload")
)

const version1 = 1

// frameTrailer is checksum (8) + body length (4).
const frameTrailer = 12

// Digest returns the xxhash64 content digest of data.
func Digest(data []byte) uint64 {
	return xxhash.Sum64(data)
}

func compress(raw []byte) ([]byte, error) {
	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, err
	}
	defer enc.Close()
	return enc.EncodeAll(raw, nil), nil
}

func decompress(body []byte) ([]byte, error) {
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, err
	}
	defer dec.Close()
	out, err := dec.DecodeAll(body, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	return out, nil
}

// frame writes magic, version, header, checksum, length and the compressed
// body.
func frame(magic string, header []byte, raw []byte) ([]byte, error) {
	body, err := compress(raw)
	if err != nil {
		return nil, err
	}
	var out bytes.Buffer
	out.WriteString(magic)
	out.WriteByte(version1)
	out.Write(header)
	_ = binary.Write(&out, binary.LittleEndian, xxhash.Sum64(body))
	_ = binary.Write(&out, binary.LittleEndian, uint32(len(body)))
	out.Write(body)
	return out.Bytes(), nil
}

// unframe validates a frame with a fixed-size header and returns the header
// bytes and the decompressed body.
func unframe(magic string, headerLen int, data []byte) (header, raw []byte, err error) {
	pre := len(magic) + 1
	if len(data) < pre+headerLen+frameTrailer || string(data[:len(magic)]) != magic {
		return nil, nil, ErrBadMagic
	}
	if v := data[len(magic)]; v != version1 {
		return nil, nil, fmt.Errorf("%w: %d", ErrVersion, v)
	}
	header = data[pre : pre+headerLen]
	rest := data[pre+headerLen:]
	sum := binary.LittleEndian.Uint64(rest[:8])
	n := binary.LittleEndian.Uint32(rest[8:12])
	body := rest[frameTrailer:]
	if uint32(len(body)) != n {
		return nil, nil, fmt.Errorf("%w: body length %d, header says %d", ErrCorrupt, len(body), n)
	}
	if xxhash.Sum64(body) != sum {
		return nil, nil, ErrChecksum
	}
	raw, err = decompress(body)
	if err != nil {
		return nil, nil, err
	}
	return header, raw, nil
}
