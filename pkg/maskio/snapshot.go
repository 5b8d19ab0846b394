// Package maskio saves and restores erase masks.
//
// A snapshot is a small little-endian header followed by the zstd-compressed
// mask in tiled layout:
//
//	magic    [4]byte "VXMK"
//	version  uint8
//	xDim     uint32
//	yDim     uint32
//	zDim     uint32
//	checksum uint64  xxhash64 of the uncompressed mask
//	payload  zstd frame
package maskio

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	xxhash "github.com/cespare/xxhash/v2"
	"github.com/klauspost/compress/zstd"

	"voxeleraser/pkg/tiling"
)

const (
	magic   = "VXMK"
	version = 1
)

var (
	ErrBadMagic   = errors.New("maskio: not a mask snapshot")
	ErrVersion    = errors.New("maskio: unsupported snapshot version")
	ErrChecksum   = errors.New("maskio: checksum mismatch")
	ErrDimensions = errors.New("maskio: mask size does not match dimensions")
)

type header struct {
	Version  uint8
	XDim     uint32
	YDim     uint32
	ZDim     uint32
	Checksum uint64
}

// WriteSnapshot writes mask, laid out by layout, to w
func WriteSnapshot(w io.Writer, layout tiling.Layout, mask []byte) error {
	if len(mask) != layout.Len() {
		return fmt.Errorf("%w: have %d bytes, need %d", ErrDimensions, len(mask), layout.Len())
	}

	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return err
	}
	defer enc.Close()
	payload := enc.EncodeAll(mask, nil)

	var out bytes.Buffer
	out.WriteString(magic)
	hdr := header{
		Version:  version,
		XDim:     uint32(layout.XDim),
		YDim:     uint32(layout.YDim),
		ZDim:     uint32(layout.ZDim),
		Checksum: xxhash.Sum64(mask),
	}
	if err := binary.Write(&out, binary.LittleEndian, hdr); err != nil {
		return err
	}
	out.Write(payload)

	_, err = w.Write(out.Bytes())
	return err
}

// ReadSnapshot reads a snapshot written by WriteSnapshot and returns the
// layout it was saved with and the mask.
func ReadSnapshot(r io.Reader) (tiling.Layout, []byte, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return tiling.Layout{}, nil, err
	}
	if len(data) < len(magic) || string(data[:len(magic)]) != magic {
		return tiling.Layout{}, nil, ErrBadMagic
	}

	br := bytes.NewReader(data[len(magic):])
	var hdr header
	if err := binary.Read(br, binary.LittleEndian, &hdr); err != nil {
		return tiling.Layout{}, nil, fmt.Errorf("maskio: reading header: %w", err)
	}
	if hdr.Version != version {
		return tiling.Layout{}, nil, fmt.Errorf("%w: %d", ErrVersion, hdr.Version)
	}

	layout, err := tiling.NewLayout(int(hdr.XDim), int(hdr.YDim), int(hdr.ZDim))
	if err != nil {
		return tiling.Layout{}, nil, fmt.Errorf("maskio: %w", err)
	}

	payload := data[len(data)-br.Len():]
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return tiling.Layout{}, nil, err
	}
	defer dec.Close()

	mask, err := dec.DecodeAll(payload, nil)
	if err != nil {
		return tiling.Layout{}, nil, fmt.Errorf("maskio: decoding payload: %w", err)
	}
	if len(mask) != layout.Len() {
		return tiling.Layout{}, nil, fmt.Errorf("%w: have %d bytes, need %d", ErrDimensions, len(mask), layout.Len())
	}
	if xxhash.Sum64(mask) != hdr.Checksum {
		return tiling.Layout{}, nil, ErrChecksum
	}

	return layout, mask, nil
}
