package filter

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"io"
	"os"

	"github.com/FastFilter/xorfilter"
	"github.com/bits-and-blooms/bloom/v3"

	"github.com/Adithya-Monish-Kumar-K/osm-phrase-index/internal/artifact"
	apperrors "github.com/Adithya-Monish-Kumar-K/osm-phrase-index/pkg/errors"
)

// File layout, little-endian:
//
//	0  magic    uint32 "PIXF"
//	4  version  uint16
//	6  kind     uint16
//	8  keys     uint64
//	16 bodyLen  uint64
//	24 bodyCRC  uint32
//	28 reserved uint32
//	32 body
const (
	headerSize    = 32
	magic         = 0x46584950
	formatVersion = 1

	kindCodeXor8  = 1
	kindCodeBloom = 2

	maxBodyLen = 1 << 40
)

func kindCode(k Kind) uint16 {
	if k == KindBloom {
		return kindCodeBloom
	}
	return kindCodeXor8
}

// Write encodes f with its header.
func Write(w io.Writer, f Filter) error {
	var body bytes.Buffer
	switch v := f.(type) {
	case emptyFilter:
	case *xor8Filter:
		var fixed [12]byte
		binary.LittleEndian.PutUint64(fixed[0:], v.xf.Seed)
		binary.LittleEndian.PutUint32(fixed[8:], v.xf.BlockLength)
		body.Write(fixed[:])
		body.Write(v.xf.Fingerprints)
	case *bloomFilter:
		if _, err := v.bf.WriteTo(&body); err != nil {
			return fmt.Errorf("encoding bloom filter: %w", err)
		}
	default:
		return apperrors.Newf(apperrors.ErrBuild, "cannot encode filter %T", f)
	}

	var hdr [headerSize]byte
	binary.LittleEndian.PutUint32(hdr[0:], magic)
	binary.LittleEndian.PutUint16(hdr[4:], formatVersion)
	binary.LittleEndian.PutUint16(hdr[6:], kindCode(f.Kind()))
	binary.LittleEndian.PutUint64(hdr[8:], uint64(f.Len()))
	binary.LittleEndian.PutUint64(hdr[16:], uint64(body.Len()))
	binary.LittleEndian.PutUint32(hdr[24:], crc32.ChecksumIEEE(body.Bytes()))

	if _, err := w.Write(hdr[:]); err != nil {
		return fmt.Errorf("writing filter header: %w", err)
	}
	if _, err := w.Write(body.Bytes()); err != nil {
		return fmt.Errorf("writing filter body: %w", err)
	}
	return nil
}

// Read decodes a filter written by Write.
func Read(r io.Reader) (Filter, error) {
	var hdr [headerSize]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return nil, fmt.Errorf("%w: reading filter header: %w", apperrors.ErrCorrupt, err)
	}
	if binary.LittleEndian.Uint32(hdr[0:]) != magic {
		return nil, apperrors.Newf(apperrors.ErrCorrupt, "bad filter magic")
	}
	if v := binary.LittleEndian.Uint16(hdr[4:]); v != formatVersion {
		return nil, apperrors.Newf(apperrors.ErrCorrupt, "filter version %d, want %d", v, formatVersion)
	}
	var kind Kind
	switch binary.LittleEndian.Uint16(hdr[6:]) {
	case kindCodeXor8:
		kind = KindXor8
	case kindCodeBloom:
		kind = KindBloom
	default:
		return nil, apperrors.Newf(apperrors.ErrCorrupt, "unknown filter kind code %d", binary.LittleEndian.Uint16(hdr[6:]))
	}
	n := binary.LittleEndian.Uint64(hdr[8:])
	bodyLen := binary.LittleEndian.Uint64(hdr[16:])
	wantCRC := binary.LittleEndian.Uint32(hdr[24:])
	if bodyLen > maxBodyLen {
		return nil, apperrors.Newf(apperrors.ErrCorrupt, "filter body length %d", bodyLen)
	}

	body := make([]byte, bodyLen)
	if _, err := io.ReadFull(r, body); err != nil {
		return nil, fmt.Errorf("%w: reading filter body: %w", apperrors.ErrCorrupt, err)
	}
	if crc32.ChecksumIEEE(body) != wantCRC {
		return nil, apperrors.Newf(apperrors.ErrCorrupt, "filter checksum mismatch")
	}

	if n == 0 {
		return emptyFilter{kind: kind}, nil
	}
	switch kind {
	case KindBloom:
		bf := &bloom.BloomFilter{}
		if _, err := bf.ReadFrom(bytes.NewReader(body)); err != nil {
			return nil, fmt.Errorf("%w: decoding bloom filter: %w", apperrors.ErrCorrupt, err)
		}
		return &bloomFilter{bf: bf, n: int(n)}, nil
	default:
		if len(body) < 12 {
			return nil, apperrors.Newf(apperrors.ErrCorrupt, "xor filter body too short")
		}
		xf := &xorfilter.Xor8{
			Seed:        binary.LittleEndian.Uint64(body[0:]),
			BlockLength: binary.LittleEndian.Uint32(body[8:]),
		}
		xf.Fingerprints = body[12:]
		if uint64(len(xf.Fingerprints)) != 3*uint64(xf.BlockLength) {
			return nil, apperrors.Newf(apperrors.ErrCorrupt, "xor filter has %d fingerprints for block length %d",
				len(xf.Fingerprints), xf.BlockLength)
		}
		return &xor8Filter{xf: xf, n: int(n)}, nil
	}
}

// Save writes f to path atomically.
func Save(path string, f Filter) (artifact.Info, error) {
	return artifact.WriteFile(path, func(w io.Writer) error {
		return Write(w, f)
	})
}

// Load reads the filter stored at path.
func Load(path string) (Filter, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening filter: %w", err)
	}
	defer file.Close()
	return Read(file)
}
