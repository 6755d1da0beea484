package compiled

import (
	"bytes"
	"encoding/binary"
	"encoding/gob"
	"fmt"
	"strconv"
	"sync"

	"github.com/klauspost/compress/zstd"
	"github.com/zeebo/blake3"

	"linkvm/pkg/errors"
)

// FormatVersion is bumped whenever the serialized layout of Unit changes.
const FormatVersion uint32 = 3

// Magic identifies a serialized unit.
var Magic = [8]byte{'l', 'v', 'm', 'u', 'n', 'i', 't', 0}

// LibraryVersionHash identifies the library build that wrote a cache file.
// Units written by a different build are rejected by VerifyHeader.
var LibraryVersionHash = blake3.Sum256([]byte("linkvm compiled unit format v" + strconv.Itoa(int(FormatVersion))))

// HeaderSize is the encoded size of Header.
const HeaderSize = 8 + 4 + 32 + 8 + 32 + 4

// Header precedes the compressed payload of a serialized unit.
type Header struct {
	Magic           [8]byte
	Version         uint32
	LibraryHash     [32]byte
	SourceTimeStamp int64
	Checksum        [32]byte // blake3 of the compressed payload
	PayloadSize     uint32
}

// Encoder serializes units with a fixed zstd level. It is safe for concurrent use.
type Encoder struct {
	zw *zstd.Encoder
}

// NewEncoder creates an encoder; level follows the zstd numbering (1-22),
// 0 selects the default.
func NewEncoder(level int) (*Encoder, error) {
	opts := []zstd.EOption{}
	if level > 0 {
		opts = append(opts, zstd.WithEncoderLevel(zstd.EncoderLevelFromZstd(level)))
	}
	zw, err := zstd.NewWriter(nil, opts...)
	if err != nil {
		return nil, fmt.Errorf("create zstd encoder: %w", err)
	}
	return &Encoder{zw: zw}, nil
}

var (
	defaultEncoder     *Encoder
	defaultEncoderOnce sync.Once

	decoder     *zstd.Decoder
	decoderOnce sync.Once
)

// MaxDecodedSize bounds the decompressed payload of a serialized unit.
// Cache entries come from disk, so a payload claiming more is rejected.
const MaxDecodedSize = 64 << 20

func newDecoder(maxSize uint64) (*zstd.Decoder, error) {
	return zstd.NewReader(nil, zstd.WithDecoderMaxMemory(maxSize))
}

func sharedDecoder() *zstd.Decoder {
	decoderOnce.Do(func() {
		d, err := newDecoder(MaxDecodedSize)
		if err != nil {
			panic(fmt.Sprintf("compiled: create zstd decoder: %v", err))
		}
		decoder = d
	})
	return decoder
}

// Marshal serializes u with the default compression level.
func Marshal(u *Unit) ([]byte, error) {
	defaultEncoderOnce.Do(func() {
		enc, err := NewEncoder(0)
		if err != nil {
			panic(fmt.Sprintf("compiled: %v", err))
		}
		defaultEncoder = enc
	})
	return defaultEncoder.Marshal(u)
}

// Marshal serializes u: header, then a zstd-compressed gob payload.
func (e *Encoder) Marshal(u *Unit) ([]byte, error) {
	var raw bytes.Buffer
	if err := gob.NewEncoder(&raw).Encode(u); err != nil {
		return nil, fmt.Errorf("encode unit: %w", err)
	}
	payload := e.zw.EncodeAll(raw.Bytes(), nil)

	h := Header{
		Magic:           Magic,
		Version:         FormatVersion,
		LibraryHash:     LibraryVersionHash,
		SourceTimeStamp: u.SourceTimeStamp,
		Checksum:        blake3.Sum256(payload),
		PayloadSize:     uint32(len(payload)),
	}

	out := bytes.NewBuffer(make([]byte, 0, HeaderSize+len(payload)))
	if err := binary.Write(out, binary.LittleEndian, &h); err != nil {
		return nil, fmt.Errorf("encode header: %w", err)
	}
	out.Write(payload)
	return out.Bytes(), nil
}

// ReadHeader decodes the header of a serialized unit without verifying it.
func ReadHeader(data []byte) (Header, error) {
	var h Header
	if len(data) < HeaderSize {
		return h, &errors.FormatError{Msg: fmt.Sprintf("truncated unit: %d bytes", len(data))}
	}
	if err := binary.Read(bytes.NewReader(data[:HeaderSize]), binary.LittleEndian, &h); err != nil {
		return h, (&errors.FormatError{Msg: "unreadable header"}).CausedBy(err)
	}
	return h, nil
}

// VerifyHeader checks magic, format version, library hash and, when
// expectedSourceTimeStamp is non-zero, the recorded source timestamp.
func VerifyHeader(h Header, expectedSourceTimeStamp int64) error {
	if h.Magic != Magic {
		return &errors.FormatError{Msg: "magic bytes in the header do not match"}
	}
	if h.Version != FormatVersion {
		return &errors.FormatError{Msg: fmt.Sprintf("unit format version mismatch. Found %x expected %x", h.Version, FormatVersion)}
	}
	if h.LibraryHash != LibraryVersionHash {
		return &errors.FormatError{Msg: "library version mismatch. Expected compile hash does not match"}
	}
	if h.SourceTimeStamp != 0 && expectedSourceTimeStamp != 0 && h.SourceTimeStamp != expectedSourceTimeStamp {
		return &errors.FormatError{Msg: "source file has a different time stamp than cached file"}
	}
	return nil
}

// Unmarshal verifies and decodes a serialized unit. A zero
// expectedSourceTimeStamp skips the timestamp check.
func Unmarshal(data []byte, expectedSourceTimeStamp int64) (*Unit, error) {
	h, err := ReadHeader(data)
	if err != nil {
		return nil, err
	}
	if err := VerifyHeader(h, expectedSourceTimeStamp); err != nil {
		return nil, err
	}
	payload := data[HeaderSize:]
	if uint32(len(payload)) != h.PayloadSize {
		return nil, &errors.FormatError{Msg: fmt.Sprintf("payload size %d does not match header %d", len(payload), h.PayloadSize)}
	}
	if blake3.Sum256(payload) != h.Checksum {
		return nil, (&errors.FormatError{Msg: "payload checksum does not match"}).CausedBy(errors.ErrChecksumMismatch)
	}
	raw, err := sharedDecoder().DecodeAll(payload, nil)
	if err != nil {
		return nil, (&errors.FormatError{Msg: "cannot decompress payload"}).CausedBy(err)
	}
	var u Unit
	if err := gob.NewDecoder(bytes.NewReader(raw)).Decode(&u); err != nil {
		return nil, (&errors.FormatError{Msg: "cannot decode payload"}).CausedBy(err)
	}
	return &u, nil
}

// VerifyChecksum compares the unit's recorded dependency checksum with the
// one produced by hasher. Without a hasher the recorded checksum must be all zero.
func VerifyChecksum(u *Unit, hasher func() []byte) bool {
	if hasher == nil {
		return u.DependencyChecksum == [32]byte{}
	}
	sum := hasher()
	return len(sum) == len(u.DependencyChecksum) && bytes.Equal(sum, u.DependencyChecksum[:])
}
