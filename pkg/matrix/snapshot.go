package matrix

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"
	"io"
	"math"
	"os"

	"github.com/golang/snappy"
	"golang.org/x/exp/mmap"
)

// SnapshotMagic identifies a matrix snapshot file ("FGMX").
const SnapshotMagic uint32 = 0x46474D58

// SnapshotVersion is the current snapshot layout.
const SnapshotVersion uint16 = 1

// ErrSnapshotCorrupt is returned when a snapshot fails validation.
var ErrSnapshotCorrupt = errors.New("matrix snapshot corrupt")

// SnapshotHeader precedes the compressed cell block.
// Format: [Header][Payload:PayloadLen], payload is snappy-compressed
// repeated [Row:4][Col:4][Weight:8] records.
type SnapshotHeader struct {
	Magic      uint32
	Version    uint16
	_          uint16
	Rows       uint32
	Cols       uint32
	RowCap     uint32
	ColCap     uint32
	NullBits   uint64
	Count      uint64
	PayloadLen uint32
	Checksum   uint32
}

const cellRecordSize = 16

// WriteSnapshot serializes m. Weights are stored as float64.
func WriteSnapshot[W Weight](w io.Writer, m *Matrix[W]) error {
	entries := m.Entries()
	raw := make([]byte, len(entries)*cellRecordSize)
	for n, e := range entries {
		off := n * cellRecordSize
		binary.BigEndian.PutUint32(raw[off:], uint32(e.Row))
		binary.BigEndian.PutUint32(raw[off+4:], uint32(e.Col))
		binary.BigEndian.PutUint64(raw[off+8:], math.Float64bits(float64(e.Weight)))
	}
	payload := snappy.Encode(nil, raw)

	header := SnapshotHeader{
		Magic:      SnapshotMagic,
		Version:    SnapshotVersion,
		Rows:       uint32(m.rows),
		Cols:       uint32(m.cols),
		RowCap:     uint32(m.rowCap),
		ColCap:     uint32(m.colCap),
		NullBits:   math.Float64bits(float64(m.nullVal)),
		Count:      uint64(len(entries)),
		PayloadLen: uint32(len(payload)),
		Checksum:   crc32.ChecksumIEEE(payload),
	}
	if err := binary.Write(w, binary.BigEndian, &header); err != nil {
		return fmt.Errorf("failed to write snapshot header: %w", err)
	}
	if _, err := w.Write(payload); err != nil {
		return fmt.Errorf("failed to write snapshot payload: %w", err)
	}
	return nil
}

// SaveSnapshot writes m to path, replacing any existing file.
func SaveSnapshot[W Weight](path string, m *Matrix[W]) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := WriteSnapshot(f, m); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

// ReadSnapshot decodes a snapshot produced by WriteSnapshot. Both caches of
// the returned matrix are clean.
func ReadSnapshot[W Weight](r io.Reader) (*Matrix[W], error) {
	var header SnapshotHeader
	if err := binary.Read(r, binary.BigEndian, &header); err != nil {
		return nil, fmt.Errorf("failed to read snapshot header: %w", err)
	}
	if err := header.validate(); err != nil {
		return nil, err
	}
	// ReadAll grows with the data actually present, so a corrupt length
	// cannot force a large allocation.
	payload, err := io.ReadAll(io.LimitReader(r, int64(header.PayloadLen)))
	if err != nil {
		return nil, fmt.Errorf("failed to read snapshot payload: %w", err)
	}
	if len(payload) != int(header.PayloadLen) {
		return nil, fmt.Errorf("truncated payload: %d of %d bytes: %w", len(payload), header.PayloadLen, ErrSnapshotCorrupt)
	}
	return decodeSnapshot[W](header, payload)
}

// OpenSnapshot loads a snapshot file through a read-only memory map.
func OpenSnapshot[W Weight](path string) (*Matrix[W], error) {
	reader, err := mmap.Open(path)
	if err != nil {
		return nil, err
	}
	defer reader.Close()

	headerSize := binary.Size(SnapshotHeader{})
	if reader.Len() < headerSize {
		return nil, fmt.Errorf("%s: file shorter than header: %w", path, ErrSnapshotCorrupt)
	}
	headerBuf := make([]byte, headerSize)
	if _, err := reader.ReadAt(headerBuf, 0); err != nil {
		return nil, err
	}
	var header SnapshotHeader
	if err := binary.Read(bytes.NewReader(headerBuf), binary.BigEndian, &header); err != nil {
		return nil, err
	}
	if err := header.validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if reader.Len()-headerSize < int(header.PayloadLen) {
		return nil, fmt.Errorf("%s: truncated payload: %w", path, ErrSnapshotCorrupt)
	}
	payload := make([]byte, header.PayloadLen)
	if _, err := reader.ReadAt(payload, int64(headerSize)); err != nil {
		return nil, err
	}
	return decodeSnapshot[W](header, payload)
}

func (h SnapshotHeader) validate() error {
	if h.Magic != SnapshotMagic {
		return fmt.Errorf("invalid magic %x: %w", h.Magic, ErrSnapshotCorrupt)
	}
	if h.Version != SnapshotVersion {
		return fmt.Errorf("unsupported version %d: %w", h.Version, ErrSnapshotCorrupt)
	}
	return nil
}

// decodeSnapshot expects a header that passed validate.
func decodeSnapshot[W Weight](header SnapshotHeader, payload []byte) (*Matrix[W], error) {
	if crc32.ChecksumIEEE(payload) != header.Checksum {
		return nil, fmt.Errorf("checksum mismatch: %w", ErrSnapshotCorrupt)
	}
	raw, err := snappy.Decode(nil, payload)
	if err != nil {
		return nil, fmt.Errorf("failed to decompress cells: %v: %w", err, ErrSnapshotCorrupt)
	}
	if uint64(len(raw)) != header.Count*cellRecordSize {
		return nil, fmt.Errorf("expected %d cells, got %d bytes: %w", header.Count, len(raw), ErrSnapshotCorrupt)
	}

	m := New[W](int(header.RowCap), int(header.ColCap), W(math.Float64frombits(header.NullBits)))
	for off := 0; off < len(raw); off += cellRecordSize {
		i := int(binary.BigEndian.Uint32(raw[off:]))
		j := int(binary.BigEndian.Uint32(raw[off+4:]))
		w := W(math.Float64frombits(binary.BigEndian.Uint64(raw[off+8:])))
		if err := m.Set(i, j, w); err != nil {
			return nil, fmt.Errorf("cell (%d,%d): %v: %w", i, j, err, ErrSnapshotCorrupt)
		}
	}
	m.rows, m.cols = int(header.Rows), int(header.Cols)
	m.Rebuild()
	return m, nil
}
