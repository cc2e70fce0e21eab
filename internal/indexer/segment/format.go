// Package segment owns the on-disk format of a persisted index. A segment is
// a single file holding the four index tables as independent sections:
//
//	header   32 bytes: magic, version, section count, doc count, created-at
//	section  16-byte header (id, stored len, raw len, crc32) + payload
//
// Each payload is a CBOR document (core deterministic encoding) compressed
// with zstd. Postings are stored as roaring64 portable bitmaps.
package segment

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"
	"github.com/klauspost/compress/zstd"
)

const (
	MagicBytes    uint32 = 0x4B575358
	FormatVersion uint32 = 1
	HeaderSize    int    = 32
	SectionHeader int    = 16

	// FileName is the segment written inside the index cache directory.
	FileName = "index.kws"
)

// SectionID identifies one of the persisted tables.
type SectionID uint32

const (
	SectionPostings SectionID = iota + 1
	SectionDocuments
	SectionTermFrequencies
	SectionDocLengths
)

var sectionOrder = []SectionID{
	SectionPostings,
	SectionDocuments,
	SectionTermFrequencies,
	SectionDocLengths,
}

func (id SectionID) String() string {
	switch id {
	case SectionPostings:
		return "postings"
	case SectionDocuments:
		return "documents"
	case SectionTermFrequencies:
		return "term_frequencies"
	case SectionDocLengths:
		return "doc_lengths"
	default:
		return fmt.Sprintf("section(%d)", uint32(id))
	}
}

// Header is the fixed-size block at the start of every segment file.
type Header struct {
	Magic        uint32
	Version      uint32
	SectionCount uint32
	DocCount     uint32
	CreatedAt    int64
}

var (
	encMode     cbor.EncMode
	decMode     cbor.DecMode
	zstdEncoder *zstd.Encoder
	zstdDecoder *zstd.Decoder
)

func init() {
	var err error
	encMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("segment: CBOR encoder initialization failed: " + err.Error())
	}
	decMode, err = cbor.DecOptions{}.DecMode()
	if err != nil {
		panic("segment: CBOR decoder initialization failed: " + err.Error())
	}
	zstdEncoder, err = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		panic("segment: zstd encoder initialization failed: " + err.Error())
	}
	zstdDecoder, err = zstd.NewReader(nil)
	if err != nil {
		panic("segment: zstd decoder initialization failed: " + err.Error())
	}
}
