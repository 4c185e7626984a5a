package provenance

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"sort"
)

const (
	markerSOI   = 0xD8
	markerEOI   = 0xD9
	markerSOS   = 0xDA
	markerAPP0  = 0xE0
	markerAPP11 = 0xEB
	markerAPP15 = 0xEF

	// storeInstance tags APP11 segments that carry our store so other
	// JUMBF payloads in the file are left alone.
	storeInstance = 0x0C2B

	// CI "JP", En instance u16, Z sequence u32
	storeHeaderLen = 8
	maxSegmentLen  = 0xFFFF - 2
	maxStoreChunk  = maxSegmentLen - storeHeaderLen
)

type jpegSegment struct {
	marker     byte
	payload    []byte
	standalone bool
}

type jpegFile struct {
	segments []jpegSegment
	// scan is everything from SOS (or EOI) to the end of the file
	scan []byte
}

func parseJPEG(data []byte) (*jpegFile, error) {
	if len(data) < 4 || data[0] != 0xFF || data[1] != markerSOI {
		return nil, fmt.Errorf("not a JPEG: missing SOI")
	}

	f := &jpegFile{}
	i := 2
	for {
		for i < len(data) && data[i] == 0xFF && i+1 < len(data) && data[i+1] == 0xFF {
			i++
		}
		if i+1 >= len(data) {
			return nil, fmt.Errorf("truncated JPEG at offset %d", i)
		}
		if data[i] != 0xFF {
			return nil, fmt.Errorf("expected marker at offset %d, found 0x%02x", i, data[i])
		}

		marker := data[i+1]
		switch {
		case marker == markerSOS || marker == markerEOI:
			f.scan = data[i:]
			return f, nil
		case marker == 0x01 || (marker >= 0xD0 && marker <= 0xD7):
			f.segments = append(f.segments, jpegSegment{marker: marker, standalone: true})
			i += 2
			continue
		}

		if i+4 > len(data) {
			return nil, fmt.Errorf("truncated segment header at offset %d", i)
		}
		length := int(binary.BigEndian.Uint16(data[i+2:]))
		if length < 2 || i+2+length > len(data) {
			return nil, fmt.Errorf("segment 0x%02x at offset %d overruns file", marker, i)
		}
		f.segments = append(f.segments, jpegSegment{marker: marker, payload: data[i+4 : i+2+length]})
		i += 2 + length
	}
}

func isStoreSegment(s jpegSegment) bool {
	return s.marker == markerAPP11 &&
		len(s.payload) >= storeHeaderLen &&
		s.payload[0] == 'J' && s.payload[1] == 'P' &&
		binary.BigEndian.Uint16(s.payload[2:]) == storeInstance
}

// store reassembles the embedded manifest store, if any.
func (f *jpegFile) store() ([]byte, bool, error) {
	type chunk struct {
		seq  uint32
		data []byte
	}
	var chunks []chunk
	for _, s := range f.segments {
		if isStoreSegment(s) {
			chunks = append(chunks, chunk{
				seq:  binary.BigEndian.Uint32(s.payload[4:]),
				data: s.payload[storeHeaderLen:],
			})
		}
	}
	if len(chunks) == 0 {
		return nil, false, nil
	}

	sort.Slice(chunks, func(a, b int) bool { return chunks[a].seq < chunks[b].seq })
	var buf bytes.Buffer
	for i, c := range chunks {
		if c.seq != uint32(i+1) {
			return nil, true, fmt.Errorf("store segment sequence broken at %d", c.seq)
		}
		buf.Write(c.data)
	}
	return buf.Bytes(), true, nil
}

// encode writes the file with store placed after the leading APPn
// segments. Existing store segments are always dropped; a nil store
// yields the bytes the asset hash covers.
func (f *jpegFile) encode(store []byte) []byte {
	var buf bytes.Buffer
	buf.Write([]byte{0xFF, markerSOI})

	rest := f.segments
	for len(rest) > 0 && rest[0].marker >= markerAPP0 && rest[0].marker <= markerAPP15 {
		if !isStoreSegment(rest[0]) {
			writeSegment(&buf, rest[0])
		}
		rest = rest[1:]
	}

	seq := uint32(1)
	for off := 0; off < len(store); off += maxStoreChunk {
		end := min(off+maxStoreChunk, len(store))
		payload := make([]byte, storeHeaderLen, storeHeaderLen+end-off)
		payload[0], payload[1] = 'J', 'P'
		binary.BigEndian.PutUint16(payload[2:], storeInstance)
		binary.BigEndian.PutUint32(payload[4:], seq)
		payload = append(payload, store[off:end]...)
		writeSegment(&buf, jpegSegment{marker: markerAPP11, payload: payload})
		seq++
	}

	for _, s := range rest {
		if !isStoreSegment(s) {
			writeSegment(&buf, s)
		}
	}

	buf.Write(f.scan)
	return buf.Bytes()
}

func writeSegment(buf *bytes.Buffer, s jpegSegment) {
	buf.Write([]byte{0xFF, s.marker})
	if s.standalone {
		return
	}
	var length [2]byte
	binary.BigEndian.PutUint16(length[:], uint16(len(s.payload)+2))
	buf.Write(length[:])
	buf.Write(s.payload)
}
