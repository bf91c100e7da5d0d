// Package cartridge writes the on-disk binary container a compiled
// manifest is packaged into (§6.2): a fixed header, a section
// directory, and concatenated section payloads.
package cartridge

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/google/uuid"
	"github.com/klauspost/compress/flate"
)

const (
	magic        uint32 = 0x53464c57 // "SFLW"
	formatVersion uint16 = 1
	// compressThreshold is the payload size above which a non-PROGRAM
	// section is deflated instead of stored (§3's klauspost/compress wiring).
	compressThreshold = 4096
)

// SectionType distinguishes how a runtime should interpret a section
// payload.
type SectionType uint8

const (
	SectionProgram SectionType = iota
	SectionImage
	SectionFont
	SectionPipeline
	SectionRaw
)

// Section is one named payload to embed. Storage is decided by the
// writer: PROGRAM is never compressed (a runtime mmaps it directly),
// others are deflated when they exceed compressThreshold.
type Section struct {
	Name    string
	Type    SectionType
	Payload []byte
}

// storedSection is a Section after compression has been decided.
type storedSection struct {
	Section
	Deflated bool
	Data     []byte
}

// Header mirrors the fixed on-disk header fields common to every
// cartridge, ahead of its variable-length section directory (§6.2).
type Header struct {
	Title       string
	Width       int32
	Height      int32
	ThreadCount int32
	VSync       bool
	Fullscreen  bool
	Resizable   bool
}

// Write serializes header, window/runtime settings, a build-id RAW
// section tagging this write with a fresh uuid (§3), and
// every section's directory entry and payload, in that order. All
// multi-byte fields are little-endian (§6.2).
func Write(w io.Writer, hdr Header, sections []Section) error {
	stored := make([]storedSection, 0, len(sections)+1)

	buildID := uuid.New()
	stored = append(stored, storedSection{
		Section: Section{Name: "build-id", Type: SectionRaw, Payload: buildID[:]},
		Data:    buildID[:],
	})

	for _, s := range sections {
		ss := storedSection{Section: s, Data: s.Payload}
		if s.Type != SectionProgram && len(s.Payload) > compressThreshold {
			deflated, err := deflate(s.Payload)
			if err != nil {
				return fmt.Errorf("deflate section %q: %w", s.Name, err)
			}
			ss.Deflated = true
			ss.Data = deflated
		}
		stored = append(stored, ss)
	}

	var out bytes.Buffer
	ww := func(v any) error { return binary.Write(&out, binary.LittleEndian, v) }

	if err := ww(magic); err != nil {
		return err
	}
	if err := ww(formatVersion); err != nil {
		return err
	}
	if err := writeString(&out, hdr.Title); err != nil {
		return err
	}
	fields := []any{hdr.Width, hdr.Height, hdr.ThreadCount, hdr.VSync, hdr.Fullscreen, hdr.Resizable}
	for _, f := range fields {
		if err := ww(f); err != nil {
			return err
		}
	}

	if err := ww(uint32(len(stored))); err != nil {
		return err
	}

	// offsets are computed relative to the start of the payload region,
	// which begins immediately after the directory; rewritten here once
	// every payload size is known (§6.2 "offsets are rewritten after
	// each payload is written").
	dirSize := 0
	for _, s := range stored {
		dirSize += 4 + len(s.Name) + 1 + 1 + 4 + 4 // name, type, deflated, offset, size
	}
	offset := uint32(0)
	for _, s := range stored {
		if err := writeString(&out, s.Name); err != nil {
			return err
		}
		if err := ww(uint8(s.Type)); err != nil {
			return err
		}
		if err := ww(s.Deflated); err != nil {
			return err
		}
		if err := ww(offset); err != nil {
			return err
		}
		if err := ww(uint32(len(s.Data))); err != nil {
			return err
		}
		offset += uint32(len(s.Data))
	}

	for _, s := range stored {
		out.Write(s.Data)
	}

	_, err := w.Write(out.Bytes())
	return err
}

func deflate(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	fw, err := flate.NewWriter(&buf, flate.DefaultCompression)
	if err != nil {
		return nil, err
	}
	if _, err := fw.Write(data); err != nil {
		return nil, err
	}
	if err := fw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func writeString(buf *bytes.Buffer, s string) error {
	if err := binary.Write(buf, binary.LittleEndian, uint32(len(s))); err != nil {
		return err
	}
	_, err := buf.WriteString(s)
	return err
}
