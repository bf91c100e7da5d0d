package cartridge

import (
	"bytes"
	"encoding/binary"
	"io"
	"testing"

	"github.com/klauspost/compress/flate"
	"github.com/stretchr/testify/require"
)

// dirEntry mirrors Write's on-disk directory record, read back here for
// assertions since the package has no reader counterpart of its own.
type dirEntry struct {
	Name     string
	Type     SectionType
	Deflated bool
	Offset   uint32
	Size     uint32
}

func readString(r *bytes.Reader) string {
	var n uint32
	if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
		panic(err)
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		panic(err)
	}
	return string(buf)
}

func parse(t *testing.T, data []byte) (Header, []dirEntry, []byte) {
	t.Helper()
	r := bytes.NewReader(data)

	var gotMagic uint32
	require.NoError(t, binary.Read(r, binary.LittleEndian, &gotMagic))
	require.Equal(t, magic, gotMagic)

	var version uint16
	require.NoError(t, binary.Read(r, binary.LittleEndian, &version))
	require.Equal(t, formatVersion, version)

	var hdr Header
	hdr.Title = readString(r)
	require.NoError(t, binary.Read(r, binary.LittleEndian, &hdr.Width))
	require.NoError(t, binary.Read(r, binary.LittleEndian, &hdr.Height))
	require.NoError(t, binary.Read(r, binary.LittleEndian, &hdr.ThreadCount))
	require.NoError(t, binary.Read(r, binary.LittleEndian, &hdr.VSync))
	require.NoError(t, binary.Read(r, binary.LittleEndian, &hdr.Fullscreen))
	require.NoError(t, binary.Read(r, binary.LittleEndian, &hdr.Resizable))

	var count uint32
	require.NoError(t, binary.Read(r, binary.LittleEndian, &count))

	entries := make([]dirEntry, count)
	for i := range entries {
		entries[i].Name = readString(r)
		var typ uint8
		require.NoError(t, binary.Read(r, binary.LittleEndian, &typ))
		entries[i].Type = SectionType(typ)
		require.NoError(t, binary.Read(r, binary.LittleEndian, &entries[i].Deflated))
		require.NoError(t, binary.Read(r, binary.LittleEndian, &entries[i].Offset))
		require.NoError(t, binary.Read(r, binary.LittleEndian, &entries[i].Size))
	}

	payload, err := io.ReadAll(r)
	require.NoError(t, err)
	return hdr, entries, payload
}

func TestWritePrependsBuildIDSection(t *testing.T) {
	var buf bytes.Buffer
	hdr := Header{Title: "demo", Width: 640, Height: 480, ThreadCount: 4}
	err := Write(&buf, hdr, []Section{
		{Name: "main", Type: SectionProgram, Payload: []byte{1, 2, 3}},
	})
	require.NoError(t, err)

	gotHdr, entries, payload := parse(t, buf.Bytes())
	require.Equal(t, hdr, gotHdr)
	require.Len(t, entries, 2)
	require.Equal(t, "build-id", entries[0].Name)
	require.Equal(t, SectionRaw, entries[0].Type)
	require.Equal(t, uint32(16), entries[0].Size, "a uuid is 16 raw bytes")
	require.Equal(t, "main", entries[1].Name)
	require.False(t, entries[1].Deflated, "PROGRAM sections are never deflated")

	mainOffset := entries[1].Offset
	require.Equal(t, []byte{1, 2, 3}, payload[mainOffset:mainOffset+entries[1].Size])
}

func TestWriteDeflatesLargeNonProgramSections(t *testing.T) {
	large := bytes.Repeat([]byte{0xAB}, compressThreshold+1)
	var buf bytes.Buffer
	err := Write(&buf, Header{}, []Section{
		{Name: "atlas", Type: SectionImage, Payload: large},
	})
	require.NoError(t, err)

	_, entries, payload := parse(t, buf.Bytes())
	require.Len(t, entries, 2)
	atlas := entries[1]
	require.True(t, atlas.Deflated)
	require.Less(t, int(atlas.Size), len(large), "deflating a repeated byte run must shrink it")

	fr := flate.NewReader(bytes.NewReader(payload[atlas.Offset : atlas.Offset+atlas.Size]))
	defer fr.Close()
	inflated, err := io.ReadAll(fr)
	require.NoError(t, err)
	require.Equal(t, large, inflated)
}

func TestWriteSkipsCompressionBelowThreshold(t *testing.T) {
	small := []byte{1, 2, 3, 4}
	var buf bytes.Buffer
	err := Write(&buf, Header{}, []Section{
		{Name: "tiny", Type: SectionRaw, Payload: small},
	})
	require.NoError(t, err)

	_, entries, _ := parse(t, buf.Bytes())
	require.False(t, entries[1].Deflated)
	require.Equal(t, uint32(len(small)), entries[1].Size)
}
