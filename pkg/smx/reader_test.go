package smx

import (
	"bytes"
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/zlib"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type section struct {
	name string
	data []byte
}

// buildImage assembles an SMX image exporting myinfo when info is non-nil
func buildImage(t *testing.T, info *MyInfo, compress bool) []byte {
	t.Helper()

	var blob, names, pubvars bytes.Buffer
	if info != nil {
		fields := []string{info.Name, info.Description, info.Author, info.Version, info.URL}
		strOff := uint32(myInfoCells * cellSize)
		var strs bytes.Buffer
		for _, f := range fields {
			binary.Write(&blob, byteOrder, strOff+uint32(strs.Len()))
			strs.WriteString(f)
			strs.WriteByte(0)
		}
		blob.Write(strs.Bytes())

		names.WriteString("other\x00myinfo\x00")
		binary.Write(&pubvars, byteOrder, [2]uint32{0, 0})
		binary.Write(&pubvars, byteOrder, [2]uint32{0, 6})
	} else {
		names.WriteString("other\x00")
		binary.Write(&pubvars, byteOrder, [2]uint32{0, 0})
	}

	var data bytes.Buffer
	binary.Write(&data, byteOrder, [3]uint32{uint32(blob.Len()), uint32(blob.Len()), DataHeaderSize})
	data.Write(blob.Bytes())

	sections := []section{
		{".names", names.Bytes()},
		{".pubvars", pubvars.Bytes()},
		{".data", data.Bytes()},
	}

	var strtab bytes.Buffer
	nameOffs := make([]uint32, len(sections))
	for i, s := range sections {
		nameOffs[i] = uint32(strtab.Len())
		strtab.WriteString(s.name)
		strtab.WriteByte(0)
	}

	tableEnd := uint32(HeaderSize + len(sections)*SectionHeaderSize)
	stringTab := tableEnd
	offset := stringTab + uint32(strtab.Len())

	var table, body bytes.Buffer
	for i, s := range sections {
		binary.Write(&table, byteOrder, [3]uint32{nameOffs[i], offset + uint32(body.Len()), uint32(len(s.data))})
		body.Write(s.data)
	}

	imageSize := offset + uint32(body.Len())
	h := Header{
		Magic:       Magic,
		Version:     0x0102,
		Compression: CompressionNone,
		DiskSize:    imageSize,
		ImageSize:   imageSize,
		Sections:    uint8(len(sections)),
		StringTab:   stringTab,
		DataOffs:    tableEnd,
	}

	var rest bytes.Buffer
	rest.Write(table.Bytes())
	rest.Write(strtab.Bytes())
	rest.Write(body.Bytes())
	image := rest.Bytes()

	if !compress {
		var out bytes.Buffer
		require.NoError(t, binary.Write(&out, byteOrder, h))
		out.Write(image)
		return out.Bytes()
	}

	head := image[:tableEnd-HeaderSize]
	var z bytes.Buffer
	zw := zlib.NewWriter(&z)
	_, err := zw.Write(image[tableEnd-HeaderSize:])
	require.NoError(t, err)
	require.NoError(t, zw.Close())

	h.Compression = CompressionGzip
	h.DiskSize = tableEnd + uint32(z.Len())

	var out bytes.Buffer
	require.NoError(t, binary.Write(&out, byteOrder, h))
	out.Write(head)
	out.Write(z.Bytes())
	return out.Bytes()
}

var sampleInfo = MyInfo{
	Name:        "[INS] Respawn",
	Description: "Respawn players and bots",
	Author:      "jballou",
	Version:     "1.2.3",
	URL:         "http://jballou.com/insurgency",
}

func TestParse_MyInfo(t *testing.T) {
	for _, compress := range []bool{false, true} {
		name := "uncompressed"
		if compress {
			name = "compressed"
		}
		t.Run(name, func(t *testing.T) {
			p, err := Parse(buildImage(t, &sampleInfo, compress))
			require.NoError(t, err)

			assert.Len(t, p.Sections, 3)
			_, ok := p.Section(".data")
			assert.True(t, ok)

			vars, err := p.PubVars()
			require.NoError(t, err)
			require.Len(t, vars, 2)
			assert.Equal(t, "myinfo", vars[1].Name)

			info, err := p.MyInfo()
			require.NoError(t, err)
			assert.Equal(t, sampleInfo, info)
		})
	}
}

func TestParse_Errors(t *testing.T) {
	good := buildImage(t, &sampleInfo, false)

	badMagic := append([]byte(nil), good...)
	badMagic[0] = 'X'

	badCompression := append([]byte(nil), good...)
	badCompression[6] = 9

	tests := []struct {
		name string
		data []byte
		want error
	}{
		{"empty", nil, ErrTruncated},
		{"short header", good[:10], ErrTruncated},
		{"bad magic", badMagic, ErrInvalidMagic},
		{"unknown compression", badCompression, ErrUnsupportedCompression},
		{"truncated section table", good[:HeaderSize+4], ErrTruncated},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.data)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestMyInfo_Missing(t *testing.T) {
	p, err := Parse(buildImage(t, nil, false))
	require.NoError(t, err)

	_, err = p.MyInfo()
	assert.ErrorIs(t, err, ErrNoMyInfo)
}

func TestReadMyInfo(t *testing.T) {
	path := filepath.Join(t.TempDir(), "p.smx")
	require.NoError(t, os.WriteFile(path, buildImage(t, &sampleInfo, true), 0644))

	info, err := ReadMyInfo(path)
	require.NoError(t, err)
	assert.Equal(t, "1.2.3", info.Version)
	assert.False(t, info.IsZero())

	_, err = ReadMyInfo(filepath.Join(t.TempDir(), "missing.smx"))
	assert.Error(t, err)
	assert.True(t, MyInfo{}.IsZero())
}
