package smx

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"os"

	"github.com/klauspost/compress/zlib"
)

const (
	// Magic identifies an SMX file ("FFPS" on disk)
	Magic uint32 = 0x53504646

	HeaderSize        = 24
	SectionHeaderSize = 12
	PubVarSize        = 8
	DataHeaderSize    = 12

	CompressionNone uint8 = 0
	CompressionGzip uint8 = 1

	myInfoName  = "myinfo"
	myInfoCells = 5
	cellSize    = 4
)

var byteOrder = binary.LittleEndian

// Header is the fixed file header
type Header struct {
	Magic       uint32
	Version     uint16
	Compression uint8
	DiskSize    uint32
	ImageSize   uint32
	Sections    uint8
	StringTab   uint32
	DataOffs    uint32
}

// Section is one entry of the section table
type Section struct {
	Name     string
	DataOffs uint32
	Size     uint32
}

// PubVar is an exported global variable
type PubVar struct {
	Name    string
	Address uint32
}

// MyInfo is the plugin information block every plugin declares
type MyInfo struct {
	Name        string `json:"name" yaml:"name"`
	Description string `json:"description" yaml:"description"`
	Author      string `json:"author" yaml:"author"`
	Version     string `json:"version" yaml:"version"`
	URL         string `json:"url" yaml:"url"`
}

// IsZero reports whether no field is set
func (m MyInfo) IsZero() bool {
	return m == MyInfo{}
}

// Plugin is a parsed SMX image
type Plugin struct {
	Header   Header
	Sections []Section
	image    []byte
}

// ReadMyInfo opens the plugin at path and returns its myinfo block
func ReadMyInfo(path string) (MyInfo, error) {
	p, err := Open(path)
	if err != nil {
		return MyInfo{}, err
	}
	return p.MyInfo()
}

// Open reads and parses the plugin at path
func Open(path string) (*Plugin, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read plugin %s: %w", path, err)
	}
	return Parse(data)
}

// Parse parses an SMX file held in memory
func Parse(data []byte) (*Plugin, error) {
	if len(data) < HeaderSize {
		return nil, fmt.Errorf("%w: header needs %d bytes, have %d", ErrTruncated, HeaderSize, len(data))
	}

	var h Header
	if err := binary.Read(bytes.NewReader(data[:HeaderSize]), byteOrder, &h); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTruncated, err)
	}
	if h.Magic != Magic {
		return nil, fmt.Errorf("%w: 0x%08x", ErrInvalidMagic, h.Magic)
	}

	image, err := inflate(h, data)
	if err != nil {
		return nil, err
	}

	p := &Plugin{Header: h, image: image}
	if err := p.readSections(); err != nil {
		return nil, err
	}
	return p, nil
}

func inflate(h Header, data []byte) ([]byte, error) {
	switch h.Compression {
	case CompressionNone:
		return data, nil
	case CompressionGzip:
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedCompression, h.Compression)
	}

	if int(h.DataOffs) > len(data) || h.DataOffs > h.ImageSize {
		return nil, fmt.Errorf("%w: data offset %d", ErrTruncated, h.DataOffs)
	}

	zr, err := zlib.NewReader(bytes.NewReader(data[h.DataOffs:]))
	if err != nil {
		return nil, fmt.Errorf("failed to open compressed image: %w", err)
	}
	defer zr.Close()

	image := make([]byte, h.ImageSize)
	copy(image, data[:h.DataOffs])
	if _, err := io.ReadFull(zr, image[h.DataOffs:]); err != nil {
		return nil, fmt.Errorf("failed to inflate image: %w", err)
	}
	return image, nil
}

func (p *Plugin) readSections() error {
	p.Sections = make([]Section, 0, p.Header.Sections)

	for i := 0; i < int(p.Header.Sections); i++ {
		off := HeaderSize + i*SectionHeaderSize
		raw, err := p.slice(uint32(off), SectionHeaderSize)
		if err != nil {
			return fmt.Errorf("section %d: %w", i, err)
		}

		nameOffs := byteOrder.Uint32(raw[0:4])
		name, err := p.cstring(p.Header.StringTab + nameOffs)
		if err != nil {
			return fmt.Errorf("section %d name: %w", i, err)
		}

		p.Sections = append(p.Sections, Section{
			Name:     name,
			DataOffs: byteOrder.Uint32(raw[4:8]),
			Size:     byteOrder.Uint32(raw[8:12]),
		})
	}
	return nil
}

// Section returns the named section
func (p *Plugin) Section(name string) (Section, bool) {
	for _, s := range p.Sections {
		if s.Name == name {
			return s, true
		}
	}
	return Section{}, false
}

func (p *Plugin) requireSection(name string) (Section, error) {
	s, ok := p.Section(name)
	if !ok {
		return Section{}, fmt.Errorf("%w: %s", ErrMissingSection, name)
	}
	return s, nil
}

// PubVars returns every exported global variable
func (p *Plugin) PubVars() ([]PubVar, error) {
	pubvars, ok := p.Section(".pubvars")
	if !ok {
		return nil, nil
	}
	names, err := p.requireSection(".names")
	if err != nil {
		return nil, err
	}

	count := pubvars.Size / PubVarSize
	vars := make([]PubVar, 0, count)
	for i := uint32(0); i < count; i++ {
		raw, err := p.slice(pubvars.DataOffs+i*PubVarSize, PubVarSize)
		if err != nil {
			return nil, fmt.Errorf("pubvar %d: %w", i, err)
		}
		name, err := p.cstring(names.DataOffs + byteOrder.Uint32(raw[4:8]))
		if err != nil {
			return nil, fmt.Errorf("pubvar %d name: %w", i, err)
		}
		vars = append(vars, PubVar{Name: name, Address: byteOrder.Uint32(raw[0:4])})
	}
	return vars, nil
}

// dataBase returns the image offset of the data blob in the .data section
func (p *Plugin) dataBase() (uint32, error) {
	data, err := p.requireSection(".data")
	if err != nil {
		return 0, err
	}
	raw, err := p.slice(data.DataOffs, DataHeaderSize)
	if err != nil {
		return 0, fmt.Errorf(".data header: %w", err)
	}
	return data.DataOffs + byteOrder.Uint32(raw[8:12]), nil
}

// MyInfo returns the plugin information block
func (p *Plugin) MyInfo() (MyInfo, error) {
	vars, err := p.PubVars()
	if err != nil {
		return MyInfo{}, err
	}

	var addr uint32
	found := false
	for _, v := range vars {
		if v.Name == myInfoName {
			addr, found = v.Address, true
			break
		}
	}
	if !found {
		return MyInfo{}, ErrNoMyInfo
	}

	base, err := p.dataBase()
	if err != nil {
		return MyInfo{}, err
	}

	raw, err := p.slice(base+addr, myInfoCells*cellSize)
	if err != nil {
		return MyInfo{}, fmt.Errorf("myinfo: %w", err)
	}

	fields := make([]string, myInfoCells)
	for i := range fields {
		ptr := byteOrder.Uint32(raw[i*cellSize:])
		s, err := p.cstring(base + ptr)
		if err != nil {
			return MyInfo{}, fmt.Errorf("myinfo field %d: %w", i, err)
		}
		fields[i] = s
	}

	return MyInfo{
		Name:        fields[0],
		Description: fields[1],
		Author:      fields[2],
		Version:     fields[3],
		URL:         fields[4],
	}, nil
}

func (p *Plugin) slice(off, n uint32) ([]byte, error) {
	end := uint64(off) + uint64(n)
	if end > uint64(len(p.image)) {
		return nil, fmt.Errorf("%w: [%d:%d] beyond %d bytes", ErrTruncated, off, end, len(p.image))
	}
	return p.image[off:end], nil
}

func (p *Plugin) cstring(off uint32) (string, error) {
	if uint64(off) >= uint64(len(p.image)) {
		return "", fmt.Errorf("%w: string at %d", ErrTruncated, off)
	}
	rest := p.image[off:]
	end := bytes.IndexByte(rest, 0)
	if end < 0 {
		return "", fmt.Errorf("%w: unterminated string at %d", ErrTruncated, off)
	}
	return string(rest[:end]), nil
}
