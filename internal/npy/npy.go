// Package npy reads and writes 2-D little-endian float matrices in the NumPy .npy
// format.
package npy

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/hupe1980/exemplar/dataset"
	"github.com/hupe1980/exemplar/internal/mmap"
)

var magic = []byte("\x93NUMPY")

// ErrFormat is returned for files that are not supported .npy matrices.
var ErrFormat = errors.New("npy: unsupported format")

var (
	descrRe   = regexp.MustCompile(`'descr'\s*:\s*'([^']*)'`)
	fortranRe = regexp.MustCompile(`'fortran_order'\s*:\s*(True|False)`)
	shapeRe   = regexp.MustCompile(`'shape'\s*:\s*\(([^)]*)\)`)
)

// Header describes the matrix stored in a file.
type Header struct {
	Descr string
	Rows  int
	Cols  int

	// DataOffset is the byte offset of the first element.
	DataOffset int
}

func (h Header) elemSize() int {
	if h.Descr == "<f4" {
		return 4
	}
	return 8
}

// ParseHeader decodes the header at the start of b.
func ParseHeader(b []byte) (Header, error) {
	if len(b) < 10 || !bytes.Equal(b[:6], magic) {
		return Header{}, fmt.Errorf("%w: bad magic", ErrFormat)
	}

	var hlen, start int
	switch major := b[6]; major {
	case 1:
		hlen, start = int(binary.LittleEndian.Uint16(b[8:10])), 10
	case 2, 3:
		if len(b) < 12 {
			return Header{}, fmt.Errorf("%w: truncated header", ErrFormat)
		}
		hlen, start = int(binary.LittleEndian.Uint32(b[8:12])), 12
	default:
		return Header{}, fmt.Errorf("%w: version %d", ErrFormat, major)
	}
	if start+hlen > len(b) {
		return Header{}, fmt.Errorf("%w: truncated header", ErrFormat)
	}
	dict := string(b[start : start+hlen])

	h := Header{DataOffset: start + hlen}
	m := descrRe.FindStringSubmatch(dict)
	if m == nil {
		return Header{}, fmt.Errorf("%w: no descr", ErrFormat)
	}
	h.Descr = m[1]
	if h.Descr != "<f8" && h.Descr != "<f4" {
		return Header{}, fmt.Errorf("%w: dtype %s", ErrFormat, h.Descr)
	}
	if m := fortranRe.FindStringSubmatch(dict); m != nil && m[1] == "True" {
		return Header{}, fmt.Errorf("%w: fortran order", ErrFormat)
	}

	m = shapeRe.FindStringSubmatch(dict)
	if m == nil {
		return Header{}, fmt.Errorf("%w: no shape", ErrFormat)
	}
	var dims []int
	for _, part := range strings.Split(m[1], ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		n, err := strconv.Atoi(part)
		if err != nil || n < 0 {
			return Header{}, fmt.Errorf("%w: shape %q", ErrFormat, m[1])
		}
		dims = append(dims, n)
	}
	switch len(dims) {
	case 1:
		h.Rows, h.Cols = dims[0], 1
	case 2:
		h.Rows, h.Cols = dims[0], dims[1]
	default:
		return Header{}, fmt.Errorf("%w: %d dimensions", ErrFormat, len(dims))
	}
	return h, nil
}

// Decode converts the data section described by h into float64 values.
func Decode(h Header, body []byte) ([]float64, error) {
	n := h.Rows * h.Cols
	size := h.elemSize()
	if len(body) < n*size {
		return nil, fmt.Errorf("%w: %d data bytes, want %d", ErrFormat, len(body), n*size)
	}
	out := make([]float64, n)
	for i := range out {
		if size == 4 {
			out[i] = float64(math.Float32frombits(binary.LittleEndian.Uint32(body[i*4:])))
		} else {
			out[i] = math.Float64frombits(binary.LittleEndian.Uint64(body[i*8:]))
		}
	}
	return out, nil
}

// Load maps the file at path and returns its rows as vectors.
func Load(path string) (*dataset.Vectors, error) {
	m, err := mmap.Open(path)
	if err != nil {
		return nil, err
	}
	defer m.Close()

	h, err := ParseHeader(m.Bytes())
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	body, err := m.Region(h.DataOffset, m.Size()-h.DataOffset)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	_ = body.Advise(mmap.AccessSequential)

	data, err := Decode(h, body.Bytes())
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if h.Cols == 0 {
		return nil, fmt.Errorf("%s: %w: zero columns", path, ErrFormat)
	}
	return dataset.NewVectors(data, h.Cols)
}

// Write stores a rows x cols float64 matrix as a version 1.0 .npy file.
func Write(w io.Writer, data []float64, rows, cols int) error {
	if rows*cols != len(data) {
		return fmt.Errorf("npy: %d values do not form a %dx%d matrix", len(data), rows, cols)
	}
	dict := fmt.Sprintf("{'descr': '<f8', 'fortran_order': False, 'shape': (%d, %d), }", rows, cols)
	// Magic, version and length take 10 bytes; the header ends in a newline and is
	// padded so the data starts on a 64-byte boundary.
	pad := 64 - (10+len(dict)+1)%64
	if pad == 64 {
		pad = 0
	}
	dict += strings.Repeat(" ", pad) + "\n"

	var buf bytes.Buffer
	buf.Grow(10 + len(dict) + 8*len(data))
	buf.Write(magic)
	buf.Write([]byte{1, 0})
	_ = binary.Write(&buf, binary.LittleEndian, uint16(len(dict)))
	buf.WriteString(dict)
	var b [8]byte
	for _, v := range data {
		binary.LittleEndian.PutUint64(b[:], math.Float64bits(v))
		buf.Write(b[:])
	}
	_, err := w.Write(buf.Bytes())
	return err
}
