package geotiff

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/klauspost/compress/zlib"
)

const (
	tagImageWidth      = 256
	tagImageLength     = 257
	tagBitsPerSample   = 258
	tagCompression     = 259
	tagPhotometric     = 262
	tagStripOffsets    = 273
	tagSamplesPerPixel = 277
	tagRowsPerStrip    = 278
	tagStripByteCounts = 279
	tagPlanarConfig    = 284
	tagPredictor       = 317
	tagTileWidth       = 322
	tagTileLength      = 323
	tagTileOffsets     = 324
	tagTileByteCounts  = 325
	tagSampleFormat    = 339
	tagModelPixelScale = 33550
	tagModelTiepoint   = 33922
	tagGeoKeyDirectory = 34735

	tagGDALNoData = 42113
)

const (
	compressionNone       = 1
	compressionLZW        = 5
	compressionDeflate    = 8
	compressionPackBits   = 32773
	compressionDeflateOld = 32946
)

const (
	geoKeyModelType      = 1024
	geoKeyRasterType     = 1025
	geoKeyGeographicType = 2048
	geoKeyProjectedType  = 3072
	geoKeyLinearUnits    = 3076
)

type ifdEntry struct {
	typ    uint16
	count  uint32
	inline [4]byte
	offset uint32
}

var typeSizes = map[uint16]int{
	1: 1, 2: 1, 3: 2, 4: 4, 5: 8, 6: 1, 7: 1, 8: 2, 9: 4, 10: 8, 11: 4, 12: 8,
}

// IsTIFF reports whether data starts with a classic TIFF header in either
// byte order. Services that report errors as XML with a 200 status get
// screened with this before their responses are decoded or saved.
func IsTIFF(data []byte) bool {
	if len(data) < 4 {
		return false
	}
	le := data[0] == 'I' && data[1] == 'I' && data[2] == 42 && data[3] == 0
	be := data[0] == 'M' && data[1] == 'M' && data[2] == 0 && data[3] == 42
	return le || be
}

// Read decodes the first image of a GeoTIFF file. Overview images in later
// IFDs (cloud-optimised layouts) are ignored.
func Read(path string) (*Raster, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	r, err := Decode(data)
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", path, err)
	}
	return r, nil
}

// Decode decodes the first image of a GeoTIFF held in memory.
func Decode(data []byte) (*Raster, error) {
	if len(data) < 8 {
		return nil, fmt.Errorf("file too short for a TIFF header")
	}

	var order binary.ByteOrder
	switch {
	case data[0] == 'I' && data[1] == 'I':
		order = binary.LittleEndian
	case data[0] == 'M' && data[1] == 'M':
		order = binary.BigEndian
	default:
		return nil, fmt.Errorf("not a TIFF file")
	}

	switch order.Uint16(data[2:4]) {
	case 42:
	case 43:
		return nil, fmt.Errorf("BigTIFF is not supported")
	default:
		return nil, fmt.Errorf("bad TIFF magic")
	}

	ifdOffset := order.Uint32(data[4:8])
	if int64(ifdOffset)+2 > int64(len(data)) {
		return nil, fmt.Errorf("IFD offset out of range")
	}

	entries := map[uint16]ifdEntry{}
	n := int(order.Uint16(data[ifdOffset : ifdOffset+2]))
	pos := int(ifdOffset) + 2
	if pos+n*12 > len(data) {
		return nil, fmt.Errorf("IFD truncated")
	}
	for i := 0; i < n; i++ {
		e := data[pos+i*12 : pos+i*12+12]
		entry := ifdEntry{
			typ:    order.Uint16(e[2:4]),
			count:  order.Uint32(e[4:8]),
			offset: order.Uint32(e[8:12]),
		}
		copy(entry.inline[:], e[8:12])
		entries[order.Uint16(e[0:2])] = entry
	}

	d := &decoder{data: data, order: order, entries: entries}
	return d.decode()
}

type decoder struct {
	data    []byte
	order   binary.ByteOrder
	entries map[uint16]ifdEntry
}

// raw returns the value bytes of an entry, whether inline or at an offset.
func (d *decoder) raw(e ifdEntry) ([]byte, error) {
	size, ok := typeSizes[e.typ]
	if !ok {
		return nil, fmt.Errorf("unknown TIFF field type %d", e.typ)
	}
	total := size * int(e.count)
	if total <= 4 {
		return e.inline[:total], nil
	}
	if int64(e.offset)+int64(total) > int64(len(d.data)) {
		return nil, fmt.Errorf("field data out of range")
	}
	return d.data[e.offset : int(e.offset)+total], nil
}

// uints reads an integer-valued field (BYTE, SHORT or LONG).
func (d *decoder) uints(tag uint16) ([]uint32, error) {
	e, ok := d.entries[tag]
	if !ok {
		return nil, nil
	}
	raw, err := d.raw(e)
	if err != nil {
		return nil, err
	}
	out := make([]uint32, e.count)
	for i := range out {
		switch e.typ {
		case 1:
			out[i] = uint32(raw[i])
		case 3:
			out[i] = uint32(d.order.Uint16(raw[i*2:]))
		case 4:
			out[i] = d.order.Uint32(raw[i*4:])
		default:
			return nil, fmt.Errorf("tag %d has unexpected type %d", tag, e.typ)
		}
	}
	return out, nil
}

func (d *decoder) uintVal(tag uint16, def uint32) (uint32, error) {
	vals, err := d.uints(tag)
	if err != nil {
		return 0, err
	}
	if len(vals) == 0 {
		return def, nil
	}
	return vals[0], nil
}

// doubles reads a DOUBLE-valued field.
func (d *decoder) doubles(tag uint16) ([]float64, error) {
	e, ok := d.entries[tag]
	if !ok {
		return nil, nil
	}
	if e.typ != 12 {
		return nil, fmt.Errorf("tag %d has type %d, want DOUBLE", tag, e.typ)
	}
	raw, err := d.raw(e)
	if err != nil {
		return nil, err
	}
	out := make([]float64, e.count)
	for i := range out {
		out[i] = math.Float64frombits(d.order.Uint64(raw[i*8:]))
	}
	return out, nil
}

func (d *decoder) ascii(tag uint16) (string, error) {
	e, ok := d.entries[tag]
	if !ok {
		return "", nil
	}
	raw, err := d.raw(e)
	if err != nil {
		return "", err
	}
	return strings.TrimRight(string(raw), "\x00"), nil
}

func (d *decoder) decode() (*Raster, error) {
	width, err := d.uintVal(tagImageWidth, 0)
	if err != nil {
		return nil, err
	}
	height, err := d.uintVal(tagImageLength, 0)
	if err != nil {
		return nil, err
	}
	if width == 0 || height == 0 {
		return nil, fmt.Errorf("missing image dimensions")
	}

	samples, err := d.uintVal(tagSamplesPerPixel, 1)
	if err != nil {
		return nil, err
	}
	if samples != 1 {
		return nil, fmt.Errorf("expected a single band, found %d samples per pixel", samples)
	}

	bits, err := d.uintVal(tagBitsPerSample, 1)
	if err != nil {
		return nil, err
	}
	format, err := d.uintVal(tagSampleFormat, 1)
	if err != nil {
		return nil, err
	}

	typ, err := sampleType(bits, format)
	if err != nil {
		return nil, err
	}

	compression, err := d.uintVal(tagCompression, compressionNone)
	if err != nil {
		return nil, err
	}
	predictor, err := d.uintVal(tagPredictor, 1)
	if err != nil {
		return nil, err
	}

	grid, err := d.grid(int(width), int(height))
	if err != nil {
		return nil, err
	}

	raster := New(grid, typ)

	if nodata, err := d.ascii(tagGDALNoData); err != nil {
		return nil, err
	} else if nodata != "" {
		if v, err := strconv.ParseFloat(strings.TrimSpace(nodata), 64); err == nil {
			raster.SetNoData(v)
		}
	}

	bytesPer := int(bits) / 8

	if _, tiled := d.entries[tagTileOffsets]; tiled {
		err = d.readTiles(raster, bytesPer, typ, compression, predictor)
	} else {
		err = d.readStrips(raster, bytesPer, typ, compression, predictor)
	}
	if err != nil {
		return nil, err
	}

	return raster, nil
}

func sampleType(bits, format uint32) (SampleType, error) {
	switch {
	case bits == 8 && format == 1:
		return Uint8, nil
	case bits == 16 && format == 1:
		return Uint16, nil
	case bits == 16 && format == 2:
		return Int16, nil
	case bits == 32 && format == 1:
		return Uint32, nil
	case bits == 32 && format == 3:
		return Float32, nil
	case bits == 64 && format == 3:
		return Float64, nil
	}
	return 0, fmt.Errorf("unsupported sample encoding: %d bits, format %d", bits, format)
}

// grid assembles georeferencing from the GeoTIFF tags. A raster with no
// ModelPixelScale is treated as a plain image with a unit grid.
func (d *decoder) grid(width, height int) (Grid, error) {
	g := Grid{Width: width, Height: height, DX: 1, DY: 1}

	scale, err := d.doubles(tagModelPixelScale)
	if err != nil {
		return g, err
	}
	tie, err := d.doubles(tagModelTiepoint)
	if err != nil {
		return g, err
	}

	if len(scale) >= 2 && len(tie) >= 6 {
		g.DX = scale[0]
		g.DY = scale[1]
		// Tiepoint maps raster point (i,j) to model point (x,y).
		g.OriginX = tie[3] - tie[0]*g.DX
		g.OriginY = tie[4] + tie[1]*g.DY
	}

	keys, err := d.uints(tagGeoKeyDirectory)
	if err != nil {
		return g, err
	}
	if len(keys) >= 4 {
		numKeys := int(keys[3])
		for i := 0; i < numKeys && 4+i*4+3 < len(keys); i++ {
			id := keys[4+i*4]
			loc := keys[4+i*4+1]
			val := keys[4+i*4+3]
			if loc != 0 {
				continue
			}
			switch id {
			case geoKeyProjectedType:
				g.EPSG = int(val)
			case geoKeyGeographicType:
				if g.EPSG == 0 {
					g.EPSG = int(val)
				}
			}
		}
	}

	return g, nil
}

func (d *decoder) chunk(offset, count uint32, compression uint32) ([]byte, error) {
	if int64(offset)+int64(count) > int64(len(d.data)) {
		return nil, fmt.Errorf("image data out of range")
	}
	raw := d.data[offset : offset+count]

	switch compression {
	case compressionNone:
		return raw, nil
	case compressionDeflate, compressionDeflateOld:
		zr, err := zlib.NewReader(bytes.NewReader(raw))
		if err != nil {
			return nil, fmt.Errorf("failed to open deflate stream: %w", err)
		}
		defer zr.Close()
		out, err := io.ReadAll(zr)
		if err != nil {
			return nil, fmt.Errorf("failed to inflate image data: %w", err)
		}
		return out, nil
	case compressionLZW:
		return nil, fmt.Errorf("LZW compression is not supported; re-export with deflate")
	case compressionPackBits:
		return unpackBits(raw), nil
	}
	return nil, fmt.Errorf("unsupported compression %d", compression)
}

// unpackBits expands PackBits run-length encoding (TIFF 6.0 section 9).
func unpackBits(src []byte) []byte {
	var out []byte
	for i := 0; i < len(src); {
		h := int8(src[i])
		i++
		switch {
		case h >= 0:
			n := int(h) + 1
			if i+n > len(src) {
				n = len(src) - i
			}
			out = append(out, src[i:i+n]...)
			i += n
		case h != -128:
			if i < len(src) {
				for j := 0; j < 1-int(h); j++ {
					out = append(out, src[i])
				}
				i++
			}
		}
	}
	return out
}

// undoPredictor reverses horizontal differencing in place, row by row.
func undoPredictor(buf []byte, width, bytesPer int, order binary.ByteOrder) {
	rowBytes := width * bytesPer
	for rowStart := 0; rowStart+rowBytes <= len(buf); rowStart += rowBytes {
		row := buf[rowStart : rowStart+rowBytes]
		switch bytesPer {
		case 1:
			for i := 1; i < width; i++ {
				row[i] += row[i-1]
			}
		case 2:
			for i := 1; i < width; i++ {
				prev := order.Uint16(row[(i-1)*2:])
				cur := order.Uint16(row[i*2:])
				order.PutUint16(row[i*2:], cur+prev)
			}
		case 4:
			for i := 1; i < width; i++ {
				prev := order.Uint32(row[(i-1)*4:])
				cur := order.Uint32(row[i*4:])
				order.PutUint32(row[i*4:], cur+prev)
			}
		}
	}
}

func (d *decoder) sample(buf []byte, i int, typ SampleType) float64 {
	switch typ {
	case Uint8:
		return float64(buf[i])
	case Uint16:
		return float64(d.order.Uint16(buf[i*2:]))
	case Int16:
		return float64(int16(d.order.Uint16(buf[i*2:])))
	case Uint32:
		return float64(d.order.Uint32(buf[i*4:]))
	case Float32:
		return float64(math.Float32frombits(d.order.Uint32(buf[i*4:])))
	case Float64:
		return math.Float64frombits(d.order.Uint64(buf[i*8:]))
	}
	return 0
}

func (d *decoder) readStrips(r *Raster, bytesPer int, typ SampleType, compression, predictor uint32) error {
	offsets, err := d.uints(tagStripOffsets)
	if err != nil {
		return err
	}
	counts, err := d.uints(tagStripByteCounts)
	if err != nil {
		return err
	}
	if len(offsets) == 0 || len(offsets) != len(counts) {
		return fmt.Errorf("inconsistent strip layout")
	}

	rowsPerStrip, err := d.uintVal(tagRowsPerStrip, uint32(r.Grid.Height))
	if err != nil {
		return err
	}
	if rowsPerStrip == 0 {
		rowsPerStrip = uint32(r.Grid.Height)
	}

	width := r.Grid.Width
	for s := range offsets {
		buf, err := d.chunk(offsets[s], counts[s], compression)
		if err != nil {
			return fmt.Errorf("strip %d: %w", s, err)
		}
		if predictor == 2 {
			undoPredictor(buf, width, bytesPer, d.order)
		}

		startRow := s * int(rowsPerStrip)
		rows := int(rowsPerStrip)
		if startRow+rows > r.Grid.Height {
			rows = r.Grid.Height - startRow
		}
		if len(buf) < rows*width*bytesPer {
			return fmt.Errorf("strip %d holds %d bytes, want %d", s, len(buf), rows*width*bytesPer)
		}

		for row := 0; row < rows; row++ {
			for col := 0; col < width; col++ {
				r.Set(col, startRow+row, d.sample(buf, row*width+col, typ))
			}
		}
	}
	return nil
}

func (d *decoder) readTiles(r *Raster, bytesPer int, typ SampleType, compression, predictor uint32) error {
	offsets, err := d.uints(tagTileOffsets)
	if err != nil {
		return err
	}
	counts, err := d.uints(tagTileByteCounts)
	if err != nil {
		return err
	}
	tw, err := d.uintVal(tagTileWidth, 0)
	if err != nil {
		return err
	}
	th, err := d.uintVal(tagTileLength, 0)
	if err != nil {
		return err
	}
	if tw == 0 || th == 0 || len(offsets) == 0 || len(offsets) != len(counts) {
		return fmt.Errorf("inconsistent tile layout")
	}

	tilesAcross := (r.Grid.Width + int(tw) - 1) / int(tw)

	for t := range offsets {
		buf, err := d.chunk(offsets[t], counts[t], compression)
		if err != nil {
			return fmt.Errorf("tile %d: %w", t, err)
		}
		if predictor == 2 {
			undoPredictor(buf, int(tw), bytesPer, d.order)
		}
		if len(buf) < int(tw)*int(th)*bytesPer {
			return fmt.Errorf("tile %d holds %d bytes, want %d", t, len(buf), int(tw)*int(th)*bytesPer)
		}

		originCol := (t % tilesAcross) * int(tw)
		originRow := (t / tilesAcross) * int(th)

		for row := 0; row < int(th); row++ {
			destRow := originRow + row
			if destRow >= r.Grid.Height {
				break
			}
			for col := 0; col < int(tw); col++ {
				destCol := originCol + col
				if destCol >= r.Grid.Width {
					break
				}
				r.Set(destCol, destRow, d.sample(buf, row*int(tw)+col, typ))
			}
		}
	}
	return nil
}
