package geotiff

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"

	"github.com/klauspost/compress/zlib"
)

// EncodeOptions controls the on-disk layout. The zero value writes
// uncompressed strips.
type EncodeOptions struct {
	Deflate bool

	// TileSize switches the layout from strips to square tiles with the
	// given edge length, which must be a multiple of 16. Cloud-optimised
	// rewrites need tiled input.
	TileSize int
}

// Write encodes a raster to a GeoTIFF file. The file is written next to its
// final location and renamed into place so readers never observe a partial
// raster.
func Write(path string, r *Raster, opts EncodeOptions) error {
	if err := r.Validate(); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := Encode(tmp, r, opts); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to move raster into place: %w", err)
	}
	return nil
}

// Encode writes a raster as a little-endian classic TIFF with a single IFD.
func Encode(w io.Writer, r *Raster, opts EncodeOptions) error {
	if err := r.Validate(); err != nil {
		return err
	}

	bits, format := r.Type.bits()
	if bits == 0 {
		return fmt.Errorf("cannot encode sample type %v", r.Type)
	}
	bytesPer := int(bits) / 8
	width := r.Grid.Width
	height := r.Grid.Height

	compression := uint32(compressionNone)
	if opts.Deflate {
		compression = compressionDeflate
	}

	b := &ifdBuilder{}
	b.addShortOrLong(tagImageWidth, uint32(width))
	b.addShortOrLong(tagImageLength, uint32(height))
	b.addShort(tagBitsPerSample, bits)
	b.addShortOrLong(tagCompression, compression)
	b.addShort(tagPhotometric, 1) // BlackIsZero
	b.addShort(tagSamplesPerPixel, 1)
	b.addShort(tagPlanarConfig, 1)
	b.addShort(tagSampleFormat, format)

	var blocks [][]byte
	if opts.TileSize > 0 {
		tiles, err := tileBlocks(r, opts.TileSize, bytesPer, opts.Deflate)
		if err != nil {
			return err
		}
		blocks = tiles
		b.addShortOrLong(tagTileWidth, uint32(opts.TileSize))
		b.addShortOrLong(tagTileLength, uint32(opts.TileSize))
		b.addLongs(tagTileOffsets, make([]uint32, len(blocks))) // patched below
		b.addLongs(tagTileByteCounts, byteCounts(blocks))
	} else {
		strips, rowsPerStrip, err := stripBlocks(r, bytesPer, opts.Deflate)
		if err != nil {
			return err
		}
		blocks = strips
		b.addShortOrLong(tagRowsPerStrip, uint32(rowsPerStrip))
		b.addLongs(tagStripOffsets, make([]uint32, len(blocks))) // patched below
		b.addLongs(tagStripByteCounts, byteCounts(blocks))
	}

	if r.Grid.DX != 0 {
		b.addDoubles(tagModelPixelScale, []float64{r.Grid.DX, r.Grid.DY, 0})
		b.addDoubles(tagModelTiepoint, []float64{0, 0, 0, r.Grid.OriginX, r.Grid.OriginY, 0})
	}
	if keys := geoKeys(r.Grid.EPSG); keys != nil {
		b.addShorts(tagGeoKeyDirectory, keys)
	}
	if r.NoData != nil {
		b.addASCII(tagGDALNoData, strconv.FormatFloat(*r.NoData, 'g', -1, 64))
	}

	return b.write(w, blocks)
}

// stripBlocks packs rows into strips of roughly 64 KiB of raw samples.
func stripBlocks(r *Raster, bytesPer int, deflate bool) ([][]byte, int, error) {
	width := r.Grid.Width
	height := r.Grid.Height

	rowsPerStrip := 65536 / (width * bytesPer)
	if rowsPerStrip < 1 {
		rowsPerStrip = 1
	}
	if rowsPerStrip > height {
		rowsPerStrip = height
	}
	numStrips := (height + rowsPerStrip - 1) / rowsPerStrip

	strips := make([][]byte, numStrips)
	for s := 0; s < numStrips; s++ {
		startRow := s * rowsPerStrip
		rows := rowsPerStrip
		if startRow+rows > height {
			rows = height - startRow
		}

		raw := make([]byte, rows*width*bytesPer)
		for row := 0; row < rows; row++ {
			for col := 0; col < width; col++ {
				putSample(raw, row*width+col, r.At(col, startRow+row), r.Type)
			}
		}

		if deflate {
			packed, err := compressBlock(raw)
			if err != nil {
				return nil, 0, fmt.Errorf("failed to deflate strip %d: %w", s, err)
			}
			raw = packed
		}
		strips[s] = raw
	}
	return strips, rowsPerStrip, nil
}

// tileBlocks cuts the raster into full-size square tiles, padding the edge
// tiles with the nodata value.
func tileBlocks(r *Raster, tileSize, bytesPer int, deflate bool) ([][]byte, error) {
	if tileSize%16 != 0 {
		return nil, fmt.Errorf("tile size %d is not a multiple of 16", tileSize)
	}
	width := r.Grid.Width
	height := r.Grid.Height
	across := (width + tileSize - 1) / tileSize
	down := (height + tileSize - 1) / tileSize

	pad := 0.0
	if r.NoData != nil {
		pad = *r.NoData
	}

	tiles := make([][]byte, 0, across*down)
	for ty := 0; ty < down; ty++ {
		for tx := 0; tx < across; tx++ {
			raw := make([]byte, tileSize*tileSize*bytesPer)
			for row := 0; row < tileSize; row++ {
				srcRow := ty*tileSize + row
				for col := 0; col < tileSize; col++ {
					srcCol := tx*tileSize + col
					v := pad
					if srcCol < width && srcRow < height {
						v = r.At(srcCol, srcRow)
					}
					putSample(raw, row*tileSize+col, v, r.Type)
				}
			}

			if deflate {
				packed, err := compressBlock(raw)
				if err != nil {
					return nil, fmt.Errorf("failed to deflate tile %d,%d: %w", tx, ty, err)
				}
				raw = packed
			}
			tiles = append(tiles, raw)
		}
	}
	return tiles, nil
}

func compressBlock(raw []byte) ([]byte, error) {
	var buf bytes.Buffer
	zw := zlib.NewWriter(&buf)
	if _, err := zw.Write(raw); err != nil {
		return nil, err
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func byteCounts(blocks [][]byte) []uint32 {
	counts := make([]uint32, len(blocks))
	for i, block := range blocks {
		counts[i] = uint32(len(block))
	}
	return counts
}

// geoKeys builds the GeoKeyDirectory for the EPSG codes the pipeline emits.
// Unknown codes produce no directory; the raster is still a valid TIFF.
func geoKeys(epsg int) []uint16 {
	switch epsg {
	case 0:
		return nil
	case 4326, 4269, 4617:
		return []uint16{
			1, 1, 0, 3,
			geoKeyModelType, 0, 1, 2, // geographic
			geoKeyRasterType, 0, 1, 1, // PixelIsArea
			geoKeyGeographicType, 0, 1, uint16(epsg),
		}
	default:
		return []uint16{
			1, 1, 0, 4,
			geoKeyModelType, 0, 1, 1, // projected
			geoKeyRasterType, 0, 1, 1,
			geoKeyProjectedType, 0, 1, uint16(epsg),
			geoKeyLinearUnits, 0, 1, 9001, // metres
		}
	}
}

func putSample(buf []byte, i int, v float64, typ SampleType) {
	switch typ {
	case Uint8:
		buf[i] = uint8(clamp(v, 0, math.MaxUint8))
	case Uint16:
		binary.LittleEndian.PutUint16(buf[i*2:], uint16(clamp(v, 0, math.MaxUint16)))
	case Int16:
		binary.LittleEndian.PutUint16(buf[i*2:], uint16(int16(clamp(v, math.MinInt16, math.MaxInt16))))
	case Uint32:
		binary.LittleEndian.PutUint32(buf[i*4:], uint32(clamp(v, 0, math.MaxUint32)))
	case Float32:
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(float32(v)))
	case Float64:
		binary.LittleEndian.PutUint64(buf[i*8:], math.Float64bits(v))
	}
}

func clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) {
		return lo
	}
	v = math.Round(v)
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// ifdBuilder accumulates IFD entries and lays out the file:
// header, IFD, external values, block data.
type ifdBuilder struct {
	entries []builderEntry
}

type builderEntry struct {
	tag   uint16
	typ   uint16
	count uint32
	// value holds the little-endian encoding of the field data.
	value []byte
}

func (b *ifdBuilder) add(tag, typ uint16, count uint32, value []byte) {
	for i := range b.entries {
		if b.entries[i].tag == tag {
			b.entries[i] = builderEntry{tag, typ, count, value}
			return
		}
	}
	b.entries = append(b.entries, builderEntry{tag, typ, count, value})
}

func (b *ifdBuilder) addShort(tag uint16, v uint16) {
	buf := make([]byte, 2)
	binary.LittleEndian.PutUint16(buf, v)
	b.add(tag, 3, 1, buf)
}

// addShortOrLong stores small values as SHORT and larger ones as LONG, the
// way most writers do for dimension tags.
func (b *ifdBuilder) addShortOrLong(tag uint16, v uint32) {
	if v <= math.MaxUint16 {
		b.addShort(tag, uint16(v))
		return
	}
	buf := make([]byte, 4)
	binary.LittleEndian.PutUint32(buf, v)
	b.add(tag, 4, 1, buf)
}

func (b *ifdBuilder) addShorts(tag uint16, vs []uint16) {
	buf := make([]byte, 2*len(vs))
	for i, v := range vs {
		binary.LittleEndian.PutUint16(buf[i*2:], v)
	}
	b.add(tag, 3, uint32(len(vs)), buf)
}

func (b *ifdBuilder) addLongs(tag uint16, vs []uint32) {
	buf := make([]byte, 4*len(vs))
	for i, v := range vs {
		binary.LittleEndian.PutUint32(buf[i*4:], v)
	}
	b.add(tag, 4, uint32(len(vs)), buf)
}

func (b *ifdBuilder) addDoubles(tag uint16, vs []float64) {
	buf := make([]byte, 8*len(vs))
	for i, v := range vs {
		binary.LittleEndian.PutUint64(buf[i*8:], math.Float64bits(v))
	}
	b.add(tag, 12, uint32(len(vs)), buf)
}

func (b *ifdBuilder) addASCII(tag uint16, s string) {
	b.add(tag, 2, uint32(len(s)+1), append([]byte(s), 0))
}

func (b *ifdBuilder) write(w io.Writer, blocks [][]byte) error {
	sort.Slice(b.entries, func(i, j int) bool { return b.entries[i].tag < b.entries[j].tag })

	const headerSize = 8
	ifdSize := 2 + 12*len(b.entries) + 4

	// First pass: place external value blocks after the IFD.
	extOffset := uint32(headerSize + ifdSize)
	extOffsets := make([]uint32, len(b.entries))
	for i, e := range b.entries {
		if len(e.value) > 4 {
			if extOffset%2 == 1 {
				extOffset++
			}
			extOffsets[i] = extOffset
			extOffset += uint32(len(e.value))
		}
	}

	// Sample data follows the external blocks.
	blockStart := extOffset
	if blockStart%2 == 1 {
		blockStart++
	}
	blockOffsets := make([]uint32, len(blocks))
	pos := blockStart
	for i, block := range blocks {
		blockOffsets[i] = pos
		pos += uint32(len(block))
	}

	// Now that the offsets are known, patch the offsets entry.
	for i := range b.entries {
		if b.entries[i].tag == tagStripOffsets || b.entries[i].tag == tagTileOffsets {
			buf := make([]byte, 4*len(blockOffsets))
			for j, v := range blockOffsets {
				binary.LittleEndian.PutUint32(buf[j*4:], v)
			}
			b.entries[i].value = buf
		}
	}

	out := make([]byte, pos)
	out[0] = 'I'
	out[1] = 'I'
	binary.LittleEndian.PutUint16(out[2:], 42)
	binary.LittleEndian.PutUint32(out[4:], headerSize)

	binary.LittleEndian.PutUint16(out[headerSize:], uint16(len(b.entries)))
	for i, e := range b.entries {
		entry := out[headerSize+2+i*12:]
		binary.LittleEndian.PutUint16(entry, e.tag)
		binary.LittleEndian.PutUint16(entry[2:], e.typ)
		binary.LittleEndian.PutUint32(entry[4:], e.count)
		if len(e.value) > 4 {
			binary.LittleEndian.PutUint32(entry[8:], extOffsets[i])
			copy(out[extOffsets[i]:], e.value)
		} else {
			copy(entry[8:12], e.value)
		}
	}
	// Next-IFD pointer stays zero: single image.

	for i, block := range blocks {
		copy(out[blockOffsets[i]:], block)
	}

	if _, err := w.Write(out); err != nil {
		return fmt.Errorf("failed to write TIFF: %w", err)
	}
	return nil
}
