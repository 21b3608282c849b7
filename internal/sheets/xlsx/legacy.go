package xlsx

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"strconv"
	"unicode/utf16"

	"github.com/extrame/xls"
	"github.com/richardlehane/mscfb"
)

// BIFF8 record ids.
const (
	recFormula  = 0x0006
	recEOF      = 0x000A
	recFilePass = 0x002F
	recMulRK    = 0x00BD
	recXF       = 0x00E0
	recSST      = 0x00FC
	recBlank    = 0x0201
	recNumber   = 0x0203
	recRK       = 0x027E
	recBOF      = 0x0809

	biff8 = 0x0600

	// BIFF8 sheets end at column IV
	maxColumns = 256
)

// Compound file layout used by repack.
const (
	sectorSize = 512
	miniCutoff = 4096
	headerFATs = 109
	dirEntry   = 128

	endOfChain = 0xFFFFFFFE
	fatSect    = 0xFFFFFFFD
	freeSect   = 0xFFFFFFFF
	noStream   = 0xFFFFFFFF
)

var le = binary.LittleEndian

// readLegacy reads the first worksheet of a BIFF8 (.xls) workbook. Numeric
// cells come back as float64 with dates as serial day numbers, text stays
// text and empty cells are nil.
func readLegacy(data []byte) ([][]any, error) {
	stream, err := workbookStream(data)
	if err != nil {
		return nil, err
	}
	general, err := scanGlobals(stream)
	if err != nil {
		return nil, err
	}
	if general >= 0 {
		normalizeCells(stream, uint16(general))
	}
	container, err := repack(stream)
	if err != nil {
		return nil, err
	}
	return parseBIFF(container)
}

// workbookStream extracts the BIFF stream from the compound file.
func workbookStream(data []byte) ([]byte, error) {
	doc, err := mscfb.New(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidWorkbook, err)
	}
	for entry, err := doc.Next(); err == nil; entry, err = doc.Next() {
		if len(entry.Path) > 0 || (entry.Name != "Workbook" && entry.Name != "Book") {
			continue
		}
		if entry.Size > int64(len(data)) {
			return nil, fmt.Errorf("%w: workbook stream size %d exceeds file", ErrInvalidWorkbook, entry.Size)
		}
		stream := make([]byte, entry.Size)
		if _, err := io.ReadFull(entry, stream); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidWorkbook, err)
		}
		return stream, nil
	}
	return nil, fmt.Errorf("%w: no workbook stream", ErrInvalidWorkbook)
}

// scanGlobals validates the workbook globals substream and returns the index
// of the first XF using the General number format, or -1.
func scanGlobals(stream []byte) (int, error) {
	if len(stream) < 8 || le.Uint16(stream) != recBOF {
		return -1, fmt.Errorf("%w: workbook stream does not start with BOF", ErrInvalidWorkbook)
	}
	if v := le.Uint16(stream[4:]); v != biff8 {
		return -1, fmt.Errorf("%w: BIFF version %#x", ErrUnsupportedWorkbook, v)
	}

	general, xfs := -1, 0
	for off := 0; off+4 <= len(stream); {
		id, size := le.Uint16(stream[off:]), int(le.Uint16(stream[off+2:]))
		if off+4+size > len(stream) {
			break
		}
		body := stream[off+4 : off+4+size]
		switch id {
		case recFilePass:
			return -1, fmt.Errorf("%w: workbook is password protected", ErrUnsupportedWorkbook)
		case recXF:
			if size >= 4 && general < 0 && le.Uint16(body[2:]) == 0 {
				general = xfs
			}
			xfs++
		case recSST:
			// each shared string takes at least three bytes
			if size < 8 || int64(le.Uint32(body[4:])) > int64(len(stream)/3) {
				return -1, fmt.Errorf("%w: corrupt shared string table", ErrInvalidWorkbook)
			}
		case recEOF:
			return general, nil
		}
		off += 4 + size
	}
	return -1, fmt.Errorf("%w: truncated workbook globals", ErrInvalidWorkbook)
}

// normalizeCells rewrites cell records in place so every number is read
// with the General format: dates stay serial day numbers and formatted
// amounts keep their full precision. Formula cells are replaced by their
// cached result; string results are left for the STRING record that follows.
// Record lengths never change, so sheet offsets stay valid.
func normalizeCells(stream []byte, general uint16) {
	for off := 0; off+4 <= len(stream); {
		id, size := le.Uint16(stream[off:]), int(le.Uint16(stream[off+2:]))
		if off+4+size > len(stream) {
			return
		}
		body := stream[off+4 : off+4+size]
		switch id {
		case recNumber, recRK:
			if size >= 6 {
				le.PutUint16(body[4:], general)
			}
		case recMulRK:
			for i := 4; i+6 <= size-2; i += 6 {
				le.PutUint16(body[i:], general)
			}
		case recFormula:
			if size >= 18 {
				replaceFormula(stream[off:off+4+size], general)
			}
		}
		off += 4 + size
	}
}

// replaceFormula overwrites a FORMULA record with a NUMBER (or BLANK) record
// followed by a filler record covering the remaining bytes.
func replaceFormula(rec []byte, general uint16) {
	body := rec[4:]
	result := body[6:14]
	if le.Uint16(result[6:]) == 0xFFFF && result[0] == 0 {
		return
	}

	row, col := le.Uint16(body[0:]), le.Uint16(body[2:])
	var cell []byte
	if le.Uint16(result[6:]) != 0xFFFF {
		cell = make([]byte, 4+14)
		le.PutUint16(cell[0:], recNumber)
		le.PutUint16(cell[2:], 14)
		le.PutUint16(cell[4:], row)
		le.PutUint16(cell[6:], col)
		le.PutUint16(cell[8:], general)
		copy(cell[10:], result)
	} else {
		cell = make([]byte, 4+6)
		le.PutUint16(cell[0:], recBlank)
		le.PutUint16(cell[2:], 6)
		le.PutUint16(cell[4:], row)
		le.PutUint16(cell[6:], col)
		le.PutUint16(cell[8:], general)
	}

	rest := rec[len(cell):]
	copy(rec, cell)
	clear(rest)
	// id 0 is skipped by the reader
	le.PutUint16(rest[2:], uint16(len(rest)-4))
}

// repack stores a BIFF stream in a minimal compound file with one FAT chain,
// one directory sector and no mini stream.
func repack(stream []byte) ([]byte, error) {
	size := max(len(stream), miniCutoff)
	size += -size & (sectorSize - 1)
	nsec := size / sectorSize
	nfat := 1
	for nfat*sectorSize/4 < nfat+1+nsec {
		nfat++
	}
	if nfat > headerFATs {
		return nil, fmt.Errorf("%w: workbook stream of %d bytes is too large", ErrUnsupportedWorkbook, len(stream))
	}

	out := make([]byte, sectorSize*(2+nfat+nsec))
	h := out[:sectorSize]
	copy(h, xlsSignature)
	le.PutUint16(h[24:], 0x3E)
	le.PutUint16(h[26:], 3)
	le.PutUint16(h[28:], 0xFFFE)
	le.PutUint16(h[30:], 9)
	le.PutUint16(h[32:], 6)
	le.PutUint32(h[44:], uint32(nfat))
	le.PutUint32(h[48:], uint32(nfat))
	le.PutUint32(h[56:], miniCutoff)
	le.PutUint32(h[60:], endOfChain)
	le.PutUint32(h[68:], endOfChain)
	for i := range headerFATs {
		sid := uint32(freeSect)
		if i < nfat {
			sid = uint32(i)
		}
		le.PutUint32(h[76+4*i:], sid)
	}

	fat := out[sectorSize : sectorSize*(1+nfat)]
	for i := range len(fat) / 4 {
		next := uint32(freeSect)
		switch {
		case i < nfat:
			next = fatSect
		case i == nfat, i == nfat+nsec:
			next = endOfChain
		case i < nfat+nsec:
			next = uint32(i + 1)
		}
		le.PutUint32(fat[4*i:], next)
	}

	dir := out[sectorSize*(1+nfat) : sectorSize*(2+nfat)]
	putDirEntry(dir[0:], "Root Entry", 5, 1, endOfChain, 0)
	putDirEntry(dir[dirEntry:], "Workbook", 2, noStream, uint32(nfat+1), uint32(size))

	copy(out[sectorSize*(2+nfat):], stream)
	return out, nil
}

func putDirEntry(e []byte, name string, typ byte, child, start, size uint32) {
	u := utf16.Encode([]rune(name))
	for i, c := range u {
		le.PutUint16(e[2*i:], c)
	}
	le.PutUint16(e[64:], uint16(2*len(u)+2))
	e[66] = typ
	e[67] = 1
	le.PutUint32(e[68:], noStream)
	le.PutUint32(e[72:], noStream)
	le.PutUint32(e[76:], child)
	le.PutUint32(e[116:], start)
	le.PutUint32(e[120:], size)
}

func parseBIFF(container []byte) (grid [][]any, err error) {
	defer func() {
		if r := recover(); r != nil {
			grid, err = nil, fmt.Errorf("%w: %v", ErrInvalidWorkbook, r)
		}
	}()

	wb, err := xls.OpenReader(bytes.NewReader(container), "utf-8")
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidWorkbook, err)
	}
	if wb == nil || wb.NumSheets() == 0 {
		return nil, nil
	}
	sheet := wb.GetSheet(0)
	if sheet == nil {
		return nil, nil
	}

	grid = make([][]any, int(sheet.MaxRow)+1)
	for i := range grid {
		row := sheet.Row(i)
		if row == nil {
			continue
		}
		var cells []any
		for j := range min(row.LastCol()+1, maxColumns) {
			v := legacyCell(row.Col(j))
			if v == nil {
				continue
			}
			cells = append(cells, make([]any, j-len(cells))...)
			cells = append(cells, v)
		}
		grid[i] = cells
	}
	for len(grid) > 0 && len(grid[len(grid)-1]) == 0 {
		grid = grid[:len(grid)-1]
	}
	return grid, nil
}

// legacyCell types a rendered BIFF cell. The reader renders numbers in
// their shortest form, so only strings that survive a float round trip are
// numbers; "001" stays text.
func legacyCell(v string) any {
	if v == "" {
		return nil
	}
	if n, err := strconv.ParseFloat(v, 64); err == nil && !math.IsInf(n, 0) && strconv.FormatFloat(n, 'f', -1, 64) == v {
		return n
	}
	return v
}
