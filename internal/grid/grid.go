// Package grid defines the fixed catalog of claimable color cells.  The
// catalog is a pure, in-memory enumeration generated once at process start:
// 4096 cells laid out on a 64x64 mosaic, each addressed by a three hex digit
// short id ("000" through "fff") and bound to exactly one immutable color.
// The package performs no I/O and holds no mutable state, so callers may use
// it concurrently without synchronization.
package grid

import "strings"

const (
	// Rows and Cols describe the mosaic layout.  Rows*Cols must equal Size.
	Rows = 64
	Cols = 64
	// Size is the total number of cells in the grid.  It never changes.
	Size = Rows * Cols
)

// Cell is one addressable unit of the mosaic.
//
// Fields:
//
//	ShortID – three lowercase hex digits identifying the cell ("a1f").
//	Color   – the fully-specified color bound to the cell ("#aa11ff").
//	Row     – zero-based row within the mosaic.
//	Col     – zero-based column within the mosaic.
type Cell struct {
	ShortID string `json:"short_id"`
	Color   string `json:"color"`
	Row     int    `json:"row"`
	Col     int    `json:"col"`
}

const hexDigits = "0123456789abcdef"

// cells holds the full catalog, indexed by the cell's numeric value.
var cells [Size]Cell

func init() {
	for i := 0; i < Size; i++ {
		cells[i] = Cell{
			ShortID: encodeShortID(i),
			Color:   expandColor(i),
			Row:     i / Cols,
			Col:     i % Cols,
		}
	}
}

// encodeShortID renders a cell index as exactly three lowercase hex digits.
func encodeShortID(i int) string {
	return string([]byte{
		hexDigits[(i>>8)&0xf],
		hexDigits[(i>>4)&0xf],
		hexDigits[i&0xf],
	})
}

// expandColor derives the cell's color by doubling each hex digit of the
// short id, the CSS shorthand expansion.  Index 0xa1f becomes "#aa11ff".
// The mapping is injective: distinct ids always yield distinct colors.
func expandColor(i int) string {
	h := hexDigits[(i>>8)&0xf]
	m := hexDigits[(i>>4)&0xf]
	l := hexDigits[i&0xf]
	return string([]byte{'#', h, h, m, m, l, l})
}

// Resolve returns the Cell for the given short id, or nil when the id does
// not name a cell in the grid.  Ids are normalized to lowercase first so
// "A1F" and "a1f" address the same cell.  Anything that is not exactly three
// hex digits resolves to nil.
func Resolve(shortID string) *Cell {
	idx, ok := parseShortID(shortID)
	if !ok {
		return nil
	}
	c := cells[idx]
	return &c
}

// All returns the complete catalog in index order.  The returned slice is a
// copy; mutating it does not affect the catalog.
func All() []Cell {
	out := make([]Cell, Size)
	copy(out, cells[:])
	return out
}

// parseShortID converts a short id to its numeric index.  It reports false
// for ids of the wrong length or containing non-hex characters.
func parseShortID(shortID string) (int, bool) {
	s := strings.ToLower(shortID)
	if len(s) != 3 {
		return 0, false
	}
	idx := 0
	for i := 0; i < 3; i++ {
		d := strings.IndexByte(hexDigits, s[i])
		if d < 0 {
			return 0, false
		}
		idx = idx<<4 | d
	}
	return idx, true
}
