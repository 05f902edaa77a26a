// Package compressor shrinks dense two-dimensional tables. A parsing table
// is mostly empty cells and duplicated rows, so the compiler stacks two
// schemes: row deduplication first, then row displacement over the rows that
// survive.
package compressor

import (
	"fmt"
	"sort"
	"strconv"
)

// OriginalTable is a dense table in row-major order.
type OriginalTable struct {
	entries  []int
	rowCount int
	colCount int
}

func NewOriginalTable(entries []int, colCount int) (*OriginalTable, error) {
	if len(entries) == 0 {
		return nil, fmt.Errorf("entries must not be empty")
	}
	if colCount <= 0 {
		return nil, fmt.Errorf("column count must be >=1")
	}
	if len(entries)%colCount != 0 {
		return nil, fmt.Errorf("entries length %v is not a multiple of the column count %v", len(entries), colCount)
	}

	return &OriginalTable{
		entries:  entries,
		rowCount: len(entries) / colCount,
		colCount: colCount,
	}, nil
}

func (t *OriginalTable) row(num int) []int {
	return t.entries[num*t.colCount : (num+1)*t.colCount]
}

// Compressor is a compression scheme. Lookup on a compressed table returns
// the same value the original table held at [row, col].
type Compressor interface {
	Compress(orig *OriginalTable) error
	Lookup(row, col int) (int, error)
	OriginalTableSize() (int, int)
}

var (
	_ Compressor = &UniqueEntriesTable{}
	_ Compressor = &RowDisplacementTable{}
)

// UniqueEntriesTable stores each distinct row once and maps every original
// row onto its representative.
type UniqueEntriesTable struct {
	UniqueEntries    []int
	RowNums          []int
	OriginalRowCount int
	OriginalColCount int
}

func NewUniqueEntriesTable() *UniqueEntriesTable {
	return &UniqueEntriesTable{}
}

func (tab *UniqueEntriesTable) Lookup(row, col int) (int, error) {
	if row < 0 || row >= tab.OriginalRowCount || col < 0 || col >= tab.OriginalColCount {
		return 0, fmt.Errorf("indexes are out of range: [%v, %v]", row, col)
	}
	return tab.UniqueEntries[tab.RowNums[row]*tab.OriginalColCount+col], nil
}

func (tab *UniqueEntriesTable) OriginalTableSize() (int, int) {
	return tab.OriginalRowCount, tab.OriginalColCount
}

func (tab *UniqueEntriesTable) Compress(orig *OriginalTable) error {
	var uniqueEntries []int
	rowNums := make([]int, orig.rowCount)
	key2RowNum := map[string]int{}
	for row := 0; row < orig.rowCount; row++ {
		key := rowKey(orig.row(row))
		rowNum, ok := key2RowNum[key]
		if !ok {
			rowNum = len(key2RowNum)
			key2RowNum[key] = rowNum
			uniqueEntries = append(uniqueEntries, orig.row(row)...)
		}
		rowNums[row] = rowNum
	}

	tab.UniqueEntries = uniqueEntries
	tab.RowNums = rowNums
	tab.OriginalRowCount = orig.rowCount
	tab.OriginalColCount = orig.colCount

	return nil
}

func rowKey(row []int) string {
	b := make([]byte, 0, len(row)*4)
	for _, v := range row {
		b = strconv.AppendInt(b, int64(v), 36)
		b = append(b, ',')
	}
	return string(b)
}

// forbiddenBound marks a slot no original row occupies.
const forbiddenBound = -1

// RowDisplacementTable overlays all rows into a single array, shifting each
// row until its non-empty cells fall into free slots. Bounds records which
// row owns each slot so a lookup can tell a real entry from another row's.
type RowDisplacementTable struct {
	OriginalRowCount int
	OriginalColCount int
	EmptyValue       int
	Entries          []int
	Bounds           []int
	RowDisplacement  []int
}

func NewRowDisplacementTable(emptyValue int) *RowDisplacementTable {
	return &RowDisplacementTable{
		EmptyValue: emptyValue,
	}
}

func (tab *RowDisplacementTable) Lookup(row int, col int) (int, error) {
	if row < 0 || row >= tab.OriginalRowCount || col < 0 || col >= tab.OriginalColCount {
		return tab.EmptyValue, fmt.Errorf("indexes are out of range: [%v, %v]", row, col)
	}
	d := tab.RowDisplacement[row]
	if tab.Bounds[d+col] != row {
		return tab.EmptyValue, nil
	}
	return tab.Entries[d+col], nil
}

func (tab *RowDisplacementTable) OriginalTableSize() (int, int) {
	return tab.OriginalRowCount, tab.OriginalColCount
}

type rowShape struct {
	rowNum      int
	nonEmptyCol []int
}

func (tab *RowDisplacementTable) Compress(orig *OriginalTable) error {
	shapes := make([]rowShape, orig.rowCount)
	for row := 0; row < orig.rowCount; row++ {
		shapes[row].rowNum = row
		for col, v := range orig.row(row) {
			if v != tab.EmptyValue {
				shapes[row].nonEmptyCol = append(shapes[row].nonEmptyCol, col)
			}
		}
	}

	// Packing the densest rows first keeps the result short.
	sort.SliceStable(shapes, func(i int, j int) bool {
		return len(shapes[i].nonEmptyCol) > len(shapes[j].nonEmptyCol)
	})

	maxLen := len(orig.entries)
	entries := make([]int, maxLen)
	bounds := make([]int, maxLen)
	for i := 0; i < maxLen; i++ {
		entries[i] = tab.EmptyValue
		bounds[i] = forbiddenBound
	}
	rowDisplacement := make([]int, orig.rowCount)
	bottom := orig.colCount
	{
		nextDisplacement := 0
		for _, shape := range shapes {
			if len(shape.nonEmptyCol) == 0 {
				continue
			}

			for !fitsAt(bounds, shape.nonEmptyCol, nextDisplacement) {
				nextDisplacement++
			}

			rowDisplacement[shape.rowNum] = nextDisplacement
			for _, col := range shape.nonEmptyCol {
				entries[nextDisplacement+col] = orig.entries[(shape.rowNum*orig.colCount)+col]
				bounds[nextDisplacement+col] = shape.rowNum
			}
			bottom = nextDisplacement + orig.colCount
			nextDisplacement++
		}
	}

	tab.OriginalRowCount = orig.rowCount
	tab.OriginalColCount = orig.colCount
	tab.Entries = entries[:bottom]
	tab.Bounds = bounds[:bottom]
	tab.RowDisplacement = rowDisplacement

	return nil
}

func fitsAt(bounds []int, nonEmptyCol []int, displacement int) bool {
	for _, col := range nonEmptyCol {
		if bounds[displacement+col] != forbiddenBound {
			return false
		}
	}
	return true
}
