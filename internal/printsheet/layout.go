package printsheet

// PageLayout places codes on a sheet in row-major order. Lengths are in
// millimetres.
type PageLayout struct {
	PageWidth     float64
	PageHeight    float64
	Margin        float64
	Columns       int
	Rows          int
	CaptionHeight float64
	Padding       float64
}

// A4Grid is a portrait A4 sheet with nine codes per page.
var A4Grid = PageLayout{
	PageWidth:     210,
	PageHeight:    297,
	Margin:        12,
	Columns:       3,
	Rows:          3,
	CaptionHeight: 10,
	Padding:       6,
}

// Slot is where one code lands.
type Slot struct {
	Page     int
	X        float64
	Y        float64
	Size     float64
	CaptionY float64
}

func (l PageLayout) PerPage() int {
	return l.Columns * l.Rows
}

func (l PageLayout) Pages(count int) int {
	if count <= 0 {
		return 0
	}
	return (count + l.PerPage() - 1) / l.PerPage()
}

func (l PageLayout) CellWidth() float64 {
	return (l.PageWidth - 2*l.Margin) / float64(l.Columns)
}

func (l PageLayout) CellHeight() float64 {
	return (l.PageHeight - 2*l.Margin) / float64(l.Rows)
}

// ImageSize is the edge of the square QR image, centred in its cell above
// the caption.
func (l PageLayout) ImageSize() float64 {
	return min(l.CellWidth(), l.CellHeight()-l.CaptionHeight) - 2*l.Padding
}

func (l PageLayout) Slot(index int) Slot {
	onPage := index % l.PerPage()
	column := onPage % l.Columns
	row := onPage / l.Columns

	cellX := l.Margin + float64(column)*l.CellWidth()
	cellY := l.Margin + float64(row)*l.CellHeight()
	size := l.ImageSize()

	return Slot{
		Page:     index / l.PerPage(),
		X:        cellX + (l.CellWidth()-size)/2,
		Y:        cellY + l.Padding,
		Size:     size,
		CaptionY: cellY + l.Padding + size,
	}
}
