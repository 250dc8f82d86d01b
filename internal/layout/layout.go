// Package layout maps a screen layout code onto window rectangles.
//
// Every layout is expressed on an n x n base grid. Some layouts merge blocks
// of base cells into larger windows; those are emitted first, followed by the
// remaining base cells in row-major order. Cell edges are computed from shared
// integer boundaries so neighbouring rectangles meet without gaps or overlap.
package layout

import (
	"errors"
	"fmt"
	"sort"
)

// Code selects a screen geometry. The value equals the number of windows.
type Code int

const (
	Single        Code = 1
	Grid2x2       Code = 4
	OnePlusFive   Code = 6
	ThreePlusFour Code = 7
	OnePlusSeven  Code = 8
	Grid3x3       Code = 9
	TwoPlusEight  Code = 10
	OnePlusTwelve Code = 13
	Grid4x4       Code = 16
)

var ErrUnsupportedCode = errors.New("unsupported layout code")

// Rect is a half-open pixel rectangle [X1,X2) x [Y1,Y2).
type Rect struct {
	X1 int `json:"x1"`
	Y1 int `json:"y1"`
	X2 int `json:"x2"`
	Y2 int `json:"y2"`
}

func (r Rect) Width() int  { return r.X2 - r.X1 }
func (r Rect) Height() int { return r.Y2 - r.Y1 }
func (r Rect) Area() int   { return r.Width() * r.Height() }

func (r Rect) Overlaps(o Rect) bool {
	return r.X1 < o.X2 && o.X1 < r.X2 && r.Y1 < o.Y2 && o.Y1 < r.Y2
}

func (r Rect) Contains(o Rect) bool {
	return o.X1 >= r.X1 && o.Y1 >= r.Y1 && o.X2 <= r.X2 && o.Y2 <= r.Y2
}

func (r Rect) String() string {
	return fmt.Sprintf("%d %d %d %d", r.X1, r.Y1, r.X2, r.Y2)
}

// block spans base-grid columns [c0,c1) and rows [r0,r1).
type block struct{ c0, r0, c1, r1 int }

type geometry struct {
	n     int
	large []block
}

var table = map[Code]geometry{
	Single:        {n: 1},
	Grid2x2:       {n: 2},
	Grid3x3:       {n: 3},
	Grid4x4:       {n: 4},
	OnePlusFive:   {n: 3, large: []block{{0, 0, 2, 2}}},
	OnePlusSeven:  {n: 4, large: []block{{0, 0, 3, 3}}},
	OnePlusTwelve: {n: 4, large: []block{{0, 0, 2, 2}}},
	TwoPlusEight:  {n: 4, large: []block{{0, 0, 2, 2}, {0, 2, 2, 4}}},
	ThreePlusFour: {n: 4, large: []block{{0, 0, 2, 2}, {2, 0, 4, 2}, {0, 2, 2, 4}}},
}

// Codes lists the supported layout codes in ascending order.
func Codes() []Code {
	out := make([]Code, 0, len(table))
	for c := range table {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Valid reports whether c is a supported layout code.
func (c Code) Valid() bool {
	_, ok := table[c]
	return ok
}

// Windows returns the number of windows for c, or 0 if c is unsupported.
func (c Code) Windows() int {
	if !c.Valid() {
		return 0
	}
	return int(c)
}

// Area returns the drawable rectangle of a width x height screen after
// shrinking it symmetrically by downscale percent.
func Area(width, height, downscale int) Rect {
	if downscale < 0 {
		downscale = 0
	}
	if downscale > 99 {
		downscale = 99
	}
	w := width * (100 - downscale) / 100
	h := height * (100 - downscale) / 100
	ox := (width - w) / 2
	oy := (height - h) / 2
	return Rect{X1: ox, Y1: oy, X2: ox + w, Y2: oy + h}
}

// Full is the rectangle used for fullscreen playback.
func Full(width, height, downscale int) Rect {
	return Area(width, height, downscale)
}

// Compute returns the ordered window rectangles for code on a screen of the
// given size.
func Compute(code Code, width, height, downscale int) ([]Rect, error) {
	g, ok := table[code]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedCode, code)
	}
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("invalid screen size %dx%d", width, height)
	}
	if downscale < 0 || downscale > 99 {
		return nil, fmt.Errorf("invalid downscale %d%%", downscale)
	}

	area := Area(width, height, downscale)
	x := func(k int) int { return area.X1 + area.Width()*k/g.n }
	y := func(k int) int { return area.Y1 + area.Height()*k/g.n }
	toRect := func(b block) Rect {
		return Rect{X1: x(b.c0), Y1: y(b.r0), X2: x(b.c1), Y2: y(b.r1)}
	}

	covered := make([]bool, g.n*g.n)
	out := make([]Rect, 0, int(code))
	for _, b := range g.large {
		out = append(out, toRect(b))
		for r := b.r0; r < b.r1; r++ {
			for c := b.c0; c < b.c1; c++ {
				covered[r*g.n+c] = true
			}
		}
	}
	for r := 0; r < g.n; r++ {
		for c := 0; c < g.n; c++ {
			if covered[r*g.n+c] {
				continue
			}
			out = append(out, toRect(block{c, r, c + 1, r + 1}))
		}
	}

	if len(out) != int(code) {
		// geometry table is inconsistent with the code
		panic(fmt.Sprintf("layout %d produced %d windows", code, len(out)))
	}
	return out, nil
}
