// Package textrenderer 把布局结果输出为终端文本预览。
//
// 排版时以终端单元格为像素：每个字符宽度取 go-runewidth 的显示宽度，行高为 1。
package textrenderer

import (
	"fmt"
	"io"
	"strings"

	"github.com/mattn/go-runewidth"
	"github.com/muesli/termenv"

	"github.com/ByLCY/receipt/layout"
	"github.com/ByLCY/receipt/renderer"
)

// Renderer 生成文本预览；Profile 为 termenv.Ascii 时不输出颜色。
type Renderer struct {
	profile termenv.Profile
}

var (
	_ renderer.Renderer    = (*Renderer)(nil)
	_ layout.Typesetter    = (*Renderer)(nil)
	_ layout.ImageMeasurer = (*Renderer)(nil)
)

// New creates a text renderer for the given color profile.
func New(profile termenv.Profile) *Renderer {
	return &Renderer{profile: profile}
}

// BuildOptions 返回以 columns 个单元格为宽度、无留白的布局参数。
func (r *Renderer) BuildOptions(columns int) layout.BuildOptions {
	return layout.BuildOptions{
		Typesetter:   r,
		Images:       r,
		DisplayWidth: columns,
		Padding:      &layout.Length{Unit: layout.UnitPX},
	}
}

// Face 实现 layout.Typesetter；字号不影响单元格宽度。
func (r *Renderer) Face(layout.FontResource, float64) (layout.Face, error) {
	return cellFace{}, nil
}

// ImageSize 让图片按宽度缩放后只占一行。
func (r *Renderer) ImageSize(string) (int, int, error) {
	return 1 << 16, 1, nil
}

type cellFace struct{}

func (cellFace) TextWidth(s string) float64 { return float64(runewidth.StringWidth(s)) }

func (cellFace) Metrics() layout.FaceMetrics { return layout.FaceMetrics{Ascent: 1} }

type cell struct {
	r     rune
	color layout.Color
	cont  bool // 宽字符占用的第二个单元格
}

// Render 输出文本预览。spacer 行与图片行各占一行。
func (r *Renderer) Render(result *layout.Result) ([]byte, error) {
	var sb strings.Builder
	if err := r.Write(&sb, result); err != nil {
		return nil, err
	}
	return []byte(sb.String()), nil
}

// Write 将预览写入 w。
func (r *Renderer) Write(w io.Writer, result *layout.Result) error {
	if result == nil {
		return fmt.Errorf("渲染结果为空")
	}
	out := termenv.NewOutput(w, termenv.WithProfile(r.profile))
	width := result.ContentWidth
	pad := strings.Repeat(" ", result.Padding)
	blank := func() error {
		_, err := io.WriteString(out, "\n")
		return err
	}

	for i := 0; i < result.Padding; i++ {
		if err := blank(); err != nil {
			return err
		}
	}
	for _, row := range result.Rows {
		switch row.Kind {
		case layout.RowSpacer:
			if row.Height > 0 {
				if err := blank(); err != nil {
					return err
				}
			}
		case layout.RowImage:
			grid := newGrid(width)
			label := "[image]"
			if row.Image != nil {
				grid.put(row.Image.X+(row.Image.Width-runewidth.StringWidth(label))/2, label, layout.Black)
			}
			if err := r.writeCells(out, pad, grid); err != nil {
				return err
			}
		default:
			grids := make([][]cell, row.Height)
			for i := range grids {
				grids[i] = newGrid(width)
			}
			for _, col := range row.Columns {
				for _, line := range col.Lines {
					if line.Y >= 0 && line.Y < len(grids) {
						cells := cellGrid(grids[line.Y])
						cells.put(line.X, line.Content, col.Color)
					}
				}
			}
			for _, grid := range grids {
				if err := r.writeCells(out, pad, grid); err != nil {
					return err
				}
			}
		}
	}
	for i := 0; i < result.Padding; i++ {
		if err := blank(); err != nil {
			return err
		}
	}
	return nil
}

type cellGrid []cell

func newGrid(width int) cellGrid {
	g := make(cellGrid, width)
	for i := range g {
		g[i] = cell{r: ' '}
	}
	return g
}

func (g cellGrid) put(x int, s string, color layout.Color) {
	for _, ch := range s {
		w := runewidth.RuneWidth(ch)
		if w == 0 {
			continue
		}
		if x < 0 || x+w > len(g) {
			return
		}
		g[x] = cell{r: ch, color: color}
		for k := 1; k < w; k++ {
			g[x+k] = cell{cont: true, color: color}
		}
		x += w
	}
}

func (r *Renderer) writeCells(out *termenv.Output, pad string, g []cell) error {
	end := len(g)
	for end > 0 && g[end-1].r == ' ' && !g[end-1].cont {
		end--
	}
	var sb strings.Builder
	sb.WriteString(pad)
	for i := 0; i < end; {
		j := i
		var run strings.Builder
		for j < end && g[j].color == g[i].color {
			if !g[j].cont {
				run.WriteRune(g[j].r)
			}
			j++
		}
		sb.WriteString(r.colorize(out, run.String(), g[i].color))
		i = j
	}
	sb.WriteString("\n")
	_, err := io.WriteString(out, sb.String())
	return err
}

// colorize 只为非黑色文本着色，黑色在深色终端上保持默认前景色。
func (r *Renderer) colorize(out *termenv.Output, s string, c layout.Color) string {
	if r.profile == termenv.Ascii || c == layout.Black || strings.TrimSpace(s) == "" {
		return s
	}
	return out.String(s).Foreground(r.profile.FromColor(c.NRGBA())).String()
}
