// Package canvasrenderer 使用 github.com/tdewolff/canvas 绘制小票，
// 可输出 PNG、JPEG、PDF 与 SVG。
package canvasrenderer

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	"io"
	"math"
	"strings"
	"sync"

	"github.com/tdewolff/canvas"
	"github.com/tdewolff/canvas/renderers"
	"github.com/tdewolff/canvas/renderers/pdf"
	"github.com/tdewolff/canvas/renderers/rasterizer"
	"github.com/tdewolff/canvas/renderers/svg"

	"github.com/ByLCY/receipt/layout"
	"github.com/ByLCY/receipt/renderer"
	"github.com/ByLCY/receipt/renderer/assets"
)

// 画布以 1mm = 1px 绘制；canvas 的字号单位为 pt。
const mmToPt = 72.0 / 25.4

var resolution = canvas.DPMM(1)

// Format 是 Render 的输出格式。
type Format string

const (
	FormatPNG Format = "png"
	FormatJPG Format = "jpg"
	FormatPDF Format = "pdf"
	FormatSVG Format = "svg"
)

// Options configures the canvas renderer.
type Options struct {
	assets.Options
	Format Format // 默认 png
}

// Renderer 同时实现排版度量与绘制，二者使用同一套字体，保证测量与输出一致。
type Renderer struct {
	assets   *assets.Loader
	families *familyCache
	format   Format

	// canvas 的字形排版不保证并发安全，测量时串行化
	measureMu sync.Mutex
}

var (
	_ renderer.Renderer    = (*Renderer)(nil)
	_ renderer.Rasterizer  = (*Renderer)(nil)
	_ layout.Typesetter    = (*Renderer)(nil)
	_ layout.ImageMeasurer = (*Renderer)(nil)
)

// NewRenderer creates a PNG renderer that resolves relative asset paths against baseDir.
func NewRenderer(baseDir string) *Renderer {
	return NewRendererWithOptions(Options{Options: assets.Options{BaseDir: baseDir}})
}

// NewRendererWithOptions creates a renderer with built-in resources and an output format.
func NewRendererWithOptions(opts Options) *Renderer {
	loader := assets.NewLoader(opts.Options)
	format := opts.Format
	if format == "" {
		format = FormatPNG
	}
	return &Renderer{
		assets:   loader,
		families: newFamilyCache(loader),
		format:   format,
	}
}

// Render 按构造时指定的格式输出。
func (r *Renderer) Render(result *layout.Result) ([]byte, error) {
	c, err := r.draw(result)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := r.encode(&buf, c, result.Meta); err != nil {
		return nil, fmt.Errorf("写入 %s 失败: %w", r.format, err)
	}
	return buf.Bytes(), nil
}

func (r *Renderer) encode(w io.Writer, c *canvas.Canvas, meta layout.DocumentMeta) error {
	switch r.format {
	case FormatPNG:
		return renderers.PNG(resolution)(w, c)
	case FormatJPG:
		return renderers.JPEG(resolution, &jpeg.Options{Quality: 95})(w, c)
	case FormatPDF:
		doc := pdf.New(w, c.W, c.H, nil)
		doc.SetInfo(meta.Title, meta.Subject, strings.Join(meta.Keywords, ", "), meta.Author, meta.Creator)
		c.RenderTo(doc)
		return doc.Close()
	case FormatSVG:
		doc := svg.New(w, c.W, c.H, nil)
		c.RenderTo(doc)
		return doc.Close()
	default:
		return fmt.Errorf("canvas 渲染器不支持格式 %s", r.format)
	}
}

// Rasterize 把布局绘制为 RGBA 位图。
func (r *Renderer) Rasterize(result *layout.Result) (*image.RGBA, error) {
	c, err := r.draw(result)
	if err != nil {
		return nil, err
	}
	return rasterizer.Draw(c, resolution, canvas.DefaultColorSpace), nil
}

// Face 实现 layout.Typesetter，sizePx 为像素字号。
func (r *Renderer) Face(font layout.FontResource, sizePx float64) (layout.Face, error) {
	f, err := r.families.get(font)
	if err != nil {
		return nil, err
	}
	return &face{ff: f.face(sizePx, layout.Black), mu: &r.measureMu}, nil
}

// ImageSize 实现 layout.ImageMeasurer。
func (r *Renderer) ImageSize(src string) (int, int, error) {
	return r.assets.ImageSize(src)
}

type face struct {
	ff *canvas.FontFace
	mu *sync.Mutex
}

func (f *face) TextWidth(s string) float64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.ff.TextWidth(s)
}

func (f *face) Metrics() layout.FaceMetrics {
	f.mu.Lock()
	defer f.mu.Unlock()
	m := f.ff.Metrics()
	return layout.FaceMetrics{Ascent: math.Abs(m.Ascent), Descent: math.Abs(m.Descent)}
}

func (r *Renderer) draw(result *layout.Result) (*canvas.Canvas, error) {
	if result == nil {
		return nil, fmt.Errorf("渲染结果为空")
	}
	if result.Width <= 0 || result.Height <= 0 {
		return nil, fmt.Errorf("位图尺寸无效: %dx%d", result.Width, result.Height)
	}
	w, h := float64(result.Width), float64(result.Height)
	c := canvas.New(w, h)
	ctx := canvas.NewContext(c)
	ctx.SetCoordSystem(canvas.CartesianIV) // 原点在左上角，与布局坐标一致

	if result.Background.A > 0 {
		ctx.SetFillColor(result.Background.NRGBA())
		ctx.SetStrokeColor(canvas.Transparent)
		ctx.DrawPath(0, 0, canvas.Rectangle(w, h))
	}

	pad := float64(result.Padding)
	for _, row := range result.Rows {
		top := pad + float64(row.Y)
		for _, col := range row.Columns {
			if err := r.drawColumn(ctx, col, pad, top, result.Resources); err != nil {
				return nil, err
			}
		}
		if row.Image != nil {
			if err := r.drawImage(ctx, *row.Image, pad, top); err != nil {
				return nil, err
			}
		}
	}
	return c, nil
}

func (r *Renderer) drawColumn(ctx *canvas.Context, col layout.Column, left, top float64, res layout.ResourceSet) error {
	f, err := r.families.get(columnFont(col.Font, res.Fonts))
	if err != nil {
		return err
	}
	ff := f.face(col.FontSize, col.Color)
	for _, line := range col.Lines {
		if line.Content == "" {
			continue
		}
		text := canvas.NewTextLine(ff, line.Content, canvas.Left)
		ctx.DrawText(left+float64(line.X), top+float64(line.Y)+line.Baseline, text)
	}
	return nil
}

func (r *Renderer) drawImage(ctx *canvas.Context, box layout.ImageBox, left, top float64) error {
	img, err := r.assets.Image(box.Src)
	if err != nil {
		return err
	}
	if box.Width <= 0 || img.Bounds().Dx() <= 0 {
		return nil
	}
	// 以分辨率控制缩放：原图宽度的像素铺满 box.Width 毫米
	dpmm := float64(img.Bounds().Dx()) / float64(box.Width)
	ctx.DrawImage(left+float64(box.X), top, img, canvas.DPMM(dpmm))
	return nil
}
