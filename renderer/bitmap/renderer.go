// Package bitmap 使用 golang.org/x/image 的 opentype 光栅化直接绘制位图，
// 不依赖矢量画布，适合只需要 PNG/JPEG 的场景。
package bitmap

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"sync"

	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"

	"github.com/ByLCY/receipt/fonts"
	"github.com/ByLCY/receipt/layout"
	"github.com/ByLCY/receipt/renderer"
	"github.com/ByLCY/receipt/renderer/assets"
)

// Format 是 Render 的输出格式。
type Format string

const (
	FormatPNG Format = "png"
	FormatJPG Format = "jpg"
)

// Options configures the bitmap renderer.
type Options struct {
	assets.Options
	Format Format // 默认 png
}

// Renderer 以 72 DPI 创建字体面，使 1pt = 1px。
type Renderer struct {
	assets *assets.Loader
	format Format

	mu    sync.Mutex
	fonts map[string]*opentype.Font
	faces map[faceKey]*lockedFace
}

var (
	_ renderer.Renderer    = (*Renderer)(nil)
	_ renderer.Rasterizer  = (*Renderer)(nil)
	_ layout.Typesetter    = (*Renderer)(nil)
	_ layout.ImageMeasurer = (*Renderer)(nil)
)

type faceKey struct {
	font string
	size float64
}

// New creates a bitmap renderer.
func New(opts Options) *Renderer {
	format := opts.Format
	if format == "" {
		format = FormatPNG
	}
	return &Renderer{
		assets: assets.NewLoader(opts.Options),
		format: format,
		fonts:  map[string]*opentype.Font{},
		faces:  map[faceKey]*lockedFace{},
	}
}

// Face 实现 layout.Typesetter。
func (r *Renderer) Face(res layout.FontResource, sizePx float64) (layout.Face, error) {
	return r.face(res, sizePx)
}

// ImageSize 实现 layout.ImageMeasurer。
func (r *Renderer) ImageSize(src string) (int, int, error) {
	return r.assets.ImageSize(src)
}

func (r *Renderer) face(res layout.FontResource, sizePx float64) (*lockedFace, error) {
	key := faceKey{font: res.Name + "|" + res.Src, size: sizePx}
	r.mu.Lock()
	defer r.mu.Unlock()
	if f, ok := r.faces[key]; ok {
		return f, nil
	}
	parsed, ok := r.fonts[key.font]
	if !ok {
		var err error
		if parsed, err = r.parse(res); err != nil {
			// 与 canvas 后端一致：无法加载的字体退回内置字体
			if parsed, err = r.parse(layout.FontResource{Name: res.Name, Src: fonts.Default}); err != nil {
				return nil, err
			}
		}
		r.fonts[key.font] = parsed
	}
	ff, err := opentype.NewFace(parsed, &opentype.FaceOptions{
		Size:    sizePx,
		DPI:     72,
		Hinting: font.HintingNone,
	})
	if err != nil {
		return nil, fmt.Errorf("创建字体面 %s 失败: %w", res.Name, err)
	}
	f := &lockedFace{face: ff}
	r.faces[key] = f
	return f, nil
}

func (r *Renderer) parse(res layout.FontResource) (*opentype.Font, error) {
	data, err := r.assets.FontBytes(res)
	if err != nil {
		return nil, err
	}
	parsed, err := opentype.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("解析字体 %s 失败: %w", res.Name, err)
	}
	return parsed, nil
}

// lockedFace 包装 font.Face；opentype 的 Face 不可并发使用。
type lockedFace struct {
	mu   sync.Mutex
	face font.Face
}

func (f *lockedFace) TextWidth(s string) float64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return fixedToFloat(font.MeasureString(f.face, s))
}

func (f *lockedFace) Metrics() layout.FaceMetrics {
	f.mu.Lock()
	defer f.mu.Unlock()
	m := f.face.Metrics()
	return layout.FaceMetrics{Ascent: fixedToFloat(m.Ascent), Descent: fixedToFloat(m.Descent)}
}

func (f *lockedFace) drawString(dst draw.Image, src image.Image, dot fixed.Point26_6, s string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	d := font.Drawer{Dst: dst, Src: src, Face: f.face, Dot: dot}
	d.DrawString(s)
}

func fixedToFloat(v fixed.Int26_6) float64 {
	return float64(v) / 64
}

// Render 按构造时指定的格式编码位图。
func (r *Renderer) Render(result *layout.Result) ([]byte, error) {
	img, err := r.Rasterize(result)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	switch r.format {
	case FormatPNG:
		err = png.Encode(&buf, img)
	case FormatJPG:
		err = jpeg.Encode(&buf, img, &jpeg.Options{Quality: 95})
	default:
		return nil, fmt.Errorf("bitmap 渲染器不支持格式 %s", r.format)
	}
	if err != nil {
		return nil, fmt.Errorf("编码 %s 失败: %w", r.format, err)
	}
	return buf.Bytes(), nil
}

// Rasterize 绘制背景、各列文本与图片行。
func (r *Renderer) Rasterize(result *layout.Result) (*image.RGBA, error) {
	if result == nil {
		return nil, fmt.Errorf("渲染结果为空")
	}
	if result.Width <= 0 || result.Height <= 0 {
		return nil, fmt.Errorf("位图尺寸无效: %dx%d", result.Width, result.Height)
	}
	img := image.NewRGBA(image.Rect(0, 0, result.Width, result.Height))
	if result.Background.A > 0 {
		draw.Draw(img, img.Bounds(), image.NewUniform(result.Background.NRGBA()), image.Point{}, draw.Src)
	}

	pad := result.Padding
	for _, row := range result.Rows {
		top := pad + row.Y
		for _, col := range row.Columns {
			if err := r.drawColumn(img, col, pad, top, result.Resources); err != nil {
				return nil, err
			}
		}
		if row.Image != nil {
			if err := r.drawImage(img, *row.Image, pad, top); err != nil {
				return nil, err
			}
		}
	}
	return img, nil
}

func (r *Renderer) drawColumn(img *image.RGBA, col layout.Column, left, top int, res layout.ResourceSet) error {
	fontRes, ok := res.Fonts[col.Font]
	if !ok {
		fontRes = res.Fonts[layout.DefaultFontName]
	}
	f, err := r.face(fontRes, col.FontSize)
	if err != nil {
		return err
	}
	src := image.NewUniform(col.Color.NRGBA())
	for _, line := range col.Lines {
		if line.Content == "" {
			continue
		}
		dot := fixed.Point26_6{
			X: fixed.I(left + line.X),
			Y: fixed.I(top+line.Y) + fixed.Int26_6(line.Baseline*64),
		}
		f.drawString(img, src, dot, line.Content)
	}
	return nil
}

func (r *Renderer) drawImage(img *image.RGBA, box layout.ImageBox, left, top int) error {
	src, err := r.assets.Image(box.Src)
	if err != nil {
		return err
	}
	x := left + box.X
	dst := image.Rect(x, top, x+box.Width, top+box.Height)
	draw.CatmullRom.Scale(img, dst, src, src.Bounds(), draw.Over, nil)
	return nil
}
