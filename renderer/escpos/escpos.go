// Package escpos 把位图编码为热敏小票打印机使用的 ESC/POS 光栅指令。
package escpos

import (
	"bytes"
	"fmt"
	"image"

	"github.com/ByLCY/receipt/layout"
	"github.com/ByLCY/receipt/renderer"
)

const (
	esc = 0x1B
	gs  = 0x1D

	defaultThreshold  = 128
	defaultBandHeight = 256
)

// PrintingType 对应 GS v 0 的 m 参数。
type PrintingType byte

const (
	PrintNormal       PrintingType = 0
	PrintDoubleWidth  PrintingType = 1
	PrintDoubleHeight PrintingType = 2
	PrintQuadruple    PrintingType = 3
)

// Target 接收按带切分的光栅数据。data 每行 bytesWidth 字节，最高位为最左侧像素，1 为黑点。
type Target interface {
	Raster(width, height, bytesWidth int, data []byte, printingType PrintingType) error
}

// Encoder 控制二值化与打印收尾动作。零值可用。
type Encoder struct {
	Threshold    uint8 // 亮度低于该值的像素打印为黑点，0 表示 128
	BandHeight   int   // 每条 GS v 0 指令的最大行数，0 表示 256
	Feed         int   // 打印后走纸行数（ESC d n）
	Cut          bool  // 走纸后半切（GS V 66 0）
	PrintingType PrintingType
}

// Pack 把图片二值化为按行打包的位数据。alpha 小于 128 的像素视为白色。
func (e Encoder) Pack(img image.Image) (width, height, bytesWidth int, data []byte) {
	b := img.Bounds()
	width, height = b.Dx(), b.Dy()
	bytesWidth = (width + 7) / 8
	data = make([]byte, bytesWidth*height)
	threshold := uint32(e.Threshold)
	if threshold == 0 {
		threshold = defaultThreshold
	}
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			r, g, bl, a := img.At(b.Min.X+x, b.Min.Y+y).RGBA()
			if a>>8 < 128 {
				continue
			}
			lum := (299*(r>>8) + 587*(g>>8) + 114*(bl>>8)) / 1000
			if lum < threshold {
				data[y*bytesWidth+x/8] |= 0x80 >> uint(x%8)
			}
		}
	}
	return width, height, bytesWidth, data
}

// Print 把图片按带发送给 Target。
func (e Encoder) Print(img image.Image, t Target) error {
	if img == nil {
		return fmt.Errorf("escpos: 图片为空")
	}
	width, height, bytesWidth, data := e.Pack(img)
	if width == 0 || height == 0 {
		return fmt.Errorf("escpos: 图片尺寸无效: %dx%d", width, height)
	}
	band := e.BandHeight
	if band <= 0 {
		band = defaultBandHeight
	}
	for y := 0; y < height; y += band {
		h := min(band, height-y)
		chunk := data[y*bytesWidth : (y+h)*bytesWidth]
		if err := t.Raster(width, h, bytesWidth, chunk, e.PrintingType); err != nil {
			return fmt.Errorf("escpos: 发送第 %d 行起的光栅数据失败: %w", y, err)
		}
	}
	return nil
}

// Encode 生成完整的指令流：初始化、光栅带、走纸与切纸。
func (e Encoder) Encode(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	buf.Write([]byte{esc, '@'})
	if err := e.Print(img, &CommandWriter{Buf: &buf}); err != nil {
		return nil, err
	}
	if e.Feed > 0 {
		buf.Write([]byte{esc, 'd', byte(min(e.Feed, 255))})
	}
	if e.Cut {
		buf.Write([]byte{gs, 'V', 66, 0})
	}
	return buf.Bytes(), nil
}

// CommandWriter 是把光栅带写成 GS v 0 指令的 Target。
type CommandWriter struct {
	Buf *bytes.Buffer
}

// Raster 实现 Target。
func (w *CommandWriter) Raster(width, height, bytesWidth int, data []byte, printingType PrintingType) error {
	if bytesWidth > 0xFFFF || height > 0xFFFF {
		return fmt.Errorf("escpos: 光栅尺寸超出范围: %dx%d", bytesWidth*8, height)
	}
	w.Buf.Write([]byte{
		gs, 'v', '0', byte(printingType),
		byte(bytesWidth), byte(bytesWidth >> 8),
		byte(height), byte(height >> 8),
	})
	w.Buf.Write(data)
	return nil
}

// Renderer 先用 Source 光栅化布局，再编码为 ESC/POS。
type Renderer struct {
	Source  renderer.Rasterizer
	Encoder Encoder
}

var _ renderer.Renderer = (*Renderer)(nil)

// Render 实现 renderer.Renderer。
func (r *Renderer) Render(result *layout.Result) ([]byte, error) {
	if r.Source == nil {
		return nil, fmt.Errorf("escpos: 缺少光栅化后端")
	}
	img, err := r.Source.Rasterize(result)
	if err != nil {
		return nil, err
	}
	return r.Encoder.Encode(img)
}
