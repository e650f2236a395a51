// Package imageutil 提供把渲染结果适配到固定显示区域的位图辅助函数。
package imageutil

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"math"

	"golang.org/x/image/draw"
)

// ErrCropAnchor 表示裁剪锚点不在 [0,1] 范围内。
var ErrCropAnchor = errors.New("imageutil: 裁剪锚点必须在 0 到 1 之间（含）")

// CenterCrop 等价于 Crop(src, w, h, 0.5, 0.5)。
func CenterCrop(src image.Image, w, h int) (image.Image, error) {
	return Crop(src, w, h, 0.5, 0.5)
}

// Crop 按 max(w/sw, h/sh) 等比缩放后裁出 w x h 的区域。
//
// hPct/vPct 决定从源图的哪一部分裁剪（0 为左/上，1 为右/下），
// 裁剪窗口会被推回源图范围内。尺寸已经符合时原样返回 src。
func Crop(src image.Image, w, h int, hPct, vPct float64) (image.Image, error) {
	if hPct < 0 || hPct > 1 || vPct < 0 || vPct > 1 {
		return nil, fmt.Errorf("%w: horizontal=%g vertical=%g", ErrCropAnchor, hPct, vPct)
	}
	if src == nil {
		return nil, fmt.Errorf("imageutil: 源图为空")
	}
	if w <= 0 || h <= 0 {
		return nil, fmt.Errorf("imageutil: 目标尺寸无效: %dx%d", w, h)
	}
	b := src.Bounds()
	sw, sh := b.Dx(), b.Dy()
	if sw == w && sh == h {
		return src, nil
	}
	if sw <= 0 || sh <= 0 {
		return nil, fmt.Errorf("imageutil: 源图尺寸无效: %dx%d", sw, sh)
	}

	scale := math.Max(float64(w)/float64(sw), float64(h)/float64(sh))
	cw := min(int(math.Round(float64(w)/scale)), sw)
	ch := min(int(math.Round(float64(h)/scale)), sh)
	x := int(float64(sw)*hPct - float64(cw/2))
	y := int(float64(sh)*vPct - float64(ch/2))
	x = max(min(x, sw-cw), 0)
	y = max(min(y, sh-ch), 0)

	window := image.Rect(b.Min.X+x, b.Min.Y+y, b.Min.X+x+cw, b.Min.Y+y+ch)
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, window, draw.Src, nil)
	return dst, nil
}

// Solid 返回单一颜色的 1x1 图片，可作为占位背景。
func Solid(c color.Color) image.Image {
	img := image.NewNRGBA(image.Rect(0, 0, 1, 1))
	img.Set(0, 0, c)
	return img
}
