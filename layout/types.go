package layout

import (
	"image/color"
	"strings"
)

// 该文件定义输入模型（小票行）与布局结果，供布局计算、渲染与调试 JSON 共用。

// Align 表示列的水平对齐方式。
type Align string

const (
	AlignLeft   Align = "left"
	AlignCenter Align = "center"
	AlignRight  Align = "right"
)

// ParseAlign 支持 start/end/middle 别名，未知值按 left 处理。
func ParseAlign(v string) Align {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "center", "middle":
		return AlignCenter
	case "right", "end":
		return AlignRight
	default:
		return AlignLeft
	}
}

// Segment 是一行中某一列的文本及其字号、颜色。
type Segment struct {
	Text  string `json:"text"`
	Size  Length `json:"size,omitempty"`  // 默认 12sp
	Color string `json:"color,omitempty"` // #RRGGBB / #RGB / 颜色资源名，默认黑色
	Font  string `json:"font,omitempty"`  // 字体资源名，默认 Body
}

// Divider 用重复字符铺满整行宽度的分隔线。
type Divider struct {
	Char  string `json:"char,omitempty"` // 默认 "-"
	Size  Length `json:"size,omitempty"`
	Color string `json:"color,omitempty"`
	Font  string `json:"font,omitempty"`
}

// ImageRef 引用一张图片（资源名或路径），按宽度等比缩放。
type ImageRef struct {
	Src   string `json:"src"`
	Width Length `json:"width,omitempty"` // 省略时取原始宽度（不超过内容宽度）
	Align Align  `json:"align,omitempty"`
}

// Line 是小票中的一行。Left/Center/Right 各自独立折行；
// Divider、Spacer、Image 非空时该行为对应的特殊行。
type Line struct {
	Left    *Segment  `json:"left,omitempty"`
	Center  *Segment  `json:"center,omitempty"`
	Right   *Segment  `json:"right,omitempty"`
	Divider *Divider  `json:"divider,omitempty"`
	Spacer  *Length   `json:"spacer,omitempty"`
	Image   *ImageRef `json:"image,omitempty"`
}

// Result 保存一张小票的完整布局，坐标单位为像素。
type Result struct {
	Width        int          `json:"width"`        // 位图宽度 = ContentWidth + 2*Padding
	Height       int          `json:"height"`       // 位图高度 = Σ行高 + 2*Padding
	ContentWidth int          `json:"contentWidth"` // 折行所用的显示宽度
	Padding      int          `json:"padding"`
	Background   Color        `json:"background"`
	Rows         []Row        `json:"rows"`
	Resources    ResourceSet  `json:"resources"`
	Meta         DocumentMeta `json:"meta"`
}

// RowKind 区分行的种类。
type RowKind string

const (
	RowText    RowKind = "text"
	RowDivider RowKind = "divider"
	RowSpacer  RowKind = "spacer"
	RowImage   RowKind = "image"
)

// Row 是排好版的一行，Y 相对内容区域顶部。
type Row struct {
	Kind    RowKind   `json:"kind"`
	Y       int       `json:"y"`
	Height  int       `json:"height"`
	Columns []Column  `json:"columns,omitempty"`
	Image   *ImageBox `json:"image,omitempty"`
}

// Column 是一列折行后的文本，高度为各行高度之和（行间距为 0）。
type Column struct {
	Align    Align        `json:"align"`
	Font     string       `json:"font"`
	FontSize float64      `json:"fontSize"` // px
	Color    Color        `json:"color"`
	Lines    []TextLine   `json:"lines"`
	Height   int          `json:"height"`
	Debug    *ColumnDebug `json:"debug,omitempty"`
}

// TextLine 表示折行后的一行文本；X 相对内容区域左侧，Y 相对所在行顶部。
type TextLine struct {
	Content  string  `json:"content"`
	X        int     `json:"x"`
	Y        int     `json:"y"`
	Width    int     `json:"width"`
	Height   int     `json:"height"`
	Baseline float64 `json:"baseline"` // 行顶部到基线的距离（字体 ascent）
}

// ImageBox 记录图片在行内的位置与缩放后的尺寸。
type ImageBox struct {
	Src    string `json:"src"`
	X      int    `json:"x"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

// ColumnDebug holds optional debug info displayed only when enabled by BuildOptions.
type ColumnDebug struct {
	RawSize *RawLengthJSON `json:"rawSize,omitempty"`
}

// RawLengthJSON is a JSON-friendly representation of Length.
type RawLengthJSON struct {
	Value float64 `json:"value"`
	Unit  string  `json:"unit"`
}

// ResourceSet 记录解析出的字体、颜色、图片与样式定义。
type ResourceSet struct {
	Fonts  map[string]FontResource  `json:"fonts"`
	Colors map[string]Color         `json:"colors"`
	Images map[string]ImageResource `json:"images"`
	Styles map[string]Style         `json:"styles"`
}

// NewResourceSet 返回只包含默认 Body 字体的资源集。
func NewResourceSet(defaultFont string) ResourceSet {
	res := ResourceSet{
		Fonts:  map[string]FontResource{},
		Colors: map[string]Color{},
		Images: map[string]ImageResource{},
		Styles: map[string]Style{},
	}
	res.ensureDefaults(defaultFont)
	return res
}

func (r *ResourceSet) ensureDefaults(defaultFont string) {
	if r.Fonts == nil {
		r.Fonts = map[string]FontResource{}
	}
	if r.Colors == nil {
		r.Colors = map[string]Color{}
	}
	if r.Images == nil {
		r.Images = map[string]ImageResource{}
	}
	if r.Styles == nil {
		r.Styles = map[string]Style{}
	}
	if defaultFont == "" {
		defaultFont = "embed:goregular"
	}
	if _, ok := r.Fonts[DefaultFontName]; !ok {
		r.Fonts[DefaultFontName] = FontResource{
			Name:     DefaultFontName,
			Src:      defaultFont,
			Family:   DefaultFontName,
			Fallback: "embed:goregular",
		}
	}
}

// DefaultFontName 是未指定字体时使用的资源名。
const DefaultFontName = "Body"

// FontResource 描述字体资源，src 可以是文件路径、内置 embed:* 或 built-in:* 形式。
type FontResource struct {
	Name     string `json:"name"`
	Src      string `json:"src"`
	Style    string `json:"style,omitempty"`
	Family   string `json:"family"` // 渲染器使用的 Family 名称
	Fallback string `json:"fallback,omitempty"`
}

// ImageResource 记录图片资源。
type ImageResource struct {
	Name string `json:"name"`
	Src  string `json:"src"`
}

// Color 采用 0-255 的 RGBA 数值。
type Color struct {
	R int `json:"r"`
	G int `json:"g"`
	B int `json:"b"`
	A int `json:"a"`
}

var (
	Black       = Color{A: 255}
	White       = Color{R: 255, G: 255, B: 255, A: 255}
	Transparent = Color{}
)

// NRGBA 转换为标准库颜色。
func (c Color) NRGBA() color.NRGBA {
	return color.NRGBA{R: clamp8(c.R), G: clamp8(c.G), B: clamp8(c.B), A: clamp8(c.A)}
}

func clamp8(v int) uint8 {
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return uint8(v)
}

// Style 用于描述可继承的文本样式。
type Style struct {
	Name    string            `json:"name"`
	Extends string            `json:"extends,omitempty"`
	Props   map[string]string `json:"props"`
}

// DocumentMeta 保存输出文件的元信息（PDF info 等）。
type DocumentMeta struct {
	Title    string   `json:"title"`
	Author   string   `json:"author"`
	Subject  string   `json:"subject"`
	Creator  string   `json:"creator"`
	Keywords []string `json:"keywords"`
}
