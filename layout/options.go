package layout

import "github.com/ByLCY/receipt/logger"

// BuildOptions 配置布局阶段所需的依赖与目标显示参数。
type BuildOptions struct {
	Typesetter   Typesetter
	Images       ImageMeasurer // 仅当小票包含图片行时需要
	DisplayWidth int           // 内容区域宽度（px），即折行宽度
	Metrics      DisplayMetrics
	Padding      *Length // 四周留白，nil 时为 5dp
	Background   Color
	DefaultFont  string // Body 字体的 src，默认 embed:goregular
	Concurrency  int    // 并发排版的行数上限，<=0 时为 4
	Logger       logger.Logger
	Debug        DebugOptions
}

// DebugOptions 控制调试相关输出。
type DebugOptions struct {
	RawUnits bool // 在调试 JSON 中输出 columns[].debug.rawSize 影子字段
}

// Typesetter 根据字体资源与像素字号提供可测量的字体面。
// 实现必须可被多个 goroutine 并发调用。
type Typesetter interface {
	Face(font FontResource, sizePx float64) (Face, error)
}

// Face 是折行所需的最小字体度量能力，单位为像素。
type Face interface {
	TextWidth(s string) float64
	Metrics() FaceMetrics
}

// FaceMetrics 字体纵向度量，Ascent/Descent 均为正数。
type FaceMetrics struct {
	Ascent  float64
	Descent float64
}

// ImageMeasurer 返回图片资源的原始像素尺寸。
type ImageMeasurer interface {
	ImageSize(src string) (width, height int, err error)
}

const (
	defaultConcurrency = 4
	defaultFontSizeSp  = 12.0
)

var defaultPadding = Length{Value: 5, Unit: UnitDP}
