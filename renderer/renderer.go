package renderer

import (
	"image"

	"github.com/ByLCY/receipt/layout"
)

// Renderer 将布局结果输出为最终文件，例如 PNG、PDF 或 ESC/POS 指令。
// Render 返回生成的二进制数据以及可能的错误。
type Renderer interface {
	Render(result *layout.Result) ([]byte, error)
}

// Rasterizer 将布局结果绘制成位图，尺寸恰为 Result.Width x Result.Height。
type Rasterizer interface {
	Rasterize(result *layout.Result) (*image.RGBA, error)
}
