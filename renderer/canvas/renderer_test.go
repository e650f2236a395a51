package canvasrenderer

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"strings"
	"testing"

	"github.com/tdewolff/canvas"

	"github.com/ByLCY/receipt/layout"
	"github.com/ByLCY/receipt/renderer/assets"
)

var bodyFont = layout.FontResource{Name: "Body", Src: "embed:goregular"}

func buildResult(t *testing.T, r *Renderer, lines ...layout.Line) *layout.Result {
	t.Helper()
	res, err := layout.BuildLines(context.Background(), lines, layout.NewResourceSet(""), layout.BuildOptions{
		Typesetter:   r,
		Images:       r,
		DisplayWidth: 200,
		Background:   layout.White,
	})
	if err != nil {
		t.Fatalf("布局计算失败: %v", err)
	}
	return res
}

func sampleLines() []layout.Line {
	return []layout.Line{
		{Center: &layout.Segment{Text: "Some Market", Size: layout.Length{Value: 17, Unit: layout.UnitSP}}},
		{Divider: &layout.Divider{}},
		{Left: &layout.Segment{Text: "Hypex x2"}, Right: &layout.Segment{Text: "8.600 JOD", Color: "#0F62FE"}},
	}
}

func TestFaceMeasuresInPixels(t *testing.T) {
	r := NewRenderer("")
	small, err := r.Face(bodyFont, 12)
	if err != nil {
		t.Fatalf("加载字体失败: %v", err)
	}
	large, err := r.Face(bodyFont, 24)
	if err != nil {
		t.Fatalf("加载字体失败: %v", err)
	}
	ws, wl := small.TextWidth("receipt"), large.TextWidth("receipt")
	if ws <= 0 || wl < ws*1.9 || wl > ws*2.1 {
		t.Fatalf("宽度应与字号成正比: %g %g", ws, wl)
	}
	m := small.Metrics()
	if m.Ascent <= 0 || m.Descent <= 0 || m.Ascent+m.Descent > 24 {
		t.Fatalf("字体度量异常: %+v", m)
	}
}

// 当第一行宽度与容器宽度恰好相等且后面紧跟一个显式换行时，不应产生额外的空行。
func TestNoBlankLineWhenEqualWidthThenNewline(t *testing.T) {
	r := NewRenderer("")
	face, err := r.Face(bodyFont, 16)
	if err != nil {
		t.Fatalf("加载字体失败: %v", err)
	}
	first := "SAMPLE-A"
	limit := face.TextWidth(first)
	lines := layout.WrapText(first+"\nSAMPLE-B", limit, face)
	if len(lines) != 2 || lines[0] != first || lines[1] != "SAMPLE-B" {
		t.Fatalf("折行结果错误: %q", lines)
	}
}

func TestRenderPNGMatchesLayoutSize(t *testing.T) {
	r := NewRenderer("")
	res := buildResult(t, r, sampleLines()...)
	data, err := r.Render(res)
	if err != nil {
		t.Fatalf("渲染失败: %v", err)
	}
	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("解码 PNG 失败: %v", err)
	}
	if img.Bounds().Dx() != res.Width || img.Bounds().Dy() != res.Height {
		t.Fatalf("位图尺寸 %v 与布局 %dx%d 不一致", img.Bounds(), res.Width, res.Height)
	}
	r0, g0, b0, _ := img.At(0, 0).RGBA()
	if r0>>8 != 255 || g0>>8 != 255 || b0>>8 != 255 {
		t.Fatalf("留白处应为背景色")
	}
}

func TestRasterizeDrawsText(t *testing.T) {
	r := NewRenderer("")
	res := buildResult(t, r, sampleLines()...)
	img, err := r.Rasterize(res)
	if err != nil {
		t.Fatalf("光栅化失败: %v", err)
	}
	if img.Bounds().Dx() != res.Width || img.Bounds().Dy() != res.Height {
		t.Fatalf("位图尺寸错误: %v", img.Bounds())
	}
	dark := 0
	for y := 0; y < img.Bounds().Dy(); y++ {
		for x := 0; x < img.Bounds().Dx(); x++ {
			if c := img.RGBAAt(x, y); c.R < 128 && c.G < 128 {
				dark++
			}
		}
	}
	if dark == 0 {
		t.Fatalf("位图中没有绘制任何文字")
	}
}

func TestRenderVectorFormats(t *testing.T) {
	for format, marker := range map[Format]string{FormatPDF: "%PDF", FormatSVG: "<svg"} {
		r := NewRendererWithOptions(Options{Format: format})
		res := buildResult(t, r, sampleLines()...)
		res.Meta = layout.DocumentMeta{Title: "Receipt", Creator: "receipt"}
		data, err := r.Render(res)
		if err != nil {
			t.Fatalf("%s 渲染失败: %v", format, err)
		}
		if !strings.Contains(string(data), marker) {
			t.Fatalf("%s 输出缺少 %q", format, marker)
		}
	}
}

func TestRenderImageRow(t *testing.T) {
	logo := image.NewNRGBA(image.Rect(0, 0, 20, 10))
	for y := 0; y < 10; y++ {
		for x := 0; x < 20; x++ {
			logo.Set(x, y, color.NRGBA{A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, logo); err != nil {
		t.Fatalf("编码图片失败: %v", err)
	}
	r := NewRendererWithOptions(Options{Options: assets.Options{
		Images: map[string]assets.Resource{"logo": {Bytes: buf.Bytes()}},
	}})
	res := buildResult(t, r, layout.Line{Image: &layout.ImageRef{Src: "built-in:logo", Width: layout.Length{Value: 40, Unit: layout.UnitPX}}})
	if res.Rows[0].Height != 20 {
		t.Fatalf("图片应等比放大到 40x20，实际高度 %d", res.Rows[0].Height)
	}
	img, err := r.Rasterize(res)
	if err != nil {
		t.Fatalf("光栅化失败: %v", err)
	}
	cx := res.Padding + res.Rows[0].Image.X + 20
	cy := res.Padding + 10
	if c := img.RGBAAt(cx, cy); c.R > 64 {
		t.Fatalf("图片中心应为黑色，实际 %+v", c)
	}
}

func TestRenderErrors(t *testing.T) {
	r := NewRendererWithOptions(Options{Format: "gif"})
	res := buildResult(t, r, sampleLines()...)
	if _, err := r.Render(res); err == nil {
		t.Fatalf("不支持的格式应报错")
	}
	if _, err := r.Render(nil); err == nil {
		t.Fatalf("空结果应报错")
	}
}

func TestFontStyle(t *testing.T) {
	cases := map[string]canvas.FontStyle{
		"":                canvas.FontRegular,
		"regular":         canvas.FontRegular,
		"Bold":            canvas.FontBold,
		"ExtraBold":       canvas.FontExtraBold,
		"SemiBold Italic": canvas.FontSemiBold | canvas.FontItalic,
		"demibold":        canvas.FontSemiBold,
		"Light Oblique":   canvas.FontLight | canvas.FontItalic,
	}
	for desc, want := range cases {
		if got := fontStyle(desc); got != want {
			t.Fatalf("fontStyle(%q) = %v，期望 %v", desc, got, want)
		}
	}
}

func TestFontFallback(t *testing.T) {
	r := NewRenderer("")
	missing := layout.FontResource{Name: "Missing", Src: "/no/such/font.ttf"}
	f, err := r.families.get(missing)
	if err != nil {
		t.Fatalf("无法加载的字体应退回内置字体: %v", err)
	}
	again, err := r.families.get(missing)
	if err != nil || again.ff != f.ff {
		t.Fatalf("字体族应被缓存")
	}
	if _, err := r.Face(missing, 12); err != nil {
		t.Fatalf("退回字体应可用于测量: %v", err)
	}
}

func TestColumnFont(t *testing.T) {
	heading := layout.FontResource{Name: "Heading", Src: "embed:gobold"}
	defined := map[string]layout.FontResource{"Body": bodyFont, "Heading": heading}
	if got := columnFont("Heading", defined); got != heading {
		t.Fatalf("应返回同名字体: %+v", got)
	}
	if got := columnFont("Nope", defined); got != bodyFont {
		t.Fatalf("未定义时应退回 Body: %+v", got)
	}
	if got := columnFont("Nope", nil); got.Src != "embed:goregular" {
		t.Fatalf("没有任何字体时应使用内置字体: %+v", got)
	}
}
