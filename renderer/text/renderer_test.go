package textrenderer

import (
	"context"
	"strings"
	"testing"

	"github.com/muesli/ansi"
	"github.com/muesli/termenv"

	"github.com/ByLCY/receipt/layout"
)

func render(t *testing.T, r *Renderer, columns int, lines ...layout.Line) string {
	t.Helper()
	res, err := layout.BuildLines(context.Background(), lines, layout.NewResourceSet(""), r.BuildOptions(columns))
	if err != nil {
		t.Fatalf("布局计算失败: %v", err)
	}
	out, err := r.Render(res)
	if err != nil {
		t.Fatalf("渲染失败: %v", err)
	}
	return string(out)
}

func TestRenderColumnsAndDivider(t *testing.T) {
	r := New(termenv.Ascii)
	got := render(t, r, 20,
		layout.Line{Left: &layout.Segment{Text: "Total"}, Right: &layout.Segment{Text: "15 JOD"}},
		layout.Line{Center: &layout.Segment{Text: "Hi"}},
		layout.Line{Divider: &layout.Divider{}},
		layout.Line{Spacer: &layout.Length{Value: 8, Unit: layout.UnitDP}},
		layout.Line{Left: &layout.Segment{Text: "收据"}, Right: &layout.Segment{Text: "ok"}},
	)
	want := strings.Join([]string{
		"Total         15 JOD",
		"         Hi",
		"--------------------",
		"",
		"收据              ok",
		"",
	}, "\n")
	if got != want {
		t.Fatalf("预览输出错误:\n%q\n期望:\n%q", got, want)
	}
}

func TestRenderWrappedRow(t *testing.T) {
	r := New(termenv.Ascii)
	got := render(t, r, 20, layout.Line{
		Left:  &layout.Segment{Text: "aaaa bbbb cccc dddd eeee"},
		Right: &layout.Segment{Text: "x"},
	})
	// 右列只有一行，按均匀分布落在第 0 行
	want := "aaaa bbbb cccc ddddx\neeee\n"
	if got != want {
		t.Fatalf("折行预览错误:\n%q\n期望:\n%q", got, want)
	}
}

func TestRenderImagePlaceholder(t *testing.T) {
	r := New(termenv.Ascii)
	got := render(t, r, 20, layout.Line{Image: &layout.ImageRef{Src: "logo.png"}})
	if got != "      [image]\n" {
		t.Fatalf("图片占位错误: %q", got)
	}
}

func TestRenderColors(t *testing.T) {
	r := New(termenv.TrueColor)
	got := render(t, r, 20, layout.Line{
		Left:  &layout.Segment{Text: "plain"},
		Right: &layout.Segment{Text: "blue", Color: "#0F62FE"},
	})
	if !strings.HasPrefix(got, "plain") {
		t.Fatalf("黑色文本不应着色: %q", got)
	}
	if !strings.Contains(got, "\x1b[") || !strings.Contains(got, "blue") {
		t.Fatalf("彩色文本应包含 ANSI 序列: %q", got)
	}
	if w := ansi.PrintableRuneWidth(strings.TrimSuffix(got, "\n")); w != 20 {
		t.Fatalf("去掉 ANSI 序列后应占满 20 列，实际 %d: %q", w, got)
	}
}

func TestRenderNil(t *testing.T) {
	if _, err := New(termenv.Ascii).Render(nil); err == nil {
		t.Fatalf("空结果应报错")
	}
}
