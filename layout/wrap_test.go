package layout

import (
	"strings"
	"testing"
	"unicode/utf8"
)

// monoFace 每个字符宽 advance 像素，便于精确断言折行结果。
type monoFace struct {
	advance float64
	ascent  float64
	descent float64
}

func (f monoFace) TextWidth(s string) float64 {
	return float64(utf8.RuneCountInString(s)) * f.advance
}

func (f monoFace) Metrics() FaceMetrics {
	return FaceMetrics{Ascent: f.ascent, Descent: f.descent}
}

var tenPx = monoFace{advance: 10, ascent: 8, descent: 3}

func TestWrapTextGreedy(t *testing.T) {
	// 限宽 10 个字符
	got := WrapText("Thank you for shopping with us", 100, tenPx)
	want := []string{"Thank you", "for", "shopping", "with us"}
	if strings.Join(got, "|") != strings.Join(want, "|") {
		t.Fatalf("折行结果错误: got=%q want=%q", got, want)
	}
}

func TestWrapTextFitsExactly(t *testing.T) {
	got := WrapText("abcde fghi", 100, tenPx)
	if len(got) != 1 || got[0] != "abcde fghi" {
		t.Fatalf("恰好等宽时不应折行: %q", got)
	}
}

func TestWrapTextCollapsesWhitespace(t *testing.T) {
	got := WrapText("  Cash   3  ", 1000, tenPx)
	if len(got) != 1 || got[0] != "Cash 3" {
		t.Fatalf("多余空白应被折叠: %q", got)
	}
}

func TestWrapTextSplitsOverlongWord(t *testing.T) {
	got := WrapText("ab -----------------------", 100, tenPx)
	if len(got) != 4 {
		t.Fatalf("超长词应被拆成多段: %q", got)
	}
	if got[0] != "ab" || got[1] != "----------" || got[3] != "---" {
		t.Fatalf("拆分结果错误: %q", got)
	}
	for i, line := range got {
		if w := tenPx.TextWidth(line); w > 100 {
			t.Fatalf("第 %d 行超宽: %q width=%g", i, line, w)
		}
	}
}

func TestWrapTextNarrowerThanOneRune(t *testing.T) {
	got := WrapText("abc", 5, tenPx)
	if strings.Join(got, "|") != "a|b|c" {
		t.Fatalf("限宽小于单字符时每段应保留一个字符: %q", got)
	}
}

func TestWrapTextHonorsNewlines(t *testing.T) {
	got := WrapText("foo\n\nbar", 1000, tenPx)
	if len(got) != 3 || got[1] != "" {
		t.Fatalf("显式换行应保留空行: %q", got)
	}
}

func TestWrapTextBlank(t *testing.T) {
	if got := WrapText(" \t \n ", 100, tenPx); got != nil {
		t.Fatalf("空白文本应返回 nil，实际 %q", got)
	}
}

func TestFillWidth(t *testing.T) {
	if got := fillWidth("-", 95, tenPx); got != strings.Repeat("-", 9) {
		t.Fatalf("分隔线长度错误: %q", got)
	}
	if got := fillWidth("=", 3, tenPx); got != "=" {
		t.Fatalf("至少保留一个字符: %q", got)
	}
}
