package canvasrenderer

import (
	"cmp"
	"fmt"
	"strings"
	"sync"

	"github.com/tdewolff/canvas"

	"github.com/ByLCY/receipt/fonts"
	"github.com/ByLCY/receipt/layout"
	"github.com/ByLCY/receipt/renderer/assets"
)

const fallbackFamilyName = "receipt-fallback"

type fontKey struct {
	name, src, style string
}

// family 是已加载的字体族及其字重。
type family struct {
	ff    *canvas.FontFamily
	style canvas.FontStyle
}

// face 以像素字号创建字体面。
func (f family) face(sizePx float64, c layout.Color) *canvas.FontFace {
	return f.ff.Face(sizePx*mmToPt, c.NRGBA(), f.style, canvas.FontNormal)
}

// familyCache 缓存字体族；同一资源只解析一次，加载失败时退回内置字体。
type familyCache struct {
	assets *assets.Loader

	mu       sync.Mutex
	families map[fontKey]family
	fallback *family
}

func newFamilyCache(loader *assets.Loader) *familyCache {
	return &familyCache{assets: loader, families: map[fontKey]family{}}
}

func (fc *familyCache) get(res layout.FontResource) (family, error) {
	key := fontKey{name: res.Name, src: res.Src, style: res.Style}
	fc.mu.Lock()
	defer fc.mu.Unlock()
	if f, ok := fc.families[key]; ok {
		return f, nil
	}
	f, err := fc.load(res)
	if err != nil {
		fb, fbErr := fc.loadFallback()
		if fbErr != nil {
			return family{}, err
		}
		f = fb
	}
	fc.families[key] = f
	return f, nil
}

func (fc *familyCache) load(res layout.FontResource) (family, error) {
	data, err := fc.assets.FontBytes(res)
	if err != nil {
		return family{}, err
	}
	name := cmp.Or(res.Family, res.Name, layout.DefaultFontName)
	f := family{ff: canvas.NewFontFamily(name), style: fontStyle(res.Style)}
	if err := f.ff.LoadFont(data, 0, f.style); err != nil {
		return family{}, fmt.Errorf("加载字体 %s 失败: %w", name, err)
	}
	return f, nil
}

// loadFallback 在持有 mu 时调用。
func (fc *familyCache) loadFallback() (family, error) {
	if fc.fallback != nil {
		return *fc.fallback, nil
	}
	data, err := fonts.Load(fonts.Default)
	if err != nil {
		return family{}, err
	}
	f := family{ff: canvas.NewFontFamily(fallbackFamilyName), style: canvas.FontRegular}
	if err := f.ff.LoadFont(data, 0, f.style); err != nil {
		return family{}, err
	}
	fc.fallback = &f
	return f, nil
}

// 按顺序匹配，extrabold 与 semibold 必须先于 bold。
var fontWeights = []struct {
	keyword string
	style   canvas.FontStyle
}{
	{"black", canvas.FontBlack},
	{"extrabold", canvas.FontExtraBold},
	{"semibold", canvas.FontSemiBold},
	{"demibold", canvas.FontSemiBold},
	{"bold", canvas.FontBold},
	{"medium", canvas.FontMedium},
	{"light", canvas.FontLight},
}

// fontStyle 把 "SemiBold Italic" 之类的描述转换为 canvas 字重与斜体标记。
func fontStyle(desc string) canvas.FontStyle {
	desc = strings.ToLower(desc)
	style := canvas.FontRegular
	for _, w := range fontWeights {
		if strings.Contains(desc, w.keyword) {
			style = w.style
			break
		}
	}
	if strings.Contains(desc, "italic") || strings.Contains(desc, "oblique") {
		style |= canvas.FontItalic
	}
	return style
}

// columnFont 返回列引用的字体资源，未定义时依次退回 Body、任意字体、内置字体。
func columnFont(name string, defined map[string]layout.FontResource) layout.FontResource {
	if f, ok := defined[name]; ok {
		return f
	}
	if f, ok := defined[layout.DefaultFontName]; ok {
		return f
	}
	for _, f := range defined {
		return f
	}
	return layout.FontResource{Name: layout.DefaultFontName, Src: fonts.Default}
}
