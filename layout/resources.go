package layout

import (
	"fmt"
	"strconv"
	"strings"
)

// resolveFontResource 按名称查找字体，空名使用 Body；具名字体未定义时报错。
func resolveFontResource(name string, res ResourceSet) (FontResource, error) {
	if name == "" {
		name = DefaultFontName
	}
	if font, ok := res.Fonts[name]; ok {
		return font, nil
	}
	return FontResource{}, fmt.Errorf("字体 %s 未定义", name)
}

// resolveColor 接受颜色资源名或十六进制颜色，空值为黑色。
func resolveColor(value string, res ResourceSet) (Color, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return Black, nil
	}
	if c, ok := res.Colors[value]; ok {
		return c, nil
	}
	if strings.HasPrefix(value, "#") {
		return ParseColor(value)
	}
	return Color{}, fmt.Errorf("颜色 %s 未定义", value)
}

// ParseColor 解析 #RGB、#RGBA、#RRGGBB 与 #RRGGBBAA。
func ParseColor(value string) (Color, error) {
	hex := strings.TrimPrefix(strings.TrimSpace(value), "#")
	if _, err := strconv.ParseUint(hex, 16, 64); err != nil {
		return Color{}, fmt.Errorf("颜色值 %s 无法解析", value)
	}
	switch len(hex) {
	case 3:
		return Color{
			R: mustHex(strings.Repeat(hex[0:1], 2)),
			G: mustHex(strings.Repeat(hex[1:2], 2)),
			B: mustHex(strings.Repeat(hex[2:3], 2)),
			A: 255,
		}, nil
	case 4:
		return Color{
			R: mustHex(strings.Repeat(hex[0:1], 2)),
			G: mustHex(strings.Repeat(hex[1:2], 2)),
			B: mustHex(strings.Repeat(hex[2:3], 2)),
			A: mustHex(strings.Repeat(hex[3:4], 2)),
		}, nil
	case 6:
		return Color{R: mustHex(hex[0:2]), G: mustHex(hex[2:4]), B: mustHex(hex[4:6]), A: 255}, nil
	case 8:
		return Color{R: mustHex(hex[0:2]), G: mustHex(hex[2:4]), B: mustHex(hex[4:6]), A: mustHex(hex[6:8])}, nil
	default:
		return Color{}, fmt.Errorf("颜色值 %s 无法解析", value)
	}
}

func mustHex(s string) int {
	v, _ := strconv.ParseInt(s, 16, 64)
	return int(v)
}

// resolveStyles 展开 extends 继承链，子样式覆盖父样式的同名属性。
func resolveStyles(styles map[string]Style) (map[string]Style, error) {
	resolved := map[string]Style{}
	visiting := map[string]bool{}

	var dfs func(name string) (Style, error)
	dfs = func(name string) (Style, error) {
		if style, ok := resolved[name]; ok {
			return style, nil
		}
		style, ok := styles[name]
		if !ok {
			return Style{}, fmt.Errorf("style %s 未定义", name)
		}
		if visiting[name] {
			return Style{}, fmt.Errorf("style 继承存在循环：%s", name)
		}
		visiting[name] = true

		props := map[string]string{}
		if style.Extends != "" {
			parent, err := dfs(style.Extends)
			if err != nil {
				return Style{}, err
			}
			for k, v := range parent.Props {
				props[k] = v
			}
		}
		for k, v := range style.Props {
			props[k] = v
		}
		style.Props = props
		resolved[name] = style
		delete(visiting, name)
		return style, nil
	}

	for name := range styles {
		if _, err := dfs(name); err != nil {
			return nil, err
		}
	}
	return resolved, nil
}

func mergeStyleAttributes(style string, inline map[string]string, styles map[string]Style) (map[string]string, error) {
	out := make(map[string]string)
	if style != "" {
		s, ok := styles[style]
		if !ok {
			return nil, fmt.Errorf("样式 %s 未定义", style)
		}
		for k, v := range s.Props {
			out[k] = v
		}
	}
	for k, v := range inline {
		out[k] = v
	}
	return out, nil
}
