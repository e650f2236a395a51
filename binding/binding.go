// Package binding 把 JSON 数据绑定到小票文本中的 ${path} 占位符。
package binding

import (
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
)

var placeholder = regexp.MustCompile(`\$\{[^}]+\}`)

// Interpolate 将文本中的 ${path.to.value} 替换为 data 中的值。
// ${path|默认值} 在路径不存在时使用默认值；没有默认值的占位符原样保留。
func Interpolate(text string, data any) string {
	if !strings.Contains(text, "${") {
		return text
	}
	return placeholder.ReplaceAllStringFunc(text, func(match string) string {
		expr := match[2 : len(match)-1]
		path, fallback, hasFallback := strings.Cut(expr, "|")
		if val, ok := Resolve(data, path); ok {
			return Format(val)
		}
		if hasFallback {
			return strings.TrimSpace(fallback)
		}
		return match
	})
}

// step 是路径中的一级：字段名或数组下标。
type step struct {
	key   string
	index int
}

func (s step) isIndex() bool { return s.key == "" }

// parsePath 解析 a.b[0][1].c；语法错误时返回 false。
func parsePath(path string) ([]step, bool) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, false
	}
	var steps []step
	for _, part := range strings.Split(path, ".") {
		part = strings.TrimSpace(part)
		name, rest, _ := strings.Cut(part, "[")
		if name == "" && rest == "" {
			return nil, false
		}
		if name != "" {
			steps = append(steps, step{key: name})
		}
		for rest != "" {
			idx, tail, ok := strings.Cut(rest, "]")
			if !ok {
				return nil, false
			}
			n, err := strconv.Atoi(strings.TrimSpace(idx))
			if err != nil || n < 0 {
				return nil, false
			}
			steps = append(steps, step{index: n})
			if tail == "" {
				break
			}
			if !strings.HasPrefix(tail, "[") {
				return nil, false
			}
			rest = tail[1:]
		}
	}
	return steps, true
}

// Resolve 按 a.b[0].c 形式的路径在 JSON 解码后的数据中取值。
func Resolve(data any, path string) (any, bool) {
	if data == nil {
		return nil, false
	}
	steps, ok := parsePath(path)
	if !ok {
		return nil, false
	}
	current := data
	for _, s := range steps {
		if current, ok = descend(current, s); !ok {
			return nil, false
		}
	}
	return current, true
}

func descend(current any, s step) (any, bool) {
	if s.isIndex() {
		switch c := current.(type) {
		case []any:
			if s.index < len(c) {
				return c[s.index], true
			}
		case []map[string]any:
			if s.index < len(c) {
				return c[s.index], true
			}
		case []string:
			if s.index < len(c) {
				return c[s.index], true
			}
		}
		return nil, false
	}
	switch c := current.(type) {
	case map[string]any:
		val, ok := c[s.key]
		return val, ok
	case map[string]string:
		val, ok := c[s.key]
		return val, ok
	}
	return nil, false
}

// Format 把绑定值转成展示文本；整数值的 float64 不带小数部分。
func Format(val any) string {
	switch v := val.(type) {
	case nil:
		return ""
	case string:
		return v
	case float64:
		if v == math.Trunc(v) && math.Abs(v) < 1e15 {
			return strconv.FormatInt(int64(v), 10)
		}
		return strconv.FormatFloat(v, 'f', -1, 64)
	case json.Number:
		return v.String()
	case bool:
		return strconv.FormatBool(v)
	default:
		return fmt.Sprint(v)
	}
}
