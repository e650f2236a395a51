package layout

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// 该文件定义带单位的长度与 Android 风格的 dp/sp → px 换算。

// Unit represents the original unit of a length value as specified in DSL.
type Unit int

const (
	UnitNone    Unit = iota // 无单位，由调用方决定默认单位
	UnitPX                  // 物理像素
	UnitDP                  // 密度无关像素
	UnitSP                  // 随字体缩放的像素
	UnitPT                  // 点（1/72 英寸）
	UnitPercent             // 相对参考宽度的百分比
)

// 基准密度：Android 以 160dpi 作为 density=1。
const baselineDPI = 160.0

// UnitToString returns a short string for a Unit value.
func UnitToString(u Unit) string {
	switch u {
	case UnitPX:
		return "px"
	case UnitDP:
		return "dp"
	case UnitSP:
		return "sp"
	case UnitPT:
		return "pt"
	case UnitPercent:
		return "%"
	default:
		return ""
	}
}

// DisplayMetrics 对应 Android 的 DisplayMetrics，决定 dp/sp 到像素的比例。
type DisplayMetrics struct {
	Density       float64 `json:"density"`
	ScaledDensity float64 `json:"scaledDensity"` // 0 表示与 Density 相同（未开启字体缩放）
}

func (m DisplayMetrics) normalized() DisplayMetrics {
	if m.Density <= 0 {
		m.Density = 1
	}
	if m.ScaledDensity <= 0 {
		m.ScaledDensity = m.Density
	}
	return m
}

// DpToPx 与 Android 一致，结果向零截断。
func (m DisplayMetrics) DpToPx(dp float64) int {
	return int(dp * m.normalized().Density)
}

// SpToPx 与 TypedValue.applyDimension(COMPLEX_UNIT_SP) 一致，结果向零截断。
func (m DisplayMetrics) SpToPx(sp float64) int {
	return int(sp * m.normalized().ScaledDensity)
}

// Length preserves a numeric value with its unit.
type Length struct {
	Value float64 `json:"value"`
	Unit  Unit    `json:"unit"`
}

func (l Length) IsZero() bool { return l.Value == 0 }

// ToPx 将长度换算为像素（浮点）。reference 仅用于百分比。
func (l Length) ToPx(m DisplayMetrics, reference float64) float64 {
	m = m.normalized()
	switch l.Unit {
	case UnitDP:
		return l.Value * m.Density
	case UnitSP:
		return l.Value * m.ScaledDensity
	case UnitPT:
		return l.Value * m.Density * baselineDPI / 72
	case UnitPercent:
		return reference * l.Value / 100
	default:
		return l.Value
	}
}

// Pixels 同 ToPx，但像 Android 的 toInt() 一样截断为整数。
func (l Length) Pixels(m DisplayMetrics, reference float64) int {
	return int(l.ToPx(m, reference))
}

func (l Length) String() string {
	return strconv.FormatFloat(l.Value, 'f', -1, 64) + UnitToString(l.Unit)
}

// MarshalJSON 以 "13sp" 形式输出，便于调试 JSON 阅读。
func (l Length) MarshalJSON() ([]byte, error) {
	return json.Marshal(l.String())
}

// UnmarshalJSON 同时接受数字（按 sp 处理）与 "13sp"/"5dp"/"50%" 字符串。
func (l *Length) UnmarshalJSON(data []byte) error {
	var num float64
	if err := json.Unmarshal(data, &num); err == nil {
		*l = Length{Value: num, Unit: UnitSP}
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("长度必须是数字或字符串: %w", err)
	}
	parsed, err := ParseLength(s, UnitSP)
	if err != nil {
		return err
	}
	*l = parsed
	return nil
}

// ParseLength 解析 DSL 中的长度字符串；无单位时使用 fallback。
func ParseLength(value string, fallback Unit) (Length, error) {
	v := strings.ToLower(strings.TrimSpace(value))
	if v == "" {
		return Length{}, nil
	}
	unit := fallback
	num := v
	for _, suf := range []struct {
		s string
		u Unit
	}{{"px", UnitPX}, {"dp", UnitDP}, {"dip", UnitDP}, {"sp", UnitSP}, {"pt", UnitPT}, {"%", UnitPercent}} {
		if strings.HasSuffix(v, suf.s) {
			unit = suf.u
			num = strings.TrimSpace(strings.TrimSuffix(v, suf.s))
			break
		}
	}
	f, err := strconv.ParseFloat(num, 64)
	if err != nil {
		return Length{}, fmt.Errorf("无法解析长度 %q", value)
	}
	if f < 0 {
		return Length{}, fmt.Errorf("长度 %q 不能为负数", value)
	}
	return Length{Value: f, Unit: unit}, nil
}
