package binding

import (
	"encoding/json"
	"testing"
)

func decode(t *testing.T, raw string) any {
	t.Helper()
	var data any
	if err := json.Unmarshal([]byte(raw), &data); err != nil {
		t.Fatalf("解析测试数据失败: %v", err)
	}
	return data
}

func TestInterpolate(t *testing.T) {
	data := decode(t, `{"shop":{"name":"Some Market"},"items":[{"name":"Hypex","qty":2,"price":4.3}],"paid":true}`)
	cases := map[string]string{
		"Welcome to ${shop.name}":           "Welcome to Some Market",
		"${items[0].name} x${items[0].qty}": "Hypex x2",
		"${items[0].price} JOD":             "4.3 JOD",
		"paid: ${paid}":                     "paid: true",
		"${missing}":                        "${missing}",
		"${missing|n/a}":                    "n/a",
		"${items[3].name|-}":                "-",
		"no placeholders":                   "no placeholders",
	}
	for in, want := range cases {
		if got := Interpolate(in, data); got != want {
			t.Fatalf("Interpolate(%q) = %q，期望 %q", in, got, want)
		}
	}
}

func TestInterpolateNilData(t *testing.T) {
	if got := Interpolate("${a}", nil); got != "${a}" {
		t.Fatalf("无数据时应保留占位符，实际 %q", got)
	}
	if got := Interpolate("${a|x}", nil); got != "x" {
		t.Fatalf("无数据时应使用默认值，实际 %q", got)
	}
}

func TestResolveArray(t *testing.T) {
	data := decode(t, `{"rows":[[1,2],[3,4]]}`)
	val, ok := Resolve(data, "rows[1][0]")
	if !ok || Format(val) != "3" {
		t.Fatalf("多级下标解析错误: %v %v", val, ok)
	}
	if _, ok := Resolve(data, "rows[x]"); ok {
		t.Fatalf("非法下标应解析失败")
	}
	if _, ok := Resolve(data, "rows.name"); ok {
		t.Fatalf("对数组取字段应解析失败")
	}
}

func TestFormat(t *testing.T) {
	cases := []struct {
		in   any
		want string
	}{
		{nil, ""},
		{float64(15), "15"},
		{15.1, "15.1"},
		{json.Number("2.50"), "2.50"},
		{[]any{"a"}, "[a]"},
	}
	for _, c := range cases {
		if got := Format(c.in); got != c.want {
			t.Fatalf("Format(%v) = %q，期望 %q", c.in, got, c.want)
		}
	}
}

func TestParsePath(t *testing.T) {
	steps, ok := parsePath(" a.b[2][0].c ")
	if !ok || len(steps) != 5 {
		t.Fatalf("路径解析错误: %+v %v", steps, ok)
	}
	if steps[0].key != "a" || !steps[2].isIndex() || steps[2].index != 2 || steps[4].key != "c" {
		t.Fatalf("路径步骤错误: %+v", steps)
	}
	for _, bad := range []string{"", "a..b", "a[1", "a[-1]", "a[1]x"} {
		if _, ok := parsePath(bad); ok {
			t.Fatalf("%q 应解析失败", bad)
		}
	}
}

func TestResolveTypedData(t *testing.T) {
	data := map[string]any{
		"lines": []map[string]any{{"name": "Tea"}},
		"tags":  []string{"hot"},
		"shop":  map[string]string{"city": "Amman"},
	}
	for path, want := range map[string]string{
		"lines[0].name": "Tea",
		"tags[0]":       "hot",
		"shop.city":     "Amman",
	} {
		val, ok := Resolve(data, path)
		if !ok || Format(val) != want {
			t.Fatalf("Resolve(%q) = %v %v", path, val, ok)
		}
	}
}
