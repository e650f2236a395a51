package layout

import (
	"context"
	"fmt"
	"strings"

	"github.com/ByLCY/receipt/binding"
	"github.com/ByLCY/receipt/dsl"
)

// argKeys 是命令参数中需要取下一个值的关键字。
var argKeys = map[string]bool{
	"size":   true,
	"color":  true,
	"font":   true,
	"char":   true,
	"width":  true,
	"align":  true,
	"height": true,
	"src":    true,
}

// Build 根据 DSL AST 与绑定数据生成小票布局。
// body 段的 width/padding/background/font 参数覆盖 opts 中的同名设置。
func Build(ctx context.Context, doc *dsl.Document, data any, opts BuildOptions) (*Result, error) {
	if doc == nil {
		return nil, fmt.Errorf("文档为空")
	}
	body := doc.Body()
	if body == nil || body.Block == nil {
		return nil, fmt.Errorf("文档中缺少 body 段落")
	}

	res, err := collectResources(doc, opts.DefaultFont)
	if err != nil {
		return nil, err
	}
	ev := &evaluator{res: res, scope: data}
	if err := ev.applyBodyParams(body.Params, &opts); err != nil {
		return nil, err
	}
	lines, err := ev.block(body.Block)
	if err != nil {
		return nil, err
	}

	result, err := BuildLines(ctx, lines, res, opts)
	if err != nil {
		return nil, err
	}
	result.Meta = collectMeta(doc)
	return result, nil
}

func collectResources(doc *dsl.Document, defaultFont string) (ResourceSet, error) {
	res := ResourceSet{
		Fonts:  map[string]FontResource{},
		Colors: map[string]Color{},
		Images: map[string]ImageResource{},
		Styles: map[string]Style{},
	}
	rawStyles := map[string]Style{}

	for _, cmd := range doc.Resources() {
		switch cmd.Name {
		case "font":
			font := parseFontResource(cmd)
			if font.Name != "" {
				res.Fonts[font.Name] = font
			}
		case "color":
			name, value := parseColorResource(cmd)
			if name == "" || value == "" {
				return res, fmt.Errorf("%s: color 资源缺少名称或取值", cmd.Pos)
			}
			c, err := ParseColor(value)
			if err != nil {
				return res, fmt.Errorf("%s: %w", cmd.Pos, err)
			}
			res.Colors[name] = c
		case "image":
			image := parseImageResource(cmd)
			if image.Name != "" {
				res.Images[image.Name] = image
			}
		case "style":
			style := parseStyleResource(cmd)
			if style.Name != "" {
				rawStyles[style.Name] = style
			}
		default:
			return res, fmt.Errorf("%s: 未知资源类型 %q", cmd.Pos, cmd.Name)
		}
	}
	res.ensureDefaults(defaultFont)

	resolvedStyles, err := resolveStyles(rawStyles)
	if err != nil {
		return res, err
	}
	res.Styles = resolvedStyles
	return res, nil
}

func collectMeta(doc *dsl.Document) DocumentMeta {
	meta := DocumentMeta{
		Title:   doc.Name,
		Creator: creatorName,
	}
	for _, a := range doc.Meta() {
		switch strings.ToLower(a.Key) {
		case "title":
			meta.Title = a.Value.Text()
		case "author":
			meta.Author = a.Value.Text()
		case "subject":
			meta.Subject = a.Value.Text()
		case "creator":
			meta.Creator = a.Value.Text()
		case "keywords":
			meta.Keywords = a.Value.Strings()
		}
	}
	return meta
}

func parseFontResource(cmd *dsl.Command) FontResource {
	if len(cmd.Args) == 0 {
		return FontResource{}
	}
	name := cmd.Args[0].Text()
	return FontResource{
		Name:     name,
		Family:   name,
		Src:      cmd.Property("src").Text(),
		Style:    cmd.Property("style").Text(),
		Fallback: cmd.Property("fallback").Text(),
	}
}

func parseImageResource(cmd *dsl.Command) ImageResource {
	if len(cmd.Args) == 0 {
		return ImageResource{}
	}
	return ImageResource{Name: cmd.Args[0].Text(), Src: cmd.Property("src").Text()}
}

func parseStyleResource(cmd *dsl.Command) Style {
	if len(cmd.Args) == 0 {
		return Style{}
	}
	style := Style{
		Name:  cmd.Args[0].Text(),
		Props: map[string]string{},
	}
	if len(cmd.Args) >= 3 && cmd.Args[1].Is("extends") {
		style.Extends = cmd.Args[2].Text()
	}
	for _, a := range cmd.Properties() {
		if val := a.Value.Text(); val != "" {
			style.Props[a.Key] = val
		}
	}
	return style
}

// parseColorResource 支持 `color Ink = #000` 与 `color Ink #000`，取最后一个参数为值。
func parseColorResource(cmd *dsl.Command) (string, string) {
	if len(cmd.Args) < 2 {
		return "", ""
	}
	return cmd.Args[0].Text(), cmd.Args[len(cmd.Args)-1].Text()
}

// evaluator 把 body 中的命令展开为 Line 列表；scope 是当前的绑定数据。
type evaluator struct {
	res         ResourceSet
	scope       any
	defaultFont string
}

func (ev *evaluator) applyBodyParams(params []*dsl.Arg, opts *BuildOptions) error {
	for i := 0; i < len(params); i += 2 {
		key := strings.ToLower(params[i].Text())
		if i+1 >= len(params) {
			return fmt.Errorf("%s: body 参数 %s 缺少取值", params[i].Pos, key)
		}
		val := params[i+1].Text()
		switch key {
		case "width":
			l, err := ParseLength(val, UnitPX)
			if err != nil {
				return fmt.Errorf("%s: %w", params[i].Pos, err)
			}
			opts.DisplayWidth = l.Pixels(opts.Metrics, float64(opts.DisplayWidth))
		case "padding":
			l, err := ParseLength(val, UnitDP)
			if err != nil {
				return fmt.Errorf("%s: %w", params[i].Pos, err)
			}
			opts.Padding = &l
		case "background":
			c, err := resolveColor(val, ev.res)
			if err != nil {
				return fmt.Errorf("%s: %w", params[i].Pos, err)
			}
			opts.Background = c
		case "font":
			if _, ok := ev.res.Fonts[val]; !ok {
				return fmt.Errorf("%s: 字体 %s 未定义", params[i].Pos, val)
			}
			ev.defaultFont = val
		default:
			return fmt.Errorf("%s: 未知的 body 参数 %q", params[i].Pos, key)
		}
	}
	return nil
}

func (ev *evaluator) block(block *dsl.Block) ([]Line, error) {
	if block == nil {
		return nil, nil
	}
	var lines []Line
	for _, stmt := range block.Statements {
		switch {
		case stmt.Text != nil:
			seg, err := ev.segment(string(*stmt.Text), nil)
			if err != nil {
				return nil, err
			}
			lines = append(lines, Line{Left: &seg})
		case stmt.Assignment != nil:
			return nil, fmt.Errorf("body 中不支持赋值语句 %s", stmt.Assignment.Key)
		case stmt.Command != nil:
			out, err := ev.command(stmt.Command)
			if err != nil {
				return nil, err
			}
			lines = append(lines, out...)
		}
	}
	return lines, nil
}

func (ev *evaluator) command(cmd *dsl.Command) ([]Line, error) {
	switch strings.ToLower(cmd.Name) {
	case "line":
		line, err := ev.line(cmd)
		if err != nil {
			return nil, err
		}
		return []Line{line}, nil
	case "left", "center", "right":
		var line Line
		if err := ev.column(&line, cmd); err != nil {
			return nil, err
		}
		return []Line{line}, nil
	case "divider":
		d, err := ev.divider(cmd)
		if err != nil {
			return nil, err
		}
		return []Line{{Divider: &d}}, nil
	case "spacer":
		l, err := ev.spacer(cmd)
		if err != nil {
			return nil, err
		}
		return []Line{{Spacer: &l}}, nil
	case "image":
		img, err := ev.image(cmd)
		if err != nil {
			return nil, err
		}
		return []Line{{Image: &img}}, nil
	case "each":
		return ev.each(cmd)
	default:
		return nil, fmt.Errorf("%s: 未知命令 %q", cmd.Pos, cmd.Name)
	}
}

func (ev *evaluator) line(cmd *dsl.Command) (Line, error) {
	var line Line
	if cmd.Block == nil {
		return line, fmt.Errorf("%s: line 语句缺少列定义", cmd.Pos)
	}
	for _, stmt := range cmd.Block.Statements {
		switch {
		case stmt.Text != nil:
			if line.Left != nil {
				return line, fmt.Errorf("%s: line 中 left 列重复", cmd.Pos)
			}
			seg, err := ev.segment(string(*stmt.Text), nil)
			if err != nil {
				return line, err
			}
			line.Left = &seg
		case stmt.Command != nil:
			if err := ev.column(&line, stmt.Command); err != nil {
				return line, err
			}
		default:
			return line, fmt.Errorf("%s: line 中不支持赋值语句", cmd.Pos)
		}
	}
	return line, nil
}

func (ev *evaluator) column(line *Line, cmd *dsl.Command) error {
	var slot **Segment
	switch strings.ToLower(cmd.Name) {
	case "left":
		slot = &line.Left
	case "center":
		slot = &line.Center
	case "right":
		slot = &line.Right
	default:
		return fmt.Errorf("%s: line 中未知的列 %q", cmd.Pos, cmd.Name)
	}
	if *slot != nil {
		return fmt.Errorf("%s: line 中 %s 列重复", cmd.Pos, cmd.Name)
	}
	style, attrs, inline, err := parseArgs(cmd.Args)
	if err != nil {
		return fmt.Errorf("%s: %w", cmd.Pos, err)
	}
	attrs, err = mergeStyleAttributes(style, attrs, ev.res.Styles)
	if err != nil {
		return fmt.Errorf("%s: %w", cmd.Pos, err)
	}
	seg, err := ev.segment(inline+cmd.Text(), attrs)
	if err != nil {
		return fmt.Errorf("%s: %w", cmd.Pos, err)
	}
	*slot = &seg
	return nil
}

// segment 校验字号、字体与颜色后生成一列文本。
func (ev *evaluator) segment(text string, attrs map[string]string) (Segment, error) {
	size, err := ParseLength(attrs["size"], UnitSP)
	if err != nil {
		return Segment{}, err
	}
	font, err := ev.font(attrs["font"])
	if err != nil {
		return Segment{}, err
	}
	if _, err := resolveColor(attrs["color"], ev.res); err != nil {
		return Segment{}, err
	}
	return Segment{
		Text:  binding.Interpolate(text, ev.scope),
		Size:  size,
		Color: attrs["color"],
		Font:  font,
	}, nil
}

// font 返回引用的字体资源名，空名使用 body 的默认字体。
func (ev *evaluator) font(name string) (string, error) {
	if name == "" {
		return ev.defaultFont, nil
	}
	if _, ok := ev.res.Fonts[name]; !ok {
		return "", fmt.Errorf("字体 %s 未定义", name)
	}
	return name, nil
}

func (ev *evaluator) divider(cmd *dsl.Command) (Divider, error) {
	style, attrs, inline, err := parseArgs(cmd.Args)
	if err != nil {
		return Divider{}, fmt.Errorf("%s: %w", cmd.Pos, err)
	}
	attrs, err = mergeStyleAttributes(style, attrs, ev.res.Styles)
	if err != nil {
		return Divider{}, fmt.Errorf("%s: %w", cmd.Pos, err)
	}
	size, err := ParseLength(attrs["size"], UnitSP)
	if err != nil {
		return Divider{}, fmt.Errorf("%s: %w", cmd.Pos, err)
	}
	char := attrs["char"]
	if char == "" {
		char = inline
	}
	font, err := ev.font(attrs["font"])
	if err != nil {
		return Divider{}, fmt.Errorf("%s: %w", cmd.Pos, err)
	}
	if _, err := resolveColor(attrs["color"], ev.res); err != nil {
		return Divider{}, fmt.Errorf("%s: %w", cmd.Pos, err)
	}
	return Divider{Char: char, Size: size, Color: attrs["color"], Font: font}, nil
}

func (ev *evaluator) spacer(cmd *dsl.Command) (Length, error) {
	args := cmd.Args
	if len(args) == 2 && args[0].Is("height") {
		args = args[1:]
	}
	if len(args) != 1 {
		return Length{}, fmt.Errorf("%s: spacer 需要一个长度参数，例如 spacer 8dp", cmd.Pos)
	}
	l, err := ParseLength(args[0].Text(), UnitDP)
	if err != nil {
		return Length{}, fmt.Errorf("%s: %w", cmd.Pos, err)
	}
	return l, nil
}

func (ev *evaluator) image(cmd *dsl.Command) (ImageRef, error) {
	name, attrs, inline, err := parseArgs(cmd.Args)
	if err != nil {
		return ImageRef{}, fmt.Errorf("%s: %w", cmd.Pos, err)
	}
	src := attrs["src"]
	switch {
	case src != "":
	case inline != "":
		src = inline
	case name != "":
		if _, ok := ev.res.Images[name]; !ok {
			return ImageRef{}, fmt.Errorf("%s: 图片资源 %s 未定义", cmd.Pos, name)
		}
		src = name
	default:
		return ImageRef{}, fmt.Errorf("%s: image 缺少图片来源", cmd.Pos)
	}
	width, err := ParseLength(attrs["width"], UnitPX)
	if err != nil {
		return ImageRef{}, fmt.Errorf("%s: %w", cmd.Pos, err)
	}
	var align Align
	if v := attrs["align"]; v != "" {
		align = ParseAlign(v)
	}
	return ImageRef{Src: binding.Interpolate(src, ev.scope), Width: width, Align: align}, nil
}

// each 对数组逐项展开子块：`each data.items as item { ... }`。
// 子块中可通过别名与 loop.index/loop.first/loop.last 访问当前项。
func (ev *evaluator) each(cmd *dsl.Command) ([]Line, error) {
	path, alias, err := parseEachArgs(cmd.Args)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", cmd.Pos, err)
	}
	if cmd.Block == nil {
		return nil, fmt.Errorf("%s: each 缺少循环体", cmd.Pos)
	}
	val, ok := ev.lookup(path)
	if !ok {
		return nil, fmt.Errorf("%s: each 数据路径 %s 不存在", cmd.Pos, path)
	}
	items, ok := val.([]any)
	if !ok {
		return nil, fmt.Errorf("%s: each 数据路径 %s 不是数组", cmd.Pos, path)
	}

	var lines []Line
	for i, item := range items {
		scope := map[string]any{}
		if parent, ok := ev.scope.(map[string]any); ok {
			for k, v := range parent {
				scope[k] = v
			}
		}
		scope[alias] = item
		scope["loop"] = map[string]any{
			"index": float64(i),
			"first": i == 0,
			"last":  i == len(items)-1,
		}
		child := &evaluator{res: ev.res, scope: scope, defaultFont: ev.defaultFont}
		out, err := child.block(cmd.Block)
		if err != nil {
			return nil, err
		}
		lines = append(lines, out...)
	}
	return lines, nil
}

// lookup 解析数据路径；根对象没有 data 键时允许 data. 前缀指向根对象。
func (ev *evaluator) lookup(path string) (any, bool) {
	if path == "data" {
		if v, ok := binding.Resolve(ev.scope, path); ok {
			return v, true
		}
		return ev.scope, ev.scope != nil
	}
	if v, ok := binding.Resolve(ev.scope, path); ok {
		return v, true
	}
	if rest, found := strings.CutPrefix(path, "data."); found {
		return binding.Resolve(ev.scope, rest)
	}
	return nil, false
}

func parseEachArgs(args []*dsl.Arg) (string, string, error) {
	if len(args) != 3 || args[0].Kind() != dsl.ArgIdent || !args[1].Is("as") || args[2].Kind() != dsl.ArgIdent {
		return "", "", fmt.Errorf("each 语法应为 each <路径> as <别名>")
	}
	return args[0].Text(), args[2].Text(), nil
}

// parseArgs 解析 `[Style] [key value]... ["inline text"]` 形式的命令参数。
func parseArgs(args []*dsl.Arg) (style string, attrs map[string]string, inline string, err error) {
	attrs = map[string]string{}
	for i := 0; i < len(args); i++ {
		arg := args[i]
		key := strings.ToLower(arg.Text())
		switch kind := arg.Kind(); {
		case kind == dsl.ArgIdent && argKeys[key]:
			if i+1 >= len(args) {
				return "", nil, "", fmt.Errorf("参数 %s 缺少取值", key)
			}
			attrs[key] = args[i+1].Text()
			i++
		case kind == dsl.ArgString:
			inline += arg.Text()
		case kind == dsl.ArgIdent && i == 0:
			style = arg.Text()
		default:
			return "", nil, "", fmt.Errorf("无法识别的参数 %s", arg)
		}
	}
	return style, attrs, inline, nil
}
