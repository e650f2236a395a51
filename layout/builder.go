package layout

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"
	"golang.org/x/text/unicode/norm"

	"github.com/ByLCY/receipt/logger"
)

// ErrEmptyReceipt 表示没有可绘制的行，无法分配高度为 0 的位图。
var ErrEmptyReceipt = errors.New("layout: 小票没有任何内容")

const (
	defaultDividerChar = "-"
	creatorName        = "receipt"
)

// BuildLines 对输入的行逐行排版并纵向堆叠。
//
// 各行并发排版（上限 Concurrency），结果按输入顺序堆叠，
// 每行的 Y 为之前所有行高之和。
func BuildLines(ctx context.Context, lines []Line, res ResourceSet, opts BuildOptions) (*Result, error) {
	if opts.Typesetter == nil {
		return nil, fmt.Errorf("layout: 缺少排版后端 Typesetter")
	}
	if opts.DisplayWidth <= 0 {
		return nil, fmt.Errorf("layout: 显示宽度必须大于 0，当前为 %d", opts.DisplayWidth)
	}
	if len(lines) == 0 {
		return nil, ErrEmptyReceipt
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	log := opts.Logger
	if log == nil {
		log = logger.Nop{}
	}
	res.ensureDefaults(opts.DefaultFont)

	b := newRowBuilder(res, opts)
	rows := make([]Row, len(lines))

	limit := opts.Concurrency
	if limit <= 0 {
		limit = defaultConcurrency
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for i, line := range lines {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			row, err := b.layoutRow(line)
			if err != nil {
				return fmt.Errorf("第 %d 行: %w", i+1, err)
			}
			rows[i] = row
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	y := 0
	for i := range rows {
		rows[i].Y = y
		y += rows[i].Height
	}
	if y <= 0 {
		return nil, fmt.Errorf("%w: 总高度为 0", ErrEmptyReceipt)
	}

	padding := defaultPadding
	if opts.Padding != nil {
		padding = *opts.Padding
	}
	pad := padding.Pixels(opts.Metrics, float64(opts.DisplayWidth))
	if pad < 0 {
		pad = 0
	}

	result := &Result{
		Width:        opts.DisplayWidth + 2*pad,
		Height:       y + 2*pad,
		ContentWidth: opts.DisplayWidth,
		Padding:      pad,
		Background:   opts.Background,
		Rows:         rows,
		Resources:    res,
		Meta:         DocumentMeta{Creator: creatorName},
	}
	log.Debug("layout: 排版完成 rows=", len(rows), " size=", result.Width, "x", result.Height)
	return result, nil
}

// BuildLine 把单独一行排成一张小票。
func BuildLine(ctx context.Context, line Line, res ResourceSet, opts BuildOptions) (*Result, error) {
	return BuildLines(ctx, []Line{line}, res, opts)
}

// LayoutRow 排版单行，Y 为 0。
func LayoutRow(line Line, res ResourceSet, opts BuildOptions) (Row, error) {
	if opts.Typesetter == nil {
		return Row{}, fmt.Errorf("layout: 缺少排版后端 Typesetter")
	}
	res.ensureDefaults(opts.DefaultFont)
	return newRowBuilder(res, opts).layoutRow(line)
}

// LayoutColumn 在 width 像素内折行排版一列文本，行按列自身高度均匀分布。
func LayoutColumn(seg Segment, align Align, width int, res ResourceSet, ts Typesetter, m DisplayMetrics) (Column, error) {
	res.ensureDefaults("")
	b := &rowBuilder{res: res, ts: ts, width: width, metrics: m}
	col, err := b.layoutColumn(seg, align)
	if err != nil {
		return Column{}, err
	}
	distribute(&col, col.Height)
	return col, nil
}

type rowBuilder struct {
	res     ResourceSet
	ts      Typesetter
	images  ImageMeasurer
	width   int
	metrics DisplayMetrics
	debug   DebugOptions
}

func newRowBuilder(res ResourceSet, opts BuildOptions) *rowBuilder {
	return &rowBuilder{
		res:     res,
		ts:      opts.Typesetter,
		images:  opts.Images,
		width:   opts.DisplayWidth,
		metrics: opts.Metrics,
		debug:   opts.Debug,
	}
}

func (b *rowBuilder) layoutRow(line Line) (Row, error) {
	switch {
	case line.Divider != nil:
		return b.dividerRow(*line.Divider)
	case line.Spacer != nil:
		return Row{Kind: RowSpacer, Height: line.Spacer.Pixels(b.metrics, float64(b.width))}, nil
	case line.Image != nil:
		return b.imageRow(*line.Image)
	default:
		return b.textRow(line)
	}
}

func (b *rowBuilder) textRow(line Line) (Row, error) {
	segments := []struct {
		seg   *Segment
		align Align
	}{
		{line.Left, AlignLeft},
		{line.Center, AlignCenter},
		{line.Right, AlignRight},
	}
	row := Row{Kind: RowText}
	for _, s := range segments {
		if s.seg == nil {
			continue
		}
		col, err := b.layoutColumn(*s.seg, s.align)
		if err != nil {
			return Row{}, err
		}
		if len(col.Lines) == 0 {
			continue
		}
		row.Columns = append(row.Columns, col)
		row.Height = max(row.Height, col.Height)
	}
	if len(row.Columns) == 0 {
		h, err := b.blankLineHeight()
		if err != nil {
			return Row{}, err
		}
		return Row{Kind: RowSpacer, Height: h}, nil
	}
	for i := range row.Columns {
		distribute(&row.Columns[i], row.Height)
	}
	return row, nil
}

func (b *rowBuilder) layoutColumn(seg Segment, align Align) (Column, error) {
	size := seg.Size
	if size.IsZero() {
		size = Length{Value: defaultFontSizeSp, Unit: UnitSP}
	}
	face, font, sizePx, err := b.face(seg.Font, size)
	if err != nil {
		return Column{}, err
	}
	color, err := resolveColor(seg.Color, b.res)
	if err != nil {
		return Column{}, err
	}

	metrics := face.Metrics()
	lineHeight := int(metrics.Ascent + metrics.Descent)
	col := Column{
		Align:    align,
		Font:     font.Name,
		FontSize: sizePx,
		Color:    color,
	}
	// 组合字符按 NFC 合并后再测量，避免 "e\u0301" 被拆成两段
	for _, content := range WrapText(norm.NFC.String(seg.Text), float64(b.width), face) {
		w := int(face.TextWidth(content))
		col.Lines = append(col.Lines, TextLine{
			Content:  content,
			X:        alignOffset(b.width, w, align),
			Width:    w,
			Height:   lineHeight,
			Baseline: metrics.Ascent,
		})
		col.Height += lineHeight
	}
	if b.debug.RawUnits {
		col.Debug = &ColumnDebug{RawSize: &RawLengthJSON{Value: size.Value, Unit: UnitToString(size.Unit)}}
	}
	return col, nil
}

func (b *rowBuilder) dividerRow(d Divider) (Row, error) {
	size := d.Size
	if size.IsZero() {
		size = Length{Value: defaultFontSizeSp, Unit: UnitSP}
	}
	char := d.Char
	if char == "" {
		char = defaultDividerChar
	}
	face, font, sizePx, err := b.face(d.Font, size)
	if err != nil {
		return Row{}, err
	}
	color, err := resolveColor(d.Color, b.res)
	if err != nil {
		return Row{}, err
	}
	metrics := face.Metrics()
	content := fillWidth(char, float64(b.width), face)
	w := int(face.TextWidth(content))
	h := int(metrics.Ascent + metrics.Descent)
	return Row{
		Kind:   RowDivider,
		Height: h,
		Columns: []Column{{
			Align:    AlignCenter,
			Font:     font.Name,
			FontSize: sizePx,
			Color:    color,
			Height:   h,
			Lines: []TextLine{{
				Content:  content,
				X:        alignOffset(b.width, w, AlignCenter),
				Width:    w,
				Height:   h,
				Baseline: metrics.Ascent,
			}},
		}},
	}, nil
}

func (b *rowBuilder) imageRow(ref ImageRef) (Row, error) {
	if b.images == nil {
		return Row{}, fmt.Errorf("图片行 %s 需要 ImageMeasurer", ref.Src)
	}
	src := ref.Src
	if img, ok := b.res.Images[src]; ok {
		src = img.Src
	}
	sw, sh, err := b.images.ImageSize(src)
	if err != nil {
		return Row{}, fmt.Errorf("读取图片 %s 失败: %w", src, err)
	}
	if sw <= 0 || sh <= 0 {
		return Row{}, fmt.Errorf("图片 %s 尺寸无效: %dx%d", src, sw, sh)
	}
	w := sw
	if !ref.Width.IsZero() {
		w = ref.Width.Pixels(b.metrics, float64(b.width))
	}
	w = max(min(w, b.width), 1)
	h := max(int(float64(sh)*float64(w)/float64(sw)), 1)
	align := ref.Align
	if align == "" {
		align = AlignCenter
	}
	return Row{
		Kind:   RowImage,
		Height: h,
		Image: &ImageBox{
			Src:    src,
			X:      alignOffset(b.width, w, align),
			Width:  w,
			Height: h,
		},
	}, nil
}

// blankLineHeight 是默认字体、默认字号下一行文本的高度。
func (b *rowBuilder) blankLineHeight() (int, error) {
	face, _, _, err := b.face("", Length{Value: defaultFontSizeSp, Unit: UnitSP})
	if err != nil {
		return 0, err
	}
	m := face.Metrics()
	return int(m.Ascent + m.Descent), nil
}

func (b *rowBuilder) face(name string, size Length) (Face, FontResource, float64, error) {
	font, err := resolveFontResource(name, b.res)
	if err != nil {
		return nil, FontResource{}, 0, err
	}
	sizePx := float64(size.Pixels(b.metrics, 0))
	if sizePx <= 0 {
		return nil, FontResource{}, 0, fmt.Errorf("字号 %s 换算后必须大于 0", size)
	}
	face, err := b.ts.Face(font, sizePx)
	if err != nil {
		return nil, FontResource{}, 0, fmt.Errorf("加载字体 %s 失败: %w", font.Name, err)
	}
	return face, font, sizePx, nil
}

// distribute 把列中的 n 行均匀分布在 rowHeight 内：第 i 行 Y = rowHeight/n*i。
func distribute(col *Column, rowHeight int) {
	n := len(col.Lines)
	if n == 0 {
		return
	}
	step := rowHeight / n
	for i := range col.Lines {
		col.Lines[i].Y = step * i
	}
}

func alignOffset(container, width int, align Align) int {
	if container <= width {
		return 0
	}
	switch align {
	case AlignCenter:
		return (container - width) / 2
	case AlignRight:
		return container - width
	default:
		return 0
	}
}
