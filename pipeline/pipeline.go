// Package pipeline 串联解析、排版、渲染与裁剪，并提供异步回调接口。
package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image/jpeg"
	"image/png"
	"path/filepath"
	"strings"

	"github.com/muesli/termenv"

	"github.com/ByLCY/receipt/config"
	"github.com/ByLCY/receipt/dsl"
	"github.com/ByLCY/receipt/imageutil"
	"github.com/ByLCY/receipt/layout"
	"github.com/ByLCY/receipt/logger"
	"github.com/ByLCY/receipt/renderer"
	"github.com/ByLCY/receipt/renderer/assets"
	"github.com/ByLCY/receipt/renderer/bitmap"
	canvasrenderer "github.com/ByLCY/receipt/renderer/canvas"
	"github.com/ByLCY/receipt/renderer/escpos"
	textrenderer "github.com/ByLCY/receipt/renderer/text"
)

// InputKind 指定 Source 的格式。
type InputKind string

const (
	InputAuto InputKind = ""
	InputDSL  InputKind = "dsl"
	InputJSON InputKind = "json"
)

// Request 描述一次渲染。
type Request struct {
	Source   []byte    // DSL 文本或 JSON 行列表
	Filename string    // 用于错误定位与格式推断
	Kind     InputKind // 为空时按扩展名或内容推断
	Data     any       // DSL 的绑定数据（JSON 解码后的值）
	BaseDir  string    // 图片与字体路径的根目录
	Settings config.RenderSettings
	Profile  *termenv.Profile // txt 格式的颜色配置，nil 表示不着色
	Debug    string           // 非空时把布局结果写入该 JSON 文件
	Escpos   escpos.Encoder
	Logger   logger.Logger
}

// Lines 是 JSON 输入的结构，也接受直接给出的行数组。
type Lines struct {
	Lines  []layout.Line       `json:"lines"`
	Colors map[string]string   `json:"colors,omitempty"`
	Meta   layout.DocumentMeta `json:"meta,omitempty"`
}

// Go 在新的 goroutine 中执行 Render，并恰好调用一个回调。
// 返回的 channel 在回调返回后关闭。
func Go(ctx context.Context, req Request, onSuccess func([]byte), onError func(error)) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		out, err := safeRender(ctx, req)
		if err != nil {
			if onError != nil {
				onError(err)
			}
			return
		}
		if onSuccess != nil {
			onSuccess(out)
		}
	}()
	return done
}

func safeRender(ctx context.Context, req Request) (out []byte, err error) {
	defer func() {
		if r := recover(); r != nil {
			out, err = nil, fmt.Errorf("pipeline: 渲染时发生 panic: %v", r)
		}
	}()
	return Render(ctx, req)
}

// Render 同步执行完整流程：解析、排版、渲染，以及可选的居中裁剪。
func Render(ctx context.Context, req Request) ([]byte, error) {
	s := req.Settings
	if err := s.Validate(); err != nil {
		return nil, fmt.Errorf("pipeline: 渲染配置无效: %w", err)
	}
	log := req.Logger
	if log == nil {
		log = logger.Nop{}
	}

	backend, err := newBackend(req)
	if err != nil {
		return nil, err
	}
	opts, err := buildOptions(req, backend, log)
	if err != nil {
		return nil, err
	}

	result, err := buildLayout(ctx, req, opts)
	if err != nil {
		return nil, fmt.Errorf("pipeline: 排版失败: %w", err)
	}
	log.Debug("pipeline: 布局完成 ", result.Width, "x", result.Height, " rows=", len(result.Rows))

	if req.Debug != "" {
		if err := layout.WriteDebugJSON(result, req.Debug); err != nil {
			return nil, err
		}
		log.Info("pipeline: 调试 JSON 已写入 ", req.Debug)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	out, err := render(req, backend, result)
	if err != nil {
		return nil, fmt.Errorf("pipeline: 渲染失败: %w", err)
	}
	log.Info("pipeline: 渲染完成 format=", s.Format, " bytes=", len(out))
	return out, nil
}

// backend 同时承担排版度量与输出。
type backend interface {
	layout.Typesetter
	layout.ImageMeasurer
	renderer.Renderer
}

type rasterBackend interface {
	backend
	renderer.Rasterizer
}

func newBackend(req Request) (backend, error) {
	s := req.Settings
	if s.Format == config.FormatText {
		profile := termenv.Ascii
		if req.Profile != nil {
			profile = *req.Profile
		}
		return textrenderer.New(profile), nil
	}
	res := assets.Options{BaseDir: req.BaseDir}
	switch s.Backend {
	case config.BackendCanvas:
		return canvasrenderer.NewRendererWithOptions(canvasrenderer.Options{
			Options: res,
			Format:  canvasrenderer.Format(rasterFormat(s.Format)),
		}), nil
	case config.BackendBitmap:
		return bitmap.New(bitmap.Options{Options: res, Format: bitmap.Format(rasterFormat(s.Format))}), nil
	default:
		return nil, fmt.Errorf("pipeline: 不支持的渲染后端 %s", s.Backend)
	}
}

// rasterFormat 把 escpos 映射为 png，escpos 只需要后端的光栅化能力。
func rasterFormat(format string) string {
	if format == config.FormatESCPOS {
		return config.FormatPNG
	}
	return format
}

func buildOptions(req Request, b backend, log logger.Logger) (layout.BuildOptions, error) {
	s := req.Settings
	opts := layout.BuildOptions{
		Typesetter:   b,
		Images:       b,
		DisplayWidth: s.DisplayWidth(),
		Metrics:      layout.DisplayMetrics{Density: s.Density, ScaledDensity: s.ScaledDensity},
		DefaultFont:  s.Font,
		Concurrency:  s.Concurrency,
		Logger:       log,
		Debug:        layout.DebugOptions{RawUnits: req.Debug != ""},
	}
	if s.Padding != "" {
		padding, err := layout.ParseLength(s.Padding, layout.UnitDP)
		if err != nil {
			return opts, fmt.Errorf("pipeline: 留白参数无效: %w", err)
		}
		opts.Padding = &padding
	}
	if s.Background != "" {
		bg, err := layout.ParseColor(s.Background)
		if err != nil {
			return opts, fmt.Errorf("pipeline: 背景色无效: %w", err)
		}
		opts.Background = bg
	}
	return opts, nil
}

func buildLayout(ctx context.Context, req Request, opts layout.BuildOptions) (*layout.Result, error) {
	switch detectKind(req) {
	case InputJSON:
		var doc Lines
		if err := decodeLines(req.Source, &doc); err != nil {
			return nil, err
		}
		res := layout.NewResourceSet(opts.DefaultFont)
		for name, value := range doc.Colors {
			c, err := layout.ParseColor(value)
			if err != nil {
				return nil, fmt.Errorf("pipeline: 颜色 %s: %w", name, err)
			}
			res.Colors[name] = c
		}
		result, err := layout.BuildLines(ctx, doc.Lines, res, opts)
		if err != nil {
			return nil, err
		}
		if doc.Meta.Title != "" || doc.Meta.Author != "" {
			doc.Meta.Creator = result.Meta.Creator
			result.Meta = doc.Meta
		}
		return result, nil
	default:
		doc, err := dsl.ParseFile(req.Filename, bytes.NewReader(req.Source))
		if err != nil {
			return nil, fmt.Errorf("pipeline: 解析失败: %w", err)
		}
		return layout.Build(ctx, doc, req.Data, opts)
	}
}

func detectKind(req Request) InputKind {
	if req.Kind != InputAuto {
		return req.Kind
	}
	if strings.EqualFold(filepath.Ext(req.Filename), ".json") {
		return InputJSON
	}
	trimmed := bytes.TrimSpace(req.Source)
	if len(trimmed) > 0 && (trimmed[0] == '[' || trimmed[0] == '{') {
		return InputJSON
	}
	return InputDSL
}

func decodeLines(data []byte, doc *Lines) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		if err := json.Unmarshal(trimmed, &doc.Lines); err != nil {
			return fmt.Errorf("pipeline: 解析 JSON 行失败: %w", err)
		}
		return nil
	}
	if err := json.Unmarshal(trimmed, doc); err != nil {
		return fmt.Errorf("pipeline: 解析 JSON 行失败: %w", err)
	}
	return nil
}

func render(req Request, b backend, result *layout.Result) ([]byte, error) {
	s := req.Settings
	raster, isRaster := b.(rasterBackend)
	needsRaster := s.Format == config.FormatESCPOS || s.Fit != ""
	if !needsRaster {
		return b.Render(result)
	}
	if !isRaster {
		return nil, fmt.Errorf("pipeline: 格式 %s 需要位图后端", s.Format)
	}
	if s.Fit == "" {
		esc := &escpos.Renderer{Source: raster, Encoder: req.Escpos}
		return esc.Render(result)
	}

	img, err := raster.Rasterize(result)
	if err != nil {
		return nil, err
	}
	w, h, err := config.ParseSize(s.Fit)
	if err != nil {
		return nil, fmt.Errorf("pipeline: 裁剪尺寸无效: %w", err)
	}
	out, err := imageutil.CenterCrop(img, w, h)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	switch s.Format {
	case config.FormatESCPOS:
		return req.Escpos.Encode(out)
	case config.FormatJPEG:
		err = jpeg.Encode(&buf, out, &jpeg.Options{Quality: 95})
	default:
		err = png.Encode(&buf, out)
	}
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
