package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/muesli/termenv"
	"github.com/spf13/cobra"

	"github.com/ByLCY/receipt/config"
	"github.com/ByLCY/receipt/logger"
	"github.com/ByLCY/receipt/pipeline"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		log.Fatalf("执行失败: %v", err)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "receipt",
		Short: "把小票 DSL 或 JSON 行列表渲染为位图、PDF、ESC/POS 或终端预览",
		Long: `receipt 按显示宽度与 dp/sp 密度对小票逐行排版：
每行最多三列（左/中/右），各列独立折行，行高取最高的一列。
输出格式：png、jpg、pdf、svg、escpos、txt。`,
		SilenceUsage: true,
	}
	root.AddCommand(newRenderCmd(), newPreviewCmd())
	return root
}

type inputFlags struct {
	in       string
	data     string
	dataFile string
	debug    string
}

func (f *inputFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.in, "in", "examples/demo.receipt", "DSL 或 JSON 行列表文件路径")
	cmd.Flags().StringVar(&f.data, "data", "", "绑定到 DSL 的 JSON 数据")
	cmd.Flags().StringVar(&f.dataFile, "data-file", "", "绑定数据的 JSON 文件，优先于 --data")
	cmd.Flags().StringVar(&f.debug, "debug", "", "布局调试 JSON 输出路径")
}

// request 读取输入文件与绑定数据。
func (f *inputFlags) request(settings config.RenderSettings) (pipeline.Request, error) {
	source, err := os.ReadFile(f.in)
	if err != nil {
		return pipeline.Request{}, fmt.Errorf("无法打开输入文件 %s: %w", f.in, err)
	}
	raw := []byte(f.data)
	if f.dataFile != "" {
		if raw, err = os.ReadFile(f.dataFile); err != nil {
			return pipeline.Request{}, fmt.Errorf("无法读取数据文件 %s: %w", f.dataFile, err)
		}
	}
	var data any
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &data); err != nil {
			return pipeline.Request{}, fmt.Errorf("解析 data JSON 失败: %w", err)
		}
	}
	return pipeline.Request{
		Source:   source,
		Filename: f.in,
		Data:     data,
		BaseDir:  filepath.Dir(f.in),
		Settings: settings,
		Debug:    f.debug,
	}, nil
}

type renderFlags struct {
	inputFlags
	out        string
	configPath string
	format     string
	backend    string
	width      int
	screen     string
	density    float64
	fontScale  float64
	padding    string
	background string
	font       string
	fit        string
	feed       int
	cut        bool
	verbose    bool
}

func newRenderCmd() *cobra.Command {
	return renderCmd(&renderFlags{})
}

func renderCmd(f *renderFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "render",
		Short: "渲染小票并写入文件",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runRender(cmd, f)
		},
	}
	f.register(cmd)
	flags := cmd.Flags()
	flags.StringVar(&f.out, "out", "", "输出路径，默认 output/<uuid>.<format>")
	flags.StringVar(&f.configPath, "config", "", "JSON 格式的渲染配置文件")
	flags.StringVar(&f.format, "format", config.FormatPNG, "输出格式：png|jpg|pdf|svg|escpos|txt")
	flags.StringVar(&f.backend, "backend", config.BackendCanvas, "渲染后端：canvas|bitmap")
	flags.IntVar(&f.width, "width", 384, "文本区域宽度（px）")
	flags.StringVar(&f.screen, "screen", "", "屏幕尺寸 WxH，未指定 --width 时取较短边")
	flags.Float64Var(&f.density, "density", 1, "dp 到 px 的密度")
	flags.Float64Var(&f.fontScale, "font-scale", 1, "字体缩放，sp 密度为 density × font-scale")
	flags.StringVar(&f.padding, "padding", "5dp", "四周留白")
	flags.StringVar(&f.background, "background", "#FFFFFF", "背景色")
	flags.StringVar(&f.font, "font", "embed:goregular", "Body 字体的 src")
	flags.StringVar(&f.fit, "fit", "", "按 WxH 居中裁剪位图输出")
	flags.IntVar(&f.feed, "feed", 3, "escpos 打印后走纸行数")
	flags.BoolVar(&f.cut, "cut", true, "escpos 打印后切纸")
	flags.BoolVarP(&f.verbose, "verbose", "v", false, "输出调试日志")
	return cmd
}

func runRender(cmd *cobra.Command, f *renderFlags) error {
	settings, err := config.LoadRenderSettings(f.configPath)
	if err != nil {
		return err
	}
	f.apply(cmd, &settings)

	log, err := setupLogger(&settings)
	if err != nil {
		return err
	}
	req, err := f.request(settings)
	if err != nil {
		return err
	}
	req.Logger = log
	req.Escpos.Feed = f.feed
	req.Escpos.Cut = f.cut

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	out, err := pipeline.Render(ctx, req)
	if err != nil {
		return err
	}

	path := f.out
	if path == "" {
		path = filepath.Join("output", uuid.NewString()+outputExt(settings.Format))
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("创建输出目录失败: %w", err)
	}
	if err := os.WriteFile(path, out, 0o644); err != nil {
		return fmt.Errorf("写入输出文件失败: %w", err)
	}
	log.Info("已生成 ", settings.Format, "：", path)
	fmt.Println(path)
	return nil
}

// apply 用显式指定的参数覆盖配置文件。未指定 --format 时按 --out 的扩展名推断。
func (f *renderFlags) apply(cmd *cobra.Command, s *config.RenderSettings) {
	flags := cmd.Flags()
	set := func(name string, apply func()) {
		if flags.Changed(name) {
			apply()
		}
	}
	set("format", func() { s.Format = f.format })
	set("backend", func() { s.Backend = f.backend })
	set("width", func() { s.Width = f.width })
	set("screen", func() {
		s.Screen = f.screen
		if !flags.Changed("width") {
			s.Width = 0
		}
	})
	set("density", func() { s.Density = f.density })
	set("font-scale", func() { s.ScaledDensity = s.Density * f.fontScale })
	set("padding", func() { s.Padding = f.padding })
	set("background", func() { s.Background = f.background })
	set("font", func() { s.Font = f.font })
	set("fit", func() { s.Fit = f.fit })
	set("verbose", func() { s.Logger.LogLevel = config.LogLevelDebug })

	if !flags.Changed("format") && f.out != "" {
		if format, ok := formatFromExt(f.out); ok {
			s.Format = format
		}
	}
}

func newPreviewCmd() *cobra.Command {
	f := &inputFlags{}
	var columns int
	var color bool
	cmd := &cobra.Command{
		Use:   "preview",
		Short: "在终端中以等宽字符预览小票",
		RunE: func(cmd *cobra.Command, _ []string) error {
			settings := config.DefaultRenderSettings()
			settings.Format = config.FormatText
			settings.Width = columns
			settings.Padding = "0px"

			log, err := setupLogger(&settings)
			if err != nil {
				return err
			}
			req, err := f.request(settings)
			if err != nil {
				return err
			}
			req.Logger = log
			profile := termenv.Ascii
			if color {
				profile = termenv.ColorProfile()
			}
			req.Profile = &profile

			out, err := pipeline.Render(cmd.Context(), req)
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(out)
			return err
		},
	}
	f.register(cmd)
	cmd.Flags().IntVar(&columns, "columns", 42, "预览宽度（字符单元格）")
	cmd.Flags().BoolVar(&color, "color", true, "按终端能力输出颜色")
	return cmd
}

func setupLogger(settings *config.RenderSettings) (logger.Logger, error) {
	if err := logger.InitLogger(&settings.Logger); err != nil {
		return nil, fmt.Errorf("failed to setup logger: %w", err)
	}
	return logger.GetLogger()
}

func outputExt(format string) string {
	switch format {
	case config.FormatESCPOS:
		return ".bin"
	default:
		return "." + format
	}
}

func formatFromExt(path string) (string, bool) {
	switch strings.ToLower(strings.TrimPrefix(filepath.Ext(path), ".")) {
	case "png":
		return config.FormatPNG, true
	case "jpg", "jpeg":
		return config.FormatJPEG, true
	case "pdf":
		return config.FormatPDF, true
	case "svg":
		return config.FormatSVG, true
	case "txt":
		return config.FormatText, true
	case "bin", "escpos":
		return config.FormatESCPOS, true
	}
	return "", false
}
