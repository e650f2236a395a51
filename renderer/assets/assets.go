// Package assets 为各渲染后端加载字体与图片资源。
//
// src 支持三种形式：built-in:<name>（通过 Options 注入）、embed:<name>（fonts 包内置字体）
// 以及相对 BaseDir 的文件路径。
package assets

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"
	"strings"
	"sync"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"

	"github.com/ByLCY/receipt/fonts"
	"github.com/ByLCY/receipt/layout"
)

// Resource can be provided either by Bytes or by Path.
type Resource struct {
	Bytes []byte
	Path  string
}

// Options configures a Loader.
type Options struct {
	BaseDir string
	Fonts   map[string]Resource // built-in fonts accessible via built-in:<name>
	Images  map[string]Resource // built-in images accessible via built-in:<name>
}

// Loader 读取并缓存解码后的图片，可被多个 goroutine 并发使用。
type Loader struct {
	baseDir    string
	fontBlobs  map[string][]byte
	imageBlobs map[string][]byte

	mu     sync.Mutex
	images map[string]image.Image
}

var _ layout.ImageMeasurer = (*Loader)(nil)

// NewLoader creates a loader with injected resources.
func NewLoader(opts Options) *Loader {
	return &Loader{
		baseDir:    opts.BaseDir,
		fontBlobs:  ingest(opts.Fonts),
		imageBlobs: ingest(opts.Images),
		images:     map[string]image.Image{},
	}
}

func ingest(resources map[string]Resource) map[string][]byte {
	out := map[string][]byte{}
	for name, res := range resources {
		if name == "" {
			continue
		}
		if len(res.Bytes) > 0 {
			out[name] = res.Bytes
			continue
		}
		if res.Path != "" {
			// 读取失败时留到真正使用时报错
			if data, err := os.ReadFile(res.Path); err == nil && len(data) > 0 {
				out[name] = data
			}
		}
	}
	return out
}

// FontBytes 读取字体数据，src 加载失败时尝试 Fallback。
func (l *Loader) FontBytes(font layout.FontResource) ([]byte, error) {
	data, err := l.fontSource(font.Src)
	if err == nil {
		return data, nil
	}
	if font.Fallback != "" && font.Fallback != font.Src {
		if fb, fbErr := l.fontSource(font.Fallback); fbErr == nil {
			return fb, nil
		}
	}
	return nil, fmt.Errorf("字体 %s: %w", font.Name, err)
}

func (l *Loader) fontSource(src string) ([]byte, error) {
	if src == "" {
		return nil, fmt.Errorf("缺少 src")
	}
	if name, ok := builtinName(src); ok {
		if blob, ok := l.fontBlobs[name]; ok {
			return blob, nil
		}
		return nil, fmt.Errorf("找不到内置字体资源 built-in:%s", name)
	}
	if strings.HasPrefix(src, "embed:") {
		return fonts.Load(src)
	}
	return os.ReadFile(l.path(src))
}

// Image 解码图片并缓存。
func (l *Loader) Image(src string) (image.Image, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if img, ok := l.images[src]; ok {
		return img, nil
	}
	data, err := l.imageSource(src)
	if err != nil {
		return nil, err
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("解码图片 %s 失败: %w", src, err)
	}
	l.images[src] = img
	return img, nil
}

// ImageSize 实现 layout.ImageMeasurer。
func (l *Loader) ImageSize(src string) (int, int, error) {
	img, err := l.Image(src)
	if err != nil {
		return 0, 0, err
	}
	b := img.Bounds()
	return b.Dx(), b.Dy(), nil
}

func (l *Loader) imageSource(src string) ([]byte, error) {
	if src == "" {
		return nil, fmt.Errorf("图片缺少 src")
	}
	if name, ok := builtinName(src); ok {
		if blob, ok := l.imageBlobs[name]; ok {
			return blob, nil
		}
		return nil, fmt.Errorf("找不到内置图片资源 built-in:%s", name)
	}
	if strings.HasPrefix(src, "embed:") {
		return nil, fmt.Errorf("图片资源 %s 未找到（embed 仅支持内置字体）", src)
	}
	data, err := os.ReadFile(l.path(src))
	if err != nil {
		return nil, fmt.Errorf("读取图片 %s 失败: %w", src, err)
	}
	return data, nil
}

func (l *Loader) path(src string) string {
	if l.baseDir == "" || filepath.IsAbs(src) {
		return src
	}
	return filepath.Join(l.baseDir, src)
}

func builtinName(src string) (string, bool) {
	for _, prefix := range []string{"built-in:", "builtin:"} {
		if name, ok := strings.CutPrefix(src, prefix); ok {
			return name, true
		}
	}
	return "", false
}
