package pipeline

import (
	"bytes"
	"context"
	"image/png"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/ByLCY/receipt/config"
)

const priceDSL = `
receipt Price v1 {
  body {
    line {
      left { "Tea" }
      right { "${price}" }
    }
    "Thank you"
  }
}
`

func settings(format, backend string, width int) config.RenderSettings {
	s := config.DefaultRenderSettings()
	s.Format = format
	s.Backend = backend
	s.Width = width
	return s
}

func textRequest(source string, width int) Request {
	s := settings(config.FormatText, config.BackendCanvas, width)
	s.Padding = "0px"
	return Request{Source: []byte(source), Filename: "price.receipt", Settings: s}
}

func TestRenderDSLAsText(t *testing.T) {
	req := textRequest(priceDSL, 20)
	req.Data = map[string]any{"price": 2.5}

	out, err := Render(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "Tea              2.5\nThank you\n", string(out))
}

func TestRenderJSONLines(t *testing.T) {
	cases := map[string]string{
		"object": `{"lines":[{"left":{"text":"A"},"right":{"text":"B"}}]}`,
		"array":  `[{"left":{"text":"A"},"right":{"text":"B"}}]`,
	}
	for name, source := range cases {
		t.Run(name, func(t *testing.T) {
			req := textRequest(source, 5)
			req.Filename = ""
			out, err := Render(context.Background(), req)
			require.NoError(t, err)
			assert.Equal(t, "A   B\n", string(out))
		})
	}
}

func TestRenderJSONNamedColors(t *testing.T) {
	req := textRequest(`{"colors":{"ink":"#nothex"},"lines":[{"left":{"text":"A","color":"ink"}}]}`, 5)
	_, err := Render(context.Background(), req)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "color ink")
}

func TestDetectKind(t *testing.T) {
	assert.Equal(t, InputJSON, detectKind(Request{Filename: "lines.JSON"}))
	assert.Equal(t, InputJSON, detectKind(Request{Source: []byte("  [ ]")}))
	assert.Equal(t, InputDSL, detectKind(Request{Source: []byte("receipt A v1 {}")}))
	assert.Equal(t, InputDSL, detectKind(Request{Kind: InputDSL, Filename: "x.json"}))
}

func TestRenderBitmapPNG(t *testing.T) {
	s := settings(config.FormatPNG, config.BackendBitmap, 100)
	s.Padding = "5px"
	out, err := Render(context.Background(), Request{
		Source:   []byte(priceDSL),
		Data:     map[string]any{"price": 2.5},
		Settings: s,
	})
	require.NoError(t, err)

	img, err := png.Decode(bytes.NewReader(out))
	require.NoError(t, err)
	assert.Equal(t, 110, img.Bounds().Dx())
	assert.Greater(t, img.Bounds().Dy(), 10)
}

func TestRenderFit(t *testing.T) {
	s := settings(config.FormatPNG, config.BackendBitmap, 100)
	s.Fit = "50x20"
	out, err := Render(context.Background(), Request{Source: []byte(priceDSL), Settings: s})
	require.NoError(t, err)

	img, err := png.Decode(bytes.NewReader(out))
	require.NoError(t, err)
	assert.Equal(t, 50, img.Bounds().Dx())
	assert.Equal(t, 20, img.Bounds().Dy())
}

func TestRenderESCPOS(t *testing.T) {
	s := settings(config.FormatESCPOS, config.BackendBitmap, 96)
	req := Request{Source: []byte(priceDSL), Settings: s}
	req.Escpos.Cut = true

	out, err := Render(context.Background(), req)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(out, []byte{0x1B, '@'}))
	assert.True(t, bytes.Contains(out, []byte{0x1D, 'v', '0'}))
	assert.True(t, bytes.HasSuffix(out, []byte{0x1D, 'V', 66, 0}))
}

func TestRenderErrors(t *testing.T) {
	t.Run("invalid settings", func(t *testing.T) {
		s := settings(config.FormatPDF, config.BackendBitmap, 100)
		_, err := Render(context.Background(), Request{Source: []byte(priceDSL), Settings: s})
		require.Error(t, err)
	})
	t.Run("bad padding", func(t *testing.T) {
		req := textRequest(priceDSL, 20)
		req.Settings.Padding = "abc"
		_, err := Render(context.Background(), req)
		require.Error(t, err)
	})
	t.Run("parse error", func(t *testing.T) {
		_, err := Render(context.Background(), textRequest("receipt {", 20))
		require.Error(t, err)
	})
	t.Run("bad fit", func(t *testing.T) {
		s := settings(config.FormatPNG, config.BackendBitmap, 100)
		s.Fit = "wide"
		_, err := Render(context.Background(), Request{Source: []byte(priceDSL), Settings: s})
		require.Error(t, err)
	})
	t.Run("fit on pdf", func(t *testing.T) {
		s := settings(config.FormatPDF, config.BackendCanvas, 100)
		s.Fit = "50x50"
		_, err := Render(context.Background(), Request{Source: []byte(priceDSL), Settings: s})
		require.Error(t, err)
	})
	t.Run("cancelled", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := Render(ctx, textRequest(priceDSL, 20))
		require.ErrorIs(t, err, context.Canceled)
	})
}

func TestGoInvokesExactlyOneCallback(t *testing.T) {
	var ok, failed atomic.Int32
	var got []byte
	req := textRequest(priceDSL, 20)
	req.Data = map[string]any{"price": 1}

	<-Go(context.Background(), req,
		func(out []byte) { got = out; ok.Add(1) },
		func(error) { failed.Add(1) })
	assert.EqualValues(t, 1, ok.Load())
	assert.EqualValues(t, 0, failed.Load())
	assert.Contains(t, string(got), "Thank you")

	var gotErr error
	<-Go(context.Background(), textRequest("receipt {", 20),
		func([]byte) { ok.Add(1) },
		func(err error) { gotErr = err; failed.Add(1) })
	assert.EqualValues(t, 1, ok.Load())
	assert.EqualValues(t, 1, failed.Load())
	assert.Error(t, gotErr)
}

func TestGoReportsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var succeeded bool
	var gotErr error
	<-Go(ctx, textRequest(priceDSL, 20),
		func([]byte) { succeeded = true },
		func(err error) { gotErr = err })
	assert.False(t, succeeded)
	assert.ErrorIs(t, gotErr, context.Canceled)
}

func TestRenderTranslucentBackground(t *testing.T) {
	s := settings(config.FormatPNG, config.BackendBitmap, 100)
	s.Background = "#FFFA"
	require.NoError(t, s.Validate())

	out, err := Render(context.Background(), Request{Source: []byte(priceDSL), Settings: s})
	require.NoError(t, err)
	img, err := png.Decode(bytes.NewReader(out))
	require.NoError(t, err)
	_, _, _, a := img.At(0, 0).RGBA()
	assert.Equal(t, uint32(0xAAAA), a)
}

func TestGoNilCallbacks(t *testing.T) {
	<-Go(context.Background(), textRequest("receipt {", 20), nil, nil)
}

func TestRenderLogsCompletion(t *testing.T) {
	log := new(MockLogger)
	log.On("Debug", mock.Anything).Maybe()
	log.On("Info", mock.MatchedBy(func(msg string) bool {
		return strings.Contains(msg, "渲染完成 format=txt")
	})).Once()

	req := textRequest(priceDSL, 20)
	req.Data = map[string]any{"price": 2.5}
	req.Logger = log
	_, err := Render(context.Background(), req)
	require.NoError(t, err)
	log.AssertExpectations(t)
	log.AssertNotCalled(t, "Error", mock.Anything)
}
