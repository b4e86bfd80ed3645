package background

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"os"
	"path/filepath"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/bryanchriswhite/BrowserGuard/internal/logger"
	"github.com/bryanchriswhite/BrowserGuard/internal/state"
)

const (
	placeholderWidth  = 1920
	placeholderHeight = 1080
	// Each basicfont pixel is drawn as a scale x scale block
	placeholderScale = 6
)

type placeholderStyle struct {
	label string
	bg    color.RGBA
}

var placeholderStyles = map[state.SystemState]placeholderStyle{
	state.Normal:  {label: "BrowserGuard", bg: color.RGBA{R: 0x1e, G: 0x3a, B: 0x5f, A: 0xff}},
	state.Blocked: {label: "BROWSER BLOCKED", bg: color.RGBA{R: 0x8b, G: 0x10, B: 0x10, A: 0xff}},
	state.OnBreak: {label: "BATHROOM BREAK", bg: color.RGBA{R: 0x2e, G: 0x6b, B: 0x2e, A: 0xff}},
}

// Resolver substitutes a rendered placeholder image when the configured
// background file is missing.
type Resolver struct {
	cacheDir string
}

// NewResolver creates a resolver rendering into cacheDir. An empty cacheDir
// uses $XDG_CACHE_HOME/browserguard (or the OS equivalent).
func NewResolver(cacheDir string) (*Resolver, error) {
	if cacheDir == "" {
		base, err := os.UserCacheDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get cache directory: %w", err)
		}
		cacheDir = filepath.Join(base, "browserguard")
	}
	return &Resolver{cacheDir: cacheDir}, nil
}

// Resolve returns configured if it exists, otherwise the path of a
// placeholder image for s (rendered on first use).
func (r *Resolver) Resolve(s state.SystemState, configured string) (string, error) {
	if configured != "" {
		if _, err := os.Stat(configured); err == nil {
			return configured, nil
		}
	}

	path := filepath.Join(r.cacheDir, fmt.Sprintf("placeholder-%s.png", s))
	if _, err := os.Stat(path); err == nil {
		return path, nil
	}

	logger.WithComponent("background").Warn().
		Str("configured", configured).
		Str("placeholder", path).
		Msg("Background image not found, rendering placeholder")

	if err := os.MkdirAll(r.cacheDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create cache directory: %w", err)
	}
	if err := writePNG(path, renderPlaceholder(s)); err != nil {
		return "", err
	}
	return path, nil
}

// renderPlaceholder draws a solid background with the state label centred.
func renderPlaceholder(s state.SystemState) *image.RGBA {
	style, ok := placeholderStyles[s]
	if !ok {
		style = placeholderStyles[state.Normal]
	}

	img := image.NewRGBA(image.Rect(0, 0, placeholderWidth, placeholderHeight))
	draw.Draw(img, img.Bounds(), &image.Uniform{style.bg}, image.Point{}, draw.Src)

	face := basicfont.Face7x13
	d := &font.Drawer{Face: face}
	textWidthPx := d.MeasureString(style.label).Ceil()
	textHeightPx := face.Metrics().Height.Ceil()

	// Render at native size, then scale up so the label is readable
	textImg := image.NewRGBA(image.Rect(0, 0, textWidthPx, textHeightPx))
	textDrawer := &font.Drawer{
		Dst:  textImg,
		Src:  image.NewUniform(color.White),
		Face: face,
		Dot:  fixed.Point26_6{X: 0, Y: face.Metrics().Ascent},
	}
	textDrawer.DrawString(style.label)

	offX := (placeholderWidth - textWidthPx*placeholderScale) / 2
	offY := (placeholderHeight - textHeightPx*placeholderScale) / 2
	for y := 0; y < textHeightPx; y++ {
		for x := 0; x < textWidthPx; x++ {
			if textImg.RGBAAt(x, y).A == 0 {
				continue
			}
			block := image.Rect(
				offX+x*placeholderScale, offY+y*placeholderScale,
				offX+(x+1)*placeholderScale, offY+(y+1)*placeholderScale,
			)
			draw.Draw(img, block, &image.Uniform{textImg.RGBAAt(x, y)}, image.Point{}, draw.Over)
		}
	}
	return img
}

func writePNG(path string, img image.Image) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".placeholder-*")
	if err != nil {
		return fmt.Errorf("failed to create placeholder file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := png.Encode(tmp, img); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to encode placeholder: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close placeholder: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to write placeholder: %w", err)
	}
	return nil
}
