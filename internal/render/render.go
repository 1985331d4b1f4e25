// Package render draws the user's name onto the coupon template.
package render

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/draw"
	"image/png"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"

	"github.com/m3rciful/couponbot/core/logger"
)

// Options describes the template and where the name goes on it.
type Options struct {
	TemplatePath string
	FontPath     string
	OutputDir    string
	FontSize     float64
	X            int
	Y            int
	LineHeight   int
}

func (o Options) withDefaults() Options {
	if o.FontSize <= 0 {
		o.FontSize = 62
	}
	if o.X == 0 && o.Y == 0 {
		o.X, o.Y = 50, 360
	}
	if o.LineHeight <= 0 {
		o.LineHeight = 65
	}
	if o.OutputDir == "" {
		o.OutputDir = os.TempDir()
	}
	return o
}

// Artifact is a rendered coupon on disk. Release removes it.
type Artifact struct {
	Path string
}

// Release deletes the file. Calling it twice is harmless.
func (a *Artifact) Release() error {
	if a == nil || a.Path == "" {
		return nil
	}
	if err := os.Remove(a.Path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

// Renderer writes PNG coupons. It is safe for concurrent use.
type Renderer struct {
	opts Options

	faceOnce sync.Once
	face     font.Face
	faceMu   sync.Mutex
}

// New returns a Renderer. The font is loaded on first use.
func New(opts Options) *Renderer {
	return &Renderer{opts: opts.withDefaults()}
}

// Lines splits a name for layout: the first two words on one line and the
// rest on the next.
func Lines(name string) []string {
	words := strings.Fields(name)
	if len(words) <= 2 {
		return []string{name}
	}
	return []string{strings.Join(words[:2], " "), strings.Join(words[2:], " ")}
}

// Render composes fullName onto the template and writes it to OutputDir.
func (r *Renderer) Render(ctx context.Context, fullName string) (*Artifact, error) {
	start := time.Now()
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	tpl, err := loadTemplate(r.opts.TemplatePath)
	if err != nil {
		return nil, err
	}
	canvas := image.NewRGBA(tpl.Bounds())
	draw.Draw(canvas, canvas.Bounds(), tpl, tpl.Bounds().Min, draw.Src)

	r.drawName(canvas, fullName)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if err := os.MkdirAll(r.opts.OutputDir, 0o755); err != nil {
		return nil, fmt.Errorf("render: output dir: %w", err)
	}
	art := &Artifact{Path: filepath.Join(r.opts.OutputDir, "coupon_"+uuid.NewString()+".png")}
	if err := writePNG(art.Path, canvas); err != nil {
		_ = art.Release()
		return nil, err
	}

	logger.Debug(ctx, logger.CompRender, "render.done",
		slog.String("status", "ok"),
		slog.String("path", art.Path),
		slog.Duration("render", time.Since(start)),
	)
	return art, nil
}

func (r *Renderer) drawName(dst *image.RGBA, name string) {
	face := r.loadFace()
	// font.Face implementations are not safe for concurrent use.
	r.faceMu.Lock()
	defer r.faceMu.Unlock()

	d := &font.Drawer{Dst: dst, Src: image.White, Face: face}
	for i, line := range Lines(name) {
		d.Dot = fixed.P(r.opts.X, r.opts.Y+i*r.opts.LineHeight)
		d.DrawString(line)
	}
}

func (r *Renderer) loadFace() font.Face {
	r.faceOnce.Do(func() {
		face, err := openFace(r.opts.FontPath, r.opts.FontSize)
		if err != nil {
			logger.Warn(context.Background(), logger.CompRender, "font.fallback",
				slog.String("path", r.opts.FontPath),
				slog.String("err", err.Error()),
			)
			face = basicfont.Face7x13
		}
		r.face = face
	})
	return r.face
}

func openFace(path string, size float64) (font.Face, error) {
	if path == "" {
		return nil, errors.New("no font configured")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	f, err := opentype.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parse font: %w", err)
	}
	return opentype.NewFace(f, &opentype.FaceOptions{Size: size, DPI: 72, Hinting: font.HintingFull})
}

func loadTemplate(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("render: open template: %w", err)
	}
	defer f.Close()
	img, err := png.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("render: decode template: %w", err)
	}
	return img, nil
}

func writePNG(path string, img image.Image) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("render: create output: %w", err)
	}
	defer func() {
		if cerr := f.Close(); err == nil && cerr != nil {
			err = fmt.Errorf("render: close output: %w", cerr)
		}
	}()
	if err := png.Encode(f, img); err != nil {
		return fmt.Errorf("render: encode: %w", err)
	}
	return nil
}
