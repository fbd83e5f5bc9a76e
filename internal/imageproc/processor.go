// Package imageproc executes variant plans against image uploads with
// github.com/disintegration/imaging.
package imageproc

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/dmitrijs2005/paperclip/internal/common"
	"github.com/dmitrijs2005/paperclip/internal/upload"
	"github.com/dmitrijs2005/paperclip/internal/variant"
	lru "github.com/hashicorp/golang-lru/v2"
)

const defaultOverlayCache = 32

var anchors = map[variant.Position]imaging.Anchor{
	variant.Center:      imaging.Center,
	variant.TopLeft:     imaging.TopLeft,
	variant.Top:         imaging.Top,
	variant.TopRight:    imaging.TopRight,
	variant.Left:        imaging.Left,
	variant.Right:       imaging.Right,
	variant.BottomLeft:  imaging.BottomLeft,
	variant.Bottom:      imaging.Bottom,
	variant.BottomRight: imaging.BottomRight,
}

// Processor renders variants. Watermark overlays are decoded once and kept
// in an LRU cache keyed by path.
type Processor struct {
	overlays *lru.Cache[string, image.Image]
	open     func(path string) (image.Image, error)
}

func New(overlayCacheSize int) (*Processor, error) {
	if overlayCacheSize <= 0 {
		overlayCacheSize = defaultOverlayCache
	}

	cache, err := lru.New[string, image.Image](overlayCacheSize)
	if err != nil {
		return nil, fmt.Errorf("create overlay cache: %w", err)
	}

	return &Processor{
		overlays: cache,
		open: func(path string) (image.Image, error) {
			return imaging.Open(path)
		},
	}, nil
}

// Process applies plan to src. An empty plan returns an unchanged copy of
// src. Missing overlays surface as common.ErrInvalidStepConfig, everything
// else as common.ErrProcessing.
func (p *Processor) Process(ctx context.Context, src *upload.File, plan variant.Plan) (*upload.File, error) {
	if plan.Len() == 0 {
		return src.WithName(src.Name()), nil
	}
	if !src.IsImage() {
		return nil, fmt.Errorf("%w: %s (%s) is not an image", common.ErrProcessing, src.Name(), src.ContentType())
	}

	img, err := imaging.Decode(bytes.NewReader(src.Bytes()), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("%w: decode %s: %v", common.ErrProcessing, src.Name(), err)
	}

	for i, step := range plan.Steps() {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("%w: %v", common.ErrProcessing, err)
		}

		img, err = p.apply(img, step)
		if err != nil {
			return nil, fmt.Errorf("variant %q step %d (%s): %w", plan.Name(), i, step.Type, err)
		}
	}

	format := outputFormat(src)
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, format); err != nil {
		return nil, fmt.Errorf("%w: encode %s: %v", common.ErrProcessing, src.Name(), err)
	}

	return upload.NewFile(src.Name(), buf.Bytes(), src.ContentType()), nil
}

func (p *Processor) apply(img image.Image, step variant.StepSpec) (image.Image, error) {
	switch step.Type {
	case variant.TypeResize:
		w, h := step.Int("width"), step.Int("height")
		if step.Bool("fit") {
			return imaging.Fit(img, w, h, imaging.Lanczos), nil
		}
		return imaging.Resize(img, w, h, imaging.Lanczos), nil

	case variant.TypeCrop:
		anchor, ok := anchors[variant.Position(step.Text("anchor"))]
		if !ok {
			anchor = imaging.Center
		}
		return imaging.CropAnchor(img, step.Int("width"), step.Int("height"), anchor), nil

	case variant.TypeGrayscale:
		return imaging.Grayscale(img), nil

	case variant.TypeRotate:
		switch step.Int("degrees") {
		case 90:
			return imaging.Rotate90(img), nil
		case 180:
			return imaging.Rotate180(img), nil
		case 270:
			return imaging.Rotate270(img), nil
		default:
			return img, nil
		}

	case variant.TypeWatermark:
		return p.watermark(img, step)

	default:
		return nil, fmt.Errorf("%w: unsupported step type %q", common.ErrInvalidStepConfig, step.Type)
	}
}

func (p *Processor) watermark(img image.Image, step variant.StepSpec) (image.Image, error) {
	path := step.Text("watermark")
	overlay, err := p.overlay(path)
	if err != nil {
		return nil, fmt.Errorf("%w: watermark %q: %v", common.ErrInvalidStepConfig, path, err)
	}

	pos := variant.Position(step.Text("position"))
	if pos == "" {
		pos = variant.BottomRight
	}

	at := anchorPoint(img.Bounds(), overlay.Bounds(), pos)
	return imaging.Overlay(img, overlay, at, step.Float("opacity")), nil
}

func (p *Processor) overlay(path string) (image.Image, error) {
	if path == "" {
		return nil, errors.New("empty path")
	}
	if img, ok := p.overlays.Get(path); ok {
		return img, nil
	}

	img, err := p.open(path)
	if err != nil {
		return nil, err
	}
	p.overlays.Add(path, img)
	return img, nil
}

// anchorPoint returns the top-left corner that places over at pos inside base.
func anchorPoint(base, over image.Rectangle, pos variant.Position) image.Point {
	bw, bh := base.Dx(), base.Dy()
	ow, oh := over.Dx(), over.Dy()

	x := (bw - ow) / 2
	switch pos {
	case variant.TopLeft, variant.Left, variant.BottomLeft:
		x = 0
	case variant.TopRight, variant.Right, variant.BottomRight:
		x = bw - ow
	}

	y := (bh - oh) / 2
	switch pos {
	case variant.TopLeft, variant.Top, variant.TopRight:
		y = 0
	case variant.BottomLeft, variant.Bottom, variant.BottomRight:
		y = bh - oh
	}

	return image.Pt(base.Min.X+x, base.Min.Y+y)
}

func outputFormat(src *upload.File) imaging.Format {
	if f, err := imaging.FormatFromFilename(src.Name()); err == nil {
		return f
	}

	switch strings.TrimPrefix(src.ContentType(), "image/") {
	case "jpeg", "jpg":
		return imaging.JPEG
	case "gif":
		return imaging.GIF
	case "bmp":
		return imaging.BMP
	case "tiff":
		return imaging.TIFF
	default:
		return imaging.PNG
	}
}
