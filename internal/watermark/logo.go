package watermark

import (
	"bytes"
	"image"
	"image/png"
	"os"

	"golang.org/x/image/draw"

	"github.com/stitchfolk/pattern-delivery/internal/pkg/logger"
)

// brandMarkWidth is the fixed on-page width of the brand mark in points.
const brandMarkWidth = 150

type logoAsset struct {
	png    []byte
	width  int
	height int
}

// loadBrandMark reads the brand-mark PNG and downscales it to
// brandMarkWidth preserving aspect ratio. Any failure returns nil; the
// caller stamps text-only.
func loadBrandMark(path string, log *logger.Logger) *logoAsset {
	f, err := os.Open(path)
	if err != nil {
		log.Info("brand mark unavailable, stamping text-only", "path", path, "error", err.Error())
		return nil
	}
	defer f.Close()

	src, err := png.Decode(f)
	if err != nil {
		log.Warn("brand mark unreadable, stamping text-only", "path", path, "error", err.Error())
		return nil
	}

	bounds := src.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if w <= 0 || h <= 0 {
		log.Warn("brand mark has empty bounds, stamping text-only", "path", path)
		return nil
	}

	if w > brandMarkWidth {
		scaledH := h * brandMarkWidth / w
		if scaledH < 1 {
			scaledH = 1
		}
		dst := image.NewRGBA(image.Rect(0, 0, brandMarkWidth, scaledH))
		draw.CatmullRom.Scale(dst, dst.Bounds(), src, bounds, draw.Over, nil)
		src = dst
		w, h = brandMarkWidth, scaledH
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, src); err != nil {
		log.Warn("brand mark re-encode failed, stamping text-only", "error", err.Error())
		return nil
	}

	return &logoAsset{png: buf.Bytes(), width: w, height: h}
}
