// Package watermark stamps each page of a PDF with a personalized license
// line so redistributed copies carry the buyer's identity. Watermarking is a
// deterrent, not a security boundary: it must never block delivery, so any
// internal failure degrades to returning the original bytes unchanged.
package watermark

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	pdftypes "github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"

	"github.com/stitchfolk/pattern-delivery/internal/pkg/logger"
)

const licensePrefix = "Licensed for personal use only: "

// Engine applies license watermarks to PDF documents. Construct with
// NewEngine; the brand-mark asset is resolved once at construction and its
// absence is tolerated.
type Engine struct {
	log  *logger.Logger
	logo *logoAsset // nil when the asset is missing or unreadable
	conf *model.Configuration
}

// NewEngine creates a watermark engine. brandMarkPath points at an optional
// PNG; when it cannot be loaded the engine stamps text only.
func NewEngine(brandMarkPath string) *Engine {
	log := logger.With("watermark")

	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed

	e := &Engine{log: log, conf: conf}
	if brandMarkPath != "" {
		e.logo = loadBrandMark(brandMarkPath, log)
	}
	return e
}

// Stamp returns a copy of pdf with the license line drawn on every page.
// It never fails: on any internal error the original bytes are returned
// unchanged so downstream code always has a deliverable attachment. The
// input slice is never mutated.
func (e *Engine) Stamp(pdf []byte, licenseIdentity string) []byte {
	out, err := e.stamp(pdf, licenseIdentity)
	if err != nil {
		e.log.Warn("watermarking failed, delivering original bytes", "error", err.Error())
		return pdf
	}
	return out
}

func (e *Engine) stamp(pdf []byte, licenseIdentity string) (out []byte, err error) {
	// pdfcpu can panic on pathological input; the fallback contract covers
	// panics too.
	defer func() {
		if r := recover(); r != nil {
			out, err = nil, fmt.Errorf("panic during watermarking: %v", r)
		}
	}()

	// pdfcpu's reader spins forever on zero-length input, so it must never
	// see empty bytes.
	if len(pdf) == 0 {
		return nil, fmt.Errorf("empty input")
	}
	if err := api.Validate(bytes.NewReader(pdf), e.conf); err != nil {
		return nil, fmt.Errorf("parsing pdf: %w", err)
	}

	text := licensePrefix + sanitizeIdentity(licenseIdentity)

	// Top-left line, faint.
	out, err = e.applyTextStamp(pdf, text, "pos:tl, off:10 -24, op:.2")
	if err != nil {
		return nil, fmt.Errorf("top stamp: %w", err)
	}

	// Bottom-left line, slightly stronger; shifted right when the brand
	// mark sits to its left.
	bottomX := 10
	if e.logo != nil {
		bottomX = 10 + e.logo.width + 8
	}
	out, err = e.applyTextStamp(out, text, fmt.Sprintf("pos:bl, off:%d 14, op:.3", bottomX))
	if err != nil {
		return nil, fmt.Errorf("bottom stamp: %w", err)
	}

	// Brand mark is best-effort: a failed image embed must not lose the
	// text stamps already applied.
	if e.logo != nil {
		stamped, logoErr := e.applyLogoStamp(out)
		if logoErr != nil {
			e.log.Warn("brand mark embed failed, continuing text-only", "error", logoErr.Error())
		} else {
			out = stamped
		}
	}

	// Document properties identify the platform as the generator. Also
	// best-effort.
	if withProps, propErr := e.applyProperties(out); propErr != nil {
		e.log.Warn("setting document properties failed", "error", propErr.Error())
	} else {
		out = withProps
	}

	// Strip interactive annotations so form fields and links cannot be used
	// to lift or obscure the stamp. Tamper resistance, not size tuning.
	if flattened, flatErr := e.stripAnnotations(out); flatErr == nil {
		out = flattened
	}

	return out, nil
}

func (e *Engine) applyTextStamp(pdf []byte, text, placement string) ([]byte, error) {
	desc := "fontname:Helvetica, points:15, rot:0, fillcolor:#7a7a7a, scalefactor:1 abs, " + placement
	wm, err := api.TextWatermark(text, desc, true, false, pdftypes.POINTS)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := api.AddWatermarks(bytes.NewReader(pdf), &buf, nil, wm, e.conf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (e *Engine) applyLogoStamp(pdf []byte) ([]byte, error) {
	wm, err := api.ImageWatermarkForReader(bytes.NewReader(e.logo.png),
		"pos:bl, off:10 10, rot:0, op:.2, scalefactor:1 abs", true, false, pdftypes.POINTS)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := api.AddWatermarks(bytes.NewReader(pdf), &buf, nil, wm, e.conf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (e *Engine) applyProperties(pdf []byte) ([]byte, error) {
	var buf bytes.Buffer
	props := map[string]string{
		"Generator": "Stitchfolk Pattern Delivery",
		"Platform":  "stitchfolk.com",
	}
	if err := api.AddProperties(bytes.NewReader(pdf), &buf, props, e.conf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (e *Engine) stripAnnotations(pdf []byte) ([]byte, error) {
	var buf bytes.Buffer
	if err := api.RemoveAnnotations(bytes.NewReader(pdf), &buf, nil, nil, nil, e.conf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// sanitizeIdentity trims the license identity and strips control characters.
// The identity is untrusted text; it is only ever drawn, never interpreted.
func sanitizeIdentity(identity string) string {
	identity = strings.TrimSpace(identity)
	return strings.Map(func(r rune) rune {
		if r < 0x20 || r == 0x7f {
			return -1
		}
		return r
	}, identity)
}
