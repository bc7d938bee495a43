// Package pdfops derives preview and licensed copies of stored PDF books.
//
// Every function works on an independent in-memory copy of the source bytes
// so calls from concurrent requests never share document state.
package pdfops

import (
	"bytes"
	"errors"
	"fmt"
	"strconv"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"
)

// PreviewWindow is the number of leading pages shown in a preview:
// the cover plus two content pages.
const PreviewWindow = 3

// License stamp placement, relative to the bottom-left page corner.
const (
	stampOffsetX  = 50
	stampOffsetY  = 20
	stampPoints   = 12
	stampColor    = "#808080"
	stampOpacity  = 0.5
	stampFontName = "Helvetica"
)

var (
	// ErrMalformed is returned when the input cannot be parsed as a PDF.
	ErrMalformed = errors.New("malformed pdf")
	// ErrRender is returned when a parsed document cannot be rewritten.
	ErrRender = errors.New("pdf render failed")
)

func init() {
	// Core fonts only; never touch a user config directory.
	api.DisableConfigDir()
}

func newConfig() *model.Configuration {
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	return conf
}

// PageCount returns the number of pages in src.
func PageCount(src []byte) (int, error) {
	if len(src) == 0 {
		return 0, fmt.Errorf("%w: empty input", ErrMalformed)
	}
	n, err := api.PageCount(bytes.NewReader(src), newConfig())
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return n, nil
}

// PreviewPages returns the zero-based page indices included in a preview of
// a document with total pages: [0, window) clipped to [0, total). Page 0 is
// always present when the document has at least one page.
func PreviewPages(total, window int) []int {
	pages := make([]int, 0, max(0, min(total, window)))
	for i := 0; i < window; i++ {
		if i < total {
			pages = append(pages, i)
		}
	}
	if len(pages) == 0 && total > 0 {
		pages = append(pages, 0)
	}
	return pages
}

// ExtractPreview returns a new PDF holding only the leading window pages of
// src, in their original order. Page content is carried over unchanged.
// A document without pages is returned as is.
func ExtractPreview(src []byte, window int) ([]byte, error) {
	total, err := PageCount(src)
	if err != nil {
		return nil, err
	}
	if total == 0 {
		return bytes.Clone(src), nil
	}
	pages := PreviewPages(total, window)
	if len(pages) == total {
		return bytes.Clone(src), nil
	}
	selected := make([]string, 0, len(pages))
	for _, idx := range pages {
		selected = append(selected, strconv.Itoa(idx+1))
	}
	var out bytes.Buffer
	if err := api.Trim(bytes.NewReader(src), &out, selected, newConfig()); err != nil {
		return nil, fmt.Errorf("%w: trim: %v", ErrRender, err)
	}
	return out.Bytes(), nil
}

// LicenseText builds the string stamped onto licensed copies.
func LicenseText(email, product string) string {
	return fmt.Sprintf("Licensed to %s - %s", email, product)
}

// StampLicense renders text near the bottom-left corner of every page of
// src. Page count, order and existing content are preserved.
func StampLicense(src []byte, text string) ([]byte, error) {
	total, err := PageCount(src)
	if err != nil {
		return nil, err
	}
	if total == 0 {
		return bytes.Clone(src), nil
	}
	wm, err := pdfcpu.ParseTextWatermarkDetails(text, stampDescription(), true, types.POINTS)
	if err != nil {
		return nil, fmt.Errorf("%w: watermark details: %v", ErrRender, err)
	}
	var out bytes.Buffer
	if err := api.AddWatermarks(bytes.NewReader(src), &out, nil, wm, newConfig()); err != nil {
		return nil, fmt.Errorf("%w: stamp: %v", ErrRender, err)
	}
	return out.Bytes(), nil
}

func stampDescription() string {
	return fmt.Sprintf(
		"font:%s, points:%d, pos:bl, off:%d %d, scale:1 abs, rot:0, fillc:%s, op:%.1f",
		stampFontName, stampPoints, stampOffsetX, stampOffsetY, stampColor, stampOpacity,
	)
}
