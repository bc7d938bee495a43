// Package pdftest builds small PDF documents for tests.
package pdftest

import (
	"bytes"
	"fmt"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"
)

// PageHeight is the media box height of every generated page.
const PageHeight = 792

// PageWidth returns the media box width of page i (zero-based). Widths are
// distinct per page so tests can tell pages apart after reassembly.
func PageWidth(i int) int {
	return 600 + i
}

func init() {
	api.DisableConfigDir()
}

// Build returns a well-formed PDF with the given number of pages. Page i shows
// the text "PAGE i". It panics if pdfcpu cannot assemble the document.
func Build(pages int) []byte {
	out, err := build(pages)
	if err != nil {
		panic(fmt.Sprintf("pdftest: build %d pages: %v", pages, err))
	}
	return out
}

func build(pages int) ([]byte, error) {
	xRefTable, err := pdfcpu.CreateXRefTableWithRootDict()
	if err != nil {
		return nil, err
	}
	root, err := xRefTable.Catalog()
	if err != nil {
		return nil, err
	}

	font := types.Dict(map[string]types.Object{
		"Type":     types.Name("Font"),
		"Subtype":  types.Name("Type1"),
		"BaseFont": types.Name("Helvetica"),
	})
	fontRef, err := xRefTable.IndRefForNewObject(font)
	if err != nil {
		return nil, err
	}

	pagesDict := types.Dict(map[string]types.Object{
		"Type":  types.Name("Pages"),
		"Count": types.Integer(pages),
	})
	pagesRef, err := xRefTable.IndRefForNewObject(pagesDict)
	if err != nil {
		return nil, err
	}

	kids := types.Array{}
	for i := 0; i < pages; i++ {
		content := fmt.Sprintf("BT /F1 24 Tf 72 700 Td (PAGE %d) Tj ET", i)
		contentRef, err := xRefTable.StreamDictIndRef([]byte(content))
		if err != nil {
			return nil, err
		}
		page := types.Dict(map[string]types.Object{
			"Type":     types.Name("Page"),
			"Parent":   *pagesRef,
			"MediaBox": types.RectForDim(float64(PageWidth(i)), PageHeight).Array(),
			"Resources": types.Dict(map[string]types.Object{
				"Font": types.Dict(map[string]types.Object{"F1": *fontRef}),
			}),
			"Contents": *contentRef,
		})
		pageRef, err := xRefTable.IndRefForNewObject(page)
		if err != nil {
			return nil, err
		}
		kids = append(kids, *pageRef)
	}
	pagesDict["Kids"] = kids
	root.Insert("Pages", *pagesRef)
	xRefTable.PageCount = pages

	// Classic xref table so simpler readers can parse the fixture too.
	conf := model.NewDefaultConfiguration()
	conf.WriteObjectStream = false
	conf.WriteXRefStream = false
	var buf bytes.Buffer
	if err := api.WriteContext(pdfcpu.CreateContext(xRefTable, conf), &buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
