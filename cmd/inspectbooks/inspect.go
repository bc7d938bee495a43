package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"github.com/ledongthuc/pdf"

	"github.com/gitaditya567/itskillhub/pkg/domain"
	"github.com/gitaditya567/itskillhub/pkg/pdfops"
	"github.com/gitaditya567/itskillhub/pkg/storage"
)

type bookLister interface {
	ListBooks() ([]domain.Book, error)
}

type bookReport struct {
	ID       string
	Title    string
	Pages    int
	Preview  int
	Problems []string
}

func (r bookReport) ok() bool {
	return len(r.Problems) == 0
}

// inspectBooks checks that every catalogued book has its cover and a readable PDF.
func inspectBooks(ctx context.Context, books bookLister, artifacts storage.ArtifactStore) ([]bookReport, error) {
	list, err := books.ListBooks()
	if err != nil {
		return nil, fmt.Errorf("list books: %w", err)
	}
	reports := make([]bookReport, 0, len(list))
	for _, book := range list {
		rep := bookReport{ID: book.ID, Title: book.Title}
		if ok, err := artifacts.Exists(ctx, book.CoverKey); err != nil {
			rep.Problems = append(rep.Problems, fmt.Sprintf("cover check failed: %v", err))
		} else if !ok {
			rep.Problems = append(rep.Problems, "cover missing")
		}

		data, err := artifacts.Read(ctx, book.PDFKey)
		switch {
		case errors.Is(err, storage.ErrNotFound):
			rep.Problems = append(rep.Problems, "pdf missing")
		case err != nil:
			rep.Problems = append(rep.Problems, fmt.Sprintf("pdf read failed: %v", err))
		default:
			pages, err := countPages(data)
			if err != nil {
				rep.Problems = append(rep.Problems, fmt.Sprintf("pdf unreadable: %v", err))
				break
			}
			rep.Pages = pages
			rep.Preview = len(pdfops.PreviewPages(pages, pdfops.PreviewWindow))
			if pages < book.PreviewPages {
				rep.Problems = append(rep.Problems, fmt.Sprintf("previewPages %d exceeds page count %d", book.PreviewPages, pages))
			}
		}
		reports = append(reports, rep)
	}
	return reports, nil
}

// countPages parses independently of pdfcpu so a second reader confirms the file.
func countPages(data []byte) (n int, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("parse pdf: %v", r)
		}
	}()
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return 0, fmt.Errorf("open pdf: %w", err)
	}
	n = reader.NumPage()
	if n == 0 {
		return 0, errors.New("pdf has no pages")
	}
	return n, nil
}
