package app

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"path"
	"regexp"
	"strings"

	"github.com/gitaditya567/itskillhub/internal/util"
	"github.com/gitaditya567/itskillhub/pkg/domain"
	"github.com/gitaditya567/itskillhub/pkg/pdfops"
	"github.com/gitaditya567/itskillhub/pkg/storage"
)

// Upload is one file received from the admin console.
type Upload struct {
	Filename string
	Data     []byte
}

// BookInput carries the fields of a new book.
type BookInput struct {
	Title        string
	Description  string
	Price        int64
	PreviewPages int
}

// BookPatch carries optional field updates; nil means unchanged.
type BookPatch struct {
	Title        *string
	Description  *string
	Price        *int64
	PreviewPages *int
}

var coverTypes = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
}

var unsafeKeyChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// ListBooks returns the catalog.
func (a *App) ListBooks() ([]domain.Book, error) {
	return a.store.ListBooks()
}

// GetBook returns one book or ErrBookNotFound.
func (a *App) GetBook(id string) (domain.Book, error) {
	book, ok, err := a.store.GetBook(strings.TrimSpace(id))
	if err != nil {
		return domain.Book{}, fmt.Errorf("fetch book: %w", err)
	}
	if !ok {
		return domain.Book{}, ErrBookNotFound
	}
	return book, nil
}

// CreateBook stores both artifacts and then the book row. Artifacts are
// removed again if the row cannot be saved.
func (a *App) CreateBook(ctx context.Context, in BookInput, cover, pdf *Upload) (domain.Book, error) {
	if cover == nil || pdf == nil {
		return domain.Book{}, fmt.Errorf("%w: please upload both cover image and PDF", ErrInvalidUpload)
	}
	if in.PreviewPages == 0 {
		in.PreviewPages = domain.DefaultPreviewPages
	}
	in.Title = strings.TrimSpace(in.Title)
	in.Description = strings.TrimSpace(in.Description)
	if err := validateBookFields(in.Title, in.Price, in.PreviewPages); err != nil {
		return domain.Book{}, err
	}
	coverType, err := checkCover(cover)
	if err != nil {
		return domain.Book{}, err
	}
	if err := checkPDF(pdf); err != nil {
		return domain.Book{}, err
	}

	now := a.now().UTC()
	book := domain.Book{
		ID:           util.NewID(),
		Title:        in.Title,
		Description:  in.Description,
		Price:        in.Price,
		PreviewPages: in.PreviewPages,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	book.CoverKey = artifactKey(book.ID, cover.Filename)
	book.PDFKey = artifactKey(book.ID, pdf.Filename)
	if err := a.putArtifact(ctx, book.CoverKey, cover.Data, coverType); err != nil {
		return domain.Book{}, err
	}
	if err := a.putArtifact(ctx, book.PDFKey, pdf.Data, "application/pdf"); err != nil {
		a.dropArtifacts(ctx, book.CoverKey)
		return domain.Book{}, err
	}
	if err := a.store.SaveBook(book); err != nil {
		a.dropArtifacts(ctx, book.CoverKey, book.PDFKey)
		return domain.Book{}, fmt.Errorf("save book: %w", err)
	}
	return book, nil
}

// UpdateBook applies patch and swaps in replacement artifacts. Replaced
// artifacts are deleted after the row is saved.
func (a *App) UpdateBook(ctx context.Context, id string, patch BookPatch, cover, pdf *Upload) (domain.Book, error) {
	book, err := a.GetBook(id)
	if err != nil {
		return domain.Book{}, err
	}
	if patch.Title != nil {
		book.Title = strings.TrimSpace(*patch.Title)
	}
	if patch.Description != nil {
		book.Description = strings.TrimSpace(*patch.Description)
	}
	if patch.Price != nil {
		book.Price = *patch.Price
	}
	if patch.PreviewPages != nil {
		book.PreviewPages = *patch.PreviewPages
	}
	if err := validateBookFields(book.Title, book.Price, book.PreviewPages); err != nil {
		return domain.Book{}, err
	}

	var replaced, added []string
	if cover != nil {
		coverType, err := checkCover(cover)
		if err != nil {
			return domain.Book{}, err
		}
		key := artifactKey(book.ID, cover.Filename)
		if err := a.putArtifact(ctx, key, cover.Data, coverType); err != nil {
			return domain.Book{}, err
		}
		replaced, added = append(replaced, book.CoverKey), append(added, key)
		book.CoverKey = key
	}
	if pdf != nil {
		if err := checkPDF(pdf); err != nil {
			a.dropArtifacts(ctx, added...)
			return domain.Book{}, err
		}
		key := artifactKey(book.ID, pdf.Filename)
		if err := a.putArtifact(ctx, key, pdf.Data, "application/pdf"); err != nil {
			a.dropArtifacts(ctx, added...)
			return domain.Book{}, err
		}
		replaced, added = append(replaced, book.PDFKey), append(added, key)
		book.PDFKey = key
	}
	book.UpdatedAt = a.now().UTC()
	if err := a.store.SaveBook(book); err != nil {
		a.dropArtifacts(ctx, added...)
		return domain.Book{}, fmt.Errorf("save book: %w", err)
	}
	a.dropArtifacts(ctx, replaced...)
	return book, nil
}

// DeleteBook removes the book row and both of its artifacts.
func (a *App) DeleteBook(ctx context.Context, id string) error {
	book, err := a.GetBook(id)
	if err != nil {
		return err
	}
	if err := a.store.DeleteBook(book.ID); err != nil {
		return fmt.Errorf("delete book: %w", err)
	}
	a.dropArtifacts(ctx, book.CoverKey, book.PDFKey)
	return nil
}

// Cover returns the cover image bytes and content type.
func (a *App) Cover(ctx context.Context, id string) ([]byte, string, error) {
	book, err := a.GetBook(id)
	if err != nil {
		return nil, "", err
	}
	data, err := a.loadArtifact(ctx, book.CoverKey)
	if err != nil {
		return nil, "", err
	}
	contentType, ok := coverTypes[strings.ToLower(path.Ext(book.CoverKey))]
	if !ok {
		contentType = http.DetectContentType(data)
	}
	return data, contentType, nil
}

func validateBookFields(title string, price int64, previewPages int) error {
	switch {
	case title == "":
		return fmt.Errorf("%w: title is required", ErrInvalidInput)
	case price <= 0:
		return fmt.Errorf("%w: price must be positive", ErrInvalidInput)
	case previewPages <= 0:
		return fmt.Errorf("%w: previewPages must be positive", ErrInvalidInput)
	}
	return nil
}

// checkCover accepts jpg, jpeg and png files whose bytes match the extension family.
func checkCover(u *Upload) (string, error) {
	want, ok := coverTypes[strings.ToLower(path.Ext(u.Filename))]
	if !ok {
		return "", fmt.Errorf("%w: cover image must be jpg, jpeg or png", ErrInvalidUpload)
	}
	if len(u.Data) == 0 || http.DetectContentType(u.Data) != want {
		return "", fmt.Errorf("%w: cover image content does not match its extension", ErrInvalidUpload)
	}
	return want, nil
}

func checkPDF(u *Upload) error {
	if strings.ToLower(path.Ext(u.Filename)) != ".pdf" {
		return fmt.Errorf("%w: book file must be a pdf", ErrInvalidUpload)
	}
	if _, err := pdfops.PageCount(u.Data); err != nil {
		return fmt.Errorf("%w: book file is not a readable pdf", ErrInvalidUpload)
	}
	return nil
}

func artifactKey(bookID, filename string) string {
	name := unsafeKeyChars.ReplaceAllString(path.Base(strings.ReplaceAll(filename, `\`, "/")), "_")
	name = strings.Trim(name, "._")
	if name == "" {
		name = "file"
	}
	return fmt.Sprintf("books/%s/%s-%s", bookID, util.NewID(), name)
}

func (a *App) putArtifact(ctx context.Context, key string, data []byte, contentType string) error {
	if err := a.artifacts.Put(ctx, key, bytes.NewReader(data), int64(len(data)), contentType); err != nil {
		return fmt.Errorf("store artifact: %w", err)
	}
	return nil
}

// loadArtifact checks existence before reading so a missing file maps to
// ErrArtifactNotFound regardless of backend.
func (a *App) loadArtifact(ctx context.Context, key string) ([]byte, error) {
	if strings.TrimSpace(key) == "" {
		return nil, ErrArtifactNotFound
	}
	ok, err := a.artifacts.Exists(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("check artifact: %w", err)
	}
	if !ok {
		return nil, ErrArtifactNotFound
	}
	data, err := a.artifacts.Read(ctx, key)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, ErrArtifactNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read artifact: %w", err)
	}
	return data, nil
}

func (a *App) dropArtifacts(ctx context.Context, keys ...string) {
	for _, key := range keys {
		if key == "" {
			continue
		}
		if err := a.artifacts.Delete(ctx, key); err != nil {
			util.LoggerFromContext(ctx).Warn("artifact cleanup failed", "key", key, "err", err)
		}
	}
}
