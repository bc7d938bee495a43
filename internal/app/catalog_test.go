package app

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/gitaditya567/itskillhub/pkg/domain"
	"github.com/gitaditya567/itskillhub/pkg/pdfops/pdftest"
)

func exists(t *testing.T, env *testEnv, key string) bool {
	t.Helper()
	ok, err := env.artifacts.Exists(context.Background(), key)
	if err != nil {
		t.Fatalf("exists %s: %v", key, err)
	}
	return ok
}

func TestCreateBookDefaultsAndKeys(t *testing.T) {
	env := newTestEnv(t)
	book := env.addBook(t, "Go Basics", 499, 2)
	if book.PreviewPages != domain.DefaultPreviewPages {
		t.Fatalf("preview pages = %d, want %d", book.PreviewPages, domain.DefaultPreviewPages)
	}
	prefix := "books/" + book.ID + "/"
	if !strings.HasPrefix(book.CoverKey, prefix) || !strings.HasSuffix(book.CoverKey, "-cover.png") {
		t.Fatalf("cover key = %q", book.CoverKey)
	}
	if !strings.HasPrefix(book.PDFKey, prefix) || !strings.HasSuffix(book.PDFKey, "-book.pdf") {
		t.Fatalf("pdf key = %q", book.PDFKey)
	}
	if !exists(t, env, book.CoverKey) || !exists(t, env, book.PDFKey) {
		t.Fatalf("artifacts not stored")
	}
}

func TestCreateBookValidation(t *testing.T) {
	env := newTestEnv(t)
	cover := &Upload{Filename: "cover.png", Data: pngHeader}
	pdf := &Upload{Filename: "book.pdf", Data: pdftest.Build(2)}
	good := BookInput{Title: "Go", Price: 10}

	tests := []struct {
		name  string
		in    BookInput
		cover *Upload
		pdf   *Upload
		want  error
	}{
		{name: "missing cover", in: good, pdf: pdf, want: ErrInvalidUpload},
		{name: "missing pdf", in: good, cover: cover, want: ErrInvalidUpload},
		{name: "empty title", in: BookInput{Title: "  ", Price: 10}, cover: cover, pdf: pdf, want: ErrInvalidInput},
		{name: "zero price", in: BookInput{Title: "Go"}, cover: cover, pdf: pdf, want: ErrInvalidInput},
		{name: "negative preview pages", in: BookInput{Title: "Go", Price: 10, PreviewPages: -1}, cover: cover, pdf: pdf, want: ErrInvalidInput},
		{name: "gif cover", in: good, cover: &Upload{Filename: "cover.gif", Data: []byte("GIF89a")}, pdf: pdf, want: ErrInvalidUpload},
		{name: "cover bytes not an image", in: good, cover: &Upload{Filename: "cover.jpg", Data: []byte("plain text")}, pdf: pdf, want: ErrInvalidUpload},
		{name: "pdf wrong extension", in: good, cover: cover, pdf: &Upload{Filename: "book.txt", Data: pdftest.Build(2)}, want: ErrInvalidUpload},
		{name: "pdf unreadable", in: good, cover: cover, pdf: &Upload{Filename: "book.pdf", Data: []byte("not a pdf")}, want: ErrInvalidUpload},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := env.app.CreateBook(context.Background(), tc.in, tc.cover, tc.pdf)
			if !errors.Is(err, tc.want) {
				t.Fatalf("err = %v, want %v", err, tc.want)
			}
		})
	}
	books, _ := env.app.ListBooks()
	if len(books) != 0 {
		t.Fatalf("books saved despite validation errors: %d", len(books))
	}
}

func TestUpdateBookReplacesArtifacts(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	book := env.addBook(t, "Go Basics", 499, 2)
	title := "Go Advanced"
	price := int64(799)

	updated, err := env.app.UpdateBook(ctx, book.ID, BookPatch{Title: &title, Price: &price}, nil,
		&Upload{Filename: "v2.pdf", Data: pdftest.Build(6)})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Title != title || updated.Price != price || updated.Description != book.Description {
		t.Fatalf("updated = %+v", updated)
	}
	if updated.CoverKey != book.CoverKey {
		t.Fatalf("cover key changed without a new cover")
	}
	if updated.PDFKey == book.PDFKey || exists(t, env, book.PDFKey) || !exists(t, env, updated.PDFKey) {
		t.Fatalf("pdf not replaced: old=%q new=%q", book.PDFKey, updated.PDFKey)
	}
	out, err := env.app.Preview(ctx, book.ID)
	if err != nil {
		t.Fatalf("preview: %v", err)
	}
	if got := pages(t, out); got != 3 {
		t.Fatalf("preview pages = %d, want 3", got)
	}
}

func TestUpdateBookRejectsBadUploadKeepingOld(t *testing.T) {
	env := newTestEnv(t)
	book := env.addBook(t, "Go Basics", 499, 2)
	_, err := env.app.UpdateBook(context.Background(), book.ID, BookPatch{},
		&Upload{Filename: "c.png", Data: pngHeader},
		&Upload{Filename: "v2.pdf", Data: []byte("junk")})
	if !errors.Is(err, ErrInvalidUpload) {
		t.Fatalf("err = %v, want ErrInvalidUpload", err)
	}
	stored, _ := env.app.GetBook(book.ID)
	if stored.CoverKey != book.CoverKey || stored.PDFKey != book.PDFKey {
		t.Fatalf("book changed after failed update: %+v", stored)
	}
	if !exists(t, env, book.CoverKey) || !exists(t, env, book.PDFKey) {
		t.Fatalf("original artifacts removed")
	}
}

func TestUpdateBookUnknown(t *testing.T) {
	env := newTestEnv(t)
	if _, err := env.app.UpdateBook(context.Background(), "missing", BookPatch{}, nil, nil); !errors.Is(err, ErrBookNotFound) {
		t.Fatalf("err = %v, want ErrBookNotFound", err)
	}
}

func TestDeleteBookRemovesArtifacts(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	book := env.addBook(t, "Go Basics", 499, 2)
	if err := env.app.DeleteBook(ctx, book.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := env.app.GetBook(book.ID); !errors.Is(err, ErrBookNotFound) {
		t.Fatalf("get after delete err = %v", err)
	}
	if exists(t, env, book.CoverKey) || exists(t, env, book.PDFKey) {
		t.Fatalf("artifacts left behind")
	}
	if err := env.app.DeleteBook(ctx, book.ID); !errors.Is(err, ErrBookNotFound) {
		t.Fatalf("second delete err = %v", err)
	}
}

func TestCover(t *testing.T) {
	env := newTestEnv(t)
	book := env.addBook(t, "Go Basics", 499, 2)
	data, contentType, err := env.app.Cover(context.Background(), book.ID)
	if err != nil {
		t.Fatalf("cover: %v", err)
	}
	if contentType != "image/png" || string(data) != string(pngHeader) {
		t.Fatalf("cover = %q (%d bytes)", contentType, len(data))
	}
}

func TestArtifactKeySanitizesNames(t *testing.T) {
	tests := map[string]string{
		"cover.png":            "-cover.png",
		"../../etc/passwd":     "-passwd",
		`C:\Users\me\book.pdf`: "-book.pdf",
		"my book (1).pdf":      "-my_book_1_.pdf",
		"...":                  "-file",
	}
	for name, suffix := range tests {
		key := artifactKey("b1", name)
		if !strings.HasPrefix(key, "books/b1/") || !strings.HasSuffix(key, suffix) {
			t.Fatalf("artifactKey(%q) = %q, want suffix %q", name, key, suffix)
		}
		if strings.Contains(key, "..") {
			t.Fatalf("artifactKey(%q) = %q escapes", name, key)
		}
	}
}
