package server

import (
	"context"
	"net/http"
	"strconv"
	"testing"

	"github.com/gitaditya567/itskillhub/pkg/domain"
	"github.com/gitaditya567/itskillhub/pkg/pdfops/pdftest"
)

func TestPreviewServesLeadingPages(t *testing.T) {
	ts := newTestServer(t, Config{})
	book := ts.createBook(t, "Go Basics", 5)

	for _, path := range []string{"/api/books/preview/" + book.ID, "/preview/" + book.ID} {
		resp := ts.do(t, http.MethodGet, path, "", nil, "")
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("%s status = %d", path, resp.StatusCode)
		}
		if ct := resp.Header.Get("Content-Type"); ct != "application/pdf" {
			t.Fatalf("%s content type = %q", path, ct)
		}
		data := readAll(t, resp)
		if resp.Header.Get("Content-Length") != strconv.Itoa(len(data)) {
			t.Fatalf("%s content length = %q, body %d", path, resp.Header.Get("Content-Length"), len(data))
		}
		if got := pdfPages(t, data); got != 3 {
			t.Fatalf("%s pages = %d, want 3", path, got)
		}
	}
}

func TestPreviewWindowIgnoresPreviewPagesField(t *testing.T) {
	ts := newTestServer(t, Config{})
	for _, stored := range []string{"1", "7"} {
		body, ct := multipartBody(t, bookUpload{
			fields: map[string]string{"title": "Go Basics", "price": "499", "previewPages": stored},
			cover:  pngBytes,
			pdf:    pdftest.Build(10),
		})
		resp := ts.do(t, http.MethodPost, "/api/books", ts.adminToken, body, ct)
		if resp.StatusCode != http.StatusCreated {
			t.Fatalf("create status = %d body=%s", resp.StatusCode, readAll(t, resp))
		}
		var book domain.Book
		decode(t, resp, &book)
		if strconv.Itoa(book.PreviewPages) != stored {
			t.Fatalf("previewPages = %d, want %s", book.PreviewPages, stored)
		}
		if got := pdfPages(t, readAll(t, ts.do(t, http.MethodGet, "/preview/"+book.ID, "", nil, ""))); got != 3 {
			t.Fatalf("previewPages=%s: preview pages = %d, want 3", stored, got)
		}
	}
}

func TestPreviewShortBookUnchanged(t *testing.T) {
	ts := newTestServer(t, Config{})
	book := ts.createBook(t, "Pamphlet", 2)
	resp := ts.do(t, http.MethodGet, "/preview/"+book.ID, "", nil, "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if got := pdfPages(t, readAll(t, resp)); got != 2 {
		t.Fatalf("pages = %d, want 2", got)
	}
}

func TestPreviewErrors(t *testing.T) {
	ts := newTestServer(t, Config{})
	expectError(t, ts.do(t, http.MethodGet, "/api/books/preview/missing", "", nil, ""), http.StatusNotFound, "BOOK_NOT_FOUND")

	book := ts.createBook(t, "Gone", 4)
	if err := ts.files.Delete(context.Background(), book.PDFKey); err != nil {
		t.Fatalf("delete artifact: %v", err)
	}
	out := expectError(t, ts.do(t, http.MethodGet, "/preview/"+book.ID, "", nil, ""), http.StatusNotFound, "BOOK_FILE_NOT_FOUND")
	if out.Error != "file not found on server" {
		t.Fatalf("error = %q", out.Error)
	}
}

func TestDownloadRequiresAuthentication(t *testing.T) {
	ts := newTestServer(t, Config{})
	book := ts.createBook(t, "Go Basics", 5)
	expectError(t, ts.do(t, http.MethodGet, "/api/books/download/"+book.ID, "", nil, ""), http.StatusUnauthorized, "AUTH_INVALID_TOKEN")
	expectError(t, ts.do(t, http.MethodGet, "/download/"+book.ID, "garbage", nil, ""), http.StatusUnauthorized, "AUTH_INVALID_TOKEN")
}

func TestDownloadForbiddenOnEveryRoute(t *testing.T) {
	ts := newTestServer(t, Config{})
	book := ts.createBook(t, "Go Basics", 5)
	token := ts.register(t, "reader@example.com")

	for _, path := range []string{
		"/api/books/download/" + book.ID,
		"/api/users/download/" + book.ID,
		"/download/" + book.ID,
	} {
		out := expectError(t, ts.do(t, http.MethodGet, path, token, nil, ""), http.StatusForbidden, "BOOK_FORBIDDEN")
		if out.Error != "you have not purchased this book" {
			t.Fatalf("%s error = %q", path, out.Error)
		}
	}
}

func TestAdminDownloadsFullLicensedCopy(t *testing.T) {
	ts := newTestServer(t, Config{})
	book := ts.createBook(t, "Go Basics", 5)

	resp := ts.do(t, http.MethodGet, "/api/users/download/"+book.ID, ts.adminToken, nil, "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if got := resp.Header.Get("Content-Disposition"); got != `attachment; filename="Go_Basics.pdf"` {
		t.Fatalf("content disposition = %q", got)
	}
	if got := pdfPages(t, readAll(t, resp)); got != 5 {
		t.Fatalf("pages = %d, want 5", got)
	}
}

func TestDownloadMissingFile(t *testing.T) {
	ts := newTestServer(t, Config{})
	book := ts.createBook(t, "Gone", 3)
	if err := ts.files.Delete(context.Background(), book.PDFKey); err != nil {
		t.Fatalf("delete artifact: %v", err)
	}
	expectError(t, ts.do(t, http.MethodGet, "/download/"+book.ID, ts.adminToken, nil, ""), http.StatusNotFound, "BOOK_FILE_NOT_FOUND")
	expectError(t, ts.do(t, http.MethodGet, "/download/missing", ts.adminToken, nil, ""), http.StatusNotFound, "BOOK_NOT_FOUND")
}

func TestDownloadMethodNotAllowed(t *testing.T) {
	ts := newTestServer(t, Config{})
	book := ts.createBook(t, "Go Basics", 2)
	expectError(t, ts.do(t, http.MethodPost, "/download/"+book.ID, ts.adminToken, nil, ""), http.StatusMethodNotAllowed, "SYSTEM_METHOD_NOT_ALLOWED")
}
