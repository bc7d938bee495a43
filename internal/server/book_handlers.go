package server

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/gitaditya567/itskillhub/internal/app"
	"github.com/gitaditya567/itskillhub/pkg/domain"
)

const multipartMemory = 32 << 20

type bookForm struct {
	Title        string `form:"title" validate:"required,max=200"`
	Description  string `form:"description" validate:"max=10000"`
	Price        int64  `form:"price" validate:"gt=0"`
	PreviewPages int    `form:"previewPages" validate:"gte=0"`
}

// /api/books
func (s *Server) handleBooks(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		books, err := s.app.ListBooks()
		if err != nil {
			writeAppError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"items": books,
			"count": len(books),
		})
	case http.MethodPost:
		s.adminOnly(s.handleCreateBook).ServeHTTP(w, r)
	default:
		methodNotAllowed(w)
	}
}

// /api/books/{id}, /api/books/{id}/cover, /api/books/preview/{id},
// /api/books/download/{id}
func (s *Server) handleBookPath(w http.ResponseWriter, r *http.Request) {
	parts := strings.Split(strings.TrimPrefix(r.URL.Path, "/api/books/"), "/")
	switch {
	case len(parts) == 2 && parts[0] == "preview" && parts[1] != "":
		s.handlePreview(w, r, parts[1])
	case len(parts) == 2 && parts[0] == "download" && parts[1] != "":
		s.handleDownload(w, r, parts[1])
	case len(parts) == 2 && parts[1] == "cover" && parts[0] != "":
		s.handleCover(w, r, parts[0])
	case len(parts) == 1 && parts[0] != "":
		s.handleBookByID(w, r, parts[0])
	default:
		writeError(w, http.StatusNotFound, "SYSTEM_NOT_FOUND", "not found")
	}
}

func (s *Server) handlePreviewRoute(prefix string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := pathID(r.URL.Path, prefix)
		if id == "" {
			writeError(w, http.StatusNotFound, "SYSTEM_NOT_FOUND", "not found")
			return
		}
		s.handlePreview(w, r, id)
	}
}

func (s *Server) handleDownloadRoute(prefix string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := pathID(r.URL.Path, prefix)
		if id == "" {
			writeError(w, http.StatusNotFound, "SYSTEM_NOT_FOUND", "not found")
			return
		}
		s.handleDownload(w, r, id)
	}
}

func (s *Server) handleBookByID(w http.ResponseWriter, r *http.Request, id string) {
	switch r.Method {
	case http.MethodGet:
		book, err := s.app.GetBook(id)
		if err != nil {
			writeAppError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, book)
	case http.MethodPut:
		s.adminOnly(func(w http.ResponseWriter, r *http.Request, user domain.User) {
			s.handleUpdateBook(w, r, user, id)
		}).ServeHTTP(w, r)
	case http.MethodDelete:
		s.adminOnly(func(w http.ResponseWriter, r *http.Request, user domain.User) {
			if err := s.app.DeleteBook(r.Context(), id); err != nil {
				writeAppError(w, r, err)
				return
			}
			s.audit(r, "storefront.book.delete", "success", "user_id", user.ID, "book_id", id)
			writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
		}).ServeHTTP(w, r)
	default:
		methodNotAllowed(w)
	}
}

func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request, id string) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	data, err := s.app.Preview(r.Context(), id)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writePDF(w, data, "inline")
}

// handleDownload serves every licensed-download route through app.Download.
func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request, id string) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	s.authenticated(func(w http.ResponseWriter, r *http.Request, user domain.User) {
		licensed, err := s.app.Download(r.Context(), user, id)
		if err != nil {
			if errors.Is(err, app.ErrForbidden) {
				s.audit(r, "storefront.book.download", "fail", "user_id", user.ID, "book_id", id, "reason", "not_purchased")
			}
			writeAppError(w, r, err)
			return
		}
		s.audit(r, "storefront.book.download", "success", "user_id", user.ID, "book_id", id)
		writePDF(w, licensed.Data, fmt.Sprintf("attachment; filename=%q", licensed.Filename))
	}).ServeHTTP(w, r)
}

func (s *Server) handleCover(w http.ResponseWriter, r *http.Request, id string) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	data, contentType, err := s.app.Cover(r.Context(), id)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.Header().Set("Cache-Control", "public, max-age=3600")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func (s *Server) handleCreateBook(w http.ResponseWriter, r *http.Request, user domain.User) {
	if !s.parseUpload(w, r) {
		return
	}
	defer r.MultipartForm.RemoveAll()

	var form bookForm
	form.Title = r.FormValue("title")
	form.Description = r.FormValue("description")
	var err error
	if form.Price, err = parseInt(r.FormValue("price"), 64); err != nil {
		writeError(w, http.StatusBadRequest, "REQUEST_INVALID", "price must be a whole number")
		return
	}
	pages, err := parseInt(r.FormValue("previewPages"), 32)
	if err != nil {
		writeError(w, http.StatusBadRequest, "REQUEST_INVALID", "previewPages must be a whole number")
		return
	}
	form.PreviewPages = int(pages)
	if !s.check(w, &form) {
		return
	}
	cover, pdf, ok := s.uploads(w, r)
	if !ok {
		return
	}
	book, err := s.app.CreateBook(r.Context(), app.BookInput{
		Title:        form.Title,
		Description:  form.Description,
		Price:        form.Price,
		PreviewPages: form.PreviewPages,
	}, cover, pdf)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	s.audit(r, "storefront.book.create", "success", "user_id", user.ID, "book_id", book.ID)
	writeJSON(w, http.StatusCreated, book)
}

func (s *Server) handleUpdateBook(w http.ResponseWriter, r *http.Request, user domain.User, id string) {
	if !s.parseUpload(w, r) {
		return
	}
	defer r.MultipartForm.RemoveAll()

	var patch app.BookPatch
	values := r.MultipartForm.Value
	if v, ok := values["title"]; ok && len(v) > 0 {
		patch.Title = &v[0]
	}
	if v, ok := values["description"]; ok && len(v) > 0 {
		patch.Description = &v[0]
	}
	if v, ok := values["price"]; ok && len(v) > 0 {
		price, err := parseInt(v[0], 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "REQUEST_INVALID", "price must be a whole number")
			return
		}
		patch.Price = &price
	}
	if v, ok := values["previewPages"]; ok && len(v) > 0 {
		n, err := parseInt(v[0], 32)
		if err != nil {
			writeError(w, http.StatusBadRequest, "REQUEST_INVALID", "previewPages must be a whole number")
			return
		}
		pages := int(n)
		patch.PreviewPages = &pages
	}
	cover, pdf, ok := s.uploads(w, r)
	if !ok {
		return
	}
	book, err := s.app.UpdateBook(r.Context(), id, patch, cover, pdf)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	s.audit(r, "storefront.book.update", "success", "user_id", user.ID, "book_id", book.ID)
	writeJSON(w, http.StatusOK, book)
}

// parseUpload bounds the body and parses the multipart form.
func (s *Server) parseUpload(w http.ResponseWriter, r *http.Request) bool {
	if r.ContentLength > s.maxUploadBytes {
		writeError(w, http.StatusRequestEntityTooLarge, "BOOK_FILE_TOO_LARGE", "file too large")
		return false
	}
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadBytes)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "BOOK_FILE_TOO_LARGE", "file too large")
			return false
		}
		writeError(w, http.StatusBadRequest, "BOOK_INVALID_UPLOAD_FORM", "invalid form data")
		return false
	}
	return true
}

func (s *Server) uploads(w http.ResponseWriter, r *http.Request) (cover, pdf *app.Upload, ok bool) {
	cover, err := formUpload(r, "coverImage")
	if err != nil {
		writeError(w, http.StatusBadRequest, "BOOK_INVALID_UPLOAD_FORM", "invalid form data")
		return nil, nil, false
	}
	pdf, err = formUpload(r, "pdf")
	if err != nil {
		writeError(w, http.StatusBadRequest, "BOOK_INVALID_UPLOAD_FORM", "invalid form data")
		return nil, nil, false
	}
	return cover, pdf, true
}

// formUpload returns nil when the field is absent.
func formUpload(r *http.Request, field string) (*app.Upload, error) {
	file, header, err := r.FormFile(field)
	if errors.Is(err, http.ErrMissingFile) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer file.Close()
	data, err := io.ReadAll(file)
	if err != nil {
		return nil, err
	}
	return &app.Upload{Filename: header.Filename, Data: data}, nil
}

// parseInt treats an empty value as zero.
func parseInt(raw string, bits int) (int64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, nil
	}
	return strconv.ParseInt(raw, 10, bits)
}

func writePDF(w http.ResponseWriter, data []byte, disposition string) {
	h := w.Header()
	h.Set("Content-Type", "application/pdf")
	h.Set("Content-Length", strconv.Itoa(len(data)))
	h.Set("Content-Disposition", disposition)
	h.Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}
