package app

import (
	"context"
	"errors"
	"fmt"
	"regexp"

	"github.com/gitaditya567/itskillhub/internal/util"
	"github.com/gitaditya567/itskillhub/pkg/domain"
	"github.com/gitaditya567/itskillhub/pkg/entitlement"
	"github.com/gitaditya567/itskillhub/pkg/pdfops"
)

var unsafeFilenameChars = regexp.MustCompile(`[^a-zA-Z0-9]`)

// Licensed is a stamped copy ready to be sent as an attachment.
type Licensed struct {
	Filename string
	Data     []byte
}

// DownloadFilename maps a book title to the attachment name of its licensed copy.
func DownloadFilename(title string) string {
	return unsafeFilenameChars.ReplaceAllString(title, "_") + ".pdf"
}

// Preview returns the leading pages of the book PDF. It needs no identity.
func (a *App) Preview(ctx context.Context, bookID string) ([]byte, error) {
	book, err := a.GetBook(bookID)
	if err != nil {
		return nil, err
	}
	src, err := a.loadArtifact(ctx, book.PDFKey)
	if err != nil {
		return nil, err
	}
	out, err := pdfops.ExtractPreview(src, pdfops.PreviewWindow)
	if err != nil {
		return nil, a.renderFailure(ctx, "preview", book.ID, err)
	}
	return out, nil
}

// Download returns a copy of the full book stamped with the requester's
// email. The entitlement check runs before the artifact is touched.
func (a *App) Download(ctx context.Context, requester domain.User, bookID string) (Licensed, error) {
	book, err := a.GetBook(bookID)
	if err != nil {
		return Licensed{}, err
	}
	if !entitlement.CanAccessFull(requester, book.ID) {
		return Licensed{}, ErrForbidden
	}
	src, err := a.loadArtifact(ctx, book.PDFKey)
	if err != nil {
		return Licensed{}, err
	}
	out, err := pdfops.StampLicense(src, pdfops.LicenseText(requester.Email, a.productName))
	if err != nil {
		return Licensed{}, a.renderFailure(ctx, "download", book.ID, err)
	}
	return Licensed{Filename: DownloadFilename(book.Title), Data: out}, nil
}

func (a *App) renderFailure(ctx context.Context, op, bookID string, err error) error {
	util.LoggerFromContext(ctx).Error("pdf render failed", "op", op, "book_id", bookID, "err", err)
	if errors.Is(err, pdfops.ErrMalformed) || errors.Is(err, pdfops.ErrRender) {
		return ErrMalformedArtifact
	}
	return fmt.Errorf("%s: %w", op, err)
}
