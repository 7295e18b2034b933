package handler

import (
	"bytes"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/pharmacy-marketplace/internal/middleware"
	"github.com/iliyamo/pharmacy-marketplace/internal/service"
	"github.com/iliyamo/pharmacy-marketplace/internal/storage"
)

// sniffLen is how much of a file http.DetectContentType looks at.
const sniffLen = 512

// UploadHandler accepts image uploads and hands them to the file store.
type UploadHandler struct {
	Store  storage.Store
	Access *service.Access
}

func NewUploadHandler(s storage.Store, a *service.Access) *UploadHandler {
	return &UploadHandler{Store: s, Access: a}
}

// Upload handles POST /v1/uploads with multipart fields file, type and
// pharmacyId.  Uploads into a pharmacy's folder need access to that
// pharmacy, except payment screenshots which customers send.
func (h *UploadHandler) Upload(c echo.Context) error {
	id := middleware.IdentityFrom(c)
	category := storage.ParseCategory(c.FormValue("type"))

	var pharmacyID uint64
	if raw := c.FormValue("pharmacyId"); raw != "" {
		n, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			return badRequest(c, "INVALID_PHARMACY_ID")
		}
		pharmacyID = n
	}
	if category == storage.CategoryBanner && !h.Access.IsAdmin(id) {
		return fail(c, service.ErrForbidden)
	}
	if pharmacyID != 0 && category != storage.CategoryPayment && !h.Access.IsAdmin(id) {
		ok, err := h.Access.HasPharmacyAccess(c.Request().Context(), id.AccountID, pharmacyID)
		if err != nil {
			return fail(c, err)
		}
		if !ok {
			return fail(c, service.ErrForbidden)
		}
	}

	fh, err := c.FormFile("file")
	if err != nil {
		return badRequest(c, "FILE_REQUIRED")
	}
	if fh.Size > storage.MaxUploadBytes {
		return c.JSON(http.StatusRequestEntityTooLarge, echo.Map{"error": "FILE_TOO_LARGE"})
	}
	f, err := fh.Open()
	if err != nil {
		return fail(c, err)
	}
	defer f.Close()

	head := make([]byte, sniffLen)
	n, err := io.ReadFull(f, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) {
		return badRequest(c, "EMPTY_FILE")
	}
	head = head[:n]
	ct, ext, err := storage.DetectImage(head)
	if err != nil {
		return badRequest(c, "INVALID_IMAGE_TYPE")
	}

	key := storage.Key(category, pharmacyID, ext)
	body := io.LimitReader(io.MultiReader(bytes.NewReader(head), f), storage.MaxUploadBytes)
	url, err := h.Store.Put(c.Request().Context(), key, ct, body)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusCreated, echo.Map{"url": url, "key": key})
}
