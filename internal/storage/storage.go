// Package storage puts uploaded images somewhere public and hands back a
// stable URL.  Contents are never interpreted beyond sniffing the image
// type.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/iliyamo/pharmacy-marketplace/internal/config"
)

// MaxUploadBytes caps a single upload.
const MaxUploadBytes = 5 << 20

// ErrInvalidImageType rejects uploads that do not sniff as jpeg, png, gif
// or webp.
var ErrInvalidImageType = errors.New("INVALID_IMAGE_TYPE")

// Store writes an object under key and returns the URL clients use to
// fetch it.
type Store interface {
	Put(ctx context.Context, key, contentType string, body io.Reader) (string, error)
}

// Category decides where in the key space an upload lands.
type Category string

const (
	CategoryBanner       Category = "banner"
	CategoryProduct      Category = "product"
	CategoryPharmacyLogo Category = "pharmacy_logo"
	CategoryPayment      Category = "payment"
)

// ParseCategory accepts the form value case-insensitively.  Anything
// unknown is treated as a product image.
func ParseCategory(s string) Category {
	switch c := Category(strings.ToLower(strings.TrimSpace(s))); c {
	case CategoryBanner, CategoryPharmacyLogo, CategoryPayment:
		return c
	}
	return CategoryProduct
}

var imageExt = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/gif":  ".gif",
	"image/webp": ".webp",
}

// DetectImage sniffs the first bytes of an upload and returns its content
// type and canonical extension.
func DetectImage(head []byte) (string, string, error) {
	ct := http.DetectContentType(head)
	ext, ok := imageExt[ct]
	if !ok {
		return "", "", ErrInvalidImageType
	}
	return ct, ext, nil
}

// Key builds the object key for an upload.  pharmacyID 0 means none was
// given and the category's shared folder is used.
func Key(c Category, pharmacyID uint64, ext string) string {
	prefix := "img"
	if c == CategoryPharmacyLogo {
		prefix = "logo"
	}
	name := prefix + "-" + uuid.NewString() + ext

	var dir string
	switch {
	case c == CategoryBanner:
		dir = "banners"
	case pharmacyID != 0 && c == CategoryProduct:
		dir = fmt.Sprintf("pharmacies/%d/products", pharmacyID)
	case pharmacyID != 0 && c == CategoryPharmacyLogo:
		dir = fmt.Sprintf("pharmacies/%d", pharmacyID)
	case pharmacyID != 0 && c == CategoryPayment:
		dir = fmt.Sprintf("pharmacies/%d/payments", pharmacyID)
	case c == CategoryPayment:
		dir = "payments"
	default:
		dir = "products"
	}
	return path.Join(dir, name)
}

// New returns an S3Store when a bucket is configured and a LocalStore
// otherwise.
func New(ctx context.Context, cfg config.UploadConfig, log *zap.Logger) (Store, error) {
	if cfg.Bucket == "" {
		log.Info("uploads stored locally", zap.String("dir", cfg.LocalDir))
		return NewLocalStore(cfg.LocalDir, cfg.PublicPath), nil
	}
	s, err := NewS3Store(ctx, cfg)
	if err != nil {
		return nil, err
	}
	log.Info("uploads stored in s3", zap.String("bucket", cfg.Bucket), zap.String("region", cfg.Region))
	return s, nil
}
