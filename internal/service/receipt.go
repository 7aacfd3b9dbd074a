package service

import (
	"bytes"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"
)

const (
	MaxReceiptSize     = 5 * 1024 * 1024 // 5MB
	MaxReceiptWidth    = 1600
	ReceiptJPEGQuality = 85
)

var (
	ErrReceiptTooLarge             = errors.New("file too large. Maximum size is 5MB")
	ErrReceiptInvalidFormat        = errors.New("invalid format. Supported: JPEG, PNG, WebP, PDF")
	ErrReceiptInvalidData          = errors.New("invalid receipt data")
	ErrReceiptStorageNotConfigured = errors.New("receipt storage not configured")
)

// ReceiptExtensions maps accepted extensions to content types
var ReceiptExtensions = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".webp": "image/webp",
	".pdf":  "application/pdf",
}

// processedReceipt is what ends up in blob storage
type processedReceipt struct {
	data        []byte
	contentType string
	ext         string
}

// processReceipt validates an upload. JPEG and PNG scans are downscaled to
// MaxReceiptWidth and re-encoded as JPEG; WebP and PDF are stored as uploaded.
func processReceipt(data []byte, filename string) (*processedReceipt, error) {
	if len(data) > MaxReceiptSize {
		return nil, ErrReceiptTooLarge
	}
	if len(data) == 0 {
		return nil, ErrReceiptInvalidData
	}

	ext := strings.ToLower(filepath.Ext(filename))
	contentType, ok := ReceiptExtensions[ext]
	if !ok {
		return nil, ErrReceiptInvalidFormat
	}

	switch contentType {
	case "application/pdf":
		if !bytes.HasPrefix(data, []byte("%PDF")) {
			return nil, ErrReceiptInvalidData
		}
		return &processedReceipt{data: data, contentType: contentType, ext: ".pdf"}, nil
	case "image/webp":
		if !isWebP(data) {
			return nil, ErrReceiptInvalidData
		}
		return &processedReceipt{data: data, contentType: contentType, ext: ".webp"}, nil
	}

	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, ErrReceiptInvalidData
	}
	if img.Bounds().Dx() > MaxReceiptWidth {
		img = imaging.Resize(img, MaxReceiptWidth, 0, imaging.Lanczos)
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(ReceiptJPEGQuality)); err != nil {
		return nil, fmt.Errorf("failed to encode receipt: %w", err)
	}
	return &processedReceipt{data: buf.Bytes(), contentType: "image/jpeg", ext: ".jpg"}, nil
}

// isWebP checks the RIFF container header: "RIFF", a 4-byte size, "WEBP"
func isWebP(data []byte) bool {
	return len(data) >= 12 && bytes.Equal(data[0:4], []byte("RIFF")) && bytes.Equal(data[8:12], []byte("WEBP"))
}

// ReceiptContentType returns the content type for a receipt filename
func ReceiptContentType(filename string) string {
	if ct, ok := ReceiptExtensions[strings.ToLower(filepath.Ext(filename))]; ok {
		return ct
	}
	return "application/octet-stream"
}
