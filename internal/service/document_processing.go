package service

import (
	"bytes"
	"image"
	"image/draw"
	_ "image/gif" // Register GIF decoder
	"image/jpeg"
	"image/png"
	"mime"
	"net/http"
	"strings"

	"buspass/internal/idcard"
	"buspass/internal/models"

	"github.com/chai2010/webp"
	xdraw "golang.org/x/image/draw"
	_ "golang.org/x/image/webp" // Register WebP decoder
)

// The photo frame on the card is 70x80 points.
const (
	PhotoAspect    = 7.0 / 8.0
	PhotoMaxWidth  = 560
	PhotoMaxHeight = 640
	JPEGQuality    = 85
	WebPQuality    = 70
)

// ProcessedPhoto is an applicant photo normalized for the card frame.
type ProcessedPhoto struct {
	JPEG   []byte
	WebP   []byte
	Width  int
	Height int
}

// processPhoto validates an uploaded photo, crops it to the card aspect ratio
// and produces a JPEG master plus a WebP preview.
func processPhoto(content []byte, providedType string) (*ProcessedPhoto, error) {
	detected := http.DetectContentType(content)
	if !isAllowedImageMIME(detected) {
		return nil, models.NewValidationError("Photo must be a JPEG, PNG, GIF or WebP image")
	}
	decoded, format, err := image.Decode(bytes.NewReader(content))
	if err != nil {
		return nil, models.NewValidationError("Photo could not be decoded")
	}
	if provided := normalizeContentType(providedType); strings.HasPrefix(provided, "image/") && !isMatchingContentType(provided, decodedFormatToMime(format)) {
		return nil, models.NewValidationError("Photo content type mismatch")
	}

	master := framePhoto(decoded)
	jpg, err := encodeJPEG(master, JPEGQuality)
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	preview, err := encodeWebP(master, WebPQuality)
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	b := master.Bounds()
	return &ProcessedPhoto{JPEG: jpg, WebP: preview, Width: b.Dx(), Height: b.Dy()}, nil
}

// framePhoto center-crops src to the card aspect ratio and bounds its size.
func framePhoto(src image.Image) image.Image {
	b := src.Bounds()
	x, y, w, h := cropToAspect(b.Dx(), b.Dy(), PhotoAspect)
	cropped := cropToRect(src, b.Min.X+x, b.Min.Y+y, w, h)
	return resizeToFit(cropped, PhotoMaxWidth, PhotoMaxHeight)
}

// cardPhoto prepares a stored photo for the card: always a framed JPEG.
func cardPhoto(data []byte) (idcard.Image, error) {
	decoded, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return idcard.Image{}, err
	}
	jpg, err := encodeJPEG(framePhoto(decoded), JPEGQuality)
	if err != nil {
		return idcard.Image{}, err
	}
	return idcard.Image{Data: jpg, Format: idcard.FormatJPEG}, nil
}

// cardAsset prepares a seal or signature. JPEG and PNG pass through; other
// formats are converted to PNG so transparency survives.
func cardAsset(data []byte) (idcard.Image, error) {
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return idcard.Image{}, err
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return idcard.Image{}, models.NewValidationError("empty image")
	}
	switch format {
	case "jpeg":
		return idcard.Image{Data: data, Format: idcard.FormatJPEG}, nil
	case "png":
		return idcard.Image{Data: data, Format: idcard.FormatPNG}, nil
	}
	decoded, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return idcard.Image{}, err
	}
	buf := bytes.NewBuffer(nil)
	if err := png.Encode(buf, decoded); err != nil {
		return idcard.Image{}, err
	}
	return idcard.Image{Data: buf.Bytes(), Format: idcard.FormatPNG}, nil
}

func cropToAspect(w, h int, ratio float64) (cropX, cropY, cropW, cropH int) {
	if w <= 0 || h <= 0 || ratio <= 0 {
		return 0, 0, w, h
	}
	if float64(w)/float64(h) > ratio {
		cropH = h
		cropW = int(float64(h) * ratio)
		cropX = (w - cropW) / 2
	} else {
		cropW = w
		cropH = int(float64(w) / ratio)
		cropY = (h - cropH) / 2
	}
	if cropW < 1 {
		cropW = 1
	}
	if cropH < 1 {
		cropH = 1
	}
	return cropX, cropY, cropW, cropH
}

func cropToRect(src image.Image, x, y, w, h int) image.Image {
	if w <= 0 || h <= 0 {
		return src
	}
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(dst, dst.Bounds(), src, image.Point{X: x, Y: y}, draw.Src)
	return dst
}

func resizeToFit(src image.Image, maxWidth, maxHeight int) image.Image {
	bounds := src.Bounds()
	w := bounds.Dx()
	h := bounds.Dy()
	if w <= 0 || h <= 0 {
		return src
	}
	if w <= maxWidth && h <= maxHeight {
		return src
	}

	scale := float64(maxWidth) / float64(w)
	if s := float64(maxHeight) / float64(h); s < scale {
		scale = s
	}
	newW := int(float64(w) * scale)
	newH := int(float64(h) * scale)
	if newW < 1 {
		newW = 1
	}
	if newH < 1 {
		newH = 1
	}

	dst := image.NewRGBA(image.Rect(0, 0, newW, newH))
	xdraw.CatmullRom.Scale(dst, dst.Bounds(), src, bounds, xdraw.Over, nil)
	return dst
}

func encodeJPEG(img image.Image, quality int) ([]byte, error) {
	buf := bytes.NewBuffer(nil)
	if err := jpeg.Encode(buf, img, &jpeg.Options{Quality: quality}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func encodeWebP(img image.Image, quality int) ([]byte, error) {
	buf := bytes.NewBuffer(nil)
	if err := webp.Encode(buf, img, &webp.Options{Quality: float32(quality)}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// documentType sniffs a supporting document and returns its MIME type and
// file extension. Only JPEG, PNG and PDF are accepted.
func documentType(content []byte) (contentType, ext string, ok bool) {
	switch normalizeContentType(http.DetectContentType(content)) {
	case "image/jpeg":
		return "image/jpeg", "jpg", true
	case "image/png":
		return "image/png", "png", true
	case "application/pdf":
		return "application/pdf", "pdf", true
	}
	return "", "", false
}

func isAllowedImageMIME(contentType string) bool {
	switch normalizeContentType(contentType) {
	case "image/jpeg", "image/jpg", "image/png", "image/gif", "image/webp":
		return true
	default:
		return false
	}
}

func normalizeContentType(contentType string) string {
	if contentType == "" {
		return ""
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return strings.ToLower(strings.TrimSpace(contentType))
	}
	return strings.ToLower(strings.TrimSpace(mediaType))
}

func isMatchingContentType(provided, detected string) bool {
	p := normalizeContentType(provided)
	d := normalizeContentType(detected)
	if p == d {
		return true
	}
	return (p == "image/jpg" && d == "image/jpeg") || (p == "image/jpeg" && d == "image/jpg")
}

func decodedFormatToMime(format string) string {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "jpeg", "jpg":
		return "image/jpeg"
	case "png":
		return "image/png"
	case "gif":
		return "image/gif"
	case "webp":
		return "image/webp"
	default:
		return ""
	}
}
