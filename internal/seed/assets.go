package seed

import (
	"bytes"
	"context"
	"fmt"
	"hash/fnv"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"math"

	"buspass/internal/models"
	"buspass/internal/storage"

	"github.com/go-pdf/fpdf"
)

type placeholder struct {
	data        []byte
	contentType string
	ext         string
}

func placeholderDocuments(rec *models.ApplicationRecord) (map[models.DocumentKind]placeholder, error) {
	photo, err := portrait(rec.ApplicationNo)
	if err != nil {
		return nil, err
	}
	docs := map[models.DocumentKind]placeholder{
		models.DocumentPhoto: {data: photo, contentType: "image/jpeg", ext: "jpg"},
	}
	titles := map[models.DocumentKind]string{
		models.DocumentIdentityProof:    "Identity proof",
		models.DocumentInstitutionProof: "Institution ID",
		models.DocumentBonafide:         "Bonafide certificate",
	}
	for kind, title := range titles {
		pdf, err := certificate(title, rec)
		if err != nil {
			return nil, err
		}
		docs[kind] = placeholder{data: pdf, contentType: "application/pdf", ext: "pdf"}
	}
	return docs, nil
}

// portrait draws a 280x320 JPEG whose colors are derived from key.
func portrait(key string) ([]byte, error) {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	sum := h.Sum32()
	bg := color.RGBA{R: uint8(sum), G: uint8(sum >> 8), B: uint8(sum >> 16), A: 255}
	fg := color.RGBA{R: 245, G: 222, B: 200, A: 255}

	const w, ht = 280, 320
	img := image.NewRGBA(image.Rect(0, 0, w, ht))
	for y := 0; y < ht; y++ {
		for x := 0; x < w; x++ {
			c := bg
			// head and shoulders
			if inEllipse(x, y, w/2, 120, 70, 85) || (y > 220 && inEllipse(x, y, w/2, 340, 130, 110)) {
				c = fg
			}
			img.Set(x, y, c)
		}
	}
	buf := bytes.NewBuffer(nil)
	if err := jpeg.Encode(buf, img, &jpeg.Options{Quality: 80}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func inEllipse(x, y, cx, cy, rx, ry int) bool {
	dx := float64(x-cx) / float64(rx)
	dy := float64(y-cy) / float64(ry)
	return dx*dx+dy*dy <= 1
}

func certificate(title string, rec *models.ApplicationRecord) ([]byte, error) {
	pdf := fpdf.New("P", "mm", "A5", "")
	pdf.SetTitle(title, false)
	pdf.AddPage()
	pdf.SetFont("Helvetica", "B", 16)
	pdf.CellFormat(0, 12, title, "", 1, "C", false, 0, "")
	pdf.SetFont("Helvetica", "", 11)
	pdf.MultiCell(0, 7, fmt.Sprintf("This placeholder document was issued to %s of %s for application %s.",
		rec.StudentName, rec.InstitutionName(), rec.ApplicationNo), "", "L", false)

	buf := bytes.NewBuffer(nil)
	if err := pdf.Output(buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// EnsureCardAssets writes placeholder seal and signature images under the
// given keys unless something is already stored there. It reports how many
// assets were written.
func EnsureCardAssets(ctx context.Context, store storage.Store, sealKey, signatureKey string) (int, error) {
	written := 0
	for key, draw := range map[string]func() image.Image{sealKey: seal, signatureKey: signature} {
		exists, err := store.Exists(ctx, key)
		if err != nil {
			return written, err
		}
		if exists {
			continue
		}
		buf := bytes.NewBuffer(nil)
		if err := png.Encode(buf, draw()); err != nil {
			return written, err
		}
		if err := store.Put(ctx, key, "image/png", buf.Bytes()); err != nil {
			return written, err
		}
		written++
	}
	return written, nil
}

func white(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.White)
		}
	}
	return img
}

// seal is a double navy ring.
func seal() image.Image {
	const size = 160
	img := white(size, size)
	navy := color.RGBA{R: 20, G: 40, B: 110, A: 255}
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			d := math.Hypot(float64(x-size/2), float64(y-size/2))
			if (d > 70 && d < 78) || (d > 52 && d < 56) {
				img.Set(x, y, navy)
			}
		}
	}
	return img
}

// signature is an ink-blue sine stroke.
func signature() image.Image {
	const w, h = 200, 60
	img := white(w, h)
	ink := color.RGBA{R: 10, G: 30, B: 160, A: 255}
	for x := 10; x < w-10; x++ {
		y := h/2 + int(14*math.Sin(float64(x)/11)*math.Cos(float64(x)/37))
		for dy := -1; dy <= 1; dy++ {
			img.Set(x, y+dy, ink)
		}
	}
	return img
}
