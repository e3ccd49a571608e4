// Package idcard lays out the printable student bus pass.
package idcard

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/go-pdf/fpdf"
)

// Page geometry in points. The card is a single A7 portrait page.
const (
	PageWidth  = 209.76
	PageHeight = 297.64

	Title = "STUDENT BUS PASS ID CARD"

	pageMargin = 10.0
	lineHeight = 11.0
	detailsTop = 132.0
)

// Image formats understood by the renderer.
const (
	FormatJPEG = "JPG"
	FormatPNG  = "PNG"
)

// Card holds the printed fields.
type Card struct {
	StudentName   string
	Institution   string
	RouteStart    string
	RouteEnd      string
	ApplicationNo string
	Status        string
}

// Image is an encoded JPEG or PNG.
type Image struct {
	Data   []byte
	Format string
}

// Assets are the images placed on the card.
type Assets struct {
	Photo     Image
	Seal      Image
	Signature Image
}

// Lines returns the detail lines in print order.
func (c Card) Lines() []string {
	return []string{
		"Name: " + c.StudentName,
		"College: " + c.Institution,
		fmt.Sprintf("Route: %s - %s", c.RouteStart, c.RouteEnd),
		"App No: " + c.ApplicationNo,
		"Status: " + c.Status,
	}
}

// Renderer draws cards. The zero value is ready to use.
type Renderer struct {
	// Compress enables stream compression. Tests leave it off to inspect text.
	Compress bool
}

// Render produces the PDF bytes for card.
func (r Renderer) Render(card Card, assets Assets) ([]byte, error) {
	pdf := fpdf.NewCustom(&fpdf.InitType{
		OrientationStr: "P",
		UnitStr:        "pt",
		Size:           fpdf.SizeType{Wd: PageWidth, Ht: PageHeight},
	})
	pdf.SetCompression(r.Compress)
	pdf.SetMargins(pageMargin, pageMargin, pageMargin)
	pdf.SetAutoPageBreak(false, 0)
	pdf.SetTitle(Title, false)
	pdf.AddPage()

	pdf.SetLineWidth(1)
	pdf.Rect(5, 5, 200, 300, "D")

	pdf.SetFont("Helvetica", "", 10)
	pdf.SetXY(pageMargin, pageMargin)
	pdf.CellFormat(PageWidth-2*pageMargin, 12, Title, "", 0, "C", false, 0, "")

	if err := placeImage(pdf, "photo", assets.Photo, 65, 40, 70, 80); err != nil {
		return nil, err
	}

	pdf.SetFont("Helvetica", "", 8)
	for i, line := range card.Lines() {
		pdf.SetXY(pageMargin, detailsTop+float64(i)*lineHeight)
		pdf.CellFormat(PageWidth-2*pageMargin, lineHeight, line, "", 0, "L", false, 0, "")
	}

	if err := placeImage(pdf, "seal", assets.Seal, 15, 220, 40, 0); err != nil {
		return nil, err
	}
	if err := placeImage(pdf, "signature", assets.Signature, 130, 220, 50, 0); err != nil {
		return nil, err
	}

	pdf.SetFont("Helvetica", "", 6)
	pdf.Text(140, 260, "Principal")

	if err := pdf.Error(); err != nil {
		return nil, fmt.Errorf("render id card: %w", err)
	}
	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("write id card: %w", err)
	}
	return buf.Bytes(), nil
}

// placeImage draws img at (x, y). A zero h keeps the aspect ratio.
func placeImage(pdf *fpdf.Fpdf, name string, img Image, x, y, w, h float64) error {
	if len(img.Data) == 0 {
		return fmt.Errorf("%s image is empty", name)
	}
	switch img.Format {
	case FormatJPEG, FormatPNG:
	default:
		return errors.New("unsupported " + name + " image format " + img.Format)
	}
	opts := fpdf.ImageOptions{ImageType: img.Format, ReadDpi: false}
	pdf.RegisterImageOptionsReader(name, opts, bytes.NewReader(img.Data))
	if err := pdf.Error(); err != nil {
		return fmt.Errorf("decode %s image: %w", name, err)
	}
	pdf.ImageOptions(name, x, y, w, h, false, opts, 0, "")
	return nil
}
