package idcard

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func solid(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: 30, G: 90, B: 160, A: 255})
		}
	}
	return img
}

func encodePNG(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, solid(8, 4)))
	return buf.Bytes()
}

func encodeJPEG(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, solid(14, 16), nil))
	return buf.Bytes()
}

func testAssets(t *testing.T) Assets {
	return Assets{
		Photo:     Image{Data: encodeJPEG(t), Format: FormatJPEG},
		Seal:      Image{Data: encodePNG(t), Format: FormatPNG},
		Signature: Image{Data: encodePNG(t), Format: FormatPNG},
	}
}

func TestCardLines(t *testing.T) {
	card := Card{StudentName: "Asha", Institution: "City College", RouteStart: "Central", RouteEnd: "North", ApplicationNo: "APP-1", Status: "Approved"}
	assert.Equal(t, []string{
		"Name: Asha",
		"College: City College",
		"Route: Central - North",
		"App No: APP-1",
		"Status: Approved",
	}, card.Lines())
}

func TestRender_ContainsCardText(t *testing.T) {
	card := Card{
		StudentName:   "Kavya Menon",
		Institution:   "Riverside College",
		RouteStart:    "Depot",
		RouteEnd:      "Campus Gate",
		ApplicationNo: "APP-2002",
		Status:        "Approved",
	}

	data, err := Renderer{}.Render(card, testAssets(t))
	require.NoError(t, err)
	require.NotEmpty(t, data)

	assert.True(t, bytes.HasPrefix(data, []byte("%PDF-")))
	for _, want := range []string{Title, "Kavya Menon", "APP-2002", "Route: Depot - Campus Gate", "Principal"} {
		assert.Contains(t, string(data), want)
	}
}

func TestRender_Compressed(t *testing.T) {
	data, err := Renderer{Compress: true}.Render(Card{StudentName: "A", ApplicationNo: "APP-1"}, testAssets(t))
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(data, []byte("%PDF-")))
}

func TestRender_RejectsBadImages(t *testing.T) {
	assets := testAssets(t)
	assets.Photo = Image{}
	_, err := Renderer{}.Render(Card{}, assets)
	assert.ErrorContains(t, err, "photo")

	assets = testAssets(t)
	assets.Seal = Image{Data: []byte("not a png"), Format: FormatPNG}
	_, err = Renderer{}.Render(Card{}, assets)
	assert.ErrorContains(t, err, "seal")

	assets = testAssets(t)
	assets.Signature.Format = "GIF"
	_, err = Renderer{}.Render(Card{}, assets)
	assert.ErrorContains(t, err, "signature")
}
