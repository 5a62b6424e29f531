package utils

import (
	"bytes"
	"errors"
	"image"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/webp"
)

var ErrNotAnImage = errors.New("data is not a decodable image")

// FitJPEG decodes data, shrinks it to fit within maxSide x maxSide (never
// upscaling) and re-encodes it as JPEG. Used to keep payloads to the caption
// model small; the stored original is never touched.
func FitJPEG(data []byte, maxSide, quality int) ([]byte, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, ErrNotAnImage
	}

	if maxSide > 0 && (img.Bounds().Dx() > maxSide || img.Bounds().Dy() > maxSide) {
		img = imaging.Fit(img, maxSide, maxSide, imaging.Lanczos)
	}

	if quality <= 0 || quality > 100 {
		quality = 80
	}
	buf := new(bytes.Buffer)
	if err := jpeg.Encode(buf, img, &jpeg.Options{Quality: quality}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
