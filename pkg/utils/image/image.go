package image

import (
	"bytes"
	"image"
	"image/jpeg"
	"io"
)

func DecodeJPEG(data []byte) (image.Image, error) {
	return jpeg.Decode(bytes.NewReader(data))
}

func EncodeJPEG(img image.Image, dst io.Writer, quality int) error {
	return jpeg.Encode(dst, img, &jpeg.Options{Quality: quality})
}

func EncodeJPEGBytes(img image.Image, quality int) ([]byte, error) {
	var buf bytes.Buffer
	if err := EncodeJPEG(img, &buf, quality); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
