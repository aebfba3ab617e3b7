package profile

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"

	_ "image/gif"
	_ "image/png"

	"golang.org/x/image/draw"
)

const (
	// avatarMaxDimension bounds the longest side of a stored avatar.
	avatarMaxDimension = 512
	// avatarJPEGQuality is the fixed re-encode quality.
	avatarJPEGQuality = 80
)

// CompressAvatar decodes an uploaded image, scales it down to the
// bounded dimension when necessary, and re-encodes it as JPEG at the
// fixed quality. Images already within bounds are still re-encoded so
// the stored format is uniform.
func CompressAvatar(data []byte) ([]byte, error) {
	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("unsupported image: %w", err)
	}

	bounds := src.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	if width > avatarMaxDimension || height > avatarMaxDimension {
		if width >= height {
			height = height * avatarMaxDimension / width
			width = avatarMaxDimension
		} else {
			width = width * avatarMaxDimension / height
			height = avatarMaxDimension
		}
		if width < 1 {
			width = 1
		}
		if height < 1 {
			height = 1
		}

		dst := image.NewRGBA(image.Rect(0, 0, width, height))
		draw.CatmullRom.Scale(dst, dst.Bounds(), src, bounds, draw.Over, nil)
		src = dst
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, src, &jpeg.Options{Quality: avatarJPEGQuality}); err != nil {
		return nil, fmt.Errorf("encode avatar: %w", err)
	}
	return buf.Bytes(), nil
}
