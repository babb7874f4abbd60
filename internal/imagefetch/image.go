package imagefetch

import (
	"bytes"
	"image"
	_ "image/gif"  // register GIF decoder
	_ "image/jpeg" // register JPEG decoder
	_ "image/png"  // register PNG decoder

	"github.com/rotisserie/eris"
	_ "golang.org/x/image/bmp"  // register BMP decoder
	_ "golang.org/x/image/tiff" // register TIFF decoder
	_ "golang.org/x/image/webp" // register WebP decoder
)

// Image is a successfully fetched and decoded image.
type Image struct {
	URL         string
	ContentType string
	Format      string // codec name as registered with the image package
	Data        []byte
	Decoded     image.Image
}

// Width returns the pixel width of the decoded image.
func (i *Image) Width() int {
	return i.Decoded.Bounds().Dx()
}

// Height returns the pixel height of the decoded image.
func (i *Image) Height() int {
	return i.Decoded.Bounds().Dy()
}

// Result carries the outcome of an adapter-style fetch. Exactly one of
// Image and Err is set.
type Result struct {
	Image *Image
	Err   error
}

// decode turns data into an image. Codec panics are reported as errors.
func decode(data []byte) (img image.Image, format string, err error) {
	if len(data) == 0 {
		return nil, "", eris.New("empty body")
	}

	defer func() {
		if r := recover(); r != nil {
			img, format = nil, ""
			err = eris.Errorf("decoder panic: %v", r)
		}
	}()

	img, format, err = image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, "", eris.Wrap(err, "decode")
	}
	return img, format, nil
}
