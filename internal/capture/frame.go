package capture

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"

	_ "image/png" // some snapshot endpoints serve PNG
)

// DefaultJPEGQuality matches the fixed capture quality of the station UI.
const DefaultJPEGQuality = 90

// Reencode decodes a captured frame and re-encodes it as JPEG at the given
// quality, normalizing whatever the device produced into the single format
// the upload contract expects.
func Reencode(data []byte, quality int) ([]byte, error) {
	if len(data) == 0 {
		return nil, ErrNoFrame
	}
	if quality <= 0 || quality > 100 {
		quality = DefaultJPEGQuality
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: decode frame: %v", ErrNoFrame, err)
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
		return nil, fmt.Errorf("encode jpeg: %w", err)
	}
	return buf.Bytes(), nil
}
