package service

import (
	"image"

	exif "github.com/dsoprea/go-exif/v3"
	exifcommon "github.com/dsoprea/go-exif/v3/common"
)

// jpegOrientation reads the EXIF Orientation tag (1-8). Anything unreadable
// reports 1, the identity orientation.
func jpegOrientation(data []byte) int {
	rawExif, err := exif.SearchAndExtractExif(data)
	if err != nil {
		return 1
	}

	im, err := exifcommon.NewIfdMappingWithStandard()
	if err != nil {
		return 1
	}
	ti := exif.NewTagIndex()

	_, index, err := exif.Collect(im, ti, rawExif)
	if err != nil || index.RootIfd == nil {
		return 1
	}

	results, err := index.RootIfd.FindTagWithName("Orientation")
	if err != nil || len(results) == 0 {
		return 1
	}
	valueRaw, err := results[0].Value()
	if err != nil {
		return 1
	}
	values, ok := valueRaw.([]uint16)
	if !ok || len(values) == 0 || values[0] < 1 || values[0] > 8 {
		return 1
	}
	return int(values[0])
}

// applyOrientation returns img rotated/flipped so it displays upright.
func applyOrientation(img image.Image, orientation int) image.Image {
	if orientation <= 1 || orientation > 8 {
		return img
	}

	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	transposed := orientation >= 5
	dw, dh := w, h
	if transposed {
		dw, dh = h, w
	}
	dst := image.NewRGBA(image.Rect(0, 0, dw, dh))

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			var dx, dy int
			switch orientation {
			case 2: // mirror horizontal
				dx, dy = w-1-x, y
			case 3: // rotate 180
				dx, dy = w-1-x, h-1-y
			case 4: // mirror vertical
				dx, dy = x, h-1-y
			case 5: // transpose
				dx, dy = y, x
			case 6: // rotate 90 cw
				dx, dy = h-1-y, x
			case 7: // transverse
				dx, dy = h-1-y, w-1-x
			case 8: // rotate 270 cw
				dx, dy = y, w-1-x
			}
			dst.Set(dx, dy, img.At(b.Min.X+x, b.Min.Y+y))
		}
	}
	return dst
}
