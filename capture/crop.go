package capture

import (
	"bytes"
	"fmt"
	"image"
	"image/color"

	"github.com/disintegration/imaging"
)

// CropRect converts a CSS-pixel bounding box to the screenshot pixel
// rectangle (left*scale, top*scale, (left+width)*scale, (top+height)*scale).
// Each coordinate is truncated toward zero.
func CropRect(r Rect, scale float64) image.Rectangle {
	return image.Rect(
		int(r.Left*scale),
		int(r.Top*scale),
		int((r.Left+r.Width)*scale),
		int((r.Top+r.Height)*scale),
	)
}

// cropAndSave decodes a PNG screenshot, crops it to region and writes the
// result to path. The saved image is always region-sized; parts of region
// outside the screenshot stay transparent. A region with no visible pixels
// is an error.
func cropAndSave(screenshot []byte, region image.Rectangle, path string) (image.Rectangle, error) {
	img, err := imaging.Decode(bytes.NewReader(screenshot))
	if err != nil {
		return image.Rectangle{}, fmt.Errorf("decode screenshot: %w", err)
	}

	visible := region.Intersect(img.Bounds())
	if visible.Empty() {
		return image.Rectangle{}, fmt.Errorf("crop region %v lies outside the %v screenshot", region, img.Bounds().Size())
	}

	var cropped *image.NRGBA
	if visible == region {
		cropped = imaging.Crop(img, region)
	} else {
		canvas := imaging.New(region.Dx(), region.Dy(), color.Transparent)
		cropped = imaging.Paste(canvas, imaging.Crop(img, visible), visible.Min.Sub(region.Min))
	}

	if err := imaging.Save(cropped, path); err != nil {
		return image.Rectangle{}, fmt.Errorf("save %s: %w", path, err)
	}
	return cropped.Bounds(), nil
}
