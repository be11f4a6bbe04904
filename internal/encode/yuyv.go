package encode

import (
	"fmt"
	"image"
)

// checkFrame validates that pixels hold a full YUYV frame.
func checkFrame(pixels []byte, width, height, stride int) error {
	if width <= 0 || height <= 0 {
		return fmt.Errorf("%w: %dx%d", ErrBadFrame, width, height)
	}
	if width%2 != 0 {
		return fmt.Errorf("%w: YUYV width %d is odd", ErrBadFrame, width)
	}
	if stride < width*2 {
		return fmt.Errorf("%w: stride %d shorter than row of %d pixels", ErrBadFrame, stride, width)
	}
	if need := stride*(height-1) + width*2; len(pixels) < need {
		return fmt.Errorf("%w: %d bytes, need %d", ErrBadFrame, len(pixels), need)
	}
	return nil
}

// YUYVToYCbCr converts a packed YUYV 4:2:2 frame to a planar image. Each
// 4-byte group Y0 U Y1 V covers two horizontal pixels sharing chroma.
func YUYVToYCbCr(pixels []byte, width, height, stride int) (*image.YCbCr, error) {
	if err := checkFrame(pixels, width, height, stride); err != nil {
		return nil, err
	}
	img := image.NewYCbCr(image.Rect(0, 0, width, height), image.YCbCrSubsampleRatio422)
	for y := 0; y < height; y++ {
		row := pixels[y*stride : y*stride+width*2]
		yo := y * img.YStride
		co := y * img.CStride
		for x := 0; x < width; x += 2 {
			i := x * 2
			img.Y[yo+x] = row[i]
			img.Cb[co+x/2] = row[i+1]
			img.Y[yo+x+1] = row[i+2]
			img.Cr[co+x/2] = row[i+3]
		}
	}
	return img, nil
}

// YUYVToGray keeps only the luma samples.
func YUYVToGray(pixels []byte, width, height, stride int) (*image.Gray, error) {
	if err := checkFrame(pixels, width, height, stride); err != nil {
		return nil, err
	}
	img := image.NewGray(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		row := pixels[y*stride:]
		out := img.Pix[y*img.Stride : y*img.Stride+width]
		for x := range out {
			out[x] = row[x*2]
		}
	}
	return img, nil
}
