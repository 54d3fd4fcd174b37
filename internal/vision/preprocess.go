package vision

import (
	"fmt"
	"image"
	"image/color"
	_ "image/jpeg"
	_ "image/png"
	"os"

	"golang.org/x/image/draw"
)

const (
	width  = 224
	height = 224
)

// Layout is the memory order of the model's input tensor.
type Layout int

const (
	// NHWC is [batch, height, width, channels], the Keras default.
	NHWC Layout = iota
	// NCHW is [batch, channels, height, width].
	NCHW
)

// LayoutForShape picks the layout from a 4-d input shape. A channel
// dimension of 3 in position 1 means NCHW; everything else is NHWC.
func LayoutForShape(shape []int64) Layout {
	if len(shape) == 4 && shape[1] == 3 && shape[3] != 3 {
		return NCHW
	}
	return NHWC
}

func decodeFile(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}
	return img, nil
}

// Preprocess resizes img to 224x224 with nearest-neighbour sampling,
// drops alpha and scales every channel to [0,1]. The result holds one
// batch item in the requested layout.
func Preprocess(img image.Image, layout Layout) []float32 {
	src := dropAlpha(img)
	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.NearestNeighbor.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Src, nil)

	const size = width * height
	out := make([]float32, 3*size)
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			c := dst.RGBAAt(x, y)
			r, g, b := float32(c.R)/255.0, float32(c.G)/255.0, float32(c.B)/255.0
			idx := y*width + x
			if layout == NCHW {
				out[0*size+idx] = r
				out[1*size+idx] = g
				out[2*size+idx] = b
				continue
			}
			out[idx*3+0] = r
			out[idx*3+1] = g
			out[idx*3+2] = b
		}
	}
	return out
}

// dropAlpha keeps the straight (non-premultiplied) colour of every pixel
// and makes it opaque, so transparent regions keep their RGB instead of
// turning black.
func dropAlpha(img image.Image) image.Image {
	if o, ok := img.(interface{ Opaque() bool }); ok && o.Opaque() {
		return img
	}
	b := img.Bounds()
	out := image.NewRGBA(b)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			c := color.NRGBAModel.Convert(img.At(x, y)).(color.NRGBA)
			out.SetRGBA(x, y, color.RGBA{R: c.R, G: c.G, B: c.B, A: 0xff})
		}
	}
	return out
}

// Argmax returns the index of the largest score. Ties keep the first index.
func Argmax(scores []float32) int {
	if len(scores) == 0 {
		return -1
	}
	best := 0
	for i := 1; i < len(scores); i++ {
		if scores[i] > scores[best] {
			best = i
		}
	}
	return best
}
