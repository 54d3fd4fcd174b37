package vision

import (
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultLabels(t *testing.T) {
	labels, err := LoadLabels("")
	require.NoError(t, err)
	require.Len(t, labels, 15)
	assert.Equal(t, "almond_mushroom", labels.Lookup(0))
	assert.Equal(t, "black_bulgar", labels.Lookup(14))
	assert.Equal(t, UnknownLabel, labels.Lookup(15))
	assert.Equal(t, UnknownLabel, labels.Lookup(-1))

	// callers must not be able to mutate the package table
	labels[0] = "changed"
	assert.Equal(t, "almond_mushroom", DefaultLabels[0])
}

func TestLoadLabels_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "labels.txt")
	require.NoError(t, os.WriteFile(path, []byte("a\n\n b \nc\n"), 0o600))

	labels, err := LoadLabels(path)
	require.NoError(t, err)
	assert.Equal(t, Labels{"a", "b", "c"}, labels)

	empty := filepath.Join(t.TempDir(), "empty.txt")
	require.NoError(t, os.WriteFile(empty, []byte("\n"), 0o600))
	_, err = LoadLabels(empty)
	assert.Error(t, err)

	_, err = LoadLabels(filepath.Join(t.TempDir(), "missing.txt"))
	assert.Error(t, err)
}

func TestArgmax(t *testing.T) {
	assert.Equal(t, -1, Argmax(nil))
	assert.Equal(t, 2, Argmax([]float32{0.1, 0.2, 0.7}))
	assert.Equal(t, 1, Argmax([]float32{0.1, 0.5, 0.5}), "ties keep the first index")
}

func TestPredictionFromScores(t *testing.T) {
	labels := Labels(DefaultLabels)

	p := predictionFromScores([]float32{0.1, 0.8, 0.1}, labels)
	assert.Equal(t, Prediction{Index: 1, Label: "amanita_gemmata", Score: 0.8}, p)

	wide := make([]float32, 20)
	wide[17] = 1
	p = predictionFromScores(wide, labels)
	assert.Equal(t, 17, p.Index)
	assert.Equal(t, UnknownLabel, p.Label)

	p = predictionFromScores(nil, labels)
	assert.Equal(t, UnknownLabel, p.Label)
}

func TestLayoutForShape(t *testing.T) {
	assert.Equal(t, NHWC, LayoutForShape([]int64{-1, 224, 224, 3}))
	assert.Equal(t, NCHW, LayoutForShape([]int64{1, 3, 224, 224}))
	assert.Equal(t, NHWC, LayoutForShape([]int64{1, 3, 3, 3}))
}

func TestNormalizeInputShape(t *testing.T) {
	got, err := normalizeInputShape([]int64{-1, 224, 224, 3}, NHWC)
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 224, 224, 3}, got)

	got, err = normalizeInputShape([]int64{-1, 3, -1, -1}, NCHW)
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 3, 224, 224}, got)

	_, err = normalizeInputShape([]int64{1, 299, 299, 3}, NHWC)
	assert.Error(t, err)

	_, err = normalizeInputShape([]int64{1, 224, 224}, NHWC)
	assert.Error(t, err)
}

func TestNormalizeOutputShape(t *testing.T) {
	assert.Equal(t, []int64{1, 15}, normalizeOutputShape([]int64{-1, 15}))
	assert.Equal(t, []int64{1}, normalizeOutputShape(nil))
}

func solid(w, h int, c color.Color) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	return img
}

func TestPreprocess_ScalesToUnitRange(t *testing.T) {
	img := solid(50, 30, color.RGBA{R: 255, G: 0, B: 51, A: 255})

	nhwc := Preprocess(img, NHWC)
	require.Len(t, nhwc, 3*224*224)
	assert.InDelta(t, 1.0, nhwc[0], 1e-6)
	assert.InDelta(t, 0.0, nhwc[1], 1e-6)
	assert.InDelta(t, 0.2, nhwc[2], 1e-6)
	last := len(nhwc) - 3
	assert.InDelta(t, 1.0, nhwc[last], 1e-6)

	nchw := Preprocess(img, NCHW)
	require.Len(t, nchw, 3*224*224)
	const plane = 224 * 224
	assert.InDelta(t, 1.0, nchw[0], 1e-6)
	assert.InDelta(t, 0.0, nchw[plane], 1e-6)
	assert.InDelta(t, 0.2, nchw[2*plane], 1e-6)

	for _, v := range nhwc {
		require.True(t, v >= 0 && v <= 1)
	}
}

func TestPreprocess_TransparentPixelsKeepColour(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 8, 8))
	for y := 0; y < 8; y++ {
		for x := 0; x < 8; x++ {
			img.SetNRGBA(x, y, color.NRGBA{R: 204, G: 102, B: 51, A: 0})
		}
	}

	out := Preprocess(img, NHWC)
	assert.InDelta(t, 0.8, out[0], 1e-6)
	assert.InDelta(t, 0.4, out[1], 1e-6)
	assert.InDelta(t, 0.2, out[2], 1e-6)

	half := image.NewNRGBA(image.Rect(0, 0, 2, 2))
	for y := 0; y < 2; y++ {
		for x := 0; x < 2; x++ {
			half.SetNRGBA(x, y, color.NRGBA{R: 255, G: 0, B: 0, A: 128})
		}
	}
	out = Preprocess(half, NCHW)
	assert.InDelta(t, 1.0, out[0], 1e-6)
}

func TestPreprocess_Deterministic(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 64, 64))
	for y := 0; y < 64; y++ {
		for x := 0; x < 64; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x * 4), G: uint8(y * 4), B: 128, A: 255})
		}
	}
	assert.Equal(t, Preprocess(img, NHWC), Preprocess(img, NHWC))
}

func TestDecodeFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "x.png")
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, png.Encode(f, solid(4, 4, color.White)))
	require.NoError(t, f.Close())

	img, err := decodeFile(path)
	require.NoError(t, err)
	assert.Equal(t, 4, img.Bounds().Dx())

	bad := filepath.Join(t.TempDir(), "bad.jpg")
	require.NoError(t, os.WriteFile(bad, []byte("not an image"), 0o600))
	_, err = decodeFile(bad)
	assert.Error(t, err)
}
