package render

import (
	"image"
	"image/jpeg"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"gonum.org/v1/gonum/mat"

	"gprproc/internal/models"
)

func makeRadargram(traces, samples int) *models.Radargram {
	data := mat.NewDense(traces, samples, nil)
	for i := 0; i < traces; i++ {
		for j := 0; j < samples; j++ {
			data.Set(i, j, math.Sin(float64(j)/4)*float64(i+1))
		}
	}
	ts := make([]time.Time, traces)
	start := time.Date(2024, 3, 14, 9, 0, 0, 0, time.UTC)
	for i := range ts {
		ts[i] = start.Add(time.Duration(i) * time.Second)
	}
	return &models.Radargram{
		Data:           data,
		SampleInterval: 0.4,
		Timestamps:     ts,
		Instrument:     "test",
		SourceFile:     "test.rd3",
		MediumVelocity: 0.168,
	}
}

func TestImageGeometry(t *testing.T) {
	rg := makeRadargram(40, 25)
	img, err := Image(rg, DefaultOptions())
	if err != nil {
		t.Fatalf("render failed: %v", err)
	}
	b := img.Bounds()
	if b.Dx() != 40 || b.Dy() != 25 {
		t.Errorf("expected 40x25 image (traces x samples), got %dx%d", b.Dx(), b.Dy())
	}
}

func TestImageClipsOutliers(t *testing.T) {
	rg := makeRadargram(10, 10)
	rg.Data = mat.NewDense(10, 10, nil)
	for i := 0; i < 10; i++ {
		for j := 0; j < 10; j++ {
			rg.Data.Set(i, j, float64(i*10+j))
		}
	}
	rg.Data.Set(5, 5, 1e9) // single outlier

	img, err := Image(rg, DefaultOptions())
	if err != nil {
		t.Fatalf("render failed: %v", err)
	}
	gray := img.(*image.Gray)
	// Without clipping the outlier would crush everything else to 0.
	if gray.GrayAt(9, 9).Y < 200 {
		t.Errorf("large regular value rendered too dark: %d", gray.GrayAt(9, 9).Y)
	}
	if gray.GrayAt(5, 5).Y != 255 {
		t.Errorf("outlier should saturate to white, got %d", gray.GrayAt(5, 5).Y)
	}
}

func TestImageFlatData(t *testing.T) {
	rg := makeRadargram(4, 4)
	rg.Data = mat.NewDense(4, 4, nil)
	if _, err := Image(rg, DefaultOptions()); err != nil {
		t.Errorf("flat data should render, got %v", err)
	}
}

func TestImageInvalidClip(t *testing.T) {
	rg := makeRadargram(4, 4)
	if _, err := Image(rg, Options{ClipLow: 0.9, ClipHigh: 0.1, Quality: 90}); err == nil {
		t.Error("expected an error for inverted clip quantiles")
	}
}

func TestWriteJPEG(t *testing.T) {
	rg := makeRadargram(30, 20)
	path := filepath.Join(t.TempDir(), "out.jpg")
	if err := WriteJPEG(path, rg, DefaultOptions()); err != nil {
		t.Fatalf("write failed: %v", err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	img, err := jpeg.Decode(f)
	if err != nil {
		t.Fatalf("output is not a valid JPEG: %v", err)
	}
	if img.Bounds().Dx() != 30 || img.Bounds().Dy() != 20 {
		t.Errorf("unexpected image size %v", img.Bounds())
	}
}
