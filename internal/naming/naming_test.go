package naming

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"strings"
	"testing"
)

func encodeTestJPEG(t *testing.T, width, height int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for x := 0; x < width; x++ {
		for y := 0; y < height; y++ {
			gray := uint8((x + y) * 255 / (width + height))
			img.Set(x, y, color.RGBA{gray, gray, gray, 255})
		}
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 90}); err != nil {
		t.Fatalf("encode failed: %v", err)
	}
	return buf.Bytes()
}

func decodeSize(t *testing.T, data []byte) (int, int) {
	t.Helper()
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	return img.Bounds().Dx(), img.Bounds().Dy()
}

func TestResizeImageShrinksLargeImage(t *testing.T) {
	data := encodeTestJPEG(t, 200, 100)

	resized, err := ResizeImage(data, 50)
	if err != nil {
		t.Fatalf("ResizeImage failed: %v", err)
	}
	w, h := decodeSize(t, resized)
	if w != 50 || h != 25 {
		t.Errorf("expected 50x25, got %dx%d", w, h)
	}
}

func TestResizeImageKeepsSmallImage(t *testing.T) {
	data := encodeTestJPEG(t, 40, 30)

	resized, err := ResizeImage(data, 100)
	if err != nil {
		t.Fatalf("ResizeImage failed: %v", err)
	}
	w, h := decodeSize(t, resized)
	if w != 40 || h != 30 {
		t.Errorf("expected unchanged 40x30, got %dx%d", w, h)
	}
}

func TestResizeImageInvalidData(t *testing.T) {
	if _, err := ResizeImage([]byte("not an image"), 100); err == nil {
		t.Error("expected error for invalid image data")
	}
}

func TestBuildLabelPrompt(t *testing.T) {
	prompt := buildLabelPrompt([]string{"Anna", "Group_02"})
	if !strings.Contains(prompt, "Anna, Group_02") {
		t.Errorf("expected existing labels in prompt, got:\n%s", prompt)
	}

	empty := buildLabelPrompt(nil)
	if !strings.Contains(empty, "none") {
		t.Errorf("expected placeholder for no labels, got:\n%s", empty)
	}
}
