package builder

import (
	"image"
	"image/color"
	"testing"
)

func TestFromImage(t *testing.T) {
	opaque := image.NewRGBA(image.Rect(0, 0, 2, 1))
	opaque.Set(0, 0, color.RGBA{R: 255, A: 255})
	opaque.Set(1, 0, color.RGBA{B: 255, A: 255})

	translucent := image.NewNRGBA(image.Rect(0, 0, 2, 1))
	translucent.Set(0, 0, color.NRGBA{G: 255, A: 255})
	translucent.Set(1, 0, color.NRGBA{G: 255, A: 0})

	tests := []struct {
		name       string
		src        image.Image
		wantPixels []byte
		wantAlpha  []byte
	}{
		{"opaque", opaque, []byte{255, 0, 0, 0, 0, 255}, nil},
		{"translucent", translucent, []byte{0, 255, 0, 0, 255, 0}, []byte{255, 0}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			img := FromImage(tt.src, 0)
			if img.Width != 2 || img.Height != 1 {
				t.Fatalf("size = %dx%d", img.Width, img.Height)
			}
			if string(img.Pixels) != string(tt.wantPixels) {
				t.Errorf("pixels = %v, want %v", img.Pixels, tt.wantPixels)
			}
			if string(img.Alpha) != string(tt.wantAlpha) || (img.Alpha == nil) != (tt.wantAlpha == nil) {
				t.Errorf("alpha = %v, want %v", img.Alpha, tt.wantAlpha)
			}
		})
	}
}

func TestFromImageDownscales(t *testing.T) {
	src := image.NewGray(image.Rect(10, 10, 410, 210))
	img := FromImage(src, 20000)
	if img.Width != 200 || img.Height != 100 {
		t.Errorf("size = %dx%d, want 200x100", img.Width, img.Height)
	}
	if len(img.Pixels) != 200*100*3 {
		t.Errorf("pixels = %d bytes", len(img.Pixels))
	}

	small := FromImage(image.NewGray(image.Rect(0, 0, 5, 5)), 20000)
	if small.Width != 5 || small.Height != 5 {
		t.Errorf("small image resized to %dx%d", small.Width, small.Height)
	}
}

func TestImageStreams(t *testing.T) {
	img := FromImage(image.NewNRGBA(image.Rect(0, 0, 1, 1)), 0)
	mask, err := img.maskStream()
	if err != nil {
		t.Fatal(err)
	}
	if cs, _ := mask.Dict.Get("ColorSpace"); cs.(interface{ Value() string }).Value() != "DeviceGray" {
		t.Errorf("mask colour space = %v", cs)
	}
	st, err := img.stream(nil)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := st.Dict.Get("SMask"); ok {
		t.Error("stream without mask should not carry /SMask")
	}
	if f, _ := st.Dict.Get("Filter"); f.(interface{ Value() string }).Value() != "FlateDecode" {
		t.Errorf("Filter = %v", f)
	}
}
