package storage

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"io"
	"strings"
	"testing"

	"github.com/disintegration/imaging"

	"github.com/jebauza/VetFlow/internal/core/port"
)

func TestLocalStoreLifecycle(t *testing.T) {
	store, err := NewLocalStore(t.TempDir(), "http://localhost:8080/storage", nil)
	if err != nil {
		t.Fatalf("NewLocalStore returned error: %v", err)
	}
	ctx := context.Background()

	rel, err := store.Save(ctx, strings.NewReader("avatar-bytes"), "user/avatars", ".PNG")
	if err != nil {
		t.Fatalf("Save returned error: %v", err)
	}
	if !strings.HasPrefix(rel, "user/avatars/") || !strings.HasSuffix(rel, ".png") {
		t.Fatalf("unexpected path %s", rel)
	}

	exists, err := store.Exists(ctx, rel)
	if err != nil || !exists {
		t.Fatalf("expected blob to exist, got %v err=%v", exists, err)
	}

	reader, err := store.Open(ctx, rel)
	if err != nil {
		t.Fatalf("Open returned error: %v", err)
	}
	data, _ := io.ReadAll(reader)
	reader.Close()
	if string(data) != "avatar-bytes" {
		t.Fatalf("unexpected content %q", data)
	}

	url := store.URL(rel)
	if url == nil || *url != "http://localhost:8080/storage/"+rel {
		t.Fatalf("unexpected url %v", url)
	}
	if store.URL("") != nil {
		t.Fatalf("expected nil url for empty path")
	}

	deleted, err := store.Delete(ctx, rel)
	if err != nil || !deleted {
		t.Fatalf("expected delete to succeed, got %v err=%v", deleted, err)
	}
	deleted, err = store.Delete(ctx, rel)
	if err != nil || deleted {
		t.Fatalf("expected second delete to report false, got %v err=%v", deleted, err)
	}
}

func TestLocalStoreRejectsTraversal(t *testing.T) {
	store, err := NewLocalStore(t.TempDir(), "/storage", nil)
	if err != nil {
		t.Fatalf("NewLocalStore returned error: %v", err)
	}
	if _, err := store.Open(context.Background(), "../etc/passwd"); !errors.Is(err, ErrInvalidPath) {
		t.Fatalf("expected ErrInvalidPath, got %v", err)
	}
}

func encodePNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		img.Set(x, 0, color.NRGBA{R: 200, A: 255})
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

func TestAvatarNormalizerFitsLargeImages(t *testing.T) {
	normalizer := NewAvatarNormalizer(0, 64)

	data, ext, err := normalizer.Normalize(bytes.NewReader(encodePNG(t, 256, 128)))
	if err != nil {
		t.Fatalf("Normalize returned error: %v", err)
	}
	if ext != "png" {
		t.Fatalf("expected png, got %s", ext)
	}

	img, err := imaging.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("decode output: %v", err)
	}
	if img.Bounds().Dx() != 64 || img.Bounds().Dy() != 32 {
		t.Fatalf("expected 64x32, got %v", img.Bounds())
	}
}

func TestAvatarNormalizerRejectsInvalidUploads(t *testing.T) {
	normalizer := NewAvatarNormalizer(1024, 64)

	if _, _, err := normalizer.Normalize(strings.NewReader("GIF89a not an image")); !errors.Is(err, port.ErrImageFormat) {
		t.Fatalf("expected ErrImageFormat, got %v", err)
	}
	if _, _, err := normalizer.Normalize(bytes.NewReader(make([]byte, 2048))); !errors.Is(err, port.ErrImageTooLarge) {
		t.Fatalf("expected ErrImageTooLarge, got %v", err)
	}
}
