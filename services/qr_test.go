package services

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeLogo stores a solid square PNG and returns its path.
func writeLogo(t *testing.T, dir string, c color.Color, size int) string {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, size, size))
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			img.Set(x, y, c)
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	path := filepath.Join(dir, "logo.png")
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))
	return path
}

func decodePNG(t *testing.T, path string) image.Image {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	img, err := png.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	return img
}

func TestEnsureArtifactGeneratesComposite(t *testing.T) {
	dir := t.TempDir()
	red := color.NRGBA{R: 255, A: 255}
	req := QRRequest{
		TargetURL:  "http://192.168.100.197:5000/formulario",
		LogoPath:   writeLogo(t, dir, red, 64),
		OutputPath: filepath.Join(dir, "out", "qr.png"),
	}

	created, err := NewQRProvisioner(nil).EnsureArtifact(req)
	require.NoError(t, err)
	assert.True(t, created)

	img := decodePNG(t, req.OutputPath)
	b := img.Bounds()
	assert.Equal(t, b.Dx(), b.Dy())
	assert.Zero(t, b.Dx()%qrModulePixels)

	// quiet zone is white
	r, g, bl, _ := img.At(b.Min.X, b.Min.Y).RGBA()
	assert.Equal(t, [3]uint32{0xffff, 0xffff, 0xffff}, [3]uint32{r, g, bl})

	// the opaque logo covers the centre
	r, g, bl, _ = img.At(b.Dx()/2, b.Dy()/2).RGBA()
	assert.Greater(t, r, uint32(0xf000))
	assert.Less(t, g, uint32(0x1000))
	assert.Less(t, bl, uint32(0x1000))

	// but not beyond a quarter of the width around it
	edge := (b.Dx() - int(float64(b.Dx())*logoScale)) / 2
	r, g, _, _ = img.At(edge-qrModulePixels*5, b.Dy()/2).RGBA()
	assert.False(t, r > 0xf000 && g < 0x1000, "logo leaked outside its box")
}

func TestEnsureArtifactIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	req := QRRequest{
		TargetURL:  "http://example.test/formulario",
		LogoPath:   writeLogo(t, dir, color.NRGBA{B: 200, A: 255}, 32),
		OutputPath: filepath.Join(dir, "qr.png"),
	}
	uut := NewQRProvisioner(nil)

	created, err := uut.EnsureArtifact(req)
	require.NoError(t, err)
	require.True(t, created)
	first, err := os.ReadFile(req.OutputPath)
	require.NoError(t, err)
	info, err := os.Stat(req.OutputPath)
	require.NoError(t, err)

	created, err = uut.EnsureArtifact(req)
	require.NoError(t, err)
	assert.False(t, created)
	second, err := os.ReadFile(req.OutputPath)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	info2, err := os.Stat(req.OutputPath)
	require.NoError(t, err)
	assert.Equal(t, info.ModTime(), info2.ModTime())
}

func TestEnsureArtifactRegeneratesOnURLChange(t *testing.T) {
	dir := t.TempDir()
	req := QRRequest{
		TargetURL:  "http://old.test/formulario",
		LogoPath:   writeLogo(t, dir, color.NRGBA{G: 200, A: 255}, 32),
		OutputPath: filepath.Join(dir, "qr.png"),
	}
	uut := NewQRProvisioner(nil)

	_, err := uut.EnsureArtifact(req)
	require.NoError(t, err)
	before, err := os.ReadFile(req.OutputPath)
	require.NoError(t, err)

	req.TargetURL = "http://new.test/formulario"
	created, err := uut.EnsureArtifact(req)
	require.NoError(t, err)
	assert.True(t, created)
	after, err := os.ReadFile(req.OutputPath)
	require.NoError(t, err)
	assert.NotEqual(t, before, after)
}

func TestEnsureArtifactForce(t *testing.T) {
	dir := t.TempDir()
	req := QRRequest{
		TargetURL:  "http://example.test/formulario",
		LogoPath:   writeLogo(t, dir, color.NRGBA{A: 255}, 16),
		OutputPath: filepath.Join(dir, "qr.png"),
	}
	uut := NewQRProvisioner(nil)

	_, err := uut.EnsureArtifact(req)
	require.NoError(t, err)

	req.Force = true
	created, err := uut.EnsureArtifact(req)
	require.NoError(t, err)
	assert.True(t, created)
}

func TestEnsureArtifactForeignFileIsReplaced(t *testing.T) {
	dir := t.TempDir()
	req := QRRequest{
		TargetURL:  "http://example.test/formulario",
		LogoPath:   writeLogo(t, dir, color.NRGBA{R: 10, A: 255}, 16),
		OutputPath: filepath.Join(dir, "qr.png"),
	}
	// a file left by an older deployment, without a content key
	require.NoError(t, os.WriteFile(req.OutputPath, []byte("stale"), 0o644))

	created, err := NewQRProvisioner(nil).EnsureArtifact(req)
	require.NoError(t, err)
	assert.True(t, created)
	decodePNG(t, req.OutputPath)
}

func TestEnsureArtifactErrors(t *testing.T) {
	dir := t.TempDir()
	logo := writeLogo(t, dir, color.NRGBA{A: 255}, 16)
	uut := NewQRProvisioner(nil)

	_, err := uut.EnsureArtifact(QRRequest{TargetURL: "", LogoPath: logo, OutputPath: filepath.Join(dir, "a.png")})
	assert.ErrorIs(t, err, ErrArtifactGeneration)

	_, err = uut.EnsureArtifact(QRRequest{
		TargetURL:  "http://example.test",
		LogoPath:   filepath.Join(dir, "missing.png"),
		OutputPath: filepath.Join(dir, "b.png"),
	})
	assert.ErrorIs(t, err, ErrArtifactGeneration)
	assert.NoFileExists(t, filepath.Join(dir, "b.png"))

	notImage := filepath.Join(dir, "logo.txt")
	require.NoError(t, os.WriteFile(notImage, []byte("not an image"), 0o644))
	_, err = uut.EnsureArtifact(QRRequest{TargetURL: "http://example.test", LogoPath: notImage, OutputPath: filepath.Join(dir, "c.png")})
	assert.ErrorIs(t, err, ErrArtifactGeneration)
}
