package services

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	_ "image/gif"
	_ "image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/skip2/go-qrcode"
	"go.uber.org/zap"
	xdraw "golang.org/x/image/draw"
)

const (
	// qrModulePixels is the edge length of one QR module in the output image.
	qrModulePixels = 12
	// logoScale is the logo edge as a fraction of the QR edge.
	logoScale = 0.25
	// hashSuffix names the sidecar file holding the content key of the cached artifact.
	hashSuffix = ".sha256"
)

// QRRequest describes one artifact.
type QRRequest struct {
	TargetURL  string
	LogoPath   string
	OutputPath string
	// Force regenerates even when the cached artifact matches.
	Force bool
}

// QRProvisioner generates the QR artifact on disk and reuses it while its content is unchanged.
type QRProvisioner struct {
	mu     sync.Mutex
	logger *zap.Logger
}

// NewQRProvisioner creates a provisioner; a nil logger discards output.
func NewQRProvisioner(logger *zap.Logger) *QRProvisioner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &QRProvisioner{logger: logger}
}

// EnsureArtifact makes sure req.OutputPath holds a QR image for req.TargetURL with the logo overlay.
// The cached file is reused only when its recorded content key matches; it reports whether
// a new image was written.
func (p *QRProvisioner) EnsureArtifact(req QRRequest) (bool, error) {
	if strings.TrimSpace(req.TargetURL) == "" {
		return false, fmt.Errorf("%w: empty target url", ErrArtifactGeneration)
	}
	logoBytes, err := os.ReadFile(req.LogoPath)
	if err != nil {
		return false, fmt.Errorf("%w: read logo %s: %v", ErrArtifactGeneration, req.LogoPath, err)
	}

	key := contentKey(req.TargetURL, logoBytes)

	p.mu.Lock()
	defer p.mu.Unlock()

	if !req.Force && artifactMatches(req.OutputPath, key) {
		return false, nil
	}

	img, err := composeQR(req.TargetURL, logoBytes)
	if err != nil {
		return false, err
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return false, fmt.Errorf("%w: encode png: %v", ErrArtifactGeneration, err)
	}
	if err := writeFileAtomic(req.OutputPath, buf.Bytes()); err != nil {
		return false, fmt.Errorf("%w: %v", ErrArtifactGeneration, err)
	}
	if err := writeFileAtomic(req.OutputPath+hashSuffix, []byte(key)); err != nil {
		return false, fmt.Errorf("%w: %v", ErrArtifactGeneration, err)
	}

	p.logger.Info("qr artifact generated",
		zap.String("path", req.OutputPath),
		zap.String("url", req.TargetURL),
		zap.String("key", key[:12]),
	)
	return true, nil
}

// contentKey identifies everything that influences the rendered pixels.
func contentKey(url string, logo []byte) string {
	h := sha256.New()
	fmt.Fprintf(h, "url=%s\nlevel=H\nmodule=%d\nlogo_scale=%.2f\n", url, qrModulePixels, logoScale)
	h.Write(logo)
	return hex.EncodeToString(h.Sum(nil))
}

func artifactMatches(outputPath, key string) bool {
	if _, err := os.Stat(outputPath); err != nil {
		return false
	}
	recorded, err := os.ReadFile(outputPath + hashSuffix)
	if err != nil {
		return false
	}
	return strings.TrimSpace(string(recorded)) == key
}

func composeQR(url string, logoBytes []byte) (*image.RGBA, error) {
	code, err := qrcode.New(url, qrcode.Highest)
	if err != nil {
		return nil, fmt.Errorf("%w: encode qr: %v", ErrArtifactGeneration, err)
	}
	code.ForegroundColor = color.Black
	code.BackgroundColor = color.White

	// Negative size: each module is that many pixels, with the standard 4-module border.
	symbol := code.Image(-qrModulePixels)
	bounds := symbol.Bounds()
	canvas := image.NewRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	draw.Draw(canvas, canvas.Bounds(), symbol, bounds.Min, draw.Src)

	logo, _, err := image.Decode(bytes.NewReader(logoBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: decode logo: %v", ErrArtifactGeneration, err)
	}

	logoW := int(float64(canvas.Bounds().Dx()) * logoScale)
	logoH := int(float64(canvas.Bounds().Dy()) * logoScale)
	if logoW <= 0 || logoH <= 0 {
		return nil, fmt.Errorf("%w: qr image too small for logo", ErrArtifactGeneration)
	}
	resized := image.NewRGBA(image.Rect(0, 0, logoW, logoH))
	xdraw.CatmullRom.Scale(resized, resized.Bounds(), logo, logo.Bounds(), xdraw.Src, nil)

	offset := image.Pt((canvas.Bounds().Dx()-logoW)/2, (canvas.Bounds().Dy()-logoH)/2)
	target := resized.Bounds().Add(offset)
	// Over uses the logo's alpha as the mask; opaque logos simply replace the pixels.
	draw.Draw(canvas, target, resized, image.Point{}, draw.Over)

	return canvas, nil
}

// writeFileAtomic writes through a temp file in the same directory so readers never see a partial file.
func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("mkdir %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("create temp for %s: %w", path, err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("close %s: %w", path, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("rename %s: %w", path, err)
	}
	return nil
}
