// Package codes renders the QR and Code128 barcode images handed out to
// students. The payload of both is simply the student ID.
package codes

import (
	"archive/zip"
	"fmt"
	"image/png"
	"io"
	"os"
	"path/filepath"

	"github.com/boombuler/barcode"
	"github.com/boombuler/barcode/code128"
	qrcode "github.com/skip2/go-qrcode"
)

// Generator writes code images under a base directory.
type Generator struct {
	qrDir      string
	barcodeDir string
}

func NewGenerator(baseDir string) (*Generator, error) {
	g := &Generator{
		qrDir:      filepath.Join(baseDir, "qrcodes"),
		barcodeDir: filepath.Join(baseDir, "barcodes"),
	}
	for _, dir := range []string{g.qrDir, g.barcodeDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create codes dir: %w", err)
		}
	}
	return g, nil
}

// QR renders a QR code PNG for the student and returns its path.
func (g *Generator) QR(studentID string) (string, error) {
	path := filepath.Join(g.qrDir, studentID+"_qr.png")
	if err := qrcode.WriteFile(studentID, qrcode.Medium, 256, path); err != nil {
		return "", fmt.Errorf("generate qr for %s: %w", studentID, err)
	}
	return path, nil
}

// Barcode renders a Code128 barcode PNG for the student and returns its
// path.
func (g *Generator) Barcode(studentID string) (string, error) {
	bc, err := code128.Encode(studentID)
	if err != nil {
		return "", fmt.Errorf("generate barcode for %s: %w", studentID, err)
	}
	scaled, err := barcode.Scale(bc, 300, 120)
	if err != nil {
		return "", fmt.Errorf("scale barcode for %s: %w", studentID, err)
	}
	path := filepath.Join(g.barcodeDir, studentID+"_barcode.png")
	f, err := os.Create(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	if err := png.Encode(f, scaled); err != nil {
		return "", err
	}
	return path, nil
}

// WriteZip streams a ZIP of the given image files. Missing files are
// skipped so a bundle still downloads when single images were removed
// from disk.
func WriteZip(w io.Writer, paths []string) error {
	zw := zip.NewWriter(w)
	for _, path := range paths {
		src, err := os.Open(path)
		if err != nil {
			continue
		}
		entry, err := zw.Create(filepath.Base(path))
		if err != nil {
			src.Close()
			return err
		}
		if _, err := io.Copy(entry, src); err != nil {
			src.Close()
			return err
		}
		src.Close()
	}
	return zw.Close()
}
