// Package pdf renders certificate artifacts with gopdf. Rendering is kept
// behind the service-level Renderer interface so the HTTP layer and the
// worker never touch gopdf directly.
package pdf

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/certeon/certexam-backend/internal/model"
	"github.com/rs/zerolog"
	"github.com/signintech/gopdf"
)

// CertificateRenderer draws certificate PDFs onto an A4 landscape page and
// writes them under the artifact directory. Output files are named by
// certificate ID, so re-rendering overwrites rather than accumulates.
type CertificateRenderer struct {
	artifactDir string
	fontPath    string
	log         zerolog.Logger
}

// NewCertificateRenderer creates a renderer writing into artifactDir using
// the TTF font at fontPath. The directory is created on first use.
func NewCertificateRenderer(artifactDir, fontPath string, log zerolog.Logger) *CertificateRenderer {
	return &CertificateRenderer{
		artifactDir: artifactDir,
		fontPath:    fontPath,
		log:         log.With().Str("component", "pdf_renderer").Logger(),
	}
}

// Render draws the certificate and returns the path of the written file.
func (r *CertificateRenderer) Render(cert *model.Certificate, user *model.User, course *model.Course) (string, error) {
	if err := os.MkdirAll(r.artifactDir, 0o755); err != nil {
		return "", fmt.Errorf("create artifact dir: %w", err)
	}

	pdf := gopdf.GoPdf{}
	pdf.Start(gopdf.Config{PageSize: *gopdf.PageSizeA4Landscape})
	pdf.AddPage()

	if err := pdf.AddTTFFont("main", r.fontPath); err != nil {
		return "", fmt.Errorf("load font: %w", err)
	}

	pageW := gopdf.PageSizeA4Landscape.W
	pageH := gopdf.PageSizeA4Landscape.H

	// Border.
	pdf.SetLineWidth(2)
	pdf.SetStrokeColor(30, 60, 120)
	pdf.RectFromUpperLeftWithStyle(20, 20, pageW-40, pageH-40, "D")

	if err := r.centeredText(&pdf, pageW, 90, 34, "Certificate of Completion"); err != nil {
		return "", err
	}
	if err := r.centeredText(&pdf, pageW, 160, 14, "This certifies that"); err != nil {
		return "", err
	}
	if err := r.centeredText(&pdf, pageW, 210, 28, user.Name); err != nil {
		return "", err
	}
	if err := r.centeredText(&pdf, pageW, 265, 14, "has successfully passed the certification exam for"); err != nil {
		return "", err
	}
	if err := r.centeredText(&pdf, pageW, 310, 22, course.Title); err != nil {
		return "", err
	}
	if err := r.centeredText(&pdf, pageW, 370, 14,
		fmt.Sprintf("Score: %.1f    Grade: %s", cert.Score, cert.Grade)); err != nil {
		return "", err
	}
	if err := r.centeredText(&pdf, pageW, 420, 12,
		fmt.Sprintf("Certificate No. %s    Issued %s", cert.Number, cert.IssuedAt.Format("2 January 2006"))); err != nil {
		return "", err
	}
	if err := r.centeredText(&pdf, pageW, 450, 10,
		fmt.Sprintf("Verify at /verify/%s", cert.VerificationCode)); err != nil {
		return "", err
	}

	path := filepath.Join(r.artifactDir, fmt.Sprintf("certificate-%s.pdf", cert.ID))
	if err := pdf.WritePdf(path); err != nil {
		return "", fmt.Errorf("write pdf: %w", err)
	}

	r.log.Debug().Str("certificate", cert.Number).Str("path", path).Msg("Certificate rendered")
	return path, nil
}

func (r *CertificateRenderer) centeredText(pdf *gopdf.GoPdf, pageW, y float64, size float64, text string) error {
	if err := pdf.SetFont("main", "", size); err != nil {
		return fmt.Errorf("set font: %w", err)
	}
	width, err := pdf.MeasureTextWidth(text)
	if err != nil {
		return fmt.Errorf("measure text: %w", err)
	}
	pdf.SetXY((pageW-width)/2, y)
	if err := pdf.Cell(nil, text); err != nil {
		return fmt.Errorf("draw text: %w", err)
	}
	return nil
}
