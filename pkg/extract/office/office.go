// Package office converts Office documents to PDF by shelling out to
// LibreOffice. The page_as_image and hybrid strategies for DOCX and PPTX
// files first convert the document to PDF, then render the PDF pages.
package office

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// converterBinary is replaced in tests.
var converterBinary = "soffice"

// ConvertToPDF converts srcPath to a PDF inside outDir and returns the path
// of the generated file. LibreOffice keeps the source base name, so
// report.docx becomes report.pdf. A missing soffice binary is a setup
// problem, not a transient failure, and the returned error says so.
func ConvertToPDF(ctx context.Context, srcPath, outDir string) (string, error) {
	bin, err := exec.LookPath(converterBinary)
	if err != nil {
		return "", fmt.Errorf("libreoffice (soffice) is required for office document conversion but was not found in PATH: %w", err)
	}

	cmd := exec.CommandContext(ctx, bin,
		"--headless", "--norestore",
		"--convert-to", "pdf",
		"--outdir", outDir,
		srcPath,
	)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return "", fmt.Errorf("convert %s to pdf: %w: %s", srcPath, err, strings.TrimSpace(string(out)))
	}

	base := strings.TrimSuffix(filepath.Base(srcPath), filepath.Ext(srcPath))
	pdfPath := filepath.Join(outDir, base+".pdf")
	if _, err := os.Stat(pdfPath); err != nil {
		return "", fmt.Errorf("conversion produced no output for %s: %w", srcPath, err)
	}
	return pdfPath, nil
}
