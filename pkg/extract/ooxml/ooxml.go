// Package ooxml reads the pieces of Office Open XML containers that the
// DOCX and PPTX extractors need: paragraph text from the XML parts and
// embedded media files. A .docx or .pptx file is a zip archive; text lives
// in parts like word/document.xml or ppt/slides/slide1.xml, and images live
// under word/media/ or ppt/media/.
package ooxml

import (
	"archive/zip"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// ErrPartNotFound reports that an archive is readable but lacks the
// requested part.
var ErrPartNotFound = errors.New("part not found")

// ReadPart returns the contents of a single named file inside the archive.
func ReadPart(archivePath, name string) ([]byte, error) {
	zr, err := zip.OpenReader(archivePath)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", archivePath, err)
	}
	defer zr.Close()

	for _, f := range zr.File {
		if f.Name != name {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, fmt.Errorf("open part %s: %w", name, err)
		}
		defer rc.Close()
		return io.ReadAll(rc)
	}
	return nil, fmt.Errorf("%s: part %s: %w", archivePath, name, ErrPartNotFound)
}

// Paragraphs extracts paragraph text from a WordprocessingML or DrawingML
// part. Both formats mark paragraphs with a local element name of "p" and
// text runs with "t" (w:p/w:t in DOCX, a:p/a:t in PPTX), so one scanner
// serves both. Empty paragraphs are dropped.
func Paragraphs(part []byte) ([]string, error) {
	dec := xml.NewDecoder(strings.NewReader(string(part)))

	var paras []string
	var cur strings.Builder
	depth := 0 // nesting of <p> elements; text tables can nest them

	flush := func() {
		if s := strings.TrimSpace(cur.String()); s != "" {
			paras = append(paras, s)
		}
		cur.Reset()
	}

	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("parse xml: %w", err)
		}
		switch el := tok.(type) {
		case xml.StartElement:
			switch el.Name.Local {
			case "p":
				if depth == 0 {
					cur.Reset()
				}
				depth++
			case "t":
				if depth > 0 {
					var text string
					if err := dec.DecodeElement(&text, &el); err != nil {
						return nil, fmt.Errorf("decode text run: %w", err)
					}
					cur.WriteString(text)
				}
			case "br":
				if depth > 0 {
					cur.WriteString("\n")
				}
			}
		case xml.EndElement:
			if el.Name.Local == "p" && depth > 0 {
				depth--
				if depth == 0 {
					flush()
				}
			}
		}
	}
	return paras, nil
}

// ExtractMedia copies every archive entry under the given prefix (for
// example "word/media/" or "ppt/media/") into destDir and returns the
// written paths sorted by entry name.
func ExtractMedia(archivePath, prefix, destDir string) ([]string, error) {
	zr, err := zip.OpenReader(archivePath)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", archivePath, err)
	}
	defer zr.Close()

	var names []string
	byName := make(map[string]*zip.File)
	for _, f := range zr.File {
		if !strings.HasPrefix(f.Name, prefix) || f.FileInfo().IsDir() {
			continue
		}
		names = append(names, f.Name)
		byName[f.Name] = f
	}
	sort.Strings(names)

	var written []string
	for _, name := range names {
		dst := filepath.Join(destDir, path.Base(name))
		if err := copyEntry(byName[name], dst); err != nil {
			return nil, err
		}
		written = append(written, dst)
	}
	return written, nil
}

func copyEntry(f *zip.File, dst string) error {
	rc, err := f.Open()
	if err != nil {
		return fmt.Errorf("open entry %s: %w", f.Name, err)
	}
	defer rc.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, rc); err != nil {
		out.Close()
		return fmt.Errorf("extract %s: %w", f.Name, err)
	}
	return out.Close()
}

// SlideImages returns the media file base names a slide references, in
// relationship order, resolved through the slide's _rels part. A slide
// without a relationship part references no media.
func SlideImages(archivePath, slidePart string) ([]string, error) {
	relsPart := path.Dir(slidePart) + "/_rels/" + path.Base(slidePart) + ".rels"
	data, err := ReadPart(archivePath, relsPart)
	if errors.Is(err, ErrPartNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var rels struct {
		Relationships []struct {
			Type   string `xml:"Type,attr"`
			Target string `xml:"Target,attr"`
		} `xml:"Relationship"`
	}
	if err := xml.Unmarshal(data, &rels); err != nil {
		return nil, fmt.Errorf("parse %s: %w", relsPart, err)
	}

	var names []string
	for _, rel := range rels.Relationships {
		if !strings.HasSuffix(rel.Type, "/image") {
			continue
		}
		names = append(names, path.Base(rel.Target))
	}
	return names, nil
}

var slideRe = regexp.MustCompile(`^ppt/slides/slide(\d+)\.xml$`)

// SlideParts lists the slide XML part names in a PPTX archive ordered by
// slide number. slide10.xml must sort after slide9.xml, so the order comes
// from the parsed number rather than the lexical name.
func SlideParts(archivePath string) ([]string, error) {
	zr, err := zip.OpenReader(archivePath)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", archivePath, err)
	}
	defer zr.Close()

	type slide struct {
		n    int
		name string
	}
	var slides []slide
	for _, f := range zr.File {
		m := slideRe.FindStringSubmatch(f.Name)
		if m == nil {
			continue
		}
		n, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		slides = append(slides, slide{n: n, name: f.Name})
	}
	sort.Slice(slides, func(i, j int) bool { return slides[i].n < slides[j].n })

	names := make([]string, len(slides))
	for i, s := range slides {
		names[i] = s.name
	}
	return names, nil
}
