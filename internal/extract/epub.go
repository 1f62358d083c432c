package extract

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"net/url"
	"path"
	"strings"

	"github.com/hyperjump/digest/internal/models"
	"go.uber.org/zap"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

const epubContainerPath = "META-INF/container.xml"

type epubContainer struct {
	Rootfiles []struct {
		FullPath string `xml:"full-path,attr"`
	} `xml:"rootfiles>rootfile"`
}

type epubPackage struct {
	Manifest []struct {
		ID        string `xml:"id,attr"`
		Href      string `xml:"href,attr"`
		MediaType string `xml:"media-type,attr"`
	} `xml:"manifest>item"`
	Spine []struct {
		IDRef string `xml:"idref,attr"`
	} `xml:"spine>itemref"`
}

// epubReader yields one block per spine chapter. The zip stays open until Close.
type epubReader struct {
	path     string
	zr       *zip.ReadCloser
	files    map[string]*zip.File
	chapters []string
	next     int
	logger   *zap.Logger
}

func openEPUB(p string, logger *zap.Logger) (*epubReader, error) {
	zr, err := zip.OpenReader(p)
	if err != nil {
		return nil, &CorruptDocumentError{Path: p, Reason: "open EPUB: not a zip", Err: err}
	}
	files := make(map[string]*zip.File, len(zr.File))
	for _, f := range zr.File {
		files[f.Name] = f
	}
	chapters, err := epubChapters(files, zr.File)
	if err != nil {
		_ = zr.Close()
		return nil, &CorruptDocumentError{Path: p, Reason: "read EPUB package", Err: err}
	}
	logger.Debug("epub opened", zap.String("path", p), zap.Int("chapters", len(chapters)))
	return &epubReader{path: p, zr: zr, files: files, chapters: chapters, logger: logger}, nil
}

// epubChapters resolves chapter paths in reading order from the OPF spine.
// Without a usable container or spine, every (X)HTML file in archive order is used.
func epubChapters(files map[string]*zip.File, ordered []*zip.File) ([]string, error) {
	var chapters []string
	if f, ok := files[epubContainerPath]; ok {
		data, err := readZipFile(f)
		if err != nil {
			return nil, err
		}
		var c epubContainer
		if err := xml.Unmarshal(data, &c); err != nil {
			return nil, fmt.Errorf("parse container: %w", err)
		}
		if len(c.Rootfiles) > 0 {
			opfPath := c.Rootfiles[0].FullPath
			opf, ok := files[opfPath]
			if !ok {
				return nil, fmt.Errorf("package document %s not found", opfPath)
			}
			data, err := readZipFile(opf)
			if err != nil {
				return nil, err
			}
			chapters, err = spineChapters(data, path.Dir(opfPath))
			if err != nil {
				return nil, err
			}
		}
	}
	if len(chapters) == 0 {
		for _, f := range ordered {
			if isHTMLName(f.Name) {
				chapters = append(chapters, f.Name)
			}
		}
	}
	if len(chapters) == 0 {
		return nil, fmt.Errorf("no chapters found")
	}
	return chapters, nil
}

func spineChapters(opfData []byte, baseDir string) ([]string, error) {
	var pkg epubPackage
	if err := xml.Unmarshal(opfData, &pkg); err != nil {
		return nil, fmt.Errorf("parse package document: %w", err)
	}
	hrefs := make(map[string]string, len(pkg.Manifest))
	for _, item := range pkg.Manifest {
		if strings.Contains(item.MediaType, "html") || isHTMLName(item.Href) {
			hrefs[item.ID] = item.Href
		}
	}
	chapters := make([]string, 0, len(pkg.Spine))
	for _, ref := range pkg.Spine {
		href, ok := hrefs[ref.IDRef]
		if !ok {
			continue
		}
		if unescaped, err := url.PathUnescape(href); err == nil {
			href = unescaped
		}
		if i := strings.IndexByte(href, '#'); i >= 0 {
			href = href[:i]
		}
		chapters = append(chapters, path.Clean(path.Join(baseDir, href)))
	}
	return chapters, nil
}

func isHTMLName(name string) bool {
	lower := strings.ToLower(name)
	return strings.HasSuffix(lower, ".xhtml") || strings.HasSuffix(lower, ".html") || strings.HasSuffix(lower, ".htm")
}

func readZipFile(f *zip.File) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", f.Name, err)
	}
	defer rc.Close()
	var buf bytes.Buffer
	if _, err := buf.ReadFrom(rc); err != nil {
		return nil, fmt.Errorf("read %s: %w", f.Name, err)
	}
	return buf.Bytes(), nil
}

func (e *epubReader) Next() (models.Block, error) {
	for e.next < len(e.chapters) {
		num := e.next + 1
		name := e.chapters[e.next]
		e.next++
		f, ok := e.files[name]
		if !ok {
			e.logger.Debug("epub chapter missing", zap.String("path", e.path), zap.String("chapter", name))
			continue
		}
		data, err := readZipFile(f)
		if err != nil {
			return models.Block{}, &CorruptDocumentError{Path: e.path, Reason: "read chapter " + name, Err: err}
		}
		text, err := htmlText(data)
		if err != nil {
			return models.Block{}, &CorruptDocumentError{Path: e.path, Reason: "parse chapter " + name, Err: err}
		}
		if strings.TrimSpace(text) == "" {
			continue
		}
		return models.Block{Text: text, Number: num}, nil
	}
	return models.Block{}, io.EOF
}

func (e *epubReader) Close() error {
	if e.zr == nil {
		return nil
	}
	err := e.zr.Close()
	e.zr = nil
	return err
}

// paragraphAtoms end a paragraph in the extracted text.
var paragraphAtoms = map[atom.Atom]bool{
	atom.P: true, atom.Div: true, atom.Section: true, atom.Article: true,
	atom.H1: true, atom.H2: true, atom.H3: true, atom.H4: true, atom.H5: true, atom.H6: true,
	atom.Li: true, atom.Blockquote: true, atom.Tr: true, atom.Pre: true,
}

// htmlText collects visible text from an XHTML chapter. Block-level elements are
// separated by blank lines so the segmenter sees them as paragraphs.
func htmlText(data []byte) (string, error) {
	doc, err := html.Parse(bytes.NewReader(data))
	if err != nil {
		return "", err
	}
	var b strings.Builder
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.DataAtom {
			case atom.Script, atom.Style, atom.Head:
				return
			case atom.Br:
				b.WriteByte('\n')
				return
			}
		}
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
		if n.Type == html.ElementNode && paragraphAtoms[n.DataAtom] {
			b.WriteString("\n\n")
		}
	}
	walk(doc)
	return strings.TrimSpace(b.String()), nil
}
