package extract

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"strings"
	"unicode/utf8"

	"github.com/hyperjump/digest/internal/models"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// decodePlain returns content as string with the BOM stripped and line endings unified.
// Invalid UTF-8 sequences are replaced with the replacement character.
func decodePlain(content []byte) string {
	content = bytes.TrimPrefix(content, utf8BOM)
	s := string(content)
	if !utf8.ValidString(s) {
		s = strings.ToValidUTF8(s, "\ufffd")
	}
	s = strings.ReplaceAll(s, "\r\n", "\n")
	return strings.ReplaceAll(s, "\r", "\n")
}

// plainReader yields a text file as a single block.
type plainReader struct {
	text string
	done bool
}

func openPlain(path string) (*plainReader, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}
	return &plainReader{text: decodePlain(content)}, nil
}

func (p *plainReader) Next() (models.Block, error) {
	if p.done {
		return models.Block{}, io.EOF
	}
	p.done = true
	return models.Block{Text: p.text, Number: 1}, nil
}

func (p *plainReader) Close() error { return nil }
