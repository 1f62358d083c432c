// Package segment splits loaded document blocks into ordered, non-overlapping segments.
package segment

import (
	"errors"
	"io"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/hyperjump/digest/internal/models"
)

// DefaultMaxChars bounds segment length when no limit is configured.
const DefaultMaxChars = 1200

// BlockSource yields document blocks in order and returns io.EOF at the end.
type BlockSource interface {
	Next() (models.Block, error)
}

var paragraphBreak = regexp.MustCompile(`\n\s*\n`)

// Segmenter turns blocks into segments. Paragraphs are the natural unit; paragraphs longer
// than maxChars runes are split at sentence boundaries, then at word boundaries, and as a
// last resort every maxChars runes.
//
// Segment offsets index into the normalized document text, which is Normalize applied to
// all block texts joined by newlines.
type Segmenter struct {
	src      BlockSource
	maxChars int
	pending  []models.Segment
	index    int
	offset   int
	done     bool
}

// NewSegmenter creates a segmenter over src. maxChars <= 0 uses DefaultMaxChars.
func NewSegmenter(src BlockSource, maxChars int) *Segmenter {
	if maxChars <= 0 {
		maxChars = DefaultMaxChars
	}
	return &Segmenter{src: src, maxChars: maxChars}
}

// Next returns the next segment, or io.EOF when the source is exhausted.
// Errors from the source are returned as-is. The sequence cannot be restarted.
func (s *Segmenter) Next() (models.Segment, error) {
	for len(s.pending) == 0 {
		if s.done {
			return models.Segment{}, io.EOF
		}
		b, err := s.src.Next()
		if errors.Is(err, io.EOF) {
			s.done = true
			continue
		}
		if err != nil {
			return models.Segment{}, err
		}
		s.addBlock(b)
	}
	seg := s.pending[0]
	s.pending = s.pending[1:]
	return seg, nil
}

func (s *Segmenter) addBlock(b models.Block) {
	for _, raw := range paragraphBreak.Split(b.Text, -1) {
		p := Normalize(raw)
		if p == "" {
			continue
		}
		if s.index > 0 {
			// Separator between this paragraph and the previous one.
			s.offset++
		}
		for _, sp := range s.split(p) {
			s.pending = append(s.pending, models.Segment{
				Index:  s.index,
				Offset: s.offset + sp.start,
				Block:  b.Number,
				Text:   p[sp.start:sp.end],
			})
			s.index++
		}
		s.offset += len(p)
	}
}

// Collect drains the segmenter.
func Collect(s *Segmenter) ([]models.Segment, error) {
	var out []models.Segment
	for {
		seg, err := s.Next()
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return out, err
		}
		out = append(out, seg)
	}
}

// Reassemble joins segments back into normalized document text, inserting a space
// wherever the offsets show one was consumed as a separator.
func Reassemble(segs []models.Segment) string {
	var b strings.Builder
	end := 0
	for i, seg := range segs {
		if i > 0 && seg.Offset > end {
			b.WriteByte(' ')
		}
		b.WriteString(seg.Text)
		end = seg.Offset + len(seg.Text)
	}
	return b.String()
}

// SliceSource serves a fixed list of blocks.
type SliceSource struct {
	blocks []models.Block
}

// NewSliceSource returns a BlockSource over blocks.
func NewSliceSource(blocks ...models.Block) *SliceSource {
	return &SliceSource{blocks: blocks}
}

// Next implements BlockSource.
func (s *SliceSource) Next() (models.Block, error) {
	if len(s.blocks) == 0 {
		return models.Block{}, io.EOF
	}
	b := s.blocks[0]
	s.blocks = s.blocks[1:]
	return b, nil
}

// span is a byte range [start, end) within a normalized paragraph.
type span struct {
	start, end int
}

func (s *Segmenter) split(p string) []span {
	whole := span{0, len(p)}
	if runeLen(p, whole) <= s.maxChars {
		return []span{whole}
	}
	var out []span
	for _, sp := range pack(p, sentenceSpans(p), s.maxChars) {
		if runeLen(p, sp) <= s.maxChars {
			out = append(out, sp)
			continue
		}
		for _, wp := range pack(p, wordSpans(p, sp), s.maxChars) {
			if runeLen(p, wp) <= s.maxChars {
				out = append(out, wp)
				continue
			}
			out = append(out, runeSpans(p, wp, s.maxChars)...)
		}
	}
	return out
}

// pack greedily merges adjacent units while the merged span stays within max runes.
func pack(p string, units []span, max int) []span {
	if len(units) == 0 {
		return nil
	}
	out := make([]span, 0, len(units))
	cur := units[0]
	for _, u := range units[1:] {
		merged := span{cur.start, u.end}
		if runeLen(p, merged) <= max {
			cur = merged
			continue
		}
		out = append(out, cur)
		cur = u
	}
	return append(out, cur)
}

func runeLen(p string, sp span) int {
	return utf8.RuneCountInString(p[sp.start:sp.end])
}

func isTerminator(r rune) bool {
	switch r {
	case '.', '!', '?', '。', '！', '？':
		return true
	}
	return false
}

// isWideTerminator reports terminators of scripts that do not put a space after a sentence.
func isWideTerminator(r rune) bool {
	return r == '。' || r == '！' || r == '？'
}

func isCloser(r rune) bool {
	switch r {
	case '"', '\'', ')', ']', '”', '’', '」', '』':
		return true
	}
	return false
}

// sentenceSpans splits a normalized paragraph after sentence terminators. A Latin terminator
// only ends a sentence when followed by a space, so "3.14" stays intact.
func sentenceSpans(p string) []span {
	var out []span
	start := 0
	for i := 0; i < len(p); {
		r, size := utf8.DecodeRuneInString(p[i:])
		i += size
		if !isTerminator(r) {
			continue
		}
		j := i
		for j < len(p) {
			c, csize := utf8.DecodeRuneInString(p[j:])
			if !isCloser(c) && !isTerminator(c) {
				break
			}
			j += csize
		}
		switch {
		case j == len(p):
			out = append(out, span{start, j})
			start = j
		case p[j] == ' ':
			out = append(out, span{start, j})
			start = j + 1
		case isWideTerminator(r):
			out = append(out, span{start, j})
			start = j
		}
		i = j
	}
	if start < len(p) {
		out = append(out, span{start, len(p)})
	}
	return out
}

func wordSpans(p string, sp span) []span {
	var out []span
	start := sp.start
	for i := sp.start; i < sp.end; i++ {
		if p[i] == ' ' {
			if i > start {
				out = append(out, span{start, i})
			}
			start = i + 1
		}
	}
	if start < sp.end {
		out = append(out, span{start, sp.end})
	}
	return out
}

// runeSpans cuts sp into consecutive pieces of at most max runes.
func runeSpans(p string, sp span, max int) []span {
	var out []span
	start, n := sp.start, 0
	for i := sp.start; i < sp.end; {
		_, size := utf8.DecodeRuneInString(p[i:])
		if n == max {
			out = append(out, span{start, i})
			start, n = i, 0
		}
		i += size
		n++
	}
	if start < sp.end {
		out = append(out, span{start, sp.end})
	}
	return out
}
