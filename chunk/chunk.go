// Package chunk splits normalized document text into overlapping units.
//
// Splitting is recursive over an ordered list of boundary markers:
// paragraph break, line break, sentence terminator, whitespace. Text is cut
// on the coarsest marker that produces pieces no longer than the target
// size, and the pieces are packed greedily back up to the target. Pieces
// that are still too large are split again with the next finer marker.
// Markers stay attached to the piece they terminate, so the cores of the
// returned units concatenate back to the input byte for byte.
//
// Sizes are counted in runes. A single word longer than the target is kept
// whole; only a whitespace-free run longer than twice the target is hard
// cut, and cuts always fall on rune boundaries.
package chunk

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/poiesic/lumina/core"
)

const (
	// DefaultTarget is the default core size in runes.
	DefaultTarget = 500

	// DefaultOverlap is the default number of runes repeated from the
	// previous unit.
	DefaultOverlap = 50
)

// Unit is one chunk of a document.
type Unit struct {
	// Position is the zero-based index of the unit in the document.
	Position int

	// Start and End are the byte offsets of Core in the input.
	Start, End int

	// Core is the non-overlapping span of the input covered by this unit.
	Core string

	// Text is the overlap prefix followed by Core. This is what gets embedded.
	Text string
}

// Splitter cuts text into units of a fixed target size.
type Splitter struct {
	target  int
	overlap int
}

// New creates a Splitter. Target must be positive and overlap must be
// smaller than target.
func New(target, overlap int) (*Splitter, error) {
	if target <= 0 {
		return nil, fmt.Errorf("%w: chunk target must be positive, got %d", core.ErrConfiguration, target)
	}
	if overlap < 0 || overlap >= target {
		return nil, fmt.Errorf("%w: chunk overlap must be in [0, %d), got %d", core.ErrConfiguration, target, overlap)
	}
	return &Splitter{target: target, overlap: overlap}, nil
}

// Split is a convenience wrapper that clamps out of range parameters
// instead of failing.
func Split(text string, target, overlap int) []Unit {
	if target <= 0 {
		target = DefaultTarget
	}
	overlap = max(0, min(overlap, target-1))
	s := &Splitter{target: target, overlap: overlap}
	return s.Split(text)
}

// Target returns the configured core size.
func (s *Splitter) Target() int { return s.target }

// Overlap returns the configured overlap size.
func (s *Splitter) Overlap() int { return s.overlap }

// Split cuts text into units. The result is empty only for empty input.
func (s *Splitter) Split(text string) []Unit {
	if text == "" {
		return nil
	}

	pieces := s.split(text, 0)
	units := make([]Unit, 0, len(pieces))
	offset := 0
	for i, piece := range pieces {
		start, end := offset, offset+len(piece)
		units = append(units, Unit{
			Position: i,
			Start:    start,
			End:      end,
			Core:     piece,
			Text:     s.prefix(text, start) + piece,
		})
		offset = end
	}
	return units
}

// split returns consecutive pieces of text, each within target unless it
// is indivisible.
func (s *Splitter) split(text string, level int) []string {
	if runeLen(text) <= s.target {
		return []string{text}
	}
	for ; level < len(markers); level++ {
		if pieces := markers[level](text); len(pieces) > 1 {
			return s.pack(pieces, level)
		}
	}
	return s.cut(text)
}

// pack merges adjacent small pieces up to target. Oversized pieces are
// split at the next level and emitted on their own.
func (s *Splitter) pack(pieces []string, level int) []string {
	var (
		out    []string
		cur    strings.Builder
		curLen int
	)
	flush := func() {
		if cur.Len() > 0 {
			out = append(out, cur.String())
			cur.Reset()
			curLen = 0
		}
	}

	for _, p := range pieces {
		n := runeLen(p)
		if n > s.target {
			flush()
			out = append(out, s.split(p, level+1)...)
			continue
		}
		if curLen+n > s.target {
			flush()
		}
		cur.WriteString(p)
		curLen += n
	}
	flush()
	return out
}

// cut handles text with no usable marker left. A run up to twice the
// target is treated as one word and kept whole.
func (s *Splitter) cut(text string) []string {
	if runeLen(text) <= 2*s.target {
		return []string{text}
	}
	var out []string
	for text != "" {
		n, i := 0, 0
		for i < len(text) && n < s.target {
			_, size := utf8.DecodeRuneInString(text[i:])
			i += size
			n++
		}
		out = append(out, text[:i])
		text = text[i:]
	}
	return out
}

// prefix returns up to overlap runes of text ending at byte offset end,
// trimmed forward to a word start when it would begin mid-word.
func (s *Splitter) prefix(text string, end int) string {
	if s.overlap == 0 || end == 0 {
		return ""
	}
	start, n := end, 0
	for start > 0 && n < s.overlap {
		_, size := utf8.DecodeLastRuneInString(text[:start])
		start -= size
		n++
	}
	p := text[start:end]
	if start > 0 {
		before, _ := utf8.DecodeLastRuneInString(text[:start])
		first, _ := utf8.DecodeRuneInString(p)
		if !unicode.IsSpace(before) && !unicode.IsSpace(first) {
			if i := strings.IndexFunc(p, unicode.IsSpace); i >= 0 {
				p = strings.TrimLeftFunc(p[i:], unicode.IsSpace)
			}
		}
	}
	return p
}

// markers are tried coarsest first.
var markers = []func(string) []string{
	splitAfter("\n\n"),
	splitAfter("\n"),
	splitAfter(". ", "! ", "? "),
	splitAfterSpace,
}

// splitAfter cuts text after every occurrence of any separator.
func splitAfter(seps ...string) func(string) []string {
	return func(text string) []string {
		var out []string
		last := 0
		for i := 0; i < len(text); {
			matched := false
			for _, sep := range seps {
				if strings.HasPrefix(text[i:], sep) {
					i += len(sep)
					out = append(out, text[last:i])
					last = i
					matched = true
					break
				}
			}
			if !matched {
				i++
			}
		}
		if last < len(text) {
			out = append(out, text[last:])
		}
		return out
	}
}

// splitAfterSpace cuts text after every run of whitespace.
func splitAfterSpace(text string) []string {
	var out []string
	last := 0
	inSpace := false
	for i, r := range text {
		space := unicode.IsSpace(r)
		if inSpace && !space {
			out = append(out, text[last:i])
			last = i
		}
		inSpace = space
	}
	if last < len(text) {
		out = append(out, text[last:])
	}
	return out
}

func runeLen(s string) int {
	return utf8.RuneCountInString(s)
}
