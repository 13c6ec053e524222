package sync

import (
	"fmt"
	"io"
	"os"
	"strings"
	"unicode/utf8"

	"golang.org/x/net/html/charset"

	"vendorsync/internal/feed"
)

// Legal similarity floor for approximate mapping-key matches. High on
// purpose: the fuzzy step only exists to absorb plural/singular and
// hyphenation noise, not to guess.
const fuzzyCutoff = 0.92

// MappingStrategy is the single, versioned category-resolution strategy: a
// normalized source-label to destination-label table applied exact-first,
// then by prefix/suffix, then by approximate match. Unmapped labels pass
// through unchanged.
type MappingStrategy struct {
	entries map[string]string
	keys    []string
}

// Header synonyms recognized (case/accents-insensitive) for the two
// semantically meaningful columns of a mapping table.
var (
	mapSrcHeaders = []string{
		"categoria de producto", "categoria", "origen", "source", "categoria origen",
	}
	mapDstHeaders = []string{
		"categoria final", "final", "destino", "mi categoria",
	}
)

// LoadMapping reads a delimited mapping table from disk. Delimiter and
// encoding are auto-detected; files without a recognizable header row are
// treated as two bare columns.
func LoadMapping(path string) (*MappingStrategy, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read mapping %s: %w", path, err)
	}
	text, err := decodeMappingText(raw)
	if err != nil {
		return nil, fmt.Errorf("decode mapping %s: %w", path, err)
	}

	rows, header, err := feed.ParseDelimited(text)
	if err != nil {
		return nil, fmt.Errorf("parse mapping %s: %w", path, err)
	}
	if header == nil {
		return NewMappingStrategy(nil), nil
	}

	srcIdx, dstIdx := matchHeaders(header)
	if srcIdx < 0 || dstIdx < 0 {
		// No recognizable header: first two columns, header row included.
		srcIdx, dstIdx = 0, 1
		rows = append([][]string{header}, rows...)
	}

	pairs := map[string]string{}
	for _, row := range rows {
		if len(row) <= srcIdx || len(row) <= dstIdx {
			continue
		}
		src := strings.TrimSpace(row[srcIdx])
		dst := strings.TrimSpace(row[dstIdx])
		if src == "" {
			continue
		}
		if dst == "" {
			dst = src
		}
		pairs[NormalizeLabel(src)] = dst
	}
	return NewMappingStrategy(pairs), nil
}

// matchHeaders locates the source and destination columns by synonym;
// either index is -1 when no header cell matches.
func matchHeaders(header []string) (srcIdx, dstIdx int) {
	srcIdx, dstIdx = -1, -1
	for i, h := range header {
		k := feed.NormKey(h)
		if srcIdx < 0 {
			for _, syn := range mapSrcHeaders {
				if k == feed.NormKey(syn) {
					srcIdx = i
					break
				}
			}
		}
		if dstIdx < 0 {
			for _, syn := range mapDstHeaders {
				if k == feed.NormKey(syn) {
					dstIdx = i
					break
				}
			}
		}
	}
	return srcIdx, dstIdx
}

func NewMappingStrategy(pairs map[string]string) *MappingStrategy {
	s := &MappingStrategy{entries: map[string]string{}}
	for k, v := range pairs {
		if _, seen := s.entries[k]; !seen {
			s.keys = append(s.keys, k)
		}
		s.entries[k] = v
	}
	return s
}

func (s *MappingStrategy) Len() int { return len(s.entries) }

// Apply maps one source label: exact normalized match, then prefix/suffix
// containment against the table keys, then approximate match above the
// cutoff. A miss returns the original label unchanged.
func (s *MappingStrategy) Apply(src string) string {
	if s == nil || len(s.entries) == 0 || strings.TrimSpace(src) == "" {
		return src
	}
	key := NormalizeLabel(src)
	if dst, ok := s.entries[key]; ok {
		return dst
	}
	for _, k := range s.keys {
		if strings.HasPrefix(key, k) || strings.HasSuffix(key, k) || strings.HasPrefix(k, key) {
			return s.entries[k]
		}
	}
	best, bestRatio := "", 0.0
	for _, k := range s.keys {
		if r := similarity(key, k); r >= fuzzyCutoff && r > bestRatio {
			best, bestRatio = k, r
		}
	}
	if best != "" {
		return s.entries[best]
	}
	return src
}

// NormalizeLabel prepares a category label for table lookup: exotic spaces
// normalized, accents stripped, lower-cased, "&" read as "y", slashes
// padded, whitespace collapsed, non-ASCII symbols dropped.
func NormalizeLabel(s string) string {
	t := strings.NewReplacer(" ", " ", " ", " ", " ", " ").Replace(s)
	t = strings.ToLower(feed.StripAccents(t))

	var b strings.Builder
	for _, ch := range t {
		switch {
		case ch == '&':
			b.WriteString(" y ")
		case ch == '/':
			b.WriteString(" / ")
		case ch < 128 && (isAlnum(ch) || strings.ContainsRune(" -_()", ch)):
			b.WriteRune(ch)
		case ch == '\t' || ch == '\n' || ch == '\r':
			b.WriteByte(' ')
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

func isAlnum(ch rune) bool {
	return (ch >= 'a' && ch <= 'z') || (ch >= '0' && ch <= '9')
}

// similarity is a SequenceMatcher-style ratio: twice the total length of
// the matching blocks over the combined length.
func similarity(a, b string) float64 {
	if len(a)+len(b) == 0 {
		return 1
	}
	m := matchLen(a, b)
	return 2 * float64(m) / float64(len(a)+len(b))
}

// matchLen sums the longest common substring and recurses on both sides of
// it, which is how the matching blocks of the classic ratio are built.
func matchLen(a, b string) int {
	ai, bi, size := longestCommonSubstring(a, b)
	if size == 0 {
		return 0
	}
	return size +
		matchLen(a[:ai], b[:bi]) +
		matchLen(a[ai+size:], b[bi+size:])
}

func longestCommonSubstring(a, b string) (ai, bi, size int) {
	if len(a) == 0 || len(b) == 0 {
		return 0, 0, 0
	}
	prev := make([]int, len(b)+1)
	cur := make([]int, len(b)+1)
	for i := 1; i <= len(a); i++ {
		for j := 1; j <= len(b); j++ {
			if a[i-1] == b[j-1] {
				cur[j] = prev[j-1] + 1
				if cur[j] > size {
					size = cur[j]
					ai, bi = i-size, j-size
				}
			} else {
				cur[j] = 0
			}
		}
		prev, cur = cur, prev
	}
	return ai, bi, size
}

func decodeMappingText(raw []byte) (string, error) {
	if utf8.Valid(raw) {
		return strings.TrimPrefix(string(raw), "\ufeff"), nil
	}
	for _, label := range []string{"windows-1252", "iso-8859-1"} {
		rdr, err := charset.NewReaderLabel(label, strings.NewReader(string(raw)))
		if err != nil {
			continue
		}
		decoded, err := io.ReadAll(rdr)
		if err != nil {
			continue
		}
		return string(decoded), nil
	}
	return "", fmt.Errorf("no known encoding matched")
}
