package prompt

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/xxxsen/bingio/internal/ai"
	"github.com/xxxsen/bingio/internal/retrieval"
)

var citationPattern = regexp.MustCompile(`(?i)\[source\s*(\d{1,6}(?:\s*,\s*\d{1,6})*)\]`)

// Citations returns the distinct source numbers cited in text, in order of first use.
// A marker may list several numbers, as in "[SOURCE 1, 3]".
func Citations(text string) []int {
	seen := make(map[int]struct{})
	res := make([]int, 0)
	for _, m := range citationPattern.FindAllStringSubmatch(text, -1) {
		for _, field := range strings.Split(m[1], ",") {
			n, err := strconv.Atoi(strings.TrimSpace(field))
			if err != nil {
				continue
			}
			if _, ok := seen[n]; ok {
				continue
			}
			seen[n] = struct{}{}
			res = append(res, n)
		}
	}
	return res
}

type markerState int

const (
	markerNone markerState = iota
	markerPartial
	markerFull
)

const (
	markerWord      = "source"
	maxMarkerDigits = 6
	maxMarkerLen    = 64
)

// scanMarker inspects s, which starts with '['. For a complete marker it also
// returns its length and the numbers it lists.
func scanMarker(s string) (markerState, int, []int) {
	i := 1
	for j := 0; j < len(markerWord); j++ {
		if i >= len(s) {
			return markerPartial, 0, nil
		}
		if lower(s[i]) != markerWord[j] {
			return markerNone, 0, nil
		}
		i++
	}
	var nums []int
	for {
		for i < len(s) && isSpace(s[i]) {
			i++
		}
		start := i
		for i < len(s) && s[i] >= '0' && s[i] <= '9' {
			i++
			if i-start > maxMarkerDigits {
				return markerNone, 0, nil
			}
		}
		for i < len(s) && isSpace(s[i]) && i > start {
			i++
		}
		if i >= len(s) {
			return markerPartial, 0, nil
		}
		if i == start {
			return markerNone, 0, nil
		}
		n, err := strconv.Atoi(strings.TrimSpace(s[start:i]))
		if err != nil {
			return markerNone, 0, nil
		}
		nums = append(nums, n)
		switch s[i] {
		case ']':
			return markerFull, i + 1, nums
		case ',':
			i++
		default:
			return markerNone, 0, nil
		}
	}
}

func lower(c byte) byte {
	if c >= 'A' && c <= 'Z' {
		return c + ('a' - 'A')
	}
	return c
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r'
}

type citationGuard struct {
	inner ai.TextStream
	gctx  *retrieval.GroundedContext
	buf   string
	err   error
}

// GuardCitations drops "[SOURCE n]" markers whose n is not a source of gctx.
// Markers split across increments are recognised.
func GuardCitations(s ai.TextStream, gctx *retrieval.GroundedContext) ai.TextStream {
	return &citationGuard{inner: s, gctx: gctx}
}

func (g *citationGuard) Next() (string, error) {
	for {
		if g.err != nil {
			if g.buf != "" {
				out := g.buf
				g.buf = ""
				return out, nil
			}
			return "", g.err
		}
		chunk, err := g.inner.Next()
		if err != nil {
			// a held back partial marker is plain text once the stream stops
			g.err = err
			continue
		}
		g.buf += chunk
		out := g.drain()
		if out != "" {
			return out, nil
		}
	}
}

// drain filters buf and keeps an undecided marker prefix for later.
func (g *citationGuard) drain() string {
	var sb strings.Builder
	s := g.buf
	for {
		idx := strings.IndexByte(s, '[')
		if idx < 0 {
			sb.WriteString(s)
			s = ""
			break
		}
		sb.WriteString(s[:idx])
		s = s[idx:]
		state, size, nums := scanMarker(s)
		if state == markerPartial && len(s) > maxMarkerLen {
			state = markerNone
		}
		switch state {
		case markerPartial:
			g.buf = s
			return sb.String()
		case markerFull:
			sb.WriteString(g.filterMarker(s[:size], nums))
			s = s[size:]
		default:
			sb.WriteByte('[')
			s = s[1:]
		}
	}
	g.buf = s
	return sb.String()
}

// filterMarker keeps the in-range numbers of a marker. A marker left with
// none is dropped.
func (g *citationGuard) filterMarker(marker string, nums []int) string {
	kept := make([]string, 0, len(nums))
	for _, n := range nums {
		if g.gctx.Has(n) {
			kept = append(kept, strconv.Itoa(n))
		}
	}
	switch {
	case len(kept) == 0:
		return ""
	case len(kept) == len(nums):
		return marker
	}
	return marker[:len(markerWord)+1] + " " + strings.Join(kept, ", ") + "]"
}

func (g *citationGuard) Close() error {
	return g.inner.Close()
}
