package pdf

import (
	"strconv"
	"strings"
	"unicode/utf16"

	"golang.org/x/text/encoding/charmap"
)

// font decodes the codes of one font resource and measures their advance.
// Mapping priority is ToUnicode, then /Differences, then the base encoding.
type font struct {
	twoByte      bool
	base         *charmap.Charmap
	differences  map[byte]rune
	toUnicode    map[uint32]string
	ranges       []cmapRange
	widths       map[uint32]float64 // glyph space, 1/1000 em
	defaultWidth float64
}

type cmapRange struct {
	low, high uint32
	dst       []byte // UTF-16BE of the first code in the range
}

// glyph is one decoded code.
type glyph struct {
	code  uint32
	text  string
	width float64
}

var defaultFont = &font{base: charmap.Windows1252, defaultWidth: 500}

// fonts returns the fonts named in a resource dictionary.
func (doc *Document) fonts(res Dict) map[string]*font {
	out := make(map[string]*font)
	for name, ref := range doc.dict(res["Font"]) {
		obj := doc.Resolve(ref)
		if f, ok := doc.fontCache[obj]; ok {
			out[name] = f
			continue
		}
		f := doc.loadFont(doc.dict(obj))
		doc.fontCache[obj] = f
		out[name] = f
	}
	return out
}

func (doc *Document) loadFont(d Dict) *font {
	f := &font{base: charmap.Windows1252, defaultWidth: 500}
	if d == nil {
		return f
	}

	enc := doc.Resolve(d["Encoding"])
	switch enc.Kind {
	case Name:
		f.applyEncoding(enc.Name)
	case Dictionary:
		f.applyEncoding(enc.Dict.Name("BaseEncoding"))
		f.applyDifferences(doc.Resolve(enc.Dict["Differences"]))
	}

	if d.Name("Subtype") == "Type0" {
		f.twoByte = true
		f.defaultWidth = 1000
		if desc := doc.Resolve(d["DescendantFonts"]); desc.Kind == Array && len(desc.Array) > 0 {
			doc.loadCIDWidths(f, doc.dict(desc.Array[0]))
		}
	} else {
		doc.loadSimpleWidths(f, d)
	}

	if cm := doc.Resolve(d["ToUnicode"]); cm.Kind == Stream {
		if data, err := decode(cm); err == nil {
			f.toUnicode, f.ranges = parseCMap(data)
		}
	}
	return f
}

func (f *font) applyEncoding(name string) {
	switch name {
	case "MacRomanEncoding":
		f.base = charmap.Macintosh
	case "StandardEncoding", "PDFDocEncoding":
		f.base = charmap.ISO8859_1
	case "WinAnsiEncoding":
		f.base = charmap.Windows1252
	}
}

func (f *font) applyDifferences(diffs *Object) {
	if diffs.Kind != Array {
		return
	}
	f.differences = make(map[byte]rune)
	code := 0
	for _, o := range diffs.Array {
		switch o.Kind {
		case Int:
			code = int(o.Int)
		case Name:
			if r, ok := glyphRune(o.Name); ok && code >= 0 && code < 256 {
				f.differences[byte(code)] = r
			}
			code++
		}
	}
}

func (doc *Document) loadSimpleWidths(f *font, d Dict) {
	widths := doc.Resolve(d["Widths"])
	if widths.Kind != Array {
		if strings.HasPrefix(d.Name("BaseFont"), "Helvetica") {
			f.widths = helveticaWidths
		}
		return
	}
	first, _ := doc.Resolve(d["FirstChar"]).Number()
	f.widths = make(map[uint32]float64, len(widths.Array))
	for i, w := range widths.Array {
		if v, ok := doc.Resolve(w).Number(); ok {
			f.widths[uint32(int(first)+i)] = v
		}
	}
}

// loadCIDWidths reads /DW and /W from a descendant CID font. /W holds
// runs of "c [w1 w2 ...]" and "cfirst clast w".
func (doc *Document) loadCIDWidths(f *font, d Dict) {
	if d == nil {
		return
	}
	if dw, ok := doc.Resolve(d["DW"]).Number(); ok {
		f.defaultWidth = dw
	}
	w := doc.Resolve(d["W"])
	if w.Kind != Array {
		return
	}
	f.widths = make(map[uint32]float64)
	items := w.Array
	for i := 0; i+1 < len(items); {
		c, ok := doc.Resolve(items[i]).Number()
		if !ok {
			return
		}
		next := doc.Resolve(items[i+1])
		if next.Kind == Array {
			for j, e := range next.Array {
				if v, ok := doc.Resolve(e).Number(); ok {
					f.widths[uint32(c)+uint32(j)] = v
				}
			}
			i += 2
			continue
		}
		if i+2 >= len(items) {
			return
		}
		last, _ := next.Number()
		v, _ := doc.Resolve(items[i+2]).Number()
		if last-c <= 0xFFFF {
			for code := uint32(c); code <= uint32(last); code++ {
				f.widths[code] = v
			}
		}
		i += 3
	}
}

// glyphs splits a shown string into codes.
func (f *font) glyphs(s []byte) []glyph {
	step := 1
	if f.twoByte {
		step = 2
	}
	out := make([]glyph, 0, len(s)/step)
	for i := 0; i+step <= len(s); i += step {
		code := uint32(s[i])
		if step == 2 {
			code = code<<8 | uint32(s[i+1])
		}
		w, ok := f.widths[code]
		if !ok {
			w = f.defaultWidth
		}
		out = append(out, glyph{code: code, text: f.unicode(code), width: w})
	}
	return out
}

func (f *font) unicode(code uint32) string {
	if s, ok := f.toUnicode[code]; ok {
		return s
	}
	for _, r := range f.ranges {
		if code >= r.low && code <= r.high {
			return rangeText(r, code)
		}
	}
	if f.twoByte {
		return ""
	}
	if r, ok := f.differences[byte(code)]; ok {
		return string(r)
	}
	return string(f.base.DecodeByte(byte(code)))
}

// rangeText offsets the last UTF-16 unit of a bfrange destination.
func rangeText(r cmapRange, code uint32) string {
	dst := append([]byte(nil), r.dst...)
	if len(dst) >= 2 {
		last := uint32(dst[len(dst)-2])<<8 | uint32(dst[len(dst)-1])
		last += code - r.low
		dst[len(dst)-2], dst[len(dst)-1] = byte(last>>8), byte(last)
	}
	return utf16BE(dst)
}

// parseCMap reads the bfchar and bfrange sections of a ToUnicode CMap.
func parseCMap(data []byte) (map[uint32]string, []cmapRange) {
	chars := make(map[uint32]string)
	var ranges []cmapRange
	p := newContentParser(data)
	var operands []*Object
	for {
		p.skipSpace()
		if p.eof() {
			break
		}
		start := p.pos
		o, err := p.object()
		if err != nil {
			break
		}
		if p.pos != start {
			operands = append(operands, o)
			continue
		}
		op := p.word()
		if op == "" {
			p.pos++
			continue
		}
		switch op {
		case "endbfchar":
			for i := 0; i+1 < len(operands); i += 2 {
				src, dst := operands[i], operands[i+1]
				if src.Kind == String && dst.Kind == String {
					chars[codeOf(src.Str)] = utf16BE(dst.Str)
				}
			}
		case "endbfrange":
			for i := 0; i+2 < len(operands); i += 3 {
				lo, hi, dst := operands[i], operands[i+1], operands[i+2]
				if lo.Kind != String || hi.Kind != String {
					continue
				}
				low, high := codeOf(lo.Str), codeOf(hi.Str)
				if high < low || high-low > 0xFFFF {
					continue
				}
				switch dst.Kind {
				case String:
					ranges = append(ranges, cmapRange{low: low, high: high, dst: dst.Str})
				case Array:
					for j, e := range dst.Array {
						if e.Kind == String && low+uint32(j) <= high {
							chars[low+uint32(j)] = utf16BE(e.Str)
						}
					}
				}
			}
		}
		operands = operands[:0]
	}
	return chars, ranges
}

func codeOf(b []byte) uint32 {
	var c uint32
	for _, x := range b {
		c = c<<8 | uint32(x)
	}
	return c
}

func utf16BE(b []byte) string {
	units := make([]uint16, 0, len(b)/2)
	for i := 0; i+1 < len(b); i += 2 {
		units = append(units, uint16(b[i])<<8|uint16(b[i+1]))
	}
	return string(utf16.Decode(units))
}

// decodeTextString decodes a text string outside content streams, such as
// document information entries.
func decodeTextString(b []byte) string {
	if len(b) >= 2 && b[0] == 0xFE && b[1] == 0xFF {
		return utf16BE(b[2:])
	}
	var sb strings.Builder
	for _, c := range b {
		sb.WriteRune(charmap.Windows1252.DecodeByte(c))
	}
	return sb.String()
}

// glyphRune maps a glyph name from a /Differences array.
func glyphRune(name string) (rune, bool) {
	if r, ok := glyphNames[name]; ok {
		return r, true
	}
	if len(name) == 1 {
		return rune(name[0]), true
	}
	if hex, ok := strings.CutPrefix(name, "uni"); ok && len(hex) == 4 {
		if v, err := strconv.ParseUint(hex, 16, 32); err == nil {
			return rune(v), true
		}
	}
	return 0, false
}

var glyphNames = map[string]rune{
	"space": ' ', "exclam": '!', "quotedbl": '"', "numbersign": '#',
	"dollar": '$', "percent": '%', "ampersand": '&', "quotesingle": '\'',
	"parenleft": '(', "parenright": ')', "asterisk": '*', "plus": '+',
	"comma": ',', "hyphen": '-', "period": '.', "slash": '/',
	"zero": '0', "one": '1', "two": '2', "three": '3', "four": '4',
	"five": '5', "six": '6', "seven": '7', "eight": '8', "nine": '9',
	"colon": ':', "semicolon": ';', "less": '<', "equal": '=',
	"greater": '>', "question": '?', "at": '@', "bracketleft": '[',
	"backslash": '\\', "bracketright": ']', "underscore": '_',
	"braceleft": '{', "bar": '|', "braceright": '}', "asciitilde": '~',
	"bullet": '•', "endash": '–', "emdash": '—', "ellipsis": '…',
	"quoteleft": '‘', "quoteright": '’', "quotedblleft": '“',
	"quotedblright": '”', "Euro": '€', "copyright": '©',
	"registered": '®', "trademark": '™', "degree": '°',
	"guilsinglleft": '‹', "guilsinglright": '›',
}

// helveticaWidths are the standard Helvetica advance widths for printable
// ASCII; the standard fonts ship without a /Widths array.
var helveticaWidths = func() map[uint32]float64 {
	w := []float64{
		278, 278, 355, 556, 556, 889, 667, 191, 333, 333, 389, 584, 278, 333, 278, 278, // 32-47
		556, 556, 556, 556, 556, 556, 556, 556, 556, 556, 278, 278, 584, 584, 584, 556, // 48-63
		1015, 667, 667, 722, 722, 667, 611, 778, 722, 278, 500, 667, 556, 833, 722, 778, // 64-79
		667, 778, 722, 667, 611, 722, 667, 944, 667, 667, 611, 278, 278, 278, 469, 556, // 80-95
		333, 556, 556, 500, 556, 556, 278, 556, 556, 222, 222, 500, 222, 833, 556, 556, // 96-111
		556, 556, 333, 500, 278, 556, 500, 722, 500, 500, 500, 334, 260, 334, 584, // 112-126
	}
	m := make(map[uint32]float64, len(w))
	for i, v := range w {
		m[uint32(32+i)] = v
	}
	return m
}()
