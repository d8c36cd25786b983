package pdf

import (
	"bytes"
	"errors"
	"strconv"
)

const maxNesting = 100

var errNesting = errors.New("pdf: exceeded maximum nesting depth")

// parser is a recursive-descent parser over PDF syntax. With refs unset it
// reads content streams, where "N G R" is never a reference.
type parser struct {
	data  []byte
	pos   int
	depth int
	refs  bool
}

func newParser(data []byte, pos int) *parser {
	return &parser{data: data, pos: pos, refs: true}
}

func newContentParser(data []byte) *parser {
	return &parser{data: data}
}

func isWhitespace(b byte) bool {
	switch b {
	case ' ', '\t', '\r', '\n', '\f', 0:
		return true
	}
	return false
}

func isDelim(b byte) bool {
	switch b {
	case '(', ')', '<', '>', '[', ']', '{', '}', '/', '%':
		return true
	}
	return false
}

// skipSpace skips whitespace and comments.
func (p *parser) skipSpace() {
	for p.pos < len(p.data) {
		c := p.data[p.pos]
		switch {
		case c == '%':
			for p.pos < len(p.data) && p.data[p.pos] != '\n' && p.data[p.pos] != '\r' {
				p.pos++
			}
		case isWhitespace(c):
			p.pos++
		default:
			return
		}
	}
}

func (p *parser) eof() bool { return p.pos >= len(p.data) }

func (p *parser) hasPrefix(s string) bool {
	return bytes.HasPrefix(p.data[p.pos:], []byte(s))
}

// word reads a run of regular characters.
func (p *parser) word() string {
	start := p.pos
	for p.pos < len(p.data) && !isWhitespace(p.data[p.pos]) && !isDelim(p.data[p.pos]) {
		p.pos++
	}
	return string(p.data[start:p.pos])
}

// object parses one object at the current position. Bare words other
// than true, false and null are not objects; object reports them as
// Null without consuming them.
func (p *parser) object() (*Object, error) {
	if p.depth > maxNesting {
		return nil, errNesting
	}
	p.depth++
	defer func() { p.depth-- }()

	p.skipSpace()
	if p.eof() {
		return nullObject, nil
	}

	switch c := p.data[p.pos]; {
	case c == '(':
		return p.literalString(), nil
	case c == '<' && p.hasPrefix("<<"):
		return p.dictionary()
	case c == '<':
		return p.hexString(), nil
	case c == '/':
		return &Object{Kind: Name, Name: p.name()}, nil
	case c == '[':
		return p.array()
	case c == '+' || c == '-' || c == '.' || (c >= '0' && c <= '9'):
		return p.number(), nil
	}

	save := p.pos
	switch p.word() {
	case "true":
		return &Object{Kind: Bool, Bool: true}, nil
	case "false":
		return &Object{Kind: Bool}, nil
	case "null":
		return nullObject, nil
	}
	p.pos = save
	return nullObject, nil
}

func (p *parser) literalString() *Object {
	p.pos++ // (
	var buf bytes.Buffer
	depth := 1
	for p.pos < len(p.data) {
		c := p.data[p.pos]
		p.pos++
		switch c {
		case '(':
			depth++
		case ')':
			depth--
			if depth == 0 {
				return &Object{Kind: String, Str: buf.Bytes()}
			}
		case '\\':
			if p.eof() {
				continue
			}
			esc := p.data[p.pos]
			p.pos++
			switch esc {
			case 'n':
				buf.WriteByte('\n')
			case 'r':
				buf.WriteByte('\r')
			case 't':
				buf.WriteByte('\t')
			case 'b':
				buf.WriteByte('\b')
			case 'f':
				buf.WriteByte('\f')
			case '\r':
				if !p.eof() && p.data[p.pos] == '\n' {
					p.pos++
				}
			case '\n':
			default:
				if esc >= '0' && esc <= '7' {
					v := int(esc - '0')
					for i := 0; i < 2 && !p.eof() && p.data[p.pos] >= '0' && p.data[p.pos] <= '7'; i++ {
						v = v*8 + int(p.data[p.pos]-'0')
						p.pos++
					}
					buf.WriteByte(byte(v))
				} else {
					buf.WriteByte(esc)
				}
			}
			continue
		}
		buf.WriteByte(c)
	}
	return &Object{Kind: String, Str: buf.Bytes()}
}

func (p *parser) hexString() *Object {
	p.pos++ // <
	var digits []byte
	for p.pos < len(p.data) && p.data[p.pos] != '>' {
		if c := p.data[p.pos]; !isWhitespace(c) {
			digits = append(digits, c)
		}
		p.pos++
	}
	if !p.eof() {
		p.pos++ // >
	}
	return &Object{Kind: String, Str: decodeHex(digits)}
}

func decodeHex(digits []byte) []byte {
	if len(digits)%2 == 1 {
		digits = append(digits, '0')
	}
	out := make([]byte, len(digits)/2)
	for i := range out {
		out[i] = hexVal(digits[2*i])<<4 | hexVal(digits[2*i+1])
	}
	return out
}

func hexVal(b byte) byte {
	switch {
	case b >= '0' && b <= '9':
		return b - '0'
	case b >= 'a' && b <= 'f':
		return b - 'a' + 10
	case b >= 'A' && b <= 'F':
		return b - 'A' + 10
	}
	return 0
}

// name reads /Name and decodes #XX escapes.
func (p *parser) name() string {
	p.pos++ // /
	raw := p.word()
	if !bytes.ContainsRune([]byte(raw), '#') {
		return raw
	}
	var buf bytes.Buffer
	for i := 0; i < len(raw); i++ {
		if raw[i] == '#' && i+2 < len(raw) {
			buf.WriteByte(hexVal(raw[i+1])<<4 | hexVal(raw[i+2]))
			i += 2
			continue
		}
		buf.WriteByte(raw[i])
	}
	return buf.String()
}

func (p *parser) array() (*Object, error) {
	p.pos++ // [
	arr := []*Object{}
	for {
		p.skipSpace()
		if p.eof() {
			break
		}
		if p.data[p.pos] == ']' {
			p.pos++
			break
		}
		start := p.pos
		o, err := p.object()
		if err != nil {
			return nil, err
		}
		if p.pos == start {
			p.pos++ // stray token
			continue
		}
		arr = append(arr, o)
	}
	return &Object{Kind: Array, Array: arr}, nil
}

// dictionary parses <<...>> and a stream body following it, if any.
func (p *parser) dictionary() (*Object, error) {
	p.pos += 2 // <<
	d := make(Dict)
	for {
		p.skipSpace()
		if p.eof() {
			break
		}
		if p.hasPrefix(">>") {
			p.pos += 2
			break
		}
		if p.data[p.pos] != '/' {
			p.pos++
			continue
		}
		key := p.name()
		val, err := p.object()
		if err != nil {
			return nil, err
		}
		d[key] = val
	}

	save := p.pos
	p.skipSpace()
	if !p.hasPrefix("stream") {
		p.pos = save
		return &Object{Kind: Dictionary, Dict: d}, nil
	}
	p.pos += len("stream")
	if !p.eof() && p.data[p.pos] == '\r' {
		p.pos++
	}
	if !p.eof() && p.data[p.pos] == '\n' {
		p.pos++
	}

	start := p.pos
	end := -1
	if n, ok := d.Int("Length"); ok && d["Length"].Kind != Ref && n >= 0 && start+int(n) <= len(p.data) {
		end = start + int(n)
		if !bytes.HasPrefix(bytes.TrimLeft(p.data[end:], "\r\n \t"), []byte("endstream")) {
			end = -1
		}
	}
	if end < 0 {
		i := bytes.Index(p.data[start:], []byte("endstream"))
		if i < 0 {
			i = len(p.data) - start
		}
		end = start + i
		for end > start && (p.data[end-1] == '\n' || p.data[end-1] == '\r') {
			end--
		}
	}
	p.pos = end
	p.skipSpace()
	if p.hasPrefix("endstream") {
		p.pos += len("endstream")
	}
	return &Object{Kind: Stream, Dict: d, Stream: p.data[start:end]}, nil
}

// number parses a number, or an indirect reference when refs are enabled.
func (p *parser) number() *Object {
	tok := p.word()
	n, errInt := strconv.ParseInt(tok, 10, 64)
	if errInt == nil && p.refs {
		save := p.pos
		p.skipSpace()
		gen, errGen := strconv.Atoi(p.word())
		p.skipSpace()
		if errGen == nil && !p.eof() && p.data[p.pos] == 'R' &&
			(p.pos+1 >= len(p.data) || isWhitespace(p.data[p.pos+1]) || isDelim(p.data[p.pos+1])) {
			p.pos++
			return &Object{Kind: Ref, Ref: Reference{Number: int(n), Gen: gen}}
		}
		p.pos = save
	}
	if errInt == nil {
		return &Object{Kind: Int, Int: n}
	}
	if f, err := strconv.ParseFloat(tok, 64); err == nil {
		return &Object{Kind: Real, Real: f}
	}
	return &Object{Kind: Real}
}
