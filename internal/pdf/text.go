package pdf

import (
	"bytes"
	"cmp"
	"math"
	"slices"
	"strings"
	"unicode"
)

// maxFormDepth bounds nested form XObjects.
const maxFormDepth = 8

// Text returns the text drawn on page i (0-indexed), one line per row of
// text, top to bottom.
func (doc *Document) Text(i int) (string, error) {
	pg, err := doc.page(i)
	if err != nil {
		return "", err
	}
	in := &interpreter{doc: doc}
	in.run(doc.contents(pg), pg.Resources, identity, 0)
	return layoutText(in.runs), nil
}

// AllText returns the text of every page.
func (doc *Document) AllText() ([]string, error) {
	n, err := doc.NumPages()
	if err != nil {
		return nil, err
	}
	out := make([]string, n)
	for i := range out {
		if out[i], err = doc.Text(i); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// matrix is an affine transform [a b c d e f].
type matrix [6]float64

var identity = matrix{1, 0, 0, 1, 0, 0}

// mul returns m × n.
func (m matrix) mul(n matrix) matrix {
	return matrix{
		m[0]*n[0] + m[1]*n[2],
		m[0]*n[1] + m[1]*n[3],
		m[2]*n[0] + m[3]*n[2],
		m[2]*n[1] + m[3]*n[3],
		m[4]*n[0] + m[5]*n[2] + n[4],
		m[4]*n[1] + m[5]*n[3] + n[5],
	}
}

func translate(x, y float64) matrix { return matrix{1, 0, 0, 1, x, y} }

func matrixOf(args []*Object) (matrix, bool) {
	var m matrix
	if len(args) < 6 {
		return m, false
	}
	for i := range m {
		v, ok := args[len(args)-6+i].Number()
		if !ok {
			return m, false
		}
		m[i] = v
	}
	return m, true
}

// textRun is a string shown in one operation, in default user space.
type textRun struct {
	x, y  float64
	size  float64
	width float64
	text  string
}

type graphicsState struct {
	ctm     matrix
	font    *font
	size    float64
	charSp  float64
	wordSp  float64
	scale   float64
	leading float64
	rise    float64
}

type interpreter struct {
	doc  *Document
	runs []textRun
}

func (in *interpreter) run(content []byte, res Dict, ctm matrix, depth int) {
	fonts := in.doc.fonts(res)
	gs := graphicsState{ctm: ctm, font: defaultFont, size: 1, scale: 100}
	var stack []graphicsState
	tm, tlm := identity, identity

	p := newContentParser(content)
	var args []*Object
	for {
		p.skipSpace()
		if p.eof() {
			return
		}
		start := p.pos
		o, err := p.object()
		if err != nil {
			return
		}
		if p.pos != start {
			args = append(args, o)
			continue
		}
		op := p.word()
		if op == "" {
			p.pos++ // stray delimiter
			args = args[:0]
			continue
		}

		switch op {
		case "q":
			stack = append(stack, gs)
		case "Q":
			if n := len(stack); n > 0 {
				gs, stack = stack[n-1], stack[:n-1]
			}
		case "cm":
			if m, ok := matrixOf(args); ok {
				gs.ctm = m.mul(gs.ctm)
			}
		case "BT":
			tm, tlm = identity, identity
		case "Tf":
			if len(args) >= 2 {
				if f, ok := fonts[args[len(args)-2].Name]; ok {
					gs.font = f
				} else {
					gs.font = defaultFont
				}
				gs.size, _ = args[len(args)-1].Number()
			}
		case "Tc":
			gs.charSp = lastNumber(args)
		case "Tw":
			gs.wordSp = lastNumber(args)
		case "Tz":
			gs.scale = lastNumber(args)
		case "TL":
			gs.leading = lastNumber(args)
		case "Ts":
			gs.rise = lastNumber(args)
		case "Td", "TD":
			if len(args) >= 2 {
				tx, _ := args[len(args)-2].Number()
				ty, _ := args[len(args)-1].Number()
				if op == "TD" {
					gs.leading = -ty
				}
				tlm = translate(tx, ty).mul(tlm)
				tm = tlm
			}
		case "Tm":
			if m, ok := matrixOf(args); ok {
				tm, tlm = m, m
			}
		case "T*":
			tlm = translate(0, -gs.leading).mul(tlm)
			tm = tlm
		case "Tj", "'", `"`:
			if op != "Tj" {
				if op == `"` && len(args) >= 3 {
					gs.wordSp, _ = args[len(args)-3].Number()
					gs.charSp, _ = args[len(args)-2].Number()
				}
				tlm = translate(0, -gs.leading).mul(tlm)
				tm = tlm
			}
			if len(args) > 0 && args[len(args)-1].Kind == String {
				origin := tm
				var sb strings.Builder
				tm = in.show(&gs, tm, args[len(args)-1].Str, &sb)
				in.emit(&gs, origin, tm, sb.String())
			}
		case "TJ":
			if len(args) == 0 || args[len(args)-1].Kind != Array {
				break
			}
			origin := tm
			var sb strings.Builder
			for _, e := range args[len(args)-1].Array {
				if e.Kind == String {
					tm = in.show(&gs, tm, e.Str, &sb)
					continue
				}
				adj, ok := e.Number()
				if !ok {
					continue
				}
				// A large negative adjustment moves right by a word gap.
				if adj < -200 && sb.Len() > 0 && !strings.HasSuffix(sb.String(), " ") {
					sb.WriteByte(' ')
				}
				tm = translate(-adj/1000*gs.size*gs.scale/100, 0).mul(tm)
			}
			in.emit(&gs, origin, tm, sb.String())
		case "Do":
			if depth < maxFormDepth && len(args) > 0 {
				in.form(res, args[len(args)-1].Name, gs.ctm, depth)
			}
		case "BI":
			skipInlineImage(p)
		}
		args = args[:0]
	}
}

func lastNumber(args []*Object) float64 {
	if len(args) == 0 {
		return 0
	}
	v, _ := args[len(args)-1].Number()
	return v
}

// show decodes s into sb and returns the text matrix advanced past it.
func (in *interpreter) show(gs *graphicsState, tm matrix, s []byte, sb *strings.Builder) matrix {
	for _, g := range gs.font.glyphs(s) {
		sb.WriteString(g.text)
		adv := g.width/1000*gs.size + gs.charSp
		if !gs.font.twoByte && g.code == ' ' {
			adv += gs.wordSp
		}
		tm = translate(adv*gs.scale/100, 0).mul(tm)
	}
	return tm
}

// emit records a run from the text matrix before and after showing it.
func (in *interpreter) emit(gs *graphicsState, from, to matrix, text string) {
	if strings.TrimSpace(text) == "" {
		return
	}
	state := matrix{gs.size * gs.scale / 100, 0, 0, gs.size, 0, gs.rise}
	start := state.mul(from).mul(gs.ctm)
	end := state.mul(to).mul(gs.ctm)
	in.runs = append(in.runs, textRun{
		x:     start[4],
		y:     start[5],
		size:  math.Hypot(start[2], start[3]),
		width: math.Hypot(end[4]-start[4], end[5]-start[5]),
		text:  text,
	})
}

// form interprets a form XObject drawn with Do.
func (in *interpreter) form(res Dict, name string, ctm matrix, depth int) {
	xobj := in.doc.Resolve(in.doc.dict(res["XObject"])[name])
	if xobj.Kind != Stream || xobj.Dict.Name("Subtype") != "Form" {
		return
	}
	data, err := decode(xobj)
	if err != nil {
		return
	}
	m := identity
	if arr := in.doc.Resolve(xobj.Dict["Matrix"]); arr.Kind == Array {
		if fm, ok := matrixOf(arr.Array); ok {
			m = fm
		}
	}
	formRes := in.doc.dict(xobj.Dict["Resources"])
	if formRes == nil {
		formRes = res
	}
	in.run(data, formRes, m.mul(ctm), depth+1)
}

// skipInlineImage moves past BI ... ID <data> EI.
func skipInlineImage(p *parser) {
	i := bytes.Index(p.data[p.pos:], []byte("ID"))
	if i < 0 {
		p.pos = len(p.data)
		return
	}
	p.pos += i + len("ID") + 1
	for p.pos+2 <= len(p.data) {
		if p.hasPrefix("EI") && isWhitespace(p.data[p.pos-1]) &&
			(p.pos+2 == len(p.data) || isWhitespace(p.data[p.pos+2])) {
			p.pos += 2
			return
		}
		p.pos++
	}
	p.pos = len(p.data)
}

// layoutText orders runs into lines, top to bottom and left to right,
// joining runs on a line with a space where they are visibly apart.
func layoutText(runs []textRun) string {
	if len(runs) == 0 {
		return ""
	}
	slices.SortStableFunc(runs, func(a, b textRun) int { return cmp.Compare(b.y, a.y) })

	var lines [][]textRun
	var lineY float64
	for _, r := range runs {
		tol := math.Max(2, r.size*0.5)
		if len(lines) > 0 && math.Abs(lineY-r.y) < tol {
			lines[len(lines)-1] = append(lines[len(lines)-1], r)
			continue
		}
		lines = append(lines, []textRun{r})
		lineY = r.y
	}

	out := make([]string, 0, len(lines))
	for _, line := range lines {
		slices.SortStableFunc(line, func(a, b textRun) int { return cmp.Compare(a.x, b.x) })
		var sb strings.Builder
		for i, r := range line {
			text := clean(r.text)
			if i > 0 {
				prev := line[i-1]
				gap := r.x - (prev.x + prev.width)
				if gap > math.Max(prev.size, r.size)*0.2 &&
					!strings.HasSuffix(sb.String(), " ") && !strings.HasPrefix(text, " ") {
					sb.WriteByte(' ')
				}
			}
			sb.WriteString(text)
		}
		if s := strings.TrimSpace(sb.String()); s != "" {
			out = append(out, s)
		}
	}
	return strings.Join(out, "\n")
}

// clean drops control characters and collapses runs of spaces.
func clean(s string) string {
	var sb strings.Builder
	space := false
	for _, r := range s {
		switch {
		case unicode.IsSpace(r):
			if !space {
				sb.WriteByte(' ')
			}
			space = true
		case unicode.IsControl(r), r == unicode.ReplacementChar:
		default:
			space = false
			sb.WriteRune(r)
		}
	}
	return sb.String()
}
