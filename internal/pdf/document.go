package pdf

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"
)

// ErrNotPDF is returned by Load for data without a %PDF- header.
var ErrNotPDF = errors.New("pdf: missing %PDF- header")

// Document is a parsed PDF file.
//
// Objects are located by scanning the file body rather than trusting the
// cross-reference table, so documents with stale offsets still load. Later
// definitions of an object number win, as with incremental updates.
type Document struct {
	data      []byte
	objects   map[int]*Object
	trailer   Dict
	pages     []*Page
	fontCache map[*Object]*font
}

// Page is a leaf of the page tree with inherited attributes applied.
type Page struct {
	Dict      Dict
	MediaBox  [4]float64
	Rotate    int
	Resources Dict
}

// PageInfo holds the geometry of a page in points.
type PageInfo struct {
	Width    float64
	Height   float64
	Rotation int
}

// Open reads and parses a PDF file.
func Open(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("pdf: reading file: %w", err)
	}
	return Load(data)
}

// Load parses a PDF from raw bytes.
func Load(data []byte) (*Document, error) {
	if !bytes.HasPrefix(data, []byte("%PDF-")) {
		return nil, ErrNotPDF
	}
	doc := &Document{
		data:      data,
		objects:   make(map[int]*Object),
		fontCache: make(map[*Object]*font),
	}
	doc.scan()
	doc.expandObjectStreams()
	doc.trailer = doc.findTrailer()
	if doc.trailer == nil {
		return nil, errors.New("pdf: no document catalog")
	}
	return doc, nil
}

// Version returns the version from the file header, e.g. "1.7".
func (doc *Document) Version() string {
	line := doc.data[len("%PDF-"):]
	if i := bytes.IndexAny(line, "\r\n"); i >= 0 {
		line = line[:i]
	}
	return strings.TrimSpace(string(line))
}

var objHeader = regexp.MustCompile(`(\d+)\s+\d+\s+obj\b`)

// scan indexes every "N G obj" definition in the file body. Parsing each
// object moves past its stream, so stream bytes are never matched.
func (doc *Document) scan() {
	pos := 0
	for pos < len(doc.data) {
		loc := objHeader.FindSubmatchIndex(doc.data[pos:])
		if loc == nil {
			return
		}
		num, err := strconv.Atoi(string(doc.data[pos+loc[2] : pos+loc[3]]))
		start := pos + loc[1]
		if err != nil {
			pos = start
			continue
		}
		p := newParser(doc.data, start)
		obj, err := p.object()
		if err != nil || p.pos == start {
			pos = start
			continue
		}
		doc.objects[num] = obj
		pos = p.pos
	}
}

// expandObjectStreams indexes objects stored in /Type /ObjStm streams.
// Objects defined directly in the file take precedence.
func (doc *Document) expandObjectStreams() {
	for _, o := range doc.objects {
		if o.Kind != Stream || o.Dict.Name("Type") != "ObjStm" {
			continue
		}
		data, err := decode(o)
		if err != nil {
			continue
		}
		n, _ := o.Dict.Int("N")
		first, _ := o.Dict.Int("First")
		hp := newContentParser(data)
		type entry struct{ num, off int }
		entries := make([]entry, 0, n)
		for i := int64(0); i < n; i++ {
			hp.skipSpace()
			num, err1 := strconv.Atoi(hp.word())
			hp.skipSpace()
			off, err2 := strconv.Atoi(hp.word())
			if err1 != nil || err2 != nil {
				break
			}
			entries = append(entries, entry{num, off})
		}
		for _, e := range entries {
			if _, ok := doc.objects[e.num]; ok {
				continue
			}
			at := int(first) + e.off
			if at < 0 || at >= len(data) {
				continue
			}
			if obj, err := newParser(data, at).object(); err == nil {
				doc.objects[e.num] = obj
			}
		}
	}
}

// findTrailer returns the dictionary naming the catalog: the last trailer
// dictionary, the last cross-reference stream, or a synthetic one built
// from a /Type /Catalog object.
func (doc *Document) findTrailer() Dict {
	if i := bytes.LastIndex(doc.data, []byte("trailer")); i >= 0 {
		p := newParser(doc.data, i+len("trailer"))
		if o, err := p.object(); err == nil && o.Kind == Dictionary && o.Dict["Root"] != nil {
			return o.Dict
		}
	}
	var xref, catalog *Object
	var xrefNum, catalogNum int
	for num, o := range doc.objects {
		if o.Kind != Dictionary && o.Kind != Stream {
			continue
		}
		switch o.Dict.Name("Type") {
		case "XRef":
			if o.Dict["Root"] != nil && (xref == nil || num > xrefNum) {
				xref, xrefNum = o, num
			}
		case "Catalog":
			if catalog == nil || num > catalogNum {
				catalog, catalogNum = o, num
			}
		}
	}
	if xref != nil {
		return xref.Dict
	}
	if catalog != nil {
		return Dict{"Root": &Object{Kind: Ref, Ref: Reference{Number: catalogNum}}}
	}
	return nil
}

// Resolve follows indirect references until it reaches a direct object.
// Missing objects resolve to null.
func (doc *Document) Resolve(o *Object) *Object {
	for i := 0; o != nil && o.Kind == Ref; i++ {
		if i > maxNesting {
			return nullObject
		}
		next, ok := doc.objects[o.Ref.Number]
		if !ok {
			return nullObject
		}
		o = next
	}
	if o == nil {
		return nullObject
	}
	return o
}

func (doc *Document) dict(o *Object) Dict {
	o = doc.Resolve(o)
	if o.Kind == Dictionary || o.Kind == Stream {
		return o.Dict
	}
	return nil
}

// Info returns the string entries of the document information dictionary.
func (doc *Document) Info() map[string]string {
	info := make(map[string]string)
	for k, v := range doc.dict(doc.trailer["Info"]) {
		if v = doc.Resolve(v); v.Kind == String {
			info[k] = decodeTextString(v.Str)
		}
	}
	return info
}

// Pages returns the leaves of the page tree in document order.
func (doc *Document) Pages() ([]*Page, error) {
	if doc.pages != nil {
		return doc.pages, nil
	}
	catalog := doc.dict(doc.trailer["Root"])
	if catalog == nil {
		return nil, errors.New("pdf: catalog is not a dictionary")
	}
	root := doc.dict(catalog["Pages"])
	if root == nil {
		return nil, errors.New("pdf: catalog has no page tree")
	}
	pages := []*Page{}
	doc.walk(root, Page{MediaBox: [4]float64{0, 0, 612, 792}}, &pages, map[*Object]bool{})
	doc.pages = pages
	return pages, nil
}

// walk descends the page tree, carrying inheritable attributes down.
func (doc *Document) walk(node Dict, inherited Page, pages *[]*Page, seen map[*Object]bool) {
	if box, ok := doc.rect(node["MediaBox"]); ok {
		inherited.MediaBox = box
	}
	if r, ok := doc.Resolve(node["Rotate"]).Number(); ok {
		inherited.Rotate = int(r)
	}
	if res := doc.dict(node["Resources"]); res != nil {
		inherited.Resources = res
	}

	if node.Name("Type") == "Page" || node["Kids"] == nil {
		pg := inherited
		pg.Dict = node
		*pages = append(*pages, &pg)
		return
	}
	kids := doc.Resolve(node["Kids"])
	if kids.Kind != Array {
		return
	}
	for _, k := range kids.Array {
		kid := doc.Resolve(k)
		if seen[kid] || (kid.Kind != Dictionary && kid.Kind != Stream) {
			continue
		}
		seen[kid] = true
		doc.walk(kid.Dict, inherited, pages, seen)
	}
}

func (doc *Document) rect(o *Object) ([4]float64, bool) {
	var r [4]float64
	arr := doc.Resolve(o)
	if arr.Kind != Array || len(arr.Array) < 4 {
		return r, false
	}
	for i := range r {
		v, ok := doc.Resolve(arr.Array[i]).Number()
		if !ok {
			return r, false
		}
		r[i] = v
	}
	return r, true
}

// NumPages returns the number of pages.
func (doc *Document) NumPages() (int, error) {
	pages, err := doc.Pages()
	if err != nil {
		return 0, err
	}
	return len(pages), nil
}

// PageInfo returns the MediaBox size and rotation of page i (0-indexed).
func (doc *Document) PageInfo(i int) (PageInfo, error) {
	pg, err := doc.page(i)
	if err != nil {
		return PageInfo{}, err
	}
	box := pg.MediaBox
	return PageInfo{
		Width:    box[2] - box[0],
		Height:   box[3] - box[1],
		Rotation: ((pg.Rotate % 360) + 360) % 360,
	}, nil
}

func (doc *Document) page(i int) (*Page, error) {
	pages, err := doc.Pages()
	if err != nil {
		return nil, err
	}
	if i < 0 || i >= len(pages) {
		return nil, fmt.Errorf("pdf: page %d out of range [0,%d)", i, len(pages))
	}
	return pages[i], nil
}

// contents returns the decoded, concatenated content streams of a page.
func (doc *Document) contents(pg *Page) []byte {
	c := doc.Resolve(pg.Dict["Contents"])
	streams := []*Object{c}
	if c.Kind == Array {
		streams = c.Array
	}
	var out []byte
	for _, s := range streams {
		data, err := decode(doc.Resolve(s))
		if err != nil {
			continue
		}
		out = append(out, data...)
		out = append(out, '\n')
	}
	return out
}
