// Package pdf reads just enough of a PDF file to verify and inspect
// rendered documents: the object graph, the page tree with inherited
// attributes, page geometry and the text drawn on each page.
//
// It is not a general-purpose reader. Encrypted documents are not
// supported.
package pdf

// Kind identifies the type of a PDF object.
type Kind int

const (
	Null Kind = iota
	Bool
	Int
	Real
	String
	Name
	Array
	Dictionary
	Stream
	Ref
)

// Object holds any PDF object value.
type Object struct {
	Kind   Kind
	Bool   bool
	Int    int64
	Real   float64
	Str    []byte
	Name   string
	Array  []*Object
	Dict   Dict
	Stream []byte // raw, still encoded
	Ref    Reference
}

// Reference is an indirect object reference (N G R).
type Reference struct {
	Number int
	Gen    int
}

// Dict is a PDF dictionary keyed by name without the leading slash.
type Dict map[string]*Object

var nullObject = &Object{Kind: Null}

// Number returns the numeric value of o and whether it is numeric.
func (o *Object) Number() (float64, bool) {
	if o == nil {
		return 0, false
	}
	switch o.Kind {
	case Int:
		return float64(o.Int), true
	case Real:
		return o.Real, true
	}
	return 0, false
}

// Name returns the name stored under key.
func (d Dict) Name(key string) string {
	if o, ok := d[key]; ok && o.Kind == Name {
		return o.Name
	}
	return ""
}

// Int returns the integer stored under key.
func (d Dict) Int(key string) (int64, bool) {
	o, ok := d[key]
	if !ok {
		return 0, false
	}
	switch o.Kind {
	case Int:
		return o.Int, true
	case Real:
		return int64(o.Real), true
	}
	return 0, false
}
