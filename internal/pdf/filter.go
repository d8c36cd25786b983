package pdf

import (
	"bytes"
	"compress/zlib"
	"encoding/ascii85"
	"fmt"
	"io"
)

// maxDecodedSize bounds the output of a single stream (256 MB).
const maxDecodedSize = 256 << 20

// decode applies the stream's filter chain to its raw data.
func decode(o *Object) ([]byte, error) {
	if o == nil || o.Kind != Stream {
		return nil, fmt.Errorf("pdf: not a stream")
	}
	var filters []string
	switch f := o.Dict["Filter"]; {
	case f == nil:
	case f.Kind == Name:
		filters = []string{f.Name}
	case f.Kind == Array:
		for _, e := range f.Array {
			if e.Kind == Name {
				filters = append(filters, e.Name)
			}
		}
	}

	data := o.Stream
	for _, name := range filters {
		var err error
		switch name {
		case "FlateDecode", "Fl":
			data, err = inflate(data)
		case "ASCIIHexDecode", "AHx":
			data = decodeHex(bytes.TrimSuffix(bytes.Join(bytes.Fields(data), nil), []byte(">")))
		case "ASCII85Decode", "A85":
			data, err = decodeASCII85(data)
		default:
			// Image codecs and the rest are irrelevant to inspection.
			return nil, fmt.Errorf("pdf: unsupported filter %s", name)
		}
		if err != nil {
			return nil, fmt.Errorf("pdf: %s: %w", name, err)
		}
	}
	if p, ok := o.Dict["DecodeParms"]; ok && p.Kind == Dictionary {
		if pred, ok := p.Dict.Int("Predictor"); ok && pred >= 10 {
			cols, _ := p.Dict.Int("Columns")
			return unpredictPNG(data, int(cols))
		}
	}
	return data, nil
}

func inflate(data []byte) ([]byte, error) {
	r, err := zlib.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer r.Close()
	out, err := io.ReadAll(io.LimitReader(r, maxDecodedSize+1))
	if err != nil && len(out) == 0 {
		return nil, err
	}
	if len(out) > maxDecodedSize {
		return nil, fmt.Errorf("decoded size exceeds %d bytes", maxDecodedSize)
	}
	return out, nil
}

func decodeASCII85(data []byte) ([]byte, error) {
	data = bytes.TrimPrefix(bytes.TrimSpace(data), []byte("<~"))
	if i := bytes.Index(data, []byte("~>")); i >= 0 {
		data = data[:i]
	}
	out := make([]byte, 4*len(data)/5+4)
	n, _, err := ascii85.Decode(out, data, true)
	if err != nil {
		return nil, err
	}
	return out[:n], nil
}

// unpredictPNG reverses the PNG row predictors used by cross-reference
// and object streams. Colors and BitsPerComponent are assumed to be 1 and 8.
func unpredictPNG(data []byte, cols int) ([]byte, error) {
	if cols <= 0 {
		cols = 1
	}
	row := cols + 1
	if len(data)%row != 0 {
		return nil, fmt.Errorf("pdf: predictor rows do not divide stream of %d bytes", len(data))
	}
	out := make([]byte, 0, len(data)/row*cols)
	prev := make([]byte, cols)
	cur := make([]byte, cols)
	for i := 0; i < len(data); i += row {
		filter := data[i]
		copy(cur, data[i+1:i+row])
		for j := range cur {
			var left, upLeft byte
			if j > 0 {
				left, upLeft = cur[j-1], prev[j-1]
			}
			up := prev[j]
			switch filter {
			case 1:
				cur[j] += left
			case 2:
				cur[j] += up
			case 3:
				cur[j] += byte((int(left) + int(up)) / 2)
			case 4:
				cur[j] += paeth(left, up, upLeft)
			}
		}
		out = append(out, cur...)
		prev, cur = cur, prev
	}
	return out, nil
}

func paeth(a, b, c byte) byte {
	p := int(a) + int(b) - int(c)
	pa, pb, pc := abs(p-int(a)), abs(p-int(b)), abs(p-int(c))
	switch {
	case pa <= pb && pa <= pc:
		return a
	case pb <= pc:
		return b
	}
	return c
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
