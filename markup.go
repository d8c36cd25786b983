package docrender

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/net/html"
)

var voidElements = map[string]bool{
	"area": true, "base": true, "br": true, "col": true, "embed": true,
	"hr": true, "img": true, "input": true, "link": true, "meta": true,
	"source": true, "track": true, "wbr": true,
}

// checkMarkup rejects HTML that neither backend can be trusted with:
// a tag or comment cut off by the end of input, an end tag with no
// matching open element, or a document with nothing to render.
//
// Unclosed elements are accepted; HTML closes them implicitly.
func checkMarkup(src string) error {
	z := html.NewTokenizer(strings.NewReader(src))
	var open []string
	consumed := 0
	content := false

	for {
		tt := z.Next()
		if tt == html.ErrorToken {
			if err := z.Err(); !errors.Is(err, io.EOF) {
				return err
			}
			break
		}
		raw := z.Raw()
		start := consumed
		consumed += len(raw)

		switch tt {
		case html.StartTagToken, html.SelfClosingTagToken:
			content = true
			name, _ := z.TagName()
			tag := string(name)
			if tt == html.StartTagToken && !voidElements[tag] {
				open = append(open, tag)
			}
		case html.EndTagToken:
			name, _ := z.TagName()
			tag := string(name)
			if voidElements[tag] {
				continue
			}
			i := lastIndex(open, tag)
			if i < 0 {
				return fmt.Errorf("unexpected </%s> at offset %d", tag, start)
			}
			open = open[:i]
		case html.CommentToken:
			if !bytes.HasSuffix(raw, []byte(">")) {
				return fmt.Errorf("unterminated comment at offset %d", start)
			}
		case html.TextToken:
			if strings.TrimSpace(string(raw)) != "" {
				content = true
			}
		}
	}

	if consumed < len(src) {
		return fmt.Errorf("unterminated markup at offset %d", consumed)
	}
	if !content {
		return errors.New("no renderable content")
	}
	return nil
}

func lastIndex(stack []string, tag string) int {
	for i := len(stack) - 1; i >= 0; i-- {
		if stack[i] == tag {
			return i
		}
	}
	return -1
}

// Mapping from HTML to the tag subset the basic writer understands.
var (
	basicInline = map[string]string{
		"b": "b", "strong": "b",
		"i": "i", "em": "i", "cite": "i", "var": "i",
		"u": "u", "ins": "u",
	}
	basicHeadings = map[string]bool{
		"h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
	}
	basicBlocks = map[string]bool{
		"p": true, "div": true, "section": true, "article": true, "header": true,
		"footer": true, "main": true, "nav": true, "aside": true, "blockquote": true,
		"pre": true, "ul": true, "ol": true, "dl": true, "dt": true, "dd": true,
		"table": true, "thead": true, "tbody": true, "tfoot": true, "tr": true,
		"hr": true, "address": true, "figure": true, "figcaption": true, "form": true,
	}
	basicSkipped = map[string]bool{
		"head": true, "script": true, "style": true, "title": true,
		"noscript": true, "template": true, "svg": true,
	}
)

// basicMarkup reduces HTML to the subset understood by the fpdf HTMLBasic
// writer: b, i, u, a and br. Block elements end the current line,
// headings are set in bold, list items get a bullet and table cells are
// separated by spaces. Entities are decoded.
func basicMarkup(src string) string {
	z := html.NewTokenizer(strings.NewReader(src))
	var b strings.Builder
	skip := 0
	lineOpen := false
	pendingSpace := false

	breakLine := func() {
		if lineOpen {
			b.WriteString("<br>")
		}
		lineOpen = false
		pendingSpace = false
	}

	for {
		tt := z.Next()
		switch tt {
		case html.ErrorToken:
			return b.String()

		case html.TextToken:
			if skip > 0 {
				continue
			}
			text := string(z.Text())
			lead := len(text) > 0 && isSpace(text[0])
			trail := len(text) > 0 && isSpace(text[len(text)-1])
			words := strings.Fields(text)
			if len(words) == 0 {
				if lead && lineOpen {
					pendingSpace = true
				}
				continue
			}
			if lineOpen && (lead || pendingSpace) {
				b.WriteByte(' ')
			}
			// HTMLBasic has no escaping; keep literal angle brackets out of
			// its tag scanner.
			b.WriteString(basicText.Replace(strings.Join(words, " ")))
			lineOpen = true
			pendingSpace = trail

		case html.StartTagToken, html.SelfClosingTagToken:
			name, hasAttr := z.TagName()
			tag := string(name)
			switch {
			case basicSkipped[tag]:
				if tt == html.StartTagToken {
					skip++
				}
			case skip > 0:
			case tag == "br":
				b.WriteString("<br>")
				lineOpen = false
				pendingSpace = false
			case basicInline[tag] != "":
				if pendingSpace && lineOpen {
					b.WriteByte(' ')
					pendingSpace = false
				}
				b.WriteString("<" + basicInline[tag] + ">")
			case tag == "a":
				if pendingSpace && lineOpen {
					b.WriteByte(' ')
					pendingSpace = false
				}
				href := ""
				for hasAttr {
					var key, val []byte
					key, val, hasAttr = z.TagAttr()
					if string(key) == "href" {
						href = string(val)
					}
				}
				fmt.Fprintf(&b, `<a href="%s">`, strings.ReplaceAll(href, `"`, "%22"))
			case basicHeadings[tag]:
				breakLine()
				b.WriteString("<b>")
			case tag == "li":
				breakLine()
				b.WriteString("• ")
				lineOpen = true
			case tag == "td" || tag == "th":
				if lineOpen {
					b.WriteString("  ")
				}
			case basicBlocks[tag]:
				breakLine()
			}

		case html.EndTagToken:
			name, _ := z.TagName()
			tag := string(name)
			switch {
			case basicSkipped[tag]:
				if skip > 0 {
					skip--
				}
			case skip > 0:
			case basicInline[tag] != "":
				b.WriteString("</" + basicInline[tag] + ">")
			case tag == "a":
				b.WriteString("</a>")
			case basicHeadings[tag]:
				b.WriteString("</b>")
				breakLine()
			case tag == "li" || basicBlocks[tag]:
				breakLine()
			}
		}
	}
}

var basicText = strings.NewReplacer("<", "‹", ">", "›")

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r' || c == '\f'
}
