package entity

import (
	"errors"
	"fmt"
	"strconv"
	"unicode/utf8"
)

// maxRefLen bounds the body of a character reference such as "#x10FFFF".
const maxRefLen = 16

const byteOrderMark = "\xef\xbb\xbf"

// ErrIncomplete is returned by End when the input stopped before the root
// element was closed.
var ErrIncomplete = errors.New("entity: document incomplete")

// SyntaxError describes malformed markup.
type SyntaxError struct {
	Msg    string
	Line   int
	Offset int64
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("entity: line %d (offset %d): %s", e.Line, e.Offset, e.Msg)
}

type state int

const (
	stProlog state = iota
	stContent
	stTagOpen
	stStartName
	stInTag
	stAttrName
	stAfterAttrName
	stBeforeAttrValue
	stAttrValue
	stAfterAttrValue
	stEmptyClose
	stEndName
	stAfterEndName
	stRef
	stMarkup
	stComment
	stCDATA
	stPI
	stDone
)

type attr struct {
	name, value string
}

// Builder incrementally parses a single XML document into an Entity tree.
//
// Input may be split at any byte boundary. Once the root end-tag has been
// consumed the Builder is done and ignores further input. After an error the
// partially built tree is discarded and every later call returns the same
// error.
type Builder struct {
	state     state
	refReturn state

	stack []*Entity
	root  *Entity
	err   error

	name   []byte
	value  []byte
	text   []byte
	ref    []byte
	markup []byte
	quote  byte
	run    int // trailing '-', ']' or '?' count in comments, CDATA and PIs

	tagName  string
	attrName string
	attrs    []attr

	line   int
	offset int64
	bom    int // byte order mark bytes seen at the start of input
}

// NewBuilder returns a Builder ready for the first byte of a document.
func NewBuilder() *Builder {
	return &Builder{line: 1}
}

// Reset discards all state so the Builder can parse a new document.
func (b *Builder) Reset() {
	*b = Builder{line: 1}
}

// Done reports whether the root element has been closed.
func (b *Builder) Done() bool {
	return b.state == stDone && b.err == nil
}

// Root returns the finished tree, or nil if the document is not complete.
func (b *Builder) Root() *Entity {
	if !b.Done() {
		return nil
	}
	return b.root
}

// Feed parses p and returns the number of bytes consumed. When the root
// element closes inside p, n is the offset just past its '>' and the rest of
// p is left untouched.
func (b *Builder) Feed(p []byte) (int, error) {
	if b.err != nil {
		return 0, b.err
	}
	if b.state == stDone {
		return 0, nil
	}
	for i, c := range p {
		if err := b.step(c); err != nil {
			b.fail(err)
			return i, b.err
		}
		b.offset++
		if c == '\n' {
			b.line++
		}
		if b.state == stDone {
			return i + 1, nil
		}
	}
	return len(p), nil
}

// End signals that no more input will arrive. It returns nil only if the
// document was complete; otherwise the partial tree is discarded.
func (b *Builder) End() error {
	if b.err != nil {
		return b.err
	}
	if b.state == stDone {
		return nil
	}
	b.fail(fmt.Errorf("%w: %d element(s) still open", ErrIncomplete, len(b.stack)))
	return b.err
}

func (b *Builder) fail(err error) {
	b.err = err
	b.stack = nil
	b.root = nil
	b.attrs = nil
	b.name, b.value, b.text, b.ref, b.markup = nil, nil, nil, nil, nil
}

func (b *Builder) syntaxError(format string, args ...any) error {
	return &SyntaxError{Msg: fmt.Sprintf(format, args...), Line: b.line, Offset: b.offset}
}

func (b *Builder) step(c byte) error {
	switch b.state {
	case stProlog:
		if b.offset == int64(b.bom) && b.bom < len(byteOrderMark) && c == byteOrderMark[b.bom] {
			b.bom++
			return nil
		}
		if b.bom > 0 && b.bom < len(byteOrderMark) {
			return b.syntaxError("incomplete byte order mark")
		}
		switch {
		case isSpace(c):
		case c == '<':
			b.state = stTagOpen
		default:
			return b.syntaxError("character data before root element")
		}

	case stContent:
		switch c {
		case '<':
			if err := b.flushText(); err != nil {
				return err
			}
			b.state = stTagOpen
		case '&':
			b.refReturn = stContent
			b.ref = b.ref[:0]
			b.state = stRef
		default:
			b.text = append(b.text, c)
		}

	case stTagOpen:
		switch {
		case c == '/':
			if len(b.stack) == 0 {
				return b.syntaxError("end tag before root element")
			}
			b.name = b.name[:0]
			b.state = stEndName
		case c == '?':
			b.run = 0
			b.state = stPI
		case c == '!':
			b.markup = b.markup[:0]
			b.state = stMarkup
		case isNameStart(c):
			b.name = append(b.name[:0], c)
			b.attrs = b.attrs[:0]
			b.state = stStartName
		default:
			return b.syntaxError("unexpected %q after '<'", c)
		}

	case stStartName:
		switch {
		case isNameChar(c):
			b.name = append(b.name, c)
		case isSpace(c):
			b.tagName = string(b.name)
			b.state = stInTag
		case c == '>':
			b.tagName = string(b.name)
			return b.openElement(false)
		case c == '/':
			b.tagName = string(b.name)
			b.state = stEmptyClose
		default:
			return b.syntaxError("unexpected %q in element name", c)
		}

	case stInTag, stAfterAttrValue:
		switch {
		case isSpace(c):
			b.state = stInTag
		case c == '>':
			return b.openElement(false)
		case c == '/':
			b.state = stEmptyClose
		case isNameStart(c) && b.state == stInTag:
			b.name = append(b.name[:0], c)
			b.state = stAttrName
		default:
			return b.syntaxError("unexpected %q in start tag <%s>", c, b.tagName)
		}

	case stAttrName:
		switch {
		case isNameChar(c):
			b.name = append(b.name, c)
		case isSpace(c):
			b.attrName = string(b.name)
			b.state = stAfterAttrName
		case c == '=':
			b.attrName = string(b.name)
			b.state = stBeforeAttrValue
		default:
			return b.syntaxError("unexpected %q in attribute name", c)
		}

	case stAfterAttrName:
		switch {
		case isSpace(c):
		case c == '=':
			b.state = stBeforeAttrValue
		default:
			return b.syntaxError("attribute %q has no value", b.attrName)
		}

	case stBeforeAttrValue:
		switch {
		case isSpace(c):
		case c == '"' || c == '\'':
			b.quote = c
			b.value = b.value[:0]
			b.state = stAttrValue
		default:
			return b.syntaxError("attribute %q value is not quoted", b.attrName)
		}

	case stAttrValue:
		switch c {
		case b.quote:
			if !utf8.Valid(b.value) {
				return b.syntaxError("attribute %q is not valid UTF-8", b.attrName)
			}
			b.attrs = append(b.attrs, attr{name: b.attrName, value: string(b.value)})
			b.state = stAfterAttrValue
		case '&':
			b.refReturn = stAttrValue
			b.ref = b.ref[:0]
			b.state = stRef
		case '<':
			return b.syntaxError("'<' in attribute %q", b.attrName)
		default:
			b.value = append(b.value, c)
		}

	case stEmptyClose:
		if c != '>' {
			return b.syntaxError("expected '>' after '/' in <%s>", b.tagName)
		}
		return b.openElement(true)

	case stEndName:
		switch {
		case isNameChar(c) && (len(b.name) > 0 || isNameStart(c)):
			b.name = append(b.name, c)
		case isSpace(c) && len(b.name) > 0:
			b.state = stAfterEndName
		case c == '>' && len(b.name) > 0:
			return b.closeElement(string(b.name))
		default:
			return b.syntaxError("unexpected %q in end tag", c)
		}

	case stAfterEndName:
		switch {
		case isSpace(c):
		case c == '>':
			return b.closeElement(string(b.name))
		default:
			return b.syntaxError("unexpected %q in end tag </%s>", c, b.name)
		}

	case stRef:
		if c != ';' {
			if len(b.ref) >= maxRefLen || isSpace(c) || c == '<' || c == '&' {
				return b.syntaxError("unterminated character reference")
			}
			b.ref = append(b.ref, c)
			return nil
		}
		decoded, err := b.decodeRef()
		if err != nil {
			return err
		}
		if b.refReturn == stAttrValue {
			b.value = append(b.value, decoded...)
		} else {
			b.text = append(b.text, decoded...)
		}
		b.state = b.refReturn

	case stMarkup:
		b.markup = append(b.markup, c)
		switch m := string(b.markup); {
		case m == "--":
			b.run = 0
			b.state = stComment
		case m == "[CDATA[":
			if len(b.stack) == 0 {
				return b.syntaxError("CDATA section outside root element")
			}
			b.run = 0
			b.state = stCDATA
		case isPrefix(m, "--") || isPrefix(m, "[CDATA["):
		default:
			return b.syntaxError("unsupported markup declaration <!%s", m)
		}

	case stComment:
		switch {
		case c == '-':
			b.run++
		case c == '>' && b.run >= 2:
			b.state = b.afterMisc()
		default:
			b.run = 0
		}

	case stCDATA:
		switch {
		case c == ']':
			b.run++
			b.text = append(b.text, c)
		case c == '>' && b.run >= 2:
			b.text = b.text[:len(b.text)-2]
			b.state = stContent
		default:
			b.run = 0
			b.text = append(b.text, c)
		}

	case stPI:
		switch {
		case c == '?':
			b.run = 1
		case c == '>' && b.run == 1:
			b.state = b.afterMisc()
		default:
			b.run = 0
		}
	}
	return nil
}

// afterMisc returns the state that follows a comment or processing
// instruction.
func (b *Builder) afterMisc() state {
	if len(b.stack) == 0 {
		return stProlog
	}
	return stContent
}

func (b *Builder) openElement(selfClosing bool) error {
	e := New(b.tagName, "")
	for _, a := range b.attrs {
		e.SetAttribute(a.name, a.value)
	}
	b.attrs = b.attrs[:0]

	if len(b.stack) == 0 {
		b.root = e
	} else {
		parent := b.stack[len(b.stack)-1]
		parent.children = append(parent.children, e)
	}
	b.stack = append(b.stack, e)
	b.state = stContent

	if selfClosing {
		return b.closeElement(b.tagName)
	}
	return nil
}

func (b *Builder) closeElement(name string) error {
	top := b.stack[len(b.stack)-1]
	if top.name != name {
		return b.syntaxError("element <%s> closed by </%s>", top.name, name)
	}
	b.stack[len(b.stack)-1] = nil
	b.stack = b.stack[:len(b.stack)-1]
	if len(b.stack) == 0 {
		b.state = stDone
		return nil
	}
	b.state = stContent
	return nil
}

func (b *Builder) flushText() error {
	if len(b.text) == 0 {
		return nil
	}
	if !utf8.Valid(b.text) {
		return b.syntaxError("character data is not valid UTF-8")
	}
	b.stack[len(b.stack)-1].appendText(string(b.text))
	b.text = b.text[:0]
	return nil
}

func (b *Builder) decodeRef() ([]byte, error) {
	ref := string(b.ref)
	switch ref {
	case "amp":
		return []byte{'&'}, nil
	case "lt":
		return []byte{'<'}, nil
	case "gt":
		return []byte{'>'}, nil
	case "quot":
		return []byte{'"'}, nil
	case "apos":
		return []byte{'\''}, nil
	}
	if len(ref) < 2 || ref[0] != '#' {
		return nil, b.syntaxError("unknown entity &%s;", ref)
	}
	var (
		n   uint64
		err error
	)
	if ref[1] == 'x' {
		n, err = strconv.ParseUint(ref[2:], 16, 32)
	} else {
		n, err = strconv.ParseUint(ref[1:], 10, 32)
	}
	r := rune(n)
	if err != nil || r == 0 || !utf8.ValidRune(r) {
		return nil, b.syntaxError("invalid character reference &%s;", ref)
	}
	return utf8.AppendRune(nil, r), nil
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r'
}

func isNameStart(c byte) bool {
	return c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c == '_' || c == ':' || c >= 0x80
}

func isNameChar(c byte) bool {
	return isNameStart(c) || c >= '0' && c <= '9' || c == '-' || c == '.'
}

func isPrefix(s, of string) bool {
	return len(s) <= len(of) && of[:len(s)] == s
}
