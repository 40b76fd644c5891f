package entity

import (
	"bufio"
	"encoding/xml"
	"io"
	"strings"
)

// WriteTo serializes the tree as XML. Attributes are written in sorted order;
// the entity's own text precedes its children.
func (e *Entity) WriteTo(w io.Writer) (int64, error) {
	cw := &countingWriter{w: w}
	bw := bufio.NewWriter(cw)
	if err := e.write(bw); err != nil {
		return cw.n, err
	}
	err := bw.Flush()
	return cw.n, err
}

// String returns the XML serialization of the tree.
func (e *Entity) String() string {
	var sb strings.Builder
	_, _ = e.WriteTo(&sb)
	return sb.String()
}

func (e *Entity) write(w *bufio.Writer) error {
	w.WriteByte('<')
	w.WriteString(e.name)
	for _, name := range e.AttributeNames() {
		w.WriteByte(' ')
		w.WriteString(name)
		w.WriteString(`="`)
		if err := xml.EscapeText(w, []byte(e.attributes[name])); err != nil {
			return err
		}
		w.WriteByte('"')
	}
	w.WriteByte('>')
	if err := xml.EscapeText(w, []byte(e.text)); err != nil {
		return err
	}
	for _, c := range e.children {
		if err := c.write(w); err != nil {
			return err
		}
	}
	w.WriteString("</")
	w.WriteString(e.name)
	_, err := w.WriteString(">")
	return err
}

type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}
