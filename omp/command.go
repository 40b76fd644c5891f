package omp

import (
	"encoding/base64"
	"encoding/xml"
	"strings"
)

// command builds one request element. Attributes keep insertion order and
// element bodies are escaped. A command with no body is written self-closing
// unless expand was called.
type command struct {
	name   string
	attrs  [][2]string
	body   strings.Builder
	expand bool
}

func newCommand(name string) *command {
	return &command{name: name}
}

// WithAttr adds an attribute.
func (c *command) WithAttr(name, value string) *command {
	c.attrs = append(c.attrs, [2]string{name, value})
	return c
}

// WithElement appends <name>value</name>. An empty value still produces both
// tags.
func (c *command) WithElement(name, value string) *command {
	c.body.WriteString("<" + name + ">")
	escape(&c.body, value)
	c.body.WriteString("</" + name + ">")
	return c
}

// WithBase64 appends <name>base64(data)</name>.
func (c *command) WithBase64(name string, data []byte) *command {
	c.body.WriteString("<" + name + ">")
	if len(data) > 0 {
		c.body.WriteString(base64.StdEncoding.EncodeToString(data))
	}
	c.body.WriteString("</" + name + ">")
	return c
}

// WithChild appends a nested element.
func (c *command) WithChild(child *command) *command {
	c.body.WriteString(child.String())
	return c
}

// Expanded forces an explicit end tag even without a body.
func (c *command) Expanded() *command {
	c.expand = true
	return c
}

func (c *command) String() string {
	var sb strings.Builder
	sb.WriteString("<" + c.name)
	for _, a := range c.attrs {
		sb.WriteString(" " + a[0] + `="`)
		escape(&sb, a[1])
		sb.WriteString(`"`)
	}
	if c.body.Len() == 0 && !c.expand {
		sb.WriteString("/>")
		return sb.String()
	}
	sb.WriteString(">")
	sb.WriteString(c.body.String())
	sb.WriteString("</" + c.name + ">")
	return sb.String()
}

// Bytes returns the serialized request.
func (c *command) Bytes() []byte {
	return []byte(c.String())
}

func escape(sb *strings.Builder, s string) {
	// strings.Builder never fails to write.
	_ = xml.EscapeText(sb, []byte(s))
}
