package main

import (
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/smnsjas/go-omp/entity"
)

const (
	formatText = "text"
	formatXML  = "xml"
	formatYAML = "yaml"
)

func checkFormat(format string) error {
	switch format {
	case formatText, formatXML, formatYAML:
		return nil
	}
	return fmt.Errorf("unknown format %q (valid: text, xml, yaml)", format)
}

// printer writes command results in the selected format.
type printer struct {
	w      io.Writer
	format string
}

func (p *printer) Line(format string, args ...any) error {
	_, err := fmt.Fprintf(p.w, format+"\n", args...)
	return err
}

func (p *printer) Entity(e *entity.Entity) error {
	switch p.format {
	case formatXML:
		if _, err := e.WriteTo(p.w); err != nil {
			return err
		}
		_, err := io.WriteString(p.w, "\n")
		return err
	case formatYAML:
		enc := yaml.NewEncoder(p.w)
		enc.SetIndent(2)
		doc := &yaml.Node{
			Kind: yaml.MappingNode,
			Content: []*yaml.Node{
				scalarNode(e.Name()),
				entityNode(e),
			},
		}
		if err := enc.Encode(doc); err != nil {
			return fmt.Errorf("encode yaml: %w", err)
		}
		return enc.Close()
	default:
		var sb strings.Builder
		writeTree(&sb, e, 0)
		_, err := io.WriteString(p.w, sb.String())
		return err
	}
}

func scalarNode(s string) *yaml.Node {
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: s}
}

// entityNode renders an entity without attributes or children as a plain
// string and anything else as a mapping. Attributes become "@name" keys,
// text becomes "#text" and children sharing a name collapse into a sequence.
func entityNode(e *entity.Entity) *yaml.Node {
	attrs := e.AttributeNames()
	children := e.Children()
	if len(attrs) == 0 && len(children) == 0 {
		return scalarNode(strings.TrimSpace(e.Text()))
	}

	m := &yaml.Node{Kind: yaml.MappingNode}
	for _, name := range attrs {
		v, _ := e.Attribute(name)
		m.Content = append(m.Content, scalarNode("@"+name), scalarNode(v))
	}
	if text := strings.TrimSpace(e.Text()); text != "" {
		m.Content = append(m.Content, scalarNode("#text"), scalarNode(text))
	}

	var (
		order  []string
		groups = make(map[string][]*entity.Entity)
	)
	for _, child := range children {
		if _, seen := groups[child.Name()]; !seen {
			order = append(order, child.Name())
		}
		groups[child.Name()] = append(groups[child.Name()], child)
	}
	for _, name := range order {
		group := groups[name]
		if len(group) == 1 {
			m.Content = append(m.Content, scalarNode(name), entityNode(group[0]))
			continue
		}
		seq := &yaml.Node{Kind: yaml.SequenceNode}
		for _, child := range group {
			seq.Content = append(seq.Content, entityNode(child))
		}
		m.Content = append(m.Content, scalarNode(name), seq)
	}
	return m
}

// writeTree prints one line per entity, indented by depth.
func writeTree(sb *strings.Builder, e *entity.Entity, depth int) {
	sb.WriteString(strings.Repeat("  ", depth))
	sb.WriteString(e.Name())
	for _, name := range e.AttributeNames() {
		v, _ := e.Attribute(name)
		fmt.Fprintf(sb, " %s=%q", name, v)
	}
	if text := strings.TrimSpace(e.Text()); text != "" {
		sb.WriteString(": ")
		sb.WriteString(text)
	}
	sb.WriteByte('\n')
	for _, child := range e.Children() {
		writeTree(sb, child, depth+1)
	}
}
