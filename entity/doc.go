// Package entity implements the in-memory document tree used by the OMP client
// and the incremental parser that builds it.
//
// An Entity is a named node with character data, an optional attribute map and
// an ordered list of children. Trees are built either directly (New, AddChild,
// SetAttribute) or by feeding raw bytes to a Builder as they arrive from the
// network.
//
// # Incremental parsing
//
// A Builder consumes arbitrary chunks of a UTF-8 XML document and reports
// completion the moment the end-tag of the root element has been consumed. It
// never waits for the underlying stream to close:
//
//	b := entity.NewBuilder()
//	for !b.Done() {
//	    n, _ := conn.Read(buf)
//	    if _, err := b.Feed(buf[:n]); err != nil {
//	        return err
//	    }
//	}
//	root := b.Root()
//
// The parser is deliberately small: it understands elements, attributes,
// character data, predefined and numeric character references, CDATA sections,
// comments, processing instructions and the XML declaration. Namespaces are
// not interpreted (prefixed names are kept verbatim) and DOCTYPE declarations
// are rejected.
package entity
