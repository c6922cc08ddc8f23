// Package xmltree holds a small attributed document tree used to read the
// catalogue and guide documents and to write the merged guide back out.
//
// Children are kept in document order as a slice of tagged nodes; there is
// no parent pointer because nothing in the grabber walks upwards.
package xmltree

import (
	"bufio"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/net/html/charset"
)

// Kind tags a Node.
type Kind int

const (
	Document Kind = iota
	Element
	Text
	Comment
)

// Attr is one name="value" pair. Order of appearance is preserved.
type Attr struct {
	Name  string
	Value string
}

// Node is an element, a run of character data, a comment, or the document
// root. Name and Attrs apply to elements; Data applies to text and comments.
type Node struct {
	Kind     Kind
	Name     string
	Attrs    []Attr
	Data     string
	Children []*Node
}

// ErrEmpty is returned when a document contains no root element.
var ErrEmpty = errors.New("xmltree: document has no root element")

// NewElement returns an element with the given attributes and no children.
func NewElement(name string, attrs ...Attr) *Node {
	return &Node{Kind: Element, Name: name, Attrs: attrs}
}

// ─── Parsing ──────────────────────────────────────────────────────────────────

// Parse reads a whole document. Whitespace-only character data is dropped;
// the writer re-indents on output. The declared encoding is honoured.
func Parse(r io.Reader) (*Node, error) {
	dec := xml.NewDecoder(r)
	dec.CharsetReader = charset.NewReaderLabel
	dec.Entity = xml.HTMLEntity

	doc := &Node{Kind: Document}
	stack := []*Node{doc}
	for {
		tok, err := dec.RawToken()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("xmltree: %w", err)
		}
		top := stack[len(stack)-1]
		switch t := tok.(type) {
		case xml.StartElement:
			el := &Node{Kind: Element, Name: qualified(t.Name)}
			for _, a := range t.Attr {
				el.Attrs = append(el.Attrs, Attr{Name: qualified(a.Name), Value: a.Value})
			}
			top.Children = append(top.Children, el)
			stack = append(stack, el)
		case xml.EndElement:
			name := qualified(t.Name)
			if len(stack) == 1 || top.Name != name {
				return nil, fmt.Errorf("xmltree: unexpected </%s>", name)
			}
			stack = stack[:len(stack)-1]
		case xml.CharData:
			if strings.TrimSpace(string(t)) == "" {
				continue
			}
			if len(stack) == 1 {
				return nil, fmt.Errorf("xmltree: character data outside root element")
			}
			top.Children = append(top.Children, &Node{Kind: Text, Data: string(t)})
		case xml.Comment:
			top.Children = append(top.Children, &Node{Kind: Comment, Data: string(t)})
		}
	}
	if len(stack) != 1 {
		return nil, fmt.Errorf("xmltree: unclosed <%s>", stack[len(stack)-1].Name)
	}
	if doc.Root() == nil {
		return nil, ErrEmpty
	}
	return doc, nil
}

func qualified(n xml.Name) string {
	if n.Space != "" {
		return n.Space + ":" + n.Local
	}
	return n.Local
}

// ─── Navigation ───────────────────────────────────────────────────────────────

// Root returns the first element child of a document node.
func (n *Node) Root() *Node {
	for _, c := range n.Children {
		if c.Kind == Element {
			return c
		}
	}
	return nil
}

// Find walks a slash separated path of element names, each step taking the
// first matching child. A leading slash is optional. Returns nil on a miss.
func (n *Node) Find(path string) *Node {
	cur := n
	for _, step := range strings.Split(strings.Trim(path, "/"), "/") {
		if step == "" {
			continue
		}
		if cur = cur.Child(step); cur == nil {
			return nil
		}
	}
	return cur
}

// Child returns the first child element called name.
func (n *Node) Child(name string) *Node {
	for _, c := range n.Children {
		if c.Kind == Element && c.Name == name {
			return c
		}
	}
	return nil
}

// Elements returns the child elements called name, or every child element
// when name is empty.
func (n *Node) Elements(name string) []*Node {
	var out []*Node
	for _, c := range n.Children {
		if c.Kind == Element && (name == "" || c.Name == name) {
			out = append(out, c)
		}
	}
	return out
}

// Attr looks up an attribute value.
func (n *Node) Attr(name string) (string, bool) {
	for _, a := range n.Attrs {
		if a.Name == name {
			return a.Value, true
		}
	}
	return "", false
}

// SetAttr replaces an attribute in place or appends it.
func (n *Node) SetAttr(name, value string) {
	for i := range n.Attrs {
		if n.Attrs[i].Name == name {
			n.Attrs[i].Value = value
			return
		}
	}
	n.Attrs = append(n.Attrs, Attr{Name: name, Value: value})
}

// Text concatenates the direct character data children, trimmed.
func (n *Node) Text() string {
	var b strings.Builder
	for _, c := range n.Children {
		if c.Kind == Text {
			b.WriteString(c.Data)
		}
	}
	return strings.TrimSpace(b.String())
}

// ChildText is Child(name).Text() with a nil check.
func (n *Node) ChildText(name string) string {
	if c := n.Child(name); c != nil {
		return c.Text()
	}
	return ""
}

// ─── Mutation ─────────────────────────────────────────────────────────────────

// Append adds children and returns n for chaining.
func (n *Node) Append(children ...*Node) *Node {
	n.Children = append(n.Children, children...)
	return n
}

// AppendText adds a character data child.
func (n *Node) AppendText(s string) *Node {
	return n.Append(&Node{Kind: Text, Data: s})
}

// Clone returns a deep copy.
func (n *Node) Clone() *Node {
	c := &Node{Kind: n.Kind, Name: n.Name, Data: n.Data}
	if n.Attrs != nil {
		c.Attrs = append([]Attr(nil), n.Attrs...)
	}
	if n.Children != nil {
		c.Children = make([]*Node, len(n.Children))
		for i, ch := range n.Children {
			c.Children[i] = ch.Clone()
		}
	}
	return c
}

// ─── Writing ──────────────────────────────────────────────────────────────────

// Write renders n at the given indentation depth, two spaces per level.
// Elements holding only character data are written on a single line.
func Write(w io.Writer, n *Node, depth int) error {
	bw := bufio.NewWriter(w)
	if err := write(bw, n, depth); err != nil {
		return err
	}
	return bw.Flush()
}

func write(w *bufio.Writer, n *Node, depth int) error {
	pad := strings.Repeat("  ", depth)
	switch n.Kind {
	case Document:
		for _, c := range n.Children {
			if err := write(w, c, depth); err != nil {
				return err
			}
		}
		return nil
	case Text:
		w.WriteString(pad)
		if err := escape(w, strings.TrimSpace(n.Data)); err != nil {
			return err
		}
		_, err := w.WriteString("\n")
		return err
	case Comment:
		_, err := fmt.Fprintf(w, "%s<!--%s-->\n", pad, n.Data)
		return err
	}

	w.WriteString(pad)
	w.WriteString("<")
	w.WriteString(n.Name)
	for _, a := range n.Attrs {
		fmt.Fprintf(w, " %s=\"", a.Name)
		if err := escape(w, a.Value); err != nil {
			return err
		}
		w.WriteString("\"")
	}
	switch {
	case len(n.Children) == 0:
		_, err := w.WriteString("/>\n")
		return err
	case textOnly(n):
		w.WriteString(">")
		if err := escape(w, n.Text()); err != nil {
			return err
		}
		_, err := fmt.Fprintf(w, "</%s>\n", n.Name)
		return err
	}
	w.WriteString(">\n")
	for _, c := range n.Children {
		if err := write(w, c, depth+1); err != nil {
			return err
		}
	}
	_, err := fmt.Fprintf(w, "%s</%s>\n", pad, n.Name)
	return err
}

func textOnly(n *Node) bool {
	for _, c := range n.Children {
		if c.Kind != Text {
			return false
		}
	}
	return true
}

func escape(w io.Writer, s string) error {
	return xml.EscapeText(w, []byte(s))
}
