package guide

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/derickschaefer/tvguidefetch/internal/xmltree"
)

// ErrNoCatalogueRoot is returned when the catalogue has no <tv> element.
var ErrNoCatalogueRoot = errors.New("catalogue has no <tv> root")

// Catalogue is the parsed datalist: every <channel> it lists, keyed by id,
// in document order.
type Catalogue struct {
	ids   []string
	nodes map[string]*xmltree.Node
}

// ParseCatalogue parses a decoded datalist document. A channel without an
// id attribute cannot be referenced and is ignored; a repeated id keeps the
// first occurrence.
func ParseCatalogue(data []byte) (*Catalogue, error) {
	doc, err := xmltree.Parse(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("parsing catalogue: %w", err)
	}
	tv := doc.Find("tv")
	if tv == nil {
		return nil, ErrNoCatalogueRoot
	}
	cat := &Catalogue{nodes: make(map[string]*xmltree.Node)}
	for _, n := range tv.Elements("channel") {
		id, ok := n.Attr("id")
		if !ok || id == "" {
			continue
		}
		if _, dup := cat.nodes[id]; dup {
			continue
		}
		cat.ids = append(cat.ids, id)
		cat.nodes[id] = n
	}
	return cat, nil
}

// Lookup returns the <channel> element with the given id, or nil.
func (c *Catalogue) Lookup(id string) *xmltree.Node {
	return c.nodes[id]
}

// Len returns the number of channels listed.
func (c *Catalogue) Len() int { return len(c.ids) }

// Channels builds a Channel for every catalogue entry, without local
// overrides or fillin feeds. Used for listing.
func (c *Catalogue) Channels() ([]*Channel, error) {
	out := make([]*Channel, 0, len(c.ids))
	for _, id := range c.ids {
		ch := newChannel(id)
		if err := ch.applySettings(c.nodes[id]); err != nil {
			return nil, err
		}
		ch.Primary.load(c.nodes[id])
		out = append(out, ch)
	}
	return out, nil
}
