package guide

import (
	"bufio"
	"io"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/transform"

	"github.com/derickschaefer/tvguidefetch/internal/fetch"
	"github.com/derickschaefer/tvguidefetch/internal/schedule"
	"github.com/derickschaefer/tvguidefetch/internal/tvdate"
	"github.com/derickschaefer/tvguidefetch/internal/xmltree"
)

// GeneratorName is written into the <tv> element.
const GeneratorName = fetch.Name + " version " + fetch.Version

const xmltvHeader = `<?xml version="1.0" encoding="ISO-8859-1"?>
<!DOCTYPE tv SYSTEM "xmltv.dtd">
<tv generator-info-name="` + GeneratorName + `">
`

// WriteXMLTV writes the guide as an ISO-8859-1 XMLTV document: every
// <channel> first, then each channel's programmes in start order. Runes
// outside Latin-1 become numeric character references.
func WriteXMLTV(w io.Writer, g *Guide) error {
	enc := transform.NewWriter(w, encoding.HTMLEscapeUnsupported(charmap.ISO8859_1.NewEncoder()))
	bw := bufio.NewWriter(enc)

	if _, err := bw.WriteString(xmltvHeader); err != nil {
		return err
	}
	for _, e := range g.Entries {
		if err := xmltree.Write(bw, e.Channel.XML(), 1); err != nil {
			return err
		}
	}
	for _, e := range g.Entries {
		for _, p := range e.Schedule.Programs() {
			if err := xmltree.Write(bw, programmeNode(e.Channel.ID, p), 1); err != nil {
				return err
			}
		}
	}
	if _, err := bw.WriteString("</tv>\n"); err != nil {
		return err
	}
	if err := bw.Flush(); err != nil {
		return err
	}
	return enc.Close()
}

// programmeNode copies the source element with start, stop and channel
// rewritten. Fragments of a split programme each get their own copy.
func programmeNode(channelID string, p schedule.Program) *xmltree.Node {
	var n *xmltree.Node
	if p.Node != nil {
		n = p.Node.Clone()
	} else {
		n = xmltree.NewElement("programme")
		n.Append(xmltree.NewElement("title").AppendText(p.Title))
	}
	n.SetAttr("start", p.Start.Format(tvdate.XMLTV))
	n.SetAttr("stop", p.Stop.Format(tvdate.XMLTV))
	n.SetAttr("channel", channelID)
	return n
}
