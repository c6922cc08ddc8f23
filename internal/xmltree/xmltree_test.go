package xmltree_test

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/derickschaefer/tvguidefetch/internal/xmltree"
)

const sample = `<?xml version="1.0" encoding="UTF-8"?>
<!DOCTYPE tv SYSTEM "xmltv.dtd">
<tv source="test">
  <!-- guide -->
  <programme start="20200101100000 +1000" stop="20200101110000 +1000" channel="x">
    <title lang="en">News &amp; Weather</title>
    <desc>Café</desc>
    <rating system="ACB"><value>PG</value></rating>
  </programme>
  <channel id="abc"/>
</tv>`

func parse(s string) (*xmltree.Node, error) {
	return xmltree.Parse(strings.NewReader(s))
}

func TestParseAndNavigate(t *testing.T) {
	doc, err := parse(sample)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	tv := doc.Find("/tv")
	if tv == nil {
		t.Fatal("expected /tv")
	}
	if got, _ := tv.Attr("source"); got != "test" {
		t.Errorf("source attr: got %q", got)
	}
	progs := tv.Elements("programme")
	if len(progs) != 1 {
		t.Fatalf("expected 1 programme, got %d", len(progs))
	}
	p := progs[0]
	if got := p.ChildText("title"); got != "News & Weather" {
		t.Errorf("title: got %q", got)
	}
	if got := p.ChildText("desc"); got != "Café" {
		t.Errorf("desc: got %q", got)
	}
	if v := doc.Find("tv/programme/rating/value"); v == nil || v.Text() != "PG" {
		t.Errorf("nested Find failed: %+v", v)
	}
	if doc.Find("/tv/missing") != nil {
		t.Error("expected nil for missing path")
	}
	if len(tv.Elements("")) != 2 {
		t.Errorf("expected 2 element children, got %d", len(tv.Elements("")))
	}
	if ch := tv.Child("channel"); ch == nil || len(ch.Children) != 0 {
		t.Error("self-closing element should have no children")
	}
}

func TestParseKeepsComments(t *testing.T) {
	doc, err := parse(sample)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	first := doc.Find("/tv").Children[0]
	if first.Kind != xmltree.Comment || strings.TrimSpace(first.Data) != "guide" {
		t.Errorf("expected leading comment, got %+v", first)
	}
}

func TestParseLatin1(t *testing.T) {
	raw := []byte("<?xml version=\"1.0\" encoding=\"ISO-8859-1\"?><tv><title>Caf\xe9</title></tv>")
	doc, err := xmltree.Parse(bytes.NewReader(raw))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if got := doc.Find("/tv/title").Text(); got != "Café" {
		t.Errorf("expected decoded Latin-1, got %q", got)
	}
}

func TestParseErrors(t *testing.T) {
	for _, in := range []string{
		"",
		"<!-- nothing -->",
		"<tv><a></b></tv>",
		"<tv><a>",
	} {
		if _, err := parse(in); err == nil {
			t.Errorf("Parse(%q): expected error", in)
		}
	}
	if _, err := parse("<!-- c -->"); !errors.Is(err, xmltree.ErrEmpty) {
		t.Errorf("expected ErrEmpty, got %v", err)
	}
}

func TestSetAttrAndClone(t *testing.T) {
	doc, _ := parse(`<programme start="a" stop="b"><title>T</title></programme>`)
	p := doc.Root()
	c := p.Clone()
	c.SetAttr("start", "z")
	c.SetAttr("channel", "chan")
	c.Child("title").Children[0].Data = "changed"

	if v, _ := p.Attr("start"); v != "a" {
		t.Errorf("clone mutation leaked into original attrs: %q", v)
	}
	if _, ok := p.Attr("channel"); ok {
		t.Error("clone append leaked into original")
	}
	if p.ChildText("title") != "T" {
		t.Error("clone mutation leaked into original children")
	}
	if v, _ := c.Attr("start"); v != "z" {
		t.Errorf("SetAttr replace: got %q", v)
	}
	if c.Attrs[len(c.Attrs)-1].Name != "channel" {
		t.Error("SetAttr should append unknown attributes at the end")
	}
}

func TestWrite(t *testing.T) {
	el := xmltree.NewElement("channel", xmltree.Attr{Name: "id", Value: "a&b"})
	el.Append(xmltree.NewElement("display-name", xmltree.Attr{Name: "lang", Value: "en"}).AppendText("ABC <1>"))
	el.Append(xmltree.NewElement("icon", xmltree.Attr{Name: "src", Value: "http://x/i.png"}))

	var buf bytes.Buffer
	if err := xmltree.Write(&buf, el, 1); err != nil {
		t.Fatalf("Write: %v", err)
	}
	want := "  <channel id=\"a&amp;b\">\n" +
		"    <display-name lang=\"en\">ABC &lt;1&gt;</display-name>\n" +
		"    <icon src=\"http://x/i.png\"/>\n" +
		"  </channel>\n"
	if buf.String() != want {
		t.Errorf("Write:\n got %q\nwant %q", buf.String(), want)
	}
}

func TestWriteThenParse(t *testing.T) {
	doc, err := parse(sample)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	var buf bytes.Buffer
	if err := xmltree.Write(&buf, doc, 0); err != nil {
		t.Fatalf("Write: %v", err)
	}
	again, err := parse(buf.String())
	if err != nil {
		t.Fatalf("re-Parse: %v\n%s", err, buf.String())
	}
	if got := again.Find("/tv/programme/title").Text(); got != "News & Weather" {
		t.Errorf("title after round trip: %q", got)
	}
	if v, _ := again.Find("/tv/programme/rating").Attr("system"); v != "ACB" {
		t.Errorf("rating system after round trip: %q", v)
	}
}
