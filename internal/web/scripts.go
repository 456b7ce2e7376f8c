package web

import (
	"fmt"
	"io"
	"strings"

	"golang.org/x/net/html"
)

// Script is one <script> element.
type Script struct {
	Src    string // empty for inline scripts
	Type   string
	Async  bool
	Defer  bool
	Inline int // length of inline body
}

// Blocking reports whether the script blocks parsing, which decides whether
// it sees readyState "loading".
func (s Script) Blocking() bool {
	if s.Type == "module" {
		return false
	}
	return s.Src == "" || (!s.Async && !s.Defer)
}

func (s Script) String() string {
	name := s.Src
	if name == "" {
		name = fmt.Sprintf("<inline %d bytes>", s.Inline)
	}
	var flags []string
	if s.Async {
		flags = append(flags, "async")
	}
	if s.Defer {
		flags = append(flags, "defer")
	}
	if s.Type != "" {
		flags = append(flags, "type="+s.Type)
	}
	if len(flags) == 0 {
		return name
	}
	return name + " (" + strings.Join(flags, ", ") + ")"
}

// ScanScripts returns the document's scripts in document order.
func ScanScripts(r io.Reader) ([]Script, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("failed to parse html: %w", err)
	}

	var scripts []Script
	var traverse func(*html.Node)
	traverse = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "script" {
			s := Script{}
			for _, a := range n.Attr {
				switch strings.ToLower(a.Key) {
				case "src":
					s.Src = a.Val
				case "type":
					s.Type = a.Val
				case "async":
					s.Async = true
				case "defer":
					s.Defer = true
				}
			}
			if s.Src == "" && n.FirstChild != nil {
				s.Inline = len(n.FirstChild.Data)
			}
			scripts = append(scripts, s)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			traverse(c)
		}
	}
	traverse(doc)
	return scripts, nil
}
