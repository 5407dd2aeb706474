package driver

import (
	"fmt"
	"strings"

	"golang.org/x/net/html"

	"github.com/entrhq/vouch/pkg/browser"
)

// DefaultDigestLength caps the visible-text portion of a page digest.
const DefaultDigestLength = 8000

// InteractiveElement is one clickable or fillable element surfaced to the
// model, addressed by its digest index.
type InteractiveElement struct {
	Index int    `json:"index"`
	Tag   string `json:"tag"`
	Text  string `json:"text"`
	Href  string `json:"href,omitempty"`
}

// PageDigest is a compact representation of the current page handed to the
// language model in place of raw HTML.
type PageDigest struct {
	URL         string
	Title       string
	Text        string
	Interactive []InteractiveElement
	Truncated   bool
}

// DigestPage builds a digest of the instance page's current state. maxLen
// caps the collected visible text; zero means DefaultDigestLength.
func DigestPage(page browser.Page, maxLen int) (*PageDigest, error) {
	if maxLen == 0 {
		maxLen = DefaultDigestLength
	}

	content, err := page.Content()
	if err != nil {
		return nil, fmt.Errorf("reading page content: %w", err)
	}
	doc, err := html.Parse(strings.NewReader(content))
	if err != nil {
		return nil, fmt.Errorf("parsing page content: %w", err)
	}

	digest := &PageDigest{URL: page.URL()}
	if title, err := page.Title(); err == nil {
		digest.Title = title
	}

	var text strings.Builder
	collectDigest(doc, digest, &text, maxLen)
	digest.Text = strings.TrimSpace(text.String())
	return digest, nil
}

// InteractiveSelector matches, in document order, exactly the elements a
// digest indexes. Evaluate scripts that resolve a digest index to a live
// element must pair it with SkippedSelector, or the counts drift apart.
const InteractiveSelector = "a,button,input,select,textarea,summary," +
	"[role=button],[role=tab],[role=link],[role=menuitem],[role=option]"

// SkippedSelector matches the containers the digest never descends into.
const SkippedSelector = "script,style,noscript,svg,head,template"

// interactiveTags are elements always surfaced as actionable.
var interactiveTags = map[string]bool{
	"a": true, "button": true, "input": true,
	"select": true, "textarea": true, "summary": true,
}

// skippedTags contribute no visible text and no interactive elements.
var skippedTags = map[string]bool{
	"script": true, "style": true, "noscript": true,
	"svg": true, "head": true, "template": true,
}

func collectDigest(n *html.Node, digest *PageDigest, text *strings.Builder, maxLen int) {
	if n.Type == html.CommentNode {
		return
	}
	if n.Type == html.ElementNode {
		if skippedTags[n.Data] {
			return
		}
		if interactiveTags[n.Data] || nodeRole(n) != "" {
			digest.Interactive = append(digest.Interactive, InteractiveElement{
				Index: len(digest.Interactive),
				Tag:   n.Data,
				Text:  nodeLabel(n),
				Href:  nodeAttr(n, "href"),
			})
		}
	}
	if n.Type == html.TextNode {
		trimmed := strings.TrimSpace(n.Data)
		if trimmed != "" {
			if text.Len() >= maxLen {
				digest.Truncated = true
				return
			}
			if text.Len() > 0 {
				text.WriteByte(' ')
			}
			text.WriteString(trimmed)
		}
	}
	for child := n.FirstChild; child != nil; child = child.NextSibling {
		collectDigest(child, digest, text, maxLen)
	}
}

// nodeLabel resolves the human-visible label of an element: its text, or
// an aria-label / placeholder / value fallback for unlabeled controls.
func nodeLabel(n *html.Node) string {
	if text := strings.TrimSpace(nodeText(n)); text != "" {
		return text
	}
	for _, attr := range []string{"aria-label", "placeholder", "value", "title", "name"} {
		if v := nodeAttr(n, attr); v != "" {
			return v
		}
	}
	return ""
}

// interactiveRoles mirrors what the recovery cascade considers clickable.
var interactiveRoles = map[string]bool{
	"button": true, "tab": true, "link": true, "menuitem": true, "option": true,
}

func nodeRole(n *html.Node) string {
	role := nodeAttr(n, "role")
	if interactiveRoles[role] {
		return role
	}
	return ""
}

func nodeAttr(n *html.Node, key string) string {
	for _, attr := range n.Attr {
		if attr.Key == key {
			return strings.TrimSpace(attr.Val)
		}
	}
	return ""
}

func nodeText(n *html.Node) string {
	if n.Type == html.TextNode {
		return n.Data
	}
	var parts []string
	for child := n.FirstChild; child != nil; child = child.NextSibling {
		if part := strings.TrimSpace(nodeText(child)); part != "" {
			parts = append(parts, part)
		}
	}
	return strings.Join(parts, " ")
}

// Prompt renders the digest in the form handed to the language model.
func (d *PageDigest) Prompt() string {
	var b strings.Builder
	fmt.Fprintf(&b, "URL: %s\nTitle: %s\n\n", d.URL, d.Title)

	if len(d.Interactive) > 0 {
		b.WriteString("Interactive elements:\n")
		for _, el := range d.Interactive {
			fmt.Fprintf(&b, "  [%d] <%s> %s\n", el.Index, el.Tag, el.Text)
		}
		b.WriteByte('\n')
	}

	b.WriteString("Page text:\n")
	b.WriteString(d.Text)
	if d.Truncated {
		b.WriteString("\n[content truncated]")
	}
	return b.String()
}
