// Package render turns ssb messages into terminal text: markdown post bodies
// through glamour and one-line summaries for lists.
package render

import (
	"regexp"
	"strings"
	"sync"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/glamour/styles"

	"github.com/planetary-social/planetary-cli/internal/ssb"
)

// refLink matches markdown links whose target is an ssb reference rather
// than a URL, such as [@alice](@abc=.ed25519).
var refLink = regexp.MustCompile(`\[([^\]]*)\]\(([@%&][^)\s]*)\)`)

var reANSICodes = regexp.MustCompile(`\x1b\[[0-9;]*m`)

type Options struct {
	// Style is a glamour standard style name. Empty picks one from the
	// terminal background.
	Style string
}

// Renderer renders post bodies. Glamour renderers are built per wrap width
// and reused.
type Renderer struct {
	opts Options

	mu        sync.Mutex
	renderers map[int]*glamour.TermRenderer
}

func NewRenderer(opts Options) *Renderer {
	return &Renderer{opts: opts, renderers: make(map[int]*glamour.TermRenderer)}
}

var plainRenderer = NewRenderer(Options{Style: styles.NoTTYStyle})

// PostText renders the body of msg wrapped to width without terminal styling.
func PostText(msg ssb.Message, width int) string {
	return plainRenderer.Post(msg, width)
}

// Post renders the body of msg wrapped to width. Non-post messages render
// as their summary. Markdown that glamour rejects falls back to wrapped text.
func (r *Renderer) Post(msg ssb.Message, width int) string {
	width = max(width, 10)
	c := msg.Value.Content
	if c.Type != ssb.ContentPost || c.Post == nil {
		return strings.Join(wrapText(Summary(msg), width), "\n")
	}

	md := markdownSource(c.Post.Text)
	if md == "" {
		return ""
	}
	if out, err := r.render(md, width); err == nil {
		return strings.Trim(out, "\n")
	}
	return strings.Join(wrapText(md, width), "\n")
}

func (r *Renderer) render(md string, width int) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	tr, err := r.termRenderer(width)
	if err != nil {
		return "", err
	}
	return tr.Render(md)
}

// termRenderer must be called with mu held.
func (r *Renderer) termRenderer(width int) (*glamour.TermRenderer, error) {
	if tr, ok := r.renderers[width]; ok {
		return tr, nil
	}
	style := glamour.WithAutoStyle()
	if r.opts.Style != "" {
		style = glamour.WithStandardStyle(r.opts.Style)
	}
	tr, err := glamour.NewTermRenderer(style, glamour.WithWordWrap(width))
	if err != nil {
		return nil, err
	}
	r.renderers[width] = tr
	return tr, nil
}

// markdownSource strips embedded HTML and reference links from post text.
func markdownSource(text string) string {
	text = strings.TrimSpace(text)
	if strings.ContainsRune(text, '<') {
		text = stripHTML(text)
	}
	text = refLink.ReplaceAllString(text, "$1")
	return strings.TrimSpace(text)
}

func stripANSI(s string) string {
	return reANSICodes.ReplaceAllString(s, "")
}
