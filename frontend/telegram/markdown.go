package telegram

import (
	"bytes"
	"fmt"
	"html"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	extast "github.com/yuin/goldmark/extension/ast"
	"github.com/yuin/goldmark/renderer"
	"github.com/yuin/goldmark/util"
)

// MarkdownToHTML converts LLM-produced Markdown into the HTML subset the
// Bot API accepts with parse_mode=HTML: b, i, s, code, pre, a, blockquote.
// Headings become bold lines and list items are written out as text
// bullets, since Telegram has no list tags.
func MarkdownToHTML(md string) string {
	gm := goldmark.New(
		goldmark.WithExtensions(extension.Strikethrough),
		goldmark.WithRenderer(renderer.NewRenderer(
			renderer.WithNodeRenderers(util.Prioritized(&htmlRenderer{}, 1)),
		)),
	)
	var buf bytes.Buffer
	if err := gm.Convert([]byte(md), &buf); err != nil {
		return escape(md)
	}
	return strings.TrimSpace(buf.String())
}

// escape quotes only what Telegram's HTML parser requires: <, > and &.
func escape(s string) string {
	return html.EscapeString(s)
}

type htmlRenderer struct {
	// counters holds the next number of each open list; -1 marks a bullet list.
	counters []int
}

func (r *htmlRenderer) RegisterFuncs(reg renderer.NodeRendererFuncRegisterer) {
	reg.Register(ast.KindDocument, noop)
	reg.Register(ast.KindHeading, wrap("\n<b>", "</b>\n"))
	reg.Register(ast.KindParagraph, r.paragraph)
	reg.Register(ast.KindBlockquote, wrap("<blockquote>", "</blockquote>"))
	reg.Register(ast.KindFencedCodeBlock, r.fencedCode)
	reg.Register(ast.KindCodeBlock, r.code)
	reg.Register(ast.KindList, r.list)
	reg.Register(ast.KindListItem, r.listItem)
	reg.Register(ast.KindTextBlock, r.textBlock)
	reg.Register(ast.KindThematicBreak, r.thematicBreak)
	reg.Register(ast.KindHTMLBlock, r.rawLines)

	reg.Register(ast.KindText, r.text)
	reg.Register(ast.KindString, r.str)
	reg.Register(ast.KindCodeSpan, wrap("<code>", "</code>"))
	reg.Register(ast.KindEmphasis, r.emphasis)
	reg.Register(ast.KindLink, r.link)
	reg.Register(ast.KindAutoLink, r.autoLink)
	reg.Register(ast.KindImage, r.image)
	reg.Register(ast.KindRawHTML, r.rawInline)
	reg.Register(extast.KindStrikethrough, wrap("<s>", "</s>"))
}

func noop(util.BufWriter, []byte, ast.Node, bool) (ast.WalkStatus, error) {
	return ast.WalkContinue, nil
}

// wrap renders open before a node's children and close after them.
func wrap(open, close string) renderer.NodeRendererFunc {
	return func(w util.BufWriter, _ []byte, _ ast.Node, entering bool) (ast.WalkStatus, error) {
		if entering {
			_, _ = w.WriteString(open)
		} else {
			_, _ = w.WriteString(close)
		}
		return ast.WalkContinue, nil
	}
}

func (r *htmlRenderer) paragraph(w util.BufWriter, _ []byte, _ ast.Node, entering bool) (ast.WalkStatus, error) {
	if !entering {
		_, _ = w.WriteString("\n")
	}
	return ast.WalkContinue, nil
}

func (r *htmlRenderer) fencedCode(w util.BufWriter, src []byte, node ast.Node, entering bool) (ast.WalkStatus, error) {
	if !entering {
		return ast.WalkContinue, nil
	}
	if lang := node.(*ast.FencedCodeBlock).Language(src); len(lang) > 0 {
		_, _ = fmt.Fprintf(w, `<pre><code class="language-%s">`, escape(string(lang)))
	} else {
		_, _ = w.WriteString("<pre><code>")
	}
	writeLines(w, src, node, true)
	_, _ = w.WriteString("</code></pre>")
	return ast.WalkSkipChildren, nil
}

func (r *htmlRenderer) code(w util.BufWriter, src []byte, node ast.Node, entering bool) (ast.WalkStatus, error) {
	if !entering {
		return ast.WalkContinue, nil
	}
	_, _ = w.WriteString("<pre><code>")
	writeLines(w, src, node, true)
	_, _ = w.WriteString("</code></pre>")
	return ast.WalkSkipChildren, nil
}

func (r *htmlRenderer) rawLines(w util.BufWriter, src []byte, node ast.Node, entering bool) (ast.WalkStatus, error) {
	if entering {
		writeLines(w, src, node, false)
	}
	return ast.WalkContinue, nil
}

func writeLines(w util.BufWriter, src []byte, node ast.Node, escaped bool) {
	lines := node.Lines()
	for i := 0; i < lines.Len(); i++ {
		seg := lines.At(i)
		if escaped {
			_, _ = w.WriteString(escape(string(seg.Value(src))))
		} else {
			_, _ = w.Write(seg.Value(src))
		}
	}
}

func (r *htmlRenderer) list(w util.BufWriter, _ []byte, node ast.Node, entering bool) (ast.WalkStatus, error) {
	if entering {
		if p := node.Parent(); p != nil && p.Kind() == ast.KindListItem {
			_, _ = w.WriteString("\n")
		}
		n := node.(*ast.List)
		start := -1
		if n.IsOrdered() {
			start = n.Start
		}
		r.counters = append(r.counters, start)
	} else if len(r.counters) > 0 {
		r.counters = r.counters[:len(r.counters)-1]
	}
	return ast.WalkContinue, nil
}

func (r *htmlRenderer) listItem(w util.BufWriter, _ []byte, _ ast.Node, entering bool) (ast.WalkStatus, error) {
	if !entering {
		_, _ = w.WriteString("\n")
		return ast.WalkContinue, nil
	}
	depth := len(r.counters)
	if depth == 0 {
		_, _ = w.WriteString("• ")
		return ast.WalkContinue, nil
	}
	_, _ = w.WriteString(strings.Repeat("  ", depth-1))
	if n := r.counters[depth-1]; n >= 0 {
		_, _ = fmt.Fprintf(w, "%d. ", n)
		r.counters[depth-1]++
	} else {
		_, _ = w.WriteString("• ")
	}
	return ast.WalkContinue, nil
}

func (r *htmlRenderer) textBlock(w util.BufWriter, _ []byte, node ast.Node, entering bool) (ast.WalkStatus, error) {
	if !entering && node.Parent() != nil && node.Parent().Kind() != ast.KindListItem {
		_, _ = w.WriteString("\n")
	}
	return ast.WalkContinue, nil
}

func (r *htmlRenderer) thematicBreak(w util.BufWriter, _ []byte, _ ast.Node, entering bool) (ast.WalkStatus, error) {
	if entering {
		_, _ = w.WriteString("\n---\n")
	}
	return ast.WalkContinue, nil
}

func (r *htmlRenderer) text(w util.BufWriter, src []byte, node ast.Node, entering bool) (ast.WalkStatus, error) {
	if !entering {
		return ast.WalkContinue, nil
	}
	n := node.(*ast.Text)
	_, _ = w.WriteString(escape(string(n.Segment.Value(src))))
	if n.SoftLineBreak() || n.HardLineBreak() {
		_, _ = w.WriteString("\n")
	}
	return ast.WalkContinue, nil
}

func (r *htmlRenderer) str(w util.BufWriter, _ []byte, node ast.Node, entering bool) (ast.WalkStatus, error) {
	if entering {
		_, _ = w.WriteString(escape(string(node.(*ast.String).Value)))
	}
	return ast.WalkContinue, nil
}

func (r *htmlRenderer) emphasis(w util.BufWriter, src []byte, node ast.Node, entering bool) (ast.WalkStatus, error) {
	if node.(*ast.Emphasis).Level == 2 {
		return wrap("<b>", "</b>")(w, src, node, entering)
	}
	return wrap("<i>", "</i>")(w, src, node, entering)
}

func (r *htmlRenderer) link(w util.BufWriter, _ []byte, node ast.Node, entering bool) (ast.WalkStatus, error) {
	if entering {
		_, _ = fmt.Fprintf(w, `<a href="%s">`, escape(string(node.(*ast.Link).Destination)))
	} else {
		_, _ = w.WriteString("</a>")
	}
	return ast.WalkContinue, nil
}

func (r *htmlRenderer) autoLink(w util.BufWriter, src []byte, node ast.Node, entering bool) (ast.WalkStatus, error) {
	if entering {
		u := escape(string(node.(*ast.AutoLink).URL(src)))
		_, _ = fmt.Fprintf(w, `<a href="%s">%s</a>`, u, u)
	}
	return ast.WalkContinue, nil
}

// image renders as a link; the Bot API has no inline images in HTML text.
func (r *htmlRenderer) image(w util.BufWriter, _ []byte, node ast.Node, entering bool) (ast.WalkStatus, error) {
	if entering {
		_, _ = fmt.Fprintf(w, `<a href="%s">`, escape(string(node.(*ast.Image).Destination)))
	} else {
		_, _ = w.WriteString("</a>")
	}
	return ast.WalkContinue, nil
}

func (r *htmlRenderer) rawInline(w util.BufWriter, src []byte, node ast.Node, entering bool) (ast.WalkStatus, error) {
	if !entering {
		return ast.WalkContinue, nil
	}
	segs := node.(*ast.RawHTML).Segments
	for i := 0; i < segs.Len(); i++ {
		seg := segs.At(i)
		_, _ = w.Write(seg.Value(src))
	}
	return ast.WalkContinue, nil
}
