package markov

import (
	"fmt"
	"html"
	"strings"
)

// RenderHTML renders a Page to a full HTML document. Escaping uses the
// stdlib html package throughout since every value here is either
// generator-controlled or a path fragment — never arbitrary attacker
// input — but escaping costs nothing and keeps the output well-formed
// regardless.
func RenderHTML(p Page, fingerprintScript bool) string {
	var sb strings.Builder
	sb.WriteString("<!DOCTYPE html>\n<html lang=\"en\"><head><meta charset=\"utf-8\">")
	sb.WriteString("<title>")
	sb.WriteString(html.EscapeString(p.Title))
	sb.WriteString("</title></head><body>\n")
	sb.WriteString("<h1>")
	sb.WriteString(html.EscapeString(p.Title))
	sb.WriteString("</h1>\n")

	for _, para := range p.Paragraphs {
		sb.WriteString("<p>")
		sb.WriteString(html.EscapeString(para))
		sb.WriteString("</p>\n")
	}

	if len(p.Links) > 0 {
		sb.WriteString("<ul>\n")
		for _, link := range p.Links {
			sb.WriteString(fmt.Sprintf("<li><a href=%q>%s</a></li>\n", link, html.EscapeString(strings.TrimPrefix(link, "/"))))
		}
		sb.WriteString("</ul>\n")
	}

	if fingerprintScript {
		sb.WriteString(fingerprintScriptTag)
	}

	sb.WriteString("</body></html>\n")
	return sb.String()
}

// fingerprintScriptTag is a tiny, inert script included only when
// RenderHTML's fingerprintScript argument is true. It collects nothing the
// tarpit handler doesn't already see server-side (the handler already
// has every header); it exists purely as a behavioral probe — automated
// clients that don't execute JS never fire it, a signal the escalation
// engine could incorporate via a follow-up beacon endpoint in a future
// iteration.
const fingerprintScriptTag = `<script>try{navigator.sendBeacon&&navigator.sendBeacon('/tarpit/_beacon','1')}catch(e){}</script>
`
