// Package render builds the HTML fragments shown in the page's display
// element. All service-provided text goes through text nodes and is escaped.
package render

import (
	"github.com/shurcooL/htmlg"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"prompt-form/internal/usecase"
)

// HTML renders submissions for the browser display element.
type HTML struct{}

var _ usecase.Renderer = HTML{}

// Loading is the bare indicator text; it carries no markup.
func (HTML) Loading() string {
	return usecase.LoadingText
}

func (HTML) Result(text string) string {
	return htmlg.Render(withClass(htmlg.Div(
		htmlg.Pre(htmlg.Text(text)),
	), "result"))
}

func (HTML) Failure(err *usecase.Error) string {
	if err != nil && err.Code == usecase.ErrorApplication {
		return htmlg.Render(withClass(htmlg.Div(
			htmlg.Strong("Error:"),
			htmlg.Text(" "+err.Message),
		), "error"))
	}
	return htmlg.Render(withClass(htmlg.Div(
		htmlg.Text(usecase.FailureText(err)),
	), "error"))
}

func withClass(n *html.Node, class string) *html.Node {
	n.Attr = append(n.Attr, html.Attribute{Key: atom.Class.String(), Val: class})
	return n
}
