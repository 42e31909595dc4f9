//go:build js && wasm

// Command frontend binds the prompt form on the host page. Build it with
// GOOS=js GOARCH=wasm and serve the result as /static/main.wasm.
package main

import (
	"fmt"
	"log/slog"
	"os"
	"syscall/js"

	"honnef.co/go/js/dom/v2"

	"prompt-form/internal/integrations/generate"
	"prompt-form/internal/render"
	"prompt-form/internal/usecase"
)

var document = dom.GetWindow().Document().(dom.HTMLDocument)

func main() {
	loaded := make(chan struct{})
	switch readyState := document.ReadyState(); readyState {
	case "loading":
		document.AddEventListener("DOMContentLoaded", false, func(dom.Event) { close(loaded) })
	case "interactive", "complete":
		close(loaded)
	default:
		panic(fmt.Errorf("internal error: unexpected document.ReadyState value: %v", readyState))
	}
	<-loaded

	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	if err := bind(logger); err != nil {
		logger.Error("failed to bind prompt form", "err", err)
		return
	}
	select {}
}

func bind(logger *slog.Logger) error {
	form, err := lookup("promptForm")
	if err != nil {
		return err
	}
	input, err := lookup("prompt")
	if err != nil {
		return err
	}
	output, err := lookup("response")
	if err != nil {
		return err
	}
	value, ok := input.(interface{ Value() string })
	if !ok {
		return fmt.Errorf("element #prompt is a %T, not an input", input)
	}

	origin := js.Global().Get("location").Get("origin").String()
	client, err := generate.NewClient(origin)
	if err != nil {
		return err
	}

	_, err = usecase.Bind(formElement{form}, value, displayElement{output}, client,
		usecase.WithRenderer(render.HTML{}),
		usecase.WithLogger(logger),
	)
	return err
}

func lookup(id string) (dom.Element, error) {
	el := document.GetElementByID(id)
	if el == nil {
		return nil, fmt.Errorf("element #%s not found", id)
	}
	return el, nil
}

type formElement struct {
	el dom.Element
}

// OnSubmit registers listener for the form's submit event. The listener
// must not block: the submitter runs the request on its own goroutine.
func (f formElement) OnSubmit(listener func(usecase.Event)) {
	f.el.AddEventListener("submit", false, func(ev dom.Event) {
		listener(ev)
	})
}

type displayElement struct {
	el dom.Element
}

func (d displayElement) Render(content string) {
	d.el.SetInnerHTML(content)
}
