// fastview implements a builder pattern for simple server-side views:
// given an input data format, apply a transformation to a view-model,
// multiplex that data to one or more views, and push their element updates
// to the browser over a websocket.
package fastview

import (
	"html/template"
)

// EleUpdate is an element identifier and a set of operations to apply to it.
type EleUpdate struct {
	// The id by which to find the element
	EleId string
	// Op keys are attribute keys or one of the reserved property keys below; values are
	// the strings to which these are set. Example: ('x','123') means set attribute 'x' to 123.
	Ops []Op
}

// Reserved op keys, applied as element properties instead of attributes.
const (
	// ('textContent','abc') sets ele.textContent to abc.
	TextContent = "textContent"
	// ('value','3') sets the live value of an input or select.
	Value = "value"
	// ('disabled','true') disables a control; any other value enables it.
	Disabled = "disabled"
)

// Op is a key and value. For example an html attribute and its new value.
type Op struct {
	Key   string
	Value string
}

// ViewComponent implements a server side view: Parse adds its template to a parent and
// Updates delivers the ele-updates that keep the rendered page in sync.
type ViewComponent interface {
	Updates() <-chan []EleUpdate
	// Parse parses the view-component and adds it to the passed parent template, thus inheriting
	// or possibly extending its definition (func-map, etc). It returns the defined template name.
	Parse(*template.Template) (string, error)
}
