package datalayer

import (
	_ "embed"
	"strings"
)

var (
	// getJS is a javascript function that returns the value of a variable in
	// a container's data model.
	//go:embed js/get.js
	getJS string

	// dataModelJS is a javascript function that returns a container's whole
	// data model.
	//go:embed js/dataModel.js
	dataModelJS string

	// containerIDsJS is a javascript function that lists the container ids
	// registered in window.google_tag_manager.
	//go:embed js/containerIDs.js
	containerIDsJS string

	// messagesJS is a javascript function that returns the dataLayer,
	// optionally filtered by event name, with host objects replaced by a
	// placeholder.
	//go:embed js/messages.js
	messagesJS string

	// pushJS is a javascript function that pushes a message to the dataLayer.
	//go:embed js/push.js
	pushJS string

	// hasEventJS is a javascript predicate that reports whether the
	// dataLayer holds a message with the given event name.
	//go:embed js/hasEvent.js
	hasEventJS string

	// isHostObjectJS is the default host object predicate: DOM nodes.
	//go:embed js/isHostObject.js
	isHostObjectJS string
)

// withHostObject fills the isHostObject placeholder of a function template.
func withHostObject(tmpl, isHostObject string) string {
	return strings.Replace(tmpl, "%s", strings.TrimSpace(isHostObject), 1)
}
