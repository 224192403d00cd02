// Package datalayer reads and writes the Google Tag Manager (GTM) state of a
// web page: the window.dataLayer message queue and the data models of the
// containers registered in window.google_tag_manager.
//
// A DataLayer runs small javascript functions in the page through a Page,
// which is implemented for chromedp targets by Tab and for an in-process
// javascript runtime by the jsvm package. Values that cannot cross the
// boundary as JSON, such as DOM nodes, are replaced with a placeholder
// string.
package datalayer
