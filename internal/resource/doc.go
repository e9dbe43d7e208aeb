// Package resource bounds the work a result writer puts on its blob store.
//
// A Controller limits how many blob writes are in flight and, optionally, how many
// bytes per second are written. A nil *Controller imposes no limits.
package resource
