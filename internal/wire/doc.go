// Package wire implements the Debug Adapter Protocol wire format: the
// tagged-variant message model (request, response, event) and the
// Content-Length framed codec used over the adapter's stdio streams.
package wire
