// Package protocol implements the request/response/event engine of the
// Debug Adapter Protocol client.
//
// The package provides a Conn that owns sequence-number allocation, the
// correlation table matching asynchronous responses back to their waiting
// requests, and the reader loop that decodes frames from the adapter's
// output stream for the lifetime of the connection.
//
// Correlation is exclusively by request_seq, never by arrival order: the
// adapter may answer requests out of order and each waiter still receives
// exactly the response matching its own request.
//
// Example usage:
//
//	conn := protocol.New(&protocol.Config{Logger: log}, stdin)
//	conn.Start(stdout)
//
//	resp, err := conn.SendRequest(ctx, "initialize", map[string]any{
//		"pathFormat": "path",
//	})
package protocol
