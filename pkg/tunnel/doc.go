// Package tunnel forwards TCP connections over a single websocket.
//
// Two roles share one wire format. The [Client] serves a websocket endpoint
// on localhost and, while a peer is attached, listens on a local TCP port and
// forwards every accepted connection through the websocket. The [Server]
// dials that endpoint, reconnecting after a delay when the link drops, and
// opens a connection to its local target for every new connection id it
// sees.
//
// Each websocket message is one frame:
//
//	+----------------------+------------------+
//	| id (uint32, LE)      | payload          |
//	+----------------------+------------------+
//
// A frame with an empty payload closes the write side of connection id.
// Frames shorter than four bytes and frames for id 0 are ignored.
//
// Reads from every local connection are driven through a coro channel (see
// [ReadChunks]), so a socket is read only as fast as the websocket accepts
// its frames.
package tunnel
