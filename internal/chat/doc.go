// Package chat is the message log behind the WebSocket endpoint: an
// append-only table of room messages plus the small JSON protocol that
// saves and reads them.
package chat
