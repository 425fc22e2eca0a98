// Package server implements the HTTP and WebSocket front of SketchHub.
//
// Each WebSocket connection becomes a Client whose read pump feeds a
// chat.Dispatcher and whose write pump drains a bounded queue of JSON
// envelopes of the form {"event": name, "data": payload}. The Hub tracks
// live clients and closes them on shutdown. Plain HTTP routes serve the
// welcome text, health, a manual test page, and the operator broadcast.
package server
