// Package protocol defines the terminal wire format spoken over the websocket.
//
// Every frame is a JSON envelope {type, payload, timestamp}. Byte streams
// (input, output and replayed history) are base64 in JSON. Frames are encoded
// with bytedance/sonic using encoding/json compatible settings.
//
// Client → Server: create, input, resize, close, listMine, reattach, ping.
// Server → Client: connected, created, output, stats, sessionList,
// reattached, closed, terminated, error, pong.
package protocol
