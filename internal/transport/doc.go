// Package transport owns the serial exchange loop.
//
// Ownership boundary:
// - receive loop: read, reassemble, decode, dispatch, reply
// - outbound command framing for replies and host notifications
// - one lock serializing every touch of the channel and the frame decoder
//
// There is no request/response correlation beyond the header index and no
// retry for a request that never gets a reply.
package transport
