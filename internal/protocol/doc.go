// Package protocol owns the ByteBeam command contract.
//
// Ownership boundary:
// - command codes, zone and config data model
// - value validation ahead of encoding
// - command payload encode/decode (framing lives in protocol/frame)
package protocol
