// Package knx provides the field-bus data model shared by the go-tpuart packages.
//
// # Canonical Telegram Layout
//
// Every telegram handled by the driver uses a single byte layout, regardless of
// which wire sub-format the transceiver emitted:
//
//	[Control][ExtControl][Src Hi][Src Lo][Dst Hi][Dst Lo][Length][Payload(Length)][TPCI][Checksum]
//
// The total size is always Length + 9 and is derived from the length field;
// a Telegram never stores its size separately from its content.
//
// # Addresses
//
// IndividualAddress identifies one device on the bus and is written as
// area.line.device (e.g. 1.1.250). The zero value means "not assigned".
// GroupAddress is written in the three-level main/middle/sub notation.
package knx
