package keycodec

// type tags, ascending in key order: number < date < string < binary < array
const (
	terminator byte = 0x00

	numberValue byte = 0x10
	dateValue   byte = 0x20
	stringValue byte = 0x30
	binaryValue byte = 0x40
	arrayValue  byte = 0x50

	// inside string and binary payloads
	escapeNull byte = 0xFF
	endOfBytes byte = 0x01
)
