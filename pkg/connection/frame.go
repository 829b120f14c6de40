package connection

// FrameSize is the fixed length of a throw notification payload. The board
// sends frames of the form a1 03 XX 00 00, where XX is the segment code.
const FrameSize = 5

// segmentByteIndex is the 0-indexed position of the segment code within a
// frame. The remaining bytes are reserved at this layer.
const segmentByteIndex = 2

// extractCode validates a notification payload and pulls out the segment
// code. Payloads of unexpected size yield ok=false and are dropped by the
// caller with a diagnostic, never surfaced as an error.
func extractCode(data []byte) (code byte, ok bool) {
	if len(data) != FrameSize {
		return 0, false
	}
	return data[segmentByteIndex], true
}
