package tunnel

import "encoding/binary"

// HeaderSize is the size of the connection id that prefixes every frame.
const HeaderSize = 4

// Encode builds a frame for connection id. A nil or empty payload encodes
// the close marker.
func Encode(id uint32, payload []byte) []byte {
	frame := make([]byte, HeaderSize+len(payload))
	binary.LittleEndian.PutUint32(frame, id)
	copy(frame[HeaderSize:], payload)
	return frame
}

// Decode splits a frame into its connection id and payload. Frames shorter
// than the header decode to id 0, which callers ignore. The payload aliases
// frame and is nil for a close marker.
func Decode(frame []byte) (id uint32, payload []byte) {
	if len(frame) < HeaderSize {
		return 0, nil
	}
	id = binary.LittleEndian.Uint32(frame)
	if len(frame) > HeaderSize {
		payload = frame[HeaderSize:]
	}
	return id, payload
}
