package protocol

// IsAudioPayload reports whether a binary frame looks like encoded audio.
// The backend sends MP3 segments, which begin either with an ID3v2 tag or
// directly with an MPEG frame sync word.
func IsAudioPayload(frame []byte) bool {
	if len(frame) < 4 {
		return false
	}
	if frame[0] == 'I' && frame[1] == 'D' && frame[2] == '3' {
		return true
	}
	return frame[0] == 0xFF && frame[1]&0xE0 == 0xE0
}
