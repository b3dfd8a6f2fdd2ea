package funcall

import "strings"

// CallEnd closes an encoded function call.
const CallEnd = "</function_call>"

// ContainsMarker reports whether text contains the tool-use marker.
func ContainsMarker(text string) bool {
	return strings.Contains(text, Marker)
}

// PartialMarkerLen returns the length of the longest suffix of text that is
// a proper prefix of Marker. Stream consumers hold that many bytes back
// until the next fragment shows whether the marker is being written.
func PartialMarkerLen(text string) int {
	n := len(Marker) - 1
	if n > len(text) {
		n = len(text)
	}
	for ; n > 0; n-- {
		if strings.HasSuffix(text, Marker[:n]) {
			return n
		}
	}
	return 0
}

// CallComplete reports whether text holds the marker followed by a closed
// function-call block. Stream consumers wait for it before parsing so that
// a call is not decoded with half of its arguments.
func CallComplete(text string) bool {
	i := strings.Index(text, Marker)
	return i >= 0 && strings.Contains(text[i:], CallEnd)
}
