package parser

import "strings"

// logPrefix is the canonical Source-engine log line prefix.
const logPrefix = "L "

// Normalize strips the UDP wire framing from a raw datagram payload and
// returns the canonical log line. Game servers prepend four 0xFF bytes
// plus "log " to every packet; some proxies add their own garbage. The
// line is returned as-is when no "L " marker is found so Parse can
// reject it with a useful error.
func Normalize(payload string) string {
	line := strings.TrimLeft(payload, "\xff \t\r\n\x00")
	if strings.HasPrefix(line, logPrefix) {
		return strings.TrimRight(line, "\r\n\x00")
	}
	if idx := strings.Index(line, logPrefix); idx >= 0 {
		return strings.TrimRight(line[idx:], "\r\n\x00")
	}
	return strings.TrimSpace(line)
}
