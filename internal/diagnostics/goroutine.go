package diagnostics

import "runtime"

// goroutineHeaderSize fits "goroutine 18446744073709551615 [".
const goroutineHeaderSize = 64

// CurrentGoroutineID returns the id of the calling goroutine, parsed from the
// header line of its own stack trace. It uses a fixed stack buffer.
func CurrentGoroutineID() uint64 {
	var buf [goroutineHeaderSize]byte
	n := runtime.Stack(buf[:], false)
	return parseGoroutineID(buf[:n])
}

func parseGoroutineID(header []byte) uint64 {
	const prefix = "goroutine "
	if len(header) < len(prefix) || string(header[:len(prefix)]) != prefix {
		return 0
	}
	var id uint64
	for _, c := range header[len(prefix):] {
		if c < '0' || c > '9' {
			break
		}
		id = id*10 + uint64(c-'0')
	}
	return id
}
