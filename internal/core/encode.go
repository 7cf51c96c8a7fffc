package core

import (
	"strconv"
	"time"
	"unicode/utf8"
	"unsafe"
)

// AppendJSON appends the JSON encoding of the report to dst. It does not
// allocate when dst has enough spare capacity, which lets the crash path
// encode into a buffer reserved at install time.
func (r *CrashReport) AppendJSON(dst []byte) []byte {
	dst = append(dst, `{"id":`...)
	dst = appendJSONString(dst, r.ID)

	dst = append(dst, `,"cause":`...)
	dst = r.Cause.appendJSON(dst)

	dst = append(dst, `,"thread_id":`...)
	dst = strconv.AppendInt(dst, int64(r.ThreadID), 10)
	dst = append(dst, `,"goroutine_id":`...)
	dst = strconv.AppendUint(dst, r.GoroutineID, 10)

	dst = append(dst, `,"timestamp":"`...)
	dst = r.Timestamp.AppendFormat(dst, time.RFC3339Nano)
	dst = append(dst, '"')

	dst = append(dst, `,"backtrace":`...)
	dst = r.Backtrace.appendJSON(dst)

	if len(r.Metadata) > 0 {
		dst = append(dst, `,"metadata":`...)
		dst = r.Metadata.appendJSON(dst)
	}

	dst = append(dst, `,"resources":{"goroutines":`...)
	dst = strconv.AppendInt(dst, int64(r.Resources.Goroutines), 10)
	dst = append(dst, `,"heap_alloc_bytes":`...)
	dst = strconv.AppendUint(dst, r.Resources.HeapAllocBytes, 10)
	dst = append(dst, `,"heap_inuse_bytes":`...)
	dst = strconv.AppendUint(dst, r.Resources.HeapInuseBytes, 10)
	dst = append(dst, `,"stack_inuse_bytes":`...)
	dst = strconv.AppendUint(dst, r.Resources.StackInuse, 10)
	dst = append(dst, `,"num_gc":`...)
	dst = strconv.AppendUint(dst, uint64(r.Resources.NumGC), 10)
	dst = append(dst, '}')

	if len(r.Goroutines) > 0 {
		dst = append(dst, `,"goroutines":`...)
		dst = appendJSONBytes(dst, r.Goroutines)
	}

	dst = append(dst, '}', '\n')
	return dst
}

func (c Cause) appendJSON(dst []byte) []byte {
	dst = append(dst, `{"kind":`...)
	dst = appendJSONString(dst, string(c.Kind))
	switch c.Kind {
	case CauseException:
		dst = append(dst, `,"name":`...)
		dst = appendJSONString(dst, c.Name)
		dst = append(dst, `,"reason":`...)
		dst = appendJSONString(dst, c.Reason)
	case CauseSignal:
		dst = append(dst, `,"signal":`...)
		dst = strconv.AppendInt(dst, int64(c.Signal), 10)
		dst = append(dst, `,"signal_name":`...)
		dst = appendJSONString(dst, c.SignalName)
		dst = append(dst, `,"code":`...)
		dst = strconv.AppendInt(dst, int64(c.Code), 10)
		dst = append(dst, `,"address":"`...)
		dst = c.Address.appendHex(dst)
		dst = append(dst, '"')
	}
	return append(dst, '}')
}

func (b *Backtrace) appendJSON(dst []byte) []byte {
	dst = append(dst, '[')
	for i := 0; i < b.n; i++ {
		if i > 0 {
			dst = append(dst, ',')
		}
		dst = append(dst, '"')
		dst = Addr(b.frames[i]).appendHex(dst)
		dst = append(dst, '"')
	}
	return append(dst, ']')
}

func (m Metadata) appendJSON(dst []byte) []byte {
	dst = append(dst, '{')
	for i, e := range m {
		if i > 0 {
			dst = append(dst, ',')
		}
		dst = appendJSONString(dst, e.Key)
		dst = append(dst, ':')
		dst = appendJSONString(dst, e.Value)
	}
	return append(dst, '}')
}

const hexDigits = "0123456789abcdef"

func appendJSONString(dst []byte, s string) []byte {
	return appendJSONBytes(dst, unsafe.Slice(unsafe.StringData(s), len(s)))
}

// appendJSONBytes quotes s following the encoding/json escaping rules.
// Invalid UTF-8 is replaced with U+FFFD.
func appendJSONBytes(dst []byte, s []byte) []byte {
	dst = append(dst, '"')
	for i := 0; i < len(s); {
		c := s[i]
		if c < utf8.RuneSelf {
			switch {
			case c == '"' || c == '\\':
				dst = append(dst, '\\', c)
			case c == '\n':
				dst = append(dst, '\\', 'n')
			case c == '\r':
				dst = append(dst, '\\', 'r')
			case c == '\t':
				dst = append(dst, '\\', 't')
			case c < 0x20 || c == '<' || c == '>' || c == '&':
				dst = append(dst, '\\', 'u', '0', '0', hexDigits[c>>4], hexDigits[c&0xF])
			default:
				dst = append(dst, c)
			}
			i++
			continue
		}
		r, size := utf8.DecodeRune(s[i:])
		switch {
		case r == utf8.RuneError && size == 1:
			dst = append(dst, "\\ufffd"...)
		case r == '\u2028' || r == '\u2029':
			dst = append(dst, '\\', 'u', '2', '0', '2', hexDigits[r&0xF])
		default:
			dst = append(dst, s[i:i+size]...)
		}
		i += size
	}
	return append(dst, '"')
}
