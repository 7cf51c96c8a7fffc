package core

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"syscall"
	"time"
)

// MaxFrames is the fixed capacity of a captured backtrace.
const MaxFrames = 128

// CauseKind discriminates the Cause variant.
type CauseKind string

const (
	CauseException CauseKind = "exception"
	CauseSignal    CauseKind = "signal"
)

// Addr is a raw code or data address. It is serialized as a hex string.
type Addr uintptr

// MarshalText implements encoding.TextMarshaler.
func (a Addr) MarshalText() ([]byte, error) {
	return a.appendHex(nil), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (a *Addr) UnmarshalText(text []byte) error {
	s := strings.TrimPrefix(strings.TrimPrefix(string(text), "0x"), "0X")
	v, err := strconv.ParseUint(s, 16, 64)
	if err != nil {
		return fmt.Errorf("parsing address %q: %w", text, err)
	}
	*a = Addr(v)
	return nil
}

func (a Addr) appendHex(dst []byte) []byte {
	dst = append(dst, "0x"...)
	return strconv.AppendUint(dst, uint64(a), 16)
}

// String returns the address in hex.
func (a Addr) String() string {
	return string(a.appendHex(nil))
}

// Cause describes what brought the process down. Exactly one of the
// exception fields (Name, Reason) or the signal fields (Signal, SignalName,
// Code, Address) is meaningful, depending on Kind.
type Cause struct {
	Kind CauseKind `json:"kind" yaml:"kind"`

	// Exception
	Name   string `json:"name,omitempty" yaml:"name,omitempty"`
	Reason string `json:"reason,omitempty" yaml:"reason,omitempty"`

	// Signal
	Signal     int    `json:"signal,omitempty" yaml:"signal,omitempty"`
	SignalName string `json:"signal_name,omitempty" yaml:"signal_name,omitempty"`
	Code       int    `json:"code,omitempty" yaml:"code,omitempty"`
	Address    Addr   `json:"address,omitempty" yaml:"address,omitempty"`
}

// ExceptionCause returns an exception cause.
func ExceptionCause(name, reason string) Cause {
	return Cause{Kind: CauseException, Name: name, Reason: reason}
}

// SignalCause returns a signal cause. code and addr are zero when the signal
// was delivered asynchronously and the kernel's siginfo is not available.
func SignalCause(sig syscall.Signal, code int, addr uintptr) Cause {
	return Cause{
		Kind:       CauseSignal,
		Signal:     int(sig),
		SignalName: SignalName(sig),
		Code:       code,
		Address:    Addr(addr),
	}
}

// IsSignal reports whether the cause is a fatal signal.
func (c Cause) IsSignal() bool {
	return c.Kind == CauseSignal
}

// Sig returns the signal number of a signal cause.
func (c Cause) Sig() syscall.Signal {
	return syscall.Signal(c.Signal)
}

// String renders the cause on one line.
func (c Cause) String() string {
	switch c.Kind {
	case CauseSignal:
		return fmt.Sprintf("signal %s (code=%d, addr=%s)", c.SignalName, c.Code, c.Address)
	case CauseException:
		if c.Reason == "" {
			return "exception " + c.Name
		}
		return fmt.Sprintf("exception %s: %s", c.Name, c.Reason)
	default:
		return "unknown cause"
	}
}

// Backtrace is a fixed-capacity sequence of raw return addresses.
type Backtrace struct {
	frames [MaxFrames]uintptr
	n      int
}

// Len returns the number of captured frames.
func (b Backtrace) Len() int {
	return b.n
}

// At returns the i-th frame, innermost first.
func (b Backtrace) At(i int) uintptr {
	return b.frames[i]
}

// Frames returns a copy of the captured frames.
func (b Backtrace) Frames() []uintptr {
	out := make([]uintptr, b.n)
	copy(out, b.frames[:b.n])
	return out
}

// Buffer exposes the full backing array for capture. Callers must follow up
// with SetLen.
func (b *Backtrace) Buffer() []uintptr {
	return b.frames[:]
}

// SetLen records how many frames of Buffer are valid.
func (b *Backtrace) SetLen(n int) {
	if n < 0 {
		n = 0
	}
	if n > MaxFrames {
		n = MaxFrames
	}
	b.n = n
}

// MarshalJSON encodes the frames as an array of hex strings.
func (b Backtrace) MarshalJSON() ([]byte, error) {
	return b.appendJSON(nil), nil
}

// UnmarshalJSON decodes an array of hex strings, keeping at most MaxFrames.
func (b *Backtrace) UnmarshalJSON(data []byte) error {
	var addrs []Addr
	if err := json.Unmarshal(data, &addrs); err != nil {
		return err
	}
	b.n = 0
	for _, a := range addrs {
		if b.n == MaxFrames {
			break
		}
		b.frames[b.n] = uintptr(a)
		b.n++
	}
	return nil
}

// MetadataEntry is one static key/value pair.
type MetadataEntry struct {
	Key   string
	Value string
}

// Metadata is an immutable, key-sorted set of static pairs captured at
// install time.
type Metadata []MetadataEntry

// NewMetadata builds sorted metadata from a map.
func NewMetadata(values map[string]string) Metadata {
	md := make(Metadata, 0, len(values))
	for k, v := range values {
		md = append(md, MetadataEntry{Key: k, Value: v})
	}
	sort.Slice(md, func(i, j int) bool { return md[i].Key < md[j].Key })
	return md
}

// Get returns the value for key.
func (m Metadata) Get(key string) (string, bool) {
	i := sort.Search(len(m), func(i int) bool { return m[i].Key >= key })
	if i < len(m) && m[i].Key == key {
		return m[i].Value, true
	}
	return "", false
}

// Map returns a copy of the metadata as a map.
func (m Metadata) Map() map[string]string {
	out := make(map[string]string, len(m))
	for _, e := range m {
		out[e.Key] = e.Value
	}
	return out
}

// MarshalJSON encodes the metadata as a JSON object in key order.
func (m Metadata) MarshalJSON() ([]byte, error) {
	return m.appendJSON(nil), nil
}

// UnmarshalJSON decodes a JSON object.
func (m *Metadata) UnmarshalJSON(data []byte) error {
	var values map[string]string
	if err := json.Unmarshal(data, &values); err != nil {
		return err
	}
	*m = NewMetadata(values)
	return nil
}

// Dump is raw text captured into a preallocated buffer.
type Dump []byte

// MarshalJSON encodes the dump as a JSON string.
func (d Dump) MarshalJSON() ([]byte, error) {
	return appendJSONBytes(nil, d), nil
}

// UnmarshalJSON decodes a JSON string.
func (d *Dump) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	*d = Dump(s)
	return nil
}

// Resources is the runtime state read at crash time.
type Resources struct {
	Goroutines     int    `json:"goroutines" yaml:"goroutines"`
	HeapAllocBytes uint64 `json:"heap_alloc_bytes" yaml:"heap_alloc_bytes"`
	HeapInuseBytes uint64 `json:"heap_inuse_bytes" yaml:"heap_inuse_bytes"`
	StackInuse     uint64 `json:"stack_inuse_bytes" yaml:"stack_inuse_bytes"`
	NumGC          uint32 `json:"num_gc" yaml:"num_gc"`
}

// CrashReport is one captured failure. It is a value: once built it is never
// mutated, and copies share only the immutable Metadata and the dump text.
type CrashReport struct {
	ID          string    `json:"id"`
	Cause       Cause     `json:"cause"`
	ThreadID    int       `json:"thread_id"`
	GoroutineID uint64    `json:"goroutine_id"`
	Timestamp   time.Time `json:"timestamp"`
	Backtrace   Backtrace `json:"backtrace"`
	Metadata    Metadata  `json:"metadata,omitempty"`
	Resources   Resources `json:"resources"`
	Goroutines  Dump      `json:"goroutines,omitempty"`
}

// DecodeReport parses a persisted report.
func DecodeReport(data []byte) (*CrashReport, error) {
	var r CrashReport
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, ErrPersistence(CodeParseFailed, "decoding crash report").WithCause(err)
	}
	return &r, nil
}
