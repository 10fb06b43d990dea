// Package wire defines the typed-buffer wire format shared with the renderer.
//
// Every named buffer travels as two consecutive transport messages: a
// self-describing ASCII header, then the raw payload bytes. The header gives
// the consumer everything it needs to decode the payload with a standard
// packed-struct reader, so no schema compiler or IDL is involved.
//
// # Header Format
//
//	┌──────┬──────────────┬──────────┬───────────────┬─────────┐
//	│ data │ buffer name  │ type tag │ element count │ shape   │
//	└──────┴──────────────┴──────────┴───────────────┴─────────┘
//
// Fields are joined with '|', e.g. "data|velocity|d|100|(100,)". The element
// count always equals the product of the shape dimensions, and the payload
// that follows is exactly count × width(tag) bytes of native-endian element
// data with no padding or stride information.
//
// # Type Tags
//
// Tags are single ASCII characters matching the Python struct format
// characters in native sizing, so a consumer can decode payloads with
// struct.unpack or numpy.frombuffer directly:
//
//	c  Char    1       h  int16   2       l  int    word    f  float32  4
//	b  int8    1       H  uint16  2       L  uint   word    d  float64  8
//	B  uint8   1       i  int32   4       q  int64  8
//	                   I  uint32  4       Q  uint64 8
//
// int and uint track the platform word exactly as C long does under native
// struct sizing. Types outside this closed set describe to Sentinel, which
// no valid header may carry.
//
// # Shape Strings
//
// shape := "(" dims ")" where dims is a single integer with a trailing comma
// (rank 1, "(100,)") or two comma-separated integers (rank 2, "(4,25)").
//
// # Reference
//
// Python struct format characters: https://docs.python.org/3/library/struct.html
package wire

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Char is a distinct byte type carrying C char semantics on the wire
// (tag 'c'). Plain uint8 data maps to 'B' instead.
type Char byte

// Scalar is the closed set of element types the registry describes.
// Exact types only: a defined type with a scalar underlying type is not a
// wire scalar and must be converted by the caller.
type Scalar interface {
	Char | int8 | uint8 | int16 | uint16 | int32 | uint32 |
		int | uint | int64 | uint64 | float32 | float64
}

// WordSize is the byte width of int and uint on this platform. The 'l' and
// 'L' tags use it, mirroring C long under native struct sizing.
const WordSize = strconv.IntSize / 8

// Descriptor pairs an element type's wire tag with its byte width.
type Descriptor struct {
	Tag   byte
	Width int
}

// Sentinel is the descriptor returned for element types outside the
// registry. It is not an error by itself; senders must reject it before a
// header is built (see session's validation gate).
var Sentinel = Descriptor{Tag: '0', Width: 0}

// Valid reports whether d describes a registered element type.
func (d Descriptor) Valid() bool {
	return d.Width > 0
}

// String returns the tag as it appears on the wire.
func (d Descriptor) String() string {
	return string(d.Tag)
}

// Describe returns the descriptor for v's dynamic type. Unsupported types
// yield Sentinel rather than an error; downstream must treat Sentinel as
// unencodable.
func Describe(v any) Descriptor {
	switch v.(type) {
	case Char:
		return Descriptor{Tag: 'c', Width: 1}
	case int8:
		return Descriptor{Tag: 'b', Width: 1}
	case uint8:
		return Descriptor{Tag: 'B', Width: 1}
	case int16:
		return Descriptor{Tag: 'h', Width: 2}
	case uint16:
		return Descriptor{Tag: 'H', Width: 2}
	case int32:
		return Descriptor{Tag: 'i', Width: 4}
	case uint32:
		return Descriptor{Tag: 'I', Width: 4}
	case int:
		return Descriptor{Tag: 'l', Width: WordSize}
	case uint:
		return Descriptor{Tag: 'L', Width: WordSize}
	case int64:
		return Descriptor{Tag: 'q', Width: 8}
	case uint64:
		return Descriptor{Tag: 'Q', Width: 8}
	case float32:
		return Descriptor{Tag: 'f', Width: 4}
	case float64:
		return Descriptor{Tag: 'd', Width: 8}
	default:
		return Sentinel
	}
}

// Of returns the descriptor for scalar type T.
func Of[T Scalar]() Descriptor {
	var zero T
	return Describe(zero)
}

// Header field literals.
const (
	// HeaderTag opens every buffer header message.
	HeaderTag = "data"
	// Delim separates header fields. Buffer names must not contain it.
	Delim = '|'
)

// Control sentinel messages. Both are complete transport messages on their
// own; neither carries a payload.
const (
	// FinalizeMessage terminates a batch: the consumer treats everything
	// received since the previous FinalizeMessage as one coherent unit.
	FinalizeMessage = "finalize"
	// ExitMessage instructs the consumer process to shut down. Sent exactly
	// once, at session teardown.
	ExitMessage = "exit"
)

// ErrBadName is returned by ValidateName for names that cannot appear in a
// header.
var ErrBadName = errors.New("invalid buffer name")

// BuildHeader assembles the header line for one named buffer.
//
// The name is not validated here: it must not contain the field delimiter.
// Callers that accept external names go through ValidateName first.
func BuildHeader(name string, d Descriptor, count int, shape string) string {
	var b strings.Builder
	b.Grow(len(HeaderTag) + len(name) + len(shape) + 24)
	b.WriteString(HeaderTag)
	b.WriteByte(Delim)
	b.WriteString(name)
	b.WriteByte(Delim)
	b.WriteByte(d.Tag)
	b.WriteByte(Delim)
	b.WriteString(strconv.Itoa(count))
	b.WriteByte(Delim)
	b.WriteString(shape)
	return b.String()
}

// ValidateName rejects names that would corrupt the pipe-delimited header:
// empty names and names containing the delimiter.
func ValidateName(name string) error {
	if name == "" {
		return fmt.Errorf("%w: empty", ErrBadName)
	}
	if strings.ContainsRune(name, rune(Delim)) {
		return fmt.Errorf("%w: %q contains %q", ErrBadName, name, string(Delim))
	}
	return nil
}

// ShapeVector renders the rank-1 shape descriptor "(n,)".
func ShapeVector(n int) string {
	return "(" + strconv.Itoa(n) + ",)"
}

// ShapeMatrix renders the rank-2 shape descriptor "(r,c)".
func ShapeMatrix(r, c int) string {
	return "(" + strconv.Itoa(r) + "," + strconv.Itoa(c) + ")"
}

// ErrBadHeader is returned by ParseHeader for lines that do not follow the
// header format.
var ErrBadHeader = errors.New("malformed header")

// Header is a decoded buffer announcement: the consumer-side view of what
// BuildHeader produced. The payload message that follows it carries exactly
// Count x Desc.Width bytes.
type Header struct {
	Name  string
	Desc  Descriptor
	Count int
	Shape string
}

// ByTag maps a tag character back to its descriptor, recovering the width
// a decoder needs. Word-width tags resolve to this platform's word size.
func ByTag(tag byte) (Descriptor, bool) {
	switch tag {
	case 'c', 'b', 'B':
		return Descriptor{Tag: tag, Width: 1}, true
	case 'h', 'H':
		return Descriptor{Tag: tag, Width: 2}, true
	case 'i', 'I', 'f':
		return Descriptor{Tag: tag, Width: 4}, true
	case 'l', 'L':
		return Descriptor{Tag: tag, Width: WordSize}, true
	case 'q', 'Q', 'd':
		return Descriptor{Tag: tag, Width: 8}, true
	}
	return Descriptor{}, false
}

// ParseHeader decodes a header line. It accepts exactly what BuildHeader
// emits for a registered descriptor and a valid name; anything else returns
// a wrapped ErrBadHeader.
func ParseHeader(s string) (Header, error) {
	parts := strings.Split(s, string(Delim))
	if len(parts) != 5 || parts[0] != HeaderTag {
		return Header{}, fmt.Errorf("%w: %q", ErrBadHeader, s)
	}
	if parts[1] == "" {
		return Header{}, fmt.Errorf("%w: empty name in %q", ErrBadHeader, s)
	}
	if len(parts[2]) != 1 {
		return Header{}, fmt.Errorf("%w: tag %q", ErrBadHeader, parts[2])
	}
	d, ok := ByTag(parts[2][0])
	if !ok {
		return Header{}, fmt.Errorf("%w: unknown tag %q", ErrBadHeader, parts[2])
	}
	count, err := strconv.Atoi(parts[3])
	if err != nil || count < 0 || strconv.Itoa(count) != parts[3] {
		return Header{}, fmt.Errorf("%w: count %q", ErrBadHeader, parts[3])
	}
	return Header{Name: parts[1], Desc: d, Count: count, Shape: parts[4]}, nil
}
