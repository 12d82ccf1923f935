// Package json provides JSON utilities
package json

import (
	"errors"
	"strconv"
	"unsafe"

	jsp "github.com/buger/jsonparser"
)

const hextable = "0123456789abcdef"

var (
	ErrValue = errors.New("invalid value")
)

// Ascii appends src to dst as JSON string content, escaping quotes,
// backslashes and control characters, and \uXXXX-encoding non-ASCII bytes.
func Ascii(dst []byte, src []byte) []byte {
	for _, c := range src {
		switch {
		case c == '"' || c == '\\':
			dst = append(dst, '\\', c)
		case c == '\n':
			dst = append(dst, '\\', 'n')
		case c == '\r':
			dst = append(dst, '\\', 'r')
		case c == '\t':
			dst = append(dst, '\\', 't')
		case c < 0x20 || c >= 0x7f:
			dst = append(dst, '\\', 'u', '0', '0', hextable[c>>4], hextable[c&0x0f])
		default:
			dst = append(dst, c)
		}
	}
	return dst
}

func U64(dst []byte, src uint64) []byte {
	return strconv.AppendUint(dst, src, 10)
}

func UnU64(src []byte) (uint64, error) {
	return strconv.ParseUint(S(src), 0, 64)
}

func Bool(dst []byte, val bool) []byte {
	if val {
		return append(dst, `true`...)
	} else {
		return append(dst, `false`...)
	}
}

func UnBool(src []byte) (bool, error) {
	switch SQ(src) {
	case "true", "1":
		return true, nil
	case "false", "0":
		return false, nil
	default:
		return false, ErrValue
	}
}

// S returns string from byte slice, in an unsafe way
func S(buf []byte) string {
	return *(*string)(unsafe.Pointer(&buf))
}

// Q removes "double quotes" in buf, if present
func Q(buf []byte) []byte {
	if l := len(buf); l > 1 && buf[0] == '"' && buf[l-1] == '"' {
		return buf[1 : l-1]
	} else {
		return buf
	}
}

// SQ returns string from byte slice, unquoting if necessary
func SQ(buf []byte) string {
	if l := len(buf); l > 1 && buf[0] == '"' && buf[l-1] == '"' {
		buf = buf[1 : l-1]
	}
	return *(*string)(unsafe.Pointer(&buf))
}

// ArrayEach calls cb for each element in the src array.
// If the callback returns an non-nil error, it breaks immediately and returns it.
func ArrayEach(src []byte, cb func(val []byte) error) (reterr error) {
	// convert panics into reterr error
	defer func() {
		if r, ok := recover().(error); ok {
			reterr = r
		}
	}()

	jsp.ArrayEach(src, func(val []byte, _ jsp.ValueType, _ int, _ error) {
		err := cb(val)
		if err != nil {
			panic(err) // the only way to break from ArrayEach
		}
	})

	return nil
}

// ObjectEach calls cb for each element in the src object.
// If the callback returns an non-nil error, it breaks immediately and returns it.
func ObjectEach(src []byte, cb func(key, val []byte) error) error {
	return jsp.ObjectEach(src, func(key, val []byte, _ jsp.ValueType, _ int) error {
		return cb(key, val)
	})
}
