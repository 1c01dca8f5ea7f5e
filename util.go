package shelf

import (
	"encoding/hex"
	"log/slog"
	"unicode/utf8"
)

func clone(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

func hexstr(b []byte) string {
	if b == nil {
		return "<nil>"
	}
	if len(b) == 0 {
		return "<empty>"
	}
	return hex.EncodeToString(b)
}

func hexAttr(key string, b []byte) slog.Attr {
	return slog.String(key, hexstr(b))
}

// keyAttr logs printable keys as text and anything else as hex.
func keyAttr(key []byte) slog.Attr {
	if len(key) > 0 && utf8.Valid(key) && isPrintable(key) {
		return slog.String("key", string(key))
	}
	return hexAttr("key", key)
}

func isPrintable(b []byte) bool {
	for _, c := range b {
		if c < 0x20 || c == 0x7F {
			return false
		}
	}
	return true
}
