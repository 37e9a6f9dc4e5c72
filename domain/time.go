package domain

import (
	"time"

	"github.com/bytedance/sonic"
)

// decodeWireTime parses a timestamp from either an RFC 3339 string or a
// unix millisecond number. Values that cannot be parsed map to the zero
// time rather than failing the decode of the whole entity.
func decodeWireTime(raw []byte) time.Time {
	if len(raw) == 0 || string(raw) == "null" {
		return time.Time{}
	}
	var s string
	if err := sonic.ConfigStd.Unmarshal(raw, &s); err == nil {
		t, perr := time.Parse(time.RFC3339Nano, s)
		if perr != nil {
			return time.Time{}
		}
		return t
	}
	var ms int64
	if err := sonic.ConfigStd.Unmarshal(raw, &ms); err == nil {
		return time.UnixMilli(ms).UTC()
	}
	return time.Time{}
}

func formatWireTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}
