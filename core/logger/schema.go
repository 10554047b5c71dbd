package logger

import "strings"

// Level names as they appear in the level field.
const (
	LevelDebug = "DEBUG"
	LevelInfo  = "INFO"
	LevelWarn  = "WARN"
	LevelError = "ERROR"
	LevelFatal = "FATAL"
)

// enum is a closed set of lowercase field values.
type enum map[string]struct{}

func newEnum(values ...string) enum {
	e := make(enum, len(values))
	for _, v := range values {
		e[v] = struct{}{}
	}
	return e
}

// match lowercases v and reports whether it belongs to the set.
func (e enum) match(v string) (string, bool) {
	v = strings.ToLower(strings.TrimSpace(v))
	_, ok := e[v]
	return v, ok && v != ""
}

var (
	statusValues  = newEnum("ok", "fail", "skip", "retry", "rate_limited", "cancelled")
	cacheValues   = newEnum("hit", "miss", "refresh")
	outcomeValues = newEnum("ok", "fail", "cancelled", "rate_limited", "rejected")
)

func normalizeLevel(level string) string {
	switch strings.ToLower(level) {
	case "", "info":
		return LevelInfo
	case "debug":
		return LevelDebug
	case "warn", "warning":
		return LevelWarn
	case "error":
		return LevelError
	case "fatal":
		return LevelFatal
	}
	return strings.ToUpper(level)
}

// normalizeEnums lowercases status and drops cache or outcome values outside
// their sets. Unknown statuses are kept as written.
func normalizeEnums(fields map[string]any) {
	if s, ok := fields["status"].(string); ok && s != "" {
		if v, known := statusValues.match(s); known {
			fields["status"] = v
		}
	}
	for key, set := range map[string]enum{"cache": cacheValues, "outcome": outcomeValues} {
		raw, ok := fields[key].(string)
		if !ok {
			continue
		}
		if v, known := set.match(raw); known {
			fields[key] = v
		} else {
			delete(fields, key)
		}
	}
}

// defaultKeyOrder lists the leading fields of every line; anything else
// follows alphabetically.
var defaultKeyOrder = []string{
	"ts",
	"level",
	"component",
	"event",
	"status",
	"rid",
	"rid_full",
	"ts_unix_nano",
	"update_id",
	"user_id",
	"chat_id",
	"chat_type",
	"handler",
	"state",
	"action",
	"next_state",
	"op",
	"cb_key",
	"outcome",
	"persisted",
	"effects",
	"duration_ms",
	"product_id",
	"cart_id",
	"quantity",
	"lines",
	"entries",
	"cache",
	"key",
	"backend",
	"user_lock",
	"method",
	"target",
	"attempt",
	"http_status",
	"mode",
	"listen",
	"public_url",
	"host",
	"port",
	"messages",
	"kb",
	"err",
	"err_code",
	"cause",
	"ttl_ms",
}
