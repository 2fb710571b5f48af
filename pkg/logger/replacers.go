package logger

import (
	"log/slog"
	"strings"
)

type attrReplacer func(groups []string, attr slog.Attr) slog.Attr

// DefaultRedactedKeys are masked in every record, matched case-insensitively at any group depth.
var DefaultRedactedKeys = []string{"password", "authorization", "api_key", "x-api-key", "token", "secret"}

const redactedValue = "[REDACTED]"

func chainAttrReplacers(replacers ...attrReplacer) func([]string, slog.Attr) slog.Attr {
	return func(groups []string, attr slog.Attr) slog.Attr {
		for _, replace := range replacers {
			attr = replace(groups, attr)
		}
		return attr
	}
}

func redactAttrReplacer(keys ...string) attrReplacer {
	redacted := make(map[string]struct{}, len(keys))
	for _, key := range keys {
		redacted[strings.ToLower(key)] = struct{}{}
	}
	return func(_ []string, attr slog.Attr) slog.Attr {
		if _, ok := redacted[strings.ToLower(attr.Key)]; ok {
			return slog.String(attr.Key, redactedValue)
		}
		return attr
	}
}

func durationToMsAttrReplacer(_ []string, attr slog.Attr) slog.Attr {
	if attr.Value.Kind() == slog.KindDuration {
		return slog.Int64(attr.Key, attr.Value.Duration().Milliseconds())
	}
	return attr
}
