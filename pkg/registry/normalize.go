// Package registry implements the repository interface over the tabular
// user store. It is the single normalization boundary: every raw cell is
// coerced into a typed value here, before any decision logic sees it.
package registry

import (
	"strconv"
	"strings"
	"time"

	"github.com/sheetops/lifecycled/pkg/types"
)

// dateLayouts are the formats accepted for date cells, tried in order.
var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02",
	"02/01/2006 15:04:05",
	"02/01/2006",
}

// NormalizeString trims a raw cell into a string.
func NormalizeString(raw interface{}) string {
	if raw == nil {
		return ""
	}
	switch v := raw.(type) {
	case string:
		return strings.TrimSpace(v)
	case time.Time:
		return v.Format(time.RFC3339)
	case bool:
		if v {
			return "TRUE"
		}
		return "FALSE"
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case int:
		return strconv.Itoa(v)
	default:
		return ""
	}
}

// NormalizeBool coerces a raw cell to a boolean. Native booleans and the
// case-insensitive literal "true" are truthy; everything else is false.
func NormalizeBool(raw interface{}) bool {
	switch v := raw.(type) {
	case bool:
		return v
	case string:
		return strings.EqualFold(strings.TrimSpace(v), "true")
	default:
		return false
	}
}

// NormalizeTime coerces a raw cell to an optional timestamp. Native
// timestamps, parseable strings and epoch milliseconds are accepted; an
// empty or unparseable cell means "absent".
func NormalizeTime(raw interface{}) *time.Time {
	switch v := raw.(type) {
	case nil:
		return nil
	case time.Time:
		if v.IsZero() {
			return nil
		}
		t := v
		return &t
	case *time.Time:
		if v == nil || v.IsZero() {
			return nil
		}
		t := *v
		return &t
	case string:
		s := strings.TrimSpace(v)
		if s == "" {
			return nil
		}
		for _, layout := range dateLayouts {
			if t, err := time.ParseInLocation(layout, s, time.Local); err == nil {
				return &t
			}
		}
		return nil
	case float64:
		// Epoch milliseconds, the host store's native serial form.
		if v <= 0 {
			return nil
		}
		t := time.UnixMilli(int64(v))
		return &t
	case int64:
		if v <= 0 {
			return nil
		}
		t := time.UnixMilli(v)
		return &t
	default:
		return nil
	}
}

// NormalizeRow builds a typed user record from one raw row of the users
// sheet (cells in schema column order, index 0 = Name).
func NormalizeRow(cells []interface{}) types.UserRecord {
	cell := func(col types.Column) interface{} {
		idx := int(col) - 1
		if idx < 0 || idx >= len(cells) {
			return nil
		}
		return cells[idx]
	}

	rec := types.UserRecord{
		Name:           NormalizeString(cell(types.ColName)),
		Email:          NormalizeString(cell(types.ColEmail)),
		Role:           types.Role(NormalizeString(cell(types.ColRole))),
		Group:          NormalizeString(cell(types.ColGroup)),
		Active:         NormalizeBool(cell(types.ColActive)),
		DateRegistered: NormalizeTime(cell(types.ColDateRegistered)),
		LastAccess:     NormalizeTime(cell(types.ColLastAccess)),
	}
	return rec
}

// parseConfigBool interprets a config-sheet value as a boolean flag.
func parseConfigBool(value string) bool {
	return strings.EqualFold(strings.TrimSpace(value), "true")
}

// BuildRuntimeConfig assembles the runtime tunables from raw parameter
// name/value pairs, applying defaults for unset keys.
func BuildRuntimeConfig(params map[string]string) *types.RuntimeConfig {
	cfg := &types.RuntimeConfig{
		StaleDays: types.DefaultStaleDays,
	}
	for name, value := range params {
		switch strings.TrimSpace(name) {
		case types.ConfigKeyNotifyEnabled:
			cfg.NotifyEnabled = parseConfigBool(value)
		case types.ConfigKeyNotifyEmail:
			cfg.NotifyEmail = strings.TrimSpace(value)
		case types.ConfigKeySchedulingEnabled:
			cfg.SchedulingEnabled = parseConfigBool(value)
		case types.ConfigKeyCalendarID:
			cfg.CalendarID = strings.TrimSpace(value)
		}
	}
	return cfg
}
