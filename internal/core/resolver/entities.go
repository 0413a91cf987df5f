package resolver

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"recipe-resolver/internal/pkg/common"
)

// EntityBag 呼叫端傳入的實體參數，只讀不寫
type EntityBag map[string]any

// String 取得字串值，非字串的純量會轉成字串；空白視為不存在
func (b EntityBag) String(key string) string {
	return asString(b[key])
}

// Strings 取得清單值。接受 []any、[]string 或逗號分隔字串
func (b EntityBag) Strings(key string) []string {
	return asStrings(b[key])
}

// Int 取得整數值，無法解析時回傳 false
func (b EntityBag) Int(key string) (int, bool) {
	return asInt(b[key])
}

// Bool 取得布林值，無法解析時為 false
func (b EntityBag) Bool(key string) bool {
	return asBool(b[key])
}

// Nested 取得巢狀屬性 entities[parent][key]
func (b EntityBag) Nested(parent, key string) any {
	switch m := b[parent].(type) {
	case map[string]any:
		return m[key]
	case EntityBag:
		return m[key]
	case map[string]string:
		if v, ok := m[key]; ok {
			return v
		}
	}
	return nil
}

// FlatOrNested 先找平面鍵，沒有再找 entities[parent][key]
func (b EntityBag) FlatOrNested(parent, key string) string {
	if s := b.String(key); s != "" {
		return s
	}
	return asString(b.Nested(parent, key))
}

func asString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(t)
	case json.Number:
		return t.String()
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case int, int64, bool:
		return fmt.Sprint(t)
	case []any, []string:
		return common.JoinList(asStrings(t))
	}
	return ""
}

func asStrings(v any) []string {
	var raw []string
	switch t := v.(type) {
	case nil:
		return nil
	case string:
		return common.SplitList(t)
	case []string:
		raw = t
	case []any:
		for _, item := range t {
			raw = append(raw, asString(item))
		}
	default:
		if s := asString(t); s != "" {
			return []string{s}
		}
		return nil
	}

	var out []string
	for _, s := range raw {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func asInt(v any) (int, bool) {
	switch t := v.(type) {
	case int:
		return t, true
	case int64:
		return int(t), true
	case float64:
		return floatToInt(t)
	case json.Number:
		if n, err := t.Int64(); err == nil {
			return int(n), true
		}
		if f, err := t.Float64(); err == nil {
			return floatToInt(f)
		}
	case string:
		s := strings.TrimSpace(t)
		if n, err := strconv.Atoi(s); err == nil {
			return n, true
		}
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return floatToInt(f)
		}
	}
	return 0, false
}

// floatToInt 超出 int 範圍時飽和，不讓轉換結果變號
func floatToInt(f float64) (int, bool) {
	switch {
	case math.IsNaN(f):
		return 0, false
	case f >= math.MaxInt:
		return math.MaxInt, true
	case f <= math.MinInt:
		return math.MinInt, true
	}
	return int(f), true
}

func asBool(v any) bool {
	switch t := v.(type) {
	case bool:
		return t
	case string:
		switch strings.ToLower(strings.TrimSpace(t)) {
		case "true", "1", "yes":
			return true
		}
	case float64, int, int64, json.Number:
		n, ok := asInt(t)
		return ok && n != 0
	}
	return false
}
