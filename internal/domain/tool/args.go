package tool

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ArgumentError 参数校验错误, 作为函数结果回传给模型而不是服务端异常
type ArgumentError struct {
	Field  string
	Reason string
}

func (e *ArgumentError) Error() string {
	return fmt.Sprintf("%s %s", e.Field, e.Reason)
}

// NormalizeArgs 把模型给出的原始参数规整为声明的类型
//
// raw 可以是 map、JSON 字符串或 json.RawMessage。未声明的字段被丢弃,
// 缺少必填字段或类型无法转换时返回 *ArgumentError。
func NormalizeArgs(decl Declaration, raw interface{}) (map[string]interface{}, error) {
	input, err := toMap(raw)
	if err != nil {
		return nil, &ArgumentError{Field: "arguments", Reason: "must be an object"}
	}

	out := make(map[string]interface{}, len(decl.Params))
	for _, p := range decl.Params {
		v, present := input[p.Name]
		if !present || isBlank(v) {
			if p.Required {
				return nil, &ArgumentError{Field: p.Name, Reason: "is required"}
			}
			continue
		}

		coerced, err := coerce(p.Kind, v)
		if err != nil {
			return nil, &ArgumentError{Field: p.Name, Reason: err.Error()}
		}
		out[p.Name] = coerced
	}
	return out, nil
}

func toMap(raw interface{}) (map[string]interface{}, error) {
	switch v := raw.(type) {
	case nil:
		return map[string]interface{}{}, nil
	case map[string]interface{}:
		return v, nil
	case map[string]string:
		m := make(map[string]interface{}, len(v))
		for k, s := range v {
			m[k] = s
		}
		return m, nil
	case json.RawMessage:
		return decodeObject(v)
	case []byte:
		return decodeObject(v)
	case string:
		if strings.TrimSpace(v) == "" {
			return map[string]interface{}{}, nil
		}
		return decodeObject([]byte(v))
	default:
		// 其他结构体走一次 JSON 往返
		data, err := json.Marshal(v)
		if err != nil {
			return nil, err
		}
		return decodeObject(data)
	}
}

func decodeObject(data []byte) (map[string]interface{}, error) {
	if len(strings.TrimSpace(string(data))) == 0 {
		return map[string]interface{}{}, nil
	}
	var m map[string]interface{}
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	if m == nil {
		m = map[string]interface{}{}
	}
	return m, nil
}

func isBlank(v interface{}) bool {
	if v == nil {
		return true
	}
	if s, ok := v.(string); ok {
		return strings.TrimSpace(s) == ""
	}
	return false
}

func coerce(kind ParamKind, v interface{}) (interface{}, error) {
	switch kind {
	case KindInteger:
		return toInt(v)
	case KindBoolean:
		return toBool(v)
	case KindArray:
		return toStrings(v)
	default:
		return toString(v), nil
	}
}

func toInt(v interface{}) (int64, error) {
	switch n := v.(type) {
	case int:
		return int64(n), nil
	case int32:
		return int64(n), nil
	case int64:
		return n, nil
	case float32:
		return floatToInt(float64(n))
	case float64:
		return floatToInt(n)
	case json.Number:
		if i, err := n.Int64(); err == nil {
			return i, nil
		}
		f, err := n.Float64()
		if err != nil {
			return 0, fmt.Errorf("must be an integer")
		}
		return floatToInt(f)
	case string:
		i, err := strconv.ParseInt(strings.TrimSpace(n), 10, 64)
		if err != nil {
			return 0, fmt.Errorf("must be an integer")
		}
		return i, nil
	default:
		return 0, fmt.Errorf("must be an integer")
	}
}

func floatToInt(f float64) (int64, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) {
		return 0, fmt.Errorf("must be an integer")
	}
	return int64(f), nil
}

func toBool(v interface{}) (bool, error) {
	switch b := v.(type) {
	case bool:
		return b, nil
	case string:
		parsed, err := strconv.ParseBool(strings.TrimSpace(b))
		if err != nil {
			return false, fmt.Errorf("must be a boolean")
		}
		return parsed, nil
	default:
		return false, fmt.Errorf("must be a boolean")
	}
}

func toStrings(v interface{}) ([]string, error) {
	switch a := v.(type) {
	case []string:
		return a, nil
	case []interface{}:
		out := make([]string, 0, len(a))
		for _, item := range a {
			if item == nil {
				continue
			}
			out = append(out, toString(item))
		}
		return out, nil
	case string:
		// 模型偶尔把数组写成逗号分隔的字符串
		parts := strings.Split(a, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				out = append(out, p)
			}
		}
		return out, nil
	default:
		return nil, fmt.Errorf("must be an array of strings")
	}
}

func toString(v interface{}) string {
	switch s := v.(type) {
	case string:
		return strings.TrimSpace(s)
	case float64:
		return strconv.FormatFloat(s, 'f', -1, 64)
	default:
		return fmt.Sprint(v)
	}
}

// Int 读取规整后的整数参数
func Int(args map[string]interface{}, name string) (int64, bool) {
	v, ok := args[name].(int64)
	return v, ok
}

// String 读取规整后的字符串参数
func String(args map[string]interface{}, name string) (string, bool) {
	v, ok := args[name].(string)
	return v, ok
}
