package tool

import (
	"reflect"
)

// Result 工具结果信封, 作为函数响应原样回传给模型
//
// 成功: {found: true, ...data}; 空结果: {found: false, message};
// 拒绝或校验失败: {error: reason}。
type Result map[string]interface{}

// DefaultNotFound 未配置提示时的空结果文案
const DefaultNotFound = "No matching records were found."

// ErrorResult 构造错误结果
func ErrorResult(reason string) Result {
	return Result{"error": reason}
}

// NotFoundResult 构造空结果
func NotFoundResult(message string) Result {
	if message == "" {
		message = DefaultNotFound
	}
	return Result{"found": false, "message": message}
}

// IsError 是否为错误结果
func (r Result) IsError() bool {
	_, ok := r["error"]
	return ok
}

// Found 是否有数据
func (r Result) Found() bool {
	found, _ := r["found"].(bool)
	return found
}

// Envelope 把领域查询返回值包装为统一信封
func Envelope(decl Declaration, data interface{}) Result {
	if isEmpty(data) {
		return NotFoundResult(decl.NotFound)
	}

	key := decl.ResultKey
	if key == "" {
		key = "data"
	}

	switch v := data.(type) {
	case map[string]interface{}:
		out := make(Result, len(v)+1)
		for k, val := range v {
			out[k] = val
		}
		out["found"] = true
		return out
	case Result:
		out := make(Result, len(v)+1)
		for k, val := range v {
			out[k] = val
		}
		out["found"] = true
		return out
	}

	rv := reflect.ValueOf(data)
	if rv.Kind() == reflect.Slice || rv.Kind() == reflect.Array {
		return Result{"found": true, key: data, "count": rv.Len()}
	}
	return Result{"found": true, key: data}
}

func isEmpty(data interface{}) bool {
	if data == nil {
		return true
	}
	rv := reflect.ValueOf(data)
	switch rv.Kind() {
	case reflect.Map, reflect.Slice, reflect.Array, reflect.String:
		return rv.Len() == 0
	case reflect.Ptr, reflect.Interface:
		return rv.IsNil()
	}
	return false
}
