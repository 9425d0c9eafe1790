package resource

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"time"
)

// FieldType はフィールドの出力型です。
type FieldType string

const (
	FieldAny      FieldType = ""
	FieldString   FieldType = "string"
	FieldInteger  FieldType = "integer"
	FieldFloat    FieldType = "float"
	FieldBoolean  FieldType = "boolean"
	FieldDateTime FieldType = "datetime"
	FieldDict     FieldType = "dict"
	FieldList     FieldType = "list"
)

// Field は dehydrate 時に出力へ含める1項目です。
type Field struct {
	Name      string    // 出力キー
	Attribute string    // 入力データのキー（空なら Name）
	Type      FieldType // 出力型
	Null      bool      // 値が無いとき null を許すか
	Default   any       // 値が無いときの既定値
	Help      string
}

func (f Field) attribute() string {
	if f.Attribute != "" {
		return f.Attribute
	}
	return f.Name
}

// dehydrate は入力データから出力値を取り出して型変換します。
func (f Field) dehydrate(data map[string]any) (any, error) {
	value, ok := data[f.attribute()]
	if !ok || value == nil {
		switch {
		case f.Default != nil:
			value = f.Default
		case f.Null:
			return nil, nil
		default:
			return nil, fmt.Errorf("field %q has no value and does not allow a default or null value", f.Name)
		}
	}
	converted, err := f.convert(value)
	if err != nil {
		return nil, fmt.Errorf("field %q: %w", f.Name, err)
	}
	return converted, nil
}

func (f Field) convert(value any) (any, error) {
	switch f.Type {
	case FieldAny:
		return value, nil
	case FieldString:
		return toString(value), nil
	case FieldInteger:
		return toInt(value)
	case FieldFloat:
		return toFloat(value)
	case FieldBoolean:
		switch v := value.(type) {
		case bool:
			return v, nil
		case string:
			return strconv.ParseBool(v)
		}
	case FieldDateTime:
		switch v := value.(type) {
		case time.Time:
			return v.UTC().Format(time.RFC3339), nil
		case string:
			t, err := time.Parse(time.RFC3339, v)
			if err != nil {
				return nil, err
			}
			return t.UTC().Format(time.RFC3339), nil
		}
	case FieldDict:
		if v, ok := value.(map[string]any); ok {
			return v, nil
		}
	case FieldList:
		if v, ok := value.([]any); ok {
			return v, nil
		}
	default:
		return nil, fmt.Errorf("unknown field type %q", f.Type)
	}
	return nil, fmt.Errorf("cannot convert %T to %s", value, f.Type)
}

func toString(value any) string {
	switch v := value.(type) {
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case json.Number:
		return v.String()
	default:
		return fmt.Sprint(v)
	}
}

func toInt(value any) (int64, error) {
	switch v := value.(type) {
	case int:
		return int64(v), nil
	case int64:
		return v, nil
	case int32:
		return int64(v), nil
	case float64:
		if v != math.Trunc(v) {
			return 0, fmt.Errorf("%v is not an integer", v)
		}
		return int64(v), nil
	case json.Number:
		return v.Int64()
	case string:
		return strconv.ParseInt(v, 10, 64)
	}
	return 0, fmt.Errorf("cannot convert %T to integer", value)
}

func toFloat(value any) (float64, error) {
	switch v := value.(type) {
	case float64:
		return v, nil
	case float32:
		return float64(v), nil
	case int:
		return float64(v), nil
	case int64:
		return float64(v), nil
	case json.Number:
		return v.Float64()
	case string:
		return strconv.ParseFloat(v, 64)
	}
	return 0, fmt.Errorf("cannot convert %T to float", value)
}
