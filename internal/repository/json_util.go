package repository

import (
	"encoding/json"

	"gridbase-engine/internal/domain"
)

// encodeValue 将单元格值编码为JSONB字节
func encodeValue(v domain.Value) ([]byte, error) {
	return json.Marshal(v)
}

// decodeValue 从JSONB字节解码单元格值（NULL/空 → Null值）
func decodeValue(b []byte) domain.Value {
	if len(b) == 0 {
		return domain.NullValue()
	}
	var v domain.Value
	if err := json.Unmarshal(b, &v); err != nil {
		return domain.StringValue(string(b))
	}
	return v
}

// encodeStrings custom_options等字符串数组的JSONB编码
func encodeStrings(items []string) ([]byte, error) {
	if items == nil {
		return nil, nil
	}
	return json.Marshal(items)
}

// decodeStrings 从JSONB字节解码字符串数组（NULL → nil）
func decodeStrings(b []byte) []string {
	if len(b) == 0 {
		return nil
	}
	var items []string
	if err := json.Unmarshal(b, &items); err != nil {
		return nil
	}
	return items
}
