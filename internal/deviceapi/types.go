package deviceapi

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// Number 平台数值字段。兼容 JSON 数字、数字字符串与 null。
type Number float64

func (n *Number) UnmarshalJSON(b []byte) error {
	v, err := parseFlexible(b)
	if err != nil {
		return err
	}
	*n = Number(v)
	return nil
}

// Int 平台整数字段（在线标记、充电状态），规则同 Number，小数部分截断。
type Int int

func (n *Int) UnmarshalJSON(b []byte) error {
	v, err := parseFlexible(b)
	if err != nil {
		return err
	}
	*n = Int(int(v))
	return nil
}

func parseFlexible(b []byte) (float64, error) {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		return 0, nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return 0, err
		}
		if s == "" {
			return 0, nil
		}
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, fmt.Errorf("not a number: %q", s)
		}
		return v, nil
	}
	var v float64
	if err := json.Unmarshal(b, &v); err != nil {
		return 0, err
	}
	return v, nil
}

// Code 响应状态码。只接受 JSON 数字字面量，
// 字符串（如 "0"）、布尔值等记为无效，OK 判定为失败。
type Code struct {
	value float64
	valid bool
}

// NewCode 构造有效状态码
func NewCode(v int) *Code {
	return &Code{value: float64(v), valid: true}
}

func (c *Code) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	*c = Code{}
	if len(b) == 0 || b[0] == '"' || b[0] == 't' || b[0] == 'f' || b[0] == 'n' {
		return nil
	}
	var v float64
	if err := json.Unmarshal(b, &v); err != nil {
		return nil
	}
	*c = Code{value: v, valid: true}
	return nil
}

// IsZero 数值恰好为 0
func (c *Code) IsZero() bool {
	return c != nil && c.valid && c.value == 0
}

// PortEntry data.list 中的单个端口
type PortEntry struct {
	ChargeStatus Int    `json:"charge_status"`
	Online       Int    `json:"online"`
	Current      Number `json:"current"`
	Voltage      Number `json:"voltage"`
	Power        Number `json:"power"`
}

// PortListData 响应 data 字段
type PortListData struct {
	List []PortEntry `json:"list"`
}

// PortListResponse 端口列表接口响应
type PortListResponse struct {
	Code *Code         `json:"code"`
	Msg  *string       `json:"msg"`
	Data *PortListData `json:"data"`
}

// OK code 字段存在且为 0
func (r *PortListResponse) OK() bool {
	return r != nil && r.Code.IsZero()
}

// Message 平台错误信息，缺失时为 Unknown
func (r *PortListResponse) Message() string {
	if r == nil || r.Msg == nil {
		return "Unknown"
	}
	return *r.Msg
}

// Ports 端口列表，data 缺失时为空
func (r *PortListResponse) Ports() []PortEntry {
	if r == nil || r.Data == nil {
		return nil
	}
	return r.Data.List
}
