package coremodel

import (
	"fmt"
	"strconv"
	"time"
)

// PortsPerDevice 每台充电桩固定端口数
const PortsPerDevice = 12

// TimestampLayout 状态文件与历史文件共用的时间格式（无时区）
const TimestampLayout = "2006-01-02 15:04:05"

// HistoryHeader 历史文件表头
var HistoryHeader = []string{"timestamp", "device_id", "port", "current", "voltage", "power", "charge_status"}

// Device 配置中的一台充电桩
type Device struct {
	ID   int64
	Name string
}

// NewDevices 按配置顺序生成设备列表，名称为 prefix + 从 1 开始的序号
func NewDevices(ids []int64, namePrefix string) []Device {
	devices := make([]Device, 0, len(ids))
	for i, id := range ids {
		devices = append(devices, Device{ID: id, Name: fmt.Sprintf("%s%d", namePrefix, i+1)})
	}
	return devices
}

// PortReading 单个端口的遥测数据
type PortReading struct {
	PortNumber int     `json:"port_number"`
	Current    float64 `json:"current"`
	Voltage    float64 `json:"voltage"`
	Power      float64 `json:"power"`
	Status     int     `json:"status"` // 充电状态码（平台原值）
	Online     int     `json:"online"`
}

// OfflinePort 缺失端口的零值占位
func OfflinePort(portNumber int) PortReading {
	return PortReading{PortNumber: portNumber}
}

// DeviceSnapshot 单台设备的最新状态
type DeviceSnapshot struct {
	ID        int64         `json:"id"`
	Name      string        `json:"name"`
	UpdatedAt string        `json:"updated_at"`
	Ports     []PortReading `json:"ports"`
	Error     string        `json:"error,omitempty"`
}

// StatusDocument 前端读取的状态文档，每次运行整体替换
type StatusDocument []DeviceSnapshot

// HistoryRow 历史文件中的一行，写入后不可变
type HistoryRow struct {
	Timestamp    string
	DeviceID     int64
	Port         int
	Current      float64
	Voltage      float64
	Power        float64
	ChargeStatus int
}

// Record 转换为 CSV 记录，列顺序与 HistoryHeader 一致
func (r HistoryRow) Record() []string {
	return []string{
		r.Timestamp,
		strconv.FormatInt(r.DeviceID, 10),
		strconv.Itoa(r.Port),
		formatNumber(r.Current),
		formatNumber(r.Voltage),
		formatNumber(r.Power),
		strconv.Itoa(r.ChargeStatus),
	}
}

// Time 按 TimestampLayout 解析 Timestamp
func (r HistoryRow) Time(loc *time.Location) (time.Time, error) {
	return time.ParseInLocation(TimestampLayout, r.Timestamp, loc)
}

// FormatTimestamp 统一的时间格式化
func FormatTimestamp(t time.Time) string {
	return t.Format(TimestampLayout)
}

func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
