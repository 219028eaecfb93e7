package snapshot

import (
	"github.com/taoyao-code/port-poller/internal/coremodel"
	"github.com/taoyao-code/port-poller/internal/deviceapi"
)

// ErrFetchFailed 拉取失败时写入快照的错误文本
const ErrFetchFailed = "Fetch failed"

// Result 单台设备的归一化结果
type Result struct {
	Snapshot coremodel.DeviceSnapshot
	// Populated 来自响应数据的端口数（0..12），其余为占位
	Populated int
}

// FetchFailed 无响应数据
func (r Result) FetchFailed() bool {
	return r.Snapshot.Error == ErrFetchFailed
}

// Normalize 把平台响应映射为固定 12 端口的快照。
// resp 为 nil 或 fetchErr 非空时全部端口为离线占位；
// code != 0 时记录错误信息但仍按列表填充端口；超出 12 个的条目忽略。
func Normalize(dev coremodel.Device, resp *deviceapi.PortListResponse, fetchErr error, updatedAt string) Result {
	snap := coremodel.DeviceSnapshot{
		ID:        dev.ID,
		Name:      dev.Name,
		UpdatedAt: updatedAt,
		Ports:     make([]coremodel.PortReading, 0, coremodel.PortsPerDevice),
	}

	if fetchErr != nil || resp == nil {
		snap.Error = ErrFetchFailed
		for i := 0; i < coremodel.PortsPerDevice; i++ {
			snap.Ports = append(snap.Ports, coremodel.OfflinePort(i+1))
		}
		return Result{Snapshot: snap}
	}

	if !resp.OK() {
		snap.Error = "API Error: " + resp.Message()
	}

	entries := resp.Ports()
	populated := 0
	for i := 0; i < coremodel.PortsPerDevice; i++ {
		if i >= len(entries) {
			snap.Ports = append(snap.Ports, coremodel.OfflinePort(i+1))
			continue
		}
		e := entries[i]
		snap.Ports = append(snap.Ports, coremodel.PortReading{
			PortNumber: i + 1,
			Current:    float64(e.Current),
			Voltage:    float64(e.Voltage),
			Power:      float64(e.Power),
			Status:     int(e.ChargeStatus),
			Online:     int(e.Online),
		})
		populated++
	}

	return Result{Snapshot: snap, Populated: populated}
}
