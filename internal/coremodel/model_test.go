package coremodel

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDevices(t *testing.T) {
	devices := NewDevices([]int64{423297, 417598}, "桩")
	require.Len(t, devices, 2)
	assert.Equal(t, Device{ID: 423297, Name: "桩1"}, devices[0])
	assert.Equal(t, Device{ID: 417598, Name: "桩2"}, devices[1])
}

func TestHistoryRow_Record(t *testing.T) {
	row := HistoryRow{
		Timestamp:    "2026-10-19 20:00:00",
		DeviceID:     423297,
		Port:         3,
		Current:      0.52,
		Voltage:      220,
		Power:        114.4,
		ChargeStatus: 1,
	}
	assert.Equal(t, []string{"2026-10-19 20:00:00", "423297", "3", "0.52", "220", "114.4", "1"}, row.Record())
	assert.Len(t, HistoryHeader, len(row.Record()))
}

func TestHistoryRow_Time(t *testing.T) {
	row := HistoryRow{Timestamp: "2026-10-19 20:00:00"}
	ts, err := row.Time(time.UTC)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 10, 19, 20, 0, 0, 0, time.UTC), ts)
	assert.Equal(t, row.Timestamp, FormatTimestamp(ts))

	_, err = HistoryRow{Timestamp: "yesterday"}.Time(time.UTC)
	assert.Error(t, err)
}
