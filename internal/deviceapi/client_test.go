package deviceapi

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv
}

func TestFetchPortList_OK(t *testing.T) {
	var gotDeviceID string
	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		gotDeviceID = r.URL.Query().Get("device_id")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"code":0,"data":{"list":[
			{"charge_status":1,"online":1,"current":0.5,"voltage":"220.1","power":110},
			{"online":1}
		]}}`))
	})

	c := NewClient(srv.URL, time.Second, nil)
	resp, err := c.FetchPortList(context.Background(), 423297)
	require.NoError(t, err)

	assert.Equal(t, "423297", gotDeviceID)
	assert.True(t, resp.OK())
	require.Len(t, resp.Ports(), 2)

	p := resp.Ports()[0]
	assert.Equal(t, Int(1), p.ChargeStatus)
	assert.Equal(t, Int(1), p.Online)
	assert.Equal(t, Number(0.5), p.Current)
	assert.Equal(t, Number(220.1), p.Voltage)
	assert.Equal(t, Number(110), p.Power)

	// 缺失字段为零
	assert.Equal(t, PortEntry{Online: 1}, resp.Ports()[1])
}

func TestFetchPortList_APIError(t *testing.T) {
	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"code":1001,"msg":"device offline","data":{"list":[]}}`))
	})

	resp, err := NewClient(srv.URL, time.Second, nil).FetchPortList(context.Background(), 1)
	require.NoError(t, err)
	assert.False(t, resp.OK())
	assert.Equal(t, "device offline", resp.Message())
	assert.Empty(t, resp.Ports())
}

func TestFetchPortList_MissingCodeIsNotOK(t *testing.T) {
	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"data":null}`))
	})

	resp, err := NewClient(srv.URL, time.Second, nil).FetchPortList(context.Background(), 1)
	require.NoError(t, err)
	assert.False(t, resp.OK())
	assert.Equal(t, "Unknown", resp.Message())
	assert.Nil(t, resp.Ports())
}

func TestFetchPortList_CodeMustBeNumericZero(t *testing.T) {
	tests := []struct {
		name string
		body string
		ok   bool
	}{
		{"zero", `{"code":0}`, true},
		{"zero_float", `{"code":0.0}`, true},
		{"string_zero", `{"code":"0","msg":"weird"}`, false},
		{"fraction", `{"code":0.4}`, false},
		{"bool", `{"code":false}`, false},
		{"null", `{"code":null}`, false},
		{"nonzero", `{"code":2}`, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(tt.body))
			})
			resp, err := NewClient(srv.URL, time.Second, nil).FetchPortList(context.Background(), 7)
			require.NoError(t, err)
			assert.Equal(t, tt.ok, resp.OK())
		})
	}
}

func TestFetchPortList_NoData(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"empty_object", `{}`},
		{"null", `null`},
		{"empty", ``},
		{"html", `<html>bad gateway</html>`},
		{"array", `[1,2,3]`},
		{"bad_number", `{"code":0,"data":{"list":[{"current":"n/a"}]}}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(tt.body))
			})
			resp, err := NewClient(srv.URL, time.Second, nil).FetchPortList(context.Background(), 7)
			assert.Error(t, err)
			assert.Nil(t, resp)
		})
	}
}

func TestFetchPortList_EmptyObjectSentinel(t *testing.T) {
	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	})
	_, err := NewClient(srv.URL, time.Second, nil).FetchPortList(context.Background(), 7)
	assert.ErrorIs(t, err, ErrEmptyBody)
}

func TestFetchPortList_Timeout(t *testing.T) {
	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-time.After(500 * time.Millisecond):
		case <-r.Context().Done():
		}
		_, _ = w.Write([]byte(`{"code":0}`))
	})

	start := time.Now()
	resp, err := NewClient(srv.URL, 50*time.Millisecond, nil).FetchPortList(context.Background(), 7)
	assert.Error(t, err)
	assert.Nil(t, resp)
	assert.Less(t, time.Since(start), 450*time.Millisecond)
}

func TestFetchPortList_ConnectionRefused(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	resp, err := NewClient(url, time.Second, nil).FetchPortList(context.Background(), 7)
	assert.Error(t, err)
	assert.Nil(t, resp)
}
