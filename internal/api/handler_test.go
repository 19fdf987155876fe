package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taoyao-code/mks-gateway/internal/api/middleware"
	"github.com/taoyao-code/mks-gateway/internal/protocol/mks"
	"github.com/taoyao-code/mks-gateway/internal/session"
)

func newTestRouter(t *testing.T, keys ...string) (*gin.Engine, *session.Manager) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	sess := session.New(4, time.Minute)
	r := gin.New()
	RegisterRoutes(r, NewHandler(nil, sess, nil), middleware.AuthConfig{APIKeys: keys}, nil)
	return r, sess
}

func do(r http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestDecode(t *testing.T) {
	r, _ := newTestRouter(t)
	tests := []struct {
		name string
		body DecodeRequest
		code int
		line string
	}{
		{"十六进制", DecodeRequest{Address: 1, Data: "30000000004000AA"}, http.StatusOK,
			"Motor 0x1: ENCODER - Carry: 0, Value: 16384 (0x4000), Angle: 360.00° [CRC: 0xAA]"},
		{"candump行", DecodeRequest{Line: "can0 002#F40100"}, http.StatusOK,
			"Motor 0x2: POS REL COORD Response: STARTING [CRC: 0x0]"},
		{"地址越界", DecodeRequest{Address: 0, Data: "3A0100"}, http.StatusUnprocessableEntity, ""},
		{"长度不足", DecodeRequest{Address: 1, Data: "3A"}, http.StatusUnprocessableEntity, ""},
		{"非法十六进制", DecodeRequest{Address: 1, Data: "ZZ"}, http.StatusBadRequest, ""},
		{"空请求", DecodeRequest{}, http.StatusBadRequest, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(r, http.MethodPost, "/api/v1/decode", tt.body)
			require.Equal(t, tt.code, rec.Code, rec.Body.String())
			if tt.line == "" {
				return
			}
			var resp struct {
				Line    string `json:"line"`
				Message struct {
					Variant string `json:"variant"`
				} `json:"message"`
			}
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.Equal(t, tt.line, resp.Line)
			assert.NotEmpty(t, resp.Message.Variant)
		})
	}
}

func TestDecode_Warning(t *testing.T) {
	r, _ := newTestRouter(t)
	rec := do(r, http.MethodPost, "/api/v1/decode", DecodeRequest{Address: 1, Data: "F109FB"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"warning"`)
	assert.Contains(t, rec.Body.String(), "Unknown(9)")
}

func TestListCommands(t *testing.T) {
	r, _ := newTestRouter(t)
	rec := do(r, http.MethodGet, "/api/v1/commands", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Commands []CommandInfo `json:"commands"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Len(t, resp.Commands, len(mks.DefaultTable().Commands()))
	assert.Equal(t, CommandInfo{Cmd: "0x30", Name: "ENCODER", TelemetryMin: 8}, resp.Commands[0])
}

func TestMotors(t *testing.T) {
	r, sess := newTestRouter(t)
	m, ok := mks.NewDecoder(nil).Decode(5, 0x3A, []byte{0x3A, 0x01, 0x40})
	require.True(t, ok)
	sess.Observe(m, m.String(), time.Now())

	rec := do(r, http.MethodGet, "/api/v1/motors", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var list struct {
		Online int             `json:"online"`
		Motors []session.Motor `json:"motors"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	assert.Equal(t, 1, list.Online)
	require.Len(t, list.Motors, 1)
	assert.Equal(t, 5, list.Motors[0].Address)

	rec = do(r, http.MethodGet, "/api/v1/motors/0x5", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "ENABLE STATUS")

	assert.Equal(t, http.StatusNotFound, do(r, http.MethodGet, "/api/v1/motors/6", nil).Code)
	assert.Equal(t, http.StatusBadRequest, do(r, http.MethodGet, "/api/v1/motors/abc", nil).Code)
	assert.Equal(t, http.StatusBadRequest, do(r, http.MethodGet, "/api/v1/motors/256", nil).Code)
}

func TestEncode(t *testing.T) {
	r, _ := newTestRouter(t)

	rec := do(r, http.MethodPost, "/api/v1/encode/position", PositionRequest{CanID: 1, Speed: 300, Accel: 2, Position: -16384})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var resp struct {
		Data    string `json:"data"`
		Candump string `json:"candump"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "F5012C02FFC000E4", resp.Data)
	assert.Equal(t, "can0 001#F5012C02FFC000E4", resp.Candump)

	rec = do(r, http.MethodPost, "/api/v1/encode/speed", SpeedRequest{CanID: 1, Speed: 300, Accel: 5, Reverse: true})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"data":"F6812C05A9"`)

	rec = do(r, http.MethodPost, "/api/v1/encode/speed", SpeedRequest{CanID: 0x800, Speed: 1})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec = do(r, http.MethodPost, "/api/v1/encode/position", map[string]any{"speed": 1})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRoutes_RequireKey(t *testing.T) {
	r, _ := newTestRouter(t, "gateway-key-001")
	assert.Equal(t, http.StatusUnauthorized, do(r, http.MethodGet, "/api/v1/commands", nil).Code)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/commands", nil)
	req.Header.Set("X-API-Key", "gateway-key-001")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

type fakeMirror struct {
	motors map[int]session.Motor
	err    error
}

func (f *fakeMirror) Load(_ context.Context, addr int) (session.Motor, string, bool, error) {
	if f.err != nil {
		return session.Motor{}, "", false, f.err
	}
	m, ok := f.motors[addr]
	return m, "gw-2", ok, nil
}

func (f *fakeMirror) OnlineAddresses(_ context.Context) ([]int, error) {
	if f.err != nil {
		return nil, f.err
	}
	out := make([]int, 0, len(f.motors))
	for a := range f.motors {
		out = append(out, a)
	}
	return out, nil
}

func newMirrorRouter(t *testing.T, mirror *fakeMirror) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	h := NewHandler(nil, session.New(4, time.Minute), nil)
	h.SetMirror(mirror)
	r := gin.New()
	RegisterRoutes(r, h, middleware.AuthConfig{}, nil)
	return r
}

func TestMotors_MirrorFallback(t *testing.T) {
	r := newMirrorRouter(t, &fakeMirror{motors: map[int]session.Motor{
		9: {Address: 9, LastName: "ENCODER", Online: true},
	}})

	rec := do(r, http.MethodGet, "/api/v1/motors/9", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var resp struct {
		Motor    session.Motor `json:"motor"`
		ServerID string        `json:"server_id"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 9, resp.Motor.Address)
	assert.Equal(t, "gw-2", resp.ServerID)

	rec = do(r, http.MethodGet, "/api/v1/motors/10", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(r, http.MethodGet, "/api/v1/motors", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var list struct {
		Mirrored []int `json:"mirrored"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	assert.Equal(t, []int{9}, list.Mirrored)
}

func TestMotors_MirrorUnavailable(t *testing.T) {
	r := newMirrorRouter(t, &fakeMirror{err: errors.New("connection refused")})

	rec := do(r, http.MethodGet, "/api/v1/motors/9", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	rec = do(r, http.MethodGet, "/api/v1/motors", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotContains(t, rec.Body.String(), "mirrored")
}
