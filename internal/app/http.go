package app

import (
	"net/http"

	cfgpkg "github.com/taoyao-code/mks-gateway/internal/config"
	"github.com/taoyao-code/mks-gateway/internal/httpserver"
	"go.uber.org/zap"
)

// NewHTTPServer 根据配置创建 HTTP 服务器
func NewHTTPServer(cfg cfgpkg.HTTPConfig, metricsPath string, metricsHandler http.Handler, readyFn func() bool, log *zap.Logger) *httpserver.Server {
	return httpserver.New(cfg, metricsPath, metricsHandler, readyFn, log)
}
