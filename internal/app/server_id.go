package app

import (
	"fmt"
	"os"

	"github.com/google/uuid"
)

// GenerateServerID 生成网关实例ID
// 优先使用环境变量 MKS_SERVER_ID，否则生成 mks-gateway-{hostname}-{uuid前8位}
func GenerateServerID() string {
	if id := os.Getenv("MKS_SERVER_ID"); id != "" {
		return id
	}
	hostname, err := os.Hostname()
	if err != nil {
		hostname = "unknown"
	}
	return fmt.Sprintf("mks-gateway-%s-%s", hostname, uuid.New().String()[:8])
}
