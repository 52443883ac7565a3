package ws

import (
	"encoding/hex"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/minio/sha256-simd"
)

// NewConnectionID 生成连接 ID
// 64 位十六进制：sha256("<纳秒时间戳>-<随机串>")
func NewConnectionID() string {
	seed := fmt.Sprintf("%d-%s", time.Now().UnixNano(), uuid.NewString())
	sum := sha256.Sum256([]byte(seed))
	return hex.EncodeToString(sum[:])
}
