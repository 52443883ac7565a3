// relay 是消息中继的 WebSocket 入口服务。
package main

import "os"

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}
