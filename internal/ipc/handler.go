package ipc

import (
	"log"
	"time"
)

// RequestLogger logs incoming requests (for debugging)
func RequestLogger(req *Request) {
	log.Printf("[IPC] Request: id=%d cmd=%s token=%s...", req.ID, req.Cmd, truncateToken(req.Token))
}

// ResponseLogger logs outgoing responses (for debugging)
func ResponseLogger(resp *Response, duration time.Duration) {
	if resp.Success {
		log.Printf("[IPC] Response: id=%d success=true duration=%v", resp.ID, duration)
	} else {
		log.Printf("[IPC] Response: id=%d success=false error=%q duration=%v", resp.ID, resp.Error, duration)
	}
}

func truncateToken(token string) string {
	if len(token) > 8 {
		return token[:8]
	}
	return token
}
