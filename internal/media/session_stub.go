//go:build !linux

package media

import "log"

// NewSession returns a session that does nothing; this platform has no supported media session
func NewSession(identity string) (Session, error) {
	log.Printf("[MEDIA] No OS media session on this platform")
	return NewNoOpSession(), nil
}
