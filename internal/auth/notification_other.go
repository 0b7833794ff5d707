//go:build !linux

package auth

import "log"

// ShowPairingNotification only logs on platforms without a notification bridge
func ShowPairingNotification(clientName string) error {
	log.Printf("[AUTH] Client '%s' paired without desktop notification", clientName)
	return nil
}
