//go:build linux

package auth

import (
	"fmt"
	"log"

	"github.com/godbus/dbus/v5"
)

const (
	notifyDest  = "org.freedesktop.Notifications"
	notifyPath  = "/org/freedesktop/Notifications"
	notifyIface = "org.freedesktop.Notifications"
)

// ShowPairingNotification asks the desktop notification daemon to announce a pairing request
func ShowPairingNotification(clientName string) error {
	conn, err := dbus.ConnectSessionBus()
	if err != nil {
		return fmt.Errorf("failed to connect to session bus: %w", err)
	}
	defer conn.Close()

	hints := map[string]dbus.Variant{
		"urgency": dbus.MakeVariant(byte(2)),
	}

	obj := conn.Object(notifyDest, notifyPath)
	call := obj.Call(notifyIface+".Notify", 0,
		"musicd",
		uint32(0),
		"audio-x-generic",
		"Music Daemon Pairing Request",
		fmt.Sprintf("Client '%s' wants to connect to your music daemon", clientName),
		[]string{},
		hints,
		int32(-1),
	)
	if call.Err != nil {
		return fmt.Errorf("notify call failed: %w", call.Err)
	}

	log.Printf("[AUTH] Showed pairing notification for client: %s", clientName)
	return nil
}
