package remote

import (
	"context"
	"fmt"
	"log"

	"github.com/austinkregel/local-media/playbackclient/internal/auth"
	"github.com/austinkregel/local-media/playbackclient/internal/ipc"
)

// Dialer connects to the service endpoint and authenticates the session
type Dialer struct {
	SocketPath string
	ClientName string
	// Tokens caches the pairing token between runs. Without it every connect pairs anew.
	Tokens *auth.TokenFile
}

// Connect dials the service, pairing first when no token is cached
func (d *Dialer) Connect(ctx context.Context, sink Callback, onDisconnect func(error)) (Session, error) {
	nc, err := ipc.Dial(ctx, d.SocketPath)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", d.SocketPath, err)
	}

	conn := ipc.NewConn(nc, pushHandler(sink), func(err error) {
		if err != nil && onDisconnect != nil {
			onDisconnect(err)
		}
	})

	token, err := d.token(ctx, conn)
	if err != nil {
		conn.Close()
		return nil, err
	}
	conn.SetToken(token)

	c := NewClient(conn)
	if d.Tokens != nil {
		tokens := d.Tokens
		c.onUnauthorized = func() {
			log.Printf("[AUTH] Token rejected, clearing %s", tokens.Path)
			if err := tokens.Clear(); err != nil {
				log.Printf("[AUTH] Failed to clear token: %v", err)
			}
		}
	}
	return c, nil
}

func (d *Dialer) token(ctx context.Context, conn *ipc.Conn) (string, error) {
	if d.Tokens != nil {
		token, err := d.Tokens.Load()
		if err != nil {
			log.Printf("[AUTH] Ignoring unreadable token file: %v", err)
		} else if token != "" {
			return token, nil
		}
	}

	var resp ipc.PairResponse
	if err := conn.Call(ctx, ipc.CmdPair, ipc.PairRequest{ClientName: d.ClientName}, &resp); err != nil {
		return "", fmt.Errorf("failed to pair: %w", err)
	}
	if resp.Token == "" {
		return "", fmt.Errorf("failed to pair: service returned no token")
	}
	if resp.RequiresApproval {
		log.Printf("[AUTH] Paired as %s (client %s); the service may ask to confirm", d.ClientName, resp.ClientID)
	}

	if d.Tokens != nil {
		if err := d.Tokens.Save(resp.Token); err != nil {
			log.Printf("[AUTH] Failed to cache token: %v", err)
		}
	}
	return resp.Token, nil
}
