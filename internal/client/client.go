// Package client binds an application to the playback service.
//
// A Client owns at most one session with the service. It relays the service's
// notifications to registered observers and forwards control calls, answering
// with a fallback value whenever the service is unavailable or a call fails.
package client

import (
	"context"
	"errors"
	"log"
	"slices"
	"sync"
	"time"

	"github.com/austinkregel/local-media/playbackclient/internal/remote"
	"github.com/austinkregel/local-media/playbackclient/internal/types"
)

// State is the connection state of a Client
type State int

const (
	StateUnbound State = iota
	StateBinding
	StateBound
)

func (s State) String() string {
	switch s {
	case StateUnbound:
		return "unbound"
	case StateBinding:
		return "binding"
	case StateBound:
		return "bound"
	default:
		return "unknown"
	}
}

// AudioPlayer is a UI component that refreshes itself from the service
type AudioPlayer interface {
	Update()
	UpdateProgress()
}

// MediaPlayedListener is told about items added to or removed from the queue
type MediaPlayedListener interface {
	OnMediaPlayedAdded(item types.MediaItem, index int)
	OnMediaPlayedRemoved(index int)
}

// ConnectionListener is told how a Bind ended
type ConnectionListener interface {
	OnConnectionSuccess()
	OnConnectionFailed()
}

// Preferences supplies the settings applied to the service on every bind
type Preferences interface {
	HeadsetDetection() bool
}

// Options configures a Client
type Options struct {
	// Preferences is read once per bind. Nil enables headset detection.
	Preferences Preferences
	// CallTimeout bounds each remote call whose context has no deadline. Zero means no bound.
	CallTimeout time.Duration
}

// Client is the application's handle on the playback service.
// Observers passed to its registries must be comparable, pointers in practice.
type Client struct {
	connector   remote.Connector
	prefs       Preferences
	callTimeout time.Duration

	mu      sync.Mutex
	state   State
	session remote.Session // non-nil iff state is StateBound
	gen     uint64         // identifies the current bind attempt
	lostGen uint64         // bind attempt whose session dropped before it was bound
	cancel  context.CancelFunc
	waiting []ConnectionListener

	observersMu    sync.Mutex
	players        []AudioPlayer
	mediaListeners []MediaPlayedListener
}

// New creates an unbound client that opens sessions through connector
func New(connector remote.Connector, opts Options) *Client {
	return &Client{
		connector:   connector,
		prefs:       opts.Preferences,
		callTimeout: opts.CallTimeout,
	}
}

// State returns the connection state
func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Bound reports whether a session is established
func (c *Client) Bound() bool {
	return c.State() == StateBound
}

// Bind connects to the service if needed. listener, which may be nil, is told
// the outcome. Bind returns immediately; connecting happens in the background
// and is not bound to ctx's cancellation.
func (c *Client) Bind(ctx context.Context, listener ConnectionListener) {
	c.mu.Lock()
	switch c.state {
	case StateBound:
		session := c.session
		c.mu.Unlock()
		c.rebind(ctx, session, listener)
		return
	case StateBinding:
		if listener != nil {
			c.waiting = append(c.waiting, listener)
		}
		c.mu.Unlock()
		return
	}

	c.gen++
	gen := c.gen
	c.state = StateBinding
	if listener != nil {
		c.waiting = append(c.waiting, listener)
	}
	connectCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	c.cancel = cancel
	c.mu.Unlock()

	headset := true
	if c.prefs != nil {
		headset = c.prefs.HeadsetDetection()
	}

	log.Printf("[CLIENT] Binding playback service")
	go c.connect(connectCtx, gen, headset)
}

// rebind registers the notification sink again on an established session
func (c *Client) rebind(ctx context.Context, session remote.Session, listener ConnectionListener) {
	ctx, cancel := c.callContext(ctx)
	defer cancel()

	if err := session.AddCallback(ctx); err != nil {
		log.Printf("[CLIENT] remote procedure call failed: addCallback(): %v", err)
		if listener != nil {
			notify("OnConnectionFailed", listener.OnConnectionFailed)
		}
		return
	}
	if listener != nil {
		notify("OnConnectionSuccess", listener.OnConnectionSuccess)
	}
}

func (c *Client) connect(ctx context.Context, gen uint64, headset bool) {
	s := &sink{client: c, gen: gen}
	session, err := c.connector.Connect(ctx, s, func(err error) { c.disconnected(gen, err) })
	if err == nil && c.current(gen) {
		err = c.register(ctx, session, headset)
	}

	c.mu.Lock()
	if c.gen != gen {
		// Unbind won the race
		c.mu.Unlock()
		if session != nil {
			session.Close()
		}
		log.Printf("[CLIENT] Abandoned connection after unbind")
		return
	}
	waiting := c.waiting
	c.waiting = nil
	c.cancel = nil
	if err == nil && c.lostGen == gen {
		err = errors.New("service disconnected while binding")
	}
	if err != nil {
		c.state = StateUnbound
		c.mu.Unlock()
		if session != nil {
			session.Close()
		}
		log.Printf("[CLIENT] Failed to bind playback service: %v", err)
		for _, l := range waiting {
			notify("OnConnectionFailed", l.OnConnectionFailed)
		}
		return
	}
	c.state = StateBound
	c.session = session
	c.mu.Unlock()

	log.Printf("[CLIENT] Playback service connected")
	for _, l := range waiting {
		notify("OnConnectionSuccess", l.OnConnectionSuccess)
	}
	c.updateAudioPlayers()
}

// register subscribes the session's sink and applies the bind preferences
func (c *Client) register(ctx context.Context, session remote.Session, headset bool) error {
	callCtx, cancel := c.callContext(ctx)
	defer cancel()
	if err := session.AddCallback(callCtx); err != nil {
		log.Printf("[CLIENT] remote procedure call failed: addCallback(): %v", err)
		return err
	}
	if err := session.DetectHeadset(callCtx, headset); err != nil {
		log.Printf("[CLIENT] remote procedure call failed: detectHeadset(): %v", err)
		return err
	}
	return nil
}

// Unbind drops the session. A connect still in progress is abandoned.
func (c *Client) Unbind(ctx context.Context) {
	c.mu.Lock()
	if c.state == StateUnbound {
		c.mu.Unlock()
		return
	}
	session := c.session
	cancel := c.cancel
	c.state = StateUnbound
	c.session = nil
	c.cancel = nil
	c.waiting = nil
	c.gen++
	c.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if session == nil {
		return
	}

	callCtx, cancelCall := c.callContext(ctx)
	defer cancelCall()
	if err := session.RemoveCallback(callCtx); err != nil {
		log.Printf("[CLIENT] remote procedure call failed: removeCallback(): %v", err)
	}
	if err := session.Close(); err != nil {
		log.Printf("[CLIENT] Failed to close session: %v", err)
	}
	log.Printf("[CLIENT] Playback service unbound")
}

// disconnected handles the service side going away
func (c *Client) disconnected(gen uint64, err error) {
	c.mu.Lock()
	if c.gen != gen {
		c.mu.Unlock()
		return
	}
	if c.state == StateBinding {
		c.lostGen = gen
		c.mu.Unlock()
		return
	}
	c.state = StateUnbound
	c.session = nil
	c.gen++
	c.mu.Unlock()

	log.Printf("[CLIENT] Playback service disconnected: %v", err)
}

// current reports whether gen is still the live bind attempt
func (c *Client) current(gen uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gen == gen
}

func (c *Client) currentSession() remote.Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session
}

func (c *Client) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.callTimeout <= 0 {
		return ctx, func() {}
	}
	if _, ok := ctx.Deadline(); ok {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, c.callTimeout)
}

// AddAudioPlayer registers p. Registering it again has no effect.
func (c *Client) AddAudioPlayer(p AudioPlayer) {
	c.observersMu.Lock()
	defer c.observersMu.Unlock()
	if !slices.Contains(c.players, p) {
		c.players = append(c.players, p)
	}
}

// RemoveAudioPlayer unregisters p
func (c *Client) RemoveAudioPlayer(p AudioPlayer) {
	c.observersMu.Lock()
	defer c.observersMu.Unlock()
	if i := slices.Index(c.players, p); i >= 0 {
		c.players = slices.Delete(c.players, i, i+1)
	}
}

// AddMediaPlayedListener registers l. Registering it again has no effect.
func (c *Client) AddMediaPlayedListener(l MediaPlayedListener) {
	c.observersMu.Lock()
	defer c.observersMu.Unlock()
	if !slices.Contains(c.mediaListeners, l) {
		c.mediaListeners = append(c.mediaListeners, l)
	}
}

// RemoveMediaPlayedListener unregisters l
func (c *Client) RemoveMediaPlayedListener(l MediaPlayedListener) {
	c.observersMu.Lock()
	defer c.observersMu.Unlock()
	if i := slices.Index(c.mediaListeners, l); i >= 0 {
		c.mediaListeners = slices.Delete(c.mediaListeners, i, i+1)
	}
}

func (c *Client) audioPlayers() []AudioPlayer {
	c.observersMu.Lock()
	defer c.observersMu.Unlock()
	return slices.Clone(c.players)
}

func (c *Client) mediaPlayedListeners() []MediaPlayedListener {
	c.observersMu.Lock()
	defer c.observersMu.Unlock()
	return slices.Clone(c.mediaListeners)
}

func (c *Client) updateAudioPlayers() {
	for _, p := range c.audioPlayers() {
		notify("Update", p.Update)
	}
}

func (c *Client) updateProgressAudioPlayers() {
	for _, p := range c.audioPlayers() {
		notify("UpdateProgress", p.UpdateProgress)
	}
}

func (c *Client) mediaPlayedAdded(item types.MediaItem, index int) {
	for _, l := range c.mediaPlayedListeners() {
		notify("OnMediaPlayedAdded", func() { l.OnMediaPlayedAdded(item, index) })
	}
}

func (c *Client) mediaPlayedRemoved(index int) {
	for _, l := range c.mediaPlayedListeners() {
		notify("OnMediaPlayedRemoved", func() { l.OnMediaPlayedRemoved(index) })
	}
}

// notify runs one observer callback; a panic is logged and does not reach the other observers
func notify(name string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("[CLIENT] Observer panicked in %s: %v", name, r)
		}
	}()
	fn()
}

// sink relays one bind attempt's notifications while that attempt is current
type sink struct {
	client *Client
	gen    uint64
}

func (s *sink) Update() {
	if s.client.current(s.gen) {
		s.client.updateAudioPlayers()
	}
}

func (s *sink) UpdateProgress() {
	if s.client.current(s.gen) {
		s.client.updateProgressAudioPlayers()
	}
}

func (s *sink) MediaPlayedAdded(item types.MediaItem, index int) {
	if s.client.current(s.gen) {
		s.client.mediaPlayedAdded(item, index)
	}
}

func (s *sink) MediaPlayedRemoved(index int) {
	if s.client.current(s.gen) {
		s.client.mediaPlayedRemoved(index)
	}
}
