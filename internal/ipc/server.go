package ipc

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/austinkregel/local-media/playbackclient/internal/types"
)

const pushWriteTimeout = 2 * time.Second

// Backend is the playback service a Server exposes
type Backend interface {
	Load(items []types.MediaItem, position int, forceAudio bool) error
	LoadLocations(locations []string, position int) error
	Append(items []types.MediaItem)
	MoveItem(from, to int) error
	Remove(index int) error
	RemoveLocation(location string)
	Medias() []types.MediaItem
	MediaLocations() []string
	CurrentMedia() *types.MediaItem
	// MediaAt returns the item at offset from the current one, or nil
	MediaAt(offset int) *types.MediaItem
	// Cover returns encoded cover art for the item at offset. Data is nil when there is none.
	Cover(offset int) (data []byte, mimeType string, err error)

	Stop()
	Play()
	Pause()
	Next()
	Previous()
	PlayIndex(index int) error
	ShowWithoutParse(index int) error
	SetTime(ms int64)
	HandleVout()

	IsPlaying() bool
	HasMedia() bool
	HasNext() bool
	HasPrevious() bool
	Length() int64
	Time() int64
	Rate() float64

	Shuffle()
	IsShuffling() bool
	SetRepeatType(t types.RepeatType)
	RepeatType() types.RepeatType
	DetectHeadset(enabled bool)

	SetEventListener(l EventListener)
}

// EventListener receives state changes from a Backend
type EventListener interface {
	OnUpdate()
	OnProgress()
	OnMediaAdded(item types.MediaItem, index int)
	OnMediaRemoved(index int)
}

// Authenticator checks client tokens
type Authenticator interface {
	Pair(clientName string) (token, clientID string, requiresApproval bool, err error)
	ValidateToken(token string) bool
}

// Lockout is implemented by authenticators that throttle repeated token failures
type Lockout interface {
	RecordAuthFailure(peer string)
	IsLockedOut(peer string) bool
}

// Server handles IPC communication with clients
type Server struct {
	endpoint string
	auth     Authenticator
	backend  Backend
	verbose  bool

	listener net.Listener
	connSeq  atomic.Uint64

	mu          sync.Mutex
	clients     map[*clientConn]struct{}
	subscribers map[*clientConn]struct{}
}

type clientConn struct {
	conn    net.Conn
	peer    string
	writeMu sync.Mutex
}

func (c *clientConn) send(frame []byte, timeout time.Duration) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if timeout > 0 {
		c.conn.SetWriteDeadline(time.Now().Add(timeout))
		defer c.conn.SetWriteDeadline(time.Time{})
	}
	_, err := c.conn.Write(frame)
	return err
}

// NewServer creates a new IPC server and subscribes it to backend events
func NewServer(endpoint string, auth Authenticator, backend Backend) *Server {
	s := &Server{
		endpoint:    endpoint,
		auth:        auth,
		backend:     backend,
		clients:     make(map[*clientConn]struct{}),
		subscribers: make(map[*clientConn]struct{}),
	}
	backend.SetEventListener(s)
	return s
}

// SetVerbose enables per-command logging
func (s *Server) SetVerbose(v bool) {
	s.verbose = v
}

// Listen creates the endpoint
func (s *Server) Listen() error {
	log.Printf("[IPC] Creating endpoint at %s", s.endpoint)
	ln, err := Listen(s.endpoint)
	if err != nil {
		return err
	}
	s.listener = ln
	return nil
}

// Start listens and serves until ctx is done
func (s *Server) Start(ctx context.Context) error {
	if err := s.Listen(); err != nil {
		return err
	}
	return s.Serve(ctx)
}

// Serve accepts connections until ctx is done. Listen must have been called.
func (s *Server) Serve(ctx context.Context) error {
	if s.listener == nil {
		return fmt.Errorf("server is not listening")
	}
	log.Printf("[IPC] Server listening, waiting for connections...")

	go s.acceptLoop(ctx)

	<-ctx.Done()

	log.Printf("[IPC] Shutting down server...")

	s.mu.Lock()
	clientCount := len(s.clients)
	for c := range s.clients {
		c.conn.Close()
	}
	s.mu.Unlock()

	log.Printf("[IPC] Closed %d client connections", clientCount)

	s.listener.Close()
	removeEndpoint(s.endpoint)

	log.Printf("[IPC] Server stopped")
	return nil
}

func (s *Server) acceptLoop(ctx context.Context) {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return
			default:
			}
			if errors.Is(err, net.ErrClosed) {
				return
			}
			log.Printf("[IPC] Accept error: %v", err)
			continue
		}

		c := &clientConn{conn: conn, peer: fmt.Sprintf("conn-%d", s.connSeq.Add(1))}

		s.mu.Lock()
		s.clients[c] = struct{}{}
		clientCount := len(s.clients)
		s.mu.Unlock()

		log.Printf("[IPC] New client connection %s (active: %d)", c.peer, clientCount)

		go s.handleConnection(ctx, c)
	}
}

func (s *Server) handleConnection(ctx context.Context, c *clientConn) {
	defer func() {
		c.conn.Close()
		s.mu.Lock()
		delete(s.clients, c)
		delete(s.subscribers, c)
		clientCount := len(s.clients)
		s.mu.Unlock()
		log.Printf("[IPC] Client %s disconnected (active: %d)", c.peer, clientCount)
	}()

	reader := bufio.NewReader(c.conn)

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		line, err := reader.ReadBytes('\n')
		if err != nil {
			if err != io.EOF {
				log.Printf("[IPC] Read error: %v", err)
			}
			return
		}

		req, err := DecodeRequest(line)
		if err != nil {
			log.Printf("[IPC] Invalid request format: %v", err)
			if err := s.sendResponse(c, NewErrorResponse("invalid request format")); err != nil {
				return
			}
			continue
		}

		chatty := s.verbose && !isPollingCmd(req.Cmd)
		start := time.Now()
		if chatty {
			RequestLogger(req)
		}

		resp := s.handleRequest(c, req)
		resp.ID = req.ID

		if chatty {
			ResponseLogger(resp, time.Since(start))
		}

		if err := s.sendResponse(c, resp); err != nil {
			log.Printf("[IPC] Send error: %v", err)
			return
		}
	}
}

// isPollingCmd reports commands that UIs issue on every progress tick
func isPollingCmd(cmd CommandType) bool {
	switch cmd {
	case CmdGetTime, CmdGetLength, CmdIsPlaying, CmdHasMedia, CmdGetRate:
		return true
	}
	return false
}

func (s *Server) handleRequest(c *clientConn, req *Request) *Response {
	if req.Cmd == CmdPair {
		return s.handlePair(req)
	}

	lockout, _ := s.auth.(Lockout)
	if lockout != nil && lockout.IsLockedOut(c.peer) {
		return NewErrorResponse("too many failed attempts")
	}
	if !s.auth.ValidateToken(req.Token) {
		if lockout != nil {
			lockout.RecordAuthFailure(c.peer)
		}
		return NewErrorResponse(unauthorizedMessage)
	}

	b := s.backend
	switch req.Cmd {
	case CmdAddCallback:
		return s.subscribe(c)
	case CmdRemoveCallback:
		return s.unsubscribe(c)

	case CmdLoad:
		var r LoadRequest
		if err := decodeData(req, &r); err != nil {
			return NewErrorResponse(err.Error())
		}
		log.Printf("[QUEUE] Load %d items at position %d", len(r.Items), r.Position)
		return result(nil, b.Load(r.Items, r.Position, r.ForceAudio))
	case CmdLoadLocations:
		var r LoadLocationsRequest
		if err := decodeData(req, &r); err != nil {
			return NewErrorResponse(err.Error())
		}
		log.Printf("[QUEUE] Load %d locations at position %d", len(r.Locations), r.Position)
		return result(nil, b.LoadLocations(r.Locations, r.Position))
	case CmdAppend:
		var r AppendRequest
		if err := decodeData(req, &r); err != nil {
			return NewErrorResponse(err.Error())
		}
		b.Append(r.Items)
		return result(nil, nil)
	case CmdMoveItem:
		var r MoveItemRequest
		if err := decodeData(req, &r); err != nil {
			return NewErrorResponse(err.Error())
		}
		return result(nil, b.MoveItem(r.FromIndex, r.ToIndex))
	case CmdRemove:
		var r IndexRequest
		if err := decodeData(req, &r); err != nil {
			return NewErrorResponse(err.Error())
		}
		return result(nil, b.Remove(r.Index))
	case CmdRemoveLocation:
		var r LocationRequest
		if err := decodeData(req, &r); err != nil {
			return NewErrorResponse(err.Error())
		}
		b.RemoveLocation(r.Location)
		return result(nil, nil)
	case CmdGetMedias:
		return result(b.Medias(), nil)
	case CmdGetLocations:
		return result(b.MediaLocations(), nil)
	case CmdGetLocation:
		location := ""
		if m := b.CurrentMedia(); m != nil {
			location = m.Location
		}
		return result(location, nil)
	case CmdGetCurrent:
		return result(b.CurrentMedia(), nil)

	case CmdStop:
		b.Stop()
		return result(nil, nil)
	case CmdPlay:
		b.Play()
		return result(nil, nil)
	case CmdPause:
		b.Pause()
		return result(nil, nil)
	case CmdNext:
		b.Next()
		return result(nil, nil)
	case CmdPrevious:
		b.Previous()
		return result(nil, nil)
	case CmdPlayIndex:
		var r IndexRequest
		if err := decodeData(req, &r); err != nil {
			return NewErrorResponse(err.Error())
		}
		return result(nil, b.PlayIndex(r.Index))
	case CmdShowWithoutParse:
		var r IndexRequest
		if err := decodeData(req, &r); err != nil {
			return NewErrorResponse(err.Error())
		}
		return result(nil, b.ShowWithoutParse(r.Index))
	case CmdSetTime:
		var r SetTimeRequest
		if err := decodeData(req, &r); err != nil {
			return NewErrorResponse(err.Error())
		}
		b.SetTime(r.Time)
		return result(nil, nil)
	case CmdHandleVout:
		b.HandleVout()
		return result(nil, nil)

	case CmdGetAlbum:
		return result(field(b.MediaAt(0), func(m *types.MediaItem) string { return m.Album }), nil)
	case CmdGetArtist:
		return result(field(b.MediaAt(0), artistOf), nil)
	case CmdGetArtistPrev:
		return result(field(b.MediaAt(-1), artistOf), nil)
	case CmdGetArtistNext:
		return result(field(b.MediaAt(1), artistOf), nil)
	case CmdGetTitle:
		return result(field(b.MediaAt(0), titleOf), nil)
	case CmdGetTitlePrev:
		return result(field(b.MediaAt(-1), titleOf), nil)
	case CmdGetTitleNext:
		return result(field(b.MediaAt(1), titleOf), nil)
	case CmdGetCover:
		return s.cover(0)
	case CmdGetCoverPrev:
		return s.cover(-1)
	case CmdGetCoverNext:
		return s.cover(1)

	case CmdIsPlaying:
		return result(b.IsPlaying(), nil)
	case CmdHasMedia:
		return result(b.HasMedia(), nil)
	case CmdHasNext:
		return result(b.HasNext(), nil)
	case CmdHasPrevious:
		return result(b.HasPrevious(), nil)
	case CmdGetLength:
		return result(b.Length(), nil)
	case CmdGetTime:
		return result(b.Time(), nil)
	case CmdGetRate:
		return result(b.Rate(), nil)

	case CmdShuffle:
		b.Shuffle()
		return result(nil, nil)
	case CmdIsShuffling:
		return result(b.IsShuffling(), nil)
	case CmdSetRepeatType:
		var r SetRepeatRequest
		if err := decodeData(req, &r); err != nil {
			return NewErrorResponse(err.Error())
		}
		b.SetRepeatType(types.ParseRepeatType(r.Mode))
		return result(nil, nil)
	case CmdGetRepeatType:
		return result(b.RepeatType().String(), nil)
	case CmdDetectHeadset:
		var r DetectHeadsetRequest
		if err := decodeData(req, &r); err != nil {
			return NewErrorResponse(err.Error())
		}
		b.DetectHeadset(r.Enabled)
		return result(nil, nil)
	default:
		return NewErrorResponse("unknown command")
	}
}

func (s *Server) handlePair(req *Request) *Response {
	var pairReq PairRequest
	if req.Data != nil {
		if err := json.Unmarshal(req.Data, &pairReq); err != nil {
			return NewErrorResponse("invalid pair request")
		}
	}

	log.Printf("[AUTH] Pairing request from client: %q", pairReq.ClientName)

	token, clientID, requiresApproval, err := s.auth.Pair(pairReq.ClientName)
	if err != nil {
		log.Printf("[AUTH] Pairing failed: %v", err)
		return NewErrorResponse(err.Error())
	}

	log.Printf("[AUTH] Paired client %s (ID: %s, approval required: %v)", pairReq.ClientName, clientID, requiresApproval)

	return result(PairResponse{
		Token:            token,
		ClientID:         clientID,
		RequiresApproval: requiresApproval,
	}, nil)
}

func (s *Server) cover(offset int) *Response {
	data, mimeType, err := s.backend.Cover(offset)
	if err != nil {
		log.Printf("[PLAYER] Cover lookup failed: %v", err)
		return NewErrorResponse(err.Error())
	}
	if data == nil {
		return result(nil, nil)
	}
	return result(CoverResponse{MIMEType: mimeType, Data: data}, nil)
}

func (s *Server) subscribe(c *clientConn) *Response {
	s.mu.Lock()
	s.subscribers[c] = struct{}{}
	count := len(s.subscribers)
	s.mu.Unlock()

	log.Printf("[IPC] Callback registered (total: %d)", count)
	return result(nil, nil)
}

func (s *Server) unsubscribe(c *clientConn) *Response {
	s.mu.Lock()
	delete(s.subscribers, c)
	count := len(s.subscribers)
	s.mu.Unlock()

	log.Printf("[IPC] Callback removed (remaining: %d)", count)
	return result(nil, nil)
}

// OnUpdate pushes an update notification to every registered callback
func (s *Server) OnUpdate() {
	s.push(PushUpdate, nil)
}

// OnProgress pushes a progress notification to every registered callback
func (s *Server) OnProgress() {
	s.push(PushUpdateProgress, nil)
}

// OnMediaAdded pushes a mediaPlayedAdded notification
func (s *Server) OnMediaAdded(item types.MediaItem, index int) {
	s.push(PushMediaAdded, MediaPlayedAddedPush{Item: item, Index: index})
}

// OnMediaRemoved pushes a mediaPlayedRemoved notification
func (s *Server) OnMediaRemoved(index int) {
	s.push(PushMediaRemoved, MediaPlayedRemovedPush{Index: index})
}

func (s *Server) push(msgType string, data interface{}) {
	s.mu.Lock()
	if len(s.subscribers) == 0 {
		s.mu.Unlock()
		return
	}
	subs := make([]*clientConn, 0, len(s.subscribers))
	for c := range s.subscribers {
		subs = append(subs, c)
	}
	s.mu.Unlock()

	frame, err := NewPushMessage(msgType, data)
	if err != nil {
		log.Printf("[IPC] Failed to encode %s push: %v", msgType, err)
		return
	}
	frame = append(frame, '\n')

	for _, c := range subs {
		if err := c.send(frame, pushWriteTimeout); err != nil {
			log.Printf("[IPC] Dropping subscriber after failed %s push: %v", msgType, err)
			s.mu.Lock()
			delete(s.subscribers, c)
			s.mu.Unlock()
		}
	}
}

func (s *Server) sendResponse(c *clientConn, resp *Response) error {
	data, err := EncodeResponse(resp)
	if err != nil {
		return err
	}
	return c.send(append(data, '\n'), 0)
}

func decodeData(req *Request, v interface{}) error {
	if len(req.Data) == 0 {
		return fmt.Errorf("missing %s data", req.Cmd)
	}
	if err := json.Unmarshal(req.Data, v); err != nil {
		return fmt.Errorf("invalid %s request", req.Cmd)
	}
	return nil
}

func result(data interface{}, err error) *Response {
	if err != nil {
		return NewErrorResponse(err.Error())
	}
	resp, err := NewSuccessResponse(data)
	if err != nil {
		return NewErrorResponse("internal error")
	}
	return resp
}

func field(m *types.MediaItem, get func(*types.MediaItem) string) string {
	if m == nil {
		return ""
	}
	return get(m)
}

func artistOf(m *types.MediaItem) string { return m.Artist }

func titleOf(m *types.MediaItem) string { return m.DisplayTitle() }
