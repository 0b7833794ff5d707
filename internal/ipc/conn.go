package ipc

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net"
	"sync"
	"sync/atomic"
	"time"
)

// PushHandler receives push messages in arrival order
type PushHandler func(msg *PushMessage)

// CloseHandler is called once when a connection stops.
// err is nil when the connection was closed locally.
type CloseHandler func(err error)

// Conn is the client side of a service connection.
// Calls may be issued from any goroutine, including from inside the push handler.
type Conn struct {
	conn    net.Conn
	onPush  PushHandler
	onClose CloseHandler

	writeMu sync.Mutex
	nextID  atomic.Uint64

	mu         sync.Mutex
	token      string
	pending    map[uint64]chan *Response
	closed     bool
	localClose bool
	cause      error

	pushes *pushQueue
	done   chan struct{}
}

// NewConn wraps an established transport connection and starts reading from it
func NewConn(nc net.Conn, onPush PushHandler, onClose CloseHandler) *Conn {
	c := &Conn{
		conn:    nc,
		onPush:  onPush,
		onClose: onClose,
		pending: make(map[uint64]chan *Response),
		pushes:  newPushQueue(),
		done:    make(chan struct{}),
	}
	go c.readLoop()
	go c.dispatchLoop()
	return c
}

// SetToken sets the token sent with every subsequent request
func (c *Conn) SetToken(token string) {
	c.mu.Lock()
	c.token = token
	c.mu.Unlock()
}

// Token returns the current request token
func (c *Conn) Token() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.token
}

// Done is closed once the connection has stopped and the close handler has returned
func (c *Conn) Done() <-chan struct{} {
	return c.done
}

// Call sends a command and waits for its response.
// A non-nil result is filled from the response data.
func (c *Conn) Call(ctx context.Context, cmd CommandType, data interface{}, result interface{}) error {
	id := c.nextID.Add(1)
	req, err := NewRequest(id, cmd, c.Token(), data)
	if err != nil {
		return err
	}
	frame, err := EncodeRequest(req)
	if err != nil {
		return fmt.Errorf("failed to encode %s request: %w", cmd, err)
	}
	frame = append(frame, '\n')

	ch := make(chan *Response, 1)
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	c.pending[id] = ch
	c.mu.Unlock()
	defer c.forget(id)

	if err := c.write(ctx, frame); err != nil {
		return fmt.Errorf("failed to send %s: %w", cmd, err)
	}

	var resp *Response
	select {
	case r, ok := <-ch:
		if !ok {
			return ErrClosed
		}
		resp = r
	case <-ctx.Done():
		return ctx.Err()
	}

	if !resp.Success {
		return &RemoteError{Cmd: cmd, Message: resp.Error}
	}
	if result != nil && len(resp.Data) > 0 {
		if err := json.Unmarshal(resp.Data, result); err != nil {
			return fmt.Errorf("failed to decode %s response: %w", cmd, err)
		}
	}
	return nil
}

// Close closes the connection. It is safe to call more than once.
func (c *Conn) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.localClose = true
	c.mu.Unlock()

	c.shutdown(nil)
	return nil
}

func (c *Conn) forget(id uint64) {
	c.mu.Lock()
	delete(c.pending, id)
	c.mu.Unlock()
}

func (c *Conn) write(ctx context.Context, frame []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if deadline, ok := ctx.Deadline(); ok {
		c.conn.SetWriteDeadline(deadline)
		defer c.conn.SetWriteDeadline(time.Time{})
	}
	_, err := c.conn.Write(frame)
	return err
}

func (c *Conn) readLoop() {
	reader := bufio.NewReader(c.conn)
	for {
		line, err := reader.ReadBytes('\n')
		if err != nil {
			if err == io.EOF {
				err = ErrClosed
			}
			c.shutdown(err)
			return
		}

		resp, push, err := DecodeServerMessage(line)
		if err != nil {
			log.Printf("[IPC] Dropping invalid frame: %v", err)
			continue
		}
		if push != nil {
			c.pushes.put(push)
			continue
		}

		c.mu.Lock()
		ch, ok := c.pending[resp.ID]
		delete(c.pending, resp.ID)
		c.mu.Unlock()
		if ok {
			ch <- resp
		}
	}
}

func (c *Conn) dispatchLoop() {
	for {
		msg, ok := c.pushes.get()
		if !ok {
			break
		}
		if c.onPush != nil {
			c.onPush(msg)
		}
	}

	c.mu.Lock()
	cause := c.cause
	c.mu.Unlock()
	if c.onClose != nil {
		c.onClose(cause)
	}
	close(c.done)
}

func (c *Conn) shutdown(err error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	if c.localClose {
		err = nil
	}
	c.cause = err
	pending := c.pending
	c.pending = make(map[uint64]chan *Response)
	c.mu.Unlock()

	for _, ch := range pending {
		close(ch)
	}
	c.conn.Close()
	c.pushes.close()
}

// pushQueue is an unbounded FIFO so the read loop never blocks on slow observers
type pushQueue struct {
	mu     sync.Mutex
	items  []*PushMessage
	closed bool
	ready  chan struct{}
}

func newPushQueue() *pushQueue {
	return &pushQueue{ready: make(chan struct{}, 1)}
}

func (q *pushQueue) put(msg *PushMessage) {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.items = append(q.items, msg)
	q.mu.Unlock()
	q.signal()
}

func (q *pushQueue) close() {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()
	q.signal()
}

// get blocks until a message is queued. It returns false once the queue is closed and drained.
func (q *pushQueue) get() (*PushMessage, bool) {
	for {
		q.mu.Lock()
		if len(q.items) > 0 {
			msg := q.items[0]
			q.items[0] = nil
			q.items = q.items[1:]
			q.mu.Unlock()
			return msg, true
		}
		if q.closed {
			q.mu.Unlock()
			return nil, false
		}
		q.mu.Unlock()
		<-q.ready
	}
}

func (q *pushQueue) signal() {
	select {
	case q.ready <- struct{}{}:
	default:
	}
}
