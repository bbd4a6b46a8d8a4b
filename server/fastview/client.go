package fastview

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	channerics "github.com/niceyeti/channerics/channels"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 1 * time.Second
	// Maximum message size allowed from peer.
	maxMessageSize = 8192

	// The default rate at which ele-updates are sent to the client, so as not to overburden.
	defaultPubResolution = time.Millisecond * 100
	pingResolution       = time.Millisecond * 200
	// The number of pings to tolerate losing before concluding the peer is gone.
	pongWait = pingResolution * 4
)

var upgrader = websocket.Upgrader{}

// MessageHandler receives each message the browser sends.
type MessageHandler func(ctx context.Context, msg []byte) error

// Client pushes ele-updates to one browser over a websocket and passes the browser's
// messages to a handler. Updates arriving faster than the publish rate are merged by
// element id, so the browser always ends up with the latest value of every element.
type Client struct {
	updates       <-chan []EleUpdate
	onMessage     MessageHandler
	ws            *websock
	rootCtx       context.Context
	pubResolution time.Duration
	logger        *zap.Logger
}

type ClientOption func(*Client)

func WithMessageHandler(handler MessageHandler) ClientOption {
	return func(cli *Client) { cli.onMessage = handler }
}

func WithPublishInterval(interval time.Duration) ClientOption {
	return func(cli *Client) {
		if interval > 0 {
			cli.pubResolution = interval
		}
	}
}

func WithClientLogger(logger *zap.Logger) ClientOption {
	return func(cli *Client) { cli.logger = logger }
}

// NewClient upgrades the request to a websocket and returns a client publishing the
// passed updates to it.
func NewClient(
	updates <-chan []EleUpdate,
	w http.ResponseWriter,
	r *http.Request,
	opts ...ClientOption,
) (*Client, error) {
	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// The upgrader has already replied to the client.
		return nil, err
	}
	ws.SetReadLimit(maxMessageSize)

	cli := &Client{
		updates:       updates,
		ws:            NewWebSocket(ws),
		rootCtx:       r.Context(),
		pubResolution: defaultPubResolution,
		logger:        zap.NewNop(),
	}
	for _, opt := range opts {
		opt(cli)
	}
	return cli, nil
}

// Sync runs the reader, the ping-pong liveness check and the publisher until the client
// disconnects or one of them fails, then closes the websocket.
// Sync returns nil upon client disconnect or an error if an unexpected error occurred.
func (cli *Client) Sync() error {
	defer cli.ws.Close()
	ctx, cancel := context.WithCancel(cli.rootCtx)
	defer cancel()
	group, groupCtx := errgroup.WithContext(ctx)

	// A blocked read only returns on error, so expire it once the group is done.
	stop := context.AfterFunc(groupCtx, func() {
		_ = cli.ws.Conn().SetReadDeadline(time.Now())
	})
	defer stop()

	// Any of them returning, even cleanly, ends the session.
	group.Go(func() error {
		defer cancel()
		return cli.readMessages(groupCtx)
	})
	group.Go(func() error {
		defer cancel()
		return cli.pingPong(groupCtx)
	})
	group.Go(func() error {
		defer cancel()
		return cli.publish(groupCtx)
	})

	return group.Wait()
}

var ErrPongDeadlineExceeded error = errors.New("client disconnect, pong deadline exceeded")

// Runs the ping-pong for the client liveness check.
// NOTE: This function requires that readMessages is running to ensure the pong handler is called.
func (cli *Client) pingPong(ctx context.Context) error {
	pong := make(chan struct{})
	cli.ws.Conn().SetPongHandler(func(_ string) error {
		select {
		case pong <- struct{}{}:
		case <-ctx.Done():
		}
		return nil
	})

	pinger := channerics.NewTicker(ctx.Done(), pingResolution)
	lastPong := time.Now()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-pinger:
			if time.Since(lastPong) > pongWait {
				return ErrPongDeadlineExceeded
			}

			if err := cli.ping(ctx); err != nil {
				if ctx.Err() != nil || errors.Is(err, websocket.ErrCloseSent) {
					return nil
				}
				return err
			}
		case <-pong:
			lastPong = time.Now()
		}
	}
}

func (cli *Client) ping(ctx context.Context) error {
	return cli.ws.Write(
		ctx,
		func(ws *websocket.Conn) (err error) {
			if err = ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				if isError(err) {
					err = fmt.Errorf("ping failed: %T %v", err, err)
				}
			}
			return
		})
}

// readMessages passes client messages to the handler.
// Errors returned by websocket Read methods are permanent, hence any error
// must trigger full teardown. Handler errors are only logged.
func (cli *Client) readMessages(ctx context.Context) error {
	for {
		var msg []byte
		err := cli.ws.Read(
			ctx,
			func(ws *websocket.Conn) (readErr error) {
				_, msg, readErr = ws.ReadMessage()
				return
			})
		if err != nil {
			if ctx.Err() != nil || isClosure(err) {
				return nil
			}
			return err
		}
		if ctx.Err() != nil {
			return nil
		}

		if cli.onMessage == nil || msg == nil {
			continue
		}
		if err = cli.onMessage(ctx, msg); err != nil {
			cli.logger.Debug("client message rejected", zap.Error(err))
		}
	}
}

// publish writes pending updates at most once per publish interval. Updates received in
// between are merged and flushed on the next tick.
func (cli *Client) publish(ctx context.Context) error {
	pending := newBatch()
	ticker := channerics.NewTicker(ctx.Done(), cli.pubResolution)
	var lastSync time.Time

	for {
		select {
		case <-ctx.Done():
			return nil
		case updates, ok := <-cli.updates:
			// Graceful input channel closure
			if !ok {
				return nil
			}
			pending.Add(updates)
		case _, ok := <-ticker:
			if !ok {
				return nil
			}
		}

		if pending.Len() == 0 || time.Since(lastSync) < cli.pubResolution {
			continue
		}

		lastSync = time.Now()
		updates := pending.Flush()
		err := cli.ws.Write(
			ctx,
			func(ws *websocket.Conn) (writeErr error) {
				if writeErr = ws.SetWriteDeadline(time.Now().Add(writeWait)); writeErr != nil {
					writeErr = fmt.Errorf("failed to set deadline: %T %w", writeErr, writeErr)
					return
				}

				if writeErr = ws.WriteJSON(updates); writeErr != nil {
					if isError(writeErr) {
						writeErr = fmt.Errorf("publish failed: %T %v", writeErr, writeErr)
					}
				}
				return
			})
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, websocket.ErrCloseSent) {
				return nil
			}
			return err
		}
	}
}

func isError(err error) bool {
	return err != nil && websocket.IsUnexpectedCloseError(
		err,
		websocket.CloseNormalClosure,
		websocket.CloseGoingAway)
}

func isClosure(err error) bool {
	return err != nil && websocket.IsCloseError(
		err,
		websocket.CloseNormalClosure,
		websocket.CloseGoingAway)
}

// ErrSockCongestion indicates there are too many waiters on the socket for a given op.
var ErrSockCongestion = errors.New("sock op failed due to congestion")

const (
	writeDeadline    = time.Second
	closeGracePeriod = 100 * time.Millisecond
)

// websock merely serializes reads and writes to the websocket, whose requirements
// are that there may be only one concurrent read and writer at a time.
type websock struct {
	// These are merely mutexes, but channel semantics are cleaner.
	readSem  chan struct{}
	writeSem chan struct{}
	ws       *websocket.Conn
}

func NewWebSocket(ws *websocket.Conn) *websock {
	return &websock{
		readSem:  make(chan struct{}, 1),
		writeSem: make(chan struct{}, 1),
		ws:       ws,
	}
}

// Returns the underlying websocket.
// This should only be used for setup, e.g. adding handlers, or for deadlines.
func (sock *websock) Conn() *websocket.Conn {
	return sock.ws
}

// Closes the websocket. This should only be called once no further read/writers exist.
func (sock *websock) Close() {
	sock.readSem <- struct{}{}
	sock.writeSem <- struct{}{}

	_ = sock.ws.SetWriteDeadline(time.Now().Add(writeWait))
	_ = sock.ws.WriteMessage(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	time.Sleep(closeGracePeriod)
	sock.ws.Close()
}

// Read serializes read operations on the internal web socket. Only one reader exists,
// so the read itself may block for as long as the peer is quiet.
func (sock *websock) Read(
	ctx context.Context,
	readFn func(*websocket.Conn) error,
) error {
	select {
	case <-ctx.Done():
		return nil
	case sock.readSem <- struct{}{}:
		defer func() { <-sock.readSem }()
		return readFn(sock.ws)
	}
}

// Write serializes write operations to the websocket.
func (sock *websock) Write(
	ctx context.Context,
	writeFn func(*websocket.Conn) error,
) error {
	select {
	case <-ctx.Done():
		return nil
	case sock.writeSem <- struct{}{}:
		defer func() { <-sock.writeSem }()
		return writeFn(sock.ws)
	case <-time.After(writeDeadline):
		return ErrSockCongestion
	}
}
