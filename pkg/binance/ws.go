package binance

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

// MessageHandler is invoked for every raw frame the combined stream
// delivers. Handlers run on the connection's read goroutine; a handler
// that blocks delays delivery of the next frame.
type MessageHandler func(message []byte)

// ErrorHandler is invoked once when the read loop gives up, either because
// the server closed the connection or a read failed. WSConnection does not
// reconnect on its own — a supervisor that owns the stream is expected to
// call Connect again.
type ErrorHandler func(err error)

// WSConnection is a single combined-stream WebSocket connection. The
// combined stream multiplexes any number of individual streams onto one
// socket by encoding them into the connection URL, so there is no
// post-connect subscribe/unsubscribe handshake to manage.
type WSConnection struct {
	config *Config
	logger zerolog.Logger
	url    string

	mu          sync.RWMutex
	conn        *websocket.Conn
	isConnected bool
	shouldStop  bool

	messageHandler MessageHandler
	errorHandler   ErrorHandler

	writeChan chan []byte
	closeChan chan struct{}
}

// BuildCombinedStreamURL joins baseURL (a WS base such as Config.GetWSBaseURL())
// with the /stream endpoint and the given lowercase stream names.
func BuildCombinedStreamURL(baseURL string, streams []string) (string, error) {
	if len(streams) == 0 {
		return "", errors.New("no streams given")
	}
	u, err := url.Parse(baseURL)
	if err != nil {
		return "", fmt.Errorf("parse base url: %w", err)
	}
	u.Path = "/stream"
	q := u.Query()
	q.Set("streams", strings.Join(streams, "/"))
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// NewWSConnection creates a connection that will dial streamURL, a fully
// built combined-stream URL from BuildCombinedStreamURL.
func NewWSConnection(config *Config, streamURL string, logger zerolog.Logger) *WSConnection {
	if config == nil {
		config = DefaultConfig()
	}
	return &WSConnection{
		config:    config,
		logger:    logger.With().Str("component", "binance-ws").Logger(),
		url:       streamURL,
		writeChan: make(chan []byte, 256),
		closeChan: make(chan struct{}),
	}
}

// SetMessageHandler sets the handler invoked for each incoming frame. Must
// be called before Connect.
func (ws *WSConnection) SetMessageHandler(handler MessageHandler) {
	ws.messageHandler = handler
}

// SetErrorHandler sets the handler invoked when the read loop terminates.
// Must be called before Connect.
func (ws *WSConnection) SetErrorHandler(handler ErrorHandler) {
	ws.errorHandler = handler
}

// Connect dials the combined stream and starts the read/write loops. It
// does not block waiting for the connection to close.
func (ws *WSConnection) Connect(ctx context.Context) error {
	ws.mu.Lock()
	defer ws.mu.Unlock()

	if ws.isConnected {
		return nil
	}

	ws.logger.Debug().Str("url", ws.url).Msg("connecting to combined stream")

	dialer := websocket.DefaultDialer
	dialer.HandshakeTimeout = ws.config.Timeout

	conn, _, err := dialer.DialContext(ctx, ws.url, nil)
	if err != nil {
		return fmt.Errorf("dial combined stream: %w", err)
	}

	ws.conn = conn
	ws.isConnected = true
	ws.shouldStop = false
	ws.closeChan = make(chan struct{})

	ws.logger.Info().Msg("combined stream connected")

	go ws.readLoop()
	go ws.writeLoop()

	return nil
}

// Disconnect closes the connection. It does not trigger the error handler.
func (ws *WSConnection) Disconnect() error {
	ws.mu.Lock()
	defer ws.mu.Unlock()

	if !ws.isConnected {
		return nil
	}

	ws.shouldStop = true
	var err error
	if ws.conn != nil {
		err = ws.conn.Close()
		ws.conn = nil
	}
	ws.isConnected = false
	close(ws.closeChan)

	ws.logger.Info().Msg("combined stream disconnected")
	return err
}

// IsConnected reports whether the socket is currently open.
func (ws *WSConnection) IsConnected() bool {
	ws.mu.RLock()
	defer ws.mu.RUnlock()
	return ws.isConnected
}

func (ws *WSConnection) readLoop() {
	for {
		ws.mu.RLock()
		conn := ws.conn
		stop := ws.shouldStop
		ws.mu.RUnlock()

		if stop || conn == nil {
			return
		}

		conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		_, message, err := conn.ReadMessage()
		if err != nil {
			ws.onReadError(err)
			return
		}

		if ws.messageHandler != nil {
			ws.messageHandler(message)
		}
	}
}

func (ws *WSConnection) writeLoop() {
	ticker := time.NewTicker(54 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ws.closeChan:
			return

		case message := <-ws.writeChan:
			ws.mu.RLock()
			conn := ws.conn
			ws.mu.RUnlock()
			if conn == nil {
				continue
			}
			conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := conn.WriteMessage(websocket.TextMessage, message); err != nil {
				ws.logger.Warn().Err(err).Msg("write failed")
			}

		case <-ticker.C:
			ws.mu.RLock()
			conn := ws.conn
			ws.mu.RUnlock()
			if conn == nil {
				continue
			}
			conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				ws.logger.Warn().Err(err).Msg("ping failed")
			}
		}
	}
}

func (ws *WSConnection) onReadError(err error) {
	ws.mu.Lock()
	alreadyStopped := ws.shouldStop
	ws.isConnected = false
	if ws.conn != nil {
		ws.conn.Close()
		ws.conn = nil
	}
	ws.shouldStop = true
	ws.mu.Unlock()

	if alreadyStopped {
		return
	}

	ws.logger.Warn().Err(err).Msg("combined stream read failed, connection closed")
	if ws.errorHandler != nil {
		ws.errorHandler(err)
	}
}
