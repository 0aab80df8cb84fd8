package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Tyrowin/relaychat/internal/chat"
)

const writeTimeout = 10 * time.Second

// Transport moves envelopes between the client and the server. ReadEnvelope
// is only ever called from the response observer goroutine.
type Transport interface {
	ReadEnvelope() (chat.Envelope, error)
	WriteEnvelope(chat.Envelope) error
	Close() error
}

// wsTransport carries envelopes over a gorilla WebSocket. The server may pack
// several newline separated envelopes into one frame.
type wsTransport struct {
	conn    *websocket.Conn
	writeMu sync.Mutex
	pending []chat.Envelope
}

// DialWebSocket connects to a relay server at url (ws:// or wss://). The
// origin is sent as the Origin header, which the server checks against its
// allow-list.
func DialWebSocket(ctx context.Context, url, origin string) (Transport, error) {
	dialer := websocket.Dialer{
		HandshakeTimeout: 5 * time.Second,
	}

	headers := http.Header{}
	if origin != "" {
		headers.Set("Origin", origin)
	}

	conn, resp, err := dialer.DialContext(ctx, url, headers)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", url, err)
	}
	return &wsTransport{conn: conn}, nil
}

func (t *wsTransport) ReadEnvelope() (chat.Envelope, error) {
	for len(t.pending) == 0 {
		messageType, data, err := t.conn.ReadMessage()
		if err != nil {
			return chat.Envelope{}, err
		}
		if messageType != websocket.TextMessage {
			continue
		}
		batch, err := decodeBatch(data)
		if err != nil {
			return chat.Envelope{}, err
		}
		t.pending = batch
	}

	env := t.pending[0]
	t.pending = t.pending[1:]
	return env, nil
}

func (t *wsTransport) WriteEnvelope(env chat.Envelope) error {
	t.writeMu.Lock()
	defer t.writeMu.Unlock()

	if err := t.conn.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
		return err
	}
	return t.conn.WriteJSON(env)
}

func (t *wsTransport) Close() error {
	t.writeMu.Lock()
	_ = t.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	t.writeMu.Unlock()
	return t.conn.Close()
}

// decodeBatch decodes every envelope in one frame.
func decodeBatch(data []byte) ([]chat.Envelope, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	var batch []chat.Envelope
	for {
		var env chat.Envelope
		err := dec.Decode(&env)
		if errors.Is(err, io.EOF) {
			return batch, nil
		}
		if err != nil {
			return nil, fmt.Errorf("decode envelope: %w", err)
		}
		batch = append(batch, env)
	}
}
