package ipc

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"localwhisper/backend"
	"localwhisper/config"
	"localwhisper/events"
	"localwhisper/history"
	"localwhisper/listener"
	"localwhisper/models"
)

const releaseTimeout = 2 * time.Second

// Client is backend.Commands over a daemon connection. Push events from the
// daemon are re-emitted on the local bus in the order they arrive.
type Client struct {
	conn *websocket.Conn
	bus  *events.Bus

	writeMu sync.Mutex

	mu      sync.Mutex
	nextID  uint64
	pending map[uint64]chan Message
	err     error

	done chan struct{}
}

var _ backend.Commands = (*Client)(nil)

// Dial connects to a daemon at url (ws://host:port/ws).
func Dial(ctx context.Context, url string, bus *events.Bus) (*Client, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("ipc: dial %s: %w", url, err)
	}
	conn.SetReadLimit(maxReadMessageSize)
	c := &Client{
		conn:    conn,
		bus:     bus,
		pending: make(map[uint64]chan Message),
		done:    make(chan struct{}),
	}
	go c.readLoop()
	return c, nil
}

// Done is closed once the connection is gone.
func (c *Client) Done() <-chan struct{} { return c.done }

// Err reports why the connection ended.
func (c *Client) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

func (c *Client) Close() error {
	c.writeMu.Lock()
	c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(writeDeadline))
	c.writeMu.Unlock()
	err := c.conn.Close()
	<-c.done
	return err
}

func (c *Client) readLoop() {
	var err error
	defer func() {
		c.mu.Lock()
		c.err = err
		pending := c.pending
		c.pending = nil
		c.mu.Unlock()
		for _, ch := range pending {
			close(ch)
		}
		close(c.done)
	}()
	for {
		var m Message
		if err = c.conn.ReadJSON(&m); err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				err = ErrClosed
			}
			return
		}
		switch m.Type {
		case TypeEvent:
			c.bus.EmitRaw(m.Event, m.Payload)
		case TypeResult:
			c.mu.Lock()
			ch := c.pending[m.ID]
			delete(c.pending, m.ID)
			c.mu.Unlock()
			if ch != nil {
				ch <- m
			}
		}
	}
}

// call sends method and waits for its result. A cancelled ctx abandons the
// wait; the daemon still finishes the call.
func (c *Client) call(ctx context.Context, method string, params, result any) error {
	m := Message{Type: TypeCall, Method: method}
	if params != nil {
		raw, err := json.Marshal(params)
		if err != nil {
			return fmt.Errorf("ipc: encode %s: %w", method, err)
		}
		m.Params = raw
	}

	ch := make(chan Message, 1)
	c.mu.Lock()
	if c.pending == nil {
		c.mu.Unlock()
		return ErrClosed
	}
	c.nextID++
	m.ID = c.nextID
	c.pending[m.ID] = ch
	c.mu.Unlock()

	c.writeMu.Lock()
	c.conn.SetWriteDeadline(time.Now().Add(writeDeadline))
	err := c.conn.WriteJSON(m)
	c.writeMu.Unlock()
	if err != nil {
		c.forget(m.ID)
		return fmt.Errorf("ipc: send %s: %w", method, err)
	}

	select {
	case res, ok := <-ch:
		if !ok {
			return ErrClosed
		}
		if res.Error != nil {
			return fromWire(res.Error)
		}
		if result != nil && len(res.Result) > 0 {
			if err := json.Unmarshal(res.Result, result); err != nil {
				return fmt.Errorf("ipc: decode %s: %w", method, err)
			}
		}
		return nil
	case <-ctx.Done():
		c.forget(m.ID)
		return ctx.Err()
	}
}

func (c *Client) forget(id uint64) {
	c.mu.Lock()
	if c.pending != nil {
		delete(c.pending, id)
	}
	c.mu.Unlock()
}

func (c *Client) GetConfig(ctx context.Context) (config.AppConfig, error) {
	var cfg config.AppConfig
	err := c.call(ctx, MethodGetConfig, nil, &cfg)
	return cfg, err
}

func (c *Client) SaveConfig(ctx context.Context, cfg config.AppConfig) error {
	return c.call(ctx, MethodSaveConfig, cfg, nil)
}

func (c *Client) IsFirstRun(ctx context.Context) (bool, error) {
	var first bool
	err := c.call(ctx, MethodIsFirstRun, nil, &first)
	return first, err
}

func (c *Client) MarkSetupComplete(ctx context.Context) error {
	return c.call(ctx, MethodMarkSetupComplete, nil, nil)
}

func (c *Client) SetAutoPaste(ctx context.Context, enabled bool) error {
	return c.call(ctx, MethodSetAutoPaste, enabled, nil)
}

func (c *Client) SetLanguage(ctx context.Context, language string) error {
	return c.call(ctx, MethodSetLanguage, language, nil)
}

func (c *Client) SetUILocale(ctx context.Context, locale string) error {
	return c.call(ctx, MethodSetUILocale, locale, nil)
}

func (c *Client) UpdateHotkey(ctx context.Context, shortcut string) error {
	return c.call(ctx, MethodUpdateHotkey, shortcut, nil)
}

func (c *Client) UpdateHotkeyPTT(ctx context.Context, shortcut string) error {
	return c.call(ctx, MethodUpdateHotkeyPTT, shortcut, nil)
}

func (c *Client) SuspendHotkey(ctx context.Context) error {
	return c.call(ctx, MethodSuspendHotkey, nil, nil)
}

func (c *Client) ResumeHotkey(ctx context.Context) error {
	return c.call(ctx, MethodResumeHotkey, nil, nil)
}

// AcquireListener takes a lease on the daemon. The daemon also drops it if
// this connection goes away.
func (c *Client) AcquireListener(ctx context.Context, owner string) (listener.Release, error) {
	var token string
	if err := c.call(ctx, MethodAcquireListener, owner, &token); err != nil {
		return nil, err
	}
	var once sync.Once
	return func() {
		once.Do(func() {
			ctx, cancel := context.WithTimeout(context.Background(), releaseTimeout)
			defer cancel()
			c.call(ctx, MethodReleaseListener, token, nil)
		})
	}, nil
}

func (c *Client) ListAudioDevices(ctx context.Context) ([]backend.AudioDevice, error) {
	var out []backend.AudioDevice
	err := c.call(ctx, MethodListAudioDevices, nil, &out)
	return out, err
}

func (c *Client) SetAudioDevice(ctx context.Context, name *string) error {
	return c.call(ctx, MethodSetAudioDevice, name, nil)
}

func (c *Client) TestMicrophone(ctx context.Context) error {
	return c.call(ctx, MethodTestMicrophone, nil, nil)
}

func (c *Client) ListModels(ctx context.Context) ([]models.Info, error) {
	var out []models.Info
	err := c.call(ctx, MethodListModels, nil, &out)
	return out, err
}

func (c *Client) DownloadModel(ctx context.Context, id string) error {
	return c.call(ctx, MethodDownloadModel, id, nil)
}

func (c *Client) DeleteModel(ctx context.Context, id string) error {
	return c.call(ctx, MethodDeleteModel, id, nil)
}

func (c *Client) LoadModel(ctx context.Context, id string) error {
	return c.call(ctx, MethodLoadModel, id, nil)
}

func (c *Client) GetRecordingState(ctx context.Context) (bool, error) {
	var rec bool
	err := c.call(ctx, MethodGetRecordingState, nil, &rec)
	return rec, err
}

func (c *Client) GetSystemInfo(ctx context.Context) (backend.SystemInfo, error) {
	var info backend.SystemInfo
	err := c.call(ctx, MethodGetSystemInfo, nil, &info)
	return info, err
}

func (c *Client) CheckPermissions(ctx context.Context) (backend.PermissionStatus, error) {
	var st backend.PermissionStatus
	err := c.call(ctx, MethodCheckPermissions, nil, &st)
	return st, err
}

func (c *Client) RecentTranscriptions(ctx context.Context, n int) ([]history.Entry, error) {
	var out []history.Entry
	err := c.call(ctx, MethodRecentTranscriptions, n, &out)
	return out, err
}
