package ros

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.viam.com/utils"

	"go.viam.com/navbench/logging"
)

// maxMessageBytes bounds a single incoming rosbridge frame. Solver state arrays carrying many
// corridor polygons are far larger than the websocket default.
const maxMessageBytes = 64 << 20

// ErrBridgeClosed is returned for operations on a closed Bridge.
var ErrBridgeClosed = errors.New("rosbridge connection closed")

// Publisher publishes messages on a ROS topic.
type Publisher interface {
	Publish(ctx context.Context, topic string, msg interface{}) error
}

// bridgeMessage is the envelope of the rosbridge v2 protocol. Only the fields used by navbench
// are represented.
type bridgeMessage struct {
	Op          string          `json:"op"`
	ID          string          `json:"id,omitempty"`
	Topic       string          `json:"topic,omitempty"`
	Type        string          `json:"type,omitempty"`
	Service     string          `json:"service,omitempty"`
	Msg         json.RawMessage `json:"msg,omitempty"`
	Args        json.RawMessage `json:"args,omitempty"`
	Values      json.RawMessage `json:"values,omitempty"`
	Result      *bool           `json:"result,omitempty"`
	Latch       bool            `json:"latch,omitempty"`
	QueueSize   int             `json:"queue_size,omitempty"`
	QueueLength int             `json:"queue_length,omitempty"`
}

// Bridge is a client of a rosbridge websocket server. It supports advertising, publishing,
// subscribing and calling services. Subscription handlers run on the single read goroutine and
// must not block.
type Bridge struct {
	conn   *websocket.Conn
	logger logging.Logger

	writeMu sync.Mutex

	mu       sync.Mutex
	handlers map[string][]func(json.RawMessage)
	pending  map[string]chan *bridgeMessage
	readErr  error

	cancelCtx               context.Context
	cancel                  func()
	done                    chan struct{}
	activeBackgroundWorkers sync.WaitGroup
}

// DialBridge connects to the rosbridge server at url, e.g. "ws://localhost:9090".
func DialBridge(ctx context.Context, url string, logger logging.Logger) (*Bridge, error) {
	//nolint:bodyclose
	conn, _, err := websocket.Dial(ctx, url, nil)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to dial rosbridge at %s", url)
	}
	conn.SetReadLimit(maxMessageBytes)

	cancelCtx, cancel := context.WithCancel(context.Background())
	b := &Bridge{
		conn:      conn,
		logger:    logger,
		handlers:  map[string][]func(json.RawMessage){},
		pending:   map[string]chan *bridgeMessage{},
		cancelCtx: cancelCtx,
		cancel:    cancel,
		done:      make(chan struct{}),
	}
	b.activeBackgroundWorkers.Add(1)
	utils.PanicCapturingGo(func() {
		defer b.activeBackgroundWorkers.Done()
		b.readLoop()
	})
	return b, nil
}

func (b *Bridge) readLoop() {
	defer close(b.done)
	for {
		var msg bridgeMessage
		if err := wsjson.Read(b.cancelCtx, b.conn, &msg); err != nil {
			b.mu.Lock()
			b.readErr = err
			b.mu.Unlock()
			if b.cancelCtx.Err() == nil && websocket.CloseStatus(err) != websocket.StatusNormalClosure {
				b.logger.Warnw("rosbridge read loop stopped", "error", err)
			}
			return
		}
		b.dispatch(&msg)
	}
}

func (b *Bridge) dispatch(msg *bridgeMessage) {
	switch msg.Op {
	case "publish":
		b.mu.Lock()
		handlers := b.handlers[msg.Topic]
		b.mu.Unlock()
		for _, handler := range handlers {
			handler(msg.Msg)
		}
	case "service_response":
		b.mu.Lock()
		ch, ok := b.pending[msg.ID]
		delete(b.pending, msg.ID)
		b.mu.Unlock()
		if ok {
			ch <- msg
		}
	case "status":
		b.logger.Debugw("rosbridge status", "msg", string(msg.Msg))
	default:
		b.logger.Debugw("ignoring rosbridge message", "op", msg.Op)
	}
}

func (b *Bridge) send(ctx context.Context, msg *bridgeMessage) error {
	select {
	case <-b.done:
		return ErrBridgeClosed
	default:
	}
	b.writeMu.Lock()
	defer b.writeMu.Unlock()
	return wsjson.Write(ctx, b.conn, msg)
}

// Advertise announces that this client publishes msgType on topic. Latched topics deliver their
// last message to late subscribers.
func (b *Bridge) Advertise(ctx context.Context, topic, msgType string, latch bool) error {
	return b.send(ctx, &bridgeMessage{
		Op:        "advertise",
		Topic:     topic,
		Type:      msgType,
		Latch:     latch,
		QueueSize: 1,
	})
}

// Publish sends msg on topic. The topic should have been advertised.
func (b *Bridge) Publish(ctx context.Context, topic string, msg interface{}) error {
	md, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	return b.send(ctx, &bridgeMessage{Op: "publish", Topic: topic, Msg: md})
}

// Subscribe registers handler for every message received on topic.
func (b *Bridge) Subscribe(ctx context.Context, topic, msgType string, handler func(json.RawMessage)) error {
	b.mu.Lock()
	b.handlers[topic] = append(b.handlers[topic], handler)
	b.mu.Unlock()
	return b.send(ctx, &bridgeMessage{
		Op:          "subscribe",
		ID:          "subscribe:" + topic + ":" + uuid.NewString(),
		Topic:       topic,
		Type:        msgType,
		QueueLength: 1,
	})
}

// SubscribeTyped is like Subscribe but decodes each message into T first. Messages that fail to
// decode are logged and dropped.
func SubscribeTyped[T any](ctx context.Context, b *Bridge, topic, msgType string, handler func(T)) error {
	return b.Subscribe(ctx, topic, msgType, func(raw json.RawMessage) {
		var msg T
		if err := json.Unmarshal(raw, &msg); err != nil {
			b.logger.Warnw("failed to decode message", "topic", topic, "error", err)
			return
		}
		handler(msg)
	})
}

// CallService calls service with args and decodes the response values into result, which may be
// nil.
func (b *Bridge) CallService(ctx context.Context, service string, args, result interface{}) error {
	md, err := json.Marshal(args)
	if err != nil {
		return err
	}
	id := "call_service:" + service + ":" + uuid.NewString()
	respCh := make(chan *bridgeMessage, 1)

	b.mu.Lock()
	b.pending[id] = respCh
	b.mu.Unlock()
	defer func() {
		b.mu.Lock()
		delete(b.pending, id)
		b.mu.Unlock()
	}()

	if err := b.send(ctx, &bridgeMessage{Op: "call_service", ID: id, Service: service, Args: md}); err != nil {
		return errors.Wrapf(err, "failed to call %s", service)
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-b.done:
		return errors.Wrapf(ErrBridgeClosed, "waiting for %s", service)
	case resp := <-respCh:
		if resp.Result != nil && !*resp.Result {
			return errors.Errorf("service %s failed: %s", service, string(resp.Values))
		}
		if result == nil || len(resp.Values) == 0 {
			return nil
		}
		return errors.Wrapf(json.Unmarshal(resp.Values, result), "failed to decode %s response", service)
	}
}

// Err returns the error that stopped the read loop, if any.
func (b *Bridge) Err() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.readErr
}

// Done is closed once the connection stops receiving messages.
func (b *Bridge) Done() <-chan struct{} {
	return b.done
}

// Close closes the connection and waits for the read loop to exit.
func (b *Bridge) Close() error {
	err := b.conn.Close(websocket.StatusNormalClosure, "")
	b.cancel()
	b.activeBackgroundWorkers.Wait()
	if err != nil && websocket.CloseStatus(err) != websocket.StatusNormalClosure {
		b.logger.Debugw("rosbridge close handshake did not complete", "error", err)
	}
	return nil
}
