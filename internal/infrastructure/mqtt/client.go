package mqtt

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/airsentinel/airsentinel-core/internal/infrastructure/config"
)

const (
	connectTimeout = 10 * time.Second
	opTimeout      = 5 * time.Second
	keepAlive      = 60 * time.Second

	// Quiesce period (ms) paho waits for in-flight work on disconnect.
	disconnectQuiesceMs = 1000
)

// Logger is the subset of logging.Logger the client reports through.
type Logger interface {
	Error(msg string, args ...any)
	Warn(msg string, args ...any)
}

// MessageHandler receives messages for a subscription. Paho invokes
// handlers on its own goroutines; a returned error is logged and does not
// affect acknowledgement.
type MessageHandler func(topic string, payload []byte) error

// Client connects AirSentinel Core to the broker. It tracks its own
// subscriptions so they survive a reconnect, publishes a retained status
// message on connect and on graceful shutdown, and registers a will so
// the broker announces a crash. All methods are safe for concurrent use.
type Client struct {
	paho pahomqtt.Client
	cfg  config.MQTTConfig

	mu           sync.RWMutex
	connected    bool
	subs         map[string]subscription
	onConnect    func()
	onDisconnect func(error)
	logger       Logger
}

type subscription struct {
	qos     byte
	handler MessageHandler
}

// statusMessage is the retained payload on the system status topic.
type statusMessage struct {
	Status    string `json:"status"`
	ClientID  string `json:"client_id"`
	Reason    string `json:"reason,omitempty"`
	Timestamp string `json:"timestamp"`
}

func statusPayload(status, clientID, reason string) []byte {
	b, _ := json.Marshal(statusMessage{ //nolint:errcheck // fixed shape
		Status:    status,
		ClientID:  clientID,
		Reason:    reason,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
	return b
}

// Connect dials the broker described by cfg and waits for the first
// connection. Reconnection afterwards is automatic with backoff between
// cfg.Reconnect.InitialDelay and cfg.Reconnect.MaxDelay; subscriptions
// made through Subscribe are restored each time the session comes back.
func Connect(cfg config.MQTTConfig) (*Client, error) {
	c := &Client{cfg: cfg, subs: make(map[string]subscription)}
	c.paho = pahomqtt.NewClient(c.clientOptions())

	token := c.paho.Connect()
	if !token.WaitTimeout(connectTimeout) {
		return nil, fmt.Errorf("%w: no broker response within %v", ErrConnectFailed, connectTimeout)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConnectFailed, err)
	}

	// Paho runs the on-connect callback asynchronously; mark connected
	// here so IsConnected is already true when Connect returns.
	c.mu.Lock()
	c.connected = true
	c.mu.Unlock()
	return c, nil
}

// clientOptions translates the config section into paho options, wires
// the connection state callbacks, and sets the offline will.
func (c *Client) clientOptions() *pahomqtt.ClientOptions {
	cfg := c.cfg
	scheme := "tcp"
	if cfg.Broker.TLS {
		scheme = "ssl"
	}

	opts := pahomqtt.NewClientOptions().
		AddBroker(fmt.Sprintf("%s://%s:%d", scheme, cfg.Broker.Host, cfg.Broker.Port)).
		SetClientID(cfg.Broker.ClientID).
		SetCleanSession(true).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(time.Duration(cfg.Reconnect.InitialDelay) * time.Second).
		SetMaxReconnectInterval(time.Duration(cfg.Reconnect.MaxDelay) * time.Second).
		SetConnectTimeout(connectTimeout).
		SetKeepAlive(keepAlive)

	if cfg.Auth.Username != "" {
		opts.SetUsername(cfg.Auth.Username)
		opts.SetPassword(cfg.Auth.Password)
	}
	if cfg.Broker.TLS {
		opts.SetTLSConfig(&tls.Config{MinVersion: tls.VersionTLS12})
	}

	// The will is retained so late subscribers still learn Core crashed.
	opts.SetWill(Topics{}.SystemStatus(),
		string(statusPayload("offline", cfg.Broker.ClientID, "unexpected_disconnect")), 1, true)

	opts.SetOnConnectHandler(func(pahomqtt.Client) { c.sessionUp() })
	opts.SetConnectionLostHandler(func(_ pahomqtt.Client, err error) { c.sessionDown(err) })
	return opts
}

// sessionUp runs on every (re)connect: restore subscriptions, announce
// online, then hand off to the registered callback.
func (c *Client) sessionUp() {
	c.mu.Lock()
	c.connected = true
	subs := make(map[string]subscription, len(c.subs))
	for topic, sub := range c.subs {
		subs[topic] = sub
	}
	cb := c.onConnect
	c.mu.Unlock()

	for topic, sub := range subs {
		// Errors here are transient; the next reconnect retries.
		c.paho.Subscribe(topic, sub.qos, c.dispatch(sub.handler))
	}
	c.paho.Publish(Topics{}.SystemStatus(), byte(c.cfg.QoS), true,
		statusPayload("online", c.cfg.Broker.ClientID, ""))

	if cb != nil {
		cb()
	}
}

func (c *Client) sessionDown(err error) {
	c.mu.Lock()
	c.connected = false
	cb := c.onDisconnect
	c.mu.Unlock()
	if cb != nil {
		cb(err)
	}
}

// Close announces a graceful shutdown on the status topic and disconnects.
func (c *Client) Close() error {
	if c.paho == nil {
		return nil
	}
	if c.IsConnected() {
		token := c.paho.Publish(Topics{}.SystemStatus(), byte(c.cfg.QoS), true,
			statusPayload("offline", c.cfg.Broker.ClientID, "graceful_shutdown"))
		token.WaitTimeout(opTimeout)
	}
	c.paho.Disconnect(disconnectQuiesceMs)

	c.mu.Lock()
	c.connected = false
	c.mu.Unlock()
	return nil
}

// IsConnected reports whether the session is currently up.
func (c *Client) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.connected && c.paho.IsConnected()
}

// HealthCheck returns ErrNotConnected while the session is down.
func (c *Client) HealthCheck(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("mqtt health check: %w", err)
	}
	if !c.IsConnected() {
		return ErrNotConnected
	}
	return nil
}

// SetOnConnect registers a callback run after every successful (re)connect,
// once subscriptions have been restored.
func (c *Client) SetOnConnect(cb func()) {
	c.mu.Lock()
	c.onConnect = cb
	c.mu.Unlock()
}

// SetOnDisconnect registers a callback run when the session drops.
func (c *Client) SetOnDisconnect(cb func(error)) {
	c.mu.Lock()
	c.onDisconnect = cb
	c.mu.Unlock()
}

// SetLogger routes handler errors and panics to logger. Without one they
// are dropped.
func (c *Client) SetLogger(logger Logger) {
	c.mu.Lock()
	c.logger = logger
	c.mu.Unlock()
}

func (c *Client) log() Logger {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.logger
}

// dispatch adapts a MessageHandler to paho's signature, containing panics
// so one bad message cannot take down the paho router goroutine.
func (c *Client) dispatch(handler MessageHandler) pahomqtt.MessageHandler {
	return func(_ pahomqtt.Client, msg pahomqtt.Message) {
		defer func() {
			if r := recover(); r != nil {
				if l := c.log(); l != nil {
					l.Error("mqtt handler panicked", "topic", msg.Topic(), "panic", r)
				}
			}
		}()
		if err := handler(msg.Topic(), msg.Payload()); err != nil {
			if l := c.log(); l != nil {
				l.Warn("mqtt handler error", "topic", msg.Topic(), "error", err)
			}
		}
	}
}
