package mqtt

import (
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"

	coremon "github.com/courierflow/dispatch/core/monitoring"
	coremqtt "github.com/courierflow/dispatch/core/mqtt"
	"github.com/courierflow/dispatch/infra/logger"
)

// Config defines the connection parameters for the Paho MQTT client.
type Config struct {
	Broker        string          `json:"broker"`
	ClientID      string          `json:"client_id"`
	Username      string          `json:"username"`
	Password      string          `json:"password"`
	ResponseTopic string          `json:"response_topic"`
	LocationTopic string          `json:"location_topic"`
	UseTLS        bool            `json:"use_tls"`
	ClientCert    string          `json:"client_cert"`
	ClientKey     string          `json:"client_key"`
	CABundle      string          `json:"ca_bundle"`
	AuthMethod    string          `json:"auth_method"`
	QoS           map[string]byte `json:"qos"`
	LWTTopic      string          `json:"lwt_topic"`
	LWTPayload    string          `json:"lwt_payload"`
	LWTQoS        byte            `json:"lwt_qos"`
	LWTRetain     bool            `json:"lwt_retain"`
	MaxRetries    int             `json:"max_retries"`
	BackoffMS     int             `json:"backoff_ms"`
	TLSConfig     *tls.Config     `json:"-"`
}

// pahoClient is the subset of the Paho API the client depends on.
type pahoClient interface {
	IsConnected() bool
	Connect() paho.Token
	Disconnect(quiesce uint)
	Publish(topic string, qos byte, retained bool, payload interface{}) paho.Token
	Subscribe(topic string, qos byte, callback paho.MessageHandler) paho.Token
}

// PahoClient implements the core mqtt.Client interface using Eclipse Paho.
type PahoClient struct {
	cli           pahoClient
	responseTopic string
	qos           map[string]byte

	mu         sync.Mutex
	respChans  map[string]chan coremqtt.Response
	logger     logger.Logger
	lwtTopic   string
	lwtPayload string
	lwtQoS     byte
	lwtRetain  bool
	maxRetries int
	backoff    time.Duration
}

var newMQTTClient = func(opts *paho.ClientOptions) pahoClient {
	return paho.NewClient(opts)
}

// NewPahoClient connects to the MQTT broker and subscribes to the offer
// response topic.
func NewPahoClient(cfg Config) (*PahoClient, error) {
	opts, err := NewClientOptions(cfg)
	if err != nil {
		return nil, err
	}

	logger := logger.New("mqtt_client")
	pc := &PahoClient{responseTopic: cfg.ResponseTopic,
		respChans:  make(map[string]chan coremqtt.Response),
		logger:     logger,
		qos:        cfg.QoS,
		lwtTopic:   cfg.LWTTopic,
		lwtPayload: cfg.LWTPayload,
		lwtQoS:     cfg.LWTQoS,
		lwtRetain:  cfg.LWTRetain,
		maxRetries: cfg.MaxRetries,
		backoff:    time.Duration(cfg.BackoffMS) * time.Millisecond,
	}

	opts.OnConnect = func(c paho.Client) {
		logger.Infof("MQTT connected")
		qos := byte(0)
		if q, ok := pc.qos["response"]; ok {
			qos = q
		}
		if token := c.Subscribe(pc.responseTopic, qos, pc.onResponse); token.Wait() && token.Error() != nil {
			logger.Errorf("subscribe error: %v", token.Error())
		}
	}
	opts.OnConnectionLost = func(_ paho.Client, err error) {
		logger.Errorf("connection lost: %v", err)
	}
	opts.OnReconnecting = func(_ paho.Client, _ *paho.ClientOptions) {
		logger.Warnf("reconnecting to MQTT broker")
	}
	c := newMQTTClient(opts)
	if token := c.Connect(); token.Wait() && token.Error() != nil {
		return nil, token.Error()
	}
	pc.cli = c
	return pc, nil
}

// NewClientOptions builds mqtt client options from Config.
func NewClientOptions(cfg Config) (*paho.ClientOptions, error) {
	opts := paho.NewClientOptions().AddBroker(cfg.Broker).SetClientID(cfg.ClientID)
	opts.AutoReconnect = true
	if cfg.AuthMethod == "username_password" || cfg.AuthMethod == "both" || cfg.AuthMethod == "" {
		if cfg.Username != "" {
			opts.SetUsername(cfg.Username)
		}
		if cfg.Password != "" {
			opts.SetPassword(cfg.Password)
		}
	}
	if cfg.UseTLS {
		tlsCfg, err := cfg.LoadTLSConfig()
		if err != nil {
			return nil, err
		}
		opts.SetTLSConfig(tlsCfg)
	}
	if cfg.LWTTopic != "" {
		opts.SetWill(cfg.LWTTopic, cfg.LWTPayload, cfg.LWTQoS, cfg.LWTRetain)
	}
	return opts, nil
}

// LoadTLSConfig loads the TLS configuration from the file paths in the config.
func (c Config) LoadTLSConfig() (*tls.Config, error) {
	if c.TLSConfig != nil {
		return c.TLSConfig, nil
	}
	if c.ClientCert == "" || c.ClientKey == "" || c.CABundle == "" {
		return nil, fmt.Errorf("tls config requires client_cert, client_key and ca_bundle")
	}
	cert, err := tls.LoadX509KeyPair(c.ClientCert, c.ClientKey)
	if err != nil {
		return nil, fmt.Errorf("load cert: %w", err)
	}
	caBytes, err := os.ReadFile(c.CABundle)
	if err != nil {
		return nil, fmt.Errorf("read ca: %w", err)
	}
	pool := x509.NewCertPool()
	pool.AppendCertsFromPEM(caBytes)
	cfg := &tls.Config{Certificates: []tls.Certificate{cert}, RootCAs: pool, MinVersion: tls.VersionTLS12}
	return cfg, nil
}

func (p *PahoClient) onResponse(_ paho.Client, msg paho.Message) {
	var m struct {
		MessageID string `json:"message_id"`
		Accepted  bool   `json:"accepted"`
		Reason    string `json:"reason"`
	}
	if err := json.Unmarshal(msg.Payload(), &m); err != nil {
		p.logger.Errorf("failed to decode offer response: %v", err)
		return
	}
	p.mu.Lock()
	ch, ok := p.respChans[m.MessageID]
	if ok {
		select {
		case ch <- coremqtt.Response{Accepted: m.Accepted, Reason: m.Reason}:
		default:
		}
		p.logger.Infof("received response %s", m.MessageID)
	}
	p.mu.Unlock()
}

// SendOffer publishes the offer to the driver specific topic and returns the
// message identifier used for response tracking.
func (p *PahoClient) SendOffer(driverID string, offer coremqtt.Offer) (string, error) {
	msgID := uuid.NewString()
	payload, err := json.Marshal(struct {
		MessageID string `json:"message_id"`
		coremqtt.Offer
		Timestamp int64 `json:"timestamp"`
	}{
		MessageID: msgID,
		Offer:     offer,
		Timestamp: time.Now().UnixMilli(),
	})
	if err != nil {
		return "", err
	}

	topic := fmt.Sprintf("driver/%s/offer", driverID)
	qos := byte(0)
	if q, ok := p.qos["offer"]; ok {
		qos = q
	}
	if p.maxRetries <= 0 {
		p.maxRetries = 3
	}
	if p.backoff <= 0 {
		p.backoff = 100 * time.Millisecond
	}
	var publishErr error
	for attempt := 0; attempt <= p.maxRetries; attempt++ {
		token := p.cli.Publish(topic, qos, false, payload)
		token.Wait()
		publishErr = token.Error()
		if publishErr == nil {
			p.logger.Infof("sent offer %s to %s", msgID, topic)
			break
		}
		p.logger.Errorf("publish attempt %d failed: %v", attempt+1, publishErr)
		time.Sleep(p.backoff * time.Duration(1<<attempt))
	}
	if publishErr != nil {
		coremon.CaptureException(publishErr, map[string]string{"module": "mqtt", "driver_id": driverID})
		return "", publishErr
	}

	p.mu.Lock()
	p.respChans[msgID] = make(chan coremqtt.Response, 1)
	p.mu.Unlock()

	return msgID, nil
}

// WaitForResponse blocks until a response for the given message ID is
// received or the timeout expires.
func (p *PahoClient) WaitForResponse(messageID string, timeout time.Duration) (coremqtt.Response, error) {
	p.mu.Lock()
	ch := p.respChans[messageID]
	p.mu.Unlock()
	if ch == nil {
		return coremqtt.Response{}, fmt.Errorf("unknown message")
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case resp := <-ch:
		p.mu.Lock()
		delete(p.respChans, messageID)
		p.mu.Unlock()
		return resp, nil
	case <-timer.C:
		p.mu.Lock()
		delete(p.respChans, messageID)
		p.mu.Unlock()
		return coremqtt.Response{}, fmt.Errorf("%w", coremqtt.ErrResponseTimeout)
	}
}

// Disconnect gracefully closes the MQTT connection.
func (p *PahoClient) Disconnect() {
	if p.cli != nil && p.cli.IsConnected() {
		p.cli.Disconnect(250)
	}
}
