package mqtt

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/json"
	"encoding/pem"
	"errors"
	"math/big"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	coremqtt "github.com/courierflow/dispatch/core/mqtt"
	"github.com/courierflow/dispatch/core/model"
)

type dummyToken struct{ err error }

func (d dummyToken) Wait() bool                       { return true }
func (d dummyToken) WaitTimeout(time.Duration) bool   { return true }
func (d dummyToken) Done() <-chan struct{}            { ch := make(chan struct{}); close(ch); return ch }
func (d dummyToken) Error() error                     { return d.err }

type mockClient struct {
	mu          sync.Mutex
	connected   bool
	published   []publishedMsg
	publishErrs []error
	handlers    map[string]paho.MessageHandler
}

type publishedMsg struct {
	topic   string
	qos     byte
	payload []byte
}

func newMockClient() *mockClient {
	return &mockClient{connected: true, handlers: make(map[string]paho.MessageHandler)}
}

func (m *mockClient) IsConnected() bool       { return m.connected }
func (m *mockClient) Connect() paho.Token     { return dummyToken{} }
func (m *mockClient) Disconnect(quiesce uint) { m.connected = false }

func (m *mockClient) Publish(topic string, qos byte, retained bool, payload interface{}) paho.Token {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.publishErrs) > 0 {
		err := m.publishErrs[0]
		m.publishErrs = m.publishErrs[1:]
		if err != nil {
			return dummyToken{err: err}
		}
	}
	m.published = append(m.published, publishedMsg{topic: topic, qos: qos, payload: payload.([]byte)})
	return dummyToken{}
}

func (m *mockClient) Subscribe(topic string, qos byte, cb paho.MessageHandler) paho.Token {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[topic] = cb
	return dummyToken{}
}

type mockMessage struct {
	topic   string
	payload []byte
}

func (m mockMessage) Duplicate() bool   { return false }
func (m mockMessage) Qos() byte         { return 0 }
func (m mockMessage) Retained() bool    { return false }
func (m mockMessage) Topic() string     { return m.topic }
func (m mockMessage) MessageID() uint16 { return 0 }
func (m mockMessage) Payload() []byte   { return m.payload }
func (m mockMessage) Ack()              {}

func newTestClient(t *testing.T, cfg Config) (*PahoClient, *mockClient) {
	t.Helper()
	mock := newMockClient()
	orig := newMQTTClient
	newMQTTClient = func(opts *paho.ClientOptions) pahoClient { return mock }
	t.Cleanup(func() { newMQTTClient = orig })

	if cfg.Broker == "" {
		cfg.Broker = "tcp://localhost:1883"
	}
	if cfg.ClientID == "" {
		cfg.ClientID = "test"
	}
	if cfg.ResponseTopic == "" {
		cfg.ResponseTopic = "dispatch/offer/response"
	}
	cli, err := NewPahoClient(cfg)
	require.NoError(t, err)
	return cli, mock
}

func testOffer() coremqtt.Offer {
	return coremqtt.Offer{
		AssignmentID: "a-1",
		OrderID:      "o-1",
		Pickup:       model.LatLng{Lat: 48.85, Lng: 2.35},
		Dropoff:      model.LatLng{Lat: 48.86, Lng: 2.36},
		Sequence:     1,
		ExpiresAt:    time.Now().Add(2 * time.Minute),
	}
}

func TestSendOffer_PublishesToDriverTopic(t *testing.T) {
	cli, mock := newTestClient(t, Config{QoS: map[string]byte{"offer": 1}})

	msgID, err := cli.SendOffer("d-42", testOffer())
	require.NoError(t, err)
	require.NotEmpty(t, msgID)

	require.Len(t, mock.published, 1)
	assert.Equal(t, "driver/d-42/offer", mock.published[0].topic)
	assert.Equal(t, byte(1), mock.published[0].qos)

	var decoded struct {
		MessageID string `json:"message_id"`
		OrderID   string `json:"order_id"`
	}
	require.NoError(t, json.Unmarshal(mock.published[0].payload, &decoded))
	assert.Equal(t, msgID, decoded.MessageID)
	assert.Equal(t, "o-1", decoded.OrderID)
}

func TestSendOffer_RetriesOnFailure(t *testing.T) {
	cli, mock := newTestClient(t, Config{MaxRetries: 2, BackoffMS: 1})
	mock.publishErrs = []error{errors.New("broker down"), nil}

	_, err := cli.SendOffer("d-1", testOffer())
	require.NoError(t, err)
	require.Len(t, mock.published, 1)
}

func TestSendOffer_ExhaustsRetries(t *testing.T) {
	cli, mock := newTestClient(t, Config{MaxRetries: 1, BackoffMS: 1})
	mock.publishErrs = []error{errors.New("down"), errors.New("down")}

	_, err := cli.SendOffer("d-1", testOffer())
	require.Error(t, err)
	assert.Empty(t, mock.published)
}

func TestWaitForResponse_DeliversDriverAnswer(t *testing.T) {
	cli, mock := newTestClient(t, Config{})

	msgID, err := cli.SendOffer("d-1", testOffer())
	require.NoError(t, err)

	payload, _ := json.Marshal(map[string]any{
		"message_id": msgID,
		"accepted":   false,
		"reason":     "too far",
	})
	go cli.onResponse(nil, mockMessage{topic: "dispatch/offer/response", payload: payload})

	resp, err := cli.WaitForResponse(msgID, time.Second)
	require.NoError(t, err)
	assert.False(t, resp.Accepted)
	assert.Equal(t, "too far", resp.Reason)
	_ = mock
}

func TestWaitForResponse_Timeout(t *testing.T) {
	cli, _ := newTestClient(t, Config{})

	msgID, err := cli.SendOffer("d-1", testOffer())
	require.NoError(t, err)

	_, err = cli.WaitForResponse(msgID, 10*time.Millisecond)
	require.ErrorIs(t, err, coremqtt.ErrResponseTimeout)
}

func TestWaitForResponse_UnknownMessage(t *testing.T) {
	cli, _ := newTestClient(t, Config{})
	_, err := cli.WaitForResponse("missing", 10*time.Millisecond)
	require.Error(t, err)
}

func TestSubscribeLocations_ForwardsPings(t *testing.T) {
	cli, mock := newTestClient(t, Config{})

	var gotID string
	var gotLoc model.LatLng
	err := cli.SubscribeLocations(context.Background(), "", func(_ context.Context, driverID string, loc model.LatLng, _ time.Time) {
		gotID = driverID
		gotLoc = loc
	})
	require.NoError(t, err)

	handler, ok := mock.handlers["driver/+/location"]
	require.True(t, ok)

	payload, _ := json.Marshal(LocationPing{Location: model.LatLng{Lat: 1, Lng: 2}, Timestamp: time.Now().UnixMilli()})
	handler(nil, mockMessage{topic: "driver/d-9/location", payload: payload})

	assert.Equal(t, "d-9", gotID)
	assert.Equal(t, model.LatLng{Lat: 1, Lng: 2}, gotLoc)
}

func TestLoadTLSConfig(t *testing.T) {
	dir := t.TempDir()
	certPath, keyPath := generateCert(t, dir)

	cfg := Config{ClientCert: certPath, ClientKey: keyPath, CABundle: certPath}
	tlsCfg, err := cfg.LoadTLSConfig()
	require.NoError(t, err)
	assert.Len(t, tlsCfg.Certificates, 1)
	assert.NotNil(t, tlsCfg.RootCAs)
}

func TestLoadTLSConfig_MissingFiles(t *testing.T) {
	cfg := Config{ClientCert: "cert.pem"}
	_, err := cfg.LoadTLSConfig()
	require.Error(t, err)
}

func TestNewClientOptions_LWT(t *testing.T) {
	opts, err := NewClientOptions(Config{
		Broker:     "tcp://localhost:1883",
		ClientID:   "dispatch",
		LWTTopic:   "dispatch/status",
		LWTPayload: "offline",
		LWTQoS:     1,
		LWTRetain:  true,
	})
	require.NoError(t, err)
	assert.True(t, opts.WillEnabled)
	assert.Equal(t, "dispatch/status", opts.WillTopic)
	assert.Equal(t, []byte("offline"), opts.WillPayload)
}

func generateCert(t *testing.T, dir string) (certPath, keyPath string) {
	t.Helper()
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)

	tmpl := x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject:      pkix.Name{CommonName: "dispatch-test"},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(time.Hour),
		KeyUsage:     x509.KeyUsageDigitalSignature | x509.KeyUsageCertSign,
		IsCA:         true,
	}
	der, err := x509.CreateCertificate(rand.Reader, &tmpl, &tmpl, &key.PublicKey, key)
	require.NoError(t, err)

	certPath = filepath.Join(dir, "cert.pem")
	keyPath = filepath.Join(dir, "key.pem")

	certOut, err := os.Create(certPath)
	require.NoError(t, err)
	require.NoError(t, pem.Encode(certOut, &pem.Block{Type: "CERTIFICATE", Bytes: der}))
	require.NoError(t, certOut.Close())

	keyDER, err := x509.MarshalECPrivateKey(key)
	require.NoError(t, err)
	keyOut, err := os.Create(keyPath)
	require.NoError(t, err)
	require.NoError(t, pem.Encode(keyOut, &pem.Block{Type: "EC PRIVATE KEY", Bytes: keyDER}))
	require.NoError(t, keyOut.Close())
	return certPath, keyPath
}
