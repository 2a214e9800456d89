package mqtt

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"errors"
	"math/big"
	"os"
	"path/filepath"
	"testing"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/robodelivery/core/events"
	"github.com/kilianp07/robodelivery/core/transport"
	"github.com/kilianp07/robodelivery/infra/logger"
)

// mockClient implements pahoClient for tests.
type mockClient struct {
	opts         *paho.ClientOptions
	disconnected bool
	handler      paho.MessageHandler
	subscribed   []sub
	published    []pub
	publishErrs  []error
}

type sub struct {
	topic string
	qos   byte
}

type pub struct {
	topic   string
	qos     byte
	payload []byte
}

func (m *mockClient) IsConnected() bool { return !m.disconnected }
func (m *mockClient) Connect() paho.Token {
	if m.opts != nil && m.opts.OnConnect != nil {
		m.opts.OnConnect(m)
	}
	return &dummyToken{}
}
func (m *mockClient) Disconnect(uint) { m.disconnected = true }
func (m *mockClient) Publish(topic string, qos byte, _ bool, payload interface{}) paho.Token {
	m.published = append(m.published, pub{topic, qos, payload.([]byte)})
	if len(m.publishErrs) > 0 {
		err := m.publishErrs[0]
		m.publishErrs = m.publishErrs[1:]
		return &dummyToken{err: err}
	}
	return &dummyToken{}
}
func (m *mockClient) Subscribe(topic string, qos byte, h paho.MessageHandler) paho.Token {
	m.subscribed = append(m.subscribed, sub{topic, qos})
	m.handler = h
	return &dummyToken{}
}
func (m *mockClient) SubscribeMultiple(map[string]byte, paho.MessageHandler) paho.Token {
	return &dummyToken{}
}
func (m *mockClient) Unsubscribe(...string) paho.Token        { return &dummyToken{} }
func (m *mockClient) AddRoute(string, paho.MessageHandler)    {}
func (m *mockClient) OptionsReader() paho.ClientOptionsReader { return paho.ClientOptionsReader{} }
func (m *mockClient) IsConnectionOpen() bool                  { return !m.disconnected }

// deliver hands payload to the subscription callback as the broker would.
func (m *mockClient) deliver(topic string, payload []byte) {
	m.handler(m, mockMessage{topic: topic, p: payload})
}

type dummyToken struct{ err error }

func (d dummyToken) Wait() bool                     { return true }
func (d dummyToken) WaitTimeout(time.Duration) bool { return true }
func (d dummyToken) Done() <-chan struct{}          { ch := make(chan struct{}); close(ch); return ch }
func (d dummyToken) Error() error                   { return d.err }

type mockMessage struct {
	topic string
	p     []byte
}

func (m mockMessage) Duplicate() bool   { return false }
func (m mockMessage) Qos() byte         { return 0 }
func (m mockMessage) Retained() bool    { return false }
func (m mockMessage) Topic() string     { return m.topic }
func (m mockMessage) MessageID() uint16 { return 0 }
func (m mockMessage) Payload() []byte   { return m.p }
func (m mockMessage) Ack()              {}

func withMock(t *testing.T, mc *mockClient) {
	t.Helper()
	newMQTTClient = func(o *paho.ClientOptions) pahoClient { mc.opts = o; return mc }
	t.Cleanup(func() {
		newMQTTClient = func(opts *paho.ClientOptions) pahoClient { return paho.NewClient(opts) }
	})
	ResetMetrics(prometheus.NewRegistry())
}

func newTestChannel(t *testing.T, mc *mockClient, cfg Config) *Channel {
	t.Helper()
	withMock(t, mc)
	if cfg.Role == "" {
		cfg.Role = RoleDispatcher
	}
	ch, err := NewChannel(cfg, logger.NopLogger{})
	require.NoError(t, err)
	return ch
}

func TestTopicsFollowRole(t *testing.T) {
	world := Config{TopicPrefix: "city", Role: RoleWorld}
	disp := Config{TopicPrefix: "city", Role: RoleDispatcher}
	assert.Equal(t, "city/world", world.OutTopic())
	assert.Equal(t, "city/dispatcher", world.InTopic())
	assert.Equal(t, disp.InTopic(), world.OutTopic())
	assert.Equal(t, disp.OutTopic(), world.InTopic())
}

func TestConfigValidation(t *testing.T) {
	assert.Error(t, Config{Role: "fleet"}.Validate())
	assert.Error(t, Config{Role: RoleWorld, QoS: 3}.Validate())
	assert.NoError(t, Config{Role: RoleWorld, QoS: 1}.Validate())
}

func TestSubscribesToPeerTopic(t *testing.T) {
	mc := &mockClient{}
	newTestChannel(t, mc, Config{Role: RoleWorld, QoS: 1})

	require.Len(t, mc.subscribed, 1)
	assert.Equal(t, sub{"robodelivery/dispatcher", 1}, mc.subscribed[0])
	assert.Contains(t, mc.opts.ClientID, "robodelivery-world-")
	assert.True(t, mc.opts.AutoReconnect)
	assert.True(t, mc.opts.ConnectRetry)
}

func TestSendPublishesBatch(t *testing.T) {
	mc := &mockClient{}
	ch := newTestChannel(t, mc, Config{QoS: 2})

	require.NoError(t, ch.Send(context.Background(), events.Batch{events.ReturnToBase(4)}))

	require.Len(t, mc.published, 1)
	assert.Equal(t, "robodelivery/dispatcher", mc.published[0].topic)
	assert.Equal(t, byte(2), mc.published[0].qos)
	assert.JSONEq(t, `[{"kind":"return_to_base","robot_number":4}]`, string(mc.published[0].payload))
	assert.Equal(t, 1.0, testutil.ToFloat64(messagesSent))
}

func TestSendRetries(t *testing.T) {
	mc := &mockClient{publishErrs: []error{errors.New("net fail"), nil}}
	ch := newTestChannel(t, mc, Config{MaxRetries: 1, BackoffMS: 1})

	require.NoError(t, ch.Send(context.Background(), events.Batch{}))
	assert.Len(t, mc.published, 2)
}

func TestSendGivesUp(t *testing.T) {
	fail := errors.New("net fail")
	mc := &mockClient{publishErrs: []error{fail, fail, fail}}
	ch := newTestChannel(t, mc, Config{MaxRetries: 2, BackoffMS: 1})

	err := ch.Send(context.Background(), events.Batch{})

	assert.ErrorIs(t, err, fail)
	assert.Len(t, mc.published, 3)
	assert.Equal(t, 1.0, testutil.ToFloat64(messagesDropped.WithLabelValues("publish")))
}

func TestSendWhileDisconnected(t *testing.T) {
	mc := &mockClient{}
	ch := newTestChannel(t, mc, Config{})
	require.NoError(t, ch.Close())

	err := ch.Send(context.Background(), events.Batch{events.LowBattery(1)})

	assert.ErrorIs(t, err, transport.ErrNotConnected)
	assert.Empty(t, mc.published)
}

func TestReceivedBatchesArePolled(t *testing.T) {
	mc := &mockClient{}
	ch := newTestChannel(t, mc, Config{Role: RoleDispatcher})

	mc.deliver("robodelivery/world", []byte(`[{"kind":"low_battery","robot_number":2}]`))
	mc.deliver("robodelivery/world", []byte(`{"kind":"low_battery"}`))
	mc.deliver("robodelivery/world", []byte(`[{"kind":"warp"},{"kind":"arrived_at_base","robot_number":2}]`))

	assert.Equal(t, events.Batch{events.LowBattery(2), events.ArrivedAtBase(2)}, ch.Poll())
	assert.Empty(t, ch.Poll())
	assert.Equal(t, 3.0, testutil.ToFloat64(messagesReceived))
	assert.Equal(t, 2.0, testutil.ToFloat64(decodeErrors))
}

func TestNewClientOptionsAuthAndWill(t *testing.T) {
	opts, err := NewClientOptions(Config{
		Broker: "tcp://localhost:1883", ClientID: "id", Username: "u", Password: "p",
		LWTTopic: "robodelivery/status", LWTPayload: "offline", LWTQoS: 1,
	})
	require.NoError(t, err)
	assert.Equal(t, "u", opts.Username)
	assert.Equal(t, "p", opts.Password)
	assert.True(t, opts.WillEnabled)
	assert.Equal(t, "robodelivery/status", opts.WillTopic)
	assert.Equal(t, "offline", string(opts.WillPayload))

	opts, err = NewClientOptions(Config{Broker: "tcp://localhost:1883", Username: "u", AuthMethod: "certificate"})
	require.NoError(t, err)
	assert.Empty(t, opts.Username)
}

// generateCert writes a self-signed certificate, its key and a CA bundle.
func generateCert(t *testing.T) (certFile, keyFile, caFile string) {
	t.Helper()
	priv, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	tmpl := x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject:      pkix.Name{CommonName: "robodelivery-test"},
		NotBefore:    time.Now(),
		NotAfter:     time.Now().Add(time.Hour),
	}
	der, err := x509.CreateCertificate(rand.Reader, &tmpl, &tmpl, &priv.PublicKey, priv)
	require.NoError(t, err)
	certPEM := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der})
	keyPEM := pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(priv)})

	dir := t.TempDir()
	certFile = filepath.Join(dir, "cert.pem")
	keyFile = filepath.Join(dir, "key.pem")
	caFile = filepath.Join(dir, "ca.pem")
	require.NoError(t, os.WriteFile(certFile, certPEM, 0o600))
	require.NoError(t, os.WriteFile(keyFile, keyPEM, 0o600))
	require.NoError(t, os.WriteFile(caFile, certPEM, 0o600))
	return certFile, keyFile, caFile
}

func TestLoadTLSConfig(t *testing.T) {
	cert, key, ca := generateCert(t)
	tlsCfg, err := Config{UseTLS: true, ClientCert: cert, ClientKey: key, CABundle: ca}.LoadTLSConfig()
	require.NoError(t, err)
	assert.Len(t, tlsCfg.Certificates, 1)
	assert.NotNil(t, tlsCfg.RootCAs)

	_, err = Config{UseTLS: true}.LoadTLSConfig()
	assert.Error(t, err)
}
