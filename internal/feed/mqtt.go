package feed

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net"
	"strconv"
	"time"

	"github.com/google/uuid"
	mqtt "github.com/soypat/natiu-mqtt"
)

const (
	mqttConnectTimeout = 30 * time.Second
	mqttRetryDelay     = time.Second
	// The decoder compares string lengths with uint16(len(buffer)), so the
	// buffer must not exceed the largest MQTT string.
	mqttBufferSize = math.MaxUint16
)

// MQTT subscribes to topics on a broker and shows each message payload as a
// single line.
type MQTT struct {
	addr   string
	topics []string
	id     string
	sink   TextSink
	logger *slog.Logger

	dialer net.Dialer
}

// NewMQTT returns a feed subscribed to topics on host:port.
func NewMQTT(host string, port int, topics []string, sink TextSink, logger *slog.Logger) *MQTT {
	id := "infoviewer-" + uuid.NewString()[:8]
	return &MQTT{
		addr:   net.JoinHostPort(host, strconv.Itoa(port)),
		topics: topics,
		id:     id,
		sink:   sink,
		logger: withKind(logger, KindMQTT).With("broker", net.JoinHostPort(host, strconv.Itoa(port)), "client", id),
		dialer: net.Dialer{
			Timeout: mqttConnectTimeout,
			KeepAliveConfig: net.KeepAliveConfig{
				Enable:   true,
				Idle:     120 * time.Second,
				Interval: 60 * time.Second,
			},
		},
	}
}

func (m *MQTT) Run(ctx context.Context) error {
	for {
		err := m.session(ctx)
		if ctx.Err() != nil {
			return nil
		}
		m.logger.Warn("mqtt error, reconnecting", "err", err)
		if !sleep(ctx, mqttRetryDelay) {
			return nil
		}
	}
}

// session connects, subscribes and handles packets until the connection
// fails or ctx is done.
func (m *MQTT) session(ctx context.Context) error {
	conn, err := m.dialer.DialContext(ctx, "tcp", m.addr)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	defer conn.Close()

	// HandleNext blocks in a read; closing the connection releases it.
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	client := mqtt.NewClient(mqtt.ClientConfig{
		Decoder: mqtt.DecoderNoAlloc{UserBuffer: make([]byte, mqttBufferSize)},
		OnPub:   m.onPub,
	})

	var varconn mqtt.VariablesConnect
	varconn.SetDefaultMQTT([]byte(m.id))
	// Dead brokers are found by TCP keep-alive instead of MQTT pings.
	varconn.KeepAlive = 0

	cctx, cancel := context.WithTimeout(ctx, mqttConnectTimeout)
	err = client.Connect(cctx, conn, &varconn)
	cancel()
	if err != nil {
		return fmt.Errorf("connect: %w", err)
	}

	filters := make([]mqtt.SubscribeRequest, 0, len(m.topics))
	for _, t := range m.topics {
		filters = append(filters, mqtt.SubscribeRequest{TopicFilter: []byte(t), QoS: mqtt.QoS0})
	}
	sctx, cancel := context.WithTimeout(ctx, mqttConnectTimeout)
	err = client.Subscribe(sctx, mqtt.VariablesSubscribe{
		TopicFilters:     filters,
		PacketIdentifier: 1,
	})
	cancel()
	if err != nil {
		return fmt.Errorf("subscribe: %w", err)
	}
	m.logger.Info("subscribed", "topics", m.topics)

	for client.IsConnected() {
		if err := client.HandleNext(); err != nil {
			return fmt.Errorf("loop: %w", err)
		}
	}
	if err := client.Err(); err != nil {
		return err
	}
	return errors.New("disconnected")
}

func (m *MQTT) onPub(_ mqtt.Header, vp mqtt.VariablesPublish, r io.Reader) error {
	payload, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	m.deliver(string(vp.TopicName), payload)
	return nil
}

func (m *MQTT) deliver(topic string, payload []byte) {
	text := string(payload)
	w, h, err := m.sink.SetText([]string{text})
	if err != nil {
		m.logger.Error("render failed", "topic", topic, "err", err)
		return
	}
	m.logger.Debug("message", "topic", topic, "text", text, "width", w, "height", h)
}
