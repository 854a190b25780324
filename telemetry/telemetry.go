// Package telemetry mirrors motion and limit events onto MQTT, in
// addition to (never instead of) the serial reply stream the command
// dispatcher writes. A down or unconfigured broker degrades silently to
// a no-op publisher; telemetry never gates protocol correctness.
package telemetry

import (
	"context"
	"fmt"
	"log"
	"net"
	"time"

	mqtt "github.com/soypat/natiu-mqtt"
)

// Publisher mirrors gantry events and a position heartbeat onto MQTT
// topics scoped by gantry ID: "gantry/<id>/event" and
// "gantry/<id>/position".
type Publisher struct {
	client   *mqtt.Client
	gantryID string
	log      *log.Logger
}

// NewNoop returns a Publisher whose every call is a silent no-op, used
// when no broker address is configured.
func NewNoop() *Publisher { return &Publisher{} }

// Dial connects to broker (host:port) and returns a live Publisher. The
// connection is plain TCP; natiu-mqtt's allocation-conscious client is
// chosen over paho for this firmware-side role specifically because it
// avoids the heavier client's background goroutine and buffer churn.
func Dial(ctx context.Context, broker, gantryID string, logger *log.Logger) (*Publisher, error) {
	if logger == nil {
		logger = log.Default()
	}
	conn, err := net.Dial("tcp", broker)
	if err != nil {
		return nil, fmt.Errorf("telemetry: dial %s: %w", broker, err)
	}
	client := mqtt.NewClient(mqtt.ClientConfig{
		Decoder: mqtt.DecoderNoAlloc{UserBuffer: make([]byte, 4096)},
	})
	err = client.Connect(ctx, conn, &mqtt.Connect{
		ClientID:     []byte("gantryfw-" + gantryID),
		Protocol:     4,
		KeepAlive:    30,
		CleanSession: true,
	})
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("telemetry: connect %s: %w", broker, err)
	}
	return &Publisher{client: client, gantryID: gantryID, log: logger}, nil
}

// PublishEvent mirrors one unsolicited protocol event onto
// "gantry/<id>/event".
func (p *Publisher) PublishEvent(line string) {
	p.publish("gantry/"+p.gantryID+"/event", []byte(line))
}

// PublishPosition mirrors a position heartbeat onto
// "gantry/<id>/position".
func (p *Publisher) PublishPosition(h, v int32, at time.Time) {
	payload := fmt.Sprintf("%d,%d,%d", h, v, at.Unix())
	p.publish("gantry/"+p.gantryID+"/position", []byte(payload))
}

func (p *Publisher) publish(topic string, payload []byte) {
	if p.client == nil {
		return
	}
	flags, err := mqtt.NewPublishFlags(mqtt.QoS0, false, false)
	if err != nil {
		p.log.Printf("telemetry: bad publish flags: %v", err)
		return
	}
	if err := p.client.PublishPayload(flags, topic, payload); err != nil {
		p.log.Printf("telemetry: publish %s failed: %v", topic, err)
	}
}

// Close releases the underlying connection, if any.
func (p *Publisher) Close() error {
	if p.client == nil {
		return nil
	}
	return p.client.Close()
}
