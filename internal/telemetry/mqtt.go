package telemetry

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/cwsl/blesniffercore/internal/corelog"
	"github.com/cwsl/blesniffercore/internal/frame"
	"github.com/cwsl/blesniffercore/internal/hostlink"
)

// MQTTConfig configures the optional STATE/MEASURE mirror to an MQTT
// broker, mirroring the fields the teacher's MQTTPublisher actually reads
// off its own MQTTConfig (broker, client ID, auto-reconnect).
type MQTTConfig struct {
	Broker   string
	ClientID string
	Topic    string
	QoS      byte
	Retain   bool
}

// StatePayload is the JSON body published on Topic+"/state" each time
// RadioCore transitions SnifferState.
type StatePayload struct {
	Timestamp int64  `json:"timestamp"`
	State     string `json:"state"`
}

// MeasurePayload is the JSON body published on Topic+"/measure" for every
// decoded MEASURE frame.
type MeasurePayload struct {
	Timestamp int64              `json:"timestamp"`
	Metrics   map[string]float64 `json:"metrics"`
}

// MQTTPublisher mirrors STATE transitions and MEASURE frames to an MQTT
// broker, the same "mirror an internal metric out to an external channel"
// role the teacher's MQTTPublisher plays for noise-floor/session metrics.
type MQTTPublisher struct {
	client mqtt.Client
	config MQTTConfig
	log    *corelog.Logger
}

func generateClientID() string {
	buf := make([]byte, 8)
	rand.Read(buf)
	return "blesniffer_" + hex.EncodeToString(buf)
}

// NewMQTTPublisher connects to the configured broker and returns a ready
// publisher. Grounded on the teacher's NewMQTTPublisher: auto-reconnect,
// connect-retry, and logged connection lifecycle callbacks.
func NewMQTTPublisher(config MQTTConfig, log *corelog.Logger) (*MQTTPublisher, error) {
	if config.ClientID == "" {
		config.ClientID = generateClientID()
	}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(config.Broker)
	opts.SetClientID(config.ClientID)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(10 * time.Second)
	opts.SetKeepAlive(60 * time.Second)
	opts.SetPingTimeout(10 * time.Second)
	opts.SetOnConnectHandler(func(mqtt.Client) {
		log.Printf("mqtt: connected to %s", config.Broker)
	})
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		log.Printf("mqtt: connection lost: %v", err)
	})

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("telemetry: mqtt connect: %w", token.Error())
	}

	return &MQTTPublisher{client: client, config: config, log: log}, nil
}

// PublishState publishes a STATE transition, labeled by the SnifferState
// byte exactly as RadioCore encodes it onto the wire.
func (p *MQTTPublisher) PublishState(nowUnix int64, stateByte uint8) {
	p.publish(p.config.Topic+"/state", StatePayload{
		Timestamp: nowUnix,
		State:     stateName(stateByte),
	})
}

// PublishMeasure decodes a MEASURE payload the same way Metrics.Observe
// does and publishes whichever field it carries.
func (p *MQTTPublisher) PublishMeasure(nowUnix int64, payload []byte) {
	if len(payload) < 1 {
		return
	}
	metrics := map[string]float64{}
	switch payload[0] {
	case hostlink.MeasInterval:
		if len(payload) >= 3 {
			metrics["interval_units"] = float64(uint16(payload[1]) | uint16(payload[2])<<8)
		}
	case hostlink.MeasChanMap:
		metrics["chanmap_certain"] = 1
	case hostlink.MeasAdvHop:
		if len(payload) >= 5 {
			v := uint32(payload[1]) | uint32(payload[2])<<8 | uint32(payload[3])<<16 | uint32(payload[4])<<24
			metrics["adv_hop_usec"] = float64(v)
		}
	case hostlink.MeasWinOffset:
		if len(payload) >= 3 {
			metrics["win_offset_units"] = float64(uint16(payload[1]) | uint16(payload[2])<<8)
		}
	case hostlink.MeasDeltaInstant:
		if len(payload) >= 3 {
			metrics["delta_instant"] = float64(uint16(payload[1]) | uint16(payload[2])<<8)
		}
	}
	if len(metrics) == 0 {
		return
	}
	p.publish(p.config.Topic+"/measure", MeasurePayload{Timestamp: nowUnix, Metrics: metrics})
}

// Observe mirrors a drained Frame to MQTT if its channel is STATE or
// MEASURE; other frame kinds are not published (they have no aggregate
// metric shape worth mirroring out).
func (p *MQTTPublisher) Observe(nowUnix int64, f *frame.Frame) {
	switch f.Channel {
	case frame.ChanState:
		payload := f.Payload()
		if len(payload) > 0 {
			p.PublishState(nowUnix, payload[0])
		}
	case frame.ChanMeasure:
		p.PublishMeasure(nowUnix, f.Payload())
	}
}

func (p *MQTTPublisher) publish(topic string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		p.log.Printf("mqtt: failed to marshal payload for topic %s: %v", topic, err)
		return
	}
	token := p.client.Publish(topic, p.config.QoS, p.config.Retain, data)
	if token.Wait() && token.Error() != nil {
		p.log.Printf("mqtt: failed to publish to topic %s: %v", topic, token.Error())
	}
}

// Close disconnects the MQTT client, waiting up to 250ms for in-flight
// publishes to drain (matching the client library's own Disconnect
// semantics).
func (p *MQTTPublisher) Close() {
	p.client.Disconnect(250)
}
