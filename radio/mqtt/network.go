package mqtt

import (
	"context"
	"errors"
	"fmt"
	"github.com/shimmeringbee/irrigation/radio"
	"github.com/shimmeringbee/irrigation/zone"
	"github.com/shimmeringbee/logwrap"
	"os"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
)

type Publisher func(ctx context.Context, topic string, payload []byte) error

type mqttError string

func (m mqttError) Error() string {
	return string(m)
}

const UnknownTopic = mqttError("unknown topic")
const UnknownZone = mqttError("unknown zone")
const InvalidPayload = mqttError("invalid payload")

const AvailabilityTopic = "bridge/online"

func EmptyPublisher(ctx context.Context, topic string, payload []byte) error {
	return nil
}

var _ radio.Network = (*Network)(nil)

// Network exposes each zone as a set of topics on an MQTT broker. Connectivity follows the
// broker connection as reported through Connect and Disconnect.
type Network struct {
	logger       logwrap.Logger
	identityFile string

	lock      sync.RWMutex
	publisher Publisher
	connected atomic.Bool

	endpoints []*Endpoint
}

func New(zones int, identityFile string, l logwrap.Logger) *Network {
	n := &Network{logger: l, identityFile: identityFile, publisher: EmptyPublisher}

	for i := 0; i < zones; i++ {
		n.endpoints = append(n.endpoints, &Endpoint{network: n, index: zone.Index(i)})
	}

	return n
}

func (n *Network) Name() string {
	return "mqtt"
}

func (n *Network) Connected() bool {
	return n.connected.Load()
}

func (n *Network) Endpoint(i zone.Index) (radio.Endpoint, bool) {
	if int(i) >= len(n.endpoints) {
		return nil, false
	}

	return n.endpoints[i], true
}

// Erase removes the persisted client identity, a new one is generated on the next start.
func (n *Network) Erase() error {
	if len(n.identityFile) == 0 {
		return nil
	}

	if err := os.Remove(n.identityFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to remove mqtt identity: %w", err)
	}

	return nil
}

// Connect is called once the broker session is established, the availability topic and the
// last reflected state of every zone are republished.
func (n *Network) Connect(ctx context.Context, publisher Publisher) error {
	n.lock.Lock()
	n.publisher = publisher
	n.lock.Unlock()

	n.connected.Store(true)

	if err := publisher(ctx, AvailabilityTopic, []byte("true")); err != nil {
		return fmt.Errorf("failed to publish availability: %w", err)
	}

	n.logger.LogInfo(ctx, "MQTT connected, publishing current state of all zones.")

	for _, ep := range n.endpoints {
		if err := ep.republish(ctx); err != nil {
			return err
		}
	}

	return nil
}

func (n *Network) Disconnect() {
	n.connected.Store(false)

	n.lock.Lock()
	defer n.lock.Unlock()

	n.publisher = EmptyPublisher
}

func (n *Network) publish(ctx context.Context, topic string, payload []byte) error {
	n.lock.RLock()
	publisher := n.publisher
	n.lock.RUnlock()

	if err := publisher(ctx, topic, payload); err != nil {
		return fmt.Errorf("failed to publish data to mqtt: %w", err)
	}

	return nil
}

func (n *Network) IncomingMessage(ctx context.Context, topic string, payload []byte) error {
	topicParts := strings.Split(strings.Trim(topic, "/"), "/")

	if len(topicParts) > 0 {
		switch topicParts[0] {
		case "zones":
			return n.IncomingMessageZones(ctx, topicParts[1:], payload)
		}
	}

	return fmt.Errorf("%w: %s", UnknownTopic, topic)
}

func (n *Network) IncomingMessageZones(ctx context.Context, topic []string, payload []byte) error {
	if len(topic) != 2 || topic[1] != "set" {
		return fmt.Errorf("%w: %s", UnknownTopic, strings.Join(topic, "/"))
	}

	number, err := strconv.Atoi(topic[0])
	if err != nil || number < 1 || number > len(n.endpoints) {
		return fmt.Errorf("%w: %s", UnknownZone, topic[0])
	}

	on, err := ParsePayload(payload)
	if err != nil {
		return err
	}

	n.endpoints[number-1].request(on)
	return nil
}

// ParsePayload accepts the common boolean spellings used by home automation systems.
func ParsePayload(payload []byte) (bool, error) {
	switch strings.ToUpper(strings.TrimSpace(string(payload))) {
	case "ON", "TRUE", "1":
		return true, nil
	case "OFF", "FALSE", "0":
		return false, nil
	default:
		return false, fmt.Errorf("%w: %q", InvalidPayload, payload)
	}
}

func FormatState(on bool) []byte {
	return []byte(zone.FromBool(on).String())
}

var _ radio.Endpoint = (*Endpoint)(nil)

type Endpoint struct {
	network *Network
	index   zone.Index

	lock      sync.Mutex
	handler   radio.RequestHandler
	reflected bool
	known     bool
	remaining uint8
}

func (e *Endpoint) OnRequest(h radio.RequestHandler) {
	e.lock.Lock()
	defer e.lock.Unlock()

	e.handler = h
}

func (e *Endpoint) request(on bool) {
	e.lock.Lock()
	h := e.handler
	e.lock.Unlock()

	if h != nil {
		h(on)
	}
}

func (e *Endpoint) stateTopic() string {
	return fmt.Sprintf("zones/%d/state", e.index.Number())
}

func (e *Endpoint) remainingTopic() string {
	return fmt.Sprintf("zones/%d/remaining", e.index.Number())
}

func (e *Endpoint) Reflect(ctx context.Context, on bool) error {
	e.lock.Lock()
	e.reflected = on
	e.known = true
	e.lock.Unlock()

	return e.network.publish(ctx, e.stateTopic(), FormatState(on))
}

// ReportRemaining only publishes when the value changes, the loop reports every second.
func (e *Endpoint) ReportRemaining(ctx context.Context, remaining uint8) error {
	e.lock.Lock()
	changed := remaining != e.remaining
	e.remaining = remaining
	e.lock.Unlock()

	if !changed {
		return nil
	}

	return e.network.publish(ctx, e.remainingTopic(), []byte(strconv.Itoa(int(remaining))))
}

func (e *Endpoint) republish(ctx context.Context) error {
	e.lock.Lock()
	on, known, remaining := e.reflected, e.known, e.remaining
	e.lock.Unlock()

	if known {
		if err := e.network.publish(ctx, e.stateTopic(), FormatState(on)); err != nil {
			return err
		}
	}

	return e.network.publish(ctx, e.remainingTopic(), []byte(strconv.Itoa(int(remaining))))
}
