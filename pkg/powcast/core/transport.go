package core

import (
	"context"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/jabolina/go-powcast/pkg/powcast/types"
	"github.com/prometheus/common/log"
)

const (
	// At-least-once delivery for every protocol topic.
	qosAtLeastOnce byte = 1
)

// Inbound is one message delivered by the transport.
type Inbound struct {
	Topic   string
	Payload []byte
}

// The transport interface providing the communication
// primitives consumed by the protocol.
type Transport interface {
	// Publish the payload on the given topic.
	Publish(topic string, payload []byte) error

	// Listen for messages that arrive on the subscribed topics.
	Listen() <-chan Inbound

	// Close the transport for sending and receiving messages.
	Close()
}

// An instance of the Transport interface backed by an MQTT broker.
// The five protocol topics are subscribed on creation and every
// received payload is handed to the listener channel.
type MQTTTransport struct {
	// Transport logger.
	log types.Logger

	// The broker client.
	client mqtt.Client

	// Channel to publish the receiving messages.
	producer chan Inbound

	// The transport context.
	context context.Context

	// The finish function to closing the transport.
	finish context.CancelFunc
}

// Create a new transport connected to the configured broker and
// subscribed to the protocol topics. A connection failure here is
// final, the caller is expected to give up.
func NewMQTTTransport(configuration *types.Configuration, logger types.Logger) (Transport, error) {
	topics := types.NewTopics(configuration.TopicPrefix)
	ctx, done := context.WithCancel(context.Background())
	t := &MQTTTransport{
		log:      logger,
		producer: make(chan Inbound, 100),
		context:  ctx,
		finish:   done,
	}

	options := mqtt.NewClientOptions().
		AddBroker(fmt.Sprintf("tcp://%s", configuration.Broker)).
		SetClientID(fmt.Sprintf("powcast-%d", configuration.ClientID)).
		SetKeepAlive(30 * time.Second).
		SetConnectTimeout(10 * time.Second).
		SetConnectionLostHandler(func(_ mqtt.Client, err error) {
			// Correctness past the election assumes stable
			// connectivity, so a lost connection is fatal.
			logger.Fatalf("connection to broker lost. %v", err)
		})

	client := mqtt.NewClient(options)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		done()
		return nil, token.Error()
	}
	t.client = client

	subscriptions := map[string]byte{
		topics.Init:      qosAtLeastOnce,
		topics.Voting:    qosAtLeastOnce,
		topics.Challenge: qosAtLeastOnce,
		topics.Solution:  qosAtLeastOnce,
		topics.Result:    qosAtLeastOnce,
	}
	if token := client.SubscribeMultiple(subscriptions, t.consume); token.Wait() && token.Error() != nil {
		done()
		client.Disconnect(250)
		return nil, token.Error()
	}
	return t, nil
}

// MQTTTransport implements Transport interface.
func (t *MQTTTransport) Publish(topic string, payload []byte) error {
	token := t.client.Publish(topic, qosAtLeastOnce, false, payload)
	token.Wait()
	if err := token.Error(); err != nil {
		log.Errorf("failed publishing on %s. %v", topic, err)
		return err
	}
	return nil
}

// MQTTTransport implements Transport interface.
func (t *MQTTTransport) Listen() <-chan Inbound {
	return t.producer
}

// MQTTTransport implements Transport interface.
func (t *MQTTTransport) Close() {
	t.finish()
	t.client.Disconnect(250)
}

// Consume will receive a message from the broker and hand it to the
// channel listener. If the listener lags for too long the message is
// counted as lost, the protocol tolerates that through the periodic
// re-announcements.
func (t *MQTTTransport) consume(_ mqtt.Client, message mqtt.Message) {
	in := Inbound{
		Topic:   message.Topic(),
		Payload: message.Payload(),
	}
	timeout, cancel := context.WithTimeout(t.context, 250*time.Millisecond)
	defer cancel()
	select {
	case <-timeout.Done():
		t.log.Warnf("failed consuming message on %s", in.Topic)
	case t.producer <- in:
	}
}
