package mqtt

import "fmt"

// maxPayloadSize caps outgoing payloads at 1 MiB, in line with common
// broker limits.
const maxPayloadSize = 1 << 20

// Publish sends payload to topic and waits for broker acknowledgement at
// the given QoS. Retained messages replace the broker's stored value for
// the topic; use them for state, never for commands.
func (c *Client) Publish(topic string, payload []byte, qos byte, retained bool) error {
	if topic == "" {
		return ErrInvalidTopic
	}
	if qos > 2 {
		return ErrInvalidQoS
	}
	if len(payload) > maxPayloadSize {
		return fmt.Errorf("%w: %d bytes exceeds %d limit", ErrPublish, len(payload), maxPayloadSize)
	}
	if !c.IsConnected() {
		return ErrNotConnected
	}

	token := c.paho.Publish(topic, qos, retained, payload)
	if !token.WaitTimeout(opTimeout) {
		return fmt.Errorf("%w: no ack within %v", ErrPublish, opTimeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("%w: %w", ErrPublish, err)
	}
	return nil
}
