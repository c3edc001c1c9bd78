package mqtt

import "fmt"

// Subscribe registers handler for topic (MQTT wildcards allowed) and waits
// for broker acknowledgement. The subscription is remembered and restored
// on every reconnect until Unsubscribe is called.
func (c *Client) Subscribe(topic string, qos byte, handler MessageHandler) error {
	if topic == "" {
		return ErrInvalidTopic
	}
	if qos > 2 {
		return ErrInvalidQoS
	}
	if handler == nil {
		return fmt.Errorf("%w: nil handler", ErrSubscribe)
	}
	if !c.IsConnected() {
		return ErrNotConnected
	}

	// Record first so a reconnect racing with the broker ack still
	// restores the subscription; roll back if the broker refuses it.
	c.mu.Lock()
	c.subs[topic] = subscription{qos: qos, handler: handler}
	c.mu.Unlock()

	token := c.paho.Subscribe(topic, qos, c.dispatch(handler))
	if !token.WaitTimeout(opTimeout) {
		c.forget(topic)
		return fmt.Errorf("%w: no ack within %v", ErrSubscribe, opTimeout)
	}
	if err := token.Error(); err != nil {
		c.forget(topic)
		return fmt.Errorf("%w: %w", ErrSubscribe, err)
	}
	return nil
}

// Unsubscribe stops delivery for topic. Messages already in flight may
// still reach the handler.
func (c *Client) Unsubscribe(topic string) error {
	if topic == "" {
		return ErrInvalidTopic
	}
	if !c.IsConnected() {
		return ErrNotConnected
	}

	c.forget(topic)

	token := c.paho.Unsubscribe(topic)
	if !token.WaitTimeout(opTimeout) {
		return fmt.Errorf("%w: no ack within %v", ErrUnsubscribe, opTimeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("%w: %w", ErrUnsubscribe, err)
	}
	return nil
}

func (c *Client) forget(topic string) {
	c.mu.Lock()
	delete(c.subs, topic)
	c.mu.Unlock()
}

// SubscriptionCount reports how many topics are currently tracked.
func (c *Client) SubscriptionCount() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.subs)
}
