// Package mqtt wraps the paho client for AirSentinel Core's message bus.
//
// MQTT is the seam between the Core and the generation-specific edge
// bridges. Bridges poll a controller's HTTP interface and publish the
// normalized snapshot on airsentinel/state/{unit}; command responses land
// on airsentinel/ack/{unit}; commands from any publisher travel on
// airsentinel/command/{unit}. The Core in turn publishes override events
// and its confirmed view of each unit under airsentinel/core/..., and a
// retained status message (plus a broker-side will for crashes) under
// airsentinel/system/status.
//
//	edge bridges ──state/ack──▶ broker ◀──subscribe── Core
//	                            broker ◀──override/state── Core
//
// The client reconnects on its own with backoff and replays its
// subscriptions on every new session, so callers subscribe once and
// forget about connection churn. Topic strings come from the Topics
// builders; hand-assembled topics are a bug.
//
// Typical wiring:
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	err = client.Subscribe(mqtt.Topics{}.AllUnitStates(), 1,
//	    func(topic string, payload []byte) error {
//	        return engineFeed(mqtt.UnitFromTopic(topic), payload)
//	    })
//
// TLS and broker credentials come from the config section; anonymous
// plaintext is for local development only.
package mqtt
