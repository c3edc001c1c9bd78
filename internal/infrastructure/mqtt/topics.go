package mqtt

import "fmt"

// Topic prefixes for the AirSentinel MQTT hierarchy.
//
// Protocol bridges publish raw controller traffic under the root prefix:
// airsentinel/{category}/{unit}. Core publishes its own outputs under
// airsentinel/core.
const (
	// TopicPrefixBridge is the base for all bridge-facing topics.
	// Flat scheme: airsentinel/{category}/{unit_id}
	TopicPrefixBridge = "airsentinel"

	// TopicPrefixCore is the base for all core-published topics.
	TopicPrefixCore = "airsentinel/core"

	// TopicPrefixSystem is the base for system topics.
	TopicPrefixSystem = "airsentinel/system"
)

// Topics provides builders for AirSentinel MQTT topics.
// Using these helpers ensures consistent topic naming across the codebase.
//
//	topics := mqtt.Topics{}
//	stateTopic := topics.UnitState("living-room-ac")
//	// Returns: "airsentinel/state/living-room-ac"
type Topics struct{}

// =============================================================================
// Bridge Topics
// =============================================================================

// UnitState returns the topic bridges publish poll snapshots on.
//
// Example: airsentinel/state/living-room-ac
func (Topics) UnitState(unitID string) string {
	return fmt.Sprintf("%s/state/%s", TopicPrefixBridge, unitID)
}

// UnitAck returns the topic bridges publish command-response snapshots on.
// Some firmware variants echo pre/post state when a set call returns.
//
// Example: airsentinel/ack/living-room-ac
func (Topics) UnitAck(unitID string) string {
	return fmt.Sprintf("%s/ack/%s", TopicPrefixBridge, unitID)
}

// UnitCommand returns the topic commands to a unit travel on. Core both
// publishes here (REST command endpoint) and subscribes, so commands
// issued by any other publisher still register intent.
//
// Example: airsentinel/command/living-room-ac
func (Topics) UnitCommand(unitID string) string {
	return fmt.Sprintf("%s/command/%s", TopicPrefixBridge, unitID)
}

// =============================================================================
// Core Topics
// =============================================================================

// CoreOverride returns the topic override events are published on.
//
// Example: airsentinel/core/override/living-room-ac
func (Topics) CoreOverride(unitID string) string {
	return fmt.Sprintf("%s/override/%s", TopicPrefixCore, unitID)
}

// CoreUnitState returns the canonical confirmed-state topic. This is the
// authoritative state published by Core after a poll snapshot is accepted.
//
// Example: airsentinel/core/state/living-room-ac
func (Topics) CoreUnitState(unitID string) string {
	return fmt.Sprintf("%s/state/%s", TopicPrefixCore, unitID)
}

// =============================================================================
// System Topics
// =============================================================================

// SystemStatus returns the system status topic (online/offline LWT).
//
// Example: airsentinel/system/status
func (Topics) SystemStatus() string {
	return fmt.Sprintf("%s/status", TopicPrefixSystem)
}

// =============================================================================
// Wildcard Patterns for Subscriptions
// =============================================================================

// AllUnitStates returns a pattern matching all poll snapshot topics.
//
// Pattern: airsentinel/state/+
func (Topics) AllUnitStates() string {
	return fmt.Sprintf("%s/state/+", TopicPrefixBridge)
}

// AllUnitAcks returns a pattern matching all command-response topics.
//
// Pattern: airsentinel/ack/+
func (Topics) AllUnitAcks() string {
	return fmt.Sprintf("%s/ack/+", TopicPrefixBridge)
}

// AllUnitCommands returns a pattern matching all command topics.
//
// Pattern: airsentinel/command/+
func (Topics) AllUnitCommands() string {
	return fmt.Sprintf("%s/command/+", TopicPrefixBridge)
}

// AllOverrides returns a pattern matching all override event topics.
//
// Pattern: airsentinel/core/override/+
func (Topics) AllOverrides() string {
	return fmt.Sprintf("%s/override/+", TopicPrefixCore)
}

// AllTopics returns a pattern matching all AirSentinel topics.
// Use with caution - this receives ALL traffic.
//
// Pattern: airsentinel/#
func (Topics) AllTopics() string {
	return "airsentinel/#"
}

// UnitFromTopic extracts the unit id from a bridge or core topic. The
// unit id is always the final segment. Returns an empty string when the
// topic has no segments.
func UnitFromTopic(topic string) string {
	for i := len(topic) - 1; i >= 0; i-- {
		if topic[i] == '/' {
			return topic[i+1:]
		}
	}
	return topic
}
