// Package aircon defines the normalized data model for air-conditioning
// controllers watched by AirSentinel Core.
//
// Protocol bridges talk to the physical units (per-firmware HTTP encodings,
// key/value wire formats) and publish normalized snapshots over MQTT. This
// package owns the shared vocabulary those bridges and the reconciliation
// engine agree on:
//
//   - Field: the fixed set of controllable settings (power, mode, target
//     temperature, fan rate, fan direction)
//   - Snapshot: an immutable, timestamped set of field values observed at
//     one instant, tagged with its origin (poll or command response)
//   - Normalization helpers for the Daikin-style key/value responses and
//     the firmware code tables (mode, fan rate, fan direction)
//
// Field values are always normalized strings ("1"/"0" for power, "cool",
// "auto" etc. for mode) so that comparing two snapshots never depends on
// which firmware generation produced them. Temperature values are decimal
// strings and are compared with a tolerance to absorb device-side rounding.
//
// # Usage
//
//	values, err := aircon.ParseKeyValueResponse("ret=OK,pow=1,mode=3,stemp=24.0")
//	snap := aircon.NewSnapshot(aircon.Normalize(values), time.Now().UTC(), aircon.OriginPoll)
//	temp, ok := snap.Value(aircon.FieldTargetTemp)
package aircon
