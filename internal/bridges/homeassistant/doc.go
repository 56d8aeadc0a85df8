// Package homeassistant bridges the core to a Home Assistant hub over MQTT.
//
// Inbound, it answers control commands (iot/device/{id}/control) and scene
// triggers (iot/scene/{id}/trigger). Both handlers plug into the ingest
// router and always publish exactly one reply:
//
//	iot/device/{id}/response  {requestId, success, message, timestamp}
//	iot/scene/{id}/result     {success, message, timestamp}
//
// Outbound, Publisher mirrors device state to the hub:
//
//	iot/device/{id}/status                 {status, timestamp}
//	iot/device/{id}/data                   {<fields>..., timestamp}
//	iot/device/{id}/alarm                  {alarmType, level, value, timestamp}
//	homeassistant/{component}/{id}/config  discovery
//
// All outbound messages use QoS 1, are not retained, and carry an integer
// Unix-seconds timestamp.
package homeassistant
