// Package mqtt provides MQTT client connectivity for the IoT device core.
//
// This package manages:
//   - Connection to the broker with auto-reconnect
//   - Publishing with QoS acknowledgement and a payload size cap
//   - Wildcard subscriptions that survive reconnects
//   - Last Will and Testament on iot/system/status
//   - Topic builders for the device, hub and discovery trees
//
// # Topic layout
//
//	device/{id}/data          device → core   telemetry
//	device/{id}/status        device → core   {"status":0|1}
//	device/{id}/control       core → device   delegated commands
//	iot/device/{id}/control   hub → core      control commands
//	iot/device/{id}/response  core → hub      control responses
//	iot/device/{id}/status    core → hub      status events
//	iot/device/{id}/data      core → hub      forwarded telemetry
//	iot/device/{id}/alarm     core → hub      alarms
//	iot/scene/{id}/trigger    hub → core      scene triggers
//	iot/scene/{id}/result     core → hub      scene results
//	homeassistant/{c}/{id}/config             discovery
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	err = client.SubscribeAll(mqtt.Topics{}.Inbound(), 1, handler)
package mqtt
