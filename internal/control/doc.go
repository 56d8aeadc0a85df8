// Package control delivers control verbs to devices.
//
// Controller.Execute looks the device up in the directory, refuses devices
// known to be offline, and publishes
//
//	{"action":"switch","params":{"on":true},"messageId":"<uuid>","timestamp":1772366400}
//
// to device/{id}/control at QoS 1, not retained.
package control
