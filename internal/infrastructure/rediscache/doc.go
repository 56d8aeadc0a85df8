// Package rediscache implements the device status cache on Redis.
//
// Keys are "<prefix><deviceID>" (default prefix "device:status:") holding
// {"status":1,"changedAt":"..."} with the configured TTL, one hour by
// default. The directory in the device package stays authoritative; this
// cache only shortens status reads.
package rediscache
