// Package telemetry defines the typed telemetry point written to the time-series
// store and read back by operators.
//
// A field value is a closed three-way variant (number, bool, string) decoded
// straight from the raw JSON token, so the rest of the module never inspects
// interface{} values.
//
//	fields, err := telemetry.DecodeFields([]byte(`{"temp":21.5,"on":true,"mode":"eco"}`))
//	point := telemetry.NewPoint("dev-1", fields)
package telemetry
