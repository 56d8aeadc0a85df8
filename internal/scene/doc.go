// Package scene stores scenes and runs them.
//
// A scene is an ordered list of {deviceId, action, params} entries kept as
// JSON in the scenes table. Engine.Execute sends each action through the
// device controller in order, summarises the outcome ("2/3 actions
// succeeded; ...") and writes one row to scene_executions per trigger.
package scene
