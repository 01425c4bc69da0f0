// Package device dispatches operator commands to relay devices and
// reconciles the state the devices report back.
//
// The two halves never share state:
//
//   - Dispatcher records operator intent. It appends an action log row in
//     a transaction, commits, then publishes a plain-text command such as
//     "LED3 ON" to the control topic. A failed publish is reported as a
//     warning; the log row stays.
//   - Reconciler records confirmed state. It consumes status messages of
//     the form {"relay":"RELAY3","state":"ON"} and overwrites the device's
//     stored state. Replays are harmless.
//
// The dispatcher never writes device state, so the stored state always
// reflects what the hardware last said, not what an operator asked for.
// Commands and confirmations are not correlated: a device that drops a
// command leaves its stored state unchanged until its next report.
//
// The Catalogue is the fixed set of devices configured at start. It maps
// the operator-facing key (light, ac, fan), the stored display name and
// the relay identifier onto each other.
package device
