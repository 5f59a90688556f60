// Package ownership coordinates which bridge instance owns which mug.
//
// Bluetooth allows only one active connection per mug, but several
// bridge instances may run on one network. Rather than a lock service,
// the coordinator uses TTL-bounded leases advertised over retained MQTT
// messages: an instance claims a device by publishing "I own X until T"
// and every instance maintains a local view of all claims. A claim is
// granted when no unexpired claim by another instance is known locally.
//
// Simultaneous claims are resolved deterministically: the lower
// instance ID wins and the loser releases immediately, backing off for
// a random interval. Convergence is eventual, bounded by the lease TTL.
// A partition can open a short dual-ownership window; that is accepted
// because commands are idempotent and duplicate polling is harmless.
package ownership
