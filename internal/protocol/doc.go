// Package protocol holds the pre-registered analysis metric definitions and
// the freeze-once registry semantics.
//
// Definitions are written as declarative CUE files and compiled into
// model.ProtocolDefinition values (see loader.go). Registration is only
// possible while the system is COLLECTING; sealing freezes the registry and
// records a freeze hash that is re-verified at unlock. The frozen definition
// set is readable only after UNLOCKED.
package protocol
