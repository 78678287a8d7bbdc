package correlate

import (
	"strings"

	"github.com/AshishGautamKarn/sn-introspect/pkg/entity"
)

// InstanceClass tags what kind of database the direct channel appears to
// be pointed at. Computed once after extraction and used only for
// reporting; it never changes extraction behavior.
type InstanceClass string

const (
	// ClassUnknown means too few tables were seen to decide.
	ClassUnknown InstanceClass = "unknown"
	// ClassTargetInstance means the schema looks like the remote system's
	// own backing store (dominated by sys_-prefixed tables).
	ClassTargetInstance InstanceClass = "target_instance"
	// ClassHostApplication means the schema looks like an application
	// database that merely references the remote system.
	ClassHostApplication InstanceClass = "host_application"
)

// systemPrefixes are table-name prefixes characteristic of the target
// system's own schema.
var systemPrefixes = []string{"sys", "sn_", "v_"}

// ClassifyInstance inspects extracted table entities and tags the
// database. The threshold is deliberately coarse: half or more
// system-prefixed names reads as the target instance itself.
func ClassifyInstance(tables []entity.Entity) InstanceClass {
	if len(tables) == 0 {
		return ClassUnknown
	}

	systemCount := 0
	for _, t := range tables {
		name := strings.ToLower(t.Key)
		for _, prefix := range systemPrefixes {
			if strings.HasPrefix(name, prefix) {
				systemCount++
				break
			}
		}
	}

	if systemCount*2 >= len(tables) {
		return ClassTargetInstance
	}
	return ClassHostApplication
}
