// Package codegen synthesizes identifiers for every record the engine
// creates. Codes encode hierarchy lineage plus a base36 timestamp and a
// random suffix, so uniqueness is probabilistic (time + randomness), not
// guaranteed: callers must treat an insert collision as a possible, rare
// error rather than an impossibility.
package codegen

import (
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"auditflow/pkg/domain"
)

// now is swappable in tests so generated codes are stable.
var now = time.Now

// ProcessCode derives an audit-run code from its template and teacher
// lineage.
func ProcessCode(templateCode string, teacherID domain.TeacherID) domain.ProcessCode {
	return domain.ProcessCode(join(templateCode, teacherID.String()) + "_" + suffix())
}

// StepCode derives a step code from its owning process and step position.
func StepCode(processCode domain.ProcessCode, stepIndex int) domain.StepCode {
	return domain.StepCode(join(processCode.String(), strconv.Itoa(stepIndex)) + "_" + stamp())
}

// ChecklistCode derives an item code from its owning step and item position.
func ChecklistCode(stepCode domain.StepCode, itemIndex int) domain.ChecklistCode {
	return domain.ChecklistCode(join(stepCode.String(), strconv.Itoa(itemIndex)) + "_" + stamp())
}

func join(parts ...string) string {
	return strings.Join(parts, "_")
}

// stamp is the millisecond clock in base36, the shared time component of
// every generated code.
func stamp() string {
	return strconv.FormatInt(now().UnixMilli(), 36)
}

// suffix extends the stamp with randomness for codes minted at the top of
// the hierarchy, where many runs can share one template/teacher pair.
func suffix() string {
	return stamp() + "_" + uuid.NewString()[:8]
}
