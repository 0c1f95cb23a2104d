package plan

import (
	"fmt"
	"strconv"
	"strings"
)

// NextTaskCode allocates the next human-readable task code for the plan's
// project, of the form "PRJ-007".
func (p *Plan) NextTaskCode() string {
	existing := make([]string, 0, len(p.tasks))
	for _, t := range p.tasks {
		existing = append(existing, t.TaskID)
	}
	return NextTaskCode(p.code, existing)
}

// NextTaskCode scans existing codes of the form "{projectCode}-{NNN}" and
// returns the code with the highest numeric suffix plus one, zero-padded to
// three digits. Codes imported with gaps or out of order never collide:
// allocation always moves past the maximum seen suffix. Codes that do not
// match the pattern are ignored.
func NextTaskCode(projectCode string, existing []string) string {
	prefix := projectCode + "-"
	max := 0
	for _, code := range existing {
		if !strings.HasPrefix(code, prefix) {
			continue
		}
		n, err := strconv.Atoi(code[len(prefix):])
		if err != nil {
			continue
		}
		if n > max {
			max = n
		}
	}
	return fmt.Sprintf("%s%03d", prefix, max+1)
}
