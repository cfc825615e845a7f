package commands

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"chaintodo/internal/ledger"
)

// TaskRef represents a parsed task reference.
type TaskRef struct {
	Num   int           // 1-based display number, 0 if ByID
	ID    ledger.TaskID // ledger id, set if ByID
	ByID  bool          // true if the reference was #<id>
	Input string
}

// ErrTaskRefRequired indicates no task reference was provided.
var ErrTaskRefRequired = errors.New("task reference required")

// ParseTaskRef parses a task reference from args.
//
// Parsing rules:
// 1. If the first arg is all digits, it is a display number (as printed by list)
// 2. If the first arg is # followed by digits, it is a ledger task id
// 3. Otherwise, error: invalid task reference: <ref>
func ParseTaskRef(args []string) (TaskRef, error) {
	if len(args) == 0 {
		return TaskRef{}, ErrTaskRefRequired
	}
	if len(args) > 1 {
		return TaskRef{}, fmt.Errorf("unexpected argument: %s", args[1])
	}

	arg := args[0]

	if isAllDigits(arg) {
		num, err := strconv.Atoi(arg)
		if err != nil {
			return TaskRef{}, fmt.Errorf("invalid task reference: %s", arg)
		}
		return TaskRef{Num: num, Input: arg}, nil
	}

	if rest, ok := strings.CutPrefix(arg, "#"); ok && isAllDigits(rest) {
		id, err := strconv.ParseUint(rest, 10, 64)
		if err != nil {
			return TaskRef{}, fmt.Errorf("invalid task reference: %s", arg)
		}
		return TaskRef{ID: ledger.TaskID(id), ByID: true, Input: arg}, nil
	}

	return TaskRef{}, fmt.Errorf("invalid task reference: %s", arg)
}

// isAllDigits returns true if s consists only of ASCII digits and is non-empty.
func isAllDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r > unicode.MaxASCII || !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}

// Resolve finds the referenced task in tasks, which must be in mirror order.
func (r TaskRef) Resolve(tasks []ledger.Task) (ledger.Task, error) {
	if r.ByID {
		for _, t := range tasks {
			if t.ID == r.ID {
				return t, nil
			}
		}
		return ledger.Task{}, fmt.Errorf("task not found: %s", r.Input)
	}

	if r.Num < 1 || r.Num > len(tasks) {
		return ledger.Task{}, fmt.Errorf("task number out of range: %d", r.Num)
	}
	return tasks[r.Num-1], nil
}
