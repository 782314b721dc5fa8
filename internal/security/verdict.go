package security

import (
	"fmt"

	"nare/internal/permission"
)

// VerdictKind tags a Verdict.
type VerdictKind int

const (
	VerdictSafe VerdictKind = iota + 1
	VerdictBlocked
	VerdictRequiresPermission
	VerdictRequiresConfirmation
)

func (k VerdictKind) String() string {
	switch k {
	case VerdictSafe:
		return "safe"
	case VerdictBlocked:
		return "blocked"
	case VerdictRequiresPermission:
		return "requires_permission"
	case VerdictRequiresConfirmation:
		return "requires_confirmation"
	default:
		return "unknown"
	}
}

// Verdict is the classification outcome for one candidate command. Only the
// field matching Kind is meaningful: Reason for Blocked, Category for
// RequiresPermission, Label for RequiresConfirmation.
type Verdict struct {
	Kind     VerdictKind
	Reason   string
	Category permission.Category
	Label    string
}

func Safe() Verdict {
	return Verdict{Kind: VerdictSafe}
}

func Blocked(reason string) Verdict {
	return Verdict{Kind: VerdictBlocked, Reason: reason}
}

func RequiresPermission(c permission.Category) Verdict {
	return Verdict{Kind: VerdictRequiresPermission, Category: c}
}

func RequiresConfirmation(label string) Verdict {
	return Verdict{Kind: VerdictRequiresConfirmation, Label: label}
}

// Executable reports whether the command may run without asking anyone,
// given the current permission snapshot.
func (v Verdict) Executable(set permission.Set) bool {
	switch v.Kind {
	case VerdictSafe:
		return true
	case VerdictRequiresPermission:
		return set.Allowed(v.Category)
	default:
		return false
	}
}

func (v Verdict) String() string {
	switch v.Kind {
	case VerdictBlocked:
		return fmt.Sprintf("blocked(%s)", v.Reason)
	case VerdictRequiresPermission:
		return fmt.Sprintf("requires_permission(%s)", v.Category)
	case VerdictRequiresConfirmation:
		return fmt.Sprintf("requires_confirmation(%s)", v.Label)
	default:
		return v.Kind.String()
	}
}
