// Package classifier turns a single normalized cell edit into at most one
// lifecycle event. It is pure: no side effects, safe to call
// speculatively, and never touches the registry.
package classifier

import (
	"github.com/sheetops/lifecycled/pkg/types"
)

// Classify evaluates the decision table for one edit. Rows are 1-based and
// the header row is inert. The rules are mutually exclusive and evaluated
// in priority order; the first match wins.
//
//  1. Edit to any basic column on a complete, not-yet-onboarded row
//     completes it: NewUser. The dateRegistered guard keeps this from
//     firing twice, regardless of fill order.
//  2. Active flipped to false on an onboarded row: Deactivation.
//  3. Role edited on an onboarded row: RoleChange.
//
// Rules 2 and 3 require dateRegistered present to exclude rows
// mid-creation.
func Classify(rowIndex int, column types.Column, row *types.UserRecord) *types.Event {
	if rowIndex <= types.HeaderRow || row == nil {
		return nil
	}

	if column.IsBasic() && row.IsNew() {
		return &types.Event{
			Kind:   types.EventNewUser,
			Record: *row,
			Row:    rowIndex,
		}
	}

	if row.DateRegistered == nil {
		return nil
	}

	if column == types.ColActive && !row.Active {
		return &types.Event{
			Kind:   types.EventDeactivation,
			Record: *row,
			Cause:  types.CauseManual,
		}
	}

	if column == types.ColRole {
		return &types.Event{
			Kind:   types.EventRoleChange,
			Record: *row,
		}
	}

	return nil
}
