package api

import (
	"github.com/sheetops/lifecycled/pkg/types"
)

// EditRequest is the payload for ingesting one cell edit.
type EditRequest struct {
	Row      int         `json:"row" binding:"required,gte=1"`
	Column   int         `json:"column" binding:"required,gte=1"`
	OldValue interface{} `json:"old_value,omitempty"`
	NewValue interface{} `json:"new_value,omitempty"`
}

// ToEvent converts the request to the engine's edit event.
func (r *EditRequest) ToEvent() types.EditEvent {
	return types.EditEvent{
		Row:      r.Row,
		Column:   r.Column,
		OldValue: r.OldValue,
		NewValue: r.NewValue,
	}
}

// ErrorResponse is the uniform error body.
type ErrorResponse struct {
	Error string `json:"error"`
}

// StatusResponse is the uniform acknowledgement body.
type StatusResponse struct {
	Status string `json:"status"`
}

// UsersResponse lists registry users.
type UsersResponse struct {
	Users []types.UserRecord `json:"users"`
	Total int                `json:"total"`
}

// AuditResponse lists audit events, newest first.
type AuditResponse struct {
	Events []types.AuditEvent `json:"events"`
	Total  int                `json:"total"`
}
