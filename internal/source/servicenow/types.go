package servicenow

import "github.com/nhle/change-adapter/internal/model"

// record is a change request as returned by the Table API. Only the fields
// the adapter extracts are declared; values keep their decoded JSON type.
type record struct {
	Number      any `json:"number"`
	Active      any `json:"active"`
	Priority    any `json:"priority"`
	Description any `json:"description"`
	WorkStart   any `json:"work_start"`
	WorkEnd     any `json:"work_end"`
	SysID       any `json:"sys_id"`
}

// listResponse is the body of GET /api/now/table/<table>.
type listResponse struct {
	Result *[]record `json:"result"`
}

// singleResponse is the body of POST /api/now/table/<table>.
type singleResponse struct {
	Result *record `json:"result"`
}

// toTicket renames a source record into a ChangeTicket.
func (r record) toTicket() model.ChangeTicket {
	return model.ChangeTicket{
		Number:      r.Number,
		Active:      r.Active,
		Priority:    r.Priority,
		Description: r.Description,
		WorkStart:   r.WorkStart,
		WorkEnd:     r.WorkEnd,
		Key:         r.SysID,
	}
}
