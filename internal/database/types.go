package database

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// FaultStatus is the lifecycle state of a fault. The transition graph is
// enforced by the lifecycle package, not by storage.
type FaultStatus string

const (
	FaultOpen        FaultStatus = "open"
	FaultInTreatment FaultStatus = "in_treatment"
	FaultClosed      FaultStatus = "closed"
)

// Valid reports whether s is a known fault status.
func (s FaultStatus) Valid() bool {
	switch s {
	case FaultOpen, FaultInTreatment, FaultClosed:
		return true
	}
	return false
}

// FaultType is the closed set of fault categories.
type FaultType string

const (
	FaultTypeCamera        FaultType = "camera"
	FaultTypeFence         FaultType = "fence"
	FaultTypeGate          FaultType = "gate"
	FaultTypeLighting      FaultType = "lighting"
	FaultTypeSensor        FaultType = "sensor"
	FaultTypePower         FaultType = "power"
	FaultTypeCommunication FaultType = "communication"
	FaultTypeOther         FaultType = "other"
)

// Valid reports whether t is a known fault type.
func (t FaultType) Valid() bool {
	switch t {
	case FaultTypeCamera, FaultTypeFence, FaultTypeGate, FaultTypeLighting,
		FaultTypeSensor, FaultTypePower, FaultTypeCommunication, FaultTypeOther:
		return true
	}
	return false
}

// RequiresDescription reports whether faults of this type must carry free
// text. Only the catch-all category has nothing else identifying it.
func (t FaultType) RequiresDescription() bool {
	return t == FaultTypeOther
}

// AuditFields are the common row audit columns
type AuditFields struct {
	CreatedAt time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt time.Time  `db:"updated_at" json:"updated_at"`
	DeletedAt *time.Time `db:"deleted_at" json:"deleted_at,omitempty"`
}

// Fault represents a physical-security fault on a site. Version backs the
// optimistic lock on status and escalation updates.
type Fault struct {
	ID                   string      `db:"id" json:"id"`
	Site                 string      `db:"site" json:"site"`
	Type                 FaultType   `db:"type" json:"type"`
	Description          string      `db:"description" json:"description"`
	IsCritical           bool        `db:"is_critical" json:"is_critical"`
	IsPartiallyDisabling bool        `db:"is_partially_disabling" json:"is_partially_disabling"`
	Status               FaultStatus `db:"status" json:"status"`
	ReportedTime         time.Time   `db:"reported_time" json:"reported_time"`
	ReportedBy           string      `db:"reported_by" json:"reported_by"`
	Technician           *string     `db:"technician" json:"technician,omitempty"`
	LastUpdatedBy        string      `db:"last_updated_by" json:"last_updated_by"`
	LastUpdatedTime      time.Time   `db:"last_updated_time" json:"last_updated_time"`
	LastEmailTime        *time.Time  `db:"last_email_time" json:"last_email_time,omitempty"`
	ClosedTime           *time.Time  `db:"closed_time" json:"closed_time,omitempty"`
	ClosedBy             *string     `db:"closed_by" json:"closed_by,omitempty"`
	Version              int         `db:"version" json:"version"`
	AuditFields
}

// Inspection is a submitted inspection or drill. SchemaVersion pins the
// frozen schema the answers were validated against.
type Inspection struct {
	ID            string    `db:"id" json:"id"`
	Site          string    `db:"site" json:"site"`
	SchemaID      string    `db:"schema_id" json:"schema_id"`
	SchemaVersion int       `db:"schema_version" json:"schema_version"`
	Inspector     string    `db:"inspector" json:"inspector"`
	SubmittedAt   time.Time `db:"submitted_at" json:"submitted_at"`
	Answers       AnswerMap `db:"answers" json:"answers"`
	AuditFields
}

// FaultLink joins an inspection, a fault and the boolean field whose failure
// raised or referenced the fault. Unique per (inspection, fault).
type FaultLink struct {
	InspectionID string    `db:"inspection_id" json:"inspection_id"`
	FaultID      string    `db:"fault_id" json:"fault_id"`
	FieldID      string    `db:"field_id" json:"field_id"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}

// Notification is an audit row for a dispatched escalation email
type Notification struct {
	ID        string     `db:"id" json:"id"`
	FaultID   string     `db:"fault_id" json:"fault_id"`
	Channel   string     `db:"channel" json:"channel"`
	Recipient string     `db:"recipient" json:"recipient"`
	Subject   string     `db:"subject" json:"subject"`
	Content   string     `db:"content" json:"content"`
	Status    string     `db:"status" json:"status"`
	SentAt    *time.Time `db:"sent_at" json:"sent_at,omitempty"`
	Error     *string    `db:"error" json:"error,omitempty"`
	CreatedAt time.Time  `db:"created_at" json:"created_at"`
}

// Notification statuses
const (
	NotificationPending = "pending"
	NotificationSent    = "sent"
	NotificationFailed  = "failed"
)

// FaultStats represents fault statistics
type FaultStats struct {
	Total       int `db:"total" json:"total"`
	Open        int `db:"open" json:"open"`
	InTreatment int `db:"in_treatment" json:"in_treatment"`
	Closed      int `db:"closed" json:"closed"`
	Critical    int `db:"critical" json:"critical"`
	Overdue     int `db:"overdue" json:"overdue"`
}

// Filter represents common list filtering options
type Filter struct {
	Site     string
	Status   string
	Limit    int
	Offset   int
	DateFrom *time.Time
	DateTo   *time.Time
}

// AnswerMap holds submitted answers keyed by field id, stored as JSONB.
type AnswerMap map[string]string

// Value implements driver.Valuer for JSONB storage.
func (m AnswerMap) Value() (driver.Value, error) {
	if m == nil {
		return json.Marshal(map[string]string{})
	}
	return json.Marshal(m)
}

// Scan implements sql.Scanner for JSONB storage.
func (m *AnswerMap) Scan(value interface{}) error {
	if value == nil {
		*m = nil
		return nil
	}
	switch v := value.(type) {
	case []byte:
		return json.Unmarshal(v, m)
	case string:
		return json.Unmarshal([]byte(v), m)
	default:
		return fmt.Errorf("cannot scan %T into AnswerMap", value)
	}
}
