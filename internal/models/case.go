package models

import "time"

type Connectivity string

const (
	ConnectivityStable   Connectivity = "Stable"
	ConnectivityUnstable Connectivity = "Unstable"
	ConnectivityUnknown  Connectivity = "Unknown"
)

type CaseStatus string

const (
	StatusPending   CaseStatus = "Pending"
	StatusOverdue   CaseStatus = "Overdue"
	StatusCompleted CaseStatus = "Completed"
	StatusOnHold    CaseStatus = "OnHold"
)

// Open reports whether a case in this status still counts against the
// one-open-case-per-lead rule. Overdue is user-set, never derived from the
// due date.
func (s CaseStatus) Open() bool { return s != StatusCompleted }

type Case struct {
	ID           uint         `json:"id" gorm:"primaryKey"`
	LeadCkt      string       `json:"leadCkt" gorm:"column:lead_ckt;not null;index"`
	IPAddress    string       `json:"ipAddress" gorm:"column:ip_address"`
	Connectivity Connectivity `json:"connectivity" gorm:"not null"`
	AssignedDate time.Time    `json:"assignedDate" gorm:"not null"`
	DueDate      time.Time    `json:"dueDate" gorm:"not null"`
	CaseRemarks  string       `json:"caseRemarks"`
	Status       CaseStatus   `json:"status" gorm:"not null;index"`
	TimeSpent    int          `json:"timeSpent"`
	Device       string       `json:"device"`
	CreatedBy    uint         `json:"createdBy" gorm:"not null;index"`
	AssignedTo   *uint        `json:"assignedTo" gorm:"index"`
	CreatedAt    time.Time    `json:"createdAt"`
	LastUpdated  time.Time    `json:"lastUpdated" gorm:"column:last_updated"`

	// Display fields joined in by queries, never stored.
	CreatedByUser  string  `json:"createdByUser" gorm:"-"`
	AssignedToUser *string `json:"assignedToUser" gorm:"-"`
	CompanyName    string  `json:"companyName,omitempty" gorm:"-"`
}

func (Case) TableName() string { return "cases" }

// CaseUpdate carries a partial case update. Nil fields are left untouched.
// An AssignedTo of 0 clears the assignee.
type CaseUpdate struct {
	IPAddress    *string
	Connectivity *Connectivity
	AssignedDate *time.Time
	DueDate      *time.Time
	CaseRemarks  *string
	Status       *CaseStatus
	TimeSpent    *int
	Device       *string
	AssignedTo   *uint
}

// CaseScope filters a case listing. A nil AssigneeID means every row
// (admin view); otherwise only rows assigned to that user are returned.
type CaseScope struct {
	AssigneeID *uint
}
