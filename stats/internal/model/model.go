package model

import (
	"time"
)

// Stats is the per-member aggregation served to the admin dashboard.
type Stats struct {
	MemberUid   string    `json:"memberUid" db:"member_uid"`
	LastUpdated time.Time `json:"lastUpdated" db:"last_updated"`
	CntTotal    int       `json:"cntTotal" db:"cnt_total"`
	CntIssued   int       `json:"cntIssued" db:"cnt_issued"`
	CntReturned int       `json:"cntReturned" db:"cnt_returned"`
	FinesTotal  float64   `json:"finesTotal" db:"fines_total"`
}

type StatsInfo struct {
	Data []Stats `json:"data"`
}
