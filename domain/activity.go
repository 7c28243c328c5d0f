package domain

import "time"

// InboundActivity is the audit record of an activity accepted by an inbox.
type InboundActivity struct {
	Id           string
	ActivityType string
	ObjectURI    string
	TargetURI    string
	OriginHost   string
	RawJSON      string
	CreatedAt    time.Time
}
