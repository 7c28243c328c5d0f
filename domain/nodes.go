package domain

import (
	"fmt"
	"strings"
	"time"
)

// NodeDirection says who pushes to whom.
type NodeDirection string

const (
	OUTGOING NodeDirection = "OUTGOING" // we push to them
	INCOMING NodeDirection = "INCOMING" // they push to us
)

type NodeStatus string

const (
	ENABLED  NodeStatus = "ENABLED"
	DISABLED NodeStatus = "DISABLED"
)

// Node is a remote federation peer with the credential used on the link.
type Node struct {
	Host      string
	Username  string
	Password  string
	Direction NodeDirection
	Status    NodeStatus
	CreatedAt time.Time
}

func (n *Node) Enabled() bool {
	return n.Status == ENABLED
}

// ParseDirection accepts INCOMING and OUTGOING case-insensitively.
func ParseDirection(s string) (NodeDirection, error) {
	switch d := NodeDirection(strings.ToUpper(strings.TrimSpace(s))); d {
	case INCOMING, OUTGOING:
		return d, nil
	}
	return "", fmt.Errorf("unknown node direction %q", s)
}
