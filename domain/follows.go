package domain

import "time"

// Follow is an accepted directed edge: Follower follows Followed.
type Follow struct {
	Id         int64
	FollowerId int64
	FollowedId int64
	CreatedAt  time.Time
}

// FollowRequest is a pending edge. It is deleted on accept (after the Follow
// is created) or on reject.
type FollowRequest struct {
	Id          int64
	RequesterId int64
	RequesteeId int64
	CreatedAt   time.Time
}
