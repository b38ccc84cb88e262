package domain

import "github.com/google/uuid"

// ActivityBundle is everything created together with a new activity.
type ActivityBundle struct {
	Activity     *Activity
	Conversation *Conversation
	Host         *ConversationParticipant
	TagSlugs     []string
}

type DeleteResult struct {
	Activity       *Activity    `json:"activity"`
	RemovedMembers []Membership `json:"removed_members"`
}

// MemberIDs returns the user IDs of the removed members.
func (r *DeleteResult) MemberIDs() []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(r.RemovedMembers))
	for _, m := range r.RemovedMembers {
		ids = append(ids, m.UserID)
	}
	return ids
}
