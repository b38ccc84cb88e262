package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

type ActivityKind string

const (
	KindGroup    ActivityKind = "group"
	KindOneOnOne ActivityKind = "one-on-one"
)

func (k ActivityKind) IsValid() bool {
	switch k {
	case KindGroup, KindOneOnOne:
		return true
	}
	return false
}

type ActivityStatus string

const (
	StatusOpen      ActivityStatus = "open"
	StatusFull      ActivityStatus = "full"
	StatusCompleted ActivityStatus = "completed"
	StatusDeleted   ActivityStatus = "deleted"
)

// IsLive reports whether the activity can still gain or lose members.
func (s ActivityStatus) IsLive() bool {
	return s == StatusOpen || s == StatusFull
}

type CostRule string

const (
	CostEveryonePays CostRule = "everyone_pays"
	CostHostPays     CostRule = "host_pays"
	CostSplit        CostRule = "split"
)

func (c CostRule) IsValid() bool {
	switch c {
	case CostEveryonePays, CostHostPays, CostSplit:
		return true
	}
	return false
}

const (
	OneOnOneMaxMembers = 2
	MinGroupMembers    = 2
	MaxGroupMembers    = 50
	MaxJoinQuestions   = 5
)

type Activity struct {
	ID              uuid.UUID      `json:"id" db:"id"`
	HostID          uuid.UUID      `json:"host_id" db:"host_id"`
	Title           string         `json:"title" db:"title"`
	Description     string         `json:"description" db:"description"`
	Kind            ActivityKind   `json:"kind" db:"kind"`
	Status          ActivityStatus `json:"status" db:"status"`
	StartsAt        time.Time      `json:"starts_at" db:"starts_at"`
	LocationName    string         `json:"location_name" db:"location_name"`
	Latitude        float64        `json:"latitude" db:"latitude"`
	Longitude       float64        `json:"longitude" db:"longitude"`
	PublicLatitude  float64        `json:"public_latitude" db:"public_latitude"`
	PublicLongitude float64        `json:"public_longitude" db:"public_longitude"`
	CostRule        CostRule       `json:"cost_rule" db:"cost_rule"`
	MemberCount     int            `json:"member_count" db:"member_count"`
	MaxMembers      int            `json:"max_members" db:"max_members"`
	JoinQuestions   pq.StringArray `json:"join_questions" db:"join_questions"`
	CoverImageKey   *string        `json:"-" db:"cover_image_key"`
	CreatedAt       time.Time      `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at" db:"updated_at"`
}

func (a *Activity) IsHost(userID uuid.UUID) bool {
	return a.HostID == userID
}

// ActivityView is what callers see. Exact location fields are nil unless the
// viewer is the host or an approved member.
type ActivityView struct {
	ID              uuid.UUID      `json:"id"`
	HostID          uuid.UUID      `json:"host_id"`
	Title           string         `json:"title"`
	Description     string         `json:"description"`
	Kind            ActivityKind   `json:"kind"`
	Status          ActivityStatus `json:"status"`
	StartsAt        time.Time      `json:"starts_at"`
	PublicLatitude  float64        `json:"public_latitude"`
	PublicLongitude float64        `json:"public_longitude"`
	LocationName    *string        `json:"location_name,omitempty"`
	Latitude        *float64       `json:"latitude,omitempty"`
	Longitude       *float64       `json:"longitude,omitempty"`
	CostRule        CostRule       `json:"cost_rule"`
	MemberCount     int            `json:"member_count"`
	MaxMembers      int            `json:"max_members"`
	JoinQuestions   []string       `json:"join_questions"`
	CoverImageURL   *string        `json:"cover_image_url,omitempty"`
	Tags            []Tag          `json:"tags,omitempty"`
	IsHost          bool           `json:"is_host"`
	IsMember        bool           `json:"is_member"`
	CreatedAt       time.Time      `json:"created_at"`
}

func (a *Activity) View(revealLocation bool) ActivityView {
	v := ActivityView{
		ID:              a.ID,
		HostID:          a.HostID,
		Title:           a.Title,
		Description:     a.Description,
		Kind:            a.Kind,
		Status:          a.Status,
		StartsAt:        a.StartsAt,
		PublicLatitude:  a.PublicLatitude,
		PublicLongitude: a.PublicLongitude,
		CostRule:        a.CostRule,
		MemberCount:     a.MemberCount,
		MaxMembers:      a.MaxMembers,
		JoinQuestions:   []string(a.JoinQuestions),
		CreatedAt:       a.CreatedAt,
	}
	if v.JoinQuestions == nil {
		v.JoinQuestions = []string{}
	}
	if revealLocation {
		name, lat, lng := a.LocationName, a.Latitude, a.Longitude
		v.LocationName = &name
		v.Latitude = &lat
		v.Longitude = &lng
	}
	return v
}

type CreateActivityInput struct {
	Title         string       `json:"title"`
	Description   string       `json:"description"`
	Kind          ActivityKind `json:"kind"`
	StartsAt      time.Time    `json:"starts_at"`
	LocationName  string       `json:"location_name"`
	Latitude      float64      `json:"latitude"`
	Longitude     float64      `json:"longitude"`
	CostRule      CostRule     `json:"cost_rule"`
	MaxMembers    int          `json:"max_members"`
	JoinQuestions []string     `json:"join_questions"`
	CoverImageKey *string      `json:"cover_image_key,omitempty"`
	Tags          []string     `json:"tags"`
}

// UpdateActivityInput is a patch; nil fields are left untouched. Coordinates
// are not patchable because the public offset is fixed at creation.
type UpdateActivityInput struct {
	Title         *string    `json:"title,omitempty"`
	Description   *string    `json:"description,omitempty"`
	StartsAt      *time.Time `json:"starts_at,omitempty"`
	LocationName  *string    `json:"location_name,omitempty"`
	CostRule      *CostRule  `json:"cost_rule,omitempty"`
	MaxMembers    *int       `json:"max_members,omitempty"`
	JoinQuestions *[]string  `json:"join_questions,omitempty"`
}

func (in UpdateActivityInput) IsEmpty() bool {
	return in.Title == nil && in.Description == nil && in.StartsAt == nil &&
		in.LocationName == nil && in.CostRule == nil && in.MaxMembers == nil &&
		in.JoinQuestions == nil
}

// ActivityFilter narrows ListOpen. Query is a case-insensitive substring
// match on title and description.
type ActivityFilter struct {
	Kind   *ActivityKind
	HostID *uuid.UUID
	Query  string
}
