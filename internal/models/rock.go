package models

import (
	"math"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/AnshRaj112/rockhunter-backend/pkg/utils"
)

type RockStatus string

const (
	StatusHidden RockStatus = "hidden"
	StatusFound  RockStatus = "found"
)

// CloudSyncStatus is bookkeeping for the snapshot fallback only.
type CloudSyncStatus string

const (
	SyncPending CloudSyncStatus = "pending"
	SyncShared  CloudSyncStatus = "shared"
)

// AnonymousFinder is recorded when nobody is signed in and no finder name is given.
const AnonymousFinder = "Anonymous"

// Rock is a hidden painted rock pinned on the map.
type Rock struct {
	ID          string     `bson:"_id" json:"id"`
	Name        string     `bson:"name" json:"name"`
	Description string     `bson:"description,omitempty" json:"description"`
	Lat         float64    `bson:"lat" json:"lat"`
	Lng         float64    `bson:"lng" json:"lng"`
	Photos      []string   `bson:"photos,omitempty" json:"photos"`
	Timestamp   time.Time  `bson:"timestamp" json:"timestamp"`
	Status      RockStatus `bson:"status" json:"status"`

	// Set on the hidden -> found transition
	FoundBy        string     `bson:"foundBy,omitempty" json:"foundBy,omitempty"`
	FoundTimestamp *time.Time `bson:"foundTimestamp,omitempty" json:"foundTimestamp,omitempty"`
	FoundPhoto     string     `bson:"foundPhoto,omitempty" json:"foundPhoto,omitempty"`
	FoundNotes     string     `bson:"foundNotes,omitempty" json:"foundNotes,omitempty"`
	FoundByUserID  string     `bson:"foundByUserId,omitempty" json:"foundByUserId,omitempty"`

	// Attribution, set once at creation
	PostedBy         string `bson:"postedBy,omitempty" json:"postedBy,omitempty"`
	PostedByUsername string `bson:"postedByUsername,omitempty" json:"postedByUsername,omitempty"`
	IsAnonymous      bool   `bson:"isAnonymous" json:"isAnonymous"`

	SharedTimestamp *time.Time      `bson:"sharedTimestamp,omitempty" json:"sharedTimestamp,omitempty"`
	CloudSyncStatus CloudSyncStatus `bson:"cloudSyncStatus,omitempty" json:"cloudSyncStatus,omitempty"`
}

func (r Rock) HasPhotos() bool {
	return len(r.Photos) > 0
}

func (r Rock) IsFound() bool {
	return r.Status == StatusFound
}

// Clone returns a copy that shares no slices or pointers with r.
func (r Rock) Clone() Rock {
	out := r
	if r.Photos != nil {
		out.Photos = append([]string(nil), r.Photos...)
	}
	if r.FoundTimestamp != nil {
		t := *r.FoundTimestamp
		out.FoundTimestamp = &t
	}
	if r.SharedTimestamp != nil {
		t := *r.SharedTimestamp
		out.SharedTimestamp = &t
	}
	return out
}

// WithoutPhotos drops every image payload, used when the local store is full.
func (r Rock) WithoutPhotos() Rock {
	out := r.Clone()
	out.Photos = []string{}
	out.FoundPhoto = ""
	return out
}

// RockDraft is the add-rock form before validation.
type RockDraft struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Lat         *float64 `json:"lat"`
	Lng         *float64 `json:"lng"`
	Photos      []string `json:"photos"`
}

// Validate rejects drafts that cannot be placed on the map.
func (d RockDraft) Validate() error {
	if strings.TrimSpace(d.Name) == "" {
		return &utils.ValidationError{Field: "name", Message: "Please enter a rock name"}
	}
	if d.Lat == nil || d.Lng == nil {
		return &utils.ValidationError{Field: "location", Message: "No location selected"}
	}
	if !ValidCoordinates(*d.Lat, *d.Lng) {
		return &utils.ValidationError{Field: "location", Message: "Location is outside the valid coordinate range"}
	}
	return nil
}

// ValidCoordinates reports whether lat/lng are finite and on the globe.
func ValidCoordinates(lat, lng float64) bool {
	if math.IsNaN(lat) || math.IsNaN(lng) || math.IsInf(lat, 0) || math.IsInf(lng, 0) {
		return false
	}
	return lat >= -90 && lat <= 90 && lng >= -180 && lng <= 180
}

// NewRock validates the draft and builds a hidden rock attributed to actor.
// The rock is posted anonymously when actor is nil or postAsUser is false.
func NewRock(draft RockDraft, actor *User, postAsUser bool, id string, now time.Time) (Rock, error) {
	if err := draft.Validate(); err != nil {
		return Rock{}, err
	}

	photos := []string{}
	for _, p := range draft.Photos {
		if p != "" {
			photos = append(photos, p)
		}
	}

	rock := Rock{
		ID:          id,
		Name:        strings.TrimSpace(draft.Name),
		Description: strings.TrimSpace(draft.Description),
		Lat:         *draft.Lat,
		Lng:         *draft.Lng,
		Photos:      photos,
		Timestamp:   now.UTC(),
		Status:      StatusHidden,
	}
	if actor != nil && postAsUser {
		rock.PostedBy = actor.ID
		rock.PostedByUsername = actor.Username
	} else {
		rock.IsAnonymous = true
	}
	return rock, nil
}

// FoundReport is what a finder submits when marking a rock found.
type FoundReport struct {
	FinderName string `json:"finderName"`
	Notes      string `json:"notes"`
	Photo      string `json:"photo"`
}

// MarkFound moves rock to found. The finder name falls back to the signed-in
// username and then to AnonymousFinder.
func MarkFound(rock Rock, report FoundReport, actor *User, now time.Time) Rock {
	out := rock.Clone()
	foundAt := now.UTC()

	finder := strings.TrimSpace(report.FinderName)
	if finder == "" && actor != nil {
		finder = actor.Username
	}
	if finder == "" {
		finder = AnonymousFinder
	}

	out.Status = StatusFound
	out.FoundBy = finder
	out.FoundTimestamp = &foundAt
	out.FoundPhoto = report.Photo
	out.FoundNotes = strings.TrimSpace(report.Notes)
	out.FoundByUserID = ""
	if actor != nil {
		out.FoundByUserID = actor.ID
	}
	return out
}

// CanDelete reports whether user posted rock.
func CanDelete(rock Rock, user *User) bool {
	if user == nil {
		return false
	}
	if rock.PostedBy != "" && rock.PostedBy == user.ID {
		return true
	}
	return rock.PostedByUsername != "" && rock.PostedByUsername == user.Username
}

// IDSource hands out time-derived ids that never repeat within a process.
type IDSource struct {
	mu   sync.Mutex
	last int64
}

func (s *IDSource) Next(now time.Time) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	ms := now.UnixMilli()
	if ms <= s.last {
		ms = s.last + 1
	}
	s.last = ms
	return strconv.FormatInt(ms, 10)
}
