// Package reconcile merges rock lists from the local, remote and snapshot
// stores into one list keyed by rock id. It performs no I/O.
package reconcile

import (
	"github.com/AnshRaj112/rockhunter-backend/internal/models"
)

// Reason records which rule decided an incoming rock's fate.
type Reason int

const (
	// ReasonKeep leaves the existing entry untouched.
	ReasonKeep Reason = iota
	// ReasonInsert adds a rock whose id was not present.
	ReasonInsert
	// ReasonPhotos overwrites because incoming has photos and existing has none.
	ReasonPhotos
	// ReasonFound overwrites because incoming was found and existing was not.
	ReasonFound
	// ReasonNewerShare overwrites because incoming was shared more recently.
	ReasonNewerShare
)

func (r Reason) String() string {
	switch r {
	case ReasonKeep:
		return "keep"
	case ReasonInsert:
		return "insert"
	case ReasonPhotos:
		return "photos"
	case ReasonFound:
		return "found"
	case ReasonNewerShare:
		return "newer-share"
	default:
		return "unknown"
	}
}

// Overwrites reports whether the reason replaces an existing entry.
func (r Reason) Overwrites() bool {
	return r == ReasonPhotos || r == ReasonFound || r == ReasonNewerShare
}

// Decide compares an incoming rock against the existing entry with the same id.
// Rules are checked in order and the first match wins.
func Decide(existing, incoming models.Rock) Reason {
	if incoming.HasPhotos() && !existing.HasPhotos() {
		return ReasonPhotos
	}
	if incoming.FoundBy != "" && existing.FoundBy == "" {
		return ReasonFound
	}
	if incoming.SharedTimestamp != nil &&
		(existing.SharedTimestamp == nil || incoming.SharedTimestamp.After(*existing.SharedTimestamp)) {
		return ReasonNewerShare
	}
	return ReasonKeep
}

// Overlay is a shallow merge: every field set on incoming replaces the one on
// existing, unset fields are kept. The found fields are replaced together
// whenever incoming carries a Status. Identity, creation time and attribution
// always come from existing.
func Overlay(existing, incoming models.Rock) models.Rock {
	out := existing.Clone()
	in := incoming.Clone()

	if in.Name != "" {
		out.Name = in.Name
	}
	if in.Description != "" {
		out.Description = in.Description
	}
	if in.Lat != 0 || in.Lng != 0 {
		out.Lat = in.Lat
		out.Lng = in.Lng
	}
	if len(in.Photos) > 0 {
		out.Photos = in.Photos
	}
	if in.Status != "" {
		// The found fields travel with Status so a hidden copy never keeps
		// a finder.
		out.Status = in.Status
		out.FoundBy = in.FoundBy
		out.FoundTimestamp = in.FoundTimestamp
		out.FoundPhoto = in.FoundPhoto
		out.FoundNotes = in.FoundNotes
		out.FoundByUserID = in.FoundByUserID
	} else {
		overlayFound(&out, in)
	}
	if in.SharedTimestamp != nil {
		out.SharedTimestamp = in.SharedTimestamp
	}
	if in.CloudSyncStatus != "" {
		out.CloudSyncStatus = in.CloudSyncStatus
	}
	if out.Timestamp.IsZero() {
		out.Timestamp = in.Timestamp
	}
	return out
}

func overlayFound(out *models.Rock, in models.Rock) {
	if in.FoundBy != "" {
		out.FoundBy = in.FoundBy
	}
	if in.FoundTimestamp != nil {
		out.FoundTimestamp = in.FoundTimestamp
	}
	if in.FoundPhoto != "" {
		out.FoundPhoto = in.FoundPhoto
	}
	if in.FoundNotes != "" {
		out.FoundNotes = in.FoundNotes
	}
	if in.FoundByUserID != "" {
		out.FoundByUserID = in.FoundByUserID
	}
}

// Change is one applied decision, kept for logging.
type Change struct {
	ID     string
	Name   string
	Reason Reason
}

// Result is the merged list plus what happened to it.
type Result struct {
	Rocks   []models.Rock
	Changes []Change
	Added   int
	Updated int
}

// Changed reports whether the merge touched the list.
func (r Result) Changed() bool {
	return r.Added > 0 || r.Updated > 0
}

// Merge folds incoming into current. Existing order is kept and new rocks
// are appended in arrival order. Duplicate ids inside incoming collapse to
// the last occurrence, which keeps repeated merges of one batch idempotent.
// Neither input is modified.
func Merge(current, incoming []models.Rock) Result {
	res := Result{Rocks: make([]models.Rock, 0, len(current)+len(incoming))}

	index := make(map[string]int, len(current)+len(incoming))
	for _, r := range current {
		if _, dup := index[r.ID]; dup {
			continue
		}
		index[r.ID] = len(res.Rocks)
		res.Rocks = append(res.Rocks, r.Clone())
	}

	for _, in := range dedupe(incoming) {
		if in.ID == "" {
			continue
		}
		i, ok := index[in.ID]
		if !ok {
			index[in.ID] = len(res.Rocks)
			res.Rocks = append(res.Rocks, in.Clone())
			res.Added++
			res.Changes = append(res.Changes, Change{ID: in.ID, Name: in.Name, Reason: ReasonInsert})
			continue
		}

		reason := Decide(res.Rocks[i], in)
		if !reason.Overwrites() {
			continue
		}
		res.Rocks[i] = Overlay(res.Rocks[i], in)
		res.Updated++
		res.Changes = append(res.Changes, Change{ID: in.ID, Name: in.Name, Reason: reason})
	}

	return res
}

func dedupe(rocks []models.Rock) []models.Rock {
	last := make(map[string]int, len(rocks))
	for i, r := range rocks {
		last[r.ID] = i
	}
	out := make([]models.Rock, 0, len(last))
	for i, r := range rocks {
		if last[r.ID] == i {
			out = append(out, r)
		}
	}
	return out
}
