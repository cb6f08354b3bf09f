package models

import (
	"time"
)

type User struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"passwordHash,omitempty"`
	JoinDate     time.Time `json:"joinDate"`

	// Derived on read from the rock list
	RocksPosted int `json:"rocksPosted"`
	RocksFound  int `json:"rocksFound"`
}

// Public strips the password hash.
func (u User) Public() User {
	u.PasswordHash = ""
	return u
}

type Stats struct {
	Total  int `json:"total"`
	Found  int `json:"found"`
	Hidden int `json:"hidden"`
}

func ComputeStats(rocks []Rock) Stats {
	var s Stats
	s.Total = len(rocks)
	for _, r := range rocks {
		if r.IsFound() {
			s.Found++
		}
	}
	s.Hidden = s.Total - s.Found
	return s
}

// Profile is a user's public record with their posted and found rocks.
type Profile struct {
	User   User   `json:"user"`
	Posted []Rock `json:"posted"`
	Found  []Rock `json:"found"`
}

func ProfileFor(user User, rocks []Rock) Profile {
	p := Profile{Posted: []Rock{}, Found: []Rock{}}
	for _, r := range rocks {
		if r.PostedBy == user.ID {
			p.Posted = append(p.Posted, r)
		}
		if r.FoundByUserID != "" && r.FoundByUserID == user.ID {
			p.Found = append(p.Found, r)
		}
	}
	user = user.Public()
	user.RocksPosted = len(p.Posted)
	user.RocksFound = len(p.Found)
	p.User = user
	return p
}
