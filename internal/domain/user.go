package domain

import "time"

type User struct {
	ID        int64     `bson:"_id" json:"id"`
	Username  string    `bson:"username" json:"username"`
	Admin     bool      `bson:"admin" json:"admin"`
	Moderator bool      `bson:"moderator" json:"moderator"`
	CreatedAt time.Time `bson:"created_at" json:"created_at"`
}

// Staff reports whether the user is an admin or a moderator.
func (u *User) Staff() bool {
	return u != nil && (u.Admin || u.Moderator)
}
