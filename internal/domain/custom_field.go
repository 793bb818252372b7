package domain

import "time"

// CustomField is one string-valued attribute attached to a host record.
// There is at most one row per (OwnerID, Name).
type CustomField struct {
	OwnerID   int64     `bson:"owner_id" json:"owner_id"`
	Name      string    `bson:"name" json:"name"`
	Value     string    `bson:"value" json:"value"`
	CreatedAt time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`
}

// Fields is the loaded custom-field bag of a single record.
type Fields map[string]string

func (f Fields) Get(name string) (string, bool) {
	if f == nil {
		return "", false
	}
	v, ok := f[name]
	return v, ok
}

// FieldChange sets a field, or deletes it when Value is nil.
type FieldChange struct {
	OwnerID int64
	Name    string
	Value   *string
}

func SetField(owner int64, name, value string) FieldChange {
	return FieldChange{OwnerID: owner, Name: name, Value: &value}
}

func DeleteField(owner int64, name string) FieldChange {
	return FieldChange{OwnerID: owner, Name: name}
}

// TopicFieldsUpdate is applied atomically: the topic's Version must still
// equal Version, otherwise nothing is written and ErrConflict is returned.
type TopicFieldsUpdate struct {
	TopicID int64
	Version int64
	Topic   []FieldChange
	Posts   []FieldChange
}

// FieldCountQuery counts topic custom fields named Name created in [From, To].
type FieldCountQuery struct {
	Name       string
	From       time.Time
	To         time.Time
	CategoryID *int64
}

type DayCount struct {
	Date  string `bson:"_id" json:"date"` // YYYY-MM-DD, UTC
	Count int64  `bson:"count" json:"count"`
}
