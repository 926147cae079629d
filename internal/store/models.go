package store

import (
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// HolyBook identifies the scripture a chapter belongs to.
type HolyBook int

const (
	OldTestament HolyBook = 1
	NewTestament HolyBook = 2
	Quran        HolyBook = 3
)

func (b HolyBook) Valid() bool {
	return b == OldTestament || b == NewTestament || b == Quran
}

type Role string

const (
	RoleDefault Role = "default"
	RoleAdmin   Role = "admin"
)

type Gender string

const (
	GenderMale   Gender = "male"
	GenderFemale Gender = "female"
	GenderOther  Gender = "other"
)

type Religion string

const (
	ReligionJewish    Religion = "jewish"
	ReligionMuslim    Religion = "muslim"
	ReligionChristian Religion = "christian"
	ReligionAtheist   Religion = "atheist"
)

// Comment is embedded in its parent chapter's document; it has no
// collection of its own. The id is assigned by the mutation engine and the
// author fields are stamped from the authenticated caller, never from
// client input.
type Comment struct {
	ID                primitive.ObjectID `bson:"_id" json:"_id"`
	UserName          string             `bson:"user_name" json:"user_name"`
	ProfilePictureURL string             `bson:"profile_picture_url" json:"profile_picture_url"`
	Content           string             `bson:"content" json:"content"`
	DateAdded         time.Time          `bson:"date_added" json:"date_added"`
	DateUpdated       time.Time          `bson:"date_updated" json:"date_updated"`
}

// Chapter owns its embedded comment list. Comments is optional: absent is
// distinct from empty.
type Chapter struct {
	ID             primitive.ObjectID `bson:"_id,omitempty" json:"_id,omitempty"`
	Author         string             `bson:"author" json:"author"`
	HolyBook       HolyBook           `bson:"holy_book" json:"holy_book"`
	Book           string             `bson:"book" json:"book"`
	ChapterNumber  int                `bson:"chapter_number" json:"chapter_number"`
	ChapterLetters string             `bson:"chapter_letters" json:"chapter_letters"`
	Verses         []string           `bson:"verses" json:"verses"`
	Analysis       string             `bson:"analysis" json:"analysis"`
	Rating         map[string]int     `bson:"rating" json:"rating"`
	Tags           []string           `bson:"tags" json:"tags"`
	Comments       []Comment          `bson:"comments,omitempty" json:"comments,omitempty"`
	DateAdded      time.Time          `bson:"date_added" json:"date_added"`
	DateUpdated    time.Time          `bson:"date_updated" json:"date_updated"`
}

// ChapterUpdate carries the full non-comment field set for the admin
// "update chapter" replace. The comment list is never writable through it.
type ChapterUpdate struct {
	Author         string         `bson:"author" json:"author"`
	HolyBook       HolyBook       `bson:"holy_book" json:"holy_book"`
	Book           string         `bson:"book" json:"book"`
	ChapterNumber  int            `bson:"chapter_number" json:"chapter_number"`
	ChapterLetters string         `bson:"chapter_letters" json:"chapter_letters"`
	Verses         []string       `bson:"verses" json:"verses"`
	Analysis       string         `bson:"analysis" json:"analysis"`
	Rating         map[string]int `bson:"rating" json:"rating"`
	Tags           []string       `bson:"tags" json:"tags"`
}

type User struct {
	ID                primitive.ObjectID `bson:"_id,omitempty" json:"_id,omitempty"`
	UserName          string             `bson:"user_name" json:"user_name"`
	PasswordHash      string             `bson:"password" json:"-"`
	ProfilePictureURL string             `bson:"profile_picture_url" json:"profile_picture_url"`
	Email             string             `bson:"email" json:"email"`
	Age               *int               `bson:"age,omitempty" json:"age,omitempty"`
	Gender            Gender             `bson:"gender" json:"gender"`
	Religion          Religion           `bson:"religion" json:"religion"`
	Role              Role               `bson:"role" json:"role"`
	DateAdded         time.Time          `bson:"date_added" json:"date_added"`
}

// ToDocument converts a model to the bson document shape the store adapter
// accepts.
func ToDocument(v any) (bson.M, error) {
	data, err := bson.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode document: %w", err)
	}
	var doc bson.M
	if err := bson.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode document: %w", err)
	}
	return doc, nil
}

// FromDocument decodes a stored bson document into a model.
func FromDocument(doc bson.M, out any) error {
	data, err := bson.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode document: %w", err)
	}
	if err := bson.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode document: %w", err)
	}
	return nil
}
