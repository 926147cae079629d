// Package comments implements the comment-mutation protocol embedded in
// the chapter documents: locating a comment inside a chapter's embedded
// list, enforcing per-comment ownership, and performing read-modify-write
// updates against the document store without transactions.
package comments

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"secularreview/api/internal/docstore"
	"secularreview/api/internal/store"
)

var (
	ErrChapterNotFound = errors.New("chapter not found")
	// ErrCommentNotFoundOrNotOwned deliberately collapses "no such comment"
	// and "comment owned by someone else" into one outcome so callers
	// cannot probe which comments exist under other identities.
	ErrCommentNotFoundOrNotOwned = errors.New("comment not found")
	ErrValidationFailed          = errors.New("invalid comment payload")
	ErrUpdateFailed              = errors.New("comment update failed")
	ErrDeleteFailed              = errors.New("comment delete failed")
)

// Payload carries the client-writable part of a comment. Author identity is
// never taken from it.
type Payload struct {
	Content string `json:"content"`
}

// Engine performs the locate/authorize/merge/persist sequence for the
// comments embedded in chapter documents.
type Engine struct {
	chapters *store.Controller
	now      func() time.Time
}

func NewEngine(chapters *store.Controller) *Engine {
	return &Engine{chapters: chapters, now: time.Now}
}

// Create appends a new comment to the chapter's list with a single atomic
// $push; no read is needed because creation has no ownership conflict.
func (e *Engine) Create(ctx context.Context, chapterID string, payload Payload, caller store.User) (primitive.ObjectID, error) {
	oid, err := primitive.ObjectIDFromHex(chapterID)
	if err != nil {
		return primitive.NilObjectID, fmt.Errorf("%w: chapter id must be a hex object id", ErrValidationFailed)
	}
	if strings.TrimSpace(payload.Content) == "" {
		return primitive.NilObjectID, fmt.Errorf("%w: content is required", ErrValidationFailed)
	}

	now := e.now()
	comment := store.Comment{
		ID:                primitive.NewObjectID(),
		UserName:          caller.UserName,
		ProfilePictureURL: caller.ProfilePictureURL,
		Content:           payload.Content,
		DateAdded:         now,
		DateUpdated:       now,
	}
	doc, err := store.ToDocument(comment)
	if err != nil {
		return primitive.NilObjectID, err
	}

	result, err := e.chapters.UpdateOne(ctx, store.ChaptersCollection,
		bson.M{"_id": oid},
		bson.M{"$push": bson.M{"comments": doc}},
	)
	if err != nil {
		return primitive.NilObjectID, fmt.Errorf("append comment: %w", err)
	}
	if result.MatchedCount == 0 {
		return primitive.NilObjectID, ErrChapterNotFound
	}
	return comment.ID, nil
}

// Update replaces an owned comment in place, preserving the order of all
// other comments. The ownership check needs the stored author, so this is
// a read-modify-write: the window between the read and the final $set can
// lose a concurrent writer's change to another comment in the same chapter
// (the delete path shows the atomic alternative).
func (e *Engine) Update(ctx context.Context, chapterID, commentID string, payload Payload, caller store.User) error {
	oid, err := primitive.ObjectIDFromHex(chapterID)
	if err != nil {
		return fmt.Errorf("%w: chapter id must be a hex object id", ErrValidationFailed)
	}
	cid, err := primitive.ObjectIDFromHex(commentID)
	if err != nil {
		return fmt.Errorf("%w: comment id must be a hex object id", ErrValidationFailed)
	}

	raw, err := e.chapters.FindOne(ctx, store.ChaptersCollection, bson.M{"_id": oid})
	if errors.Is(err, docstore.ErrNotFound) {
		return ErrChapterNotFound
	}
	if err != nil {
		return fmt.Errorf("load chapter: %w", err)
	}
	var chapter store.Chapter
	if err := store.FromDocument(raw, &chapter); err != nil {
		return fmt.Errorf("decode chapter: %w", err)
	}

	// First element matching both id and stored author wins, in stored
	// (insertion) order.
	index := -1
	for i, existing := range chapter.Comments {
		if existing.ID == cid && existing.UserName == caller.UserName {
			index = i
			break
		}
	}
	if index < 0 {
		return ErrCommentNotFoundOrNotOwned
	}

	if strings.TrimSpace(payload.Content) == "" {
		return fmt.Errorf("%w: content is required", ErrValidationFailed)
	}

	existing := chapter.Comments[index]
	chapter.Comments[index] = store.Comment{
		ID:                existing.ID,
		UserName:          caller.UserName,
		ProfilePictureURL: caller.ProfilePictureURL,
		Content:           payload.Content,
		DateAdded:         existing.DateAdded,
		DateUpdated:       e.now(),
	}

	list := make(bson.A, 0, len(chapter.Comments))
	for _, comment := range chapter.Comments {
		doc, err := store.ToDocument(comment)
		if err != nil {
			return err
		}
		list = append(list, doc)
	}

	result, err := e.chapters.UpdateOne(ctx, store.ChaptersCollection,
		bson.M{"_id": oid},
		bson.M{"$set": bson.M{"comments": list}},
	)
	if err != nil {
		return fmt.Errorf("persist comments: %w", err)
	}
	if result.ModifiedCount == 0 {
		// The chapter existed at read time but the write changed nothing,
		// e.g. the document went away between read and write.
		return ErrUpdateFailed
	}
	return nil
}

// Delete removes an owned comment with a single conditional $pull: the
// filter requires an embedded element matching (id, author), so chapter
// missing, comment missing, and wrong owner all collapse into one failure.
func (e *Engine) Delete(ctx context.Context, chapterID, commentID string, caller store.User) error {
	// A malformed id can never match a stored comment, so it reports the
	// same failure as a missing one.
	oid, err := primitive.ObjectIDFromHex(chapterID)
	if err != nil {
		return ErrDeleteFailed
	}
	cid, err := primitive.ObjectIDFromHex(commentID)
	if err != nil {
		return ErrDeleteFailed
	}

	member := bson.M{"_id": cid, "user_name": caller.UserName}
	result, err := e.chapters.UpdateOne(ctx, store.ChaptersCollection,
		bson.M{"_id": oid, "comments": bson.M{"$elemMatch": member}},
		bson.M{"$pull": bson.M{"comments": member}},
	)
	if err != nil {
		return fmt.Errorf("pull comment: %w", err)
	}
	if result.ModifiedCount == 0 {
		return ErrDeleteFailed
	}
	return nil
}
