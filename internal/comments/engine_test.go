package comments

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"secularreview/api/internal/docstore"
	"secularreview/api/internal/store"
)

const testDB = "testdb"

var (
	alice = store.User{UserName: "alice", ProfilePictureURL: "https://pics/alice.png"}
	bob   = store.User{UserName: "bob", ProfilePictureURL: "https://pics/bob.png"}
)

func newTestEngine(t *testing.T) (*Engine, *store.Controller) {
	t.Helper()
	controller := store.NewController(docstore.NewMemory(), testDB)
	return NewEngine(controller), controller
}

func seedChapter(t *testing.T, controller *store.Controller, comments ...store.Comment) primitive.ObjectID {
	t.Helper()
	chapter := store.Chapter{
		ID:             primitive.NewObjectID(),
		Author:         "editor",
		HolyBook:       store.OldTestament,
		Book:           "Genesis",
		ChapterNumber:  1,
		ChapterLetters: "א",
		Verses:         []string{"In the beginning"},
		Comments:       comments,
	}
	doc, err := store.ToDocument(chapter)
	if err != nil {
		t.Fatalf("encode chapter: %v", err)
	}
	if _, err := controller.InsertOne(context.Background(), store.ChaptersCollection, doc); err != nil {
		t.Fatalf("seed chapter: %v", err)
	}
	return chapter.ID
}

func loadChapter(t *testing.T, controller *store.Controller, id primitive.ObjectID) store.Chapter {
	t.Helper()
	doc, err := controller.FindOne(context.Background(), store.ChaptersCollection, bson.M{"_id": id})
	if err != nil {
		t.Fatalf("load chapter: %v", err)
	}
	var chapter store.Chapter
	if err := store.FromDocument(doc, &chapter); err != nil {
		t.Fatalf("decode chapter: %v", err)
	}
	return chapter
}

func ownedComment(user store.User, content string, added time.Time) store.Comment {
	return store.Comment{
		ID:                primitive.NewObjectID(),
		UserName:          user.UserName,
		ProfilePictureURL: user.ProfilePictureURL,
		Content:           content,
		DateAdded:         added,
		DateUpdated:       added,
	}
}

func TestCreateAppendsComment(t *testing.T) {
	engine, controller := newTestEngine(t)
	chapterID := seedChapter(t, controller)

	firstID, err := engine.Create(context.Background(), chapterID.Hex(), Payload{Content: "first"}, alice)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	secondID, err := engine.Create(context.Background(), chapterID.Hex(), Payload{Content: "second"}, bob)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if firstID == secondID {
		t.Fatal("expected distinct comment ids")
	}

	chapter := loadChapter(t, controller, chapterID)
	if len(chapter.Comments) != 2 {
		t.Fatalf("expected 2 comments, got %d", len(chapter.Comments))
	}
	got := chapter.Comments[0]
	if got.ID != firstID || got.UserName != "alice" || got.Content != "first" {
		t.Fatalf("unexpected first comment: %+v", got)
	}
	if got.ProfilePictureURL != alice.ProfilePictureURL {
		t.Fatalf("author picture not stamped from caller: %q", got.ProfilePictureURL)
	}
	if chapter.Comments[1].UserName != "bob" {
		t.Fatalf("unexpected second comment author: %q", chapter.Comments[1].UserName)
	}
}

func TestCreateChapterMissing(t *testing.T) {
	engine, _ := newTestEngine(t)

	_, err := engine.Create(context.Background(), primitive.NewObjectID().Hex(), Payload{Content: "hi"}, alice)
	if !errors.Is(err, ErrChapterNotFound) {
		t.Fatalf("expected ErrChapterNotFound, got %v", err)
	}
}

func TestCreateValidation(t *testing.T) {
	engine, controller := newTestEngine(t)
	chapterID := seedChapter(t, controller)

	if _, err := engine.Create(context.Background(), "not-a-hex-id", Payload{Content: "hi"}, alice); !errors.Is(err, ErrValidationFailed) {
		t.Fatalf("expected ErrValidationFailed for bad id, got %v", err)
	}
	if _, err := engine.Create(context.Background(), chapterID.Hex(), Payload{Content: "   "}, alice); !errors.Is(err, ErrValidationFailed) {
		t.Fatalf("expected ErrValidationFailed for blank content, got %v", err)
	}
	if got := loadChapter(t, controller, chapterID); len(got.Comments) != 0 {
		t.Fatalf("rejected create must not persist, got %d comments", len(got.Comments))
	}
}

func TestUpdateOwnedPreservesOrder(t *testing.T) {
	engine, controller := newTestEngine(t)
	added := time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC)
	first := ownedComment(alice, "alice one", added)
	second := ownedComment(bob, "bob one", added)
	third := ownedComment(alice, "alice two", added)
	chapterID := seedChapter(t, controller, first, second, third)

	updatedAt := time.Date(2026, 2, 2, 12, 30, 0, 0, time.UTC)
	engine.now = func() time.Time { return updatedAt }

	err := engine.Update(context.Background(), chapterID.Hex(), third.ID.Hex(), Payload{Content: "alice two, revised"}, alice)
	if err != nil {
		t.Fatalf("update: %v", err)
	}

	chapter := loadChapter(t, controller, chapterID)
	if len(chapter.Comments) != 3 {
		t.Fatalf("expected 3 comments, got %d", len(chapter.Comments))
	}
	for i, want := range []primitive.ObjectID{first.ID, second.ID, third.ID} {
		if chapter.Comments[i].ID != want {
			t.Fatalf("comment order changed at index %d", i)
		}
	}
	got := chapter.Comments[2]
	if got.Content != "alice two, revised" {
		t.Fatalf("content not replaced: %q", got.Content)
	}
	if !got.DateAdded.Equal(added) {
		t.Fatalf("creation time must survive the update, got %v", got.DateAdded)
	}
	if !got.DateUpdated.Equal(updatedAt) {
		t.Fatalf("expected update time %v, got %v", updatedAt, got.DateUpdated)
	}
	if chapter.Comments[1].Content != "bob one" {
		t.Fatal("other comments must be untouched")
	}
}

func TestUpdateNotOwnedOrMissing(t *testing.T) {
	engine, controller := newTestEngine(t)
	comment := ownedComment(alice, "alice one", time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC))
	chapterID := seedChapter(t, controller, comment)

	// Someone else's comment and a nonexistent comment fail identically.
	err := engine.Update(context.Background(), chapterID.Hex(), comment.ID.Hex(), Payload{Content: "hijack"}, bob)
	if !errors.Is(err, ErrCommentNotFoundOrNotOwned) {
		t.Fatalf("expected ErrCommentNotFoundOrNotOwned for non-owner, got %v", err)
	}
	err = engine.Update(context.Background(), chapterID.Hex(), primitive.NewObjectID().Hex(), Payload{Content: "ghost"}, alice)
	if !errors.Is(err, ErrCommentNotFoundOrNotOwned) {
		t.Fatalf("expected ErrCommentNotFoundOrNotOwned for missing comment, got %v", err)
	}

	if got := loadChapter(t, controller, chapterID); got.Comments[0].Content != "alice one" {
		t.Fatalf("failed update must not persist, got %q", got.Comments[0].Content)
	}
}

func TestUpdateValidatesAfterLocate(t *testing.T) {
	engine, controller := newTestEngine(t)
	comment := ownedComment(alice, "alice one", time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC))
	chapterID := seedChapter(t, controller, comment)

	// Ownership is checked first: bob with a blank payload still gets the
	// ownership failure, not the validation one.
	err := engine.Update(context.Background(), chapterID.Hex(), comment.ID.Hex(), Payload{Content: ""}, bob)
	if !errors.Is(err, ErrCommentNotFoundOrNotOwned) {
		t.Fatalf("expected ownership failure before validation, got %v", err)
	}

	err = engine.Update(context.Background(), chapterID.Hex(), comment.ID.Hex(), Payload{Content: "  "}, alice)
	if !errors.Is(err, ErrValidationFailed) {
		t.Fatalf("expected ErrValidationFailed, got %v", err)
	}
	if got := loadChapter(t, controller, chapterID); got.Comments[0].Content != "alice one" {
		t.Fatal("rejected update must not persist")
	}
}

func TestUpdateChapterMissing(t *testing.T) {
	engine, _ := newTestEngine(t)

	err := engine.Update(context.Background(), primitive.NewObjectID().Hex(), primitive.NewObjectID().Hex(), Payload{Content: "hi"}, alice)
	if !errors.Is(err, ErrChapterNotFound) {
		t.Fatalf("expected ErrChapterNotFound, got %v", err)
	}
}

// staleReads serves every FindOne from a snapshot captured earlier while
// passing writes through, simulating a reader that raced a concurrent
// writer.
type staleReads struct {
	docstore.Store
	snapshot bson.M
}

func (s *staleReads) FindOne(ctx context.Context, db, collection string, filter bson.M) (bson.M, error) {
	return s.snapshot, nil
}

func TestUpdateLosesConcurrentWrite(t *testing.T) {
	mem := docstore.NewMemory()
	controller := store.NewController(mem, testDB)
	engine := NewEngine(controller)

	added := time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC)
	aliceComment := ownedComment(alice, "alice one", added)
	bobComment := ownedComment(bob, "bob one", added)
	chapterID := seedChapter(t, controller, aliceComment, bobComment)

	// Alice's engine reads the chapter before bob's write lands.
	snapshot, err := controller.FindOne(context.Background(), store.ChaptersCollection, bson.M{"_id": chapterID})
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	staleController := store.NewController(&staleReads{Store: mem, snapshot: snapshot}, testDB)
	staleEngine := NewEngine(staleController)

	err = engine.Update(context.Background(), chapterID.Hex(), bobComment.ID.Hex(), Payload{Content: "bob revised"}, bob)
	if err != nil {
		t.Fatalf("bob update: %v", err)
	}

	err = staleEngine.Update(context.Background(), chapterID.Hex(), aliceComment.ID.Hex(), Payload{Content: "alice revised"}, alice)
	if err != nil {
		t.Fatalf("alice update: %v", err)
	}

	// The read-modify-write rewrites the whole list from alice's stale
	// snapshot, so bob's revision is silently lost.
	chapter := loadChapter(t, controller, chapterID)
	if chapter.Comments[0].Content != "alice revised" {
		t.Fatalf("alice's update missing: %q", chapter.Comments[0].Content)
	}
	if chapter.Comments[1].Content != "bob one" {
		t.Fatalf("expected bob's concurrent write to be lost, got %q", chapter.Comments[1].Content)
	}
}

func TestDeleteOwned(t *testing.T) {
	engine, controller := newTestEngine(t)
	added := time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC)
	aliceComment := ownedComment(alice, "alice one", added)
	bobComment := ownedComment(bob, "bob one", added)
	chapterID := seedChapter(t, controller, aliceComment, bobComment)

	if err := engine.Delete(context.Background(), chapterID.Hex(), aliceComment.ID.Hex(), alice); err != nil {
		t.Fatalf("delete: %v", err)
	}

	chapter := loadChapter(t, controller, chapterID)
	if len(chapter.Comments) != 1 || chapter.Comments[0].ID != bobComment.ID {
		t.Fatalf("expected only bob's comment to remain, got %+v", chapter.Comments)
	}

	// A second delete finds nothing to pull.
	err := engine.Delete(context.Background(), chapterID.Hex(), aliceComment.ID.Hex(), alice)
	if !errors.Is(err, ErrDeleteFailed) {
		t.Fatalf("expected ErrDeleteFailed on repeat delete, got %v", err)
	}
}

func TestDeleteNotOwnedOrMissing(t *testing.T) {
	engine, controller := newTestEngine(t)
	comment := ownedComment(alice, "alice one", time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC))
	chapterID := seedChapter(t, controller, comment)

	if err := engine.Delete(context.Background(), chapterID.Hex(), comment.ID.Hex(), bob); !errors.Is(err, ErrDeleteFailed) {
		t.Fatalf("expected ErrDeleteFailed for non-owner, got %v", err)
	}
	if err := engine.Delete(context.Background(), primitive.NewObjectID().Hex(), comment.ID.Hex(), alice); !errors.Is(err, ErrDeleteFailed) {
		t.Fatalf("expected ErrDeleteFailed for missing chapter, got %v", err)
	}
	if err := engine.Delete(context.Background(), chapterID.Hex(), "bogus", alice); !errors.Is(err, ErrDeleteFailed) {
		t.Fatalf("expected ErrDeleteFailed for bad comment id, got %v", err)
	}
	if err := engine.Delete(context.Background(), "bogus", comment.ID.Hex(), alice); !errors.Is(err, ErrDeleteFailed) {
		t.Fatalf("expected ErrDeleteFailed for bad chapter id, got %v", err)
	}

	if got := loadChapter(t, controller, chapterID); len(got.Comments) != 1 {
		t.Fatal("failed deletes must not remove the comment")
	}
}
