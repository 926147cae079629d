package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"secularreview/api/internal/accounts"
	"secularreview/api/internal/cache"
	"secularreview/api/internal/comments"
	"secularreview/api/internal/config"
	"secularreview/api/internal/docstore"
	"secularreview/api/internal/gate"
	"secularreview/api/internal/store"
)

var errInvalidChapter = errors.New("invalid chapter payload")

const (
	chaptersCacheKey      = "chapters"
	chapterCacheKeyPrefix = "chapter:"
)

// Service wires the repository facade, the comment mutation engine, the
// access control gate, and the account service behind the HTTP surface.
type Service struct {
	cfg      config.Config
	chapters *store.Controller
	engine   *comments.Engine
	gate     *gate.Gate
	accounts *accounts.Service
	cache    *cache.Cache
}

func New(cfg config.Config, controller *store.Controller, engine *comments.Engine, accessGate *gate.Gate, accountSvc *accounts.Service) *Service {
	return &Service{
		cfg:      cfg,
		chapters: controller,
		engine:   engine,
		gate:     accessGate,
		accounts: accountSvc,
	}
}

// NewWithCache additionally enables the read-through chapter cache.
func NewWithCache(cfg config.Config, controller *store.Controller, engine *comments.Engine, accessGate *gate.Gate, accountSvc *accounts.Service, chapterCache *cache.Cache) *Service {
	service := New(cfg, controller, engine, accessGate, accountSvc)
	service.cache = chapterCache
	return service
}

func (s *Service) Authenticate(ctx context.Context, token string) (store.User, error) {
	return s.gate.RequireAuthenticated(ctx, token)
}

func (s *Service) AuthorizeRole(ctx context.Context, token string, role store.Role) (store.User, error) {
	return s.gate.RequireRole(ctx, token, role)
}

// ListChapters serves list reads through the cache; entries go stale for
// at most the configured cache timeout after a write.
func (s *Service) ListChapters(ctx context.Context) ([]store.Chapter, error) {
	if s.cache != nil {
		if raw, ok := s.cache.Get(ctx, chaptersCacheKey); ok {
			var chapters []store.Chapter
			if err := json.Unmarshal(raw, &chapters); err == nil {
				return chapters, nil
			}
		}
	}

	docs, err := s.chapters.FindMany(ctx, store.ChaptersCollection, bson.M{})
	if err != nil {
		return nil, fmt.Errorf("list chapters: %w", err)
	}
	chapters := make([]store.Chapter, 0, len(docs))
	for _, doc := range docs {
		var chapter store.Chapter
		if err := store.FromDocument(doc, &chapter); err != nil {
			return nil, fmt.Errorf("decode chapter: %w", err)
		}
		chapters = append(chapters, chapter)
	}

	if s.cache != nil {
		if raw, err := json.Marshal(chapters); err == nil {
			s.cache.Set(ctx, chaptersCacheKey, raw)
		}
	}
	return chapters, nil
}

func (s *Service) GetChapter(ctx context.Context, chapterID string) (store.Chapter, error) {
	oid, err := primitive.ObjectIDFromHex(chapterID)
	if err != nil {
		return store.Chapter{}, docstore.ErrNotFound
	}

	key := chapterCacheKeyPrefix + chapterID
	if s.cache != nil {
		if raw, ok := s.cache.Get(ctx, key); ok {
			var chapter store.Chapter
			if err := json.Unmarshal(raw, &chapter); err == nil {
				return chapter, nil
			}
		}
	}

	doc, err := s.chapters.FindOne(ctx, store.ChaptersCollection, bson.M{"_id": oid})
	if err != nil {
		return store.Chapter{}, err
	}
	var chapter store.Chapter
	if err := store.FromDocument(doc, &chapter); err != nil {
		return store.Chapter{}, fmt.Errorf("decode chapter: %w", err)
	}

	if s.cache != nil {
		if raw, err := json.Marshal(chapter); err == nil {
			s.cache.Set(ctx, key, raw)
		}
	}
	return chapter, nil
}

func (s *Service) CreateChapter(ctx context.Context, payload store.ChapterUpdate) (primitive.ObjectID, error) {
	if err := validateChapter(payload); err != nil {
		return primitive.NilObjectID, err
	}

	now := time.Now()
	chapter := store.Chapter{
		Author:         payload.Author,
		HolyBook:       payload.HolyBook,
		Book:           payload.Book,
		ChapterNumber:  payload.ChapterNumber,
		ChapterLetters: payload.ChapterLetters,
		Verses:         payload.Verses,
		Analysis:       payload.Analysis,
		Rating:         payload.Rating,
		Tags:           payload.Tags,
		DateAdded:      now,
		DateUpdated:    now,
	}
	doc, err := store.ToDocument(chapter)
	if err != nil {
		return primitive.NilObjectID, err
	}

	id, err := s.chapters.InsertOne(ctx, store.ChaptersCollection, doc)
	if err != nil {
		return primitive.NilObjectID, fmt.Errorf("insert chapter: %w", err)
	}
	return id, nil
}

// UpdateChapter replaces every non-comment field; the embedded comment
// list is only reachable through the mutation engine.
func (s *Service) UpdateChapter(ctx context.Context, chapterID string, payload store.ChapterUpdate) error {
	oid, err := primitive.ObjectIDFromHex(chapterID)
	if err != nil {
		return docstore.ErrNotFound
	}
	if err := validateChapter(payload); err != nil {
		return err
	}

	result, err := s.chapters.UpdateOne(ctx, store.ChaptersCollection,
		bson.M{"_id": oid},
		bson.M{"$set": bson.M{
			"author":          payload.Author,
			"holy_book":       payload.HolyBook,
			"book":            payload.Book,
			"chapter_number":  payload.ChapterNumber,
			"chapter_letters": payload.ChapterLetters,
			"verses":          payload.Verses,
			"analysis":        payload.Analysis,
			"rating":          payload.Rating,
			"tags":            payload.Tags,
			"date_updated":    time.Now(),
		}},
	)
	if err != nil {
		return fmt.Errorf("update chapter: %w", err)
	}
	if result.MatchedCount == 0 {
		return docstore.ErrNotFound
	}
	return nil
}

func (s *Service) PostComment(ctx context.Context, chapterID string, payload comments.Payload, caller store.User) (primitive.ObjectID, error) {
	return s.engine.Create(ctx, chapterID, payload, caller)
}

func (s *Service) UpdateComment(ctx context.Context, chapterID, commentID string, payload comments.Payload, caller store.User) error {
	return s.engine.Update(ctx, chapterID, commentID, payload, caller)
}

func (s *Service) DeleteComment(ctx context.Context, chapterID, commentID string, caller store.User) error {
	return s.engine.Delete(ctx, chapterID, commentID, caller)
}

func (s *Service) SignUp(ctx context.Context, req accounts.SignUpRequest) (store.User, error) {
	return s.accounts.SignUp(ctx, req)
}

func (s *Service) Login(ctx context.Context, email, password string) (string, error) {
	return s.accounts.Login(ctx, email, password)
}

func (s *Service) GoogleLogin(ctx context.Context, idToken string) (string, error) {
	return s.accounts.LoginWithProvider(ctx, idToken)
}

func validateChapter(payload store.ChapterUpdate) error {
	if strings.TrimSpace(payload.Author) == "" {
		return fmt.Errorf("%w: author is required", errInvalidChapter)
	}
	if strings.TrimSpace(payload.Book) == "" {
		return fmt.Errorf("%w: book is required", errInvalidChapter)
	}
	if strings.TrimSpace(payload.ChapterLetters) == "" {
		return fmt.Errorf("%w: chapter_letters is required", errInvalidChapter)
	}
	if payload.ChapterNumber < 1 {
		return fmt.Errorf("%w: chapter_number must be positive", errInvalidChapter)
	}
	if !payload.HolyBook.Valid() {
		return fmt.Errorf("%w: unknown holy_book", errInvalidChapter)
	}
	if payload.Verses == nil {
		return fmt.Errorf("%w: verses are required", errInvalidChapter)
	}
	return nil
}
