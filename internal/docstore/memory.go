package docstore

import (
	"context"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// MemoryStore is an in-memory Store used by tests and local development.
// It interprets the same filter/patch sublanguage the service issues
// against MongoDB: exact match on top-level and dotted fields, $elemMatch
// array sub-filters, and the $set/$push/$pull patch operators. Documents
// are kept in insertion order per collection.
type MemoryStore struct {
	mu   sync.RWMutex
	data map[string]map[string][]bson.M
}

func NewMemory() *MemoryStore {
	return &MemoryStore{data: make(map[string]map[string][]bson.M)}
}

func (s *MemoryStore) FindOne(ctx context.Context, db, collection string, filter bson.M) (bson.M, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, doc := range s.data[db][collection] {
		if matchFilter(doc, filter) {
			return copyDoc(doc), nil
		}
	}
	return nil, ErrNotFound
}

func (s *MemoryStore) FindMany(ctx context.Context, db, collection string, filter bson.M) ([]bson.M, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	docs := []bson.M{}
	for _, doc := range s.data[db][collection] {
		if matchFilter(doc, filter) {
			docs = append(docs, copyDoc(doc))
		}
	}
	return docs, nil
}

func (s *MemoryStore) InsertOne(ctx context.Context, db, collection string, document bson.M) (primitive.ObjectID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc := copyDoc(document)
	if _, ok := doc["_id"]; !ok {
		doc["_id"] = primitive.NewObjectID()
	}
	id, ok := doc["_id"].(primitive.ObjectID)
	if !ok {
		return primitive.NilObjectID, fmt.Errorf("insert one: unexpected _id type %T", doc["_id"])
	}

	if s.data[db] == nil {
		s.data[db] = make(map[string][]bson.M)
	}
	s.data[db][collection] = append(s.data[db][collection], doc)
	return id, nil
}

func (s *MemoryStore) UpdateOne(ctx context.Context, db, collection string, filter, update bson.M) (UpdateResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	docs := s.data[db][collection]
	for i, doc := range docs {
		if !matchFilter(doc, filter) {
			continue
		}
		updated := copyDoc(doc)
		changed, err := applyPatch(updated, update)
		if err != nil {
			return UpdateResult{}, err
		}
		docs[i] = updated
		result := UpdateResult{MatchedCount: 1}
		if changed {
			result.ModifiedCount = 1
		}
		return result, nil
	}
	return UpdateResult{}, nil
}

func (s *MemoryStore) DeleteOne(ctx context.Context, db, collection string, filter bson.M) (DeleteResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	docs := s.data[db][collection]
	for i, doc := range docs {
		if matchFilter(doc, filter) {
			s.data[db][collection] = append(docs[:i:i], docs[i+1:]...)
			return DeleteResult{DeletedCount: 1}, nil
		}
	}
	return DeleteResult{}, nil
}

// matchFilter reports whether doc satisfies every condition in filter.
// A condition value of the form {"$elemMatch": sub} requires an array field
// with at least one element satisfying sub; anything else is an exact match
// on the (possibly dotted) field path.
func matchFilter(doc bson.M, filter bson.M) bool {
	for path, want := range filter {
		if sub, ok := elemMatchCondition(want); ok {
			field, found := lookupPath(doc, path)
			if !found {
				return false
			}
			arr, ok := field.(bson.A)
			if !ok {
				return false
			}
			if !anyElementMatches(arr, sub) {
				return false
			}
			continue
		}

		got, found := lookupPath(doc, path)
		if !found || !reflect.DeepEqual(got, want) {
			return false
		}
	}
	return true
}

func elemMatchCondition(value any) (bson.M, bool) {
	m, ok := value.(bson.M)
	if !ok {
		return nil, false
	}
	sub, ok := m["$elemMatch"].(bson.M)
	if !ok || len(m) != 1 {
		return nil, false
	}
	return sub, true
}

func anyElementMatches(arr bson.A, sub bson.M) bool {
	for _, element := range arr {
		if member, ok := element.(bson.M); ok && matchFilter(member, sub) {
			return true
		}
	}
	return false
}

// applyPatch mutates doc in place and reports whether anything changed.
func applyPatch(doc bson.M, update bson.M) (bool, error) {
	changed := false
	for operator, raw := range update {
		spec, ok := raw.(bson.M)
		if !ok {
			return changed, fmt.Errorf("patch operator %s requires a document, got %T", operator, raw)
		}
		switch operator {
		case "$set":
			for path, value := range spec {
				old, existed := lookupPath(doc, path)
				if existed && reflect.DeepEqual(old, value) {
					continue
				}
				setPath(doc, path, copyValue(value))
				changed = true
			}
		case "$push":
			for path, value := range spec {
				field, found := lookupPath(doc, path)
				if !found {
					setPath(doc, path, bson.A{copyValue(value)})
					changed = true
					continue
				}
				arr, ok := field.(bson.A)
				if !ok {
					return changed, fmt.Errorf("$push target %s is not an array", path)
				}
				setPath(doc, path, append(arr, copyValue(value)))
				changed = true
			}
		case "$pull":
			for path, condition := range spec {
				sub, ok := condition.(bson.M)
				if !ok {
					return changed, fmt.Errorf("$pull condition for %s must be a document", path)
				}
				field, found := lookupPath(doc, path)
				if !found {
					continue
				}
				arr, ok := field.(bson.A)
				if !ok {
					return changed, fmt.Errorf("$pull target %s is not an array", path)
				}
				kept := bson.A{}
				for _, element := range arr {
					if member, ok := element.(bson.M); ok && matchFilter(member, sub) {
						continue
					}
					kept = append(kept, element)
				}
				if len(kept) != len(arr) {
					setPath(doc, path, kept)
					changed = true
				}
			}
		default:
			return changed, fmt.Errorf("unsupported patch operator %s", operator)
		}
	}
	return changed, nil
}

func lookupPath(doc bson.M, path string) (any, bool) {
	segments := strings.Split(path, ".")
	var current any = doc
	for _, segment := range segments {
		m, ok := current.(bson.M)
		if !ok {
			return nil, false
		}
		current, ok = m[segment]
		if !ok {
			return nil, false
		}
	}
	return current, true
}

func setPath(doc bson.M, path string, value any) {
	segments := strings.Split(path, ".")
	current := doc
	for _, segment := range segments[:len(segments)-1] {
		next, ok := current[segment].(bson.M)
		if !ok {
			next = bson.M{}
			current[segment] = next
		}
		current = next
	}
	current[segments[len(segments)-1]] = value
}

func copyDoc(doc bson.M) bson.M {
	out := make(bson.M, len(doc))
	for key, value := range doc {
		out[key] = copyValue(value)
	}
	return out
}

func copyValue(value any) any {
	switch v := value.(type) {
	case bson.M:
		return copyDoc(v)
	case bson.A:
		out := make(bson.A, len(v))
		for i, element := range v {
			out[i] = copyValue(element)
		}
		return out
	default:
		return v
	}
}
