package gate

import (
	"context"
	"errors"
	"testing"
	"time"

	"secularreview/api/internal/auth"
	"secularreview/api/internal/docstore"
	"secularreview/api/internal/store"
)

var testSecret = []byte("test-secret")

func newTestGate(t *testing.T) (*Gate, *store.Controller) {
	t.Helper()
	controller := store.NewController(docstore.NewMemory(), "testdb")
	return New(testSecret, controller), controller
}

func seedUser(t *testing.T, controller *store.Controller, email string, role store.Role) {
	t.Helper()
	user := store.User{
		UserName: email,
		Email:    email,
		Gender:   store.GenderOther,
		Religion: store.ReligionAtheist,
		Role:     role,
	}
	doc, err := store.ToDocument(user)
	if err != nil {
		t.Fatalf("encode user: %v", err)
	}
	if _, err := controller.InsertOne(context.Background(), store.UsersCollection, doc); err != nil {
		t.Fatalf("seed user: %v", err)
	}
}

func tokenFor(t *testing.T, email string) string {
	t.Helper()
	token, err := auth.IssueToken(testSecret, email, time.Hour)
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	return token
}

func TestRequireAuthenticated(t *testing.T) {
	g, controller := newTestGate(t)
	seedUser(t, controller, "reader@example.com", store.RoleDefault)

	user, err := g.RequireAuthenticated(context.Background(), tokenFor(t, "reader@example.com"))
	if err != nil {
		t.Fatalf("authenticate: %v", err)
	}
	if user.Email != "reader@example.com" || user.Role != store.RoleDefault {
		t.Fatalf("unexpected user: %+v", user)
	}
}

func TestRequireAuthenticatedBadToken(t *testing.T) {
	g, _ := newTestGate(t)

	if _, err := g.RequireAuthenticated(context.Background(), "garbage"); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
}

func TestRequireAuthenticatedUnknownProfile(t *testing.T) {
	g, _ := newTestGate(t)

	// Valid token but no stored profile behind the subject.
	_, err := g.RequireAuthenticated(context.Background(), tokenFor(t, "ghost@example.com"))
	if !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
}

func TestRequireRole(t *testing.T) {
	g, controller := newTestGate(t)
	seedUser(t, controller, "reader@example.com", store.RoleDefault)
	seedUser(t, controller, "editor@example.com", store.RoleAdmin)

	if _, err := g.RequireRole(context.Background(), tokenFor(t, "reader@example.com"), store.RoleAdmin); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}

	if _, err := g.RequireRole(context.Background(), tokenFor(t, "editor@example.com"), store.RoleAdmin); err != nil {
		t.Fatalf("admin must pass: %v", err)
	}

	// Admin satisfies any role requirement.
	if _, err := g.RequireRole(context.Background(), tokenFor(t, "editor@example.com"), store.RoleDefault); err != nil {
		t.Fatalf("admin must satisfy default role: %v", err)
	}
}
