// Package accounts provides password and third-party sign-in over the
// users collection.
package accounts

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"golang.org/x/crypto/bcrypt"

	"secularreview/api/internal/auth"
	"secularreview/api/internal/docstore"
	"secularreview/api/internal/store"
)

var (
	ErrDuplicateUser = errors.New("username or email already registered")
	// ErrInvalidCredentials covers both "no such user" and "wrong
	// password" so responses never reveal which usernames exist.
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrValidation         = errors.New("invalid signup payload")
)

const minPasswordLength = 8

// Service owns user signup and token issuance.
type Service struct {
	users     *store.Controller
	secret    []byte
	accessTTL time.Duration
	verifier  TokenVerifier
}

func NewService(users *store.Controller, secret []byte, accessTTL time.Duration, verifier TokenVerifier) *Service {
	return &Service{users: users, secret: secret, accessTTL: accessTTL, verifier: verifier}
}

type SignUpRequest struct {
	UserName          string         `json:"user_name"`
	Password          string         `json:"password"`
	ProfilePictureURL string         `json:"profile_picture_url"`
	Email             string         `json:"email"`
	Age               *int           `json:"age,omitempty"`
	Gender            store.Gender   `json:"gender"`
	Religion          store.Religion `json:"religion"`
}

// SignUp registers a user with the default role. Passwords are stored only
// as bcrypt hashes.
func (s *Service) SignUp(ctx context.Context, req SignUpRequest) (store.User, error) {
	userName := strings.TrimSpace(req.UserName)
	email := strings.TrimSpace(req.Email)
	if userName == "" || email == "" {
		return store.User{}, fmt.Errorf("%w: user name and email are required", ErrValidation)
	}
	if len(req.Password) < minPasswordLength {
		return store.User{}, fmt.Errorf("%w: password must be at least %d characters", ErrValidation, minPasswordLength)
	}

	for _, filter := range []bson.M{{"email": email}, {"user_name": userName}} {
		_, err := s.users.FindOne(ctx, store.UsersCollection, filter)
		if err == nil {
			return store.User{}, ErrDuplicateUser
		}
		if !errors.Is(err, docstore.ErrNotFound) {
			return store.User{}, fmt.Errorf("check existing user: %w", err)
		}
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return store.User{}, fmt.Errorf("hash password: %w", err)
	}

	user := store.User{
		UserName:          userName,
		PasswordHash:      string(hash),
		ProfilePictureURL: req.ProfilePictureURL,
		Email:             email,
		Age:               req.Age,
		Gender:            normalizeGender(req.Gender),
		Religion:          normalizeReligion(req.Religion),
		Role:              store.RoleDefault,
		DateAdded:         time.Now(),
	}

	doc, err := store.ToDocument(user)
	if err != nil {
		return store.User{}, err
	}
	id, err := s.users.InsertOne(ctx, store.UsersCollection, doc)
	if err != nil {
		return store.User{}, fmt.Errorf("insert user: %w", err)
	}
	user.ID = id
	return user, nil
}

// Login verifies the password by re-deriving the stored hash and returns a
// bearer token whose subject is the user's email.
func (s *Service) Login(ctx context.Context, email, password string) (string, error) {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return "", ErrInvalidCredentials
	}

	doc, err := s.users.FindOne(ctx, store.UsersCollection, bson.M{"email": email})
	if errors.Is(err, docstore.ErrNotFound) {
		return "", ErrInvalidCredentials
	}
	if err != nil {
		return "", fmt.Errorf("load user: %w", err)
	}
	var user store.User
	if err := store.FromDocument(doc, &user); err != nil {
		return "", fmt.Errorf("decode user: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return "", ErrInvalidCredentials
	}

	return auth.IssueToken(s.secret, user.Email, s.accessTTL)
}

// LoginWithProvider exchanges a third-party identity token for a bearer
// token, registering the user on first sign-in.
func (s *Service) LoginWithProvider(ctx context.Context, idToken string) (string, error) {
	if s.verifier == nil {
		return "", ErrInvalidCredentials
	}
	identity, err := s.verifier.Verify(ctx, idToken)
	if err != nil {
		return "", ErrInvalidCredentials
	}

	_, err = s.users.FindOne(ctx, store.UsersCollection, bson.M{"email": identity.Email})
	if errors.Is(err, docstore.ErrNotFound) {
		userName, err := s.providerUserName(ctx, identity)
		if err != nil {
			return "", err
		}
		user := store.User{
			UserName:          userName,
			ProfilePictureURL: identity.Picture,
			Email:             identity.Email,
			Gender:            store.GenderOther,
			Religion:          store.ReligionAtheist,
			Role:              store.RoleDefault,
			DateAdded:         time.Now(),
		}
		doc, err := store.ToDocument(user)
		if err != nil {
			return "", err
		}
		if _, err := s.users.InsertOne(ctx, store.UsersCollection, doc); err != nil {
			return "", fmt.Errorf("register user: %w", err)
		}
	} else if err != nil {
		return "", fmt.Errorf("load user: %w", err)
	}

	return auth.IssueToken(s.secret, identity.Email, s.accessTTL)
}

// providerUserName picks the user_name for a first provider sign-in. The
// provider-supplied display name is attacker controlled and comment
// ownership keys on user_name, so a name that collides with an existing
// profile is suffixed instead of reused.
func (s *Service) providerUserName(ctx context.Context, identity Identity) (string, error) {
	name := strings.TrimSpace(identity.Name)
	if name == "" {
		name = identity.Email
	}

	_, err := s.users.FindOne(ctx, store.UsersCollection, bson.M{"user_name": name})
	if errors.Is(err, docstore.ErrNotFound) {
		return name, nil
	}
	if err != nil {
		return "", fmt.Errorf("check user name: %w", err)
	}
	return name + "-" + primitive.NewObjectID().Hex()[:8], nil
}

func normalizeGender(g store.Gender) store.Gender {
	switch g {
	case store.GenderMale, store.GenderFemale, store.GenderOther:
		return g
	default:
		return store.GenderOther
	}
}

func normalizeReligion(r store.Religion) store.Religion {
	switch r {
	case store.ReligionJewish, store.ReligionMuslim, store.ReligionChristian, store.ReligionAtheist:
		return r
	default:
		return store.ReligionJewish
	}
}
