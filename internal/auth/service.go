// internal/auth/service.go
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/tilinna/clock"
	"golang.org/x/crypto/bcrypt"

	"bioboost/internal/models"
	"bioboost/pkg/websocket"
)

var (
	ErrUserNotFound       = errors.New("user not found")
	ErrEmailTaken         = errors.New("email already registered")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidToken       = errors.New("invalid token")
	ErrInvalidInput       = errors.New("invalid input")
	ErrForbidden          = errors.New("forbidden")
)

const (
	profilesTable        = "profiles"
	fieldRole            = "role"
	fieldTeacherVerified = "teacher_verified"
	fieldUsername        = "username"
)

type RegisterInput struct {
	Email    string      `json:"email" validate:"required,email"`
	Username string      `json:"username" validate:"omitempty,max=50"`
	Password string      `json:"password" validate:"required,min=6,max=72"`
	Role     models.Role `json:"role" validate:"omitempty,oneof=student teacher"`
}

// ProfilePatch changes only the fields that are set.
type ProfilePatch struct {
	Username        *string      `json:"username,omitempty" validate:"omitempty,max=50"`
	Role            *models.Role `json:"role,omitempty" validate:"omitempty,oneof=student teacher"`
	TeacherVerified *bool        `json:"teacher_verified,omitempty"`
}

type Service struct {
	repo      *Repository
	jwtSecret []byte
	ttl       time.Duration
	clock     clock.Clock
	publisher websocket.Publisher
	validate  *validator.Validate
	logger    *slog.Logger
}

func NewService(repo *Repository, jwtSecret string, ttl time.Duration, clk clock.Clock, publisher websocket.Publisher, logger *slog.Logger) *Service {
	return &Service{
		repo:      repo,
		jwtSecret: []byte(jwtSecret),
		ttl:       ttl,
		clock:     clk,
		publisher: publisher,
		validate:  validator.New(),
		logger:    logger,
	}
}

func (s *Service) Register(ctx context.Context, in RegisterInput) (Session, error) {
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	in.Username = strings.TrimSpace(in.Username)
	if err := s.validate.Struct(in); err != nil {
		return Session{}, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	if in.Username == "" {
		in.Username = defaultUsername
	}
	if in.Role == "" {
		in.Role = models.RoleStudent
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return Session{}, err
	}

	user := &models.User{
		Email:    in.Email,
		Username: in.Username,
		Password: string(hashedPassword),
	}
	profile := &models.Profile{
		Username: in.Username,
		Role:     in.Role,
	}
	if err := s.repo.CreateUser(ctx, user, profile); err != nil {
		return Session{}, err
	}

	s.logger.Info("user registered", slog.String("user_id", user.ID.String()), slog.String("role", string(in.Role)))
	return sessionFromProfile(profile), nil
}

// Login exchanges credentials for a signed session token.
func (s *Service) Login(ctx context.Context, email, password string) (string, Session, error) {
	user, err := s.repo.GetUserByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if errors.Is(err, ErrUserNotFound) {
		return "", Session{}, ErrInvalidCredentials
	}
	if err != nil {
		return "", Session{}, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)); err != nil {
		return "", Session{}, ErrInvalidCredentials
	}

	profile, err := s.repo.GetProfile(ctx, user.ID)
	if err != nil {
		return "", Session{}, err
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id":  user.ID.String(),
		"username": profile.Username,
		"exp":      s.clock.Now().Add(s.ttl).Unix(),
	})

	tokenString, err := token.SignedString(s.jwtSecret)
	if err != nil {
		return "", Session{}, err
	}

	return tokenString, sessionFromProfile(profile), nil
}

// Authenticate verifies a token and loads the caller's current profile, so
// role changes take effect on the next request.
func (s *Service) Authenticate(ctx context.Context, tokenString string) (Session, error) {
	userID, err := s.parseToken(tokenString)
	if err != nil {
		return Session{}, err
	}

	profile, err := s.repo.GetProfile(ctx, userID)
	if errors.Is(err, ErrUserNotFound) {
		return Session{}, ErrInvalidToken
	}
	if err != nil {
		return Session{}, err
	}
	return sessionFromProfile(profile), nil
}

func (s *Service) parseToken(tokenString string) (uuid.UUID, error) {
	// Expiry is checked against the service clock below.
	parser := &jwt.Parser{
		ValidMethods:         []string{jwt.SigningMethodHS256.Alg()},
		SkipClaimsValidation: true,
	}

	claims := jwt.MapClaims{}
	token, err := parser.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		return s.jwtSecret, nil
	})
	if err != nil || !token.Valid {
		return uuid.Nil, ErrInvalidToken
	}

	exp, ok := claims["exp"].(float64)
	if !ok || s.clock.Now().Unix() >= int64(exp) {
		return uuid.Nil, ErrInvalidToken
	}

	raw, ok := claims["user_id"].(string)
	if !ok {
		return uuid.Nil, ErrInvalidToken
	}
	userID, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, ErrInvalidToken
	}
	return userID, nil
}

// UpdateProfile applies patch to the profile of userID on behalf of actor.
// Anyone may rename themselves; role and verification changes need a
// verified teacher. Every changed field is published on the profile feed.
func (s *Service) UpdateProfile(ctx context.Context, actor Session, userID uuid.UUID, patch ProfilePatch) (Session, error) {
	if err := s.validate.Struct(patch); err != nil {
		return Session{}, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	privileged := patch.Role != nil || patch.TeacherVerified != nil
	if privileged && !(actor.IsTeacher() && actor.TeacherVerified) {
		return Session{}, ErrForbidden
	}
	if !privileged && actor.UserID != userID {
		return Session{}, ErrForbidden
	}

	before, err := s.repo.GetProfile(ctx, userID)
	if err != nil {
		return Session{}, err
	}

	updates := map[string]any{}
	if patch.Username != nil {
		if name := strings.TrimSpace(*patch.Username); name != before.Username {
			updates[fieldUsername] = name
		}
	}
	if patch.Role != nil && *patch.Role != before.Role {
		updates[fieldRole] = string(*patch.Role)
	}
	if patch.TeacherVerified != nil && *patch.TeacherVerified != before.TeacherVerified {
		updates[fieldTeacherVerified] = *patch.TeacherVerified
	}

	after, err := s.repo.UpdateProfile(ctx, userID, updates)
	if err != nil {
		return Session{}, err
	}

	topic := websocket.Topic(profilesTable, userID.String())
	for _, field := range []string{fieldRole, fieldTeacherVerified, fieldUsername} {
		value, ok := updates[field]
		if !ok {
			continue
		}
		s.publisher.Publish(topic, websocket.Change{
			Table:    profilesTable,
			RecordID: userID.String(),
			Type:     websocket.ChangeUpdate,
			Field:    field,
			Value:    value,
			At:       s.clock.Now().UTC(),
		})
	}

	return sessionFromProfile(after), nil
}
