package auth

import (
	"net/http"
	"strings"

	"bioboost/pkg/websocket"
)

const (
	quizzesTable   = "quizzes"
	responsesTable = "quiz_responses"
)

// FeedAuthorizer lets authenticated users follow record feeds:
// their own profile, any quiz, and their own attempt records (teachers may
// follow any learner's attempts).
type FeedAuthorizer struct {
	service *Service
}

func NewFeedAuthorizer(service *Service) *FeedAuthorizer {
	return &FeedAuthorizer{service: service}
}

var _ websocket.Authorizer = (*FeedAuthorizer)(nil)

func (a *FeedAuthorizer) AuthorizeFeed(r *http.Request, table, recordID string) error {
	token, ok := bearerToken(r)
	if !ok {
		return ErrInvalidToken
	}
	session, err := a.service.Authenticate(r.Context(), token)
	if err != nil {
		return err
	}

	switch table {
	case profilesTable:
		if recordID != session.UserID.String() {
			return ErrForbidden
		}
	case quizzesTable:
	case responsesTable:
		// record ids look like <quiz id>:<learner id>
		_, learnerID, found := strings.Cut(recordID, ":")
		if !found {
			return ErrForbidden
		}
		if learnerID != session.UserID.String() && !session.IsTeacher() {
			return ErrForbidden
		}
	default:
		return ErrForbidden
	}
	return nil
}
