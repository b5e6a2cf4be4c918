package httpserver

import (
	"log/slog"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	apperrors "github.com/pscheid92/moodroom/internal/platform/errors"
)

const (
	sessionName           = "moodroom-session"
	sessionKeyParticipant = "participant_id"

	// participantKey is the echo context key holding the caller's participant id.
	participantKey = "participantID"
)

// participantMiddleware gives every caller a stable anonymous identity: a
// random UUID kept in a signed session cookie. The first request without a
// cookie mints one.
func (s *Server) participantMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			// Get returns a fresh session alongside a decode error (tampered
			// cookie, rotated secret), which is what we want to continue with.
			session, err := s.sessionStore.Get(c.Request(), sessionName)
			if err != nil {
				slog.DebugContext(c.Request().Context(), "Discarding unreadable session", "error", err)
			}

			id, _ := session.Values[sessionKeyParticipant].(string)
			if id == "" {
				id = uuid.NewString()
				session.Values[sessionKeyParticipant] = id
				if err := session.Save(c.Request(), c.Response()); err != nil {
					return apperrors.InternalError("failed to save session", err)
				}
			}

			c.Set(participantKey, id)
			return next(c)
		}
	}
}

func participantID(c echo.Context) string {
	id, _ := c.Get(participantKey).(string)
	return id
}
