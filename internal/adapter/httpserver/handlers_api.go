package httpserver

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/pscheid92/moodroom/internal/domain"
	apperrors "github.com/pscheid92/moodroom/internal/platform/errors"
)

type voteRequest struct {
	Emotion string `json:"emotion"`
}

type voteResponse struct {
	ParticipantID string         `json:"participant_id"`
	Emotion       domain.Emotion `json:"emotion"`
}

type meResponse struct {
	ParticipantID string         `json:"participant_id"`
	Emotion       domain.Emotion `json:"emotion"`
	RecordedAt    time.Time      `json:"recorded_at"`
	Active        bool           `json:"active"`
}

type distributionResponse struct {
	Distribution domain.Distribution `json:"distribution"`
	Total        int                 `json:"total"`
}

type pickResponse struct {
	Baseline *domain.Emotion `json:"baseline"`
	Fairness *domain.Emotion `json:"fairness"`
}

type selectionResponse struct {
	Strategy   domain.Strategy `json:"strategy"`
	Emotion    domain.Emotion  `json:"emotion"`
	SelectedAt time.Time       `json:"selected_at"`
}

type statsResponse struct {
	History      []selectionResponse `json:"history"`
	Distribution domain.Distribution `json:"distribution"`
}

type satisfactionResponse struct {
	Baseline float64 `json:"baseline"`
	Fairness float64 `json:"fairness"`
}

func (s *Server) handleEmotions(c echo.Context) error {
	if err := c.JSON(http.StatusOK, map[string][]domain.Emotion{"emotions": domain.Emotions()}); err != nil {
		return fmt.Errorf("failed to send JSON response: %w", err)
	}
	return nil
}

func (s *Server) handleVote(c echo.Context) error {
	ctx := c.Request().Context()
	id := participantID(c)

	var req voteRequest
	if err := c.Bind(&req); err != nil {
		return apperrors.ValidationError("invalid request body")
	}

	// Unknown input still goes through the room so the rejection is observed.
	emotion, err := domain.ParseEmotion(req.Emotion)
	if err != nil {
		emotion = domain.Emotion(req.Emotion)
	}

	err = s.room.SubmitVote(ctx, id, emotion)
	if errors.Is(err, domain.ErrInvalidEmotion) {
		return invalidEmotionError(req.Emotion)
	}
	if errors.Is(err, domain.ErrInvalidParticipant) {
		return apperrors.ValidationError("participant id is required")
	}
	if err != nil {
		return storeError("failed to record vote", err)
	}

	if err := c.JSON(http.StatusOK, voteResponse{ParticipantID: id, Emotion: emotion}); err != nil {
		return fmt.Errorf("failed to send JSON response: %w", err)
	}
	return nil
}

// storeError reports backend rejections as 503 and everything else as 500.
func storeError(message string, err error) *apperrors.Error {
	if errors.Is(err, domain.ErrStoreUnavailable) {
		return apperrors.UnavailableError(message, err)
	}
	return apperrors.InternalError(message, err)
}

func invalidEmotionError(raw string) *apperrors.Error {
	return apperrors.ValidationError("invalid emotion").
		WithField("emotion", raw).
		WithField("allowed", domain.Emotions())
}

func (s *Server) handleMe(c echo.Context) error {
	id := participantID(c)

	vote, active, err := s.room.Vote(c.Request().Context(), id)
	if errors.Is(err, domain.ErrVoteNotFound) {
		return apperrors.NotFoundError("no vote recorded").WithField("participant_id", id)
	}
	if err != nil {
		return storeError("failed to load vote", err)
	}

	resp := meResponse{
		ParticipantID: id,
		Emotion:       vote.Emotion,
		RecordedAt:    vote.RecordedAt.UTC(),
		Active:        active,
	}
	if err := c.JSON(http.StatusOK, resp); err != nil {
		return fmt.Errorf("failed to send JSON response: %w", err)
	}
	return nil
}

func (s *Server) handleDistribution(c echo.Context) error {
	dist, err := s.room.Distribution(c.Request().Context())
	if err != nil {
		return storeError("failed to compute distribution", err)
	}

	if err := c.JSON(http.StatusOK, distributionResponse{Distribution: dist, Total: dist.Total()}); err != nil {
		return fmt.Errorf("failed to send JSON response: %w", err)
	}
	return nil
}

func (s *Server) handleSelect(c echo.Context) error {
	pick, err := s.room.SelectNext(c.Request().Context())
	if err != nil {
		return storeError("failed to select next emotion", err)
	}

	if err := c.JSON(http.StatusOK, pickResponse{Baseline: pick.Baseline, Fairness: pick.Fairness}); err != nil {
		return fmt.Errorf("failed to send JSON response: %w", err)
	}
	return nil
}

func (s *Server) handleStats(c echo.Context) error {
	limit, err := s.parseLimit(c.QueryParam("limit"))
	if err != nil {
		return err
	}

	stats, err := s.room.Stats(c.Request().Context(), limit)
	if err != nil {
		return storeError("failed to load stats", err)
	}

	history := make([]selectionResponse, len(stats.History))
	for i, sel := range stats.History {
		history[i] = selectionResponse{Strategy: sel.Strategy, Emotion: sel.Emotion, SelectedAt: sel.SelectedAt.UTC()}
	}
	if err := c.JSON(http.StatusOK, statsResponse{History: history, Distribution: stats.Distribution}); err != nil {
		return fmt.Errorf("failed to send JSON response: %w", err)
	}
	return nil
}

// parseLimit accepts an empty value (configured default) or a non-negative
// integer, clamped to the configured maximum.
func (s *Server) parseLimit(raw string) (int, error) {
	if raw == "" {
		return s.config.StatsDefaultLimit, nil
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit < 0 {
		return 0, apperrors.ValidationError("limit must be a non-negative integer").WithField("limit", raw)
	}
	if limit == 0 {
		return s.config.StatsDefaultLimit, nil
	}
	return min(limit, s.config.StatsMaxLimit), nil
}

func (s *Server) handleSatisfaction(c echo.Context) error {
	sat, err := s.room.Evaluate(c.Request().Context())
	if err != nil {
		return storeError("failed to evaluate strategies", err)
	}

	if err := c.JSON(http.StatusOK, satisfactionResponse{Baseline: sat.Baseline, Fairness: sat.Fairness}); err != nil {
		return fmt.Errorf("failed to send JSON response: %w", err)
	}
	return nil
}

func (s *Server) handleReset(c echo.Context) error {
	if err := s.room.Reset(c.Request().Context()); err != nil {
		return storeError("failed to reset room", err)
	}

	if err := c.JSON(http.StatusOK, map[string]string{"status": "reset"}); err != nil {
		return fmt.Errorf("failed to send JSON response: %w", err)
	}
	return nil
}
