package handlers

import (
	"errors"
	"log"
	"net/http"

	"github.com/pocketbase/pocketbase/core"

	"github.com/sprintdeck/estimation/internal/models"
	"github.com/sprintdeck/estimation/internal/security"
	"github.com/sprintdeck/estimation/internal/services"
)

// EstimationHandlers exposes the estimation engine over the HTTP API.
type EstimationHandlers struct {
	manager    *services.SessionManager
	history    *services.HistoryAggregator
	search     *services.StorySearch
	hub        *services.Hub
	calculator *services.ConsensusCalculator
}

func NewEstimationHandlers(
	manager *services.SessionManager,
	history *services.HistoryAggregator,
	search *services.StorySearch,
	hub *services.Hub,
	calculator *services.ConsensusCalculator,
) *EstimationHandlers {
	return &EstimationHandlers{
		manager:    manager,
		history:    history,
		search:     search,
		hub:        hub,
		calculator: calculator,
	}
}

// RegisterEstimation wires the estimation API routes.
func (h *EstimationHandlers) RegisterEstimation(se *core.ServeEvent) error {
	api := se.Router.Group("/api")
	api.Bind(RequireAuth())

	api.GET("/estimation/methods", h.ListMethods)
	api.POST("/projects/{projectId}/sessions", h.CreateSession)
	api.POST("/projects/{projectId}/stories/search", h.SearchStories)
	api.GET("/sessions/{id}", h.GetSession)
	api.POST("/sessions/{id}/votes", h.CastVote)
	api.POST("/sessions/{id}/reveal", h.Reveal)
	api.POST("/sessions/{id}/rounds", h.StartNewRound)
	api.POST("/sessions/{id}/finalize", h.Finalize)
	api.GET("/sessions/{id}/history", h.GetHistory)

	return nil
}

// ListMethods exposes the supported estimation methods with their preset
// sequences, so clients can render the card picker without hardcoding them.
func (h *EstimationHandlers) ListMethods(e *core.RequestEvent) error {
	catalog := h.manager.Catalog()

	methods := make([]map[string]any, 0, len(catalog.Methods()))
	for _, method := range catalog.Methods() {
		entry := map[string]any{"method": method}
		if method != models.MethodCustom {
			sequence, err := catalog.SequenceFor(method, nil)
			if err != nil {
				return writeError(e, err)
			}
			entry["sequence"] = sequence
		}
		methods = append(methods, entry)
	}

	return e.JSON(http.StatusOK, map[string]any{"methods": methods})
}

type createSessionRequest struct {
	StoryID string `json:"storyId"`
	Name    string `json:"name"`
	Method  string `json:"method"`
	// Comma-separated card values, only consulted for the custom method.
	CustomValues string `json:"customValues"`
}

func (h *EstimationHandlers) CreateSession(e *core.RequestEvent) error {
	projectID := e.Request.PathValue("projectId")
	if err := security.ValidateRecordID(projectID); err != nil {
		return writeError(e, models.NewFieldError(models.KindInvalidArgument, "projectId", err.Error()))
	}

	var req createSessionRequest
	if err := e.BindBody(&req); err != nil {
		return writeError(e, models.WrapError(models.KindInvalidArgument, "invalid request body", err))
	}

	var customValues []string
	if models.EstimationMethod(req.Method) == models.MethodCustom {
		parsed, err := h.manager.Catalog().ParseCustomValues(req.CustomValues)
		if err != nil {
			return writeError(e, err)
		}
		customValues = parsed
	}

	session, err := h.manager.CreateSession(services.CreateSessionParams{
		ProjectID:    projectID,
		StoryID:      req.StoryID,
		Name:         req.Name,
		Method:       models.EstimationMethod(req.Method),
		CustomValues: customValues,
		ModeratorID:  e.Auth.Id,
	})
	if err != nil {
		return writeError(e, err)
	}

	return e.JSON(http.StatusCreated, session)
}

type castVoteRequest struct {
	RoundNumber   int    `json:"roundNumber"`
	Value         string `json:"value"`
	Justification string `json:"justification"`
}

func (h *EstimationHandlers) CastVote(e *core.RequestEvent) error {
	sessionID := e.Request.PathValue("id")

	var req castVoteRequest
	if err := e.BindBody(&req); err != nil {
		return writeError(e, models.WrapError(models.KindInvalidArgument, "invalid request body", err))
	}

	session, err := h.manager.CastVote(sessionID, e.Auth.Id, req.RoundNumber, req.Value, req.Justification)
	if err != nil {
		return writeError(e, err)
	}

	// Tell watchers someone voted without leaking the value.
	count, countErr := h.manager.Ledger().CountByRound(sessionID, req.RoundNumber)
	if countErr != nil {
		log.Printf("failed to count votes for broadcast (session=%s): %v", sessionID, countErr)
	}
	h.hub.BroadcastToSession(sessionID, &models.WSMessage{
		Type:      models.MsgTypeVoteCast,
		SessionID: sessionID,
		Payload:   voteCastPayload(e.Auth.Id, req.RoundNumber, count, countErr),
	})

	return e.JSON(http.StatusOK, session)
}

type revealRequest struct {
	RoundNumber int `json:"roundNumber"`
}

func (h *EstimationHandlers) Reveal(e *core.RequestEvent) error {
	sessionID := e.Request.PathValue("id")

	var req revealRequest
	if err := e.BindBody(&req); err != nil {
		return writeError(e, models.WrapError(models.KindInvalidArgument, "invalid request body", err))
	}

	session, err := h.manager.Reveal(sessionID, e.Auth.Id, req.RoundNumber)
	if err != nil {
		return writeError(e, err)
	}

	votes, err := h.manager.Ledger().ListByRound(sessionID, session.CurrentRound)
	if err != nil {
		return writeError(e, err)
	}

	h.hub.BroadcastToSession(sessionID, &models.WSMessage{
		Type:      models.MsgTypeVotesRevealed,
		SessionID: sessionID,
		Payload: map[string]any{
			"roundNumber": session.CurrentRound,
			"votes":       votes,
			"statistics":  h.calculator.Statistics(votes),
		},
	})

	return e.JSON(http.StatusOK, session)
}

type newRoundRequest struct {
	NewRoundNumber int    `json:"newRoundNumber"`
	Reason         string `json:"reason"`
}

func (h *EstimationHandlers) StartNewRound(e *core.RequestEvent) error {
	sessionID := e.Request.PathValue("id")

	var req newRoundRequest
	if err := e.BindBody(&req); err != nil {
		return writeError(e, models.WrapError(models.KindInvalidArgument, "invalid request body", err))
	}

	session, err := h.manager.StartNewRound(sessionID, e.Auth.Id, req.NewRoundNumber, req.Reason)
	if err != nil {
		return writeError(e, err)
	}

	h.hub.BroadcastToSession(sessionID, &models.WSMessage{
		Type:      models.MsgTypeRoundStarted,
		SessionID: sessionID,
		Payload: map[string]any{
			"roundNumber": session.CurrentRound,
			"reason":      req.Reason,
		},
	})

	return e.JSON(http.StatusOK, session)
}

type finalizeRequest struct {
	FinalEstimation string  `json:"finalEstimation"`
	EstimateHours   float64 `json:"estimateHours"`
	Notes           string  `json:"notes"`
}

func (h *EstimationHandlers) Finalize(e *core.RequestEvent) error {
	sessionID := e.Request.PathValue("id")

	var req finalizeRequest
	if err := e.BindBody(&req); err != nil {
		return writeError(e, models.WrapError(models.KindInvalidArgument, "invalid request body", err))
	}

	session, err := h.manager.Finalize(sessionID, e.Auth.Id, req.FinalEstimation, req.EstimateHours, req.Notes)
	if err != nil {
		return writeError(e, err)
	}

	h.hub.BroadcastToSession(sessionID, &models.WSMessage{
		Type:      models.MsgTypeSessionFinalized,
		SessionID: sessionID,
		Payload: map[string]any{
			"finalEstimation": session.FinalEstimation,
			"estimateHours":   session.EstimateHours,
		},
	})

	return e.JSON(http.StatusOK, session)
}

func (h *EstimationHandlers) GetSession(e *core.RequestEvent) error {
	detail, err := h.sessionDetail(e.Request.PathValue("id"), e.Auth.Id)
	if err != nil {
		return writeError(e, err)
	}
	return e.JSON(http.StatusOK, detail)
}

func (h *EstimationHandlers) GetHistory(e *core.RequestEvent) error {
	sessionID := e.Request.PathValue("id")

	history, err := h.history.History(sessionID)
	if err != nil {
		return writeError(e, err)
	}

	session, err := h.manager.GetSession(sessionID)
	if err != nil {
		return writeError(e, err)
	}

	// The reveal boundary also applies to history reads: the ongoing round's
	// values stay hidden from everyone but their own voter.
	if !session.IsRevealed && len(history.Rounds) > 0 {
		redactRound(history.Rounds[len(history.Rounds)-1], e.Auth.Id)
	}

	return e.JSON(http.StatusOK, history)
}

type searchStoriesRequest struct {
	Query string `json:"query"`
	Limit int    `json:"limit"`
}

func (h *EstimationHandlers) SearchStories(e *core.RequestEvent) error {
	projectID := e.Request.PathValue("projectId")

	member, err := h.isProjectMember(e.Auth.Id, projectID)
	if err != nil {
		return writeError(e, err)
	}
	if !member {
		return writeError(e, models.NewError(models.KindForbidden, "not a member of this project"))
	}

	var req searchStoriesRequest
	if err := e.BindBody(&req); err != nil {
		return writeError(e, models.WrapError(models.KindInvalidArgument, "invalid request body", err))
	}

	matches, err := h.search.Search(e.App, projectID, req.Query, req.Limit)
	if err != nil {
		return writeError(e, err)
	}

	return e.JSON(http.StatusOK, map[string]any{"matches": matches})
}

// SessionDetail is the per-caller session view: before reveal only the
// caller's own vote value is visible, others show only that they voted.
type SessionDetail struct {
	Session   *models.EstimationSession `json:"session"`
	VoteCount int                       `json:"voteCount"`
	Votes     []*models.Vote            `json:"votes"`
	OwnVote   *models.Vote              `json:"ownVote,omitempty"`
}

func (h *EstimationHandlers) sessionDetail(sessionID, callerID string) (*SessionDetail, error) {
	session, err := h.manager.GetSession(sessionID)
	if err != nil {
		return nil, err
	}

	votes, err := h.manager.Ledger().ListByRound(sessionID, session.CurrentRound)
	if err != nil {
		return nil, err
	}

	detail := &SessionDetail{
		Session:   session,
		VoteCount: len(votes),
		Votes:     votes,
	}

	for _, vote := range votes {
		if vote.VoterID == callerID {
			own := *vote
			detail.OwnVote = &own
		}
	}

	if !session.IsRevealed {
		redacted := make([]*models.Vote, 0, len(votes))
		for _, vote := range votes {
			redacted = append(redacted, redactVote(vote, callerID))
		}
		detail.Votes = redacted
	}

	return detail, nil
}

func (h *EstimationHandlers) isProjectMember(userID, projectID string) (bool, error) {
	owner, err := h.manager.Authorizer().IsProjectOwner(userID, projectID)
	if err != nil {
		return false, err
	}
	if owner {
		return true, nil
	}
	role, err := h.manager.Authorizer().ProjectRole(userID, projectID)
	if err != nil {
		return false, err
	}
	return role != "", nil
}

// voteCastPayload builds the vote_cast broadcast body. When the tally lookup
// failed the count is omitted instead of reporting a bogus zero.
func voteCastPayload(voterID string, round, count int, countErr error) map[string]any {
	payload := map[string]any{
		"voterId":     voterID,
		"roundNumber": round,
	}
	if countErr == nil {
		payload["voteCount"] = count
	}
	return payload
}

func redactRound(round *models.Round, callerID string) {
	redacted := make([]*models.Vote, 0, len(round.Votes))
	for _, vote := range round.Votes {
		redacted = append(redacted, redactVote(vote, callerID))
	}
	round.Votes = redacted
	round.Statistics = models.RoundStatistics{
		TotalVotes:   round.Statistics.TotalVotes,
		Distribution: map[string]int{},
	}
}

func redactVote(vote *models.Vote, callerID string) *models.Vote {
	if vote.VoterID == callerID {
		return vote
	}
	hidden := *vote
	hidden.Value = ""
	hidden.Justification = ""
	return &hidden
}

func writeError(e *core.RequestEvent, err error) error {
	kind := models.KindOf(err)

	resp := map[string]string{
		"kind": string(kind),
	}

	var domainErr *models.Error
	if errors.As(err, &domainErr) {
		resp["error"] = domainErr.Message
		if domainErr.Field != "" {
			resp["field"] = domainErr.Field
		}
	} else {
		resp["error"] = security.SanitizeErrorMessage(err)
	}

	return e.JSON(statusForKind(kind), resp)
}

func statusForKind(kind models.ErrorKind) int {
	switch kind {
	case models.KindForbidden:
		return http.StatusForbidden
	case models.KindNotFound:
		return http.StatusNotFound
	case models.KindDuplicateVote,
		models.KindRoundAlreadyRevealed,
		models.KindSessionClosed,
		models.KindInvalidTransition,
		models.KindStaleState:
		return http.StatusConflict
	case models.KindItemNotEstimable:
		return http.StatusUnprocessableEntity
	case models.KindInvalidMethod,
		models.KindInvalidCardValue,
		models.KindInvalidArgument:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
