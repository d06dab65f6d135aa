package rest

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/playlinkhq/bingo-battle-backend/internal/apperror"
	"github.com/playlinkhq/bingo-battle-backend/internal/entity"
	"github.com/playlinkhq/bingo-battle-backend/internal/pkg"
)

type sendRequestBody struct {
	OpponentID string `json:"opponentId"`
}

type matchIDBody struct {
	MatchID string `json:"matchId"`
}

type markCellBody struct {
	MatchID string `json:"matchId"`
	Number  int    `json:"number"`
}

type registerBody struct {
	Username string `json:"username"`
	FullName string `json:"fullName"`
}

type tokenBody struct {
	UserID string `json:"userId"`
}

func (that *Server) handlePing(w http.ResponseWriter, _ *http.Request) {
	that.writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

// handleRegister creates a user profile and issues its first token. This is
// the thin identity seam; the surrounding social app owns real account
// management.
func (that *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var body registerBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Username == "" {
		that.writeError(w, http.StatusBadRequest, "username is required")
		return
	}

	user := &entity.User{
		ID:       pkg.GenerateMatchID(),
		Username: body.Username,
		FullName: body.FullName,
	}

	if err := that.users.Save(r.Context(), user); err != nil {
		that.writeServerError(w, r, err)
		return
	}

	token, err := that.auth.GenerateToken(user.ID)
	if err != nil {
		that.writeServerError(w, r, err)
		return
	}

	that.writeJSON(w, http.StatusOK, map[string]any{
		"user":  user,
		"token": token,
	})
}

func (that *Server) handleIssueToken(w http.ResponseWriter, r *http.Request) {
	var body tokenBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.UserID == "" {
		that.writeError(w, http.StatusBadRequest, "userId is required")
		return
	}

	if _, err := that.users.GetByID(r.Context(), body.UserID); err != nil {
		that.respondError(w, r, err)
		return
	}

	token, err := that.auth.GenerateToken(body.UserID)
	if err != nil {
		that.writeServerError(w, r, err)
		return
	}

	that.writeJSON(w, http.StatusOK, map[string]string{"token": token})
}

func (that *Server) handleSendRequest(w http.ResponseWriter, r *http.Request) {
	var body sendRequestBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.OpponentID == "" {
		that.writeError(w, http.StatusBadRequest, "opponentId is required")
		return
	}

	match, err := that.matches.CreateRequest(r.Context(), callerID(r), body.OpponentID)
	if err != nil {
		that.respondError(w, r, err)
		return
	}

	that.writeJSON(w, http.StatusOK, map[string]any{
		"matchId":     match.ID,
		"player1Grid": match.ChallengerGrid,
		"player2Grid": match.OpponentGrid,
	})
}

func (that *Server) handleAcceptRequest(w http.ResponseWriter, r *http.Request) {
	var body matchIDBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.MatchID == "" {
		that.writeError(w, http.StatusBadRequest, "matchId is required")
		return
	}

	match, err := that.matches.Accept(r.Context(), body.MatchID, callerID(r))
	if err != nil {
		that.respondError(w, r, err)
		return
	}

	that.writeJSON(w, http.StatusOK, map[string]any{
		"player1Grid":    match.ChallengerGrid,
		"player2Grid":    match.OpponentGrid,
		"currentPlayer":  match.Turn,
		"timerExpiresAt": match.TurnDeadline,
	})
}

func (that *Server) handleRejectRequest(w http.ResponseWriter, r *http.Request) {
	var body matchIDBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.MatchID == "" {
		that.writeError(w, http.StatusBadRequest, "matchId is required")
		return
	}

	if err := that.matches.Reject(r.Context(), body.MatchID, callerID(r)); err != nil {
		that.respondError(w, r, err)
		return
	}

	that.writeJSON(w, http.StatusOK, map[string]any{})
}

func (that *Server) handleMarkCell(w http.ResponseWriter, r *http.Request) {
	var body markCellBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.MatchID == "" {
		that.writeError(w, http.StatusBadRequest, "matchId and number are required")
		return
	}

	match, err := that.matches.MarkNumber(r.Context(), body.MatchID, callerID(r), body.Number)
	if err != nil {
		that.respondError(w, r, err)
		return
	}

	that.writeJSON(w, http.StatusOK, map[string]any{
		"currentPlayer":  match.Turn,
		"winner":         match.Winner,
		"markedNumbers":  match.MarkedNumbers,
		"timerExpiresAt": match.TurnDeadline,
	})
}

func (that *Server) handleStopGame(w http.ResponseWriter, r *http.Request) {
	var body matchIDBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.MatchID == "" {
		that.writeError(w, http.StatusBadRequest, "matchId is required")
		return
	}

	if err := that.matches.Stop(r.Context(), body.MatchID, callerID(r)); err != nil {
		that.respondError(w, r, err)
		return
	}

	that.writeJSON(w, http.StatusOK, map[string]any{})
}

func (that *Server) handleTimeout(w http.ResponseWriter, r *http.Request) {
	var body matchIDBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.MatchID == "" {
		that.writeError(w, http.StatusBadRequest, "matchId is required")
		return
	}

	match, err := that.matches.HandleTimeout(r.Context(), body.MatchID)
	if err != nil {
		that.respondError(w, r, err)
		return
	}

	that.writeJSON(w, http.StatusOK, map[string]any{
		"currentPlayer":  match.Turn,
		"timerExpiresAt": match.TurnDeadline,
	})
}

func (that *Server) handlePendingRequests(w http.ResponseWriter, r *http.Request) {
	matches, err := that.matches.PendingRequests(r.Context(), callerID(r))
	if err != nil {
		that.respondError(w, r, err)
		return
	}

	that.writeJSON(w, http.StatusOK, matches)
}

func (that *Server) handleRequestStatus(w http.ResponseWriter, r *http.Request) {
	peerID := mux.Vars(r)["peerId"]

	status, err := that.matches.GetRequestStatus(r.Context(), callerID(r), peerID)
	if err != nil {
		that.respondError(w, r, err)
		return
	}

	that.writeJSON(w, http.StatusOK, status)
}

// respondError maps domain errors onto the HTTP surface. Anything outside
// the taxonomy degrades to a generic internal failure.
func (that *Server) respondError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, apperror.ErrMatchNotFound),
		errors.Is(err, apperror.ErrUserNotFound):
		that.writeError(w, http.StatusNotFound, clientMessage(err))
	case errors.Is(err, apperror.ErrSelfChallenge),
		errors.Is(err, apperror.ErrDuplicateRequest),
		errors.Is(err, apperror.ErrNotParticipant),
		errors.Is(err, apperror.ErrMatchNotActive),
		errors.Is(err, apperror.ErrNotYourTurn),
		errors.Is(err, apperror.ErrAlreadyMarked),
		errors.Is(err, apperror.ErrInvalidNumber),
		errors.Is(err, apperror.ErrTurnNotExpired):
		that.writeError(w, http.StatusBadRequest, clientMessage(err))
	default:
		that.writeServerError(w, r, err)
	}
}

// clientMessage strips wrapping context so clients only see the sentinel.
func clientMessage(err error) string {
	for _, sentinel := range []error{
		apperror.ErrMatchNotFound,
		apperror.ErrUserNotFound,
		apperror.ErrSelfChallenge,
		apperror.ErrDuplicateRequest,
		apperror.ErrNotParticipant,
		apperror.ErrMatchNotActive,
		apperror.ErrNotYourTurn,
		apperror.ErrAlreadyMarked,
		apperror.ErrInvalidNumber,
		apperror.ErrTurnNotExpired,
	} {
		if errors.Is(err, sentinel) {
			return sentinel.Error()
		}
	}
	return err.Error()
}

func (that *Server) writeServerError(w http.ResponseWriter, r *http.Request, err error) {
	that.logger.Error("request failed", "path", r.URL.Path, "error", err)
	that.writeError(w, http.StatusInternalServerError, "internal server error")
}

func (that *Server) writeError(w http.ResponseWriter, status int, message string) {
	that.writeJSON(w, status, map[string]string{"error": message})
}

func (that *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		that.logger.Error("failed to encode response", "error", err)
	}
}
