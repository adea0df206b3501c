package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/certeon/certexam-backend/internal/middleware"
	"github.com/certeon/certexam-backend/internal/model"
	"github.com/certeon/certexam-backend/internal/service"
	ws "github.com/certeon/certexam-backend/internal/websocket"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

// buildUpgrader creates a WebSocket upgrader with origin validation.
// An empty allowedOrigins permits all origins (development mode).
func buildUpgrader(allowedOrigins []string) websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			if len(allowedOrigins) == 0 {
				return true
			}
			origin := r.Header.Get("Origin")
			for _, allowed := range allowedOrigins {
				if strings.EqualFold(allowed, origin) {
					return true
				}
			}
			return false
		},
	}
}

// WSHandler streams the live exam protocol: answer saves, violation
// reports, and submit, multiplexed over one connection.
type WSHandler struct {
	sessionService   *service.SessionService
	attemptService   *service.AttemptService
	integrityService *service.IntegrityService
	log              zerolog.Logger
	upgrader         websocket.Upgrader
}

// NewWSHandler creates a new WSHandler.
func NewWSHandler(
	sessionService *service.SessionService,
	attemptService *service.AttemptService,
	integrityService *service.IntegrityService,
	log zerolog.Logger,
	allowedOrigins []string,
) *WSHandler {
	return &WSHandler{
		sessionService:   sessionService,
		attemptService:   attemptService,
		integrityService: integrityService,
		log:              log.With().Str("component", "ws_handler").Logger(),
		upgrader:         buildUpgrader(allowedOrigins),
	}
}

// SessionStream godoc
// WS /ws/v1/sessions/:id/stream
// Upgrades to WebSocket for real-time answer saves and violation reports.
func (h *WSHandler) SessionStream(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	sessionID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid session ID"})
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Error().Err(err).Msg("WebSocket upgrade failed")
		return
	}
	defer conn.Close()

	userID := claims.UserID

	// The stream only serves a running session owned by the caller.
	session, err := h.sessionService.GetOwned(c.Request.Context(), sessionID, userID)
	if err != nil || session.Status != model.SessionStatusInProgress {
		ws.WriteError(conn, "session is not in progress")
		return
	}

	wsLog := h.log.With().
		Int("user_id", userID).
		Str("session_id", sessionID.String()).
		Logger()

	wsLog.Info().Msg("Candidate connected")

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				wsLog.Warn().Err(err).Msg("Unexpected close")
			} else {
				wsLog.Debug().Msg("Connection closed")
			}
			break
		}

		var envelope ws.RequestEnvelope
		if err := json.Unmarshal(raw, &envelope); err != nil {
			ws.WriteError(conn, "malformed message")
			continue
		}

		done := false
		switch envelope.Action {
		case ws.ActionAnswer:
			h.handleAnswer(conn, wsLog, sessionID, userID, raw)
		case ws.ActionViolation:
			done = h.handleViolation(conn, wsLog, sessionID, userID, raw)
		case ws.ActionSubmit:
			h.handleSubmit(conn, wsLog, sessionID, userID)
			done = true
		case ws.ActionPing:
			ws.WriteTyped(conn, ws.PongResponse{Event: ws.EventPong})
		default:
			wsLog.Warn().Str("action", string(envelope.Action)).Msg("Unknown action")
			ws.WriteError(conn, "unknown action: "+string(envelope.Action))
		}
		if done {
			break
		}
	}
}

func (h *WSHandler) handleAnswer(conn *websocket.Conn, log zerolog.Logger, sessionID uuid.UUID, userID int, raw []byte) {
	var msg ws.AnswerRequest
	if err := json.Unmarshal(raw, &msg); err != nil {
		ws.WriteError(conn, "malformed answer message")
		return
	}
	questionID, err := uuid.Parse(msg.QuestionID)
	if err != nil || msg.Selected == "" {
		ws.WriteError(conn, "question_id and selected are required")
		return
	}

	req := &model.RecordAnswerRequest{
		QuestionID: questionID,
		Selected:   msg.Selected,
		TimeSpent:  msg.TimeSpent,
	}
	if _, err := h.attemptService.RecordAnswer(context.Background(), sessionID, userID, req); err != nil {
		log.Debug().Err(err).Msg("Answer save rejected")
		ws.WriteError(conn, "save failed: "+err.Error())
		return
	}

	ws.WriteTyped(conn, ws.AnswerResponse{Event: ws.EventSuccess, Status: "saved"})
}

// handleViolation records the violation and reports back the running hard
// count. Returns true when the session was terminated by the threshold, so
// the read loop shuts the stream down.
func (h *WSHandler) handleViolation(conn *websocket.Conn, log zerolog.Logger, sessionID uuid.UUID, userID int, raw []byte) bool {
	var msg ws.ViolationRequest
	if err := json.Unmarshal(raw, &msg); err != nil {
		ws.WriteError(conn, "malformed violation message")
		return false
	}

	record, err := h.integrityService.RecordViolation(context.Background(), sessionID, userID, model.ViolationType(msg.Type), msg.Detail)
	if err != nil {
		log.Debug().Err(err).Msg("Violation rejected")
		ws.WriteError(conn, "violation rejected: "+err.Error())
		return false
	}

	ws.WriteTyped(conn, ws.ViolationResponse{
		Event:      ws.EventViolation,
		HardCount:  record.HardCount,
		Terminated: record.Terminated,
	})

	if record.Terminated {
		ws.WriteTyped(conn, ws.TerminatedResponse{
			Event:  ws.EventTerminated,
			Reason: string(model.ReasonViolationLimit),
		})
		return true
	}
	return false
}

func (h *WSHandler) handleSubmit(conn *websocket.Conn, log zerolog.Logger, sessionID uuid.UUID, userID int) {
	result, err := h.sessionService.CompleteByUser(context.Background(), sessionID, userID, model.ReasonUserSubmit)
	if err != nil {
		log.Warn().Err(err).Msg("Submit failed")
		ws.WriteError(conn, "submit failed: "+err.Error())
		return
	}

	resp := ws.GradedResponse{Event: ws.EventGraded, Status: "submitted"}
	if result.Attempt != nil && result.Attempt.Scored() {
		resp.Score = *result.Attempt.Score
		resp.Grade = *result.Attempt.Grade
		resp.Passed = *result.Attempt.Passed
	}
	ws.WriteTyped(conn, resp)

	log.Info().Float64("score", resp.Score).Msg("Session submitted over stream")
}
