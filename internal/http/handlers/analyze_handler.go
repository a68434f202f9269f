// Quiz analysis HTTP handlers.
//
// This file exposes the archetype resolution endpoints:
//   - POST /analyze/short        (resolve triple + generate short profile)
//   - GET  /result/short/{runId} (re-read a stored short profile)
//   - POST /analyze/full         (generate the paid full profile for a run)
//   - GET  /result/full/{runId}  (re-read a stored full profile, gated)
//
// Short analysis works for anonymous callers; when a valid token accompanies
// the request the resolved archetype is also mirrored into the caller's
// per-user snapshot. Full profiles require the full entitlement on both
// generation and reads.
package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/reino-app/bestias-backend/internal/archetype"
	"github.com/reino-app/bestias-backend/internal/genai"
	"github.com/reino-app/bestias-backend/internal/http/middleware"
	"github.com/reino-app/bestias-backend/internal/services"
)

//
// DTOs
//

// QuizAnswer is one answered question in an analysis request.
type QuizAnswer struct {
	QuestionID int    `json:"questionId" binding:"required"`
	Answer     string `json:"answer" binding:"required"`
}

// AnalyzeRequest is the JSON payload for short analysis. The three locked*
// fields pin the archetype instead of calling the resolver; they must be
// supplied together (genderForm excepted, it falls back to neutral).
type AnalyzeRequest struct {
	Name             string       `json:"name" binding:"required" example:"Мария"`
	Lang             string       `json:"lang" binding:"required,oneof=ru en es pt"`
	Gender           string       `json:"gender" binding:"omitempty,oneof=male female unspecified"`
	Answers          []QuizAnswer `json:"answers" binding:"required,min=1,dive"`
	LockedAnimal     string       `json:"lockedAnimal"`
	LockedElement    string       `json:"lockedElement"`
	LockedGenderForm string       `json:"lockedGenderForm"`
	RunID            string       `json:"runId"`
}

// ProfilePayload is the result body shared by short and full responses.
type ProfilePayload struct {
	Animal     string `json:"animal"`
	Element    string `json:"element"`
	GenderForm string `json:"genderForm"`
	Text       string `json:"text"`
}

// ProfileResponse is the envelope for short and full profile results.
type ProfileResponse struct {
	Type     string         `json:"type"`
	ResultID string         `json:"result_id"`
	Result   ProfilePayload `json:"result"`
}

// FullRequest asks for the full profile of a previously analyzed run.
type FullRequest struct {
	ResultID string `json:"result_id" binding:"required"`
}

func profileResponse(kind string, p *services.Profile) ProfileResponse {
	return ProfileResponse{
		Type:     kind,
		ResultID: p.RunID,
		Result: ProfilePayload{
			Animal:     p.Triple.Animal,
			Element:    p.Triple.Element,
			GenderForm: p.Triple.GenderForm,
			Text:       p.Text,
		},
	}
}

// failAnalysis maps analysis service sentinels onto HTTP responses.
func failAnalysis(c *gin.Context, err error) {
	switch {
	case errors.Is(err, services.ErrInvalidRunID):
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "runId must be a UUID")
	case errors.Is(err, services.ErrInvalidLockedTriple):
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid locked archetype")
	case errors.Is(err, services.ErrRunNotFound):
		fail(c, http.StatusNotFound, ErrCodeNotFound, "run not found")
	case errors.Is(err, services.ErrResultNotFound):
		fail(c, http.StatusNotFound, ErrCodeNotFound, "result not found")
	case errors.Is(err, services.ErrFullLocked):
		fail(c, http.StatusForbidden, ErrCodeFullLocked, "full profile locked")
	default:
		fail(c, http.StatusInternalServerError, ErrCodeAnalysisFailed, "analysis failed")
	}
}

//
// Handlers
//

// AnalyzeShort resolves the archetype triple for a quiz run and generates the
// short profile text. Anonymous callers are served; authenticated callers get
// their snapshot updated as a side effect.
func (h *Handlers) AnalyzeShort(c *gin.Context) {
	ctx := c.Request.Context()

	var req AnalyzeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "name, lang and answers are required")
		return
	}

	caller, _ := middleware.UserFrom(c)
	in := services.AnalyzeInput{
		RunID:   req.RunID,
		Name:    req.Name,
		Lang:    req.Lang,
		Gender:  req.Gender,
		Answers: quizAnswers(req.Answers),
		User:    caller,
	}
	if req.LockedAnimal != "" || req.LockedElement != "" {
		in.Locked = &archetype.Triple{
			Animal:     req.LockedAnimal,
			Element:    req.LockedElement,
			GenderForm: req.LockedGenderForm,
		}
	}

	p, err := h.analysisSvc.AnalyzeShort(ctx, in)
	if err != nil {
		failAnalysis(c, err)
		return
	}
	ok(c, http.StatusOK, profileResponse("short", p))
}

// ShortResult returns the stored short profile for a run id.
func (h *Handlers) ShortResult(c *gin.Context) {
	p, err := h.analysisSvc.ShortResult(c.Request.Context(), c.Param("runId"))
	if err != nil {
		// Malformed ids read as absent runs, matching lookup semantics.
		if errors.Is(err, services.ErrInvalidRunID) {
			fail(c, http.StatusNotFound, ErrCodeNotFound, "short result not found")
			return
		}
		failAnalysis(c, err)
		return
	}
	ok(c, http.StatusOK, profileResponse("short", p))
}

// AnalyzeFull generates (or re-reads) the full profile for an analyzed run.
// Requires authentication and the full entitlement.
func (h *Handlers) AnalyzeFull(c *gin.Context) {
	user, _ := middleware.UserFrom(c)

	var req FullRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "result_id required")
		return
	}

	p, err := h.analysisSvc.AnalyzeFull(c.Request.Context(), req.ResultID, user)
	if err != nil {
		failAnalysis(c, err)
		return
	}
	ok(c, http.StatusOK, profileResponse("full", p))
}

// FullResult returns the stored full profile for a run id. The entitlement
// gate applies on reads as well.
func (h *Handlers) FullResult(c *gin.Context) {
	user, _ := middleware.UserFrom(c)

	p, err := h.analysisSvc.FullResult(c.Request.Context(), c.Param("runId"), user)
	if err != nil {
		failAnalysis(c, err)
		return
	}
	ok(c, http.StatusOK, profileResponse("full", p))
}

func quizAnswers(in []QuizAnswer) []genai.Answer {
	out := make([]genai.Answer, 0, len(in))
	for _, a := range in {
		out = append(out, genai.Answer{QuestionID: a.QuestionID, Text: a.Answer})
	}
	return out
}
