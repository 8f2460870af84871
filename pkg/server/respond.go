package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/Climate-Resilient-Communities/climate-multilingual-chatbot-sub001/pkg/pipeline"
	"github.com/Climate-Resilient-Communities/climate-multilingual-chatbot-sub001/pkg/protocol"
)

// API error codes exposed on the wire. Validation collapses the two
// query-shape failures into one code; everything else maps 1:1 from
// the pipeline taxonomy.
const (
	apiValidationError  = "VALIDATION_ERROR"
	apiOffTopic         = "OFF_TOPIC_QUERY"
	apiHarmful          = "HARMFUL_QUERY"
	apiLanguageMismatch = "LANGUAGE_MISMATCH"
	apiRetrievalEmpty   = "RETRIEVAL_EMPTY"
	apiGenerationFailed = "GENERATION_FAILED"
	apiInternalError    = "INTERNAL_ERROR"
)

// queryResponse is the success payload of POST /api/v1/chat/query.
type queryResponse struct {
	Success           bool                `json:"success"`
	Response          string              `json:"response"`
	Citations         []protocol.Citation `json:"citations"`
	FaithfulnessScore float64             `json:"faithfulness_score"`
	ProcessingTime    float64             `json:"processing_time"`
	LanguageUsed      string              `json:"language_used"`
	ModelUsed         string              `json:"model_used"`
	RetrievalSource   string              `json:"retrieval_source"`
	RequestID         string              `json:"request_id"`
	StepTimesMS       map[string]int64    `json:"step_times_ms,omitempty"`
	Warnings          []string            `json:"warnings,omitempty"`
}

func toQueryResponse(answer *protocol.Answer) *queryResponse {
	citations := answer.Citations
	if citations == nil {
		citations = []protocol.Citation{}
	}
	return &queryResponse{
		Success:           true,
		Response:          answer.Text,
		Citations:         citations,
		FaithfulnessScore: answer.FaithfulnessScore,
		ProcessingTime:    float64(answer.ProcessingTimeMS) / 1000.0,
		LanguageUsed:      answer.LanguageUsed,
		ModelUsed:         answer.ModelUsed,
		RetrievalSource:   string(answer.RetrievalSource),
		RequestID:         answer.RequestID,
		StepTimesMS:       answer.StepTimesMS,
		Warnings:          answer.Warnings,
	}
}

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type errorResponse struct {
	Success bool      `json:"success"`
	Error   errorBody `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, &errorResponse{
		Success: false,
		Error:   errorBody{Code: code, Message: message},
	})
}

// writePipelineError maps a Process failure onto the HTTP surface.
// Client disconnects produce no response at all.
func writePipelineError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, context.Canceled) && r.Context().Err() != nil {
		return
	}

	var perr *pipeline.Error
	if !errors.As(err, &perr) {
		slog.Error("Query processing failed", "error", err, "request_id", protocol.RequestID(r.Context()))
		writeError(w, http.StatusInternalServerError, apiInternalError, "An unexpected error occurred. Please try again.")
		return
	}

	status, code := httpStatus(perr.Code)
	if status >= 500 {
		slog.Error("Query processing failed", "code", perr.Code, "error", perr, "request_id", protocol.RequestID(r.Context()))
	}
	writeError(w, status, code, perr.Message)
}

func httpStatus(code pipeline.ErrorCode) (int, string) {
	switch code {
	case pipeline.CodeEmptyQuery, pipeline.CodeTooLongQuery:
		return http.StatusBadRequest, apiValidationError
	case pipeline.CodeOffTopic:
		return http.StatusBadRequest, apiOffTopic
	case pipeline.CodeHarmfulQuery:
		return http.StatusBadRequest, apiHarmful
	case pipeline.CodeLanguageMismatch:
		return http.StatusBadRequest, apiLanguageMismatch
	case pipeline.CodeRetrievalEmpty:
		return http.StatusNotFound, apiRetrievalEmpty
	case pipeline.CodeGenerationFailed:
		return http.StatusBadGateway, apiGenerationFailed
	default:
		return http.StatusInternalServerError, apiInternalError
	}
}

// writeSSE delivers the finished payload as a single SSE artifact:
// one message event with the whole response, then a done marker.
func writeSSE(w http.ResponseWriter, payload any) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeJSON(w, http.StatusOK, payload)
		return
	}

	data, err := json.Marshal(payload)
	if err != nil {
		slog.Error("Failed to encode SSE payload", "error", err)
		writeError(w, http.StatusInternalServerError, apiInternalError, "An unexpected error occurred. Please try again.")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	fmt.Fprintf(w, "event: message\ndata: %s\n\n", data)
	flusher.Flush()
	fmt.Fprint(w, "event: done\ndata: [DONE]\n\n")
	flusher.Flush()
}
