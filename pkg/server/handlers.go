package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/Climate-Resilient-Communities/climate-multilingual-chatbot-sub001/pkg/feedback"
	"github.com/Climate-Resilient-Communities/climate-multilingual-chatbot-sub001/pkg/languages"
	"github.com/Climate-Resilient-Communities/climate-multilingual-chatbot-sub001/pkg/pipeline"
	"github.com/Climate-Resilient-Communities/climate-multilingual-chatbot-sub001/pkg/protocol"
)

// queryRequest is the body of POST /api/v1/chat/query.
type queryRequest struct {
	Query               string          `json:"query"`
	Language            string          `json:"language"`
	ConversationHistory []protocol.Turn `json:"conversation_history,omitempty"`

	// Stream switches the response to a single SSE artifact. The
	// answer is still computed whole; streaming only changes framing.
	Stream bool `json:"stream,omitempty"`
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	var req queryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, apiValidationError, "Request body must be valid JSON.")
		return
	}

	query := strings.TrimSpace(req.Query)
	if query == "" {
		writeError(w, http.StatusBadRequest, apiValidationError, "Field 'query' is required.")
		return
	}
	if len(query) > pipeline.MaxQueryChars {
		writeError(w, http.StatusBadRequest, apiValidationError,
			fmt.Sprintf("Field 'query' must be at most %d characters.", pipeline.MaxQueryChars))
		return
	}
	language, ok := languages.Normalize(req.Language)
	if !ok {
		writeError(w, http.StatusBadRequest, apiValidationError,
			fmt.Sprintf("Unsupported language %q. See /api/v1/languages/supported.", req.Language))
		return
	}

	answer, err := s.pipeline.Process(r.Context(), &pipeline.Request{
		Query:    query,
		Language: language,
		History:  req.ConversationHistory,
	})
	if err != nil {
		writePipelineError(w, r, err)
		return
	}

	payload := toQueryResponse(answer)
	if req.Stream {
		writeSSE(w, payload)
		return
	}
	writeJSON(w, http.StatusOK, payload)
}

// languageInfo is one supported language on the wire.
type languageInfo struct {
	Code       string `json:"code"`
	Name       string `json:"name"`
	NativeName string `json:"native_name"`
}

type languagesResponse struct {
	CommandALanguages []languageInfo `json:"command_a_languages"`
	NovaLanguages     []languageInfo `json:"nova_languages"`
	TotalSupported    int            `json:"total_supported"`
}

func (s *Server) handleLanguages(w http.ResponseWriter, r *http.Request) {
	resp := languagesResponse{
		CommandALanguages: []languageInfo{},
		NovaLanguages:     []languageInfo{},
	}
	for _, lang := range languages.Supported() {
		info := languageInfo{Code: lang.Code, Name: lang.Name, NativeName: lang.NativeName}
		if languages.IsCommandALanguage(lang.Code) {
			resp.CommandALanguages = append(resp.CommandALanguages, info)
		} else {
			resp.NovaLanguages = append(resp.NovaLanguages, info)
		}
		resp.TotalSupported++
	}
	writeJSON(w, http.StatusOK, &resp)
}

// feedbackRequest is the body of POST /api/v1/feedback/submit.
type feedbackRequest struct {
	RequestID  string   `json:"request_id"`
	Rating     string   `json:"rating"`
	Categories []string `json:"categories,omitempty"`
	Comment    string   `json:"comment,omitempty"`
	Language   string   `json:"language,omitempty"`
}

func (s *Server) handleFeedback(w http.ResponseWriter, r *http.Request) {
	if s.feedback == nil {
		writeError(w, http.StatusServiceUnavailable, apiInternalError, "Feedback capture is not configured.")
		return
	}

	var req feedbackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, apiValidationError, "Request body must be valid JSON.")
		return
	}

	entry := &feedback.Entry{
		RequestID:  strings.TrimSpace(req.RequestID),
		Rating:     feedback.Rating(strings.ToLower(strings.TrimSpace(req.Rating))),
		Categories: req.Categories,
		Comment:    req.Comment,
		Language:   req.Language,
	}
	if err := s.feedback.Submit(r.Context(), entry); err != nil {
		writeError(w, http.StatusBadRequest, apiValidationError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success":     true,
		"feedback_id": entry.ID,
	})
}
