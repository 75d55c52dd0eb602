package engine

import (
	"encoding/json"
	"fmt"

	"github.com/abdidvp/lintfix/internal/domain"
)

// Wire statuses of the engine's JSON responses.
const (
	wireSuccess   = "success"
	wireCancelled = "cancelledByDuplicateRequest"
	wireError     = "error"
	wireKilled    = "killed"
)

// MalformedResponse is the exception type reported for bodies the client
// cannot decode.
const MalformedResponse = "MalformedResponse"

type wireResult struct {
	Files []domain.EngineFile `json:"files"`
}

type wireResponse struct {
	Status      string              `json:"status"`
	Result      *wireResult         `json:"result,omitempty"`
	ParseErrors map[string][]string `json:"parseErrors,omitempty"`
	Stdout      string              `json:"stdout,omitempty"`
	FileList    []string            `json:"fileList,omitempty"`
	ErrorDetail *domain.EngineError `json:"errorDetail,omitempty"`
}

// decodeResponse parses a response body. Anything that is not a known
// response shape is a *domain.EngineError of type MalformedResponse.
func decodeResponse(body []byte) (*domain.EngineResponse, *domain.EngineError) {
	var w wireResponse
	if err := json.Unmarshal(body, &w); err != nil {
		return nil, malformed(fmt.Sprintf("decoding response: %v", err), body)
	}

	resp := &domain.EngineResponse{
		FileList:    w.FileList,
		ParseErrors: w.ParseErrors,
		Stdout:      w.Stdout,
	}
	switch w.Status {
	case wireSuccess:
		resp.Status = domain.ResponseSuccess
		if w.Result != nil {
			resp.Files = w.Result.Files
		}
	case wireCancelled:
		resp.Status = domain.ResponseCancelledByDuplicate
	case wireError:
		resp.Status = domain.ResponseEngineFailure
		resp.Error = w.ErrorDetail
		if resp.Error == nil {
			resp.Error = &domain.EngineError{Message: "engine reported an error without details"}
		}
	default:
		return nil, malformed(fmt.Sprintf("unknown status %q", w.Status), body)
	}
	return resp, nil
}

func malformed(msg string, body []byte) *domain.EngineError {
	detail := string(body)
	if len(detail) > 512 {
		detail = detail[:512] + "..."
	}
	return &domain.EngineError{ExceptionType: MalformedResponse, Message: msg, Detail: detail}
}
