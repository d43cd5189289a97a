package classify

import "encoding/json"

// Current JSON API.

type currentSuccess struct {
	Success   *bool           `json:"success"`
	RequestID string          `json:"request_id"`
	ImageURLs *currentURLs    `json:"image_urls"`
	Valid     *currentVerdict `json:"validation"`
}

type currentURLs struct {
	Input  string `json:"input"`
	Output string `json:"output"`
}

type currentVerdict struct {
	Passed   *bool        `json:"passed"`
	Score    *json.Number `json:"score"`
	Warnings []string     `json:"warnings"`
	Errors   []string     `json:"errors"`
	Summary  string       `json:"summary"`
}

// Legacy multipart API.

type legacySuccess struct {
	RequestID   string   `json:"request_id"`
	TrialNumber int      `json:"trial_number"`
	Image       string   `json:"document_image_base64"`
	Message     string   `json:"message"`
	Errors      []string `json:"validation_errors"`
}

// errorBody accepts both error shapes: {"error":{code,message,details}} and
// the flat {"message"} form.
type errorBody struct {
	RequestID string `json:"request_id"`
	Error     *struct {
		Code    string         `json:"code"`
		Message string         `json:"message"`
		Details map[string]any `json:"details"`
	} `json:"error"`
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details"`
}
