package api

import "qcping/internal/model"

// QualityRequest is the envelope around transported quality records. The
// same shape is posted as JSON and published as msgpack.
type QualityRequest struct {
	MessageID string          `json:"message_id" msgpack:"message_id"`
	Username  string          `json:"username" msgpack:"username"`
	Group     string          `json:"group" msgpack:"group"`
	Records   []model.Quality `json:"records" msgpack:"records"`
}

// QualityResponse acknowledges stored records.
type QualityResponse struct {
	Stored int `json:"stored"`
}

// HealthResponse is returned by the collector and status servers.
type HealthResponse struct {
	Status  string `json:"status"`
	Streams int    `json:"streams,omitempty"`
}

// ErrorResponse is the JSON body of a failed request.
type ErrorResponse struct {
	Error string `json:"error"`
}
