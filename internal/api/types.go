package api

// CreateRoomRequest represents the request payload for creating a meeting room
type CreateRoomRequest struct {
	Name        string `json:"name" validate:"required"`
	PersonaID   string `json:"persona_id" validate:"required"`
	PersonaName string `json:"persona_name,omitempty"`
}

// AddFileResourceRequest represents an uploaded file resource (content is base64)
type AddFileResourceRequest struct {
	Name     string `json:"name" validate:"required"`
	MimeType string `json:"mime_type,omitempty"`
	Content  string `json:"content" validate:"required"`
}

// AddLinkResourceRequest represents a shared link resource
type AddLinkResourceRequest struct {
	URL  string `json:"url" validate:"required"`
	Name string `json:"name,omitempty"`
}

// SaveReportRequest represents a report saved from the chat panel
type SaveReportRequest struct {
	Title      string `json:"title" validate:"required"`
	Summary    string `json:"summary" validate:"required"`
	Transcript string `json:"transcript,omitempty"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}
