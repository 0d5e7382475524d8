package entities

import (
	"fmt"
	"net/url"
	"path"
	"strings"
	"time"
)

// MaxResourceSize caps uploaded resource payloads at 1 MB.
const MaxResourceSize = 1 << 20

// ResourceKind partitions room resources by how they are fed to the model.
type ResourceKind string

const (
	ResourceImage ResourceKind = "image" // attached as inline image data
	ResourceText  ResourceKind = "text"  // inlined into the context prompt
	ResourceLink  ResourceKind = "link"  // URL referenced in the context prompt
	ResourceOther ResourceKind = "other" // name-only mention in the context prompt
)

// RoomResource is a file or link attached to a room before the meeting starts.
type RoomResource struct {
	ID       string       `json:"id" bson:"id"`
	Name     string       `json:"name" bson:"name"`
	Kind     ResourceKind `json:"kind" bson:"kind"`
	MimeType string       `json:"mime_type" bson:"mime_type"`
	// Content holds UTF-8 text for text resources, base64 payload for
	// images, or the URL for links.
	Content string `json:"content" bson:"content"`
	Size    int64  `json:"size" bson:"size"`
}

// RoomReport is a meeting summary persisted against a room.
type RoomReport struct {
	ID         string    `json:"id" bson:"id"`
	Title      string    `json:"title" bson:"title"`
	Summary    string    `json:"summary" bson:"summary"`
	Transcript string    `json:"transcript" bson:"transcript"`
	CreatedAt  time.Time `json:"created_at" bson:"created_at"`
}

// Room groups a persona, its prepared resources, and generated reports.
type Room struct {
	ID        string         `json:"id" bson:"_id"`
	Name      string         `json:"name" bson:"name"`
	Persona   Persona        `json:"persona" bson:"persona"`
	Resources []RoomResource `json:"resources" bson:"resources"`
	Reports   []RoomReport   `json:"reports" bson:"reports"`
	CreatedAt time.Time      `json:"created_at" bson:"created_at"`
	UpdatedAt time.Time      `json:"updated_at" bson:"updated_at"`
}

// extensionMimeTypes backfills MIME types for uploads whose type the client
// did not report.
var extensionMimeTypes = map[string]string{
	".md":   "text/markdown",
	".txt":  "text/plain",
	".json": "application/json",
	".csv":  "text/csv",
	".yaml": "text/yaml",
	".yml":  "text/yaml",
	".xml":  "text/xml",
	".pdf":  "application/pdf",
	".png":  "image/png",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".gif":  "image/gif",
	".webp": "image/webp",
}

// ResolveMimeType returns the reported MIME type, falling back to the file
// extension when the client sent none.
func ResolveMimeType(name, reported string) string {
	if reported != "" {
		return reported
	}
	if mt, ok := extensionMimeTypes[strings.ToLower(path.Ext(name))]; ok {
		return mt
	}
	return "application/octet-stream"
}

// textExtensions describe file names whose contents can be inlined into a
// prompt even when the MIME type is unhelpful.
var textExtensions = map[string]bool{
	".md": true, ".txt": true, ".json": true, ".csv": true, ".xml": true,
	".js": true, ".ts": true, ".tsx": true, ".jsx": true, ".html": true,
	".css": true, ".py": true, ".rb": true, ".go": true, ".java": true,
	".c": true, ".cpp": true, ".h": true,
}

// Classify maps a resource to the kind used for context assembly. Links are
// classified at creation time, not here.
func Classify(name, mimeType string) ResourceKind {
	switch {
	case strings.HasPrefix(mimeType, "image/"):
		return ResourceImage
	case strings.HasPrefix(mimeType, "video/"), strings.HasPrefix(mimeType, "audio/"):
		return ResourceOther
	}
	for _, marker := range []string{"text", "json", "xml", "javascript", "markdown"} {
		if strings.Contains(mimeType, marker) {
			return ResourceText
		}
	}
	if textExtensions[strings.ToLower(path.Ext(name))] {
		return ResourceText
	}
	return ResourceOther
}

// AcceptedUpload reports whether a file may be attached to a room. Images,
// text-like documents, and PDFs are allowed.
func AcceptedUpload(name, mimeType string) bool {
	if mimeType == "application/pdf" {
		return true
	}
	return Classify(name, mimeType) != ResourceOther
}

// NewLinkResource validates the URL and builds a link resource.
func NewLinkResource(id, name, rawURL string) (RoomResource, error) {
	u, err := url.Parse(rawURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return RoomResource{}, fmt.Errorf("invalid resource URL %q", rawURL)
	}
	if name == "" {
		name = u.Host
	}
	return RoomResource{
		ID:      id,
		Name:    name,
		Kind:    ResourceLink,
		Content: u.String(),
	}, nil
}
