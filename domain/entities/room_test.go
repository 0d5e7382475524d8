package entities

import "testing"

func TestResolveMimeType(t *testing.T) {
	tests := []struct {
		name     string
		file     string
		reported string
		want     string
	}{
		{"reported wins", "notes.bin", "text/plain", "text/plain"},
		{"markdown fallback", "README.md", "", "text/markdown"},
		{"case insensitive extension", "DATA.JSON", "", "application/json"},
		{"unknown extension", "blob.xyz", "", "application/octet-stream"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ResolveMimeType(tt.file, tt.reported); got != tt.want {
				t.Errorf("ResolveMimeType(%q, %q) = %q, want %q", tt.file, tt.reported, got, tt.want)
			}
		})
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		file string
		mime string
		want ResourceKind
	}{
		{"png image", "shot.png", "image/png", ResourceImage},
		{"plain text", "notes.txt", "text/plain", ResourceText},
		{"markdown", "readme.md", "text/markdown", ResourceText},
		{"json", "data.json", "application/json", ResourceText},
		{"source file by extension", "main.go", "application/octet-stream", ResourceText},
		{"pdf is not inlineable", "spec.pdf", "application/pdf", ResourceOther},
		{"video excluded", "clip.mp4", "video/mp4", ResourceOther},
		{"archive", "bundle.zip", "application/zip", ResourceOther},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Classify(tt.file, tt.mime); got != tt.want {
				t.Errorf("Classify(%q, %q) = %q, want %q", tt.file, tt.mime, got, tt.want)
			}
		})
	}
}

func TestAcceptedUpload(t *testing.T) {
	if !AcceptedUpload("shot.jpg", "image/jpeg") {
		t.Error("expected image/jpeg to be accepted")
	}
	if !AcceptedUpload("spec.pdf", "application/pdf") {
		t.Error("expected application/pdf to be accepted")
	}
	if AcceptedUpload("bundle.zip", "application/zip") {
		t.Error("expected application/zip to be rejected")
	}
}

func TestNewLinkResource(t *testing.T) {
	res, err := NewLinkResource("r1", "", "https://example.com/doc")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Kind != ResourceLink {
		t.Errorf("expected kind %q, got %q", ResourceLink, res.Kind)
	}
	if res.Name != "example.com" {
		t.Errorf("expected host fallback name, got %q", res.Name)
	}

	if _, err := NewLinkResource("r2", "bad", "ftp://example.com"); err == nil {
		t.Error("expected error for non-http scheme")
	}
	if _, err := NewLinkResource("r3", "bad", "not a url"); err == nil {
		t.Error("expected error for unparseable URL")
	}
}

func TestPersonaByID(t *testing.T) {
	p, ok := PersonaByID("senior_qa_engineer")
	if !ok {
		t.Fatal("expected catalog persona to exist")
	}
	if p.Name != "Senior QA Engineer" {
		t.Errorf("unexpected persona name %q", p.Name)
	}
	if _, ok := PersonaByID("nope"); ok {
		t.Error("expected lookup miss for unknown ID")
	}
}

func TestPersonaClone(t *testing.T) {
	base, _ := PersonaByID(CustomPersonaID)
	named := base.Clone("Dr. Reviewer")
	if named.Name != "Dr. Reviewer" {
		t.Errorf("expected cloned name, got %q", named.Name)
	}
	if base.Name != "Custom Expert" {
		t.Errorf("clone mutated the catalog entry: %q", base.Name)
	}
	if blank := base.Clone("   "); blank.Name != base.Name {
		t.Errorf("blank name should keep original, got %q", blank.Name)
	}
}

func TestCapitalize(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"hello there", "Hello there"},
		{"  padded  ", "Padded"},
		{"", ""},
		{"Already", "Already"},
		{"échange", "Échange"},
	}
	for _, tt := range tests {
		if got := Capitalize(tt.in); got != tt.want {
			t.Errorf("Capitalize(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
