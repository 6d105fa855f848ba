package pubsub

import (
	"context"
	"testing"

	"github.com/firmasegura/certifications-backend/pkg/config"
)

func TestTopicResourceName(t *testing.T) {
	cases := []struct {
		project, name, want string
	}{
		{"proj", "certification-events", "projects/proj/topics/certification-events"},
		{"proj", " certification-events ", "projects/proj/topics/certification-events"},
		{"proj", "projects/other/topics/x", "projects/other/topics/x"},
		{"", "certification-events", ""},
		{"proj", "", ""},
	}
	for _, tc := range cases {
		if got := TopicResourceName(tc.project, tc.name); got != tc.want {
			t.Fatalf("TopicResourceName(%q, %q) = %q, want %q", tc.project, tc.name, got, tc.want)
		}
	}
}

func TestNewClientRequiresProject(t *testing.T) {
	_, err := NewClient(context.Background(), config.GCPConfig{}, config.PubSubConfig{CertificationsTopic: "t"}, nil)
	if err != errProjectIDRequired {
		t.Fatalf("expected errProjectIDRequired, got %v", err)
	}
}

func TestNilClientIsSafe(t *testing.T) {
	var c *Client
	if c.Publisher("t") != nil {
		t.Fatal("expected nil publisher")
	}
	if err := c.Ping(context.Background()); err == nil {
		t.Fatal("expected ping error")
	}
	if err := c.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
}

func TestNewClientRequiresTopic(t *testing.T) {
	_, err := NewClient(context.Background(), config.GCPConfig{ProjectID: "proj"}, config.PubSubConfig{CertificationsTopic: " "}, nil)
	if err != errTopicRequired {
		t.Fatalf("expected errTopicRequired, got %v", err)
	}
}
