package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"testing"

	"gorm.io/gorm"

	"github.com/monocle-dev/taskhub/internal/apierr"
	"github.com/monocle-dev/taskhub/internal/attachments"
	"github.com/monocle-dev/taskhub/internal/events"
)

type memoryStorage struct {
	mu         sync.Mutex
	uploaded   []string
	deleted    []string
	failDelete error
}

func (m *memoryStorage) Upload(_ context.Context, f attachments.File) (attachments.Uploaded, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	rc, err := f.Open()
	if err != nil {
		return attachments.Uploaded{}, err
	}
	defer rc.Close()
	if _, err := io.Copy(io.Discard, rc); err != nil {
		return attachments.Uploaded{}, err
	}

	url := fmt.Sprintf("mem://%d/%s", len(m.uploaded)+1, f.Name)
	m.uploaded = append(m.uploaded, url)
	return attachments.Uploaded{URL: url}, nil
}

func (m *memoryStorage) Delete(_ context.Context, url, _ string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.failDelete != nil {
		return m.failDelete
	}
	m.deleted = append(m.deleted, url)
	return nil
}

type recordingPublisher struct {
	mu           sync.Mutex
	events       []events.Event
	disconnected [][2]uint
	closed       []uint
}

func (p *recordingPublisher) Disconnect(projectID, userID uint) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.disconnected = append(p.disconnected, [2]uint{projectID, userID})
}

func (p *recordingPublisher) CloseProject(projectID uint) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = append(p.closed, projectID)
}

func (p *recordingPublisher) Publish(_ uint, e events.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Type)
	}
	return out
}

func markdownFile(name string) attachments.File {
	return attachments.File{
		Name:     name,
		MimeType: "text/markdown",
		Size:     4,
		Open:     func() (io.ReadCloser, error) { return io.NopCloser(strings.NewReader("# hi")), nil },
	}
}

func fileOfType(name, mimeType string) attachments.File {
	f := markdownFile(name)
	f.MimeType = mimeType
	return f
}

// failInserts makes every insert into table fail.
func failInserts(t *testing.T, conn *gorm.DB, table string) {
	t.Helper()

	err := conn.Callback().Create().Before("gorm:create").Register("test:fail_"+table, func(tx *gorm.DB) {
		if tx.Statement.Table == table {
			tx.AddError(errors.New("insert into " + table + " failed"))
		}
	})
	if err != nil {
		t.Fatalf("register callback: %v", err)
	}
}

func wantKind(t *testing.T, err error, kind apierr.Kind) {
	t.Helper()
	if !apierr.Is(err, kind) {
		t.Fatalf("expected %s error, got %v", kind, err)
	}
}
