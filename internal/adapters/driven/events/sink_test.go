package events

import (
	"bytes"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/custodia-labs/vectra-cli/internal/core/domain"
	"github.com/custodia-labs/vectra-cli/internal/logger"
)

func TestCapture_RecordsInOrder(t *testing.T) {
	c := NewCapture()

	c.Emit(domain.LifecycleEvent{Kind: domain.EventUploaded, DocumentID: "d1", At: time.Now()})
	c.Emit(domain.LifecycleEvent{Kind: domain.EventChunked, DocumentID: "d1", At: time.Now()})
	c.Emit(domain.LifecycleEvent{Kind: domain.EventFailed, DocumentID: "d2", Reason: "boom", At: time.Now()})

	assert.Equal(t, []domain.LifecycleEventKind{
		domain.EventUploaded,
		domain.EventChunked,
		domain.EventFailed,
	}, c.Kinds())

	events := c.Events()
	assert.Equal(t, "d2", events[2].DocumentID)
	assert.Equal(t, "boom", events[2].Reason)
}

func TestLogSink_WritesToLogger(t *testing.T) {
	var buf bytes.Buffer
	logger.SetOutput(&buf)
	logger.SetVerbose(true)
	defer func() {
		logger.SetVerbose(false)
		logger.SetOutput(os.Stderr)
	}()

	s := NewLogSink()
	s.Emit(domain.LifecycleEvent{Kind: domain.EventIndexed, DocumentID: "d1"})
	s.Emit(domain.LifecycleEvent{Kind: domain.EventFailed, DocumentID: "d2", Reason: "embed error"})

	out := buf.String()
	assert.Contains(t, out, "d1")
	assert.Contains(t, out, "indexed")
	assert.Contains(t, out, "embed error")
}
