package servicenow

import (
	"context"
	"sync"

	"github.com/nhle/change-adapter/internal/source"
)

// fakeConnector returns canned envelopes and counts calls.
type fakeConnector struct {
	mu      sync.Mutex
	getEnv  *source.Envelope
	getErr  error
	postEnv *source.Envelope
	postErr error
	gets    int
	posts   int
}

func (f *fakeConnector) Get(context.Context) (*source.Envelope, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.gets++
	return f.getEnv, f.getErr
}

func (f *fakeConnector) Post(context.Context) (*source.Envelope, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.posts++
	return f.postEnv, f.postErr
}

func bodyEnvelope(body string) *source.Envelope {
	return &source.Envelope{StatusCode: 200, Body: &body}
}
