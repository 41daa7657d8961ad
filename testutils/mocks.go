package testutils

import (
	"context"
	"sync"

	"github.com/stretchr/testify/mock"
)

type MockMailer struct {
	mock.Mock
}

func (m *MockMailer) SendVerificationCode(ctx context.Context, email, code, name string) error {
	args := m.Called(ctx, email, code, name)
	return args.Error(0)
}

// RecordingMailer captures delivered codes so tests can submit them.
type RecordingMailer struct {
	mu   sync.Mutex
	Err  error
	Sent []SentCode
}

type SentCode struct {
	Email string
	Code  string
	Name  string
}

func (r *RecordingMailer) SendVerificationCode(_ context.Context, email, code, name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.Err != nil {
		return r.Err
	}
	r.Sent = append(r.Sent, SentCode{Email: email, Code: code, Name: name})
	return nil
}

func (r *RecordingMailer) Last() SentCode {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.Sent) == 0 {
		return SentCode{}
	}
	return r.Sent[len(r.Sent)-1]
}
