package mailer

import (
	"context"
	"errors"
	"testing"

	"github.com/resend/resend-go/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/academic-repo-api/pkg/config"
)

type fakeEmails struct {
	requests []*resend.SendEmailRequest
	err      error
}

func (f *fakeEmails) SendWithContext(_ context.Context, params *resend.SendEmailRequest) (*resend.SendEmailResponse, error) {
	f.requests = append(f.requests, params)
	if f.err != nil {
		return nil, f.err
	}
	return &resend.SendEmailResponse{Id: "email-1"}, nil
}

func TestResendMailerAddressesBccOnlyMessagesToSender(t *testing.T) {
	emails := &fakeEmails{}
	m := NewResendMailer(emails, "Repository <no-reply@uni.example>", nil)

	err := m.Send(context.Background(), Message{Bcc: []string{"a@uni.example", "b@uni.example"}, Subject: "New resource", Text: "body"})
	require.NoError(t, err)
	require.Len(t, emails.requests, 1)
	assert.Equal(t, []string{"no-reply@uni.example"}, emails.requests[0].To)
	assert.Equal(t, []string{"a@uni.example", "b@uni.example"}, emails.requests[0].Bcc)
}

func TestResendMailerPropagatesFailures(t *testing.T) {
	m := NewResendMailer(&fakeEmails{err: errors.New("rate limited")}, "no-reply@uni.example", nil)
	err := m.Send(context.Background(), Message{To: []string{"a@uni.example"}})
	assert.ErrorContains(t, err, "rate limited")

	assert.Error(t, m.Send(context.Background(), Message{}))
}

func TestNewSelectsDriver(t *testing.T) {
	m, err := New(config.MailConfig{Driver: config.MailDriverLog}, nil)
	require.NoError(t, err)
	assert.IsType(t, &LogMailer{}, m)

	_, err = New(config.MailConfig{Driver: config.MailDriverResend}, nil)
	assert.Error(t, err)

	_, err = New(config.MailConfig{Driver: "carrier-pigeon"}, nil)
	assert.Error(t, err)
}
