package mailingservices

import (
	"context"
	"fmt"
	"time"

	"github.com/mailgun/mailgun-go/v4"

	"github.com/roadpulse/roadpulse/config"
)

// Mailgun sends the transactional mail the platform needs: the signup OTP
// and password reset links. The report service never calls this directly.
type Mailgun struct {
	Client *mailgun.MailgunImpl
	From   string
}

func (m *Mailgun) Init(conf *config.Config) {
	m.Client = mailgun.NewMailgun(conf.MgDomain, conf.MailgunApiKey)
	m.From = conf.MgEmailFrom
}

func (m *Mailgun) send(to, subject, body string) error {
	if m.Client == nil {
		return fmt.Errorf("mailgun client is not initialized")
	}
	message := m.Client.NewMessage(m.From, subject, body, to)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_, _, err := m.Client.Send(ctx, message)
	return err
}

func (m *Mailgun) SendVerificationOTP(to, otp string) error {
	body := fmt.Sprintf("Welcome to RoadPulse!\n\nYour verification code is: %s\n\nThe code expires in 15 minutes.", otp)
	return m.send(to, "Verify your RoadPulse account", body)
}

func (m *Mailgun) SendPasswordReset(to, resetLink string) error {
	body := fmt.Sprintf("A password reset was requested for your account.\n\nReset it here: %s\n\nIf you didn't request this, ignore this email.", resetLink)
	return m.send(to, "Reset your RoadPulse password", body)
}
