// Package accounts provisions client users for the dashboard.
package accounts

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"

	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"github.com/growthpro/messaging/internal/metrics"
	"github.com/growthpro/messaging/internal/models"
	"github.com/growthpro/messaging/internal/notify"
	"github.com/growthpro/messaging/internal/store"
)

// Provisioner creates client accounts and triggers their welcome email.
type Provisioner struct {
	store    store.DataStore
	notifier *notify.Client
	logger   zerolog.Logger
}

// NewProvisioner creates a provisioner. notifier may be nil.
func NewProvisioner(st store.DataStore, notifier *notify.Client, logger zerolog.Logger) *Provisioner {
	return &Provisioner{store: st, notifier: notifier, logger: logger}
}

// Provision creates a client user with a generated temporary password
// and sends the welcome notification. Provisioning is idempotent on
// email: an existing user is returned unchanged with no email sent.
func (p *Provisioner) Provision(ctx context.Context, name, email string) (*models.User, bool, error) {
	existing, err := p.store.GetUserByEmail(ctx, email)
	if err != nil {
		return nil, false, err
	}
	if existing != nil {
		return existing, false, nil
	}

	password, err := tempPassword()
	if err != nil {
		return nil, false, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, false, err
	}

	user, err := p.store.CreateUser(ctx, name, email, models.RoleClient, string(hash))
	if err != nil {
		return nil, false, err
	}

	// Welcome email is best-effort; the account exists either way.
	resp, err := p.notifier.Send(ctx, notify.Request{
		Email:    email,
		FullName: name,
		Password: password,
		AdditionalData: map[string]any{
			"userId": user.ID.String(),
			"role":   string(user.Role),
		},
	})
	switch {
	case err != nil:
		metrics.NotificationsSent.WithLabelValues("error").Inc()
		p.logger.Error().Err(err).Str("email", email).Msg("welcome notification failed")
	case !resp.Success:
		metrics.NotificationsSent.WithLabelValues("error").Inc()
		p.logger.Warn().Str("email", email).Str("reason", resp.Error).Msg("welcome notification rejected")
	default:
		metrics.NotificationsSent.WithLabelValues("ok").Inc()
	}

	return user, true, nil
}

// tempPassword generates a random 18-character temporary password.
func tempPassword() (string, error) {
	buf := make([]byte, 13)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generating password: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf)[:18], nil
}
