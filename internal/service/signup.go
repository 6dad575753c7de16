// Package service holds the signup pipeline between the HTTP handlers and
// the row store:
//
//	Handler (HTTP) → SignupService → SignupRepository (sheet or SQLite)
//	                      ↘ fieldcrypt.Cipher
//	                      ↘ CaptchaVerifier (optional)
//
// The service never sees HTTP types; handlers translate its apperror
// values into status codes.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/rs/xid"

	"github.com/sakif/holiday-postcards/internal/fieldcrypt"
	"github.com/sakif/holiday-postcards/internal/model"
	"github.com/sakif/holiday-postcards/internal/repository"
)

// CaptchaVerifier checks a human-verification token. *captcha.Turnstile
// satisfies it.
type CaptchaVerifier interface {
	Verify(ctx context.Context, token, remoteIP string) error
}

// SignupService validates, encrypts and stores signups, and reads them
// back decrypted.
type SignupService struct {
	repo    repository.SignupRepository
	cipher  *fieldcrypt.Cipher
	captcha CaptchaVerifier
	now     func() time.Time
	logger  *slog.Logger
}

// Option configures a SignupService.
type Option func(*SignupService)

// WithCaptcha requires every submission to pass v. Without it no
// verification is done.
func WithCaptcha(v CaptchaVerifier) Option {
	return func(s *SignupService) { s.captcha = v }
}

// WithClock replaces time.Now for the row timestamp.
func WithClock(now func() time.Time) Option {
	return func(s *SignupService) { s.now = now }
}

// NewSignupService wires a SignupService.
func NewSignupService(
	repo repository.SignupRepository,
	cipher *fieldcrypt.Cipher,
	logger *slog.Logger,
	opts ...Option,
) *SignupService {
	s := &SignupService{
		repo:   repo,
		cipher: cipher,
		now:    time.Now,
		logger: logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Ready reports a store configuration problem, if any. Handlers call it
// before reading the request body.
func (s *SignupService) Ready() error {
	return s.repo.Ready()
}

// Submit validates raw, optionally verifies the captcha token, encrypts the
// personal fields and appends one row:
//
//	[timestamp, enc(name), enc(address), enc(theme), enc(contact), song]
//
// Nothing is written when any step fails.
func (s *SignupService) Submit(ctx context.Context, raw map[string]any, remoteIP string) error {
	p, err := Validate(raw)
	if err != nil {
		return err
	}

	if s.captcha != nil {
		if err := s.captcha.Verify(ctx, p.TurnstileToken, remoteIP); err != nil {
			return err
		}
	}

	row, err := s.sealRow(p)
	if err != nil {
		return err
	}

	if err := s.repo.Append(ctx, row); err != nil {
		return err
	}

	s.logger.Info("signup appended",
		slog.String("ref", xid.New().String()),
		slog.String("timestamp", row.Cell(model.ColTimestamp)),
	)
	return nil
}

func (s *SignupService) sealRow(p model.SignupPayload) (model.SignupRow, error) {
	fields := []string{p.Name, p.Address, p.PostcardTheme, p.Contact}
	sealed := make([]string, len(fields))
	for i, f := range fields {
		env, err := s.cipher.Encrypt(f)
		if err != nil {
			return nil, fmt.Errorf("service/signup: encrypting field %d: %w", i, err)
		}
		sealed[i] = env
	}
	return model.NewSignupRow(s.now(), sealed[0], sealed[1], sealed[2], sealed[3], p.SongSuggestion), nil
}

// List returns every stored signup in store order, decrypted. Rows with no
// cells are skipped. Columns are mapped by position; missing ones read as
// "".
func (s *SignupService) List(ctx context.Context) ([]model.SignupEntry, error) {
	rows, err := s.repo.List(ctx)
	if err != nil {
		return nil, err
	}

	entries := make([]model.SignupEntry, 0, len(rows))
	for _, row := range rows {
		if row.IsEmpty() {
			continue
		}
		entries = append(entries, s.openRow(row))
	}
	return entries, nil
}

func (s *SignupService) openRow(row model.SignupRow) model.SignupEntry {
	return model.SignupEntry{
		Timestamp:      row.Cell(model.ColTimestamp),
		Name:           s.cipher.Decrypt(row.Cell(model.ColName)),
		Address:        s.cipher.Decrypt(row.Cell(model.ColAddress)),
		PostcardTheme:  s.cipher.Decrypt(row.Cell(model.ColPostcardTheme)),
		Contact:        s.cipher.Decrypt(row.Cell(model.ColContact)),
		SongSuggestion: row.Cell(model.ColSongSuggestion),
	}
}
