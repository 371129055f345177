package service

import (
	"context"
	"fmt"

	dErrors "linker/pkg/domain-errors"
)

// LoginLegacyAdmin performs the password exchange against the backend,
// bypassing the identity provider entirely. This path exists only for the
// admin role. A rejection surfaces the backend's message and leaves any
// existing unrelated session untouched.
func (s *Store) LoginLegacyAdmin(ctx context.Context, email, password string) error {
	_, err, _ := s.flight.Do("legacy-login", func() (any, error) {
		if email == "" || password == "" {
			return nil, dErrors.New(dErrors.CodeBadRequest, "email and password are required")
		}

		gen := s.currentGeneration()

		payload, err := s.backend.Login(ctx, email, password)
		if err != nil {
			s.observeLegacyLogin("rejected")
			return nil, err
		}

		if !s.apply(ctx, gen, payload.User, payload.Token) {
			s.observeLegacyLogin("superseded")
			return nil, dErrors.New(dErrors.CodeConflict, "session ended during sign-in")
		}

		s.logger.InfoContext(ctx, "legacy admin login succeeded", "email", email)
		s.observeLegacyLogin("ok")
		s.notices.Success(fmt.Sprintf("Welcome, %s!", payload.User.Name))
		return nil, nil
	})
	return err
}

func (s *Store) observeLegacyLogin(outcome string) {
	if s.metrics != nil {
		s.metrics.ObserveLegacyLogin(outcome)
	}
}
