// seed inserts development sample users through the directory service.
// Idempotent: users whose email is already taken are skipped.
package main

import (
	"context"
	"fmt"
	"os"

	"go.uber.org/zap"

	"user-directory/internal/config"
	"user-directory/internal/logger"
	"user-directory/internal/store"
	"user-directory/internal/user/domain"
	"user-directory/internal/user/service"
)

type sampleUser struct {
	email, first, last, phone string
	disabled                  bool
}

var samples = []sampleUser{
	{email: "dev@example.com", first: "Dev", last: "User", phone: "555-000-1111"},
	{email: "ada@example.com", first: "Ada", last: "Lovelace", phone: "555-000-2222"},
	{email: "alan@example.com", first: "Alan", last: "Turing"},
	{email: "grace@example.com", first: "Grace", last: "Hopper", phone: "(555) 000 3333", disabled: true},
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}
	log, err := logger.New(cfg.LogLevel, cfg.IsDevelopment())
	if err != nil {
		fmt.Fprintln(os.Stderr, "logger:", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	ctx := context.Background()
	st, err := store.Open(ctx, cfg, log)
	if err != nil {
		log.Fatal("seed: open store", zap.Error(err))
	}
	defer st.Close()

	// No publisher: seeding does not emit change events.
	dir := service.NewDirectory(st.Repo, nil, log)
	created := 0
	for _, s := range samples {
		u, err := dir.AddOne(ctx, domain.Fields{
			Email:     s.email,
			FirstName: optional(s.first),
			LastName:  optional(s.last),
			Phone:     optional(s.phone),
		})
		if domain.IsConflict(err) {
			log.Info("seed: user exists, skipping", zap.String("email", s.email))
			continue
		}
		if err != nil {
			log.Fatal("seed: add user", zap.String("email", s.email), zap.Error(err))
		}
		if s.disabled {
			if u, err = dir.DisableOne(ctx, u.ID); err != nil {
				log.Fatal("seed: disable user", zap.String("email", s.email), zap.Error(err))
			}
		}
		created++
		log.Info("seed: user created", zap.Int64("id", u.ID), zap.String("email", u.Email), zap.Int("status", int(u.Status)))
	}
	log.Info("seed: done", zap.Int("created", created), zap.Int("skipped", len(samples)-created))
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
