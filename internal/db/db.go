package db

import (
	"context"
	"fmt"
	"log"

	"github.com/jackc/pgx/v5/pgxpool"
)

// DSN builds a connection string from discrete settings.
func DSN(user, password, host, port, name string) string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s", user, password, host, port, name)
}

// Open connects to Postgres and verifies the connection.
func Open(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("unable to connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("unable to ping database: %w", err)
	}
	log.Println("Connected to Postgres successfully")
	return pool, nil
}

// Migrate creates any missing tables and indexes. Every statement is
// idempotent so it runs on each boot.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	steps := []struct {
		name string
		fn   func(context.Context, *pgxpool.Pool) error
	}{
		{"users", ensureUsers},
		{"work_profiles", ensureWorkProfiles},
		{"service_requests", ensureServiceRequests},
		{"interests", ensureInterests},
		{"connections", ensureConnections},
		{"review_obligations", ensureObligations},
		{"reviews", ensureReviews},
		{"notifications", ensureNotifications},
	}
	for _, s := range steps {
		if err := s.fn(ctx, pool); err != nil {
			return fmt.Errorf("ensure %s: %w", s.name, err)
		}
		log.Printf("schema %s ensured", s.name)
	}
	return nil
}

func ensureUsers(ctx context.Context, pool *pgxpool.Pool) error {
	_, err := pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS users (
			id UUID PRIMARY KEY,
			name TEXT NOT NULL,
			email TEXT NOT NULL,
			password_hash TEXT NOT NULL,
			role TEXT NOT NULL CHECK (role IN ('requester','provider','admin')),
			is_active BOOLEAN NOT NULL DEFAULT TRUE,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
		CREATE UNIQUE INDEX IF NOT EXISTS idx_users_email ON users(LOWER(email));

		CREATE TABLE IF NOT EXISTS role_profiles (
			user_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			role TEXT NOT NULL,
			active BOOLEAN NOT NULL DEFAULT TRUE,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			PRIMARY KEY (user_id, role)
		);

		CREATE TABLE IF NOT EXISTS role_changes (
			id UUID PRIMARY KEY,
			user_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			from_role TEXT NOT NULL,
			to_role TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
		CREATE INDEX IF NOT EXISTS idx_role_changes_user ON role_changes(user_id, created_at);
	`)
	return err
}

func ensureWorkProfiles(ctx context.Context, pool *pgxpool.Pool) error {
	_, err := pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS work_profiles (
			provider_id UUID PRIMARY KEY REFERENCES users(id) ON DELETE CASCADE,
			categories TEXT[] NOT NULL DEFAULT '{}',
			localities TEXT[] NOT NULL DEFAULT '{}',
			available BOOLEAN NOT NULL DEFAULT FALSE,
			notifications_enabled BOOLEAN NOT NULL DEFAULT TRUE,
			tier TEXT NOT NULL DEFAULT 'free' CHECK (tier IN ('free','basic','premium')),
			verified BOOLEAN NOT NULL DEFAULT FALSE,
			quiet_start TEXT NULL,
			quiet_end TEXT NULL,
			quiet_tz TEXT NULL,
			active BOOLEAN NOT NULL DEFAULT TRUE,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
		CREATE INDEX IF NOT EXISTS idx_work_profiles_categories ON work_profiles USING GIN (categories);
	`)
	return err
}

func ensureServiceRequests(ctx context.Context, pool *pgxpool.Pool) error {
	_, err := pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS service_requests (
			id UUID PRIMARY KEY,
			requester_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			category_id TEXT NOT NULL,
			locality TEXT NOT NULL,
			title TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			urgency_tier TEXT NOT NULL CHECK (urgency_tier IN ('emergency','high','medium','low')),
			budget_min DOUBLE PRECISION NOT NULL DEFAULT 0,
			budget_max DOUBLE PRECISION NOT NULL DEFAULT 0,
			interested_count INTEGER NOT NULL DEFAULT 0,
			status TEXT NOT NULL CHECK (status IN ('active','in_progress','completed','cancelled','expired')),
			selected_provider_id UUID NULL REFERENCES users(id) ON DELETE SET NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			expires_at TIMESTAMPTZ NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_requests_requester ON service_requests(requester_id, created_at);
		CREATE INDEX IF NOT EXISTS idx_requests_active_expiry ON service_requests(expires_at) WHERE status = 'active';

		CREATE TABLE IF NOT EXISTS request_notices (
			request_id UUID NOT NULL REFERENCES service_requests(id) ON DELETE CASCADE,
			provider_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			status TEXT NOT NULL CHECK (status IN ('pending','sent','failed')),
			claimed_at TIMESTAMPTZ NOT NULL,
			PRIMARY KEY (request_id, provider_id)
		);
	`)
	return err
}

func ensureInterests(ctx context.Context, pool *pgxpool.Pool) error {
	_, err := pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS interests (
			id UUID PRIMARY KEY,
			request_id UUID NOT NULL REFERENCES service_requests(id) ON DELETE CASCADE,
			provider_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			proposed_price DOUBLE PRECISION NOT NULL DEFAULT 0,
			message TEXT NOT NULL DEFAULT '',
			status TEXT NOT NULL CHECK (status IN ('pending','accepted','rejected','withdrawn')),
			viewed_by_requester BOOLEAN NOT NULL DEFAULT FALSE,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			UNIQUE (request_id, provider_id)
		);
		CREATE UNIQUE INDEX IF NOT EXISTS idx_interests_one_accepted ON interests(request_id) WHERE status = 'accepted';
		CREATE INDEX IF NOT EXISTS idx_interests_provider ON interests(provider_id, created_at);
	`)
	return err
}

func ensureConnections(ctx context.Context, pool *pgxpool.Pool) error {
	_, err := pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS connections (
			id UUID PRIMARY KEY,
			requester_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			provider_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			request_id UUID NULL REFERENCES service_requests(id) ON DELETE SET NULL,
			interest_id UUID NULL UNIQUE REFERENCES interests(id) ON DELETE SET NULL,
			channel_id TEXT NOT NULL,
			status TEXT NOT NULL CHECK (status IN ('active','service_in_progress','completed','cancelled')),
			requester_confirmed BOOLEAN NOT NULL DEFAULT FALSE,
			provider_confirmed BOOLEAN NOT NULL DEFAULT FALSE,
			agreed_price DOUBLE PRECISION NOT NULL DEFAULT 0,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			completed_at TIMESTAMPTZ NULL,
			cancelled_at TIMESTAMPTZ NULL
		);
		CREATE INDEX IF NOT EXISTS idx_connections_requester ON connections(requester_id);
		CREATE INDEX IF NOT EXISTS idx_connections_provider ON connections(provider_id, status);

		CREATE TABLE IF NOT EXISTS completion_confirmations (
			connection_id UUID NOT NULL REFERENCES connections(id) ON DELETE CASCADE,
			party_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			role TEXT NOT NULL CHECK (role IN ('requester','provider')),
			satisfaction_note TEXT NOT NULL DEFAULT '',
			evidence_flag BOOLEAN NOT NULL DEFAULT FALSE,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			PRIMARY KEY (connection_id, party_id)
		);
	`)
	return err
}

func ensureObligations(ctx context.Context, pool *pgxpool.Pool) error {
	_, err := pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS review_obligations (
			id UUID PRIMARY KEY,
			owner_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			connection_id UUID NOT NULL REFERENCES connections(id) ON DELETE CASCADE,
			counterparty_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			due_at TIMESTAMPTZ NOT NULL,
			resolved BOOLEAN NOT NULL DEFAULT FALSE,
			blocking BOOLEAN NOT NULL DEFAULT FALSE,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			resolved_at TIMESTAMPTZ NULL,
			UNIQUE (connection_id, owner_id)
		);
		CREATE INDEX IF NOT EXISTS idx_obligations_owner_open ON review_obligations(owner_id) WHERE NOT resolved;
		CREATE INDEX IF NOT EXISTS idx_obligations_due ON review_obligations(due_at) WHERE NOT resolved AND NOT blocking;
	`)
	return err
}

func ensureReviews(ctx context.Context, pool *pgxpool.Pool) error {
	_, err := pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS reviews (
			id UUID PRIMARY KEY,
			connection_id UUID NOT NULL REFERENCES connections(id) ON DELETE CASCADE,
			author_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			subject_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			rating SMALLINT NOT NULL CHECK (rating BETWEEN 1 AND 5),
			quality SMALLINT NOT NULL DEFAULT 0,
			communication SMALLINT NOT NULL DEFAULT 0,
			punctuality SMALLINT NOT NULL DEFAULT 0,
			value SMALLINT NOT NULL DEFAULT 0,
			comment TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			editable_until TIMESTAMPTZ NOT NULL,
			UNIQUE (connection_id, author_id)
		);
		CREATE INDEX IF NOT EXISTS idx_reviews_subject ON reviews(subject_id, created_at);
	`)
	return err
}

func ensureNotifications(ctx context.Context, pool *pgxpool.Pool) error {
	_, err := pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS notifications (
			id UUID PRIMARY KEY,
			user_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			type TEXT NOT NULL,
			title TEXT NOT NULL,
			body TEXT NOT NULL DEFAULT '',
			reference TEXT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
			read_at TIMESTAMPTZ NULL
		);
		CREATE INDEX IF NOT EXISTS idx_notifications_user_created ON notifications(user_id, created_at);
		CREATE INDEX IF NOT EXISTS idx_notifications_user_unread ON notifications(user_id) WHERE read_at IS NULL;
	`)
	return err
}
