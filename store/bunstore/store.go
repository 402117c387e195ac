// Package bunstore persists the bearer credential (and a cached copy of the
// last-known account) in a local SQLite database so the session survives
// process restarts.
package bunstore

import (
	"context"
	"database/sql"
	"time"

	goerrors "github.com/goliatone/go-errors"
	repository "github.com/goliatone/go-repository-bun"
	"github.com/goliatone/hashid/pkg/hashid"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"

	session "github.com/newsportal/go-session"
)

// Credential is the persisted bearer token. One row per store; the key is
// fixed so Set overwrites and Clear is naturally idempotent.
type Credential struct {
	bun.BaseModel `bun:"table:credentials,alias:cred"`
	ID            uuid.UUID  `bun:"id,pk,type:uuid" json:"id,omitempty"`
	Token         string     `bun:"token,notnull" json:"token,omitempty"`
	UpdatedAt     *time.Time `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at,omitempty"`
}

// AccountRecord caches the last-known account for instant boot display
// while validation is in flight. Never consulted for authorization.
type AccountRecord struct {
	bun.BaseModel `bun:"table:accounts,alias:acct"`
	ID            uuid.UUID  `bun:"id,pk,type:uuid" json:"id,omitempty"`
	PrincipalID   string     `bun:"principal_id,notnull" json:"principal_id,omitempty"`
	Email         string     `bun:"email,notnull,unique" json:"email,omitempty"`
	DisplayName   string     `bun:"display_name" json:"display_name,omitempty"`
	AvatarURL     string     `bun:"avatar_url" json:"avatar_url,omitempty"`
	Role          string     `bun:"role" json:"role,omitempty"`
	PremiumSince  *time.Time `bun:"premium_since,nullzero" json:"premium_since,omitempty"`
	UpdatedAt     *time.Time `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at,omitempty"`
}

// credentialKey is the fixed row key of the single credential.
var credentialKey = func() uuid.UUID {
	id, err := hashid.NewUUID("newsportal.session.credential")
	if err != nil {
		return uuid.NameSpaceOID
	}
	return id
}()

// CredentialStore implements session.Store on top of bun/SQLite.
type CredentialStore struct {
	db       *bun.DB
	creds    repository.Repository[*Credential]
	accounts repository.Repository[*AccountRecord]
	timeout  time.Duration
}

var _ session.Store = (*CredentialStore)(nil)

// Open opens (creating if needed) the store at path. Use ":memory:" for an
// ephemeral store.
func Open(path string) (*CredentialStore, error) {
	sqldb, err := sql.Open(sqliteshim.ShimName, path)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to open credential store").
			WithMetadata(map[string]any{"path": path})
	}

	db := bun.NewDB(sqldb, sqlitedialect.New())

	ctx, cancel := context.WithTimeout(context.Background(), time.Second*10)
	defer cancel()

	for _, model := range []any{(*Credential)(nil), (*AccountRecord)(nil)} {
		if _, err := db.NewCreateTable().Model(model).IfNotExists().Exec(ctx); err != nil {
			return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to create store tables")
		}
	}

	return &CredentialStore{
		db:       db,
		creds:    newCredentialsRepository(db),
		accounts: newAccountsRepository(db),
		timeout:  time.Second * 5,
	}, nil
}

func newCredentialsRepository(db *bun.DB) repository.Repository[*Credential] {
	handlers := repository.ModelHandlers[*Credential]{
		NewRecord: func() *Credential {
			return &Credential{}
		},
		GetID: func(record *Credential) uuid.UUID {
			if record == nil {
				return uuid.Nil
			}
			return record.ID
		},
		SetID: func(record *Credential, id uuid.UUID) {
			record.ID = id
		},
		GetIdentifier: func() string {
			return "id"
		},
	}
	return repository.NewRepository(db, handlers)
}

func newAccountsRepository(db *bun.DB) repository.Repository[*AccountRecord] {
	handlers := repository.ModelHandlers[*AccountRecord]{
		NewRecord: func() *AccountRecord {
			return &AccountRecord{}
		},
		GetID: func(record *AccountRecord) uuid.UUID {
			if record == nil {
				return uuid.Nil
			}
			return record.ID
		},
		SetID: func(record *AccountRecord, id uuid.UUID) {
			record.ID = id
		},
		GetIdentifier: func() string {
			return "email"
		},
	}
	return repository.NewRepository(db, handlers)
}

// Get implements session.Store. Absence is a valid result.
func (s *CredentialStore) Get() (string, bool) {
	ctx, cancel := s.opContext()
	defer cancel()

	cred, err := s.creds.GetByID(ctx, credentialKey.String())
	if err != nil || cred == nil {
		return "", false
	}

	return cred.Token, cred.Token != ""
}

// Set implements session.Store, overwriting any previous value.
func (s *CredentialStore) Set(token string) error {
	ctx, cancel := s.opContext()
	defer cancel()

	now := time.Now()
	if _, err := s.creds.Upsert(ctx, &Credential{
		ID:        credentialKey,
		Token:     token,
		UpdatedAt: &now,
	}); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to persist credential")
	}

	return nil
}

// Clear implements session.Store; clearing an empty store is a no-op.
func (s *CredentialStore) Clear() error {
	ctx, cancel := s.opContext()
	defer cancel()

	if _, err := s.db.NewDelete().
		Model((*Credential)(nil)).
		Where("id = ?", credentialKey).
		Exec(ctx); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to clear credential")
	}

	return nil
}

// SaveAccount caches the account behind a Session. The record id derives
// deterministically from the email so repeat logins update in place.
func (s *CredentialStore) SaveAccount(ctx context.Context, sess session.Session) error {
	if sess.Email == "" {
		return goerrors.New("cannot cache an account without an email", goerrors.CategoryBadInput)
	}

	id, err := hashid.NewUUID(sess.Email)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to derive account record id")
	}

	now := time.Now()
	record := &AccountRecord{
		ID:           id,
		PrincipalID:  sess.PrincipalID,
		Email:        sess.Email,
		DisplayName:  sess.DisplayName,
		AvatarURL:    sess.AvatarURL,
		Role:         sess.Role,
		PremiumSince: sess.PremiumSince,
		UpdatedAt:    &now,
	}

	if _, err := s.accounts.Upsert(ctx, record); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to cache account")
	}

	return nil
}

// LoadAccount returns the most recently cached account, if any.
func (s *CredentialStore) LoadAccount(ctx context.Context) (*session.Session, error) {
	record := &AccountRecord{}
	err := s.db.NewSelect().
		Model(record).
		Order("updated_at DESC").
		Limit(1).
		Scan(ctx)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to load cached account")
	}

	role, _ := session.ParseRole(record.Role)
	return &session.Session{
		PrincipalID:  record.PrincipalID,
		DisplayName:  record.DisplayName,
		AvatarURL:    record.AvatarURL,
		Email:        record.Email,
		Role:         role,
		PremiumSince: record.PremiumSince,
	}, nil
}

// ClearAccounts drops the cached accounts, for logout paths that want no
// trace left behind.
func (s *CredentialStore) ClearAccounts(ctx context.Context) error {
	if _, err := s.db.NewDelete().
		Model((*AccountRecord)(nil)).
		Where("1 = 1").
		Exec(ctx); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to clear cached accounts")
	}
	return nil
}

func (s *CredentialStore) Close() error {
	return s.db.Close()
}

func (s *CredentialStore) opContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), s.timeout)
}
