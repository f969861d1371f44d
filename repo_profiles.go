package session

import (
	"context"
	"strings"
	"time"

	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Profiles is the bun-backed profile repository. It satisfies the
// controller's ProfileStore contract and adds the richer accessors the rest
// of a tournament app needs.
type Profiles interface {
	repository.Repository[*Profile]

	FetchBySubject(ctx context.Context, subject string) (*Profile, error)
	FetchBySubjectTx(ctx context.Context, tx bun.IDB, subject string) (*Profile, error)
	Insert(ctx context.Context, profile *Profile) error
	InsertTx(ctx context.Context, tx bun.IDB, profile *Profile) error
	UpdateBySubject(ctx context.Context, subject string, fields map[string]any) error
	UpdateBySubjectTx(ctx context.Context, tx bun.IDB, subject string, fields map[string]any) error
	MarkPasswordSet(ctx context.Context, subject string) error
	TrackLogin(ctx context.Context, subject string) error
}

type profiles struct {
	repository.Repository[*Profile]
	db *bun.DB
}

var (
	_ Profiles     = (*profiles)(nil)
	_ ProfileStore = (*profiles)(nil)
)

// NewProfilesRepository creates the profile repository over the given DB.
func NewProfilesRepository(db *bun.DB) Profiles {
	repo := repository.NewRepository[*Profile](db, repository.ModelHandlers[*Profile]{
		NewRecord: func() *Profile { return &Profile{} },
		GetID: func(p *Profile) uuid.UUID {
			if p == nil {
				return uuid.Nil
			}
			return p.ID
		},
		SetID: func(p *Profile, id uuid.UUID) {
			if p != nil {
				p.ID = id
			}
		},
		GetIdentifier: func() string {
			return "auth_id"
		},
	})

	return &profiles{
		Repository: repo,
		db:         db,
	}
}

func (r *profiles) FetchBySubject(ctx context.Context, subject string) (*Profile, error) {
	return r.FetchBySubjectTx(ctx, r.db, subject)
}

func (r *profiles) FetchBySubjectTx(ctx context.Context, tx bun.IDB, subject string) (*Profile, error) {
	subject = strings.TrimSpace(subject)
	if subject == "" {
		return nil, ErrProfileNotFound
	}

	record := &Profile{}
	err := tx.NewSelect().
		Model(record).
		Where("?TableAlias.auth_id = ?", subject).
		Limit(1).
		Scan(ctx)

	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, ErrProfileNotFound
		}
		return nil, err
	}

	record.EnsureRole()
	return record, nil
}

func (r *profiles) Insert(ctx context.Context, profile *Profile) error {
	return r.InsertTx(ctx, r.db, profile)
}

func (r *profiles) InsertTx(ctx context.Context, tx bun.IDB, profile *Profile) error {
	prepareProfileDefaults(profile)
	_, err := r.Repository.CreateTx(ctx, tx, profile)
	return err
}

func (r *profiles) UpdateBySubject(ctx context.Context, subject string, fields map[string]any) error {
	return r.UpdateBySubjectTx(ctx, r.db, subject, fields)
}

func (r *profiles) UpdateBySubjectTx(ctx context.Context, tx bun.IDB, subject string, fields map[string]any) error {
	if len(fields) == 0 {
		return nil
	}

	q := tx.NewUpdate().
		Model((*Profile)(nil)).
		Where("?TableAlias.auth_id = ?", subject)

	for column, value := range fields {
		q.Set("? = ?", bun.Ident(column), value)
	}
	q.Set("? = ?", bun.Ident("updated_at"), time.Now())

	res, err := q.Exec(ctx)
	if err != nil {
		return err
	}

	if rows, err := res.RowsAffected(); err == nil && rows == 0 {
		return ErrProfileNotFound
	}
	return nil
}

func (r *profiles) MarkPasswordSet(ctx context.Context, subject string) error {
	return r.UpdateBySubject(ctx, subject, map[string]any{"password_set": true})
}

func (r *profiles) TrackLogin(ctx context.Context, subject string) error {
	return r.UpdateBySubject(ctx, subject, map[string]any{"last_login": time.Now()})
}

func prepareProfileDefaults(p *Profile) {
	if p == nil {
		return
	}
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	p.EnsureRole()
}
