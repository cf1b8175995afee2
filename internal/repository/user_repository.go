package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/user-service/internal/domain"
)

// ErrEmailTaken is returned when the unique email constraint rejects a write.
var ErrEmailTaken = errors.New("email already registered")

const uniqueViolation = "23505"

// UserRepository is the credential store. Lookups of missing rows return pgx.ErrNoRows.
// Reads return the user together with its address and privacy settings.
type UserRepository interface {
	Create(ctx context.Context, user *domain.User) error
	UpdateProfile(ctx context.Context, id string, patch domain.ProfileUpdate) (*domain.User, error)
	Activate(ctx context.Context, id string) (user *domain.User, activated bool, err error)
	UpdateRole(ctx context.Context, id string, role domain.Role) (*domain.User, error)
	UpdateLastLogin(ctx context.Context, id string, at time.Time) error
	Delete(ctx context.Context, id string) error
	FindByID(ctx context.Context, id string) (*domain.User, error)
	FindByEmail(ctx context.Context, email string) (*domain.User, error)
	List(ctx context.Context, filter domain.UserFilter) ([]domain.User, int, error)
}

type userRepository struct {
	pool *pgxpool.Pool
}

// NewUserRepository returns a Postgres-backed implementation.
func NewUserRepository(pool *pgxpool.Pool) UserRepository {
	return &userRepository{pool: pool}
}

// rowQuerier is satisfied by both the pool and a transaction.
type rowQuerier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// profileSelect reads from a relation aliased u, either the users table or a
// data-modifying CTE over it.
const profileSelect = `SELECT u.id, u.email, u.name, u.password_hash, u.role, u.active, u.phone,
        u.created_at, u.updated_at, u.last_login_at,
        a.user_id IS NOT NULL, a.street, a.city, a.state, a.country,
        p.user_id IS NOT NULL, p.profile_visibility, p.show_email, p.show_phone
    FROM %s u
    LEFT JOIN user_addresses a ON a.user_id = u.id
    LEFT JOIN user_privacy_settings p ON p.user_id = u.id`

func selectFrom(relation string) string {
	return fmt.Sprintf(profileSelect, relation)
}

func scanUser(row pgx.Row) (*domain.User, error) {
	var (
		user                         domain.User
		hasAddress, hasPrivacy       bool
		street, city, state, country *string
		visibility                   *string
		showEmail, showPhone         *bool
	)
	if err := row.Scan(
		&user.ID,
		&user.Email,
		&user.Name,
		&user.PasswordHash,
		&user.Role,
		&user.Active,
		&user.Phone,
		&user.CreatedAt,
		&user.UpdatedAt,
		&user.LastLoginAt,
		&hasAddress, &street, &city, &state, &country,
		&hasPrivacy, &visibility, &showEmail, &showPhone,
	); err != nil {
		return nil, err
	}
	if hasAddress {
		user.Address = &domain.Address{
			Street:  deref(street),
			City:    deref(city),
			State:   deref(state),
			Country: deref(country),
		}
	}
	if hasPrivacy {
		user.Privacy = &domain.PrivacySettings{
			ProfileVisibility: domain.Visibility(deref(visibility)),
			ShowEmail:         showEmail != nil && *showEmail,
			ShowPhone:         showPhone != nil && *showPhone,
		}
	}
	return &user, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func (r *userRepository) Create(ctx context.Context, user *domain.User) error {
	const query = `
        INSERT INTO users (email, name, password_hash, role, active, phone)
        VALUES ($1, $2, $3, $4, $5, $6)
        RETURNING id, created_at, updated_at`

	err := r.pool.QueryRow(ctx, query,
		user.Email,
		user.Name,
		user.PasswordHash,
		user.Role,
		user.Active,
		user.Phone,
	).Scan(&user.ID, &user.CreatedAt, &user.UpdatedAt)
	return mapWriteError(err)
}

// UpdateProfile writes only the columns the patch names, in one transaction
// with the address and privacy upserts. Concurrent writes to other columns
// (activation, role, last login) are never overwritten.
func (r *userRepository) UpdateProfile(ctx context.Context, id string, patch domain.ProfileUpdate) (*domain.User, error) {
	const updateUser = `
        UPDATE users SET
            name = COALESCE($2::text, name),
            phone = CASE WHEN $3::boolean THEN NULLIF($4::text, '') ELSE phone END,
            updated_at = NOW()
        WHERE id = $1`

	var user *domain.User
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		cmd, err := tx.Exec(ctx, updateUser, id, patch.Name, patch.Phone != nil, patch.Phone)
		if err != nil {
			return err
		}
		if cmd.RowsAffected() == 0 {
			return pgx.ErrNoRows
		}
		if !patch.Address.Empty() {
			if err := upsertAddress(ctx, tx, id, *patch.Address); err != nil {
				return err
			}
		}
		if !patch.Privacy.Empty() {
			if err := upsertPrivacy(ctx, tx, id, *patch.Privacy); err != nil {
				return err
			}
		}
		user, err = findByID(ctx, tx, id)
		return err
	})
	if err != nil {
		return nil, mapWriteError(err)
	}
	return user, nil
}

func upsertAddress(ctx context.Context, tx pgx.Tx, id string, addr domain.AddressUpdate) error {
	const query = `
        INSERT INTO user_addresses (user_id, street, city, state, country)
        VALUES ($1, $2, $3, $4, $5)
        ON CONFLICT (user_id) DO UPDATE SET
            street = COALESCE(EXCLUDED.street, user_addresses.street),
            city = COALESCE(EXCLUDED.city, user_addresses.city),
            state = COALESCE(EXCLUDED.state, user_addresses.state),
            country = COALESCE(EXCLUDED.country, user_addresses.country),
            updated_at = NOW()`

	_, err := tx.Exec(ctx, query, id, addr.Street, addr.City, addr.State, addr.Country)
	return err
}

func upsertPrivacy(ctx context.Context, tx pgx.Tx, id string, privacy domain.PrivacyUpdate) error {
	const query = `
        INSERT INTO user_privacy_settings (user_id, profile_visibility, show_email, show_phone)
        VALUES ($1, COALESCE($2::text, 'public'), COALESCE($3::boolean, FALSE), COALESCE($4::boolean, FALSE))
        ON CONFLICT (user_id) DO UPDATE SET
            profile_visibility = COALESCE($2::text, user_privacy_settings.profile_visibility),
            show_email = COALESCE($3::boolean, user_privacy_settings.show_email),
            show_phone = COALESCE($4::boolean, user_privacy_settings.show_phone),
            updated_at = NOW()`

	var visibility *string
	if privacy.ProfileVisibility != nil {
		v := string(*privacy.ProfileVisibility)
		visibility = &v
	}
	_, err := tx.Exec(ctx, query, id, visibility, privacy.ShowEmail, privacy.ShowPhone)
	return err
}

// Activate sets active=TRUE if the user is inactive. activated reports whether
// this call made the change, so exactly one caller sees true.
func (r *userRepository) Activate(ctx context.Context, id string) (*domain.User, bool, error) {
	query := `WITH u AS (
            UPDATE users SET active = TRUE, updated_at = NOW()
            WHERE id = $1 AND NOT active
            RETURNING *
        ) ` + selectFrom("u")

	user, err := scanUser(r.pool.QueryRow(ctx, query, id))
	if err == nil {
		return user, true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, false, err
	}
	// already active, or missing
	user, err = r.FindByID(ctx, id)
	if err != nil {
		return nil, false, err
	}
	return user, false, nil
}

func (r *userRepository) UpdateRole(ctx context.Context, id string, role domain.Role) (*domain.User, error) {
	query := `WITH u AS (
            UPDATE users SET role = $1, updated_at = NOW()
            WHERE id = $2
            RETURNING *
        ) ` + selectFrom("u")

	return scanUser(r.pool.QueryRow(ctx, query, role, id))
}

func (r *userRepository) UpdateLastLogin(ctx context.Context, id string, at time.Time) error {
	const query = `UPDATE users SET last_login_at=$1 WHERE id=$2`

	cmd, err := r.pool.Exec(ctx, query, at, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *userRepository) Delete(ctx context.Context, id string) error {
	cmd, err := r.pool.Exec(ctx, `DELETE FROM users WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *userRepository) FindByID(ctx context.Context, id string) (*domain.User, error) {
	return findByID(ctx, r.pool, id)
}

func findByID(ctx context.Context, q rowQuerier, id string) (*domain.User, error) {
	return scanUser(q.QueryRow(ctx, selectFrom("users")+` WHERE u.id = $1`, id))
}

func (r *userRepository) FindByEmail(ctx context.Context, email string) (*domain.User, error) {
	return scanUser(r.pool.QueryRow(ctx, selectFrom("users")+` WHERE u.email = $1`, email))
}

func (r *userRepository) List(ctx context.Context, filter domain.UserFilter) ([]domain.User, int, error) {
	filter = filter.Normalize()
	where, args := listClauses(filter)

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM users u`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := selectFrom("users") + where +
		fmt.Sprintf(" ORDER BY u.created_at DESC LIMIT %d OFFSET %d", filter.Limit, filter.Offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	result := make([]domain.User, 0, filter.Limit)
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, 0, err
		}
		result = append(result, *user)
	}
	return result, total, rows.Err()
}

func listClauses(filter domain.UserFilter) (string, []any) {
	args := []any{}
	clauses := []string{}

	if filter.Role != nil {
		args = append(args, *filter.Role)
		clauses = append(clauses, fmt.Sprintf("u.role=$%d", len(args)))
	}
	if filter.Active != nil {
		args = append(args, *filter.Active)
		clauses = append(clauses, fmt.Sprintf("u.active=$%d", len(args)))
	}
	if len(clauses) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

func mapWriteError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return ErrEmailTaken
	}
	return err
}
