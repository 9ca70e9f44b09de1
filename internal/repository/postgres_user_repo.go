package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"github.com/hitoshi/authgate/internal/model"
)

// uniqueViolation はPostgreSQLの一意性制約違反のSQLSTATEコード。
const uniqueViolation = "23505"

// PostgresUserRepo はPostgreSQLを使用したユーザーリポジトリ。
type PostgresUserRepo struct {
	db *sql.DB
}

// NewPostgresUserRepo はPostgresUserRepoを生成する。
func NewPostgresUserRepo(db *sql.DB) *PostgresUserRepo {
	return &PostgresUserRepo{db: db}
}

// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
func (r *PostgresUserRepo) FindByID(ctx context.Context, id string) (*model.User, error) {
	user := &model.User{}
	err := r.db.QueryRowContext(ctx,
		`SELECT id, provider, provider_id, email, name, created_at
		 FROM users WHERE id = $1`,
		id,
	).Scan(&user.ID, &user.Provider, &user.ProviderUserID, &user.Email, &user.Name, &user.CreatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find user by ID: %w", err)
	}

	return user, nil
}

// FindByProviderSubject はproviderとprovider_idでユーザーを検索する。
// 見つからない場合はnilを返す。
func (r *PostgresUserRepo) FindByProviderSubject(ctx context.Context, provider, providerUserID string) (*model.User, error) {
	user := &model.User{}
	err := r.db.QueryRowContext(ctx,
		`SELECT id, provider, provider_id, email, name, created_at
		 FROM users
		 WHERE provider = $1 AND provider_id = $2`,
		provider, providerUserID,
	).Scan(&user.ID, &user.Provider, &user.ProviderUserID, &user.Email, &user.Name, &user.CreatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find user by provider subject: %w", err)
	}

	return user, nil
}

// Create はユーザーを作成する。
// (provider, provider_id)の一意性制約違反はmodel.ErrDuplicateIdentityとして返す。
// 同一外部アイデンティティの同時初回ログインで発生し、呼び出し側は再取得で解決する。
func (r *PostgresUserRepo) Create(ctx context.Context, user *model.User) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO users (id, provider, provider_id, email, name, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		user.ID, user.Provider, user.ProviderUserID, user.Email, user.Name, user.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("failed to insert user: %w", model.ErrDuplicateIdentity)
		}
		return fmt.Errorf("failed to insert user: %w", err)
	}
	return nil
}

// isUniqueViolation はエラーがPostgreSQLの一意性制約違反かどうかを判定する。
func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == uniqueViolation
}

// compile-time interface check
var _ UserRepository = (*PostgresUserRepo)(nil)
