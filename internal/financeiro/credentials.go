package financeiro

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/clinora/clinora/internal/shared"
)

const credentialCacheTTL = 5 * time.Minute

// Credenciais holds the decrypted per-tenant gateway credentials.
type Credenciais struct {
	APIKey string
	PixKey string
}

// CredentialStore loads per-tenant gateway credentials. Values live
// encrypted in PostgreSQL; decrypted API keys are cached briefly in Redis
// so charge creation does not hit the database on every request.
type CredentialStore struct {
	pool  *pgxpool.Pool
	cache *redis.Client
	box   *shared.SecretBox
}

// NewCredentialStore constructs the store. cache may be nil.
func NewCredentialStore(pool *pgxpool.Pool, cache *redis.Client, box *shared.SecretBox) *CredentialStore {
	return &CredentialStore{pool: pool, cache: cache, box: box}
}

// Save encrypts and upserts the tenant's credentials, invalidating the cache.
func (s *CredentialStore) Save(ctx context.Context, medicoID uuid.UUID, cred Credenciais) error {
	if cred.APIKey == "" {
		return errors.New("api key required")
	}
	sealedAPI, err := s.box.Seal(cred.APIKey)
	if err != nil {
		return err
	}
	var sealedPix *string
	if cred.PixKey != "" {
		sealed, err := s.box.Seal(cred.PixKey)
		if err != nil {
			return err
		}
		sealedPix = &sealed
	}
	_, err = s.pool.Exec(ctx, `INSERT INTO credenciais_asaas (medico_id, api_key, pix_key, updated_at)
VALUES ($1,$2,$3,NOW())
ON CONFLICT (medico_id) DO UPDATE SET api_key=EXCLUDED.api_key, pix_key=EXCLUDED.pix_key, updated_at=NOW()`,
		medicoID, sealedAPI, sealedPix)
	if err != nil {
		return err
	}
	if s.cache != nil {
		_ = s.cache.Del(ctx, cacheKey(medicoID)).Err()
	}
	return nil
}

// Load returns the decrypted credentials for a tenant. A tenant without a
// configured key gets ErrCredenciaisAusentes.
func (s *CredentialStore) Load(ctx context.Context, medicoID uuid.UUID) (Credenciais, error) {
	if s.cache != nil {
		cached, err := s.cache.HGetAll(ctx, cacheKey(medicoID)).Result()
		if err == nil && cached["api_key"] != "" {
			return Credenciais{APIKey: cached["api_key"], PixKey: cached["pix_key"]}, nil
		}
	}

	var sealedAPI string
	var sealedPix *string
	err := s.pool.QueryRow(ctx, `SELECT api_key, pix_key FROM credenciais_asaas WHERE medico_id=$1`, medicoID).
		Scan(&sealedAPI, &sealedPix)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Credenciais{}, ErrCredenciaisAusentes
		}
		return Credenciais{}, err
	}

	cred := Credenciais{}
	cred.APIKey, err = s.box.Open(sealedAPI)
	if err != nil {
		return Credenciais{}, fmt.Errorf("decrypt api key: %w", err)
	}
	if sealedPix != nil {
		cred.PixKey, err = s.box.Open(*sealedPix)
		if err != nil {
			return Credenciais{}, fmt.Errorf("decrypt pix key: %w", err)
		}
	}

	if s.cache != nil {
		key := cacheKey(medicoID)
		pipe := s.cache.Pipeline()
		pipe.HSet(ctx, key, "api_key", cred.APIKey, "pix_key", cred.PixKey)
		pipe.Expire(ctx, key, credentialCacheTTL)
		_, _ = pipe.Exec(ctx)
	}
	return cred, nil
}

func cacheKey(medicoID uuid.UUID) string {
	return "credenciais:" + medicoID.String()
}
