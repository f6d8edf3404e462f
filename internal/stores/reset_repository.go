package stores

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/MrEthical07/authcore/reset"
	"github.com/redis/go-redis/v9"
)

var replaceResetScript = redis.NewScript(`
if redis.call("EXISTS", KEYS[2]) == 1 then return -1 end
local members = redis.call("SMEMBERS", KEYS[1])
local removed = 0
for _, t in ipairs(members) do
  local k = ARGV[1] .. t
  local used = redis.call("HGET", k, "used")
  if used == "0" then
    redis.call("DEL", k)
    redis.call("SREM", KEYS[1], t)
    removed = removed + 1
  elseif not used then
    redis.call("SREM", KEYS[1], t)
  end
end
redis.call("HSET", KEYS[2], "id", ARGV[3], "account", ARGV[4], "mode", ARGV[5], "exp", ARGV[6], "used", "0", "created", ARGV[7])
redis.call("PEXPIRE", KEYS[2], ARGV[8])
redis.call("SADD", KEYS[1], ARGV[2])
redis.call("PEXPIRE", KEYS[1], ARGV[8])
return removed
`)

var markResetUsedScript = redis.NewScript(`
if redis.call("HGET", KEYS[1], "used") == "0" then
  redis.call("HSET", KEYS[1], "used", "1")
  return 1
end
return 0
`)

var releaseResetScript = redis.NewScript(`
if redis.call("HGET", KEYS[1], "used") == "1" then
  redis.call("HSET", KEYS[1], "used", "0")
end
return 0
`)

// ResetRepository implements reset.Repository on Redis.
//
//	<prefix>:t:<token>       hash {id, account, mode, exp, used, created}
//	<prefix>:a:<account id>  set of tokens
type ResetRepository struct {
	redis   redis.UniversalClient
	options Options
}

// NewResetRepository returns a ResetRepository. The default prefix is "apr".
func NewResetRepository(client redis.UniversalClient, opts Options) *ResetRepository {
	return &ResetRepository{redis: client, options: opts.withDefaults("apr")}
}

func (r *ResetRepository) tokenPrefix() string { return r.options.Prefix + ":t:" }

func (r *ResetRepository) accountPrefix() string { return r.options.Prefix + ":a:" }

func (r *ResetRepository) accountKey(accountID int64) string {
	return r.accountPrefix() + strconv.FormatInt(accountID, 10)
}

// Replace deletes the account's unused rows and inserts rec in one script.
func (r *ResetRepository) Replace(ctx context.Context, rec reset.Record) error {
	ttl := keyTTL(rec.ExpiresAt, rec.CreatedAt, r.options.Grace)
	keys := []string{r.accountKey(rec.AccountID), r.tokenPrefix() + rec.Token}

	n, err := replaceResetScript.Run(ctx, r.redis, keys,
		r.tokenPrefix(),
		rec.Token,
		rec.ID,
		strconv.FormatInt(rec.AccountID, 10),
		rec.Mode.String(),
		millis(rec.ExpiresAt),
		millis(rec.CreatedAt),
		ttl.Milliseconds(),
	).Int64()
	if err != nil {
		return unavailable(err)
	}
	if n < 0 {
		return reset.ErrDuplicateToken
	}
	return nil
}

// FindByToken loads the row stored under token.
func (r *ResetRepository) FindByToken(ctx context.Context, token string) (reset.Record, error) {
	if token == "" {
		return reset.Record{}, reset.ErrNotFound
	}
	fields, err := r.redis.HGetAll(ctx, r.tokenPrefix()+token).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return reset.Record{}, reset.ErrNotFound
		}
		return reset.Record{}, unavailable(err)
	}
	if len(fields) == 0 {
		return reset.Record{}, reset.ErrNotFound
	}

	accountID, _ := strconv.ParseInt(fields["account"], 10, 64)
	return reset.Record{
		ID:        fields["id"],
		AccountID: accountID,
		Token:     token,
		Mode:      reset.ParseMode(fields["mode"]),
		ExpiresAt: parseMillis(fields["exp"]),
		Used:      fields["used"] == "1",
		CreatedAt: parseMillis(fields["created"]),
	}, nil
}

// MarkUsed runs the atomic unused-to-used transition.
func (r *ResetRepository) MarkUsed(ctx context.Context, token string) (bool, error) {
	n, err := markResetUsedScript.Run(ctx, r.redis, []string{r.tokenPrefix() + token}).Int64()
	if err != nil {
		return false, unavailable(err)
	}
	return n == 1, nil
}

// Release flips a used row back to unused.
func (r *ResetRepository) Release(ctx context.Context, token string) error {
	if err := releaseResetScript.Run(ctx, r.redis, []string{r.tokenPrefix() + token}).Err(); err != nil {
		return unavailable(err)
	}
	return nil
}

// DeleteAccount removes the account's reset rows and index.
func (r *ResetRepository) DeleteAccount(ctx context.Context, accountID int64) (int64, error) {
	n, err := deleteAccountScript.Run(ctx, r.redis, []string{r.accountKey(accountID)}, r.tokenPrefix()).Int64()
	if err != nil {
		return 0, unavailable(err)
	}
	return n, nil
}

// DeleteStale scans token keys and deletes used or long-expired ones.
func (r *ResetRepository) DeleteStale(ctx context.Context, cutoff time.Time) (int64, error) {
	prefix := r.tokenPrefix()
	return sweepKeys(ctx, r.redis, sweepScript, prefix+"*", len(prefix), cutoff.UnixMilli(), r.accountPrefix())
}
