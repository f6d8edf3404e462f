package stores

import (
	"context"
	"strconv"
	"time"

	"github.com/MrEthical07/authcore/refresh"
	"github.com/redis/go-redis/v9"
)

const (
	refreshStatusMissing = iota
	refreshStatusUsed
	refreshStatusExpired
	refreshStatusConsumed
)

var consumeRefreshScript = redis.NewScript(`
local d = redis.call("HMGET", KEYS[1], "account", "exp", "used", "id", "created")
if not d[1] then return {0} end
if d[3] == "1" then return {1, d[1], d[2], d[4], d[5]} end
if tonumber(d[2]) < tonumber(ARGV[1]) then return {2, d[1], d[2], d[4], d[5]} end
redis.call("HSET", KEYS[1], "used", "1")
return {3, d[1], d[2], d[4], d[5]}
`)

var revokeRefreshScript = redis.NewScript(`
local members = redis.call("SMEMBERS", KEYS[1])
local n = 0
for _, h in ipairs(members) do
  local k = ARGV[1] .. h
  local used = redis.call("HGET", k, "used")
  if used == "0" then
    redis.call("HSET", k, "used", "1")
    n = n + 1
  elseif not used then
    redis.call("SREM", KEYS[1], h)
  end
end
return n
`)

var deleteAccountScript = redis.NewScript(`
local members = redis.call("SMEMBERS", KEYS[1])
local n = 0
for _, m in ipairs(members) do
  n = n + redis.call("DEL", ARGV[1] .. m)
end
redis.call("DEL", KEYS[1])
return n
`)

var sweepScript = redis.NewScript(`
local d = redis.call("HMGET", KEYS[1], "account", "exp", "used")
if not d[1] then return 0 end
if d[3] == "1" or tonumber(d[2]) < tonumber(ARGV[1]) then
  redis.call("DEL", KEYS[1])
  redis.call("SREM", ARGV[2] .. d[1], ARGV[3])
  return 1
end
return 0
`)

// RefreshRepository implements refresh.Repository on Redis.
//
//	<prefix>:t:<sha256 hex>  hash {id, account, exp, used, created}
//	<prefix>:a:<account id>  set of token digests
type RefreshRepository struct {
	redis   redis.UniversalClient
	options Options
}

// NewRefreshRepository returns a RefreshRepository. The default prefix is "art".
func NewRefreshRepository(client redis.UniversalClient, opts Options) *RefreshRepository {
	return &RefreshRepository{redis: client, options: opts.withDefaults("art")}
}

func (r *RefreshRepository) tokenPrefix() string { return r.options.Prefix + ":t:" }

func (r *RefreshRepository) accountPrefix() string { return r.options.Prefix + ":a:" }

func (r *RefreshRepository) tokenKey(hash string) string { return r.tokenPrefix() + hash }

func (r *RefreshRepository) accountKey(accountID int64) string {
	return r.accountPrefix() + strconv.FormatInt(accountID, 10)
}

// Insert stores rec and indexes it under its account.
func (r *RefreshRepository) Insert(ctx context.Context, rec refresh.Record) error {
	key := r.tokenKey(rec.TokenHash)
	setKey := r.accountKey(rec.AccountID)
	ttl := keyTTL(rec.ExpiresAt, rec.CreatedAt, r.options.Grace)

	_, err := r.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, key,
			"id", rec.ID,
			"account", strconv.FormatInt(rec.AccountID, 10),
			"exp", millis(rec.ExpiresAt),
			"used", boolFlag(rec.Used),
			"created", millis(rec.CreatedAt),
		)
		pipe.PExpire(ctx, key, ttl)
		pipe.SAdd(ctx, setKey, rec.TokenHash)
		pipe.PExpire(ctx, setKey, ttl)
		return nil
	})
	return unavailable(err)
}

// Consume runs the atomic unused-to-used transition.
func (r *RefreshRepository) Consume(ctx context.Context, tokenHash string, now time.Time) (refresh.Record, error) {
	reply, err := consumeRefreshScript.Run(ctx, r.redis, []string{r.tokenKey(tokenHash)}, now.UnixMilli()).Slice()
	if err != nil {
		return refresh.Record{}, unavailable(err)
	}
	if len(reply) == 0 {
		return refresh.Record{}, refresh.ErrNotFound
	}

	status, _ := reply[0].(int64)
	if status == refreshStatusMissing || len(reply) < 5 {
		return refresh.Record{}, refresh.ErrNotFound
	}

	accountID, _ := strconv.ParseInt(replyString(reply[1]), 10, 64)
	rec := refresh.Record{
		ID:        replyString(reply[3]),
		AccountID: accountID,
		TokenHash: tokenHash,
		ExpiresAt: parseMillis(replyString(reply[2])),
		CreatedAt: parseMillis(replyString(reply[4])),
		Used:      status != refreshStatusExpired,
	}

	switch status {
	case refreshStatusUsed:
		return rec, refresh.ErrConsumed
	case refreshStatusExpired:
		return rec, refresh.ErrExpired
	default:
		return rec, nil
	}
}

// RevokeAccount marks the account's unused tokens as used.
func (r *RefreshRepository) RevokeAccount(ctx context.Context, accountID int64) (int64, error) {
	n, err := revokeRefreshScript.Run(ctx, r.redis, []string{r.accountKey(accountID)}, r.tokenPrefix()).Int64()
	if err != nil {
		return 0, unavailable(err)
	}
	return n, nil
}

// DeleteAccount removes the account's tokens and index.
func (r *RefreshRepository) DeleteAccount(ctx context.Context, accountID int64) (int64, error) {
	n, err := deleteAccountScript.Run(ctx, r.redis, []string{r.accountKey(accountID)}, r.tokenPrefix()).Int64()
	if err != nil {
		return 0, unavailable(err)
	}
	return n, nil
}

// DeleteStale scans token keys and deletes used or long-expired ones.
func (r *RefreshRepository) DeleteStale(ctx context.Context, cutoff time.Time) (int64, error) {
	prefix := r.tokenPrefix()
	return sweepKeys(ctx, r.redis, sweepScript, prefix+"*", len(prefix), cutoff.UnixMilli(), r.accountPrefix())
}

func boolFlag(b bool) string {
	if b {
		return "1"
	}
	return "0"
}
