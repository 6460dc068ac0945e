package state

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/MrEthical07/goClone/permission"
	"github.com/redis/go-redis/v9"
)

// createRecordScript indexes the address before writing anything else: a
// failing command aborts the script but keeps earlier writes, so the index
// must be the first write.
const createRecordScript = `
if redis.call("EXISTS", KEYS[1]) == 1 then
  return 0
end
redis.call("SADD", KEYS[3], ARGV[1])
redis.call("SET", KEYS[1], ARGV[2])
redis.call("DEL", KEYS[2])
for i = 3, #ARGV, 2 do
  redis.call("HSET", KEYS[2], ARGV[i], ARGV[i + 1])
end
return 1
`

var createRecordLua = redis.NewScript(createRecordScript)

// RedisStore keeps each instance as two keys plus a shared index, all under
// the {<prefix>} hash tag so Create can write them in one script on a
// cluster too:
//
//	{<prefix>}:<address>:h  binary header (factory, nonce, created, mask)
//	{<prefix>}:<address>:s  hash of slot key -> value
//	{<prefix>}:idx          set listing every address
type RedisStore struct {
	redis  redis.UniversalClient
	prefix string
}

// NewRedisStore creates a [RedisStore] under the given key prefix.
func NewRedisStore(client redis.UniversalClient, prefix string) *RedisStore {
	if prefix == "" {
		prefix = "gc"
	}
	return &RedisStore{
		redis:  client,
		prefix: prefix,
	}
}

func (s *RedisStore) headerKey(address string) string {
	return "{" + s.prefix + "}:" + address + ":h"
}

func (s *RedisStore) slotsKey(address string) string {
	return "{" + s.prefix + "}:" + address + ":s"
}

// IndexKey is the set listing every stored address.
func (s *RedisStore) IndexKey() string {
	return "{" + s.prefix + "}:idx"
}

// Create stores and indexes a new record in one script: either all of it
// is written or none. Fails with [ErrExists] if the address is taken.
//
//	Performance: 1 script call.
func (s *RedisStore) Create(ctx context.Context, rec *Record) error {
	header, err := EncodeHeader(rec)
	if err != nil {
		return err
	}

	keys := make([]string, 0, len(rec.Slots))
	for k := range rec.Slots {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	args := make([]interface{}, 0, 2+2*len(keys))
	args = append(args, rec.Address, header)
	for _, k := range keys {
		args = append(args, k, rec.Slots[k])
	}

	keysIn := []string{s.headerKey(rec.Address), s.slotsKey(rec.Address), s.IndexKey()}
	created, err := createRecordLua.Run(ctx, s.redis, keysIn, args...).Int64()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if created == 0 {
		return ErrExists
	}
	return nil
}

// Load reads the header and every slot in one MULTI/EXEC round-trip.
//
//	Performance: 1 transaction (GET + HGETALL).
func (s *RedisStore) Load(ctx context.Context, address string) (*Record, error) {
	var (
		headerCmd *redis.StringCmd
		slotsCmd  *redis.MapStringStringCmd
	)
	_, err := s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		headerCmd = pipe.Get(ctx, s.headerKey(address))
		slotsCmd = pipe.HGetAll(ctx, s.slotsKey(address))
		return nil
	})
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	data, err := headerCmd.Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	rec, err := DecodeHeader(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	rec.Address = address

	slots, err := slotsCmd.Result()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	for k, v := range slots {
		rec.Slots[k] = []byte(v)
	}

	return rec, nil
}

// Commit applies changes to the slot hash. The header key is watched so a
// concurrent removal aborts the transaction instead of resurrecting slots.
//
//	Performance: WATCH + EXISTS + MULTI/EXEC.
func (s *RedisStore) Commit(ctx context.Context, address string, changes Changes) error {
	headerKey := s.headerKey(address)
	slotsKey := s.slotsKey(address)

	err := s.redis.Watch(ctx, func(tx *redis.Tx) error {
		exists, err := tx.Exists(ctx, headerKey).Result()
		if err != nil {
			return fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		if exists == 0 {
			return ErrNotFound
		}
		if changes.Empty() {
			return nil
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			if len(changes.Deletes) > 0 {
				pipe.HDel(ctx, slotsKey, changes.Deletes...)
			}
			if len(changes.Writes) > 0 {
				values := make(map[string]interface{}, len(changes.Writes))
				for k, v := range changes.Writes {
					values[k] = v
				}
				pipe.HSet(ctx, slotsKey, values)
			}
			return nil
		})
		return err
	}, headerKey)

	return s.mapWatchErr(err)
}

// SetMask rewrites the mask inside the header blob under WATCH.
func (s *RedisStore) SetMask(ctx context.Context, address string, mask permission.Mask) error {
	if mask == nil {
		return errNilMask
	}
	headerKey := s.headerKey(address)

	err := s.redis.Watch(ctx, func(tx *redis.Tx) error {
		data, err := tx.Get(ctx, headerKey).Bytes()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				return ErrNotFound
			}
			return fmt.Errorf("%w: %v", ErrUnavailable, err)
		}

		rec, err := DecodeHeader(data)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrCorrupt, err)
		}
		rec.Mask = mask

		next, err := EncodeHeader(rec)
		if err != nil {
			return err
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, headerKey, next, 0)
			return nil
		})
		return err
	}, headerKey)

	return s.mapWatchErr(err)
}

// Addresses lists every stored address in lexical order.
func (s *RedisStore) Addresses(ctx context.Context) ([]string, error) {
	out, err := s.redis.SMembers(ctx, s.IndexKey()).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	sort.Strings(out)
	return out, nil
}

func (s *RedisStore) mapWatchErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, redis.TxFailedErr):
		return ErrConflict
	case errors.Is(err, ErrNotFound),
		errors.Is(err, ErrUnavailable),
		errors.Is(err, ErrCorrupt),
		errors.Is(err, errNilMask):
		return err
	default:
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
}
