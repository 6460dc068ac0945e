package state

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/MrEthical07/goClone/permission"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newRedisStoreTest(t *testing.T) (*RedisStore, *miniredis.Miniredis, func()) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis start: %v", err)
	}
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	store := NewRedisStore(rdb, "gct")
	return store, mr, func() {
		rdb.Close()
		mr.Close()
	}
}

func testRecord(addr string) *Record {
	return &Record{
		Address:   addr,
		Factory:   "0xfactory",
		Mask:      mask64(0b1010),
		Nonce:     1,
		CreatedAt: time.Unix(1700000000, 0).Unix(),
		Slots:     map[string][]byte{},
	}
}

func mask64(v uint64) *permission.Mask64 {
	m := permission.Mask64(v)
	return &m
}

func eachStore(t *testing.T, fn func(t *testing.T, s Store)) {
	t.Run("memory", func(t *testing.T) {
		fn(t, NewMemoryStore())
	})
	t.Run("redis", func(t *testing.T) {
		s, _, done := newRedisStoreTest(t)
		defer done()
		fn(t, s)
	})
}

func TestStoreCreateLoad(t *testing.T) {
	eachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		rec := testRecord("0xaa")
		rec.Slots["seed"] = []byte{7}

		if err := s.Create(ctx, rec); err != nil {
			t.Fatalf("create: %v", err)
		}
		if err := s.Create(ctx, rec); !errors.Is(err, ErrExists) {
			t.Fatalf("expected ErrExists, got %v", err)
		}

		got, err := s.Load(ctx, "0xaa")
		if err != nil {
			t.Fatalf("load: %v", err)
		}
		if got.Address != "0xaa" || got.Factory != rec.Factory || got.Nonce != 1 || got.CreatedAt != rec.CreatedAt {
			t.Fatalf("unexpected header: %+v", got)
		}
		if !got.Mask.Has(1) || !got.Mask.Has(3) || got.Mask.Has(0) {
			t.Fatalf("unexpected mask %s", permission.FormatMask(got.Mask))
		}
		if v := got.Slots["seed"]; len(v) != 1 || v[0] != 7 {
			t.Fatalf("unexpected seed slot %v", v)
		}

		if _, err := s.Load(ctx, "0xmissing"); !errors.Is(err, ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
	})
}

func TestStoreCommitAppliesWritesAndDeletes(t *testing.T) {
	eachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		rec := testRecord("0xbb")
		rec.Slots["gone"] = []byte("x")
		if err := s.Create(ctx, rec); err != nil {
			t.Fatalf("create: %v", err)
		}

		err := s.Commit(ctx, "0xbb", Changes{
			Writes:  map[string][]byte{"number": EncodeUint64(3)},
			Deletes: []string{"gone"},
		})
		if err != nil {
			t.Fatalf("commit: %v", err)
		}

		got, err := s.Load(ctx, "0xbb")
		if err != nil {
			t.Fatalf("load: %v", err)
		}
		if DecodeUint64(got.Slots["number"]) != 3 {
			t.Fatalf("expected number=3, got %v", got.Slots["number"])
		}
		if _, ok := got.Slots["gone"]; ok {
			t.Fatal("expected deleted slot to be gone")
		}

		if err := s.Commit(ctx, "0xmissing", Changes{Writes: map[string][]byte{"a": {1}}}); !errors.Is(err, ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
	})
}

func TestStoreSetMaskLeavesSlots(t *testing.T) {
	eachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		rec := testRecord("0xcc")
		rec.Slots["number"] = EncodeUint64(9)
		if err := s.Create(ctx, rec); err != nil {
			t.Fatalf("create: %v", err)
		}

		next, err := permission.NewMask(128)
		if err != nil {
			t.Fatalf("new mask: %v", err)
		}
		next.Set(100)
		if err := s.SetMask(ctx, "0xcc", next); err != nil {
			t.Fatalf("set mask: %v", err)
		}

		got, err := s.Load(ctx, "0xcc")
		if err != nil {
			t.Fatalf("load: %v", err)
		}
		if got.Mask.Width() != 128 || !got.Mask.Has(100) || got.Mask.Has(1) {
			t.Fatalf("unexpected mask %s", permission.FormatMask(got.Mask))
		}
		if DecodeUint64(got.Slots["number"]) != 9 {
			t.Fatal("set mask touched slots")
		}

		if err := s.SetMask(ctx, "0xmissing", next); !errors.Is(err, ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
		if err := s.SetMask(ctx, "0xcc", nil); err == nil {
			t.Fatal("expected nil mask rejection")
		}
	})
}

func TestStoreAddressesSorted(t *testing.T) {
	eachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		for _, addr := range []string{"0x03", "0x01", "0x02"} {
			if err := s.Create(ctx, testRecord(addr)); err != nil {
				t.Fatalf("create %s: %v", addr, err)
			}
		}
		got, err := s.Addresses(ctx)
		if err != nil {
			t.Fatalf("addresses: %v", err)
		}
		if len(got) != 3 || got[0] != "0x01" || got[1] != "0x02" || got[2] != "0x03" {
			t.Fatalf("unexpected addresses %v", got)
		}
	})
}

func TestStoreRecordsAreIsolated(t *testing.T) {
	eachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		if err := s.Create(ctx, testRecord("0xa1")); err != nil {
			t.Fatalf("create: %v", err)
		}
		if err := s.Create(ctx, testRecord("0xa2")); err != nil {
			t.Fatalf("create: %v", err)
		}
		if err := s.Commit(ctx, "0xa1", Changes{Writes: map[string][]byte{"number": EncodeUint64(1)}}); err != nil {
			t.Fatalf("commit: %v", err)
		}

		other, err := s.Load(ctx, "0xa2")
		if err != nil {
			t.Fatalf("load: %v", err)
		}
		if len(other.Slots) != 0 {
			t.Fatalf("expected untouched sibling, got %v", other.Slots)
		}
	})
}

func TestMemoryStoreReturnsCopies(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	rec := testRecord("0xdd")
	rec.Slots["k"] = []byte{1}
	if err := s.Create(ctx, rec); err != nil {
		t.Fatalf("create: %v", err)
	}
	rec.Slots["k"][0] = 99

	got, _ := s.Load(ctx, "0xdd")
	got.Slots["k"][0] = 42
	got.Mask.Set(60)

	again, _ := s.Load(ctx, "0xdd")
	if again.Slots["k"][0] != 1 {
		t.Fatalf("store aliased caller memory: %v", again.Slots["k"])
	}
	if again.Mask.Has(60) {
		t.Fatal("store aliased mask")
	}
}

func TestRedisStoreUnavailable(t *testing.T) {
	s, mr, done := newRedisStoreTest(t)
	defer done()
	ctx := context.Background()
	if err := s.Create(ctx, testRecord("0xee")); err != nil {
		t.Fatalf("create: %v", err)
	}

	mr.Close()

	if _, err := s.Load(ctx, "0xee"); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable on load, got %v", err)
	}
	if err := s.Commit(ctx, "0xee", Changes{Writes: map[string][]byte{"a": {1}}}); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable on commit, got %v", err)
	}
}

func TestRedisStoreCorruptHeader(t *testing.T) {
	s, mr, done := newRedisStoreTest(t)
	defer done()
	ctx := context.Background()

	if err := mr.Set(s.headerKey("0xff"), "\x09garbage"); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if _, err := s.Load(ctx, "0xff"); !errors.Is(err, ErrCorrupt) {
		t.Fatalf("expected ErrCorrupt, got %v", err)
	}
}

func TestRedisStoreCreateIsAllOrNothing(t *testing.T) {
	s, mr, done := newRedisStoreTest(t)
	defer done()
	ctx := context.Background()

	// A wrong-typed index makes the script's first write fail.
	if err := mr.Set(s.IndexKey(), "not-a-set"); err != nil {
		t.Fatalf("seed: %v", err)
	}
	rec := testRecord("0xab")
	rec.Slots["seed"] = []byte{1}
	if err := s.Create(ctx, rec); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
	if mr.Exists(s.headerKey("0xab")) || mr.Exists(s.slotsKey("0xab")) {
		t.Fatal("failed create left a partial record behind")
	}

	mr.Del(s.IndexKey())
	if err := s.Create(ctx, rec); err != nil {
		t.Fatalf("create after recovery: %v", err)
	}
	addrs, err := s.Addresses(ctx)
	if err != nil {
		t.Fatalf("addresses: %v", err)
	}
	if len(addrs) != 1 || addrs[0] != "0xab" {
		t.Fatalf("expected indexed 0xab, got %v", addrs)
	}
}
