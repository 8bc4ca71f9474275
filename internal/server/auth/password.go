package auth

import (
	"context"
	"errors"
	"runtime"
	"sync"

	"golang.org/x/crypto/bcrypt"
	"golang.org/x/sync/semaphore"
)

// MinBcryptCost is the lowest work factor accepted for stored passwords.
const MinBcryptCost = 12

// MaxPasswordBytes is bcrypt's input limit. It counts bytes, not runes.
const MaxPasswordBytes = 72

// ErrPasswordTooLong is returned by Hash for input over MaxPasswordBytes.
var ErrPasswordTooLong = errors.New("password exceeds 72 bytes")

// Hasher hashes and compares passwords with bcrypt. At most `workers`
// bcrypt operations run at once; callers queue on the semaphore and give up
// when their context ends.
type Hasher struct {
	cost int
	sem  *semaphore.Weighted

	dummyOnce sync.Once
	dummy     []byte
}

// NewHasher returns a Hasher with the given cost (raised to MinBcryptCost)
// and concurrency. workers < 1 means runtime.NumCPU().
func NewHasher(cost, workers int) *Hasher {
	if cost < MinBcryptCost {
		cost = MinBcryptCost
	}
	return newHasher(cost, workers)
}

// NewFastHasher uses bcrypt.MinCost. Only for tests.
func NewFastHasher() *Hasher {
	return newHasher(bcrypt.MinCost, 0)
}

func newHasher(cost, workers int) *Hasher {
	if workers < 1 {
		workers = runtime.NumCPU()
	}
	return &Hasher{cost: cost, sem: semaphore.NewWeighted(int64(workers))}
}

// Cost returns the bcrypt work factor in use.
func (h *Hasher) Cost() int { return h.cost }

// Hash returns the bcrypt hash of password.
func (h *Hasher) Hash(ctx context.Context, password string) (string, error) {
	if len(password) > MaxPasswordBytes {
		return "", ErrPasswordTooLong
	}
	if err := h.sem.Acquire(ctx, 1); err != nil {
		return "", err
	}
	defer h.sem.Release(1)

	b, err := bcrypt.GenerateFromPassword([]byte(password), h.cost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// Compare reports whether password matches hash. A mismatch or an unusable
// hash yields false with a nil error; only context failures are returned.
func (h *Hasher) Compare(ctx context.Context, hash, password string) (bool, error) {
	if err := h.sem.Acquire(ctx, 1); err != nil {
		return false, err
	}
	defer h.sem.Release(1)

	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		return false, nil
	}
	return true, nil
}

// CompareDummy burns the same amount of work as a real comparison. Used when
// the account does not exist so response time does not reveal it.
func (h *Hasher) CompareDummy(ctx context.Context, password string) error {
	h.dummyOnce.Do(func() {
		h.dummy, _ = bcrypt.GenerateFromPassword([]byte("estately-dummy-password"), h.cost)
	})
	_, err := h.Compare(ctx, string(h.dummy), password)
	return err
}
