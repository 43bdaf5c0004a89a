package sweep

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	lferrors "github.com/sheetops/lifecycled/pkg/errors"
	"github.com/sheetops/lifecycled/pkg/interfaces"
)

// LocalLock is an in-process run lock. It serializes overlapping runs
// within one daemon instance.
type LocalLock struct {
	mu    sync.Mutex
	held  map[string]time.Time
	clock func() time.Time
}

// NewLocalLock creates an in-process run lock.
func NewLocalLock() *LocalLock {
	return &LocalLock{
		held:  make(map[string]time.Time),
		clock: time.Now,
	}
}

// TryAcquire takes the lock unless it is held and unexpired.
func (l *LocalLock) TryAcquire(ctx context.Context, name string, ttl time.Duration) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.clock()
	if expiry, ok := l.held[name]; ok && now.Before(expiry) {
		return false, nil
	}
	l.held[name] = now.Add(ttl)
	return true, nil
}

// Release releases the lock.
func (l *LocalLock) Release(ctx context.Context, name string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.held, name)
	return nil
}

// NATSLock is a run lock backed by a NATS JetStream key-value bucket. The
// Create call is the compare-and-create primitive: only one contender can
// create the key. Each key carries its holder's deadline so the caller's
// TTL is honored per acquire; the bucket TTL is the backstop reclaiming
// keys from dead holders.
type NATSLock struct {
	kv    jetstream.KeyValue
	owner string
}

// lockState is the payload stored under a lock key.
type lockState struct {
	Owner    string    `json:"owner"`
	Deadline time.Time `json:"deadline"`
}

func encodeLockState(owner string, deadline time.Time) []byte {
	data, _ := json.Marshal(lockState{Owner: owner, Deadline: deadline})
	return data
}

// lockExpired reports whether a stored lock payload is past its deadline.
// An undecodable payload counts as expired so a corrupt key cannot wedge
// the lock until the bucket TTL fires.
func lockExpired(data []byte, now time.Time) bool {
	var state lockState
	if err := json.Unmarshal(data, &state); err != nil {
		return true
	}
	return !now.Before(state.Deadline)
}

// NewNATSLock creates (or binds) the lock bucket on an existing NATS
// connection. The TTL bounds how long a crashed holder can keep the lock.
func NewNATSLock(conn *nats.Conn, bucket string, ttl time.Duration) (*NATSLock, error) {
	js, err := jetstream.New(conn)
	if err != nil {
		return nil, lferrors.NewLockError(bucket, err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	kv, err := js.CreateOrUpdateKeyValue(ctx, jetstream.KeyValueConfig{
		Bucket:      bucket,
		Description: "lifecycled run locks",
		History:     1,
		TTL:         ttl,
	})
	if err != nil {
		return nil, lferrors.NewLockError(bucket, err)
	}

	return &NATSLock{
		kv:    kv,
		owner: uuid.New().String(),
	}, nil
}

// TryAcquire attempts to create the lock key. A losing contender sees
// ErrKeyExists and backs off, unless the holder's deadline has passed: an
// expired lock is displaced with a revision-guarded update, so exactly one
// contender wins the takeover.
func (l *NATSLock) TryAcquire(ctx context.Context, name string, ttl time.Duration) (bool, error) {
	state := encodeLockState(l.owner, time.Now().Add(ttl))

	_, err := l.kv.Create(ctx, name, state)
	if err == nil {
		return true, nil
	}
	if !errors.Is(err, jetstream.ErrKeyExists) {
		return false, lferrors.NewLockError(name, err)
	}

	entry, err := l.kv.Get(ctx, name)
	if err != nil {
		if errors.Is(err, jetstream.ErrKeyNotFound) {
			// Released between Create and Get; the next run acquires it.
			return false, nil
		}
		return false, lferrors.NewLockError(name, err)
	}
	if !lockExpired(entry.Value(), time.Now()) {
		return false, nil
	}
	if _, err := l.kv.Update(ctx, name, state, entry.Revision()); err != nil {
		// Another contender displaced the expired holder first.
		return false, nil
	}
	return true, nil
}

// Release deletes the lock key so the next contender can take it.
func (l *NATSLock) Release(ctx context.Context, name string) error {
	if err := l.kv.Delete(ctx, name); err != nil {
		return lferrors.NewLockError(name, err)
	}
	return nil
}

var _ interfaces.RunLock = (*LocalLock)(nil)
var _ interfaces.RunLock = (*NATSLock)(nil)
