package stores

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/oarkflow/abac/logger"
)

// SignedPolicyBundle is a policy document plus a detached signature over its
// canonical JSON. Consumers verify with the distributor's public key before
// trusting the document.
type SignedPolicyBundle struct {
	Record    *PolicyRecord `json:"record"`
	Signature string        `json:"signature"`
	SignedAt  time.Time     `json:"signed_at"`
}

// BundleSubscriber receives signed policy documents as they change
type BundleSubscriber interface {
	OnBundle(ctx context.Context, name string, pub ed25519.PublicKey, bundle *SignedPolicyBundle) error
}

// BundleSubscriberFunc adapts a function to BundleSubscriber
type BundleSubscriberFunc func(ctx context.Context, name string, pub ed25519.PublicKey, bundle *SignedPolicyBundle) error

func (f BundleSubscriberFunc) OnBundle(ctx context.Context, name string, pub ed25519.PublicKey, bundle *SignedPolicyBundle) error {
	return f(ctx, name, pub, bundle)
}

// PolicyDistributor signs policy documents out of a store and pushes them to
// subscribers. Change notifications are queued; a background goroutine
// drains the queue and rotates the signing key on an interval.
type PolicyDistributor struct {
	store            PolicyStore
	log              logger.Logger
	pub              ed25519.PublicKey
	priv             ed25519.PrivateKey
	rotationInterval time.Duration
	notifyCh         chan string
	stopCh           chan struct{}
	subscribers      map[string][]BundleSubscriber
	mu               sync.RWMutex
	started          bool
	wg               sync.WaitGroup
}

type PolicyDistributorOption func(*PolicyDistributor)

// WithSigningKey installs a fixed signing key instead of a generated one
func WithSigningKey(priv ed25519.PrivateKey) PolicyDistributorOption {
	return func(d *PolicyDistributor) {
		if len(priv) == ed25519.PrivateKeySize {
			d.priv = append(ed25519.PrivateKey{}, priv...)
			d.pub = priv.Public().(ed25519.PublicKey)
		}
	}
}

// WithDistributorLogger sets the logger for background loop failures
func WithDistributorLogger(l logger.Logger) PolicyDistributorOption {
	return func(d *PolicyDistributor) {
		if l != nil {
			d.log = l
		}
	}
}

// WithRotationInterval sets how often the signing key is regenerated
func WithRotationInterval(interval time.Duration) PolicyDistributorOption {
	return func(d *PolicyDistributor) {
		if interval > 0 {
			d.rotationInterval = interval
		}
	}
}

func NewPolicyDistributor(store PolicyStore, opts ...PolicyDistributorOption) (*PolicyDistributor, error) {
	if store == nil {
		return nil, fmt.Errorf("policy store is required")
	}
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("generate signing key: %w", err)
	}
	d := &PolicyDistributor{
		store:            store,
		log:              logger.NewNullLogger(),
		pub:              pub,
		priv:             priv,
		rotationInterval: 24 * time.Hour,
		notifyCh:         make(chan string, 256),
		stopCh:           make(chan struct{}),
		subscribers:      make(map[string][]BundleSubscriber),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d, nil
}

// PublicKey returns the current verification key
func (d *PolicyDistributor) PublicKey() ed25519.PublicKey {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return append(ed25519.PublicKey{}, d.pub...)
}

// Subscribe registers a subscriber for one policy name, or for every policy
// when name is empty
func (d *PolicyDistributor) Subscribe(name string, sub BundleSubscriber) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.subscribers[name] = append(d.subscribers[name], sub)
}

// NotifyChange queues a distribution for the named policy. It never blocks;
// a full queue drops the notification and the next change re-triggers it.
func (d *PolicyDistributor) NotifyChange(name string) {
	if name == "" {
		return
	}
	select {
	case d.notifyCh <- name:
	default:
	}
}

// Start launches the distribution loop
func (d *PolicyDistributor) Start(ctx context.Context) {
	d.mu.Lock()
	if d.started {
		d.mu.Unlock()
		return
	}
	d.started = true
	d.mu.Unlock()

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		ticker := time.NewTicker(d.rotationInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-d.stopCh:
				return
			case name := <-d.notifyCh:
				if err := d.Distribute(ctx, name); err != nil {
					d.log.Error("bundle distribution failed", "policy", name, "error", err.Error())
				}
			case <-ticker.C:
				if err := d.RotateSigningKey(); err != nil {
					d.log.Error("signing key rotation failed", "error", err.Error())
				}
			}
		}
	}()
}

// Stop shuts the loop down, waiting until ctx expires
func (d *PolicyDistributor) Stop(ctx context.Context) error {
	d.mu.Lock()
	if !d.started {
		d.mu.Unlock()
		return nil
	}
	d.started = false
	d.mu.Unlock()

	close(d.stopCh)
	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-done:
		return nil
	}
}

// RotateSigningKey generates a fresh key pair. Bundles signed before the
// rotation verify only against the old public key.
func (d *PolicyDistributor) RotateSigningKey() error {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return fmt.Errorf("rotate signing key: %w", err)
	}
	d.mu.Lock()
	d.pub = pub
	d.priv = priv
	d.mu.Unlock()
	return nil
}

// Distribute signs and pushes the named policy document synchronously
func (d *PolicyDistributor) Distribute(ctx context.Context, name string) error {
	rec, err := d.store.Get(ctx, name)
	if err != nil {
		return err
	}
	bundle, pub, err := d.sign(rec)
	if err != nil {
		return err
	}
	d.mu.RLock()
	subs := append(append([]BundleSubscriber{}, d.subscribers[name]...), d.subscribers[""]...)
	d.mu.RUnlock()
	for _, sub := range subs {
		if err := sub.OnBundle(ctx, name, pub, bundle); err != nil {
			return err
		}
	}
	return nil
}

func (d *PolicyDistributor) sign(rec *PolicyRecord) (*SignedPolicyBundle, ed25519.PublicKey, error) {
	payload, err := json.Marshal(rec)
	if err != nil {
		return nil, nil, err
	}
	d.mu.RLock()
	priv := d.priv
	pub := append(ed25519.PublicKey{}, d.pub...)
	d.mu.RUnlock()
	sig := ed25519.Sign(priv, payload)
	return &SignedPolicyBundle{
		Record:    rec,
		Signature: base64.StdEncoding.EncodeToString(sig),
		SignedAt:  time.Now(),
	}, pub, nil
}

// VerifyBundle checks a bundle's signature against a public key
func VerifyBundle(pub ed25519.PublicKey, bundle *SignedPolicyBundle) (bool, error) {
	payload, err := json.Marshal(bundle.Record)
	if err != nil {
		return false, err
	}
	sig, err := base64.StdEncoding.DecodeString(bundle.Signature)
	if err != nil {
		return false, err
	}
	return ed25519.Verify(pub, payload, sig), nil
}
