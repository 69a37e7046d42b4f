package firestore

import (
	"context"
	"errors"
	"time"

	"cloud.google.com/go/firestore"
)

const (
	defaultTxAttempts = 5
	defaultTxTimeout  = 15 * time.Second
)

// TxFunc is executed within a Firestore transaction.
type TxFunc func(ctx context.Context, tx *firestore.Transaction) error

// TxOption customises transaction behaviour.
type TxOption func(*txConfig)

type txConfig struct {
	attempts int
	timeout  time.Duration
}

// WithTxAttempts overrides the retry attempts for a transaction.
func WithTxAttempts(attempts int) TxOption {
	return func(cfg *txConfig) {
		if attempts > 0 {
			cfg.attempts = attempts
		}
	}
}

// WithTxTimeout sets a timeout for the transaction context.
func WithTxTimeout(timeout time.Duration) TxOption {
	return func(cfg *txConfig) {
		if timeout > 0 {
			cfg.timeout = timeout
		}
	}
}

// RunTransaction executes fn within a transaction on the provided client.
func RunTransaction(ctx context.Context, client *firestore.Client, fn TxFunc, opts ...TxOption) error {
	if client == nil {
		return WrapError("transaction", errors.New("firestore: client is nil"))
	}
	if fn == nil {
		return WrapError("transaction", errors.New("firestore: transaction function is nil"))
	}

	cfg := txConfig{attempts: defaultTxAttempts, timeout: defaultTxTimeout}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}

	if deadline, ok := ctx.Deadline(); !ok || time.Until(deadline) > cfg.timeout {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.timeout)
		defer cancel()
	}

	err := client.RunTransaction(ctx, fn, firestore.MaxAttempts(cfg.attempts))
	return WrapError("transaction", err)
}

// Tx is the transaction handle repositories find on the context. Firestore rejects reads issued after
// a write in the same transaction, so reads go straight to the server while mutations are queued and
// flushed once the unit of work callback returns.
type Tx struct {
	tx     *firestore.Transaction
	writes []func(*firestore.Transaction) error
}

// Get reads a document inside the transaction.
func (t *Tx) Get(ref *firestore.DocumentRef) (*firestore.DocumentSnapshot, error) {
	return t.tx.Get(ref)
}

// Documents runs a query inside the transaction.
func (t *Tx) Documents(q firestore.Queryer) *firestore.DocumentIterator {
	return t.tx.Documents(q)
}

// Create queues a create that fails the transaction when the document exists.
func (t *Tx) Create(ref *firestore.DocumentRef, data any) {
	t.writes = append(t.writes, func(tx *firestore.Transaction) error {
		return tx.Create(ref, data)
	})
}

// Set queues an upsert.
func (t *Tx) Set(ref *firestore.DocumentRef, data any, opts ...firestore.SetOption) {
	t.writes = append(t.writes, func(tx *firestore.Transaction) error {
		return tx.Set(ref, data, opts...)
	})
}

// Update queues a partial update.
func (t *Tx) Update(ref *firestore.DocumentRef, updates []firestore.Update, preconds ...firestore.Precondition) {
	t.writes = append(t.writes, func(tx *firestore.Transaction) error {
		return tx.Update(ref, updates, preconds...)
	})
}

func (t *Tx) flush() error {
	for _, write := range t.writes {
		if err := write(t.tx); err != nil {
			return err
		}
	}
	t.writes = nil
	return nil
}

type txKey struct{}

// TxFromContext returns the transaction started by UnitOfWork.RunInTx, if any.
func TxFromContext(ctx context.Context) (*Tx, bool) {
	tx, ok := ctx.Value(txKey{}).(*Tx)
	return tx, ok && tx != nil
}

// UnitOfWork runs callbacks inside a Firestore transaction carried on the context. Repositories built on
// BaseRepository join it automatically.
type UnitOfWork struct {
	provider *Provider
	opts     []TxOption
}

// NewUnitOfWork binds a unit of work to the provider.
func NewUnitOfWork(provider *Provider, opts ...TxOption) *UnitOfWork {
	return &UnitOfWork{provider: provider, opts: opts}
}

// RunInTx runs fn in a transaction. Nested calls join the outer transaction. Firestore may retry fn on
// contention, so fn must not have side effects outside the repositories.
func (u *UnitOfWork) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if fn == nil {
		return errors.New("firestore: unit of work function is nil")
	}
	if _, ok := TxFromContext(ctx); ok {
		return fn(ctx)
	}
	return u.provider.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		handle := &Tx{tx: tx}
		if err := fn(context.WithValue(ctx, txKey{}, handle)); err != nil {
			return err
		}
		return handle.flush()
	}, u.opts...)
}
