package store

import "context"

// RunSerialized runs fn inside a transaction holding a pg advisory xact lock.
// When the lock is already held elsewhere fn is skipped and ran=false is
// returned, so concurrent callers collapse to a single active run.
// The lock releases automatically at commit or rollback
func RunSerialized(ctx context.Context, tx TxRunner, lockKey int64, fn func(ctx context.Context, q RowQuerier) error) (ran bool, err error) {
	err = tx.Tx(ctx, func(q RowQuerier) error {
		var got bool
		if err := q.QueryRow(ctx, `SELECT pg_try_advisory_xact_lock($1)`, lockKey).Scan(&got); err != nil {
			return err
		}
		if !got {
			return nil
		}
		ran = true
		return fn(ctx, q)
	})
	return ran, err
}
