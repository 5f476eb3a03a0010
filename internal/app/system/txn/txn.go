// Package txn runs multi-collection writes inside a MongoDB transaction
// when the server supports them, falling back to a plain sequential run
// on standalone servers.
//
// The fallback keeps local development on a single mongod working; the
// callbacks passed to Run must therefore be safe to apply without
// transactional isolation (idempotent or order-tolerant writes).
package txn

import (
	"context"
	"errors"
	"strings"

	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// Run executes fn inside a transaction on db's client. If the server
// does not support transactions (standalone mongod), fn runs once
// without one and a debug line records the downgrade.
func Run(ctx context.Context, db *mongo.Database, log *zap.Logger, fn func(ctx context.Context) error) error {
	sess, err := db.Client().StartSession()
	if err != nil {
		if IsNotSupported(err) {
			logFallback(log, err)
			return fn(ctx)
		}
		return err
	}
	defer sess.EndSession(ctx)

	_, err = sess.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		return nil, fn(sc)
	})
	if err != nil && IsNotSupported(err) {
		logFallback(log, err)
		return fn(ctx)
	}
	return err
}

func logFallback(log *zap.Logger, err error) {
	if log != nil {
		log.Debug("transactions unavailable, running without one", zap.Error(err))
	}
}

// IsNotSupported reports whether err indicates the server cannot run
// transactions (standalone deployment, old server, or sessions disabled).
func IsNotSupported(err error) bool {
	if err == nil {
		return false
	}

	var cmdErr mongo.CommandError
	if errors.As(err, &cmdErr) {
		switch cmdErr.Code {
		case 20, 51, 263:
			return true
		}
		return false
	}

	msg := strings.ToLower(err.Error())
	hasTxn := strings.Contains(msg, "transaction")
	hasSession := strings.Contains(msg, "session")
	switch {
	case hasTxn && strings.Contains(msg, "replica set"):
		return true
	case hasSession && strings.Contains(msg, "not supported"):
		return true
	case hasTxn && hasSession:
		return true
	case hasTxn && strings.Contains(msg, "illegal operation"):
		return true
	}
	return false
}
