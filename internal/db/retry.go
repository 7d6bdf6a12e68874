package db

import (
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
)

// Operation is a function that performs an action and returns an error if it fails.
type Operation func() error

// RetryPredicate reports whether a failed operation may be attempted again.
type RetryPredicate func(err error) bool

const DefaultMaxRetries = 3

// Try executes an operation with default retry settings for commit results the
// server could not confirm.
func Try(op Operation) error {
	return WithRetries(op, DefaultMaxRetries, IsMongoCommitRetryable)
}

// WithRetries executes an operation, retrying it up to maxRetries times while
// shouldRetry accepts the error.
func WithRetries(op Operation, maxRetries int, shouldRetry RetryPredicate) error {
	var err error
	// Loop for initial attempt (attempt = 0) + maxRetries
	for attempt := 0; attempt <= maxRetries; attempt++ {
		err = op()
		if err == nil {
			return nil
		}

		if attempt == maxRetries {
			break
		}

		if shouldRetry(err) {
			time.Sleep(time.Duration(50*(attempt+1)) * time.Millisecond) // Simple incremental backoff
		} else {
			return err
		}
	}
	return err
}

// IsMongoDuplicateKeyError checks if an error from MongoDB is a duplicate key error (code 11000).
func IsMongoDuplicateKeyError(err error) bool {
	var e mongo.WriteException
	if errors.As(err, &e) {
		for _, we := range e.WriteErrors {
			if we.Code == 11000 {
				return true
			}
		}
	}
	var bwe mongo.BulkWriteException
	if errors.As(err, &bwe) {
		for _, writeError := range bwe.WriteErrors {
			if writeError.Code == 11000 {
				return true
			}
		}
	}
	return false
}

// IsMongoCommitRetryable reports whether a commitTransaction failure carries the
// UnknownTransactionCommitResult label, meaning the commit may safely be re-sent.
func IsMongoCommitRetryable(err error) bool {
	var se mongo.ServerError
	if errors.As(err, &se) {
		return se.HasErrorLabel("UnknownTransactionCommitResult")
	}
	return false
}
