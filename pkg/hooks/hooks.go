// Package hooks declares the lifecycle interfaces a model may implement.
// The manager invokes them around create, update, and delete operations and
// after each materialized find. Returning an error aborts the operation.
package hooks

import "context"

type BeforeCreator interface {
	BeforeCreate(ctx context.Context) error
}

type AfterCreator interface {
	AfterCreate(ctx context.Context) error
}

type BeforeUpdater interface {
	BeforeUpdate(ctx context.Context) error
}

type AfterUpdater interface {
	AfterUpdate(ctx context.Context) error
}

type BeforeDeleter interface {
	BeforeDelete(ctx context.Context) error
}

type AfterDeleter interface {
	AfterDelete(ctx context.Context) error
}

// AfterFinder runs after a row has been materialized into the instance.
type AfterFinder interface {
	AfterFind(ctx context.Context) error
}
