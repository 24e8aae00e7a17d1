package repository

import "context"

// TransactionManager defines the interface for managing database transactions.
// This allows the use case layer to handle transactions without depending on a specific DB driver like GORM.
type TransactionManager interface {
	// Execute runs a function within a database transaction.
	// If the function returns an error, the transaction is rolled back. Otherwise, it's committed.
	// All repository operations within the function share the same transaction;
	// row locks taken inside are held until commit or rollback.
	Execute(ctx context.Context, fn func(txRepoFactory RepositoryFactory) error) error
}

// RepositoryFactory provides repository instances bound to one specific
// transaction, so a check-then-mutate sequence observes a consistent row.
type RepositoryFactory interface {
	// UserRepo returns a UserRepository bound to the current transaction.
	UserRepo() UserRepository

	// LoginSessionRepo returns a LoginSessionRepository bound to the current transaction.
	LoginSessionRepo() LoginSessionRepository

	// IdentityBindingRepo returns an IdentityBindingRepository bound to the current transaction.
	IdentityBindingRepo() IdentityBindingRepository
}
