package leasing

import (
	"context"

	"github.com/google/uuid"
)

// ActiveLeaseFilter scopes active-lease queries
type ActiveLeaseFilter struct {
	OwnerID *uuid.UUID // nil means all owners
}

// LeaseRepository defines read access to leases. The billing core only
// consumes leases; writes belong to the property-management layer.
type LeaseRepository interface {
	// FindByID finds a lease by ID
	FindByID(ctx context.Context, id uuid.UUID) (*Lease, error)

	// FindActive returns all ACTIVE leases, optionally scoped to one owner,
	// each carrying its property's current monthly rent and charges
	FindActive(ctx context.Context, filter ActiveLeaseFilter) ([]Lease, error)

	// CountActive counts ACTIVE leases, optionally scoped to one owner
	CountActive(ctx context.Context, filter ActiveLeaseFilter) (int64, error)
}
