package repository

// Repositories bundles the store accessors the services share. All methods
// take the *gorm.DB to run on, so a caller inside a transaction passes tx and
// never touches the pool directly.
type Repositories struct {
	Groups        GroupRepository
	Enrollments   EnrollmentRepository
	Opportunities OpportunityRepository
	Bids          BidRepository
	Ledger        LedgerRepository
}

func New() Repositories {
	return Repositories{
		Groups:        NewGroupRepository(),
		Enrollments:   NewEnrollmentRepository(),
		Opportunities: NewOpportunityRepository(),
		Bids:          NewBidRepository(),
		Ledger:        NewLedgerRepository(),
	}
}
