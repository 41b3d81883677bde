package models

import "time"

// GenerationMode selects how a coloring page is produced.
type GenerationMode string

const (
	ModeText    GenerationMode = "text"
	ModePhoto   GenerationMode = "photo"
	ModeRecolor GenerationMode = "recolor"
)

// JobStatus is the generation job state machine. queued and processing are
// transient; completed, failed and blocked are terminal.
type JobStatus string

const (
	StatusQueued     JobStatus = "queued"
	StatusProcessing JobStatus = "processing"
	StatusCompleted  JobStatus = "completed"
	StatusFailed     JobStatus = "failed"
	StatusBlocked    JobStatus = "blocked"
)

// LedgerReason tags every wallet balance mutation.
type LedgerReason string

const (
	ReasonInitialGrant         LedgerReason = "initial_grant"
	ReasonMonthlyRefill        LedgerReason = "monthly_refill"
	ReasonGeneration           LedgerReason = "generation"
	ReasonGenerationRefund     LedgerReason = "generation_refund"
	ReasonPlanActivationRefill LedgerReason = "plan_activation_refill"
	ReasonInvoicePaidRefill    LedgerReason = "invoice_paid_refill"
	ReasonSystemAdjustment     LedgerReason = "system_adjustment"
)

type User struct {
	ID          string
	Email       string
	DisplayName string
	Locale      string
	CreatedAt   time.Time
	UpdatedAt   time.Time
	LastLoginAt *time.Time
}

type Plan struct {
	ID             int64
	Code           string
	Name           string
	Interval       string
	MonthlyCredits int
	PriceCents     int
	APIRPM         int
	IsActive       bool
	CreatedAt      time.Time
}

type Subscription struct {
	ID                     int64
	UserID                 string
	PlanID                 int64
	Status                 string
	ProviderCustomerID     string
	ProviderSubscriptionID string
	CurrentPeriodEnd       *time.Time
	CancelAtPeriodEnd      bool
	CreatedAt              time.Time
	UpdatedAt              time.Time
}

// Wallet holds a user's spendable credit balance. The balance is only ever
// mutated together with a matching LedgerEntry inside one transaction.
type Wallet struct {
	ID              int64
	UserID          string
	Balance         int
	CycleResetAt    time.Time
	LifetimeGranted int
	LifetimeUsed    int
	UpdatedAt       time.Time
}

// LedgerEntry is an immutable audit record of a single balance mutation.
// Positive amounts are credits, negative amounts are debits.
type LedgerEntry struct {
	ID            int64
	UserID        string
	WalletID      int64
	Amount        int
	Reason        LedgerReason
	ReferenceType string
	ReferenceID   string
	CreatedAt     time.Time
}

type GenerationJob struct {
	ID           string
	UserID       string
	Mode         GenerationMode
	Prompt       string
	Style        string
	AspectRatio  string
	Difficulty   string
	Status       JobStatus
	CostCredits  int
	ErrorMessage string
	CreatedAt    time.Time
	UpdatedAt    time.Time
	CompletedAt  *time.Time
}

// Terminal reports whether the job has reached a final state.
func (j *GenerationJob) Terminal() bool {
	switch j.Status {
	case StatusCompleted, StatusFailed, StatusBlocked:
		return true
	}
	return false
}

type GeneratedAsset struct {
	ID        string
	UserID    string
	JobID     string
	PNGKey    string
	PDFKey    string
	PNGURL    string
	PDFURL    string
	Width     int
	Height    int
	CreatedAt time.Time
}

type APIKey struct {
	ID         int64
	UserID     string
	Name       string
	KeyPrefix  string
	KeyHash    string
	IsActive   bool
	LastUsedAt *time.Time
	CreatedAt  time.Time
	RevokedAt  *time.Time
}

type APIUsageEvent struct {
	ID          int64
	APIKeyID    *int64
	UserID      string
	Endpoint    string
	Method      string
	StatusCode  int
	CreditsUsed int
	CreatedAt   time.Time
}
