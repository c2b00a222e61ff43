package models

import (
	"time"

	"gorm.io/gorm"
)

// Membership roles, ranked Founder highest.
const (
	RoleFounder      = "FOUNDER"
	RoleGovernor     = "GOVERNOR"
	RoleModerator    = "MODERATOR"
	RoleConductor    = "CONDUCTOR"
	RoleVotingMember = "VOTING_MEMBER"
	RoleObserver     = "OBSERVER"
)

const (
	MembershipActive    = "ACTIVE"
	MembershipPending   = "PENDING"
	MembershipSuspended = "SUSPENDED"
	MembershipLeft      = "LEFT"
)

const (
	BillingActive   = "ACTIVE"
	BillingPastDue  = "PAST_DUE"
	BillingCanceled = "CANCELED"
	BillingUnpaid   = "UNPAID"
)

const (
	PaymentPending       = "PENDING"
	PaymentConfirmed     = "CONFIRMED"
	PaymentDisputed      = "DISPUTED"
	PaymentRejected      = "REJECTED"
	PaymentAutoConfirmed = "AUTO_CONFIRMED"
)

const (
	InitiatedByMember    = "MEMBER"
	InitiatedByTreasurer = "TREASURER"
)

const (
	VoteKindDissolution = "DISSOLUTION"
	VoteKindGeneral     = "GENERAL"

	VoteOpen   = "OPEN"
	VoteClosed = "CLOSED"
)

// PaymentMethods is the accepted set for manual payments. OTHER requires
// free text in MethodOther.
var PaymentMethods = []string{"CASH", "CHECK", "VENMO", "PAYPAL", "ZELLE", "BANK_TRANSFER", "OTHER"}

type User struct {
	gorm.Model
	Username     string `gorm:"unique;not null"`
	Email        string `gorm:"unique;not null"`
	PasswordHash string `gorm:"not null"`
	Memberships  []Membership
}

type Band struct {
	gorm.Model
	Name               string `gorm:"unique;not null"`
	BillingOwnerUserID uint   `gorm:"not null"` // member exempt from dues enforcement
	Dissolved          bool   `gorm:"default:false"`
	Memberships        []Membership
	DuesPlans          []DuesPlan
	Votes              []Vote
}

type Membership struct {
	gorm.Model
	BandID      uint `gorm:"not null;uniqueIndex:idx_band_user"`
	Band        Band
	UserID      uint `gorm:"not null;uniqueIndex:idx_band_user"`
	User        User
	Role        string    `gorm:"not null;default:'VOTING_MEMBER'"`
	Status      string    `gorm:"not null;default:'ACTIVE'"`
	IsTreasurer bool      `gorm:"default:false"`
	ActivatedAt time.Time `gorm:"not null"`
}

type DuesPlan struct {
	gorm.Model
	BandID      uint `gorm:"not null"`
	Band        Band
	AmountCents int64  `gorm:"not null"`
	Currency    string `gorm:"not null;default:'usd'"` // lowercase ISO code
	Interval    string `gorm:"not null;default:'monthly'"`
	Active      bool   `gorm:"default:true"`
}

// FinanceSettings is optional per band; absence implies the defaults below.
type FinanceSettings struct {
	gorm.Model
	BandID                 uint `gorm:"not null;unique"`
	Band                   Band
	DuesEnforcementEnabled bool `gorm:"default:true"`
	NewMemberGraceDays     int  `gorm:"not null;default:7"`
	LapsedMemberGraceDays  int  `gorm:"not null;default:3"`
}

const (
	DefaultNewMemberGraceDays    = 7
	DefaultLapsedMemberGraceDays = 3
)

// BillingRecord tracks dues state per (band, member). Created lazily on the
// first confirmed payment. UpdatedAt anchors the lapsed-member grace window.
type BillingRecord struct {
	gorm.Model
	BandID        uint `gorm:"not null;uniqueIndex:idx_band_member"`
	Band          Band
	UserID        uint `gorm:"not null;uniqueIndex:idx_band_member"`
	User          User
	Status        string    `gorm:"not null;default:'UNPAID'"`
	LastPaymentAt time.Time // reported payment date, not confirmation time
}

type ManualPayment struct {
	gorm.Model
	BandID            uint `gorm:"not null"`
	Band              Band
	PayerMembershipID uint `gorm:"not null"`
	PayerMembership   Membership
	PayerUserID       uint   `gorm:"not null"`
	AmountCents       int64  `gorm:"not null"`
	Currency          string `gorm:"not null;default:'usd'"`
	Method            string `gorm:"not null"`
	MethodOther       string
	PaymentDate       time.Time `gorm:"not null"`
	Note              string
	InitiatorUserID   uint   `gorm:"not null"`
	InitiatedByRole   string `gorm:"not null"` // MEMBER or TREASURER
	Status            string `gorm:"not null;default:'PENDING';index"`

	// Single-use bearer credential for link-based confirmation; emptied on
	// use. Never serialized; it travels only inside the confirmation link.
	ConfirmationToken string    `json:"-"`
	AutoConfirmAt     time.Time `gorm:"not null;index"`

	ConfirmedByUserID *uint
	ConfirmedAt       *time.Time
	DisputedByUserID  *uint
	DisputedAt        *time.Time
	DisputeReason     string
	ResolvedByUserID  *uint
	ResolvedAt        *time.Time
	ResolutionOutcome string
	ResolutionNote    string
}

type Vote struct {
	gorm.Model
	BandID          uint `gorm:"not null"`
	Band            Band
	Kind            string `gorm:"not null;default:'GENERAL'"`
	Subject         string `gorm:"not null"`
	Status          string `gorm:"not null;default:'OPEN';index"`
	CreatedByUserID uint   `gorm:"not null"`
}
