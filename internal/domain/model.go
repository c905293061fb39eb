package domain

import (
	"time"

	"github.com/gobuffalo/nulls"
	"github.com/guregu/null"
	"github.com/shopspring/decimal"
)

// SubmissionFee is the flat fee charged for submitting an idea.
var SubmissionFee = decimal.NewFromInt(100)

const (
	SubmissionCurrency = "usd"
	DashboardPath      = "/dashboard"
)

// MinorUnits converts an amount to the provider's smallest currency unit (cents).
func MinorUnits(amount decimal.Decimal) int64 {
	return amount.Shift(2).Round(0).IntPart()
}

type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "PENDING"
	PaymentStatusCompleted PaymentStatus = "COMPLETED"
	PaymentStatusFailed    PaymentStatus = "FAILED"
	PaymentStatusCancelled PaymentStatus = "CANCELLED"
	PaymentStatusTimeout   PaymentStatus = "TIMEOUT"
)

// IsTerminal reports whether no further automatic transition can happen.
func (s PaymentStatus) IsTerminal() bool {
	switch s {
	case PaymentStatusCompleted, PaymentStatusFailed, PaymentStatusCancelled, PaymentStatusTimeout:
		return true
	}
	return false
}

// Retryable reports whether a new payment may be initiated after this status.
func (s PaymentStatus) Retryable() bool {
	return s == PaymentStatusFailed || s == PaymentStatusCancelled || s == PaymentStatusTimeout
}

type PaymentSession struct {
	PaymentRef  string          `json:"payment_ref"` // Provider checkout session ID
	DraftID     string          `json:"draft_id"`
	UserID      string          `json:"user_id"`
	Amount      int64           `json:"amount"` // Minor units
	Currency    string          `json:"currency"`
	PayURL      string          `json:"pay_url"`
	Status      PaymentStatus   `json:"status"`
	Payload     *IdeaSubmission `json:"payload,omitempty"` // Snapshot taken at initiation
	IdeaID      null.String     `json:"idea_id"`
	Attempts    int             `json:"submission_attempts"`
	LastError   null.String     `json:"last_error"`
	ConfirmedAt nulls.Time      `json:"confirmed_at"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

type Idea struct {
	ID             string         `json:"id"`
	UserID         string         `json:"user_id"`
	PaymentRef     string         `json:"payment_ref"`
	Title          string         `json:"title"`
	Description    string         `json:"description"`
	Category       string         `json:"category"`
	Status         string         `json:"status"`
	AdditionalData AdditionalData `json:"additional_data"`
	CreatedAt      time.Time      `json:"created_at"`
}

const IdeaStatusSubmitted = "submitted"

// IdeaSubmission is the payload assembled from a completed wizard.
type IdeaSubmission struct {
	Title          string         `json:"title"`
	Description    string         `json:"description"`
	Category       string         `json:"category"`
	PaymentRef     string         `json:"paymentRef"`
	AdditionalData AdditionalData `json:"additionalData"`
}

type AdditionalData struct {
	Sector       string       `json:"sector"`
	Technology   string       `json:"technology"`
	Region       string       `json:"region"`
	Innovation   Innovation   `json:"innovation"`
	Market       MarketData   `json:"market"`
	Progress     Progress     `json:"progress"`
	Team         Team         `json:"team"`
	Presentation Presentation `json:"presentation"`
	Funding      Funding      `json:"funding"`
	Additional   Additional   `json:"additional"`
}

type Innovation struct {
	Type                 string `json:"type"`
	Description          string `json:"description"`
	Uniqueness           string `json:"uniqueness"`
	CompetitiveAdvantage string `json:"competitiveAdvantage"`
	HasIntellectualProp  bool   `json:"hasIntellectualProperty"`
	PatentNumber         string `json:"patentNumber"`
}

type Market struct {
	Target     string `json:"target"`
	Country    string `json:"country"`
	Year       string `json:"year"`
	MarketType string `json:"marketType"`
}

type MarketData struct {
	Problem        string   `json:"problem"`
	Solution       string   `json:"solution"`
	TargetAudience string   `json:"targetAudience"`
	BusinessModel  string   `json:"businessModel"`
	MarketSize     string   `json:"marketSize"`
	Competitors    string   `json:"competitors"`
	Strategy       string   `json:"strategy"`
	CurrentMarkets []Market `json:"currentMarkets"`
	FutureMarkets  []Market `json:"futureMarkets"`
}

type Progress struct {
	Stage                string          `json:"stage"`
	HasPrototype         bool            `json:"hasPrototype"`
	PrototypeDescription string          `json:"prototypeDescription"`
	HasCustomers         bool            `json:"hasCustomers"`
	CustomerCount        int             `json:"customerCount"`
	Revenue              decimal.Decimal `json:"revenue"`
}

type Team struct {
	Size                int    `json:"size"`
	FounderName         string `json:"founderName"`
	FounderRole         string `json:"founderRole"`
	FounderExperience   string `json:"founderExperience"`
	Skills              string `json:"skills"`
	LookingForCofounder bool   `json:"lookingForCofounder"`
}

type Presentation struct {
	VideoURL     string `json:"videoUrl"`
	WebsiteURL   string `json:"websiteUrl"`
	PitchDeckURL string `json:"pitchDeckUrl"`
}

type Funding struct {
	Needed          decimal.Decimal `json:"needed"`
	Stage           string          `json:"stage"`
	Use             string          `json:"use"`
	PreviousFunding decimal.Decimal `json:"previousFunding"`
	EquityOffered   decimal.Decimal `json:"equityOffered"`
}

type Additional struct {
	Info         string `json:"info"`
	ContactEmail string `json:"contactEmail"`
	ContactPhone string `json:"contactPhone"`
	AgreeToTerms bool   `json:"agreeToTerms"`
}
