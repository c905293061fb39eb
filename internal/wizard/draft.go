package wizard

import (
	"time"

	"github.com/google/uuid"
)

// Draft is a user's wizard kept between requests until it is submitted or
// discarded.
type Draft struct {
	ID         string    `json:"id"`
	UserID     string    `json:"userId"`
	State      *State    `json:"state"`
	PaymentRef string    `json:"paymentRef,omitempty"` // Latest payment session started from this draft
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

func NewDraft(userID string) *Draft {
	now := time.Now().UTC()
	return &Draft{
		ID:        uuid.NewString(),
		UserID:    userID,
		State:     NewState(),
		CreatedAt: now,
		UpdatedAt: now,
	}
}
