// Package wizard holds the multi-step idea submission form and the rules for
// moving through it.
package wizard

import (
	"fmt"
	"strings"

	"github.com/GalaDe/ideas-service/internal/domain"
)

type MarketKind string

const (
	MarketCurrent MarketKind = "current"
	MarketFuture  MarketKind = "future"
)

type Document struct {
	Name        string `json:"name"`
	FileHandle  string `json:"fileHandle"`
	Description string `json:"description"`
}

// State is the in-progress wizard. Documents are kept as metadata only and
// are not part of the submission payload.
type State struct {
	CurrentStep    Step            `json:"currentStep"`
	FormData       FormData        `json:"formData"`
	Documents      []Document      `json:"documents"`
	CurrentMarkets []domain.Market `json:"currentMarkets"`
	FutureMarkets  []domain.Market `json:"futureMarkets"`
}

func NewState() *State {
	s := &State{CurrentStep: StepGeneralInfo}
	s.Normalize()
	return s
}

// Normalize restores the invariants of a state loaded from storage: both
// market lists hold at least one entry.
func (s *State) Normalize() {
	if len(s.CurrentMarkets) == 0 {
		s.CurrentMarkets = []domain.Market{{}}
	}
	if len(s.FutureMarkets) == 0 {
		s.FutureMarkets = []domain.Market{{}}
	}
	if s.Documents == nil {
		s.Documents = []Document{}
	}
}

// stepGates lists the mandatory fields checked before leaving a step.
var stepGates = map[Step]func(f *FormData) []string{
	StepGeneralInfo: func(f *FormData) []string {
		var missing []string
		if strings.TrimSpace(f.Title) == "" {
			missing = append(missing, "title")
		}
		if strings.TrimSpace(f.Description) == "" {
			missing = append(missing, "description")
		}
		return missing
	},
}

func (s *State) validateStep(step Step) error {
	gate, ok := stepGates[step]
	if !ok {
		return nil
	}
	if missing := gate(&s.FormData); len(missing) > 0 {
		return &ValidationError{Step: step, Fields: missing, Message: "required fields are empty"}
	}
	return nil
}

// NextStep advances one step after checking the current step's gate.
func (s *State) NextStep() error {
	if err := s.validateStep(s.CurrentStep); err != nil {
		return err
	}
	if s.CurrentStep < StepReview {
		s.CurrentStep++
	}
	return nil
}

func (s *State) PrevStep() {
	if s.CurrentStep > StepGeneralInfo {
		s.CurrentStep--
	}
}

// Validate runs every step gate, as done before final submission.
func (s *State) Validate() error {
	for _, step := range Steps() {
		if err := s.validateStep(step); err != nil {
			return err
		}
	}
	return nil
}

// HandleInputChange sets a single form field by name. A new category
// invalidates the sector chosen for the old one.
func (s *State) HandleInputChange(field string, value interface{}) error {
	category := s.FormData.Category
	if err := s.FormData.set(field, value); err != nil {
		return &ValidationError{Step: s.CurrentStep, Fields: []string{field}, Message: err.Error()}
	}
	if s.FormData.Category != category {
		s.FormData.Sector = ""
	}
	return nil
}

func (s *State) markets(kind MarketKind) (*[]domain.Market, error) {
	switch kind {
	case MarketCurrent:
		return &s.CurrentMarkets, nil
	case MarketFuture:
		return &s.FutureMarkets, nil
	}
	return nil, &ValidationError{Step: s.CurrentStep, Fields: []string{"marketKind"}, Message: fmt.Sprintf("unknown market kind %q", kind)}
}

func (s *State) AddMarket(kind MarketKind) error {
	list, err := s.markets(kind)
	if err != nil {
		return err
	}
	*list = append(*list, domain.Market{})
	return nil
}

func (s *State) UpdateMarket(kind MarketKind, index int, market domain.Market) error {
	list, err := s.markets(kind)
	if err != nil {
		return err
	}
	if index < 0 || index >= len(*list) {
		return &ValidationError{Step: s.CurrentStep, Fields: []string{"index"}, Message: "market index out of range"}
	}
	(*list)[index] = market
	return nil
}

// RemoveMarket deletes the entry at index. The first entry is never removed,
// so the list cannot become empty.
func (s *State) RemoveMarket(kind MarketKind, index int) (bool, error) {
	list, err := s.markets(kind)
	if err != nil {
		return false, err
	}
	if index <= 0 || index >= len(*list) {
		return false, nil
	}
	*list = append((*list)[:index], (*list)[index+1:]...)
	return true, nil
}

func (s *State) AddCurrentMarket() { _ = s.AddMarket(MarketCurrent) }

func (s *State) AddFutureMarket() { _ = s.AddMarket(MarketFuture) }

func (s *State) RemoveCurrentMarket(index int) bool {
	removed, _ := s.RemoveMarket(MarketCurrent, index)
	return removed
}

func (s *State) RemoveFutureMarket(index int) bool {
	removed, _ := s.RemoveMarket(MarketFuture, index)
	return removed
}

func (s *State) AddDocument(doc Document) error {
	if strings.TrimSpace(doc.Name) == "" {
		return &ValidationError{Step: s.CurrentStep, Fields: []string{"name"}, Message: "document name is required"}
	}
	s.Documents = append(s.Documents, doc)
	return nil
}

func (s *State) RemoveDocument(index int) bool {
	if index < 0 || index >= len(s.Documents) {
		return false
	}
	s.Documents = append(s.Documents[:index], s.Documents[index+1:]...)
	return true
}
