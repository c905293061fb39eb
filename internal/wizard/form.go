package wizard

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/shopspring/decimal"
)

// FormData holds every field the wizard collects. JSON names are the field
// names accepted by HandleInputChange.
type FormData struct {
	// General information
	Title       string `json:"title"`
	Description string `json:"description"`
	Category    string `json:"category"`
	Sector      string `json:"sector"`
	Technology  string `json:"technology"`
	Region      string `json:"region"`

	// Details
	Problem        string `json:"problem"`
	Solution       string `json:"solution"`
	TargetAudience string `json:"targetAudience"`
	BusinessModel  string `json:"businessModel"`

	// Innovation
	InnovationType          string `json:"innovationType"`
	InnovationDescription   string `json:"innovationDescription"`
	Uniqueness              string `json:"uniqueness"`
	CompetitiveAdvantage    string `json:"competitiveAdvantage"`
	HasIntellectualProperty bool   `json:"hasIntellectualProperty"`
	PatentNumber            string `json:"patentNumber"`

	// Market
	MarketSize     string `json:"marketSize"`
	Competitors    string `json:"competitors"`
	MarketStrategy string `json:"marketStrategy"`

	// Progress
	DevelopmentStage     string          `json:"developmentStage"`
	HasPrototype         bool            `json:"hasPrototype"`
	PrototypeDescription string          `json:"prototypeDescription"`
	HasCustomers         bool            `json:"hasCustomers"`
	CustomerCount        int             `json:"customerCount"`
	Revenue              decimal.Decimal `json:"revenue"`

	// Team
	TeamSize            int    `json:"teamSize"`
	FounderName         string `json:"founderName"`
	FounderRole         string `json:"founderRole"`
	FounderExperience   string `json:"founderExperience"`
	TeamSkills          string `json:"teamSkills"`
	LookingForCofounder bool   `json:"lookingForCofounder"`

	// Presentation
	VideoURL     string `json:"videoUrl"`
	WebsiteURL   string `json:"websiteUrl"`
	PitchDeckURL string `json:"pitchDeckUrl"`

	// Funding
	FundingNeeded   decimal.Decimal `json:"fundingNeeded"`
	FundingStage    string          `json:"fundingStage"`
	FundingUse      string          `json:"fundingUse"`
	PreviousFunding decimal.Decimal `json:"previousFunding"`
	EquityOffered   decimal.Decimal `json:"equityOffered"`

	// Additional
	AdditionalInfo string `json:"additionalInfo"`
	ContactEmail   string `json:"contactEmail"`
	ContactPhone   string `json:"contactPhone"`
	AgreeToTerms   bool   `json:"agreeToTerms"`
}

var knownFields = func() map[string]struct{} {
	fields := make(map[string]struct{})
	t := reflect.TypeOf(FormData{})
	for i := 0; i < t.NumField(); i++ {
		name, _, _ := strings.Cut(t.Field(i).Tag.Get("json"), ",")
		fields[name] = struct{}{}
	}
	return fields
}()

// ValidationError is returned when wizard input is rejected. It is local to
// the wizard and never fatal.
type ValidationError struct {
	Step    Step     `json:"step"`
	Fields  []string `json:"fields"`
	Message string   `json:"message"`
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("wizard: %s: %s", e.Message, strings.Join(e.Fields, ", "))
}

// IsValidationError reports whether err carries a *ValidationError.
func IsValidationError(err error) bool {
	var verr *ValidationError
	return errors.As(err, &verr)
}

// set decodes value into the named field. The form is left untouched when
// the value does not fit.
func (f *FormData) set(field string, value interface{}) error {
	if _, ok := knownFields[field]; !ok {
		return fmt.Errorf("unknown field")
	}

	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	doc, err := json.Marshal(map[string]json.RawMessage{field: raw})
	if err != nil {
		return err
	}

	next := *f
	dec := json.NewDecoder(bytes.NewReader(doc))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&next); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) {
			return fmt.Errorf("expected %s", typeErr.Type)
		}
		return err
	}

	*f = next
	return nil
}
