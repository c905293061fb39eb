package wizard

import "fmt"

// Step enumerates the screens of the idea submission wizard, in order.
type Step int

const (
	StepGeneralInfo Step = iota
	StepDetails
	StepInnovation
	StepTeam
	StepBudget
	StepDocuments
	StepReview
)

var stepNames = []string{
	"generalInfo",
	"details",
	"innovation",
	"team",
	"budget",
	"documents",
	"review",
}

func (s Step) String() string {
	if s < StepGeneralInfo || s > StepReview {
		return fmt.Sprintf("Step(%d)", int(s))
	}
	return stepNames[s]
}

func (s Step) MarshalText() ([]byte, error) {
	if s < StepGeneralInfo || s > StepReview {
		return nil, fmt.Errorf("wizard: invalid step %d", int(s))
	}
	return []byte(stepNames[s]), nil
}

func (s *Step) UnmarshalText(text []byte) error {
	for i, name := range stepNames {
		if name == string(text) {
			*s = Step(i)
			return nil
		}
	}
	return fmt.Errorf("wizard: unknown step %q", text)
}

// Steps returns every step in navigation order.
func Steps() []Step {
	steps := make([]Step, 0, len(stepNames))
	for i := range stepNames {
		steps = append(steps, Step(i))
	}
	return steps
}
