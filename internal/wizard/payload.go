package wizard

import "github.com/GalaDe/ideas-service/internal/domain"

// BuildSubmission assembles the idea payload from the wizard state.
func (s *State) BuildSubmission(paymentRef string) *domain.IdeaSubmission {
	f := s.FormData

	return &domain.IdeaSubmission{
		Title:       f.Title,
		Description: f.Description,
		Category:    f.Category,
		PaymentRef:  paymentRef,
		AdditionalData: domain.AdditionalData{
			Sector:     f.Sector,
			Technology: f.Technology,
			Region:     f.Region,
			Innovation: domain.Innovation{
				Type:                 f.InnovationType,
				Description:          f.InnovationDescription,
				Uniqueness:           f.Uniqueness,
				CompetitiveAdvantage: f.CompetitiveAdvantage,
				HasIntellectualProp:  f.HasIntellectualProperty,
				PatentNumber:         f.PatentNumber,
			},
			Market: domain.MarketData{
				Problem:        f.Problem,
				Solution:       f.Solution,
				TargetAudience: f.TargetAudience,
				BusinessModel:  f.BusinessModel,
				MarketSize:     f.MarketSize,
				Competitors:    f.Competitors,
				Strategy:       f.MarketStrategy,
				CurrentMarkets: append([]domain.Market(nil), s.CurrentMarkets...),
				FutureMarkets:  append([]domain.Market(nil), s.FutureMarkets...),
			},
			Progress: domain.Progress{
				Stage:                f.DevelopmentStage,
				HasPrototype:         f.HasPrototype,
				PrototypeDescription: f.PrototypeDescription,
				HasCustomers:         f.HasCustomers,
				CustomerCount:        f.CustomerCount,
				Revenue:              f.Revenue,
			},
			Team: domain.Team{
				Size:                f.TeamSize,
				FounderName:         f.FounderName,
				FounderRole:         f.FounderRole,
				FounderExperience:   f.FounderExperience,
				Skills:              f.TeamSkills,
				LookingForCofounder: f.LookingForCofounder,
			},
			Presentation: domain.Presentation{
				VideoURL:     f.VideoURL,
				WebsiteURL:   f.WebsiteURL,
				PitchDeckURL: f.PitchDeckURL,
			},
			Funding: domain.Funding{
				Needed:          f.FundingNeeded,
				Stage:           f.FundingStage,
				Use:             f.FundingUse,
				PreviousFunding: f.PreviousFunding,
				EquityOffered:   f.EquityOffered,
			},
			Additional: domain.Additional{
				Info:         f.AdditionalInfo,
				ContactEmail: f.ContactEmail,
				ContactPhone: f.ContactPhone,
				AgreeToTerms: f.AgreeToTerms,
			},
		},
	}
}
