package extract

import (
	"github.com/go-viper/mapstructure/v2"
	"golang.org/x/xerrors"
)

// Result is the JSON object returned by the model, relayed verbatim.
type Result map[string]any

// PriceRange is a per-tonne price band for one year.
type PriceRange struct {
	Min      float64 `mapstructure:"min"`
	Max      float64 `mapstructure:"max"`
	Currency string  `mapstructure:"currency"`
}

type CoreData struct {
	StartDate            string   `mapstructure:"start_date"`
	CreditingPeriodStart string   `mapstructure:"crediting_period_start"`
	CreditingPeriodEnd   string   `mapstructure:"crediting_period_end"`
	FirstIssuanceDate    string   `mapstructure:"first_issuance_date"`
	EstimatedAnnual      float64  `mapstructure:"estimated_annual_credits"`
	TotalCredits         float64  `mapstructure:"total_credits"`
	BufferAllocation     float64  `mapstructure:"buffer_allocation"`
	CommunityAllocation  float64  `mapstructure:"community_allocation"`
	Certifications       []string `mapstructure:"certifications"`
	SDGs                 []string `mapstructure:"sdgs"`
}

// ProjectSummary is a typed view of the fields the instructions ask for.
type ProjectSummary struct {
	Title            string                `mapstructure:"title"`
	Location         string                `mapstructure:"location"`
	Area             string                `mapstructure:"area"`
	Status           string                `mapstructure:"status"`
	FeasibilityScore float64               `mapstructure:"feasibility_score"`
	DifficultyScore  float64               `mapstructure:"difficulty_score"`
	RiskScore        float64               `mapstructure:"risk_score"`
	Methodology      string                `mapstructure:"methodology"`
	CoreData         CoreData              `mapstructure:"core_data"`
	Analysis         string                `mapstructure:"analysis"`
	PotentialBuyers  map[string][]string   `mapstructure:"potential_buyers"`
	PricePotential   map[string]PriceRange `mapstructure:"price_potential"`
}

// Summary decodes the result into a ProjectSummary on a best-effort basis. Unknown
// fields are ignored, missing ones stay zero, and loosely typed values ("7.5", a lone
// string where a list is expected) are coerced. Fields that cannot be coerced are
// reported in the error while the rest of the summary is still filled in.
func (r Result) Summary() (ProjectSummary, error) {
	var s ProjectSummary
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		Result:           &s,
	})
	if err != nil {
		return s, xerrors.Errorf("create decoder: %w", err)
	}
	if err := dec.Decode(map[string]any(r)); err != nil {
		return s, xerrors.Errorf("decode summary: %w", err)
	}
	return s, nil
}
