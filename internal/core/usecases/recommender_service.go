package usecases

import (
	"cmp"
	"fmt"
	"math"
	"math/rand/v2"
	"slices"
	"sync"

	"github.com/samirrijal/routegate/internal/core/domain"
	"github.com/samirrijal/routegate/internal/pkg/geospatial"
	"github.com/samirrijal/routegate/internal/pkg/metrics"
)

var (
	allModes      = []string{"car", "bus", "train", "bicycle", "walking", "scooter"}
	longHaulModes = []string{"car", "bus", "train"}
	midRangeModes = []string{"car", "bus", "train", "bicycle", "scooter"}
)

const maxModeOptions = 4

// RecommenderService synthesises mock transport options between two points.
type RecommenderService struct {
	source string

	mu  sync.Mutex
	rng *rand.Rand
}

// NewRecommenderService creates a RecommenderService reporting source as its
// identity. A nil rng uses a randomly seeded generator.
func NewRecommenderService(source string, rng *rand.Rand) *RecommenderService {
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return &RecommenderService{source: source, rng: rng}
}

// Health reports liveness. The recommender has no dependencies, so it is always ok.
func (s *RecommenderService) Health() domain.ProviderHealth {
	return domain.ProviderHealth{Status: "ok", Source: s.source}
}

// Recommend returns between one and four options ordered by req.Preference.
func (s *RecommenderService) Recommend(req domain.RecommendationRequest) []domain.RecommendationOption {
	distance := geospatial.DistanceKm(req.Origin, req.Destination)

	s.mu.Lock()
	options := s.synthesize(distance, req.Preference)
	s.mu.Unlock()

	for _, o := range options {
		metrics.RecommendationsGenerated.WithLabelValues(s.source, o.Mode).Inc()
	}
	SortByPreference(options, req.Preference)
	return options
}

func candidateModes(distanceKm float64) []string {
	switch {
	case distanceKm > 200:
		return longHaulModes
	case distanceKm > 50:
		return midRangeModes
	default:
		return allModes
	}
}

// synthesize must be called with s.mu held.
func (s *RecommenderService) synthesize(distance float64, pref domain.Preference) []domain.RecommendationOption {
	modes := slices.Clone(candidateModes(distance))
	n := 1 + s.rng.IntN(min(len(modes), maxModeOptions))
	s.rng.Shuffle(len(modes), func(i, j int) { modes[i], modes[j] = modes[j], modes[i] })
	modes = modes[:n]

	options := make([]domain.RecommendationOption, 0, n)
	for i, mode := range modes {
		duration := distance / s.speedKph(mode, distance) * 60 * s.uniform(0.7, 1.3)
		duration = math.Max(5, duration)

		var cost float64
		if mode != "bicycle" && mode != "walking" {
			costFactor := 0.01 + distance*0.0005
			cost = math.Max(0.5, round2(s.uniform(0.5, 1.5)*duration*costFactor))
		}

		emissions := distance * s.emissionGramsPerKm(mode) / 1000 * s.uniform(0.8, 1.2)
		emissions = round2(math.Max(0, emissions))

		if pref == domain.PreferenceFastest {
			duration *= 0.85
		} else {
			duration *= s.uniform(1.0, 1.15)
		}

		if pref == domain.PreferenceCheapest {
			cost *= 0.80
		} else {
			cost *= s.uniform(1.0, 1.2)
		}
		if cost > 0 {
			cost = math.Max(0.5, cost)
		}

		if pref == domain.PreferenceGreenest {
			emissions *= 0.70
		} else {
			emissions *= s.uniform(1.0, 1.3)
		}

		options = append(options, domain.RecommendationOption{
			ID:              fmt.Sprintf("%s-%d-%s-%d", mode, i+1, s.source, 100+s.rng.IntN(900)),
			Mode:            mode,
			DurationMinutes: int(duration),
			CostUSD:         round2(cost),
			CO2Kg:           round2(emissions),
			DistanceKm:      math.Round(distance*10) / 10,
			Source:          s.source,
		})
	}
	return options
}

func (s *RecommenderService) speedKph(mode string, distance float64) float64 {
	switch mode {
	case "car":
		return 70 + s.uniform(-10, 10)
	case "train":
		return math.Max(30, math.Min(50+distance*0.05+s.uniform(-15, 15), 120))
	case "bus":
		return 40 + s.uniform(-5, 5)
	case "bicycle":
		return 15 + s.uniform(-3, 3)
	case "walking":
		return 5 + s.uniform(-0.5, 0.5)
	case "scooter":
		return 12 + s.uniform(-2, 2)
	default:
		return 50
	}
}

func (s *RecommenderService) emissionGramsPerKm(mode string) float64 {
	switch mode {
	case "car":
		return s.uniform(100, 200)
	case "bus":
		return s.uniform(30, 80)
	case "train":
		return s.uniform(10, 50)
	case "scooter":
		return s.uniform(5, 20)
	default:
		return 0
	}
}

func (s *RecommenderService) uniform(lo, hi float64) float64 {
	return lo + s.rng.Float64()*(hi-lo)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// SortByPreference orders options in place. Unknown preferences keep the
// existing order.
//
//   - fastest: ascending duration
//   - cheapest: ascending cost, then duration
//   - greenest: zero-emission first, then ascending emissions, then duration
func SortByPreference(options []domain.RecommendationOption, pref domain.Preference) {
	var less func(a, b domain.RecommendationOption) int
	switch pref {
	case domain.PreferenceFastest:
		less = func(a, b domain.RecommendationOption) int {
			return cmp.Compare(a.DurationMinutes, b.DurationMinutes)
		}
	case domain.PreferenceCheapest:
		less = func(a, b domain.RecommendationOption) int {
			return cmp.Or(
				cmp.Compare(a.CostUSD, b.CostUSD),
				cmp.Compare(a.DurationMinutes, b.DurationMinutes),
			)
		}
	case domain.PreferenceGreenest:
		less = func(a, b domain.RecommendationOption) int {
			return cmp.Or(
				compareBool(a.CO2Kg > 0, b.CO2Kg > 0),
				cmp.Compare(a.CO2Kg, b.CO2Kg),
				cmp.Compare(a.DurationMinutes, b.DurationMinutes),
			)
		}
	default:
		return
	}
	slices.SortStableFunc(options, less)
}

func compareBool(a, b bool) int {
	switch {
	case a == b:
		return 0
	case !a:
		return -1
	default:
		return 1
	}
}
