package app

import (
	"math"
	"sort"

	"github.com/google/uuid"
	"github.com/samber/lo"

	"postop_followup/internal/domain/followup"
)

// painResolvedBelow is the pain score under which a surgery counts as resolved.
const painResolvedBelow = 3

// ResearchSummary aggregates the research records of one surgery type.
type ResearchSummary struct {
	SurgeryType    string        `json:"surgery_type"`
	Surgeries      int           `json:"surgeries"`
	Responses      int           `json:"responses"`
	PainByDay      []DayPain     `json:"pain_by_day"`
	PainSlope      *float64      `json:"pain_slope,omitempty"`
	HighRiskRate   float64       `json:"high_risk_rate"`
	PainResolution SurvivalCurve `json:"pain_resolution"`
}

// DayPain is the pain distribution reported on one postoperative day.
type DayPain struct {
	Day    int     `json:"day"`
	N      int     `json:"n"`
	Mean   float64 `json:"mean"`
	StdDev float64 `json:"std_dev"`
	Median float64 `json:"median"`
}

// SurvivalObservation is the time to an event, or to censoring when Event is false.
type SurvivalObservation struct {
	Day   int
	Event bool
}

// KaplanMeierPoint is one step of a Kaplan-Meier curve with a 95% log-log interval.
type KaplanMeierPoint struct {
	Day      int     `json:"day"`
	AtRisk   int     `json:"at_risk"`
	Events   int     `json:"events"`
	Censored int     `json:"censored"`
	Survival float64 `json:"survival"`
	StdErr   float64 `json:"std_err"`
	CILower  float64 `json:"ci_lower"`
	CIUpper  float64 `json:"ci_upper"`
}

type SurvivalCurve struct {
	Points     []KaplanMeierPoint `json:"points"`
	MedianDay  *int               `json:"median_day,omitempty"`
	Resolved   int                `json:"resolved"`
	Unresolved int                `json:"unresolved"`
}

// SummarizeResearch groups records by surgery type, ordered by type name.
func SummarizeResearch(records []followup.ResearchRecord) []ResearchSummary {
	byType := lo.GroupBy(records, func(r followup.ResearchRecord) string { return r.SurgeryType })
	types := lo.Keys(byType)
	sort.Strings(types)

	out := make([]ResearchSummary, 0, len(types))
	for _, t := range types {
		out = append(out, summarize(t, byType[t]))
	}
	return out
}

func summarize(surgeryType string, records []followup.ResearchRecord) ResearchSummary {
	bySurgery := lo.GroupBy(records, func(r followup.ResearchRecord) uuid.UUID { return r.SurgeryID })
	sum := ResearchSummary{
		SurgeryType: surgeryType,
		Surgeries:   len(bySurgery),
		Responses:   len(records),
	}

	points := make([]followup.PainPoint, 0, len(records))
	for _, r := range records {
		if r.PainLevel.Valid {
			points = append(points, followup.PainPoint{Day: r.DayNumber, Pain: int(r.PainLevel.Int32)})
		}
	}
	sum.PainByDay = painByDay(points)
	if slope, ok := PainSlope(points); ok {
		sum.PainSlope = &slope
	}

	high := lo.CountBy(records, func(r followup.ResearchRecord) bool { return r.RiskLevel.AtLeast(followup.RiskHigh) })
	if len(records) > 0 {
		sum.HighRiskRate = float64(high) / float64(len(records))
	}

	obs := make([]SurvivalObservation, 0, len(bySurgery))
	for _, rs := range bySurgery {
		obs = append(obs, painResolution(rs))
	}
	sum.PainResolution = survivalCurve(obs)
	return sum
}

func painByDay(points []followup.PainPoint) []DayPain {
	byDay := lo.GroupBy(points, func(p followup.PainPoint) int { return p.Day })
	days := lo.Keys(byDay)
	sort.Ints(days)

	out := make([]DayPain, 0, len(days))
	for _, d := range days {
		values := lo.Map(byDay[d], func(p followup.PainPoint, _ int) float64 { return float64(p.Pain) })
		out = append(out, DayPain{Day: d, N: len(values), Mean: mean(values), StdDev: stdDev(values), Median: median(values)})
	}
	return out
}

// painResolution is the first day a surgery reported pain below painResolvedBelow,
// censored at its last answered day otherwise.
func painResolution(records []followup.ResearchRecord) SurvivalObservation {
	sorted := append([]followup.ResearchRecord(nil), records...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].DayNumber < sorted[j].DayNumber })

	last := 0
	for _, r := range sorted {
		last = r.DayNumber
		if r.PainLevel.Valid && r.PainLevel.Int32 < painResolvedBelow {
			return SurvivalObservation{Day: r.DayNumber, Event: true}
		}
	}
	return SurvivalObservation{Day: last}
}

func survivalCurve(obs []SurvivalObservation) SurvivalCurve {
	curve := SurvivalCurve{Points: KaplanMeier(obs)}
	curve.Resolved = lo.CountBy(obs, func(o SurvivalObservation) bool { return o.Event })
	curve.Unresolved = len(obs) - curve.Resolved
	if day, ok := MedianSurvival(curve.Points); ok {
		curve.MedianDay = &day
	}
	return curve
}

// KaplanMeier estimates the survival function with Greenwood's variance.
func KaplanMeier(obs []SurvivalObservation) []KaplanMeierPoint {
	if len(obs) == 0 {
		return nil
	}
	days := lo.Uniq(lo.Map(obs, func(o SurvivalObservation, _ int) int { return o.Day }))
	sort.Ints(days)

	points := make([]KaplanMeierPoint, 0, len(days))
	survival, greenwood := 1.0, 0.0
	for _, day := range days {
		p := KaplanMeierPoint{Day: day}
		for _, o := range obs {
			switch {
			case o.Day > day:
				p.AtRisk++
			case o.Day == day:
				p.AtRisk++
				if o.Event {
					p.Events++
				} else {
					p.Censored++
				}
			}
		}
		if p.Events > 0 {
			survival *= float64(p.AtRisk-p.Events) / float64(p.AtRisk)
			if p.AtRisk > p.Events {
				greenwood += float64(p.Events) / float64(p.AtRisk*(p.AtRisk-p.Events))
			}
		}
		p.Survival = survival
		p.StdErr = survival * math.Sqrt(greenwood)
		p.CILower, p.CIUpper = logLogInterval(survival, greenwood)
		points = append(points, p)
	}
	return points
}

// logLogInterval is the 95% interval on the complementary log-log scale.
func logLogInterval(survival, greenwood float64) (float64, float64) {
	if survival <= 0 || survival >= 1 {
		return survival, survival
	}
	const z = 1.96
	ll := math.Log(-math.Log(survival))
	se := math.Sqrt(greenwood) / math.Abs(math.Log(survival))
	lower := math.Exp(-math.Exp(ll + z*se))
	upper := math.Exp(-math.Exp(ll - z*se))
	return clamp01(lower), clamp01(upper)
}

// MedianSurvival returns the first day survival drops below one half.
func MedianSurvival(points []KaplanMeierPoint) (int, bool) {
	p, ok := lo.Find(points, func(p KaplanMeierPoint) bool { return p.Survival < 0.5 })
	return p.Day, ok
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	return lo.Sum(values) / float64(len(values))
}

// stdDev is the sample standard deviation.
func stdDev(values []float64) float64 {
	if len(values) < 2 {
		return 0
	}
	m := mean(values)
	var ss float64
	for _, v := range values {
		ss += (v - m) * (v - m)
	}
	return math.Sqrt(ss / float64(len(values)-1))
}

func median(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	mid := len(sorted) / 2
	if len(sorted)%2 == 0 {
		return (sorted[mid-1] + sorted[mid]) / 2
	}
	return sorted[mid]
}

func clamp01(v float64) float64 { return math.Max(0, math.Min(1, v)) }
