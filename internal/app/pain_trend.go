package app

import (
	"postop_followup/internal/domain/followup"
)

const (
	minTrendPoints     = 3
	worseningPainSlope = 0.5 // points per postoperative day
)

// PainSlope fits pain = a + b*day by least squares and returns b.
// ok is false with fewer than minTrendPoints points or when every point shares a day.
func PainSlope(points []followup.PainPoint) (slope float64, ok bool) {
	n := float64(len(points))
	if len(points) < minTrendPoints {
		return 0, false
	}
	var sumX, sumY, sumXY, sumXX float64
	for _, p := range points {
		x, y := float64(p.Day), float64(p.Pain)
		sumX += x
		sumY += y
		sumXY += x * y
		sumXX += x * x
	}
	den := n*sumXX - sumX*sumX
	if den == 0 {
		return 0, false
	}
	return (n*sumXY - sumX*sumY) / den, true
}

// painTrendFlag raises a medium flag when pain keeps rising across follow-ups.
func painTrendFlag(points []followup.PainPoint) (RedFlag, bool) {
	slope, ok := PainSlope(points)
	if !ok || slope < worseningPainSlope {
		return RedFlag{}, false
	}
	return RedFlag{
		Severity:    followup.RiskMedium,
		Description: "Dor em piora progressiva entre os acompanhamentos",
	}, true
}
