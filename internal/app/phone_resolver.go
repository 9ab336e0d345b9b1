package app

import (
	"context"
	"fmt"

	"github.com/samber/lo"
	"github.com/sirupsen/logrus"

	"postop_followup/internal/domain/patient"
)

// legacySuffixLengths are tried, longest first, when the canonical index has no match.
// 8 digits catches Brazilian mobiles reported without the leading 9.
var legacySuffixLengths = []int{11, 9, 8}

const minPhoneDigits = 8

// PhoneResolver finds the active patient behind an inbound phone number.
type PhoneResolver struct {
	patients    patient.Repository
	countryCode string
	logger      *logrus.Entry
}

func NewPhoneResolver(patients patient.Repository, countryCode string, logger *logrus.Entry) *PhoneResolver {
	return &PhoneResolver{patients: patients, countryCode: countryCode, logger: logger}
}

// Resolve returns the single matching patient. It fails with patient.ErrNotFound
// when nobody matches and ErrPhoneAmbiguous when several patients do.
func (r *PhoneResolver) Resolve(ctx context.Context, raw string) (*patient.Patient, error) {
	digits := patient.Digits(raw)
	if len(digits) < minPhoneDigits {
		return nil, patient.ErrNotFound
	}

	canonical := patient.NormalizePhone(raw, r.countryCode)
	matches, err := r.patients.ListActiveByPhone(ctx, canonical)
	if err != nil {
		return nil, fmt.Errorf("failed to look up canonical phone: %w", err)
	}
	if p, done, err := pickUnique(matches); done {
		return p, err
	}

	for _, n := range legacySuffixLengths {
		suffix := patient.Suffix(digits, n)
		if suffix == "" {
			continue
		}
		matches, err := r.patients.ListActiveByPhoneSuffix(ctx, suffix)
		if err != nil {
			return nil, fmt.Errorf("failed to look up phone suffix: %w", err)
		}
		if p, done, err := pickUnique(matches); done {
			r.logger.WithFields(logrus.Fields{
				"phone":       patient.MaskPhone(raw),
				"suffix_len":  n,
				"ambiguous":   err != nil,
				"match_count": len(matches),
			}).Info("Resolved phone through legacy suffix match")
			return p, err
		}
	}
	return nil, patient.ErrNotFound
}

// pickUnique stops the search at the first level with any match.
func pickUnique(matches []*patient.Patient) (*patient.Patient, bool, error) {
	distinct := lo.UniqBy(matches, func(p *patient.Patient) string { return p.ID.String() })
	switch len(distinct) {
	case 0:
		return nil, false, nil
	case 1:
		return distinct[0], true, nil
	default:
		return nil, true, ErrPhoneAmbiguous
	}
}
