package app

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/csv"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"postop_followup/internal/domain/followup"
)

var researchHeader = []string{"patient_hash", "surgery_type", "day_number", "pain_level", "risk_level", "red_flags", "responded_at"}

// ExportService uploads pseudonymised response data for research.
type ExportService struct {
	followUps followup.Repository
	store     ObjectStore // nil disables export
	prefix    string
	now       Clock
	logger    *logrus.Entry
}

func NewExportService(followUps followup.Repository, store ObjectStore, prefix string, now Clock, logger *logrus.Entry) *ExportService {
	return &ExportService{followUps: followUps, store: store, prefix: prefix, now: now, logger: logger}
}

// ExportResult points at the uploaded object.
type ExportResult struct {
	Key        string `json:"key"`
	SummaryKey string `json:"summary_key"`
	Rows       int    `json:"rows"`
}

// ExportResearch writes every analysed response of the doctor as CSV, plus a JSON
// summary per surgery type next to it. Patient ids are replaced by a hash so rows
// of one patient stay linkable without identifying them.
func (s *ExportService) ExportResearch(ctx context.Context, doctorID uuid.UUID) (*ExportResult, error) {
	if s.store == nil {
		return nil, ErrExportDisabled
	}
	records, err := s.followUps.ListResearchRecords(ctx, doctorID)
	if err != nil {
		return nil, fmt.Errorf("failed to load research records: %w", err)
	}
	body, err := encodeResearchCSV(records)
	if err != nil {
		return nil, err
	}

	base := strings.TrimPrefix(fmt.Sprintf("%s/%s/%s", s.prefix, doctorID, s.now().UTC().Format("20060102T150405Z")), "/")
	key := base + ".csv"
	if err := s.store.Put(ctx, key, "text/csv", body); err != nil {
		return nil, fmt.Errorf("failed to upload export: %w", err)
	}

	summary, err := json.MarshalIndent(researchSummaryDoc{
		GeneratedAt: s.now().UTC(),
		Records:     len(records),
		BySurgery:   SummarizeResearch(records),
	}, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode research summary: %w", err)
	}
	summaryKey := base + "-summary.json"
	if err := s.store.Put(ctx, summaryKey, "application/json", summary); err != nil {
		return nil, fmt.Errorf("failed to upload research summary: %w", err)
	}

	s.logger.WithFields(logrus.Fields{"doctor_id": doctorID, "key": key, "rows": len(records)}).Info("Research export uploaded")
	return &ExportResult{Key: key, SummaryKey: summaryKey, Rows: len(records)}, nil
}

type researchSummaryDoc struct {
	GeneratedAt time.Time         `json:"generated_at"`
	Records     int               `json:"records"`
	BySurgery   []ResearchSummary `json:"by_surgery"`
}

func encodeResearchCSV(records []followup.ResearchRecord) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(researchHeader); err != nil {
		return nil, err
	}
	for _, r := range records {
		pain := ""
		if r.PainLevel.Valid {
			pain = strconv.Itoa(int(r.PainLevel.Int32))
		}
		row := []string{
			pseudonym(r.PatientID),
			r.SurgeryType,
			strconv.Itoa(r.DayNumber),
			pain,
			string(r.RiskLevel),
			strings.Join(r.RedFlags, "; "),
			r.RespondedAt.UTC().Format(time.RFC3339),
		}
		if err := w.Write(row); err != nil {
			return nil, err
		}
	}
	w.Flush()
	return buf.Bytes(), w.Error()
}

func pseudonym(id uuid.UUID) string {
	sum := sha256.Sum256([]byte(id.String()))
	return hex.EncodeToString(sum[:])
}
