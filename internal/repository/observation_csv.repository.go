package repository

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"signalbacktest/internal/domain"
	"signalbacktest/internal/util"

	"github.com/gocarina/gocsv"
)

// column names follow the prediction export
type observationCsvRow struct {
	Date       string `csv:"Date"`
	Ticker     string `csv:"Ticker"`
	Target     string `csv:"Target"`
	Prediction string `csv:"Prediction"`
	ProbDown   string `csv:"Prob_Down"`
	ProbFlat   string `csv:"Prob_Flat"`
	ProbUp     string `csv:"Prob_Up"`
	Close      string `csv:"Close"`
}

var probabilityColumns = []string{"Prob_Down", "Prob_Flat", "Prob_Up"}

type csvObservationRepositoryHandler struct {
	Path           string
	HoldingHorizon int
}

func NewCsvObservationRepository(path string, holdingHorizon int) ObservationRepository {
	return csvObservationRepositoryHandler{
		Path:           path,
		HoldingHorizon: holdingHorizon,
	}
}

func (h csvObservationRepositoryHandler) List(ctx context.Context, in ListObservationsInput) ([]domain.Observation, error) {
	f, err := os.ReadFile(h.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to read observations file: %w", err)
	}
	observations, err := ParseObservationsCsv(f, h.HoldingHorizon)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", h.Path, err)
	}

	return filterByDate(observations, in), nil
}

// ParseObservationsCsv decodes a prediction export. Date and Ticker
// are required, as is Target unless a holding horizon and a Close
// column are present to derive it
func ParseObservationsCsv(data []byte, holdingHorizon int) ([]domain.Observation, error) {
	header, err := csv.NewReader(bytes.NewReader(data)).Read()
	if err != nil {
		return nil, domain.NewInputError("could not read csv header: %s", err.Error())
	}
	columns := map[string]bool{}
	for _, c := range header {
		columns[strings.TrimSpace(c)] = true
	}

	required := []string{"Date", "Ticker"}
	if holdingHorizon == 0 || !columns["Close"] {
		required = append(required, "Target")
	}
	for _, c := range required {
		if !columns[c] {
			return nil, domain.NewInputError("missing required column %s", c)
		}
	}
	numProbColumns := 0
	for _, c := range probabilityColumns {
		if columns[c] {
			numProbColumns++
		}
	}
	if numProbColumns != 0 && numProbColumns != len(probabilityColumns) {
		return nil, domain.NewInputError("probability columns must all be present, got %d of %d", numProbColumns, len(probabilityColumns))
	}
	if !columns["Prediction"] && numProbColumns == 0 {
		return nil, domain.NewInputError("need a Prediction column or the Prob_Down/Prob_Flat/Prob_Up columns")
	}

	rows := []observationCsvRow{}
	if err := gocsv.UnmarshalBytes(data, &rows); err != nil {
		return nil, fmt.Errorf("failed to unmarshal csv: %w", err)
	}

	pending := make([]pendingObservation, 0, len(rows))
	for i, row := range rows {
		p, err := row.toPending()
		if err != nil {
			// +2 for the header and 1-based lines
			return nil, domain.NewInputError("line %d: %s", i+2, err.Error())
		}
		pending = append(pending, *p)
	}

	return resolveForwardReturns(pending, holdingHorizon)
}

func (r observationCsvRow) toPending() (*pendingObservation, error) {
	date, err := parseCsvDate(r.Date)
	if err != nil {
		return nil, err
	}
	ticker := strings.TrimSpace(r.Ticker)
	if ticker == "" {
		return nil, fmt.Errorf("empty Ticker")
	}

	out := &pendingObservation{
		Observation: domain.Observation{
			Asset: ticker,
			Date:  date,
		},
	}

	target, err := parseOptionalFloat("Target", r.Target)
	if err != nil {
		return nil, err
	}
	if target != nil {
		out.RealizedReturn = *target
		out.HasTarget = true
	}

	out.Prediction, err = parseOptionalFloat("Prediction", r.Prediction)
	if err != nil {
		return nil, err
	}
	out.Close, err = parseOptionalFloat("Close", r.Close)
	if err != nil {
		return nil, err
	}

	down, err := parseOptionalFloat("Prob_Down", r.ProbDown)
	if err != nil {
		return nil, err
	}
	flat, err := parseOptionalFloat("Prob_Flat", r.ProbFlat)
	if err != nil {
		return nil, err
	}
	up, err := parseOptionalFloat("Prob_Up", r.ProbUp)
	if err != nil {
		return nil, err
	}
	if down != nil && flat != nil && up != nil {
		out.Probabilities = &domain.ClassProbabilities{
			Down: *down,
			Flat: *flat,
			Up:   *up,
		}
	} else if down != nil || flat != nil || up != nil {
		return nil, fmt.Errorf("partial probabilities")
	}

	return out, nil
}

func parseOptionalFloat(name, s string) (*float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid %s %q", name, s)
	}
	if err := checkFinite(name, f); err != nil {
		return nil, err
	}
	return &f, nil
}

var csvDateLayouts = []string{
	util.DateLayout,
	"2006-01-02 15:04:05",
	time.RFC3339,
}

// parseCsvDate accepts plain dates and pandas-style timestamps,
// keeping only the calendar date
func parseCsvDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range csvDateLayouts {
		t, err := time.Parse(layout, s)
		if err == nil {
			return util.NewDate(t.Year(), int(t.Month()), t.Day()), nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid Date %q", s)
}
