package repository

import (
	"context"
	"database/sql"
	"fmt"

	"signalbacktest/internal/db/models/postgres/public/model"
	. "signalbacktest/internal/db/models/postgres/public/table"
	"signalbacktest/internal/domain"
	"signalbacktest/internal/util"

	. "github.com/go-jet/jet/v2/postgres"
)

type postgresObservationRepositoryHandler struct {
	Db *sql.DB
}

func NewPostgresObservationRepository(db *sql.DB) ObservationRepository {
	return postgresObservationRepositoryHandler{Db: db}
}

func (h postgresObservationRepositoryHandler) List(ctx context.Context, in ListObservationsInput) ([]domain.Observation, error) {
	where := Bool(true)
	if in.Start != nil {
		where = where.AND(Prediction.Date.GT_EQ(DateT(*in.Start)))
	}
	if in.End != nil {
		where = where.AND(Prediction.Date.LT_EQ(DateT(*in.End)))
	}

	query := Prediction.
		SELECT(Prediction.AllColumns).
		WHERE(where).
		ORDER_BY(Prediction.Date.ASC(), Prediction.Ticker.ASC())

	result := []model.Prediction{}
	err := query.QueryContext(ctx, h.Db, &result)
	if err != nil {
		return nil, fmt.Errorf("failed to list predictions: %w", err)
	}

	out := make([]domain.Observation, 0, len(result))
	for _, p := range result {
		o, err := observationFromModel(p)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}

	return out, nil
}

func observationFromModel(p model.Prediction) (domain.Observation, error) {
	o := domain.Observation{
		Asset:          p.Ticker,
		Date:           util.NewDate(p.Date.Year(), int(p.Date.Month()), p.Date.Day()),
		Prediction:     p.Prediction,
		RealizedReturn: p.Target,
	}
	if err := checkFinite("target", p.Target); err != nil {
		return o, domain.NewInputError("%s on %s: %s", p.Ticker, util.FormatDate(o.Date), err.Error())
	}
	if p.ProbDown != nil && p.ProbFlat != nil && p.ProbUp != nil {
		o.Probabilities = &domain.ClassProbabilities{
			Down: *p.ProbDown,
			Flat: *p.ProbFlat,
			Up:   *p.ProbUp,
		}
	}
	return o, nil
}
