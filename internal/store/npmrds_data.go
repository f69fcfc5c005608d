package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/samber/lo"

	"github.com/npmrds-measures/calculator/internal/calendar"
	"github.com/npmrds-measures/calculator/internal/npmrds"
)

// NpmrdsDataDao aggregates the 5-minute NPMRDS epochs of a TMC into time bins.
type NpmrdsDataDao struct {
	db          Querier
	year        int
	timeBinSize int
}

func NewNpmrdsDataDao(db Querier, year, timeBinSize int) (*NpmrdsDataDao, error) {
	if !calendar.ValidTimeBinSize(timeBinSize) {
		return nil, fmt.Errorf("invalid time bin size %d", timeBinSize)
	}
	return &NpmrdsDataDao{db: db, year: year, timeBinSize: timeBinSize}, nil
}

// binnedMetricExpr aggregates one data key. Speeds are derived per epoch from
// the segment length bound to $2.
func binnedMetricExpr(key npmrds.DataKey) string {
	col := npmrds.SourceColumn(key.Source)
	value := col
	if key.Metric == npmrds.Speed {
		value = fmt.Sprintf("($2::DOUBLE PRECISION / NULLIF(%s, 0) * 3600)", col)
	}
	if key.Mean == npmrds.Harmonic {
		return fmt.Sprintf("(COUNT(%s)::DOUBLE PRECISION / NULLIF(SUM(1.0 / NULLIF(%s, 0)), 0))::DOUBLE PRECISION", value, value)
	}
	return fmt.Sprintf("AVG(%s)::DOUBLE PRECISION", value)
}

// BuildBinnedDataQuery selects a year of binned rows for the TMC bound to $1,
// ordered by date then time bin.
func BuildBinnedDataQuery(year, timeBinSize int, keys []npmrds.DataKey) (string, error) {
	if len(keys) == 0 {
		return "", fmt.Errorf("no npmrds data keys requested")
	}
	if !calendar.ValidTimeBinSize(timeBinSize) {
		return "", fmt.Errorf("invalid time bin size %d", timeBinSize)
	}
	cols := lo.Map(lo.Uniq(keys), func(k npmrds.DataKey, _ int) string {
		return fmt.Sprintf("%s AS %q", binnedMetricExpr(k), k.String())
	})
	epochsPerBin := timeBinSize / 5
	return fmt.Sprintf(`SELECT tmc, to_char(date, 'YYYY-MM-DD') AS date, (epoch / %d)::INT AS time_bin_num, %s
		FROM npmrds
		WHERE tmc = $1 AND date >= '%d-01-01'::DATE AND date < '%d-01-01'::DATE
		GROUP BY tmc, date, time_bin_num
		ORDER BY date, time_bin_num`,
		epochsPerBin, strings.Join(cols, ", "), year, year+1), nil
}

// BinnedYearData loads the TMC's rows. Miles is needed when any key is a speed.
func (d *NpmrdsDataDao) BinnedYearData(ctx context.Context, tmc string, miles float64, keys []npmrds.DataKey) ([]npmrds.ObservationRow, error) {
	sql, err := BuildBinnedDataQuery(d.year, d.timeBinSize, keys)
	if err != nil {
		return nil, err
	}
	args := []any{tmc}
	if lo.ContainsBy(keys, func(k npmrds.DataKey) bool { return k.Metric == npmrds.Speed }) {
		args = append(args, miles)
	}
	rows, err := d.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("query npmrds data for %s: %w", tmc, err)
	}
	maps, err := pgx.CollectRows(rows, pgx.RowToMap)
	if err != nil {
		return nil, fmt.Errorf("scan npmrds data for %s: %w", tmc, err)
	}
	return lo.Map(maps, func(m map[string]any, _ int) npmrds.ObservationRow {
		return ObservationRowFromMap(m, keys)
	}), nil
}

// ObservationRowFromMap keeps only the non-null metrics of keys.
func ObservationRowFromMap(m map[string]any, keys []npmrds.DataKey) npmrds.ObservationRow {
	binNum, _ := toFloat(m["time_bin_num"])
	row := npmrds.ObservationRow{
		Tmc:        toString(m["tmc"]),
		Date:       toString(m["date"]),
		TimeBinNum: int(binNum),
		Values:     make(map[npmrds.DataKey]float64, len(keys)),
	}
	for _, k := range keys {
		if v, ok := toFloat(m[k.String()]); ok {
			row.Values[k] = v
		}
	}
	return row
}
