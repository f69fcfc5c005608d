package store

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/samber/lo"

	"github.com/npmrds-measures/calculator/internal/npmrds"
)

const tmcSubsetSize = 1000

func dirAadt(aadtExpr string) string {
	return fmt.Sprintf("(%s::NUMERIC / LEAST(COALESCE(faciltype, 2), 2)::NUMERIC)::DOUBLE PRECISION", aadtExpr)
}

const (
	aadtTruck = "(aadt_combi + aadt_singl)"
	aadtPass  = "(aadt - " + aadtTruck + ")"

	avoPass  = "1.7"
	avoSingl = "(CASE ua_code WHEN '63217' THEN 16.8::NUMERIC ELSE 10.7::NUMERIC END)"
	avoCombi = "1"
)

// metadataColumns maps attribute aliases to their SQL expressions.
var metadataColumns = map[string]string{
	npmrds.AttrTmc:             "tmc",
	npmrds.AttrState:           "state",
	npmrds.AttrMiles:           "miles::DOUBLE PRECISION",
	npmrds.AttrAvgSpeedLimit:   "avg_speedlimit::DOUBLE PRECISION",
	npmrds.AttrFunctionalClass: fmt.Sprintf("(CASE WHEN f_system <= 2 THEN '%s' ELSE '%s' END)", npmrds.Freeway, npmrds.NonFreeway),
	npmrds.AttrCongestionLevel: "congestion_level",
	npmrds.AttrDirectionality:  "directionality",
	npmrds.AttrIsPrimary:       "(COALESCE(isprimary::INT, 0) = 1)",
	npmrds.AttrStartLat:        "startlat::DOUBLE PRECISION",
	npmrds.AttrStartLong:       "startlong::DOUBLE PRECISION",
	npmrds.AttrEndLat:          "endlat::DOUBLE PRECISION",
	npmrds.AttrEndLong:         "endlong::DOUBLE PRECISION",

	npmrds.AttrDirectionalAadt:      dirAadt("aadt"),
	npmrds.AttrDirectionalAadtPass:  dirAadt(aadtPass),
	npmrds.AttrDirectionalAadtSingl: dirAadt("aadt_singl"),
	npmrds.AttrDirectionalAadtCombi: dirAadt("aadt_combi"),
	npmrds.AttrDirectionalAadtTruck: dirAadt(aadtTruck),

	npmrds.AttrAvgVehicleOccupancy: fmt.Sprintf(
		"(((%s * %s) + (%s * aadt_singl) + (%s * aadt_combi)) / NULLIF(aadt, 0))::DOUBLE PRECISION",
		avoPass, aadtPass, avoSingl, avoCombi),
	npmrds.AttrAvgVehicleOccupancyPass:  avoPass + "::DOUBLE PRECISION",
	npmrds.AttrAvgVehicleOccupancySingl: avoSingl + "::DOUBLE PRECISION",
	npmrds.AttrAvgVehicleOccupancyCombi: avoCombi + "::DOUBLE PRECISION",
	npmrds.AttrAvgVehicleOccupancyTruck: fmt.Sprintf(
		"(((%s * aadt_singl) + (%s * aadt_combi)) / NULLIF(aadt_singl + aadt_combi, 0))::DOUBLE PRECISION",
		avoSingl, avoCombi),
}

// MetadataAttributes lists every attribute alias the DAO can select.
func MetadataAttributes() []string {
	attrs := lo.Keys(metadataColumns)
	sort.Strings(attrs)
	return attrs
}

// BuildMetadataQuery selects the requested aliases for the TMCs bound to $1.
func BuildMetadataQuery(year int, attrs []string) (string, error) {
	aliases := lo.Uniq(append([]string{npmrds.AttrTmc}, attrs...))
	sort.Strings(aliases)

	var cols []string
	for _, alias := range aliases {
		expr, ok := metadataColumns[alias]
		if !ok {
			return "", fmt.Errorf("unknown tmc metadata attribute %q", alias)
		}
		cols = append(cols, fmt.Sprintf("%s AS %q", expr, alias))
	}
	return fmt.Sprintf("SELECT %s FROM tmc_metadata_%d WHERE tmc = ANY($1)", strings.Join(cols, ", "), year), nil
}

type TmcMetadataDao struct {
	db   Querier
	year int
}

func NewTmcMetadataDao(db Querier, year int) *TmcMetadataDao {
	return &TmcMetadataDao{db: db, year: year}
}

// MetadataForTmcs loads the attributes for tmcs in subsets of 1000. TMCs
// without a metadata row are absent from the result.
func (d *TmcMetadataDao) MetadataForTmcs(ctx context.Context, tmcs []string, attrs []string) ([]npmrds.SegmentAttributes, error) {
	sql, err := BuildMetadataQuery(d.year, attrs)
	if err != nil {
		return nil, err
	}

	result := make([]npmrds.SegmentAttributes, 0, len(tmcs))
	for _, subset := range lo.Chunk(tmcs, tmcSubsetSize) {
		rows, err := d.db.Query(ctx, sql, subset)
		if err != nil {
			return nil, fmt.Errorf("query tmc metadata: %w", err)
		}
		maps, err := pgx.CollectRows(rows, pgx.RowToMap)
		if err != nil {
			return nil, fmt.Errorf("scan tmc metadata: %w", err)
		}
		for _, m := range maps {
			result = append(result, SegmentAttributesFromMap(m))
		}
	}
	log.Debugf("Loaded metadata for %d/%d TMCs", len(result), len(tmcs))
	return result, nil
}

// TmcsForStates lists the year's TMCs in the given states, ordered by code.
func (d *TmcMetadataDao) TmcsForStates(ctx context.Context, states []string) ([]string, error) {
	sql := fmt.Sprintf("SELECT tmc FROM tmc_metadata_%d WHERE state = ANY($1) ORDER BY tmc", d.year)
	rows, err := d.db.Query(ctx, sql, states)
	if err != nil {
		return nil, fmt.Errorf("query tmcs for states: %w", err)
	}
	tmcs, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("scan tmcs: %w", err)
	}
	return tmcs, nil
}

// SegmentAttributesFromMap fills the attributes present in a metadata row.
func SegmentAttributesFromMap(m map[string]any) npmrds.SegmentAttributes {
	f := func(alias string) float64 {
		v, _ := toFloat(m[alias])
		return v
	}
	isPrimary, _ := m[npmrds.AttrIsPrimary].(bool)
	return npmrds.SegmentAttributes{
		Tmc:             toString(m[npmrds.AttrTmc]),
		State:           toString(m[npmrds.AttrState]),
		Miles:           f(npmrds.AttrMiles),
		AvgSpeedLimit:   f(npmrds.AttrAvgSpeedLimit),
		FunctionalClass: npmrds.FunctionalClass(toString(m[npmrds.AttrFunctionalClass])),
		CongestionLevel: npmrds.CongestionLevel(toString(m[npmrds.AttrCongestionLevel])),
		Directionality:  npmrds.Directionality(toString(m[npmrds.AttrDirectionality])),
		IsPrimary:       isPrimary,

		StartLat:  f(npmrds.AttrStartLat),
		StartLong: f(npmrds.AttrStartLong),
		EndLat:    f(npmrds.AttrEndLat),
		EndLong:   f(npmrds.AttrEndLong),

		DirectionalAadt:      f(npmrds.AttrDirectionalAadt),
		DirectionalAadtPass:  f(npmrds.AttrDirectionalAadtPass),
		DirectionalAadtSingl: f(npmrds.AttrDirectionalAadtSingl),
		DirectionalAadtCombi: f(npmrds.AttrDirectionalAadtCombi),
		DirectionalAadtTruck: f(npmrds.AttrDirectionalAadtTruck),

		AvgVehicleOccupancy:      f(npmrds.AttrAvgVehicleOccupancy),
		AvgVehicleOccupancyPass:  f(npmrds.AttrAvgVehicleOccupancyPass),
		AvgVehicleOccupancySingl: f(npmrds.AttrAvgVehicleOccupancySingl),
		AvgVehicleOccupancyCombi: f(npmrds.AttrAvgVehicleOccupancyCombi),
		AvgVehicleOccupancyTruck: f(npmrds.AttrAvgVehicleOccupancyTruck),
	}
}
