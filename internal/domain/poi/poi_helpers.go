package poi

import (
	"github.com/jackc/pgx/v5"

	"github.com/FACorreiaa/loci-pubmap/internal/types"
)

// scanPubPatch reads one row selected with pubColumns. NULL columns stay nil in the
// patch so they never overwrite data already held for the pub.
func scanPubPatch(row pgx.Row) (types.PubPatch, error) {
	var p types.PubPatch
	err := row.Scan(
		&p.ID,
		&p.Name,
		&p.Latitude,
		&p.Longitude,
		&p.Area,
		&p.District,
		&p.Features,
		&p.Ownership,
		&p.FoundedYear,
		&p.Points,
		&p.Achievements,
	)
	return p, err
}

func nullableString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// nullableCoordinate stores NULL for pubs that were never geocoded.
func nullableCoordinate(v float64, c types.Coordinate) *float64 {
	if !c.Valid() {
		return nil
	}
	return &v
}
