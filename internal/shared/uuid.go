package shared

import (
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

// UUIDFromPG converts a pgtype.UUID into a uuid.UUID. Callers check Valid first.
func UUIDFromPG(v pgtype.UUID) uuid.UUID {
	return uuid.UUID(v.Bytes)
}

// PGUUID converts a uuid.UUID into its pgtype form.
func PGUUID(id uuid.UUID) pgtype.UUID {
	return pgtype.UUID{Bytes: id, Valid: true}
}

// PGUUIDPtr converts an optional uuid.UUID; nil becomes SQL NULL.
func PGUUIDPtr(id *uuid.UUID) pgtype.UUID {
	if id == nil {
		return pgtype.UUID{}
	}
	return pgtype.UUID{Bytes: *id, Valid: true}
}
