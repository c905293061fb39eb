package utils

import (
	"database/sql"

	"github.com/gobuffalo/nulls"
	"github.com/guregu/null"
)

func SqlToNullString(ns sql.NullString) null.String {
	if ns.Valid {
		return null.StringFrom(ns.String)
	}
	return null.String{}
}

// NullStringToSQL converts null.String to sql.NullString
func NullStringToSQL(s null.String) sql.NullString {
	return sql.NullString{
		String: s.String,
		Valid:  s.Valid,
	}
}

func SqlToNullsTime(nt sql.NullTime) nulls.Time {
	if nt.Valid {
		return nulls.NewTime(nt.Time)
	}
	return nulls.Time{Valid: false}
}
