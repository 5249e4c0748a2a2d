// Package sqlstore implements the persistence repositories on database/sql.
// The SQL is shared between databases; a Dialect supplies placeholders,
// time encoding and driver error mapping.
package sqlstore
