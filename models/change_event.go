package models

import "time"

type ChangeOp string

const (
	OpInsert ChangeOp = "INSERT"
	OpUpdate ChangeOp = "UPDATE"
	OpDelete ChangeOp = "DELETE"
)

// ChangeEvent says that a row of Table changed. Receivers reload the whole
// table, so the payload only carries what is useful for logs.
type ChangeEvent struct {
	Table string    `json:"table"`
	Op    ChangeOp  `json:"op"`
	ID    string    `json:"id"`
	At    time.Time `json:"at"`
}
