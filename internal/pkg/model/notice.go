package model

import "time"

type Variant string

const (
	VariantDefault     Variant = "default"
	VariantDestructive Variant = "destructive"
)

// Notice is a toast shown to the user. A zero Duration means it stays until
// dismissed.
type Notice struct {
	Title       string        `json:"title"`
	Description string        `json:"description"`
	Variant     Variant       `json:"variant"`
	Duration    time.Duration `json:"-"`
}
