package category

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrNotFound       = errors.New("category not found")
	ErrDuplicateLabel = errors.New("category label already exists")
	ErrEmptyLabel     = errors.New("category label is required")
)

// Category is a user-owned transaction group. Transactions reference it,
// they never own it.
type Category struct {
	ID          uuid.UUID
	UserID      uuid.UUID
	Label       string
	Description string
	Icon        string
	CreatedAt   time.Time
}

// Defaults are created for every new user.
var Defaults = []CreateParams{
	{Label: "Food", Icon: "utensils"},
	{Label: "Groceries", Icon: "shopping-cart"},
	{Label: "Transport", Icon: "bus"},
	{Label: "Housing", Icon: "home"},
	{Label: "Utilities", Icon: "bolt"},
	{Label: "Entertainment", Icon: "film"},
	{Label: "Health", Icon: "heart-pulse"},
	{Label: "Salary", Icon: "briefcase"},
	{Label: "Other", Icon: "box"},
}
