package domain

import (
	"time"

	"github.com/google/uuid"
)

const (
	RoleAdmin    = "admin"
	RoleOperator = "operator"
)

// Operator is a shop user who records sales and closes the register
type Operator struct {
	ID           uuid.UUID `json:"id" db:"id"`
	Username     string    `json:"username" db:"username"`
	Email        string    `json:"email" db:"email"`
	PasswordHash string    `json:"-" db:"password_hash"`
	IsSuperuser  bool      `json:"is_superuser" db:"is_superuser"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time `json:"updated_at" db:"updated_at"`
}

// Role maps the superuser flag onto the token role claim
func (o *Operator) Role() string {
	if o.IsSuperuser {
		return RoleAdmin
	}
	return RoleOperator
}

// Actor identifies who performs an operation. Every service call takes one
// explicitly instead of reading it from request state.
type Actor struct {
	OperatorID uuid.UUID
	Username   string
	Privileged bool
}

// ActorFor builds the actor for an operator
func ActorFor(o *Operator) Actor {
	return Actor{OperatorID: o.ID, Username: o.Username, Privileged: o.IsSuperuser}
}

// ActorFromRole builds an actor from token claims
func ActorFromRole(operatorID uuid.UUID, role string) Actor {
	return Actor{OperatorID: operatorID, Privileged: role == RoleAdmin}
}
