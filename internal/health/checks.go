package health

import (
	"context"
	"errors"
)

// Pinger is satisfied by the conversation stores.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Store checks that the conversation store answers.
func Store(p Pinger) Checker {
	return Checker{Name: "store", Check: p.Ping}
}

// Condition reports a failure with msg while ok returns false.
func Condition(name string, ok func() bool, msg string) Checker {
	return Checker{Name: name, Check: func(context.Context) error {
		if !ok() {
			return errors.New(msg)
		}
		return nil
	}}
}
