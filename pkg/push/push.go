// Package push delivers notifications over APNs. Tokens issued by different build
// configurations are only valid in one APNs environment, and the server cannot know in
// advance which, so both a production and a development client are constructed and the
// dispatcher falls back between them.
package push

import (
	"context"
	"errors"
	"fmt"
)

// Environment identifies which delivery environment a pusher targets.
type Environment string

const (
	EnvironmentProduction  Environment = "production"
	EnvironmentDevelopment Environment = "development"
)

// Notification is one push message.
type Notification struct {
	Token string
	Title string
	Body  string
	Badge int
	Data  map[string]any
}

// Pusher delivers notifications in a single environment.
type Pusher interface {
	// Send delivers one notification. Failures are returned as *DeliveryError.
	Send(ctx context.Context, n Notification) error

	// Shutdown releases the underlying transport resources.
	Shutdown()
}

// Class partitions delivery failures by how the dispatcher should react.
type Class int

const (
	// ClassTransient failures may succeed on a later run; the token is kept.
	ClassTransient Class = iota
	// ClassBadToken means the token is invalid in this environment but may be valid in
	// the other one.
	ClassBadToken
	// ClassPermanent means the token will never work again and must be pruned.
	ClassPermanent
)

// DeliveryError is a typed push delivery failure.
type DeliveryError struct {
	Environment Environment
	Reason      string
	Class       Class
	Err         error
}

func (e *DeliveryError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("push: %s delivery failed: %s", e.Environment, e.Reason)
	}
	return fmt.Sprintf("push: %s delivery failed: %v", e.Environment, e.Err)
}

func (e *DeliveryError) Unwrap() error {
	return e.Err
}

// IsBadToken reports whether err means the token is invalid in the attempted
// environment only.
func IsBadToken(err error) bool {
	var de *DeliveryError
	return errors.As(err, &de) && de.Class == ClassBadToken
}

// IsPermanent reports whether err means the token is dead in every environment.
func IsPermanent(err error) bool {
	var de *DeliveryError
	return errors.As(err, &de) && de.Class == ClassPermanent
}
