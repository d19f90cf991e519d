package push

import (
	"context"

	"github.com/Gobusters/ectologger"
	"github.com/pkg/errors"
	"github.com/sideshow/apns2"
	"github.com/sideshow/apns2/payload"
	"github.com/sideshow/apns2/token"

	"github.com/AlsakaSoftware/ijar/pkg/tracing"
)

// APNsConfig holds the signing key and topic for token-based APNs auth.
type APNsConfig struct {
	KeyPath string
	KeyID   string
	TeamID  string
	Topic   string
}

// APNsPusher delivers notifications through one APNs environment.
type APNsPusher struct {
	client *apns2.Client
	topic  string
	env    Environment
	logger ectologger.Logger
}

// NewAPNsPushers builds the production and development pushers from one signing key.
// A missing or unreadable key is a configuration error surfaced at startup.
func NewAPNsPushers(cfg APNsConfig, logger ectologger.Logger) (primary, secondary Pusher, err error) {
	authKey, err := token.AuthKeyFromFile(cfg.KeyPath)
	if err != nil {
		return nil, nil, errors.Wrap(err, "failed to load APNs signing key")
	}
	if cfg.KeyID == "" || cfg.TeamID == "" || cfg.Topic == "" {
		return nil, nil, errors.New("APNs key ID, team ID and topic are all required")
	}

	authToken := &token.Token{
		AuthKey: authKey,
		KeyID:   cfg.KeyID,
		TeamID:  cfg.TeamID,
	}

	primary = &APNsPusher{
		client: apns2.NewTokenClient(authToken).Production(),
		topic:  cfg.Topic,
		env:    EnvironmentProduction,
		logger: logger,
	}
	secondary = &APNsPusher{
		client: apns2.NewTokenClient(authToken).Development(),
		topic:  cfg.Topic,
		env:    EnvironmentDevelopment,
		logger: logger,
	}
	return primary, secondary, nil
}

// Send delivers one notification and classifies any failure by APNs reason.
func (p *APNsPusher) Send(ctx context.Context, n Notification) error {
	ctx, span := tracing.StartSpan(ctx, "APNsPusher.Send")
	defer span.End()

	pl := payload.NewPayload().
		AlertTitle(n.Title).
		AlertBody(n.Body).
		Badge(n.Badge).
		Sound("default")
	for key, value := range n.Data {
		pl.Custom(key, value)
	}

	res, err := p.client.PushWithContext(ctx, &apns2.Notification{
		DeviceToken: n.Token,
		Topic:       p.topic,
		Payload:     pl,
		Priority:    apns2.PriorityHigh,
	})
	if err != nil {
		return &DeliveryError{Environment: p.env, Class: ClassTransient, Err: err}
	}
	if res.Sent() {
		return nil
	}

	return &DeliveryError{
		Environment: p.env,
		Reason:      res.Reason,
		Class:       classifyReason(res.Reason),
	}
}

// Environment reports which APNs environment this pusher targets.
func (p *APNsPusher) Environment() Environment {
	return p.env
}

// Shutdown closes the pusher's idle HTTP/2 connections.
func (p *APNsPusher) Shutdown() {
	p.client.HTTPClient.CloseIdleConnections()
}

func classifyReason(reason string) Class {
	switch reason {
	case apns2.ReasonBadDeviceToken, apns2.ReasonDeviceTokenNotForTopic:
		// Possibly issued for the other environment; worth one attempt there.
		return ClassBadToken
	case apns2.ReasonUnregistered:
		return ClassPermanent
	default:
		return ClassTransient
	}
}
