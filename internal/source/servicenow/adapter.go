package servicenow

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/rs/zerolog"

	"github.com/nhle/change-adapter/internal/event"
	"github.com/nhle/change-adapter/internal/model"
	"github.com/nhle/change-adapter/internal/source"
)

// Adapter connects a host to one ServiceNow instance. It probes the
// instance's health, announces ONLINE/OFFLINE on its event bus, and
// normalizes change requests returned by its connector.
//
// An Adapter keeps no health state between calls; every Healthcheck
// derives the status again from a fresh fetch.
type Adapter struct {
	id         string
	props      model.AdapterConfig
	connector  source.Connector
	clientOpts []ClientOption
	bus        *event.Bus
	log        zerolog.Logger
}

// Option customises an Adapter at construction.
type Option func(*Adapter)

// WithConnector installs the connector instead of building an HTTP one
// from the properties.
func WithConnector(c source.Connector) Option {
	return func(a *Adapter) { a.connector = c }
}

// WithClientOptions configures the HTTP connector built from the
// properties. It has no effect together with WithConnector.
func WithClientOptions(opts ...ClientOption) Option {
	return func(a *Adapter) { a.clientOpts = append(a.clientOpts, opts...) }
}

// WithLogger sets the logger. The instance id is added to every entry.
func WithLogger(l zerolog.Logger) Option {
	return func(a *Adapter) { a.log = l }
}

// WithBus publishes status events on an existing bus.
func WithBus(b *event.Bus) Option {
	return func(a *Adapter) { a.bus = b }
}

// NewAdapter creates an adapter instance. props is copied and never
// modified afterwards; the connector is created once here.
func NewAdapter(id string, props model.AdapterConfig, opts ...Option) *Adapter {
	if props.Table == "" {
		props.Table = model.DefaultTable
	}
	if props.MissingBody == "" {
		props.MissingBody = model.MissingBodyDrop
	}

	a := &Adapter{
		id:    id,
		props: props,
		log:   zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(a)
	}

	a.log = a.log.With().Str("instance", id).Logger()
	if a.bus == nil {
		a.bus = event.NewBus()
	}
	if a.connector == nil {
		a.connector = NewClient(
			id, props.URL, props.Auth.Username, props.Auth.Password, props.Table,
			a.clientOpts...,
		)
	}
	return a
}

// ID returns the host-supplied instance identifier.
func (a *Adapter) ID() string { return a.id }

// Properties returns a copy of the instance properties.
func (a *Adapter) Properties() model.AdapterConfig { return a.props }

// On registers a listener for ONLINE or OFFLINE events.
func (a *Adapter) On(status model.Status, l event.Listener) {
	a.bus.On(status, l)
}

// Connect runs a single health check. Its result is only observable
// through the emitted event.
func (a *Adapter) Connect(ctx context.Context) {
	a.Healthcheck(ctx)
}

// Health is the outcome of a single probe.
type Health struct {
	Status  model.Status
	Records []model.ChangeTicket
	Err     error
}

// Probe fetches records and classifies the instance as online or offline.
// It reports false when the response was dropped under the "drop"
// missing-body policy, in which case no status can be derived.
func (a *Adapter) Probe(ctx context.Context) (Health, bool) {
	records, err := a.Records(ctx)
	if a.dropped(err) {
		return Health{}, false
	}
	if err != nil {
		return Health{Status: model.StatusOffline, Err: err}, true
	}
	return Health{Status: model.StatusOnline, Records: records}, true
}

// Healthcheck probes the instance in the background, emits ONLINE or
// OFFLINE, and delivers the probe's records or error on the returned
// channel. The channel is buffered and closed after at most one value,
// so callers that do not care about the result may ignore it.
func (a *Adapter) Healthcheck(ctx context.Context) <-chan source.Result[[]model.ChangeTicket] {
	ch := make(chan source.Result[[]model.ChangeTicket], 1)

	go func() {
		defer close(ch)

		var emitted, sent bool
		defer func() {
			r := recover()
			if r == nil {
				return
			}
			err := fmt.Errorf("healthcheck panicked: %v", r)
			a.log.Error().Err(err).Msg("healthcheck failed")
			if !emitted {
				a.emitRecovered(model.StatusOffline)
			}
			if !sent {
				ch <- source.Result[[]model.ChangeTicket]{Err: err}
			}
		}()

		h, ok := a.Probe(ctx)
		if !ok {
			a.log.Debug().Msg("healthcheck response had no body; dropped")
			return
		}

		if h.Status == model.StatusOffline {
			emitted = true
			a.emitOffline()
			a.log.Error().Err(h.Err).Msg("healthcheck failed")
			sent = true
			ch <- source.Result[[]model.ChangeTicket]{Err: h.Err}
			return
		}

		emitted = true
		a.emitOnline()
		a.log.Debug().Int("records", len(h.Records)).Msg("healthcheck successful")
		sent = true
		ch <- source.Result[[]model.ChangeTicket]{Value: h.Records}
	}()

	return ch
}

// GetRecord fetches change requests in the background. The channel
// yields at most one result and is then closed; under the "drop"
// missing-body policy a response without body closes it empty.
func (a *Adapter) GetRecord(ctx context.Context) <-chan source.Result[[]model.ChangeTicket] {
	return deliver(a, func() ([]model.ChangeTicket, error) {
		return a.Records(ctx)
	})
}

// PostRecord creates a change request in the background. Delivery
// follows the same rules as GetRecord.
func (a *Adapter) PostRecord(ctx context.Context) <-chan source.Result[*model.ChangeTicket] {
	return deliver(a, func() (*model.ChangeTicket, error) {
		return a.Create(ctx)
	})
}

// Records performs one connector get and normalizes the result array in
// source order. A response without body yields a *source.MissingBodyError
// regardless of policy.
func (a *Adapter) Records(ctx context.Context) ([]model.ChangeTicket, error) {
	env, err := a.connector.Get(ctx)
	if err != nil {
		return nil, err
	}
	if !env.HasBody() {
		return nil, &source.MissingBodyError{InstanceID: a.id, Op: "get"}
	}

	const op = "decoding change request list"
	var resp listResponse
	if err := decode(*env.Body, &resp); err != nil {
		return nil, &source.PayloadError{Op: op, Err: err}
	}
	if resp.Result == nil {
		return nil, &source.PayloadError{Op: op, Err: errNoResult}
	}

	tickets := make([]model.ChangeTicket, 0, len(*resp.Result))
	for _, r := range *resp.Result {
		tickets = append(tickets, r.toTicket())
	}
	return tickets, nil
}

// Create performs one connector post and normalizes the single result
// object.
func (a *Adapter) Create(ctx context.Context) (*model.ChangeTicket, error) {
	env, err := a.connector.Post(ctx)
	if err != nil {
		return nil, err
	}
	if !env.HasBody() {
		return nil, &source.MissingBodyError{InstanceID: a.id, Op: "post"}
	}

	const op = "decoding created change request"
	var resp singleResponse
	if err := decode(*env.Body, &resp); err != nil {
		return nil, &source.PayloadError{Op: op, Err: err}
	}
	if resp.Result == nil {
		return nil, &source.PayloadError{Op: op, Err: errNoResult}
	}

	ticket := resp.Result.toTicket()
	return &ticket, nil
}

func (a *Adapter) emitOnline() {
	a.log.Info().Msg("instance is available")
	a.emitStatus(model.StatusOnline)
}

func (a *Adapter) emitOffline() {
	a.log.Error().Msg("instance is unavailable")
	a.emitStatus(model.StatusOffline)
}

func (a *Adapter) emitStatus(status model.Status) {
	a.bus.Emit(status, event.Payload{ID: a.id})
}

// emitRecovered emits status after a panic, swallowing a second panic from
// a listener.
func (a *Adapter) emitRecovered(status model.Status) {
	defer func() {
		if r := recover(); r != nil {
			a.log.Error().Interface("panic", r).Msg("status listener panicked")
		}
	}()
	a.emitStatus(status)
}

// dropped reports whether err is a missing body that the instance's
// policy discards.
func (a *Adapter) dropped(err error) bool {
	return errors.Is(err, source.ErrNoBody) &&
		a.props.MissingBody == model.MissingBodyDrop
}

// deliver runs fn on its own goroutine and sends its outcome on a
// one-slot channel that is always closed.
func deliver[T any](a *Adapter, fn func() (T, error)) <-chan source.Result[T] {
	ch := make(chan source.Result[T], 1)

	go func() {
		defer close(ch)

		var sent bool
		defer func() {
			if r := recover(); r != nil && !sent {
				err := fmt.Errorf("request panicked: %v", r)
				a.log.Error().Err(err).Msg("request failed")
				ch <- source.Result[T]{Err: err}
			}
		}()

		v, err := fn()
		sent = true
		if a.dropped(err) {
			a.log.Debug().Msg("response had no body; dropped")
			return
		}
		if err != nil {
			ch <- source.Result[T]{Err: err}
			return
		}
		ch <- source.Result[T]{Value: v}
	}()

	return ch
}

// errNoResult reports a body without a "result" member, or with a null one.
var errNoResult = errors.New(`missing "result" member`)

// decode unmarshals body keeping numbers as json.Number so values are
// passed through without float conversion. The body must hold exactly one
// JSON value.
func decode(body string, v any) error {
	dec := json.NewDecoder(strings.NewReader(body))
	dec.UseNumber()
	if err := dec.Decode(v); err != nil {
		return err
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		if err == nil {
			err = errors.New("unexpected data after JSON value")
		}
		return err
	}
	return nil
}
