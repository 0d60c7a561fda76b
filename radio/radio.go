package radio

import (
	"context"
	"errors"
	"fmt"
	"github.com/shimmeringbee/irrigation/zone"
)

type radioError string

func (r radioError) Error() string {
	return string(r)
}

const ErrNoNetworks = radioError("no radio networks configured")

// RequestHandler receives an on/off request from the radio for a single zone.
type RequestHandler func(on bool)

// Endpoint is the logical switch a zone presents to the radio.
type Endpoint interface {
	// OnRequest registers the handler for inbound requests, replacing any previous handler.
	OnRequest(RequestHandler)
	// Reflect writes the zone state back to the radio, it must not be treated as a request.
	Reflect(ctx context.Context, on bool) error
	// ReportRemaining writes the remaining run time of the zone scaled to 0-255.
	ReportRemaining(ctx context.Context, remaining uint8) error
}

type Network interface {
	Name() string
	Connected() bool
	Endpoint(zone.Index) (Endpoint, bool)
	// Erase forgets any pairing with the network, taking effect on next start.
	Erase() error
}

var _ Network = (*Multi)(nil)

// Multi presents several networks as one, it is only connected when every network is.
type Multi struct {
	Networks []Network
}

func (m *Multi) Name() string {
	return "multi"
}

func (m *Multi) Connected() bool {
	if len(m.Networks) == 0 {
		return false
	}

	for _, n := range m.Networks {
		if !n.Connected() {
			return false
		}
	}

	return true
}

func (m *Multi) Endpoint(i zone.Index) (Endpoint, bool) {
	var endpoints multiEndpoint

	for _, n := range m.Networks {
		ep, found := n.Endpoint(i)
		if !found {
			return nil, false
		}

		endpoints = append(endpoints, ep)
	}

	if len(endpoints) == 0 {
		return nil, false
	}

	return endpoints, true
}

func (m *Multi) Erase() error {
	var errs []error

	for _, n := range m.Networks {
		if err := n.Erase(); err != nil {
			errs = append(errs, fmt.Errorf("failed to erase network '%s': %w", n.Name(), err))
		}
	}

	return errors.Join(errs...)
}

type multiEndpoint []Endpoint

func (m multiEndpoint) OnRequest(h RequestHandler) {
	for _, ep := range m {
		ep.OnRequest(h)
	}
}

func (m multiEndpoint) Reflect(ctx context.Context, on bool) error {
	var errs []error

	for _, ep := range m {
		if err := ep.Reflect(ctx, on); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

func (m multiEndpoint) ReportRemaining(ctx context.Context, remaining uint8) error {
	var errs []error

	for _, ep := range m {
		if err := ep.ReportRemaining(ctx, remaining); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

// Endpoints resolves the endpoint of every zone in the network.
func Endpoints(n Network, zones int) ([]Endpoint, error) {
	endpoints := make([]Endpoint, zones)

	for i := 0; i < zones; i++ {
		ep, found := n.Endpoint(zone.Index(i))
		if !found {
			return nil, fmt.Errorf("network '%s' has no endpoint for zone %d", n.Name(), i+1)
		}

		endpoints[i] = ep
	}

	return endpoints, nil
}
