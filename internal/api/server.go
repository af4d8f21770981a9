package api

import (
	"context"
	"fmt"
	"log"
	"strings"

	"fleetnav/internal/config"
	"fleetnav/internal/sim"
	"fleetnav/internal/store"
	"fleetnav/internal/webhooks"
)

type Server struct {
	Sim    *sim.Simulation
	Store  store.Store
	Broker EventBroker
	Config config.Server
	Policy string

	// local sees only events this process published; webhooks forward from it
	// so replicas sharing a Redis broker do not deliver each event N times.
	local *Broker
}

// New wires a Server around an existing simulation using the in-memory
// store and broker.
func New(s *sim.Simulation) *Server {
	srv := &Server{Sim: s, Store: store.NewMemory(), Broker: NewBroker(), Policy: "greedy", local: NewBroker()}
	srv.refreshGauges()
	return srv
}

// NewServer builds the simulation from the configured scenario and picks the
// store and broker. If DATABASE_URL is unset, uses in-memory store.
func NewServer(cfg config.Server) (*Server, error) {
	sc, err := config.LoadScenario(cfg.Scenario)
	if err != nil {
		return nil, fmt.Errorf("load scenario: %w", err)
	}
	if err := sc.ApplyEnv(); err != nil {
		return nil, err
	}
	sm, err := sc.Build()
	if err != nil {
		return nil, fmt.Errorf("build scenario: %w", err)
	}

	var st store.Store
	if cfg.DatabaseURL == "" {
		st = store.NewMemory()
	} else {
		pg, err := store.NewPostgres(cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		if cfg.Migrate {
			if err := pg.Migrate(context.Background()); err != nil {
				return nil, err
			}
		}
		st = pg
	}

	// Broker selection
	var broker EventBroker = NewBroker()
	if cfg.RedisURL != "" {
		if rb, err := NewRedisBroker(cfg.RedisURL); err == nil {
			broker = rb
		} else {
			log.Printf("[broker] redis unavailable, using in-memory broker: %v", err)
		}
	}
	policy := sc.Policy
	if policy == "" {
		policy = "greedy"
	}
	srv := &Server{Sim: sm, Store: st, Broker: broker, Config: cfg, Policy: policy, local: NewBroker()}
	srv.refreshGauges()
	return srv, nil
}

func (s *Server) publish(evt SSEEvent) {
	s.Broker.Publish(Topic, evt)
	if s.local != nil {
		s.local.Publish(Topic, evt)
	}
}

// StartWebhooks forwards events published by this process to f until ctx is
// done. Events other replicas publish through a shared broker are not
// forwarded. types limits the forwarded event types; empty forwards all.
func (s *Server) StartWebhooks(ctx context.Context, f *webhooks.Forwarder, types []string) {
	filter := parseFilter(strings.Join(types, ","))
	if s.local == nil {
		s.local = NewBroker()
	}
	ch := s.local.Subscribe(Topic)
	// buffered so a slow endpoint does not stall the broker fan-out
	events := make(chan webhooks.Event, 256)
	go func() {
		defer close(events)
		defer s.local.Unsubscribe(Topic, ch)
		for {
			select {
			case <-ctx.Done():
				return
			case evt, ok := <-ch:
				if !ok {
					return
				}
				if !filter.keep(evt) {
					continue
				}
				select {
				case events <- webhooks.Event{Type: evt.Type, Data: evt.Data}:
				default:
					log.Printf("[webhooks] queue full, dropping %s", evt.Type)
				}
			}
		}
	}()
	go f.Run(ctx, events)
}
