package core

import (
	"context"
	"errors"
	"time"

	"twido/internal/geofence"
	"twido/pkg/domain"
)

// RegisterLocation samples the current coordinate and stores it under kind.
// Sampling failures alert the user and leave state untouched.
func (s *Store) RegisterLocation(ctx context.Context, kind domain.LocationKind) (domain.Coordinate, error) {
	if kind != domain.LocationHome && kind != domain.LocationWork {
		return domain.Coordinate{}, domain.ErrInvalidLocationKind
	}
	coord, err := s.sample(ctx, "register_location")
	if err != nil {
		return domain.Coordinate{}, err
	}
	s.mutate("register_location", func(d *domain.Document) []domain.Field {
		c := coord
		if kind == domain.LocationHome {
			d.HomeLocation = &c
			return []domain.Field{domain.FieldHomeLocation}
		}
		d.WorkLocation = &c
		return []domain.Field{domain.FieldWorkLocation}
	})
	return coord, nil
}

// Locations returns the registered coordinates.
func (s *Store) Locations() domain.LocationRegistration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.doc.Locations()
}

// CheckLocation samples the current coordinate and returns the advisory mode
// suggestion. The mode is never switched here.
func (s *Store) CheckLocation(ctx context.Context) (domain.Mode, bool, error) {
	coord, err := s.sample(ctx, "check_location")
	if err != nil {
		return "", false, err
	}
	s.mu.Lock()
	reg := s.doc.Locations()
	mode := s.doc.Mode
	s.mu.Unlock()
	suggestion, ok := geofence.SuggestSwitch(coord, reg, mode)
	return suggestion, ok, nil
}

func (s *Store) sample(ctx context.Context, op string) (domain.Coordinate, error) {
	if s.geo == nil {
		return domain.Coordinate{}, errors.New("no geolocator configured")
	}
	start := time.Now()
	coord, err := s.geo.CurrentCoordinate(ctx)
	s.metrics.Observe(ctx, op, err == nil, time.Since(start))
	if err == nil {
		return coord, nil
	}
	n := domain.Notification{Kind: domain.AlertLocation, Title: "Location unavailable", Message: "Could not read your current location."}
	if errors.Is(err, domain.ErrPermissionDenied) {
		n = domain.Notification{Kind: domain.AlertPermission, Title: "Permission denied", Message: "Location access is required to register places."}
	}
	s.logger.Warn("location sample failed", "op", op, "error", err)
	s.notifier.Notify(n)
	return domain.Coordinate{}, err
}

// Mode returns the current mode.
func (s *Store) Mode() domain.Mode {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.doc.Mode
}

// SetMode replaces the global mode.
func (s *Store) SetMode(mode domain.Mode) error {
	if !mode.Valid() {
		return domain.ErrInvalidMode
	}
	s.mutate("set_mode", func(d *domain.Document) []domain.Field {
		if d.Mode == mode {
			return nil
		}
		d.Mode = mode
		return []domain.Field{domain.FieldMode}
	})
	return nil
}

// LowEnergyMode reports the low-energy filter flag.
func (s *Store) LowEnergyMode() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.doc.IsLowEnergyMode
}

// SetLowEnergyMode replaces the low-energy filter flag.
func (s *Store) SetLowEnergyMode(on bool) {
	s.mutate("set_low_energy_mode", func(d *domain.Document) []domain.Field {
		if d.IsLowEnergyMode == on {
			return nil
		}
		d.IsLowEnergyMode = on
		return []domain.Field{domain.FieldLowEnergy}
	})
}
