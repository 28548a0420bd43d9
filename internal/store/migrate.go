package store

import (
	"context"
	"errors"
	"log"
)

// MigrateOwnership is a one-time backfill that assigns a created_by owner
// to any student, attendance, session or link document that predates
// per-user data isolation. Records are assigned to an admin when one
// exists, otherwise to the first user. Skipped when there are no users.
func (s *Store) MigrateOwnership(ctx context.Context) error {
	owner, err := s.defaultOwner(ctx)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			log.Println("ownership migration skipped: no users in database")
			return nil
		}
		return err
	}

	filter := Filter{"created_by": Filter{"$exists": false}}
	update := Update{"$set": map[string]any{"created_by": owner}}

	var total int64
	for _, col := range s.collections() {
		n, err := col.UpdateMany(ctx, filter, update)
		if err != nil {
			return err
		}
		total += n
	}
	if total > 0 {
		log.Printf("ownership migration: assigned %d unowned records to %q", total, owner)
	}
	return nil
}

func (s *Store) defaultOwner(ctx context.Context) (string, error) {
	var u struct {
		Username string `bson:"username" json:"username"`
	}
	if err := s.Users.FindOne(ctx, Filter{"role": "admin"}, &u); err == nil {
		return u.Username, nil
	} else if !errors.Is(err, ErrNotFound) {
		return "", err
	}
	if err := s.Users.FindOne(ctx, Filter{}, &u); err != nil {
		return "", err
	}
	return u.Username, nil
}
