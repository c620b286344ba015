package service

import (
	"time"

	"github.com/rs/zerolog"

	"github.com/dropline/relay-bot/internal/channel"
	"github.com/dropline/relay-bot/internal/db"
)

// Service owns the matching queue, the lifecycle tracker, and the beacon
// maintainer. All mutation is request/response shaped: one inbound event,
// one set of store writes, each committed before the next channel call.
type Service struct {
	store *db.DB
	ch    channel.Channel
	loc   *time.Location
	log   zerolog.Logger

	// test seam; nil means time.Now
	clock func() time.Time
}

func New(store *db.DB, ch channel.Channel, loc *time.Location, log zerolog.Logger) *Service {
	return &Service{store: store, ch: ch, loc: loc, log: log}
}

func (s *Service) now() time.Time {
	if s.clock != nil {
		return s.clock().In(s.loc)
	}
	return time.Now().In(s.loc)
}
