package bot

import (
	"github.com/iamwavecut/phishguard/internal/db"
)

type service struct {
	bot Transport
	db  db.Client
}

func NewService(bot Transport, db db.Client) *service {
	return &service{
		bot: bot,
		db:  db,
	}
}

func (s *service) GetBot() Transport {
	return s.bot
}

func (s *service) GetDB() db.Client {
	return s.db
}
