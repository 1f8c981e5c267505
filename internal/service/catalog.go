package service

import (
	"time"

	"github.com/mmeshcher/nexoria-ledger/internal/model"
)

// defaultCatalog возвращает каталог турниров для хранилища без сохранённого каталога.
func defaultCatalog() []model.Tournament {
	return []model.Tournament{
		{
			ID:              "t1",
			Title:           "NEXORIA PRO INVITATIONAL",
			Game:            "BGMI",
			Type:            model.TournamentSquad,
			PrizePool:       model.Credits(50000),
			EntryFee:        model.Credits(100),
			StartTime:       time.Date(2024, 5, 20, 18, 0, 0, 0, time.UTC),
			Status:          model.TournamentUpcoming,
			Participants:    45,
			MaxParticipants: 100,
			Description:     "The ultimate battle for the Nexoria throne. Top squads compete for the massive prize pool on Erangel. Only Level 40+ players allowed.",
		},
		{
			ID:              "t2",
			Title:           "NEXORIA NIGHT STRIKE",
			Game:            "BGMI",
			Type:            model.TournamentSolo,
			PrizePool:       model.Credits(5000),
			EntryFee:        model.Credits(20),
			StartTime:       time.Date(2024, 5, 18, 20, 0, 0, 0, time.UTC),
			Status:          model.TournamentLive,
			Participants:    88,
			MaxParticipants: 100,
			Description:     "Test your individual skills in this late night Nexoria solo grind. Sanhok map rules apply - fast pace, high intensity.",
		},
		{
			ID:              "t3",
			Title:           "NEXORIA CYBER DUO",
			Game:            "BGMI",
			Type:            model.TournamentDuo,
			PrizePool:       model.Credits(12000),
			EntryFee:        model.Credits(50),
			StartTime:       time.Date(2024, 5, 22, 15, 0, 0, 0, time.UTC),
			Status:          model.TournamentUpcoming,
			Participants:    12,
			MaxParticipants: 50,
			Description:     "Grab your best partner and dominate the Erangel maps. Standard Duo rules with Nexoria competitive zone settings.",
		},
	}
}
