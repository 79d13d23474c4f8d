// internal/models/lobby.go
package models

import "time"

// MapID identifies a playable map by the id the game client uses.
type MapID int

const (
	MapSummonersRiftOld   MapID = 1
	MapSummonersRiftAutum MapID = 2
	MapTutorial           MapID = 3
	MapTwistedTreelineOld MapID = 4
	MapCrystalScar        MapID = 5
	MapTwistedTreeline    MapID = 10
	MapSummonersRift      MapID = 11
	MapHowlingAbyss       MapID = 12
	MapButchersBridge     MapID = 14
	MapCosmicRuins        MapID = 16
	MapValoranCityPark    MapID = 18
	MapSubstructure43     MapID = 19
	MapCrashSite          MapID = 20
	MapNexusBlitz         MapID = 21
)

// SpectatorPolicy mirrors the lobby setting controlling who may spectate.
type SpectatorPolicy string

const (
	SpectatorNone    SpectatorPolicy = "NotAllowed"
	SpectatorLobby   SpectatorPolicy = "LobbyAllowed"
	SpectatorFriends SpectatorPolicy = "FriendsAllowed"
	SpectatorAll     SpectatorPolicy = "AllAllowed"
)

// PickBanStrategy is the champion select flavour of a custom game.
type PickBanStrategy struct {
	ID           int    `json:"id"`
	BanStrategy  string `json:"banStrategy"`
	PickStrategy string `json:"pickStrategy"`
}

var (
	BlindPick       = PickBanStrategy{ID: 1, BanStrategy: "SkipBanStrategy", PickStrategy: "SimulPickStrategy"}
	DraftPick       = PickBanStrategy{ID: 2, BanStrategy: "StandardBanStrategy", PickStrategy: "DraftModeSinglePickStrategy"}
	AllRandom       = PickBanStrategy{ID: 4, BanStrategy: "SkipBanStrategy", PickStrategy: "AllRandomPickStrategy"}
	TournamentDraft = PickBanStrategy{ID: 6, BanStrategy: "TournamentBanStrategy", PickStrategy: "TournamentPickStrategy"}
)

// GameTemplate describes the custom game a hoster should create.
// TeamSize counts players per team.
type GameTemplate struct {
	Map             MapID           `json:"map" validate:"required"`
	TeamSize        int             `json:"teamSize" validate:"min=1,max=5"`
	SpectatorPolicy SpectatorPolicy `json:"spectatorPolicy" validate:"oneof=NotAllowed LobbyAllowed FriendsAllowed AllAllowed"`
	PickBan         PickBanStrategy `json:"pickBan"`
}

// DefaultTemplate returns a 5v5 blind pick on the given map.
func DefaultTemplate(m MapID) GameTemplate {
	return GameTemplate{
		Map:             m,
		TeamSize:        5,
		SpectatorPolicy: SpectatorLobby,
		PickBan:         BlindPick,
	}
}

// LobbyRecord is a row in the lobby_history table, written once a hosted
// lobby has been torn down.
type LobbyRecord struct {
	LobbyID    int64        `json:"lobby_id"`
	RequestID  int64        `json:"request_id"`
	Name       string       `json:"name"`
	Variant    string       `json:"variant"`
	Template   GameTemplate `json:"template"`
	Members    []int64      `json:"members"`
	OpenedAt   time.Time    `json:"opened_at"`
	ClosedAt   time.Time    `json:"closed_at"`
	HostHandle string       `json:"host_handle"`
}
