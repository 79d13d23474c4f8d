package models

// RoomEntry is the outcome of a create-or-join attempt.
type RoomEntry int

const (
	// RoomCreated means the room did not exist and was created with the requester as owner.
	RoomCreated RoomEntry = iota
	// RoomJoined means the requester entered an existing room.
	RoomJoined
	// RoomWrongPassword means the supplied password did not match.
	RoomWrongPassword
	// RoomBanned means the requester is on the room's ban list.
	RoomBanned
)

func (e RoomEntry) String() string {
	switch e {
	case RoomCreated:
		return "created"
	case RoomJoined:
		return "joined"
	case RoomWrongPassword:
		return "wrong_password"
	case RoomBanned:
		return "banned"
	}
	return "unknown"
}

// RoomInfo is a read-only view of a registered room.
type RoomInfo struct {
	Name      string `json:"name"`
	Pinned    bool   `json:"pinned"`
	Protected bool   `json:"protected"`
	Members   int    `json:"members"`
}
