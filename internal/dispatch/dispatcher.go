// internal/dispatch/dispatcher.go
package dispatch

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/KilianB/LeagueMultiChat/internal/chatroom"
	"github.com/KilianB/LeagueMultiChat/internal/models"
	"github.com/KilianB/LeagueMultiChat/internal/moderation"
	"github.com/KilianB/LeagueMultiChat/internal/participant"
	"github.com/samber/lo"
	"github.com/sirupsen/logrus"
)

// Global commands in dispatch priority order. No token is a prefix of another.
const (
	CmdRooms  = "!rooms"
	CmdHelp   = "!help"
	CmdJoin   = "!join"
	CmdMute   = "!mute"
	CmdUnmute = "!unmute"
	CmdMode   = "!mode"
)

// DefaultRoomNameLimit is the longest room name !join accepts.
const DefaultRoomNameLimit = 25

const bannerWidth = 80

var helpText = buildHelp()

func buildHelp() string {
	modes := lo.Map(models.VisibilityModes, func(m models.VisibilityMode, _ int) string {
		return strings.ToLower(m.String())
	})
	return "Available commands:\n" +
		CmdHelp + ": Display this help. Typing the command inside a room also lists the room commands\n ---- \n" +
		CmdRooms + ": Display all public chatrooms\n ---- \n" +
		CmdJoin + " [roomname] (password): Join a room or create it if it does not exist. The creator owns the room. Without a password the room is public. Leaves the room you are in.\n ---- \n" +
		CmdMute + ": Display all muted players\n ---- \n" +
		CmdMute + " [playername]: No longer receive messages sent by this player\n ---- \n" +
		CmdUnmute + " [playername]: Remove the player from the mute list\n ---- \n" +
		CmdMode + ": Display the current chat mode\n ---- \n" +
		CmdMode + " [" + strings.Join(modes, "/") + "]: Set when the bot may message you\n"
}

// Dispatcher turns a chat line into a global command or hands it to the
// sender's active room. It holds no state of its own.
type Dispatcher struct {
	log       *logrus.Logger
	registry  *chatroom.Registry
	directory *participant.Directory
	checker   moderation.Checker
	nameLimit int
}

// New returns a dispatcher. A nil checker blocks nothing; a non positive
// nameLimit falls back to DefaultRoomNameLimit.
func New(logger *logrus.Logger, registry *chatroom.Registry, directory *participant.Directory, checker moderation.Checker, nameLimit int) *Dispatcher {
	if checker == nil {
		checker = &moderation.Blocklist{}
	}
	if nameLimit <= 0 {
		nameLimit = DefaultRoomNameLimit
	}
	return &Dispatcher{
		log:       logger,
		registry:  registry,
		directory: directory,
		checker:   checker,
		nameLimit: nameLimit,
	}
}

// HelpText returns the global command help.
func HelpText() string { return helpText }

// Dispatch handles one line sent by p. User mistakes are answered with a
// reply; the returned error is a transport failure.
func (d *Dispatcher) Dispatch(ctx context.Context, p *participant.Participant, raw string) error {
	text := strings.TrimSpace(raw)
	if d.checker.IsBlocked(text) {
		d.log.WithField("participant", p.ID()).Info("Blocked message dropped")
		return p.DeliverAdmin(ctx, "Failed to send message. Parts of the message are on the blocklist.")
	}

	switch {
	case strings.HasPrefix(text, CmdRooms):
		return p.DeliverAdmin(ctx, d.registry.ListRooms())
	case strings.HasPrefix(text, CmdHelp):
		return d.handleHelp(ctx, p)
	case strings.HasPrefix(text, CmdJoin):
		return d.handleJoin(ctx, p, text)
	case strings.HasPrefix(text, CmdMute):
		return d.handleMute(ctx, p, text)
	case strings.HasPrefix(text, CmdUnmute):
		return d.handleUnmute(ctx, p, text)
	case strings.HasPrefix(text, CmdMode):
		return d.handleMode(ctx, p, text)
	}

	if room := p.ActiveRoom(); room != nil {
		return room.HandleMessage(ctx, p, text)
	}
	return p.DeliverAdmin(ctx, "Can not perform request. You need to be part of a chatroom to issue specific commands. Did you mistype your request?")
}

func (d *Dispatcher) handleHelp(ctx context.Context, p *participant.Participant) error {
	if room := p.ActiveRoom(); room != nil {
		return p.DeliverAdmin(ctx, helpText+room.Help())
	}
	return p.DeliverAdmin(ctx, helpText)
}

// handleJoin expects "!join name [password]". The last space separates the
// password, so room names may contain spaces only when a password is given.
func (d *Dispatcher) handleJoin(ctx context.Context, p *participant.Participant, text string) error {
	name := strings.TrimSpace(text[len(CmdJoin):])
	password := ""
	if i := strings.LastIndex(name, " "); i > 0 {
		password = name[i+1:]
		name = strings.TrimSpace(name[:i])
	}

	if name == "" {
		return p.DeliverAdmin(ctx, "Failed. Room name may not be empty")
	}
	if utf8.RuneCountInString(name) > d.nameLimit {
		return p.DeliverAdmin(ctx, fmt.Sprintf("Failed. Room names may have a maximum length of %d characters", d.nameLimit))
	}

	entry, _, err := d.registry.CreateOrJoin(name, password, p)
	if err != nil {
		return err
	}
	d.log.WithFields(logrus.Fields{"participant": p.ID(), "room": name, "entry": entry}).Debug("Join handled")

	switch entry {
	case models.RoomCreated:
		return p.DeliverAdmin(ctx, "Room: "+name+" did not exist. Created and joined.\n"+banner(name))
	case models.RoomJoined:
		return p.DeliverAdmin(ctx, banner(name))
	case models.RoomWrongPassword:
		return p.DeliverAdmin(ctx, "Failed to join: "+name+" wrong password.")
	default:
		return p.DeliverAdmin(ctx, "Failed to join: "+name+". You are banned")
	}
}

// argument returns the text after cmd if cmd was followed by whitespace.
func argument(text, cmd string) (string, bool) {
	rest := text[len(cmd):]
	arg := strings.TrimSpace(rest)
	if arg == "" || !strings.ContainsAny(rest, " \t") {
		return "", false
	}
	return arg, true
}

func (d *Dispatcher) handleMute(ctx context.Context, p *participant.Participant, text string) error {
	name, ok := argument(text, CmdMute)
	if !ok {
		var sb strings.Builder
		sb.WriteString("Muted Players:\n")
		for _, id := range p.MutedIDs() {
			sb.WriteString("\t" + d.directory.DisplayName(id) + "\n")
		}
		return p.DeliverAdmin(ctx, sb.String())
	}

	target, found := d.directory.ByName(name)
	if !found {
		return p.DeliverAdmin(ctx, "Failed to mute: unknown player "+name)
	}
	if target.ID() == p.ID() {
		return p.DeliverAdmin(ctx, "Yikes: You can't mute yourself silly!")
	}
	p.Mute(target.ID())
	return p.DeliverAdmin(ctx, name+" successfully muted")
}

func (d *Dispatcher) handleUnmute(ctx context.Context, p *participant.Participant, text string) error {
	name, ok := argument(text, CmdUnmute)
	if !ok {
		return p.DeliverAdmin(ctx, "No player name supplied. Could not unmute anyone")
	}
	target, found := d.directory.ByName(name)
	if !found {
		return p.DeliverAdmin(ctx, "Failed to unmute: unknown player "+name)
	}
	if !p.Unmute(target.ID()) {
		return p.DeliverAdmin(ctx, "Failed to unmute: "+name+" player wasn't previously muted.")
	}
	return p.DeliverAdmin(ctx, name+" successfully unmuted")
}

func (d *Dispatcher) handleMode(ctx context.Context, p *participant.Participant, text string) error {
	arg := strings.TrimSpace(text[len(CmdMode):])
	if arg == "" {
		return p.DeliverAdmin(ctx, "Current Mode: "+p.Mode().String())
	}
	mode, ok := models.ParseVisibilityMode(arg)
	if !ok {
		return p.DeliverAdmin(ctx, fmt.Sprintf("Failed to set new chat state. Allowed values: %v", models.VisibilityModes))
	}
	p.SetMode(mode)
	return p.DeliverAdmin(ctx, "Chat mode set to "+mode.String())
}

// banner centers text in a line of dashes.
func banner(text string) string {
	pad := bannerWidth - utf8.RuneCountInString(text) - 2
	if pad <= 0 {
		return text
	}
	left := pad / 2
	return strings.Repeat("-", left) + " " + text + " " + strings.Repeat("-", pad-left)
}
