package leaderboard

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	ws "github.com/gokatarajesh/quizmind/pkg/http/ws"
)

// Fanout delivers a message to every connected client on this replica.
type Fanout interface {
	BroadcastAll(msg ws.Message) error
}

// Broadcaster relays standings published by any replica to the players
// connected here. Updates whose top list matches the last one forwarded for
// the same window are dropped; a result outside the top changes nothing a
// player can see.
type Broadcaster struct {
	redis   *redis.Client
	clients Fanout
	channel string
	logger  zerolog.Logger
	last    map[string]string
}

func NewBroadcaster(redis *redis.Client, clients Fanout, channel string, logger zerolog.Logger) *Broadcaster {
	if channel == "" {
		channel = "lb:updates"
	}
	return &Broadcaster{
		redis:   redis,
		clients: clients,
		channel: channel,
		logger:  logger.With().Str("component", "leaderboard_broadcaster").Logger(),
		last:    make(map[string]string),
	}
}

// Run blocks until ctx is cancelled or the subscription closes.
func (b *Broadcaster) Run(ctx context.Context) error {
	if b.redis == nil || b.clients == nil {
		return nil
	}

	sub := b.redis.Subscribe(ctx, b.channel)
	defer sub.Close()

	updates := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-updates:
			if !ok {
				return nil
			}
			b.forward([]byte(msg.Payload))
		}
	}
}

// forward reports whether the update reached the clients.
func (b *Broadcaster) forward(payload []byte) bool {
	var update ws.LeaderboardUpdatePayload
	if err := json.Unmarshal(payload, &update); err != nil {
		b.logger.Warn().Err(err).Msg("undecodable leaderboard update")
		return false
	}
	if !IsValidWindow(update.Window) {
		b.logger.Warn().Str("window", update.Window).Msg("dropping update for unknown window")
		return false
	}
	if len(update.Top) == 0 {
		return false
	}

	standings, err := json.Marshal(update.Top)
	if err != nil {
		return false
	}
	if b.last[update.Window] == string(standings) {
		b.logger.Debug().Str("window", update.Window).Str("session_id", update.SessionID).Msg("standings unchanged")
		return false
	}

	if err := b.clients.BroadcastAll(ws.Message{
		Type:    ws.TypeLeaderboardUpdate,
		Payload: json.RawMessage(payload),
	}); err != nil {
		b.logger.Warn().Err(err).Str("window", update.Window).Msg("leaderboard broadcast failed")
		return false
	}
	b.last[update.Window] = string(standings)
	return true
}
