package auth

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"buspass/internal/models"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// TicketTTL bounds how long a WebSocket ticket can wait before it is redeemed.
const TicketTTL = 30 * time.Second

func ticketKey(ticket string) string {
	return fmt.Sprintf("ws_ticket:%s", ticket)
}

// IssueTicket stores a single-use ticket that upgrades to a feed connection for operatorID.
func IssueTicket(ctx context.Context, rdb *redis.Client, operatorID uint) (string, error) {
	if rdb == nil {
		return "", errors.New("redis unavailable")
	}
	ticket := uuid.NewString()
	if err := rdb.Set(ctx, ticketKey(ticket), strconv.FormatUint(uint64(operatorID), 10), TicketTTL).Err(); err != nil {
		return "", err
	}
	return ticket, nil
}

// RedeemTicket consumes ticket and returns the operator it was issued to.
func RedeemTicket(ctx context.Context, rdb *redis.Client, ticket string) (uint, error) {
	if rdb == nil || ticket == "" {
		return 0, models.NewUnauthorizedError("Invalid or expired WebSocket ticket")
	}
	raw, err := rdb.GetDel(ctx, ticketKey(ticket)).Result()
	if err != nil {
		return 0, models.NewUnauthorizedError("Invalid or expired WebSocket ticket")
	}
	operatorID, err := strconv.ParseUint(raw, 10, 32)
	if err != nil {
		return 0, models.NewUnauthorizedError("Invalid or expired WebSocket ticket")
	}
	return uint(operatorID), nil
}
