package websocket

import "fmt"

// Имена групп рассылки

func RoomGroup(roomID uint) string {
	return fmt.Sprintf("chat_%d", roomID)
}

func TicketGroup(ticketID uint) string {
	return fmt.Sprintf("match_ticket_%d", ticketID)
}
