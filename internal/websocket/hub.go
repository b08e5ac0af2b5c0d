// Package websocket owns live connections and group-addressed fan-out.
// A Hub delivers an event to every local connection subscribed to a group.
// With Redis attached, Publish goes through a Redis channel so that Hubs in
// other processes deliver to their own subscribers too.
package websocket

import (
	"context"
	"encoding/json"
	"strings"
	"sync"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

const channelPrefix = "ws:group:"

type Hub struct {
	rdb *redis.Client

	clients map[uuid.UUID]*Client

	// Подписчики по имени группы
	groups map[string]map[uuid.UUID]*Client

	register   chan *Client
	unregister chan *Client

	mu sync.RWMutex

	ctx    context.Context
	cancel context.CancelFunc
}

// NewHub создает Hub. rdb может быть nil, тогда рассылка только локальная.
func NewHub(rdb *redis.Client) *Hub {
	ctx, cancel := context.WithCancel(context.Background())
	return &Hub{
		rdb:        rdb,
		clients:    make(map[uuid.UUID]*Client),
		groups:     make(map[string]map[uuid.UUID]*Client),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		ctx:        ctx,
		cancel:     cancel,
	}
}

// Run обрабатывает регистрацию клиентов до Stop.
func (h *Hub) Run() {
	for {
		select {
		case <-h.ctx.Done():
			return
		case client := <-h.register:
			h.registerClient(client)
		case client := <-h.unregister:
			h.unregisterClient(client)
		}
	}
}

// Listen subscribes to the Redis bus and delivers incoming events until ctx
// or the hub is done. The subscription is confirmed before Listen returns.
func (h *Hub) Listen(ctx context.Context) error {
	if h.rdb == nil {
		return nil
	}

	pubsub := h.rdb.PSubscribe(ctx, channelPrefix+"*")
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return err
	}

	go func() {
		defer pubsub.Close()
		ch := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case <-h.ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				h.deliver(strings.TrimPrefix(msg.Channel, channelPrefix), []byte(msg.Payload))
			}
		}
	}()
	return nil
}

// Stop закрывает все соединения
func (h *Hub) Stop() {
	h.cancel()

	h.mu.Lock()
	defer h.mu.Unlock()

	for id, client := range h.clients {
		client.closeSend()
		if client.Conn != nil {
			_ = client.Conn.Close()
		}
		delete(h.clients, id)
	}
	h.groups = make(map[string]map[uuid.UUID]*Client)
}

func (h *Hub) Register(client *Client) error {
	select {
	case h.register <- client:
		return nil
	case <-h.ctx.Done():
		return ErrHubStopped
	}
}

func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.ctx.Done():
	}
}

func (h *Hub) registerClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.clients[client.ID] = client
	log.Debug().Str("conn_id", client.ID.String()).Uint("user_id", client.UserID).Msg("client registered")
}

func (h *Hub) unregisterClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[client.ID]; !ok {
		return
	}

	for _, group := range client.Groups() {
		h.removeFromGroupUnsafe(client, group)
	}
	delete(h.clients, client.ID)
	client.closeSend()

	log.Debug().Str("conn_id", client.ID.String()).Uint("user_id", client.UserID).Msg("client unregistered")
}

// Subscribe добавляет клиента в группу
func (h *Hub) Subscribe(client *Client, group string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.groups[group]; !ok {
		h.groups[group] = make(map[uuid.UUID]*Client)
	}
	h.groups[group][client.ID] = client
	client.addGroup(group)
}

// Unsubscribe удаляет клиента из группы
func (h *Hub) Unsubscribe(client *Client, group string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.removeFromGroupUnsafe(client, group)
}

func (h *Hub) removeFromGroupUnsafe(client *Client, group string) {
	if subs, ok := h.groups[group]; ok {
		delete(subs, client.ID)
		if len(subs) == 0 {
			delete(h.groups, group)
		}
	}
	client.removeGroup(group)
}

// Publish sends v as JSON to every subscriber of group. Nobody subscribed
// means the event is dropped.
func (h *Hub) Publish(ctx context.Context, group string, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}

	if h.rdb == nil {
		h.deliver(group, data)
		return nil
	}
	return h.rdb.Publish(ctx, channelPrefix+group, data).Err()
}

func (h *Hub) deliver(group string, data []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, client := range h.groups[group] {
		if err := client.send(data); err != nil {
			log.Warn().Err(err).Str("conn_id", client.ID.String()).Str("group", group).Msg("event dropped")
		}
	}
}

// GroupSize возвращает число локальных подписчиков группы
func (h *Hub) GroupSize(group string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.groups[group])
}
