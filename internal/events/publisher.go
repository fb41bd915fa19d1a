package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
)

// StockEvent: Stok değiştiren her commit sonrası yayınlanan olay.
// UI katmanları şube kanalına abone olup kendi ekranlarını tazeler;
// çekirdek hangi ekranın dinlediğini bilmez.
type StockEvent struct {
	BranchID    uint      `json:"branch_id"`
	ProductID   uint      `json:"product_id"`
	ProductName string    `json:"product_name"`
	Kind        string    `json:"kind"` // entry / exit / transfer / adjustment
	Quantity    int       `json:"quantity"`
	NewStock    int       `json:"new_stock"`
	At          time.Time `json:"at"`
}

type Publisher interface {
	PublishStockEvent(ev StockEvent)
}

// NopPublisher: Redis yoksa olaylar sessizce düşer; stok motoru çalışmaya devam eder.
type NopPublisher struct{}

func (NopPublisher) PublishStockEvent(StockEvent) {}

type RedisPublisher struct {
	client *redis.Client
}

func NewRedisPublisher(client *redis.Client) *RedisPublisher {
	return &RedisPublisher{client: client}
}

// PublishStockEvent: Olayı şube kanalına yayınlar. Best-effort; yayın hatası
// satışı/stok işlemini geri almaz, sadece loglanır.
func (r *RedisPublisher) PublishStockEvent(ev StockEvent) {
	payload, err := json.Marshal(ev)
	if err != nil {
		log.Printf("stok olayı serileştirilemedi: %v", err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	channel := fmt.Sprintf("stock:branch:%d", ev.BranchID)
	if err := r.client.Publish(ctx, channel, payload).Err(); err != nil {
		log.Printf("stok olayı yayınlanamadı (%s): %v", channel, err)
	}
}

var active Publisher = NopPublisher{}

// Init: Uygulama açılışında bir kez çağrılır.
func Init(p Publisher) {
	if p != nil {
		active = p
	}
}

// Publish: Aktif publisher üzerinden yayın (handler'ların kullandığı kısayol).
func Publish(ev StockEvent) {
	active.PublishStockEvent(ev)
}
