package server

import (
	"bufio"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"fluxrelay/pipeline"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
	"github.com/valyala/fasthttp"
)

// StatsProvider is implemented by the running pipeline
type StatsProvider interface {
	Stats() pipeline.Stats
}

type ServerConfig struct {
	// Source of the running totals shown on /status
	Stats StatsProvider

	// Broadcast channel to pass cycle reports to SSE clients
	Broadcaster *Broadcaster
}

// Make it sync
type Broadcaster struct {
	sync.RWMutex
	clients map[string]chan pipeline.Report
}

func NewBroadcaster() *Broadcaster {
	return &Broadcaster{
		clients: make(map[string]chan pipeline.Report),
	}
}

// Broadcast sends the report to every client without blocking
func (b *Broadcaster) Broadcast(report pipeline.Report) {
	b.RLock()
	defer b.RUnlock()

	for id, client := range b.clients {
		select {
		case client <- report:
		default:
			log.Warnf("Client channel full, skipping report for client: %v", id)
		}
	}
}

func (b *Broadcaster) AddClient(key string, client chan pipeline.Report) {
	b.Lock()
	defer b.Unlock()
	b.clients[key] = client
	log.WithFields(log.Fields{
		"key":   key,
		"count": len(b.clients),
	}).Info("Adding client to broadcaster")
}

func (b *Broadcaster) RemoveClient(key string) {
	b.Lock()
	defer b.Unlock()

	if client, ok := b.clients[key]; ok {
		close(client)
		delete(b.clients, key)
	}

	log.WithFields(log.Fields{
		"key":   key,
		"count": len(b.clients),
	}).Info("Removed client from broadcaster")
}

// Count returns the number of connected clients
func (b *Broadcaster) Count() int {
	b.RLock()
	defer b.RUnlock()
	return len(b.clients)
}

func (b *Broadcaster) Shutdown() {
	log.Info("Shutting down broadcaster")
	b.Lock()
	defer b.Unlock()
	for key, client := range b.clients {
		close(client)
		delete(b.clients, key)
	}
}

// Returns a fiber.App serving health, status and metrics of the relay
func Server(config *ServerConfig) *fiber.App {
	bc := config.Broadcaster

	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
	})

	// Middleware to track the latency of each request
	app.Use(func(c *fiber.Ctx) error {
		start := time.Now()

		err := c.Next()

		log.WithFields(log.Fields{
			"method":  c.Method(),
			"route":   c.Route().Path,
			"latency": time.Since(start),
		}).Debug("Request")
		return err
	})

	app.Use(requestid.New(requestid.ConfigDefault))
	app.Use(compress.New())

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.SendString("OK")
	})

	app.Get("/status", func(c *fiber.Ctx) error {
		return c.JSON(config.Stats.Stats())
	})

	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	if bc != nil {
		app.Get("/events", func(c *fiber.Ctx) error {
			return streamReports(c, bc)
		})
	}

	return app
}

// streamReports sends every cycle report as a server sent event
func streamReports(c *fiber.Ctx, bc *Broadcaster) error {
	c.Set("Content-Type", "text/event-stream")
	c.Set("Cache-Control", "no-cache")
	c.Set("Connection", "keep-alive")
	c.Set("Transfer-Encoding", "chunked")

	key := uuid.New().String()
	reports := make(chan pipeline.Report, 10)
	bc.AddClient(key, reports)

	c.Context().SetBodyStreamWriter(fasthttp.StreamWriter(func(w *bufio.Writer) {
		alive := time.NewTicker(15 * time.Second)
		defer alive.Stop()
		defer bc.RemoveClient(key)

		fmt.Fprintf(w, "event: init\ndata: %s\n\n", key)
		if err := w.Flush(); err != nil {
			return
		}

		for {
			select {
			case <-alive.C:
				fmt.Fprintf(w, "event: ping\ndata: \n\n")
				if err := w.Flush(); err != nil {
					return
				}

			case report, ok := <-reports:
				if !ok {
					return
				}
				data, err := json.Marshal(report)
				if err != nil {
					log.Errorf("Error marshalling report for client %s: %v", key, err)
					continue
				}
				fmt.Fprintf(w, "event: cycle\ndata: %s\n\n", data)
				if err := w.Flush(); err != nil {
					return
				}
			}
		}
	}))

	return nil
}
