package main

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"fairq/queue-service/internal/config"
	"fairq/queue-service/internal/httpapi"
	"fairq/queue-service/internal/hub"
	"fairq/queue-service/internal/pit"
	"fairq/queue-service/internal/store"
	"fairq/queue-service/internal/store/postgres"
	"fairq/queue-service/internal/telemetry"
	"fairq/queue-service/internal/worker"

	"github.com/google/uuid"
	"github.com/igm/sockjs-go/sockjs"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

type eventEnvelope struct {
	Type      string          `json:"type"`
	Payload   json.RawMessage `json:"payload"`
	CreatedAt time.Time       `json:"created_at"`
}

func main() {
	cfg := config.Load()
	if cfg.PITSecret == "" {
		log.Fatal("PIT_SECRET is required")
	}

	shutdownTelemetry := telemetry.Setup("queue-service")
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = shutdownTelemetry(ctx)
	}()

	pool, err := pgxpool.New(context.Background(), cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db connect: %v", err)
	}
	defer pool.Close()

	ticketStore := postgres.New(pool)
	issuer := pit.NewIssuer(cfg.PITSecret, cfg.PITTTL)
	handler := httpapi.NewHandler(ticketStore, issuer)
	limiter := httpapi.NewRateLimiter(httpapi.RateLimitConfig{
		IPPerMinute:    cfg.RateLimitPerMinute,
		IPBurst:        cfg.RateLimitBurst,
		ActorPerMinute: cfg.RateLimitPerMinute,
		ActorBurst:     cfg.RateLimitBurst,
	})

	h := hub.New()

	mux := http.NewServeMux()
	mux.Handle("/metrics", httpapi.MetricsHandler())
	apiRoutes := handler.Routes()
	mux.Handle("/api/", apiRoutes)
	mux.Handle("/healthz", apiRoutes)
	mux.Handle("/realtime/", newRealtimeHandler(h))

	otelHandler := otelhttp.NewHandler(httpapi.LoggingMiddleware(limiter.Middleware(mux)), "queue-service")
	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      otelHandler,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	rootCtx, cancelRoot := context.WithCancel(context.Background())
	defer cancelRoot()

	go func() {
		log.Printf("queue-service listening on %s", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	go runRealtimePoller(rootCtx, ticketStore, h, cfg.RealtimePollInterval, cfg.NotifyBatchSize)

	notifyWorker := worker.New(ticketStore, worker.Config{
		BatchSize:     cfg.NotifyBatchSize,
		EmailProvider: os.Getenv("NOTIFY_EMAIL_PROVIDER"),
		PushProvider:  os.Getenv("NOTIFY_PUSH_PROVIDER"),
	})
	go worker.Start(rootCtx, cfg.NotifyInterval, notifyWorker)

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	cancelRoot()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Printf("shutdown error: %v", err)
	}
}

// newRealtimeHandler accepts sockjs sessions and routes subscribe
// messages into the hub. Customers are pinned to their own events; the
// forwarded role decides whether scope-wide subscriptions are allowed.
func newRealtimeHandler(h *hub.Hub) http.Handler {
	return sockjs.NewHandler("/realtime", sockjs.DefaultOptions, func(session sockjs.Session) {
		req := session.Request()
		actorID := ""
		actorRole := store.RoleCustomer
		actorOrg := ""
		actorLocation := ""
		if req != nil {
			actorID = req.Header.Get("X-Actor-ID")
			if role := req.Header.Get("X-Actor-Role"); role != "" {
				actorRole = role
			}
			actorOrg = req.Header.Get("X-Actor-Org")
			actorLocation = req.Header.Get("X-Actor-Location")
			if actorID == "" {
				actorID = req.URL.Query().Get("actor_id")
			}
		}
		if actorID == "" {
			_ = session.Close(4001, "missing actor identity")
			return
		}

		initial := hub.Subscription{CustomerID: lockToCustomer(actorID, actorRole)}
		if initial.CustomerID == "" {
			initial.Organization = actorOrg
			initial.LocationName = actorLocation
		}
		client := &hub.Client{ID: uuid.NewString(), Send: make(chan []byte, 16), Subscription: initial}
		h.Register(client)
		defer h.Unregister(client)

		go func() {
			for msg := range client.Send {
				_ = session.Send(string(msg))
			}
		}()

		for {
			msg, err := session.Recv()
			if err != nil {
				return
			}
			parsed, ok := hub.ParseSubscribe([]byte(msg))
			if !ok {
				continue
			}
			if parsed.Action == "unsubscribe" {
				h.UpdateSubscription(client, initial)
				continue
			}
			sub := hub.Subscription{
				Organization: parsed.Organization,
				LocationName: parsed.LocationName,
				ServiceType:  parsed.ServiceType,
				CustomerID:   parsed.CustomerID,
			}
			if locked := lockToCustomer(actorID, actorRole); locked != "" {
				sub.CustomerID = locked
			}
			// Staff stay fenced to the scope forwarded by the gateway.
			if actorRole == store.RoleStaff {
				if actorOrg != "" {
					sub.Organization = actorOrg
				}
				if actorLocation != "" {
					sub.LocationName = actorLocation
				}
			}
			h.UpdateSubscription(client, sub)
		}
	})
}

func lockToCustomer(actorID, actorRole string) string {
	if actorRole == store.RoleStaff || actorRole == store.RoleAdmin {
		return ""
	}
	return actorID
}

func runRealtimePoller(ctx context.Context, ticketStore *postgres.Store, h *hub.Hub, interval time.Duration, batchSize int) {
	if interval <= 0 {
		interval = time.Second
	}
	if batchSize <= 0 {
		batchSize = 100
	}

	last, err := ticketStore.ConsumerOffset(ctx, "realtime")
	if err != nil {
		log.Printf("realtime offset error: %v", err)
	}

	var running int32
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		if !atomic.CompareAndSwapInt32(&running, 0, 1) {
			continue
		}

		pollCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		events, err := ticketStore.ListOutboxEvents(pollCtx, last, batchSize)
		cancel()
		if err != nil {
			log.Printf("realtime poll error: %v", err)
			atomic.StoreInt32(&running, 0)
			continue
		}

		lastEventID := ""
		for _, event := range events {
			last = event.CreatedAt
			lastEventID = event.EventID
			envelope, err := json.Marshal(eventEnvelope{Type: event.Type, Payload: event.Payload, CreatedAt: event.CreatedAt})
			if err != nil {
				continue
			}
			h.Broadcast(envelope, extractMeta(event.Payload))
		}
		if lastEventID != "" {
			checkpointCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			if err := ticketStore.SetConsumerOffset(checkpointCtx, "realtime", last, lastEventID); err != nil {
				log.Printf("realtime offset update error: %v", err)
			}
			cancel()
		}
		atomic.StoreInt32(&running, 0)
	}
}

func extractMeta(payload []byte) hub.Subscription {
	var data struct {
		Organization string `json:"organization"`
		LocationName string `json:"location_name"`
		ServiceType  string `json:"service_type"`
		CustomerID   string `json:"customer_id"`
	}
	if err := json.Unmarshal(payload, &data); err != nil {
		return hub.Subscription{}
	}
	return hub.Subscription{
		Organization: data.Organization,
		LocationName: data.LocationName,
		ServiceType:  data.ServiceType,
		CustomerID:   data.CustomerID,
	}
}
