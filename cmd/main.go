package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"quickbite/internal/config"
	"quickbite/internal/database"
	"quickbite/internal/logger"
	"quickbite/internal/messaging"
	"quickbite/internal/services/notification"
	"quickbite/internal/services/order"
)

type options struct {
	configPath string
	port       int
	prefetch   int

	customerID   int64
	employeeID   int64
	restaurantID int64
	orderType    string
	items        string

	orderID int64
	status  string
}

func main() {
	var opts options
	mode := flag.String("mode", "", "Service mode (api, migrate, place-order, set-status, notification-subscriber)")
	flag.StringVar(&opts.configPath, "config", "config.yaml", "Path to the configuration file")
	flag.IntVar(&opts.port, "port", 0, "HTTP port, overrides server.port")
	flag.IntVar(&opts.prefetch, "prefetch", 1, "RabbitMQ prefetch count")
	flag.Int64Var(&opts.customerID, "customer", 0, "Customer id (place-order)")
	flag.Int64Var(&opts.employeeID, "employee", 0, "Employee id (place-order)")
	flag.Int64Var(&opts.restaurantID, "restaurant", 0, "Restaurant id (place-order)")
	flag.StringVar(&opts.orderType, "type", "", "Order type: Dine-in or Takeout (place-order)")
	flag.StringVar(&opts.items, "items", "", `Order lines as "menu_item_id:qty[:note],..." (place-order)`)
	flag.Int64Var(&opts.orderID, "order", 0, "Order id (set-status)")
	flag.StringVar(&opts.status, "status", "", "New order status (set-status)")
	flag.Parse()

	if *mode == "" {
		fmt.Fprintf(os.Stderr, "Error: --mode flag is required\n")
		flag.Usage()
		os.Exit(1)
	}

	cfg, err := config.Load(opts.configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}
	if opts.port > 0 {
		cfg.Server.Port = opts.port
	}

	log := logger.New(*mode)
	requestID := logger.GenerateRequestID()

	ctx, cancel := context.WithCancel(logger.WithRequestID(context.Background(), requestID))
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigChan
		log.Info("graceful_shutdown", "Received shutdown signal", requestID, nil)
		cancel()
	}()

	if err := run(ctx, *mode, cfg, log, opts); err != nil {
		log.Error("service_failed", fmt.Sprintf("%s failed", *mode), requestID, err, nil)
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	log.Info("service_stopped", "Service stopped gracefully", requestID, nil)
}

func run(ctx context.Context, mode string, cfg *config.Config, log *logger.Logger, opts options) error {
	switch mode {
	case "api":
		return runAPI(ctx, cfg, log)
	case "migrate":
		return runMigrate(ctx, cfg, log)
	case "place-order":
		lines, err := parseItems(opts.items)
		if err != nil {
			return err
		}
		req := order.PlaceOrderRequest{
			CustomerID:   opts.customerID,
			EmployeeID:   opts.employeeID,
			RestaurantID: opts.restaurantID,
			OrderType:    opts.orderType,
			Lines:        lines,
		}
		return withService(ctx, cfg, log, func(svc *order.Service) error {
			res, err := svc.PlaceOrder(ctx, req)
			if err != nil {
				return err
			}
			return printJSON(res)
		})
	case "set-status":
		if opts.orderID <= 0 || opts.status == "" {
			return errors.New("--order and --status are required for set-status mode")
		}
		return withService(ctx, cfg, log, func(svc *order.Service) error {
			change, err := svc.SetOrderStatus(ctx, opts.orderID, opts.status)
			if err != nil {
				return err
			}
			return printJSON(change)
		})
	case "notification-subscriber":
		return runNotificationSubscriber(ctx, cfg, log, opts.prefetch)
	default:
		return fmt.Errorf("unknown mode: %s", mode)
	}
}

// parseItems reads the --items flag: comma separated "id:qty" pairs with an
// optional third ":note" part. Notes may themselves contain colons.
func parseItems(raw string) ([]order.LineRequest, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, errors.New("--items is required for place-order mode")
	}

	var lines []order.LineRequest
	for _, part := range strings.Split(raw, ",") {
		fields := strings.SplitN(strings.TrimSpace(part), ":", 3)
		if len(fields) < 2 {
			return nil, fmt.Errorf("invalid item %q: expected menu_item_id:qty[:note]", part)
		}

		id, err := strconv.ParseInt(strings.TrimSpace(fields[0]), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid menu item id in %q: %w", part, err)
		}
		qty, err := strconv.Atoi(strings.TrimSpace(fields[1]))
		if err != nil {
			return nil, fmt.Errorf("invalid quantity in %q: %w", part, err)
		}

		line := order.LineRequest{MenuItemID: id, Quantity: qty}
		if len(fields) == 3 && fields[2] != "" {
			note := fields[2]
			line.Note = &note
		}
		lines = append(lines, line)
	}
	return lines, nil
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// newPublisher returns nil when rabbitmq is disabled; the service then skips events
func newPublisher(ctx context.Context, cfg *config.Config, log *logger.Logger) (order.EventPublisher, func(), error) {
	if !cfg.RabbitMQ.Enabled {
		return nil, func() {}, nil
	}

	conn, err := messaging.New(ctx, cfg, log)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize messaging: %w", err)
	}
	log.Info("rabbitmq_connected", "Connected to RabbitMQ", "startup", nil)

	publisher := messaging.NewPublisher(conn, log)
	return publisher, func() { publisher.Close() }, nil
}

func withService(ctx context.Context, cfg *config.Config, log *logger.Logger, fn func(*order.Service) error) error {
	db, err := database.New(ctx, cfg, log)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer db.Close()

	publisher, closePublisher, err := newPublisher(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closePublisher()

	return fn(order.NewService(db, publisher, log))
}

func runMigrate(ctx context.Context, cfg *config.Config, log *logger.Logger) error {
	db, err := database.New(ctx, cfg, log)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer db.Close()

	if err := db.RunMigrations(ctx); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}

func runAPI(ctx context.Context, cfg *config.Config, log *logger.Logger) error {
	requestID := logger.RequestIDFrom(ctx)

	return withService(ctx, cfg, log, func(svc *order.Service) error {
		handler := order.NewHandler(svc, log)

		server := &http.Server{
			Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
			Handler:           handler.Routes(),
			ReadHeaderTimeout: 10 * time.Second,
		}

		errCh := make(chan error, 1)
		go func() {
			log.Info("service_started", fmt.Sprintf("Order API started on port %d", cfg.Server.Port), requestID, map[string]interface{}{
				"port":              cfg.Server.Port,
				"rabbitmq_enabled":  cfg.RabbitMQ.Enabled,
				"database_max_conn": cfg.Database.MaxConns,
			})
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- err
			}
			close(errCh)
		}()

		select {
		case err := <-errCh:
			if err != nil {
				return fmt.Errorf("http server failed: %w", err)
			}
			return nil
		case <-ctx.Done():
		}

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()

		return server.Shutdown(shutdownCtx)
	})
}

func runNotificationSubscriber(ctx context.Context, cfg *config.Config, log *logger.Logger, prefetch int) error {
	conn, err := messaging.New(ctx, cfg, log)
	if err != nil {
		return fmt.Errorf("failed to initialize messaging: %w", err)
	}

	consumer := messaging.NewConsumer(conn, log, messaging.NotificationsQueue, "notification-subscriber", prefetch)
	return notification.NewSubscriber(consumer, log).Start(ctx)
}
