// Command widget-sim runs the host embed and the iframe session in one process against a
// widget backend and prints the handshake as it happens.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/AtRiskMedia/supportwidget-go/internal/application/embed"
	"github.com/AtRiskMedia/supportwidget-go/internal/application/frame"
	"github.com/AtRiskMedia/supportwidget-go/internal/domain/entities/customer"
	"github.com/AtRiskMedia/supportwidget-go/internal/domain/events"
	"github.com/AtRiskMedia/supportwidget-go/internal/infrastructure/backend"
	"github.com/AtRiskMedia/supportwidget-go/internal/infrastructure/messaging"
	"github.com/AtRiskMedia/supportwidget-go/internal/infrastructure/observability/logging"
	"github.com/AtRiskMedia/supportwidget-go/internal/infrastructure/observability/performance"
	"github.com/AtRiskMedia/supportwidget-go/internal/infrastructure/persistence/database"
	"github.com/AtRiskMedia/supportwidget-go/internal/infrastructure/security"
	"github.com/AtRiskMedia/supportwidget-go/internal/infrastructure/storage"
	"github.com/AtRiskMedia/supportwidget-go/pkg/config"
)

type options struct {
	apiURL      string
	widgetID    string
	pageURL     string
	frameOrigin string
	width       int
	useRelay    bool
	sessionDB   string
	externalID  string
	email       string
	phone       string
	hash        string
	message     string
	timeout     time.Duration
	verbose     bool
}

func main() {
	var o options
	flag.StringVar(&o.apiURL, "api", config.APIURL, "widget backend base url")
	flag.StringVar(&o.widgetID, "widget", config.DefaultWidgetID, "widget id")
	flag.StringVar(&o.pageURL, "page", "http://localhost:3000/", "url of the simulated host page")
	flag.StringVar(&o.frameOrigin, "frame", config.WidgetBaseURL, "origin of the widget app")
	flag.IntVar(&o.width, "width", 1280, "viewport width")
	flag.BoolVar(&o.useRelay, "relay", false, "carry channel messages through the backend websocket relay")
	flag.StringVar(&o.sessionDB, "sessions", "./data/widget-sim.db", "sqlite file holding the anonymous session")
	flag.StringVar(&o.externalID, "external-id", "", "customer external id")
	flag.StringVar(&o.email, "email", "", "customer email")
	flag.StringVar(&o.phone, "phone", "", "customer phone")
	flag.StringVar(&o.hash, "hash", "", "customer hash over externalId|email|phone")
	flag.StringVar(&o.message, "message", "", "open a chat thread with this message once live")
	flag.DurationVar(&o.timeout, "timeout", 15*time.Second, "handshake deadline")
	flag.BoolVar(&o.verbose, "v", false, "debug logging")
	flag.Parse()

	if err := run(o); err != nil {
		fmt.Fprintln(os.Stderr, "widget-sim:", err)
		os.Exit(1)
	}
}

func run(o options) error {
	logCfg := logging.DefaultLoggerConfig()
	if o.verbose {
		logCfg.DefaultLevel = logging.ParseLevel("debug")
		logCfg.DevMode = true
	}
	logger, err := logging.NewChanneledLogger(logCfg)
	if err != nil {
		return err
	}
	defer logger.Close()
	tracker := performance.NewTracker(100)

	db, err := database.NewConnectionWithLogger(database.DriverSQLite, o.sessionDB, database.Options{MaxOpenConns: 1}, logger)
	if err != nil {
		return fmt.Errorf("open session store: %w", err)
	}
	defer db.Close()
	if err := database.NewTableCreator().CreateSchema(db.DB); err != nil {
		return err
	}

	pageOrigin, err := messaging.OriginOf(o.pageURL)
	if err != nil {
		return err
	}
	frameOrigin, err := messaging.OriginOf(o.frameOrigin)
	if err != nil {
		return err
	}

	client := backend.NewClient(o.apiURL, nil, logger)
	frameWin := messaging.NewWindow(frameOrigin)
	defer frameWin.Close()

	var (
		fc  *frame.Controller
		doc *embed.HeadlessDocument
	)
	connect := func(src string) (messaging.Port, error) {
		fmt.Printf("host   mounted iframe %s\n", src)
		hostPort, parent, err := channel(o, pageOrigin, frameOrigin, doc.Window(), frameWin)
		if err != nil {
			return nil, err
		}
		fc, err = frame.New(frame.Options{
			Window:      frameWin,
			Parent:      parent,
			HostOrigin:  pageOrigin,
			Backend:     client,
			InitTimeout: config.InitTimeout,
			Logger:      logger,
			PerfTracker: tracker,
		})
		if err != nil {
			return nil, err
		}
		last := frame.StateIdle
		fc.Subscribe(func(s frame.Snapshot) {
			if s.State != last {
				fmt.Printf("frame  %s -> %s\n", last, s.State)
				last = s.State
			}
		})
		if err := fc.Mount(); err != nil {
			return nil, err
		}
		return hostPort, nil
	}

	doc, err = embed.NewHeadlessDocument(o.pageURL, o.width, connect)
	if err != nil {
		return err
	}
	defer doc.Close()

	ready := make(chan struct{}, 1)
	failed := make(chan error, 1)

	cfg := embed.InitConfig{
		WidgetID: o.widgetID,
		Customer: customerFrom(o),
		BaseURL:  o.frameOrigin,
		APIURL:   o.apiURL,
	}
	c, err := embed.New(cfg, embed.Options{
		Document:    doc,
		Store:       storage.Guarded(storage.NewSQLStore(db)),
		Logger:      logger,
		PerfTracker: tracker,
	})
	if err != nil {
		return err
	}
	defer c.Close()

	c.On(events.Ready, func(any) {
		select {
		case ready <- struct{}{}:
		default:
		}
	})
	c.On(events.Error, func(p any) {
		err, _ := p.(error)
		if err == nil {
			err = errors.New("widget reported an error")
		}
		select {
		case failed <- err:
		default:
		}
	})

	c.Start(context.Background())
	doc.Expose(embed.GlobalName, c)
	doc.Dispatch(embed.LoadedEvent)
	fmt.Printf("host   %s on %s (width %d, narrow %v)\n", embed.LoadedEvent, o.pageURL, o.width, embed.IsNarrow(o.width))

	select {
	case <-ready:
		fmt.Printf("host   ready, state %s\n", c.State())
	case err := <-failed:
		return fmt.Errorf("handshake failed in state %s: %w", c.State(), err)
	case <-time.After(o.timeout):
		return fmt.Errorf("handshake timed out in state %s", c.State())
	}

	if sess := c.Session(); sess.SessionID != "" {
		fmt.Printf("host   session %s\n", logging.SanitizeSessionID(sess.SessionID))
	}
	if fc == nil {
		return errors.New("frame was never mounted")
	}
	if auth, ok := fc.Customer(); ok {
		fmt.Printf("frame  customer %s (%s), create=%v\n", auth.CustomerID, fc.DisplayName(), auth.Create)
	}

	if o.message != "" {
		ctx, cancel := context.WithTimeout(context.Background(), o.timeout)
		defer cancel()
		created, err := fc.CreateThread(ctx, o.message)
		if err != nil {
			return fmt.Errorf("create thread: %w", err)
		}
		fmt.Printf("frame  opened thread %s: %q\n", created.ThreadID, created.Title)
	}

	for op, s := range tracker.AllStats() {
		log.Printf("perf %s count=%d avg=%s", op, s.Count, s.Average())
	}
	return nil
}

// channel returns the host's port into the iframe and the iframe's port to its parent.
// Without the relay both are in-process links.
func channel(o options, pageOrigin, frameOrigin string, hostWin, frameWin *messaging.Window) (messaging.Port, messaging.Port, error) {
	if !o.useRelay {
		return messaging.NewLink(frameWin, pageOrigin), messaging.NewLink(hostWin, frameOrigin), nil
	}

	base, err := relayURL(o.apiURL, o.widgetID, security.GenerateULID())
	if err != nil {
		return nil, nil, err
	}
	ctx, cancel := context.WithTimeout(context.Background(), o.timeout)
	defer cancel()

	hostPort, err := messaging.DialWSPort(ctx, base+"?role=host", pageOrigin, hostWin)
	if err != nil {
		return nil, nil, err
	}
	parent, err := messaging.DialWSPort(ctx, base+"?role=frame", frameOrigin, frameWin)
	if err != nil {
		hostPort.Close()
		return nil, nil, err
	}
	fmt.Printf("relay  connected %s\n", base)
	return hostPort, parent, nil
}

func relayURL(apiURL, widgetID, key string) (string, error) {
	u, err := url.Parse(strings.TrimRight(apiURL, "/"))
	if err != nil {
		return "", fmt.Errorf("invalid api url: %w", err)
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.Path += "/widgets/" + url.PathEscape(widgetID) + "/channel/" + key
	return u.String(), nil
}

func customerFrom(o options) *customer.Customer {
	if o.externalID == "" && o.email == "" && o.phone == "" && o.hash == "" {
		return nil
	}
	return &customer.Customer{
		ExternalID:   o.externalID,
		Email:        o.email,
		Phone:        o.phone,
		CustomerHash: o.hash,
	}
}
