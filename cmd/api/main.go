package main

import (
	"expvar"
	"fmt"
	"log"
	"os"
	"runtime"
	"strconv"
	"time"

	"github.com/9ssi7/exponent"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"soko/internal/auth"
	"soko/internal/db"
	"soko/internal/mailer"
	"soko/internal/notifications"
	"soko/internal/push"
	"soko/internal/ratelimiter"
	"soko/internal/store"
	"soko/internal/tracker"
)

var version = "1.0.0"

// LoadRateLimiterConfig retrieves rate limiter settings from environment variables
func LoadRateLimiterConfig() ratelimiter.Config {
	defaultRequests := 200
	defaultEnabled := false

	requestsPerTimeFrame := defaultRequests
	if val, exists := os.LookupEnv("RATELIMITER_REQUESTS_COUNT"); exists {
		if parsedVal, err := strconv.Atoi(val); err == nil {
			requestsPerTimeFrame = parsedVal
		} else {
			fmt.Println("Invalid RATELIMITER_REQUESTS_COUNT, defaulting to", defaultRequests)
		}
	}

	enabled := defaultEnabled
	if val, exists := os.LookupEnv("RATE_LIMITER_ENABLED"); exists {
		if parsedVal, err := strconv.ParseBool(val); err == nil {
			enabled = parsedVal
		} else {
			fmt.Println("Invalid RATE_LIMITER_ENABLED, defaulting to", defaultEnabled)
		}
	}

	return ratelimiter.Config{
		RequestsPerTimeFrame: requestsPerTimeFrame,
		TimeFrame:            5 * time.Second,
		Enabled:              enabled,
	}
}

// NewLogger creates a new zap logger with color.
func NewLogger() (*zap.SugaredLogger, error) {
	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	encoderCfg.EncodeLevel = zapcore.CapitalColorLevelEncoder

	consoleEncoder := zapcore.NewConsoleEncoder(encoderCfg)
	level := zapcore.InfoLevel
	core := zapcore.NewCore(consoleEncoder, zapcore.NewMultiWriteSyncer(zapcore.AddSync(os.Stdout)), level)

	logger := zap.New(core)
	return logger.Sugar(), nil
}

func envDuration(key string, fallback time.Duration) time.Duration {
	val, exists := os.LookupEnv(key)
	if !exists {
		return fallback
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		fmt.Printf("Invalid %s, defaulting to %s\n", key, fallback)
		return fallback
	}
	return d
}

func main() {
	err := godotenv.Load()
	if err != nil {
		log.Fatalf("Error loading .env file: %v", err)
	}

	maxConnsStr := os.Getenv("DB_MAX_CONNS")
	maxConns, err := strconv.Atoi(maxConnsStr)
	if err != nil {
		log.Fatalf("Invalid value for DB_MAX_CONNS: %v", err)
	}

	mailPort, err := strconv.Atoi(os.Getenv("SMTP_PORT"))
	if err != nil {
		log.Fatalf("Invalid value for SMTP_PORT: %v", err)
	}

	cfg := config{
		addr:        os.Getenv("ADDR"),
		env:         os.Getenv("ENV"),
		frontendURL: os.Getenv("FRONTEND_URL"),
		db: dbConfig{
			addr:        os.Getenv("DB_ADDR"),
			maxConns:    int32(maxConns),
			maxIdleTime: os.Getenv("DB_MAX_IDLE_TIME"),
		},
		auth: authConfig{
			basic: basicConfig{
				user: os.Getenv("AUTH_BASIC_USER"),
				pass: os.Getenv("AUTH_BASIC_PASS"),
			},
			token: tokenConfig{
				secret: os.Getenv("AUTH_TOKEN_SECRET"),
				iss:    "Soko",
			},
		},
		tracking: trackingConfig{
			pushURL:      os.Getenv("PAYMENT_PUSH_URL"),
			orderAPIURL:  os.Getenv("ORDER_API_URL"),
			orderAPIKey:  os.Getenv("ORDER_API_KEY"),
			pollInterval: envDuration("PAYMENT_POLL_INTERVAL", tracker.DefaultPollInterval),
			resolveGrace: envDuration("PAYMENT_RESOLVE_GRACE", tracker.DefaultResolveGrace),
		},
		mail: mailConfig{
			host:       os.Getenv("SMTP_HOST"),
			port:       mailPort,
			username:   os.Getenv("SMTP_USERNAME"),
			password:   os.Getenv("SMTP_PASSWORD"),
			fromEmail:  os.Getenv("SMTP_FROM_EMAIL"),
			adminEmail: os.Getenv("ADMIN_ALERT_EMAIL"),
		},
		rateLimiter: LoadRateLimiterConfig(),
	}

	// Logger
	logger, err := NewLogger()
	if err != nil {
		fmt.Println("Error creating logger:", err)
		return
	}
	defer logger.Sync()

	// Database (order read models: pending payments, push tokens)
	pool, err := db.New(cfg.db.addr, cfg.db.maxConns, cfg.db.maxIdleTime)
	if err != nil {
		logger.Fatal(err)
	}
	defer pool.Close()
	logger.Info("database connection pool established")

	storage := store.NewStorage(pool)

	// Mailer for admin alerts
	smtpMailer := mailer.NewSMTPMailer(cfg.mail.host, cfg.mail.port, cfg.mail.username, cfg.mail.password, cfg.mail.fromEmail)

	// Expo push for customer-facing resolution notifications
	expoSender := notifications.NewExpoAdapter(exponent.NewClient())

	// Rate limiter
	rateLimiter := ratelimiter.NewFixedWindowLimiter(
		cfg.rateLimiter.RequestsPerTimeFrame,
		cfg.rateLimiter.TimeFrame,
	)

	// Authenticator (validate-only; the storefront backend issues tokens)
	jwtAuthenticator := auth.NewJWTAuthenticator(cfg.auth.token.secret, cfg.auth.token.iss, cfg.auth.token.iss)

	app := &application{
		config:        cfg,
		logger:        logger,
		store:         storage,
		mailer:        smtpMailer,
		authenticator: jwtAuthenticator,
		rateLimiter:   rateLimiter,
	}

	// Reconciliation engine wiring. The listener needs the registry for
	// subscription replay and the registry needs the listener as its
	// subscriber, so the registry is built first with the listener slotted
	// in through the handler indirection below.
	lookup := newOrderLookup(cfg.tracking)
	emitter := tracker.NewFanoutEmitter(logger,
		&logObserver{logger: logger},
		&pushObserver{app: app, sender: expoSender},
		&mailObserver{app: app},
	)

	listener := push.NewListener(cfg.tracking.pushURL, logger)
	registry := tracker.NewRegistry(tracker.Config{
		Lookup:       lookup,
		Subscriber:   listener,
		Emitter:      emitter,
		Logger:       logger,
		PollInterval: cfg.tracking.pollInterval,
		ResolveGrace: cfg.tracking.resolveGrace,
	})
	listener.SetHandler(&pushHandler{registry: registry})
	listener.OnUp = registry.Resubscribe

	app.registry = registry
	app.listener = listener

	// Re-track payments that were still pending when the process last
	// stopped, so a restart never loses an in-flight payment.
	app.recoverPendingPayments()

	expvar.NewString("version").Set(version)
	expvar.Publish("tracked_payments", expvar.Func(func() any {
		return len(registry.ListTracked())
	}))
	expvar.Publish("goroutines", expvar.Func(func() any {
		return runtime.NumGoroutine()
	}))

	mux := app.mount()

	logger.Fatal(app.run(mux))
}
