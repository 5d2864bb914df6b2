package config

import (
	"os"
	"strconv"
	"strings"
)

// Config holds every knob the engine reads from the environment.
// It is loaded once in main and injected into the components that
// need it; nothing reads os.Getenv after startup.
type Config struct {
	Port    string
	GinMode string

	// Shared secret for the external scheduler. Empty means the cron
	// endpoints are open (only acceptable outside production).
	CronSecret string

	// Fixed UTC offset (hours) used for civil-day arithmetic.
	// Paraguay runs at UTC-3 year round since 2024.
	UTCOffsetHours int

	// Web Push (VAPID)
	VAPIDPublicKey  string
	VAPIDPrivateKey string
	VAPIDSubject    string

	// OneSignal bulk push
	OneSignalAppID  string
	OneSignalAPIKey string

	// SMTP
	SMTPHost       string
	SMTPPort       int
	SMTPUser       string
	SMTPPass       string
	SMTPFrom       string
	NotifyCCEmails []string

	// Deep link bases for message payloads
	AppBaseURL string
}

func Load() *Config {
	offset := -3
	if v := os.Getenv("UTC_OFFSET_HOURS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			offset = n
		}
	}

	smtpPort := 587
	if v := os.Getenv("SMTP_PORT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			smtpPort = n
		}
	}

	cfg := &Config{
		Port:            getEnv("PORT", "8080"),
		GinMode:         getEnv("GIN_MODE", "debug"),
		CronSecret:      os.Getenv("CRON_SECRET"),
		UTCOffsetHours:  offset,
		VAPIDPublicKey:  os.Getenv("VAPID_PUBLIC_KEY"),
		VAPIDPrivateKey: os.Getenv("VAPID_PRIVATE_KEY"),
		VAPIDSubject:    getEnv("VAPID_SUBJECT", "mailto:admin@nativatech.com.py"),
		OneSignalAppID:  os.Getenv("ONESIGNAL_APP_ID"),
		OneSignalAPIKey: os.Getenv("ONESIGNAL_REST_API_KEY"),
		SMTPHost:        getEnv("SMTP_HOST", "smtp.gmail.com"),
		SMTPPort:        smtpPort,
		SMTPUser:        os.Getenv("SMTP_USER"),
		SMTPPass:        os.Getenv("SMTP_PASS"),
		SMTPFrom:        getEnv("SMTP_FROM", os.Getenv("SMTP_USER")),
		AppBaseURL:      strings.TrimRight(getEnv("APP_BASE_URL", ""), "/"),
	}

	for _, addr := range strings.Split(os.Getenv("NOTIFY_CC_EMAILS"), ",") {
		addr = strings.TrimSpace(addr)
		if addr != "" {
			cfg.NotifyCCEmails = append(cfg.NotifyCCEmails, addr)
		}
	}

	return cfg
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
